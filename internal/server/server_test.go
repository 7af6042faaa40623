package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fraudcase/internal/auth"
	"fraudcase/internal/caseflow"
	"fraudcase/internal/config"
	"fraudcase/internal/document"
	"fraudcase/internal/metrics"
	"fraudcase/internal/models"
	"fraudcase/internal/notification"
	"fraudcase/internal/repository/memory"
	"fraudcase/internal/scammer"
	"fraudcase/internal/timeline"
)

func newTestServer(t *testing.T) (*Server, *auth.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	store := memory.New()
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	dispatcher, err := notification.NewDispatcher(notification.NewLogMailer(logger), config.NotificationsConfig{}, "Cyber Cell", collector, logger)
	require.NoError(t, err)

	orch := caseflow.New(caseflow.Dependencies{
		Store:      store,
		Ledger:     timeline.NewLedger(store.Timeline(), logger),
		Resolver:   scammer.NewResolver(store.Scammers(), collector, logger),
		Documents:  document.NewService(document.NewPDFRenderer(config.DocumentsConfig{}), logger),
		Dispatcher: dispatcher,
		Metrics:    collector,
	}, logger)

	authService := auth.NewService(config.AuthConfig{JWTSecret: "secret"}, logger)
	cfg := &config.Config{Server: config.ServerConfig{HTTPPort: 0, GRPCPort: 0}}

	srv := New(cfg, logger, Options{
		Store:        store,
		Orchestrator: orch,
		Auth:         authService,
		Gatherer:     registry,
	})
	require.NoError(t, srv.Initialize())
	return srv, authService
}

func TestInitializeRequiresCollaborators(t *testing.T) {
	srv := New(&config.Config{}, zap.NewNop(), Options{})
	assert.Error(t, srv.Initialize())
}

func TestRoutes(t *testing.T) {
	srv, authService := newTestServer(t)

	token, err := authService.GenerateToken(models.Principal{ID: "admin-1", Role: models.RoleAdmin}, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"ready", http.MethodGet, "/health/ready", "", http.StatusOK},
		{"live", http.MethodGet, "/health/live", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"api requires token", http.MethodGet, "/api/v1/cases", "", http.StatusUnauthorized},
		{"list cases", http.MethodGet, "/api/v1/cases", token, http.StatusOK},
		{"stages", http.MethodGet, "/api/v1/stages", token, http.StatusOK},
		{"cors preflight", http.MethodOptions, "/api/v1/cases", "", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			srv.Router().ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
