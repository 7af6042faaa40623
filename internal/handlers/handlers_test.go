package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"fraudcase/internal/auth"
	"fraudcase/internal/caseflow"
	"fraudcase/internal/config"
	"fraudcase/internal/document"
	"fraudcase/internal/models"
	"fraudcase/internal/notification"
	"fraudcase/internal/repository/memory"
	"fraudcase/internal/scammer"
	"fraudcase/internal/timeline"
)

type stubChecker struct{ err error }

func (s stubChecker) Health(context.Context) error { return s.err }

type HandlersTestSuite struct {
	suite.Suite
	router *gin.Engine
	auth   *auth.Service
	tokens map[models.Role]string
	other  string
}

func (s *HandlersTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	store := memory.New()

	dispatcher, err := notification.NewDispatcher(notification.NewLogMailer(logger), config.NotificationsConfig{
		RecipientTimeout: time.Second,
		Recipients: config.RecipientsConfig{
			Telecom: "telecom@example.org",
			Banking: "banking@example.org",
			Nodal:   "nodal@example.org",
		},
	}, "Cyber Cell", nil, logger)
	s.Require().NoError(err)

	orch := caseflow.New(caseflow.Dependencies{
		Store:      store,
		Ledger:     timeline.NewLedger(store.Timeline(), logger),
		Resolver:   scammer.NewResolver(store.Scammers(), nil, logger),
		Documents:  document.NewService(document.NewPDFRenderer(config.DocumentsConfig{Authority: "Cyber Cell"}), logger),
		Dispatcher: dispatcher,
	}, logger)

	s.auth = auth.NewService(config.AuthConfig{JWTSecret: "secret", Issuer: "fraudcase"}, logger)
	s.tokens = map[models.Role]string{
		models.RoleUser:   s.token(models.Principal{ID: "user-1", Role: models.RoleUser, DisplayName: "Asha"}),
		models.RoleAdmin:  s.token(models.Principal{ID: "admin-1", Role: models.RoleAdmin}),
		models.RolePolice: s.token(models.Principal{ID: "police-1", Role: models.RolePolice, DisplayName: "SI Meena"}),
	}
	s.other = s.token(models.Principal{ID: "user-2", Role: models.RoleUser})

	cases := NewCaseHandler(orch, logger)
	scammers := NewScammerHandler(orch, logger)
	health := NewHealthHandler(store, stubChecker{err: errors.New("connection refused")}, logger)

	s.router = gin.New()
	s.router.GET("/health/ready", health.Ready)
	v1 := s.router.Group("/api/v1", s.auth.Middleware())
	v1.POST("/cases", cases.SubmitCase)
	v1.GET("/cases", cases.ListCases)
	v1.GET("/cases/:id", cases.GetCase)
	v1.GET("/cases/:id/timeline", cases.GetTimeline)
	v1.POST("/cases/:id/stages", cases.AdvanceStage)
	v1.POST("/cases/:id/notifications/retry", cases.RetryNotifications)
	v1.GET("/cases/:id/document", cases.GetDocument)
	v1.GET("/scammers/:id", scammers.GetScammer)
	v1.PUT("/scammers/:id/status", scammers.UpdateStatus)
	v1.GET("/stages", ListStages)
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func (s *HandlersTestSuite) token(p models.Principal) string {
	token, err := s.auth.GenerateToken(p, time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *HandlersTestSuite) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			s.Require().NoError(json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlersTestSuite) decode(w *httptest.ResponseRecorder, v interface{}) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func intake(withScammer bool) map[string]interface{} {
	body := map[string]interface{}{
		"case_type":     "upi-fraud",
		"description":   "Fake refund call",
		"amount":        250000,
		"incident_date": "2024-05-20T09:00:00Z",
		"location":      "Pune",
		"intake_form": map[string]interface{}{
			"personal_info": map[string]interface{}{"full_name": "Asha Rao"},
			"old_field":     "kept in legacy",
		},
	}
	if withScammer {
		body["scammer"] = map[string]interface{}{"phone": "98765 43210", "payment_handle": "refund@okaxis"}
	}
	return body
}

func (s *HandlersTestSuite) submit(withScammer bool) models.Case {
	w := s.do(http.MethodPost, "/api/v1/cases", s.tokens[models.RoleUser], intake(withScammer))
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var c models.Case
	s.decode(w, &c)
	return c
}

func (s *HandlersTestSuite) TestSubmitCase() {
	c := s.submit(true)

	s.Equal(models.StageCRPCGenerated, c.Status)
	s.Equal(models.PriorityHigh, c.Priority)
	s.Equal("user-1", c.ReporterID)
	s.NotNil(c.DocumentID)
	s.True(caseflow.IsCaseCode(c.CaseCode))
}

func (s *HandlersTestSuite) TestSubmitCaseErrors() {
	w := s.do(http.MethodPost, "/api/v1/cases", "", intake(false))
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/v1/cases", s.tokens[models.RoleUser], "{not json")
	s.Equal(http.StatusBadRequest, w.Code)

	body := intake(false)
	delete(body, "amount")
	w = s.do(http.MethodPost, "/api/v1/cases", s.tokens[models.RoleUser], body)
	s.Equal(http.StatusBadRequest, w.Code)

	var resp map[string]string
	s.decode(w, &resp)
	s.Equal("validation", resp["kind"])
	s.Contains(resp["error"], "Amount is required")

	w = s.do(http.MethodPost, "/api/v1/cases", s.tokens[models.RolePolice], intake(false))
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *HandlersTestSuite) TestGetCase() {
	c := s.submit(false)

	w := s.do(http.MethodGet, "/api/v1/cases/"+c.CaseCode, s.tokens[models.RoleUser], nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/cases/"+c.ID.String(), s.other, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/v1/cases/FRD-999999-NONE", s.tokens[models.RoleAdmin], nil)
	s.Equal(http.StatusNotFound, w.Code)

	var resp map[string]string
	s.decode(w, &resp)
	s.Equal("not_found", resp["kind"])
}

func (s *HandlersTestSuite) TestListCases() {
	s.submit(false)
	s.submit(true)

	w := s.do(http.MethodGet, "/api/v1/cases?limit=1", s.tokens[models.RoleAdmin], nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var page struct {
		Data    []models.Case `json:"data"`
		Total   int64         `json:"total"`
		HasNext bool          `json:"has_next"`
	}
	s.decode(w, &page)
	s.EqualValues(2, page.Total)
	s.Len(page.Data, 1)
	s.True(page.HasNext)

	w = s.do(http.MethodGet, "/api/v1/cases?status=crpc_generated", s.tokens[models.RoleAdmin], nil)
	s.decode(w, &page)
	s.EqualValues(1, page.Total)

	w = s.do(http.MethodGet, "/api/v1/cases", s.other, nil)
	s.decode(w, &page)
	s.EqualValues(0, page.Total)

	w = s.do(http.MethodGet, "/api/v1/cases?status=verified", s.tokens[models.RoleAdmin], nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/cases?scammer_id=xyz", s.tokens[models.RoleAdmin], nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlersTestSuite) TestAdvanceStage() {
	c := s.submit(true)
	path := "/api/v1/cases/" + c.ID.String() + "/stages"

	w := s.do(http.MethodPost, path, s.tokens[models.RoleAdmin], map[string]string{"stage": "closed"})
	s.Equal(http.StatusBadRequest, w.Code)
	var errResp map[string]string
	s.decode(w, &errResp)
	s.Equal("invalid_transition", errResp["kind"])

	w = s.do(http.MethodPost, path, s.tokens[models.RolePolice], map[string]string{"stage": "emails_sent"})
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, path, s.tokens[models.RoleAdmin], map[string]string{})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, path, s.tokens[models.RoleAdmin], map[string]string{"stage": "emails_sent"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var result models.StageResult
	s.decode(w, &result)
	s.Equal(models.StageEmailsSent, result.Status)
	s.Len(result.Notifications, 3)
	s.Empty(result.Notifications.Failed())

	w = s.do(http.MethodPost, path, s.tokens[models.RoleAdmin], map[string]string{"stage": "emails_sent"})
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &result)
	s.True(result.AlreadyCompleted)

	w = s.do(http.MethodPost, "/api/v1/cases/"+c.CaseCode+"/notifications/retry", s.tokens[models.RoleAdmin], nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *HandlersTestSuite) TestTimeline() {
	c := s.submit(true)

	var raw struct {
		Entries []models.TimelineEntry `json:"entries"`
		Total   int                    `json:"total"`
	}
	w := s.do(http.MethodGet, "/api/v1/cases/"+c.ID.String()+"/timeline", s.tokens[models.RoleUser], nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &raw)
	s.Equal(3, raw.Total)

	w = s.do(http.MethodGet, "/api/v1/cases/"+c.ID.String()+"/timeline?view=projected", s.tokens[models.RoleUser], nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &raw)
	s.Equal(10, raw.Total)
	s.Equal(models.EntryCompleted, raw.Entries[2].Status)
	s.Equal(models.EntryPending, raw.Entries[3].Status)
}

func (s *HandlersTestSuite) TestDocument() {
	c := s.submit(true)

	w := s.do(http.MethodGet, "/api/v1/cases/"+c.CaseCode+"/document", s.tokens[models.RoleUser], nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("application/pdf", w.Header().Get("Content-Type"))
	s.True(bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
	s.Contains(w.Header().Get("X-Content-Digest"), "blake2b-256=")

	pending := s.submit(false)
	w = s.do(http.MethodGet, "/api/v1/cases/"+pending.CaseCode+"/document", s.tokens[models.RoleUser], nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlersTestSuite) TestScammers() {
	c := s.submit(true)
	path := "/api/v1/scammers/" + c.ScammerID.String()

	w := s.do(http.MethodGet, path, s.tokens[models.RoleUser], nil)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, path, s.tokens[models.RolePolice], nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var profile models.ScammerProfile
	s.decode(w, &profile)
	s.Equal("9876543210", profile.Phone)
	s.Equal(1, profile.CaseCount)

	w = s.do(http.MethodPut, path+"/status", s.tokens[models.RoleAdmin], map[string]string{"status": "blocked"})
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &profile)
	s.Equal(models.ScammerBlocked, profile.Status)

	w = s.do(http.MethodPut, path+"/status", s.tokens[models.RoleAdmin], map[string]string{"status": "gone"})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/scammers/not-a-uuid", s.tokens[models.RoleAdmin], nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlersTestSuite) TestStagesAndHealth() {
	w := s.do(http.MethodGet, "/api/v1/stages", s.tokens[models.RoleUser], nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"assigned_to_police"`)

	w = s.do(http.MethodGet, "/health/ready", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var ready map[string]string
	s.decode(w, &ready)
	s.Equal("ready", ready["status"])
	s.Equal("unavailable", ready["cache"])
}
