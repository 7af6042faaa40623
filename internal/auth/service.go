package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"fraudcase/internal/config"
	"fraudcase/internal/models"
)

const principalKey = "principal"

// Service issues and validates bearer tokens
type Service struct {
	secret []byte
	issuer string
	logger *zap.Logger
}

// Claims carries the caller identity. Subject holds the principal id.
type Claims struct {
	Role models.Role `json:"role"`
	Name string      `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func NewService(cfg config.AuthConfig, logger *zap.Logger) *Service {
	return &Service{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		logger: logger.Named("auth"),
	}
}

// GenerateToken signs an HS256 token for p that expires after ttl
func (s *Service) GenerateToken(p models.Principal, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := &Claims{
		Role: p.Role,
		Name: p.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   p.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return signed, nil
}

// ValidateToken parses a token and returns the principal it names
func (s *Service) ValidateToken(tokenString string) (models.Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return models.Principal{}, errors.Wrap(err, "failed to parse token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return models.Principal{}, errors.New("invalid token claims")
	}
	if claims.Subject == "" {
		return models.Principal{}, errors.New("token has no subject")
	}

	switch claims.Role {
	case models.RoleUser, models.RoleAdmin, models.RolePolice:
	default:
		// system is never granted to external callers
		return models.Principal{}, errors.Errorf("role %q is not allowed", claims.Role)
	}

	return models.Principal{ID: claims.Subject, Role: claims.Role, DisplayName: claims.Name}, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// principal on the gin context
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		principal, err := s.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			s.logger.Debug("Rejected bearer token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by Middleware
func PrincipalFrom(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

// WithPrincipal stores p on the context. Used by tests and internal callers.
func WithPrincipal(c *gin.Context, p models.Principal) {
	c.Set(principalKey, p)
}
