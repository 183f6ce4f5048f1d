package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nosht/nosht/pkg/logger"
	"github.com/nosht/nosht/pkg/response"
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token expired")
)

// Roles a session can carry
const (
	RoleGuest = "guest"
	RoleHost  = "host"
	RoleAdmin = "admin"
)

const contextKeySession = "session"

// Session is the authenticated caller, scoped to one company
type Session struct {
	UserID    int64  `json:"user_id"`
	CompanyID int64  `json:"company_id"`
	Role      string `json:"role"`
	Email     string `json:"email,omitempty"`
}

// IsHostOrAdmin reports whether the session may manage events
func (s *Session) IsHostOrAdmin() bool {
	return s.Role == RoleHost || s.Role == RoleAdmin
}

// SessionClaims are the JWT claims backing a Session
type SessionClaims struct {
	UserID    int64  `json:"user_id"`
	CompanyID int64  `json:"company_id"`
	Role      string `json:"role"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// SessionConfig holds configuration for the session middleware
type SessionConfig struct {
	Secret string
	Issuer string
	// SkipPaths is a list of paths that should skip session validation
	SkipPaths []string
}

// SignSession issues an HS256 session token. Login lives outside this service; the
// signer is used by tooling and tests.
func SignSession(cfg *SessionConfig, s Session, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID:    s.UserID,
		CompanyID: s.CompanyID,
		Role:      s.Role,
		Email:     s.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   fmt.Sprintf("%d", s.UserID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}

// ParseSession validates a session token and returns its session
func ParseSession(cfg *SessionConfig, tokenString string) (*Session, error) {
	claims := &SessionClaims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.UserID == 0 || claims.CompanyID == 0 {
		return nil, ErrInvalidToken
	}

	return &Session{
		UserID:    claims.UserID,
		CompanyID: claims.CompanyID,
		Role:      claims.Role,
		Email:     claims.Email,
	}, nil
}

// SessionMiddleware authenticates the bearer session token and stores the Session in the gin
// and request contexts
func SessionMiddleware(config *SessionConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, path := range config.SkipPaths {
			if c.Request.URL.Path == path {
				c.Next()
				return
			}
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("MISSING_TOKEN", "Authorization header is required"))
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("INVALID_TOKEN", "Invalid authorization header format"))
			return
		}
		tokenString := authHeader[len(bearerPrefix):]
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("INVALID_TOKEN", "Token is empty"))
			return
		}

		session, err := ParseSession(config, tokenString)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("TOKEN_EXPIRED", "Session has expired"))
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("INVALID_TOKEN", "Invalid session"))
			return
		}

		c.Set(contextKeySession, session)
		ctx := context.WithValue(c.Request.Context(), logger.CompanyIDKey, session.CompanyID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireRole rejects sessions whose role is not one of roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := GetSession(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized("User not authenticated"))
			return
		}

		for _, r := range roles {
			if session.Role == r {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, response.Forbidden("Insufficient permissions"))
	}
}

// GetSession extracts the session from gin context
func GetSession(c *gin.Context) (*Session, bool) {
	v, exists := c.Get(contextKeySession)
	if !exists {
		return nil, false
	}
	s, ok := v.(*Session)
	return s, ok
}

// SetSession stores a session on the gin context
func SetSession(c *gin.Context, s *Session) {
	c.Set(contextKeySession, s)
}
