package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/derlev/sandwich-spawnpoint/internal/models"
	"github.com/derlev/sandwich-spawnpoint/internal/pkg/jwt"
	"github.com/derlev/sandwich-spawnpoint/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

const ContextKeySession = "session"

// Bearer challenge error codes (RFC 6750).
const (
	ErrCodeInvalidRequest    = "invalid_request"
	ErrCodeInvalidToken      = "invalid_token"
	ErrCodeInsufficientScope = "insufficient_scope"
)

// TokenValidator is satisfied by *jwt.Issuer.
type TokenValidator interface {
	Validate(token string) (*jwt.SessionClaim, error)
}

// Auth rejects requests without a valid bearer token. When roles are given the session role
// must be one of them.
func Auth(v TokenValidator, roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			challenge(c, http.StatusUnauthorized, ErrCodeInvalidRequest, "Authorization header is missing", nil)
			return
		}
		token, ok := bearerToken(header)
		if !ok {
			challenge(c, http.StatusUnauthorized, ErrCodeInvalidRequest, "Authorization header must have the form 'Bearer <token>'", nil)
			return
		}
		claim, err := v.Validate(token)
		if err != nil {
			challenge(c, http.StatusUnauthorized, ErrCodeInvalidToken, "Token is invalid or expired", err)
			return
		}
		if len(allowed) > 0 {
			if _, ok := allowed[claim.Role]; !ok {
				challenge(c, http.StatusForbidden, ErrCodeInsufficientScope, "Your role is not allowed to access this resource", nil)
				return
			}
		}

		c.Set(ContextKeySession, claim)
		c.Next()
	}
}

// OptionalAuth attaches the session when a valid bearer token is present but never rejects.
func OptionalAuth(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if claim, err := v.Validate(token); err == nil {
				c.Set(ContextKeySession, claim)
			}
		}
		c.Next()
	}
}

// CurrentSession returns the session attached by Auth or OptionalAuth.
func CurrentSession(c *gin.Context) (*jwt.SessionClaim, bool) {
	v, ok := c.Get(ContextKeySession)
	if !ok {
		return nil, false
	}
	claim, ok := v.(*jwt.SessionClaim)
	return claim, ok && claim != nil
}

// HasRole reports whether the request carries a session with role r.
func HasRole(c *gin.Context, r models.Role) bool {
	claim, ok := CurrentSession(c)
	return ok && claim.Role == r
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

func challenge(c *gin.Context, status int, code, description string, cause error) {
	c.Header("WWW-Authenticate", fmt.Sprintf(`Bearer realm="%s",error="%s",error_description="%s"`,
		quoteSafe(requestURL(c.Request)), code, quoteSafe(description)))
	if cause != nil {
		_ = c.Error(cause)
	}
	response.Abort(c, status, description)
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func quoteSafe(s string) string {
	return strings.NewReplacer(`"`, `'`, "\r", "", "\n", "").Replace(s)
}
