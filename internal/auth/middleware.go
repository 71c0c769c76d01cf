package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"dashboard/internal/session"
)

const sessionKey = "session"

// LoginPath is where clients are sent once their session is gone.
const LoginPath = "/login"

// SessionAuth enforces a bearer access token that maps to a live session.
func SessionAuth(issuer *Issuer, sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			Reject(c, "missing bearer token")
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := issuer.Parse(tokenStr, KindAccess)
		if err != nil {
			Reject(c, "invalid token")
			return
		}
		s, err := sessions.Get(c.Request.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				Reject(c, "session expired, please log in again")
				return
			}
			Unavailable(c)
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// Reject aborts with 401 and points the client at the login page.
func Reject(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "redirect": LoginPath})
}

// Unavailable aborts with 503 when the session store cannot be reached.
func Unavailable(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Sessions are temporarily unavailable, please try again"})
}

// Current returns the session attached by SessionAuth.
func Current(c *gin.Context) (session.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return session.Session{}, false
	}
	s, ok := v.(session.Session)
	return s, ok
}
