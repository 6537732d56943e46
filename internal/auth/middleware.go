package auth

import (
	"log"
	"net/http"

	dom "github.com/dordunu1/taskboard/internal/domain"

	"github.com/gin-gonic/gin"
)

// CookieName is the session cookie.
const CookieName = "session_id"

const (
	contextKeyIdentity  = "identity"
	contextKeySessionID = "session_id"
)

// IdentityFromContext returns the identity set by RequireSession.
func IdentityFromContext(c *gin.Context) (dom.Identity, bool) {
	v, ok := c.Get(contextKeyIdentity)
	if !ok {
		return dom.Identity{}, false
	}
	who, ok := v.(dom.Identity)
	return who, ok
}

// SessionIDFromContext returns the session id set by RequireSession. "" if not set.
func SessionIDFromContext(c *gin.Context) string {
	return c.GetString(contextKeySessionID)
}

// SetContext stores the session on c. Used by RequireSession and tests.
func SetContext(c *gin.Context, sessionID string, who dom.Identity) {
	c.Set(contextKeySessionID, sessionID)
	c.Set(contextKeyIdentity, who)
}

// RequireSession returns a middleware that checks for a valid session cookie
// and sets the current identity in context. If missing or invalid, responds with 401.
func RequireSession(sessions *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(CookieName)
		if err != nil || sessionID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		who, ok, err := sessions.Get(c.Request.Context(), sessionID)
		if err != nil {
			log.Printf("session lookup: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		SetContext(c, sessionID, who)
		c.Next()
	}
}
