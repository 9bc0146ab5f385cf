package user

import (
	"errors"
	"net/http"

	"github.com/SlpAus/parking-raffle-backend/internal/access"
	"github.com/gin-gonic/gin"
	"github.com/google/logger"
)

const sessionContextKey = "user.session"

// CookieSettings controls the session cookie written to clients.
type CookieSettings struct {
	Name   string
	Secure bool
}

func (cs CookieSettings) set(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cs.Name, value, maxAge, "/", "", cs.Secure, true)
}

func (cs CookieSettings) clear(c *gin.Context) {
	cs.set(c, "", -1)
}

// SessionMiddleware hydrates the current session and principal from the
// session cookie on every request. Requests without a valid session pass
// through anonymously; a stale cookie is cleared.
func SessionMiddleware(sessions *SessionStore, cookie CookieSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, err := c.Cookie(cookie.Name)
		if err != nil || value == "" {
			c.Next()
			return
		}

		sess, err := sessions.Lookup(c.Request.Context(), value)
		switch {
		case err == nil:
			c.Set(sessionContextKey, sess)
			access.SetPrincipal(c, access.Principal{ID: sess.User.ID, Role: sess.User.Role})
		case errors.Is(err, ErrNoSession):
			cookie.clear(c)
		default:
			logger.Warningf("session lookup failed: %v", err)
		}
		c.Next()
	}
}

// CurrentSession returns the session hydrated by SessionMiddleware, or nil.
func CurrentSession(c *gin.Context) *Session {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*Session)
	return sess
}
