package access

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const principalKey = "access.principal"

// SetPrincipal stores the authenticated caller on the request context.
func SetPrincipal(c *gin.Context, p Principal) {
	c.Set(principalKey, &p)
}

// CurrentPrincipal returns the caller stored by SetPrincipal, or nil.
func CurrentPrincipal(c *gin.Context) *Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*Principal)
	return p
}

// RequireAuthenticated aborts with 401 when nobody is logged in.
func RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if d := CheckAuthenticated(CurrentPrincipal(c)); !d.Allowed {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", d.RedirectTo)
			return
		}
		c.Next()
	}
}

// RequireRole aborts with 401 when nobody is logged in and 403 when the
// caller's role differs from role.
func RequireRole(role Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := CurrentPrincipal(c)
		d := CheckRole(role, p)
		if d.Allowed {
			c.Next()
			return
		}
		if p == nil {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", d.RedirectTo)
			return
		}
		abort(c, http.StatusForbidden, "FORBIDDEN", d.RedirectTo)
	}
}

func abort(c *gin.Context, status int, code, redirectTo string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "redirectTo": redirectTo})
}
