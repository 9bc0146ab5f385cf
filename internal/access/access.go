// Package access decides whether the current user may reach a route and,
// if not, where the client should send them.
package access

// Role is a user's authorization level.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleResident Role = "resident"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleResident
}

// Client-side routes a denied request is redirected to.
const (
	LoginRoute  = "/login"
	AdminRoute  = "/admin"
	PortalRoute = "/portal"
)

// HomeRoute is the landing page for role.
func HomeRoute(role Role) string {
	if role == RoleAdmin {
		return AdminRoute
	}
	return PortalRoute
}

// Principal is the authenticated caller of a request.
type Principal struct {
	ID   string
	Role Role
}

// Decision is the outcome of a gate check. RedirectTo is set only when
// Allowed is false.
type Decision struct {
	Allowed    bool
	RedirectTo string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(to string) Decision { return Decision{RedirectTo: to} }

// CheckAuthenticated passes iff there is a current user.
func CheckAuthenticated(p *Principal) Decision {
	if p == nil {
		return deny(LoginRoute)
	}
	return allow()
}

// CheckRole passes iff the current user has the expected role. A mismatched
// admin is sent to the admin area, anyone else to the portal.
func CheckRole(expected Role, p *Principal) Decision {
	switch {
	case p == nil:
		return deny(LoginRoute)
	case p.Role == expected:
		return allow()
	case p.Role == RoleAdmin:
		return deny(AdminRoute)
	default:
		return deny(PortalRoute)
	}
}
