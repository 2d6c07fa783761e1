package session

import "strings"

// Decision is the outcome of a route guard check.
type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	RedirectUnauthorized
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "/login"
	case RedirectUnauthorized:
		return "/unauthorized"
	}
	return "unknown"
}

var publicRoutes = []string{"/", "/login", "/signup", "/forgot-password", "/unauthorized"}

// Guard decides whether the signed-in state may open route. Admin routes live under /admin.
func Guard(route string, state UserState) Decision {
	route = "/" + strings.Trim(strings.TrimSpace(route), "/")
	for _, p := range publicRoutes {
		if route == p {
			return Allow
		}
	}
	if !state.IsAuthenticated || state.User == nil {
		return RedirectLogin
	}
	if (route == "/admin" || strings.HasPrefix(route, "/admin/")) && !state.User.IsAdmin {
		return RedirectUnauthorized
	}
	return Allow
}
