package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/AaronLay10/Cadence/internal/config"
)

// Role represents an authorization role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

type authConfig struct {
	adminUser    string
	adminPass    string
	operatorUser string
	operatorPass string
	enabled      bool
}

var auth *authConfig

// InitAuth installs the basic-auth credentials from s. Auth is enabled only
// when admin credentials are set; otherwise every request is treated as
// admin.
func InitAuth(s config.Secrets) {
	auth = &authConfig{
		adminUser:    s.AdminUser,
		adminPass:    s.AdminPass,
		operatorUser: s.OperatorUser,
		operatorPass: s.OperatorPass,
		enabled:      s.AdminUser != "" && s.AdminPass != "",
	}
}

// IsAuthEnabled returns true if authentication is configured.
func IsAuthEnabled() bool {
	return auth != nil && auth.enabled
}

// authenticate returns the caller's role, or "" for bad credentials.
func authenticate(r *http.Request) Role {
	if !IsAuthEnabled() {
		return RoleAdmin
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}
	if matches(user, pass, auth.adminUser, auth.adminPass) {
		return RoleAdmin
	}
	if matches(user, pass, auth.operatorUser, auth.operatorPass) {
		return RoleOperator
	}
	return ""
}

func matches(user, pass, wantUser, wantPass string) bool {
	if wantUser == "" || wantPass == "" {
		return false
	}
	// Both comparisons always run.
	u := secureCompare(user, wantUser)
	p := secureCompare(pass, wantPass)
	return u && p
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="Cadence"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// RequireRole wraps a handler and requires one of the specified roles.
func RequireRole(handler http.HandlerFunc, allowedRoles ...Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := authenticate(r)
		if role == "" {
			requireAuth(w)
			return
		}
		for _, allowed := range allowedRoles {
			if role == allowed {
				handler(w, r)
				return
			}
		}
		http.Error(w, "Forbidden", http.StatusForbidden)
	}
}

// RequireAnyRole wraps a handler requiring admin OR operator role.
func RequireAnyRole(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleAdmin, RoleOperator)
}

// RequireAdmin wraps a handler requiring admin role only.
func RequireAdmin(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleAdmin)
}
