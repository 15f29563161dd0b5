package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/config"
)

// Role represents an authorization role.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

// Credential variables, each also read from <name>_FILE.
const (
	AdminUserEnv  = "DECK_API_USER"
	ViewerUserEnv = "DECK_API_VIEWER_USER"
	ViewerPassEnv = "DECK_API_VIEWER_PASSWORD"
)

// authConfig holds credentials loaded from the environment.
type authConfig struct {
	adminUser  string
	adminPass  string
	viewerUser string
	viewerPass string
	enabled    bool
}

var auth *authConfig

// InitAuth loads credentials. configuredUser is the api.username value
// from the config file, used when DECK_API_USER is unset. The admin
// password only comes from DECK_API_PASSWORD or its _FILE variant.
// Without admin credentials authentication is disabled; the daemon
// binds to localhost by default.
func InitAuth(configuredUser string) error {
	adminUser, err := config.ResolveSecretOr(AdminUserEnv, configuredUser)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", AdminUserEnv, err)
	}
	adminPass, err := config.ResolveSecret(config.APIPasswordEnv)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", config.APIPasswordEnv, err)
	}
	viewerUser, err := config.ResolveSecret(ViewerUserEnv)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", ViewerUserEnv, err)
	}
	viewerPass, err := config.ResolveSecret(ViewerPassEnv)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", ViewerPassEnv, err)
	}

	auth = &authConfig{
		adminUser:  adminUser,
		adminPass:  adminPass,
		viewerUser: viewerUser,
		viewerPass: viewerPass,
		enabled:    adminUser != "" && adminPass != "",
	}
	return nil
}

// IsAuthEnabled returns true if authentication is configured.
func IsAuthEnabled() bool {
	return auth != nil && auth.enabled
}

// authenticate checks basic auth credentials and returns the role if valid.
// Returns empty string if credentials are invalid.
func authenticate(r *http.Request) Role {
	if auth == nil || !auth.enabled {
		return RoleAdmin
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}

	if secureCompare(user, auth.adminUser) && secureCompare(pass, auth.adminPass) {
		return RoleAdmin
	}

	if auth.viewerUser != "" && auth.viewerPass != "" {
		if secureCompare(user, auth.viewerUser) && secureCompare(pass, auth.viewerPass) {
			return RoleViewer
		}
	}

	return ""
}

// secureCompare performs constant-time string comparison.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requireAuth returns 401 Unauthorized with WWW-Authenticate header.
func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="shortcutd"`)
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

// RequireAnyRole wraps a handler requiring admin OR viewer role.
func RequireAnyRole(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleAdmin, RoleViewer)
}

// RequireAdmin wraps a handler requiring admin role only.
func RequireAdmin(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleAdmin)
}
