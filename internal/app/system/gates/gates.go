// Package gates provides route middleware enforcing who may reach a
// handler. Authentication gates check the session; status gates check
// the account standing recorded in it. Banned individuals keep read
// access, so RequireNotBanned guards only mutating routes.
package gates

import (
	"net/http"
	"strings"

	apierrors "github.com/dalemusser/straywatch/internal/app/features/errors"
	"github.com/dalemusser/straywatch/internal/app/system/auth"
	"github.com/dalemusser/straywatch/internal/app/system/status"
)

// RequireAuth rejects requests with no signed-in user.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.CurrentUser(r); !ok {
			apierrors.WriteJSON(w, http.StatusUnauthorized, "authorization", "sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin admits only administrators.
func RequireAdmin(next http.Handler) http.Handler {
	return requireRole(next, status.RoleAdmin)
}

// RequireOrganization admits only organization accounts.
func RequireOrganization(next http.Handler) http.Handler {
	return requireRole(next, status.RoleOrganization)
}

// RequireReporter admits individual and organization accounts, the two
// roles that may file reports.
func RequireReporter(next http.Handler) http.Handler {
	return requireRole(next, status.RoleIndividual, status.RoleOrganization)
}

// RequireIndividual admits only individual accounts.
func RequireIndividual(next http.Handler) http.Handler {
	return requireRole(next, status.RoleIndividual)
}

func requireRole(next http.Handler, roles ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.CurrentUser(r)
		if !ok {
			apierrors.WriteJSON(w, http.StatusUnauthorized, "authorization", "sign in required")
			return
		}
		for _, role := range roles {
			if strings.EqualFold(strings.TrimSpace(u.Role), role) {
				next.ServeHTTP(w, r)
				return
			}
		}
		apierrors.WriteJSON(w, http.StatusForbidden, "authorization", "not allowed")
	})
}

// RequireNotBanned refuses mutating requests from banned accounts.
func RequireNotBanned(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.CurrentUser(r)
		if !ok {
			apierrors.WriteJSON(w, http.StatusUnauthorized, "authorization", "sign in required")
			return
		}
		if u.Status == status.AccountBanned {
			apierrors.WriteJSON(w, http.StatusForbidden, "authorization", "account is banned")
			return
		}
		next.ServeHTTP(w, r)
	})
}
