// internal/app/features/admin/routes.go

package admin

import (
	"github.com/go-chi/chi/v5"

	"github.com/dalemusser/straywatch/internal/app/system/gates"
)

// Routes mounts the administrator endpoints.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(gates.RequireAuth, gates.RequireAdmin)

	r.Get("/pending", h.HandlePending)
	r.Get("/audit", h.HandleAudit)

	r.Post("/organizations/{userID}/approve", h.HandleApproveOrg)
	r.Post("/organizations/{userID}/reject", h.HandleRejectOrg)

	r.Post("/users/{userID}/confirm-ban", h.HandleConfirmBan)
	r.Post("/users/{userID}/revert-ban", h.HandleRevertBan)

	return r
}
