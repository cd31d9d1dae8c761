// internal/app/features/account/routes.go

package account

import (
	"github.com/go-chi/chi/v5"

	"github.com/dalemusser/straywatch/internal/app/system/gates"
)

// Routes mounts the self-service account endpoints.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(gates.RequireAuth)

	r.Get("/me", h.HandleGet)
	r.Put("/me", h.HandleUpdate)
	r.Delete("/me", h.HandleDelete)

	return r
}
