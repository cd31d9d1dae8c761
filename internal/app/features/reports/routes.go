// internal/app/features/reports/routes.go

package reports

import (
	"github.com/go-chi/chi/v5"

	"github.com/dalemusser/straywatch/internal/app/system/gates"
)

// Routes mounts the report endpoints.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	// Concluded reports are public record.
	r.Get("/concluded", h.HandleListConcluded)

	r.Group(func(r chi.Router) {
		r.Use(gates.RequireAuth)

		r.Get("/mine", h.HandleListOwn)
		r.Get("/{reportID}", h.HandleGet)
		r.Get("/{reportID}/media/{mediaID}", h.HandleMedia)
		r.Delete("/{reportID}", h.HandleDelete)
		r.Post("/{reportID}/flag-creator", h.HandleFlagCreator)

		r.Group(func(r chi.Router) {
			r.Use(gates.RequireReporter, gates.RequireNotBanned)
			r.Post("/", h.HandleSubmit)
		})

		r.Group(func(r chi.Router) {
			r.Use(gates.RequireIndividual, gates.RequireNotBanned)
			r.Post("/{reportID}/contest", h.HandleContest)
		})

		r.Group(func(r chi.Router) {
			r.Use(gates.RequireOrganization)
			r.Get("/workload", h.HandleWorkload)
			r.Post("/{reportID}/claim", h.HandleClaim)
			r.Post("/{reportID}/conclude", h.HandleConclude)
			r.Post("/{reportID}/deny", h.HandleDeny)
		})
	})

	return r
}
