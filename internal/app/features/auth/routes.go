// internal/app/features/auth/routes.go
package auth

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter serving the auth endpoints.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.HandleRegister)
	r.Post("/login", h.HandleLogin)
	r.Post("/logout", h.HandleLogout)
	return r
}
