package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dalemusser/straywatch/internal/app/system/auth"
	"github.com/dalemusser/straywatch/internal/app/system/status"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// TestUser represents user data for testing HTTP handlers.
type TestUser struct {
	ID     string
	Name   string
	Email  string
	Role   string
	Status string
}

// AdminUser returns a TestUser with the admin role.
func AdminUser() TestUser {
	return TestUser{
		ID:     primitive.NewObjectID().Hex(),
		Name:   "Test Admin",
		Email:  "admin@test.com",
		Role:   status.RoleAdmin,
		Status: status.AccountApproved,
	}
}

// OrganizationUser returns an approved organization TestUser.
func OrganizationUser() TestUser {
	return TestUser{
		ID:     primitive.NewObjectID().Hex(),
		Name:   "Test Shelter",
		Email:  "shelter@test.com",
		Role:   status.RoleOrganization,
		Status: status.AccountApproved,
	}
}

// IndividualUser returns an approved individual TestUser.
func IndividualUser() TestUser {
	return TestUser{
		ID:     primitive.NewObjectID().Hex(),
		Name:   "Test Person",
		Email:  "person@test.com",
		Role:   status.RoleIndividual,
		Status: status.AccountApproved,
	}
}

// BannedUser returns a banned individual TestUser.
func BannedUser() TestUser {
	u := IndividualUser()
	u.Status = status.AccountBanned
	return u
}

// WithUser adds a user to the request context for testing authenticated handlers.
// This bypasses the session middleware and injects the user directly.
func WithUser(r *http.Request, user TestUser) *http.Request {
	sessionUser := &auth.SessionUser{
		ID:     user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   user.Role,
		Status: user.Status,
	}
	return auth.WithTestUser(r, sessionUser)
}

// NewAuthenticatedRequest creates an HTTP request with a user in context.
func NewAuthenticatedRequest(method, target string, user TestUser) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return WithUser(req, user)
}
