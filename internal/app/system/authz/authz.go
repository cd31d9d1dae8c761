// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/straywatch/internal/app/system/auth"
	"github.com/dalemusser/straywatch/internal/app/system/status"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the user's role (lowercased), status, Mongo ObjectID,
// and a found flag. If no user is present in context or the user ID is
// malformed, it returns "visitor", "", NilObjectID, false — so ok=true
// always means a valid, authenticated user with a valid ObjectID.
func UserCtx(r *http.Request) (role string, accountStatus string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "visitor", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// Malformed user ID in session - fail closed.
		return "visitor", "", primitive.NilObjectID, false
	}
	return strings.ToLower(user.Role), strings.ToLower(user.Status), userID, true
}

// IsAdmin reports whether the current request's user is the administrator.
func IsAdmin(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == status.RoleAdmin
}

// IsOrganization reports whether the current request's user is an
// organization account.
func IsOrganization(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == status.RoleOrganization
}

// IsIndividual reports whether the current request's user is an individual.
func IsIndividual(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == status.RoleIndividual
}

// IsBanned reports whether the current request's user carries the banned
// status. Banned individuals keep read access but are refused new report
// submission and profile mutation.
func IsBanned(r *http.Request) bool {
	_, accountStatus, _, ok := UserCtx(r)
	return ok && accountStatus == status.AccountBanned
}
