// Package reportpolicy provides authorization policies for report access.
//
// Authorization rules:
//   - Admins can view every report.
//   - Creators can view their own reports in any status.
//   - Organizations can view reports assigned to them, plus submitted
//     reports that are still unassigned (the available pool).
//   - Everyone else cannot see the report; callers report that as
//     not-found rather than forbidden so report IDs are not probeable.
package reportpolicy

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dalemusser/straywatch/internal/app/system/status"
	"github.com/dalemusser/straywatch/internal/domain/models"
)

// CanView reports whether the actor may see the given report.
func CanView(actorID primitive.ObjectID, role string, rep *models.Report) bool {
	if rep == nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(role)) {
	case status.RoleAdmin:
		return true
	case status.RoleOrganization:
		if rep.AssignedOrgID != nil && *rep.AssignedOrgID == actorID {
			return true
		}
		// The pool of claimable work is visible to every organization.
		return rep.Status == status.ReportSubmitted && rep.AssignedOrgID == nil
	default:
		return rep.CreatorID == actorID
	}
}

// CanReportCreator reports whether the actor may flag the creator of the
// given report as untrustworthy. Admins may always do so; organizations
// only for reports they could view, which keeps the target's identity
// inside what the organization already sees.
func CanReportCreator(actorID primitive.ObjectID, role string, rep *models.Report) bool {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case status.RoleAdmin:
		return true
	case status.RoleOrganization:
		return CanView(actorID, role, rep)
	default:
		return false
	}
}
