// internal/app/system/status/status.go

// Package status defines the closed role and status sets used across the
// application. Every transition boundary checks against these constants
// rather than string literals so that adding a state forces each consumer
// to be revisited.
package status

import "strings"

// Roles.
const (
	RoleIndividual   = "individual"
	RoleOrganization = "organization"
	RoleAdmin        = "admin"
)

// Report lifecycle statuses.
const (
	ReportSubmitted = "submitted"
	ReportInReview  = "in_review"
	ReportDenied    = "denied"
	ReportConcluded = "concluded"
)

// Account statuses. Approved is shared by both roles; PendingApproval and
// Rejected apply only to organizations; Banned applies only to individuals
// and doubles as the deactivated marker used by account deletion.
const (
	AccountApproved        = "approved"
	AccountPendingApproval = "pending_approval"
	AccountRejected        = "rejected"
	AccountBanned          = "banned"
)

// IsValidRole reports whether s names a known role, ignoring case and
// surrounding whitespace.
func IsValidRole(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case RoleIndividual, RoleOrganization, RoleAdmin:
		return true
	}
	return false
}

// IsValidReportStatus reports whether s is one of the report lifecycle states.
func IsValidReportStatus(s string) bool {
	switch s {
	case ReportSubmitted, ReportInReview, ReportDenied, ReportConcluded:
		return true
	}
	return false
}

// IsTerminalReportStatus reports whether s admits no further transition
// except the creator contest out of concluded.
func IsTerminalReportStatus(s string) bool {
	return s == ReportDenied || s == ReportConcluded
}

// IsValidAccountStatus reports whether s is a known account status for the
// given role.
func IsValidAccountStatus(role, s string) bool {
	switch role {
	case RoleOrganization:
		return s == AccountPendingApproval || s == AccountApproved || s == AccountRejected
	case RoleIndividual:
		return s == AccountApproved || s == AccountBanned
	case RoleAdmin:
		return s == AccountApproved
	}
	return false
}

// InitialAccountStatus returns the status a freshly registered account
// starts in: individuals are approved immediately, organizations wait for
// administrator approval.
func InitialAccountStatus(role string) string {
	if role == RoleOrganization {
		return AccountPendingApproval
	}
	return AccountApproved
}
