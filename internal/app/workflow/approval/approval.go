// Package approval implements the organization approval workflow: a
// newly registered organization waits in pending_approval until an
// administrator approves or rejects it.
//
// The decision notification email is strictly best-effort: delivery
// failures are logged and never roll back or fail the transition.
package approval

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	userstore "github.com/dalemusser/straywatch/internal/app/store/users"
	"github.com/dalemusser/straywatch/internal/app/system/faults"
	"github.com/dalemusser/straywatch/internal/app/system/mailer"
	"github.com/dalemusser/straywatch/internal/app/system/status"
	"github.com/dalemusser/straywatch/internal/domain/models"
)

// ErrUnderReview signals a login attempt by an organization whose
// registration is pending or was rejected. The login handler shows the
// same under-review message for both so the rejection is not probeable.
var ErrUnderReview = errors.New("registration is under review")

// UserStore is the account surface the workflow needs.
type UserStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
	SetStatusFrom(ctx context.Context, id primitive.ObjectID, from, to string) (models.User, error)
	ListByRoleAndStatus(ctx context.Context, role, accountStatus string) ([]models.User, error)
}

// Notifier delivers registration decision messages post-transition.
type Notifier interface {
	OrgApproved(ctx context.Context, u models.User)
	OrgRejected(ctx context.Context, u models.User, reason string)
}

// Service implements the approval operations.
type Service struct {
	users    UserStore
	notifier Notifier
	log      *zap.Logger
}

// New creates an approval workflow service.
func New(users UserStore, notifier Notifier, log *zap.Logger) *Service {
	return &Service{users: users, notifier: notifier, log: log}
}

// Approve moves a pending organization to approved and sends the
// notification email.
func (s *Service) Approve(ctx context.Context, orgID primitive.ObjectID) (models.User, error) {
	org, err := s.target(ctx, orgID)
	if err != nil {
		return models.User{}, err
	}
	switch org.Status {
	case status.AccountApproved:
		return models.User{}, faults.Conflict("organization is already approved")
	case status.AccountRejected:
		return models.User{}, faults.Conflict("organization registration was rejected")
	}

	updated, err := s.users.SetStatusFrom(ctx, orgID, status.AccountPendingApproval, status.AccountApproved)
	if errors.Is(err, userstore.ErrStatusChanged) {
		return models.User{}, faults.Conflict("organization is no longer pending approval")
	}
	if err != nil {
		return models.User{}, faults.Internal(err)
	}

	s.log.Info("organization approved", zap.String("org_id", orgID.Hex()))
	if s.notifier != nil {
		s.notifier.OrgApproved(ctx, updated)
	}
	return updated, nil
}

// Reject moves a pending organization to rejected, recording the
// administrator's reason in the notification email. The reason is
// required. Rejection is terminal; a rejected organization must
// register again.
func (s *Service) Reject(ctx context.Context, orgID primitive.ObjectID, reason string) (models.User, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.User{}, faults.Validation("a rejection reason is required")
	}

	org, err := s.target(ctx, orgID)
	if err != nil {
		return models.User{}, err
	}
	switch org.Status {
	case status.AccountApproved:
		return models.User{}, faults.Conflict("organization is already approved")
	case status.AccountRejected:
		return models.User{}, faults.Conflict("organization registration was already rejected")
	}

	updated, err := s.users.SetStatusFrom(ctx, orgID, status.AccountPendingApproval, status.AccountRejected)
	if errors.Is(err, userstore.ErrStatusChanged) {
		return models.User{}, faults.Conflict("organization is no longer pending approval")
	}
	if err != nil {
		return models.User{}, faults.Internal(err)
	}

	s.log.Info("organization rejected",
		zap.String("org_id", orgID.Hex()),
		zap.String("reason", reason))
	if s.notifier != nil {
		s.notifier.OrgRejected(ctx, updated, reason)
	}
	return updated, nil
}

// ListPending returns organizations awaiting a decision, newest first.
func (s *Service) ListPending(ctx context.Context) ([]models.User, error) {
	orgs, err := s.users.ListByRoleAndStatus(ctx, status.RoleOrganization, status.AccountPendingApproval)
	if err != nil {
		return nil, faults.Internal(err)
	}
	return orgs, nil
}

// CanAuthenticate reports whether the account's standing permits a
// login. Organizations that are pending or rejected are refused with
// ErrUnderReview. Banned individuals may still sign in; their write
// operations are gated elsewhere.
func CanAuthenticate(u models.User) error {
	if u.Role != status.RoleOrganization {
		return nil
	}
	if u.Status == status.AccountPendingApproval || u.Status == status.AccountRejected {
		return ErrUnderReview
	}
	return nil
}

func (s *Service) target(ctx context.Context, orgID primitive.ObjectID) (models.User, error) {
	org, err := s.users.GetByID(ctx, orgID)
	if errors.Is(err, userstore.ErrNotFound) {
		return models.User{}, faults.NotFound("organization not found")
	}
	if err != nil {
		return models.User{}, faults.Internal(err)
	}
	if org.Role != status.RoleOrganization {
		return models.User{}, faults.Conflict("account is not an organization")
	}
	return org, nil
}

// MailNotifier sends decision emails through the SMTP mailer. Failures
// are logged and swallowed.
type MailNotifier struct {
	mail     *mailer.Mailer
	siteName string
	log      *zap.Logger
}

// NewMailNotifier creates a MailNotifier.
func NewMailNotifier(mail *mailer.Mailer, siteName string, log *zap.Logger) *MailNotifier {
	return &MailNotifier{mail: mail, siteName: siteName, log: log}
}

// OrgApproved sends the approval notification.
func (n *MailNotifier) OrgApproved(ctx context.Context, u models.User) {
	e := mailer.BuildOrgApprovedEmail(mailer.ApprovalEmailData{
		SiteName: n.siteName,
		OrgName:  u.FullName,
	})
	e.To = u.Email
	if err := n.mail.Send(e); err != nil {
		n.log.Warn("approval email failed", zap.String("org_id", u.ID.Hex()), zap.Error(err))
	}
}

// OrgRejected sends the rejection notification with the reason.
func (n *MailNotifier) OrgRejected(ctx context.Context, u models.User, reason string) {
	e := mailer.BuildOrgRejectedEmail(mailer.ApprovalEmailData{
		SiteName: n.siteName,
		OrgName:  u.FullName,
		Reason:   reason,
	})
	e.To = u.Email
	if err := n.mail.Send(e); err != nil {
		n.log.Warn("rejection email failed", zap.String("org_id", u.ID.Hex()), zap.Error(err))
	}
}
