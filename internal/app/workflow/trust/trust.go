// Package trust implements the creator trust workflow: an organization
// (or administrator) flags the creator of a report it handles, moving
// the account to banned standing, and an administrator later confirms
// or reverts the ban.
//
// A banned individual keeps read access to their own reports; only
// submission and profile mutation are gated on the banned status.
package trust

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/dalemusser/straywatch/internal/app/policy/reportpolicy"
	reportstore "github.com/dalemusser/straywatch/internal/app/store/reports"
	userstore "github.com/dalemusser/straywatch/internal/app/store/users"
	"github.com/dalemusser/straywatch/internal/app/system/faults"
	"github.com/dalemusser/straywatch/internal/app/system/status"
	"github.com/dalemusser/straywatch/internal/domain/models"
)

// Actor identifies who is performing an operation.
type Actor struct {
	ID   primitive.ObjectID
	Role string
}

// UserStore is the account surface the workflow needs.
type UserStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
	SetStatusFrom(ctx context.Context, id primitive.ObjectID, from, to string) (models.User, error)
	ListByRoleAndStatus(ctx context.Context, role, accountStatus string) ([]models.User, error)
}

// ReportStore supplies the report a flag arrives through and the
// flagged creator's filing history for administrator review.
type ReportStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Report, error)
	ListByCreator(ctx context.Context, creatorID primitive.ObjectID) ([]models.Report, error)
}

// Service implements the trust operations.
type Service struct {
	users   UserStore
	reports ReportStore
	log     *zap.Logger
}

// New creates a trust workflow service.
func New(users UserStore, reports ReportStore, log *zap.Logger) *Service {
	return &Service{users: users, reports: reports, log: log}
}

// ReportCreator flags the creator of the given report as
// untrustworthy, moving the account to banned standing pending
// administrator review. The actor must be able to see the report;
// anyone else gets not-found.
func (s *Service) ReportCreator(ctx context.Context, actor Actor, reportID primitive.ObjectID, reason string) (models.User, error) {
	if strings.TrimSpace(reason) == "" {
		return models.User{}, faults.Validation("a reason for flagging the creator is required")
	}

	rep, err := s.reports.GetByID(ctx, reportID)
	if errors.Is(err, reportstore.ErrNotFound) {
		return models.User{}, faults.NotFound("report not found")
	}
	if err != nil {
		return models.User{}, faults.Internal(err)
	}
	if !reportpolicy.CanReportCreator(actor.ID, actor.Role, &rep) {
		return models.User{}, faults.NotFound("report not found")
	}

	creator, err := s.users.GetByID(ctx, rep.CreatorID)
	if errors.Is(err, userstore.ErrNotFound) {
		return models.User{}, faults.NotFound("report creator no longer exists")
	}
	if err != nil {
		return models.User{}, faults.Internal(err)
	}
	if creator.Role != status.RoleIndividual {
		return models.User{}, faults.Conflict("only individual creators can be flagged")
	}
	if creator.Status == status.AccountBanned {
		return models.User{}, faults.Conflict("creator is already flagged")
	}

	updated, err := s.users.SetStatusFrom(ctx, creator.ID, status.AccountApproved, status.AccountBanned)
	if errors.Is(err, userstore.ErrStatusChanged) {
		return models.User{}, faults.Conflict("creator is already flagged")
	}
	if err != nil {
		return models.User{}, faults.Internal(err)
	}

	s.log.Info("creator flagged",
		zap.String("target_id", creator.ID.Hex()),
		zap.String("report_id", reportID.Hex()),
		zap.String("actor_id", actor.ID.Hex()))
	return updated, nil
}

// ConfirmBan upholds a flagged creator's ban. The operation is
// idempotent on a banned account: the standing stays banned and the
// current record is returned.
func (s *Service) ConfirmBan(ctx context.Context, targetID primitive.ObjectID) (models.User, error) {
	target, err := s.bannedIndividual(ctx, targetID)
	if err != nil {
		return models.User{}, err
	}
	s.log.Info("ban confirmed", zap.String("target_id", targetID.Hex()))
	return target, nil
}

// RevertBan lifts a flagged creator's ban, restoring approved standing.
func (s *Service) RevertBan(ctx context.Context, targetID primitive.ObjectID) (models.User, error) {
	if _, err := s.bannedIndividual(ctx, targetID); err != nil {
		return models.User{}, err
	}

	updated, err := s.users.SetStatusFrom(ctx, targetID, status.AccountBanned, status.AccountApproved)
	if errors.Is(err, userstore.ErrStatusChanged) {
		return models.User{}, faults.Conflict("user is not flagged")
	}
	if err != nil {
		return models.User{}, faults.Internal(err)
	}

	s.log.Info("ban reverted", zap.String("target_id", targetID.Hex()))
	return updated, nil
}

// FlaggedUser pairs a banned creator with their filing history so an
// administrator can judge the flag.
type FlaggedUser struct {
	User    models.User
	Reports []models.Report
}

// ListFlagged returns banned individuals awaiting administrator review,
// newest first, each with the reports they filed.
func (s *Service) ListFlagged(ctx context.Context) ([]FlaggedUser, error) {
	users, err := s.users.ListByRoleAndStatus(ctx, status.RoleIndividual, status.AccountBanned)
	if err != nil {
		return nil, faults.Internal(err)
	}
	out := make([]FlaggedUser, 0, len(users))
	for _, u := range users {
		reps, err := s.reports.ListByCreator(ctx, u.ID)
		if err != nil {
			return nil, faults.Internal(err)
		}
		out = append(out, FlaggedUser{User: u, Reports: reps})
	}
	return out, nil
}

func (s *Service) bannedIndividual(ctx context.Context, targetID primitive.ObjectID) (models.User, error) {
	target, err := s.users.GetByID(ctx, targetID)
	if errors.Is(err, userstore.ErrNotFound) {
		return models.User{}, faults.NotFound("user not found")
	}
	if err != nil {
		return models.User{}, faults.Internal(err)
	}
	if target.Role != status.RoleIndividual {
		return models.User{}, faults.Conflict("account is not an individual")
	}
	if target.Status != status.AccountBanned {
		return models.User{}, faults.Conflict("user is not flagged")
	}
	return target, nil
}
