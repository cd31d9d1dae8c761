// Package accountflow implements self-service account operations:
// profile updates and account deletion under the retention policy.
//
// Deletion is policy-driven: an account whose reports are still on
// record is deactivated instead of removed, so report provenance stays
// intact. Only a report-free account is hard-deleted.
package accountflow

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	userstore "github.com/dalemusser/straywatch/internal/app/store/users"
	"github.com/dalemusser/straywatch/internal/app/system/faults"
	"github.com/dalemusser/straywatch/internal/app/system/htmlsanitize"
	"github.com/dalemusser/straywatch/internal/app/system/status"
	"github.com/dalemusser/straywatch/internal/app/system/txn"
	"github.com/dalemusser/straywatch/internal/domain/models"
)

// UserStore is the account surface the workflow needs.
type UserStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, fullName, phone, address string) (models.User, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, newStatus string) (models.User, error)
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
}

// ReportCounter reports how many reports an account has filed.
type ReportCounter interface {
	CountByCreator(ctx context.Context, creatorID primitive.ObjectID) (int64, error)
}

// Service implements the account operations.
type Service struct {
	users   UserStore
	reports ReportCounter
	tx      txn.Runner
	log     *zap.Logger
}

// New creates an account workflow service.
func New(users UserStore, reports ReportCounter, tx txn.Runner, log *zap.Logger) *Service {
	return &Service{users: users, reports: reports, tx: tx, log: log}
}

// ProfileInput carries the editable profile fields. Empty fields are
// left unchanged.
type ProfileInput struct {
	FullName string
	Phone    string
	Address  string
}

// UpdateProfile edits the caller's own profile. Banned accounts are
// refused; their data is frozen while the flag is under review.
func (s *Service) UpdateProfile(ctx context.Context, userID primitive.ObjectID, in ProfileInput) (models.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, userstore.ErrNotFound) {
		return models.User{}, faults.NotFound("account not found")
	}
	if err != nil {
		return models.User{}, faults.Internal(err)
	}
	if u.Status == status.AccountBanned {
		return models.User{}, faults.Authorization("banned accounts cannot update their profile")
	}

	fullName := strings.TrimSpace(htmlsanitize.PlainText(in.FullName))
	phone := strings.TrimSpace(htmlsanitize.PlainText(in.Phone))
	address := strings.TrimSpace(htmlsanitize.PlainText(in.Address))
	if fullName == "" && phone == "" && address == "" {
		return models.User{}, faults.Validation("nothing to update")
	}

	updated, err := s.users.UpdateProfile(ctx, userID, fullName, phone, address)
	if errors.Is(err, userstore.ErrNotFound) {
		return models.User{}, faults.NotFound("account not found")
	}
	if err != nil {
		return models.User{}, faults.Internal(err)
	}

	s.log.Info("profile updated", zap.String("user_id", userID.Hex()))
	return updated, nil
}

// DeleteResult reports what account deletion actually did.
type DeleteResult struct {
	// Deleted is true when the record was removed; false when the
	// account was deactivated because reports reference it.
	Deleted     bool  `json:"deleted"`
	ReportCount int64 `json:"report_count"`
}

// DeleteAccount removes or deactivates the caller's own account. When
// the account has filed reports the record is kept and deactivated so
// the reports keep a valid creator; otherwise it is removed outright.
func (s *Service) DeleteAccount(ctx context.Context, userID primitive.ObjectID) (DeleteResult, error) {
	if _, err := s.users.GetByID(ctx, userID); errors.Is(err, userstore.ErrNotFound) {
		return DeleteResult{}, faults.NotFound("account not found")
	} else if err != nil {
		return DeleteResult{}, faults.Internal(err)
	}

	var res DeleteResult
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		count, err := s.reports.CountByCreator(ctx, userID)
		if err != nil {
			return err
		}
		res.ReportCount = count
		if count > 0 {
			// Banned standing doubles as the deactivation marker: the
			// account can no longer submit or mutate anything.
			if _, err := s.users.SetStatus(ctx, userID, status.AccountBanned); err != nil {
				return err
			}
			res.Deleted = false
			return nil
		}
		deleted, err := s.users.Delete(ctx, userID)
		if err != nil {
			return err
		}
		res.Deleted = deleted > 0
		return nil
	})
	if err != nil {
		return DeleteResult{}, faults.Internal(err)
	}

	s.log.Info("account deletion handled",
		zap.String("user_id", userID.Hex()),
		zap.Bool("deleted", res.Deleted),
		zap.Int64("report_count", res.ReportCount))
	return res, nil
}
