// Package reportflow drives the abandonment report lifecycle: intake,
// claiming by an organization, resolution, contesting, and deletion.
//
// Every mutation runs inside the transaction runner so the report row,
// its history entry, and its media move together. Authorization is
// merged with existence: actors who cannot see a report get the same
// not-found answer as for a report that does not exist.
package reportflow

import (
	"context"
	"errors"
	"math"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/dalemusser/straywatch/internal/app/policy/reportpolicy"
	reportstore "github.com/dalemusser/straywatch/internal/app/store/reports"
	"github.com/dalemusser/straywatch/internal/app/system/faults"
	"github.com/dalemusser/straywatch/internal/app/system/htmlsanitize"
	"github.com/dalemusser/straywatch/internal/app/system/protocol"
	"github.com/dalemusser/straywatch/internal/app/system/status"
	"github.com/dalemusser/straywatch/internal/app/system/txn"
	"github.com/dalemusser/straywatch/internal/domain/models"
)

// Actor identifies who is performing an operation.
type Actor struct {
	ID            primitive.ObjectID
	Role          string
	AccountStatus string
}

// ReportStore is the report persistence surface the workflow needs.
type ReportStore interface {
	NextSeq(ctx context.Context) (int64, error)
	Insert(ctx context.Context, r models.Report) (models.Report, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Report, error)
	Claim(ctx context.Context, id, orgID primitive.ObjectID) (models.Report, error)
	Resolve(ctx context.Context, id, orgID primitive.ObjectID, toStatus string) (models.Report, error)
	Contest(ctx context.Context, id, creatorID primitive.ObjectID) (models.Report, error)
	DeleteSubmitted(ctx context.Context, id primitive.ObjectID) error
	ListByCreator(ctx context.Context, creatorID primitive.ObjectID) ([]models.Report, error)
	ListForOrganization(ctx context.Context, orgID primitive.ObjectID) ([]models.Report, error)
	ListByStatus(ctx context.Context, reportStatus string) ([]models.Report, error)
}

// HistoryStore records report status transitions.
type HistoryStore interface {
	Append(ctx context.Context, e models.HistoryEntry) (models.HistoryEntry, error)
	ListByReport(ctx context.Context, reportID primitive.ObjectID) ([]models.HistoryEntry, error)
	DeleteByReport(ctx context.Context, reportID primitive.ObjectID) error
}

// MediaStore holds report attachments.
type MediaStore interface {
	InsertMany(ctx context.Context, media []models.Media) ([]models.Media, error)
	ListByReport(ctx context.Context, reportID primitive.ObjectID) ([]models.Media, error)
	DeleteByReport(ctx context.Context, reportID primitive.ObjectID) error
}

// Service implements the report lifecycle operations.
type Service struct {
	reports ReportStore
	history HistoryStore
	media   MediaStore
	tx      txn.Runner
	log     *zap.Logger
}

// New creates a report workflow service.
func New(reports ReportStore, history HistoryStore, media MediaStore, tx txn.Runner, log *zap.Logger) *Service {
	return &Service{reports: reports, history: history, media: media, tx: tx, log: log}
}

// MediaInput describes one uploaded attachment.
type MediaInput struct {
	FileName    string
	ContentType string
}

// SubmitInput carries a new report.
type SubmitInput struct {
	Description string
	Category    string
	Location    string
	Latitude    float64
	Longitude   float64
	Media       []MediaInput
}

// View is a report with its protocol code, history, and attachments.
type View struct {
	Report   models.Report
	Protocol string
	History  []models.HistoryEntry
	Media    []models.Media
}

func view(rep models.Report) View {
	return View{Report: rep, Protocol: protocol.Report(rep.Seq)}
}

func mediaKind(contentType string) string {
	if strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return models.MediaKindImage
	}
	return models.MediaKindVideo
}

// Submit files a new report for the acting individual or organization.
// Banned creators are refused; administrators do not file reports.
func (s *Service) Submit(ctx context.Context, actor Actor, in SubmitInput) (View, error) {
	if actor.Role != status.RoleIndividual && actor.Role != status.RoleOrganization {
		return View{}, faults.Authorization("actor lacks the individual or organization role required to file")
	}
	if actor.AccountStatus == status.AccountBanned {
		return View{}, faults.Authorization("banned accounts cannot submit reports")
	}
	desc := strings.TrimSpace(htmlsanitize.PlainText(in.Description))
	if desc == "" {
		return View{}, faults.Validation("description is required")
	}
	loc := strings.TrimSpace(in.Location)
	if loc == "" {
		return View{}, faults.Validation("location is required")
	}
	if (in.Latitude == 0 && in.Longitude == 0) || math.IsNaN(in.Latitude) || math.IsNaN(in.Longitude) {
		return View{}, faults.Validation("a coordinate pair is required")
	}

	var created models.Report
	var created2 []models.Media
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		seq, err := s.reports.NextSeq(ctx)
		if err != nil {
			return err
		}
		rep, err := s.reports.Insert(ctx, models.Report{
			Seq:         seq,
			Description: desc,
			Category:    strings.TrimSpace(in.Category),
			Location:    loc,
			Latitude:    in.Latitude,
			Longitude:   in.Longitude,
			Status:      status.ReportSubmitted,
			CreatorID:   actor.ID,
		})
		if err != nil {
			return err
		}
		if _, err := s.history.Append(ctx, models.HistoryEntry{
			ReportID:    rep.ID,
			NewStatus:   status.ReportSubmitted,
			Observation: "report submitted",
		}); err != nil {
			return err
		}
		items := make([]models.Media, 0, len(in.Media))
		for _, m := range in.Media {
			items = append(items, models.Media{
				ReportID: rep.ID,
				FileName: m.FileName,
				Kind:     mediaKind(m.ContentType),
			})
		}
		if created2, err = s.media.InsertMany(ctx, items); err != nil {
			return err
		}
		created = rep
		return nil
	})
	if err != nil {
		return View{}, faults.Internal(err)
	}

	s.log.Info("report submitted",
		zap.String("report_id", created.ID.Hex()),
		zap.String("protocol", protocol.Report(created.Seq)),
		zap.String("creator_id", actor.ID.Hex()))

	v := view(created)
	v.Media = created2
	return v, nil
}

// Claim moves a submitted, unassigned report into review under the
// acting organization. Exactly one of several concurrent claimants
// wins; the rest get a conflict.
func (s *Service) Claim(ctx context.Context, actor Actor, reportID primitive.ObjectID) (View, error) {
	if actor.Role != status.RoleOrganization {
		return View{}, faults.Authorization("only organizations can claim reports")
	}

	var claimed models.Report
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		rep, err := s.reports.Claim(ctx, reportID, actor.ID)
		if err != nil {
			return err
		}
		prior := status.ReportSubmitted
		if _, err := s.history.Append(ctx, models.HistoryEntry{
			ReportID:    rep.ID,
			PriorStatus: &prior,
			NewStatus:   status.ReportInReview,
			Observation: "claimed by organization",
		}); err != nil {
			return err
		}
		claimed = rep
		return nil
	})
	switch {
	case errors.Is(err, reportstore.ErrNotFound):
		return View{}, faults.NotFound("report not found")
	case errors.Is(err, reportstore.ErrPrecondition):
		return View{}, faults.Conflict("report already claimed or resolved")
	case err != nil:
		return View{}, faults.Internal(err)
	}

	s.log.Info("report claimed",
		zap.String("report_id", claimed.ID.Hex()),
		zap.String("org_id", actor.ID.Hex()))
	return view(claimed), nil
}

// Conclude marks an in-review report as concluded by its assigned
// organization. An observation describing the resolution is required.
func (s *Service) Conclude(ctx context.Context, actor Actor, reportID primitive.ObjectID, observation string) (View, error) {
	if strings.TrimSpace(observation) == "" {
		return View{}, faults.Validation("an observation describing the resolution is required")
	}
	return s.resolve(ctx, actor, reportID, status.ReportConcluded, observation)
}

// Deny marks an in-review report as denied by its assigned
// organization. An observation explaining the denial is required.
func (s *Service) Deny(ctx context.Context, actor Actor, reportID primitive.ObjectID, observation string) (View, error) {
	if strings.TrimSpace(observation) == "" {
		return View{}, faults.Validation("an observation explaining the denial is required")
	}
	return s.resolve(ctx, actor, reportID, status.ReportDenied, observation)
}

func (s *Service) resolve(ctx context.Context, actor Actor, reportID primitive.ObjectID, toStatus, observation string) (View, error) {
	if actor.Role != status.RoleOrganization {
		return View{}, faults.Authorization("only the handling organization can resolve a report")
	}
	observation = strings.TrimSpace(htmlsanitize.PlainText(observation))

	var resolved models.Report
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		rep, err := s.reports.Resolve(ctx, reportID, actor.ID, toStatus)
		if err != nil {
			return err
		}
		prior := status.ReportInReview
		if _, err := s.history.Append(ctx, models.HistoryEntry{
			ReportID:    rep.ID,
			PriorStatus: &prior,
			NewStatus:   toStatus,
			Observation: observation,
		}); err != nil {
			return err
		}
		resolved = rep
		return nil
	})
	switch {
	case errors.Is(err, reportstore.ErrNotFound):
		return View{}, faults.NotFound("report not found")
	case errors.Is(err, reportstore.ErrPrecondition):
		return View{}, s.resolveConflict(ctx, actor, reportID)
	case err != nil:
		return View{}, faults.Internal(err)
	}

	s.log.Info("report resolved",
		zap.String("report_id", resolved.ID.Hex()),
		zap.String("status", toStatus),
		zap.String("org_id", actor.ID.Hex()))
	return view(resolved), nil
}

// resolveConflict distinguishes "not yours" from "wrong status" after a
// conditional resolve matched nothing.
func (s *Service) resolveConflict(ctx context.Context, actor Actor, reportID primitive.ObjectID) error {
	rep, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return faults.Conflict("report is not in review")
	}
	if rep.AssignedOrgID == nil || *rep.AssignedOrgID != actor.ID {
		return faults.Authorization("report is handled by another organization")
	}
	return faults.Conflict("report is not in review")
}

// Contest lets the creator dispute a concluded report, reopening it as
// denied so an administrator reviews the outcome.
func (s *Service) Contest(ctx context.Context, actor Actor, reportID primitive.ObjectID, observation string) (View, error) {
	observation = strings.TrimSpace(htmlsanitize.PlainText(observation))
	if observation == "" {
		return View{}, faults.Validation("an observation explaining the contest is required")
	}

	var contested models.Report
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		rep, err := s.reports.Contest(ctx, reportID, actor.ID)
		if err != nil {
			return err
		}
		prior := status.ReportConcluded
		if _, err := s.history.Append(ctx, models.HistoryEntry{
			ReportID:    rep.ID,
			PriorStatus: &prior,
			NewStatus:   status.ReportDenied,
			Observation: observation,
		}); err != nil {
			return err
		}
		contested = rep
		return nil
	})
	switch {
	case errors.Is(err, reportstore.ErrNotFound):
		// Non-creators land here too; do not reveal the report exists.
		return View{}, faults.NotFound("report not found")
	case errors.Is(err, reportstore.ErrPrecondition):
		return View{}, faults.Conflict("only a concluded report can be contested")
	case err != nil:
		return View{}, faults.Internal(err)
	}

	s.log.Info("report contested",
		zap.String("report_id", contested.ID.Hex()),
		zap.String("creator_id", actor.ID.Hex()))
	return view(contested), nil
}

// Delete removes the creator's own report while it is still submitted
// and unclaimed, together with its history and media.
func (s *Service) Delete(ctx context.Context, actor Actor, reportID primitive.ObjectID) error {
	rep, err := s.reports.GetByID(ctx, reportID)
	if errors.Is(err, reportstore.ErrNotFound) {
		return faults.NotFound("report not found")
	}
	if err != nil {
		return faults.Internal(err)
	}
	if rep.CreatorID != actor.ID && actor.Role != status.RoleAdmin {
		return faults.NotFound("report not found")
	}
	if rep.Status != status.ReportSubmitted || rep.AssignedOrgID != nil {
		return faults.Conflict("only an unclaimed submitted report can be deleted")
	}

	err = s.tx.Within(ctx, func(ctx context.Context) error {
		if err := s.reports.DeleteSubmitted(ctx, reportID); err != nil {
			return err
		}
		if err := s.history.DeleteByReport(ctx, reportID); err != nil {
			return err
		}
		return s.media.DeleteByReport(ctx, reportID)
	})
	switch {
	case errors.Is(err, reportstore.ErrPrecondition):
		return faults.Conflict("only an unclaimed submitted report can be deleted")
	case errors.Is(err, reportstore.ErrNotFound):
		return faults.NotFound("report not found")
	case err != nil:
		return faults.Internal(err)
	}

	s.log.Info("report deleted",
		zap.String("report_id", reportID.Hex()),
		zap.String("actor_id", actor.ID.Hex()))
	return nil
}

// Get returns one report with history and media, if the actor may see it.
func (s *Service) Get(ctx context.Context, actor Actor, reportID primitive.ObjectID) (View, error) {
	rep, err := s.reports.GetByID(ctx, reportID)
	if errors.Is(err, reportstore.ErrNotFound) {
		return View{}, faults.NotFound("report not found")
	}
	if err != nil {
		return View{}, faults.Internal(err)
	}
	if !reportpolicy.CanView(actor.ID, actor.Role, &rep) {
		return View{}, faults.NotFound("report not found")
	}

	v := view(rep)
	if v.History, err = s.history.ListByReport(ctx, rep.ID); err != nil {
		return View{}, faults.Internal(err)
	}
	if v.Media, err = s.media.ListByReport(ctx, rep.ID); err != nil {
		return View{}, faults.Internal(err)
	}
	return v, nil
}

// ListOwn returns the actor's reports, newest first.
func (s *Service) ListOwn(ctx context.Context, actor Actor) ([]View, error) {
	reps, err := s.reports.ListByCreator(ctx, actor.ID)
	if err != nil {
		return nil, faults.Internal(err)
	}
	return views(reps), nil
}

// ListForOrganization returns the acting organization's workload: the
// reports it has claimed merged with the still-unassigned pool, newest
// first.
func (s *Service) ListForOrganization(ctx context.Context, actor Actor) ([]View, error) {
	if actor.Role != status.RoleOrganization {
		return nil, faults.Authorization("only organizations have a report workload")
	}
	reps, err := s.reports.ListForOrganization(ctx, actor.ID)
	if err != nil {
		return nil, faults.Internal(err)
	}
	return views(reps), nil
}

// ListConcluded returns concluded reports carrying map coordinates,
// newest first. The feed is public.
func (s *Service) ListConcluded(ctx context.Context) ([]View, error) {
	reps, err := s.reports.ListByStatus(ctx, status.ReportConcluded)
	if err != nil {
		return nil, faults.Internal(err)
	}
	mapped := reps[:0]
	for _, rep := range reps {
		if rep.Latitude != 0 || rep.Longitude != 0 {
			mapped = append(mapped, rep)
		}
	}
	return views(mapped), nil
}

// ListDenied returns denied reports for administrator review, newest
// first, each with the denial record from its history.
func (s *Service) ListDenied(ctx context.Context, actor Actor) ([]View, error) {
	if actor.Role != status.RoleAdmin {
		return nil, faults.Authorization("administrator access required")
	}
	reps, err := s.reports.ListByStatus(ctx, status.ReportDenied)
	if err != nil {
		return nil, faults.Internal(err)
	}
	out := make([]View, 0, len(reps))
	for _, rep := range reps {
		v := view(rep)
		if v.History, err = s.history.ListByReport(ctx, rep.ID); err != nil {
			return nil, faults.Internal(err)
		}
		out = append(out, v)
	}
	return out, nil
}

func views(reps []models.Report) []View {
	out := make([]View, 0, len(reps))
	for _, rep := range reps {
		out = append(out, view(rep))
	}
	return out
}
