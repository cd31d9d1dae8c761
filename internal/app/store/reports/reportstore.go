// internal/app/store/reports/reportstore.go
package reportstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/straywatch/internal/app/system/status"
	"github.com/dalemusser/straywatch/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound = errors.New("report not found")

	// ErrPrecondition signals a conditional write whose filter no longer
	// matched: another actor's transition committed first, or the caller's
	// view of the report is stale.
	ErrPrecondition = errors.New("report state changed")
)

type Store struct {
	c        *mongo.Collection
	counters *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:        db.Collection("reports"),
		counters: db.Collection("counters"),
	}
}

// NextSeq atomically allocates the next report sequence number, the source
// of the human-facing protocol code.
func (s *Store) NextSeq(ctx context.Context) (int64, error) {
	update := bson.M{"$inc": bson.M{"seq": int64(1)}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	if err := s.counters.FindOneAndUpdate(ctx, bson.M{"_id": "reports"}, update, opts).Decode(&doc); err != nil {
		return 0, err
	}
	return doc.Seq, nil
}

// Insert stores a new report. The caller must have set Seq, status, and
// creator; timestamps are stamped here.
func (s *Store) Insert(ctx context.Context, r models.Report) (models.Report, error) {
	now := time.Now().UTC()
	r.ID = primitive.NewObjectID()
	if r.Status == "" {
		r.Status = status.ReportSubmitted
	}
	r.CreatedAt = now
	r.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, r); err != nil {
		return models.Report{}, err
	}
	return r, nil
}

// GetByID loads a report by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Report, error) {
	var r models.Report
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Report{}, ErrNotFound
		}
		return models.Report{}, err
	}
	return r, nil
}

// Claim assigns the report to orgID iff it is still submitted and
// unassigned — the compare-and-set that arbitrates between competing
// organizations. A losing claim returns ErrPrecondition.
func (s *Store) Claim(ctx context.Context, id, orgID primitive.ObjectID) (models.Report, error) {
	filter := bson.M{
		"_id":             id,
		"status":          status.ReportSubmitted,
		"assigned_org_id": nil,
	}
	update := bson.M{"$set": bson.M{
		"status":          status.ReportInReview,
		"assigned_org_id": orgID,
		"updated_at":      time.Now().UTC(),
	}}
	return s.conditionalUpdate(ctx, id, filter, update)
}

// Resolve moves an in-review report claimed by orgID to its terminal
// status (concluded or denied).
func (s *Store) Resolve(ctx context.Context, id, orgID primitive.ObjectID, toStatus string) (models.Report, error) {
	filter := bson.M{
		"_id":             id,
		"status":          status.ReportInReview,
		"assigned_org_id": orgID,
	}
	update := bson.M{"$set": bson.M{
		"status":     toStatus,
		"updated_at": time.Now().UTC(),
	}}
	return s.conditionalUpdate(ctx, id, filter, update)
}

// Contest moves a concluded report back to denied, conditioned on the
// caller still being its creator and the status still being concluded.
func (s *Store) Contest(ctx context.Context, id, creatorID primitive.ObjectID) (models.Report, error) {
	filter := bson.M{
		"_id":        id,
		"status":     status.ReportConcluded,
		"creator_id": creatorID,
	}
	update := bson.M{"$set": bson.M{
		"status":     status.ReportDenied,
		"updated_at": time.Now().UTC(),
	}}
	return s.conditionalUpdate(ctx, id, filter, update)
}

func (s *Store) conditionalUpdate(ctx context.Context, id primitive.ObjectID, filter, update bson.M) (models.Report, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var r models.Report
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&r); err != nil {
		if err == mongo.ErrNoDocuments {
			// The document may exist with a different state; tell the two
			// apart so callers can report conflict vs not-found.
			if _, getErr := s.GetByID(ctx, id); getErr == nil {
				return models.Report{}, ErrPrecondition
			}
			return models.Report{}, ErrNotFound
		}
		return models.Report{}, err
	}
	return r, nil
}

// DeleteSubmitted removes the report iff it is still submitted. Media and
// history cascades are the workflow's responsibility, inside the same
// transaction.
func (s *Store) DeleteSubmitted(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "status": status.ReportSubmitted})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		if _, getErr := s.GetByID(ctx, id); getErr == nil {
			return ErrPrecondition
		}
		return ErrNotFound
	}
	return nil
}

// ListByCreator returns the creator's reports, newest first.
func (s *Store) ListByCreator(ctx context.Context, creatorID primitive.ObjectID) ([]models.Report, error) {
	return s.find(ctx, bson.M{"creator_id": creatorID})
}

// ListForOrganization returns the reports an organization can see:
// everything assigned to it plus the unassigned submitted pool, newest
// first.
func (s *Store) ListForOrganization(ctx context.Context, orgID primitive.ObjectID) ([]models.Report, error) {
	return s.find(ctx, bson.M{"$or": bson.A{
		bson.M{"assigned_org_id": orgID},
		bson.M{"status": status.ReportSubmitted, "assigned_org_id": nil},
	}})
}

// ListByStatus returns all reports in the given status, newest first.
func (s *Store) ListByStatus(ctx context.Context, reportStatus string) ([]models.Report, error) {
	return s.find(ctx, bson.M{"status": reportStatus})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Report, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var reports []models.Report
	if err := cur.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// CountByCreator returns how many reports the user has filed. Drives the
// deletion policy's retention decision.
func (s *Store) CountByCreator(ctx context.Context, creatorID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"creator_id": creatorID})
}

// EnsureIndexes creates the listing and claim-path indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "creator_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "assigned_org_id", Value: 1}}},
	})
	return err
}
