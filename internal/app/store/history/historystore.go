// internal/app/store/history/historystore.go
package historystore

import (
	"context"
	"time"

	"github.com/dalemusser/straywatch/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store manages the append-only report transition log. Entries are never
// updated; they are removed only as a cascade of report deletion.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("report_history")}
}

// Append inserts one transition entry. ChangedAt is stamped here when the
// caller left it zero so entries within one transaction stay ordered.
func (s *Store) Append(ctx context.Context, e models.HistoryEntry) (models.HistoryEntry, error) {
	e.ID = primitive.NewObjectID()
	if e.ChangedAt.IsZero() {
		e.ChangedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, e); err != nil {
		return models.HistoryEntry{}, err
	}
	return e, nil
}

// ListByReport returns the report's history in chronological order, the
// order used for replay and verification.
func (s *Store) ListByReport(ctx context.Context, reportID primitive.ObjectID) ([]models.HistoryEntry, error) {
	return s.list(ctx, bson.M{"report_id": reportID}, 1)
}

// ListByReportNewest returns the history most-recent-first, the order used
// for display.
func (s *Store) ListByReportNewest(ctx context.Context, reportID primitive.ObjectID) ([]models.HistoryEntry, error) {
	return s.list(ctx, bson.M{"report_id": reportID}, -1)
}

func (s *Store) list(ctx context.Context, filter bson.M, direction int) ([]models.HistoryEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "changed_at", Value: direction}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var entries []models.HistoryEntry
	if err := cur.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// LatestByReport returns the most recent entry, or ok=false when the
// report has no history.
func (s *Store) LatestByReport(ctx context.Context, reportID primitive.ObjectID) (models.HistoryEntry, bool, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "changed_at", Value: -1}})
	var e models.HistoryEntry
	err := s.c.FindOne(ctx, bson.M{"report_id": reportID}, opts).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return models.HistoryEntry{}, false, nil
	}
	if err != nil {
		return models.HistoryEntry{}, false, err
	}
	return e, true, nil
}

// LatestByReportWithStatus returns the most recent entry that moved the
// report into newStatus. The admin view uses it to show the denial record.
func (s *Store) LatestByReportWithStatus(ctx context.Context, reportID primitive.ObjectID, newStatus string) (models.HistoryEntry, bool, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "changed_at", Value: -1}})
	var e models.HistoryEntry
	err := s.c.FindOne(ctx, bson.M{"report_id": reportID, "new_status": newStatus}, opts).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return models.HistoryEntry{}, false, nil
	}
	if err != nil {
		return models.HistoryEntry{}, false, err
	}
	return e, true, nil
}

// DeleteByReport removes every entry for the report. Only legal as part of
// report deletion, inside the same transaction.
func (s *Store) DeleteByReport(ctx context.Context, reportID primitive.ObjectID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"report_id": reportID})
	return err
}

// EnsureIndexes creates the per-report chronological index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "report_id", Value: 1}, {Key: "changed_at", Value: 1}},
	})
	return err
}
