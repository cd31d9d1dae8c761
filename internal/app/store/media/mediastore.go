// internal/app/store/media/mediastore.go
package mediastore

import (
	"context"
	"time"

	"github.com/dalemusser/straywatch/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("report_media")}
}

// InsertMany stores the attachments created with a report. No-op for an
// empty slice so submissions without media stay a single-document write.
func (s *Store) InsertMany(ctx context.Context, media []models.Media) ([]models.Media, error) {
	if len(media) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	docs := make([]interface{}, len(media))
	for i := range media {
		media[i].ID = primitive.NewObjectID()
		if media[i].UploadedAt.IsZero() {
			media[i].UploadedAt = now
		}
		docs[i] = media[i]
	}
	if _, err := s.c.InsertMany(ctx, docs); err != nil {
		return nil, err
	}
	return media, nil
}

// ListByReport returns the report's attachments in upload order.
func (s *Store) ListByReport(ctx context.Context, reportID primitive.ObjectID) ([]models.Media, error) {
	cur, err := s.c.Find(ctx, bson.M{"report_id": reportID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var media []models.Media
	if err := cur.All(ctx, &media); err != nil {
		return nil, err
	}
	return media, nil
}

// DeleteByReport removes every attachment record for the report, as a
// cascade of report deletion.
func (s *Store) DeleteByReport(ctx context.Context, reportID primitive.ObjectID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"report_id": reportID})
	return err
}

// EnsureIndexes creates the per-report index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "report_id", Value: 1}},
	})
	return err
}
