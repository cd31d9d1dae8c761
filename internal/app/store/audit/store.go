// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryAuth  = "auth"
	CategoryAdmin = "admin"
)

// Auth event types
const (
	EventLoginSuccess        = "login_success"
	EventLoginFailed         = "login_failed"
	EventLoginBlockedPending = "login_blocked_pending_approval"
	EventLoginBlockedBanned  = "login_blocked_banned"
	EventLogout              = "logout"
	EventRegistered          = "registered"
)

// Admin/governance event types
const (
	EventOrgApproved        = "org_approved"
	EventOrgRejected        = "org_rejected"
	EventUserBanned         = "user_banned"
	EventBanConfirmed       = "ban_confirmed"
	EventBanReverted        = "ban_reverted"
	EventAccountDeactivated = "account_deactivated"
	EventAccountDeleted     = "account_deleted"
)

// Event records one governance or authentication occurrence. This is a
// side channel against accounts; report transitions carry their own
// history log and never appear here.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Timestamp time.Time          `bson:"timestamp"`

	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	// Who
	SubjectID *primitive.ObjectID `bson:"subject_id,omitempty"` // affected account
	ActorID   *primitive.ObjectID `bson:"actor_id,omitempty"`   // who performed the action

	// Context
	IP string `bson:"ip,omitempty"`

	// Outcome
	Success       bool   `bson:"success"`
	FailureReason string `bson:"failure_reason,omitempty"`

	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter narrows an audit query.
type QueryFilter struct {
	SubjectID *primitive.ObjectID
	Category  string
	EventType string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int64
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// Insert appends one event. Timestamp is stamped when zero.
func (s *Store) Insert(ctx context.Context, e Event) error {
	e.ID = primitive.NewObjectID()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, e)
	return err
}

// Query returns events matching the filter, newest first.
func (s *Store) Query(ctx context.Context, f QueryFilter) ([]Event, error) {
	filter := bson.M{}
	if f.SubjectID != nil {
		filter["subject_id"] = *f.SubjectID
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.EventType != "" {
		filter["event_type"] = f.EventType
	}
	if f.StartTime != nil || f.EndTime != nil {
		ts := bson.M{}
		if f.StartTime != nil {
			ts["$gte"] = *f.StartTime
		}
		if f.EndTime != nil {
			ts["$lte"] = *f.EndTime
		}
		filter["timestamp"] = ts
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var events []Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// EnsureIndexes creates the query indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "subject_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "event_type", Value: 1}, {Key: "timestamp", Value: -1}}},
	})
	return err
}
