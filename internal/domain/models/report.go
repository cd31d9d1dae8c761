// internal/domain/models/report.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Report is a filed abandonment incident moving through the lifecycle
// state machine: submitted → in_review → {concluded, denied}, with a
// creator-only contest path from concluded to denied.
//
// AssignedOrgID is nil while the report is submitted and never reverts to
// nil once set. Seq is a monotonically assigned sequence number used only
// to derive the human-facing protocol code; the code string itself is
// never persisted.
type Report struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Seq           int64               `bson:"seq" json:"-"`
	Description   string              `bson:"description" json:"description"`
	Category      string              `bson:"category" json:"category"`
	Location      string              `bson:"location" json:"location"`
	Latitude      float64             `bson:"latitude" json:"latitude"`
	Longitude     float64             `bson:"longitude" json:"longitude"`
	Status        string              `bson:"status" json:"status"`
	CreatorID     primitive.ObjectID  `bson:"creator_id" json:"creator_id"`
	AssignedOrgID *primitive.ObjectID `bson:"assigned_org_id,omitempty" json:"assigned_org_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HistoryEntry is one immutable audit record of a report status change.
// PriorStatus is nil only for the creation entry. Entries are append-only
// and removed solely as a cascade of report deletion.
type HistoryEntry struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReportID    primitive.ObjectID `bson:"report_id" json:"report_id"`
	PriorStatus *string            `bson:"prior_status,omitempty" json:"prior_status,omitempty"`
	NewStatus   string             `bson:"new_status" json:"new_status"`
	Observation string             `bson:"observation,omitempty" json:"observation,omitempty"`
	ChangedAt   time.Time          `bson:"changed_at" json:"changed_at"`
}

// Media attachment kinds.
const (
	MediaKindImage = "image"
	MediaKindVideo = "video"
)

// Media is an attachment created atomically with its report at submission
// time and deleted only as a cascade of report deletion. FileName is the
// stored-file reference handed out by the blob store.
type Media struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReportID   primitive.ObjectID `bson:"report_id" json:"report_id"`
	FileName   string             `bson:"file_name" json:"file_name"`
	Kind       string             `bson:"kind" json:"kind"` // image | video
	UploadedAt time.Time          `bson:"uploaded_at" json:"uploaded_at"`
}
