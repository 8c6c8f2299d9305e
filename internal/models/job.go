package models

import (
	"time"
)

// Job lifecycle states persisted in Postgres. Completed and failed are
// terminal; nothing transitions a job out of them automatically.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job represents one source video to be turned into one short clip.
// A job row is never deleted; it doubles as the audit record.
type Job struct {
	ID             string    `json:"id"`
	SourceFileRef  string    `json:"source_file_ref"`
	SourceFileName string    `json:"source_file_name,omitempty"`
	Status         string    `json:"status"`
	Error          *string   `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Segment is one timestamped span of recognized speech. Start and End are
// seconds from the beginning of the source video, Start < End.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Highlight is a scored time range proposed as the basis for the short.
type Highlight struct {
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Reason string  `json:"reason"`
}
