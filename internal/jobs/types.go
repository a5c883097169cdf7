package jobs

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// EnqueueRequest asks the queue for one conversion. The dedupe key
// (typically title|target format) keeps a book from being converted twice
// concurrently.
type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   Payload
}

// Payload carries everything the executor needs to run the conversion.
type Payload struct {
	Title        string `json:"title"`
	SourcePath   string `json:"source_path"`
	SourceFormat string `json:"source_format"`
	TargetFormat string `json:"target_format"`
	DestDir      string `json:"dest_dir"`
}

// ConversionJob is one queued conversion and its lifecycle record.
type ConversionJob struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	DedupeKey   string    `json:"dedupe_key"`
	Payload     Payload   `json:"payload"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	FailureKind string    `json:"failure_kind,omitempty"`
	OutputPath  string    `json:"output_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
