package model

import "io"

// UploadStatus is the lifecycle state of a tracked upload.
type UploadStatus string

const (
	StatusUploading UploadStatus = "uploading"
	StatusCompleted UploadStatus = "completed"
	StatusError     UploadStatus = "error"
)

// FileDescriptor describes a candidate file handed over by a drop/select event.
// Open is optional; transports that move real bytes need it.
type FileDescriptor struct {
	Name         string                        `json:"name"`
	SizeBytes    int64                         `json:"size_bytes"`
	DeclaredType string                        `json:"declared_type"`
	Open         func() (io.ReadCloser, error) `json:"-"`
}

// UploadedFile is one entry of the ingestion queue.
// Name, SizeBytes and DeclaredType are captured at admission and never change.
type UploadedFile struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	SizeBytes    int64        `json:"size_bytes"`
	DeclaredType string       `json:"declared_type"`
	Progress     int          `json:"progress"`
	Status       UploadStatus `json:"status"`
}

// RejectReason explains why a candidate file was not admitted.
type RejectReason string

const (
	ReasonUnsupportedType RejectReason = "unsupportedType"
	ReasonTooLarge        RejectReason = "tooLarge"
)

// ValidationOutcome is the per-file result of the upload validator.
type ValidationOutcome struct {
	Accepted bool         `json:"accepted"`
	Reason   RejectReason `json:"reason,omitempty"`
}

// Accept is the outcome for an admissible file.
func Accept() ValidationOutcome {
	return ValidationOutcome{Accepted: true}
}

// Reject is the outcome for a file that must not enter the queue.
func Reject(reason RejectReason) ValidationOutcome {
	return ValidationOutcome{Accepted: false, Reason: reason}
}
