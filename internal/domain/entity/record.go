package entity

import (
	"errors"
	"time"
)

// Status is the lifecycle state of an uploaded media record.
// PROCESSING is the only non-terminal state; a record moves forward
// exactly once, to SAFE or FLAGGED, and never transitions again.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusSafe       Status = "SAFE"
	StatusFlagged    Status = "FLAGGED"
)

func (s Status) Terminal() bool {
	return s == StatusSafe || s == StatusFlagged
}

var ErrRecordNotFound = errors.New("media record not found")

type MediaRecord struct {
	ID            string
	Filename      string
	SourceLocator string
	MimeType      string
	Size          int64
	Status        Status
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewMediaRecord(id, filename, sourceLocator string) *MediaRecord {
	now := time.Now().UTC()
	return &MediaRecord{
		ID:            id,
		Filename:      filename,
		SourceLocator: sourceLocator,
		Status:        StatusProcessing,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
