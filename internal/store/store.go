package store

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

// JobRecord is one submitted extraction job remembered on device, so an
// interrupted upload can be resumed by re-polling its job_id.
type JobRecord struct {
	JobID       string
	SessionID   string
	FileName    string
	Status      string // pending | ready | failed | cancelled
	ItemsCount  int
	CreatedAt   time.Time
	CompletedAt *time.Time
}
