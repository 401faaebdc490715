package models

import (
	"time"

	"github.com/google/uuid"
)

// Submission is one user's in-flight photo waiting for a location choice.
// It lives only inside that user's conversation session.
type Submission struct {
	ID       uuid.UUID
	FileID   string
	Filename string
	TakenAt  time.Time
}

// Record is one completed submission as written to the ledger.
type Record struct {
	Filename string
	Group    string
	Code     string
	Taken    time.Time
}
