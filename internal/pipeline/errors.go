package pipeline

import "errors"

var (
	// ErrAlreadyInFlight rejects a second submission for a record whose
	// pipeline run has not reached a terminal status yet.
	ErrAlreadyInFlight = errors.New("record already has an analysis run in flight")

	// ErrAlreadyTerminal rejects re-submission of a record that already
	// carries a terminal status; there is no transition out of SAFE/FLAGGED.
	ErrAlreadyTerminal = errors.New("record already in a terminal status")

	ErrEmptyRecordID = errors.New("record id must not be empty")

	ErrPipelineClosed = errors.New("pipeline is shut down")
)
