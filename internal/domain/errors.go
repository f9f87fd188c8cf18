package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Candidate errors
	ErrParseRejected    = errors.New("candidate has unusable date or amount")
	ErrDuplicate        = errors.New("entry already exists")
	ErrNonTransactional = errors.New("description matches a non-transactional pattern")

	// Reconciliation errors
	ErrReconcileFailed = errors.New("update of existing external-id row failed")

	// Storage errors
	ErrNotFound    = errors.New("entry not found")
	ErrWriteFailed = errors.New("storage error during bulk insert")

	// Settlement errors
	ErrAmbiguousPayer = errors.New("payer inference tied across participants")
	ErrUnknownParty   = errors.New("no shared entries for participant")
)
