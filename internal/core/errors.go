package core

import "errors"

var (
	// ErrSourceFetch is returned when the record source is unreachable or returns a malformed payload
	ErrSourceFetch = errors.New("record source fetch failed")
	// ErrEligibilityData marks a record with an unparseable date. It only appears in diagnostics.
	ErrEligibilityData = errors.New("eligibility data invalid")
	// ErrRouting marks a due employee without a leader email. It only appears in diagnostics.
	ErrRouting = errors.New("cannot route notification")
	// ErrDuplicateConflict is a ledger uniqueness collision; ledgers treat it as success
	ErrDuplicateConflict = errors.New("ledger entry already exists")
	// ErrPersistenceUnavailable is returned when no ledger backend can persist a send
	ErrPersistenceUnavailable = errors.New("ledger persistence unavailable")
	// ErrDispatch is returned when an email could not be transmitted
	ErrDispatch = errors.New("email dispatch failed")
	// ErrInvalidDateRange is returned for a range whose start is after its end
	ErrInvalidDateRange = errors.New("invalid date range")
)
