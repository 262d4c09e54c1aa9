package core

import (
	"fmt"
	"time"
)

// SkipReason classifies why a record did not produce output
type SkipReason string

const (
	SkipInactiveStatus        SkipReason = "inactive_status"
	SkipMalformedDate         SkipReason = "malformed_date"
	SkipMissingLeaderEmail    SkipReason = "missing_leader_email"
	SkipMissingSeparationDate SkipReason = "missing_separation_date"
)

// SkipDiagnostic explains one skipped record
type SkipDiagnostic struct {
	Employee string         `json:"employee"`
	Type     EvaluationType `json:"type,omitempty"`
	Reason   SkipReason     `json:"reason"`
	Err      error          `json:"-"`
}

// DueResult is the output of ComputeDue
type DueResult struct {
	Due     []EvaluationDue
	Skipped []SkipDiagnostic
}

// SeparatedResult is the output of ComputeSeparated
type SeparatedResult struct {
	Employees []EmployeeRecord
	Skipped   []SkipDiagnostic
}

// ComputeDue returns the evaluations whose date falls inside window days from today.
// Records are never rejected with an error; unusable ones are reported in Skipped.
func ComputeDue(records []EmployeeRecord, today time.Time, window Window) DueResult {
	today = CivilDate(today, nil)
	var result DueResult

	for _, rec := range records {
		if rec.Status.IsInactive() {
			result.Skipped = append(result.Skipped, SkipDiagnostic{
				Employee: rec.Name,
				Reason:   SkipInactiveStatus,
			})
			continue
		}

		for _, t := range EvaluationTypes {
			date := rec.DateFor(t)
			if date == nil {
				if rec.HasIssue(FieldFor(t)) {
					result.Skipped = append(result.Skipped, SkipDiagnostic{
						Employee: rec.Name,
						Type:     t,
						Reason:   SkipMalformedDate,
						Err:      fmt.Errorf("%s: %w", FieldFor(t), ErrEligibilityData),
					})
				}
				continue
			}

			days := DaysBetween(today, *date)
			if !window.Contains(days) {
				continue
			}

			result.Due = append(result.Due, EvaluationDue{
				Employee:      rec,
				Type:          t,
				DueDate:       CivilDate(*date, nil),
				DaysRemaining: days,
			})
		}
	}

	return result
}

// ComputeSeparated returns separated or terminated employees whose exit date is inside r.
// A missing exit date means the exit is not confirmed yet; such records are skipped.
func ComputeSeparated(records []EmployeeRecord, r DateRange) SeparatedResult {
	var result SeparatedResult

	for _, rec := range records {
		if !rec.Status.IsInactive() {
			continue
		}
		if rec.SeparationDate == nil {
			diag := SkipDiagnostic{Employee: rec.Name, Reason: SkipMissingSeparationDate}
			if rec.HasIssue(FieldExitDate) {
				diag.Reason = SkipMalformedDate
				diag.Err = fmt.Errorf("%s: %w", FieldExitDate, ErrEligibilityData)
			}
			result.Skipped = append(result.Skipped, diag)
			continue
		}
		if r.Contains(*rec.SeparationDate) {
			result.Employees = append(result.Employees, rec)
		}
	}

	return result
}
