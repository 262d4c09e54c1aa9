package core

import (
	"context"
	"time"
)

// PreviewRow shows how one record is interpreted on a given day
type PreviewRow struct {
	Name               string           `json:"name"`
	LeaderName         string           `json:"leader"`
	LeaderEmail        string           `json:"leader_email"`
	Department         string           `json:"department"`
	Status             EmploymentStatus `json:"status"`
	ProbationEnd       string           `json:"probation_end_parsed,omitempty"`
	ProbationDaysUntil *int             `json:"probation_days_until,omitempty"`
	ContractRenewal    string           `json:"contract_renewal_parsed,omitempty"`
	ContractDaysUntil  *int             `json:"contract_renewal_days_until,omitempty"`
	SeparationDate     string           `json:"separation_date,omitempty"`
	Eligible           []EvaluationType `json:"eligible,omitempty"`
	Issues             []FieldIssue     `json:"issues,omitempty"`
}

// BuildPreview interprets every record against today and the window
func BuildPreview(records []EmployeeRecord, today time.Time, window Window) []PreviewRow {
	today = CivilDate(today, nil)
	due := ComputeDue(records, today, window)

	eligible := make(map[string][]EvaluationType)
	for _, d := range due.Due {
		eligible[d.Employee.Name] = append(eligible[d.Employee.Name], d.Type)
	}

	rows := make([]PreviewRow, 0, len(records))
	for _, rec := range records {
		row := PreviewRow{
			Name:        rec.Name,
			LeaderName:  rec.LeaderName,
			LeaderEmail: rec.LeaderEmail,
			Department:  rec.Department,
			Status:      rec.Status,
			Eligible:    eligible[rec.Name],
			Issues:      rec.Issues,
		}
		if rec.ProbationEndDate != nil {
			days := DaysBetween(today, *rec.ProbationEndDate)
			row.ProbationEnd = rec.ProbationEndDate.Format(DateLayout)
			row.ProbationDaysUntil = &days
		}
		if rec.ContractRenewalDate != nil {
			days := DaysBetween(today, *rec.ContractRenewalDate)
			row.ContractRenewal = rec.ContractRenewalDate.Format(DateLayout)
			row.ContractDaysUntil = &days
		}
		if rec.SeparationDate != nil {
			row.SeparationDate = rec.SeparationDate.Format(DateLayout)
		}
		rows = append(rows, row)
	}
	return rows
}

// Preview fetches the records and interprets them for today
func (s *ReminderService) Preview(ctx context.Context) ([]PreviewRow, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}
	return BuildPreview(records, s.Today(), s.opts.Window), nil
}
