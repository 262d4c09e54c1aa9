package core

import (
	"strings"
	"time"
)

// EmploymentStatus represents the HR status of an employee
type EmploymentStatus string

const (
	StatusActive     EmploymentStatus = "Active"
	StatusProbation  EmploymentStatus = "Probation"
	StatusSeparated  EmploymentStatus = "Separated"
	StatusTerminated EmploymentStatus = "Terminated"
	StatusUnknown    EmploymentStatus = "Unknown"
)

// IsInactive reports whether the employee has left the company
func (s EmploymentStatus) IsInactive() bool {
	return s == StatusSeparated || s == StatusTerminated
}

// EvaluationType is the kind of notification a ledger entry guards
type EvaluationType string

const (
	EvaluationProbation       EvaluationType = "Probation"
	EvaluationContractRenewal EvaluationType = "ContractRenewal"

	// NotificationSeparation keys vendor notices in the ledger. It is never
	// produced by the eligibility engine.
	NotificationSeparation EvaluationType = "Separation"
)

// EvaluationTypes lists the reminder categories in the order they are evaluated
var EvaluationTypes = []EvaluationType{EvaluationProbation, EvaluationContractRenewal}

// DisplayName returns the human readable label used in emails
func (t EvaluationType) DisplayName() string {
	switch t {
	case EvaluationProbation:
		return "Probation Period Evaluation"
	case EvaluationContractRenewal:
		return "Contract Renewal Evaluation"
	case NotificationSeparation:
		return "Employee Separation"
	default:
		return string(t)
	}
}

// Field names recognized by the record source
const (
	FieldEmployeeName        = "Employee Name"
	FieldLeaderName          = "Leader Name"
	FieldContractRenewalDate = "Contract Renewal Date"
	FieldProbationEndDate    = "Probation Period End Date"
	FieldEmployeeStatus      = "Employee Status"
	FieldLeaderEmail         = "Leader Email"
	FieldLeaderCRM           = "Leader CRM"
	FieldDepartment          = "Department"
	FieldEmployeeCRM         = "Employee CRM"
	FieldSecondLeaderEmail   = "Second Leader Email"
	FieldExitDate            = "Exit Date"
)

// FieldIssue records a raw value the source adapter could not decode
type FieldIssue struct {
	Field  string `json:"field"`
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
}

// EmployeeRecord is the canonical form of one row of HR data
type EmployeeRecord struct {
	Name                string           `json:"name"`
	LeaderName          string           `json:"leader_name,omitempty"`
	SecondLeaderEmail   string           `json:"second_leader_email,omitempty"`
	LeaderEmail         string           `json:"leader_email"`
	LeaderCRM           string           `json:"leader_crm,omitempty"`
	Department          string           `json:"department"`
	EmployeeCRM         string           `json:"employee_crm,omitempty"`
	ProbationEndDate    *time.Time       `json:"probation_end_date,omitempty"`
	ContractRenewalDate *time.Time       `json:"contract_renewal_date,omitempty"`
	Status              EmploymentStatus `json:"status"`
	SeparationDate      *time.Time       `json:"separation_date,omitempty"`
	Issues              []FieldIssue     `json:"issues,omitempty"`
}

// DateFor returns the date relevant to the given evaluation type
func (r *EmployeeRecord) DateFor(t EvaluationType) *time.Time {
	switch t {
	case EvaluationProbation:
		return r.ProbationEndDate
	case EvaluationContractRenewal:
		return r.ContractRenewalDate
	default:
		return nil
	}
}

// FieldFor returns the source field name holding the date for t
func FieldFor(t EvaluationType) string {
	switch t {
	case EvaluationProbation:
		return FieldProbationEndDate
	case EvaluationContractRenewal:
		return FieldContractRenewalDate
	default:
		return ""
	}
}

// HasIssue reports whether the adapter failed to decode the named field
func (r *EmployeeRecord) HasIssue(field string) bool {
	for _, issue := range r.Issues {
		if issue.Field == field {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the record
func (r EmployeeRecord) Clone() EmployeeRecord {
	out := r
	out.ProbationEndDate = cloneTime(r.ProbationEndDate)
	out.ContractRenewalDate = cloneTime(r.ContractRenewalDate)
	out.SeparationDate = cloneTime(r.SeparationDate)
	if r.Issues != nil {
		out.Issues = append([]FieldIssue(nil), r.Issues...)
	}
	return out
}

// CloneRecords deep copies a record slice
func CloneRecords(records []EmployeeRecord) []EmployeeRecord {
	if records == nil {
		return nil
	}
	out := make([]EmployeeRecord, len(records))
	for i := range records {
		out[i] = records[i].Clone()
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// EvaluationDue is an employee whose evaluation falls inside the lookahead window
type EvaluationDue struct {
	Employee      EmployeeRecord `json:"employee"`
	Type          EvaluationType `json:"type"`
	DueDate       time.Time      `json:"due_date"`
	DaysRemaining int            `json:"days_remaining"`
}

// EmailBatch is one reminder email covering one or more employees
type EmailBatch struct {
	LeaderEmail string          `json:"leader_email"`
	Type        EvaluationType  `json:"type"`
	Department  string          `json:"department"`
	Entries     []EvaluationDue `json:"entries"`
	To          []string        `json:"to"`
	CC          []string        `json:"cc"`
}

// LeaderName returns the first non-empty leader name among the entries
func (b *EmailBatch) LeaderName() string {
	for _, e := range b.Entries {
		if name := strings.TrimSpace(e.Employee.LeaderName); name != "" {
			return name
		}
	}
	return ""
}

// SeparationNotice is the vendor email listing separated employees
type SeparationNotice struct {
	To        string           `json:"to"`
	CC        []string         `json:"cc"`
	Employees []EmployeeRecord `json:"employees"`
	Range     DateRange        `json:"range"`
}

// SendKey identifies one guarded send
type SendKey struct {
	EmployeeName   string
	LeaderEmail    string
	EvaluationType EvaluationType
	SentDate       time.Time
}

// NewSendKey builds a key for the given calendar day
func NewSendKey(employeeName, leaderEmail string, t EvaluationType, day time.Time) SendKey {
	return SendKey{
		EmployeeName:   employeeName,
		LeaderEmail:    leaderEmail,
		EvaluationType: t,
		SentDate:       CivilDate(day, time.UTC),
	}
}

// SentEmailRecord is a persisted ledger entry
type SentEmailRecord struct {
	EmployeeName   string         `json:"employee_name"`
	LeaderEmail    string         `json:"leader_email"`
	EvaluationType EvaluationType `json:"evaluation_type"`
	SentDate       time.Time      `json:"sent_date"`
	SentAt         time.Time      `json:"sent_at"`
}

// Key returns the uniqueness key of the record
func (r SentEmailRecord) Key() SendKey {
	return NewSendKey(r.EmployeeName, r.LeaderEmail, r.EvaluationType, r.SentDate)
}

// BackendKind tags the ledger backend chosen at startup
type BackendKind string

const (
	BackendRelational  BackendKind = "relational"
	BackendFile        BackendKind = "file"
	BackendUnavailable BackendKind = "unavailable"
)

// RunSummary aggregates the outcome of one pipeline run
type RunSummary struct {
	RunID            string         `json:"run_id"`
	Date             string         `json:"date"`
	Sent             int            `json:"sent"`
	SkippedDuplicate int            `json:"skipped_duplicate"`
	Failed           int            `json:"failed"`
	Dropped          int            `json:"dropped"`
	DryRun           bool           `json:"dry_run,omitempty"`
	Backend          BackendKind    `json:"backend"`
	SkipReasons      map[string]int `json:"skip_reasons,omitempty"`
}

// SentSummary lists ledger entries for one day
type SentSummary struct {
	Date    string            `json:"today_date"`
	Total   int               `json:"total_today"`
	Entries []SentEmailRecord `json:"today_emails"`
}
