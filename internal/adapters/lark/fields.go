package lark

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mikey/hr-notifier/internal/core"
	"github.com/mikey/hr-notifier/internal/utils"
)

// RawRow is one source row keyed by column or field name
type RawRow map[string]any

// serialEpoch is day zero of spreadsheet serial dates
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// millisThreshold separates serial day numbers from millisecond timestamps
const millisThreshold = 1e11

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-1-2",
	"2006/1/2",
	"2006.01.02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// maxIssueRaw bounds the raw value kept on a field issue
const maxIssueRaw = 64

var errUnrecognizedDate = errors.New("unrecognized date")

type fieldKind int

const (
	textField fieldKind = iota
	emailField
	dateField
	statusField
)

// fieldMapping binds a source field name to the record attribute it fills
type fieldMapping struct {
	name string
	kind fieldKind
	set  func(rec *core.EmployeeRecord, text string, date *time.Time)
}

var fieldMappings = []fieldMapping{
	{core.FieldEmployeeName, textField, func(r *core.EmployeeRecord, s string, _ *time.Time) { r.Name = s }},
	{core.FieldLeaderName, textField, func(r *core.EmployeeRecord, s string, _ *time.Time) { r.LeaderName = s }},
	{core.FieldContractRenewalDate, dateField, func(r *core.EmployeeRecord, _ string, d *time.Time) { r.ContractRenewalDate = d }},
	{core.FieldProbationEndDate, dateField, func(r *core.EmployeeRecord, _ string, d *time.Time) { r.ProbationEndDate = d }},
	{core.FieldEmployeeStatus, statusField, nil},
	{core.FieldLeaderEmail, emailField, func(r *core.EmployeeRecord, s string, _ *time.Time) { r.LeaderEmail = s }},
	{core.FieldLeaderCRM, textField, func(r *core.EmployeeRecord, s string, _ *time.Time) { r.LeaderCRM = s }},
	{core.FieldDepartment, textField, func(r *core.EmployeeRecord, s string, _ *time.Time) { r.Department = s }},
	{core.FieldEmployeeCRM, textField, func(r *core.EmployeeRecord, s string, _ *time.Time) { r.EmployeeCRM = s }},
	{core.FieldSecondLeaderEmail, emailField, func(r *core.EmployeeRecord, s string, _ *time.Time) { r.SecondLeaderEmail = s }},
	{core.FieldExitDate, dateField, func(r *core.EmployeeRecord, _ string, d *time.Time) { r.SeparationDate = d }},
}

// Mapper converts raw source rows into canonical employee records
type Mapper struct {
	text *utils.TextProcessor
	loc  *time.Location
	keys map[string]string
}

// NewMapper creates a new row mapper. Timestamps are converted to dates in loc.
func NewMapper(text *utils.TextProcessor, loc *time.Location) *Mapper {
	if loc == nil {
		loc = time.UTC
	}
	keys := make(map[string]string, len(fieldMappings))
	for _, m := range fieldMappings {
		keys[m.name] = m.name
	}
	return &Mapper{text: text, loc: loc, keys: keys}
}

// Canonical returns the recognized field name for a header, or false.
// Names are case-sensitive; only surrounding and repeated whitespace is ignored.
func (m *Mapper) Canonical(header string) (string, bool) {
	name, ok := m.keys[m.text.Normalize(header)]
	return name, ok
}

// Map decodes a row. Rows without an employee name are reported as not ok.
func (m *Mapper) Map(row RawRow) (core.EmployeeRecord, bool) {
	values := make(map[string]any, len(row))
	for header, v := range row {
		if name, ok := m.Canonical(header); ok {
			values[name] = v
		}
	}

	var rec core.EmployeeRecord
	rec.Status = core.StatusUnknown

	for _, f := range fieldMappings {
		raw, present := values[f.name]
		if !present || raw == nil {
			continue
		}

		switch f.kind {
		case textField:
			f.set(&rec, m.textValue(raw), nil)
		case emailField:
			f.set(&rec, m.emailValue(raw), nil)
		case statusField:
			rec.Status = m.text.ParseStatus(m.textValue(raw))
		case dateField:
			date, err := m.dateValue(raw)
			if err != nil {
				rec.Issues = append(rec.Issues, core.FieldIssue{
					Field:  f.name,
					Raw:    m.text.TruncateText(m.textValue(raw), maxIssueRaw),
					Reason: err.Error(),
				})
				continue
			}
			f.set(&rec, "", date)
		}
	}

	return rec, rec.Name != ""
}

// textValue flattens strings, numbers and rich-text segments
func (m *Mapper) textValue(raw any) string {
	switch v := raw.(type) {
	case string:
		return m.text.Normalize(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case map[string]any:
		for _, key := range []string{"text", "name", "email", "link"} {
			if s, ok := v[key].(string); ok && s != "" {
				return m.text.Normalize(s)
			}
		}
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := m.textValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return m.text.Normalize(strings.Join(parts, " "))
	}
	return ""
}

// emailValue extracts an address from a plain string, a mention or a person field
func (m *Mapper) emailValue(raw any) string {
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if s := m.emailValue(item); s != "" {
				return s
			}
		}
		return ""
	case map[string]any:
		for _, key := range []string{"email", "text", "link"} {
			if s, ok := v[key].(string); ok && s != "" {
				return strings.TrimPrefix(m.text.Normalize(s), "mailto:")
			}
		}
		return ""
	default:
		return strings.TrimPrefix(m.textValue(raw), "mailto:")
	}
}

// dateValue decodes a calendar date. An empty value is a nil date, not an error.
func (m *Mapper) dateValue(raw any) (*time.Time, error) {
	switch v := raw.(type) {
	case float64:
		return m.numericDate(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, errUnrecognizedDate
		}
		return m.numericDate(f)
	case string:
		return m.stringDate(v)
	case []any, map[string]any:
		return m.stringDate(m.textValue(v))
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", errUnrecognizedDate, raw)
	}
}

func (m *Mapper) numericDate(v float64) (*time.Time, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return nil, errUnrecognizedDate
	}
	if v > millisThreshold {
		d := core.CivilDate(time.UnixMilli(int64(v)), m.loc)
		return &d, nil
	}
	d := serialEpoch.AddDate(0, 0, int(math.Floor(v)))
	return &d, nil
}

func (m *Mapper) stringDate(s string) (*time.Time, error) {
	s = m.text.Normalize(s)
	if s == "" || s == "-" {
		return nil, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return m.numericDate(f)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := core.CivilDate(t, nil)
			return &d, nil
		}
	}
	return nil, errUnrecognizedDate
}
