package routing

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Table resolves department CC addresses for reminder batches
type Table struct {
	departments map[string][]string
	constant    string
	logger      *zap.Logger
}

// NewTable creates a new routing table
func NewTable(departmentCC map[string][]string, constantCC string, logger *zap.Logger) *Table {
	// Normalize department codes (uppercase, trimmed)
	normalized := make(map[string][]string, len(departmentCC))
	for dept, addrs := range departmentCC {
		key := normalizeDepartment(dept)
		for _, addr := range addrs {
			addr = strings.TrimSpace(addr)
			if addr == "" {
				continue
			}
			normalized[key] = append(normalized[key], addr)
		}
	}

	if len(normalized) > 0 && logger != nil {
		logger.Info("Initialized CC routing table",
			zap.Int("departments", len(normalized)),
			zap.String("constant_cc", constantCC))
	}

	return &Table{
		departments: normalized,
		constant:    strings.TrimSpace(constantCC),
		logger:      logger,
	}
}

// CCFor returns the department CC list followed by the constant address
func (t *Table) CCFor(department string) []string {
	addrs := t.departments[normalizeDepartment(department)]

	cc := make([]string, 0, len(addrs)+1)
	cc = append(cc, addrs...)
	if t.constant != "" {
		cc = append(cc, t.constant)
	}

	if len(addrs) == 0 && department != "" && t.logger != nil {
		t.logger.Debug("No department CC configured",
			zap.String("department", department))
	}

	return cc
}

// Departments returns the configured department codes
func (t *Table) Departments() []string {
	out := make([]string, 0, len(t.departments))
	for dept := range t.departments {
		out = append(out, dept)
	}
	sort.Strings(out)
	return out
}

func normalizeDepartment(dept string) string {
	return strings.ToUpper(strings.TrimSpace(dept))
}
