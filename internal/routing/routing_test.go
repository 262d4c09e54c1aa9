package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestTable() *Table {
	return NewTable(map[string][]string{
		"CC":  {"cc-leads@example.com"},
		"GCC": {"cc-leads@example.com"},
		"ACC": {"acc-leads@example.com"},
		"EA":  {"ea-leads@example.com", "ops-hr@example.com"},
		"cm ": {"cm-leads@example.com", " ops-hr@example.com", ""},
	}, "hr-team@example.com", zap.NewNop())
}

func TestCCFor_ConfiguredDepartment(t *testing.T) {
	table := newTestTable()

	assert.Equal(t,
		[]string{"ea-leads@example.com", "ops-hr@example.com", "hr-team@example.com"},
		table.CCFor("EA"))
}

func TestCCFor_NormalizesDepartmentAndAddresses(t *testing.T) {
	table := newTestTable()

	assert.Equal(t,
		[]string{"cm-leads@example.com", "ops-hr@example.com", "hr-team@example.com"},
		table.CCFor("  Cm"))
}

func TestCCFor_UnknownDepartmentGetsConstantOnly(t *testing.T) {
	table := newTestTable()

	assert.Equal(t, []string{"hr-team@example.com"}, table.CCFor("Finance"))
	assert.Equal(t, []string{"hr-team@example.com"}, table.CCFor(""))
}

func TestCCFor_SharedRoutesAreIdentical(t *testing.T) {
	table := newTestTable()

	assert.Equal(t, table.CCFor("CC"), table.CCFor("GCC"))
}

func TestCCFor_ReturnsFreshSlice(t *testing.T) {
	table := newTestTable()

	first := table.CCFor("ACC")
	first[0] = "mutated@example.com"

	assert.Equal(t, "acc-leads@example.com", table.CCFor("ACC")[0])
}

func TestCCFor_NoConstant(t *testing.T) {
	table := NewTable(map[string][]string{"EA": {"ea@example.com"}}, "", nil)

	assert.Equal(t, []string{"ea@example.com"}, table.CCFor("ea"))
	assert.Empty(t, table.CCFor("other"))
}

func TestDepartments_Sorted(t *testing.T) {
	assert.Equal(t, []string{"ACC", "CC", "CM", "EA", "GCC"}, newTestTable().Departments())
}
