package core

import (
	"fmt"
	"strings"
)

// GroupResult is the output of GroupDue
type GroupResult struct {
	Batches []EmailBatch
	Skipped []SkipDiagnostic
}

type batchKey struct {
	leader string
	typ    EvaluationType
	route  string
}

// GroupDue partitions due evaluations into one batch per (leader email, evaluation type).
// Departments are only split into separate batches when their CC routing differs.
// Batches appear in the order their first entry appears, entries keep their input order.
func GroupDue(due []EvaluationDue, routes CCRouter) GroupResult {
	var result GroupResult
	index := make(map[batchKey]int)

	for _, d := range due {
		leader := strings.TrimSpace(d.Employee.LeaderEmail)
		if leader == "" {
			result.Skipped = append(result.Skipped, SkipDiagnostic{
				Employee: d.Employee.Name,
				Type:     d.Type,
				Reason:   SkipMissingLeaderEmail,
				Err:      fmt.Errorf("%s: %w", d.Employee.Name, ErrRouting),
			})
			continue
		}

		cc := routes.CCFor(d.Employee.Department)
		key := batchKey{
			leader: strings.ToLower(leader),
			typ:    d.Type,
			route:  strings.Join(cc, ","),
		}

		i, ok := index[key]
		if !ok {
			result.Batches = append(result.Batches, EmailBatch{
				LeaderEmail: leader,
				Type:        d.Type,
				Department:  d.Employee.Department,
				To:          []string{leader},
				CC:          dedupe(cc),
			})
			i = len(result.Batches) - 1
			index[key] = i
		}

		batch := &result.Batches[i]
		batch.Entries = append(batch.Entries, d)
		if second := strings.TrimSpace(d.Employee.SecondLeaderEmail); second != "" && !containsFold(batch.To, second) {
			batch.To = append(batch.To, second)
		}
	}

	return result
}

func dedupe(addrs []string) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" || containsFold(out, a) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
