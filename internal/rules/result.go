// internal/rules/result.go
package rules

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/solatis/fieldbridge/internal/record"
	"github.com/solatis/fieldbridge/internal/types"
)

/*
 * Result aggregation.
 *
 * RuleResult captures one rule execution; TranslationResult aggregates the
 * ordered list of RuleResults plus pass-through counters supplied by the
 * caller for work outside the engine (e.g. time series transfer).
 *
 * Callers always receive a complete TranslationResult, even on partial
 * failure, so they can decide whether to proceed, retry, or abort
 * downstream steps. Summary() is pure formatting with no effect on the
 * data model.
 */

// RuleResult is the outcome of executing one rule.
type RuleResult struct {
	RuleName  string
	Converted int             // target records produced
	Skipped   int             // source records filtered out or failed
	Success   bool
	Err       error           // nil when Success
	Outputs   []record.Record // produced target records, in source order
}

// TranslationResult is the aggregate outcome of one translation run.
type TranslationResult struct {
	RunID           types.RunID
	TotalRules      int
	SuccessfulRules int
	FailedRules     int
	TotalConverted  int
	Results         []RuleResult // resolved execution order

	// Extras carries pass-through counters for out-of-scope metadata
	// transfer performed by the caller (e.g. "time_series_transferred").
	Extras map[string]int
}

// Success reports whether every rule succeeded.
func (t *TranslationResult) Success() bool { return t.FailedRules == 0 }

// AddExtra records a pass-through counter. Repeated calls accumulate.
func (t *TranslationResult) AddExtra(name string, n int) {
	if t.Extras == nil {
		t.Extras = make(map[string]int)
	}
	t.Extras[name] += n
}

// add folds one rule result into the aggregate.
func (t *TranslationResult) add(res RuleResult) {
	t.Results = append(t.Results, res)
	t.TotalRules++
	t.TotalConverted += res.Converted
	if res.Success {
		t.SuccessfulRules++
	} else {
		t.FailedRules++
	}
}

// Summary renders a human-readable table of per-rule outcomes for quick
// inspection.
func (t *TranslationResult) Summary() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "RULE\tCONVERTED\tSKIPPED\tSUCCESS\tERROR")
	for _, res := range t.Results {
		errMsg := ""
		if res.Err != nil {
			errMsg = res.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%t\t%s\n", res.RuleName, res.Converted, res.Skipped, res.Success, errMsg)
	}
	w.Flush()

	fmt.Fprintf(&b, "\nrules: %d total, %d succeeded, %d failed; records converted: %d\n",
		t.TotalRules, t.SuccessfulRules, t.FailedRules, t.TotalConverted)

	if len(t.Extras) > 0 {
		names := make([]string, 0, len(t.Extras))
		for name := range t.Extras {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "%s: %d\n", name, t.Extras[name])
		}
	}

	return b.String()
}
