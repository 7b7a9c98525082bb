package harness

import (
	"fmt"

	"github.com/openprx/openpr/internal/logging"
)

// failureDetailLimit caps the response excerpt kept for a failed
// check, so one huge payload does not drown the summary.
const failureDetailLimit = 140

// Tally accumulates check outcomes across transports. It is not safe
// for concurrent use; the suite runs sequentially.
type Tally struct {
	Pass int
	Fail int
	Skip int

	// Failures keeps one formatted line per failed check for the
	// end-of-run summary.
	Failures []string

	log *logging.Logger
}

func NewTally(log *logging.Logger) *Tally {
	return &Tally{log: log}
}

// Check evaluates pred against res, records the outcome and prints the
// per-check line. A panicking predicate counts as a failure.
func (t *Tally) Check(transportName, tool string, res any, pred Predicate) bool {
	ok := evaluate(pred, res)
	if ok {
		t.Pass++
		t.log.Success("  ✅ [%s] %s", transportName, tool)
		return true
	}
	t.Fail++
	line := fmt.Sprintf("  ❌ [%s] %s → %s", transportName, tool, excerpt(res))
	t.Failures = append(t.Failures, line)
	t.log.Error("%s", line)
	return false
}

// SkipN records n checks as skipped and prints why once.
func (t *Tally) SkipN(n int, reason string) {
	t.Skip += n
	t.log.Warning("  ⏭️  %s", reason)
}

// PassRate returns the integer pass percentage over executed checks.
// With nothing executed it is zero rather than a division panic.
func (t *Tally) PassRate() int {
	total := t.Pass + t.Fail
	if total == 0 {
		return 0
	}
	return t.Pass * 100 / total
}

// Failed reports whether any check failed.
func (t *Tally) Failed() bool { return t.Fail > 0 }

func evaluate(pred Predicate, res any) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return pred(res)
}

func excerpt(res any) string {
	s := fmt.Sprintf("%v", res)
	runes := []rune(s)
	if len(runes) <= failureDetailLimit {
		return s
	}
	return string(runes[:failureDetailLimit])
}
