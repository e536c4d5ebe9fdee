package batch

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fleveque/heliassets/internal/model"
)

// Result collects one Outcome per input item, in input order.
type Result struct {
	Job      string
	Outcomes []model.Outcome
	Duration time.Duration
}

// Total is the number of items the run was given.
func (r *Result) Total() int { return len(r.Outcomes) }

// Succeeded counts successes plus skips (an existing file is a usable result).
func (r *Result) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			n++
		}
	}
	return n
}

// Count returns how many outcomes have the given status.
func (r *Result) Count(status model.Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// FailedIDs lists the IDs of failed items in input order.
func (r *Result) FailedIDs() []string {
	var ids []string
	for _, o := range r.Outcomes {
		if o.Status == model.StatusFailure {
			ids = append(ids, o.ItemID)
		}
	}
	return ids
}

// BytesWritten sums the sizes of files written in this run (skips excluded).
func (r *Result) BytesWritten() int64 {
	var n int64
	for _, o := range r.Outcomes {
		if o.Status == model.StatusSuccess {
			n += o.Bytes
		}
	}
	return n
}

// WriteSummary prints the end-of-run lines:
//
//	Result: 18/20 succeeded
//	Failed: h215, as532
func (r *Result) WriteSummary(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Result: %d/%d succeeded\n", r.Succeeded(), r.Total()); err != nil {
		return err
	}
	if failed := r.FailedIDs(); len(failed) > 0 {
		if _, err := fmt.Fprintf(w, "Failed: %s\n", strings.Join(failed, ", ")); err != nil {
			return err
		}
	}
	return nil
}
