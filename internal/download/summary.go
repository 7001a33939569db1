package download

import (
	"cmp"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/handiism/tubealbum/internal/model"
)

// Failure describes one failed item.
type Failure struct {
	Ref    model.ItemRef
	Stage  model.Stage
	Reason string
}

// Summary aggregates the outcomes of a run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int

	// Cancelled counts failed items that failed because of cancellation.
	Cancelled int

	// Failures lists failed items in playlist order.
	Failures []Failure

	Outcomes []model.ItemOutcome
	Elapsed  time.Duration

	// PlaylistPath is set when a playlist file was written.
	PlaylistPath string

	// RunID identifies the run in the history database, if recorded.
	RunID string
}

// NewSummary counts outcomes.
func NewSummary(outcomes []model.ItemOutcome) Summary {
	s := Summary{
		Total:     len(outcomes),
		Succeeded: lo.CountBy(outcomes, func(o model.ItemOutcome) bool { return o.Succeeded() }),
		Cancelled: lo.CountBy(outcomes, func(o model.ItemOutcome) bool { return o.Cancelled() }),
		Outcomes:  outcomes,
	}
	s.Failed = s.Total - s.Succeeded
	s.Failures = lo.FilterMap(outcomes, func(o model.ItemOutcome, _ int) (Failure, bool) {
		return Failure{Ref: o.Ref, Stage: o.Stage, Reason: o.Reason()}, !o.Succeeded()
	})
	slices.SortStableFunc(s.Failures, func(a, b Failure) int {
		return cmp.Compare(a.Ref.Index, b.Ref.Index)
	})
	return s
}

// AllFailed reports whether there were items and none of them succeeded.
func (s Summary) AllFailed() bool {
	return s.Total > 0 && s.Succeeded == 0
}

// Interrupted reports whether any item was cut short by cancellation.
func (s Summary) Interrupted() bool {
	return s.Cancelled > 0
}
