package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/handiism/tubealbum/internal/model"
	"github.com/handiism/tubealbum/internal/pipeline"
	"github.com/handiism/tubealbum/internal/pipeline/pipelinetest"
)

// countingRunner fails ids in fail and tracks peak concurrency.
type countingRunner struct {
	fail  map[string]bool
	delay time.Duration

	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (r *countingRunner) Run(ctx context.Context, ref model.ItemRef, _ model.AlbumContext) model.ItemOutcome {
	r.calls.Add(1)
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		peak := r.peak.Load()
		if n <= peak || r.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if r.delay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(r.delay):
		}
	}
	if r.fail[ref.ID] {
		return model.ItemOutcome{Ref: ref, Status: model.StatusFailed, Stage: model.StageFetch, Err: errors.New("boom")}
	}
	return model.ItemOutcome{Ref: ref, Status: model.StatusSuccess, Path: ref.ID + ".mp3"}
}

func outcomeSet(outcomes []model.ItemOutcome) []string {
	set := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		set = append(set, fmt.Sprintf("%s/%s/%s", o.Ref.ID, o.Status, o.Stage))
	}
	sort.Strings(set)
	return set
}

func TestRunAll_CardinalityAndCapIndependence(t *testing.T) {
	refs := pipelinetest.Refs("a", "b", "c", "d", "e", "f", "g")
	var baseline []string

	for _, concurrency := range []int{1, 2, 3, 7, 32} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			runner := &countingRunner{fail: map[string]bool{"b": true, "f": true}, delay: 5 * time.Millisecond}
			pool := NewPool(runner, nil)

			outcomes, err := pool.RunAll(context.Background(), refs, model.AlbumContext{}, concurrency)
			if err != nil {
				t.Fatalf("RunAll: %v", err)
			}
			if len(outcomes) != len(refs) {
				t.Fatalf("got %d outcomes, want %d", len(outcomes), len(refs))
			}
			if got := int(runner.calls.Load()); got != len(refs) {
				t.Errorf("runner called %d times, want %d", got, len(refs))
			}
			if peak := int(runner.peak.Load()); peak > concurrency {
				t.Errorf("peak concurrency %d exceeds cap %d", peak, concurrency)
			}

			set := outcomeSet(outcomes)
			if baseline == nil {
				baseline = set
			} else if !slices.Equal(set, baseline) {
				t.Errorf("outcomes differ from concurrency=1:\n got %v\nwant %v", set, baseline)
			}
		})
	}
}

func TestRunAll_DuplicateRefsAreSeparateItems(t *testing.T) {
	refs := append(pipelinetest.Refs("a"), pipelinetest.Refs("a")...)
	pool := NewPool(&countingRunner{}, nil)

	outcomes, err := pool.RunAll(context.Background(), refs, model.AlbumContext{}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 2 {
		t.Errorf("got %d outcomes, want 2", len(outcomes))
	}
}

func TestRunAll_ProgressIsMonotonic(t *testing.T) {
	refs := pipelinetest.Refs("a", "b", "c", "d", "e")
	pool := NewPool(&countingRunner{fail: map[string]bool{"c": true}, delay: time.Millisecond}, nil)

	var (
		mu   sync.Mutex
		seen []int
	)
	pool.OnProgress = func(pr Progress) {
		mu.Lock()
		defer mu.Unlock()
		if pr.Total != len(refs) {
			t.Errorf("Total = %d, want %d", pr.Total, len(refs))
		}
		seen = append(seen, pr.Done)
	}

	if _, err := pool.RunAll(context.Background(), refs, model.AlbumContext{}, 3); err != nil {
		t.Fatal(err)
	}
	want := []int{1, 2, 3, 4, 5}
	if !slices.Equal(seen, want) {
		t.Errorf("progress = %v, want %v", seen, want)
	}
	if pool.Completed() != len(refs) {
		t.Errorf("Completed() = %d, want %d", pool.Completed(), len(refs))
	}
}

func TestRunAll_InvalidConcurrency(t *testing.T) {
	for _, concurrency := range []int{0, -1} {
		runner := &countingRunner{}
		pool := NewPool(runner, nil)

		outcomes, err := pool.RunAll(context.Background(), pipelinetest.Refs("a"), model.AlbumContext{}, concurrency)
		var cfgErr *pipeline.ConfigError
		if !errors.As(err, &cfgErr) || cfgErr.Field != "concurrency" {
			t.Errorf("concurrency %d: error = %v, want ConfigError on concurrency", concurrency, err)
		}
		if outcomes != nil || runner.calls.Load() != 0 {
			t.Errorf("concurrency %d: no work should start", concurrency)
		}
	}
}

func TestRunAll_EmptyRefs(t *testing.T) {
	outcomes, err := NewPool(&countingRunner{}, nil).RunAll(context.Background(), nil, model.AlbumContext{}, 4)
	if err != nil || outcomes != nil {
		t.Errorf("RunAll(nil) = %v, %v; want nil, nil", outcomes, err)
	}
}

func TestRunAll_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &countingRunner{}
	refs := pipelinetest.Refs("a", "b", "c")
	outcomes, err := NewPool(runner, nil).RunAll(ctx, refs, model.AlbumContext{}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != len(refs) {
		t.Fatalf("got %d outcomes, want %d", len(outcomes), len(refs))
	}
	for _, o := range outcomes {
		if o.Stage != model.StageCancelled || !errors.Is(o.Err, pipeline.ErrCancelled) {
			t.Errorf("outcome %s = %s/%v, want cancelled", o.Ref, o.Stage, o.Err)
		}
	}
	if runner.calls.Load() != 0 {
		t.Error("runner should not be called after cancellation")
	}
}

func TestRunAll_CancelMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	refs := pipelinetest.Refs("a", "b", "c", "d", "e")
	runner := &countingRunner{delay: time.Hour}
	pool := NewPool(runner, nil)
	pool.OnProgress = func(Progress) {}

	go func() {
		for runner.calls.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	outcomes, err := pool.RunAll(ctx, refs, model.AlbumContext{}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != len(refs) {
		t.Fatalf("got %d outcomes, want %d", len(outcomes), len(refs))
	}
	cancelled := 0
	for _, o := range outcomes {
		if o.Stage == model.StageCancelled {
			cancelled++
		}
	}
	if cancelled != len(refs)-1 {
		t.Errorf("%d items cancelled before start, want %d", cancelled, len(refs)-1)
	}
}

func TestRunAll_EndToEnd(t *testing.T) {
	album := model.AlbumContext{Artist: "The Band", Title: "Album", OutputDir: t.TempDir()}
	source := &pipelinetest.Source{Titles: map[string]string{"a": "A", "b": "B", "c": "C"}}
	transcoder := &pipelinetest.Transcoder{FailTitles: map[string]bool{"B": true}}
	p := pipeline.New(source, transcoder, &pipelinetest.Tagger{}, pipeline.DefaultOptions(), nil)

	pool := NewPool(p, nil)
	reports := 0
	pool.OnProgress = func(Progress) { reports++ }

	outcomes, err := pool.RunAll(context.Background(), pipelinetest.Refs("a", "b", "c"), album, 2)
	if err != nil {
		t.Fatal(err)
	}
	if reports != 3 {
		t.Errorf("progress reported %d times, want 3", reports)
	}

	summary := NewSummary(outcomes)
	if summary.Total != 3 || summary.Succeeded != 2 || summary.Failed != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if len(summary.Failures) != 1 || summary.Failures[0].Ref.ID != "b" || summary.Failures[0].Stage != model.StageTranscode {
		t.Errorf("failures = %+v", summary.Failures)
	}

	entries, err := os.ReadDir(album.OutputDir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if !slices.Equal(names, []string{"A.mp3", "C.mp3"}) {
		t.Errorf("output dir = %v, want [A.mp3 C.mp3]", names)
	}
	for _, o := range outcomes {
		if o.Succeeded() && filepath.Dir(o.Path) != album.OutputDir {
			t.Errorf("artifact %q outside output dir", o.Path)
		}
	}
}
