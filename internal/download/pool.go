package download

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/handiism/tubealbum/internal/logging"
	"github.com/handiism/tubealbum/internal/model"
	"github.com/handiism/tubealbum/internal/pipeline"
)

// DefaultConcurrency is the worker count used when none is configured.
const DefaultConcurrency = 4

// ItemRunner processes a single item. *pipeline.Pipeline implements it.
type ItemRunner interface {
	Run(ctx context.Context, ref model.ItemRef, album model.AlbumContext) model.ItemOutcome
}

// Progress is reported once per finished item.
type Progress struct {
	// Done counts finished items, including this one. It increases by
	// exactly one per report.
	Done    int
	Total   int
	Outcome model.ItemOutcome
}

// Pool runs items through an ItemRunner with a fixed number of workers.
//
//	pool := download.NewPool(p, logger)
//	pool.OnProgress = func(pr download.Progress) { fmt.Printf("%d/%d\n", pr.Done, pr.Total) }
//	outcomes, err := pool.RunAll(ctx, refs, album, 4)
type Pool struct {
	runner ItemRunner
	logger *slog.Logger

	// OnProgress, when set, is called from a single goroutine after each
	// item finishes. It must not block for long.
	OnProgress func(Progress)

	completed atomic.Int64
}

// NewPool creates a Pool. A nil logger discards log output.
func NewPool(runner ItemRunner, logger *slog.Logger) *Pool {
	return &Pool{
		runner: runner,
		logger: logging.NewComponentLogger(logger, "pool"),
	}
}

// Completed returns how many items of the current (or last) RunAll call
// have finished. It is safe to call from any goroutine.
func (p *Pool) Completed() int {
	return int(p.completed.Load())
}

// RunAll processes every ref and returns one outcome per ref, in completion
// order. Item failures never stop other items; the only error is a
// *pipeline.ConfigError for a non-positive concurrency, in which case no
// work is started.
//
// Once ctx is done, refs not yet picked up by a worker are reported as
// cancelled without being processed. RunAll returns only after every ref has
// an outcome.
func (p *Pool) RunAll(ctx context.Context, refs []model.ItemRef, album model.AlbumContext, concurrency int) ([]model.ItemOutcome, error) {
	if concurrency <= 0 {
		return nil, &pipeline.ConfigError{
			Field:  "concurrency",
			Reason: fmt.Sprintf("must be at least 1, got %d", concurrency),
		}
	}
	p.completed.Store(0)
	if len(refs) == 0 {
		return nil, nil
	}

	workers := min(concurrency, len(refs))
	p.logger.Info("starting items",
		logging.Int("items", len(refs)),
		logging.Int("workers", workers),
	)

	jobs := make(chan model.ItemRef)
	results := make(chan model.ItemOutcome, len(refs))

	// Plain group, not WithContext: workers never return errors.
	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			for ref := range jobs {
				if err := ctx.Err(); err != nil {
					results <- pipeline.Cancelled(ref, err)
					continue
				}
				results <- p.runner.Run(ctx, ref, album)
			}
			return nil
		})
	}

	go func() {
		for _, ref := range refs {
			jobs <- ref
		}
		close(jobs)
	}()

	go func() {
		_ = g.Wait()
		close(results)
	}()

	outcomes := make([]model.ItemOutcome, 0, len(refs))
	for outcome := range results {
		done := p.completed.Add(1)
		outcomes = append(outcomes, outcome)
		if p.OnProgress != nil {
			p.OnProgress(Progress{Done: int(done), Total: len(refs), Outcome: outcome})
		}
	}

	p.logger.Info("items finished", logging.Int("items", len(outcomes)))
	return outcomes, nil
}
