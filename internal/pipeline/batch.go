package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxBatch is the largest batch a Runner accepts unless configured
// otherwise.
const DefaultMaxBatch = 101

// RunnerConfig bounds a Runner.
type RunnerConfig struct {
	// MaxInFlight is the number of images processed concurrently.
	// 0 means runtime.NumCPU().
	MaxInFlight int

	// MaxBatch is the largest accepted batch. 0 means DefaultMaxBatch.
	MaxBatch int

	// FailFast stops handing out images after the first failure. Images
	// that never started report KindCanceled; images already running
	// finish normally.
	FailFast bool

	// KeepOriginals retains the decoded source on each result. By default
	// it is dropped once the image is encoded.
	KeepOriginals bool
}

// Outcome is the per-image result of a batch: exactly one of Result and Err
// is set.
type Outcome struct {
	Index  int              `json:"index" yaml:"index"`
	Name   string           `json:"name" yaml:"name"`
	Result *ProcessedResult `json:"result,omitempty" yaml:"result,omitempty"`
	Kind   ErrorKind        `json:"kind,omitempty" yaml:"kind,omitempty"`
	Error  string           `json:"error,omitempty" yaml:"error,omitempty"`
	Err    error            `json:"-" yaml:"-"`
}

// OK reports whether the image was processed.
func (o Outcome) OK() bool { return o.Err == nil && o.Result != nil }

// FailedOutcome reports image i as failed with err, classified by KindOf.
func FailedOutcome(i int, name string, err error) Outcome {
	pe := fail(name, KindInternal, err)
	return Outcome{Index: i, Name: name, Kind: pe.Kind, Error: pe.Error(), Err: pe}
}

// Batch is the result of Runner.Run. Outcomes are in input order.
type Batch struct {
	ID        string        `json:"id" yaml:"id"`
	Operation Operation     `json:"operation" yaml:"operation"`
	Outcomes  []Outcome     `json:"outcomes" yaml:"outcomes"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Succeeded returns the number of processed images.
func (b *Batch) Succeeded() int {
	n := 0
	for _, o := range b.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// Failed returns the number of images that did not produce a result.
func (b *Batch) Failed() int { return len(b.Outcomes) - b.Succeeded() }

// Runner processes batches of images with a bounded worker pool. Each image
// runs independently: one image's failure never changes another's result.
type Runner struct {
	pipeline *Pipeline
	cfg      RunnerConfig
	log      *zap.Logger
}

// NewRunner creates a Runner over p.
func NewRunner(p *Pipeline, cfg RunnerConfig, log *zap.Logger) *Runner {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = runtime.NumCPU()
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultMaxBatch
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{pipeline: p, cfg: cfg, log: log}
}

// Config returns the effective configuration.
func (r *Runner) Config() RunnerConfig { return r.cfg }

// Run applies req to every source.
//
// The returned error is non-nil only when the batch as a whole is rejected
// before any work starts: too many sources, an unknown operation, or invalid
// settings. Per-image failures are reported in the outcomes. When ctx is
// canceled, images that have not started report KindCanceled.
func (r *Runner) Run(ctx context.Context, sources []Source, req Request) (*Batch, error) {
	if len(sources) > r.cfg.MaxBatch {
		return nil, fmt.Errorf("%w: %d images, limit is %d", ErrBatchTooLarge, len(sources), r.cfg.MaxBatch)
	}
	op, err := ParseOperation(string(req.Operation))
	if err != nil {
		return nil, err
	}
	req.Operation = op
	if err := req.Settings.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	batch := &Batch{
		ID:        uuid.NewString(),
		Operation: op,
		Outcomes:  make([]Outcome, len(sources)),
	}
	log := r.log.With(zap.String("batch", batch.ID))

	// stop only gates hand-out; images already running keep ctx.
	stop, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	started := make([]bool, len(sources))

	var wg sync.WaitGroup
	for w := 0; w < min(r.cfg.MaxInFlight, len(sources)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if stop.Err() != nil {
					continue
				}
				started[i] = true
				batch.Outcomes[i] = r.runOne(ctx, i, sources[i], req)
				if r.cfg.FailFast && !batch.Outcomes[i].OK() {
					cancel()
				}
			}
		}()
	}

feed:
	for i := range sources {
		select {
		case <-stop.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	for i, ok := range started {
		if !ok {
			cause := ctx.Err()
			if cause == nil {
				cause = context.Canceled
			}
			batch.Outcomes[i] = FailedOutcome(i, sources[i].Name, fmt.Errorf("not started: %w", cause))
		}
	}

	batch.Elapsed = time.Since(start)
	log.Info("batch processed",
		zap.String("operation", string(op)),
		zap.Int("images", len(sources)),
		zap.Int("failed", batch.Failed()),
		zap.Duration("elapsed", batch.Elapsed))
	return batch, nil
}

func (r *Runner) runOne(ctx context.Context, i int, src Source, req Request) Outcome {
	res, err := r.pipeline.Process(ctx, src, req)
	if err != nil {
		return FailedOutcome(i, src.Name, err)
	}
	if !r.cfg.KeepOriginals {
		kept := *res
		kept.Original = nil
		res = &kept
	}
	return Outcome{Index: i, Name: src.Name, Result: res}
}
