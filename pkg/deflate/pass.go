package deflate

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ajitpratap0/voxpack/pkg/blockdata"
	"github.com/ajitpratap0/voxpack/pkg/config"
	"github.com/ajitpratap0/voxpack/pkg/errors"
	"github.com/ajitpratap0/voxpack/pkg/logger"
	"github.com/ajitpratap0/voxpack/pkg/metrics"
)

// Pass applies one deflation strategy to arrays handed to it by
// chunk-managing code, logging and recording every attempt.
// A Pass is safe for concurrent use.
type Pass struct {
	strategy   string
	deflator   blockdata.Deflator
	numWorkers int
	logger     *zap.Logger
	metrics    *metrics.Collector

	// Metrics
	arraysProcessed int64
	bytesSaved      int64
}

// NewPass wraps d. A nil d makes a pass that keeps every array.
func NewPass(strategy string, d blockdata.Deflator, workers int) *Pass {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pass{
		strategy:   strategy,
		deflator:   d,
		numWorkers: workers,
		logger:     logger.Get().With(zap.String("component", "deflate_pass"), zap.String("strategy", strategy)),
		metrics:    metrics.NewCollector("deflate_pass_" + strategy),
	}
}

// NewPassFromConfig builds the pass cfg.Deflate describes.
func NewPassFromConfig(cfg *config.Config) (*Pass, error) {
	dc := cfg.Deflate
	switch dc.Strategy {
	case config.StrategyNone:
		return NewPass(dc.Strategy, nil, dc.GetWorkers()), nil
	case config.StrategyRows:
		return NewPass(dc.Strategy, &RowDeflator{MinRowRatio: dc.MinRowRatio}, dc.GetWorkers()), nil
	case config.StrategyCompressed:
		cc, err := dc.CompressionSettings()
		if err != nil {
			return nil, err
		}
		d, err := NewCompressingDeflator(cc)
		if err != nil {
			return nil, err
		}
		d.MinSavings = dc.MinSavings
		return NewPass(dc.Strategy, d, dc.GetWorkers()), nil
	default:
		return nil, errors.New(errors.ErrorTypeConfig, "unknown deflation strategy").
			WithDetail("strategy", dc.Strategy)
	}
}

// Strategy returns the strategy name the pass records under.
func (p *Pass) Strategy() string { return p.strategy }

// Run offers arr to the pass's deflator and returns the array the caller
// should keep from now on.
func (p *Pass) Run(arr blockdata.Array) blockdata.Array {
	return p.run(p.logger, arr)
}

func (p *Pass) run(log *zap.Logger, arr blockdata.Array) blockdata.Array {
	timer := metrics.NewTimer()
	before := arr.EstimatedMemoryConsumptionInBytes()
	out := arr.Deflate(p.deflator)
	elapsed := timer.Stop()
	after := out.EstimatedMemoryConsumptionInBytes()

	outcome := metrics.OutcomeDeclined
	if out != arr {
		outcome = metrics.OutcomeReplaced
		atomic.AddInt64(&p.bytesSaved, int64(before-after))
	}
	atomic.AddInt64(&p.arraysProcessed, 1)
	p.metrics.Deflation(p.strategy, outcome, before, after, elapsed)

	log.Debug("array deflated",
		zap.String("from", string(arr.Tag())),
		zap.String("to", string(out.Tag())),
		zap.String("outcome", outcome),
		zap.Int("bytes_before", before),
		zap.Int("bytes_after", after),
		zap.Duration("elapsed", elapsed))
	return out
}

type job struct {
	id  int
	arr blockdata.Array
}

// RunAll deflates arrays on up to the pass's worker count of goroutines
// and returns the results in input order. If ctx is cancelled, arrays not
// yet processed are returned unchanged together with ctx.Err().
func (p *Pass) RunAll(ctx context.Context, arrays []blockdata.Array) ([]blockdata.Array, error) {
	out := make([]blockdata.Array, len(arrays))
	copy(out, arrays)
	if len(arrays) == 0 {
		return out, nil
	}

	log := logger.WithContext(context.WithValue(ctx, logger.PassKey, p.strategy)).
		With(zap.String("component", "deflate_pass"))

	workers := p.numWorkers
	if workers > len(arrays) {
		workers = len(arrays)
	}

	jobs := make(chan job, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				out[j.id] = p.run(log, j.arr)
			}
		}()
	}

	var err error
distribute:
	for i, a := range arrays {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case jobs <- job{id: i, arr: a}:
		case <-ctx.Done():
			err = ctx.Err()
			break distribute
		}
	}
	close(jobs)
	wg.Wait()

	if err != nil {
		log.Warn("deflation batch interrupted", zap.Int("arrays", len(arrays)), zap.Error(err))
		return out, err
	}
	log.Debug("deflation batch finished", zap.Int("arrays", len(arrays)), zap.Int("workers", workers))
	return out, nil
}

// Counters returns the pass's local event counts, keyed like
// "deflations_replaced", plus its component name and uptime.
func (p *Pass) Counters() map[string]interface{} { return p.metrics.GetAll() }

// GetMetrics returns how many arrays the pass processed and the estimated
// bytes it saved.
func (p *Pass) GetMetrics() (arraysProcessed, bytesSaved int64) {
	return atomic.LoadInt64(&p.arraysProcessed), atomic.LoadInt64(&p.bytesSaved)
}
