// Package daemon runs the read → test → feed loop: one goroutine per
// entropy source, a shared bounded queue, and a single feed loop that
// serializes all writes into the OS pool.
package daemon

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"entropyd/internal/domain"
	"entropyd/internal/ports"
)

// ErrSourceFailed is returned by Run when every configured source,
// fallback included, has been declared dead.
var ErrSourceFailed = errors.New("entropyd: entropy source failed")

const seedSaveBytes = 512

type State int32

const (
	Starting State = iota
	Running
	Draining
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// SourceSpec pairs a source with the entropy credit its bytes earn.
type SourceSpec struct {
	Source            ports.Source
	CreditBitsPerByte int
}

// SeedStore persists a small entropy carry-over across restarts.
type SeedStore interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

type Params struct {
	Policy   ports.Policy
	Sources  []SourceSpec
	Fallback *SourceSpec
	Tester   ports.Tester
	Queue    ports.BlockQueue
	Feeder   ports.Feeder
	Obs      ports.Observability
	Seed     SeedStore // optional
}

type Daemon struct {
	pol      ports.Policy
	sources  []SourceSpec
	fallback *SourceSpec
	tester   ports.Tester
	queue    ports.BlockQueue
	feeder   ports.Feeder
	obs      ports.Observability
	seed     SeedStore

	credits map[string]int

	state    atomic.Int32
	lastFeed atomic.Int64

	wg sync.WaitGroup

	mu              sync.Mutex
	live            int
	fallbackStarted bool

	failOnce sync.Once
	failErr  error
	failedCh chan struct{}
}

func New(p Params) (*Daemon, error) {
	if len(p.Sources) == 0 {
		return nil, fmt.Errorf("at least one entropy source is required")
	}
	if p.Tester == nil || p.Queue == nil || p.Feeder == nil || p.Obs == nil {
		return nil, fmt.Errorf("tester, queue, feeder, and observability are required")
	}

	credits := make(map[string]int, len(p.Sources)+1)
	for _, spec := range p.Sources {
		credits[spec.Source.ID()] = spec.CreditBitsPerByte
	}
	if p.Fallback != nil {
		credits[p.Fallback.Source.ID()] = p.Fallback.CreditBitsPerByte
	}

	d := &Daemon{
		pol:      p.Policy,
		sources:  p.Sources,
		fallback: p.Fallback,
		tester:   p.Tester,
		queue:    p.Queue,
		feeder:   p.Feeder,
		obs:      p.Obs,
		seed:     p.Seed,
		credits:  credits,
		failedCh: make(chan struct{}),
	}
	d.setState(Starting)
	return d, nil
}

func (d *Daemon) State() State {
	return State(d.state.Load())
}

// LastFeed reports when the pool was last fed successfully; zero time
// if it never was.
func (d *Daemon) LastFeed() time.Time {
	n := d.lastFeed.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Run drives the daemon until the context is cancelled (graceful
// shutdown, returns nil) or a fatal condition ends the run (returns the
// cause). Source loops stuck in a hardware read past the grace period
// are abandoned rather than holding up exit.
func (d *Daemon) Run(ctx context.Context) error {
	d.feedSeed()

	loopCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.mu.Lock()
	d.live = len(d.sources)
	d.mu.Unlock()

	for _, spec := range d.sources {
		spec := spec
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.runSource(loopCtx, spec)
		}()
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.runFeeder(loopCtx)
	}()

	d.setState(Running)

	var failed bool
	select {
	case <-ctx.Done():
	case <-d.failedCh:
		failed = true
	}
	d.setState(Draining)
	cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d.pol.GracePeriod):
		d.obs.LogError("drain_timeout",
			fmt.Errorf("source loops still blocked after %s", d.pol.GracePeriod))
	}

	d.closeSources()
	d.saveSeed()

	if failed {
		d.setState(Failed)
		d.obs.LogCritical("daemon_failed", d.failErr,
			ports.Field{Key: "last_feed", Value: d.LastFeed().Format(time.RFC3339)})
		return d.failErr
	}
	d.setState(Stopped)
	d.obs.LogInfo("daemon_stopped",
		ports.Field{Key: "bytes_fed", Value: d.feeder.Stats().BytesFed})
	return nil
}

func (d *Daemon) runSource(ctx context.Context, spec SourceSpec) {
	consecutive := 0
	for ctx.Err() == nil {
		blk, err := d.readWithRetry(ctx, spec.Source)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.obs.IncCounter("entropyd_source_failures_total", 1)
			d.obs.LogCritical("source_read_failed", err,
				ports.Field{Key: "source", Value: spec.Source.ID()})
			d.sourceDead(ctx, spec.Source.ID(), err)
			return
		}
		d.obs.IncCounter("entropyd_blocks_read_total", 1)

		verdict := d.tester.Evaluate(blk)
		if !verdict.Pass {
			consecutive++
			d.obs.RecordRejected(blk, verdict)
			if consecutive >= d.pol.MaxConsecutiveFailures {
				cause := fmt.Errorf("%d consecutive blocks rejected (last check: %s)",
					consecutive, verdict.Failed)
				d.obs.IncCounter("entropyd_source_failures_total", 1)
				d.obs.LogCritical("source_unhealthy", cause,
					ports.Field{Key: "source", Value: spec.Source.ID()})
				d.sourceDead(ctx, spec.Source.ID(), cause)
				return
			}
			continue
		}
		consecutive = 0
		d.enqueue(ctx, blk)
	}
}

// readWithRetry retries transient read failures with bounded backoff.
// Fatal errors and retry exhaustion both kill the source.
func (d *Daemon) readWithRetry(ctx context.Context, src ports.Source) (*domain.Block, error) {
	var lastErr error
	for attempt := 0; attempt <= d.pol.ReadRetries; attempt++ {
		if attempt > 0 {
			if !sleepCtx(ctx, d.pol.RetryBackoff) {
				return nil, ctx.Err()
			}
		}
		blk, err := src.ReadBlock(ctx)
		if err == nil {
			return blk, nil
		}
		if !ports.IsTransientRead(err) {
			return nil, err
		}
		lastErr = err
		d.obs.LogError("source_read_retry", err,
			ports.Field{Key: "attempt", Value: attempt + 1})
	}
	return nil, lastErr
}

func (d *Daemon) enqueue(ctx context.Context, blk *domain.Block) {
	for {
		if d.queue.Enqueue(blk) {
			return
		}
		switch d.pol.OnQueueFull {
		case "block":
			if !sleepCtx(ctx, d.pol.IdleSleep) {
				return
			}
		default: // "drop"
			d.obs.IncCounter("entropyd_queue_dropped_total", 1)
			return
		}
	}
}

func (d *Daemon) sourceDead(ctx context.Context, id string, cause error) {
	d.mu.Lock()
	d.live--
	startFallback := d.fallback != nil && !d.fallbackStarted
	if startFallback {
		d.fallbackStarted = true
		d.live++
	}
	remaining := d.live
	d.mu.Unlock()

	if startFallback {
		d.obs.LogInfo("fallback_source_started",
			ports.Field{Key: "source", Value: d.fallback.Source.ID()})
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.runSource(ctx, *d.fallback)
		}()
		return
	}
	if remaining == 0 {
		d.fail(fmt.Errorf("%w: source %s: %v", ErrSourceFailed, id, cause))
	}
}

// runFeeder is the only caller of Feeder.Feed during Running: all
// sources funnel through the queue, so FeederStats stay consistent. A
// block held back by a full pool is retried after the backoff, never
// dropped and never re-queued out of order.
func (d *Daemon) runFeeder(ctx context.Context) {
	var pending *domain.Block
	for ctx.Err() == nil {
		if pending == nil {
			blk, ok := d.queue.Dequeue()
			if !ok {
				if !sleepCtx(ctx, d.pol.IdleSleep) {
					return
				}
				continue
			}
			pending = blk
		}

		start := time.Now()
		n, err := d.feeder.Feed(pending, d.credits[pending.Source])
		switch {
		case errors.Is(err, ports.ErrPoolFull):
			if !sleepCtx(ctx, d.pol.FeedBackoff) {
				return
			}
		case errors.Is(err, os.ErrPermission):
			d.obs.LogCritical("feed_permission_denied", err)
			d.fail(fmt.Errorf("feeding entropy pool: %w", err))
			return
		case err != nil:
			d.obs.LogError("feed_failed", err,
				ports.Field{Key: "source", Value: pending.Source})
			pending = nil
		default:
			d.obs.ObserveLatency("entropyd_feed_latency_seconds", time.Since(start).Seconds())
			d.obs.IncCounter("entropyd_bytes_fed_total", float64(n))
			d.lastFeed.Store(time.Now().UnixNano())
			pending = nil
		}
	}
}

func (d *Daemon) feedSeed() {
	if d.seed == nil {
		return
	}
	data, err := d.seed.Load()
	if err != nil {
		d.obs.LogError("seed_load_failed", err)
		return
	}
	if len(data) == 0 {
		return
	}
	blk := &domain.Block{Source: "seed-file", Data: data}
	_, err = d.feeder.Feed(blk, 0)
	switch {
	case errors.Is(err, ports.ErrPoolFull):
		d.obs.LogInfo("seed_skipped",
			ports.Field{Key: "reason", Value: "pool above watermark"})
	case err != nil:
		d.obs.LogError("seed_feed_failed", err)
	default:
		d.obs.LogInfo("seed_fed", ports.Field{Key: "bytes", Value: len(data)})
	}
}

func (d *Daemon) saveSeed() {
	if d.seed == nil {
		return
	}
	buf := make([]byte, seedSaveBytes)
	if _, err := crand.Read(buf); err != nil {
		d.obs.LogError("seed_generate_failed", err)
		return
	}
	if err := d.seed.Save(buf); err != nil {
		d.obs.LogError("seed_save_failed", err)
	}
}

func (d *Daemon) closeSources() {
	for _, spec := range d.sources {
		if err := spec.Source.Close(); err != nil {
			d.obs.LogError("source_close_failed", err,
				ports.Field{Key: "source", Value: spec.Source.ID()})
		}
	}
	if d.fallback != nil {
		if err := d.fallback.Source.Close(); err != nil {
			d.obs.LogError("source_close_failed", err,
				ports.Field{Key: "source", Value: d.fallback.Source.ID()})
		}
	}
}

func (d *Daemon) fail(err error) {
	d.failOnce.Do(func() {
		d.failErr = err
		close(d.failedCh)
	})
}

func (d *Daemon) setState(s State) {
	d.state.Store(int32(s))
	d.obs.SetGauge("entropyd_daemon_state", float64(s))
}

func sleepCtx(ctx context.Context, dur time.Duration) bool {
	if dur <= 0 {
		dur = time.Millisecond
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
