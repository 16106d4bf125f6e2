package entropyd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"entropyd/internal/adapters/feeder"
	"entropyd/internal/adapters/observability"
	"entropyd/internal/adapters/queue"
	"entropyd/internal/adapters/seedfile"
	"entropyd/internal/adapters/source"
	"entropyd/internal/app/config"
	"entropyd/internal/app/daemon"
	"entropyd/internal/fips"
	"entropyd/internal/ports"
)

// Option customizes the dependencies used by Runtime.
type Option func(*overrides)

type overrides struct {
	sources  []daemon.SourceSpec
	fallback *daemon.SourceSpec
	tester   ports.Tester
	queue    ports.BlockQueue
	feeder   ports.Feeder
	obs      ports.Observability
	seed     daemon.SeedStore
}

// WithSource adds an entropy source with the entropy credit its bytes
// earn when fed. May be given more than once; each source gets its own
// read loop.
func WithSource(src ports.Source, creditBitsPerByte int) Option {
	return func(o *overrides) {
		if src != nil {
			o.sources = append(o.sources, daemon.SourceSpec{Source: src, CreditBitsPerByte: creditBitsPerByte})
		}
	}
}

// WithFallback sets the source the daemon fails over to when a primary
// dies.
func WithFallback(src ports.Source, creditBitsPerByte int) Option {
	return func(o *overrides) {
		if src != nil {
			o.fallback = &daemon.SourceSpec{Source: src, CreditBitsPerByte: creditBitsPerByte}
		}
	}
}

// WithTester overrides the default FIPS 140-2 battery.
func WithTester(t ports.Tester) Option {
	return func(o *overrides) {
		if t != nil {
			o.tester = t
		}
	}
}

// WithQueue swaps the in-memory block queue for a caller-provided
// implementation.
func WithQueue(q ports.BlockQueue) Option {
	return func(o *overrides) {
		if q != nil {
			o.queue = q
		}
	}
}

// WithFeeder injects a custom pool feeder so tested bytes can go to any
// target.
func WithFeeder(f ports.Feeder) Option {
	return func(o *overrides) {
		if f != nil {
			o.feeder = f
		}
	}
}

// WithObservability replaces the default Prometheus-based backend.
func WithObservability(obs ports.Observability) Option {
	return func(o *overrides) {
		if obs != nil {
			o.obs = obs
		}
	}
}

// WithSeedStore lets callers bring their own seed persistence.
func WithSeedStore(s daemon.SeedStore) Option {
	return func(o *overrides) {
		if s != nil {
			o.seed = s
		}
	}
}

// Runtime wires up the source → test → feed pipeline and exposes
// simple lifecycle hooks for embedding entropyd inside any Go service.
type Runtime struct {
	cfg         *config.Config
	daemon      *daemon.Daemon
	queue       ports.BlockQueue
	feeder      ports.Feeder
	obs         ports.Observability
	metricsSrv  *http.Server
	gaugeStopCh chan struct{}
}

// New bootstraps the default adapters (device source, FIPS battery,
// in-memory queue, platform pool feeder, Prometheus observability).
// Options can override any dependency.
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var o overrides
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	obs := o.obs
	if obs == nil {
		obs = observability.NewPromObs()
	}

	fd := o.feeder
	if fd == nil {
		var err error
		fd, err = feeder.Open(cfg.Feed.Device, feeder.Options{WatermarkBits: cfg.Feed.WatermarkBits})
		if err != nil {
			return nil, err
		}
	}

	specs := o.sources
	if len(specs) == 0 {
		if cfg.Source.Path == "" {
			return nil, fmt.Errorf("source.path is required")
		}
		dev, err := source.Open(cfg.Source.Path, cfg.Source.BlockSize, cfg.Source.ReadTimeout)
		if err != nil {
			return nil, err
		}
		specs = []daemon.SourceSpec{{Source: dev, CreditBitsPerByte: cfg.Source.BitsPerByte}}
	}

	fb := o.fallback
	if fb == nil && cfg.Source.Fallback != "" {
		dev, err := source.Open(cfg.Source.Fallback, cfg.Source.BlockSize, cfg.Source.ReadTimeout)
		if err != nil {
			return nil, fmt.Errorf("open fallback source: %w", err)
		}
		fb = &daemon.SourceSpec{Source: dev, CreditBitsPerByte: cfg.Source.FallbackBitsPerByte}
	}

	seed := o.seed
	if seed == nil && cfg.Seed.File != "" {
		seed = seedfile.New(cfg.Seed.File)
	}

	if cfg.RunAs != "" {
		// All privileged handles (pool device, source devices) are
		// held at this point; everything after runs as the target
		// user. The seed file must stay readable and writable by that
		// user since it is loaded and saved during the run.
		if err := dropPrivileges(cfg.RunAs); err != nil {
			return nil, fmt.Errorf("drop privileges to %q: %w", cfg.RunAs, err)
		}
		obs.LogInfo("privileges_dropped", ports.Field{Key: "user", Value: cfg.RunAs})
	}

	q := o.queue
	if q == nil {
		q = queue.NewMemQueue(cfg.Policy.MaxQueueLen)
	}

	tester := o.tester
	if tester == nil {
		if cfg.Tests.Disabled {
			obs.LogInfo("health_tests_disabled",
				ports.Field{Key: "reason", Value: "explicit configuration opt-out"})
			tester = fips.NewDisabled()
		} else {
			tester = fips.New()
		}
	}

	d, err := daemon.New(daemon.Params{
		Policy:   cfg.Policy,
		Sources:  specs,
		Fallback: fb,
		Tester:   tester,
		Queue:    q,
		Feeder:   fd,
		Obs:      obs,
		Seed:     seed,
	})
	if err != nil {
		return nil, err
	}

	return &Runtime{
		cfg:    cfg,
		daemon: d,
		queue:  q,
		feeder: fd,
		obs:    obs,
	}, nil
}

// Run starts the daemon and blocks until the context is cancelled or a
// fatal condition ends the run. The metrics server and the feeder are
// torn down on the way out.
func (r *Runtime) Run(ctx context.Context) error {
	if r.cfg.Metrics.Addr != "" {
		r.startMetrics()
	}

	runErr := r.daemon.Run(ctx)

	var errs []error
	if r.gaugeStopCh != nil {
		close(r.gaugeStopCh)
	}
	if r.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.metricsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	if err := r.feeder.Close(); err != nil {
		errs = append(errs, err)
	}

	if runErr != nil {
		return runErr
	}
	return errors.Join(errs...)
}

// State reports the daemon's lifecycle state.
func (r *Runtime) State() daemon.State {
	return r.daemon.State()
}

func (r *Runtime) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.metricsSrv = &http.Server{
		Addr:    r.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		if err := r.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server exited: %v", err)
		}
	}()

	r.gaugeStopCh = make(chan struct{})
	go r.recordResourceGauges(r.gaugeStopCh, time.Second)
}

func (r *Runtime) recordResourceGauges(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.obs.SetGauge("entropyd_queue_length", float64(r.queue.Len()))
			if fill, err := r.feeder.FillLevel(); err == nil {
				r.obs.SetGauge("entropyd_pool_entropy_bits", float64(fill))
			}
		}
	}
}
