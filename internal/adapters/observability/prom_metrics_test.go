package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"entropyd/internal/domain"
)

func TestPromObsMetrics(t *testing.T) {
	origReg := prometheus.DefaultRegisterer
	origGatherer := prometheus.DefaultGatherer
	t.Cleanup(func() {
		prometheus.DefaultRegisterer = origReg
		prometheus.DefaultGatherer = origGatherer
	})

	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg

	obs := NewPromObs()

	obs.IncCounter("entropyd_blocks_read_total", 5)
	if got := testutil.ToFloat64(obs.counters["entropyd_blocks_read_total"]); got != 5 {
		t.Fatalf("expected blocks read counter 5, got %f", got)
	}

	obs.IncCounter("entropyd_bytes_fed_total", 2500)
	if got := testutil.ToFloat64(obs.counters["entropyd_bytes_fed_total"]); got != 2500 {
		t.Fatalf("expected bytes fed counter 2500, got %f", got)
	}

	obs.SetGauge("entropyd_pool_entropy_bits", 1024)
	if got := testutil.ToFloat64(obs.gauges["entropyd_pool_entropy_bits"]); got != 1024 {
		t.Fatalf("expected pool gauge 1024, got %f", got)
	}

	blk := &domain.Block{Source: "test", Seq: 9}
	obs.RecordRejected(blk, domain.Verdict{Failed: "monobit"})
	obs.RecordRejected(blk, domain.Verdict{Failed: "monobit"})
	if got := testutil.ToFloat64(obs.rejected.WithLabelValues("monobit")); got != 2 {
		t.Fatalf("expected 2 monobit rejections, got %f", got)
	}

	obs.ObserveLatency("entropyd_feed_latency_seconds", 0.002)
}

func TestPromObsIgnoresUnknownNames(t *testing.T) {
	origReg := prometheus.DefaultRegisterer
	origGatherer := prometheus.DefaultGatherer
	t.Cleanup(func() {
		prometheus.DefaultRegisterer = origReg
		prometheus.DefaultGatherer = origGatherer
	})

	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg

	obs := NewPromObs()

	obs.IncCounter("no_such_counter", 1)
	obs.SetGauge("no_such_gauge", 1)
	obs.ObserveLatency("no_such_histogram", 1)
}
