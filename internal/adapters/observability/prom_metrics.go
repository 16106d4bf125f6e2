package observability

import (
	"fmt"
	"log"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"entropyd/internal/domain"
	"entropyd/internal/ports"
)

type PromObs struct {
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
	rejected *prometheus.CounterVec
}

func NewPromObs() *PromObs {
	blocksRead := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "entropyd_blocks_read_total",
		Help: "Total raw blocks read from entropy sources.",
	})
	bytesFed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "entropyd_bytes_fed_total",
		Help: "Total tested bytes fed into the OS entropy pool.",
	})
	queueDrops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "entropyd_queue_dropped_total",
		Help: "Accepted blocks lost to queue backpressure policy.",
	})
	sourceFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "entropyd_source_failures_total",
		Help: "Entropy sources declared dead during this run.",
	})
	poolGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "entropyd_pool_entropy_bits",
		Help: "Last observed kernel entropy pool estimate in bits.",
	})
	queueGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "entropyd_queue_length",
		Help: "Accepted blocks currently buffered for feeding.",
	})
	stateGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "entropyd_daemon_state",
		Help: "Daemon lifecycle state (0 starting, 1 running, 2 draining, 3 stopped, 4 failed).",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "entropyd_feed_latency_seconds",
		Help:    "Latency of a single pool feed operation.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "entropyd_blocks_rejected_total",
		Help: "Blocks rejected by the health-test battery, by check.",
	}, []string{"check"})

	prometheus.MustRegister(blocksRead, bytesFed, queueDrops, sourceFailures,
		poolGauge, queueGauge, stateGauge, latency, rejected)

	return &PromObs{
		counters: map[string]prometheus.Counter{
			"entropyd_blocks_read_total":     blocksRead,
			"entropyd_bytes_fed_total":       bytesFed,
			"entropyd_queue_dropped_total":   queueDrops,
			"entropyd_source_failures_total": sourceFailures,
		},
		gauges: map[string]prometheus.Gauge{
			"entropyd_pool_entropy_bits": poolGauge,
			"entropyd_queue_length":      queueGauge,
			"entropyd_daemon_state":      stateGauge,
		},
		histos: map[string]prometheus.Observer{
			"entropyd_feed_latency_seconds": latency,
		},
		rejected: rejected,
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	log.Printf("INFO: %s%s", msg, formatFields(fields))
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("ERROR: %s: %v%s", msg, err, formatFields(fields))
	}
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("CRITICAL: %s: %v%s", msg, err, formatFields(fields))
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordRejected(b *domain.Block, v domain.Verdict) {
	p.rejected.WithLabelValues(v.Failed).Inc()
	log.Printf("rejected block source=%s seq=%d check=%s", b.Source, b.Seq, v.Failed)
}

func formatFields(fields []ports.Field) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	return b.String()
}
