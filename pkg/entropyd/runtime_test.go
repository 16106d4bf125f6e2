package entropyd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"entropyd/internal/app/daemon"
	"entropyd/internal/domain"
	"entropyd/internal/fips"
	"entropyd/internal/ports"
)

type quietObs struct{}

func (o *quietObs) LogInfo(string, ...ports.Field)               {}
func (o *quietObs) LogError(string, error, ...ports.Field)       {}
func (o *quietObs) LogCritical(string, error, ...ports.Field)    {}
func (o *quietObs) IncCounter(string, float64)                   {}
func (o *quietObs) ObserveLatency(string, float64)               {}
func (o *quietObs) SetGauge(string, float64)                     {}
func (o *quietObs) RecordRejected(*domain.Block, domain.Verdict) {}

func TestRuntimeRunWithOverrides(t *testing.T) {
	target := filepath.Join(t.TempDir(), "pool")
	if err := os.WriteFile(target, nil, 0o600); err != nil {
		t.Fatalf("create target: %v", err)
	}
	fd, err := NewDevWriterFeeder(target)
	if err != nil {
		t.Fatalf("feeder: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Metrics.Addr = "" // no metrics server in tests

	rt, err := New(cfg,
		WithSource(NewRandSource(fips.BlockBytes), 0),
		WithFeeder(fd),
		WithObservability(&quietObs{}),
	)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := rt.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if rt.State() != daemon.Stopped {
		t.Fatalf("expected Stopped, got %s", rt.State())
	}
	if fd.Stats().BytesFed == 0 {
		t.Fatalf("expected bytes to be fed through the pipeline")
	}
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestNewRequiresSourcePath(t *testing.T) {
	target := filepath.Join(t.TempDir(), "pool")
	if err := os.WriteFile(target, nil, 0o600); err != nil {
		t.Fatalf("create target: %v", err)
	}
	fd, err := NewDevWriterFeeder(target)
	if err != nil {
		t.Fatalf("feeder: %v", err)
	}

	cfg := DefaultConfig() // no source path, no source override
	cfg.Metrics.Addr = ""

	_, err = New(cfg, WithFeeder(fd), WithObservability(&quietObs{}))
	if err == nil {
		t.Fatalf("expected error for missing source path")
	}
}

func TestNewOpensSourcesBeforePrivilegeDrop(t *testing.T) {
	target := filepath.Join(t.TempDir(), "pool")
	if err := os.WriteFile(target, nil, 0o600); err != nil {
		t.Fatalf("create target: %v", err)
	}
	fd, err := NewDevWriterFeeder(target)
	if err != nil {
		t.Fatalf("feeder: %v", err)
	}

	// Both the source open and the privilege drop must fail here; the
	// source failure has to win, since root-owned devices can only be
	// opened while the initial privileges are still held.
	cfg := DefaultConfig()
	cfg.Source.Path = filepath.Join(t.TempDir(), "nope")
	cfg.Metrics.Addr = ""
	cfg.RunAs = "no-such-user-entropyd"

	_, err = New(cfg, WithFeeder(fd), WithObservability(&quietObs{}))
	if err == nil {
		t.Fatalf("expected error for missing source device")
	}
	if strings.Contains(err.Error(), "drop privileges") {
		t.Fatalf("privileges dropped before sources were opened: %v", err)
	}
	if !strings.Contains(err.Error(), "open entropy source") {
		t.Fatalf("expected source open failure, got %v", err)
	}
}

func TestNewOpensConfiguredDeviceSource(t *testing.T) {
	dir := t.TempDir()
	devicePath := filepath.Join(dir, "hwrng")
	if err := os.WriteFile(devicePath, make([]byte, fips.BlockBytes*2), 0o600); err != nil {
		t.Fatalf("write device fixture: %v", err)
	}
	target := filepath.Join(dir, "pool")
	if err := os.WriteFile(target, nil, 0o600); err != nil {
		t.Fatalf("create target: %v", err)
	}
	fd, err := NewDevWriterFeeder(target)
	if err != nil {
		t.Fatalf("feeder: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Source.Path = devicePath
	cfg.Metrics.Addr = ""

	rt, err := New(cfg, WithFeeder(fd), WithObservability(&quietObs{}))
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	if rt.State() != daemon.Starting {
		t.Fatalf("expected Starting before Run, got %s", rt.State())
	}
}
