package source

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"entropyd/internal/ports"
)

func TestDeviceReadBlock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entropy")
	want := bytes.Repeat([]byte{0xA7}, 64)
	if err := os.WriteFile(path, append(want, 0xFF), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	dev, err := Open(path, 64, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer dev.Close()

	blk, err := dev.ReadBlock(context.Background())
	if err != nil {
		t.Fatalf("read block: %v", err)
	}
	if !bytes.Equal(blk.Data, want) {
		t.Fatalf("unexpected block data")
	}
	if blk.Seq != 1 || blk.Source != path {
		t.Fatalf("unexpected block metadata: %+v", blk)
	}
}

func TestDeviceReadBlockFatalOnExhaustedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entropy")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	dev, err := Open(path, 64, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer dev.Close()

	_, err = dev.ReadBlock(context.Background())
	if err == nil {
		t.Fatalf("expected read error from truncated source")
	}
	if ports.IsTransientRead(err) {
		t.Fatalf("short file must be a fatal read error, got %v", err)
	}
}

func TestDeviceReadBlockHonorsContext(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	dev := &Device{path: "pipe", f: r, blockSize: 16}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if _, err := dev.ReadBlock(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDeviceReadBlockTimeoutIsTransient(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	dev := &Device{path: "pipe", f: r, blockSize: 16, timeout: 10 * time.Millisecond}

	_, err = dev.ReadBlock(context.Background())
	if err == nil || !ports.IsTransientRead(err) {
		t.Fatalf("expected transient read error on timeout, got %v", err)
	}
}

func TestDeviceReadBlockKeepsBytesAcrossTimeout(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	dev := &Device{path: "pipe", f: r, blockSize: 8, timeout: 30 * time.Millisecond}

	// Half a block arrives, then the waiter times out. The bytes
	// already read from the device must surface in the block returned
	// by the retry, not be discarded with the abandoned wait.
	if _, err := w.Write([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := dev.ReadBlock(context.Background()); err == nil || !ports.IsTransientRead(err) {
		t.Fatalf("expected transient timeout, got %v", err)
	}

	if _, err := w.Write([]byte{5, 6, 7, 8}); err != nil {
		t.Fatalf("write: %v", err)
	}
	blk, err := dev.ReadBlock(context.Background())
	if err != nil {
		t.Fatalf("retry read: %v", err)
	}
	if !bytes.Equal(blk.Data, []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Fatalf("bytes consumed before the timeout were lost: %v", blk.Data)
	}
	if blk.Seq != 1 {
		t.Fatalf("expected first delivered block, got seq %d", blk.Seq)
	}
}

func TestOpenMissingDevice(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope"), 64, 0); err == nil {
		t.Fatalf("expected open failure for missing device")
	}
}

func TestRandSource(t *testing.T) {
	src := NewRand(32)
	blk, err := src.ReadBlock(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(blk.Data) != 32 || blk.Source != "crypto/rand" {
		t.Fatalf("unexpected block: %+v", blk)
	}
}
