//go:build linux

package feeder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"entropyd/internal/domain"
	"entropyd/internal/ports"
)

func TestEncodePoolInfoLayout(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	buf := encodePoolInfo(32, data)

	if len(buf) != 8+len(data) {
		t.Fatalf("buffer length %d, want %d", len(buf), 8+len(data))
	}
	if got := binary.NativeEndian.Uint32(buf[0:4]); got != 32 {
		t.Fatalf("entropy_count = %d, want 32", got)
	}
	if got := binary.NativeEndian.Uint32(buf[4:8]); got != 4 {
		t.Fatalf("buf_size = %d, want 4", got)
	}
	if !bytes.Equal(buf[8:], data) {
		t.Fatalf("payload mismatch")
	}
}

func TestPoolFeedReportsPoolFullAboveWatermark(t *testing.T) {
	dir := t.TempDir()
	availPath := filepath.Join(dir, "entropy_avail")
	if err := os.WriteFile(availPath, []byte("4000\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	target := filepath.Join(dir, "pool")
	if err := os.WriteFile(target, nil, 0o600); err != nil {
		t.Fatalf("create target: %v", err)
	}
	f, err := os.OpenFile(target, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open target: %v", err)
	}
	defer f.Close()

	p := &Pool{f: f, watermark: 2048, availPath: availPath}

	blk := &domain.Block{Source: "test", Data: []byte{1, 2, 3}}
	if _, err := p.Feed(blk, 8); !errors.Is(err, ports.ErrPoolFull) {
		t.Fatalf("expected ErrPoolFull, got %v", err)
	}
	if stats := p.Stats(); stats.BytesFed != 0 || stats.LastFillBits != 4000 {
		t.Fatalf("unexpected stats after throttle: %+v", stats)
	}
}

func TestPoolFillLevel(t *testing.T) {
	dir := t.TempDir()
	availPath := filepath.Join(dir, "entropy_avail")
	if err := os.WriteFile(availPath, []byte("512"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	p := &Pool{availPath: availPath}
	fill, err := p.FillLevel()
	if err != nil {
		t.Fatalf("fill level: %v", err)
	}
	if fill != 512 {
		t.Fatalf("fill = %d, want 512", fill)
	}
}
