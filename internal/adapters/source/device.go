// Package source provides entropy source adapters: a device-file reader
// for hardware RNGs and a crypto/rand-backed source for fallback and
// testing.
package source

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"entropyd/internal/domain"
	"entropyd/internal/ports"
)

// Device reads fixed-size blocks from an entropy device or file-like
// source such as /dev/hwrng or /dev/urandom. A single long-lived
// reader goroutine owns the file descriptor, so timed-out waits never
// discard hardware bytes and retries never interleave reads.
type Device struct {
	path      string
	f         *os.File
	blockSize int
	timeout   time.Duration
	seq       atomic.Uint64

	start   sync.Once
	results chan readResult
}

type readResult struct {
	data []byte
	err  error
}

// Open opens the device at path. Failure to open is the daemon's
// SourceUnavailable condition and is fatal at startup unless a
// fallback is configured. A timeout of zero disables per-read
// deadlines.
func Open(path string, blockSize int, timeout time.Duration) (*Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open entropy source %s", path)
	}
	return &Device{
		path:      path,
		f:         f,
		blockSize: blockSize,
		timeout:   timeout,
	}, nil
}

func (d *Device) ID() string { return d.path }

// readLoop is the only reader of the device. It keeps filling blocks
// and hands them out over the results channel; a block whose waiter
// timed out is simply delivered to the next call. Exits on the first
// read error, which Close forces on a stalled device.
func (d *Device) readLoop() {
	for {
		buf := make([]byte, d.blockSize)
		_, err := io.ReadFull(d.f, buf)
		if err != nil {
			d.results <- readResult{err: err}
			return
		}
		d.results <- readResult{data: buf}
	}
}

// ReadBlock waits for the next block from the reader goroutine, so a
// device with no available entropy cannot hold the caller past context
// cancellation or the configured timeout.
func (d *Device) ReadBlock(ctx context.Context) (*domain.Block, error) {
	d.start.Do(func() {
		d.results = make(chan readResult, 1)
		go d.readLoop()
	})

	var timeout <-chan time.Time
	if d.timeout > 0 {
		t := time.NewTimer(d.timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return nil, &ports.ReadError{Source: d.path, Transient: true, Err: errors.Errorf("no entropy within %s", d.timeout)}
	case res := <-d.results:
		if res.err != nil {
			return nil, d.classify(res.err)
		}
		return &domain.Block{
			Source: d.path,
			Seq:    d.seq.Add(1),
			Data:   res.data,
		}, nil
	}
}

// classify maps device errors onto the transient/fatal split: a busy or
// interrupted device is worth retrying, a removed or exhausted one is
// not.
func (d *Device) classify(err error) error {
	transient := errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR)
	return &ports.ReadError{Source: d.path, Transient: transient, Err: err}
}

func (d *Device) Close() error {
	return d.f.Close()
}

var _ ports.Source = (*Device)(nil)
