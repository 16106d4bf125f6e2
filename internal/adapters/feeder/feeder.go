// Package feeder injects tested entropy into the OS randomness pool.
// On Linux the pool feeder uses the RNDADDENTROPY ioctl so fed bytes
// carry an entropy credit; everywhere else (and for credit-less
// targets) a plain write-only feeder is available.
package feeder

import (
	"os"
	"sync"

	"github.com/pkg/errors"

	"entropyd/internal/domain"
	"entropyd/internal/ports"
)

// Options configures a pool feeder.
type Options struct {
	// WatermarkBits pauses feeding while the pool estimate is at or
	// above this many bits. Zero disables throttling.
	WatermarkBits int
	// entropyAvailPath overrides the kernel fill-level file in tests.
	entropyAvailPath string
}

// DevWriter feeds by writing bytes to a device. Written bytes are
// mixed into the pool but credited with no entropy, which is the
// conservative choice for untrusted or fallback sources.
type DevWriter struct {
	mu    sync.Mutex
	f     *os.File
	stats ports.FeederStats
}

func NewDevWriter(path string) (*DevWriter, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open entropy target %s", path)
	}
	return &DevWriter{f: f}, nil
}

func (w *DevWriter) Feed(b *domain.Block, creditBitsPerByte int) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.f.Write(b.Data)
	if err != nil {
		return 0, errors.Wrap(err, "write entropy")
	}
	w.stats.BytesFed += uint64(n)
	w.stats.BlocksFed++
	return n, nil
}

// FillLevel is always zero: a plain device write exposes no pool
// estimate, so throttling does not apply.
func (w *DevWriter) FillLevel() (int, error) { return 0, nil }

func (w *DevWriter) Stats() ports.FeederStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *DevWriter) Close() error { return w.f.Close() }

var _ ports.Feeder = (*DevWriter)(nil)
