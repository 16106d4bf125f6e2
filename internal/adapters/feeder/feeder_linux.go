//go:build linux

package feeder

import (
	"bytes"
	"encoding/binary"
	"os"
	"runtime"
	"strconv"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"entropyd/internal/domain"
	"entropyd/internal/ports"
)

const (
	defaultEntropyAvailPath = "/proc/sys/kernel/random/entropy_avail"
	poolSizePath            = "/proc/sys/kernel/random/poolsize"
)

// Pool feeds the kernel entropy pool through the RNDADDENTROPY ioctl,
// crediting the configured number of entropy bits per byte. Requires
// CAP_SYS_ADMIN on the pool device.
type Pool struct {
	mu        sync.Mutex
	f         *os.File
	watermark int
	availPath string
	stats     ports.FeederStats
}

// Open returns the platform pool feeder for the given device.
func Open(device string, opts Options) (ports.Feeder, error) {
	return OpenPool(device, opts)
}

func OpenPool(device string, opts Options) (*Pool, error) {
	f, err := os.OpenFile(device, os.O_WRONLY|unix.O_CLOEXEC|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open entropy pool %s", device)
	}
	availPath := opts.entropyAvailPath
	if availPath == "" {
		availPath = defaultEntropyAvailPath
	}
	watermark := opts.WatermarkBits
	// A watermark above the pool size can never be reached, so
	// throttling would never engage.
	if size, err := PoolSize(); err == nil && watermark > size {
		watermark = size
	}
	return &Pool{f: f, watermark: watermark, availPath: availPath}, nil
}

// PoolSize returns the kernel pool size in bits.
func PoolSize() (int, error) {
	contents, err := os.ReadFile(poolSizePath)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(bytes.TrimSpace(contents)))
}

func (p *Pool) Feed(b *domain.Block, creditBitsPerByte int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.watermark > 0 {
		fill, err := p.fillLevelLocked()
		if err == nil && fill >= p.watermark {
			return 0, ports.ErrPoolFull
		}
	}

	buf := encodePoolInfo(creditBitsPerByte*len(b.Data), b.Data)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, p.f.Fd(), unix.RNDADDENTROPY, uintptr(unsafe.Pointer(&buf[0])))
	runtime.KeepAlive(buf)
	if errno != 0 {
		if errno == unix.EPERM || errno == unix.EACCES {
			return 0, errors.Wrap(os.ErrPermission, "RNDADDENTROPY")
		}
		return 0, errors.Wrap(errno, "RNDADDENTROPY")
	}

	p.stats.BytesFed += uint64(len(b.Data))
	p.stats.BlocksFed++
	return len(b.Data), nil
}

func (p *Pool) FillLevel() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fillLevelLocked()
}

func (p *Pool) fillLevelLocked() (int, error) {
	contents, err := os.ReadFile(p.availPath)
	if err != nil {
		return 0, errors.Wrap(err, "read entropy_avail")
	}
	fill, err := strconv.Atoi(string(bytes.TrimSpace(contents)))
	if err != nil {
		return 0, errors.Wrap(err, "parse entropy_avail")
	}
	p.stats.LastFillBits = fill
	return fill, nil
}

func (p *Pool) Stats() ports.FeederStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Pool) Close() error { return p.f.Close() }

// encodePoolInfo lays out struct rand_pool_info: two native-endian C
// ints (entropy_count, buf_size) followed by the payload.
func encodePoolInfo(creditBits int, data []byte) []byte {
	buf := make([]byte, 8+len(data))
	binary.NativeEndian.PutUint32(buf[0:4], uint32(creditBits))
	binary.NativeEndian.PutUint32(buf[4:8], uint32(len(data)))
	copy(buf[8:], data)
	return buf
}

var _ ports.Feeder = (*Pool)(nil)
