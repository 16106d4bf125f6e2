package entropyd

import (
	"time"

	"entropyd/internal/adapters/feeder"
	"entropyd/internal/adapters/seedfile"
	"entropyd/internal/adapters/source"
	"entropyd/internal/app/daemon"
	"entropyd/internal/domain"
	"entropyd/internal/fips"
	"entropyd/internal/ports"
)

// Re-exported pipeline types so embedders never have to import
// internal packages.
type (
	Block         = domain.Block
	Verdict       = domain.Verdict
	Source        = ports.Source
	Tester        = ports.Tester
	Feeder        = ports.Feeder
	BlockQueue    = ports.BlockQueue
	Observability = ports.Observability
	FeederStats   = ports.FeederStats
	SeedStore     = daemon.SeedStore
	State         = daemon.State
)

// BlockBytes is the FIPS block size the default battery expects.
const BlockBytes = fips.BlockBytes

// ErrPoolFull is the feeder's throttle signal.
var ErrPoolFull = ports.ErrPoolFull

// ErrSourceFailed is returned by Run when every source is dead.
var ErrSourceFailed = daemon.ErrSourceFailed

// NewDeviceSource opens a device-file entropy source.
func NewDeviceSource(path string, blockSize int, timeout time.Duration) (Source, error) {
	return source.Open(path, blockSize, timeout)
}

// NewRandSource returns a crypto/rand-backed source, useful for
// embedding demos and as an explicit zero-credit fallback.
func NewRandSource(blockSize int) Source {
	return source.NewRand(blockSize)
}

// NewDevWriterFeeder returns a credit-less feeder that writes tested
// bytes to the given device or file.
func NewDevWriterFeeder(path string) (Feeder, error) {
	return feeder.NewDevWriter(path)
}

// NewSeedFile returns a file-backed seed store.
func NewSeedFile(path string) SeedStore {
	return seedfile.New(path)
}
