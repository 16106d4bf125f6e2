package ports

import (
	"errors"

	"entropyd/internal/domain"
)

// ErrPoolFull indicates the OS pool is above the configured watermark.
// It is a throttle signal, not a failure; the feed loop backs off.
var ErrPoolFull = errors.New("entropyd: entropy pool above watermark")

// Feeder injects tested bytes into the OS randomness pool. Feed is
// atomic per block and serialized internally; counters in Stats never
// decrease within a run.
type Feeder interface {
	// Feed writes the block and credits creditBitsPerByte entropy bits
	// per byte written. Returns the byte count actually fed.
	Feed(b *domain.Block, creditBitsPerByte int) (int, error)
	// FillLevel reports the pool's current entropy estimate in bits.
	FillLevel() (int, error)
	Stats() FeederStats
	Close() error
}

// FeederStats tracks feeding progress since daemon start.
type FeederStats struct {
	BytesFed  uint64
	BlocksFed uint64
	// LastFillBits is the pool estimate observed on the most recent
	// fill-level check, in bits.
	LastFillBits int
}
