package source

import (
	"context"
	"crypto/rand"
	"io"
	"sync/atomic"

	"entropyd/internal/domain"
	"entropyd/internal/ports"
)

// Rand draws blocks from the process CSPRNG. It is used by tests and as
// an explicit last-resort fallback; blocks from it should be fed with
// zero entropy credit since the kernel already accounts for them.
type Rand struct {
	blockSize int
	seq       atomic.Uint64
}

func NewRand(blockSize int) *Rand {
	return &Rand{blockSize: blockSize}
}

func (r *Rand) ID() string { return "crypto/rand" }

func (r *Rand) ReadBlock(ctx context.Context) (*domain.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, r.blockSize)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, &ports.ReadError{Source: r.ID(), Err: err}
	}
	return &domain.Block{Source: r.ID(), Seq: r.seq.Add(1), Data: buf}, nil
}

func (r *Rand) Close() error { return nil }

var _ ports.Source = (*Rand)(nil)
