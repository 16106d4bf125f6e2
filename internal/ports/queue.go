package ports

import "entropyd/internal/domain"

// BlockQueue hands accepted blocks from the source loops to the single
// feed loop. It is the serialization point between concurrent sources
// and the one OS pool.
type BlockQueue interface {
	Enqueue(b *domain.Block) bool
	Dequeue() (*domain.Block, bool)
	Len() int
}
