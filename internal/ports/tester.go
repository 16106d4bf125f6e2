package ports

import "entropyd/internal/domain"

// Tester runs the health-test battery over a block. Implementations
// must be safe for concurrent use by multiple source loops.
type Tester interface {
	Evaluate(b *domain.Block) domain.Verdict
}
