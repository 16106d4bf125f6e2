package domain

// Block is the canonical unit of raw entropy in entropyd: a fixed-size
// run of bytes read atomically from one source. A block is immutable
// once read and is consumed exactly once by the health-test battery.
type Block struct {
	Source string `json:"source"`
	Seq    uint64 `json:"seq"`
	Data   []byte `json:"data"`
}

// Bits returns the block length in bits.
func (b *Block) Bits() int {
	return len(b.Data) * 8
}

// Verdict is the outcome of running the health-test battery over one
// block. Failed names the first check that rejected the block; it is
// empty when Pass is true.
type Verdict struct {
	Pass   bool
	Failed string
}
