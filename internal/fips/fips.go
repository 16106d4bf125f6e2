// Package fips implements the FIPS 140-2 continuous randomness health
// tests (monobit, poker, runs, long-run) over fixed 20000-bit blocks,
// using the rng-tools threshold constants.
package fips

import (
	"math/bits"

	"entropyd/internal/domain"
)

const (
	// BlockBytes is the block size the threshold constants are defined
	// for: 20000 bits.
	BlockBytes = 2500
	BlockBits  = BlockBytes * 8

	monobitMin = 9654
	monobitMax = 10346

	pokerMin = 1.03
	pokerMax = 57.4

	longRunLimit = 26
)

// runBounds holds the acceptance interval for run lengths 1..6+, applied
// separately to runs of zeros and runs of ones.
var runBounds = [6][2]int{
	{2267, 2733},
	{1079, 1421},
	{502, 748},
	{223, 402},
	{90, 223},
	{90, 223},
}

// CheckFunc is a single pure health test over a raw block.
type CheckFunc func(data []byte) bool

// Check is a named member of the battery.
type Check struct {
	Name string
	Fn   CheckFunc
}

// Battery runs an ordered list of checks; the first failure names the
// verdict. An empty battery accepts everything.
type Battery struct {
	checks []Check
}

// New returns the standard four-test battery in FIPS order.
func New() *Battery {
	return &Battery{checks: []Check{
		{Name: "monobit", Fn: Monobit},
		{Name: "poker", Fn: Poker},
		{Name: "runs", Fn: Runs},
		{Name: "long-run", Fn: LongRun},
	}}
}

// NewDisabled returns a battery that accepts every block. Used only for
// the explicit skip-tests opt-out.
func NewDisabled() *Battery {
	return &Battery{}
}

// Evaluate runs the battery in order and stops at the first failure.
// Blocks of the wrong size are rejected outright since the thresholds
// are only meaningful at 20000 bits.
func (b *Battery) Evaluate(blk *domain.Block) domain.Verdict {
	if len(b.checks) == 0 {
		return domain.Verdict{Pass: true}
	}
	if len(blk.Data) != BlockBytes {
		return domain.Verdict{Failed: "block-size"}
	}
	for _, c := range b.checks {
		if !c.Fn(blk.Data) {
			return domain.Verdict{Failed: c.Name}
		}
	}
	return domain.Verdict{Pass: true}
}

// Monobit requires the count of set bits to fall in (9654, 10346).
func Monobit(data []byte) bool {
	ones := 0
	for _, b := range data {
		ones += bits.OnesCount8(b)
	}
	return ones > monobitMin && ones < monobitMax
}

// Poker partitions the block into 5000 4-bit nibbles and applies a
// chi-square statistic over the nibble frequencies.
func Poker(data []byte) bool {
	var freq [16]int
	for _, b := range data {
		freq[b>>4]++
		freq[b&0x0f]++
	}
	nibbles := len(data) * 2
	sum := 0
	for _, f := range freq {
		sum += f * f
	}
	x := 16.0/float64(nibbles)*float64(sum) - float64(nibbles)
	return x > pokerMin && x < pokerMax
}

// Runs counts maximal runs of equal bits, bucketed by length 1..6+
// separately for zeros and ones; every bucket must fall inside its
// acceptance interval.
func Runs(data []byte) bool {
	var counts [2][6]int
	forEachRun(data, func(bit, length int) {
		if length > 6 {
			length = 6
		}
		counts[bit][length-1]++
	})
	for bit := 0; bit < 2; bit++ {
		for i, bounds := range runBounds {
			if counts[bit][i] < bounds[0] || counts[bit][i] > bounds[1] {
				return false
			}
		}
	}
	return true
}

// LongRun rejects the block if any run reaches 26 bits.
func LongRun(data []byte) bool {
	ok := true
	forEachRun(data, func(bit, length int) {
		if length >= longRunLimit {
			ok = false
		}
	})
	return ok
}

// forEachRun walks the bit stream MSB-first and invokes fn once per
// maximal run with the bit value and run length.
func forEachRun(data []byte, fn func(bit, length int)) {
	if len(data) == 0 {
		return
	}
	current := int(data[0] >> 7)
	length := 0
	for _, b := range data {
		for shift := 7; shift >= 0; shift-- {
			bit := int(b>>uint(shift)) & 1
			if bit == current {
				length++
				continue
			}
			fn(current, length)
			current = bit
			length = 1
		}
	}
	fn(current, length)
}
