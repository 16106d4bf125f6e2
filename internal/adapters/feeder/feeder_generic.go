//go:build !linux

package feeder

import "entropyd/internal/ports"

// Open returns the platform pool feeder. Without RNDADDENTROPY the
// best available option is a credit-less device write.
func Open(device string, opts Options) (ports.Feeder, error) {
	return NewDevWriter(device)
}
