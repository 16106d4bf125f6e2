//go:build !linux && !darwin

package main

import "fmt"

func detach() error {
	return fmt.Errorf("background mode is not supported on this platform; use -f")
}
