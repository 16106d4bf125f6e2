//go:build !linux

package entropyd

import "fmt"

func dropPrivileges(username string) error {
	return fmt.Errorf("privilege drop is not supported on this platform")
}
