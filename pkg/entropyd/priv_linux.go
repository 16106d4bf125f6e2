//go:build linux

package entropyd

import (
	"fmt"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"
)

// dropPrivileges switches the process to the given user after the
// privileged pool handle has been opened. Group first, then user: once
// the uid is gone the gid can no longer change.
func dropPrivileges(username string) error {
	u, err := user.Lookup(username)
	if err != nil {
		return err
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("parse uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return fmt.Errorf("parse gid %q: %w", u.Gid, err)
	}
	if err := unix.Setgid(gid); err != nil {
		return fmt.Errorf("setgid %d: %w", gid, err)
	}
	if err := unix.Setuid(uid); err != nil {
		return fmt.Errorf("setuid %d: %w", uid, err)
	}
	return nil
}
