//go:build linux || darwin || freebsd || netbsd || openbsd

package storage

import (
	"errors"

	"golang.org/x/sys/unix"
)

// syncDir flushes directory metadata so a completed rename survives a crash.
func syncDir(dir string) error {
	fd, err := unix.Open(dir, unix.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	if err := unix.Fsync(fd); err != nil && !errors.Is(err, unix.EINVAL) {
		return err
	}
	return nil
}
