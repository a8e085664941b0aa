package main

import "golang.org/x/sys/unix"

// withUmask runs fn with the process umask set to mask and restores the
// previous value afterwards.
func withUmask(mask int, fn func() error) error {
	previous := unix.Umask(mask)
	defer unix.Umask(previous)
	return fn()
}
