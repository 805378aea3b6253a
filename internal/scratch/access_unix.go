//go:build unix

package scratch

import "golang.org/x/sys/unix"

// checkAccess verifies the directory can be listed and written.
func checkAccess(dir string) error {
	return unix.Access(dir, unix.R_OK|unix.W_OK|unix.X_OK)
}
