//go:build !unix

package scratch

import (
	"os"
	"path/filepath"
)

func checkAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	return os.Remove(testFile)
}
