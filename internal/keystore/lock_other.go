//go:build !unix && !windows

package keystore

// lockFile is a no-op on platforms without advisory file locks.
func lockFile(path string) (func() error, error) {
	return func() error { return nil }, nil
}
