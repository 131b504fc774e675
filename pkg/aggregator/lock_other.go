//go:build !unix

package aggregator

// lockFile is a no-op where flock is unavailable; saves still merge with
// the on-disk document but are not mutually exclusive.
func lockFile(string) (func(), error) {
	return func() {}, nil
}
