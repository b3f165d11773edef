package testsupport

import (
	"path/filepath"
	"testing"

	"loom/internal/store"
)

// MustOpenStore opens a writable artifact store in a fresh run directory and
// closes it when the test finishes.
func MustOpenStore(t testing.TB) *store.Store {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "run-1"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
