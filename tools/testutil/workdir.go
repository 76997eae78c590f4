package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WorkDirTemp creates a directory inside the test's working directory and
// returns its path relative to it, for code that must cope with relative
// output paths. It is removed when the test ends.
func WorkDirTemp(t *testing.T, prefix string) string {
	t.Helper()
	abs, err := os.MkdirTemp(".", prefix)
	if err != nil {
		t.Fatalf("mkdir in working directory: %v", err)
	}
	rel := filepath.Base(abs)
	t.Cleanup(func() {
		if err := os.RemoveAll(rel); err != nil {
			t.Logf("remove %s: %v", rel, err)
		}
	})
	return rel
}
