package testutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

// BuildTool builds the named tool binary into a test-scoped temporary
// directory and returns the absolute path to the produced executable.
//
// Sources are looked up under tools/cmd/<name> from the repository root.
func BuildTool(t *testing.T, name string) string {
	t.Helper()

	repoRoot, err := findRepoRoot()
	if err != nil {
		t.Fatalf("find repo root: %v", err)
	}

	binName := name
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	outPath := filepath.Join(t.TempDir(), binName)

	srcPath := filepath.Join(repoRoot, "tools", "cmd", name)
	if fi, statErr := os.Stat(srcPath); statErr != nil || !(fi.IsDir() || fi.Mode().IsRegular()) {
		t.Fatalf("tool sources not found for %q under %s", name, filepath.Join(repoRoot, "tools", "cmd"))
	}

	cmd := exec.Command("go", "build", "-o", outPath, srcPath)
	cmd.Dir = repoRoot
	// Inherit environment; ensure CGO disabled for determinism
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build %s from %s failed: %v\n%s", name, relOrSame(repoRoot, srcPath), err, string(output))
	}
	return outPath
}

// InstallAs copies the executable bin into dir under name, the way a
// legacy program sits in the tools directory, and returns its path.
func InstallAs(t *testing.T, bin, dir, name string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	dst := filepath.Join(dir, name)
	src, err := os.Open(bin)
	if err != nil {
		t.Fatalf("open %s: %v", bin, err)
	}
	defer src.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o755)
	if err != nil {
		t.Fatalf("create %s: %v", dst, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		t.Fatalf("copy to %s: %v", dst, err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close %s: %v", dst, err)
	}
	return dst
}

// RecordedStdin returns what a legacyfake installed at path read on stdin.
func RecordedStdin(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path + ".stdin")
	if err != nil {
		t.Fatalf("read recorded stdin: %v", err)
	}
	return string(b)
}

func findRepoRoot() (string, error) {
	// Start from CWD and walk up until go.mod is found
	start, err := os.Getwd()
	if err != nil || start == "" {
		return "", errors.New("cannot determine working directory")
	}
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found from %s upward", start)
		}
		dir = parent
	}
}

func relOrSame(base, target string) string {
	if rel, err := filepath.Rel(base, target); err == nil {
		return rel
	}
	return target
}
