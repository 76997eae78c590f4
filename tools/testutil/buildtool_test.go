package testutil

import (
	"os/exec"
	"runtime"
	"strings"
	"testing"
)

func TestBuildTool_WindowsSuffix(t *testing.T) {
	path := BuildTool(t, "legacyfake")
	if runtime.GOOS == "windows" {
		if !strings.HasSuffix(path, ".exe") {
			t.Fatalf("expected .exe suffix on Windows, got %q", path)
		}
	} else if strings.HasSuffix(path, ".exe") {
		t.Fatalf("did not expect .exe suffix on non-Windows, got %q", path)
	}
}

func TestInstallAs_EchoModeRecordsStdin(t *testing.T) {
	bin := BuildTool(t, "legacyfake")
	exe := InstallAs(t, bin, t.TempDir(), "delta")
	cmd := exec.Command(exe)
	cmd.Stdin = strings.NewReader("in.ens\nout.rpt\n")
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if string(out) != "in.ens\nout.rpt\n" {
		t.Fatalf("echo mismatch: %q", out)
	}
	if got := RecordedStdin(t, exe); got != "in.ens\nout.rpt\n" {
		t.Fatalf("recorded stdin mismatch: %q", got)
	}
}
