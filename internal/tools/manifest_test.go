package tools

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/ensdfkit/internal/fault"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "tools.yaml")
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return file
}

func TestLoadManifest_OK(t *testing.T) {
	file := writeManifest(t, `
tools:
  - name: gabs
    executable: ./bin/gabs
    sourceURL: file:///opt/mirror/gabs
    timeoutSec: 30
    envPassthrough: ["BrIccHome", " TZ ", "TZ"]
  - name: bricc
    archive: false
    executable: /opt/bricc/bricc
`)
	reg, err := LoadManifest(file)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reg) != 2 {
		t.Fatalf("unexpected size: %d", len(reg))
	}
	gabs := reg["gabs"]
	if want := filepath.Join(filepath.Dir(file), "bin", "gabs"); gabs.Executable != want {
		t.Fatalf("executable: got %q want %q", gabs.Executable, want)
	}
	if strings.Join(gabs.EnvPassthrough, ",") != "BrIccHome,TZ" {
		t.Fatalf("envPassthrough: %v", gabs.EnvPassthrough)
	}

	tool := gabs.apply(catalog["gabs"])
	if tool.SourceURL != "file:///opt/mirror/gabs" || tool.Timeout != 30*time.Second {
		t.Fatalf("override not applied: %+v", tool)
	}
	if tool.ExpectedSize != 8704 {
		t.Fatalf("unset fields must keep catalog values, got %d", tool.ExpectedSize)
	}
	bricc := reg["bricc"].apply(catalog["bricc"])
	if bricc.Archive || bricc.Executable != "/opt/bricc/bricc" {
		t.Fatalf("bricc override: %+v", bricc)
	}
}

func TestLoadManifest_JSON(t *testing.T) {
	file := writeManifest(t, `{"tools":[{"name":"delta","executable":"delta-v2"}]}`)
	reg, err := LoadManifest(file)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(reg["delta"].Executable) != "delta-v2" || !filepath.IsAbs(reg["delta"].Executable) {
		t.Fatalf("executable: %q", reg["delta"].Executable)
	}
}

func TestLoadManifest_Errors(t *testing.T) {
	cases := map[string]string{
		"duplicate name": "tools:\n  - name: delta\n  - name: delta\n",
		"missing name":   "tools:\n  - executable: x\n",
		"unknown tool":   "tools:\n  - name: logft\n",
		"escape":         "tools:\n  - name: delta\n    executable: ../../usr/bin/delta\n",
		"bad env":        "tools:\n  - name: delta\n    envPassthrough: [\"1BAD\"]\n",
		"empty env":      "tools:\n  - name: delta\n    envPassthrough: [\"  \"]\n",
		"negative":       "tools:\n  - name: delta\n    timeoutSec: -1\n",
		"not yaml":       "tools: [",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadManifest(writeManifest(t, content))
			if fault.KindOf(err) != fault.KindConfiguration {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestLoadManifest_MissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "none.yaml"))
	if fault.KindOf(err) != fault.KindConfiguration || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected configuration error wrapping not-exist, got %v", err)
	}
}

func TestRunner_DescriptorFromOverrides(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(Options{Dir: dir})
	gabs, err := r.Tool("gabs")
	if err != nil {
		t.Fatal(err)
	}
	d := r.Descriptor(gabs)
	if d.LocalPath != filepath.Join(dir, "gabs") || d.Archive || d.SourceURL == "" {
		t.Fatalf("gabs descriptor: %+v", d)
	}

	bricc, err := r.Tool("bricc")
	if err != nil {
		t.Fatal(err)
	}
	d = r.Descriptor(bricc)
	if d.LocalPath != filepath.Join(dir, "bricc.tar.gz") || !d.Archive || d.Runnable() != filepath.Join(dir, "BriccV23", "bricc") {
		t.Fatalf("bricc descriptor: %+v runnable=%s", d, d.Runnable())
	}
}
