package main

import (
	"testing"
	"time"

	"github.com/hyperifyio/ensdfkit/internal/config"
)

func TestGlobalFlags_AcceptedAfterCommand(t *testing.T) {
	isolateEnv(t)
	g := newGlobalFlags()
	root := g.newFlagSet("ensdfproc")
	if err := g.parse(root, []string{"-tools-dir", "/opt/a", "tools"}); err != nil {
		t.Fatalf("root parse: %v", err)
	}
	sub := g.newFlagSet("tools")
	if err := g.parse(sub, []string{"-timeout", "90", "-log-level", "debug"}); err != nil {
		t.Fatalf("sub parse: %v", err)
	}
	if g.toolsDir != "/opt/a" {
		t.Fatalf("root value lost after command flag set: %q", g.toolsDir)
	}
	cfg, err := g.resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.ToolsDir != "/opt/a" || cfg.Timeout.Std() != 90*time.Second || cfg.LogLevel != "debug" {
		t.Fatalf("resolved: %+v", cfg)
	}
	for _, key := range []string{"tools_dir", "timeout", "log_level"} {
		if cfg.Sources[key] != config.SourceFlag {
			t.Fatalf("%s source: %q", key, cfg.Sources[key])
		}
	}
	if cfg.Sources["manifest"] != config.SourceDefault {
		t.Fatalf("manifest source: %q", cfg.Sources["manifest"])
	}
}

func TestDurationFlexFlag(t *testing.T) {
	var d time.Duration
	f := durationFlexFlag{dst: &d}
	if err := f.Set("45"); err != nil || d != 45*time.Second {
		t.Fatalf("plain seconds: %v %v", d, err)
	}
	if err := f.Set("750ms"); err != nil || d != 750*time.Millisecond {
		t.Fatalf("go duration: %v %v", d, err)
	}
	if err := f.Set("-1"); err == nil {
		t.Fatalf("expected error for negative seconds")
	}
	if f.String() != "750ms" {
		t.Fatalf("String: %q", f.String())
	}
}
