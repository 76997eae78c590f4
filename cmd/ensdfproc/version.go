package main

import (
	"io"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.buildDate=...".
var (
	version   = "v0.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// printVersion writes one line. Without -ldflags the VCS stamp recorded by
// the go tool fills in commit and build date.
func printVersion(w io.Writer) {
	c, built := commit, buildDate
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && c == "unknown":
				c = s.Value
			case s.Key == "vcs.time" && built == "unknown":
				built = s.Value
			}
		}
	}
	outf(w, "ensdfproc version %s (commit %s, built %s, %s)\n", version, shortCommit(c), built, runtime.Version())
}

func shortCommit(c string) string {
	switch c = strings.TrimSpace(c); {
	case c == "":
		return "unknown"
	case len(c) > 7:
		return c[:7]
	}
	return c
}
