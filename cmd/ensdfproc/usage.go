package main

import (
	"io"
	"strings"
)

// helpRequested returns true if any canonical help token is present.
func helpRequested(args []string) bool {
	for _, a := range args {
		if a == "--help" || a == "-h" || a == "help" {
			return true
		}
	}
	return false
}

// versionRequested returns true if any canonical version token is present.
func versionRequested(args []string) bool {
	for _, a := range args {
		if a == "--version" || a == "-version" {
			return true
		}
	}
	return false
}

// printUsage writes a comprehensive usage guide to w.
func printUsage(w io.Writer) {
	var b strings.Builder
	b.WriteString("ensdfproc - drive legacy ENSDF analysis programs and verify their output\n\n")
	b.WriteString("Usage:\n  ensdfproc [global flags] <command> [command flags]\n\n")
	b.WriteString("Commands:\n")
	b.WriteString("  run -tool NAME -params FILE [-out FILE]\n    Run a legacy program with parameters from a YAML/JSON file and print the resulting parameters\n")
	b.WriteString("  script -tool NAME -params FILE\n    Print the stdin script that run would feed the program, without running it\n")
	b.WriteString("  provision -tool NAME\n    Download the program's executable if it is missing and print its path\n")
	b.WriteString("  verify -produced FILE -reference FILE [-rules FILE] [-all] [-report-pdf FILE]\n    Compare an output file with a reference fixture; -all lists every mismatched line\n")
	b.WriteString("  tools\n    List supported programs and whether their executables are present\n")
	b.WriteString("\nGlobal flags (precedence: flag > env > config file > default):\n")
	b.WriteString("  -config string\n    Path to a YAML config file (env ENSDFPROC_CONFIG)\n")
	b.WriteString("  -tools-dir string\n    Directory holding the legacy executables (env ENSDFPROC_TOOLS_DIR; default: directory of ensdfproc)\n")
	b.WriteString("  -manifest string\n    YAML/JSON file overriding executable paths, sources and timeouts (env ENSDFPROC_MANIFEST)\n")
	b.WriteString("  -timeout duration\n    Per-run timeout; plain integers are seconds (env ENSDFPROC_TIMEOUT; default 5m)\n")
	b.WriteString("  -log-level string\n    Log level: trace|debug|info|warn|error (env ENSDFPROC_LOG_LEVEL; default info)\n")
	b.WriteString("  -log-file string\n    Also write JSON log lines to this file (env ENSDFPROC_LOG_FILE)\n")
	b.WriteString("  -audit-dir string\n    Append NDJSON audit lines for runs and downloads under this directory (env ENSDFPROC_AUDIT_DIR)\n")
	b.WriteString("  -print-config\n    Print resolved config with the source of each value and exit\n")
	b.WriteString("  --version | -version\n    Print version and exit\n")
	b.WriteString("\nExit codes:\n  0 success, 1 tool or comparison failure, 2 usage or configuration error\n")
	b.WriteString("\nExamples:\n")
	b.WriteString("  # Run alphad with parameters from a file\n")
	b.WriteString("  ensdfproc -tools-dir ./bin run -tool alphad -params alphad.yaml\n\n")
	b.WriteString("  # Check a report against its fixture, ignoring the date line\n")
	b.WriteString("  ensdfproc verify -produced out/alphad.rpt -reference ref/alphad.rpt -rules rules.yaml\n\n")
	b.WriteString("  # Show help\n")
	b.WriteString("  ensdfproc --help\n")
	outln(w, strings.TrimRight(b.String(), "\n"))
}
