package main

import (
	"flag"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hyperifyio/ensdfkit/internal/config"
)

// globalFlags are accepted before the command name and again among the
// command's own flags.
type globalFlags struct {
	configPath  string
	toolsDir    string
	manifest    string
	timeout     time.Duration
	logLevel    string
	logFile     string
	auditDir    string
	printConfig bool

	// set records the flags given on the command line, by flag name.
	set map[string]bool
}

// flagKeys maps global flag names to config keys.
var flagKeys = map[string]string{
	"tools-dir": "tools_dir",
	"manifest":  "manifest",
	"timeout":   "timeout",
	"log-level": "log_level",
	"log-file":  "log_file",
	"audit-dir": "audit_dir",
}

func newGlobalFlags() *globalFlags {
	return &globalFlags{set: map[string]bool{}}
}

// newFlagSet returns a quiet flag set that carries the global flags.
func (g *globalFlags) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&g.configPath, "config", g.configPath, "config file")
	fs.StringVar(&g.toolsDir, "tools-dir", g.toolsDir, "tools directory")
	fs.StringVar(&g.manifest, "manifest", g.manifest, "tool manifest")
	fs.Var(durationFlexFlag{dst: &g.timeout}, "timeout", "per-run timeout")
	fs.StringVar(&g.logLevel, "log-level", g.logLevel, "log level")
	fs.StringVar(&g.logFile, "log-file", g.logFile, "log file")
	fs.StringVar(&g.auditDir, "audit-dir", g.auditDir, "audit directory")
	return fs
}

// parse parses args into fs and records which flags were given.
func (g *globalFlags) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) { g.set[f.Name] = true })
	return nil
}

// resolve loads the config file and environment and layers the flags on
// top.
func (g *globalFlags) resolve() (config.Config, error) {
	path := g.configPath
	if !g.set["config"] {
		path = strings.TrimSpace(os.Getenv(config.EnvPrefix + "CONFIG"))
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	for name, key := range flagKeys {
		if !g.set[name] {
			continue
		}
		switch name {
		case "tools-dir":
			cfg.ToolsDir = g.toolsDir
		case "manifest":
			cfg.Manifest = g.manifest
		case "timeout":
			cfg.Timeout = config.Duration(g.timeout)
		case "log-level":
			cfg.LogLevel = g.logLevel
		case "log-file":
			cfg.LogFile = g.logFile
		case "audit-dir":
			cfg.AuditDir = g.auditDir
		}
		cfg.Set(key)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}
