package main

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"github.com/hyperifyio/ensdfkit/internal/audit"
	"github.com/hyperifyio/ensdfkit/internal/config"
	"github.com/hyperifyio/ensdfkit/internal/fault"
	"github.com/hyperifyio/ensdfkit/internal/logging"
	"github.com/hyperifyio/ensdfkit/internal/provision"
	"github.com/hyperifyio/ensdfkit/internal/tools"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(cliMain(os.Args[1:], os.Stdout, os.Stderr))
}

// command runs one subcommand with its own arguments.
type command func(g *globalFlags, args []string, stdout, stderr io.Writer) int

var commands = map[string]command{
	"run":       runCommand,
	"script":    scriptCommand,
	"provision": provisionCommand,
	"verify":    verifyCommand,
	"tools":     toolsCommand,
}

// cliMain is a testable entrypoint for the CLI. It accepts argv (excluding
// program name) and writers for stdout/stderr and returns the intended
// process exit code.
func cliMain(args []string, stdout io.Writer, stderr io.Writer) int {
	// Handle help flags prior to any parsing/validation or side effects
	if helpRequested(args) {
		printUsage(stdout)
		return exitOK
	}
	if versionRequested(args) {
		printVersion(stdout)
		return exitOK
	}

	g := newGlobalFlags()
	fs := g.newFlagSet("ensdfproc")
	fs.BoolVar(&g.printConfig, "print-config", false, "print resolved config")
	if err := g.parse(fs, args); err != nil {
		return usageError(stderr, err.Error())
	}
	if g.printConfig {
		cfg, err := g.resolve()
		if err != nil {
			outln(stderr, "error:", err)
			return exitUsage
		}
		return printResolvedConfig(cfg, stdout)
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return usageError(stderr, "error: a command is required")
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		return usageError(stderr, "error: unknown command "+rest[0])
	}
	return cmd(g, rest[1:], stdout, stderr)
}

// usageError prints msg and the usage synopsis to stderr.
func usageError(stderr io.Writer, msg string) int {
	outln(stderr, msg)
	printUsage(stderr)
	return exitUsage
}

// app is the wiring shared by the commands that touch legacy tools.
type app struct {
	cfg      config.Config
	log      *logrus.Logger
	closeLog func()
	runner   *tools.Runner
}

// newApp resolves configuration and builds the runner. Errors are
// configuration errors.
func newApp(g *globalFlags) (*app, error) {
	cfg, err := g.resolve()
	if err != nil {
		return nil, err
	}
	log, closeLog, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}
	var overrides map[string]tools.Override
	if cfg.Manifest != "" {
		overrides, err = tools.LoadManifest(cfg.Manifest)
		if err != nil {
			closeLog()
			return nil, err
		}
	}
	var auditLog *audit.Log
	if cfg.AuditDir != "" {
		auditLog = audit.New(cfg.AuditDir)
	}
	prov := provision.New(nil, log, auditLog)
	prov.LockWait = cfg.LockWait.Std()
	runner := tools.NewRunner(tools.Options{
		Dir:            cfg.ToolsDir,
		ExtractDir:     cfg.ExtractDir(),
		Timeout:        cfg.Timeout.Std(),
		MaxOutputKB:    cfg.MaxOutputKB,
		EnvPassthrough: cfg.EnvPassthrough,
		Overrides:      overrides,
		Provisioner:    prov,
		Audit:          auditLog,
		Logger:         log,
	})
	log.WithFields(logrus.Fields{
		"tools_dir": cfg.ToolsDir,
		"timeout":   cfg.Timeout.String(),
	}).Debug("configuration resolved")
	return &app{cfg: cfg, log: log, closeLog: closeLog, runner: runner}, nil
}

func (a *app) Close() {
	if a.closeLog != nil {
		a.closeLog()
	}
}

// signalContext is canceled on interrupt so a running legacy process is
// killed instead of orphaned.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// exitCodeFor maps an error to the process exit code.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case fault.Is(err, fault.KindConfiguration):
		return exitUsage
	default:
		return exitFailure
	}
}

// reportError logs err with its phase and prints it to stderr.
func reportError(log logrus.FieldLogger, stderr io.Writer, err error) int {
	kind := fault.KindOf(err)
	if log != nil {
		log.WithError(err).WithField("kind", string(kind)).Debug("command failed")
	}
	outln(stderr, "error:", err)
	return exitCodeFor(err)
}
