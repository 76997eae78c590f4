// Package driver runs one legacy console program: it writes a prepared
// stdin script, drains the program's output and reports its exit status.
package driver

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hyperifyio/ensdfkit/internal/audit"
	"github.com/hyperifyio/ensdfkit/internal/fault"
	"github.com/hyperifyio/ensdfkit/internal/logging"
	"github.com/hyperifyio/ensdfkit/internal/sandbox"
	"github.com/hyperifyio/ensdfkit/internal/script"
)

// DefaultTimeout bounds a run when Options.Timeout is zero.
const DefaultTimeout = 5 * time.Minute

// waitDelay bounds how long Wait keeps draining output after the process
// exited or was killed, in case a grandchild still holds the pipes.
const waitDelay = 2 * time.Second

// stderrKB caps captured stderr; it is only used for error messages.
const stderrKB = 64

// Options configures one run.
type Options struct {
	Name           string        // tool name for logs and audit; defaults to the executable base name
	Dir            string        // working directory; empty means the caller's
	Timeout        time.Duration // 0 uses DefaultTimeout
	Env            []string      // extra KEY=VALUE entries
	EnvPassthrough []string      // parent environment keys passed through
	MaxOutputKB    int           // stdout capture cap; 0 uses the sandbox default
	Audit          *audit.Log
	Logger         logrus.FieldLogger
}

// Result is what a finished run produced. A zero exit status does not mean
// the program did what was asked: legacy programs rarely signal failure
// through their exit code, so output has to be validated separately.
type Result struct {
	ExitStatus int
	Stdout     []byte
	Stderr     []byte
	Truncated  bool
	Duration   time.Duration
}

// Run executes path, writes s to its stdin, closes stdin and waits for the
// process to exit. Stdout is captured while stdin is written so a program
// that prints before reading cannot stall on a full pipe.
func Run(ctx context.Context, path string, s script.Script, opts Options) (Result, error) {
	name := opts.Name
	if name == "" {
		name = filepath.Base(path)
	}
	log := logging.OrDiscard(opts.Logger).WithField("tool", name)
	runID := audit.NewRunID()
	start := time.Now()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := sandbox.WithWallTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path)
	cmd.Dir = opts.Dir
	cmd.WaitDelay = waitDelay
	env, passedKeys := buildEnvironment(opts)
	cmd.Env = env

	stdout := sandbox.NewBoundedBuffer(opts.MaxOutputKB)
	stderr := sandbox.NewBoundedBuffer(stderrKB)
	cmd.Stdout = stdout.Sink()
	cmd.Stderr = stderr.Sink()
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Result{}, fault.Wrap(fault.KindLaunch, name, "stdin pipe", err)
	}

	log.WithFields(logrus.Fields{"path": path, "dir": opts.Dir, "lines": s.Len(), "run": runID}).Debug("starting legacy tool")
	if err := cmd.Start(); err != nil {
		writeAudit(opts, name, runID, path, start, -1, s.Len(), nil, nil, false, passedKeys, err)
		return Result{}, fault.Wrap(fault.KindLaunch, name, "start", err)
	}

	_, writeErr := stdin.Write(s.Bytes())
	if err := stdin.Close(); err != nil && writeErr == nil && !errors.Is(err, os.ErrClosed) {
		log.WithError(err).Debug("stdin close")
	}
	waitErr := cmd.Wait()

	res := Result{
		ExitStatus: exitStatus(cmd, waitErr),
		Stdout:     stdout.Bytes(),
		Stderr:     stderr.Bytes(),
		Truncated:  stdout.Truncated(),
		Duration:   time.Since(start),
	}
	runErr := classify(ctx, name, res, writeErr, waitErr)
	writeAudit(opts, name, runID, path, start, res.ExitStatus, s.Len(), res.Stdout, res.Stderr, res.Truncated, passedKeys, runErr)

	fields := logrus.Fields{"exit": res.ExitStatus, "ms": res.Duration.Milliseconds(), "stdoutBytes": len(res.Stdout), "run": runID}
	if runErr != nil {
		log.WithFields(fields).WithError(runErr).Warn("legacy tool failed")
		return res, runErr
	}
	if res.Truncated {
		log.WithFields(fields).Warn("stdout exceeded capture limit and was truncated")
	}
	log.WithFields(fields).Debug("legacy tool finished")
	return res, nil
}

// classify maps the outcome of a run to a phase error. A done context wins
// over everything else because killing the process produces secondary
// errors. Only an expired deadline is a timeout; a canceled caller is not.
func classify(ctx context.Context, name string, res Result, writeErr, waitErr error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		kind := fault.KindCanceled
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			kind = fault.KindTimeout
		}
		return &fault.Error{Kind: kind, Tool: name, Op: "wait", Status: res.ExitStatus, Err: ctxErr}
	}
	if writeErr != nil {
		return &fault.Error{Kind: fault.KindIO, Tool: name, Op: "write stdin", Status: res.ExitStatus, Err: writeErr}
	}
	if waitErr == nil {
		return nil
	}
	var ee *exec.ExitError
	if errors.As(waitErr, &ee) {
		msg := strings.TrimSpace(string(res.Stderr))
		if msg == "" {
			msg = waitErr.Error()
		}
		return &fault.Error{Kind: fault.KindExit, Tool: name, Op: "wait", Status: res.ExitStatus, Err: errors.New(msg)}
	}
	return &fault.Error{Kind: fault.KindIO, Tool: name, Op: "wait", Status: res.ExitStatus, Err: waitErr}
}

func exitStatus(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}

// buildEnvironment constructs a minimal environment for the tool process
// and returns it along with the passed-through keys (for audit visibility).
func buildEnvironment(opts Options) (env []string, passedKeys []string) {
	if v := os.Getenv("PATH"); v != "" {
		env = append(env, "PATH="+v)
	}
	if v := os.Getenv("HOME"); v != "" {
		env = append(env, "HOME="+v)
	}
	for _, key := range opts.EnvPassthrough {
		if val, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+val)
			passedKeys = append(passedKeys, key)
		}
	}
	for _, kv := range opts.Env {
		if !strings.Contains(kv, "=") {
			continue
		}
		env = append(env, kv)
		passedKeys = append(passedKeys, kv[:strings.Index(kv, "=")])
	}
	return env, passedKeys
}

func writeAudit(opts Options, name, runID, path string, start time.Time, exit, lines int, stdout, stderr []byte, truncated bool, envKeys []string, runErr error) {
	cwd := opts.Dir
	if cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			cwd = wd
		}
	}
	entry := audit.RunEntry{
		RunID:       runID,
		Tool:        name,
		Argv:        []string{path},
		CWD:         cwd,
		Exit:        exit,
		MS:          time.Since(start).Milliseconds(),
		StdinLines:  lines,
		StdoutBytes: len(stdout),
		StderrBytes: len(stderr),
		Truncated:   truncated,
		EnvKeys:     append([]string(nil), envKeys...),
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	opts.Audit.Run(entry)
}
