package tools

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hyperifyio/ensdfkit/internal/audit"
	"github.com/hyperifyio/ensdfkit/internal/driver"
	"github.com/hyperifyio/ensdfkit/internal/fault"
	"github.com/hyperifyio/ensdfkit/internal/logging"
	"github.com/hyperifyio/ensdfkit/internal/provision"
	"github.com/hyperifyio/ensdfkit/internal/sandbox"
	"github.com/hyperifyio/ensdfkit/internal/script"
)

// Options configures a Runner.
type Options struct {
	Dir            string // tools directory holding executables and aux files
	ExtractDir     string // where archives unpack; defaults to Dir
	Timeout        time.Duration
	MaxOutputKB    int
	EnvPassthrough []string
	Overrides      map[string]Override
	Provisioner    *provision.Provisioner
	Audit          *audit.Log
	Logger         logrus.FieldLogger
}

// Runner invokes catalog tools. It holds no per-call state and may be used
// from several goroutines.
type Runner struct {
	opts Options
	log  logrus.FieldLogger
}

// NewRunner returns a runner for the tools under opts.Dir.
func NewRunner(opts Options) *Runner {
	if opts.ExtractDir == "" {
		opts.ExtractDir = opts.Dir
	}
	log := logging.OrDiscard(opts.Logger)
	if opts.Provisioner == nil {
		opts.Provisioner = provision.New(nil, log, opts.Audit)
	}
	return &Runner{opts: opts, log: log}
}

// Tool returns the catalog entry for name with manifest overrides applied.
func (r *Runner) Tool(name string) (Tool, error) {
	t, ok := Lookup(name)
	if !ok {
		return Tool{}, fault.Configf(name, "unknown tool")
	}
	if o, ok := r.opts.Overrides[name]; ok {
		t = o.apply(t)
	}
	return t, nil
}

// Script validates p and returns the stdin script for the named tool.
func (r *Runner) Script(name string, p *script.Params) (script.Script, error) {
	t, err := r.Tool(name)
	if err != nil {
		return nil, err
	}
	return t.Grammar.Build(p)
}

// Descriptor returns how the tool's executable is provisioned.
func (r *Runner) Descriptor(t Tool) provision.Descriptor {
	d := provision.Descriptor{
		Name:         t.Name,
		SourceURL:    t.SourceURL,
		Archive:      t.Archive,
		ExpectedSize: t.ExpectedSize,
	}
	if !t.Archive {
		d.LocalPath = r.path(t.Executable)
		return d
	}
	archive := t.ArchiveName
	if archive == "" {
		archive = t.Name + ".tar.gz"
	}
	d.LocalPath = r.path(archive)
	d.ExtractDir = r.opts.ExtractDir
	d.Entry = t.Executable
	if filepath.IsAbs(t.Executable) {
		d.ExtractDir = filepath.Dir(t.Executable)
		d.Entry = filepath.Base(t.Executable)
	}
	return d
}

func (r *Runner) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(r.opts.Dir, filepath.FromSlash(name))
}

// Provision makes sure the named tool's executable exists and returns it.
func (r *Runner) Provision(ctx context.Context, name string) (string, error) {
	t, err := r.Tool(name)
	if err != nil {
		return "", err
	}
	return r.opts.Provisioner.Ensure(ctx, r.Descriptor(t))
}

// Run validates p, provisions the tool, feeds it the script built from p
// and returns the parameter set. Tools that publish their stdout as a field
// get a copy of p with that field added; p itself is never modified.
func (r *Runner) Run(ctx context.Context, name string, p *script.Params) (*script.Params, error) {
	t, err := r.Tool(name)
	if err != nil {
		return nil, err
	}
	s, err := t.Grammar.Build(p)
	if err != nil {
		return nil, err
	}
	exe, err := r.opts.Provisioner.Ensure(ctx, r.Descriptor(t))
	if err != nil {
		return nil, err
	}

	opts := driver.Options{
		Name:           t.Name,
		Timeout:        r.opts.Timeout,
		EnvPassthrough: append(append([]string(nil), r.opts.EnvPassthrough...), t.EnvPassthrough...),
		MaxOutputKB:    r.opts.MaxOutputKB,
		Audit:          r.opts.Audit,
		Logger:         r.log,
	}
	if t.Timeout > 0 {
		opts.Timeout = t.Timeout
	}
	if t.HomeEnv != "" {
		opts.Env = append(opts.Env, t.HomeEnv+"="+filepath.Dir(exe))
	}
	if len(t.AuxFiles) > 0 {
		scratch, err := r.prepareAux(t)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := scratch.Close(); err != nil {
				r.log.WithError(err).WithField("tool", t.Name).Warn("remove scratch directory")
			}
		}()
		opts.Dir = scratch.Dir
	}

	res, err := driver.Run(ctx, exe, s, opts)
	if err != nil {
		return nil, err
	}
	if res.Truncated && (t.StdoutFile != "" || t.StdoutField != "") {
		return nil, fault.Wrap(fault.KindIO, t.Name, "capture stdout", sandbox.ErrOutputLimit)
	}

	out := p
	if t.StdoutFile != "" {
		dst, err := p.String(t.StdoutFile)
		if err != nil {
			return nil, fault.Configf(t.Name, "%v", err)
		}
		if err := os.WriteFile(dst, res.Stdout, 0o644); err != nil {
			return nil, fault.Wrap(fault.KindIO, t.Name, "write "+t.StdoutFile, err)
		}
	}
	if t.StdoutField != "" {
		out = p.Clone()
		out.Set(t.StdoutField, string(res.Stdout))
	}
	return out, nil
}

// prepareAux gives the call its own working directory with the tool's aux
// files linked in, so concurrent calls never share link names.
func (r *Runner) prepareAux(t Tool) (*sandbox.Scratch, error) {
	scratch, err := sandbox.NewScratch("", "ensdf-"+t.Name+"-")
	if err != nil {
		return nil, fault.Wrap(fault.KindIO, t.Name, "scratch directory", err)
	}
	for _, name := range t.AuxFiles {
		if err := scratch.Link(r.path(name), name); err != nil {
			_ = scratch.Close()
			return nil, fault.Wrap(fault.KindProvision, t.Name, "aux file", errors.Wrapf(err, "link %s", name))
		}
	}
	return scratch, nil
}
