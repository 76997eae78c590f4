package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperifyio/ensdfkit/internal/compare"
	"github.com/hyperifyio/ensdfkit/internal/report"
	"github.com/hyperifyio/ensdfkit/internal/script"
	"github.com/hyperifyio/ensdfkit/internal/tools"
)

// toolParams holds the flags shared by run and script.
type toolParams struct {
	tool   string
	params string
}

func (tp *toolParams) load() (*script.Params, error) {
	if strings.TrimSpace(tp.tool) == "" {
		return nil, fmt.Errorf("-tool is required")
	}
	if strings.TrimSpace(tp.params) == "" {
		return nil, fmt.Errorf("-params is required")
	}
	data, err := os.ReadFile(tp.params)
	if err != nil {
		return nil, fmt.Errorf("read params: %w", err)
	}
	p, err := script.ParseParams(data)
	if err != nil {
		return nil, fmt.Errorf("parse params %s: %w", tp.params, err)
	}
	return p, nil
}

func runCommand(g *globalFlags, args []string, stdout, stderr io.Writer) int {
	var tp toolParams
	var out string
	fs := g.newFlagSet("run")
	fs.StringVar(&tp.tool, "tool", "", "tool name")
	fs.StringVar(&tp.params, "params", "", "parameter file")
	fs.StringVar(&out, "out", "", "write resulting parameters here instead of stdout")
	if err := g.parse(fs, args); err != nil {
		return usageError(stderr, err.Error())
	}
	p, err := tp.load()
	if err != nil {
		return usageError(stderr, "error: "+err.Error())
	}
	a, err := newApp(g)
	if err != nil {
		outln(stderr, "error:", err)
		return exitUsage
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()
	start := time.Now()
	result, err := a.runner.Run(ctx, tp.tool, p)
	if err != nil {
		return reportError(a.log, stderr, err)
	}
	a.log.WithField("tool", tp.tool).WithField("ms", time.Since(start).Milliseconds()).Info("run finished")

	b, err := yaml.Marshal(result)
	if err != nil {
		return reportError(a.log, stderr, err)
	}
	if out == "" {
		outf(stdout, "%s", b)
		return exitOK
	}
	if err := os.WriteFile(out, b, 0o644); err != nil {
		return reportError(a.log, stderr, fmt.Errorf("write %s: %w", out, err))
	}
	return exitOK
}

// scriptCommand prints the stdin script without provisioning or running
// anything.
func scriptCommand(g *globalFlags, args []string, stdout, stderr io.Writer) int {
	var tp toolParams
	fs := g.newFlagSet("script")
	fs.StringVar(&tp.tool, "tool", "", "tool name")
	fs.StringVar(&tp.params, "params", "", "parameter file")
	if err := g.parse(fs, args); err != nil {
		return usageError(stderr, err.Error())
	}
	p, err := tp.load()
	if err != nil {
		return usageError(stderr, "error: "+err.Error())
	}
	a, err := newApp(g)
	if err != nil {
		outln(stderr, "error:", err)
		return exitUsage
	}
	defer a.Close()
	s, err := a.runner.Script(tp.tool, p)
	if err != nil {
		return reportError(a.log, stderr, err)
	}
	outf(stdout, "%s", s.Bytes())
	return exitOK
}

func provisionCommand(g *globalFlags, args []string, stdout, stderr io.Writer) int {
	var name string
	fs := g.newFlagSet("provision")
	fs.StringVar(&name, "tool", "", "tool name")
	if err := g.parse(fs, args); err != nil {
		return usageError(stderr, err.Error())
	}
	if strings.TrimSpace(name) == "" {
		return usageError(stderr, "error: -tool is required")
	}
	a, err := newApp(g)
	if err != nil {
		outln(stderr, "error:", err)
		return exitUsage
	}
	defer a.Close()
	ctx, cancel := signalContext()
	defer cancel()
	path, err := a.runner.Provision(ctx, name)
	if err != nil {
		return reportError(a.log, stderr, err)
	}
	outln(stdout, path)
	return exitOK
}

// verifyCommand compares one produced file with its fixture. It needs no
// tools directory, so configuration is only resolved for logging.
func verifyCommand(g *globalFlags, args []string, stdout, stderr io.Writer) int {
	var produced, reference, rulesPath, pdfPath string
	var all bool
	fs := g.newFlagSet("verify")
	fs.StringVar(&produced, "produced", "", "produced output file")
	fs.StringVar(&reference, "reference", "", "reference fixture")
	fs.StringVar(&rulesPath, "rules", "", "exception rules file (YAML or JSON)")
	fs.BoolVar(&all, "all", false, "report every mismatched line instead of stopping at the first")
	fs.StringVar(&pdfPath, "report-pdf", "", "also write a PDF report")
	if err := g.parse(fs, args); err != nil {
		return usageError(stderr, err.Error())
	}
	if produced == "" || reference == "" {
		return usageError(stderr, "error: -produced and -reference are required")
	}
	a, err := newApp(g)
	if err != nil {
		outln(stderr, "error:", err)
		return exitUsage
	}
	defer a.Close()

	var rules []compare.Rule
	if rulesPath != "" {
		data, err := os.ReadFile(rulesPath)
		if err != nil {
			outln(stderr, "error: read rules:", err)
			return exitUsage
		}
		if rules, err = compare.ParseRules(data); err != nil {
			outln(stderr, "error:", err)
			return exitUsage
		}
	}

	o := report.Outcome{Produced: produced, Reference: reference}
	if all {
		o.Result, o.Err = compare.Diff(produced, reference, rules)
	} else {
		o.Result, o.Err = compare.Compare(produced, reference, rules)
	}
	a.log.WithField("produced", produced).WithField("status", o.Status()).Info("verified")

	outcomes := []report.Outcome{o}
	if err := report.WriteText(stdout, outcomes); err != nil {
		return reportError(a.log, stderr, err)
	}
	if pdfPath != "" {
		if err := report.WritePDF(pdfPath, "ENSDF output verification", outcomes, time.Now()); err != nil {
			return reportError(a.log, stderr, fmt.Errorf("write pdf report: %w", err))
		}
	}
	switch {
	case o.Status() == report.StatusPass:
		return exitOK
	case o.Err == nil:
		return exitFailure
	default:
		return exitCodeFor(o.Err)
	}
}

// toolsCommand lists the catalog and where each runnable is expected.
func toolsCommand(g *globalFlags, args []string, stdout, stderr io.Writer) int {
	fs := g.newFlagSet("tools")
	if err := g.parse(fs, args); err != nil {
		return usageError(stderr, err.Error())
	}
	a, err := newApp(g)
	if err != nil {
		outln(stderr, "error:", err)
		return exitUsage
	}
	defer a.Close()

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	outln(tw, "NAME\tSTATUS\tPATH\tDESCRIPTION")
	for _, name := range tools.Names() {
		t, err := a.runner.Tool(name)
		if err != nil {
			return reportError(a.log, stderr, err)
		}
		d := a.runner.Descriptor(t)
		status := "present"
		if _, err := os.Stat(d.Runnable()); err != nil {
			status = "missing"
			if d.SourceURL != "" {
				status = "downloadable"
			}
		}
		outf(tw, "%s\t%s\t%s\t%s\n", name, status, d.Runnable(), t.Description)
	}
	if err := tw.Flush(); err != nil {
		return reportError(a.log, stderr, err)
	}
	return exitOK
}
