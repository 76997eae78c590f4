// Package audit appends one NDJSON line per legacy tool execution or
// provisioning event. Audit failures never affect the audited operation.
package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// timeNow is a package-level clock to enable deterministic tests.
var timeNow = time.Now

// Log writes NDJSON lines to <Dir>/YYYYMMDD.log. A nil *Log or an empty Dir
// disables auditing.
type Log struct {
	Dir string
	mu  sync.Mutex
}

// New returns an audit log rooted at dir.
func New(dir string) *Log {
	return &Log{Dir: dir}
}

// RunEntry describes one legacy tool process run.
type RunEntry struct {
	TS          string   `json:"ts"`
	RunID       string   `json:"runId"`
	Event       string   `json:"event"`
	Tool        string   `json:"tool"`
	Argv        []string `json:"argv"`
	CWD         string   `json:"cwd"`
	Exit        int      `json:"exit"`
	MS          int64    `json:"ms"`
	StdinLines  int      `json:"stdinLines"`
	StdoutBytes int      `json:"stdoutBytes"`
	StderrBytes int      `json:"stderrBytes"`
	Truncated   bool     `json:"truncated"`
	EnvKeys     []string `json:"envKeys,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// ProvisionEntry describes one executable download.
type ProvisionEntry struct {
	TS       string `json:"ts"`
	RunID    string `json:"runId"`
	Event    string `json:"event"`
	Tool     string `json:"tool"`
	URL      string `json:"url"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	Expected int64  `json:"expected,omitempty"`
	Archive  bool   `json:"archive,omitempty"`
	MS       int64  `json:"ms"`
	Error    string `json:"error,omitempty"`
}

// NewRunID returns a fresh identifier correlating log and audit lines.
func NewRunID() string {
	return uuid.NewString()
}

// Stamp returns the current time formatted for entries.
func Stamp() string {
	return timeNow().UTC().Format(time.RFC3339Nano)
}

// Run records a process run. Argv and CWD are redacted.
func (l *Log) Run(e RunEntry) {
	if e.TS == "" {
		e.TS = Stamp()
	}
	if e.Event == "" {
		e.Event = "run"
	}
	e.Argv = RedactAll(append([]string(nil), e.Argv...))
	e.CWD = Redact(e.CWD)
	e.Error = Redact(e.Error)
	if err := l.append(e); err != nil {
		_ = err
	}
}

// Provision records a download.
func (l *Log) Provision(e ProvisionEntry) {
	if e.TS == "" {
		e.TS = Stamp()
	}
	if e.Event == "" {
		e.Event = "provision"
	}
	e.URL = Redact(e.URL)
	e.Error = Redact(e.Error)
	if err := l.append(e); err != nil {
		_ = err
	}
}

func (l *Log) append(entry any) error {
	if l == nil || l.Dir == "" {
		return nil
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(l.Dir, timeNow().UTC().Format("20060102")+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			_ = err
		}
	}()
	_, err = f.Write(append(b, '\n'))
	return err
}
