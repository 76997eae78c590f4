// Package config resolves ensdfproc settings from defaults, an optional YAML
// file and ENSDFPROC_* environment variables. Command-line flags are layered
// on top by the caller.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hyperifyio/ensdfkit/internal/logging"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "ENSDFPROC_"

const (
	DefaultTimeout     = 5 * time.Minute
	DefaultLockWait    = 30 * time.Second
	DefaultMaxOutputKB = 4096
	DefaultLogLevel    = "info"
)

// Source names where a setting came from.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceEnv     = "env"
	SourceFlag    = "flag"
)

// Config holds resolved settings.
type Config struct {
	ToolsDir       string   `yaml:"tools_dir"`
	DecompressDir  string   `yaml:"decompress_dir,omitempty"`
	Manifest       string   `yaml:"manifest,omitempty"`
	Timeout        Duration `yaml:"timeout"`
	LockWait       Duration `yaml:"lock_wait"`
	MaxOutputKB    int      `yaml:"max_output_kb"`
	AuditDir       string   `yaml:"audit_dir,omitempty"`
	LogLevel       string   `yaml:"log_level"`
	LogFile        string   `yaml:"log_file,omitempty"`
	EnvPassthrough []string `yaml:"env_passthrough,omitempty"`

	// Sources records, per yaml key, which layer supplied the value.
	Sources map[string]string `yaml:"-"`
}

// Duration is a time.Duration that also accepts plain integers as seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ParseDuration accepts either standard Go duration strings (e.g., "500ms", "2s")
// or plain integers meaning seconds (e.g., "30" -> 30s).
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative duration seconds: %d", n)
		}
		return time.Duration(n) * time.Second, nil
	}
	return 0, fmt.Errorf("invalid duration: %q", s)
}

// Default returns the built-in settings. Executables are looked up next to
// the running binary unless configured otherwise.
func Default() Config {
	toolsDir := "."
	if exe, err := os.Executable(); err == nil {
		toolsDir = filepath.Dir(exe)
	}
	c := Config{
		ToolsDir:    toolsDir,
		Timeout:     Duration(DefaultTimeout),
		LockWait:    Duration(DefaultLockWait),
		MaxOutputKB: DefaultMaxOutputKB,
		LogLevel:    DefaultLogLevel,
		Sources:     map[string]string{},
	}
	for _, key := range keys {
		c.Sources[key] = SourceDefault
	}
	return c
}

var keys = []string{
	"tools_dir", "decompress_dir", "manifest", "timeout", "lock_wait",
	"max_output_kb", "audit_dir", "log_level", "log_file", "env_passthrough",
}

// Load applies the YAML file at path (skipped when empty) and then the
// environment on top of Default.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		if err := c.applyFile(path); err != nil {
			return c, err
		}
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return c, err
	}
	return c, nil
}

// fileConfig mirrors Config with pointers so absent keys can be told apart
// from zero values.
type fileConfig struct {
	ToolsDir       *string   `yaml:"tools_dir"`
	DecompressDir  *string   `yaml:"decompress_dir"`
	Manifest       *string   `yaml:"manifest"`
	Timeout        *Duration `yaml:"timeout"`
	LockWait       *Duration `yaml:"lock_wait"`
	MaxOutputKB    *int      `yaml:"max_output_kb"`
	AuditDir       *string   `yaml:"audit_dir"`
	LogLevel       *string   `yaml:"log_level"`
	LogFile        *string   `yaml:"log_file"`
	EnvPassthrough []string  `yaml:"env_passthrough"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config")
	}
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && err != io.EOF {
		return errors.Wrapf(err, "parse config %s", path)
	}
	base := filepath.Dir(path)
	setPath := func(key string, dst *string, v *string) {
		if v == nil {
			return
		}
		*dst = resolve(base, *v)
		c.Sources[key] = SourceFile
	}
	setPath("tools_dir", &c.ToolsDir, fc.ToolsDir)
	setPath("decompress_dir", &c.DecompressDir, fc.DecompressDir)
	setPath("manifest", &c.Manifest, fc.Manifest)
	setPath("audit_dir", &c.AuditDir, fc.AuditDir)
	setPath("log_file", &c.LogFile, fc.LogFile)
	if fc.Timeout != nil {
		c.Timeout = *fc.Timeout
		c.Sources["timeout"] = SourceFile
	}
	if fc.LockWait != nil {
		c.LockWait = *fc.LockWait
		c.Sources["lock_wait"] = SourceFile
	}
	if fc.MaxOutputKB != nil {
		c.MaxOutputKB = *fc.MaxOutputKB
		c.Sources["max_output_kb"] = SourceFile
	}
	if fc.LogLevel != nil {
		c.LogLevel = *fc.LogLevel
		c.Sources["log_level"] = SourceFile
	}
	if fc.EnvPassthrough != nil {
		c.EnvPassthrough = fc.EnvPassthrough
		c.Sources["env_passthrough"] = SourceFile
	}
	return nil
}

// resolve makes a relative path from the config file relative to the file.
func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + strings.ToUpper(key))
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}
	for key, dst := range map[string]*string{
		"tools_dir":      &c.ToolsDir,
		"decompress_dir": &c.DecompressDir,
		"manifest":       &c.Manifest,
		"audit_dir":      &c.AuditDir,
		"log_level":      &c.LogLevel,
		"log_file":       &c.LogFile,
	} {
		if v, ok := get(key); ok {
			*dst = v
			c.Sources[key] = SourceEnv
		}
	}
	for key, dst := range map[string]*Duration{"timeout": &c.Timeout, "lock_wait": &c.LockWait} {
		if v, ok := get(key); ok {
			d, err := ParseDuration(v)
			if err != nil {
				return errors.Wrapf(err, "%s%s", EnvPrefix, strings.ToUpper(key))
			}
			*dst = Duration(d)
			c.Sources[key] = SourceEnv
		}
	}
	if v, ok := get("max_output_kb"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%sMAX_OUTPUT_KB", EnvPrefix)
		}
		c.MaxOutputKB = n
		c.Sources["max_output_kb"] = SourceEnv
	}
	if v, ok := get("env_passthrough"); ok {
		c.EnvPassthrough = splitList(v)
		c.Sources["env_passthrough"] = SourceEnv
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Set records a flag override for key.
func (c *Config) Set(key string) {
	if c.Sources == nil {
		c.Sources = map[string]string{}
	}
	c.Sources[key] = SourceFlag
}

// ExtractDir is where archives unpack.
func (c Config) ExtractDir() string {
	if c.DecompressDir != "" {
		return c.DecompressDir
	}
	return c.ToolsDir
}

// Validate rejects settings no run could use.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ToolsDir) == "" {
		return errors.New("tools_dir must not be empty")
	}
	if c.Timeout < 0 {
		return errors.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.LockWait < 0 {
		return errors.Errorf("lock_wait must not be negative, got %s", c.LockWait)
	}
	if c.MaxOutputKB < 0 {
		return errors.Errorf("max_output_kb must not be negative, got %d", c.MaxOutputKB)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Keys lists the setting names in display order.
func Keys() []string {
	return append([]string(nil), keys...)
}
