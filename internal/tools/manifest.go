package tools

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hyperifyio/ensdfkit/internal/fault"
)

// Override adjusts one catalog entry for a local installation.
type Override struct {
	Name string `yaml:"name"`
	// Executable replaces the catalog's executable path. Relative paths are
	// resolved against the manifest's directory and must stay inside it.
	Executable   string `yaml:"executable,omitempty"`
	SourceURL    string `yaml:"sourceURL,omitempty"`
	Archive      *bool  `yaml:"archive,omitempty"`
	ExpectedSize int64  `yaml:"expectedSize,omitempty"`
	TimeoutSec   int    `yaml:"timeoutSec,omitempty"`
	// EnvPassthrough is an allowlist of environment variable names passed
	// from the parent process to the tool. Names are trimmed, validated
	// against [A-Za-z_][A-Za-z0-9_]* and de-duplicated preserving order.
	// Case is kept: legacy programs read mixed-case names such as BrIccHome.
	EnvPassthrough []string `yaml:"envPassthrough,omitempty"`
}

type Manifest struct {
	Tools []Override `yaml:"tools"`
}

// LoadManifest reads tools.yaml (JSON is accepted too) and returns the
// overrides by tool name. Every entry must name a catalog tool. Failures are
// configuration errors.
func LoadManifest(manifestPath string) (map[string]Override, error) {
	reg, err := loadManifest(manifestPath)
	if err != nil {
		return nil, fault.Wrap(fault.KindConfiguration, "", "manifest "+manifestPath, err)
	}
	return reg, nil
}

func loadManifest(manifestPath string) (map[string]Override, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, errors.Wrap(err, "read manifest")
	}
	var man Manifest
	if err := yaml.Unmarshal(data, &man); err != nil {
		return nil, errors.Wrap(err, "parse manifest")
	}
	manifestDir, err := filepath.Abs(filepath.Dir(manifestPath))
	if err != nil {
		return nil, errors.Wrap(err, "resolve manifest directory")
	}
	registry := make(map[string]Override)
	for i, o := range man.Tools {
		if o.Name == "" {
			return nil, errors.Errorf("tool[%d]: name is required", i)
		}
		if _, ok := registry[o.Name]; ok {
			return nil, errors.Errorf("tool[%d] %q: duplicate name", i, o.Name)
		}
		if _, ok := catalog[o.Name]; !ok {
			return nil, errors.Errorf("tool[%d] %q: unknown tool (known: %s)", i, o.Name, strings.Join(Names(), ", "))
		}
		if o.TimeoutSec < 0 {
			return nil, errors.Errorf("tool[%d] %q: timeoutSec must not be negative", i, o.Name)
		}
		if len(o.EnvPassthrough) > 0 {
			norm, err := normalizeEnvAllowlist(o.EnvPassthrough)
			if err != nil {
				return nil, errors.Wrapf(err, "tool[%d] %q", i, o.Name)
			}
			o.EnvPassthrough = norm
		}
		if o.Executable != "" && !filepath.IsAbs(o.Executable) {
			resolved, err := resolveRelative(manifestDir, o.Executable)
			if err != nil {
				return nil, errors.Wrapf(err, "tool[%d] %q", i, o.Name)
			}
			o.Executable = resolved
		}
		registry[o.Name] = o
	}
	return registry, nil
}

// resolveRelative joins a relative program path onto dir after rejecting
// paths that would climb out of it.
func resolveRelative(dir, p string) (string, error) {
	raw := strings.ReplaceAll(p, "\\", "/")
	norm := path.Clean(raw)
	if norm == ".." || strings.HasPrefix(norm, "../") {
		return "", errors.Errorf("executable must not escape the manifest directory (got %q)", p)
	}
	return filepath.Join(dir, filepath.FromSlash(norm)), nil
}

// apply returns t with o's settings layered on top.
func (o Override) apply(t Tool) Tool {
	if o.Executable != "" {
		t.Executable = o.Executable
	}
	if o.SourceURL != "" {
		t.SourceURL = o.SourceURL
	}
	if o.Archive != nil {
		t.Archive = *o.Archive
	}
	if o.ExpectedSize > 0 {
		t.ExpectedSize = o.ExpectedSize
	}
	if o.TimeoutSec > 0 {
		t.Timeout = time.Duration(o.TimeoutSec) * time.Second
	}
	if len(o.EnvPassthrough) > 0 {
		t.EnvPassthrough = append(t.EnvPassthrough, o.EnvPassthrough...)
	}
	return t
}

// normalizeEnvAllowlist trims, validates and de-duplicates environment
// variable names, preserving the order of first occurrence.
func normalizeEnvAllowlist(keys []string) ([]string, error) {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for idx, k := range keys {
		trimmed := strings.TrimSpace(k)
		if trimmed == "" {
			return nil, errors.Errorf("envPassthrough[%d]: empty name", idx)
		}
		if !isValidEnvName(trimmed) {
			return nil, errors.Errorf("envPassthrough[%d]: invalid name %q (must match [A-Za-z_][A-Za-z0-9_]*)", idx, k)
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out, nil
}

func isValidEnvName(s string) bool {
	if len(s) == 0 {
		return false
	}
	c := s[0]
	if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c == '_') {
		return false
	}
	for i := 1; i < len(s); i++ {
		c = s[i]
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_') {
			return false
		}
	}
	return true
}
