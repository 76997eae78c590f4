package main

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/hyperifyio/ensdfkit/internal/config"
)

// printResolvedConfig writes a JSON object describing resolved configuration
// and returns exit code 0. Every key is accompanied by <key>_source.
func printResolvedConfig(cfg config.Config, stdout io.Writer) int {
	payload := map[string]any{}
	for _, key := range config.Keys() {
		payload[key] = configValue(cfg, key)
		source := cfg.Sources[key]
		if source == "" {
			source = config.SourceDefault
		}
		payload[key+"_source"] = source
	}
	payload["extract_dir"] = cfg.ExtractDir()
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		outln(stdout, "{}")
		return exitOK
	}
	outln(stdout, string(b))
	return exitOK
}

func configValue(cfg config.Config, key string) string {
	switch key {
	case "tools_dir":
		return cfg.ToolsDir
	case "decompress_dir":
		return cfg.DecompressDir
	case "manifest":
		return cfg.Manifest
	case "timeout":
		return cfg.Timeout.String()
	case "lock_wait":
		return cfg.LockWait.String()
	case "max_output_kb":
		return strconv.Itoa(cfg.MaxOutputKB)
	case "audit_dir":
		return cfg.AuditDir
	case "log_level":
		return cfg.LogLevel
	case "log_file":
		return cfg.LogFile
	case "env_passthrough":
		return strings.Join(cfg.EnvPassthrough, ",")
	}
	return ""
}
