package audit

import (
	"os"
	"regexp"
	"strings"
)

const redacted = "***REDACTED***"

// RedactAll applies Redact to each element in place and returns the slice.
func RedactAll(values []string) []string {
	for i, v := range values {
		values[i] = Redact(v)
	}
	return values
}

// Redact masks configured sensitive patterns. Patterns come from
// ENSDFPROC_REDACT (comma/semicolon separated regexes; entries that do not
// compile are masked literally). Credentials embedded in URLs are always masked.
func Redact(s string) string {
	if s == "" {
		return s
	}
	s = userinfoRx.ReplaceAllString(s, "${1}"+redacted+"@")
	pats := gatherPatterns()
	for _, rx := range pats.regexps {
		s = rx.ReplaceAllString(s, redacted)
	}
	for _, lit := range pats.literals {
		s = strings.ReplaceAll(s, lit, redacted)
	}
	return s
}

var userinfoRx = regexp.MustCompile(`(://)[^/@\s]+@`)

type patterns struct {
	regexps  []*regexp.Regexp
	literals []string
}

func gatherPatterns() patterns {
	var pats patterns
	cfg := os.Getenv("ENSDFPROC_REDACT")
	if cfg == "" {
		return pats
	}
	fields := strings.FieldsFunc(cfg, func(r rune) bool { return r == ',' || r == ';' })
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if rx, err := regexp.Compile(f); err == nil {
			pats.regexps = append(pats.regexps, rx)
		} else {
			pats.literals = append(pats.literals, f)
		}
	}
	return pats
}
