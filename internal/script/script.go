package script

import "strings"

// Script is the ordered list of lines written to a legacy program's stdin.
type Script []string

// Bytes joins the lines with single newlines. No newline follows the last
// line; grammars that need one end with Blank.
func (s Script) Bytes() []byte {
	return []byte(s.String())
}

func (s Script) String() string {
	return strings.Join(s, "\n")
}

// Len returns the number of lines.
func (s Script) Len() int { return len(s) }
