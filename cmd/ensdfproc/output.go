package main

import (
	"fmt"
	"io"
)

// The CLI has nowhere to report a failed write to its own stdout or stderr,
// so these helpers drop write errors.

func outln(w io.Writer, a ...any) { _, _ = fmt.Fprintln(w, a...) }

func outf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }
