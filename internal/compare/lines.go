package compare

import (
	"bufio"
	"bytes"
	"io"
)

const maxLineBytes = 16 * 1024 * 1024

// newLineScanner returns a scanner whose tokens are lines including their
// terminator: "\r\n", "\n" or a lone "\r". The last line may have none.
func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	sc.Split(scanLinesKeepEOL)
	return sc
}

func scanLinesKeepEOL(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i+1], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i+2], nil
			}
			return i + 1, data[:i+1], nil
		}
		if atEOF {
			return i + 1, data[:i+1], nil
		}
		// a '\r' at the end of the buffer may be the first half of "\r\n"
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// splitEOL separates a line's content from its terminator.
func splitEOL(line string) (content, eol string) {
	n := len(line)
	switch {
	case n >= 2 && line[n-2:] == "\r\n":
		return line[:n-2], line[n-2:]
	case n >= 1 && (line[n-1] == '\n' || line[n-1] == '\r'):
		return line[:n-1], line[n-1:]
	}
	return line, ""
}
