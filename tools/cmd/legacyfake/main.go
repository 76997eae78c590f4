// Command legacyfake stands in for the legacy evaluation programs in tests.
// Its behavior is picked from the name it is installed under; every mode
// records the stdin it received in <argv0>.stdin.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func main() {
	name := strings.TrimSuffix(filepath.Base(os.Args[0]), ".exe")

	// flood prints before reading anything, like a program with a long banner.
	if strings.HasPrefix(name, "flood") {
		banner := strings.Repeat("=", 79) + "\n"
		for i := 0; i < 16*1024; i++ {
			fmt.Print(banner)
		}
	}

	in, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read stdin: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(os.Args[0]+".stdin", in, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "record stdin: %v\n", err)
		os.Exit(1)
	}
	lines := strings.Split(string(in), "\n")

	switch {
	case name == "radd":
		os.Exit(radd(lines))
	case name == "bricc":
		home := os.Getenv("BrIccHome")
		if home == "" {
			fmt.Fprint(os.Stderr, "BrIccHome not set")
			os.Exit(4)
		}
		fmt.Printf("BrIcc v2.3 %s\n", lines[0])
	case strings.HasPrefix(name, "failing"):
		fmt.Fprint(os.Stderr, "boom")
		os.Exit(3)
	case strings.HasPrefix(name, "sleepy"):
		time.Sleep(10 * time.Second)
	case strings.HasPrefix(name, "flood"):
		fmt.Print("done\n")
	default:
		_, _ = os.Stdout.Write(in)
	}
}

// radd needs its two data files in the working directory, like the real one.
func radd(lines []string) int {
	var first []string
	for _, f := range []string{"98AK04.in", "ELE.in"} {
		fh, err := os.Open(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot open %s\n", f)
			return 2
		}
		sc := bufio.NewScanner(fh)
		line := ""
		if sc.Scan() {
			line = sc.Text()
		}
		_ = fh.Close()
		first = append(first, line)
	}
	z, n := "", ""
	if len(lines) > 1 {
		z, n = lines[0], lines[1]
	}
	fmt.Printf(" RADD Z=%s N=%s\n %s\n %s\n", z, n, first[0], first[1])
	return 0
}
