package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
)

// Scratch is a working directory owned exclusively by one tool invocation.
// Fixed-name input files a legacy program expects in its current directory
// are linked into it, so concurrent invocations never share link names.
type Scratch struct {
	Dir string
}

// NewScratch creates a fresh directory under parent (os.TempDir when empty).
func NewScratch(parent, prefix string) (*Scratch, error) {
	if prefix == "" {
		prefix = "ensdf-"
	}
	dir, err := os.MkdirTemp(parent, prefix)
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Scratch{Dir: dir}, nil
}

// Link makes target visible inside the scratch directory as name.
// Targets are made absolute so the link resolves from any working directory.
func (s *Scratch) Link(target, name string) error {
	if filepath.Base(name) != name || name == "." || name == ".." {
		return fmt.Errorf("link name %q must be a plain file name", name)
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", target, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("link target: %w", err)
	}
	if err := os.Symlink(abs, filepath.Join(s.Dir, name)); err != nil {
		return fmt.Errorf("link %s: %w", name, err)
	}
	return nil
}

// Close removes the scratch directory and everything in it. Links are
// removed, never their targets.
func (s *Scratch) Close() error {
	if s == nil || s.Dir == "" {
		return nil
	}
	return os.RemoveAll(s.Dir)
}
