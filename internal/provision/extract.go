package provision

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// extractTarGz unpacks a gzip-compressed tar archive into dir. Members that
// would land outside dir are rejected, and files that already exist are
// left untouched. It returns the number of files written.
func extractTarGz(archivePath, dir string) (int, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return 0, errors.Wrap(err, "open archive")
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrap(err, "gzip header")
	}
	defer zr.Close()

	root, err := filepath.Abs(dir)
	if err != nil {
		return 0, errors.Wrap(err, "resolve extract dir")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return 0, errors.Wrap(err, "create extract dir")
	}

	written := 0
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, errors.Wrap(err, "read archive")
		}
		dst, err := memberPath(root, hdr.Name)
		if err != nil {
			return written, err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return written, errors.Wrapf(err, "mkdir %s", hdr.Name)
			}
		case tar.TypeReg:
			ok, err := writeMember(dst, os.FileMode(hdr.Mode).Perm(), tr)
			if err != nil {
				return written, errors.Wrapf(err, "extract %s", hdr.Name)
			}
			if ok {
				written++
			}
		default:
			// links and devices are not part of any distribution we fetch
		}
	}
}

func memberPath(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("archive member %q escapes extraction directory", name)
	}
	dst := filepath.Join(root, clean)
	if dst != root && !strings.HasPrefix(dst, root+string(filepath.Separator)) {
		return "", errors.Errorf("archive member %q escapes extraction directory", name)
	}
	return dst, nil
}

func writeMember(dst string, mode os.FileMode, r io.Reader) (bool, error) {
	if mode == 0 {
		mode = 0o644
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return false, err
	}
	return true, out.Close()
}
