package provision

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
)

// ensureSafeDir refuses to place executables in a directory any local user
// could write to, since a swapped binary would later run with the caller's
// rights. Sticky directories such as /tmp are allowed because only the owner
// may replace their files. Windows ACLs are not inspected.
func ensureSafeDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return errors.Wrapf(err, "stat %s", dir)
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", dir)
	}
	if info.Mode().Perm()&0o002 != 0 && info.Mode()&os.ModeSticky == 0 {
		return errors.Errorf("%s is world-writable", dir)
	}
	return nil
}
