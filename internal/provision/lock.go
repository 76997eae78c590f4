package provision

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// staleLockAge is how old a lock file must be before another process may
// assume its owner died and remove it.
const staleLockAge = 10 * time.Minute

// acquireFileLock takes a cross-process lock for the executable at target by
// creating "<target>.lock" with O_EXCL. While the lock is held elsewhere it
// retries with 50-150ms jitter until wait elapses. On success it returns an
// unlock function that removes the lock file.
func acquireFileLock(target string, wait time.Duration) (func(), error) {
	lockPath := target + ".lock"
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return func() {}, errors.Wrapf(err, "create directory for %s", target)
	}

	tryOnce := func() (bool, error) {
		var token [8]byte
		if _, err := rand.Read(token[:]); err != nil {
			_ = err
		}
		contents := []byte(fmt.Sprintf("pid=%d ts=%s token=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339Nano), hex.EncodeToString(token[:])))
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err != nil {
			if os.IsExist(err) {
				removeIfStale(lockPath)
				return false, nil
			}
			return false, err
		}
		if _, werr := f.Write(contents); werr != nil {
			_ = f.Close()
			_ = os.Remove(lockPath)
			return false, werr
		}
		if cerr := f.Close(); cerr != nil {
			_ = os.Remove(lockPath)
			return false, cerr
		}
		return true, nil
	}

	unlock := func() {
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			_ = err
		}
	}

	deadline := time.Now().Add(wait)
	for {
		ok, err := tryOnce()
		if err != nil {
			return func() {}, errors.Wrapf(err, "lock %s", lockPath)
		}
		if ok {
			return unlock, nil
		}
		if !time.Now().Before(deadline) {
			return func() {}, errors.Errorf("lock %s is held by another process", lockPath)
		}
		sleep := 50 + int(time.Now().UnixNano()%100)
		time.Sleep(time.Duration(sleep) * time.Millisecond)
	}
}

func removeIfStale(lockPath string) {
	fi, err := os.Stat(lockPath)
	if err != nil {
		return
	}
	if time.Since(fi.ModTime()) > staleLockAge {
		_ = os.Remove(lockPath)
	}
}
