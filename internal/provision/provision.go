// Package provision makes sure a legacy executable exists on disk before it
// is run, downloading and unpacking it on first use.
package provision

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"

	"github.com/hyperifyio/ensdfkit/internal/audit"
	"github.com/hyperifyio/ensdfkit/internal/fault"
	"github.com/hyperifyio/ensdfkit/internal/logging"
)

// DefaultMode is applied when a descriptor does not set permission bits:
// owner rwx, group and other r-x.
const DefaultMode os.FileMode = 0o755

// DefaultLockWait bounds how long Ensure waits for another process that is
// provisioning the same executable.
const DefaultLockWait = 30 * time.Second

const chunkSize = 32 * 1024

// Descriptor says where an executable lives and how to obtain it.
type Descriptor struct {
	Name         string
	LocalPath    string      // executable, or the downloaded archive when Archive is set
	SourceURL    string      // empty means the file must already exist
	Archive      bool        // LocalPath is a .tar.gz to unpack into ExtractDir
	ExpectedSize int64       // advisory; a mismatch is only logged
	Mode         os.FileMode // 0 uses DefaultMode
	ExtractDir   string      // defaults to the directory of LocalPath
	Entry        string      // runnable member of the archive, relative to ExtractDir
}

// Runnable returns the path that is executed once d is provisioned.
func (d Descriptor) Runnable() string {
	if d.Archive && d.Entry != "" {
		return filepath.Join(d.extractDir(), filepath.FromSlash(d.Entry))
	}
	return d.LocalPath
}

func (d Descriptor) extractDir() string {
	if d.ExtractDir != "" {
		return d.ExtractDir
	}
	return filepath.Dir(d.LocalPath)
}

func (d Descriptor) mode() os.FileMode {
	if d.Mode == 0 {
		return DefaultMode
	}
	return d.Mode
}

// Opener is the part of afs.Service the provisioner needs.
type Opener interface {
	OpenURL(ctx context.Context, URL string, options ...storage.Option) (io.ReadCloser, error)
}

// Provisioner downloads missing executables. It is safe for concurrent use;
// work for one descriptor is serialized so concurrent first use fetches once.
type Provisioner struct {
	LockWait time.Duration

	fs    Opener
	log   logrus.FieldLogger
	audit *audit.Log

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns a provisioner reading sources through fs. A nil fs uses the
// default afs service, which understands http(s), file and mem URLs.
func New(fs Opener, log logrus.FieldLogger, auditLog *audit.Log) *Provisioner {
	if fs == nil {
		fs = afs.New()
	}
	return &Provisioner{
		LockWait: DefaultLockWait,
		fs:       fs,
		log:      logging.OrDiscard(log),
		audit:    auditLog,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Ensure returns the runnable path for d, fetching it first when it is not
// on disk. An existing file is never re-downloaded, re-verified or replaced.
func (p *Provisioner) Ensure(ctx context.Context, d Descriptor) (string, error) {
	if d.LocalPath == "" {
		return "", fault.Configf(d.Name, "executable descriptor has no local path")
	}
	runnable := d.Runnable()
	if exists(runnable) {
		return runnable, nil
	}
	if d.SourceURL == "" {
		return "", fault.Wrap(fault.KindProvision, d.Name, "locate", errors.Errorf("%s does not exist and no source URL is configured", runnable))
	}

	abs, err := filepath.Abs(d.LocalPath)
	if err != nil {
		return "", fault.Wrap(fault.KindProvision, d.Name, "locate", err)
	}
	m := p.keyLock(abs)
	m.Lock()
	defer m.Unlock()

	wait := p.LockWait
	if wait <= 0 {
		wait = DefaultLockWait
	}
	unlock, err := acquireFileLock(abs, wait)
	if err != nil {
		return "", fault.Wrap(fault.KindProvision, d.Name, "lock", err)
	}
	defer unlock()

	// Another caller may have finished while we waited.
	if exists(runnable) {
		return runnable, nil
	}
	if err := p.provision(ctx, d); err != nil {
		return "", fault.Wrap(fault.KindProvision, d.Name, "fetch", err)
	}
	return runnable, nil
}

func (p *Provisioner) keyLock(key string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.locks[key]
	if !ok {
		m = &sync.Mutex{}
		p.locks[key] = m
	}
	return m
}

func (p *Provisioner) provision(ctx context.Context, d Descriptor) error {
	log := p.log.WithFields(logrus.Fields{"tool": d.Name, "url": audit.Redact(d.SourceURL)})
	start := time.Now()
	entry := audit.ProvisionEntry{
		RunID:    audit.NewRunID(),
		Tool:     d.Name,
		URL:      d.SourceURL,
		Path:     d.LocalPath,
		Expected: d.ExpectedSize,
		Archive:  d.Archive,
	}
	defer func() {
		entry.MS = time.Since(start).Milliseconds()
		p.audit.Provision(entry)
	}()

	if !exists(d.LocalPath) {
		n, err := p.download(ctx, d)
		entry.Bytes = n
		if err != nil {
			entry.Error = err.Error()
			return err
		}
		if d.ExpectedSize > 0 && n != d.ExpectedSize {
			log.WithFields(logrus.Fields{"bytes": n, "expected": d.ExpectedSize}).Warn("downloaded size differs from expected size")
		}
		log.WithField("bytes", n).Info("downloaded executable")
	}
	if !d.Archive {
		return nil
	}

	files, err := extractTarGz(d.LocalPath, d.extractDir())
	if err != nil {
		entry.Error = err.Error()
		return err
	}
	runnable := d.Runnable()
	if !exists(runnable) {
		err := errors.Errorf("archive did not contain %s", d.Entry)
		entry.Error = err.Error()
		return err
	}
	if err := os.Chmod(runnable, d.mode()); err != nil {
		entry.Error = err.Error()
		return errors.Wrapf(err, "chmod %s", runnable)
	}
	log.WithFields(logrus.Fields{"files": files, "dir": d.extractDir()}).Info("unpacked archive")
	return nil
}

// download streams SourceURL into a temporary file beside LocalPath and
// renames it into place, so a failure leaves nothing at LocalPath.
func (p *Provisioner) download(ctx context.Context, d Descriptor) (int64, error) {
	rc, err := p.fs.OpenURL(ctx, d.SourceURL)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", audit.Redact(d.SourceURL))
	}
	defer rc.Close()

	dir := filepath.Dir(d.LocalPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, errors.Wrapf(err, "create %s", dir)
	}
	if err := ensureSafeDir(dir); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(d.LocalPath)+".part-*")
	if err != nil {
		return 0, errors.Wrap(err, "create temporary file")
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	n, err := io.CopyBuffer(tmp, ctxReader{ctx: ctx, r: rc}, make([]byte, chunkSize))
	if err != nil {
		_ = tmp.Close()
		return n, errors.Wrap(err, "transfer")
	}
	if err := tmp.Close(); err != nil {
		return n, errors.Wrap(err, "close temporary file")
	}
	mode := d.mode()
	if d.Archive {
		mode = 0o644
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return n, errors.Wrap(err, "chmod")
	}
	if err := os.Rename(tmpName, d.LocalPath); err != nil {
		return n, errors.Wrap(err, "rename into place")
	}
	committed = true
	return n, nil
}

// ctxReader stops a transfer between chunks once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(b)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
