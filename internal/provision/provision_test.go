package provision

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"

	"github.com/hyperifyio/ensdfkit/internal/fault"
)

// countingOpener wraps an afs service and counts OpenURL calls.
type countingOpener struct {
	svc   afs.Service
	calls atomic.Int32
	delay time.Duration
}

func (c *countingOpener) OpenURL(ctx context.Context, URL string, options ...storage.Option) (io.ReadCloser, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.svc.OpenURL(ctx, URL, options...)
}

// failingOpener serves a reader that breaks halfway through.
type failingOpener struct{}

func (failingOpener) OpenURL(ctx context.Context, URL string, options ...storage.Option) (io.ReadCloser, error) {
	return io.NopCloser(io.MultiReader(strings.NewReader("partial bytes"), errReader{})), nil
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, fmt.Errorf("connection reset") }

func memSource(t *testing.T, svc afs.Service, name string, content []byte) string {
	t.Helper()
	url := fmt.Sprintf("mem://localhost/%s/%s", strings.ReplaceAll(t.Name(), "/", "_"), name)
	if err := svc.Upload(context.Background(), url, 0o644, bytes.NewReader(content)); err != nil {
		t.Fatalf("upload %s: %v", url, err)
	}
	return url
}

func TestEnsure_DownloadsOnceThenReusesLocalFile(t *testing.T) {
	svc := afs.New()
	content := bytes.Repeat([]byte{0x7f, 'E', 'L', 'F'}, 2176)
	opener := &countingOpener{svc: svc}
	p := New(opener, nil, nil)
	d := Descriptor{
		Name:         "gabs",
		LocalPath:    filepath.Join(t.TempDir(), "gabs"),
		SourceURL:    memSource(t, svc, "gabs", content),
		ExpectedSize: 8704,
	}

	path, err := p.Ensure(context.Background(), d)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if path != d.LocalPath {
		t.Fatalf("path: %q", path)
	}
	got, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(got, content) {
		t.Fatalf("content mismatch (err=%v, len=%d)", err, len(got))
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if fi.Mode().Perm()&0o111 != 0o111 {
		t.Fatalf("expected executable bits for owner, group and other, got %v", fi.Mode().Perm())
	}

	if _, err := p.Ensure(context.Background(), d); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if n := opener.calls.Load(); n != 1 {
		t.Fatalf("expected one download, got %d", n)
	}
	if _, err := os.Stat(d.LocalPath + ".lock"); !os.IsNotExist(err) {
		t.Fatalf("lock file left behind: %v", err)
	}
}

func TestEnsure_ExistingFileNeedsNoSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delta")
	if err := os.WriteFile(path, []byte("x"), 0o755); err != nil {
		t.Fatal(err)
	}
	opener := &countingOpener{svc: afs.New()}
	got, err := New(opener, nil, nil).Ensure(context.Background(), Descriptor{Name: "delta", LocalPath: path, SourceURL: "mem://localhost/never"})
	if err != nil || got != path {
		t.Fatalf("ensure: %q %v", got, err)
	}
	if opener.calls.Load() != 0 {
		t.Fatalf("existing file must not be fetched")
	}
}

func TestEnsure_MissingWithoutSource(t *testing.T) {
	_, err := New(nil, nil, nil).Ensure(context.Background(), Descriptor{Name: "delta", LocalPath: filepath.Join(t.TempDir(), "delta")})
	if fault.KindOf(err) != fault.KindProvision {
		t.Fatalf("expected provision error, got %v", err)
	}
}

func TestEnsure_NoLocalPath(t *testing.T) {
	_, err := New(nil, nil, nil).Ensure(context.Background(), Descriptor{Name: "x"})
	if fault.KindOf(err) != fault.KindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestEnsure_FailedTransferLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	d := Descriptor{Name: "gabs", LocalPath: filepath.Join(dir, "gabs"), SourceURL: "http://example.invalid/gabs"}
	_, err := New(failingOpener{}, nil, nil).Ensure(context.Background(), d)
	if fault.KindOf(err) != fault.KindProvision {
		t.Fatalf("expected provision error, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected empty directory, found %v", names)
	}
}

func TestEnsure_UnreachableSource(t *testing.T) {
	d := Descriptor{Name: "gabs", LocalPath: filepath.Join(t.TempDir(), "gabs"), SourceURL: "mem://localhost/does/not/exist"}
	_, err := New(nil, nil, nil).Ensure(context.Background(), d)
	if fault.KindOf(err) != fault.KindProvision {
		t.Fatalf("expected provision error, got %v", err)
	}
	if _, statErr := os.Stat(d.LocalPath); !os.IsNotExist(statErr) {
		t.Fatalf("no file expected at destination")
	}
}

func TestEnsure_SizeHintIsAdvisory(t *testing.T) {
	svc := afs.New()
	d := Descriptor{
		Name:         "gabs",
		LocalPath:    filepath.Join(t.TempDir(), "gabs"),
		SourceURL:    memSource(t, svc, "gabs", []byte("short")),
		ExpectedSize: 8704,
	}
	if _, err := New(svc, nil, nil).Ensure(context.Background(), d); err != nil {
		t.Fatalf("size mismatch must not fail: %v", err)
	}
}

func TestEnsure_ConcurrentFirstUseDownloadsOnce(t *testing.T) {
	svc := afs.New()
	opener := &countingOpener{svc: svc, delay: 50 * time.Millisecond}
	p := New(opener, nil, nil)
	d := Descriptor{Name: "gabs", LocalPath: filepath.Join(t.TempDir(), "gabs"), SourceURL: memSource(t, svc, "gabs", []byte("binary"))}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Ensure(context.Background(), d); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("ensure: %v", err)
	}
	if n := opener.calls.Load(); n != 1 {
		t.Fatalf("expected exactly one download, got %d", n)
	}
}

func TestEnsure_StaleLockIsRecovered(t *testing.T) {
	svc := afs.New()
	d := Descriptor{Name: "gabs", LocalPath: filepath.Join(t.TempDir(), "gabs"), SourceURL: memSource(t, svc, "gabs", []byte("binary"))}
	lock := d.LocalPath + ".lock"
	if err := os.WriteFile(lock, []byte("pid=1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * staleLockAge)
	if err := os.Chtimes(lock, old, old); err != nil {
		t.Fatal(err)
	}
	p := New(svc, nil, nil)
	p.LockWait = time.Second
	if _, err := p.Ensure(context.Background(), d); err != nil {
		t.Fatalf("ensure with stale lock: %v", err)
	}
}

func TestEnsure_HeldLockTimesOut(t *testing.T) {
	svc := afs.New()
	d := Descriptor{Name: "gabs", LocalPath: filepath.Join(t.TempDir(), "gabs"), SourceURL: memSource(t, svc, "gabs", []byte("binary"))}
	if err := os.WriteFile(d.LocalPath+".lock", []byte("pid=1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	p := New(svc, nil, nil)
	p.LockWait = 200 * time.Millisecond
	_, err := p.Ensure(context.Background(), d)
	if fault.KindOf(err) != fault.KindProvision || !strings.Contains(err.Error(), "held by another process") {
		t.Fatalf("expected lock timeout, got %v", err)
	}
}

type member struct {
	name string
	body string
	mode int64
}

func tarGz(t *testing.T, members ...member) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for _, m := range members {
		mode := m.mode
		if mode == 0 {
			mode = 0o644
		}
		if err := tw.WriteHeader(&tar.Header{Name: m.name, Mode: mode, Size: int64(len(m.body)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(m.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestEnsure_ArchiveExtractsEntry(t *testing.T) {
	svc := afs.New()
	dir := t.TempDir()
	data := tarGz(t,
		member{name: "bricc", body: "#!/bin/sh\n", mode: 0o600},
		member{name: "BrIccFOV2.idx", body: "index"},
	)
	d := Descriptor{
		Name:       "bricc",
		LocalPath:  filepath.Join(dir, "bricc.tgz"),
		SourceURL:  memSource(t, svc, "bricc.tgz", data),
		Archive:    true,
		ExtractDir: filepath.Join(dir, "bricc"),
		Entry:      "bricc",
	}
	path, err := New(svc, nil, nil).Ensure(context.Background(), d)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if path != filepath.Join(dir, "bricc", "bricc") {
		t.Fatalf("runnable path: %q", path)
	}
	fi, err := os.Stat(path)
	if err != nil || fi.Mode().Perm() != DefaultMode {
		t.Fatalf("entry mode: %v %v", fi, err)
	}
	if b, err := os.ReadFile(filepath.Join(dir, "bricc", "BrIccFOV2.idx")); err != nil || string(b) != "index" {
		t.Fatalf("data member: %q %v", b, err)
	}
}

func TestEnsure_ArchiveWithoutEntryFails(t *testing.T) {
	svc := afs.New()
	dir := t.TempDir()
	d := Descriptor{
		Name:      "bricc",
		LocalPath: filepath.Join(dir, "bricc.tgz"),
		SourceURL: memSource(t, svc, "bricc.tgz", tarGz(t, member{name: "README", body: "x"})),
		Archive:   true,
		Entry:     "bricc",
	}
	_, err := New(svc, nil, nil).Ensure(context.Background(), d)
	if fault.KindOf(err) != fault.KindProvision {
		t.Fatalf("expected provision error, got %v", err)
	}
}

func TestExtract_RefusesEscapesAndKeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "a.tgz")
	if err := os.WriteFile(archive, tarGz(t, member{name: "../evil", body: "x"}), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := extractTarGz(archive, filepath.Join(dir, "out")); err == nil || !strings.Contains(err.Error(), "escapes") {
		t.Fatalf("expected escape refusal, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "evil")); !os.IsNotExist(err) {
		t.Fatalf("escaped member was written")
	}

	out := filepath.Join(dir, "keep")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(out, "ELE.in"), []byte("local"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(archive, tarGz(t, member{name: "ELE.in", body: "archived"}, member{name: "sub/new.dat", body: "n"}), 0o644); err != nil {
		t.Fatal(err)
	}
	n, err := extractTarGz(archive, out)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one new file, got %d", n)
	}
	if b, _ := os.ReadFile(filepath.Join(out, "ELE.in")); string(b) != "local" {
		t.Fatalf("existing file overwritten: %q", b)
	}
}
