package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in      string
		want    logrus.Level
		wantErr bool
	}{
		{"", logrus.InfoLevel, false},
		{"debug", logrus.DebugLevel, false},
		{" WARN ", logrus.WarnLevel, false},
		{"chatty", logrus.InfoLevel, true},
	}
	for _, tc := range cases {
		got, err := ParseLevel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%q: err=%v wantErr=%v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("%q: got %v want %v", tc.in, got, tc.want)
		}
	}
}

func TestNew_FileGetsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	log, closeFn, err := New("info", path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.WithField("tool", "alphad").Info("provisioned")
	closeFn()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"tool":"alphad"`) {
		t.Fatalf("expected JSON field in log file, got %q", string(data))
	}
}
