package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestResolve_PreferredWins(t *testing.T) {
	preferred := filepath.Join(t.TempDir(), "preferred")
	documents := filepath.Join(t.TempDir(), "documents")

	r := NewResolver(preferred, documents, testLogger())
	got, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != preferred {
		t.Errorf("Resolve() = %q, want %q", got, preferred)
	}
}

func TestResolve_FallsThroughToSecond(t *testing.T) {
	// A regular file in the path makes MkdirAll fail for the first choice.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	preferred := filepath.Join(blocker, "sub")
	documents := filepath.Join(t.TempDir(), "documents")

	r := NewResolver(preferred, documents, testLogger())
	got, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != documents {
		t.Errorf("Resolve() = %q, want second choice %q", got, documents)
	}
}

func TestResolve_CachesResult(t *testing.T) {
	preferred := filepath.Join(t.TempDir(), "preferred")
	r := NewResolver(preferred, "", testLogger())

	first, err := r.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("Resolve() not stable: %q then %q", first, second)
	}
}

func TestOverride_ShortCircuitsResolution(t *testing.T) {
	preferred := filepath.Join(t.TempDir(), "preferred")
	chosen := filepath.Join(t.TempDir(), "chosen")

	r := NewResolver(preferred, "", testLogger())
	if err := r.Override(chosen); err != nil {
		t.Fatalf("Override() error = %v", err)
	}
	got, err := r.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if got != chosen {
		t.Errorf("Resolve() after Override = %q, want %q", got, chosen)
	}
}

func TestOverride_RejectsUnwritable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewResolver("", "", testLogger())
	if err := r.Override(filepath.Join(blocker, "sub")); err == nil {
		t.Error("Override() of an unwritable directory should fail")
	}
}

func TestVerifyWritable_RemovesProbe(t *testing.T) {
	dir := t.TempDir()
	if err := verifyWritable(dir); err != nil {
		t.Fatalf("verifyWritable() error = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("probe file left behind: %v", entries)
	}
}

func TestFileName_MonotonicSuffix(t *testing.T) {
	a := FileName("rec", "wav")
	time.Sleep(time.Millisecond)
	b := FileName("rec", "wav")

	if !strings.HasPrefix(a, "rec_") || !strings.HasSuffix(a, ".wav") {
		t.Errorf("FileName() = %q, want rec_<ts>.wav shape", a)
	}
	if a >= b {
		t.Errorf("names not increasing: %q then %q", a, b)
	}
}
