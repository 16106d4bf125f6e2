package seedfile

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestLoadMissingSeedIsNotAnError(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "seed"))
	data, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if data != nil {
		t.Fatalf("expected nil seed, got %d bytes", len(data))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "seed")
	s := New(path)

	want := bytes.Repeat([]byte{0x5A}, SeedBytes)
	if err := s.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("seed mismatch")
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Fatalf("seed file mode %o, want 600", perm)
		}
	}
}
