package stagelog

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestAcquireLockIsExclusive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	first, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if _, err := AcquireLock(dir); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	second, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("expected lock after release: %v", err)
	}
	_ = second.Release()
}

func TestArtifactsOrder(t *testing.T) {
	got := Artifacts("/out")
	want := []string{TranscribedFile, PerturbedFile, ValidatedFile, DocumentFile}
	for i, path := range got {
		if filepath.Base(path) != want[i] {
			t.Fatalf("artifact %d = %s, want %s", i, path, want[i])
		}
	}
}
