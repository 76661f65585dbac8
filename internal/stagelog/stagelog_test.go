package stagelog

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"exampipe/internal/question"
)

func TestLogResetAppendRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", TranscribedFile)
	log := NewLog(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"question":"stale"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := log.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	for _, raw := range []string{`{"question":"A","n":1}`, `{"question":"B"}`} {
		if err := log.Append(question.MustParse(raw)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{\"question\":\"A\",\"n\":1}\n{\"question\":\"B\"}\n" {
		t.Fatalf("unexpected log contents %q", data)
	}

	items, err := log.ReadItems()
	if err != nil {
		t.Fatalf("ReadItems: %v", err)
	}
	if len(items) != 2 || items[0].Text() != "A" || items[1].Text() != "B" {
		t.Fatalf("unexpected items %v", items)
	}
}

func TestLogResetCreatesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", PerturbedFile)
	if err := NewLog(path).Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Fatalf("expected empty file, got %d bytes", info.Size())
	}
}

func TestReadItemsErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewLog(filepath.Join(dir, "missing.jsonl")).ReadItems(); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist, got %v", err)
	}

	path := filepath.Join(dir, ValidatedFile)
	if err := os.WriteFile(path, []byte("{\"question\":\"A\"}\n\n{\"x\":1}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewLog(path).ReadItems()
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("expected line 3 error, got %v", err)
	}
	if !errors.Is(err, question.ErrMissingQuestion) {
		t.Fatalf("expected missing question cause, got %v", err)
	}
}

func TestDocumentWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), DocumentFile)
	doc := NewDocument(path)
	if err := doc.Write("\\documentclass{exam}"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(doc.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "\\documentclass{exam}" {
		t.Fatalf("unexpected document %q", data)
	}
}
