package resources

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"exampipe/internal/services"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestListImagesOrdersByExtensionGroup(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"b.jpg":       "x",
		"a.jpeg":      "x",
		"c.png":       "x",
		"a.PNG":       "x",
		"notes.txt":   "x",
		".hidden.png": "x",
		"sub/d.png":   "x",
	})

	got, err := ListImages(dir)
	if err != nil {
		t.Fatalf("ListImages returned error: %v", err)
	}
	var names []string
	for _, path := range got {
		names = append(names, filepath.Base(path))
	}
	want := []string{"a.PNG", "c.png", "b.jpg", "a.jpeg"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("unexpected order %v, want %v", names, want)
	}
}

func TestListImagesMissingDir(t *testing.T) {
	got, err := ListImages(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}

func TestListFilesIncludesAllExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"b.png": "x", "a.txt": "x", "sub/c.png": "x"})
	got, err := ListFiles(dir)
	if err != nil {
		t.Fatalf("ListFiles returned error: %v", err)
	}
	want := []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.png")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected files %v", got)
	}
}

func TestLoadImageMIMEType(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"q.JPG": "jpeg-bytes", "r.png": "png-bytes"})

	img, err := LoadImage(filepath.Join(dir, "q.JPG"))
	if err != nil {
		t.Fatalf("LoadImage returned error: %v", err)
	}
	if img.MIMEType != "image/jpeg" || string(img.Data) != "jpeg-bytes" {
		t.Fatalf("unexpected image %+v", img)
	}
	if MIMEType("r.png") != "image/png" {
		t.Fatal("expected image/png")
	}
}

func TestLoadTextMissingIsConfigurationError(t *testing.T) {
	_, err := LoadText(filepath.Join(t.TempDir(), "missing.txt"))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLoadExamples(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"b.tex":     "\\documentclass{article}",
		"a.tex":     "\\documentclass{exam}",
		"readme.md": "ignored",
	})
	examples, err := LoadExamples(dir)
	if err != nil {
		t.Fatalf("LoadExamples returned error: %v", err)
	}
	if len(examples) != 2 || examples[0].Name != "a.tex" || examples[1].Name != "b.tex" {
		t.Fatalf("unexpected examples %+v", examples)
	}
	if examples[0].Content != "\\documentclass{exam}" {
		t.Fatalf("unexpected content %q", examples[0].Content)
	}
}

func TestLoadExamplesEmpty(t *testing.T) {
	for _, dir := range []string{t.TempDir(), filepath.Join(t.TempDir(), "missing")} {
		if _, err := LoadExamples(dir); !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("expected configuration error for %s, got %v", dir, err)
		}
	}
}
