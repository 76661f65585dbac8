// Package stagelog persists stage outputs: one newline-delimited JSON log per
// item stage and a single document for the final stage.
package stagelog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"exampipe/internal/fileutil"
	"exampipe/internal/question"
)

// Artifact file names inside the output directory.
const (
	TranscribedFile = "1_transcribed.jsonl"
	PerturbedFile   = "2_perturbed.jsonl"
	ValidatedFile   = "3_validated.jsonl"
	DocumentFile    = "4_final_document.tex"
)

// maxLineBytes bounds a single record when reading logs back.
const maxLineBytes = 16 * 1024 * 1024

// Log is an append-only JSONL file of accepted items.
type Log struct {
	path string
}

// NewLog returns a log bound to path. Nothing is touched on disk.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Path returns the log file location.
func (l *Log) Path() string {
	return l.path
}

// Reset creates or truncates the log so a stage starts from an empty file.
func (l *Log) Reset() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("reset log: %w", err)
	}
	return f.Close()
}

// Append writes item as one line. The file is opened per call so a record is
// durable as soon as Append returns.
func (l *Log) Append(item question.Item) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	line := append(item.Raw(), '\n')
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append log: %w", err)
	}
	return f.Close()
}

// ReadItems loads every record in the log. Blank lines are ignored; a line
// that is not a valid item is an error naming its line number.
func (l *Log) ReadItems() ([]question.Item, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read log %s: %w", l.path, err)
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	var items []question.Item
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		item, err := question.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("read log %s line %d: %w", l.path, lineNo, err)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan log: %w", err)
	}
	return items, nil
}

// Document is the final LaTeX artifact.
type Document struct {
	path string
}

// NewDocument returns a document bound to path.
func NewDocument(path string) *Document {
	return &Document{path: path}
}

// Path returns the document location.
func (d *Document) Path() string {
	return d.path
}

// Write atomically replaces the document with content.
func (d *Document) Write(content string) error {
	if err := fileutil.WriteFileAtomic(d.path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}
