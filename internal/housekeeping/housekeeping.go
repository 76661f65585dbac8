// Package housekeeping resets pipeline artifacts between runs: output files
// are truncated in place and source images are deleted.
//
// Both operations list what they will touch with sizes, ask for confirmation,
// and then report the outcome per file. A failure on one file never stops the
// rest.
package housekeeping

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/dustin/go-humanize"

	"exampipe/internal/fileutil"
	"exampipe/internal/resources"
)

// Confirmer answers a yes/no question.
type Confirmer interface {
	Confirm(question string) (bool, error)
}

// Preconfirmed is a Confirmer for callers that already have the answer.
type Preconfirmed bool

// Confirm returns the captured answer.
func (p Preconfirmed) Confirm(string) (bool, error) {
	return bool(p), nil
}

// Entry is one file that a clear operation would touch.
type Entry struct {
	Path string
	Size int64
}

// Outcome is the per-file result of a clear.
type Outcome struct {
	Entry
	Err error
}

// Report summarises a clear operation.
type Report struct {
	Entries   []Entry
	Outcomes  []Outcome
	Confirmed bool
}

// Succeeded counts files handled without error.
func (r Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// TotalBytes sums the listed entry sizes.
func (r Report) TotalBytes() int64 {
	var total int64
	for _, e := range r.Entries {
		total += e.Size
	}
	return total
}

// Err joins every per-file failure, or nil.
func (r Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

// FormatSize renders a byte count for listings.
func FormatSize(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.Bytes(uint64(size))
}

// ListOutputs returns the artifacts among paths that exist, with sizes.
func ListOutputs(paths []string) ([]Entry, error) {
	var entries []Entry
	for _, path := range paths {
		size, ok, err := fileutil.Size(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if !ok {
			continue
		}
		entries = append(entries, Entry{Path: path, Size: size})
	}
	return entries, nil
}

// ClearOutputs truncates each existing artifact in paths after confirmation.
// Files are kept so later stages and tools see an empty artifact.
func ClearOutputs(w io.Writer, paths []string, confirm Confirmer) (Report, error) {
	entries, err := ListOutputs(paths)
	if err != nil {
		return Report{}, err
	}
	report := Report{Entries: entries}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No output files found to clear.")
		return report, nil
	}

	fmt.Fprintln(w, "The following output files will be cleared:")
	for _, e := range entries {
		fmt.Fprintf(w, "  - %s (%s)\n", e.Path, FormatSize(e.Size))
	}
	ok, err := confirm.Confirm("Clear these output files?")
	if err != nil {
		return report, err
	}
	if !ok {
		fmt.Fprintln(w, "Output files were not cleared.")
		return report, nil
	}
	report.Confirmed = true

	for _, e := range entries {
		_, err := fileutil.Truncate(e.Path)
		report.Outcomes = append(report.Outcomes, Outcome{Entry: e, Err: err})
		if err != nil {
			fmt.Fprintf(w, "✗ Error clearing %s: %v\n", e.Path, err)
			continue
		}
		fmt.Fprintf(w, "✓ Cleared: %s\n", e.Path)
	}
	fmt.Fprintf(w, "Cleared %d of %d output file(s).\n", report.Succeeded(), len(entries))
	return report, nil
}

// ListImages returns every regular file in dir with sizes.
func ListImages(dir string) ([]Entry, error) {
	files, err := resources.ListFiles(dir)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(files))
	for _, path := range files {
		size, ok, err := fileutil.Size(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if ok {
			entries = append(entries, Entry{Path: path, Size: size})
		}
	}
	return entries, nil
}

// ClearImages deletes every file in dir after confirmation. The directory
// itself is kept.
func ClearImages(w io.Writer, dir string, confirm Confirmer) (Report, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(w, "The %s directory does not exist.\n", dir)
		return Report{}, nil
	}
	entries, err := ListImages(dir)
	if err != nil {
		return Report{}, err
	}
	report := Report{Entries: entries}
	if len(entries) == 0 {
		fmt.Fprintf(w, "No files found in %s.\n", dir)
		return report, nil
	}

	fmt.Fprintf(w, "The following files in %s will be deleted:\n", dir)
	for _, e := range entries {
		fmt.Fprintf(w, "  - %s (%s)\n", e.Path, FormatSize(e.Size))
	}
	fmt.Fprintf(w, "Total: %d file(s), %s\n", len(entries), FormatSize(report.TotalBytes()))
	ok, err := confirm.Confirm(fmt.Sprintf("Delete all files in %s?", dir))
	if err != nil {
		return report, err
	}
	if !ok {
		fmt.Fprintf(w, "Files in %s were not deleted.\n", dir)
		return report, nil
	}
	report.Confirmed = true

	for _, e := range entries {
		err := os.Remove(e.Path)
		report.Outcomes = append(report.Outcomes, Outcome{Entry: e, Err: err})
		if err != nil {
			fmt.Fprintf(w, "✗ Error deleting %s: %v\n", e.Path, err)
			continue
		}
		fmt.Fprintf(w, "✓ Deleted: %s\n", e.Path)
	}
	fmt.Fprintf(w, "Deleted %d of %d file(s) from %s.\n", report.Succeeded(), len(entries), dir)
	return report, nil
}
