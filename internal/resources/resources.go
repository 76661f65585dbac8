// Package resources reads the static content tree the pipeline depends on:
// prompt templates, the JSON schema template, question images, and LaTeX
// example documents. Every failure here is tagged services.ErrConfiguration
// because a missing resource is fatal to the stage that needs it.
package resources

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"exampipe/internal/services"
)

const component = "resources"

// ImageExtensions lists the accepted image suffixes in listing order.
var ImageExtensions = []string{".png", ".jpg", ".jpeg"}

// Example is one LaTeX style reference document.
type Example struct {
	Name    string
	Content string
}

// Image is a loaded image file.
type Image struct {
	Path     string
	Data     []byte
	MIMEType string
}

// LoadText reads a UTF-8 text resource such as a prompt template.
func LoadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, component, "load text", path, err)
	}
	return string(data), nil
}

// ListImages returns image files in dir grouped by extension (png, then jpg,
// then jpeg), each group sorted by file name. Extension matching ignores case.
// A missing directory yields an empty list.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrConfiguration, component, "list images", dir, err)
	}
	groups := make(map[string][]string, len(ImageExtensions))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		groups[ext] = append(groups[ext], name)
	}
	var files []string
	for _, ext := range ImageExtensions {
		names := groups[ext]
		sort.Strings(names)
		for _, name := range names {
			files = append(files, filepath.Join(dir, name))
		}
	}
	return files, nil
}

// ListFiles returns every regular, non-hidden file in dir sorted by name.
// Used when clearing the image directory, which removes all files regardless
// of extension.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrConfiguration, component, "list files", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// LoadImage reads an image file and derives its MIME type from the extension.
func LoadImage(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, services.Wrap(services.ErrConfiguration, component, "load image", path, err)
	}
	return Image{Path: path, Data: data, MIMEType: MIMEType(path)}, nil
}

// MIMEType maps an image path to its content type, defaulting to image/png.
func MIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}

// LoadExamples reads every *.tex file in dir sorted by file name. A missing
// directory or an empty set is an error.
func LoadExamples(dir string) ([]Example, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.tex"))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "load examples", dir, err)
	}
	if len(matches) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, component, "load examples", fmt.Sprintf("no .tex files found in %s", dir), nil)
	}
	sort.Strings(matches)
	examples := make([]Example, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, component, "load examples", path, err)
		}
		examples = append(examples, Example{Name: filepath.Base(path), Content: string(data)})
	}
	return examples, nil
}
