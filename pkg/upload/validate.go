package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxFileBytes is the client-side upload size limit.
const MaxFileBytes = 20 << 20 // 20 MiB

const pdfContentType = "application/pdf"

// File is one selectable upload candidate. Open defers reading until the
// pipeline actually uploads the file.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// FromPath builds a File from a path on disk.
func FromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	contentType := ""
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		contentType = pdfContentType
	}
	return File{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// ValidationError records why one file was rejected before any network
// call was made.
type ValidationError struct {
	Name   string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Reason)
}

// ValidateFiles partitions candidates into valid and rejected. A file is
// a PDF when either its declared content type or its extension says so;
// both signals must be wrong for a type rejection.
func ValidateFiles(files []File) ([]File, []ValidationError) {
	var valid []File
	var invalid []ValidationError
	for _, f := range files {
		isPDFType := strings.EqualFold(strings.TrimSpace(f.ContentType), pdfContentType)
		isPDFName := strings.HasSuffix(strings.ToLower(f.Name), ".pdf")
		switch {
		case !isPDFType && !isPDFName:
			invalid = append(invalid, ValidationError{Name: f.Name, Reason: "not a PDF file"})
		case f.Size > MaxFileBytes:
			invalid = append(invalid, ValidationError{
				Name:   f.Name,
				Reason: fmt.Sprintf("larger than %d MB", MaxFileBytes>>20),
			})
		default:
			valid = append(valid, f)
		}
	}
	return valid, invalid
}

// MergeSelection merges newly picked files into the pending selection,
// deduplicated by (name, size). Re-selecting an already-queued file is a
// no-op.
func MergeSelection(existing, incoming []File) []File {
	type key struct {
		name string
		size int64
	}
	seen := make(map[key]struct{}, len(existing))
	merged := make([]File, 0, len(existing)+len(incoming))
	for _, f := range existing {
		seen[key{f.Name, f.Size}] = struct{}{}
		merged = append(merged, f)
	}
	for _, f := range incoming {
		k := key{f.Name, f.Size}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, f)
	}
	return merged
}
