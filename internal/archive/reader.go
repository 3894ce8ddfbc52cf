// Package archive provides transparent access to optionally compressed
// annotation files. It supports plain, .xz and .gz files.
package archive

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// Compression identifies a stream compression format.
type Compression int

const (
	// None is an uncompressed file.
	None Compression = iota
	// XZ is an xz stream.
	XZ
	// Gzip is a gzip stream.
	Gzip
)

// String returns the file suffix used for the compression, without dot.
func (c Compression) String() string {
	switch c {
	case XZ:
		return "xz"
	case Gzip:
		return "gz"
	default:
		return "none"
	}
}

// DetectCompression returns the compression implied by the path suffix.
func DetectCompression(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xz":
		return XZ
	case ".gz":
		return Gzip
	default:
		return None
	}
}

// StripCompression removes a trailing .xz or .gz suffix.
func StripCompression(path string) string {
	if DetectCompression(path) == None {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// Reader wraps a file with automatic decompression handling.
type Reader struct {
	io.Reader
	file         *os.File
	decompressor io.Closer
}

// NewReader opens path and decompresses it according to its suffix.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var reader io.Reader = f
	var decompressor io.Closer

	switch DetectCompression(path) {
	case XZ:
		xzr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		reader = xzr
	case Gzip:
		gzr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		reader = gzr
		decompressor = gzr
	}

	return &Reader{
		Reader:       reader,
		file:         f,
		decompressor: decompressor,
	}, nil
}

// Close closes the reader and any underlying decompressor.
func (r *Reader) Close() error {
	var errs []error
	if r.decompressor != nil {
		if err := r.decompressor.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// ReadFile reads and decompresses the whole file at path.
func ReadFile(path string) ([]byte, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
