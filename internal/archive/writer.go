package archive

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"
)

// WriteFile writes data to path, compressing it according to the path
// suffix. The data goes to a temporary sibling that is renamed into place;
// a failed write never leaves a truncated output.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".eaf-write-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := writeCompressed(tmp, data, DetectCompression(path)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename into place: %w", err)
	}
	return nil
}

func writeCompressed(w io.Writer, data []byte, c Compression) error {
	switch c {
	case XZ:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return fmt.Errorf("xz writer: %w", err)
		}
		if _, err := xw.Write(data); err != nil {
			return fmt.Errorf("xz write: %w", err)
		}
		return xw.Close()
	case Gzip:
		gw := gzip.NewWriter(w)
		if _, err := gw.Write(data); err != nil {
			return fmt.Errorf("gzip write: %w", err)
		}
		return gw.Close()
	default:
		_, err := w.Write(data)
		return err
	}
}
