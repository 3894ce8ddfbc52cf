package archive

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/ulikunitz/xz"
)

const payload = `<?xml version="1.0" encoding="UTF-8"?><ANNOTATION_DOCUMENT/>`

func writeXz(t *testing.T, path string, data []byte) {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("xz writer: %v", err)
	}
	xw.Write(data)
	xw.Close()
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func writeGz(t *testing.T, path string, data []byte) {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Write(data)
	gw.Close()
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestDetectCompression(t *testing.T) {
	tests := []struct {
		path string
		want Compression
	}{
		{"a.eaf", None},
		{"a.eaf.xz", XZ},
		{"a.eaf.XZ", XZ},
		{"a.eaf.gz", Gzip},
		{"noext", None},
	}
	for _, tt := range tests {
		if got := DetectCompression(tt.path); got != tt.want {
			t.Errorf("DetectCompression(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestStripCompression(t *testing.T) {
	tests := map[string]string{
		"dir/a.eaf":    "dir/a.eaf",
		"dir/a.eaf.xz": "dir/a.eaf",
		"a.eaf.gz":     "a.eaf",
	}
	for in, want := range tests {
		if got := StripCompression(in); got != want {
			t.Errorf("StripCompression(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "plain.eaf")
	if err := os.WriteFile(plain, []byte(payload), 0644); err != nil {
		t.Fatal(err)
	}
	xzPath := filepath.Join(dir, "packed.eaf.xz")
	writeXz(t, xzPath, []byte(payload))
	gzPath := filepath.Join(dir, "packed.eaf.gz")
	writeGz(t, gzPath, []byte(payload))

	for _, path := range []string{plain, xzPath, gzPath} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			got, err := ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if string(got) != payload {
				t.Errorf("ReadFile = %q", got)
			}
		})
	}
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.eaf"))
	if !os.IsNotExist(err) {
		t.Errorf("ReadFile(missing) error = %v, want not-exist", err)
	}
}

func TestNewReader_CorruptedXz(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.eaf.xz")
	if err := os.WriteFile(path, []byte("not xz"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewReader(path); err == nil {
		t.Error("expected error for corrupted xz")
	}
}

func TestNewReader_CorruptedGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.eaf.gz")
	if err := os.WriteFile(path, []byte("not gzip"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewReader(path); err == nil {
		t.Error("expected error for corrupted gzip")
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out.eaf", "out.eaf.xz", "out.eaf.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := WriteFile(path, []byte(payload), 0644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			got, err := ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if string(got) != payload {
				t.Errorf("round trip mismatch: %q", got)
			}
		})
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".eaf" && filepath.Ext(e.Name()) != ".xz" && filepath.Ext(e.Name()) != ".gz" {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestWriteFile_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.eaf")
	if err := WriteFile(path, []byte(payload), 0644); err == nil {
		t.Error("expected error writing into missing directory")
	}
}
