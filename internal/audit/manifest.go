// Package audit records the provenance of a redaction run: which files
// were read and written, their digests and how much was redacted.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/eaftools/core/errors"
	"github.com/FocuswithJustin/eaftools/internal/archive"
)

// HashResult contains both SHA-256 and BLAKE3 hashes of a file.
type HashResult struct {
	SHA256 string `json:"sha256"`
	BLAKE3 string `json:"blake3"`
}

// Settings are the redaction options of a run.
type Settings struct {
	Marker      string `json:"marker"`
	Prefix      string `json:"prefix"`
	SummaryTier string `json:"summary_tier"`
	Anchor      string `json:"anchor"`
}

// FileEntry describes one processed file.
type FileEntry struct {
	Input          string     `json:"input"`
	InputHash      HashResult `json:"input_hash"`
	Output         string     `json:"output"`
	OutputHash     HashResult `json:"output_hash"`
	URN            string     `json:"urn"`
	Redactions     int        `json:"redactions"`
	SummaryEntries int        `json:"summary_entries"`
	Overlaps       int        `json:"overlaps"`
}

// Manifest is the audit record of one run. It never contains names or
// tokens.
type Manifest struct {
	RunID    string      `json:"run_id"`
	Started  time.Time   `json:"started"`
	Finished time.Time   `json:"finished,omitempty"`
	Settings Settings    `json:"settings"`
	Names    int         `json:"distinct_names"`
	Files    []FileEntry `json:"files"`
}

// NewManifest starts a manifest with a fresh random run ID.
func NewManifest(settings Settings) *Manifest {
	return &Manifest{
		RunID:    uuid.NewString(),
		Started:  time.Now().UTC(),
		Settings: settings,
		Files:    []FileEntry{},
	}
}

// Add appends a file entry.
func (m *Manifest) Add(e FileEntry) {
	m.Files = append(m.Files, e)
}

// Finish stamps the end of the run.
func (m *Manifest) Finish(names int) {
	m.Names = names
	m.Finished = time.Now().UTC()
}

// Write stores the manifest as indented JSON.
func (m *Manifest) Write(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal manifest")
	}
	data = append(data, '\n')
	if err := archive.WriteFile(path, data, 0644); err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}

// ReadManifest loads a manifest written by Write.
func ReadManifest(path string) (*Manifest, error) {
	data, err := archive.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &errors.ParseError{Format: "manifest", Path: path, Message: err.Error(), Err: err}
	}
	return &m, nil
}

// HashBytes computes both digests of data.
func HashBytes(data []byte) HashResult {
	s := sha256.Sum256(data)
	b3 := blake3.Sum256(data)
	return HashResult{
		SHA256: hex.EncodeToString(s[:]),
		BLAKE3: hex.EncodeToString(b3[:]),
	}
}

// HashFile computes both digests of the file as stored on disk, without
// decompressing it.
func HashFile(path string) (HashResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return HashResult{}, errors.NewIO("open", path, err)
	}
	defer f.Close()

	s := sha256.New()
	b3 := blake3.New()
	if _, err := io.Copy(io.MultiWriter(s, b3), f); err != nil {
		return HashResult{}, errors.NewIO("read", path, err)
	}
	return HashResult{
		SHA256: hex.EncodeToString(s.Sum(nil)),
		BLAKE3: hex.EncodeToString(b3.Sum(nil)),
	}, nil
}
