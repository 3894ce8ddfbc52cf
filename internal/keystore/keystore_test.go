package keystore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FocuswithJustin/eaftools/core/eaf"
	eaferrors "github.com/FocuswithJustin/eaftools/core/errors"
	"github.com/FocuswithJustin/eaftools/core/redact"
)

func sampleSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	reg := redact.NewRegistry("")
	r, err := redact.New(reg, redact.Options{})
	if err != nil {
		t.Fatal(err)
	}
	_, p := r.Redact("Karin[NN] @pt", redact.Location{Source: "one.eaf", Tier: "Gloss", Span: eaf.Span{Begin: 0, End: 500}})
	p.AnnotationID = "a1"
	reg.Assign("Jan @pt", "two.eaf")

	res := &redact.Result{
		Source:  "one.eaf",
		Pending: []redact.PendingReference{*p},
	}
	return &Snapshot{
		RunID:       "3f2b8c1e-0000-4000-8000-000000000001",
		Prefix:      reg.Prefix(),
		Created:     time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Mappings:    reg.Mappings(),
		Occurrences: OccurrencesFrom(res),
	}
}

func TestOccurrencesFrom(t *testing.T) {
	snap := sampleSnapshot(t)
	if len(snap.Occurrences) != 1 {
		t.Fatalf("got %d occurrences", len(snap.Occurrences))
	}
	o := snap.Occurrences[0]
	if o.Token != "PERSREF1" || o.Source != "one.eaf" || o.Tier != "Gloss" || o.End != 500 {
		t.Errorf("occurrence = %+v", o)
	}
}

func TestOccurrencesFromKeepsAssignedToken(t *testing.T) {
	// the token comes from the redaction, not from a second registry lookup
	res := &redact.Result{
		Source:  "x.eaf",
		Pending: []redact.PendingReference{{Value: "Karin @pt", Token: "PERSREF7", Tier: "T"}},
	}
	occ := OccurrencesFrom(res)
	if len(occ) != 1 || occ[0].Token != "PERSREF7" {
		t.Errorf("occurrences = %+v", occ)
	}
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.db")
	snap := sampleSnapshot(t)

	if err := Write(path, snap); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if got.RunID != snap.RunID || got.Prefix != "PERSREF" || !got.Created.Equal(snap.Created) {
		t.Errorf("meta = %+v", got)
	}
	if len(got.Mappings) != 2 {
		t.Fatalf("got %d mappings", len(got.Mappings))
	}
	if got.Mappings[1] != snap.Mappings[1] {
		t.Errorf("mapping = %+v, want %+v", got.Mappings[1], snap.Mappings[1])
	}
	if len(got.Occurrences) != 1 || got.Occurrences[0] != snap.Occurrences[0] {
		t.Errorf("occurrences = %+v", got.Occurrences)
	}
}

func TestWriteReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.db")
	if err := Write(path, sampleSnapshot(t)); err != nil {
		t.Fatal(err)
	}

	reg := redact.NewRegistry("ANON")
	reg.Assign("Solo", "x.eaf")
	if err := Write(path, &Snapshot{RunID: "second", Prefix: "ANON", Mappings: reg.Mappings()}); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.RunID != "second" || len(got.Mappings) != 1 || got.Mappings[0].Token != "ANON1" || len(got.Occurrences) != 0 {
		t.Errorf("key file not replaced: %+v", got)
	}
}

func TestReadMissing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "none.db"))
	var ioErr *eaferrors.IOError
	if !errors.As(err, &ioErr) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read(missing) error = %v", err)
	}
}

func TestWriteBadDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "keys.db")
	if err := Write(path, sampleSnapshot(t)); err == nil {
		t.Error("Write into a missing directory succeeded")
	}
}
