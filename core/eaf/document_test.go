package eaf

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	eaferrors "github.com/FocuswithJustin/eaftools/core/errors"
	"github.com/FocuswithJustin/eaftools/internal/archive"
)

func loadSample(t *testing.T) *Document {
	t.Helper()
	d, err := Load(filepath.Join("testdata", "sample.eaf"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return d
}

func TestLoadTiers(t *testing.T) {
	d := loadSample(t)

	var names []string
	for _, tier := range d.Tiers() {
		names = append(names, tier.Name)
	}
	if got := strings.Join(names, ","); got != "Speaker,Translation,Note,Empty" {
		t.Fatalf("tier order = %s", got)
	}

	speaker, ok := d.Tier("Speaker")
	if !ok {
		t.Fatal("Tier(Speaker) not found")
	}
	if speaker.Participant != "SP1" || speaker.LinguisticType != "default-lt" || speaker.Parent != "" {
		t.Errorf("Speaker attributes = %+v", speaker)
	}
	if speaker.Kind() != "alignable" || len(speaker.Annotations) != 2 {
		t.Errorf("Speaker kind=%s annotations=%d", speaker.Kind(), len(speaker.Annotations))
	}

	tr, _ := d.Tier("Translation")
	if tr.Kind() != "reference" || tr.Parent != "Speaker" {
		t.Errorf("Translation kind=%s parent=%s", tr.Kind(), tr.Parent)
	}
	empty, _ := d.Tier("Empty")
	if empty.Kind() != "empty" {
		t.Errorf("Empty kind=%s", empty.Kind())
	}
	if _, ok := d.Tier("Missing"); ok {
		t.Error("Tier(Missing) should not be found")
	}
}

func TestAnnotationKinds(t *testing.T) {
	d := loadSample(t)
	speaker, _ := d.Tier("Speaker")
	tr, _ := d.Tier("Translation")

	a2, ok := speaker.Annotations[1].(*Alignable)
	if !ok {
		t.Fatalf("a2 is %T, want *Alignable", speaker.Annotations[1])
	}
	if a2.ID != "a2" || a2.BeginSlot != "ts3" || a2.EndSlot != "ts4" || a2.Value != "second & last" {
		t.Errorf("a2 = %+v", a2)
	}

	a4, ok := tr.Annotations[1].(*Reference)
	if !ok {
		t.Fatalf("a4 is %T, want *Reference", tr.Annotations[1])
	}
	if a4.Target != "a2" || a4.AnnotationValue() != "" {
		t.Errorf("a4 = %+v", a4)
	}
}

func TestTimeSlotsAndHeader(t *testing.T) {
	d := loadSample(t)

	slots := d.TimeSlots()
	if len(slots) != 5 {
		t.Fatalf("got %d slots, want 5", len(slots))
	}
	if s := slots["ts2"]; !s.Aligned || s.Value != 500 {
		t.Errorf("ts2 = %+v", s)
	}
	if s := slots["ts4"]; s.Aligned {
		t.Errorf("ts4 should be unaligned: %+v", s)
	}

	if got := d.URN(); got != "urn:nl-mpi-tools-elan-eaf:00000000-0000-0000-0000-000000000000" {
		t.Errorf("URN() = %q", got)
	}
	media := d.Media()
	if len(media) != 1 || media[0].RelativeURL != "./interview.wav" || media[0].MimeType != "audio/x-wav" {
		t.Errorf("Media() = %+v", media)
	}
}

func TestSpans(t *testing.T) {
	d := loadSample(t)
	spans, err := d.Spans()
	if err != nil {
		t.Fatalf("Spans failed: %v", err)
	}

	want := map[string]Span{
		"a1": {0, 500},
		"a2": {1000, 2000}, // ts4 is unaligned; the end takes the next aligned slot
		"a3": {0, 500},
		"a4": {1000, 2000},
		"a5": {0, 500}, // reference to a reference
	}
	for id, w := range want {
		if got := spans[id]; got != w {
			t.Errorf("span %s = %+v, want %+v", id, got, w)
		}
	}

	tr, _ := d.Tier("Note")
	span, err := d.SpanOf(tr.Annotations[0])
	if err != nil || span != (Span{0, 500}) {
		t.Errorf("SpanOf(a5) = %+v, %v", span, err)
	}
}

func TestSpansDuplicateID(t *testing.T) {
	data := `<ANNOTATION_DOCUMENT><TIME_ORDER>
<TIME_SLOT TIME_SLOT_ID="ts1" TIME_VALUE="0"/><TIME_SLOT TIME_SLOT_ID="ts2" TIME_VALUE="10"/>
</TIME_ORDER>
<TIER LINGUISTIC_TYPE_REF="lt" TIER_ID="A"><ANNOTATION><ALIGNABLE_ANNOTATION ANNOTATION_ID="a1" TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts2"><ANNOTATION_VALUE>x</ANNOTATION_VALUE></ALIGNABLE_ANNOTATION></ANNOTATION></TIER>
<TIER LINGUISTIC_TYPE_REF="lt" TIER_ID="B"><ANNOTATION><ALIGNABLE_ANNOTATION ANNOTATION_ID="a1" TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts2"><ANNOTATION_VALUE>y</ANNOTATION_VALUE></ALIGNABLE_ANNOTATION></ANNOTATION></TIER>
</ANNOTATION_DOCUMENT>`
	d, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	_, err = d.Spans()
	var dup *eaferrors.DuplicateIDError
	if !errors.As(err, &dup) {
		t.Fatalf("Spans() error = %v, want DuplicateIDError", err)
	}
	if dup.ID != "a1" || dup.Tier != "B" {
		t.Errorf("DuplicateIDError = %+v", dup)
	}
}

func TestSpansDanglingReference(t *testing.T) {
	data := `<ANNOTATION_DOCUMENT><TIME_ORDER/>
<TIER LINGUISTIC_TYPE_REF="lt" TIER_ID="R"><ANNOTATION><REF_ANNOTATION ANNOTATION_ID="a7" ANNOTATION_REF="a404"><ANNOTATION_VALUE>x</ANNOTATION_VALUE></REF_ANNOTATION></ANNOTATION></TIER>
</ANNOTATION_DOCUMENT>`
	d, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	_, err = d.Spans()
	var dangling *eaferrors.DanglingReferenceError
	if !errors.As(err, &dangling) {
		t.Fatalf("Spans() error = %v, want DanglingReferenceError", err)
	}
	if dangling.ID != "a7" || dangling.Target != "a404" || dangling.Tier != "R" {
		t.Errorf("DanglingReferenceError = %+v", dangling)
	}
}

func TestSpansReferenceCycle(t *testing.T) {
	data := `<ANNOTATION_DOCUMENT><TIME_ORDER/>
<TIER LINGUISTIC_TYPE_REF="lt" TIER_ID="R">
<ANNOTATION><REF_ANNOTATION ANNOTATION_ID="a1" ANNOTATION_REF="a2"><ANNOTATION_VALUE/></REF_ANNOTATION></ANNOTATION>
<ANNOTATION><REF_ANNOTATION ANNOTATION_ID="a2" ANNOTATION_REF="a1"><ANNOTATION_VALUE/></REF_ANNOTATION></ANNOTATION>
</TIER></ANNOTATION_DOCUMENT>`
	d, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, err := d.Spans(); !errors.Is(err, eaferrors.ErrInvalidInput) {
		t.Errorf("Spans() error = %v, want a parse error for the cycle", err)
	}
}

func TestSpansMissingTimeSlot(t *testing.T) {
	data := `<ANNOTATION_DOCUMENT><TIME_ORDER/>
<TIER LINGUISTIC_TYPE_REF="lt" TIER_ID="A"><ANNOTATION><ALIGNABLE_ANNOTATION ANNOTATION_ID="a1" TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts2"><ANNOTATION_VALUE>x</ANNOTATION_VALUE></ALIGNABLE_ANNOTATION></ANNOTATION></TIER>
</ANNOTATION_DOCUMENT>`
	d, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, err := d.Spans(); !errors.Is(err, eaferrors.ErrNotFound) {
		t.Errorf("Spans() error = %v, want ErrNotFound", err)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not xml", "<ANNOTATION_DOCUMENT>"},
		{"wrong root", "<DOC/>"},
		{"no time order", "<ANNOTATION_DOCUMENT/>"},
		{"bad time value", `<ANNOTATION_DOCUMENT><TIME_ORDER><TIME_SLOT TIME_SLOT_ID="ts1" TIME_VALUE="x"/></TIME_ORDER></ANNOTATION_DOCUMENT>`},
		{"duplicate slot", `<ANNOTATION_DOCUMENT><TIME_ORDER><TIME_SLOT TIME_SLOT_ID="ts1"/><TIME_SLOT TIME_SLOT_ID="ts1"/></TIME_ORDER></ANNOTATION_DOCUMENT>`},
		{"duplicate tier", `<ANNOTATION_DOCUMENT><TIME_ORDER/><TIER TIER_ID="A"/><TIER TIER_ID="A"/></ANNOTATION_DOCUMENT>`},
		{"tier without id", `<ANNOTATION_DOCUMENT><TIME_ORDER/><TIER/></ANNOTATION_DOCUMENT>`},
		{"empty annotation", `<ANNOTATION_DOCUMENT><TIME_ORDER/><TIER TIER_ID="A"><ANNOTATION/></TIER></ANNOTATION_DOCUMENT>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, eaferrors.ErrInvalidInput) {
				t.Errorf("Parse error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.eaf"))
	var ioErr *eaferrors.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("Load error = %v, want IOError", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Load error should wrap fs.ErrNotExist: %v", err)
	}
}

func TestLoadCompressed(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "sample.eaf"))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "sample.eaf.xz")
	if err := archive.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load(.xz) failed: %v", err)
	}
	if len(d.Tiers()) != 4 {
		t.Errorf("got %d tiers from compressed file", len(d.Tiers()))
	}
}

func TestSetValueRoundTrip(t *testing.T) {
	d := loadSample(t)
	speaker, _ := d.Tier("Speaker")
	tr, _ := d.Tier("Translation")

	d.SetValue(speaker.Annotations[0], "PERSREF1")
	d.SetValue(tr.Annotations[1], "filled <in>")

	out := filepath.Join(t.TempDir(), "out.eaf")
	if err := d.Save(out); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	back, err := Load(out)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	s2, _ := back.Tier("Speaker")
	t2, _ := back.Tier("Translation")
	if got := s2.Annotations[0].AnnotationValue(); got != "PERSREF1" {
		t.Errorf("a1 value after round trip = %q", got)
	}
	if got := t2.Annotations[1].AnnotationValue(); got != "filled <in>" {
		t.Errorf("a4 value after round trip = %q", got)
	}

	// elements the package does not model survive
	if !strings.Contains(string(back.Bytes()), `STEREOTYPE="Symbolic_Association"`) {
		t.Error("CONSTRAINT element lost in round trip")
	}
	if !strings.Contains(string(back.Bytes()), `xsi:noNamespaceSchemaLocation=`) {
		t.Error("schema location attribute lost in round trip")
	}
}

func TestAddTierAndRefAnnotation(t *testing.T) {
	d := loadSample(t)

	if _, err := d.AddTier("Speaker", "default-lt", ""); !errors.Is(err, eaferrors.ErrAlreadyExists) {
		t.Errorf("AddTier(existing) error = %v", err)
	}
	if _, err := d.AddTier("Summary", "no-such-type", ""); !errors.Is(err, eaferrors.ErrNotFound) {
		t.Errorf("AddTier(unknown type) error = %v", err)
	}
	if _, err := d.AddTier("Summary", "default-lt", "Ghost"); !errors.Is(err, eaferrors.ErrNotFound) {
		t.Errorf("AddTier(unknown parent) error = %v", err)
	}

	d.AddLinguisticType("summary-lt", false)
	d.AddLinguisticType("summary-lt", true) // no-op
	if !d.HasLinguisticType("summary-lt") {
		t.Fatal("linguistic type not added")
	}
	tier, err := d.AddTier("Summary", "summary-lt", "")
	if err != nil {
		t.Fatalf("AddTier failed: %v", err)
	}
	if tier.Kind() != "empty" {
		t.Errorf("new tier kind = %s", tier.Kind())
	}

	ref, err := d.AddRefAnnotation("Summary", "Speaker", 1500, "second & last")
	if err != nil {
		t.Fatalf("AddRefAnnotation failed: %v", err)
	}
	if ref.ID != "a7" || ref.Target != "a2" {
		t.Errorf("ref = %+v, want a7 -> a2", ref)
	}
	if got := d.Property("lastUsedAnnotationId"); got != "7" {
		t.Errorf("lastUsedAnnotationId = %q, want 7", got)
	}
	span, err := d.SpanOf(ref)
	if err != nil || span != (Span{1000, 2000}) {
		t.Errorf("SpanOf(new ref) = %+v, %v", span, err)
	}

	// reference tier as anchor: a3 covers 0..500
	ref2, err := d.AddRefAnnotation("Summary", "Translation", 0, "x")
	if err != nil || ref2.Target != "a3" || ref2.ID != "a8" {
		t.Errorf("AddRefAnnotation on reference tier = %+v, %v", ref2, err)
	}

	if _, err := d.AddRefAnnotation("Summary", "Speaker", 700, "gap"); !errors.Is(err, eaferrors.ErrNotFound) {
		t.Errorf("AddRefAnnotation in a gap error = %v, want ErrNotFound", err)
	}
	if _, err := d.AddRefAnnotation("Nope", "Speaker", 0, "x"); !errors.Is(err, eaferrors.ErrNotFound) {
		t.Errorf("AddRefAnnotation unknown tier error = %v", err)
	}

	back, err := Parse(d.Bytes())
	if err != nil {
		t.Fatalf("re-parse failed: %v", err)
	}
	var names []string
	for _, tr := range back.Tiers() {
		names = append(names, tr.Name)
	}
	if got := strings.Join(names, ","); got != "Speaker,Translation,Note,Empty,Summary" {
		t.Errorf("tier order after AddTier = %s", got)
	}
	summary, _ := back.Tier("Summary")
	if len(summary.Annotations) != 2 || summary.Annotations[0].AnnotationValue() != "second & last" {
		t.Errorf("summary tier after round trip = %+v", summary.Annotations)
	}
	if _, err := back.Spans(); err != nil {
		t.Errorf("Spans after round trip: %v", err)
	}

	// the new tier is placed before the linguistic types
	out := string(d.Bytes())
	if strings.Index(out, `TIER_ID="Summary"`) > strings.Index(out, "<LINGUISTIC_TYPE ") {
		t.Error("new TIER written after LINGUISTIC_TYPE")
	}
}

func TestSetURN(t *testing.T) {
	d := loadSample(t)
	id := uuid.MustParse("6f1c2a4e-3b7d-4c1e-9f00-1a2b3c4d5e6f")
	d.SetURN(id)
	if got, want := d.URN(), "urn:nl-mpi-tools-elan-eaf:6f1c2a4e-3b7d-4c1e-9f00-1a2b3c4d5e6f"; got != want {
		t.Errorf("URN() = %q, want %q", got, want)
	}
}

func TestSetPropertyWithoutHeader(t *testing.T) {
	d, err := Parse([]byte(`<ANNOTATION_DOCUMENT><TIME_ORDER/></ANNOTATION_DOCUMENT>`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	d.SetProperty("lastUsedAnnotationId", "3")
	back, err := Parse(d.Bytes())
	if err != nil {
		t.Fatalf("re-parse failed: %v", err)
	}
	if got := back.Property("lastUsedAnnotationId"); got != "3" {
		t.Errorf("Property = %q, want 3", got)
	}
	if !strings.Contains(string(d.Bytes()), "<HEADER") {
		t.Error("HEADER not created")
	}
}

func TestParseErrorReportsLine(t *testing.T) {
	_, err := Parse([]byte("<ANNOTATION_DOCUMENT>\n<TIME_ORDER>\n</TIER>\n"))
	if !errors.Is(err, eaferrors.ErrInvalidInput) {
		t.Fatalf("Parse error = %v, want ErrInvalidInput", err)
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("Parse error %q should name line 3", err)
	}
}

func TestLookupsWithQuotes(t *testing.T) {
	d := loadSample(t)

	id := `it's "odd"`
	if d.HasLinguisticType(id) {
		t.Fatalf("HasLinguisticType(%q) before adding", id)
	}
	d.AddLinguisticType(id, false)
	if !d.HasLinguisticType(id) || !d.HasLinguisticType("translation") {
		t.Errorf("HasLinguisticType lookups failed")
	}

	before := strings.Count(string(d.Bytes()), "<PROPERTY")
	name := `a"b'c`
	d.SetProperty(name, "one")
	d.SetProperty(name, "two")
	if got := d.Property(name); got != "two" {
		t.Errorf("Property(%q) = %q, want two", name, got)
	}
	if n := strings.Count(string(d.Bytes()), "<PROPERTY") - before; n != 1 {
		t.Errorf("property written %d times", n)
	}
}
