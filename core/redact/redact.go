// Package redact pseudonymizes personal names in annotation files.
//
// Annotation values containing a marker substring are replaced by stable
// tokens taken from a Registry. Every replacement is staged as a
// PendingReference and, once a document has been scanned, materialized into
// a summary tier whose reference annotations carry the original values.
package redact

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/FocuswithJustin/eaftools/core/eaf"
	"github.com/FocuswithJustin/eaftools/core/errors"
	"github.com/FocuswithJustin/eaftools/internal/logging"
)

// Defaults for Options.
const (
	DefaultMarker      = "@pt"
	DefaultSummaryTier = "Personref"
	DefaultSummaryType = "gdpr-reference"
)

// tagSuffix matches a trailing two-letter tag such as "[NN]".
var tagSuffix = regexp.MustCompile(`\[[A-Z]{2}\]$`)

// Classify reports whether value contains marker.
func Classify(value, marker string) bool {
	return strings.Contains(value, marker)
}

// Canonicalize strips a trailing bracketed two-letter tag, so that
// "Anna[NN]" and "Anna" share a registry entry.
func Canonicalize(value string) string {
	if loc := tagSuffix.FindStringIndex(value); loc != nil {
		return value[:loc[0]]
	}
	return value
}

// CanonicalizeMarked is Canonicalize for values carrying marker. A tag
// placed directly before the marker is stripped as well, together with any
// whitespace in front of it, so "Anna[NN] @pt", "Anna [NN] @pt" and
// "Anna @pt[NN]" all canonicalize to "Anna @pt".
func CanonicalizeMarked(value, marker string) string {
	return canonicalizeMarked(value, marker, markerTag(marker))
}

func markerTag(marker string) *regexp.Regexp {
	return regexp.MustCompile(`\s*\[[A-Z]{2}\](\s*)` + regexp.QuoteMeta(marker))
}

func canonicalizeMarked(value, marker string, tagged *regexp.Regexp) string {
	if marker != "" {
		value = tagged.ReplaceAllString(value, "${1}"+strings.ReplaceAll(marker, "$", "$$"))
	}
	return Canonicalize(value)
}

// Anchor selects the time at which a summary entry is anchored within the
// span of the redacted annotation.
type Anchor string

const (
	// AnchorCenter anchors at the rounded midpoint of begin and end.
	AnchorCenter Anchor = "center"
	// AnchorBegin anchors at the begin time.
	AnchorBegin Anchor = "begin"
)

// ParseAnchor validates an anchor name. "" selects AnchorCenter.
func ParseAnchor(s string) (Anchor, error) {
	switch Anchor(s) {
	case AnchorCenter, "":
		return AnchorCenter, nil
	case AnchorBegin:
		return AnchorBegin, nil
	}
	return "", &errors.ValidationError{Field: "anchor", Value: s, Message: "must be center or begin"}
}

// Time returns the anchor time for a span.
func (a Anchor) Time(s eaf.Span) int64 {
	if a == AnchorBegin {
		return s.Begin
	}
	// round half away from zero
	sum := s.Begin + s.End
	if sum >= 0 {
		return (sum + 1) / 2
	}
	return (sum - 1) / 2
}

// Options configures a Redactor. Zero values select the defaults.
type Options struct {
	Marker      string
	SummaryTier string
	SummaryType string
	Anchor      Anchor
}

func (o *Options) setDefaults() {
	if o.Marker == "" {
		o.Marker = DefaultMarker
	}
	if o.SummaryTier == "" {
		o.SummaryTier = DefaultSummaryTier
	}
	if o.SummaryType == "" {
		o.SummaryType = DefaultSummaryType
	}
	if o.Anchor == "" {
		o.Anchor = AnchorCenter
	}
}

// Location identifies where a value was found.
type Location struct {
	Source string
	Tier   string
	Span   eaf.Span
}

// PendingReference records one redaction for the summary tier.
type PendingReference struct {
	// Value is the original, unredacted text.
	Value        string
	// Token is the replacement assigned to Value.
	Token        string
	Tier         string
	Begin        int64
	End          int64
	AnnotationID string

	annotation eaf.Annotation
}

// Overlap names two summary entries whose spans overlap.
type Overlap struct {
	First  string
	Second string
}

// Result describes the redaction of one document.
type Result struct {
	Source     string
	Redactions int
	Pending    []PendingReference
	// Summary holds the IDs of the summary annotations that were added.
	Summary  []string
	Overlaps []Overlap
}

// Redactor replaces marked values in documents. It shares one Registry
// across all documents it processes.
type Redactor struct {
	registry *Registry
	opts     Options
	tagged   *regexp.Regexp
}

// New returns a Redactor drawing tokens from registry.
func New(registry *Registry, opts Options) (*Redactor, error) {
	opts.setDefaults()
	if _, err := ParseAnchor(string(opts.Anchor)); err != nil {
		return nil, err
	}
	if strings.Contains(registry.Prefix(), opts.Marker) {
		return nil, &errors.ValidationError{
			Field:   "prefix",
			Value:   registry.Prefix(),
			Message: fmt.Sprintf("token prefix must not contain the marker %q", opts.Marker),
		}
	}
	return &Redactor{registry: registry, opts: opts, tagged: markerTag(opts.Marker)}, nil
}

// Registry returns the registry the redactor assigns tokens from.
func (r *Redactor) Registry() *Registry {
	return r.registry
}

// Options returns the effective options.
func (r *Redactor) Options() Options {
	return r.opts
}

// Classify reports whether value carries the redactor's marker.
func (r *Redactor) Classify(value string) bool {
	return Classify(value, r.opts.Marker)
}

// Canonical returns the registry key for a marked value.
func (r *Redactor) Canonical(value string) string {
	return canonicalizeMarked(value, r.opts.Marker, r.tagged)
}

// Redact returns the replacement for value and a PendingReference. Values
// without the marker are returned unchanged with a nil PendingReference.
func (r *Redactor) Redact(value string, at Location) (string, *PendingReference) {
	if !r.Classify(value) {
		return value, nil
	}
	token := r.registry.Assign(r.Canonical(value), at.Source)
	return token, &PendingReference{
		Value: value,
		Token: token,
		Tier:  at.Tier,
		Begin: at.Span.Begin,
		End:   at.Span.End,
	}
}

// RedactDocument redacts every tier of doc except the summary tier, then
// adds one summary entry per redaction. Only a tier with the summary name
// and the summary linguistic type counts as the summary tier; a tier that
// merely shares the name is scanned like any other.
//
// Tiers and annotations are visited in document order. A duplicate
// annotation ID or a reference to a missing annotation aborts the pass
// before anything is modified.
func (r *Redactor) RedactDocument(doc *eaf.Document, source string) (*Result, error) {
	spans, err := doc.Spans()
	if err != nil {
		return nil, err
	}

	res := &Result{Source: source}
	for _, tier := range doc.Tiers() {
		if r.isSummary(tier) {
			continue
		}
		for _, a := range tier.Annotations {
			at := Location{Source: source, Tier: tier.Name, Span: spans[a.AnnotationID()]}
			token, pending := r.Redact(a.AnnotationValue(), at)
			if pending == nil {
				continue
			}
			pending.AnnotationID = a.AnnotationID()
			pending.annotation = a
			doc.SetValue(a, token)
			logging.Redaction(tier.Name, a.AnnotationID(), token, "source", source)

			res.Pending = append(res.Pending, *pending)
			res.Redactions++
		}
	}

	if err := r.Materialize(doc, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Redactor) isSummary(t *eaf.Tier) bool {
	return t.Name == r.opts.SummaryTier && t.LinguisticType == r.opts.SummaryType
}

type summaryEntry struct {
	id   string
	span eaf.Span
}

// Materialize creates (or reuses) the summary tier and adds a reference
// annotation for every pending redaction in res, recording the new IDs and
// any overlaps between summary entries in res.
//
// Each entry targets the annotation covering the anchor time in the
// originating tier. Entries staged by RedactDocument prefer the redacted
// annotation itself; entries built with Redact use the first annotation of
// the tier covering the anchor time. No covering annotation is an error.
func (r *Redactor) Materialize(doc *eaf.Document, res *Result) error {
	if len(res.Pending) == 0 {
		return nil
	}
	name := r.opts.SummaryTier
	tier, ok := doc.Tier(name)
	if ok && !r.isSummary(tier) {
		return &errors.ValidationError{
			Field:   "summary-tier",
			Value:   name,
			Message: fmt.Sprintf("tier exists with linguistic type %q, not %q", tier.LinguisticType, r.opts.SummaryType),
		}
	}
	if !ok {
		doc.AddLinguisticType(r.opts.SummaryType, false)
		var err error
		if tier, err = doc.AddTier(name, r.opts.SummaryType, ""); err != nil {
			return err
		}
	}

	var entries []summaryEntry
	for _, a := range tier.Annotations {
		span, err := doc.SpanOf(a)
		if err != nil {
			return err
		}
		entries = append(entries, summaryEntry{id: a.AnnotationID(), span: span})
	}

	for _, p := range res.Pending {
		span := eaf.Span{Begin: p.Begin, End: p.End}
		ref, err := r.addEntry(doc, p, span)
		if err != nil {
			return errors.Wrapf(err, "summary entry for annotation %q in tier %q", p.AnnotationID, p.Tier)
		}
		target, err := doc.SpanOf(ref)
		if err != nil {
			return err
		}

		for _, e := range entries {
			if e.span.Overlaps(target) {
				res.Overlaps = append(res.Overlaps, Overlap{First: e.id, Second: ref.ID})
				logging.OverlapDetected(name, e.id, ref.ID, "source", res.Source)
			}
		}
		entries = append(entries, summaryEntry{id: ref.ID, span: target})
		res.Summary = append(res.Summary, ref.ID)
	}
	return nil
}

func (r *Redactor) addEntry(doc *eaf.Document, p PendingReference, span eaf.Span) (*eaf.Reference, error) {
	t := r.opts.Anchor.Time(span)
	if p.annotation != nil && span.Contains(t) {
		return doc.AddReference(r.opts.SummaryTier, p.annotation, p.Value)
	}
	return doc.AddRefAnnotation(r.opts.SummaryTier, p.Tier, t, p.Value)
}
