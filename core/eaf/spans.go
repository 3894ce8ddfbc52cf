package eaf

import (
	"fmt"

	"github.com/FocuswithJustin/eaftools/core/errors"
)

// Span is the resolved time extent of an annotation in milliseconds.
type Span struct {
	Begin int64
	End   int64
}

// Contains reports whether t lies within the span, bounds included.
func (s Span) Contains(t int64) bool {
	return s.Begin <= t && t <= s.End
}

// Overlaps reports whether two spans share more than a boundary point.
func (s Span) Overlaps(o Span) bool {
	return s.Begin < o.End && o.Begin < s.End
}

// Spans returns the begin/end lookup table for every annotation in the
// document, keyed by annotation ID.
//
// Building the table fails with *errors.DuplicateIDError if an annotation
// ID occurs twice, and with *errors.DanglingReferenceError if a reference
// annotation points at an ID that does not exist. Reference chains are
// followed to the alignable annotation at their root.
func (d *Document) Spans() (map[string]Span, error) {
	if d.spans != nil {
		return d.spans, nil
	}

	type refEntry struct {
		ref  *Reference
		tier string
	}
	spans := make(map[string]Span)
	refs := make(map[string]refEntry)
	seen := make(map[string]bool)

	for _, tier := range d.tiers {
		for _, a := range tier.Annotations {
			id := a.AnnotationID()
			if seen[id] {
				return nil, &errors.DuplicateIDError{ID: id, Tier: tier.Name}
			}
			seen[id] = true

			switch a := a.(type) {
			case *Alignable:
				span, err := d.alignableSpan(a, tier.Name)
				if err != nil {
					return nil, err
				}
				spans[id] = span
			case *Reference:
				refs[id] = refEntry{ref: a, tier: tier.Name}
			}
		}
	}

	var resolve func(id string, visiting map[string]bool) (Span, error)
	resolve = func(id string, visiting map[string]bool) (Span, error) {
		if span, ok := spans[id]; ok {
			return span, nil
		}
		entry := refs[id]
		if visiting[id] {
			return Span{}, errors.NewParse("EAF", d.Path, fmt.Sprintf("reference cycle through annotation %q", id))
		}
		visiting[id] = true

		target := entry.ref.Target
		if !seen[target] {
			return Span{}, &errors.DanglingReferenceError{ID: id, Target: target, Tier: entry.tier}
		}
		span, err := resolve(target, visiting)
		if err != nil {
			return Span{}, err
		}
		spans[id] = span
		return span, nil
	}

	for _, tier := range d.tiers {
		for _, a := range tier.Annotations {
			if _, ok := a.(*Reference); !ok {
				continue
			}
			if _, err := resolve(a.AnnotationID(), make(map[string]bool)); err != nil {
				return nil, err
			}
		}
	}

	d.spans = spans
	return spans, nil
}

// SpanOf resolves the time span of a single annotation.
func (d *Document) SpanOf(a Annotation) (Span, error) {
	spans, err := d.Spans()
	if err != nil {
		return Span{}, err
	}
	span, ok := spans[a.AnnotationID()]
	if !ok {
		return Span{}, errors.NewNotFound("annotation", a.AnnotationID())
	}
	return span, nil
}

// AnnotationAt returns the first annotation of the tier, in document
// order, whose span contains t.
func (d *Document) AnnotationAt(tierName string, t int64) (Annotation, error) {
	tier, ok := d.byName[tierName]
	if !ok {
		return nil, errors.NewNotFound("tier", tierName)
	}
	spans, err := d.Spans()
	if err != nil {
		return nil, err
	}
	for _, a := range tier.Annotations {
		if spans[a.AnnotationID()].Contains(t) {
			return a, nil
		}
	}
	return nil, errors.NewNotFound("annotation", fmt.Sprintf("tier %q at %dms", tierName, t))
}

func (d *Document) alignableSpan(a *Alignable, tier string) (Span, error) {
	begin, err := d.slotTime(a.BeginSlot, false)
	if err != nil {
		return Span{}, errors.Wrapf(err, "annotation %q in tier %q", a.ID, tier)
	}
	end, err := d.slotTime(a.EndSlot, true)
	if err != nil {
		return Span{}, errors.Wrapf(err, "annotation %q in tier %q", a.ID, tier)
	}
	return Span{Begin: begin, End: end}, nil
}

// slotTime returns the time of a slot. An unaligned slot takes the value
// of the nearest aligned slot before it in TIME_ORDER (for a begin) or
// after it (for an end), falling back to the other direction.
func (d *Document) slotTime(id string, isEnd bool) (int64, error) {
	slot, ok := d.slots[id]
	if !ok {
		return 0, errors.NewNotFound("time slot", id)
	}
	if slot.Aligned {
		return slot.Value, nil
	}

	idx := -1
	for i, sid := range d.slotOrder {
		if sid == id {
			idx = i
			break
		}
	}
	before := func() (int64, bool) {
		for i := idx - 1; i >= 0; i-- {
			if s := d.slots[d.slotOrder[i]]; s.Aligned {
				return s.Value, true
			}
		}
		return 0, false
	}
	after := func() (int64, bool) {
		for i := idx + 1; i < len(d.slotOrder); i++ {
			if s := d.slots[d.slotOrder[i]]; s.Aligned {
				return s.Value, true
			}
		}
		return 0, false
	}

	first, second := before, after
	if isEnd {
		first, second = after, before
	}
	if v, ok := first(); ok {
		return v, nil
	}
	if v, ok := second(); ok {
		return v, nil
	}
	return 0, nil
}
