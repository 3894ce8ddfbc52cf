package eaf

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/eaftools/core/errors"
	"github.com/FocuswithJustin/eaftools/core/xml"
)

// urnPrefix is the namespace ELAN uses for document URNs.
const urnPrefix = "urn:nl-mpi-tools-elan-eaf:"

// SetValue replaces the text of an annotation.
func (d *Document) SetValue(a Annotation, value string) {
	var node *xml.Node
	switch a := a.(type) {
	case *Alignable:
		a.Value = value
		node = a.node
	case *Reference:
		a.Value = value
		node = a.node
	}

	v := node.Child(elemValue)
	if v == nil {
		v = xml.NewElement(elemValue)
		node.AppendChild(v)
	}
	v.SetText(value)
}

// HasLinguisticType reports whether a LINGUISTIC_TYPE with the ID exists.
func (d *Document) HasLinguisticType(id string) bool {
	return d.linguisticType(id) != nil
}

func (d *Document) linguisticType(id string) *xml.Node {
	n, err := d.root.XPathFirst(elemLinguisticType + "[@" + attrLinguisticID + "=" + xml.Literal(id) + "]")
	if err != nil {
		return nil
	}
	return n
}

// AddLinguisticType declares a new linguistic type. Existing types are
// left untouched.
func (d *Document) AddLinguisticType(id string, timeAlignable bool) {
	if d.HasLinguisticType(id) {
		return
	}
	n := xml.NewElement(elemLinguisticType,
		attrGraphicRefs, "false",
		attrLinguisticID, id,
		attrTimeAlignable, strconv.FormatBool(timeAlignable),
	)
	d.insertAfterLast(n, elemLinguisticType, elemTier, elemTimeOrder)
}

// AddTier appends an empty tier. The linguistic type must already exist
// and the name must be unused.
func (d *Document) AddTier(name, linguisticType, parent string) (*Tier, error) {
	if _, exists := d.byName[name]; exists {
		return nil, fmt.Errorf("%w: tier %q", errors.ErrAlreadyExists, name)
	}
	if !d.HasLinguisticType(linguisticType) {
		return nil, errors.NewNotFound("linguistic type", linguisticType)
	}
	if parent != "" {
		if _, ok := d.byName[parent]; !ok {
			return nil, errors.NewNotFound("tier", parent)
		}
	}

	attrs := []string{attrLinguisticRef, linguisticType}
	if parent != "" {
		attrs = append(attrs, attrParentRef, parent)
	}
	attrs = append(attrs, attrTierID, name)
	n := xml.NewElement(elemTier, attrs...)
	d.insertAfterLast(n, elemTier, elemTimeOrder)

	tier := &Tier{
		Name:           name,
		LinguisticType: linguisticType,
		Parent:         parent,
		node:           n,
	}
	d.tiers = append(d.tiers, tier)
	d.byName[name] = tier
	return tier, nil
}

// AddRefAnnotation appends a reference annotation to tierName. Its target
// is the first annotation of refTier whose span contains t.
func (d *Document) AddRefAnnotation(tierName, refTier string, t int64, value string) (*Reference, error) {
	if _, ok := d.byName[tierName]; !ok {
		return nil, errors.NewNotFound("tier", tierName)
	}
	target, err := d.AnnotationAt(refTier, t)
	if err != nil {
		return nil, err
	}
	return d.AddReference(tierName, target, value)
}

// AddReference appends a reference annotation pointing at target to
// tierName.
func (d *Document) AddReference(tierName string, target Annotation, value string) (*Reference, error) {
	tier, ok := d.byName[tierName]
	if !ok {
		return nil, errors.NewNotFound("tier", tierName)
	}

	ref := &Reference{
		ID:     d.nextID(),
		Target: target.AnnotationID(),
		Value:  value,
	}
	ref.node = xml.NewElement(elemRef,
		attrAnnotationID, ref.ID,
		attrAnnotationRef, ref.Target,
	)
	v := xml.NewElement(elemValue)
	v.SetText(value)
	ref.node.AppendChild(v)

	wrapper := xml.NewElement(elemAnnotation)
	wrapper.AppendChild(ref.node)
	tier.node.AppendChild(wrapper)
	tier.Annotations = append(tier.Annotations, ref)

	if d.spans != nil {
		d.spans[ref.ID] = d.spans[ref.Target]
	}
	return ref, nil
}

// nextID allocates an unused "a<N>" annotation ID and records it in the
// lastUsedAnnotationId header property.
func (d *Document) nextID() string {
	d.lastID++
	d.SetProperty(propertyLastUsedID, strconv.Itoa(d.lastID))
	return "a" + strconv.Itoa(d.lastID)
}

// SetProperty sets a HEADER PROPERTY, adding it if absent.
func (d *Document) SetProperty(name, value string) {
	if d.header == nil {
		d.header = xml.NewElement(elemHeader, "MEDIA_FILE", "", "TIME_UNITS", "milliseconds")
		d.timeOrder.InsertBefore(d.header)
	}
	if p, err := d.header.XPathFirst(propertyPath(name)); err == nil && p != nil {
		p.SetText(value)
		return
	}
	p := xml.NewElement(elemProperty, attrPropertyName, name)
	p.SetText(value)
	d.header.AppendChild(p)
}

// SetURN assigns the document a new URN.
func (d *Document) SetURN(id uuid.UUID) {
	d.SetProperty(propertyURN, urnPrefix+id.String())
}

// URN returns the document URN property, or "".
func (d *Document) URN() string {
	return d.Property(propertyURN)
}

// insertAfterLast places n after the last root child named by the first
// name in order that is present; with none present it is appended.
func (d *Document) insertAfterLast(n *xml.Node, order ...string) {
	children := d.root.Children()
	for _, name := range order {
		var last *xml.Node
		for _, c := range children {
			if c.Name() == name {
				last = c
			}
		}
		if last != nil {
			last.InsertAfter(n)
			return
		}
	}
	d.root.AppendChild(n)
}
