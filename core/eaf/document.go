// Package eaf reads, edits and writes ELAN annotation files (.eaf).
//
// A Document keeps the complete XML tree of the source file, so elements
// this package does not model (controlled vocabularies, locales, lexicon
// references, ...) survive a load/save round trip unchanged. Tiers,
// annotations and time slots are indexed on load and edited through
// Document methods, which update both the index and the tree.
package eaf

import (
	"strconv"
	"strings"

	"github.com/FocuswithJustin/eaftools/core/errors"
	"github.com/FocuswithJustin/eaftools/core/xml"
	"github.com/FocuswithJustin/eaftools/internal/archive"
)

// Element and attribute names from the EAF schema.
const (
	elemDocument       = "ANNOTATION_DOCUMENT"
	elemHeader         = "HEADER"
	elemMedia          = "MEDIA_DESCRIPTOR"
	elemProperty       = "PROPERTY"
	elemTimeOrder      = "TIME_ORDER"
	elemTimeSlot       = "TIME_SLOT"
	elemTier           = "TIER"
	elemAnnotation     = "ANNOTATION"
	elemAlignable      = "ALIGNABLE_ANNOTATION"
	elemRef            = "REF_ANNOTATION"
	elemValue          = "ANNOTATION_VALUE"
	elemLinguisticType = "LINGUISTIC_TYPE"

	attrTierID         = "TIER_ID"
	attrLinguisticRef  = "LINGUISTIC_TYPE_REF"
	attrParticipant    = "PARTICIPANT"
	attrParentRef      = "PARENT_REF"
	attrAnnotationID   = "ANNOTATION_ID"
	attrAnnotationRef  = "ANNOTATION_REF"
	attrSlotRef1       = "TIME_SLOT_REF1"
	attrSlotRef2       = "TIME_SLOT_REF2"
	attrSlotID         = "TIME_SLOT_ID"
	attrTimeValue      = "TIME_VALUE"
	attrLinguisticID   = "LINGUISTIC_TYPE_ID"
	attrTimeAlignable  = "TIME_ALIGNABLE"
	attrGraphicRefs    = "GRAPHIC_REFERENCES"
	attrPropertyName   = "NAME"
	propertyURN        = "URN"
	propertyLastUsedID = "lastUsedAnnotationId"
)

// XPath expressions for the top-level sections.
const (
	pathHeader    = "/" + elemDocument + "/" + elemHeader
	pathTimeOrder = "/" + elemDocument + "/" + elemTimeOrder
	pathTiers     = "/" + elemDocument + "/" + elemTier
)

// Annotation is one annotation unit. It is either *Alignable or
// *Reference; callers switch on the concrete type.
type Annotation interface {
	// AnnotationID returns the document-unique ANNOTATION_ID.
	AnnotationID() string
	// AnnotationValue returns the annotation text.
	AnnotationValue() string
	isAnnotation()
}

// Alignable is a self-contained annotation bounded by two time slots.
type Alignable struct {
	ID        string
	BeginSlot string
	EndSlot   string
	Value     string

	node *xml.Node
}

// Reference is an annotation whose time span is that of its target.
type Reference struct {
	ID     string
	Target string
	Value  string

	node *xml.Node
}

func (a *Alignable) AnnotationID() string    { return a.ID }
func (a *Alignable) AnnotationValue() string { return a.Value }
func (*Alignable) isAnnotation()             {}

func (r *Reference) AnnotationID() string    { return r.ID }
func (r *Reference) AnnotationValue() string { return r.Value }
func (*Reference) isAnnotation()             {}

// Tier is a named channel of annotations.
type Tier struct {
	Name           string
	LinguisticType string
	Participant    string
	Parent         string
	Annotations    []Annotation

	node *xml.Node
}

// Kind describes the annotations a tier holds: "alignable", "reference"
// or "empty".
func (t *Tier) Kind() string {
	if len(t.Annotations) == 0 {
		return "empty"
	}
	if _, ok := t.Annotations[0].(*Reference); ok {
		return "reference"
	}
	return "alignable"
}

// TimeSlot is a point on the media timeline. Unaligned slots carry no value.
type TimeSlot struct {
	ID      string
	Value   int64
	Aligned bool
}

// Media describes a linked media file.
type Media struct {
	URL         string
	RelativeURL string
	MimeType    string
}

// Document is a parsed EAF file.
type Document struct {
	// Path is the file the document was loaded from, if any.
	Path string

	doc       *xml.Document
	root      *xml.Node
	header    *xml.Node
	timeOrder *xml.Node

	slots     map[string]TimeSlot
	slotOrder []string
	tiers     []*Tier
	byName    map[string]*Tier

	lastID int
	spans  map[string]Span
}

// Load reads an EAF file, decompressing .xz/.gz files transparently.
func Load(path string) (*Document, error) {
	data, err := archive.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	d, err := parse(data, path)
	if err != nil {
		return nil, err
	}
	d.Path = path
	return d, nil
}

// Parse parses EAF data held in memory.
func Parse(data []byte) (*Document, error) {
	return parse(data, "")
}

func parse(data []byte, path string) (*Document, error) {
	doc, err := xml.Parse(data)
	if err != nil {
		msg := err.Error()
		if r := xml.Validate(data); !r.Valid && r.Errors[0].Line > 0 {
			msg = "line " + strconv.Itoa(r.Errors[0].Line) + ": " + r.Errors[0].Message
		}
		return nil, &errors.ParseError{Format: "EAF", Path: path, Message: msg}
	}
	root := doc.Root()
	if root == nil || root.Name() != elemDocument {
		return nil, errors.NewParse("EAF", path, "root element is not "+elemDocument)
	}
	header, err := doc.XPathFirst(pathHeader)
	if err != nil {
		return nil, &errors.ParseError{Format: "EAF", Path: path, Message: err.Error()}
	}

	d := &Document{
		doc:    doc,
		root:   root,
		header: header,
		slots:  make(map[string]TimeSlot),
		byName: make(map[string]*Tier),
	}

	if err := d.readTimeOrder(path); err != nil {
		return nil, err
	}
	if err := d.readTiers(path); err != nil {
		return nil, err
	}
	if n, err := strconv.Atoi(d.Property(propertyLastUsedID)); err == nil && n > d.lastID {
		d.lastID = n
	}
	return d, nil
}

func (d *Document) readTimeOrder(path string) error {
	var err error
	if d.timeOrder, err = d.doc.XPathFirst(pathTimeOrder); err != nil {
		return &errors.ParseError{Format: "EAF", Path: path, Message: err.Error()}
	}
	if d.timeOrder == nil {
		return errors.NewParse("EAF", path, "missing "+elemTimeOrder)
	}
	slots, err := d.timeOrder.XPath(elemTimeSlot)
	if err != nil {
		return &errors.ParseError{Format: "EAF", Path: path, Message: err.Error()}
	}
	for _, n := range slots {
		slot := TimeSlot{ID: n.Attr(attrSlotID)}
		if slot.ID == "" {
			return errors.NewParse("EAF", path, "time slot without "+attrSlotID+" on line "+strconv.Itoa(n.Line()))
		}
		if _, dup := d.slots[slot.ID]; dup {
			return errors.NewParse("EAF", path, "duplicate time slot "+slot.ID)
		}
		if n.HasAttr(attrTimeValue) {
			raw := n.Attr(attrTimeValue)
			v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				return errors.NewParse("EAF", path, "time slot "+slot.ID+" has invalid "+attrTimeValue+" "+strconv.Quote(raw))
			}
			slot.Value = v
			slot.Aligned = true
		}
		d.slots[slot.ID] = slot
		d.slotOrder = append(d.slotOrder, slot.ID)
	}
	return nil
}

func (d *Document) readTiers(path string) error {
	tiers, err := d.doc.XPath(pathTiers)
	if err != nil {
		return &errors.ParseError{Format: "EAF", Path: path, Message: err.Error()}
	}
	for _, n := range tiers {
		tier := &Tier{
			Name:           n.Attr(attrTierID),
			LinguisticType: n.Attr(attrLinguisticRef),
			Participant:    n.Attr(attrParticipant),
			Parent:         n.Attr(attrParentRef),
			node:           n,
		}
		if tier.Name == "" {
			return errors.NewParse("EAF", path, "tier without "+attrTierID+" on line "+strconv.Itoa(n.Line()))
		}
		if _, dup := d.byName[tier.Name]; dup {
			return errors.NewParse("EAF", path, "duplicate tier "+strconv.Quote(tier.Name))
		}

		wrappers, err := n.XPath(elemAnnotation)
		if err != nil {
			return &errors.ParseError{Format: "EAF", Path: path, Message: err.Error()}
		}
		for _, wrapper := range wrappers {
			a, err := readAnnotation(wrapper, tier.Name, path)
			if err != nil {
				return err
			}
			d.noteID(a.AnnotationID())
			tier.Annotations = append(tier.Annotations, a)
		}

		d.tiers = append(d.tiers, tier)
		d.byName[tier.Name] = tier
	}
	return nil
}

func readAnnotation(wrapper *xml.Node, tier, path string) (Annotation, error) {
	for _, n := range wrapper.Children() {
		switch n.Name() {
		case elemAlignable:
			return &Alignable{
				ID:        n.Attr(attrAnnotationID),
				BeginSlot: n.Attr(attrSlotRef1),
				EndSlot:   n.Attr(attrSlotRef2),
				Value:     valueOf(n),
				node:      n,
			}, nil
		case elemRef:
			return &Reference{
				ID:     n.Attr(attrAnnotationID),
				Target: n.Attr(attrAnnotationRef),
				Value:  valueOf(n),
				node:   n,
			}, nil
		}
	}
	return nil, errors.NewParse("EAF", path, "empty annotation in tier "+strconv.Quote(tier)+" on line "+strconv.Itoa(wrapper.Line()))
}

func valueOf(n *xml.Node) string {
	if v := n.Child(elemValue); v != nil {
		return v.Text()
	}
	return ""
}

// noteID tracks the highest numeric "a<N>" annotation ID.
func (d *Document) noteID(id string) {
	if !strings.HasPrefix(id, "a") {
		return
	}
	if n, err := strconv.Atoi(id[1:]); err == nil && n > d.lastID {
		d.lastID = n
	}
}

// Tiers returns all tiers in document order.
func (d *Document) Tiers() []*Tier {
	return d.tiers
}

// Tier returns the tier with the given name.
func (d *Document) Tier(name string) (*Tier, bool) {
	t, ok := d.byName[name]
	return t, ok
}

// TimeSlots returns the time slot table keyed by slot ID.
func (d *Document) TimeSlots() map[string]TimeSlot {
	return d.slots
}

// Property returns the value of a HEADER PROPERTY, or "".
func (d *Document) Property(name string) string {
	if d.header == nil {
		return ""
	}
	p, err := d.header.XPathFirst(propertyPath(name))
	if err != nil || p == nil {
		return ""
	}
	return p.Text()
}

func propertyPath(name string) string {
	return elemProperty + "[@" + attrPropertyName + "=" + xml.Literal(name) + "]"
}

// Media lists the MEDIA_DESCRIPTOR entries of the header.
func (d *Document) Media() []Media {
	if d.header == nil {
		return nil
	}
	nodes, err := d.header.XPath(elemMedia)
	if err != nil {
		return nil
	}
	var media []Media
	for _, m := range nodes {
		media = append(media, Media{
			URL:         m.Attr("MEDIA_URL"),
			RelativeURL: m.Attr("RELATIVE_MEDIA_URL"),
			MimeType:    m.Attr("MIME_TYPE"),
		})
	}
	return media
}

// Bytes serializes the document.
func (d *Document) Bytes() []byte {
	return d.doc.Serialize()
}

// Save writes the document to path, compressing it if the path ends in
// .xz or .gz.
func (d *Document) Save(path string) error {
	if err := archive.WriteFile(path, d.Bytes(), 0644); err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}
