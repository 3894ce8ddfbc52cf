// Package xml provides a mutable XML document model backed by xmlquery,
// with XPath lookup and lossless serialization.
//
// Security Notes:
//   - XXE (External Entity) attacks are mitigated by using Go's xml.Decoder
//     which doesn't fetch external entities, and Validate explicitly
//     disables entity expansion.
//   - The xmlquery library is used for parsing, which uses Go's encoding/xml
//     internally and inherits its security properties.
package xml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Document represents a parsed XML document.
type Document struct {
	root *xmlquery.Node
}

// Node represents an XML element.
type Node struct {
	node *xmlquery.Node
}

// ValidationResult contains the result of a well-formedness check.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// ValidationError represents a single validation error.
type ValidationError struct {
	Line    int
	Message string
}

// Parse parses XML data and returns a Document.
func Parse(data []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return &Document{root: root}, nil
}

// Validate checks that data is well-formed XML.
//
// Security: entity expansion is disabled (CWE-611).
func Validate(data []byte) ValidationResult {
	result := ValidationResult{Valid: true}

	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Entity = map[string]string{}

	for {
		_, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			if se, ok := err.(*xml.SyntaxError); ok {
				line = se.Line
			}
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Line:    line,
				Message: err.Error(),
			})
			break
		}
	}

	return result
}

// Root returns the root element of the document.
func (d *Document) Root() *Node {
	if d.root == nil {
		return nil
	}
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return &Node{node: child}
		}
	}
	return nil
}

// XPath executes an XPath query and returns matching nodes.
func (d *Document) XPath(expr string) ([]*Node, error) {
	return query(d.root, expr)
}

// XPathFirst executes an XPath query and returns the first matching node,
// or nil when nothing matches.
func (d *Document) XPathFirst(expr string) (*Node, error) {
	return queryFirst(d.root, expr)
}

// Serialize converts the document back to XML bytes, including the
// declaration and any whitespace present in the source.
func (d *Document) Serialize() []byte {
	if d.root == nil {
		return nil
	}
	var buf bytes.Buffer
	// bytes.Buffer writes cannot fail
	_ = d.root.WriteWithOptions(&buf, xmlquery.WithEmptyTagSupport())
	return buf.Bytes()
}

// Literal quotes s as an XPath string literal. Values holding both quote
// characters are built with concat().
func Literal(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	args := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			args = append(args, `'"'`)
		}
		args = append(args, `"`+p+`"`)
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}

func query(top *xmlquery.Node, expr string) ([]*Node, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	found := xmlquery.QuerySelectorAll(top, compiled)
	result := make([]*Node, 0, len(found))
	for _, n := range found {
		result = append(result, &Node{node: n})
	}
	return result, nil
}

func queryFirst(top *xmlquery.Node, expr string) (*Node, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	n := xmlquery.QuerySelector(top, compiled)
	if n == nil {
		return nil, nil
	}
	return &Node{node: n}, nil
}

// NewElement creates a detached element with the given attributes.
// Attributes are written in the order given as name/value pairs.
func NewElement(name string, attrs ...string) *Node {
	n := &xmlquery.Node{
		Type: xmlquery.ElementNode,
		Data: name,
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		xmlquery.AddAttr(n, attrs[i], attrs[i+1])
	}
	return &Node{node: n}
}

// Name returns the element name.
func (n *Node) Name() string {
	if n.node == nil {
		return ""
	}
	return n.node.Data
}

// Text returns the text content of the node and its descendants.
func (n *Node) Text() string {
	if n.node == nil {
		return ""
	}
	return n.node.InnerText()
}

// SetText replaces all children of the node with a single text node.
func (n *Node) SetText(text string) {
	for child := n.node.FirstChild; child != nil; {
		next := child.NextSibling
		xmlquery.RemoveFromTree(child)
		child = next
	}
	xmlquery.AddChild(n.node, &xmlquery.Node{Type: xmlquery.TextNode, Data: text})
}

// Attr returns the value of a specific attribute.
func (n *Node) Attr(name string) string {
	if n.node == nil {
		return ""
	}
	return n.node.SelectAttr(name)
}

// HasAttr reports whether the attribute is present.
func (n *Node) HasAttr(name string) bool {
	if n.node == nil {
		return false
	}
	return n.node.HasAttr(name)
}

// Line returns the source line the element started on, or 0 for
// elements created after parsing.
func (n *Node) Line() int {
	if n.node == nil {
		return 0
	}
	return n.node.LineNumber
}

// Children returns the child element nodes.
func (n *Node) Children() []*Node {
	if n.node == nil {
		return nil
	}
	var children []*Node
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			children = append(children, &Node{node: child})
		}
	}
	return children
}

// Child returns the first child element with the given name, or nil.
func (n *Node) Child(name string) *Node {
	if n.node == nil {
		return nil
	}
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode && child.Data == name {
			return &Node{node: child}
		}
	}
	return nil
}

// XPath executes an XPath query relative to this node.
func (n *Node) XPath(expr string) ([]*Node, error) {
	return query(n.node, expr)
}

// XPathFirst executes an XPath query relative to this node and returns the
// first match, or nil.
func (n *Node) XPathFirst(expr string) (*Node, error) {
	return queryFirst(n.node, expr)
}

// AppendChild adds child as the last child of n.
func (n *Node) AppendChild(child *Node) {
	xmlquery.AddChild(n.node, child.node)
}

// InsertAfter inserts sibling directly after n.
func (n *Node) InsertAfter(sibling *Node) {
	xmlquery.AddImmediateSibling(n.node, sibling.node)
}

// InsertBefore inserts sibling directly before n.
func (n *Node) InsertBefore(sibling *Node) {
	prev := n.node.PrevSibling
	if prev != nil {
		xmlquery.AddImmediateSibling(prev, sibling.node)
		return
	}
	s := sibling.node
	s.Parent = n.node.Parent
	s.PrevSibling = nil
	s.NextSibling = n.node
	n.node.PrevSibling = s
	if s.Parent != nil {
		s.Parent.FirstChild = s
	}
}
