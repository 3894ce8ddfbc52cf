package xml

import (
	"strings"
	"testing"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<ROOT a="1">
    <ITEM ID="x1">first</ITEM>
    <ITEM ID="x2">second &amp; more</ITEM>
    <LAST/>
</ROOT>`

// TestParseValidXML verifies parsing of well-formed XML.
func TestParseValidXML(t *testing.T) {
	doc, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	root := doc.Root()
	if root == nil {
		t.Fatal("Root() returned nil")
	}
	if root.Name() != "ROOT" {
		t.Errorf("Root().Name() = %q, want ROOT", root.Name())
	}
	if root.Attr("a") != "1" {
		t.Errorf("Attr(a) = %q, want 1", root.Attr("a"))
	}
}

// TestParseInvalidXML verifies error handling for malformed XML.
func TestParseInvalidXML(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"unclosed tag", "<root><element></root>"},
		{"mismatched tags", "<root></other>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.xml)); err == nil {
				t.Error("Parse should fail for invalid XML")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if r := Validate([]byte(sample)); !r.Valid {
		t.Errorf("valid XML rejected: %v", r.Errors)
	}

	r := Validate([]byte("<a>\n<b></a>"))
	if r.Valid {
		t.Fatal("malformed XML accepted")
	}
	if len(r.Errors) != 1 || r.Errors[0].Line != 2 {
		t.Errorf("Errors = %+v, want one error on line 2", r.Errors)
	}
}

func TestXPath(t *testing.T) {
	doc, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	items, err := doc.XPath("//ITEM")
	if err != nil {
		t.Fatalf("XPath failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[1].Text() != "second & more" {
		t.Errorf("Text() = %q", items[1].Text())
	}

	first, err := doc.XPathFirst(`//ITEM[@ID="x2"]`)
	if err != nil || first == nil {
		t.Fatalf("XPathFirst = %v, %v", first, err)
	}
	if first.Attr("ID") != "x2" {
		t.Errorf("XPathFirst found %q", first.Attr("ID"))
	}

	none, err := doc.XPathFirst("//MISSING")
	if err != nil || none != nil {
		t.Errorf("XPathFirst(missing) = %v, %v; want nil, nil", none, err)
	}

	if _, err := doc.XPath("//ITEM["); err == nil {
		t.Error("invalid xpath should fail")
	}
}

func TestMutationAndSerialize(t *testing.T) {
	doc, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	root := doc.Root()

	items := root.Children()
	items[0].SetText("<changed>")

	added := NewElement("ITEM", "ID", "x3", "KIND", "new")
	added.SetText("third")
	items[1].InsertAfter(added)

	head := NewElement("HEAD")
	items[0].InsertBefore(head)

	out := string(doc.Serialize())
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<ITEM ID="x1">&lt;changed&gt;</ITEM>`,
		`<ITEM ID="x3" KIND="new">third</ITEM>`,
		`<LAST/>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("serialized output missing %q:\n%s", want, out)
		}
	}

	names := []string{}
	for _, c := range root.Children() {
		names = append(names, c.Name()+":"+c.Attr("ID"))
	}
	got := strings.Join(names, ",")
	if got != "HEAD:,ITEM:x1,ITEM:x2,ITEM:x3,LAST:" {
		t.Errorf("child order = %s", got)
	}

	reparsed, err := Parse(doc.Serialize())
	if err != nil {
		t.Fatalf("re-parse failed: %v", err)
	}
	third, _ := reparsed.XPathFirst(`//ITEM[@ID="x3"]`)
	if third == nil || third.Text() != "third" {
		t.Errorf("round trip lost appended element")
	}
}

func TestInsertBeforeFirstChild(t *testing.T) {
	doc, err := Parse([]byte(`<r><b/></r>`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	b := doc.Root().Child("b")
	b.InsertBefore(NewElement("a"))
	kids := doc.Root().Children()
	if len(kids) != 2 || kids[0].Name() != "a" || kids[1].Name() != "b" {
		t.Errorf("unexpected children after InsertBefore: %d", len(kids))
	}
}

func TestAppendChildAndRelativeXPath(t *testing.T) {
	doc, err := Parse([]byte(`<r><group/></r>`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	group := doc.Root().Child("group")
	group.AppendChild(NewElement("v", "n", "1"))
	group.AppendChild(NewElement("v", "n", "2"))

	vs, err := group.XPath("v")
	if err != nil {
		t.Fatalf("XPath failed: %v", err)
	}
	if len(vs) != 2 || vs[1].Attr("n") != "2" {
		t.Errorf("relative XPath returned %d nodes", len(vs))
	}
	if !vs[0].HasAttr("n") || vs[0].HasAttr("missing") {
		t.Error("HasAttr mismatch")
	}
	if group.Child("nope") != nil {
		t.Error("Child(nope) should be nil")
	}
}

func TestLiteral(t *testing.T) {
	doc, err := Parse([]byte(`<r><v n="plain"/><v n='say "hi"'/><v n="it's"/><v n="it's &quot;x&quot;"/></r>`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	tests := []struct {
		value string
		want  string
	}{
		{"plain", `"plain"`},
		{`say "hi"`, `'say "hi"'`},
		{"it's", `"it's"`},
		{`it's "x"`, `concat("it's ", '"', "x", '"', "")`},
	}
	for _, tt := range tests {
		if got := Literal(tt.value); got != tt.want {
			t.Errorf("Literal(%q) = %s, want %s", tt.value, got, tt.want)
		}
		n, err := doc.Root().XPathFirst("v[@n=" + Literal(tt.value) + "]")
		if err != nil || n == nil || n.Attr("n") != tt.value {
			t.Errorf("lookup of %q failed: %v, %v", tt.value, n, err)
		}
	}

	if n, err := doc.Root().XPathFirst(`v[@n="none"]`); n != nil || err != nil {
		t.Errorf("XPathFirst(missing) = %v, %v", n, err)
	}
}
