// Package htmlpage provides the small set of DOM edits the site
// post-processor makes on built HTML pages.
package htmlpage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoHead is returned when a document has no head element.
var ErrNoHead = errors.New("document has no head element")

// Parse parses an HTML document.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return doc, nil
}

// Render serializes a document.
func Render(doc *html.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("failed to render html: %w", err)
	}
	return buf.Bytes(), nil
}

// Walk calls fn for n and every descendant in document order. Returning
// false from fn skips the node's children.
func Walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, fn)
	}
}

// FindAll returns all elements for which match returns true.
func FindAll(doc *html.Node, match func(*html.Node) bool) []*html.Node {
	var found []*html.Node
	Walk(doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode && match(n) {
			found = append(found, n)
		}
		return true
	})
	return found
}

// Head returns the document's head element.
func Head(doc *html.Node) (*html.Node, error) {
	var head *html.Node
	Walk(doc, func(n *html.Node) bool {
		if head != nil {
			return false
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Head {
			head = n
			return false
		}
		return true
	})
	if head == nil {
		return nil, ErrNoHead
	}
	return head, nil
}

// Attr returns the value of an attribute.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets an attribute, replacing an existing value.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// HasClass reports whether the element's class list contains class.
func HasClass(n *html.Node, class string) bool {
	classes, ok := Attr(n, "class")
	if !ok {
		return false
	}
	return slices.Contains(strings.Fields(classes), class)
}

// ParseHeadTags parses markup meant for the head, such as meta and link tags.
func ParseHeadTags(markup string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "head", DataAtom: atom.Head}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", markup, err)
	}

	elems := nodes[:0]
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			elems = append(elems, n)
		}
	}
	if len(elems) == 0 {
		return nil, fmt.Errorf("no element in %q", markup)
	}
	return elems, nil
}

// AppendToHead appends each tag to the head unless an equal element (same
// name, same attributes in any order) is already there. It returns the
// number of tags appended.
func AppendToHead(doc *html.Node, tags ...*html.Node) (int, error) {
	head, err := Head(doc)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, tag := range tags {
		if containsEqual(head, tag) {
			continue
		}
		head.AppendChild(clone(tag))
		added++
	}
	return added, nil
}

// SetCanonical makes href the document's only canonical link. It reports
// whether the document changed.
func SetCanonical(doc *html.Node, href string) (bool, error) {
	head, err := Head(doc)
	if err != nil {
		return false, err
	}

	links := FindAll(doc, isCanonical)
	if len(links) == 1 && links[0].Parent == head {
		if current, _ := Attr(links[0], "href"); current == href {
			return false, nil
		}
	}

	for _, l := range links {
		l.Parent.RemoveChild(l)
	}
	head.AppendChild(&html.Node{
		Type:     html.ElementNode,
		Data:     "link",
		DataAtom: atom.Link,
		Attr: []html.Attribute{
			{Key: "rel", Val: "canonical"},
			{Key: "href", Val: href},
		},
	})
	return true, nil
}

func isCanonical(n *html.Node) bool {
	if n.DataAtom != atom.Link {
		return false
	}
	rel, _ := Attr(n, "rel")
	return strings.EqualFold(rel, "canonical")
}

func containsEqual(parent, tag *html.Node) bool {
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && equalElement(c, tag) {
			return true
		}
	}
	return false
}

func equalElement(a, b *html.Node) bool {
	if a.Data != b.Data || len(a.Attr) != len(b.Attr) {
		return false
	}
	for _, attr := range b.Attr {
		if v, ok := Attr(a, attr.Key); !ok || v != attr.Val {
			return false
		}
	}
	return true
}

// clone deep-copies n so the same parsed tag can be added to many documents.
func clone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      slices.Clone(n.Attr),
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(clone(child))
	}
	return c
}
