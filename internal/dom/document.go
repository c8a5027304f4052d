// File: internal/dom/document.go
// Package dom is a minimal document model over golang.org/x/net/html trees:
// just enough surface for stylesheet link discovery, detach/restore, and
// synthetic style injection.
package dom

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// DefaultEmBasePx is the pixel size of 1em at the browser default font size.
const DefaultEmBasePx = 16.0

// Document wraps a parsed HTML tree together with its base URL.
type Document struct {
	root *html.Node
	head *html.Node
	base *url.URL
}

// Link is a stylesheet <link> discovered in the document head. The node
// identity is stable across detach/restore cycles.
type Link struct {
	node *html.Node
	// URL is the href resolved against the document base.
	URL string
	// Media is the declared media attribute, verbatim (may be empty).
	Media string
}

// Attached reports whether the link element is currently in the tree.
func (l *Link) Attached() bool {
	return l.node.Parent != nil
}

// Parse reads an HTML document and resolves relative references against
// baseURL.
func Parse(r io.Reader, baseURL string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL %q: %w", baseURL, err)
	}
	head := findElement(root, "head")
	if head == nil {
		// html.Parse synthesizes head for any well-formed input; a missing
		// head means the input was not HTML at all.
		return nil, fmt.Errorf("document has no head element")
	}
	return &Document{root: root, head: head, base: base}, nil
}

// StylesheetLinks returns the stylesheet links currently attached in the
// document head, in document order. Links without an href are skipped.
func (d *Document) StylesheetLinks() []*Link {
	var links []*Link
	for c := d.head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || !strings.EqualFold(c.Data, "link") {
			continue
		}
		if !strings.EqualFold(attr(c, "rel"), "stylesheet") {
			continue
		}
		href := strings.TrimSpace(attr(c, "href"))
		if href == "" {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		links = append(links, &Link{
			node:  c,
			URL:   d.base.ResolveReference(ref).String(),
			Media: attr(c, "media"),
		})
	}
	return links
}

// DetachLink removes the link element from the tree so native evaluation of
// its stylesheet stops. The node itself stays alive for a later restore.
func (d *Document) DetachLink(l *Link) {
	if l.node.Parent != nil {
		l.node.Parent.RemoveChild(l.node)
	}
}

// RestoreLink reattaches a previously detached link to the head. Restoring an
// attached link is a no-op.
func (d *Document) RestoreLink(l *Link) {
	if l.node.Parent == nil {
		d.head.AppendChild(l.node)
	}
}

// InjectStyle appends a <style> element with the given id and CSS text to the
// head, replacing the text of an existing element with the same id.
func (d *Document) InjectStyle(id, cssText string) {
	if existing := d.findStyle(id); existing != nil {
		setText(existing, cssText)
		return
	}
	style := &html.Node{
		Type: html.ElementNode,
		Data: "style",
		Attr: []html.Attribute{{Key: "id", Val: id}},
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: cssText})
	d.head.AppendChild(style)
}

// RemoveStyle empties and removes the style element with the given id.
func (d *Document) RemoveStyle(id string) {
	style := d.findStyle(id)
	if style == nil {
		return
	}
	setText(style, "")
	d.head.RemoveChild(style)
}

// Render serializes the (possibly mutated) document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

var fontSizeAttr = regexp.MustCompile(`font-size\s*:\s*([0-9]*\.?[0-9]+)\s*px`)

// RootFontSize returns the pixel size of 1em at the document root. It honors
// an inline font-size on the <html> element and otherwise falls back to the
// browser default; it never fails.
func (d *Document) RootFontSize() float64 {
	htmlEl := findElement(d.root, "html")
	if htmlEl == nil {
		return DefaultEmBasePx
	}
	m := fontSizeAttr.FindStringSubmatch(strings.ToLower(attr(htmlEl, "style")))
	if m == nil {
		return DefaultEmBasePx
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v <= 0 {
		return DefaultEmBasePx
	}
	return v
}

func (d *Document) findStyle(id string) *html.Node {
	for c := d.head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && strings.EqualFold(c.Data, "style") && attr(c, "id") == id {
			return c
		}
	}
	return nil
}

func setText(n *html.Node, text string) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}
