// Package parser turns fetched markup into read-only Page handles and offers
// the element lookups the extractors are built on.
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"github.com/IshaanNene/ProductGoat/internal/types"
)

// Page is a parsed product page. It is immutable after construction and safe
// for concurrent reads.
type Page struct {
	url      string
	raw      string
	root     *html.Node
	doc      *goquery.Document
	products []map[string]any
	err      error
}

// NewPage parses an HTML body fetched from url.
func NewPage(url string, body []byte) (*Page, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &types.ParseError{URL: url, Err: types.ErrEmptyResponse}
	}

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &types.ParseError{URL: url, Err: err}
	}

	doc := goquery.NewDocumentFromNode(root)
	return &Page{
		url:      url,
		raw:      string(body),
		root:     root,
		doc:      doc,
		products: extractProducts(doc),
	}, nil
}

// FromResponse parses a fetched response, keyed by its final URL.
func FromResponse(resp *types.Response) (*Page, error) {
	url := resp.FinalURL
	if url == "" && resp.Request != nil {
		url = resp.Request.URLString()
	}
	return NewPage(url, resp.Body)
}

// InvalidPage is the placeholder for a page that failed upstream.
func InvalidPage(url string, err error) *Page {
	if err == nil {
		err = types.ErrInvalidPage
	}
	return &Page{url: url, err: err}
}

// Valid reports whether the page holds a parsed document.
func (p *Page) Valid() bool {
	return p != nil && p.err == nil && p.root != nil
}

// Err returns the upstream failure of an invalid page.
func (p *Page) Err() error {
	if p == nil {
		return types.ErrInvalidPage
	}
	return p.err
}

// URL returns the page's source URL.
func (p *Page) URL() string {
	if p == nil {
		return ""
	}
	return p.url
}

// Raw returns the markup the page was parsed from.
func (p *Page) Raw() string { return p.raw }

// FindFirst returns the first element named tag whose attribute attr equals
// value. An empty or "*" tag matches any element. The selection is empty on
// a miss.
func (p *Page) FindFirst(tag, attr, value string) *goquery.Selection {
	if tag == "" {
		tag = "*"
	}
	return p.doc.Find(tag).FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, ok := s.Attr(attr)
		return ok && v == value
	}).First()
}

// FindByID returns the first element with the given id.
func (p *Page) FindByID(id string) *goquery.Selection {
	return p.FindFirst("*", "id", id)
}

// Select returns the first element matching a compiled CSS matcher.
func (p *Page) Select(m goquery.Matcher) *goquery.Selection {
	return p.doc.FindMatcher(m).First()
}

// SelectXPath returns the first node matching a compiled XPath expression.
// Attribute results come back as detached elements holding the value as text.
func (p *Page) SelectXPath(expr *xpath.Expr) *goquery.Selection {
	n := htmlquery.QuerySelector(p.root, expr)
	if n == nil {
		return p.doc.FindNodes()
	}
	return &goquery.Selection{Nodes: []*html.Node{n}}
}

// Text returns the trimmed text content of the first node in a selection.
func Text(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(sel.First().Text())
}

// OwnString returns the text of an element whose only child is a single text
// node, descending through single-child elements. ok is false when the
// element has no such slot.
func OwnString(sel *goquery.Selection) (s string, ok bool) {
	if sel == nil || sel.Length() == 0 {
		return "", false
	}
	n := sel.Nodes[0]
	for {
		switch n.Type {
		case html.TextNode:
			return n.Data, true
		case html.ElementNode, html.DocumentNode:
		default:
			return "", false
		}
		if n.FirstChild == nil || n.FirstChild != n.LastChild {
			return "", false
		}
		n = n.FirstChild
	}
}

// Attr returns an attribute value of the first node in a selection.
func Attr(sel *goquery.Selection, name string) (string, bool) {
	if sel == nil || sel.Length() == 0 {
		return "", false
	}
	for _, a := range sel.Nodes[0].Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// String implements fmt.Stringer for log output.
func (p *Page) String() string {
	if !p.Valid() {
		return fmt.Sprintf("invalid page %s: %v", p.URL(), p.Err())
	}
	return "page " + p.url
}
