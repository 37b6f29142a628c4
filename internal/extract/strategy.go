package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"

	"github.com/IshaanNene/ProductGoat/internal/parser"
)

// Strategy is one way to find and read a field's value on a page. Apply
// reports ok=false for a locator or accessor miss; it never returns an error.
type Strategy interface {
	Apply(page *parser.Page) (value string, ok bool)
	String() string
}

// Locator finds the element a strategy reads from. An empty selection is a
// locator miss.
type Locator interface {
	Locate(page *parser.Page) *goquery.Selection
	String() string
}

// Accessor reads a value out of a located element.
type Accessor interface {
	Read(sel *goquery.Selection) (string, bool)
	String() string
}

// Rule pairs a locator with an accessor.
type Rule struct {
	Locator  Locator
	Accessor Accessor
}

// Select builds a Rule strategy.
func Select(l Locator, a Accessor) Rule {
	return Rule{Locator: l, Accessor: a}
}

// Apply implements Strategy.
func (r Rule) Apply(page *parser.Page) (string, bool) {
	sel := r.Locator.Locate(page)
	if sel == nil || sel.Length() == 0 {
		return "", false
	}
	return r.Accessor.Read(sel)
}

func (r Rule) String() string {
	return r.Locator.String() + " -> " + r.Accessor.String()
}

// --- Locators ---

type idLocator string

// ByID locates the first element with the given id.
func ByID(id string) Locator { return idLocator(id) }

func (l idLocator) Locate(page *parser.Page) *goquery.Selection {
	return page.FindByID(string(l))
}

func (l idLocator) String() string { return "id=" + string(l) }

type tagLocator struct {
	tag, attr, value string
}

// ByTag locates the first <tag> whose attribute attr equals value. An empty
// tag matches any element.
func ByTag(tag, attr, value string) Locator {
	return tagLocator{tag: tag, attr: attr, value: value}
}

func (l tagLocator) Locate(page *parser.Page) *goquery.Selection {
	return page.FindFirst(l.tag, l.attr, l.value)
}

func (l tagLocator) String() string {
	tag := l.tag
	if tag == "" {
		tag = "*"
	}
	return fmt.Sprintf("%s[%s=%q]", tag, l.attr, l.value)
}

type cssLocator struct {
	expr string
	sel  cascadia.Selector
}

// CSS compiles a CSS selector locator.
func CSS(selector string) (Locator, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid css selector %q: %w", selector, err)
	}
	return cssLocator{expr: selector, sel: sel}, nil
}

func (l cssLocator) Locate(page *parser.Page) *goquery.Selection {
	return page.Select(l.sel)
}

func (l cssLocator) String() string { return "css " + l.expr }

type xpathLocator struct {
	src  string
	expr *xpath.Expr
}

// XPath compiles an XPath locator.
func XPath(expr string) (Locator, error) {
	e, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	return xpathLocator{src: expr, expr: e}, nil
}

func (l xpathLocator) Locate(page *parser.Page) *goquery.Selection {
	return page.SelectXPath(l.expr)
}

func (l xpathLocator) String() string { return "xpath " + l.src }

// --- Accessors ---

type textAccessor struct{}

// Text reads the element's descendant text.
var Text Accessor = textAccessor{}

func (textAccessor) Read(sel *goquery.Selection) (string, bool) {
	return parser.Text(sel), true
}

func (textAccessor) String() string { return "text" }

type stringAccessor struct{}

// String reads the element's single text slot; elements with zero or
// several children are an accessor miss.
var String Accessor = stringAccessor{}

func (stringAccessor) Read(sel *goquery.Selection) (string, bool) {
	return parser.OwnString(sel)
}

func (stringAccessor) String() string { return "string" }

type attrAccessor string

// AttrOf reads the named attribute; a missing attribute is an accessor miss.
func AttrOf(name string) Accessor { return attrAccessor(name) }

func (a attrAccessor) Read(sel *goquery.Selection) (string, bool) {
	return parser.Attr(sel, string(a))
}

func (a attrAccessor) String() string { return "attr:" + string(a) }

// ParseAccessor turns "text", "string" or "attr:<name>" into an Accessor.
// An empty name selects Text.
func ParseAccessor(name string) (Accessor, error) {
	switch {
	case name == "" || name == "text":
		return Text, nil
	case name == "string":
		return String, nil
	case strings.HasPrefix(name, "attr:") && len(name) > len("attr:"):
		return AttrOf(strings.TrimPrefix(name, "attr:")), nil
	default:
		return nil, fmt.Errorf("unknown accessor %q (valid: text, string, attr:<name>)", name)
	}
}

// --- Whole-page strategies ---

// JSONLD reads a dotted path from the page's JSON-LD Product data.
type JSONLD string

// Apply implements Strategy.
func (j JSONLD) Apply(page *parser.Page) (string, bool) {
	return page.ProductValue(string(j))
}

func (j JSONLD) String() string { return "jsonld " + string(j) }

// Pattern matches a regular expression against the raw markup. The first
// non-empty capture group wins; without groups the whole match is used.
type Pattern struct {
	re *regexp.Regexp
}

// Regex compiles a Pattern strategy.
func Regex(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("invalid regex %q: %w", expr, err)
	}
	return Pattern{re: re}, nil
}

// Apply implements Strategy.
func (p Pattern) Apply(page *parser.Page) (string, bool) {
	m := p.re.FindStringSubmatch(page.Raw())
	if m == nil {
		return "", false
	}
	if len(m) == 1 {
		return m[0], true
	}
	for _, g := range m[1:] {
		if g != "" {
			return g, true
		}
	}
	return "", false
}

func (p Pattern) String() string { return "regex " + p.re.String() }
