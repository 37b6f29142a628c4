package parser

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractProducts parses <script type="application/ld+json"> blocks and
// returns every object typed as a schema.org Product, in document order.
// Blocks that fail to decode are skipped.
func extractProducts(doc *goquery.Document) []map[string]any {
	var products []map[string]any

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}

		dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return
		}
		collectProducts(v, &products)
	})

	return products
}

// collectProducts walks arrays and @graph containers looking for Product
// objects.
func collectProducts(v any, out *[]map[string]any) {
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			collectProducts(e, out)
		}
	case map[string]any:
		if isProduct(t["@type"]) {
			*out = append(*out, t)
		}
		if g, ok := t["@graph"]; ok {
			collectProducts(g, out)
		}
	}
}

func isProduct(t any) bool {
	switch v := t.(type) {
	case string:
		return strings.EqualFold(v, "Product") || strings.HasSuffix(v, "/Product")
	case []any:
		for _, e := range v {
			if isProduct(e) {
				return true
			}
		}
	}
	return false
}

// ProductValue resolves a dotted path such as "offers.price" against the
// page's JSON-LD products and returns the first scalar found. Arrays along
// the path resolve to their first element.
func (p *Page) ProductValue(path string) (string, bool) {
	if !p.Valid() || path == "" {
		return "", false
	}
	keys := strings.Split(path, ".")
	for _, prod := range p.products {
		if s, ok := lookup(prod, keys); ok {
			return s, true
		}
	}
	return "", false
}

// Products returns the number of JSON-LD products found on the page.
func (p *Page) Products() int {
	if p == nil {
		return 0
	}
	return len(p.products)
}

func lookup(v any, keys []string) (string, bool) {
	for _, k := range keys {
		if arr, ok := v.([]any); ok {
			if len(arr) == 0 {
				return "", false
			}
			v = arr[0]
		}
		m, ok := v.(map[string]any)
		if !ok {
			return "", false
		}
		if v, ok = m[k]; !ok {
			return "", false
		}
	}
	if arr, ok := v.([]any); ok && len(arr) > 0 {
		v = arr[0]
	}
	return scalar(v)
}

func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
