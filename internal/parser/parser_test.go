package parser

import (
	"errors"
	"testing"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"

	"github.com/IshaanNene/ProductGoat/internal/types"
)

const testHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Acme Phone X</title>
    <meta property="og:title" content="Acme Phone X (OG)">
    <script type="application/ld+json">
    {"@context":"https://schema.org","@graph":[
        {"@type":"BreadcrumbList","name":"crumbs"},
        {"@type":"Product","name":"Acme Phone X","brand":{"@type":"Brand","name":"Acme"},
         "offers":[{"@type":"Offer","price":399.99,"priceCurrency":"USD"}],
         "aggregateRating":{"ratingValue":"4.5","reviewCount":1234}}
    ]}
    </script>
    <script type="application/ld+json">{ not json</script>
</head>
<body>
    <span id="productTitle">  Acme Phone X  </span>
    <span id="acrCustomerReviewText">1,234 ratings</span>
    <span id="mixed">Only <b>partly</b> text</span>
    <div id="availability"><span> In Stock. </span></div>
    <a id="bylineInfo" href="/stores/acme">Visit the Acme Store</a>
</body>
</html>`

func mustPage(t *testing.T) *Page {
	t.Helper()
	p, err := NewPage("https://shop.test/p/1", []byte(testHTML))
	if err != nil {
		t.Fatalf("new page: %v", err)
	}
	return p
}

func TestNewPageEmptyBody(t *testing.T) {
	_, err := NewPage("https://shop.test/p/1", []byte("   "))
	var perr *types.ParseError
	if !errors.As(err, &perr) || !errors.Is(err, types.ErrEmptyResponse) {
		t.Fatalf("expected ParseError wrapping ErrEmptyResponse, got %v", err)
	}
}

func TestInvalidPage(t *testing.T) {
	p := InvalidPage("https://shop.test/p/2", nil)
	if p.Valid() {
		t.Error("invalid page reported valid")
	}
	if !errors.Is(p.Err(), types.ErrInvalidPage) {
		t.Errorf("expected ErrInvalidPage, got %v", p.Err())
	}
	var nilPage *Page
	if nilPage.Valid() || nilPage.URL() != "" {
		t.Error("nil page must be invalid with empty URL")
	}
}

func TestFindFirst(t *testing.T) {
	p := mustPage(t)

	if got := Text(p.FindByID("productTitle")); got != "Acme Phone X" {
		t.Errorf("expected trimmed title, got %q", got)
	}
	if got, ok := Attr(p.FindFirst("meta", "property", "og:title"), "content"); !ok || got != "Acme Phone X (OG)" {
		t.Errorf("expected og:title content, got %q (%v)", got, ok)
	}
	if sel := p.FindByID("nope"); sel.Length() != 0 {
		t.Errorf("expected empty selection, got %d nodes", sel.Length())
	}
}

func TestOwnString(t *testing.T) {
	p := mustPage(t)

	if s, ok := OwnString(p.FindByID("acrCustomerReviewText")); !ok || s != "1,234 ratings" {
		t.Errorf("expected single text slot, got %q (%v)", s, ok)
	}
	if _, ok := OwnString(p.FindByID("mixed")); ok {
		t.Error("element with several children has no string slot")
	}
	if _, ok := OwnString(p.FindByID("nope")); ok {
		t.Error("missing element has no string slot")
	}
}

func TestSelectCSSAndXPath(t *testing.T) {
	p := mustPage(t)

	sel := cascadia.MustCompile("#availability span")
	if got := Text(p.Select(sel)); got != "In Stock." {
		t.Errorf("css: expected 'In Stock.', got %q", got)
	}

	expr := xpath.MustCompile("//div[@id='availability']/span")
	if got := Text(p.SelectXPath(expr)); got != "In Stock." {
		t.Errorf("xpath: expected 'In Stock.', got %q", got)
	}

	attr := xpath.MustCompile("//a[@id='bylineInfo']/@href")
	if got := Text(p.SelectXPath(attr)); got != "/stores/acme" {
		t.Errorf("xpath attribute: expected '/stores/acme', got %q", got)
	}

	if n := p.SelectXPath(xpath.MustCompile("//table")).Length(); n != 0 {
		t.Errorf("expected xpath miss, got %d nodes", n)
	}
}

func TestProductValue(t *testing.T) {
	p := mustPage(t)

	if p.Products() != 1 {
		t.Fatalf("expected 1 product, got %d", p.Products())
	}

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"name", "Acme Phone X", true},
		{"brand.name", "Acme", true},
		{"offers.price", "399.99", true},
		{"aggregateRating.reviewCount", "1234", true},
		{"brand", "", false},
		{"sku", "", false},
	}

	for _, tt := range tests {
		got, ok := p.ProductValue(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("%s: expected %q/%v, got %q/%v", tt.path, tt.want, tt.ok, got, ok)
		}
	}
}
