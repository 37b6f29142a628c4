package extract

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

// Normalizer cleans a raw extracted value. Normalizers are pure and never
// fail; a value normalized to "" counts as a miss.
type Normalizer func(string) string

var (
	stripPolicy   = bluemonday.StrictPolicy()
	nonNumericRe  = regexp.MustCompile(`[^0-9.,\-]`)
	firstNumberRe = regexp.MustCompile(`\d+(?:[.,]\d+)*`)
	nonDigitRe    = regexp.MustCompile(`\D`)
	brandPrefixRe = regexp.MustCompile(`(?i)^(visit the|brand:|by)\s+`)
	brandSuffixRe = regexp.MustCompile(`(?i)\s+store$`)
)

var normalizers = map[string]Normalizer{
	"trim":         strings.TrimSpace,
	"collapse":     Collapse,
	"nfkc":         NFKC,
	"unescape":     html.UnescapeString,
	"strip_tags":   StripTags,
	"currency":     Currency,
	"number":       Currency,
	"first_number": FirstNumber,
	"digits":       Digits,
	"lower":        strings.ToLower,
	"brand":        Brand,
}

// LookupNormalizer returns the named normalizer.
func LookupNormalizer(name string) (Normalizer, error) {
	n, ok := normalizers[name]
	if !ok {
		return nil, fmt.Errorf("unknown normalizer %q (valid: %s)", name, strings.Join(NormalizerNames(), ", "))
	}
	return n, nil
}

// NormalizerNames lists the registered normalizers in sorted order.
func NormalizerNames() []string {
	names := make([]string, 0, len(normalizers))
	for name := range normalizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Chain applies normalizers left to right.
func Chain(ns ...Normalizer) Normalizer {
	return func(s string) string {
		for _, n := range ns {
			s = n(s)
		}
		return s
	}
}

// Collapse trims the value and folds internal whitespace runs to one space.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NFKC applies Unicode compatibility composition, which also turns no-break
// spaces into plain spaces.
func NFKC(s string) string {
	return norm.NFKC.String(s)
}

// StripTags removes markup and decodes entities.
func StripTags(s string) string {
	return Collapse(html.UnescapeString(stripPolicy.Sanitize(s)))
}

// Currency reduces a price string to its numeric part, handling both
// 1,234.56 and 1.234,56 separators. The last separator is the decimal point
// only when it occurs once and is followed by one or two digits (a dot also
// by four or more, or by three when the other separator precedes it). Every
// other separator groups thousands, so "$1,299" becomes "1299".
func Currency(s string) string {
	numeric := nonNumericRe.ReplaceAllString(s, "")
	negative := strings.HasPrefix(numeric, "-")
	numeric = strings.ReplaceAll(numeric, "-", "")
	if !strings.ContainsAny(numeric, "0123456789") {
		return ""
	}

	last := strings.LastIndexAny(numeric, ".,")
	if last >= 0 {
		sep := numeric[last : last+1]
		trail := len(numeric) - last - 1
		other := "."
		if sep == "." {
			other = ","
		}

		decimal := strings.Count(numeric, sep) == 1 && trail > 0
		switch {
		case !decimal:
		case sep == ",":
			decimal = trail <= 2
		case trail == 3:
			decimal = strings.Contains(numeric[:last], other)
		}

		whole := stripSeparators(numeric[:last])
		if decimal {
			numeric = whole + "." + numeric[last+1:]
		} else {
			numeric = whole + numeric[last+1:]
		}
	}

	if negative {
		numeric = "-" + numeric
	}
	return numeric
}

func stripSeparators(s string) string {
	return strings.NewReplacer(",", "", ".", "").Replace(s)
}

// FirstNumber returns the first number in the value, so "4.5 out of 5 stars"
// becomes "4.5". A decimal comma is written as a dot.
func FirstNumber(s string) string {
	m := firstNumberRe.FindString(s)
	if m == "" {
		return ""
	}
	return Currency(m)
}

// Digits keeps only the digits, so "1,234 ratings" becomes "1234".
func Digits(s string) string {
	return nonDigitRe.ReplaceAllString(s, "")
}

// Brand strips storefront byline decoration such as "Visit the Acme Store"
// or "Brand: Acme".
func Brand(s string) string {
	s = Collapse(s)
	s = brandPrefixRe.ReplaceAllString(s, "")
	s = brandSuffixRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
