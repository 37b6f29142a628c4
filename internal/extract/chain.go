package extract

import (
	"strings"

	"github.com/IshaanNene/ProductGoat/internal/parser"
	"github.com/IshaanNene/ProductGoat/internal/types"
)

// Evaluate tries strategies in order and returns the first value that is
// non-empty after normalization. Later strategies are not run once one
// succeeds. A strategy that misses or panics is skipped. A nil normalize
// trims whitespace only.
func Evaluate(page *parser.Page, strategies []Strategy, normalize Normalizer) types.Result {
	if !page.Valid() {
		return types.Absent
	}
	if normalize == nil {
		normalize = strings.TrimSpace
	}

	for _, s := range strategies {
		if v, ok := attempt(page, s, normalize); ok {
			return types.Found(v)
		}
	}
	return types.Absent
}

// attempt runs one strategy, turning panics from malformed markup into a miss.
func attempt(page *parser.Page, s Strategy, normalize Normalizer) (v string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			v, ok = "", false
		}
	}()

	raw, ok := s.Apply(page)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(normalize(raw))
	return v, v != ""
}

// Extract evaluates one field on a page.
func Extract(page *parser.Page, spec FieldSpec) types.Result {
	return Evaluate(page, spec.Strategies, spec.Normalize)
}
