package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/IshaanNene/ProductGoat/internal/config"
	"github.com/IshaanNene/ProductGoat/internal/types"
)

// FieldSpec names a field, its ordered fallback chain and its normalizer.
type FieldSpec struct {
	Name       string
	Strategies []Strategy
	Normalize  Normalizer
}

// FieldSet is the active, ordered list of field specs together with the
// schema every record built from it carries.
type FieldSet struct {
	specs  []FieldSpec
	schema *types.Schema
}

// NewFieldSet validates names and fixes the field order.
func NewFieldSet(specs []FieldSpec) (*FieldSet, error) {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	schema, err := types.NewSchema(names)
	if err != nil {
		return nil, err
	}
	return &FieldSet{specs: append([]FieldSpec(nil), specs...), schema: schema}, nil
}

// Specs returns the field specs in order.
func (fs *FieldSet) Specs() []FieldSpec { return fs.specs }

// Schema returns the field schema.
func (fs *FieldSet) Schema() *types.Schema { return fs.schema }

// Len returns the number of fields.
func (fs *FieldSet) Len() int { return len(fs.specs) }

// BuildFieldSet compiles configured fields. Errors are *types.ConfigError
// naming the offending field and strategy.
func BuildFieldSet(cfgs []config.FieldConfig) (*FieldSet, error) {
	specs, err := BuildFieldSpecs(cfgs)
	if err != nil {
		return nil, err
	}
	fs, err := NewFieldSet(specs)
	if err != nil {
		return nil, &types.ConfigError{Field: "extract.fields", Strategy: -1, Err: err}
	}
	return fs, nil
}

// DefaultFieldSet returns the built-in product fields.
func DefaultFieldSet() *FieldSet {
	fs, err := BuildFieldSet(config.DefaultProductFields())
	if err != nil {
		panic(fmt.Sprintf("extract: built-in fields do not compile: %v", err))
	}
	return fs
}

// BuildFieldSpecs compiles each configured field into a FieldSpec.
func BuildFieldSpecs(cfgs []config.FieldConfig) ([]FieldSpec, error) {
	if len(cfgs) == 0 {
		return nil, &types.ConfigError{Field: "extract.fields", Strategy: -1, Err: types.ErrNoFields}
	}

	specs := make([]FieldSpec, 0, len(cfgs))
	for _, fc := range cfgs {
		spec, err := buildFieldSpec(fc)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func buildFieldSpec(fc config.FieldConfig) (FieldSpec, error) {
	if fc.Name == "" {
		return FieldSpec{}, &types.ConfigError{Strategy: -1, Err: errors.New("field name is empty")}
	}
	if len(fc.Strategies) == 0 {
		return FieldSpec{}, &types.ConfigError{Field: fc.Name, Strategy: -1, Err: errors.New("no strategies")}
	}

	spec := FieldSpec{Name: fc.Name, Normalize: Collapse}
	if len(fc.Normalize) > 0 {
		ns := make([]Normalizer, 0, len(fc.Normalize))
		for _, name := range fc.Normalize {
			n, err := LookupNormalizer(name)
			if err != nil {
				return FieldSpec{}, &types.ConfigError{Field: fc.Name, Strategy: -1, Err: err}
			}
			ns = append(ns, n)
		}
		spec.Normalize = Chain(ns...)
	}

	for i, sc := range fc.Strategies {
		s, err := BuildStrategy(sc)
		if err != nil {
			return FieldSpec{}, &types.ConfigError{Field: fc.Name, Strategy: i, Err: err}
		}
		spec.Strategies = append(spec.Strategies, s)
	}
	return spec, nil
}

// BuildStrategy compiles one configured strategy.
func BuildStrategy(sc config.StrategyConfig) (Strategy, error) {
	kind := strings.ToLower(sc.Kind)

	if kind == "jsonld" || kind == "regex" {
		if sc.Accessor != "" && sc.Accessor != "text" {
			return nil, fmt.Errorf("%s strategies do not take an accessor", kind)
		}
		if sc.Selector == "" {
			return nil, fmt.Errorf("%s strategy needs a selector", kind)
		}
		if kind == "jsonld" {
			return JSONLD(sc.Selector), nil
		}
		return Regex(sc.Selector)
	}

	acc, err := ParseAccessor(sc.Accessor)
	if err != nil {
		return nil, err
	}

	var loc Locator
	switch kind {
	case "id":
		if sc.Value == "" {
			return nil, errors.New("id strategy needs a value")
		}
		loc = ByID(sc.Value)
	case "tag":
		if sc.Attr == "" {
			return nil, errors.New("tag strategy needs an attr")
		}
		loc = ByTag(sc.Tag, sc.Attr, sc.Value)
	case "css":
		if sc.Selector == "" {
			return nil, errors.New("css strategy needs a selector")
		}
		if loc, err = CSS(sc.Selector); err != nil {
			return nil, err
		}
	case "xpath":
		if sc.Selector == "" {
			return nil, errors.New("xpath strategy needs a selector")
		}
		if loc, err = XPath(sc.Selector); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown strategy kind %q (valid: id, tag, css, xpath, jsonld, regex)", sc.Kind)
	}

	return Select(loc, acc), nil
}
