package types

import (
	"fmt"
)

// Result is the outcome of one extraction step: a non-empty value or absent.
type Result struct {
	value   string
	present bool
}

// Absent is the result of a field whose strategies all failed.
var Absent = Result{}

// Found wraps a value. An empty value is absent.
func Found(value string) Result {
	if value == "" {
		return Absent
	}
	return Result{value: value, present: true}
}

// Value returns the extracted value, or "" when absent.
func (r Result) Value() string { return r.value }

// Present reports whether the result holds a value.
func (r Result) Present() bool { return r.present }

func (r Result) String() string {
	if !r.present {
		return "<absent>"
	}
	return r.value
}

// Schema is the ordered, duplicate-free list of field names shared by every
// record of a run.
type Schema struct {
	names []string
	index map[string]int
}

// NewSchema builds a schema from field names in column order.
func NewSchema(names []string) (*Schema, error) {
	if len(names) == 0 {
		return nil, ErrNoFields
	}
	s := &Schema{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
	}
	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("field #%d has an empty name", i+1)
		}
		if _, dup := s.index[name]; dup {
			return nil, fmt.Errorf("duplicate field name %q", name)
		}
		s.index[name] = i
	}
	return s, nil
}

// Names returns a copy of the field names in column order.
func (s *Schema) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.names) }

// Index returns the column of a field.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Record is the fixed-schema result of extracting all fields from one page.
// It is immutable once built.
type Record struct {
	url     string
	schema  *Schema
	values  []string
	absent  []bool
	invalid bool
}

// NewRecord builds a record from one result per schema field. Missing
// trailing results are treated as absent.
func NewRecord(url string, schema *Schema, results []Result) *Record {
	r := &Record{
		url:    url,
		schema: schema,
		values: make([]string, schema.Len()),
		absent: make([]bool, schema.Len()),
	}
	for i := range r.values {
		if i < len(results) && results[i].Present() {
			r.values[i] = results[i].Value()
			continue
		}
		r.absent[i] = true
	}
	return r
}

// InvalidRecord is the all-absent record substituted for a page that could
// not be produced upstream.
func InvalidRecord(url string, schema *Schema) *Record {
	r := NewRecord(url, schema, nil)
	r.invalid = true
	return r
}

// URL returns the source page URL.
func (r *Record) URL() string { return r.url }

// Schema returns the record's field schema.
func (r *Record) Schema() *Schema { return r.schema }

// Fields returns the field names in column order.
func (r *Record) Fields() []string { return r.schema.Names() }

// Get returns a field's value; ok is false only for unknown field names.
func (r *Record) Get(name string) (value string, ok bool) {
	i, ok := r.schema.Index(name)
	if !ok {
		return "", false
	}
	return r.values[i], true
}

// Value returns a field's value, "" when absent or unknown.
func (r *Record) Value(name string) string {
	v, _ := r.Get(name)
	return v
}

// Values returns a copy of the values in column order.
func (r *Record) Values() []string {
	return append([]string(nil), r.values...)
}

// IsAbsent reports whether a field's strategies were all exhausted.
func (r *Record) IsAbsent(name string) bool {
	i, ok := r.schema.Index(name)
	return ok && r.absent[i]
}

// AbsentFields lists the absent fields in column order.
func (r *Record) AbsentFields() []string {
	var out []string
	for i, a := range r.absent {
		if a {
			out = append(out, r.schema.names[i])
		}
	}
	return out
}

// Complete reports whether no field is absent.
func (r *Record) Complete() bool {
	for _, a := range r.absent {
		if a {
			return false
		}
	}
	return true
}

// Invalid reports whether the record stands in for an invalid page.
func (r *Record) Invalid() bool { return r.invalid }

// Map returns the values keyed by field name.
func (r *Record) Map() map[string]string {
	m := make(map[string]string, len(r.values))
	for i, v := range r.values {
		m[r.schema.names[i]] = v
	}
	return m
}

// Row returns the values in column order, optionally prefixed by the URL.
func (r *Record) Row(includeURL bool) []string {
	if !includeURL {
		return r.Values()
	}
	return append([]string{r.url}, r.values...)
}

// Batch is the ordered collection of records from a multi-page run together
// with per-field absence statistics.
type Batch struct {
	schema  *Schema
	records []*Record
	absent  []int
	invalid int
}

// NewBatch derives a batch from records already in input order.
func NewBatch(schema *Schema, records []*Record) *Batch {
	b := &Batch{
		schema:  schema,
		records: records,
		absent:  make([]int, schema.Len()),
	}
	for _, rec := range records {
		if rec.invalid {
			b.invalid++
		}
		for i, a := range rec.absent {
			if a {
				b.absent[i]++
			}
		}
	}
	return b
}

// Schema returns the batch's field schema.
func (b *Batch) Schema() *Schema { return b.schema }

// Fields returns the field names in column order.
func (b *Batch) Fields() []string { return b.schema.Names() }

// Columns returns the export header, optionally prefixed by "url".
func (b *Batch) Columns(includeURL bool) []string {
	if !includeURL {
		return b.Fields()
	}
	return append([]string{"url"}, b.schema.names...)
}

// Len returns the number of records.
func (b *Batch) Len() int { return len(b.records) }

// Record returns the i-th record in input order.
func (b *Batch) Record(i int) *Record { return b.records[i] }

// Records returns the records in input order.
func (b *Batch) Records() []*Record {
	return append([]*Record(nil), b.records...)
}

// AbsentCount returns how many records lack the named field.
func (b *Batch) AbsentCount(name string) int {
	i, ok := b.schema.Index(name)
	if !ok {
		return 0
	}
	return b.absent[i]
}

// AbsentCounts returns the absent count of every field.
func (b *Batch) AbsentCounts() map[string]int {
	m := make(map[string]int, len(b.absent))
	for i, n := range b.absent {
		m[b.schema.names[i]] = n
	}
	return m
}

// InvalidPages returns the number of records substituted for invalid pages.
func (b *Batch) InvalidPages() int { return b.invalid }

// FieldSummary is the data-quality line for one field.
type FieldSummary struct {
	Name      string  `json:"name" yaml:"name"`
	Present   int     `json:"present" yaml:"present"`
	Absent    int     `json:"absent" yaml:"absent"`
	FillRatio float64 `json:"fill_ratio" yaml:"fill_ratio"`
}

// Summary returns per-field fill statistics in column order.
func (b *Batch) Summary() []FieldSummary {
	out := make([]FieldSummary, len(b.absent))
	for i, n := range b.absent {
		s := FieldSummary{
			Name:    b.schema.names[i],
			Absent:  n,
			Present: len(b.records) - n,
		}
		if len(b.records) > 0 {
			s.FillRatio = float64(s.Present) / float64(len(b.records))
		}
		out[i] = s
	}
	return out
}
