package types

import (
	"errors"
	"reflect"
	"testing"
)

func mustSchema(t *testing.T, names ...string) *Schema {
	t.Helper()
	s, err := NewSchema(names)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	return s
}

func TestFoundEmptyIsAbsent(t *testing.T) {
	if Found("").Present() {
		t.Error("empty value should be absent")
	}
	if r := Found("x"); !r.Present() || r.Value() != "x" {
		t.Errorf("expected present x, got %v", r)
	}
}

func TestNewSchemaRejectsBadNames(t *testing.T) {
	if _, err := NewSchema(nil); !errors.Is(err, ErrNoFields) {
		t.Errorf("expected ErrNoFields, got %v", err)
	}
	if _, err := NewSchema([]string{"a", "a"}); err == nil {
		t.Error("expected duplicate error")
	}
	if _, err := NewSchema([]string{"a", ""}); err == nil {
		t.Error("expected empty name error")
	}
}

func TestRecordCoversSchema(t *testing.T) {
	s := mustSchema(t, "title", "price", "rating")
	rec := NewRecord("https://shop.test/p/1", s, []Result{Found("Phone"), Absent})

	if got := rec.Values(); !reflect.DeepEqual(got, []string{"Phone", "", ""}) {
		t.Errorf("unexpected values %q", got)
	}
	if got := rec.AbsentFields(); !reflect.DeepEqual(got, []string{"price", "rating"}) {
		t.Errorf("unexpected absent fields %q", got)
	}
	if _, ok := rec.Get("brand"); ok {
		t.Error("unknown field should not be reported")
	}
	if rec.Complete() {
		t.Error("record with absent fields is not complete")
	}
	if len(rec.Map()) != 3 {
		t.Errorf("expected 3 keys, got %d", len(rec.Map()))
	}
}

func TestRecordRowWithURL(t *testing.T) {
	s := mustSchema(t, "title")
	rec := NewRecord("https://shop.test/p/1", s, []Result{Found("Phone")})
	if got := rec.Row(true); !reflect.DeepEqual(got, []string{"https://shop.test/p/1", "Phone"}) {
		t.Errorf("unexpected row %q", got)
	}
}

func TestBatchCounts(t *testing.T) {
	s := mustSchema(t, "title", "price")
	records := []*Record{
		NewRecord("a", s, []Result{Found("A"), Found("$1")}),
		InvalidRecord("b", s),
		NewRecord("c", s, []Result{Found("C"), Absent}),
	}
	b := NewBatch(s, records)

	if b.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", b.Len())
	}
	if b.AbsentCount("title") != 1 || b.AbsentCount("price") != 2 {
		t.Errorf("unexpected absent counts %v", b.AbsentCounts())
	}
	if b.InvalidPages() != 1 {
		t.Errorf("expected 1 invalid page, got %d", b.InvalidPages())
	}
	if got := b.Columns(true); !reflect.DeepEqual(got, []string{"url", "title", "price"}) {
		t.Errorf("unexpected columns %q", got)
	}

	sum := b.Summary()
	if sum[1].Present != 1 || sum[1].Absent != 2 {
		t.Errorf("unexpected price summary %+v", sum[1])
	}
}
