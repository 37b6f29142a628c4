package extract

import (
	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/ProductGoat/internal/parser"
	"github.com/IshaanNene/ProductGoat/internal/types"
)

// Assemble extracts every field of the set from one page. The record always
// carries exactly the set's fields; an invalid page yields an all-absent
// record flagged invalid.
func Assemble(page *parser.Page, fields *FieldSet) *types.Record {
	if !page.Valid() {
		return types.InvalidRecord(page.URL(), fields.schema)
	}

	results := make([]types.Result, len(fields.specs))
	for i, spec := range fields.specs {
		results[i] = Extract(page, spec)
	}
	return types.NewRecord(page.URL(), fields.schema, results)
}

// Run assembles one record per page, in input order, and aggregates them.
func Run(pages []*parser.Page, fields *FieldSet) *types.Batch {
	records := make([]*types.Record, len(pages))
	for i, p := range pages {
		records[i] = Assemble(p, fields)
	}
	return types.NewBatch(fields.schema, records)
}

// RunParallel is Run with pages spread over at most workers goroutines.
// Record order still follows page order.
func RunParallel(pages []*parser.Page, fields *FieldSet, workers int) *types.Batch {
	if workers <= 1 || len(pages) <= 1 {
		return Run(pages, fields)
	}

	records := make([]*types.Record, len(pages))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, p := range pages {
		g.Go(func() error {
			records[i] = Assemble(p, fields)
			return nil
		})
	}
	_ = g.Wait()

	return types.NewBatch(fields.schema, records)
}
