package view

import (
	"context"
	"fmt"

	"github.com/lensdb/lens/pkg/record"
	"github.com/lensdb/lens/pkg/storage"
)

// run is the single execution funnel every read operation goes through. It
// concatenates the view's own pipeline with the extra stages and delegates to
// the owning collection. Extra stages apply after the view's own and never
// mutate it.
func (v *View) run(ctx context.Context, extra ...Stage) (storage.DocumentIterator, error) {
	pipeline := v.pipeline.with(extra...)

	// A zero limit is a legal way to spell an empty view, but servers reject
	// the stage outright. Resolve it locally.
	if pipeline.hasZeroLimit() {
		return storage.NewStaticDocumentIterator(nil), nil
	}

	return v.collection.Aggregate(ctx, pipeline.Documents())
}

// Aggregate executes the view's pipeline with the given extra stages appended
// and returns a lazy iterator over the raw result documents.
func (v *View) Aggregate(ctx context.Context, extra ...Stage) (storage.DocumentIterator, error) {
	return v.run(ctx, extra...)
}

// Iterate returns a lazy, non-restartable iterator over the records in the
// view. Materialization cost is paid as the iterator is consumed; iterating
// again requires a new call, which re-executes the pipeline.
func (v *View) Iterate(ctx context.Context) (storage.Iterator[*record.Record], error) {
	docs, err := v.run(ctx)
	if err != nil {
		return nil, err
	}
	return storage.NewMappedIterator(docs, func(doc storage.Document) (*record.Record, error) {
		return record.FromDocument(doc, v.collection)
	}), nil
}

// An IndexedRecord pairs a record with its integer index in the collection,
// relative to the offset the view's pipeline implies.
type IndexedRecord struct {
	Index  int64
	Record *record.Record
}

// IterateWithIndex returns a lazy iterator over (index, record) pairs. The
// base index is the offset of the last skip stage in the view's pipeline, or
// 0 if there is none, so an externally-paginated display can resume at the
// correct absolute position.
func (v *View) IterateWithIndex(ctx context.Context) (storage.Iterator[IndexedRecord], error) {
	records, err := v.Iterate(ctx)
	if err != nil {
		return nil, err
	}

	next := v.pipeline.lastSkip()
	return storage.NewMappedIterator(records, func(r *record.Record) (IndexedRecord, error) {
		ir := IndexedRecord{Index: next, Record: r}
		next++
		return ir, nil
	}), nil
}

// Count executes the pipeline with an appended count stage and returns the
// number of records in the view. An empty result is a count of zero, not an
// error.
func (v *View) Count(ctx context.Context) (int64, error) {
	docs, err := v.run(ctx, countStage("count"))
	if err != nil {
		return 0, err
	}
	defer docs.Stop()

	doc, ok, err := storage.First(ctx, docs)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	n, ok := asInt64(doc["count"])
	if !ok {
		return 0, fmt.Errorf("count stage yielded malformed document %v", doc)
	}
	return n, nil
}

// Get returns the record with the given id if it is present in the view.
// Existence is probed through the view's pipeline, but the record itself is
// fetched through the collection directly so it carries full field population
// regardless of any projections the view applies. Absence fails with an error
// wrapping storage.ErrNotFound.
func (v *View) Get(ctx context.Context, id string) (*record.Record, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	limit, err := NewLimit(1)
	if err != nil {
		return nil, err
	}

	docs, err := v.run(ctx, matchID(oid), limit)
	if err != nil {
		return nil, err
	}
	defer docs.Stop()

	_, ok, err := storage.First(ctx, docs)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no record with id %q in view: %w", id, storage.ErrNotFound)
	}

	return v.collection.GetRecord(ctx, oid)
}
