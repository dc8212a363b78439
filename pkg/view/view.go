// Package view implements lazy, immutable, chainable read-only views over a
// record collection.
//
// A View owns an ordered pipeline of declarative stages and a shared
// reference to the collection it reads from. Chain operations never mutate
// the receiver; each one returns a new View whose pipeline is the old one
// plus exactly one appended stage. Nothing touches the store until the view
// is materialized by iterating, counting, or aggregating it.
//
// Example use:
//
//	v := view.New(collection)
//	v, _ = v.Filter(view.Filter{Tag: "validated"})
//	v, _ = v.SortBy("metadata.size_bytes", false)
//	v, _ = v.Take(5, false)
//
//	iter, _ := v.Iterate(ctx)
//	defer iter.Stop()
package view

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/lensdb/lens/pkg/storage"
)

// A View is an immutable, chainable read-only query over a record collection.
// Views are safe to share across goroutines; each materialization opens an
// independent execution against the store.
type View struct {
	collection storage.Collection
	pipeline   Pipeline
}

// New returns an empty view over the given collection.
func New(c storage.Collection) *View {
	return &View{collection: c}
}

// Collection returns the collection the view reads from.
func (v *View) Collection() storage.Collection {
	return v.collection
}

// Pipeline returns a copy of the view's stage list.
func (v *View) Pipeline() Pipeline {
	return v.pipeline.with()
}

// extend returns a new view over the same collection with the given stages
// appended. The receiver is never mutated.
func (v *View) extend(stages ...Stage) *View {
	return &View{
		collection: v.collection,
		pipeline:   v.pipeline.with(stages...),
	}
}

// Filter selects the records to keep. At most one selector of each kind may
// be set; each set selector appends one match stage.
type Filter struct {
	// Tag keeps records whose tags contain the given tag.
	Tag string

	// InsightGroup and LabelGroup are recognized but not yet supported.
	// Setting either fails with ErrNotImplemented.
	InsightGroup string
	LabelGroup   string

	// Expr is a store-native predicate document applied as-is.
	Expr bson.D
}

// Filter returns a new view keeping only the records matched by f.
func (v *View) Filter(f Filter) (*View, error) {
	out := v

	if f.Tag != "" {
		out = out.extend(NewTagMatch(f.Tag))
	}

	if f.InsightGroup != "" {
		return nil, fmt.Errorf("insight group filtering: %w", ErrNotImplemented)
	}

	if f.LabelGroup != "" {
		return nil, fmt.Errorf("label group filtering: %w", ErrNotImplemented)
	}

	if f.Expr != nil {
		stage, err := NewMatch(f.Expr)
		if err != nil {
			return nil, err
		}
		out = out.extend(stage)
	}

	return out, nil
}

// SortBy returns a new view sorted by the given field, descending when
// reverse is true. Dotted and array-index paths such as
// "metadata.frame_size.0" are resolved by the store.
func (v *View) SortBy(field string, reverse bool) (*View, error) {
	stage, err := NewSort(field, reverse)
	if err != nil {
		return nil, err
	}
	return v.extend(stage), nil
}

// Take returns a new view limited to size records, sampled uniformly at
// random when random is true. A size of zero yields an empty result set.
func (v *View) Take(size int64, random bool) (*View, error) {
	var (
		stage Stage
		err   error
	)
	if random {
		stage, err = NewSample(size)
	} else {
		stage, err = NewLimit(size)
	}
	if err != nil {
		return nil, err
	}
	return v.extend(stage), nil
}

// Offset returns a new view omitting the first n records.
func (v *View) Offset(n int64) (*View, error) {
	stage, err := NewSkip(n)
	if err != nil {
		return nil, err
	}
	return v.extend(stage), nil
}

// Select returns a new view keeping only the records with the given ids.
// Malformed ids fail with ErrInvalidID before any stage is built.
func (v *View) Select(ids []string) (*View, error) {
	parsed, err := ParseIDs(ids)
	if err != nil {
		return nil, err
	}
	return v.extend(NewSelectIDs(parsed)), nil
}

// Exclude returns a new view dropping the records with the given ids.
func (v *View) Exclude(ids []string) (*View, error) {
	parsed, err := ParseIDs(ids)
	if err != nil {
		return nil, err
	}
	return v.extend(NewExcludeIDs(parsed)), nil
}
