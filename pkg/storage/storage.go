// Package storage contains the contracts a record collection must satisfy for
// views to compose and materialize against it, along with the iterator
// protocol used to consume results lazily.
package storage

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/lensdb/lens/pkg/record"
)

// Document is one raw result document produced by pipeline execution.
type Document = bson.M

// DocumentIterator is a lazy, non-restartable sequence of result documents.
// It is closed by explicitly calling Stop() or by calling Next() until it
// returns ErrIteratorDone.
type DocumentIterator = Iterator[Document]

// A Collection is the owning dataset a view reads from. Implementations must
// be safe for concurrent readers; nothing in this module ever writes through
// this interface.
type Collection interface {
	record.Source

	// Aggregate executes the ordered pipeline and returns a lazy iterator
	// over the raw result documents. Each call opens an independent
	// execution with no shared cursor state.
	Aggregate(ctx context.Context, pipeline []bson.D) (DocumentIterator, error)

	// Serialize returns a structured descriptor of the collection itself.
	// It must be a pure function of the collection's identity.
	Serialize() bson.D

	// Name returns the collection's name, for diagnostics.
	Name() string
}
