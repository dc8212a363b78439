// Package memory provides an ephemeral, memory-backed implementation of
// storage.Collection. It interprets the pipeline operator subset the view
// layer emits and is primarily used by tests and example tooling.
package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lensdb/lens/pkg/record"
	"github.com/lensdb/lens/pkg/storage"
)

// A Collection holds records in memory. Instances may be safely shared by
// multiple goroutines; every aggregation runs against a point-in-time
// snapshot of the documents.
type Collection struct {
	name string

	mu   sync.RWMutex
	docs []bson.M /* GUARDED_BY(mu) */
	rnd  *rand.Rand
}

var _ storage.Collection = (*Collection)(nil)

type Option func(*Collection)

// WithRandSource fixes the random source used by $sample, for deterministic
// tests.
func WithRandSource(src rand.Source) Option {
	return func(c *Collection) {
		c.rnd = rand.New(src)
	}
}

// New creates an empty in-memory collection.
func New(name string, opts ...Option) *Collection {
	c := &Collection{name: name}
	for _, opt := range opts {
		opt(c)
	}
	if c.rnd == nil {
		c.rnd = rand.New(rand.NewSource(rand.Int63()))
	}
	return c
}

// Insert adds documents to the collection, assigning an ObjectID to any
// document without one, and returns the ids in insertion order.
func (c *Collection) Insert(docs ...bson.M) []primitive.ObjectID {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]primitive.ObjectID, 0, len(docs))
	for _, doc := range docs {
		id, ok := doc["_id"].(primitive.ObjectID)
		if !ok {
			id = primitive.NewObjectID()
			doc["_id"] = id
		}
		ids = append(ids, id)
		c.docs = append(c.docs, doc)
	}
	return ids
}

// Aggregate runs the pipeline against a snapshot of the collection. Results
// are computed eagerly and returned through a static iterator.
func (c *Collection) Aggregate(ctx context.Context, pipeline []bson.D) (storage.DocumentIterator, error) {
	c.mu.RLock()
	snapshot := make([]bson.M, len(c.docs))
	copy(snapshot, c.docs)
	c.mu.RUnlock()

	results, err := runPipeline(snapshot, pipeline, c.sample)
	if err != nil {
		return nil, err
	}
	return storage.NewStaticDocumentIterator(results), nil
}

// GetRecord returns the record with the given id, or an error wrapping
// storage.ErrNotFound when no such record exists.
func (c *Collection) GetRecord(ctx context.Context, id primitive.ObjectID) (*record.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, doc := range c.docs {
		if got, ok := doc["_id"].(primitive.ObjectID); ok && got == id {
			return record.FromDocument(doc, c)
		}
	}
	return nil, fmt.Errorf("no record with id %q: %w", id.Hex(), storage.ErrNotFound)
}

// Serialize returns the collection descriptor.
func (c *Collection) Serialize() bson.D {
	return bson.D{{Key: "name", Value: c.name}}
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// sample picks n documents uniformly at random without replacement.
func (c *Collection) sample(docs []bson.M, n int64) []bson.M {
	c.mu.Lock()
	defer c.mu.Unlock()

	shuffled := make([]bson.M, len(docs))
	copy(shuffled, docs)
	c.rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if n > int64(len(shuffled)) {
		n = int64(len(shuffled))
	}
	return shuffled[:n]
}
