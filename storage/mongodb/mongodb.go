// Package mongodb implements storage.Collection over a MongoDB collection
// using the official driver.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/lensdb/lens/pkg/logger"
	"github.com/lensdb/lens/pkg/record"
	"github.com/lensdb/lens/pkg/storage"
)

// A Collection adapts a *mongo.Collection to the storage.Collection contract.
// It adds no retry or suppression logic: driver failures propagate unchanged.
type Collection struct {
	coll   *mongo.Collection
	tracer trace.Tracer
	logger logger.Logger
}

var _ storage.Collection = (*Collection)(nil)

type Option func(*Collection)

// WithLogger sets the logger used for failed store calls.
func WithLogger(l logger.Logger) Option {
	return func(c *Collection) {
		c.logger = l
	}
}

// New wraps coll as a record collection.
func New(coll *mongo.Collection, opts ...Option) *Collection {
	c := &Collection{
		coll:   coll,
		tracer: otel.Tracer("lens/storage/mongodb"),
		logger: logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Aggregate executes the pipeline and returns a cursor-backed lazy iterator.
func (c *Collection) Aggregate(ctx context.Context, pipeline []bson.D) (storage.DocumentIterator, error) {
	ctx, span := c.tracer.Start(ctx, "mongodb.Aggregate", trace.WithAttributes(
		attribute.String("collection", c.coll.Name()),
		attribute.Int("stages", len(pipeline)),
	))
	defer span.End()

	cursor, err := c.coll.Aggregate(ctx, mongo.Pipeline(pipeline))
	if err != nil {
		c.logger.Error("aggregation failed",
			zap.String("collection", c.coll.Name()),
			zap.Int("stages", len(pipeline)),
			zap.Error(err),
		)
		return nil, err
	}
	return &cursorIterator{cursor: cursor}, nil
}

// GetRecord fetches one record by id, fully populated.
func (c *Collection) GetRecord(ctx context.Context, id primitive.ObjectID) (*record.Record, error) {
	ctx, span := c.tracer.Start(ctx, "mongodb.GetRecord", trace.WithAttributes(
		attribute.String("collection", c.coll.Name()),
	))
	defer span.End()

	var doc bson.M
	err := c.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("no record with id %q: %w", id.Hex(), storage.ErrNotFound)
		}
		return nil, err
	}
	return record.FromDocument(doc, c)
}

// Serialize returns the collection descriptor: database and collection name.
func (c *Collection) Serialize() bson.D {
	return bson.D{
		{Key: "database", Value: c.coll.Database().Name()},
		{Key: "name", Value: c.coll.Name()},
	}
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.coll.Name()
}

// cursorIterator adapts a driver cursor to the iterator protocol. Pulling is
// synchronous; abandoning the iterator requires Stop to release the cursor.
type cursorIterator struct {
	cursor *mongo.Cursor
}

var _ storage.DocumentIterator = (*cursorIterator)(nil)

func (it *cursorIterator) Next(ctx context.Context) (storage.Document, error) {
	if ctx.Err() != nil {
		return nil, storage.ErrIteratorDone
	}
	if !it.cursor.Next(ctx) {
		if err := it.cursor.Err(); err != nil && !errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, storage.ErrIteratorDone
	}

	var doc storage.Document
	if err := it.cursor.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (it *cursorIterator) Stop() {
	_ = it.cursor.Close(context.Background())
}
