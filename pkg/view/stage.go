package view

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind identifies one of the closed set of pipeline operations a Stage can
// describe. The view layer never interprets a stage's semantics beyond its
// kind and ordering; execution belongs to the store.
type Kind string

const (
	KindMatch   Kind = "match"
	KindSort    Kind = "sort"
	KindLimit   Kind = "limit"
	KindSkip    Kind = "skip"
	KindSample  Kind = "sample"
	KindProject Kind = "project"
	KindUnwind  Kind = "unwind"
	KindGroup   Kind = "group"
	KindFacet   Kind = "facet"
	KindCount   Kind = "count"
)

var kindByOperator = map[string]Kind{
	"$match":   KindMatch,
	"$sort":    KindSort,
	"$limit":   KindLimit,
	"$skip":    KindSkip,
	"$sample":  KindSample,
	"$project": KindProject,
	"$unwind":  KindUnwind,
	"$group":   KindGroup,
	"$facet":   KindFacet,
	"$count":   KindCount,
}

// A Stage is one declarative, store-native step of a query pipeline. Stages
// are immutable once created; constructors validate their arguments eagerly
// so that malformed stages fail at the call site, not at materialization.
type Stage struct {
	kind Kind
	doc  bson.D
}

func newStage(kind Kind, doc bson.D) Stage {
	return Stage{kind: kind, doc: doc}
}

// Kind returns the operation kind of the stage.
func (s Stage) Kind() Kind {
	return s.kind
}

// Document returns the store-native descriptor of the stage. The returned
// value must be treated as read-only.
func (s Stage) Document() bson.D {
	return s.doc
}

// String renders the stage as canonical extended JSON, for diagnostics.
func (s Stage) String() string {
	data, err := bson.MarshalExtJSON(s.doc, true, false)
	if err != nil {
		return fmt.Sprintf("<unencodable %s stage>", s.kind)
	}
	return string(data)
}

// NewMatch builds a match stage from a store-native predicate document.
func NewMatch(expr bson.D) (Stage, error) {
	if expr == nil {
		return Stage{}, fmt.Errorf("match expression must not be nil")
	}
	return newStage(KindMatch, bson.D{{Key: "$match", Value: expr}}), nil
}

// NewTagMatch builds a match stage selecting records whose tags contain tag.
func NewTagMatch(tag string) Stage {
	return newStage(KindMatch, bson.D{{Key: "$match", Value: bson.D{{Key: "tags", Value: tag}}}})
}

// NewSort builds a sort stage on field, ascending by default. Dotted and
// array-index paths are passed through; the store resolves them.
func NewSort(field string, reverse bool) (Stage, error) {
	if field == "" {
		return Stage{}, fmt.Errorf("sort field must not be empty")
	}
	order := int32(1)
	if reverse {
		order = int32(-1)
	}
	return newStage(KindSort, bson.D{{Key: "$sort", Value: bson.D{{Key: field, Value: order}}}}), nil
}

// NewLimit builds a deterministic head-limit stage. A size of zero yields an
// empty result set.
func NewLimit(size int64) (Stage, error) {
	if size < 0 {
		return Stage{}, fmt.Errorf("limit size must be non-negative, got %d", size)
	}
	return newStage(KindLimit, bson.D{{Key: "$limit", Value: size}}), nil
}

// NewSample builds a uniform-random-sample stage of the given size.
func NewSample(size int64) (Stage, error) {
	if size < 0 {
		return Stage{}, fmt.Errorf("sample size must be non-negative, got %d", size)
	}
	return newStage(KindSample, bson.D{{Key: "$sample", Value: bson.D{{Key: "size", Value: size}}}}), nil
}

// NewSkip builds a skip stage dropping the first n records.
func NewSkip(n int64) (Stage, error) {
	if n < 0 {
		return Stage{}, fmt.Errorf("skip offset must be non-negative, got %d", n)
	}
	return newStage(KindSkip, bson.D{{Key: "$skip", Value: n}}), nil
}

// NewSelectIDs builds a match stage keeping only the records with the given ids.
func NewSelectIDs(ids []primitive.ObjectID) Stage {
	return newStage(KindMatch, bson.D{{Key: "$match", Value: bson.D{
		{Key: "_id", Value: bson.D{{Key: "$in", Value: idArray(ids)}}},
	}}})
}

// NewExcludeIDs builds a match stage dropping the records with the given ids.
func NewExcludeIDs(ids []primitive.ObjectID) Stage {
	return newStage(KindMatch, bson.D{{Key: "$match", Value: bson.D{
		{Key: "_id", Value: bson.D{{Key: "$not", Value: bson.D{{Key: "$in", Value: idArray(ids)}}}}},
	}}})
}

func idArray(ids []primitive.ObjectID) bson.A {
	arr := make(bson.A, len(ids))
	for i, id := range ids {
		arr[i] = id
	}
	return arr
}

func matchID(id primitive.ObjectID) Stage {
	return newStage(KindMatch, bson.D{{Key: "$match", Value: bson.D{{Key: "_id", Value: id}}}})
}

func projectStage(fields bson.D) Stage {
	return newStage(KindProject, bson.D{{Key: "$project", Value: fields}})
}

func unwindStage(path string) Stage {
	return newStage(KindUnwind, bson.D{{Key: "$unwind", Value: path}})
}

func unwindPreservingStage(path string) Stage {
	return newStage(KindUnwind, bson.D{{Key: "$unwind", Value: bson.D{
		{Key: "path", Value: path},
		{Key: "preserveNullAndEmptyArrays", Value: true},
	}}})
}

func groupStage(spec bson.D) Stage {
	return newStage(KindGroup, bson.D{{Key: "$group", Value: spec}})
}

func facetStage(spec bson.D) Stage {
	return newStage(KindFacet, bson.D{{Key: "$facet", Value: spec}})
}

func countStage(field string) Stage {
	return newStage(KindCount, bson.D{{Key: "$count", Value: field}})
}

func sortStage(spec bson.D) Stage {
	return newStage(KindSort, bson.D{{Key: "$sort", Value: spec}})
}

// ParseID parses a record identifier string into the store's native id type.
func ParseID(s string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

// ParseIDs parses a set of record identifier strings, failing on the first
// malformed one.
func ParseIDs(ss []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(ss))
	for _, s := range ss {
		id, err := ParseID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
