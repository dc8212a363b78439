package view

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// A Pipeline is the ordered sequence of stages defining a view's query plan.
// Order is execution order. A pipeline reachable from a published View is
// never mutated in place; every chain operation builds a new value.
type Pipeline []Stage

// with returns a new pipeline equal to p plus the given stages appended.
// The receiver is left untouched.
func (p Pipeline) with(stages ...Stage) Pipeline {
	out := make(Pipeline, len(p), len(p)+len(stages))
	copy(out, p)
	return append(out, stages...)
}

// Documents renders the pipeline into the store-native stage descriptors, in
// execution order.
func (p Pipeline) Documents() []bson.D {
	docs := make([]bson.D, len(p))
	for i, s := range p {
		docs[i] = s.doc
	}
	return docs
}

// lastSkip returns the offset of the last skip stage in the pipeline, or 0 if
// none is present. When several skip stages are chained the most recent one
// wins; they are not summed, and a malformed offset never falls back to an
// earlier stage.
func (p Pipeline) lastSkip() int64 {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].kind == KindSkip {
			n, _ := p[i].doc[0].Value.(int64)
			return n
		}
	}
	return 0
}

// hasZeroLimit reports whether any limit stage carries a zero size. Real
// servers reject {"$limit": 0}, so execution short-circuits such pipelines to
// an empty result instead of sending them to the store.
func (p Pipeline) hasZeroLimit() bool {
	for _, s := range p {
		if s.kind != KindLimit {
			continue
		}
		if n, ok := s.doc[0].Value.(int64); ok && n == 0 {
			return true
		}
	}
	return false
}

// MarshalExtJSON encodes the pipeline as a canonical extended JSON array so
// that store-native types embedded in stages (identifiers in particular)
// round-trip exactly.
func (p Pipeline) MarshalExtJSON() (string, error) {
	parts := make([]string, len(p))
	for i, s := range p {
		data, err := bson.MarshalExtJSON(s.doc, true, false)
		if err != nil {
			return "", fmt.Errorf("encode stage %d (%s): %w", i+1, s.kind, err)
		}
		parts[i] = string(data)
	}
	return "[" + strings.Join(parts, ",") + "]", nil
}

// ParsePipeline decodes a pipeline previously encoded by MarshalExtJSON.
func ParsePipeline(s string) (Pipeline, error) {
	var wrapper struct {
		Pipeline []bson.D `bson:"pipeline"`
	}
	if err := bson.UnmarshalExtJSON([]byte(`{"pipeline":`+s+`}`), true, &wrapper); err != nil {
		return nil, fmt.Errorf("decode pipeline: %w", err)
	}

	out := make(Pipeline, 0, len(wrapper.Pipeline))
	for i, doc := range wrapper.Pipeline {
		if len(doc) == 0 {
			return nil, fmt.Errorf("stage %d is empty", i+1)
		}
		kind, ok := kindByOperator[doc[0].Key]
		if !ok {
			return nil, fmt.Errorf("stage %d has unknown operator %q", i+1, doc[0].Key)
		}
		out = append(out, newStage(kind, doc))
	}
	return out, nil
}
