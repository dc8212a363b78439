// Package record defines the domain object materialized from raw store
// documents, together with the binder that reconstitutes it.
package record

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Source is the identity-lookup capability a Record keeps a back-reference to.
// It is implemented by the collection that owns the record.
type Source interface {
	// GetRecord returns the record with the given id, fully populated.
	// Implementations must return an error wrapping their not-found sentinel
	// when no record with that id exists.
	GetRecord(ctx context.Context, id primitive.ObjectID) (*Record, error)
}

// Label is one annotation attached to a record under a label group.
type Label struct {
	Label      string  `bson:"label"`
	Confidence float64 `bson:"confidence,omitempty"`
}

// A Record is a single structured record reconstituted from a result document.
// It is owned by the caller once returned; the back-reference to its source is
// shared, never owned.
type Record struct {
	id primitive.ObjectID

	Name     string
	Filepath string
	Tags     []string
	Labels   map[string]Label

	// Fields holds every remaining document field verbatim.
	Fields bson.M

	source Source
}

// ID returns the record's store-native identifier.
func (r *Record) ID() primitive.ObjectID {
	return r.id
}

// Source returns the collection the record is bound to.
func (r *Record) Source() Source {
	return r.source
}

// FromDocument binds a raw result document to src and returns the typed
// record. It fails only when the document carries no usable identifier;
// documents produced by this module's own pipelines always bind cleanly.
func FromDocument(doc bson.M, src Source) (*Record, error) {
	rawID, ok := doc["_id"]
	if !ok {
		return nil, fmt.Errorf("document has no _id field")
	}

	id, ok := rawID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("document _id is %T, not an ObjectID", rawID)
	}

	r := &Record{
		id:     id,
		Fields: bson.M{},
		source: src,
	}

	for key, val := range doc {
		switch key {
		case "_id":
		case "name":
			if s, ok := asString(val); ok {
				r.Name = s
			}
		case "filepath":
			if s, ok := asString(val); ok {
				r.Filepath = s
			}
		case "tags":
			r.Tags = asStringSlice(val)
		case "labels":
			r.Labels = asLabels(val)
		default:
			r.Fields[key] = val
		}
	}

	return r, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asStringSlice(v any) []string {
	var out []string
	switch arr := v.(type) {
	case []string:
		out = append(out, arr...)
	case primitive.A:
		for _, e := range arr {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
	case []any:
		for _, e := range arr {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// asLabels accepts both bson.M and bson.D shapes since decoders differ on how
// they surface embedded documents.
func asLabels(v any) map[string]Label {
	out := map[string]Label{}
	switch doc := v.(type) {
	case map[string]Label:
		for k, l := range doc {
			out[k] = l
		}
	case bson.M:
		for k, lv := range doc {
			out[k] = asLabel(lv)
		}
	case bson.D:
		for _, e := range doc {
			out[e.Key] = asLabel(e.Value)
		}
	}
	return out
}

func asLabel(v any) Label {
	switch doc := v.(type) {
	case Label:
		return doc
	case bson.M:
		l := Label{}
		if s, ok := doc["label"].(string); ok {
			l.Label = s
		}
		if c, ok := doc["confidence"].(float64); ok {
			l.Confidence = c
		}
		return l
	case bson.D:
		return asLabel(doc.Map())
	}
	return Label{}
}
