package view

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Result documents arrive with slightly different shapes depending on the
// backend: cursor decoding yields primitive.A and nested bson.D, while
// in-memory execution yields native slices and bson.M. The coercions below
// accept both.

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func asArray(v any) ([]any, bool) {
	switch arr := v.(type) {
	case primitive.A:
		return []any(arr), true
	case []any:
		return arr, true
	}
	return nil, false
}

func asDocument(v any) (bson.M, bool) {
	switch doc := v.(type) {
	case bson.M:
		return doc, true
	case bson.D:
		return doc.Map(), true
	}
	return nil, false
}

func asStrings(v any) []string {
	arr, ok := asArray(v)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
