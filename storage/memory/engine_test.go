package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func run(t *testing.T, docs []bson.M, pipeline []bson.D) []bson.M {
	t.Helper()
	out, err := runPipeline(docs, pipeline, func(docs []bson.M, n int64) []bson.M {
		if n > int64(len(docs)) {
			n = int64(len(docs))
		}
		return docs[:n]
	})
	require.NoError(t, err)
	return out
}

func names(docs []bson.M) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i], _ = d["name"].(string)
	}
	return out
}

func fixture() []bson.M {
	return []bson.M{
		{"name": "alpha", "size": int64(30), "tags": []string{"x"}},
		{"name": "bravo", "size": int64(10), "tags": []string{"x", "y"}},
		{"name": "charlie", "size": int64(20), "tags": []string{}},
		{"name": "delta", "size": int64(40)},
	}
}

func TestMatchOperators(t *testing.T) {
	tests := []struct {
		name string
		expr bson.D
		want []string
	}{
		{
			name: "array_containment",
			expr: bson.D{{Key: "tags", Value: "y"}},
			want: []string{"bravo"},
		},
		{
			name: "scalar_equality",
			expr: bson.D{{Key: "name", Value: "alpha"}},
			want: []string{"alpha"},
		},
		{
			name: "in",
			expr: bson.D{{Key: "name", Value: bson.D{{Key: "$in", Value: bson.A{"alpha", "delta"}}}}},
			want: []string{"alpha", "delta"},
		},
		{
			name: "not_in",
			expr: bson.D{{Key: "name", Value: bson.D{{Key: "$not", Value: bson.D{{Key: "$in", Value: bson.A{"alpha", "delta"}}}}}}},
			want: []string{"bravo", "charlie"},
		},
		{
			name: "nin",
			expr: bson.D{{Key: "name", Value: bson.D{{Key: "$nin", Value: bson.A{"alpha"}}}}},
			want: []string{"bravo", "charlie", "delta"},
		},
		{
			name: "ne",
			expr: bson.D{{Key: "name", Value: bson.D{{Key: "$ne", Value: "alpha"}}}},
			want: []string{"bravo", "charlie", "delta"},
		},
		{
			name: "exists",
			expr: bson.D{{Key: "tags", Value: bson.D{{Key: "$exists", Value: true}}}},
			want: []string{"alpha", "bravo", "charlie"},
		},
		{
			name: "not_exists",
			expr: bson.D{{Key: "tags", Value: bson.D{{Key: "$exists", Value: false}}}},
			want: []string{"delta"},
		},
		{
			name: "range",
			expr: bson.D{{Key: "size", Value: bson.D{{Key: "$gte", Value: int64(20)}, {Key: "$lt", Value: int64(40)}}}},
			want: []string{"alpha", "charlie"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out := run(t, fixture(), []bson.D{{{Key: "$match", Value: test.expr}}})
			require.Equal(t, test.want, names(out))
		})
	}
}

func TestSortByDottedAndIndexedPaths(t *testing.T) {
	docs := []bson.M{
		{"name": "a", "metadata": bson.M{"frame_size": []any{int64(1920), int64(1080)}}},
		{"name": "b", "metadata": bson.M{"frame_size": []any{int64(640), int64(480)}}},
		{"name": "c", "metadata": bson.M{"frame_size": []any{int64(1280), int64(720)}}},
	}

	out := run(t, docs, []bson.D{
		{{Key: "$sort", Value: bson.D{{Key: "metadata.frame_size.0", Value: int32(1)}}}},
	})
	require.Equal(t, []string{"b", "c", "a"}, names(out))

	out = run(t, docs, []bson.D{
		{{Key: "$sort", Value: bson.D{{Key: "metadata.frame_size.1", Value: int32(-1)}}}},
	})
	require.Equal(t, []string{"a", "c", "b"}, names(out))
}

func TestSortMissingFieldsFirst(t *testing.T) {
	docs := []bson.M{
		{"name": "a", "rank": int64(2)},
		{"name": "b"},
		{"name": "c", "rank": int64(1)},
	}
	out := run(t, docs, []bson.D{
		{{Key: "$sort", Value: bson.D{{Key: "rank", Value: int32(1)}}}},
	})
	// b has no rank field; missing values order before everything else.
	require.Equal(t, []string{"b", "c", "a"}, names(out))
}

func TestSkipAndLimit(t *testing.T) {
	pipeline := []bson.D{
		{{Key: "$sort", Value: bson.D{{Key: "name", Value: int32(1)}}}},
		{{Key: "$skip", Value: int64(1)}},
		{{Key: "$limit", Value: int64(2)}},
	}
	out := run(t, fixture(), pipeline)
	require.Equal(t, []string{"bravo", "charlie"}, names(out))
}

func TestSkipPastEnd(t *testing.T) {
	out := run(t, fixture(), []bson.D{{{Key: "$skip", Value: int64(100)}}})
	require.Empty(t, out)
}

func TestUnwind(t *testing.T) {
	out := run(t, fixture(), []bson.D{{{Key: "$unwind", Value: "$tags"}}})
	// alpha unwinds once, bravo twice; charlie (empty) and delta (missing)
	// are dropped without preserveNullAndEmptyArrays.
	require.Equal(t, []string{"alpha", "bravo", "bravo"}, names(out))
	require.Equal(t, "x", out[0]["tags"])
	require.Equal(t, "x", out[1]["tags"])
	require.Equal(t, "y", out[2]["tags"])
}

func TestUnwindPreservesNullAndEmpty(t *testing.T) {
	out := run(t, fixture(), []bson.D{
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$tags"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
	})
	require.Equal(t, []string{"alpha", "bravo", "bravo", "charlie", "delta"}, names(out))

	// The empty-array document loses the field entirely.
	_, present := out[3]["tags"]
	require.False(t, present)
}

func TestGroupAccumulators(t *testing.T) {
	out := run(t, fixture(), []bson.D{
		{{Key: "$unwind", Value: "$tags"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$tags"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: int32(1)}}},
			{Key: "names", Value: bson.D{{Key: "$push", Value: "$name"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: int32(1)}}}},
	})

	require.Len(t, out, 2)
	require.Equal(t, "x", out[0]["_id"])
	require.Equal(t, int64(2), out[0]["count"])
	require.Equal(t, []any{"alpha", "bravo"}, out[0]["names"])
	require.Equal(t, "y", out[1]["_id"])
	require.Equal(t, int64(1), out[1]["count"])
}

func TestGroupAddToSetDeduplicates(t *testing.T) {
	out := run(t, fixture(), []bson.D{
		{{Key: "$unwind", Value: "$tags"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "None"},
			{Key: "all_tags", Value: bson.D{{Key: "$addToSet", Value: "$tags"}}},
		}}},
	})

	require.Len(t, out, 1)
	require.ElementsMatch(t, []any{"x", "y"}, out[0]["all_tags"])
}

func TestProjectObjectToArray(t *testing.T) {
	docs := []bson.M{
		{"name": "a", "labels": bson.M{"gt": bson.M{"label": "cat"}}},
	}
	out := run(t, docs, []bson.D{
		{{Key: "$project", Value: bson.D{{Key: "label", Value: bson.D{{Key: "$objectToArray", Value: "$labels"}}}}}},
		{{Key: "$unwind", Value: "$label"}},
		{{Key: "$project", Value: bson.D{
			{Key: "group", Value: "$label.k"},
			{Key: "label", Value: "$label.v.label"},
		}}},
	})

	require.Len(t, out, 1)
	require.Equal(t, "gt", out[0]["group"])
	require.Equal(t, "cat", out[0]["label"])
}

func TestCountStage(t *testing.T) {
	out := run(t, fixture(), []bson.D{{{Key: "$count", Value: "count"}}})
	require.Equal(t, []bson.M{{"count": int64(4)}}, out)
}

func TestCountStageOnEmptyInputYieldsNothing(t *testing.T) {
	out := run(t, nil, []bson.D{{{Key: "$count", Value: "count"}}})
	require.Empty(t, out)
}

func TestFacet(t *testing.T) {
	out := run(t, fixture(), []bson.D{
		{{Key: "$facet", Value: bson.D{
			{Key: "total", Value: []bson.D{{{Key: "$count", Value: "count"}}}},
			{Key: "tagged", Value: []bson.D{
				{{Key: "$match", Value: bson.D{{Key: "tags", Value: "x"}}}},
				{{Key: "$count", Value: "count"}},
			}},
		}}},
	})

	require.Len(t, out, 1)
	require.Equal(t, []any{bson.M{"count": int64(4)}}, out[0]["total"])
	require.Equal(t, []any{bson.M{"count": int64(2)}}, out[0]["tagged"])
}

func TestUnsupportedOperator(t *testing.T) {
	_, err := runPipeline(fixture(), []bson.D{{{Key: "$merge", Value: bson.D{}}}}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "$merge")
}

func TestMatchOnObjectIDs(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	docs := []bson.M{
		{"_id": a, "name": "a"},
		{"_id": b, "name": "b"},
	}

	out := run(t, docs, []bson.D{
		{{Key: "$match", Value: bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{b}}}}}}},
	})
	require.Equal(t, []string{"b"}, names(out))
}
