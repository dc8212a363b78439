package view

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lensdb/lens/storage/memory"
)

func TestChainNeverMutatesReceiver(t *testing.T) {
	v := New(memory.New("records"))

	v2, err := v.SortBy("name", false)
	require.NoError(t, err)

	require.Empty(t, v.Pipeline())
	require.Len(t, v2.Pipeline(), 1)
	require.Same(t, v.Collection(), v2.Collection())
}

func TestChainAppendsExactlyOneStage(t *testing.T) {
	base := New(memory.New("records"))
	id := primitive.NewObjectID()

	tests := []struct {
		name     string
		chain    func() (*View, error)
		wantKind Kind
		wantDoc  bson.D
	}{
		{
			name:     "filter_tag",
			chain:    func() (*View, error) { return base.Filter(Filter{Tag: "x"}) },
			wantKind: KindMatch,
			wantDoc:  bson.D{{Key: "$match", Value: bson.D{{Key: "tags", Value: "x"}}}},
		},
		{
			name:     "sort_ascending",
			chain:    func() (*View, error) { return base.SortBy("metadata.size_bytes", false) },
			wantKind: KindSort,
			wantDoc:  bson.D{{Key: "$sort", Value: bson.D{{Key: "metadata.size_bytes", Value: int32(1)}}}},
		},
		{
			name:     "sort_descending",
			chain:    func() (*View, error) { return base.SortBy("name", true) },
			wantKind: KindSort,
			wantDoc:  bson.D{{Key: "$sort", Value: bson.D{{Key: "name", Value: int32(-1)}}}},
		},
		{
			name:     "take_head",
			chain:    func() (*View, error) { return base.Take(5, false) },
			wantKind: KindLimit,
			wantDoc:  bson.D{{Key: "$limit", Value: int64(5)}},
		},
		{
			name:     "take_random",
			chain:    func() (*View, error) { return base.Take(5, true) },
			wantKind: KindSample,
			wantDoc:  bson.D{{Key: "$sample", Value: bson.D{{Key: "size", Value: int64(5)}}}},
		},
		{
			name:     "offset",
			chain:    func() (*View, error) { return base.Offset(3) },
			wantKind: KindSkip,
			wantDoc:  bson.D{{Key: "$skip", Value: int64(3)}},
		},
		{
			name:     "select",
			chain:    func() (*View, error) { return base.Select([]string{id.Hex()}) },
			wantKind: KindMatch,
			wantDoc: bson.D{{Key: "$match", Value: bson.D{
				{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{id}}}},
			}}},
		},
		{
			name:     "exclude",
			chain:    func() (*View, error) { return base.Exclude([]string{id.Hex()}) },
			wantKind: KindMatch,
			wantDoc: bson.D{{Key: "$match", Value: bson.D{
				{Key: "_id", Value: bson.D{{Key: "$not", Value: bson.D{{Key: "$in", Value: bson.A{id}}}}}},
			}}},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v, err := test.chain()
			require.NoError(t, err)

			pipeline := v.Pipeline()
			require.Len(t, pipeline, 1)
			require.Equal(t, test.wantKind, pipeline[0].Kind())
			require.Equal(t, test.wantDoc, pipeline[0].Document())

			require.Empty(t, base.Pipeline(), "receiver must stay untouched")
		})
	}
}

func TestFilterTagAndExprAppendsTwoStages(t *testing.T) {
	v := New(memory.New("records"))

	v2, err := v.Filter(Filter{
		Tag:  "x",
		Expr: bson.D{{Key: "name", Value: "alpha"}},
	})
	require.NoError(t, err)

	pipeline := v2.Pipeline()
	require.Len(t, pipeline, 2)
	require.Equal(t, KindMatch, pipeline[0].Kind())
	require.Equal(t, KindMatch, pipeline[1].Kind())
}

func TestFilterUnimplementedSelectors(t *testing.T) {
	v := New(memory.New("records"))

	_, err := v.Filter(Filter{InsightGroup: "hardness"})
	require.ErrorIs(t, err, ErrNotImplemented)

	_, err = v.Filter(Filter{LabelGroup: "ground_truth"})
	require.ErrorIs(t, err, ErrNotImplemented)
}

func TestChainValidation(t *testing.T) {
	v := New(memory.New("records"))

	_, err := v.SortBy("", false)
	require.Error(t, err)

	_, err = v.Take(-1, false)
	require.Error(t, err)

	_, err = v.Take(-1, true)
	require.Error(t, err)

	_, err = v.Offset(-1)
	require.Error(t, err)
}

func TestSelectInvalidIDFailsEagerly(t *testing.T) {
	v := New(memory.New("records"))

	_, err := v.Select([]string{"not-a-valid-object-id"})
	require.ErrorIs(t, err, ErrInvalidID)

	_, err = v.Exclude([]string{"zzz"})
	require.ErrorIs(t, err, ErrInvalidID)
}

func TestViewsOverSamePipelineAreIndependent(t *testing.T) {
	v := New(memory.New("records"))

	a, err := v.Offset(1)
	require.NoError(t, err)

	b, err := a.Take(2, false)
	require.NoError(t, err)

	c, err := a.SortBy("name", false)
	require.NoError(t, err)

	require.Len(t, a.Pipeline(), 1)
	require.Equal(t, KindLimit, b.Pipeline()[1].Kind())
	require.Equal(t, KindSort, c.Pipeline()[1].Kind())
}
