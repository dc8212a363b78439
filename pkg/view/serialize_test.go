package view

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lensdb/lens/storage/memory"
)

func TestSerializeRoundTrip(t *testing.T) {
	c := memory.New("records")

	v, err := New(c).Select([]string{primitive.NewObjectID().Hex()})
	require.NoError(t, err)
	v, err = v.SortBy("name", true)
	require.NoError(t, err)
	v, err = v.Offset(10)
	require.NoError(t, err)
	v, err = v.Take(5, false)
	require.NoError(t, err)

	snap, err := v.Serialize()
	require.NoError(t, err)
	require.Equal(t, bson.D{{Key: "name", Value: "records"}}, snap.Collection)

	restored, err := Deserialize(snap, c)
	require.NoError(t, err)
	require.Equal(t, v.Pipeline().Documents(), restored.Pipeline().Documents())

	for i, s := range v.Pipeline() {
		require.Equal(t, s.Kind(), restored.Pipeline()[i].Kind())
	}
}

func TestSerializeEmptyView(t *testing.T) {
	c := memory.New("records")

	snap, err := New(c).Serialize()
	require.NoError(t, err)
	require.Equal(t, "[]", snap.View)

	restored, err := Deserialize(snap, c)
	require.NoError(t, err)
	require.Empty(t, restored.Pipeline())
}

func TestSerializeIsPure(t *testing.T) {
	c := memory.New("records")

	v, err := New(c).Filter(Filter{Tag: "x"})
	require.NoError(t, err)

	first, err := v.Serialize()
	require.NoError(t, err)
	second, err := v.Serialize()
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Len(t, v.Pipeline(), 1)
}
