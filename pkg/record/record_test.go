package record

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFromDocument(t *testing.T) {
	id := primitive.NewObjectID()
	doc := bson.M{
		"_id":      id,
		"name":     "alpha",
		"filepath": "/data/alpha.jpg",
		"tags":     []string{"validated", "train"},
		"labels": bson.M{
			"ground_truth": bson.M{"label": "cat", "confidence": 0.98},
		},
		"metadata": bson.M{"size_bytes": int64(2048)},
	}

	r, err := FromDocument(doc, nil)
	require.NoError(t, err)

	require.Equal(t, id, r.ID())
	require.Equal(t, "alpha", r.Name)
	require.Equal(t, "/data/alpha.jpg", r.Filepath)
	require.Equal(t, []string{"validated", "train"}, r.Tags)
	require.Equal(t, Label{Label: "cat", Confidence: 0.98}, r.Labels["ground_truth"])
	require.Equal(t, bson.M{"size_bytes": int64(2048)}, r.Fields["metadata"])
}

func TestFromDocumentCursorShapes(t *testing.T) {
	// Cursor decoding surfaces arrays as primitive.A and embedded documents
	// as bson.D; binding must accept both shapes.
	id := primitive.NewObjectID()
	doc := bson.M{
		"_id":  id,
		"tags": primitive.A{"x", "y"},
		"labels": bson.D{
			{Key: "ground_truth", Value: bson.D{{Key: "label", Value: "dog"}}},
		},
	}

	r, err := FromDocument(doc, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"x", "y"}, r.Tags)
	require.Equal(t, "dog", r.Labels["ground_truth"].Label)
}

func TestFromDocumentErrors(t *testing.T) {
	t.Run("missing_id", func(t *testing.T) {
		_, err := FromDocument(bson.M{"name": "alpha"}, nil)
		require.Error(t, err)
	})

	t.Run("non_objectid_id", func(t *testing.T) {
		_, err := FromDocument(bson.M{"_id": "not-an-oid"}, nil)
		require.Error(t, err)
	})
}
