package view

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/lensdb/lens/pkg/storage"
)

// A Snapshot is the serialized form of a view: the descriptor of its owning
// collection and the stage list encoded as canonical extended JSON.
type Snapshot struct {
	Collection bson.D `bson:"collection" json:"collection"`
	View       string `bson:"view" json:"view"`
}

// Serialize returns the snapshot of the view. It is a pure function of the
// view's current state; nothing executes against the store.
func (v *View) Serialize() (*Snapshot, error) {
	encoded, err := v.pipeline.MarshalExtJSON()
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Collection: v.collection.Serialize(),
		View:       encoded,
	}, nil
}

// Deserialize restores a view from a snapshot, binding it to the given
// collection. The restored stage list is exactly the serialized one.
func Deserialize(snap *Snapshot, c storage.Collection) (*View, error) {
	pipeline, err := ParsePipeline(snap.View)
	if err != nil {
		return nil, err
	}
	return &View{collection: c, pipeline: pipeline}, nil
}
