package view

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/lensdb/lens/pkg/storage"
)

// The aggregations below are pipeline terminators: fixed stage templates
// appended after the view's own stages, executed eagerly, returning
// materialized in-memory results. They are deliberately not chainable.

// tagListingStages reduces the view to the unique set of tags across its
// records.
func tagListingStages() []Stage {
	return []Stage{
		projectStage(bson.D{{Key: "tags", Value: "$tags"}}),
		unwindStage("$tags"),
		groupStage(bson.D{
			{Key: "_id", Value: "None"},
			{Key: "all_tags", Value: bson.D{{Key: "$addToSet", Value: "$tags"}}},
		}),
	}
}

// labelDistributionStages treats the labels field as a map from label-group
// name to label value: unwind, count (group, label) pairs, then regroup by
// group name into (label, count) lists.
func labelDistributionStages() []Stage {
	return []Stage{
		projectStage(bson.D{{Key: "label", Value: bson.D{{Key: "$objectToArray", Value: "$labels"}}}}),
		unwindStage("$label"),
		projectStage(bson.D{
			{Key: "group", Value: "$label.k"},
			{Key: "label", Value: "$label.v.label"},
		}),
		groupStage(bson.D{
			{Key: "_id", Value: bson.D{{Key: "group", Value: "$group"}, {Key: "label", Value: "$label"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: int32(1)}}},
		}),
		groupStage(bson.D{
			{Key: "_id", Value: "$_id.group"},
			{Key: "labels", Value: bson.D{{Key: "$push", Value: bson.D{
				{Key: "label", Value: "$_id.label"},
				{Key: "count", Value: "$count"},
			}}}},
		}),
	}
}

// Tags returns the unique set of tags across the records in the view. Order
// carries no meaning. An empty view yields an empty set, never an error.
func (v *View) Tags(ctx context.Context) ([]string, error) {
	docs, err := v.run(ctx, tagListingStages()...)
	if err != nil {
		return nil, err
	}
	defer docs.Stop()

	doc, ok, err := storage.First(ctx, docs)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return asStrings(doc["all_tags"]), nil
}

// A LabelCount is one label value and the number of records carrying it.
type LabelCount struct {
	Label string
	Count int64
}

// A LabelGroupDistribution is the per-value record counts of one label group.
type LabelGroupDistribution struct {
	Group  string
	Labels []LabelCount
}

// LabelDistributions returns, for every label group present in the view, the
// distribution of label values with their record counts.
func (v *View) LabelDistributions(ctx context.Context) ([]LabelGroupDistribution, error) {
	docs, err := v.run(ctx, labelDistributionStages()...)
	if err != nil {
		return nil, err
	}

	results, err := storage.Collect(ctx, docs)
	if err != nil {
		return nil, err
	}

	out := make([]LabelGroupDistribution, 0, len(results))
	for _, doc := range results {
		dist, err := decodeDistribution(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, dist)
	}
	return out, nil
}

// A TagCount is one tag and the number of records carrying it. Records with
// no tags at all are counted under the empty tag.
type TagCount struct {
	Tag   string
	Count int64
}

// A FacetResult is the combined tag histogram and label distribution of a
// view, computed in a single pass.
type FacetResult struct {
	Tags   []TagCount
	Labels []LabelGroupDistribution
}

// Facets computes the tag-frequency histogram (sorted by tag) and the
// label-group distribution in one pipeline execution.
func (v *View) Facets(ctx context.Context) (*FacetResult, error) {
	tagFacet := []Stage{
		projectStage(bson.D{{Key: "tag", Value: "$tags"}}),
		unwindPreservingStage("$tag"),
		groupStage(bson.D{
			{Key: "_id", Value: "$tag"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: int32(1)}}},
		}),
		sortStage(bson.D{{Key: "_id", Value: int32(1)}}),
	}

	facet := facetStage(bson.D{
		{Key: "tags", Value: stageDocuments(tagFacet)},
		{Key: "labels", Value: stageDocuments(labelDistributionStages())},
	})

	docs, err := v.run(ctx, facet)
	if err != nil {
		return nil, err
	}
	defer docs.Stop()

	doc, ok, err := storage.First(ctx, docs)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &FacetResult{}, nil
	}

	result := &FacetResult{}

	tagDocs, _ := asArray(doc["tags"])
	for _, td := range tagDocs {
		d, ok := asDocument(td)
		if !ok {
			return nil, fmt.Errorf("facet yielded malformed tag bucket %v", td)
		}
		tc := TagCount{}
		if s, ok := d["_id"].(string); ok {
			tc.Tag = s
		}
		tc.Count, _ = asInt64(d["count"])
		result.Tags = append(result.Tags, tc)
	}

	labelDocs, _ := asArray(doc["labels"])
	for _, ld := range labelDocs {
		d, ok := asDocument(ld)
		if !ok {
			return nil, fmt.Errorf("facet yielded malformed label bucket %v", ld)
		}
		dist, err := decodeDistribution(d)
		if err != nil {
			return nil, err
		}
		result.Labels = append(result.Labels, dist)
	}

	return result, nil
}

func decodeDistribution(doc storage.Document) (LabelGroupDistribution, error) {
	dist := LabelGroupDistribution{}

	group, ok := doc["_id"].(string)
	if !ok {
		return dist, fmt.Errorf("label distribution yielded malformed group %v", doc["_id"])
	}
	dist.Group = group

	entries, _ := asArray(doc["labels"])
	for _, e := range entries {
		d, ok := asDocument(e)
		if !ok {
			return dist, fmt.Errorf("label distribution yielded malformed entry %v", e)
		}
		lc := LabelCount{}
		if s, ok := d["label"].(string); ok {
			lc.Label = s
		}
		lc.Count, _ = asInt64(d["count"])
		dist.Labels = append(dist.Labels, lc)
	}

	return dist, nil
}

func stageDocuments(stages []Stage) []bson.D {
	return Pipeline(stages).Documents()
}
