package view

import (
	"context"
	"fmt"
	"strings"
)

// Summary returns a diagnostic rendering of the view: record count, tag set,
// label groups, and every pipeline stage numbered in execution order. Derived
// entirely from the other read operations; not a hot path.
func (v *View) Summary(ctx context.Context) (string, error) {
	count, err := v.Count(ctx)
	if err != nil {
		return "", err
	}

	tags, err := v.Tags(ctx)
	if err != nil {
		return "", err
	}

	distributions, err := v.LabelDistributions(ctx)
	if err != nil {
		return "", err
	}
	groups := make([]string, 0, len(distributions))
	for _, d := range distributions {
		groups = append(groups, d.Group)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Num records:  %d\n", count)
	fmt.Fprintf(&b, "Tags:         %v\n", tags)
	fmt.Fprintf(&b, "Label groups: %v\n", groups)
	b.WriteString("Pipeline stages:\n")
	if len(v.pipeline) == 0 {
		b.WriteString("\t(none)\n")
	}
	for i, s := range v.pipeline {
		fmt.Fprintf(&b, "\t%d. %s\n", i+1, s)
	}
	return b.String(), nil
}
