package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DefaultTagColor is assigned to tags that are listed as bare strings
const DefaultTagColor = "#ea5252"

// Tag is a colored label attached to a listing record
type Tag struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// UnmarshalJSON accepts both the object form {"label": ..., "color": ...}
// and a bare string, which becomes a tag with the default color.
func (t *Tag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var label string
		if err := json.Unmarshal(data, &label); err != nil {
			return fmt.Errorf("invalid tag label: %w", err)
		}
		t.Label = label
		t.Color = DefaultTagColor
		return nil
	}

	// Plain struct alias so decoding does not recurse into this method
	type tagFields Tag
	var fields tagFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("invalid tag: %w", err)
	}
	*t = Tag(fields)
	return nil
}

// TagLabels returns the labels of the given tags in order
func TagLabels(tags []Tag) []string {
	labels := make([]string, 0, len(tags))
	for _, tag := range tags {
		labels = append(labels, tag.Label)
	}
	return labels
}
