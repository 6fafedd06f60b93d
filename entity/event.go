package entity

import (
	"fmt"

	"github.com/google/uuid"
)

// Project is a scope events belong to. Slugs are unique per organization.
type Project struct {
	ID   int64  `json:"id" yaml:"id"`
	Slug string `json:"slug" yaml:"slug"`
}

// Event is a stored event as returned by an event store. Data is keyed by
// backend column name and holds only the columns that were requested.
type Event struct {
	ID        uuid.UUID      `json:"id" yaml:"id"`
	ProjectID int64          `json:"project_id" yaml:"project_id"`
	Data      map[string]any `json:"data" yaml:"data"`
}

// Tags pairs the tags.key and tags.value arrays. It returns an empty map
// when either array was not fetched.
func (e Event) Tags() map[string]string {
	keys := stringSlice(e.Data["tags.key"])
	values := stringSlice(e.Data["tags.value"])

	tags := make(map[string]string, len(keys))
	for i := 0; i < len(keys) && i < len(values); i++ {
		tags[keys[i]] = values[i]
	}
	return tags
}

func stringSlice(v any) []string {
	switch v := v.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = fmt.Sprint(item)
		}
		return out
	default:
		return nil
	}
}
