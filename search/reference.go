package search

import (
	"context"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/thisisjab/eventsearch/entity"
	"github.com/thisisjab/eventsearch/fault"
	"github.com/thisisjab/eventsearch/search/condition"
)

const (
	tagsKeyColumn   = "tags.key"
	tagsValueColumn = "tags.value"
)

func invalidReferenceEvent() fault.Fault {
	return fault.Invalid("Invalid reference event")
}

// ReferenceConditions pins the group by columns to the values of the event
// identified by slug ("<project-slug>:<event-id>"). The project must be one
// of the project ids already in args.
func (c *Compiler) ReferenceConditions(ctx context.Context, args *QueryArgs, groupBy []string, slug string) ([]condition.Condition, error) {
	columns := make([]string, len(groupBy))
	for i, field := range groupBy {
		columns[i] = c.schema.ColumnName(field)
	}

	event, err := c.findReferenceEvent(ctx, args, slug, fetchColumns(columns))
	if err != nil {
		return nil, err
	}

	tags := event.Tags()

	var conditions []condition.Condition
	for _, column := range columns {
		var value any
		if m := tagFieldPattern.FindStringSubmatch(column); m != nil {
			if v, ok := tags[m[1]]; ok {
				value = v
			}
		} else {
			value = representative(event.Data[column])
		}

		if !truthy(value) {
			continue
		}

		conditions = append(conditions, condition.Comparison{LHS: column, Operator: condition.Eq, RHS: value})
	}

	return conditions, nil
}

// fetchColumns lists the event columns needed to resolve columns. Tag
// columns are read from the tag key and value arrays.
func fetchColumns(columns []string) []string {
	var (
		fetch   []string
		hasTags bool
	)

	for _, column := range columns {
		if strings.HasPrefix(column, "tags[") {
			hasTags = true
			continue
		}
		fetch = append(fetch, column)
	}

	if hasTags {
		fetch = append(fetch, tagsKeyColumn, tagsValueColumn)
	}

	return fetch
}

func (c *Compiler) findReferenceEvent(ctx context.Context, args *QueryArgs, slug string, columns []string) (entity.Event, error) {
	projectSlug, eventID, ok := strings.Cut(slug, ":")
	if !ok || strings.Contains(eventID, ":") {
		return entity.Event{}, invalidReferenceEvent()
	}

	id, err := uuid.Parse(eventID)
	if err != nil {
		return entity.Event{}, invalidReferenceEvent().WithOriginal(err)
	}

	var allowed []int64
	if args != nil {
		allowed = args.FilterKeys[projectIDColumn]
	}

	projects, err := c.projects.FindProjects(ctx, allowed)
	if err != nil {
		return entity.Event{}, err
	}

	var project *entity.Project
	for i := range projects {
		if projects[i].Slug == projectSlug {
			project = &projects[i]
			break
		}
	}
	if project == nil {
		return entity.Event{}, invalidReferenceEvent()
	}

	event, err := c.events.GetEventByID(ctx, project.ID, id, columns)
	if err != nil {
		if fault.Is(err, fault.NotFoundCode) {
			return entity.Event{}, invalidReferenceEvent().WithOriginal(err)
		}
		return entity.Event{}, err
	}

	return event, nil
}

// representative picks the last element of a multi-valued field. The
// backend cannot compare a whole array with "=".
func representative(value any) any {
	switch v := value.(type) {
	case []string:
		if len(v) == 0 {
			return nil
		}
		return v[len(v)-1]
	case []int64:
		if len(v) == 0 {
			return nil
		}
		return v[len(v)-1]
	case []any:
		if len(v) == 0 {
			return nil
		}
		return v[len(v)-1]
	default:
		return value
	}
}

// truthy reports whether value is set: not nil, not a zero scalar and not
// an empty collection.
func truthy(value any) bool {
	if value == nil {
		return false
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		return v.Len() > 0
	case reflect.Struct, reflect.Array:
		return true
	default:
		return !v.IsZero()
	}
}
