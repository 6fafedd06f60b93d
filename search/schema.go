package search

import (
	"errors"
	"fmt"
	"slices"
)

// SchemaConfig is the serialisable form of a Schema.
type SchemaConfig struct {
	// Columns maps search keys to backend columns. Keys absent from the
	// mapping are tags.
	Columns map[string]string `yaml:"columns" json:"columns"`
	// KeyAliases maps a canonical key to the alternate names users may type.
	KeyAliases map[string][]string `yaml:"key_aliases" json:"key_aliases"`
	NumericKeys []string            `yaml:"numeric_keys" json:"numeric_keys"`
	DateKeys    []string            `yaml:"date_keys" json:"date_keys"`
	// PassThroughColumns are consumed as query bounds and never become
	// row conditions.
	PassThroughColumns []string `yaml:"pass_through_columns" json:"pass_through_columns"`
	// FilterKeyColumns are routed into filter_keys instead of conditions.
	FilterKeyColumns []string `yaml:"filter_key_columns" json:"filter_key_columns"`
	// TimestampColumn keeps datetime values as they are; every other column
	// compares against epoch milliseconds.
	TimestampColumn string                   `yaml:"timestamp_column" json:"timestamp_column"`
	FieldAliases    map[string]FieldAlias    `yaml:"field_aliases" json:"field_aliases"`
	Aggregates      map[string]AggregateFunc `yaml:"aggregates" json:"aggregates"`
}

// FieldAlias expands one requested field into columns and aggregations.
type FieldAlias struct {
	Fields       []string      `yaml:"fields" json:"fields"`
	Aggregations []Aggregation `yaml:"aggregations" json:"aggregations"`
}

// AggregateFunc is an entry of the aggregate registry. A Columns list of
// just "*" accepts any column.
type AggregateFunc struct {
	Backend string   `yaml:"backend" json:"backend"`
	Columns []string `yaml:"columns" json:"columns"`
}

func (f AggregateFunc) allows(column string) bool {
	return slices.Contains(f.Columns, "*") || slices.Contains(f.Columns, column)
}

// Schema is the immutable set of tables the compiler works against.
type Schema struct {
	cfg         SchemaConfig
	canonical   map[string]string
	numeric     map[string]bool
	dates       map[string]bool
	passThrough map[string]bool
	filterKeys  map[string]bool
}

func NewSchema(cfg SchemaConfig) (*Schema, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Schema{
		cfg:         cfg,
		canonical:   make(map[string]string),
		numeric:     set(cfg.NumericKeys),
		dates:       set(cfg.DateKeys),
		passThrough: set(cfg.PassThroughColumns),
		filterKeys:  set(cfg.FilterKeyColumns),
	}

	for target, sources := range cfg.KeyAliases {
		for _, source := range sources {
			if existing, ok := s.canonical[source]; ok && existing != target {
				return nil, fmt.Errorf("key alias `%s` maps to both `%s` and `%s`", source, existing, target)
			}
			s.canonical[source] = target
		}
	}

	return s, nil
}

func (cfg SchemaConfig) validate() error {
	if cfg.TimestampColumn == "" {
		return errors.New("timestamp column cannot be empty")
	}

	for name, fn := range cfg.Aggregates {
		if fn.Backend == "" {
			return fmt.Errorf("aggregate `%s` has no backend function", name)
		}
		if len(fn.Columns) == 0 {
			return fmt.Errorf("aggregate `%s` accepts no columns", name)
		}
	}

	for name, alias := range cfg.FieldAliases {
		if len(alias.Fields) == 0 && len(alias.Aggregations) == 0 {
			return fmt.Errorf("field alias `%s` expands to nothing", name)
		}
	}

	return nil
}

func set(values []string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

// Config returns the configuration the schema was built from.
func (s *Schema) Config() SchemaConfig {
	return s.cfg
}

func (s *Schema) Column(name string) (string, bool) {
	column, ok := s.cfg.Columns[name]
	return column, ok
}

func (s *Schema) CanonicalKey(name string) string {
	if target, ok := s.canonical[name]; ok {
		return target
	}
	return name
}

func (s *Schema) IsNumericKey(name string) bool {
	return s.numeric[name]
}

func (s *Schema) IsDateKey(name string) bool {
	return s.dates[name]
}

func (s *Schema) isPassThrough(column string) bool {
	return s.passThrough[column]
}

func (s *Schema) isFilterKey(column string) bool {
	return s.filterKeys[column]
}

// ColumnName maps a field name to its backend column, falling back to the
// tag accessor.
func (s *Schema) ColumnName(field string) string {
	if column, ok := s.Column(field); ok && column != "" {
		return column
	}
	return fmt.Sprintf("tags[%s]", field)
}

// DefaultSchemaConfig returns the built-in event schema.
func DefaultSchemaConfig() SchemaConfig {
	return SchemaConfig{
		Columns: map[string]string{
			"start":      "start",
			"end":        "end",
			"project_id": "project_id",
			"first_seen": "first_seen",
			"last_seen":  "last_seen",
			"times_seen": "times_seen",

			"id":          "event_id",
			"project.id":  "project_id",
			"issue.id":    "issue",
			"timestamp":   "timestamp",
			"time":        "time",
			"message":     "message",
			"title":       "title",
			"culprit":     "culprit",
			"location":    "location",
			"platform":    "platform",
			"environment": "environment",
			"release":     "tags[sentry:release]",
			"dist":        "tags[sentry:dist]",
			"user":        "tags[sentry:user]",
			"transaction": "transaction",
			"type":        "type",
			"version":     "version",

			"user.id":       "user_id",
			"user.email":    "email",
			"user.username": "username",
			"user.name":     "user_name",
			"user.ip":       "ip_address",

			"sdk.name":    "sdk_name",
			"sdk.version": "sdk_version",

			"http.method":  "http_method",
			"http.url":     "http_url",
			"http.referer": "http_referer",

			"os.build":          "os_build",
			"os.kernel_version": "os_kernel_version",

			"device.name":          "device_name",
			"device.brand":         "device_brand",
			"device.locale":        "device_locale",
			"device.uuid":          "device_uuid",
			"device.model_id":      "device_model_id",
			"device.arch":          "device_arch",
			"device.battery_level": "device_battery_level",
			"device.orientation":   "device_orientation",
			"device.simulator":     "device_simulator",
			"device.online":        "device_online",
			"device.charging":      "device_charging",

			"geo.country_code": "geo_country_code",
			"geo.region":       "geo_region",
			"geo.city":         "geo_city",

			"error.type":      "exception_stacks.type",
			"error.value":     "exception_stacks.value",
			"error.mechanism": "exception_stacks.mechanism_type",
			"error.handled":   "exception_stacks.mechanism_handled",

			"stack.abs_path":    "exception_frames.abs_path",
			"stack.filename":    "exception_frames.filename",
			"stack.package":     "exception_frames.package",
			"stack.module":      "exception_frames.module",
			"stack.function":    "exception_frames.function",
			"stack.in_app":      "exception_frames.in_app",
			"stack.colno":       "exception_frames.colno",
			"stack.lineno":      "exception_frames.lineno",
			"stack.stack_level": "exception_frames.stack_level",

			"tags.key":       "tags.key",
			"tags.value":     "tags.value",
			"contexts.key":   "contexts.key",
			"contexts.value": "contexts.value",
		},
		KeyAliases: map[string][]string{
			"user.email": {"email"},
			"user.ip":    {"ip", "ip_address"},
			"issue.id":   {"issue"},
		},
		NumericKeys: []string{
			"device.battery_level",
			"device.charging",
			"device.online",
			"device.simulator",
			"error.handled",
			"issue.id",
			"stack.colno",
			"stack.in_app",
			"stack.lineno",
			"stack.stack_level",
		},
		DateKeys:           []string{"start", "end", "first_seen", "last_seen", "time", "timestamp"},
		PassThroughColumns: []string{"project_id", "start", "end"},
		FilterKeyColumns:   []string{"project_id", "issue"},
		TimestampColumn:    "timestamp",
		FieldAliases: map[string]FieldAlias{
			"last_seen": {Aggregations: []Aggregation{
				{Function: "max", Columns: []string{"timestamp"}, Alias: "last_seen"},
			}},
			"latest_event": {Aggregations: []Aggregation{
				{Function: "argMax", Columns: []string{"id", "timestamp"}, Alias: "latest_event"},
			}},
			"project": {Fields: []string{"project.id"}},
			"user":    {Fields: []string{"user.id", "user.name", "user.username", "user.email", "user.ip"}},
		},
		Aggregates: map[string]AggregateFunc{
			"count_unique": {Backend: "uniq", Columns: []string{"*"}},
			"count":        {Backend: "count", Columns: []string{"*"}},
			"min":          {Backend: "min", Columns: []string{"timestamp", "duration"}},
			"max":          {Backend: "max", Columns: []string{"timestamp", "duration"}},
			"sum":          {Backend: "sum", Columns: []string{"duration"}},
			"avg":          {Backend: "avg", Columns: []string{"duration"}},
			"p75":          {Backend: "quantileTiming(0.75)", Columns: []string{"duration"}},
		},
	}
}

// DefaultSchema returns the schema built from DefaultSchemaConfig.
func DefaultSchema() *Schema {
	s, err := NewSchema(DefaultSchemaConfig())
	if err != nil {
		panic(err)
	}
	return s
}
