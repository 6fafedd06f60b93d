// Package search compiles search strings into backend query descriptors:
// conditions from the parsed query, columns and aggregations from the
// requested fields, and optional reference event anchoring.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/thisisjab/eventsearch/entity"
	"github.com/thisisjab/eventsearch/fault"
	"github.com/thisisjab/eventsearch/search/ast"
	"github.com/thisisjab/eventsearch/search/parser"
)

// ProjectDirectory looks up projects. FindProjects returns the projects
// among ids; an empty ids returns none.
type ProjectDirectory interface {
	FindProjects(ctx context.Context, ids []int64) ([]entity.Project, error)
}

// EventStore fetches a single event restricted to the given columns. A
// missing event is reported with a not_found fault.
type EventStore interface {
	GetEventByID(ctx context.Context, projectID int64, eventID uuid.UUID, columns []string) (entity.Event, error)
}

// Rewriter transforms a query string before it is parsed.
type Rewriter interface {
	Rewrite(ctx context.Context, query string, params Params) (string, error)
}

// Request is everything needed to compile one query.
type Request struct {
	Query          string   `json:"query"`
	Fields         []string `json:"fields"`
	Params         Params   `json:"params"`
	Rollup         int      `json:"rollup,omitempty"`
	OrderBy        []string `json:"orderby,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	ReferenceEvent string   `json:"reference_event,omitempty"`
}

// Descriptor is the compiled query handed to the query executor.
type Descriptor struct {
	QueryArgs
	FieldDescriptor
	Rollup int `json:"rollup,omitempty"`
	Limit  int `json:"limit,omitempty"`
}

type Compiler struct {
	schema   *Schema
	projects ProjectDirectory
	events   EventStore
	rewriter Rewriter
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Compiler)

func WithRewriter(r Rewriter) Option {
	return func(c *Compiler) { c.rewriter = r }
}

// WithClock sets the clock relative dates are resolved against.
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) { c.now = now }
}

func NewCompiler(logger *slog.Logger, schema *Schema, projects ProjectDirectory, events EventStore, opts ...Option) *Compiler {
	c := &Compiler{
		schema:   schema,
		projects: projects,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Compiler) Schema() *Schema {
	return c.schema
}

// Parse parses query into terms against the compiler's schema.
func (c *Compiler) Parse(query string) ([]ast.Term, error) {
	return parser.Parse(query, c.schema, c.now().UTC())
}

// ResolveFields is Schema.ResolveFields on the compiler's schema.
func (c *Compiler) ResolveFields(fields []string, opts FieldOptions) (*FieldDescriptor, error) {
	return c.schema.ResolveFields(fields, opts)
}

// Compile runs the whole pipeline for req. It either fully succeeds or
// returns the first error.
func (c *Compiler) Compile(ctx context.Context, req Request) (*Descriptor, error) {
	query := req.Query
	if c.rewriter != nil {
		rewritten, err := c.rewriter.Rewrite(ctx, query, req.Params)
		if err != nil {
			return nil, err
		}
		if rewritten != query {
			c.logger.Debug("query rewritten", "query", query, "rewritten", rewritten)
		}
		query = rewritten
	}

	terms, err := c.Parse(query)
	if err != nil {
		return nil, err
	}

	args, err := c.buildQueryArgs(ctx, terms, req.Params)
	if err != nil {
		return nil, err
	}

	fields, err := c.schema.ResolveFields(req.Fields, FieldOptions{Rollup: req.Rollup, OrderBy: req.OrderBy})
	if err != nil {
		return nil, err
	}

	if req.ReferenceEvent != "" {
		if len(fields.Aggregations) == 0 {
			return nil, fault.Invalid("A reference event requires an aggregate field.")
		}

		refs, err := c.ReferenceConditions(ctx, args, fields.GroupBy, req.ReferenceEvent)
		if err != nil {
			return nil, err
		}
		args.Conditions = append(args.Conditions, refs...)
	}

	c.logger.Debug("query compiled",
		"terms", len(terms),
		"conditions", len(args.Conditions),
		"aggregations", len(fields.Aggregations),
	)

	return &Descriptor{
		QueryArgs:       *args,
		FieldDescriptor: *fields,
		Rollup:          req.Rollup,
		Limit:           req.Limit,
	}, nil
}
