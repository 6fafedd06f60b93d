package cli

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/thisisjab/eventsearch/search"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Fields         []string
	OrderBy        []string
	Rollup         int
	Limit          int
	Projects       []int64
	Start          string
	End            string
	ReferenceEvent string
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <query>",
		Short: "Compile a search query into backend conditions",
		Long: `Compile a search query together with the requested fields.

The output holds the row conditions, filter keys, time bounds and the
resolved columns, aggregations, grouping and ordering.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Fields, "field", "f", nil, "field to select, repeatable")
	cmd.Flags().StringSliceVar(&opts.OrderBy, "orderby", nil, "field to order by, prefix with - for descending")
	cmd.Flags().IntVar(&opts.Rollup, "rollup", 0, "rollup interval in seconds")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "row limit")
	cmd.Flags().Int64SliceVarP(&opts.Projects, "project", "p", nil, "project id, repeatable")
	cmd.Flags().StringVar(&opts.Start, "start", "", "start of the time range (RFC 3339)")
	cmd.Flags().StringVar(&opts.End, "end", "", "end of the time range (RFC 3339)")
	cmd.Flags().StringVar(&opts.ReferenceEvent, "reference-event", "", "reference event as <project-slug>:<event-id>")

	return cmd
}

func (opts *CompileOptions) request(query string) (search.Request, error) {
	req := search.Request{
		Query:          query,
		Fields:         opts.Fields,
		OrderBy:        opts.OrderBy,
		Rollup:         opts.Rollup,
		Limit:          opts.Limit,
		ReferenceEvent: opts.ReferenceEvent,
		Params:         search.Params{ProjectIDs: opts.Projects},
	}

	var err error
	if opts.Start != "" {
		if req.Params.Start, err = time.Parse(time.RFC3339, opts.Start); err != nil {
			return search.Request{}, fmt.Errorf("invalid start: %w", err)
		}
	}
	if opts.End != "" {
		if req.Params.End, err = time.Parse(time.RFC3339, opts.End); err != nil {
			return search.Request{}, fmt.Errorf("invalid end: %w", err)
		}
	}

	return req, nil
}

func runCompile(opts *CompileOptions, query string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	req, err := opts.request(query)
	if err != nil {
		return formatter.Fail(err)
	}

	compiler, release, err := opts.compiler(cmd.Context(), opts.logger(formatter.ErrWriter))
	if err != nil {
		return formatter.Fail(err)
	}
	defer release()

	d, err := compiler.Compile(cmd.Context(), req)
	if err != nil {
		return formatter.Fail(err)
	}

	return formatter.Success(d, func(w io.Writer) {
		writeQueryArgs(w, &d.QueryArgs)
		writeFields(w, &d.FieldDescriptor)
	})
}

func writeQueryArgs(w io.Writer, args *search.QueryArgs) {
	if len(args.Conditions) == 0 {
		fmt.Fprintln(w, "No conditions.")
		fmt.Fprintln(w)
	}

	rows := make([][]string, len(args.Conditions))
	for i, c := range args.Conditions {
		rows[i] = []string{strconv.Itoa(i + 1), c.String()}
	}
	table(w, "Conditions", []string{"#", "Condition"}, rows)

	keys := make([]string, 0, len(args.FilterKeys))
	for k := range args.FilterKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	rows = rows[:0]
	for _, k := range keys {
		ids := make([]string, len(args.FilterKeys[k]))
		for i, id := range args.FilterKeys[k] {
			ids[i] = strconv.FormatInt(id, 10)
		}
		rows = append(rows, []string{k, strings.Join(ids, ", ")})
	}
	table(w, "Filter keys", []string{"Column", "Values"}, rows)

	rows = rows[:0]
	if args.Start != nil {
		rows = append(rows, []string{"start", args.Start.Format(time.RFC3339)})
	}
	if args.End != nil {
		rows = append(rows, []string{"end", args.End.Format(time.RFC3339)})
	}
	table(w, "Time range", []string{"Bound", "Time"}, rows)
}

func writeFields(w io.Writer, d *search.FieldDescriptor) {
	var rows [][]string
	for _, c := range d.SelectedColumns {
		rows = append(rows, []string{"column", c})
	}
	for _, a := range d.Aggregations {
		rows = append(rows, []string{"aggregation", a.String()})
	}
	for _, g := range d.GroupBy {
		rows = append(rows, []string{"groupby", g})
	}
	for _, o := range d.OrderBy {
		rows = append(rows, []string{"orderby", o})
	}
	table(w, "Fields", []string{"Kind", "Value"}, rows)
}
