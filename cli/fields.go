package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/thisisjab/eventsearch/search"
)

// FieldsOptions holds flags for the fields command.
type FieldsOptions struct {
	*RootOptions
	OrderBy []string
	Rollup  int
}

// NewFieldsCommand creates the fields command.
func NewFieldsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FieldsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "fields <field>...",
		Short:         "Resolve requested fields into columns, aggregations and grouping",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFields(opts, args, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.OrderBy, "orderby", nil, "field to order by, prefix with - for descending")
	cmd.Flags().IntVar(&opts.Rollup, "rollup", 0, "rollup interval in seconds")

	return cmd
}

func runFields(opts *FieldsOptions, fields []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	compiler, release, err := opts.compiler(cmd.Context(), opts.logger(formatter.ErrWriter))
	if err != nil {
		return formatter.Fail(err)
	}
	defer release()

	d, err := compiler.ResolveFields(fields, search.FieldOptions{Rollup: opts.Rollup, OrderBy: opts.OrderBy})
	if err != nil {
		return formatter.Fail(err)
	}

	return formatter.Success(d, func(w io.Writer) {
		writeFields(w, d)
	})
}
