package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "parse <query>",
		Short:         "Show the filter terms a search query parses into",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runParse(opts *RootOptions, query string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	compiler, release, err := opts.compiler(cmd.Context(), opts.logger(formatter.ErrWriter))
	if err != nil {
		return formatter.Fail(err)
	}
	defer release()

	terms, err := compiler.Parse(query)
	if err != nil {
		return formatter.Fail(err)
	}

	rendered := make([]string, len(terms))
	for i, term := range terms {
		rendered[i] = fmt.Sprint(term)
	}

	return formatter.Success(map[string]any{"terms": rendered}, func(w io.Writer) {
		if len(rendered) == 0 {
			fmt.Fprintln(w, "No terms.")
			return
		}

		rows := make([][]string, len(rendered))
		for i, r := range rendered {
			rows[i] = []string{strconv.Itoa(i + 1), r}
		}
		table(w, "Terms", []string{"#", "Term"}, rows)
	})
}
