package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/thisisjab/eventsearch/config"
	"github.com/thisisjab/eventsearch/search"
	"github.com/thisisjab/eventsearch/storage"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	// Config is an application config file. Its storage, rewriter and
	// schema are used when set.
	Config string
	// Schema is a schema file layered over the built-in schema. It wins
	// over the schema named by Config.
	Schema string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the eventsearch CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "eventsearch",
		Short: "Compile event search queries",
		Long:  "Parse search queries and compile them into backend conditions, aggregations and grouping.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to config file")
	cmd.PersistentFlags().StringVar(&opts.Schema, "schema", "", "path to schema file")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewParseCommand(opts))
	cmd.AddCommand(NewFieldsCommand(opts))

	return cmd
}

func (opts *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// logger writes to stderr so JSON output stays clean.
func (opts *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{Level: level}))
}

// compiler builds a compiler from the global flags. Without a config file
// it runs over an empty in-memory store. The returned func releases the
// storage.
func (opts *RootOptions) compiler(ctx context.Context, logger *slog.Logger) (*search.Compiler, func(), error) {
	var (
		schema *search.Schema
		err    error
	)
	if opts.Schema != "" {
		schema, err = config.LoadSchema(opts.Schema)
		if err != nil {
			return nil, nil, err
		}
	}

	if opts.Config == "" {
		if schema == nil {
			schema = search.DefaultSchema()
		}

		st, err := storage.NewMemoryStorage(storage.MemoryStorageConfig{})
		if err != nil {
			return nil, nil, err
		}
		return search.NewCompiler(logger, schema, st, st), func() {}, nil
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, nil, err
	}

	app, _, err := cfg.Parse()
	if err != nil {
		return nil, nil, err
	}

	if schema == nil {
		schema = app.Schema
	}

	if err := app.Storage.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("cannot connect to storage: %w", err)
	}

	closeStorage := func() {
		if err := app.Storage.Close(context.Background()); err != nil {
			logger.Warn("cannot close storage", "error", err)
		}
	}

	return app.NewCompiler(logger, schema), closeStorage, nil
}
