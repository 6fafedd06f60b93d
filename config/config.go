package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"go.yaml.in/yaml/v3"

	"github.com/thisisjab/eventsearch/api"
	"github.com/thisisjab/eventsearch/rewrite"
	"github.com/thisisjab/eventsearch/search"
	"github.com/thisisjab/eventsearch/storage"
)

type Config struct {
	Logger  LoggerConfig  `yaml:"logger"`
	API     api.Config    `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	// SchemaPath points to a schema file layered over the built-in schema.
	// Empty means the built-in schema.
	SchemaPath string          `yaml:"schema_path"`
	Rewriter   *RewriterConfig `yaml:"rewriter"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
	Type  string `yaml:"type"`
}

type StorageConfig struct {
	Type   string `yaml:"type"`
	Config any    `yaml:"config"`
}

type RewriterConfig struct {
	Type   string `yaml:"type"`
	Config any    `yaml:"config"`
}

// Storage is what the compiler needs from a backing store.
type Storage interface {
	search.ProjectDirectory
	search.EventStore
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
}

// App holds the components built from a Config.
type App struct {
	Storage  Storage
	Rewriter search.Rewriter
	Schema   *search.Schema
}

// Load reads and decodes the YAML config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("cannot parse config file: %w", err)
	}

	return cfg, nil
}

func (cfg Config) Parse() (*App, *slog.Logger, error) {
	logger, err := parseLoggerConfig(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create logger: %w", err)
	}

	st, err := parseStorageConfig(cfg.Storage)
	if err != nil {
		return nil, logger, fmt.Errorf("cannot create storage: %w", err)
	}

	var rw search.Rewriter
	if cfg.Rewriter != nil {
		rw, err = parseRewriterConfig(*cfg.Rewriter)
		if err != nil {
			return nil, logger, fmt.Errorf("cannot create rewriter: %w", err)
		}
	}

	schema := search.DefaultSchema()
	if cfg.SchemaPath != "" {
		schema, err = LoadSchema(cfg.SchemaPath)
		if err != nil {
			return nil, logger, fmt.Errorf("cannot load schema: %w", err)
		}
	}

	return &App{
		Storage:  st,
		Rewriter: rw,
		Schema:   schema,
	}, logger, nil
}

// NewCompiler builds a compiler over the app's storage and rewriter.
func (a *App) NewCompiler(logger *slog.Logger, schema *search.Schema) *search.Compiler {
	var opts []search.Option
	if a.Rewriter != nil {
		opts = append(opts, search.WithRewriter(a.Rewriter))
	}

	return search.NewCompiler(logger, schema, a.Storage, a.Storage, opts...)
}

func parseLoggerConfig(cfg LoggerConfig) (*slog.Logger, error) {
	var logger *slog.Logger
	var handler slog.Handler

	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	w := os.Stdout
	switch cfg.Type {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "text":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	case "colored-text":
		handler = tint.NewHandler(w, &tint.Options{Level: level, AddSource: true})
	default:
		return nil, fmt.Errorf("invalid log type: %s", cfg.Type)
	}

	logger = slog.New(handler)

	return logger, nil
}

func parseStorageConfig(cfg StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "clickhouse":
		var clickHouseConfig storage.ClickHouseStorageConfig

		if err := remarshal(cfg.Config, &clickHouseConfig); err != nil {
			return nil, fmt.Errorf("cannot parse clickhouse storage config: %w", err)
		}

		s, err := storage.NewClickHouseStorage(clickHouseConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot create clickhouse storage: %w", err)
		}

		return s, nil

	case "memory":
		var memoryConfig storage.MemoryStorageConfig

		if err := remarshal(cfg.Config, &memoryConfig); err != nil {
			return nil, fmt.Errorf("cannot parse memory storage config: %w", err)
		}

		s, err := storage.NewMemoryStorage(memoryConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot create memory storage: %w", err)
		}

		return s, nil

	default:
		return nil, fmt.Errorf("invalid storage type: %s", cfg.Type)
	}
}

func parseRewriterConfig(cfg RewriterConfig) (search.Rewriter, error) {
	switch cfg.Type {
	case "lua":
		var luaConfig rewrite.LuaRewriterConfig
		if err := remarshal(cfg.Config, &luaConfig); err != nil {
			return nil, fmt.Errorf("cannot parse lua rewriter config: %w", err)
		}

		r, err := rewrite.NewLuaRewriter(luaConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot create lua rewriter: %w", err)
		}

		return r, nil
	default:
		return nil, fmt.Errorf("invalid rewriter type: %s", cfg.Type)
	}
}

// remarshal takes an input value, marshals it to YAML, and then unmarshals it into a new value of the same type.
// This is useful for converting generic interfaces (like map[string]any) into concrete struct types.
// The output parameter must be a pointer to the target type.
func remarshal(input any, output any) error {
	// Marshal the input to YAML
	yamlBytes, err := yaml.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal to YAML: %w", err)
	}

	// Unmarshal the YAML into the output
	if err := yaml.Unmarshal(yamlBytes, output); err != nil {
		return fmt.Errorf("failed to unmarshal from YAML: %w", err)
	}

	return nil
}
