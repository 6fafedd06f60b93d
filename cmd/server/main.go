package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/thisisjab/eventsearch/api"
	"github.com/thisisjab/eventsearch/config"
	"github.com/thisisjab/eventsearch/search"
)

func main() {
	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "./.config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}

	app, logger, err := cfg.Parse()
	if err != nil {
		if logger != nil {
			logger.Error("cannot parse config file", "error", err)
			os.Exit(1)
		}
		panic(fmt.Errorf("cannot parse config file: %w", err))
	}

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			logger.Error("server panic", "error", r)
		}
	}()

	// Setup signal handling to catch Ctrl+C (SIGINT) or Terminate (SIGTERM)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received signal. shutting down.", "signal", sig)
		cancel()
	}()

	if err := app.Storage.Connect(ctx); err != nil {
		logger.Error("storage error.", "error", err)
		os.Exit(1)
	}
	defer app.Storage.Close(context.Background())

	build := func(schema *search.Schema) *search.Compiler {
		return app.NewCompiler(logger, schema)
	}
	holder := config.NewCompilerHolder(build(app.Schema))

	if cfg.SchemaPath != "" {
		watcher := config.NewSchemaWatcher(logger, cfg.SchemaPath, holder, build)
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("schema watcher stopped.", "error", err)
			}
		}()
	}

	// Create server
	server, err := api.NewServer(cfg.API, logger, holder)
	if err != nil {
		logger.Error("server error.", "error", err)
		os.Exit(1)
	}

	// Run server
	if err := server.Serve(ctx); err != nil {
		logger.Error("server error.", "error", err)
		cancel()
		os.Exit(1)
	}

	logger.Info("server stopped.")
}
