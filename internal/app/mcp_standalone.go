package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mediakit/internal/backend"
	"mediakit/internal/config"
	"mediakit/internal/logging"
	mcpserver "mediakit/internal/mcp"
	"mediakit/internal/render"
	"mediakit/internal/secret"
	"mediakit/internal/service"
)

// ServeMCP runs the editor engine as a standalone MCP server on stdin/stdout
// with no GUI. Logs go to stderr; stdout carries the protocol.
func ServeMCP(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.Stderr(cfg.Editor.Debug)
	ctx = logging.WithLogger(ctx, logger)

	// No frontend: render into memory so the reconciler still runs its
	// consistency checks.
	engine, err := NewEngine(ctx, cfg, render.NewMemoryView(), service.NopEmitter{}, logger)
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer engine.Close()
	if err := engine.Start(ctx); err != nil {
		return err
	}

	srv := mcpserver.New(mcpserver.Deps{
		Emitter:     service.NopEmitter{},
		Logger:      logger,
		Store:       engine.Store,
		Components:  engine.Components,
		Sections:    engine.Sections,
		Saver:       engine.Persist,
		Templates:   engine.Templates,
		AutoApprove: true,
	})

	errc := make(chan error, 1)
	go func() { errc <- srv.ServeStdio() }()
	select {
	case err = <-errc:
	case <-ctx.Done():
	}
	if engine.Persist.HasUnsavedChanges() {
		if serr := engine.Persist.Save(context.WithoutCancel(ctx)); serr != nil {
			logger.Error("final save failed", "err", serr)
		}
	}
	return err
}

// ServeBackend runs the reference save endpoint until interrupted.
func ServeBackend(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.Stderr(cfg.Editor.Debug)
	if err := resolveSecrets(&cfg, secret.NewKeychainStore()); err != nil {
		return err
	}

	docs, err := OpenDocumentStore(ctx, cfg.Backend, logger)
	if err != nil {
		return err
	}
	defer docs.Close()

	if cfg.Backend.Token == "" {
		logger.Warn("backend.token is empty: requests are not authenticated")
	}
	return backend.Serve(ctx, cfg.Backend.Listen, backend.NewHandler(docs, cfg.Backend.Token, logger))
}
