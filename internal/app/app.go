package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vk/blueetlcore/internal/cache"
	"github.com/vk/blueetlcore/internal/config"
	"github.com/vk/blueetlcore/internal/ctxlog"
	"github.com/vk/blueetlcore/internal/dispatcher"
	"github.com/vk/blueetlcore/internal/pipeline"
	"github.com/vk/blueetlcore/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	engine *config.Engine
	loader config.Loader

	registry     *registry.Registry
	dispatcher   *dispatcher.Dispatcher
	cache        *cache.Cache
	orchestrator *pipeline.Orchestrator
	httpServer   *http.Server
}

// NewApp is the constructor for the main application. Results are written
// to outW and logs to logW. The engine settings are read from
// cfg.EnginePath and the environment seen through env (nil for the process
// environment). Without modules the core modules are registered.
func NewApp(outW, logW io.Writer, cfg *Config, loader config.Loader, env func(string) (string, bool), modules ...registry.Module) (*App, error) {
	logger, level := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	engine, err := config.Load(cfg.EnginePath, env)
	if err != nil {
		return nil, fmt.Errorf("failed to load engine configuration: %w", err)
	}
	if cfg.Jobs != nil {
		engine.Jobs = config.JobCount(*cfg.Jobs)
	}
	logger.Debug("Engine configuration loaded.", "jobs", int(engine.Jobs), "backend", engine.Backend)

	opts := []dispatcher.Option{
		dispatcher.WithLogger(logger),
		dispatcher.WithVerbose(engine.VerboseLevel(level)),
	}
	workerLevel, err := engine.WorkerLevel()
	if err != nil {
		return nil, err
	}
	if workerLevel != nil {
		opts = append(opts, dispatcher.WithWorkerLogLevel(*workerLevel))
	}
	d := dispatcher.New(dispatcher.Config{JobCount: int(engine.Jobs), QueueSize: engine.QueueSize}, opts...)

	c := cache.New(d, cache.WithLogger(logger), cache.WithTTL(engine.CacheTTL.Duration()))

	if len(modules) == 0 {
		modules = coreModules(d.Workers())
	}
	reg := registry.New(modules...)
	logger.Debug("All Go modules registered.", "count", len(modules))
	if err := reg.ValidateRegistry(ctx); err != nil {
		d.Close()
		return nil, err
	}
	logger.Debug("Registry validation passed.")

	return &App{
		outW:         outW,
		logger:       logger,
		config:       cfg,
		engine:       engine,
		loader:       loader,
		registry:     reg,
		dispatcher:   d,
		cache:        c,
		orchestrator: pipeline.New(c, d, pipeline.WithLogger(logger)),
	}, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Cache returns the application's result cache.
func (a *App) Cache() *cache.Cache {
	return a.cache
}

// Dispatcher returns the application's worker pool.
func (a *App) Dispatcher() *dispatcher.Dispatcher {
	return a.dispatcher
}

// Close stops the health check server and the worker pool.
func (a *App) Close() error {
	err := a.closeHealthcheckServer()
	a.dispatcher.Close()
	return err
}
