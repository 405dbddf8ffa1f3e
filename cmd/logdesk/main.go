package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"logdesk/internal/config"
	"logdesk/internal/logging"
	"logdesk/internal/server"
	"logdesk/internal/service"
	"logdesk/internal/storage"
	"logdesk/internal/tui"
	"logdesk/internal/types"
	"logdesk/web"
)

// Build information (set by build script)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Application represents the main application
type Application struct {
	config     *types.Config
	store      *storage.Store
	desk       *service.DeskService
	httpServer *server.HTTPServer

	closeLog func() error

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(2)
	}

	app, err := NewApplication(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create application")
	}

	log.Info().
		Str("version", Version).
		Str("built", BuildTime).
		Str("commit", GitCommit).
		Msg("logdesk starting")

	if cfg.Mode == types.ModeTUI {
		if err := app.RunTUI(); err != nil {
			log.Error().Err(err).Msg("terminal UI failed")
			app.Stop()
			os.Exit(1)
		}
		app.Stop()
		return
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start application")
	}

	log.Info().
		Int("records", app.store.Len()).
		Msgf("Web interface available at http://localhost:%d", cfg.HTTPPort)

	// Wait for shutdown signal
	<-sigChan
	log.Info().Msg("shutdown signal received, stopping application")

	if err := app.Stop(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
		os.Exit(1)
	}

	log.Info().Msg("logdesk stopped")
}

// NewApplication sets up logging, loads the dataset and builds the desk
func NewApplication(cfg *types.Config) (*Application, error) {
	var out io.Writer = os.Stderr
	if cfg.Mode == types.ModeTUI {
		// The terminal belongs to the UI; only the log file receives records
		out = io.Discard
	}
	closeLog, err := logging.Init(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Out:     out,
		Console: cfg.Mode != types.ModeTUI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &Application{
		config:   cfg,
		closeLog: closeLog,
		ctx:      ctx,
		cancel:   cancel,
	}

	if err := app.initializeComponents(); err != nil {
		cancel()
		closeLog()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return app, nil
}

// initializeComponents initializes all application components
func (app *Application) initializeComponents() error {
	store, err := storage.LoadStore(app.config.DatasetPath)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	app.store = store
	log.Info().Str("path", app.config.DatasetPath).Int("records", store.Len()).Msg("dataset loaded")

	app.desk = service.NewDeskService(store, app.config.Location())

	if app.config.Mode == types.ModeServer {
		server.Version = Version
		if app.config.StaticDir != "" {
			web.SetStaticFS(os.DirFS(app.config.StaticDir))
			log.Info().Str("dir", app.config.StaticDir).Msg("serving web page from disk")
		}
		app.httpServer = server.NewHTTPServerWithStaticFiles(app.config, app.desk, web.GetStaticFS())
	}

	return nil
}

// Start starts the HTTP server
func (app *Application) Start() error {
	if err := app.httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// RunTUI runs the terminal UI until the user quits
func (app *Application) RunTUI() error {
	return tui.Run(app.desk, app.config.Location())
}

// Stop gracefully stops all application components
func (app *Application) Stop() error {
	app.cancel()

	var errors []error

	if app.httpServer != nil {
		stopped := make(chan error, 1)
		go func() {
			stopped <- app.httpServer.Stop()
		}()

		timeout := app.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		select {
		case err := <-stopped:
			if err != nil {
				errors = append(errors, fmt.Errorf("HTTP server stop error: %w", err))
			}
		case <-time.After(timeout):
			errors = append(errors, fmt.Errorf("shutdown timeout exceeded"))
		}
	}

	if app.desk != nil {
		app.desk.Close()
	}

	if app.closeLog != nil {
		if err := app.closeLog(); err != nil {
			errors = append(errors, fmt.Errorf("log file close error: %w", err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("shutdown errors: %v", errors)
	}

	return nil
}
