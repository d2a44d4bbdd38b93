// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notely/internal/api"
	"github.com/starford/notely/internal/generator"
	"github.com/starford/notely/internal/identity"
	"github.com/starford/notely/internal/mcpserver"
	"github.com/starford/notely/internal/noteservice"
	"github.com/starford/notely/internal/reload"
	"github.com/starford/notely/internal/sse"
	"github.com/starford/notely/internal/storage"
	"github.com/starford/notely/internal/store"
	"github.com/starford/notely/internal/tagservice"
	"github.com/starford/notely/internal/vault"
	pkgconfig "github.com/starford/notely/pkg/config"
)

// core holds the components shared by the HTTP and MCP front ends.
type core struct {
	cfg      *Config
	logger   *slog.Logger
	logLevel *slog.LevelVar
	db       *store.DB
	notes    *noteservice.Service
	tags     *tagservice.Service
}

func newApplication(opts []Option) *application {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

func newCore(ctx context.Context, app *application) (*core, error) {
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config
	out := app.logOutput
	if out == nil {
		out = os.Stdout
	}

	// Initialize structured JSON logger. The level can change at runtime.
	level := new(slog.LevelVar)
	level.Set(cfg.App.LogLevel)
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	gen, err := generator.New(ctx, cfg.Generator.Options(), logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init generator: %w", err)
	}

	return &core{
		cfg:      cfg,
		logger:   logger,
		logLevel: level,
		db:       db,
		notes:    noteservice.NewService(db, gen, cfg.Notes.Service(), logger),
		tags:     tagservice.NewService(db, gen, logger),
	}, nil
}

func (c *core) verifier() identity.Verifier {
	switch c.cfg.Auth.Mode {
	case AuthModeJWT:
		return identity.NewJWTVerifier(c.cfg.Auth.JWTSecret, c.cfg.Auth.Audience)
	case AuthModeToken:
		return identity.StaticToken{Token: c.cfg.Auth.Token, Owner: c.cfg.Auth.DevOwner}
	default:
		return identity.FixedOwner{Owner: c.cfg.Auth.DevOwner}
	}
}

func (c *core) magicLinkSender() identity.MagicLinkSender {
	id := c.cfg.Identity
	if id.SupabaseURL == "" {
		return identity.Disabled{}
	}
	return identity.NewSupabase(id.SupabaseURL, id.SupabaseKey, id.RedirectURL)
}

// reloadLogLevel re-reads the configuration file and applies its log level.
func (c *core) reloadLogLevel(path string) func() error {
	return func() error {
		fresh := NewDefaultConfig()
		if err := pkgconfig.Load(path, fresh); err != nil {
			return err
		}
		if fresh.App.LogLevel != c.logLevel.Level() {
			c.logger.Info("log level changed",
				slog.String("from", c.logLevel.Level().String()),
				slog.String("to", fresh.App.LogLevel.String()))
			c.logLevel.Set(fresh.App.LogLevel)
		}
		return nil
	}
}

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)

	c, err := newCore(ctx, app)
	if err != nil {
		return err
	}
	defer c.db.Close()

	cfg := c.cfg
	logger := c.logger

	// SSE broker.
	broker := sse.NewBroker(sse.WithTagsThrottle(2 * time.Second))
	defer broker.Close()
	c.notes.WithEvents(broker)

	apiRouter := api.NewRouter(c.notes, c.tags, c.magicLinkSender(), c.verifier(), broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.App.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "If-Match"},
		ExposedHeaders:   []string{"ETag"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := c.db.Ping(r.Context()); err != nil {
			logger.Error("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Hot-reload the log level when the config file changes.
	if app.configPath != "" {
		watcher, err := reload.New(app.configPath, logger)
		if err != nil {
			logger.Warn("config watcher disabled", slog.String("error", err.Error()))
		} else {
			g.Go(func() error {
				return watcher.Run(gCtx, c.reloadLogLevel(app.configPath))
			})
		}
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Close SSE streams first so Shutdown does not wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group context so the remaining goroutines stop.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout for the configured owner.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.logOutput == nil {
		app.logOutput = os.Stderr
	}

	c, err := newCore(ctx, app)
	if err != nil {
		return err
	}
	defer c.db.Close()

	c.logger.Info("MCP server starting", slog.String("owner", c.cfg.MCP.OwnerID))
	return mcpserver.New(c.notes, c.tags, c.cfg.MCP.OwnerID).ServeStdio()
}

// VaultDirection selects what RunVault does.
type VaultDirection int

const (
	// VaultImport reads the directory into the owner's notes.
	VaultImport VaultDirection = iota
	// VaultExport writes the owner's notes into the directory.
	VaultExport
)

// RunVault syncs owner's notes with the Markdown files under dir once.
// The export directory is created when missing.
func RunVault(ctx context.Context, direction VaultDirection, dir, owner string, opts ...Option) (vault.Report, error) {
	app := newApplication(opts)
	if app.logOutput == nil {
		app.logOutput = os.Stderr
	}
	if owner == "" {
		return vault.Report{}, fmt.Errorf("owner is required")
	}

	c, err := newCore(ctx, app)
	if err != nil {
		return vault.Report{}, err
	}
	defer c.db.Close()

	if direction == VaultExport {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return vault.Report{}, fmt.Errorf("create vault dir: %w", err)
		}
	}
	files, err := storage.NewFS(dir)
	if err != nil {
		return vault.Report{}, err
	}
	defer files.Close()
	syncer := vault.New(c.notes, c.db, files, c.logger)

	var rep vault.Report
	if direction == VaultExport {
		rep, err = syncer.Export(ctx, owner)
	} else {
		rep, err = syncer.Import(ctx, owner)
	}
	if err != nil {
		return rep, err
	}
	c.logger.Info("Vault sync finished",
		slog.String("dir", dir),
		slog.String("owner", owner),
		slog.Int("created", rep.Created),
		slog.Int("updated", rep.Updated),
		slog.Int("unchanged", rep.Unchanged),
		slog.Int("failed", rep.Failed))
	return rep, nil
}
