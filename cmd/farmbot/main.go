// farmbot - DonutSMP farm income calculator bot
package main

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
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/donutsmp/farmbot/internal/api"
	"github.com/donutsmp/farmbot/internal/bot"
	"github.com/donutsmp/farmbot/internal/catalog"
	"github.com/donutsmp/farmbot/internal/config"
	"github.com/donutsmp/farmbot/internal/cooldown"
	"github.com/donutsmp/farmbot/internal/gateway"
	"github.com/donutsmp/farmbot/internal/middleware"
	"github.com/donutsmp/farmbot/internal/session"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "farmbot",
		Short:         "Farm income calculator bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newConsoleCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}
	return config.Load()
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway and HTTP server",
		RunE: func(*cobra.Command, []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	slog.Info("Starting farmbot", "port", cfg.Port, "step_timeout", cfg.StepTimeout)

	// Initialize dependencies.
	store, err := catalog.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize catalog store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close catalog store", "error", closeErr)
		}
	}()

	if err := store.Ping(context.Background()); err != nil {
		return fmt.Errorf("catalog store health check: %w", err)
	}
	slog.Info("Catalog store connected", "db_path", cfg.DBPath)

	maybeSeed(context.Background(), store, cfg.SeedPath)

	// Wire the bot.
	relay := gateway.NewRelay()
	engine := session.New(store, relay, cfg.StepTimeout)
	dispatcher := bot.NewDispatcher(engine, store, cooldown.NewTracker(), relay, cfg.PingRoles, cfg.PingCooldown)
	wsHandler := gateway.NewWebSocketHandler(relay, dispatcher, cfg.GatewayToken)

	// Setup router.
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS())

	api.NewHandler(store).RegisterRoutes(r)
	r.Get("/ws/gateway", wsHandler.ServeHTTP)

	// Note: the gateway connection is long-lived, so no write timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	slog.Info("Server stopped successfully")
	return nil
}

// maybeSeed imports the seed document when the catalog is still empty.
func maybeSeed(ctx context.Context, store catalog.Store, path string) {
	categories, err := store.ListCategories(ctx)
	if err != nil {
		slog.Warn("Skipping catalog seed, listing failed", "error", err)
		return
	}
	if len(categories) > 0 {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to open catalog seed document", "path", path, "error", err)
		}
		return
	}
	defer func() {
		_ = f.Close()
	}()

	n, err := catalog.Import(ctx, store, f)
	if err != nil {
		slog.Error("Catalog seed import failed", "path", path, "error", err)
		return
	}
	slog.Info("Catalog seeded", "path", path, "farms", n)
}

func newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import a catalog document into the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.SeedPath
			}

			store, err := catalog.NewSQLite(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer func() {
				_ = f.Close()
			}()

			n, err := catalog.Import(cmd.Context(), store, f)
			if err != nil {
				return err
			}
			fmt.Printf("imported %d farms from %s\n", n, file)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog document (defaults to CATALOG_SEED_PATH)")
	return cmd
}
