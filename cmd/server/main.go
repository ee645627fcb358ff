package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"isdanary/backend/internal/cache"
	"isdanary/backend/internal/config"
	"isdanary/backend/internal/docstore"
	"isdanary/backend/internal/docstore/memory"
	pgstore "isdanary/backend/internal/docstore/postgres"
	"isdanary/backend/internal/docstore/sqlite"
	"isdanary/backend/internal/httpapi"
	"isdanary/backend/internal/identity"
	"isdanary/backend/internal/service"
	"isdanary/backend/internal/theme"
	"isdanary/backend/internal/workspace"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatalf("isdanary: %v", err)
	}
}

// newRootCommand runs the server when no subcommand is given.
func newRootCommand() *cobra.Command {
	cfg := config.Load()

	cmd := &cobra.Command{
		Use:           "isdanary",
		Short:         "IsdaNary fish shop backend",
		Long:          "Inventory, sales and expense tracking for a fish shop, served as a JSON API with server-rendered pages.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cfg)
		},
	}

	cmd.PersistentFlags().StringVar(&cfg.Port, "port", cfg.Port, "listen port (PORT)")
	cmd.PersistentFlags().StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres connection string (DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&cfg.SQLitePath, "sqlite", cfg.SQLitePath, "SQLite database file (SQLITE_PATH)")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cfg)
		},
	})
	cmd.AddCommand(newSeedCommand(&cfg))

	return cmd
}

type app struct {
	service *service.Service
	spaces  *workspace.Registry
	closers []func() error
}

func (a *app) close() {
	a.spaces.Close()
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}
}

func openStore(ctx context.Context, cfg config.Config) (docstore.Store, func() error, error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres unavailable (%w) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		log.Println("document store: postgres")
		return pg, pg.Close, nil
	case cfg.SQLitePath != "":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite unavailable at %s: %w", cfg.SQLitePath, err)
		}
		log.Printf("document store: sqlite (%s)", cfg.SQLitePath)
		return db, db.Close, nil
	}
	mem := memory.New()
	log.Println("document store: in-memory")
	return mem, mem.Close, nil
}

func openPreferences(ctx context.Context, cfg config.Config) (cache.PreferenceStore, func() error) {
	if cfg.RedisAddr != "" {
		redisPrefs := cache.NewRedisPreferences(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisPrefs.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), falling back", err)
			_ = redisPrefs.Close()
		} else {
			log.Println("preferences: redis")
			return redisPrefs, redisPrefs.Close
		}
	}
	if cfg.PreferencesFile != "" {
		filePrefs, err := cache.OpenFilePreferences(cfg.PreferencesFile)
		if err != nil {
			log.Printf("preferences file unusable (%v), using memory", err)
		} else {
			log.Printf("preferences: file (%s)", cfg.PreferencesFile)
			return filePrefs, nil
		}
	}
	log.Println("preferences: memory")
	return cache.NewMemoryPreferences(), nil
}

func build(cfg config.Config) (*app, error) {
	if err := validateSecurityConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid security configuration: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{closers: []func() error{closeStore}}

	prefs, closePrefs := openPreferences(ctx, cfg)
	if closePrefs != nil {
		a.closers = append(a.closers, closePrefs)
	}

	auth := identity.NewManager(cfg.AuthSecret, cfg.AccessTokenTTL(), identity.NewDocumentUsers(store))
	a.spaces = workspace.NewRegistry(store, workspace.Options{
		OwnerScoped: cfg.OwnerScoped,
		Location:    cfg.Location,
	})
	a.service = service.New(auth, a.spaces, theme.New(prefs))
	return a, nil
}

func serve(cfg config.Config) error {
	a, err := build(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	api := httpapi.New(a.service, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("IsdaNary backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	log.Println("server stopped")
	return nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
