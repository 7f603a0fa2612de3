package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/votedesk/internal/apiclient"
	"github.com/JonMunkholm/votedesk/internal/config"
	"github.com/JonMunkholm/votedesk/internal/entities"
	"github.com/JonMunkholm/votedesk/internal/logging"
	"github.com/JonMunkholm/votedesk/internal/prefs"
	"github.com/JonMunkholm/votedesk/internal/store"
	"github.com/JonMunkholm/votedesk/internal/web"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file to load before reading the environment")
	addr := pflag.String("addr", "", "listen address, overrides SERVER_HOST and SERVER_PORT")
	definitions := pflag.String("definitions", "", "YAML entity definitions, overrides TABLE_DEFINITIONS")
	pflag.Parse()

	// Overload lets the file win over variables already set in the shell.
	if err := godotenv.Overload(*envFile); err != nil {
		slog.Info("no .env file found, using environment variables", "file", *envFile)
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)", "file", *envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if *definitions != "" {
		cfg.Table.Definitions = *definitions
	}
	listen := cfg.Server.Addr()
	if *addr != "" {
		listen = *addr
	}

	if err := run(cfg, listen); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, listen string) error {
	slog.Info("configuration loaded",
		"addr", listen,
		"data_source", cfg.Source.Kind,
		"export_max_concurrent", cfg.Export.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"require_auth", cfg.Security.RequireAuth,
	)

	if cfg.Table.Definitions != "" {
		n, err := entities.LoadFile(cfg.Table.Definitions)
		if err != nil {
			return fmt.Errorf("load table definitions: %w", err)
		}
		slog.Info("table definitions loaded", "file", cfg.Table.Definitions, "count", n)
	}
	for _, group := range entities.Groups() {
		slog.Debug("table group", "group", group, "tables", len(entities.ByGroup(group)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	deps := web.Deps{Backend: backend}
	if cfg.Prefs.DSN != "" {
		ps, err := prefs.Open(ctx, cfg.Prefs.DSN)
		if err != nil {
			return fmt.Errorf("open preferences: %w", err)
		}
		defer ps.Close()
		deps.Prefs = ps
		slog.Info("column preferences enabled", "dsn", cfg.Prefs.DSN)
	}

	server := web.NewServer(cfg, deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(listen)
	})
	g.Go(func() error {
		server.StartSweeper(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// openBackend connects the configured data source.
func openBackend(ctx context.Context, cfg *config.Config) (web.Backend, func(), error) {
	switch cfg.Source.Kind {
	case config.SourceAPI:
		client := apiclient.New(cfg.Source.APIURL, cfg.Source.Timeout,
			apiclient.WithToken(cfg.Source.APIToken),
			apiclient.WithLogger(slog.Default()),
		)
		slog.Info("reading tables from the REST API", "base_url", cfg.Source.APIURL)
		return web.APIBackend{Client: client}, func() {}, nil

	default:
		pool, err := store.Open(ctx, cfg.Database.URL, store.PoolConfig{
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}

		if u, err := url.Parse(cfg.Database.URL); err == nil {
			slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
		} else {
			slog.Info("connected to database")
		}
		return web.StoreBackend{Store: store.New(pool, slog.Default())}, pool.Close, nil
	}
}
