package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/erazemk/custody/internal/api"
	"github.com/erazemk/custody/internal/auth"
	"github.com/erazemk/custody/internal/client"
	"github.com/erazemk/custody/internal/config"
	"github.com/erazemk/custody/internal/db"
	"github.com/erazemk/custody/internal/localcache"
	"github.com/erazemk/custody/internal/logger"
	"github.com/erazemk/custody/internal/model"
	"github.com/erazemk/custody/internal/revoke"
	"github.com/erazemk/custody/internal/store"
)

const usage = `Usage: custody [serve|sync] [flags]

Commands:
  serve   run the state store HTTP server (default)
  sync    merge the local cache with the server and push the result

Serve flags:
  -c, --config <path>     config file (default: ./custody.{yaml,toml} if present)
  -d, --db <path>         SQLite database path (default: custody.sqlite3)
  -a, --addr <host:port>  listen address (default: :3000)
      --driver <name>     storage driver: sqlite or postgres (default: sqlite)
  -l, --log <path>        log file path (default: stdout/stderr only)

Sync flags:
  -c, --config <path>     config file
  -u, --url <url>         server base URL (default: http://localhost:3000)
      --cache <dir>       local cache directory (default: in memory)
      --seed <path>       TOML seed file for an empty cache
      --role <role>       request a server token as admin or worker
      --id <id>           admin username or worker id
      --password <pw>     password for --id
  -l, --log <path>        log file path
`

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && (args[0] == "serve" || args[0] == "sync") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = cmdServe(args)
	case "sync":
		err = cmdSync(args)
	}
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stdout, usage) }
	fs.StringP("config", "c", "", "")
	fs.StringP("log", "l", "", "")
	return fs
}

// setup loads configuration and installs the global logger.
func setup(fs *pflag.FlagSet, args []string) (*config.Config, *zap.Logger, func(), error) {
	if err := fs.Parse(args); err != nil {
		return nil, nil, nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, nil, nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	path, _ := fs.GetString("config")
	cfg, err := config.Load(path, fs)
	if err != nil {
		return nil, nil, nil, err
	}

	log, closeLog, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	zap.ReplaceGlobals(log)
	return cfg, log, closeLog, nil
}

func cmdServe(args []string) error {
	fs := newFlagSet("serve")
	fs.StringP("db", "d", "", "")
	fs.StringP("addr", "a", "", "")
	fs.String("driver", "", "")

	cfg, log, closeLog, err := setup(fs, args)
	if err != nil {
		return err
	}
	defer closeLog()

	backend, err := openBackend(cfg, log)
	if err != nil {
		log.Error("failed to open state store", zap.Error(err))
		return err
	}
	defer backend.Close()

	ctx := context.Background()

	// Load JWT secret from the store unless configured (generated on first run).
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret, err = backend.JWTSecret(ctx)
		if err != nil {
			log.Error("failed to get JWT secret", zap.Error(err))
			return err
		}
	}

	creds, err := auth.NewCredentials(cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, cfg.Auth.DefaultWorkerPassword)
	if err != nil {
		return err
	}

	var revoker revoke.Revoker = revoke.NewStore(backend)
	if cfg.Redis.Addr != "" {
		r, err := revoke.NewRedis(cfg.Redis, log)
		if err != nil {
			log.Error("failed to connect to redis", zap.Error(err))
			return err
		}
		defer r.Close()
		revoker = r
	}

	router := api.NewRouter(api.Options{
		Store:        backend,
		Credentials:  creds,
		Revoker:      revoker,
		JWTSecret:    jwtSecret,
		TokenTTL:     cfg.Auth.TokenTTL,
		RequireToken: cfg.Auth.RequireToken,
		BodyLimit:    cfg.Server.BodyLimit,
		Log:          log,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.LoggingMiddleware(log)(router),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		log.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Error("server forced to shutdown", zap.Error(err))
		}
	}()

	log.Info("server started", zap.String("addr", cfg.Server.Addr), zap.String("driver", cfg.Storage.Driver))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", zap.Error(err))
		return err
	}

	log.Info("server stopped, closing state store")
	return nil
}

func openBackend(cfg *config.Config, log *zap.Logger) (store.Backend, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		gdb, err := db.OpenPostgres(&cfg.Storage.Postgres, log)
		if err != nil {
			return nil, err
		}
		pg, err := store.NewPostgres(gdb)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		path := cfg.Storage.SQLite.Path
		database, err := db.Open(path)
		if err != nil {
			return nil, err
		}
		// Ensure schema exists (idempotent).
		if err := db.EnsureSchema(database); err != nil {
			database.Close()
			return nil, fmt.Errorf("ensuring schema: %w", err)
		}
		log.Info("database ready", zap.String("path", path))
		return store.NewSQLite(database), nil
	}
}

func cmdSync(args []string) error {
	fs := newFlagSet("sync")
	fs.StringP("url", "u", "", "")
	fs.String("cache", "", "")
	fs.String("seed", "", "")
	role := fs.String("role", "", "")
	id := fs.String("id", "", "")
	password := fs.String("password", "", "")

	cfg, log, closeLog, err := setup(fs, args)
	if err != nil {
		return err
	}
	defer closeLog()

	remote, err := client.NewHTTPRemote(cfg.Client.BaseURL, cfg.Client.RequestTimeout)
	if err != nil {
		return err
	}
	if cfg.Client.Token != "" {
		remote.SetToken(cfg.Client.Token)
	}

	cache, err := localcache.Open(cfg.Client.CacheDir, log)
	if err != nil {
		return err
	}
	defer cache.Close()

	seed, err := localcache.LoadSeed(cfg.Client.SeedFile)
	if err != nil {
		return err
	}

	creds, err := auth.NewCredentials(cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, cfg.Auth.DefaultWorkerPassword)
	if err != nil {
		return err
	}

	m := client.New(client.Options{
		Remote:      remote,
		Cache:       cache,
		Credentials: creds,
		Seed:        seed,
		SyncDelay:   cfg.Client.SyncDelay,
		Log:         log,
	})
	defer m.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *role != "" {
		if err := remote.Login(ctx, *role, *id, *password); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		defer func() { _ = remote.Logout(context.Background()) }()
	}

	if err := m.Load(ctx); err != nil {
		if !errors.Is(err, model.ErrStorageUnavailable) {
			return err
		}
		log.Warn("server unreachable, local cache kept", zap.Error(err))
		printStats(m.Stats())
		return nil
	}

	if err := m.Flush(ctx); err != nil {
		return fmt.Errorf("pushing state: %w", err)
	}
	log.Info("state synced", zap.String("url", cfg.Client.BaseURL))
	printStats(m.Stats())
	return nil
}

func printStats(st model.Stats) {
	fmt.Printf("Items:     %d\n", st.Total)
	for _, s := range model.Statuses() {
		var n int
		switch s {
		case model.StatusAvailable:
			n = st.Available
		case model.StatusAssigned:
			n = st.Assigned
		case model.StatusInstalled:
			n = st.Installed
		case model.StatusDamaged:
			n = st.Damaged
		case model.StatusLost:
			n = st.Lost
		}
		fmt.Printf("  %-10s %d (%s)\n", s+":", n, s.Label())
	}
}
