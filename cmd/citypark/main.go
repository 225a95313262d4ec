package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/citypark/citypark/cmd/citypark/cli"
	"github.com/citypark/citypark/internal/app"
	"github.com/citypark/citypark/internal/auth"
	"github.com/citypark/citypark/internal/clients"
	"github.com/citypark/citypark/internal/observability"
	"github.com/citypark/citypark/internal/parking"
	"github.com/citypark/citypark/internal/platform/cache"
	"github.com/citypark/citypark/internal/platform/db"
	"github.com/citypark/citypark/internal/shared"
	"github.com/citypark/citypark/jobs"
)

const usage = `usage: citypark [serve | jobs <trigger|stats> | token -user ID -role ROLE]`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	command, args := "serve", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		os.Exit(serve())
	case "jobs":
		os.Exit(runJobs(args))
	case "token":
		os.Exit(runToken(args))
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

// store bundles the persistence ports selected by STORE_DRIVER.
type store struct {
	repo      parking.RepositoryPort
	directory clients.Directory
	audit     *shared.AuditLogger
	close     func()
}

func openStore(ctx context.Context, cfg *app.Config, logger *slog.Logger) (store, error) {
	if cfg.StoreDriver == app.StoreMemory {
		seed, err := cfg.MemoryClientSeed()
		if err != nil {
			return store{}, err
		}
		logger.Warn("using in-memory store", slog.Int("slots", len(cfg.MemorySlots)), slog.Int("clients", len(seed)))
		return store{
			repo:      parking.NewMemoryRepository(cfg.MemorySlots...),
			directory: clients.NewMemoryDirectory(seed...),
			audit:     shared.NewAuditLogger(nil, logger),
			close:     func() {},
		}, nil
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return store{}, err
	}
	if cfg.PGMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return store{}, err
		}
	}
	return store{
		repo:      parking.NewRepository(pool),
		directory: clients.NewRepository(pool),
		audit:     shared.NewAuditLogger(pool, logger),
		close:     pool.Close,
	}, nil
}

func serve() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}

	logger := app.NewLogger(cfg)

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("open store", slog.String("driver", cfg.StoreDriver), slog.Any("error", err))
		return 1
	}
	defer st.close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, client cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}
	directory := clients.NewCachedDirectory(st.directory, redisClient, cfg.ClientCacheTTL, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	fees, err := cfg.FeeCalculator()
	if err != nil {
		logger.Error("fee policy", slog.Any("error", err))
		return 1
	}
	money, err := cfg.MoneyFormatter()
	if err != nil {
		logger.Error("money formatter", slog.Any("error", err))
		return 1
	}

	metrics := observability.NewMetrics()
	slots := parking.NewSlotPool(st.repo, logger)
	if occ, err := slots.Occupancy(ctx); err != nil {
		logger.Warn("initial occupancy", slog.Any("error", err))
	} else {
		metrics.Parking().SetOccupied(occ.Occupied)
		logger.Info("slot pool loaded", slog.Int("free", occ.Free), slog.Int("occupied", occ.Occupied))
	}

	ledger := parking.NewSessionLedger(st.repo, slots, fees, directory, parking.LedgerConfig{
		Discounts: cfg.DiscountRule(),
		Recorder:  metrics.Parking(),
		Audit:     st.audit,
		Notifier:  jobClient,
		Logger:    logger,
	})

	authService, err := auth.NewService(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		logger.Error("init auth", slog.Any("error", err))
		return 1
	}

	handlerCfg := parking.HandlerConfig{Money: money, CheckInLimit: cfg.CheckInLimitPerMinute}
	if redisClient != nil {
		handlerCfg.Idempotency = shared.NewIdempotencyStore(redisClient, cfg.IdempotencyTTL)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Metrics:        metrics,
		Auth:           authService,
		ParkingHandler: parking.NewHandler(logger, ledger, directory, handlerCfg),
		JobHandler:     jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return 1
	}
	logger.Info("server stopped")
	return 0
}

func runJobs(args []string) int {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	redisAddr := fs.String("redis", envOr("REDIS_ADDR", "127.0.0.1:6379"), "redis address")
	name := fs.String("name", jobs.TaskOccupancySnapshot, "task type to trigger")
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	action := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	jc, err := cli.NewJobsCLI(*redisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer jc.Close()

	switch action {
	case "trigger":
		info, err := jc.Trigger(ctx, *name)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Fprintf(os.Stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := jc.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		cli.WriteStats(os.Stdout, stats)
	default:
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	return 0
}

func runToken(args []string) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	opts := cli.TokenOptions{Stdout: os.Stdout, Stderr: os.Stderr}
	fs.StringVar(&opts.Secret, "secret", os.Getenv("AUTH_JWT_SECRET"), "HS256 signing secret")
	fs.StringVar(&opts.Issuer, "issuer", envOr("AUTH_JWT_ISSUER", "citypark"), "token issuer")
	fs.Int64Var(&opts.UserID, "user", 0, "user id placed in the sub claim")
	fs.StringVar(&opts.Role, "role", string(shared.RoleAdmin), "ADMIN or CLIENT")
	fs.DurationVar(&opts.TTL, "ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	return cli.TokenCommand(opts)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
