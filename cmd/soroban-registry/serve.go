package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/PetJs/Soroban-Registry/pkg/api"
	"github.com/PetJs/Soroban-Registry/pkg/artifacts"
	"github.com/PetJs/Soroban-Registry/pkg/audit"
	"github.com/PetJs/Soroban-Registry/pkg/auth"
	"github.com/PetJs/Soroban-Registry/pkg/config"
	"github.com/PetJs/Soroban-Registry/pkg/crypto"
	"github.com/PetJs/Soroban-Registry/pkg/deploy"
	"github.com/PetJs/Soroban-Registry/pkg/multisig"
	"github.com/PetJs/Soroban-Registry/pkg/observability"
	"github.com/PetJs/Soroban-Registry/pkg/registry"
	"github.com/PetJs/Soroban-Registry/pkg/store"

	_ "github.com/lib/pq" // Postgres driver
)

const idempotencyTTL = 24 * time.Hour

//nolint:gocognit,gocyclo
func runServer(stdout, stderr io.Writer) int {
	fmt.Fprintf(stdout, "%sSoroban Registry starting...%s\n", ColorBold+ColorBlue, ColorReset)
	ctx := context.Background()

	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	var (
		policyStore   multisig.PolicyStore
		proposalStore multisig.ProposalStore
		regStore      registry.Store
		patchStore    registry.PatchStore
		idemStore     api.IdempotencyStore
		readyCheck    func(context.Context) error
	)

	if cfg.DatabaseURL == "" {
		fmt.Fprintf(stdout, "ℹ️  DATABASE_URL not set. Falling back to %sLite Mode%s (SQLite).\n", ColorBold+ColorCyan, ColorReset)
		lite, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to open sqlite store: %v\n", err)
			return 1
		}
		defer lite.Close()
		policyStore, proposalStore = lite, lite

		// Lite mode keeps contract metadata in process memory.
		mem := registry.NewMemory()
		regStore, patchStore = mem, mem
		idemStore = api.NewMemoryIdempotencyStore(idempotencyTTL)
		logger.Info("lite mode", "sqlite", cfg.SQLitePath)
	} else {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to connect to DB: %v\n", err)
			return 1
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			fmt.Fprintf(stderr, "DB ping failed: %v\n", err)
			return 1
		}

		pg := store.NewPostgres(db)
		if err := pg.Init(ctx); err != nil {
			fmt.Fprintf(stderr, "Failed to init governance store: %v\n", err)
			return 1
		}
		policyStore, proposalStore = pg, pg

		rpg := registry.NewPostgres(db)
		if err := rpg.Init(ctx); err != nil {
			fmt.Fprintf(stderr, "Failed to init registry store: %v\n", err)
			return 1
		}
		regStore, patchStore = rpg, rpg

		pidem := api.NewPostgresIdempotencyStore(db, idempotencyTTL)
		if err := pidem.Init(ctx); err != nil {
			fmt.Fprintf(stderr, "Failed to init idempotency store: %v\n", err)
			return 1
		}
		idemStore = pidem

		readyCheck = db.PingContext
		logger.Info("postgres connected")
	}

	artStore, err := artifacts.NewStoreFromEnv(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to init artifact store: %v\n", err)
		return 1
	}

	profiles, err := deploy.LoadProfiles(cfg.NetworksFile)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load network profiles: %v\n", err)
		return 1
	}
	deployer := deploy.NewRPCDeployer(profiles).WithLogger(logger)

	obs, err := observability.New(ctx, telemetryConfig())
	if err != nil {
		fmt.Fprintf(stderr, "Failed to init observability: %v\n", err)
		return 1
	}

	auditLog := audit.NewLog()
	sinks := multisig.FanoutSink{auditLog.Sink(logger), obs.Sink()}

	governance := multisig.NewService(policyStore, proposalStore).
		WithVerifier(crypto.NewEd25519Verifier()).
		WithEvents(sinks).
		WithLogger(logger)

	coordinator := multisig.NewCoordinator(policyStore, proposalStore, deployer).
		WithEvents(sinks).
		WithLogger(logger).
		WithDeployTimeout(cfg.DeployTimeout)

	keyring, err := receiptKeyring(cfg, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to init receipt keyring: %v\n", err)
		return 1
	}
	coordinator = coordinator.WithReceiptSigner(keyring)

	contracts, err := registry.NewService(regStore, patchStore)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to init registry service: %v\n", err)
		return 1
	}
	contracts = contracts.WithArtifacts(artStore).WithLogger(logger)

	srv := api.NewServer(governance, coordinator, contracts).
		WithAuditLog(auditLog).
		WithLogger(logger).
		WithReadyCheck(readyCheck)

	var limiter api.Limiter
	if cfg.RedisAddr != "" {
		redisLimiter := api.NewRedisLimiter(cfg.RedisAddr, 50, 100)
		defer redisLimiter.Close()
		limiter = redisLimiter
		logger.Info("rate limiter", "backend", "redis", "addr", cfg.RedisAddr)
	} else {
		limiter = api.NewLocalLimiter(50, 100)
	}

	if cfg.JWTSecret == "" && !cfg.AuthDisabled {
		fmt.Fprintf(stdout, "\n%s⚠️  SECURITY WARNING: JWT_SECRET is not set.%s\n", ColorBold+ColorYellow, ColorReset)
		fmt.Fprintf(stdout, "   Mutating requests will be refused until a secret is configured.\n")
		fmt.Fprintf(stdout, "   Set JWT_SECRET, or AUTH_DISABLED=true for local development.\n\n")
	}
	validator := auth.NewJWTValidator(cfg.JWTSecret, cfg.JWTIssuer)

	handler := srv.Handler(
		auth.RequestIDMiddleware,
		obs.HTTPMiddleware(),
		api.LoggingMiddleware(logger),
		api.RateLimitMiddleware(limiter),
		auth.NewMiddleware(validator, cfg.AuthDisabled),
		api.IdempotencyMiddleware(idemStore),
	)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	if cfg.SweepInterval > 0 {
		go governance.RunSweeper(sweepCtx, cfg.SweepInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		fmt.Fprintf(stdout, "%sready:%s http://localhost:%s\n", ColorBold+ColorGreen, ColorReset, cfg.Port)
		errCh <- httpServer.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		fmt.Fprintf(stderr, "Server failed: %v\n", err)
		return 1
	case sig := <-sigChan:
		logger.Info("shutting down", "signal", sig.String())
	}

	cancelSweep()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		logger.Error("observability shutdown failed", "error", err)
	}
	return 0
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// telemetryConfig enables OTLP export when OTLP_ENDPOINT is set.
func telemetryConfig() *observability.Config {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.Environment = env
	}
	if endpoint := os.Getenv("OTLP_ENDPOINT"); endpoint != "" {
		cfg.Enabled = true
		cfg.OTLPEndpoint = endpoint
		cfg.Insecure = os.Getenv("OTLP_INSECURE") == "true"
	}
	return cfg
}

// receiptKeyring derives the receipt signing key from RECEIPT_MASTER_SECRET,
// or generates an ephemeral one so lite deployments still get signed
// receipts.
func receiptKeyring(cfg *config.Config, stdout io.Writer) (*crypto.Keyring, error) {
	if cfg.ReceiptSecret != "" {
		return crypto.DeriveKeyring([]byte(cfg.ReceiptSecret), "receipt-signing")
	}
	fmt.Fprintf(stdout, "%s⚠️  RECEIPT_MASTER_SECRET not set; using an ephemeral receipt key.%s\n", ColorYellow, ColorReset)
	fmt.Fprintf(stdout, "   Receipts will not verify across restarts.\n")
	return crypto.NewKeyring()
}

func runHealthCmd(args []string, stdout, stderr io.Writer) int {
	fs := newClientFlagSet("health", args, stderr)
	apiURL := apiURLFlag(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	resp, err := http.Get(*apiURL + "/healthz")
	if err != nil {
		fmt.Fprintf(stderr, "Health check failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(stderr, "Health check failed: status %d\n", resp.StatusCode)
		return 1
	}
	fmt.Fprintln(stdout, "OK")
	return 0
}
