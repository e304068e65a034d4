package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"hawy-chat/handler"
	"hawy-chat/internal/config"
	"hawy-chat/internal/integrations/backend"
	"hawy-chat/internal/integrations/paramstore"
	"hawy-chat/internal/repository"
	"hawy-chat/internal/session"
	"hawy-chat/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "", "optional YAML or TOML config file")
	envPath := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	// ---- Configuration (read only here) ----
	cfg, err := config.LoadConfig(*cfgPath, *envPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	in, closeInput := newPrompter()
	err = run(ctx, cfg, logger, in, os.Stdout)
	closeInput()
	if err != nil {
		slog.Error("hawy exited with error", "err", err)
		os.Exit(1)
	}
}

// openKV is swapped in tests.
var openKV = openStore

// run wires the client and drives the REPL until it ends. The storage handle
// is closed before run returns on every path.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, in prompter, out io.Writer) error {
	// ---- Storage ----
	kv, err := openKV(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logger.Warn("failed to close storage", "err", err)
		}
	}()

	store, err := session.NewStore(kv, session.WithKeyPrefix(cfg.Storage.KeyPrefix), session.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create session store: %w", err)
	}

	// ---- Backend ----
	baseURL, err := resolveBackendURL(ctx, cfg)
	if err != nil {
		return fmt.Errorf("resolve backend URL from %q: %w", cfg.Backend.URLParam, err)
	}
	api := backend.NewClient(backend.WithBaseURL(baseURL), backend.WithTimeout(cfg.Backend.Timeout))

	// ---- Controller ----
	ctrl, err := usecase.NewController(store, api,
		usecase.WithLogger(logger),
		usecase.WithLanguage(cfg.Language),
	)
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}
	if err := ctrl.Start(ctx); err != nil {
		// storage faults are recoverable; the controller starts fresh
		logger.Warn("started with storage faults", "err", err)
	}

	h, err := handler.NewHandler(ctrl, handler.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	if err := runREPL(ctx, h, ctrl, in, out); err != nil {
		return fmt.Errorf("repl: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.KeyValue, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		return repository.OpenSQLite(ctx, cfg.Storage.SQLitePath)
	case config.DriverRedis:
		return repository.DialRedis(cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, cfg.Storage.RedisDB)
	case config.DriverDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		return repository.NewDynamoClient(awsdynamodb.NewFromConfig(awsCfg), cfg.Storage.DynamoTable)
	case config.DriverMemory:
		return repository.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func resolveBackendURL(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.Backend.URLParam == "" {
		return cfg.Backend.URL, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("load AWS config: %w", err)
	}
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return "", err
	}
	return paramstore.BackendURL(ctx, ssmClient, cfg.Backend.URLParam)
}
