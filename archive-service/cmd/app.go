package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/redhat-et/script-archive/archive-service/internal/lifecycle"
	"github.com/redhat-et/script-archive/pkg/analysis"
	"github.com/redhat-et/script-archive/pkg/auth"
	"github.com/redhat-et/script-archive/pkg/config"
	"github.com/redhat-et/script-archive/pkg/encryption"
	"github.com/redhat-et/script-archive/pkg/logger"
	"github.com/redhat-et/script-archive/pkg/policy"
	"github.com/redhat-et/script-archive/pkg/spiffe"
	"github.com/redhat-et/script-archive/pkg/storage"
)

// CLIConfig holds settings that only apply to one-shot commands.
type CLIConfig struct {
	Account string `mapstructure:"account"`
}

type Config struct {
	config.CommonConfig `mapstructure:",squash"`
	CLI                 CLIConfig `mapstructure:"cli"`
}

func loadConfig() (*Config, error) {
	var cfg Config
	if err := config.Load(v, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Service.LogLevel))
	return &cfg, nil
}

// app is the wired archive stack shared by serve and the CLI commands.
type app struct {
	cfg     *Config
	log     *logger.Logger
	ledger  storage.BlobStore // instrumented backend, writes not signed
	manager *lifecycle.Manager
	closers []io.Closer
}

// appOptions are the per-command collaborators of the manager.
type appOptions struct {
	Identity lifecycle.Identity
	Approver storage.Approver
	Notifier lifecycle.Notifier
}

func newApp(ctx context.Context, cfg *Config, opts appOptions) (*app, error) {
	log := logger.New(logger.ComponentArchive)

	backend, closer, err := openBackend(ctx, cfg.Storage, logger.New(logger.ComponentLedger))
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, ledger: storage.Instrumented(backend, cfg.Storage.Backend)}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	m, err := a.buildManager(ctx, opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.manager = m
	return a, nil
}

func (a *app) buildManager(ctx context.Context, opts appOptions) (*lifecycle.Manager, error) {
	cfg := a.cfg

	cipher, err := encryption.New(cfg.Encryption.Scheme, cfg.Encryption.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}

	analyzer, err := analysis.New(cfg.Analysis.Provider, cfg.Analysis.Delay, cfg.Analysis.LLM,
		cipher, logger.New(logger.ComponentAnalyzer))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize analysis: %w", err)
	}

	authorizer, err := policy.NewRegoAuthorizer(ctx, logger.New(logger.ComponentPolicy))
	if err != nil {
		return nil, err
	}

	var store storage.BlobStore = a.ledger
	if opts.Approver != nil {
		store = storage.Signed(a.ledger, opts.Approver)
	}

	return lifecycle.New(lifecycle.Options{
		Store:             store,
		Identity:          opts.Identity,
		Encrypter:         cipher,
		Analyzer:          analyzer,
		Authorizer:        authorizer,
		Notifier:          opts.Notifier,
		Log:               logger.New(logger.ComponentLifecycle),
		ReloadConcurrency: cfg.Archive.ReloadConcurrency,
		VerifyAppend:      cfg.Index.VerifyAppend,
		AppendRetries:     cfg.Index.AppendRetries,
	})
}

// Close releases the ledger connection.
func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// openBackend connects to the configured ledger backend. The closer is nil
// for backends that hold nothing open.
func openBackend(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (storage.BlobStore, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		log.Warn("Using in-memory ledger, scripts are lost on exit")
		return storage.NewMemoryStorage(), nil, nil

	case config.BackendS3:
		s3 := cfg.S3
		config.LoadStorageConfigFromEnv(&s3)
		log.Info("Connecting to S3 storage",
			"host", s3.BucketHost,
			"port", s3.BucketPort,
			"bucket", s3.BucketName)
		store, err := storage.NewS3Storage(ctx, storage.S3Config{
			BucketHost:      s3.BucketHost,
			BucketPort:      s3.BucketPort,
			BucketName:      s3.BucketName,
			UseSSL:          s3.UseSSL,
			InsecureTLS:     s3.InsecureTLS,
			Region:          s3.Region,
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			Timeout:         cfg.Timeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		return store, nil, nil

	case config.BackendRedis:
		log.Info("Connecting to Redis", "addr", cfg.Redis.Addr, "namespace", cfg.Redis.Namespace)
		store, err := storage.NewRedisStorage(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.Namespace, cfg.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Redis storage: %w", err)
		}
		return store, store, nil

	case config.BackendBolt:
		log.Info("Opening bolt database", "path", cfg.Bolt.Path, "bucket", cfg.Bolt.Bucket)
		store, err := storage.OpenBoltStorage(cfg.Bolt.Path, cfg.Bolt.Bucket)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open bolt storage: %w", err)
		}
		return store, store, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// cliIdentity returns the session for one-shot commands: the workload's
// SPIFFE ID when SPIFFE is enabled, otherwise a wallet connected with the
// --account flag.
func cliIdentity(ctx context.Context, cfg *Config) (lifecycle.Identity, error) {
	if cfg.SPIFFE.Enabled {
		client := spiffe.NewWorkloadClient(spiffe.Config{
			SocketPath: cfg.SPIFFE.SocketPath,
			MockMode:   cfg.Service.MockIdentity && cfg.CLI.Account != "",
			MockID:     cfg.CLI.Account,
		}, logger.New(logger.ComponentAuth))
		if _, err := client.FetchIdentity(ctx); err != nil {
			return nil, fmt.Errorf("failed to fetch SPIFFE identity: %w", err)
		}
		return client, nil
	}
	return auth.NewWallet(cfg.CLI.Account), nil
}

// newCLIApp wires the stack for a one-shot command with the terminal as
// signer and notification sink.
func newCLIApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	identity, err := cliIdentity(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, appOptions{
		Identity: identity,
		Approver: newTerminalApprover(os.Stdin, os.Stdout, autoApprove),
		Notifier: lifecycle.NotifierFunc(PrintNotification),
	})
}
