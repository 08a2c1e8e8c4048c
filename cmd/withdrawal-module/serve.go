package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/blockHandler"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/config"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/contractCaller"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/contractCaller/caller"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/monitor"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/persistence"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/persistence/badger"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/persistence/memory"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/persistence/redis"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/server"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/signature"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/transactionSigner"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/withdrawal"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the withdrawal module HTTP API against a chain",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "token-asset",
				Aliases:  []string{"token"},
				Usage:    "ERC20 token contract address",
				EnvVars:  []string{config.EnvWithdrawalTokenAsset},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "controlling-wallet",
				Aliases:  []string{"safe"},
				Usage:    "Safe address funds are withdrawn from",
				EnvVars:  []string{config.EnvWithdrawalControllingWallet},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Aliases: []string{"rpc"},
				Usage:   "Ethereum RPC endpoint URL",
				Value:   "http://localhost:8545",
				EnvVars: []string{config.EnvWithdrawalRPCURL},
			},
			&cli.Uint64Flag{
				Name:     "chain-id",
				Aliases:  []string{"chain"},
				Usage:    fmt.Sprintf("Chain ID: %s, or any L2", config.GetSupportedChainIDsString()),
				EnvVars:  []string{config.EnvWithdrawalChainID},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "module-private-key",
				Usage:   "Private key (hex) of the module address",
				EnvVars: []string{config.EnvWithdrawalModulePrivateKey},
			},
			&cli.StringFlag{
				Name:    "signer-url",
				Usage:   "Web3Signer URL holding the module key",
				EnvVars: []string{config.EnvWithdrawalSignerURL},
			},
			&cli.StringFlag{
				Name:    "signer-address",
				Usage:   "Module address held by the Web3Signer",
				EnvVars: []string{config.EnvWithdrawalSignerAddress},
			},
			&cli.StringFlag{
				Name:    "signer-public-key",
				Usage:   "Public key of the module address held by the Web3Signer",
				EnvVars: []string{config.EnvWithdrawalSignerPublicKey},
			},
			schemeFlag(),
			&cli.StringFlag{
				Name:    "persistence",
				Usage:   "Event store: memory, badger or redis",
				Value:   string(config.PersistenceType_Memory),
				EnvVars: []string{config.EnvWithdrawalPersistence},
			},
			&cli.StringFlag{
				Name:    "data-path",
				Usage:   "Badger data directory",
				EnvVars: []string{config.EnvWithdrawalDataPath},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				EnvVars: []string{config.EnvWithdrawalRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				EnvVars: []string{config.EnvWithdrawalRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				EnvVars: []string{config.EnvWithdrawalRedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				EnvVars: []string{config.EnvWithdrawalRedisKeyPrefix},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8080,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvWithdrawalPort},
			},
			&cli.Float64Flag{
				Name:    "rate-limit",
				Usage:   "Sustained withdraw requests per second, 0 disables",
				EnvVars: []string{config.EnvWithdrawalRateLimit},
			},
			&cli.IntFlag{
				Name:    "rate-burst",
				Value:   1,
				EnvVars: []string{config.EnvWithdrawalRateBurst},
			},
			&cli.StringSliceFlag{
				Name:    "ws-allowed-origins",
				Usage:   "Browser origins allowed to subscribe to /events/ws, \"*\" allows any",
				EnvVars: []string{config.EnvWithdrawalWSAllowedOrigins},
			},
			&cli.DurationFlag{
				Name:    "monitor-interval",
				Usage:   "Chain head poll interval for GET /status, 0 disables",
				Value:   12 * time.Second,
				EnvVars: []string{config.EnvWithdrawalMonitorInterval},
			},
			&cli.Uint64Flag{
				Name:    "monitor-every",
				Usage:   "Re-read module state every n-th block",
				Value:   1,
				EnvVars: []string{config.EnvWithdrawalMonitorEvery},
			},
		},
		Action: runServe,
	}
}

func parseServeConfig(c *cli.Context) *config.WithdrawalModuleConfig {
	cfg := &config.WithdrawalModuleConfig{
		TokenAsset:        c.String("token-asset"),
		ControllingWallet: c.String("controlling-wallet"),
		RpcUrl:            c.String("rpc-url"),
		ChainID:           config.ChainId(c.Uint64("chain-id")),
		ModuleSigner: config.ModuleSignerConfig{
			PrivateKey: c.String("module-private-key"),
		},
		SignatureScheme: c.String("signature-scheme"),
		Persistence: config.PersistenceConfig{
			Type:           config.PersistenceType(c.String("persistence")),
			DataPath:       c.String("data-path"),
			RedisAddress:   c.String("redis-address"),
			RedisPassword:  c.String("redis-password"),
			RedisDB:        c.Int("redis-db"),
			RedisKeyPrefix: c.String("redis-key-prefix"),
		},
		Port:             c.Int("port"),
		RateLimit:        c.Float64("rate-limit"),
		RateBurst:        c.Int("rate-burst"),
		WSAllowedOrigins: c.StringSlice("ws-allowed-origins"),
		MonitorInterval:  c.Duration("monitor-interval"),
		MonitorEvery:     c.Uint64("monitor-every"),
		Debug:            c.Bool("debug"),
	}
	if c.String("signer-url") != "" {
		cfg.ModuleSigner.RemoteSigner = &config.RemoteSignerConfig{
			Url:         c.String("signer-url"),
			FromAddress: c.String("signer-address"),
			PublicKey:   c.String("signer-public-key"),
		}
	}
	return cfg
}

// newEventStore opens the configured withdrawal event store.
func newEventStore(cfg *config.PersistenceConfig, l *zap.Logger) (persistence.IWithdrawalEventStore, error) {
	switch cfg.Type {
	case config.PersistenceType_Badger:
		return badger.NewBadgerPersistence(cfg.DataPath, l)
	case config.PersistenceType_Redis:
		return redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, l)
	case config.PersistenceType_Memory, "":
		return memory.NewMemoryPersistence(l), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type %q", cfg.Type)
	}
}

func runServe(c *cli.Context) error {
	cfg := parseServeConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l.Sugar().Infow("Using chain", "name", cfg.ChainName, "chain_id", cfg.ChainID)

	ethClient := ethereum.NewEthereumClient(&ethereum.EthereumClientConfig{
		BaseUrl:   cfg.RpcUrl,
		BlockType: ethereum.BlockType_Latest,
	}, l)
	l1Client, err := ethClient.GetEthereumContractCaller()
	if err != nil {
		return fmt.Errorf("failed to get Ethereum contract caller: %w", err)
	}

	remoteChainId, err := l1Client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain id: %w", err)
	}
	if remoteChainId.Uint64() != uint64(cfg.ChainID) {
		return fmt.Errorf("rpc chain id %s does not match configured chain id %d", remoteChainId, cfg.ChainID)
	}

	txSigner, err := transactionSigner.NewTransactionSigner(&transactionSigner.SignerConfig{
		PrivateKey:   cfg.ModuleSigner.PrivateKey,
		RemoteSigner: cfg.ModuleSigner.RemoteSigner,
	}, l1Client, l)
	if err != nil {
		return fmt.Errorf("failed to create module transaction signer: %w", err)
	}

	cc, err := caller.NewContractCallerFromEthereumClient(ethClient, txSigner, l)
	if err != nil {
		return fmt.Errorf("failed to create contract caller: %w", err)
	}
	if err := contractCaller.CheckModuleEnabled(ctx, cc, cfg.ControllingWalletAddress()); err != nil {
		return fmt.Errorf("module is not usable: %w", err)
	}

	store, err := newEventStore(&cfg.Persistence, l)
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			l.Sugar().Warnw("Failed to close event store", "error", err)
		}
	}()

	publisher, err := server.NewEventPublisher(store, l)
	if err != nil {
		return err
	}

	recoverer, err := signature.NewRecoverer(signature.Scheme(cfg.SignatureScheme))
	if err != nil {
		return err
	}
	module, err := contractCaller.NewOnChainModule(&withdrawal.ModuleConfig{
		TokenAsset:        cfg.TokenAssetAddress(),
		ControllingWallet: cfg.ControllingWalletAddress(),
		Recoverer:         recoverer,
		EventSink:         publisher,
	}, cc, l)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal module: %w", err)
	}

	srv, err := server.NewServer(&server.Config{
		Port:           cfg.Port,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		AllowedOrigins: cfg.WSAllowedOrigins,
	}, module, publisher, l)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if cfg.MonitorInterval > 0 {
		m, err := monitor.NewModuleMonitor(&monitor.Config{
			TokenAsset:        cfg.TokenAssetAddress(),
			ControllingWallet: cfg.ControllingWalletAddress(),
			Module:            cc.ModuleAddress(),
			CheckEvery:        cfg.MonitorEvery,
		}, cc, l)
		if err != nil {
			return fmt.Errorf("failed to create module monitor: %w", err)
		}
		bh := blockHandler.NewBlockHandler(l)
		poller, err := monitor.NewHeaderPoller(l1Client, cfg.MonitorInterval, []blockHandler.IBlockHandler{bh}, l)
		if err != nil {
			return fmt.Errorf("failed to create header poller: %w", err)
		}
		go m.Run(ctx, bh)
		if err := poller.Start(ctx); err != nil {
			return fmt.Errorf("failed to start header poller: %w", err)
		}
		srv.SetStatusProvider(m)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	l.Sugar().Infow("Withdrawal module running",
		"module", cc.ModuleAddress().Hex(),
		"token", cfg.TokenAsset,
		"safe", cfg.ControllingWallet,
		"scheme", cfg.SignatureScheme,
		"persistence", cfg.Persistence.Type,
		"port", cfg.Port,
	)

	<-ctx.Done()
	l.Sugar().Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
