package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hotel-billing/api"
	"hotel-billing/bot"
	"hotel-billing/config"
	"hotel-billing/db"
	"hotel-billing/queue"
	"hotel-billing/services"
	"hotel-billing/store"
	"hotel-billing/tenants"
	"hotel-billing/worker"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "hotel-billing",
		Short:   "Multi-tenant restaurant billing: table orders, parcels and bills",
		Version: version,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(genPasswordCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg config.AppConfig) (*zap.SugaredLogger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development() {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zcfg.Level = level
	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		logger.Warn("using in-memory store, data is lost on restart")
		return store.NewMemory(), nil
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		pool, err := db.Open(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		if cfg.Store.AutoMigrate {
			if err := applyMigrations(ctx, pool, false); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return store.NewPostgres(pool), nil
	case "mongo":
		return store.NewMongo(store.MongoConfig{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			Timeout:  10 * time.Second,
		})
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func openBroker(cfg config.QueueConfig, logger *zap.SugaredLogger) (queue.Broker, error) {
	if cfg.RabbitMQURL == "" {
		logger.Info("RABBITMQ_URL not set, bill events stay in process")
		return queue.NewMemory(), nil
	}
	broker, err := queue.NewRabbitMQBroker(queue.Config{
		URL:           cfg.RabbitMQURL,
		MaxRetries:    cfg.MaxRetries,
		RetryDelay:    cfg.RetryDelay,
		PrefetchCount: 10,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("connected to RabbitMQ")
	return broker, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the Telegram bot and the receipt worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.App)
	if err != nil {
		return err
	}
	defer logger.Sync()

	loc, err := cfg.App.Location()
	if err != nil {
		return err
	}
	table, err := tenants.Load(cfg.App.TenantsFile)
	if err != nil {
		return err
	}

	kv, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer kv.Close()
	logger.Infow("store ready", "driver", cfg.Store.Driver)

	broker, err := openBroker(cfg.Queue, logger)
	if err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	defer broker.Close()

	resolver := services.ContextResolver{}
	menu := services.NewMenuCatalog(kv, table, resolver, logger)
	tables := services.NewTableOrders(kv, menu, resolver, logger, nil)
	ledger, err := services.NewBillLedger(kv, resolver, broker, logger, services.LedgerConfig{
		Location: loc,
		NodeID:   cfg.App.NodeID,
	})
	if err != nil {
		return err
	}
	checkout := services.NewCheckout(tables, menu, ledger, table, resolver, logger)
	auth := services.NewAuthenticator(table, services.NewLoginThrottle(kv, nil), logger, nil)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.HTTP.Addr != "" {
		srv := api.New(api.Deps{
			Auth:      auth,
			Menu:      menu,
			Tables:    tables,
			Ledger:    ledger,
			Checkout:  checkout,
			Tenants:   table,
			Store:     kv,
			Logger:    logger,
			Location:  loc,
			JWTSecret: cfg.Auth.JWTSecret,
			JWTTTL:    cfg.Auth.JWTTTL,
		})
		g.Go(func() error { return srv.Run(ctx, cfg.HTTP.Addr) })
	}

	if cfg.Telegram.Token != "" {
		b, err := bot.New(cfg.Telegram.Token, bot.Deps{
			Auth:     auth,
			Sessions: services.NewSessionStore(kv, cfg.Auth.JWTTTL, time.Now),
			Menu:     menu,
			Tables:   tables,
			Ledger:   ledger,
			Checkout: checkout,
			Cards:    services.NewCardPointers(kv, resolver),
			Tenants:  table,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		receipts := worker.NewReceiptWorker(table, b, broker, logger)
		if err := receipts.Start(); err != nil {
			return fmt.Errorf("receipt worker: %w", err)
		}
		defer receipts.Stop()

		g.Go(func() error {
			b.Start(ctx)
			return nil
		})
	} else {
		logger.Warn("TOKEN not set, Telegram bot disabled")
	}

	return g.Wait()
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded Postgres migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			pool, err := db.Open(cmd.Context(), cfg.DB)
			if err != nil {
				return err
			}
			defer pool.Close()
			return applyMigrations(cmd.Context(), pool, true)
		},
	}
}

func genPasswordCmd() *cobra.Command {
	var length int
	cmd := &cobra.Command{
		Use:   "gen-password [password]",
		Short: "Print a bcrypt hash for the tenants file, generating a password if none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plain := ""
			if len(args) == 1 {
				plain = args[0]
			} else {
				p, err := services.GenerateSecurePassword(length)
				if err != nil {
					return err
				}
				plain = p
			}
			hash, err := services.HashPassword(plain)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password: %s\nhash:     %s\n", plain, hash)
			return nil
		},
	}
	cmd.Flags().IntVarP(&length, "length", "n", 12, "generated password length")
	return cmd
}
