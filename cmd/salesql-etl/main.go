package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5"

	"github.com/salesql/salesql/internal/config"
	"github.com/salesql/salesql/internal/observability"
	"github.com/salesql/salesql/internal/seed"
	s3store "github.com/salesql/salesql/internal/storage/s3"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load env file", slog.Any("error", err))
		os.Exit(1)
	}
	cfg, err := config.LoadFromEnv("salesql-etl")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	seedCfg, err := seed.LoadConfig(os.LookupEnv)
	if err != nil {
		slog.Error("failed to load seed config", slog.Any("error", err))
		os.Exit(1)
	}

	flag.IntVar(&seedCfg.Sales, "sales", seedCfg.Sales, "number of sales to generate")
	flag.Int64Var(&seedCfg.Seed, "seed", seedCfg.Seed, "random seed")
	flag.BoolVar(&seedCfg.Truncate, "truncate", seedCfg.Truncate, "empty and reload customers, products and sales")
	flag.BoolVar(&seedCfg.Extract, "extract", seedCfg.Extract, "write Parquet extracts to the object store")
	flag.Parse()

	logger := observability.NewLogger(cfg, os.Stdout)
	if cfg.Database.DSN == "" || cfg.Database.Driver != "pgx" {
		logger.Error("the etl requires SALESQL_DB_DSN with the pgx driver")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := pgx.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = conn.Close(context.Background()) }()

	loader, err := seed.NewLoader(conn)
	if err != nil {
		logger.Error("failed to initialize loader", slog.Any("error", err))
		os.Exit(1)
	}

	var extractor *seed.Extractor
	if seedCfg.Extract {
		store, err := s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		if extractor, err = seed.NewExtractor(store); err != nil {
			logger.Error("failed to initialize extractor", slog.Any("error", err))
			os.Exit(1)
		}
	}

	etl, err := seed.NewETL(seedCfg, loader, extractor, logger)
	if err != nil {
		logger.Error("invalid etl settings", slog.Any("error", err))
		os.Exit(1)
	}
	report, err := etl.Run(ctx)
	if err != nil {
		logger.Error("etl run failed", slog.String("run_id", report.RunID), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("etl run completed",
		slog.String("run_id", report.RunID),
		slog.Int64("sales", report.Loaded.Sales),
		slog.Int("extracts", len(report.Files)),
		slog.Duration("duration", report.Duration),
	)
}
