package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"rentdata/collector/config"
	"rentdata/collector/internal/catalog"
	"rentdata/collector/internal/database"
	"rentdata/collector/internal/processor"
	"rentdata/collector/internal/queue"
	"rentdata/collector/internal/source"
	"rentdata/collector/internal/sweep"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using system environment")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		logger.WithError(err).Fatal("Failed to create database directory")
	}
	logger.Infof("Using database at: %s", cfg.DatabasePath)

	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	// Stop issuing queries on SIGINT/SIGTERM; whatever is already
	// persisted stays persisted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	timeout := time.Duration(cfg.HTTPTimeout) * time.Second
	requestDelay := time.Duration(cfg.RequestDelayMs) * time.Millisecond

	markets := config.DefaultMarkets
	cat := catalog.NewCatalog(cfg.SitesURL, timeout, logger)
	if fetched, err := cat.ListMarkets(ctx); err != nil {
		logger.WithError(err).WithField("sites", config.MarketSiteCodes()).
			Warn("Market catalog unavailable, using fallback market list")
	} else {
		markets = fetched
	}

	client := source.NewClient(cfg.SourceBaseURL, timeout, requestDelay, logger)

	var sink sweep.Sink = db
	if cfg.BatchIngest.Enabled {
		gormDB, err := gorm.Open(gormsqlite.Open(cfg.DatabasePath+"?_busy_timeout=5000"), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to open database for batch ingest")
		}

		q := queue.NewListingQueue(cfg.BatchIngest.MaxBatchSize, logger)
		ingest := processor.NewIngestProcessor(gormDB, q, cfg, logger)
		ingest.Start()
		q.Start()
		defer func() {
			q.Close()
			ingest.Stop()
		}()

		queueSink := processor.NewQueueSink(q, cfg.BatchIngest.MaxBatchSize)
		defer func() {
			if err := queueSink.Flush(); err != nil {
				logger.WithError(err).Error("Failed to flush remaining listings")
			}
		}()
		sink = queueSink
	}

	sweeper := sweep.NewSweeper(sweep.ClientSource{Client: client}, sink, cfg, logger)

	stats, err := sweeper.Run(ctx, markets)
	if err != nil {
		logger.WithError(err).Warn("Sweep interrupted")
	}

	logger.WithFields(logrus.Fields{
		"markets":        len(markets),
		"scanned":        stats.Scanned,
		"inserted":       stats.Inserted,
		"duplicates":     stats.Duplicates,
		"rejected":       stats.MissingLocation + stats.MalformedPrice + stats.MalformedTimestamp,
		"failed":         stats.Failed,
		"failed_queries": stats.FailedQueries,
	}).Info("Collection run complete")
}
