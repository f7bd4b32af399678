// Package sweep drives the ingestion pipeline for one or more markets:
// it plans the queries for each category, pulls raw records from the
// listing source, normalizes them, and persists the survivors.
package sweep

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"rentdata/collector/config"
	"rentdata/collector/internal/models"
	"rentdata/collector/internal/normalize"
	"rentdata/collector/internal/source"
)

// Iterator is the pull side of one search query's result sequence.
type Iterator interface {
	Next(ctx context.Context) bool
	Record() models.RawListing
	Err() error
}

// Source issues search queries against the listing source.
type Source interface {
	Search(ctx context.Context, site string, category source.Category, f source.Filters) (Iterator, error)
}

// Sink persists normalized listings. Implementations must make the
// insert-if-absent atomic per external id; a duplicate reports
// inserted == false without error.
type Sink interface {
	InsertProperty(ctx context.Context, p *models.PropertyListing) (bool, error)
	InsertRoom(ctx context.Context, r *models.RoomListing) (bool, error)
}

// ClientSource adapts *source.Client to the Source interface.
type ClientSource struct {
	Client *source.Client
}

func (s ClientSource) Search(ctx context.Context, site string, category source.Category, f source.Filters) (Iterator, error) {
	rs, err := s.Client.Search(ctx, site, category, f)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// Stats accumulates the outcome counts of a sweep.
type Stats struct {
	Scanned            int
	Inserted           int
	Duplicates         int
	Failed             int
	FailedQueries      int
	MissingLocation    int
	MalformedPrice     int
	MalformedTimestamp int
}

func (s *Stats) merge(other Stats) {
	s.Scanned += other.Scanned
	s.Inserted += other.Inserted
	s.Duplicates += other.Duplicates
	s.Failed += other.Failed
	s.FailedQueries += other.FailedQueries
	s.MissingLocation += other.MissingLocation
	s.MalformedPrice += other.MalformedPrice
	s.MalformedTimestamp += other.MalformedTimestamp
}

// Sweeper runs the parameter sweep for markets. One Sweeper is safe for
// concurrent use as long as its Sink is.
type Sweeper struct {
	source Source
	sink   Sink
	cfg    *config.Config
	logger *logrus.Logger
}

func NewSweeper(src Source, sink Sink, cfg *config.Config, logger *logrus.Logger) *Sweeper {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Sweeper{
		source: src,
		sink:   sink,
		cfg:    cfg,
		logger: logger,
	}
}

// Run sweeps all markets, at most cfg.MarketWorkers concurrently. A failed
// market is logged and does not stop the others. Cancellation stops
// issuing further queries; records already persisted stay persisted.
func (s *Sweeper) Run(ctx context.Context, markets []models.Market) (Stats, error) {
	var (
		mu    sync.Mutex
		total Stats
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MarketWorkers)

	for _, market := range markets {
		market := market
		g.Go(func() error {
			stats := s.SweepMarket(ctx, market)
			mu.Lock()
			total.merge(stats)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return total, ctxErr
	}
	return total, err
}

// SweepMarket runs the full query plan for one market: whole-unit queries
// for each bedroom count, then the private-room query.
func (s *Sweeper) SweepMarket(ctx context.Context, market models.Market) Stats {
	log := s.logger.WithFields(logrus.Fields{
		"market": market.City,
		"site":   market.SiteCode,
	})
	log.Info("Starting market sweep")

	var stats Stats

	for beds := s.cfg.MinBedrooms; beds <= s.cfg.MaxBedrooms; beds++ {
		if ctx.Err() != nil {
			return stats
		}
		log.WithField("bedrooms", beds).Info("Searching whole-unit listings")

		b := beds
		stats.merge(s.sweepQuery(ctx, market, source.CategoryProperty, source.Filters{
			MinPrice:       s.cfg.PropertyMinPrice,
			MaxPrice:       s.cfg.PropertyMaxPrice,
			MinBedrooms:    &b,
			MaxBedrooms:    &b,
			ResultLimit:    s.cfg.ResultLimit,
			RequireGeotag:  true,
			IncludeDetails: true,
		}))
	}

	if ctx.Err() != nil {
		return stats
	}
	log.Info("Searching private-room listings")

	private := true
	stats.merge(s.sweepQuery(ctx, market, source.CategoryRoom, source.Filters{
		MinPrice:       s.cfg.RoomMinPrice,
		MaxPrice:       s.cfg.RoomMaxPrice,
		PrivateRoom:    &private,
		ResultLimit:    s.cfg.ResultLimit,
		RequireGeotag:  true,
		IncludeDetails: true,
	}))

	log.WithFields(logrus.Fields{
		"scanned":    stats.Scanned,
		"inserted":   stats.Inserted,
		"duplicates": stats.Duplicates,
		"rejected":   stats.MissingLocation + stats.MalformedPrice + stats.MalformedTimestamp,
		"failed":     stats.Failed,
	}).Info("Market sweep complete")

	return stats
}

// sweepQuery consumes one query's results. A failed query aborts only
// itself; the caller continues with the rest of the plan.
func (s *Sweeper) sweepQuery(ctx context.Context, market models.Market, category source.Category, f source.Filters) Stats {
	var stats Stats

	log := s.logger.WithFields(logrus.Fields{
		"market":   market.City,
		"category": string(category),
	})

	it, err := s.source.Search(ctx, market.SiteCode, category, f)
	if err != nil {
		log.WithError(err).Error("Query failed")
		stats.FailedQueries++
		return stats
	}

	every := s.cfg.ProgressEvery
	if every <= 0 {
		every = 100
	}

	for it.Next(ctx) {
		if stats.Scanned%every == 0 {
			log.WithField("record", stats.Scanned).Info("Sweep progress")
		}
		stats.Scanned++

		s.ingestRecord(ctx, it.Record(), market, category, &stats, log)
	}

	if err := it.Err(); err != nil {
		log.WithError(err).Error("Query aborted mid-results")
		stats.FailedQueries++
	}

	return stats
}

func (s *Sweeper) ingestRecord(ctx context.Context, raw models.RawListing, market models.Market, category source.Category, stats *Stats, log *logrus.Entry) {
	var (
		inserted bool
		err      error
	)

	if category == source.CategoryRoom {
		var room *models.RoomListing
		room, err = normalize.Room(raw, market)
		if err == nil {
			inserted, err = s.insertRoomWithRetry(ctx, room)
		}
	} else {
		var prop *models.PropertyListing
		prop, err = normalize.Property(raw, market)
		if err == nil {
			inserted, err = s.insertPropertyWithRetry(ctx, prop)
		}
	}

	switch {
	case err == nil && inserted:
		stats.Inserted++
	case err == nil:
		// Already stored on an earlier run or an overlapping query
		stats.Duplicates++
	case errors.Is(err, normalize.ErrMissingLocation):
		stats.MissingLocation++
		log.WithField("id", raw.ID).Debug("Dropped record without geotag")
	case errors.Is(err, normalize.ErrMalformedPrice):
		stats.MalformedPrice++
		log.WithField("id", raw.ID).WithError(err).Warn("Dropped record with malformed price")
	case errors.Is(err, normalize.ErrMalformedTimestamp):
		stats.MalformedTimestamp++
		log.WithField("id", raw.ID).WithError(err).Warn("Dropped record with malformed timestamp")
	default:
		// Store failure after retries. The record is lost for this run,
		// which must never happen silently
		stats.Failed++
		log.WithField("id", raw.ID).WithError(err).Error("Failed to persist record")
	}
}

func (s *Sweeper) insertPropertyWithRetry(ctx context.Context, p *models.PropertyListing) (bool, error) {
	var (
		inserted bool
		err      error
	)
	for attempt := 0; attempt <= s.cfg.StoreMaxRetries; attempt++ {
		if attempt > 0 {
			s.logger.WithField("attempt", attempt).Warn("Retrying property insert")
			if !sleepCtx(ctx, time.Duration(s.cfg.StoreRetryDelay)*time.Second) {
				return false, ctx.Err()
			}
		}
		inserted, err = s.sink.InsertProperty(ctx, p)
		if err == nil {
			return inserted, nil
		}
	}
	return false, err
}

func (s *Sweeper) insertRoomWithRetry(ctx context.Context, r *models.RoomListing) (bool, error) {
	var (
		inserted bool
		err      error
	)
	for attempt := 0; attempt <= s.cfg.StoreMaxRetries; attempt++ {
		if attempt > 0 {
			s.logger.WithField("attempt", attempt).Warn("Retrying room insert")
			if !sleepCtx(ctx, time.Duration(s.cfg.StoreRetryDelay)*time.Second) {
				return false, ctx.Err()
			}
		}
		inserted, err = s.sink.InsertRoom(ctx, r)
		if err == nil {
			return inserted, nil
		}
	}
	return false, err
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
