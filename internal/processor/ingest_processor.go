// Package processor implements the buffered persistence path: batches of
// normalized listings are drained from the queue and written record by
// record, each in its own transaction.
package processor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rentdata/collector/config"
	"rentdata/collector/internal/queue"
)

// IngestProcessor drains the listing queue into the database.
type IngestProcessor struct {
	db     *gorm.DB
	logger *logrus.Logger
	config *config.Config
	queue  *queue.ListingQueue
	ctx    context.Context
	cancel context.CancelFunc
}

// NewIngestProcessor creates a new ingest processor instance.
func NewIngestProcessor(db *gorm.DB, q *queue.ListingQueue, cfg *config.Config, logger *logrus.Logger) *IngestProcessor {
	ctx, cancel := context.WithCancel(context.Background())
	return &IngestProcessor{
		db:     db,
		queue:  q,
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes the processor to the queue. Batches arrive on the
// queue's dispatch goroutine; records within a batch are written by up to
// ProcessorCount workers.
func (p *IngestProcessor) Start() {
	p.queue.Subscribe(func(batch *queue.Batch) error {
		return p.processBatch(batch)
	})
}

// Stop aborts any in-flight retry waits. Close the queue first so queued
// batches drain before the processor gives up on them.
func (p *IngestProcessor) Stop() {
	p.cancel()
}

type batchCounts struct {
	mu         sync.Mutex
	inserted   int
	duplicates int
	failed     int
}

func (c *batchCounts) tally(created bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case err != nil:
		c.failed++
	case created:
		c.inserted++
	default:
		c.duplicates++
	}
}

// processBatch persists one batch. Every record gets its own transaction so
// a failure never rolls back unrelated, already-committed records; a
// conflicting external id is skipped by the unique constraint.
func (p *IngestProcessor) processBatch(batch *queue.Batch) error {
	records := make(chan interface{}, batch.Size())
	for _, prop := range batch.Properties {
		records <- prop
	}
	for _, room := range batch.Rooms {
		records <- room
	}
	close(records)

	workers := p.config.BatchIngest.ProcessorCount
	if workers < 1 {
		workers = 1
	}

	var (
		counts batchCounts
		wg     sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for record := range records {
				created, err := p.insertWithRetry(record)
				counts.tally(created, err)
				if err != nil {
					p.logger.WithError(err).Error("Failed to persist listing")
				}
			}
		}()
	}
	wg.Wait()

	p.logger.WithFields(logrus.Fields{
		"batch_size": batch.Size(),
		"inserted":   counts.inserted,
		"duplicates": counts.duplicates,
		"failed":     counts.failed,
	}).Info("Processed listing batch")

	return nil
}

// insertWithRetry writes one record, retrying transient store failures with
// a fixed delay. Returns whether a row was created; a duplicate external id
// reports false without error.
func (p *IngestProcessor) insertWithRetry(record interface{}) (bool, error) {
	var (
		created bool
		err     error
	)
	for attempt := 0; attempt <= p.config.BatchIngest.MaxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Infof("Retrying insert, attempt %d of %d", attempt, p.config.BatchIngest.MaxRetries)
			select {
			case <-p.ctx.Done():
				return false, p.ctx.Err()
			case <-time.After(time.Duration(p.config.BatchIngest.RetryDelay) * time.Second):
			}
		}

		err = p.db.Transaction(func(tx *gorm.DB) error {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(record)
			if res.Error != nil {
				return res.Error
			}
			created = res.RowsAffected > 0
			return nil
		})
		if err == nil {
			return created, nil
		}
	}
	return false, err
}
