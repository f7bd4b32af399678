package processor

import (
	"context"
	"sync"

	"rentdata/collector/internal/models"
	"rentdata/collector/internal/queue"
)

// QueueSink buffers normalized listings into batches and hands them to the
// listing queue. Accepting a record means accepted-for-ingest: duplicate
// resolution happens in the processor, which logs the final counts, so the
// sweep sees every accepted record as inserted.
type QueueSink struct {
	queue     *queue.ListingQueue
	batchSize int

	mu      sync.Mutex
	current *queue.Batch
}

func NewQueueSink(q *queue.ListingQueue, batchSize int) *QueueSink {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &QueueSink{
		queue:     q,
		batchSize: batchSize,
		current:   &queue.Batch{},
	}
}

func (s *QueueSink) InsertProperty(ctx context.Context, p *models.PropertyListing) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Properties = append(s.current.Properties, p)
	return true, s.flushIfFull()
}

func (s *QueueSink) InsertRoom(ctx context.Context, r *models.RoomListing) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Rooms = append(s.current.Rooms, r)
	return true, s.flushIfFull()
}

// Flush pushes any partially filled batch. Call once after the sweep so no
// accepted record is left behind in the buffer.
func (s *QueueSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *QueueSink) flushIfFull() error {
	if s.current.Size() < s.batchSize {
		return nil
	}
	return s.flush()
}

// flush pushes the buffered batch. On push failure the batch stays buffered
// so a later flush can retry it; records are never discarded here.
func (s *QueueSink) flush() error {
	if s.current.Size() == 0 {
		return nil
	}
	batch := s.current
	s.current = &queue.Batch{}
	if err := s.queue.Push(batch); err != nil {
		s.current = batch
		return err
	}
	return nil
}
