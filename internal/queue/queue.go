package queue

import (
	"errors"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"rentdata/collector/internal/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// Batch groups normalized listings awaiting persistence. A batch may carry
// either entity type; each record is persisted in its own transaction.
type Batch struct {
	Properties []*models.PropertyListing
	Rooms      []*models.RoomListing
}

// Size returns the number of listings in the batch.
func (b *Batch) Size() int {
	return len(b.Properties) + len(b.Rooms)
}

// ListingQueue is an in-memory queue decoupling the sweep from the
// persistence layer on the buffered ingest path.
type ListingQueue struct {
	items    chan *Batch
	done     chan struct{}
	stopped  chan struct{}
	maxSize  int
	closed   bool
	started  bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []func(*Batch) error
}

// NewListingQueue creates a new queue with the specified buffer size.
func NewListingQueue(bufferSize int, logger *logrus.Logger) *ListingQueue {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &ListingQueue{
		items:   make(chan *Batch, bufferSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		maxSize: bufferSize,
		logger:  logger,
	}
}

// Push adds a batch to the queue without blocking. The lock is held across
// the send so a batch accepted here is always visible to the drain in Close.
func (q *ListingQueue) Push(batch *Batch) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- batch:
		q.logger.WithField("batch_size", batch.Size()).Debug("Pushed batch to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler function that will be called for each batch.
func (q *ListingQueue) Subscribe(handler func(*Batch) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins dispatching queued batches to subscribers.
func (q *ListingQueue) Start() {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	go q.process()
}

func (q *ListingQueue) process() {
	defer close(q.stopped)
	for {
		select {
		case <-q.done:
			// Drain whatever was queued before the close so accepted
			// batches are not dropped
			for {
				select {
				case batch := <-q.items:
					q.dispatch(batch)
				default:
					return
				}
			}
		case batch := <-q.items:
			q.dispatch(batch)
		}
	}
}

func (q *ListingQueue) dispatch(batch *Batch) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(batch); err != nil {
			q.logger.WithError(err).Error("Handler failed to process batch")
		}
	}
}

// Close stops the queue and prevents new batches from being added. If the
// queue was started, Close blocks until already-queued batches have been
// dispatched.
func (q *ListingQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	// items stays open; process exits via done once the channel is drained
	q.closed = true
	started := q.started
	close(q.done)
	q.mu.Unlock()

	if started {
		<-q.stopped
	}
	return nil
}

// Len returns the current number of batches in the queue.
func (q *ListingQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed.
func (q *ListingQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
