package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Dispatcher runs campaign generations in the background. Uploads with
// pending assets and explicit async requests enqueue here instead of
// blocking the HTTP response.
type Dispatcher struct {
	orchestrator *Orchestrator
	queue        chan string
	wg           sync.WaitGroup
	mu           sync.Mutex
	closed       bool
	log          zerolog.Logger
}

// NewDispatcher starts workers goroutines consuming the queue. Queue
// capacity bounds how many campaigns can wait before Submit rejects.
func NewDispatcher(orchestrator *Orchestrator, workers, queueSize int, logger zerolog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = workers * 4
	}

	d := &Dispatcher{
		orchestrator: orchestrator,
		queue:        make(chan string, queueSize),
		log:          logger.With().Str("component", "dispatcher").Logger(),
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for campaignID := range d.queue {
		if _, err := d.orchestrator.GenerateCampaign(context.Background(), campaignID); err != nil {
			d.log.Error().Err(err).Str("campaign_id", campaignID).Msg("background generation failed")
			continue
		}
		d.log.Info().Str("campaign_id", campaignID).Msg("background generation finished")
	}
}

// Submit enqueues a campaign for background generation. It returns false
// when the queue is full or the dispatcher has been closed, so the
// caller can surface backpressure instead of blocking a request handler.
func (d *Dispatcher) Submit(campaignID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- campaignID:
		return true
	default:
		return false
	}
}

// Close stops accepting work and blocks until queued campaigns drain.
// Safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
