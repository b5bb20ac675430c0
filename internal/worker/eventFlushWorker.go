package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/linkgate/internal/metrics"
	"github.com/atinyakov/linkgate/internal/storage"
)

const (
	DefaultFlushInterval  = 5 * time.Second
	DefaultFlushBatchSize = 25
	flushTimeout          = 3 * time.Second
)

// Sink receives batches of access events.
type Sink interface {
	AppendAccessEvents(context.Context, []storage.AccessEvent) error
}

// EventFlushWorker batches access events and writes them to a Sink.
// A batch is flushed once it grows past batchSize or when the ticker fires.
type EventFlushWorker struct {
	in        chan storage.AccessEvent
	done      chan struct{}
	logger    *zap.Logger
	sink      Sink
	interval  time.Duration
	batchSize int
}

func NewEventFlushWorker(logger *zap.Logger, sink Sink, interval time.Duration, batchSize int) *EventFlushWorker {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultFlushBatchSize
	}

	return &EventFlushWorker{
		in:        make(chan storage.AccessEvent, batchSize),
		done:      make(chan struct{}),
		logger:    logger,
		sink:      sink,
		interval:  interval,
		batchSize: batchSize,
	}
}

func (w *EventFlushWorker) GetInChannel() chan<- storage.AccessEvent {
	return w.in
}

// Done is closed once FlushEvents has returned.
func (w *EventFlushWorker) Done() <-chan struct{} {
	return w.done
}

// FlushEvents runs until the input channel is closed, then flushes what is left.
func (w *EventFlushWorker) FlushEvents() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	events := make([]storage.AccessEvent, 0, w.batchSize+1)

	send := func() {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()

		if err := w.sink.AppendAccessEvents(ctx, events); err != nil {
			w.logger.Error("cannot flush access events", zap.Int("count", len(events)), zap.Error(err))
			metrics.EventsLostTotal.Add(float64(len(events)))
		} else {
			w.logger.Debug("access events flushed", zap.Int("count", len(events)))
			metrics.EventsFlushedTotal.Add(float64(len(events)))
		}

		// the sink may keep the slice
		events = make([]storage.AccessEvent, 0, w.batchSize+1)
	}

	for {
		select {
		case e, ok := <-w.in:
			if !ok {
				if len(events) > 0 {
					send()
				}
				return
			}
			events = append(events, e)
			if len(events) > w.batchSize {
				send()
			}
		case <-ticker.C:
			if len(events) == 0 {
				continue
			}
			send()
		}
	}
}
