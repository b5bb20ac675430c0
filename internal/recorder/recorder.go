// Package recorder performs the side effects of a successful resolution:
// the view counter increment and the access event.
//
// Work is queued and handled by a pool of workers. The caller never waits for it
// and never learns whether it succeeded.
package recorder

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/linkgate/internal/gate"
	"github.com/atinyakov/linkgate/internal/geo"
	"github.com/atinyakov/linkgate/internal/metrics"
	"github.com/atinyakov/linkgate/internal/storage"
	"github.com/atinyakov/linkgate/internal/worker"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 1024
	DefaultTimeout   = 3 * time.Second
)

// Client-supplied fields are cut to these lengths before they are stored.
const (
	MaxUserAgentLen = 512
	MaxReferrerLen  = 2048
	MaxUTMLen       = 256
)

// Counter is the registry operation the recorder needs.
type Counter interface {
	IncrementViewCount(ctx context.Context, id string, at time.Time) error
}

// Visit is the network metadata of the request that resolved a link.
type Visit struct {
	ClientIP    string
	UserAgent   string
	Referrer    string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
}

type Task struct {
	LinkID    string
	Target    gate.TargetDescriptor
	EventType storage.EventType
	At        time.Time
	Visit     Visit
}

type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

type Recorder struct {
	tasks   chan Task
	counter Counter
	locator geo.Locator
	flusher *worker.EventFlushWorker
	events  chan<- storage.AccessEvent
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// New starts the flusher and the worker pool.
func New(counter Counter, locator geo.Locator, flusher *worker.EventFlushWorker, opts Options, logger *zap.Logger) *Recorder {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if locator == nil {
		locator = geo.Nop{}
	}

	r := &Recorder{
		tasks:   make(chan Task, opts.QueueSize),
		counter: counter,
		locator: locator,
		flusher: flusher,
		events:  flusher.GetInChannel(),
		logger:  logger,
		timeout: opts.Timeout,
	}

	go flusher.FlushEvents()

	for i := 0; i < opts.Workers; i++ {
		r.wg.Add(1)
		go r.work()
	}

	logger.Info("access recorder started", zap.Int("workers", opts.Workers), zap.Int("queue", opts.QueueSize))
	return r
}

// Record queues t without blocking. It returns false when the task was dropped.
func (r *Recorder) Record(t Task) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		r.drop(t, "recorder stopped")
		return false
	}

	select {
	case r.tasks <- t:
		metrics.RecorderQueueDepth.Set(float64(len(r.tasks)))
		return true
	default:
		r.drop(t, "queue full")
		return false
	}
}

func (r *Recorder) drop(t Task, why string) {
	metrics.RecorderDroppedTotal.Inc()
	r.logger.Warn("access record dropped", zap.String("link_id", t.LinkID), zap.String("reason", why))
}

func (r *Recorder) work() {
	defer r.wg.Done()

	for t := range r.tasks {
		r.process(t)
	}
}

// process runs detached from any request context, bounded by the recorder timeout.
func (r *Recorder) process(t Task) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.counter.IncrementViewCount(ctx, t.LinkID, t.At); err != nil {
		metrics.RecorderTasksTotal.WithLabelValues("increment_failed").Inc()
		r.logger.Warn("cannot increment view count", zap.String("link_id", t.LinkID), zap.Error(err))
	} else {
		metrics.RecorderTasksTotal.WithLabelValues("ok").Inc()
	}

	loc, err := r.locator.Locate(ctx, t.Visit.ClientIP)
	if err != nil {
		r.logger.Debug("geolocation skipped", zap.String("ip", t.Visit.ClientIP), zap.Error(err))
		loc = geo.Location{}
	}

	event := storage.AccessEvent{
		ID:          uuid.NewString(),
		LinkID:      t.LinkID,
		TargetID:    t.Target.ID,
		TargetKind:  t.Target.Kind,
		EventType:   t.EventType,
		Timestamp:   t.At,
		ClientIP:    t.Visit.ClientIP,
		UserAgent:   truncate(t.Visit.UserAgent, MaxUserAgentLen),
		Referrer:    truncate(t.Visit.Referrer, MaxReferrerLen),
		UTMSource:   truncate(t.Visit.UTMSource, MaxUTMLen),
		UTMMedium:   truncate(t.Visit.UTMMedium, MaxUTMLen),
		UTMCampaign: truncate(t.Visit.UTMCampaign, MaxUTMLen),
		Country:     loc.Country,
		City:        loc.City,
	}
	if event.EventType == "" {
		event.EventType = storage.EventView
	}

	select {
	case r.events <- event:
	case <-ctx.Done():
		metrics.EventsLostTotal.Inc()
		r.logger.Warn("access event lost", zap.String("link_id", t.LinkID), zap.Error(ctx.Err()))
	}
}

// Stop refuses new tasks, drains the queue and waits for the last flush.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.tasks)
	r.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		return ctx.Err()
	}

	close(r.events)

	select {
	case <-r.flusher.Done():
		r.logger.Info("access recorder stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
