package video

import (
	"context"
	"sync"
	"time"

	"github.com/nijaru/vidqa/logger"
	"github.com/sirupsen/logrus"
)

const (
	hungCheckInterval = 5 * time.Minute
)

type ProcessFunc func(ctx context.Context, id string) error

type job struct {
	id        string
	requestID string
}

// JobQueue runs Process for dispatched video ids on a fixed pool of
// workers. Runs are detached from the dispatching request: they use the
// context given to Start, with only the request id carried over.
type JobQueue struct {
	jobs           chan job
	workerCount    int
	processTimeout time.Duration
	logger         *logrus.Entry

	mu      sync.Mutex
	pending map[string]struct{}
	active  map[string]time.Time
	closed  bool

	ctx     context.Context
	cancel  context.CancelFunc
	process ProcessFunc
	wg      sync.WaitGroup
}

func NewJobQueue(workerCount, maxQueueSize int, processTimeout time.Duration, log *logrus.Logger) *JobQueue {
	return &JobQueue{
		jobs:           make(chan job, maxQueueSize),
		workerCount:    workerCount,
		processTimeout: processTimeout,
		logger:         log.WithField("component", "queue"),
		pending:        make(map[string]struct{}),
		active:         make(map[string]time.Time),
	}
}

// Start begins processing jobs. ctx bounds every run.
func (q *JobQueue) Start(ctx context.Context, process ProcessFunc) {
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.process = process

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	q.wg.Add(1)
	go q.monitorHungJobs()
}

// Dispatch queues id for processing and returns immediately. It must be
// called after Start. An id that is already queued or running is ignored.
// When the buffer is full the send is handed to a goroutine rather than
// blocking the caller.
func (q *JobQueue) Dispatch(ctx context.Context, id string) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.WithField("video_id", id).Warn("Queue closed, dropping job")
		return
	}
	if _, ok := q.pending[id]; ok {
		q.mu.Unlock()
		return
	}
	if _, ok := q.active[id]; ok {
		q.mu.Unlock()
		return
	}
	q.pending[id] = struct{}{}

	// The deferred send is registered with wg while mu is held, so Close
	// cannot reach wg.Wait between the closed check and the Add.
	j := job{id: id, requestID: logger.RequestID(ctx)}
	deferred := false
	select {
	case q.jobs <- j:
	default:
		deferred = true
		q.wg.Add(1)
	}
	q.mu.Unlock()

	if !deferred {
		return
	}
	q.logger.WithField("video_id", id).Warn("Queue full, deferring job")
	go func() {
		defer q.wg.Done()
		select {
		case q.jobs <- j:
		case <-q.ctx.Done():
			q.forget(id)
		}
	}()
}

func (q *JobQueue) worker(id int) {
	defer q.wg.Done()
	log := q.logger.WithField("worker_id", id)
	log.Debug("Starting worker")

	for {
		select {
		case <-q.ctx.Done():
			log.Debug("Worker shutting down")
			return
		case j := <-q.jobs:
			q.run(log, j)
		}
	}
}

func (q *JobQueue) run(log *logrus.Entry, j job) {
	q.mu.Lock()
	delete(q.pending, j.id)
	q.active[j.id] = time.Now()
	q.mu.Unlock()

	defer q.forget(j.id)

	ctx := logger.WithRequestID(q.ctx, j.requestID)
	if q.processTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.processTimeout)
		defer cancel()
	}

	log = log.WithField("video_id", j.id)
	start := time.Now()
	if err := q.process(ctx, j.id); err != nil {
		log.WithError(err).WithField("duration_ms", time.Since(start).Milliseconds()).Error("Job processing failed")
		return
	}
	log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("Job processing succeeded")
}

func (q *JobQueue) forget(id string) {
	q.mu.Lock()
	delete(q.pending, id)
	delete(q.active, id)
	q.mu.Unlock()
}

// Close stops accepting jobs, cancels running ones and waits for workers
// to exit. Cancelled runs still mark their video failed.
func (q *JobQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
}

func (q *JobQueue) monitorHungJobs() {
	defer q.wg.Done()
	ticker := time.NewTicker(hungCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.checkHungJobs(time.Now())
		}
	}
}

// checkHungJobs logs runs older than the process timeout. Their context
// has already expired so they are reported, not cancelled.
func (q *JobQueue) checkHungJobs(now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	hung := 0
	for id, started := range q.active {
		if q.processTimeout > 0 && now.Sub(started) > q.processTimeout {
			hung++
			q.logger.WithFields(logrus.Fields{
				"video_id": id,
				"duration": now.Sub(started).String(),
			}).Warn("Found hung job")
		}
	}
	return hung
}
