package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/nijaru/vidqa/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var (
	retryAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidqa_retry_attempts_total",
		Help: "Total number of retries after a transient upstream failure",
	}, []string{"op"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidqa_retry_exhausted_total",
		Help: "Total number of calls that ran out of retries",
	}, []string{"op"})
)

// Policy bounds one retried call: MaxRetries retries after the initial
// attempt, the first sleeping InitialDelay plus jitter.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
}

var (
	// Default is used for background pipeline calls.
	Default = Policy{MaxRetries: 3, InitialDelay: time.Second}
	// Interactive is used for synchronous user-facing calls.
	Interactive = Policy{MaxRetries: 3, InitialDelay: 2 * time.Second}
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type Executor struct {
	logger   *logrus.Entry
	sleep    Sleeper
	jitter   func() time.Duration
	classify func(error) bool
}

type Option func(*Executor)

func WithSleeper(s Sleeper) Option {
	return func(e *Executor) { e.sleep = s }
}

func WithJitter(j func() time.Duration) Option {
	return func(e *Executor) { e.jitter = j }
}

// WithClassifier overrides which errors are retried. By default only
// errors whose outermost kind is TransientUpstream are.
func WithClassifier(c func(error) bool) Option {
	return func(e *Executor) { e.classify = c }
}

func New(logger *logrus.Logger, opts ...Option) *Executor {
	e := &Executor{
		logger:   logger.WithField("component", "retry"),
		sleep:    sleepContext,
		jitter:   func() time.Duration { return time.Duration(rand.Float64() * float64(time.Second)) },
		classify: errors.IsTransient,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do runs fn, retrying transient failures with exponential backoff. A
// terminal failure is returned as is without sleeping. When the budget is
// spent the last failure is wrapped in a TransientUpstream error.
func Do[T any](ctx context.Context, e *Executor, p Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	delay := p.InitialDelay
	log := e.logger.WithField("op", op)

	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !e.classify(err) {
			return zero, err
		}
		if attempt >= p.MaxRetries {
			retryExhaustedTotal.WithLabelValues(op).Inc()
			log.WithError(err).WithField("attempts", attempt+1).Error("Retries exhausted")
			return zero, errors.Transient(op, err, fmt.Sprintf("failed after %d attempts", attempt+1))
		}

		wait := delay + e.jitter()
		log.WithFields(logrus.Fields{
			"attempt":     attempt + 1,
			"max_retries": p.MaxRetries,
			"delay":       wait.String(),
			"error":       err.Error(),
		}).Warn("Transient upstream failure, retrying")
		retryAttemptsTotal.WithLabelValues(op).Inc()

		if err := e.sleep(ctx, wait); err != nil {
			return zero, err
		}
		delay *= 2
	}
}

// Run is Do for calls without a result.
func (e *Executor) Run(ctx context.Context, p Policy, op string, fn func(context.Context) error) error {
	_, err := Do(ctx, e, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
