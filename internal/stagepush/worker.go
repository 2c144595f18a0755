package stagepush

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/stagepush/platforms"

	"github.com/rs/zerolog/log"
)

const maxRetryDelay = 30 * time.Second

var errCircuitOpen = errors.New("circuit_open")

func (m *Manager) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-m.queue:
			metricPushQueueLen.Set(int64(len(m.queue)))
			m.deliver(ctx, job)
		}
	}
}

func (m *Manager) deliver(ctx context.Context, job pushJob) {
	adapter, ok := m.adapters[job.Target.Platform]
	if !ok {
		metricPushDroppedTotal.Add(1)
		log.Warn().Str("platform", job.Target.Platform).Msg("stage push platform unknown")
		return
	}
	id := job.Target.id()
	if !m.breakers.allow(id, time.Now()) {
		metricPushCircuitOpenTotal.Add(1)
		m.retry(job, errCircuitOpen)
		return
	}
	err := adapter.Send(ctx, job.Target.Endpoint, job.Target.Secret, job.Message)
	m.breakers.record(id, err == nil, time.Now())
	if err == nil {
		metricPushSentTotal.Add(1)
		return
	}
	metricPushFailedTotal.Add(1)
	m.retry(job, err)
}

// retry requeues job after an exponential delay unless the attempt budget
// is spent or the webhook rejected the payload outright.
func (m *Manager) retry(job pushJob, cause error) {
	var se *platforms.StatusError
	permanent := errors.As(cause, &se) && !se.Retryable()
	if permanent || job.Attempt >= m.cfg.RetryMax {
		metricPushRetryDroppedTotal.Add(1)
		log.Warn().Err(cause).
			Str("platform", job.Target.Platform).
			Str("event", job.EventType).
			Int("attempt", job.Attempt).
			Msg("stage push dropped")
		return
	}
	job.Attempt++
	metricPushRetryTotal.Add(1)
	time.AfterFunc(m.backoff(job.Attempt), func() {
		select {
		case <-m.done:
		case m.queue <- job:
		}
	})
}

func (m *Manager) backoff(attempt int) time.Duration {
	d := m.cfg.RetryBase << (attempt - 1)
	if d <= 0 || d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

// breakers tracks consecutive failures per webhook. After threshold
// failures in a row the webhook is skipped for openFor.
type breakers struct {
	mu        sync.Mutex
	threshold int
	openFor   time.Duration
	failures  map[string]int
	openUntil map[string]time.Time
}

func newBreakers(threshold int, openFor time.Duration) *breakers {
	return &breakers{
		threshold: threshold,
		openFor:   openFor,
		failures:  map[string]int{},
		openUntil: map[string]time.Time{},
	}
}

func (b *breakers) allow(id string, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	until, ok := b.openUntil[id]
	if !ok {
		return true
	}
	if now.Before(until) {
		return false
	}
	delete(b.openUntil, id)
	return true
}

func (b *breakers) record(id string, ok bool, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ok {
		delete(b.failures, id)
		return
	}
	b.failures[id]++
	if b.failures[id] >= b.threshold {
		b.openUntil[id] = now.Add(b.openFor)
		delete(b.failures, id)
	}
}
