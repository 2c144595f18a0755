package stagepush

import (
	"context"
	"sync"
	"time"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/feed"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/stage"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/stagepush/platforms"

	"github.com/rs/zerolog/log"
)

// Manager fans stage updates out to webhook targets through a bounded
// queue and a small worker pool. Delivery is best effort.
type Manager struct {
	cfg      Config
	router   Router
	adapters map[string]platforms.Adapter
	breakers *breakers

	queue chan pushJob
	done  chan struct{}

	startOnce sync.Once
}

func NewManager(cfg Config) *Manager {
	if cfg.DispatchBuffer <= 0 {
		cfg.DispatchBuffer = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.CircuitOpenDuration <= 0 {
		cfg.CircuitOpenDuration = 30 * time.Second
	}
	client := platforms.NewHTTPClient(cfg.RequestTimeout)
	m := &Manager{
		cfg:      cfg,
		breakers: newBreakers(cfg.FailureThreshold, cfg.CircuitOpenDuration),
		queue:    make(chan pushJob, cfg.DispatchBuffer),
		done:     make(chan struct{}),
	}
	m.adapters = map[string]platforms.Adapter{}
	for _, a := range []platforms.Adapter{platforms.NewDiscordAdapter(client), platforms.NewFeishuAdapter(client)} {
		m.adapters[a.Name()] = a
	}
	return m
}

// Start launches the workers. They stop when ctx is done; jobs still queued
// at that point are dropped.
func (m *Manager) Start(ctx context.Context) error {
	if !m.cfg.Enabled {
		return nil
	}
	m.startOnce.Do(func() {
		for i := 0; i < m.cfg.Workers; i++ {
			go m.worker(ctx)
		}
		go func() {
			<-ctx.Done()
			close(m.done)
		}()
		log.Info().Int("targets", len(m.cfg.Targets)).Int("workers", m.cfg.Workers).Msg("stage push started")
	})
	return nil
}

// OnUpdate is registered with feed.Hub.OnPublish and runs inside the
// publishing commit. It never blocks; a full queue drops the job.
func (m *Manager) OnUpdate(u feed.Update) {
	if !m.cfg.Enabled || len(m.cfg.Targets) == 0 {
		return
	}
	key, ok := stage.ParseKey(u.StageKey)
	if !ok {
		return
	}
	for _, ev := range u.Events {
		msg, ok := FormatMessage(key, ev)
		if !ok {
			continue
		}
		for _, target := range m.router.MatchTargets(m.cfg.Targets, key, string(ev.Type)) {
			m.enqueue(pushJob{Target: target, EventType: string(ev.Type), Message: msg})
		}
	}
}

func (m *Manager) enqueue(job pushJob) bool {
	select {
	case <-m.done:
	case m.queue <- job:
		metricPushQueuedTotal.Add(1)
		metricPushQueueLen.Set(int64(len(m.queue)))
		return true
	default:
		log.Warn().Str("platform", job.Target.Platform).Str("event", job.EventType).Msg("stage push queue full")
	}
	metricPushDroppedTotal.Add(1)
	return false
}
