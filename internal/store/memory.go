package store

import (
	"context"
	"sync"
	"time"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/chip"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/stage"
)

// Memory keeps stage documents in process. Used by tests and single-process
// development servers.
type Memory struct {
	mu       sync.Mutex
	stages   map[string]*StageRecord
	events   map[string][]chip.Event
	commands map[string]map[string]CommandResult
}

func NewMemory() *Memory {
	return &Memory{
		stages:   map[string]*StageRecord{},
		events:   map[string][]chip.Event{},
		commands: map[string]map[string]CommandResult{},
	}
}

func (m *Memory) CreateStage(_ context.Context, rec *StageRecord, events []chip.Event) error {
	if err := rec.Key.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := rec.Key.String()
	if _, ok := m.stages[k]; ok {
		return ErrAlreadyExists
	}
	m.stages[k] = rec.clone()
	m.events[k] = append([]chip.Event(nil), events...)
	m.commands[k] = map[string]CommandResult{}
	return nil
}

func (m *Memory) GetStage(_ context.Context, key stage.Key) (*StageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.stages[key.String()]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.clone(), nil
}

func (m *Memory) CommitStage(_ context.Context, key stage.Key, expected int64, c Commit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key.String()
	rec, ok := m.stages[k]
	if !ok {
		return ErrNotFound
	}
	if rec.Public.Version != expected {
		return ErrVersionConflict
	}
	if c.Command != nil {
		if _, dup := m.commands[k][c.Command.RequestID]; dup {
			return ErrVersionConflict
		}
	}
	next := rec.clone()
	next.Public = c.Public.Clone()
	next.UpdatedAt = time.Now().UTC()
	m.stages[k] = next
	m.events[k] = append(m.events[k], c.Events...)
	if c.Command != nil {
		m.commands[k][c.Command.RequestID] = *c.Command
	}
	return nil
}

func (m *Memory) SaveCommandResult(_ context.Context, key stage.Key, res CommandResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key.String()
	if _, ok := m.stages[k]; !ok {
		return ErrNotFound
	}
	if _, dup := m.commands[k][res.RequestID]; !dup {
		m.commands[k][res.RequestID] = res
	}
	return nil
}

func (m *Memory) GetCommandResult(_ context.Context, key stage.Key, requestID string) (*CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.commands[key.String()][requestID]
	if !ok {
		return nil, ErrNotFound
	}
	return &res, nil
}

func (m *Memory) ListEvents(_ context.Context, key stage.Key, afterSeq int64, limit int) ([]chip.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []chip.Event{}
	for _, ev := range m.events[key.String()] {
		if ev.Seq <= afterSeq {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, ev)
	}
	return out, nil
}
