package feed

import (
	"strconv"
	"sync"
	"time"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/chip"
)

const EventSnapshot = "snapshot"

// Update is one pushed snapshot. EventID is the snapshot version, so a
// reconnecting client resumes with Last-Event-ID.
type Update struct {
	EventID  string          `json:"event_id"`
	Event    string          `json:"event"`
	StageKey string          `json:"stage_key"`
	Version  int64           `json:"version"`
	ServerTS int64           `json:"server_ts"`
	Data     chip.PublicData `json:"data"`
	Events   []chip.Event    `json:"events,omitempty"`
}

// Buffer keeps the most recent snapshots of one stage and fans new ones out
// to subscribers. Versions only move forward; a stale publish is dropped.
type Buffer struct {
	mu       sync.Mutex
	max      int
	last     int64
	updates  []Update
	watchers map[chan Update]struct{}
	closed   bool
}

func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = 256
	}
	return &Buffer{
		max:      max,
		watchers: map[chan Update]struct{}{},
	}
}

func (b *Buffer) Append(stageKey string, pd chip.PublicData, events []chip.Event) (Update, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || pd.Version <= b.last {
		return Update{}, false
	}
	b.last = pd.Version
	u := newUpdate(stageKey, pd, events)
	b.updates = append(b.updates, u)
	if len(b.updates) > b.max {
		b.updates = b.updates[len(b.updates)-b.max:]
	}
	for ch := range b.watchers {
		select {
		case ch <- u:
		default:
		}
	}
	return u, true
}

func newUpdate(stageKey string, pd chip.PublicData, events []chip.Event) Update {
	return Update{
		EventID:  strconv.FormatInt(pd.Version, 10),
		Event:    EventSnapshot,
		StageKey: stageKey,
		Version:  pd.Version,
		ServerTS: time.Now().UnixMilli(),
		Data:     pd.Clone(),
		Events:   append([]chip.Event(nil), events...),
	}
}

// ReplayAfter returns buffered updates newer than lastEventID. An empty or
// unparsable id replays only the latest snapshot, which is a full state.
func (b *Buffer) ReplayAfter(lastEventID string) []Update {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.updates) == 0 {
		return nil
	}
	last, err := strconv.ParseInt(lastEventID, 10, 64)
	if lastEventID == "" || err != nil {
		return []Update{b.updates[len(b.updates)-1]}
	}
	out := make([]Update, 0, len(b.updates))
	for _, u := range b.updates {
		if u.Version > last {
			out = append(out, u)
		}
	}
	return out
}

func (b *Buffer) Latest() (Update, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.updates) == 0 {
		return Update{}, false
	}
	return b.updates[len(b.updates)-1], true
}

func (b *Buffer) Subscribe() chan Update {
	ch := make(chan Update, 32)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.watchers[ch] = struct{}{}
	return ch
}

func (b *Buffer) Unsubscribe(ch chan Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.watchers[ch]; ok {
		delete(b.watchers, ch)
		close(ch)
	}
}

func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.watchers {
		close(ch)
		delete(b.watchers, ch)
	}
}

func (b *Buffer) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.watchers)
}
