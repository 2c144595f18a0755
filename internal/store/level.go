package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/chip"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/stage"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Level is the embedded single-node driver. Writes run inside an exclusive
// leveldb transaction, which is what makes the version check atomic.
type Level struct {
	db *leveldb.DB
}

func NewLevel(path string) (*Level, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	return &Level{db: db}, nil
}

func (l *Level) Close() error {
	return l.db.Close()
}

// levelKey length-prefixes every segment so no id can run into the next
// one: "s" and "s:x" never share a prefix.
func levelKey(kind string, segments ...string) []byte {
	var b strings.Builder
	b.WriteString(kind)
	for _, seg := range segments {
		fmt.Fprintf(&b, ":%d:%s", len(seg), seg)
	}
	return []byte(b.String())
}

func stageKey(key stage.Key) []byte {
	return levelKey("stage", key.ExperimentID, key.CohortID, key.StageID)
}

func eventPrefix(key stage.Key) []byte {
	return append(levelKey("event", key.ExperimentID, key.CohortID, key.StageID), ':')
}

func eventKey(key stage.Key, seq int64) []byte {
	return append(eventPrefix(key), []byte(fmt.Sprintf("%020d", seq))...)
}

func commandKey(key stage.Key, requestID string) []byte {
	return levelKey("cmd", key.ExperimentID, key.CohortID, key.StageID, requestID)
}

func (l *Level) CreateStage(_ context.Context, rec *StageRecord, events []chip.Event) error {
	if err := rec.Key.Validate(); err != nil {
		return err
	}
	tr, err := l.db.OpenTransaction()
	if err != nil {
		return err
	}
	defer tr.Discard()

	k := stageKey(rec.Key)
	exists, err := tr.Has(k, nil)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyExists
	}
	if err := putJSON(tr, k, rec); err != nil {
		return err
	}
	for _, ev := range events {
		if err := putJSON(tr, eventKey(rec.Key, ev.Seq), ev); err != nil {
			return err
		}
	}
	return tr.Commit()
}

func (l *Level) GetStage(_ context.Context, key stage.Key) (*StageRecord, error) {
	var rec StageRecord
	if err := getJSON(l.db, stageKey(key), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (l *Level) CommitStage(_ context.Context, key stage.Key, expected int64, c Commit) error {
	tr, err := l.db.OpenTransaction()
	if err != nil {
		return err
	}
	defer tr.Discard()

	var rec StageRecord
	if err := getJSON(tr, stageKey(key), &rec); err != nil {
		return err
	}
	if rec.Public.Version != expected {
		return ErrVersionConflict
	}
	if c.Command != nil {
		dup, err := tr.Has(commandKey(key, c.Command.RequestID), nil)
		if err != nil {
			return err
		}
		if dup {
			return ErrVersionConflict
		}
		if err := putJSON(tr, commandKey(key, c.Command.RequestID), c.Command); err != nil {
			return err
		}
	}
	rec.Public = c.Public
	rec.UpdatedAt = time.Now().UTC()
	if err := putJSON(tr, stageKey(key), &rec); err != nil {
		return err
	}
	for _, ev := range c.Events {
		if err := putJSON(tr, eventKey(key, ev.Seq), ev); err != nil {
			return err
		}
	}
	return tr.Commit()
}

func (l *Level) SaveCommandResult(_ context.Context, key stage.Key, res CommandResult) error {
	tr, err := l.db.OpenTransaction()
	if err != nil {
		return err
	}
	defer tr.Discard()
	if ok, err := tr.Has(stageKey(key), nil); err != nil {
		return err
	} else if !ok {
		return ErrNotFound
	}
	k := commandKey(key, res.RequestID)
	if dup, err := tr.Has(k, nil); err != nil || dup {
		return err
	}
	if err := putJSON(tr, k, res); err != nil {
		return err
	}
	return tr.Commit()
}

func (l *Level) GetCommandResult(_ context.Context, key stage.Key, requestID string) (*CommandResult, error) {
	var res CommandResult
	if err := getJSON(l.db, commandKey(key, requestID), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (l *Level) ListEvents(_ context.Context, key stage.Key, afterSeq int64, limit int) ([]chip.Event, error) {
	r := util.BytesPrefix(eventPrefix(key))
	r.Start = eventKey(key, afterSeq+1)
	it := l.db.NewIterator(r, nil)
	defer it.Release()

	out := []chip.Event{}
	for it.Next() {
		if limit > 0 && len(out) >= limit {
			break
		}
		var ev chip.Event
		if err := json.Unmarshal(it.Value(), &ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, it.Error()
}

type levelReader interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
}

type levelWriter interface {
	Put(key, value []byte, wo *opt.WriteOptions) error
}

func getJSON(r levelReader, key []byte, v any) error {
	data, err := r.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func putJSON(w levelWriter, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.Put(key, data, nil)
}
