package feed

import (
	"testing"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/chip"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/stage"
)

func snapshot(version int64) chip.PublicData {
	return chip.PublicData{StageID: "chips", Version: version, CurrentTurn: "a"}
}

func TestBufferOrderAndReplay(t *testing.T) {
	buf := NewBuffer(10)
	for v := int64(1); v <= 3; v++ {
		if _, ok := buf.Append("k", snapshot(v), nil); !ok {
			t.Fatalf("append %d rejected", v)
		}
	}
	replay := buf.ReplayAfter("1")
	if len(replay) != 2 || replay[0].EventID != "2" || replay[1].EventID != "3" {
		t.Fatalf("unexpected replay: %+v", replay)
	}
	latest := buf.ReplayAfter("")
	if len(latest) != 1 || latest[0].Version != 3 {
		t.Fatalf("expected only latest snapshot, got %+v", latest)
	}
}

func TestBufferDropsStaleVersions(t *testing.T) {
	buf := NewBuffer(10)
	buf.Append("k", snapshot(4), nil)
	if _, ok := buf.Append("k", snapshot(3), nil); ok {
		t.Fatalf("stale snapshot accepted")
	}
	if _, ok := buf.Append("k", snapshot(4), nil); ok {
		t.Fatalf("repeated snapshot accepted")
	}
	u, ok := buf.Latest()
	if !ok || u.Version != 4 {
		t.Fatalf("unexpected latest %+v", u)
	}
}

func TestBufferTrimsToMax(t *testing.T) {
	buf := NewBuffer(2)
	for v := int64(1); v <= 5; v++ {
		buf.Append("k", snapshot(v), nil)
	}
	replay := buf.ReplayAfter("0")
	if len(replay) != 2 || replay[0].Version != 4 {
		t.Fatalf("unexpected trimmed replay %+v", replay)
	}
}

func TestSubscribeReceivesUpdatesAndClose(t *testing.T) {
	hub := NewHub(8)
	key := stage.Key{ExperimentID: "e", CohortID: "c", StageID: "s"}
	ch := hub.Buffer(key).Subscribe()
	hub.Publish(key, snapshot(1), []chip.Event{{Seq: 1, Type: chip.EventOffer}})
	u := <-ch
	if u.Version != 1 || u.StageKey != "e/c/s" || len(u.Events) != 1 {
		t.Fatalf("unexpected update %+v", u)
	}
	hub.Close()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
}

func TestHubOnPublishSeesOnlyAcceptedUpdates(t *testing.T) {
	hub := NewHub(4)
	key := stage.Key{ExperimentID: "e", CohortID: "c", StageID: "s"}
	var seen []int64
	hub.OnPublish(func(u Update) { seen = append(seen, u.Version) })

	hub.Publish(key, snapshot(1), nil)
	hub.Publish(key, snapshot(1), nil)
	hub.Publish(key, snapshot(2), nil)
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("expected versions [1 2], got %v", seen)
	}
}

func TestHubHandsStaleEventsToListeners(t *testing.T) {
	hub := NewHub(4)
	key := stage.Key{ExperimentID: "e", CohortID: "c", StageID: "s"}
	var seen []Update
	hub.OnPublish(func(u Update) { seen = append(seen, u) })

	hub.Publish(key, snapshot(2), []chip.Event{{Seq: 2, Type: chip.EventOffer}})
	if _, ok := hub.Publish(key, snapshot(1), []chip.Event{{Seq: 1, Type: chip.EventNewTurn}}); ok {
		t.Fatalf("stale publish should not be accepted")
	}
	hub.Publish(key, snapshot(1), nil)

	if len(seen) != 2 {
		t.Fatalf("expected 2 listener calls, got %d", len(seen))
	}
	if seen[1].Version != 1 || len(seen[1].Events) != 1 || seen[1].Events[0].Type != chip.EventNewTurn {
		t.Fatalf("stale events not delivered: %+v", seen[1])
	}
	latest := hub.Buffer(key).ReplayAfter("")
	if len(latest) != 1 || latest[0].Version != 2 {
		t.Fatalf("expected latest snapshot v2, got %+v", latest)
	}
}
