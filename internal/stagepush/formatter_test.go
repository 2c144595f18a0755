package stagepush

import (
	"strings"
	"testing"
	"time"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/chip"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/stage"
)

func TestFormatTransaction(t *testing.T) {
	key := stage.Key{ExperimentID: "exp", CohortID: "c1", StageID: "s1"}
	ev := chip.Event{
		Type:      chip.EventTransaction,
		Round:     0,
		Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Transaction: &chip.Transaction{
			Offer: chip.Offer{
				SenderID: "pub-a",
				Buy:      chip.Inventory{"red": 2},
				Sell:     chip.Inventory{"blue": 1, "green": 0},
			},
			Status:      chip.StatusAccepted,
			RecipientID: "pub-b",
		},
	}
	msg, ok := FormatMessage(key, ev)
	if !ok {
		t.Fatal("transaction should be formatted")
	}
	if msg.Title != "Deal · s1" {
		t.Fatalf("unexpected title: %s", msg.Title)
	}
	if msg.Body != "pub-a gave 1 blue for 2 red" {
		t.Fatalf("unexpected description: %s", msg.Body)
	}
	if msg.Timestamp != "2025-01-01T00:00:00Z" {
		t.Fatalf("unexpected timestamp: %s", msg.Timestamp)
	}
	if msg.Fields[0].Value != "1" {
		t.Fatalf("round should be one-based, got %s", msg.Fields[0].Value)
	}
}

func TestFormatSkipsChattyEvents(t *testing.T) {
	key := stage.Key{ExperimentID: "exp", CohortID: "c1", StageID: "s1"}
	for _, typ := range []chip.EventType{chip.EventOffer, chip.EventResponse, chip.EventNewTurn, chip.EventTurnSkipped} {
		if _, ok := FormatMessage(key, chip.Event{Type: typ}); ok {
			t.Fatalf("%s should not be formatted", typ)
		}
	}
	if _, ok := FormatMessage(key, chip.Event{Type: chip.EventTransaction}); ok {
		t.Fatal("transaction event without payload should not be formatted")
	}
}

func TestFormatDeclinedAndGameOver(t *testing.T) {
	key := stage.Key{ExperimentID: "exp", CohortID: "c1", StageID: "s1"}
	msg, ok := FormatMessage(key, chip.Event{Type: chip.EventOfferDeclined, ParticipantID: "pub-a"})
	if !ok || !strings.Contains(msg.Text, "pub-a") {
		t.Fatalf("unexpected declined message: %#v", msg)
	}
	msg, ok = FormatMessage(key, chip.Event{Type: chip.EventGameOver})
	if !ok || msg.Color != colorGameOver {
		t.Fatalf("unexpected game over message: %#v", msg)
	}
}
