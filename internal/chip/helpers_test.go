package chip

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func redBlueConfig(rounds int) StageConfig {
	return StageConfig{
		ID:        "chips",
		Name:      "Negotiation",
		NumRounds: rounds,
		Chips: []ChipItem{
			{ID: "red", Name: "red", Avatar: "🔴", StartingQuantity: 5},
			{ID: "blue", Name: "blue", Avatar: "🔵", StartingQuantity: 5},
		},
		ParticipantChipValues: map[string]map[string]decimal.Decimal{
			"A": {"red": decimal.RequireFromString("0.10"), "blue": decimal.RequireFromString("0.30")},
			"B": {"red": decimal.RequireFromString("0.30"), "blue": decimal.RequireFromString("0.10")},
			"C": {"red": decimal.RequireFromString("0.20"), "blue": decimal.RequireFromString("0.20")},
		},
	}
}

// newABC starts a stage with a fixed A, B, C turn order.
func newABC(t *testing.T, cfg StageConfig) (*Engine, *PublicData) {
	t.Helper()
	pd, err := NewPublicData(cfg, []string{"A", "B", "C"})
	if err != nil {
		t.Fatalf("new public data: %v", err)
	}
	pd.TurnOrder = []string{"A", "B", "C"}
	pd.CurrentTurn = "A"
	eng := NewEngine(cfg, &pd)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return eng, &pd
}

func sellRedForBlue(sender string, red, blue int64) Offer {
	return Offer{SenderID: sender, Sell: Inventory{"red": red}, Buy: Inventory{"blue": blue}}
}

func assertInventory(t *testing.T, pd *PublicData, id string, red, blue int64) {
	t.Helper()
	inv := pd.ParticipantChipMap[id]
	if inv["red"] != red || inv["blue"] != blue {
		t.Fatalf("expected %s red=%d blue=%d, got %+v", id, red, blue, inv)
	}
}
