package chip

import (
	"math/rand"
	"testing"
)

// Randomized play checks the ledger invariants after every operation.
func TestRandomPlayInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(20240501))
	chipIDs := []string{"red", "blue"}
	for game := 0; game < 50; game++ {
		cfg := redBlueConfig(1 + rng.Intn(4))
		if rng.Intn(2) == 0 {
			cfg.RejectionPolicy = RejectExternal
		}
		eng, pd := newABC(t, cfg)
		start := Totals(pd.ParticipantChipMap)
		lastRound, lastIdx := 0, 0

		for step := 0; step < 200 && !pd.IsGameOver; step++ {
			round, turn := pd.CurrentRound, pd.CurrentTurn
			tx, hasTx := pd.Transaction(round, turn)
			switch {
			case !hasTx && rng.Intn(5) == 0:
				eng.SkipTurn(turn)
			case !hasTx:
				sell := chipIDs[rng.Intn(2)]
				buy := chipIDs[1-rng.Intn(2)]
				eng.SubmitOffer(Offer{
					SenderID: turn,
					Sell:     Inventory{sell: int64(1 + rng.Intn(7))},
					Buy:      Inventory{buy: int64(1 + rng.Intn(7))},
				})
			case tx.Status == StatusPending && rng.Intn(8) == 0:
				eng.ForceResolve(round, turn)
			default:
				responder := pd.TurnOrder[rng.Intn(len(pd.TurnOrder))]
				eng.SubmitResponse(responder, round, turn, rng.Intn(2) == 0)
			}

			totals := Totals(pd.ParticipantChipMap)
			for _, id := range chipIDs {
				if totals[id] != start[id] {
					t.Fatalf("game %d step %d: %s total %d, want %d", game, step, id, totals[id], start[id])
				}
			}
			for pid, inv := range pd.ParticipantChipMap {
				for id, q := range inv {
					if q < 0 {
						t.Fatalf("game %d: %s holds %d %s", game, pid, q, id)
					}
				}
			}
			for _, rm := range pd.ParticipantOfferMap {
				for _, tx := range rm {
					if (tx.RecipientID != "") != (tx.Status == StatusAccepted) {
						t.Fatalf("game %d: recipient %q with status %s", game, tx.RecipientID, tx.Status)
					}
					if tx.RecipientID != "" {
						if r, ok := tx.ResponseMap[tx.RecipientID]; !ok || !r.Accept {
							t.Fatalf("game %d: recipient %s has no accepting response", game, tx.RecipientID)
						}
					}
				}
			}
			idx := pd.TurnIndex(pd.CurrentTurn)
			if pd.IsGameOver {
				idx = len(pd.TurnOrder)
			}
			if pd.CurrentRound < lastRound || (pd.CurrentRound == lastRound && idx < lastIdx) {
				t.Fatalf("game %d: cursor moved back from (%d,%d) to (%d,%d)", game, lastRound, lastIdx, pd.CurrentRound, idx)
			}
			lastRound, lastIdx = pd.CurrentRound, idx
		}
	}
}
