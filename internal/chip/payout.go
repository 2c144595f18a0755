package chip

import "github.com/shopspring/decimal"

type Payout struct {
	Before decimal.Decimal `json:"before"`
	After  decimal.Decimal `json:"after"`
}

func (p Payout) Delta() decimal.Decimal {
	return p.After.Sub(p.Before)
}

// InventoryValue is the sum of quantity times value over inv. Chips missing
// from values count as zero.
func InventoryValue(inv Inventory, values map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for id, q := range inv {
		total = total.Add(values[id].Mul(decimal.NewFromInt(q)))
	}
	return total
}

// CalculateOfferPayout previews the value of chipMap before and after adding
// add and removing remove.
func CalculateOfferPayout(chipMap Inventory, values map[string]decimal.Decimal, add, remove Inventory) Payout {
	before := InventoryValue(chipMap, values)
	after := before.Add(InventoryValue(add, values)).Sub(InventoryValue(remove, values))
	return Payout{Before: before, After: after}
}

// ParticipantPayout compares a participant's starting inventory value with
// the current one. Final is set once the game is over.
type ParticipantPayout struct {
	ParticipantID string                     `json:"participant_id"`
	Starting      Inventory                  `json:"starting_chips"`
	Current       Inventory                  `json:"current_chips"`
	Values        map[string]decimal.Decimal `json:"chip_values"`
	Payout        Payout                     `json:"payout"`
	Final         bool                       `json:"final"`
}

func SummarizePayout(cfg StageConfig, pd PublicData, participantID string) (ParticipantPayout, error) {
	current, ok := pd.ParticipantChipMap[participantID]
	if !ok {
		return ParticipantPayout{}, ErrUnknownParticipant
	}
	values := cfg.ParticipantChipValues[participantID]
	start := cfg.StartingInventory()
	return ParticipantPayout{
		ParticipantID: participantID,
		Starting:      start,
		Current:       current.Clone(),
		Values:        values,
		Payout: Payout{
			Before: InventoryValue(start, values),
			After:  InventoryValue(current, values),
		},
		Final: pd.IsGameOver,
	}, nil
}

// OfferPreview values an offer from the point of view of one side.
// asSender previews the sender's change; otherwise the responder's.
func OfferPreview(cfg StageConfig, pd PublicData, participantID string, offer Offer, asSender bool) Payout {
	values := cfg.ParticipantChipValues[participantID]
	inv := pd.ParticipantChipMap[participantID]
	if asSender {
		return CalculateOfferPayout(inv, values, offer.Buy, offer.Sell)
	}
	return CalculateOfferPayout(inv, values, offer.Sell, offer.Buy)
}
