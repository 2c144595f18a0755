package main

import (
	"fmt"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/app/negotiation"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/chip"

	"github.com/google/uuid"
)

// botNamespace scopes deterministic request ids so a restarted bot replays
// instead of double-submitting.
var botNamespace = uuid.MustParse("6f1d3c8e-2b1a-4f0e-9c55-0c7b5e1f2a90")

func requestID(participantID, op string, round int, sender string) string {
	return uuid.NewSHA1(botNamespace, []byte(fmt.Sprintf("%s|%s|%d|%s", participantID, op, round, sender))).String()
}

// chooseOffer trades one unit of the chip this participant values least for
// one unit of the chip it values most. ok is false when no such pair exists.
func chooseOffer(view negotiation.StateView) (buy, sell chip.Inventory, ok bool) {
	self := view.Self
	if self == nil {
		return nil, nil, false
	}
	inv := view.Public.ParticipantChipMap[self.PublicID]
	var best, worst *chip.ChipItem
	for i := range view.Config.Chips {
		c := &view.Config.Chips[i]
		v := self.ChipValues[c.ID]
		if c.Buyable() && (best == nil || v.GreaterThan(self.ChipValues[best.ID])) {
			best = c
		}
		if c.Sellable() && inv[c.ID] > 0 && (worst == nil || v.LessThan(self.ChipValues[worst.ID])) {
			worst = c
		}
	}
	if best == nil || worst == nil || best.ID == worst.ID {
		return nil, nil, false
	}
	if !self.ChipValues[best.ID].GreaterThan(self.ChipValues[worst.ID]) {
		return nil, nil, false
	}
	return chip.Inventory{best.ID: 1}, chip.Inventory{worst.ID: 1}, true
}

// acceptOffer takes any affordable offer that strictly raises this
// participant's own payout.
func acceptOffer(p negotiation.PendingOffer) bool {
	return p.Affordable && p.Preview.After.GreaterThan(p.Preview.Before)
}

func hasOffered(view negotiation.StateView) bool {
	_, ok := view.Public.Transaction(view.Public.CurrentRound, view.Public.CurrentTurn)
	return ok
}
