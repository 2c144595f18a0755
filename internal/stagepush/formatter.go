package stagepush

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/chip"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/stage"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/stagepush/platforms"
)

const (
	colorDeal     = 0x3BA55D
	colorNoDeal   = 0xFEE75C
	colorRound    = 0x5865F2
	colorGameOver = 0xED4245

	defaultFooter = "chip negotiation"
)

// FormatMessage renders the events worth a notification. Offers, responses
// and turn changes are too chatty and return false.
func FormatMessage(key stage.Key, ev chip.Event) (platforms.Message, bool) {
	base := platforms.Message{
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		Footer:    defaultFooter,
	}
	stageField := platforms.Field{Label: "Stage", Value: key.String()}
	roundField := platforms.Field{Label: "Round", Value: strconv.Itoa(ev.Round + 1), Short: true}

	switch ev.Type {
	case chip.EventTransaction:
		tx := ev.Transaction
		if tx == nil {
			return platforms.Message{}, false
		}
		base.Title = fmt.Sprintf("Deal · %s", key.StageID)
		base.Text = fmt.Sprintf("%s traded with %s", tx.Offer.SenderID, tx.RecipientID)
		base.Body = fmt.Sprintf("%s gave %s for %s", tx.Offer.SenderID, inventoryText(tx.Offer.Sell), inventoryText(tx.Offer.Buy))
		base.Color = colorDeal
		base.Fields = []platforms.Field{
			roundField,
			{Label: "Sender", Value: tx.Offer.SenderID, Short: true},
			{Label: "Recipient", Value: tx.RecipientID, Short: true},
			stageField,
		}
	case chip.EventOfferDeclined:
		sender := ev.ParticipantID
		base.Title = fmt.Sprintf("No deal · %s", key.StageID)
		base.Text = fmt.Sprintf("no one accepted %s's offer", fallback(sender, "a participant"))
		base.Body = base.Text
		base.Color = colorNoDeal
		base.Fields = []platforms.Field{roundField, {Label: "Sender", Value: fallback(sender, "-"), Short: true}, stageField}
	case chip.EventNewRound:
		base.Title = fmt.Sprintf("Round %d · %s", ev.Round+1, key.StageID)
		base.Text = fmt.Sprintf("round %d started", ev.Round+1)
		base.Body = base.Text
		base.Color = colorRound
		base.Fields = []platforms.Field{roundField, stageField}
	case chip.EventGameOver:
		base.Title = fmt.Sprintf("Game over · %s", key.StageID)
		base.Text = "The game has ended."
		base.Body = base.Text
		base.Color = colorGameOver
		base.Fields = []platforms.Field{stageField}
	default:
		return platforms.Message{}, false
	}
	return base, true
}

func inventoryText(inv chip.Inventory) string {
	parts := make([]string, 0, len(inv))
	for _, id := range inv.Keys() {
		if inv[id] == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d %s", inv[id], id))
	}
	if len(parts) == 0 {
		return "nothing"
	}
	return strings.Join(parts, ", ")
}

func fallback(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
