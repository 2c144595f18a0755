package chip

import "fmt"

// OfferCheck is the live preview of a single-type offer.
type OfferCheck struct {
	Errors          []string `json:"errors"`
	IsCompleteOffer bool     `json:"is_complete_offer"`
	IsValidOffer    bool     `json:"is_valid_offer"`
}

// CheckOffer evaluates a prospective offer against the current snapshot.
// The acceptability message is informational: inventories may change before
// the offer is answered, so it never clears IsValidOffer.
func CheckOffer(pd PublicData, senderID, buyType string, buyQty int64, sellType string, sellQty int64) OfferCheck {
	out := OfferCheck{Errors: []string{}}
	out.IsCompleteOffer = buyType != "" && sellType != "" && buyQty > 0 && sellQty > 0
	if !out.IsCompleteOffer {
		return out
	}

	valid := true
	if have := pd.ParticipantChipMap[senderID][sellType]; have < sellQty {
		out.Errors = append(out.Errors, affordabilityMessage(sellType, have, sellQty))
		valid = false
	}
	if buyType == sellType {
		out.Errors = append(out.Errors, "You cannot trade a chip type for itself.")
		valid = false
	}
	if !IsOfferAcceptable(pd, senderID, Inventory{buyType: buyQty}) {
		out.Errors = append(out.Errors, fmt.Sprintf("No other participant currently has %d %s chips to give you.", buyQty, buyType))
	}
	out.IsValidOffer = valid
	return out
}

// IsOfferAcceptable reports whether some participant other than senderID
// holds the whole buy side right now.
func IsOfferAcceptable(pd PublicData, senderID string, buy Inventory) bool {
	for id, inv := range pd.ParticipantChipMap {
		if id == senderID {
			continue
		}
		if inv.Covers(buy) {
			return true
		}
	}
	return false
}

// ValidateOffer applies the hard checks to a full offer. It returns an
// *OfferError listing every violation, or nil.
func ValidateOffer(cfg StageConfig, pd PublicData, offer Offer) error {
	var errs []string
	if len(offer.Buy) == 0 || len(offer.Sell) == 0 {
		errs = append(errs, "Offer must name at least one chip to buy and one chip to sell.")
	}
	for _, id := range offer.Buy.Keys() {
		q := offer.Buy[id]
		item, ok := cfg.Chip(id)
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("Unknown chip type %q.", id))
		case !item.Buyable():
			errs = append(errs, fmt.Sprintf("%s chips cannot be bought.", item.Name))
		}
		if q <= 0 {
			errs = append(errs, fmt.Sprintf("Quantity of %s to buy must be positive.", id))
		}
		if _, dup := offer.Sell[id]; dup {
			errs = append(errs, "You cannot trade a chip type for itself.")
		}
	}
	inv := pd.ParticipantChipMap[offer.SenderID]
	for _, id := range offer.Sell.Keys() {
		q := offer.Sell[id]
		item, ok := cfg.Chip(id)
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("Unknown chip type %q.", id))
		case !item.Sellable():
			errs = append(errs, fmt.Sprintf("%s chips cannot be sold.", item.Name))
		}
		if q <= 0 {
			errs = append(errs, fmt.Sprintf("Quantity of %s to sell must be positive.", id))
			continue
		}
		if inv[id] < q {
			errs = append(errs, affordabilityMessage(id, inv[id], q))
		}
	}
	if len(errs) > 0 {
		return &OfferError{Errors: errs}
	}
	return nil
}

func affordabilityMessage(chipID string, have, want int64) string {
	return fmt.Sprintf("You only have %d %s chips but offered %d.", have, chipID, want)
}
