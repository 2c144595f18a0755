package chip

import "sort"

// Inventory maps chip id to quantity held.
type Inventory map[string]int64

func (inv Inventory) Clone() Inventory {
	if inv == nil {
		return nil
	}
	out := make(Inventory, len(inv))
	for id, q := range inv {
		out[id] = q
	}
	return out
}

// Covers reports whether inv holds at least every quantity in need.
func (inv Inventory) Covers(need Inventory) bool {
	for id, q := range need {
		if inv[id] < q {
			return false
		}
	}
	return true
}

// Apply returns a new inventory with add credited and remove debited. The
// receiver is never modified.
func (inv Inventory) Apply(add, remove Inventory) (Inventory, error) {
	if !inv.Covers(remove) {
		return nil, ErrInsufficientChips
	}
	out := inv.Clone()
	if out == nil {
		out = Inventory{}
	}
	for id, q := range remove {
		out[id] -= q
	}
	for id, q := range add {
		out[id] += q
	}
	return out, nil
}

func (inv Inventory) Keys() []string {
	out := make([]string, 0, len(inv))
	for id := range inv {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Totals sums each chip type across all holders.
func Totals(holders map[string]Inventory) Inventory {
	out := Inventory{}
	for _, inv := range holders {
		for id, q := range inv {
			out[id] += q
		}
	}
	return out
}

// Trade computes both sides of an accepted offer. Neither input inventory is
// modified; the caller swaps both results in together.
func Trade(sender, recipient Inventory, offer Offer) (Inventory, Inventory, error) {
	newSender, err := sender.Apply(offer.Buy, offer.Sell)
	if err != nil {
		return nil, nil, err
	}
	newRecipient, err := recipient.Apply(offer.Sell, offer.Buy)
	if err != nil {
		return nil, nil, err
	}
	return newSender, newRecipient, nil
}

func sortBySeq(ids []string, responses map[string]Response) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := responses[ids[i]], responses[ids[j]]
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		return ids[i] < ids[j]
	})
}
