package chip

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"sort"
)

// TurnOrder ranks participants by sha256(seed || publicID). Any client holding
// the seed and the participant ids derives the same order.
func TurnOrder(participants []string, seed uint64) []string {
	type ranked struct {
		id  string
		key [sha256.Size]byte
	}
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], seed)

	seen := make(map[string]bool, len(participants))
	items := make([]ranked, 0, len(participants))
	for _, id := range participants {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		h := sha256.New()
		h.Write(prefix[:])
		h.Write([]byte(id))
		var key [sha256.Size]byte
		copy(key[:], h.Sum(nil))
		items = append(items, ranked{id: id, key: key})
	}
	sort.Slice(items, func(i, j int) bool {
		if c := bytes.Compare(items[i].key[:], items[j].key[:]); c != 0 {
			return c < 0
		}
		return items[i].id < items[j].id
	})
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.id
	}
	return out
}
