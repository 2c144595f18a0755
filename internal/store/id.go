package store

import (
	"encoding/binary"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	ulidEntropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	ulidEntropyMu sync.Mutex
)

func NewID() string {
	return newULID().String()
}

// NewTurnSeed draws a stage ordering seed from fresh ULID entropy.
func NewTurnSeed() uint64 {
	e := newULID().Entropy()
	return binary.BigEndian.Uint64(e[len(e)-8:])
}

func newULID() ulid.ULID {
	ulidEntropyMu.Lock()
	defer ulidEntropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy)
}
