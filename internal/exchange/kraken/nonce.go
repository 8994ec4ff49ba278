package kraken

import (
	"sync"
	"time"
)

// Nonce hands out strictly increasing values for one API key. Kraken rejects
// any private call whose nonce does not exceed the last one it saw, so every
// client sharing a key must share one Nonce.
type Nonce struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewNonce() *Nonce {
	return &Nonce{now: time.Now}
}

// NewNonceWithClock is NewNonce with an injected clock.
func NewNonceWithClock(now func() time.Time) *Nonce {
	return &Nonce{now: now}
}

// Next returns max(now in ms, previous+1).
func (n *Nonce) Next() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	v := n.now().UnixMilli()
	if v <= n.last {
		v = n.last + 1
	}
	n.last = v
	return v
}
