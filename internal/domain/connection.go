package domain

import "time"

// Connection Invariants:
// 1. At most one Connection per unordered pair {A, B} (unique pair key).
// 2. Created exactly once, when a MessageRequest transitions to accepted.
type Connection struct {
	ID        string
	PairKey   string
	UserA     string
	UserB     string
	CreatedAt time.Time
}

func NewConnection(id, userA, userB string, now time.Time) (*Connection, error) {
	if id == "" || userA == "" || userB == "" || userA == userB {
		return nil, ErrInvalidInput
	}
	lo, hi := OrderPair(userA, userB)
	return &Connection{
		ID:        id,
		PairKey:   PairKey(userA, userB),
		UserA:     lo,
		UserB:     hi,
		CreatedAt: now,
	}, nil
}

// OrderPair returns the two user ids in lexicographic order.
func OrderPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// PairKey is the deterministic lookup key for an unordered user pair.
// Both orderings of the same pair produce the same key.
func PairKey(a, b string) string {
	lo, hi := OrderPair(a, b)
	return "direct:" + lo + ":" + hi
}
