package backend

import "sync/atomic"

// KeyRing rotates among multiple API credentials. Rotation uses an
// atomically-advanced index so concurrent callers never observe the same
// position twice in a row under contention.
type KeyRing struct {
	keys []string
	next atomic.Uint64
}

// NewKeyRing creates a key ring. An empty key list yields a ring whose
// Next returns the empty string.
func NewKeyRing(keys []string) *KeyRing {
	return &KeyRing{keys: keys}
}

// Next returns the next key in round-robin order.
func (r *KeyRing) Next() string {
	if len(r.keys) == 0 {
		return ""
	}
	n := r.next.Add(1) - 1
	return r.keys[n%uint64(len(r.keys))]
}

// Len returns the number of keys in the ring.
func (r *KeyRing) Len() int {
	return len(r.keys)
}
