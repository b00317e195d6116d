package registry

import (
	"errors"

	"yieldedu/crypto"
)

// ErrTokenNotFound is returned when removing a token that is not on the list.
var ErrTokenNotFound = errors.New("allow list: token not found")

// AllowList is the ordered set of token addresses a pool accepts. Order is
// insertion order so read APIs return stable listings. The zero value is
// usable; pools persist the list through their state layer.
type AllowList struct {
	Tokens []crypto.Address `json:"tokens"`
}

// NewAllowList builds a list seeded with the given tokens.
func NewAllowList(tokens ...crypto.Address) *AllowList {
	list := &AllowList{}
	for _, token := range tokens {
		list.Add(token)
	}
	return list
}

// Contains reports whether the token is currently allowed.
func (l *AllowList) Contains(token crypto.Address) bool {
	if l == nil {
		return false
	}
	for _, t := range l.Tokens {
		if t.Equal(token) {
			return true
		}
	}
	return false
}

// Add inserts the token. Adding an already-listed token is a no-op.
func (l *AllowList) Add(token crypto.Address) {
	if l.Contains(token) {
		return
	}
	l.Tokens = append(l.Tokens, token)
}

// Remove deletes the token, failing when it is not present.
func (l *AllowList) Remove(token crypto.Address) error {
	for i, t := range l.Tokens {
		if t.Equal(token) {
			l.Tokens = append(l.Tokens[:i], l.Tokens[i+1:]...)
			return nil
		}
	}
	return ErrTokenNotFound
}

// Set forces the token's membership to the given value regardless of its
// current state. Used for bulk disable flows.
func (l *AllowList) Set(token crypto.Address, allowed bool) {
	if allowed {
		l.Add(token)
		return
	}
	for i, t := range l.Tokens {
		if t.Equal(token) {
			l.Tokens = append(l.Tokens[:i], l.Tokens[i+1:]...)
			return
		}
	}
}

// List returns the allowed tokens in insertion order.
func (l *AllowList) List() []crypto.Address {
	if l == nil {
		return nil
	}
	out := make([]crypto.Address, len(l.Tokens))
	copy(out, l.Tokens)
	return out
}

// Clone returns a deep copy of the list.
func (l *AllowList) Clone() *AllowList {
	if l == nil {
		return nil
	}
	return &AllowList{Tokens: l.List()}
}
