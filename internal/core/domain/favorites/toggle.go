package favorites

import "fmt"

// Direction is the change a toggle applies to a (user, listing) pair.
type Direction int

const (
	Add Direction = iota + 1
	Remove
)

func (d Direction) String() string {
	switch d {
	case Add:
		return "add"
	case Remove:
		return "remove"
	}
	return "unknown"
}

// Toward returns the direction that leaves the pair with the given membership.
func Toward(member bool) Direction {
	if member {
		return Add
	}
	return Remove
}

// Flip returns the direction a toggle implies for the current membership.
func Flip(member bool) Direction {
	return Toward(!member)
}

// Member reports the membership the direction produces.
func (d Direction) Member() bool {
	return d == Add
}

// ParseDirection maps "add"/"remove" to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "add":
		return Add, nil
	case "remove":
		return Remove, nil
	}
	return 0, fmt.Errorf("%w: unknown direction %q", ErrValidation, s)
}

// Pair identifies one favorite relation.
type Pair struct {
	UserID    string
	ListingID string
}

// PendingToggle is one in-flight mutation for a pair, together with the set
// as it was just before the optimistic change.
type PendingToggle struct {
	Pair
	Direction Direction
	Previous  FavoriteSet
}

// NewPendingToggle snapshots previous and records the requested direction.
func NewPendingToggle(p Pair, dir Direction, previous FavoriteSet) PendingToggle {
	return PendingToggle{Pair: p, Direction: dir, Previous: previous.Clone()}
}

// PreviousMember is the pair's membership before the optimistic change.
func (t PendingToggle) PreviousMember() bool {
	return t.Previous.Contains(t.ListingID)
}

// Rollback is the direction that restores the pair to PreviousMember.
func (t PendingToggle) Rollback() Direction {
	return Toward(t.PreviousMember())
}

// Noop reports whether the toggle would not change the snapshot at all.
func (t PendingToggle) Noop() bool {
	return t.PreviousMember() == t.Direction.Member()
}
