package favorites

import (
	"maps"
	"slices"
)

// Freshness describes how far a cached FavoriteSet can be trusted.
type Freshness int

const (
	Unloaded Freshness = iota
	Loading
	Fresh
	Stale
)

func (f Freshness) String() string {
	switch f {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	}
	return "unknown"
}

// FavoriteSet is the best-known set of listing ids a user has favorited.
// The zero value is an empty, unloaded set for the anonymous user.
type FavoriteSet struct {
	UserID    string
	Freshness Freshness
	ids       map[string]struct{}
}

// NewFavoriteSet builds a set for userID holding the given listing ids.
// Duplicates and empty ids are dropped.
func NewFavoriteSet(userID string, listingIDs ...string) FavoriteSet {
	s := FavoriteSet{UserID: userID, ids: make(map[string]struct{}, len(listingIDs))}
	for _, id := range listingIDs {
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
	return s
}

// Anonymous reports whether the set belongs to an unauthenticated user.
func (s FavoriteSet) Anonymous() bool {
	return s.UserID == ""
}

func (s FavoriteSet) Contains(listingID string) bool {
	_, ok := s.ids[listingID]
	return ok
}

func (s FavoriteSet) Len() int {
	return len(s.ids)
}

// IDs returns the listing ids in lexical order.
func (s FavoriteSet) IDs() []string {
	return slices.Sorted(maps.Keys(s.ids))
}

// Clone returns a deep copy; mutating it never affects s.
func (s FavoriteSet) Clone() FavoriteSet {
	c := s
	c.ids = maps.Clone(s.ids)
	if c.ids == nil {
		c.ids = make(map[string]struct{})
	}
	return c
}

// Apply adds or removes listingID in place. It reports whether membership changed.
func (s *FavoriteSet) Apply(listingID string, dir Direction) bool {
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	_, had := s.ids[listingID]
	switch dir {
	case Add:
		s.ids[listingID] = struct{}{}
		return !had
	case Remove:
		delete(s.ids, listingID)
		return had
	}
	return false
}
