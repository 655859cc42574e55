package favorites

import (
	"fmt"
	"time"
)

// ListingStatus is the lifecycle state of a classified listing.
type ListingStatus string

const (
	ListingActive  ListingStatus = "active"
	ListingSold    ListingStatus = "sold"
	ListingPaused  ListingStatus = "paused"
	ListingDeleted ListingStatus = "deleted"
)

func (s ListingStatus) valid() bool {
	switch s {
	case ListingActive, ListingSold, ListingPaused, ListingDeleted:
		return true
	}
	return false
}

// Listing is a classified ad as shown on the favorites page.
type Listing struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitzero"`
	Price       float64       `json:"price"`
	Category    string        `json:"category"`
	Location    string        `json:"location"`
	Images      []string      `json:"images"`
	IsFeatured  bool          `json:"is_featured"`
	Status      ListingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Validate checks the fields a listing must carry before it is stored.
func (l Listing) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("%w: id is required", ErrValidation)
	}
	if l.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	if l.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if l.Price < 0 {
		return fmt.Errorf("%w: price cannot be negative", ErrValidation)
	}
	if !l.Status.valid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, l.Status)
	}
	return nil
}
