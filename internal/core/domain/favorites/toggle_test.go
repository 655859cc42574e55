package favorites

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirection(t *testing.T) {
	assert.Equal(t, Add, Toward(true))
	assert.Equal(t, Remove, Toward(false))
	assert.Equal(t, Remove, Flip(true))
	assert.Equal(t, Add, Flip(false))
	assert.True(t, Add.Member())
	assert.False(t, Remove.Member())
	assert.Equal(t, "add", Add.String())
	assert.Equal(t, "remove", Remove.String())
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("add")
	assert.NoError(t, err)
	assert.Equal(t, Add, d)

	d, err = ParseDirection("remove")
	assert.NoError(t, err)
	assert.Equal(t, Remove, d)

	_, err = ParseDirection("flip")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPendingToggle_SnapshotIsolation(t *testing.T) {
	live := NewFavoriteSet("u", "l1")
	pt := NewPendingToggle(Pair{UserID: "u", ListingID: "l1"}, Remove, live)

	live.Apply("l1", Remove)

	assert.True(t, pt.PreviousMember())
	assert.Equal(t, Add, pt.Rollback())
	assert.False(t, pt.Noop())
}

func TestPendingToggle_Rollback(t *testing.T) {
	tests := []struct {
		name     string
		previous []string
		dir      Direction
		rollback Direction
		noop     bool
	}{
		{name: "add on empty", dir: Add, rollback: Remove},
		{name: "remove on member", previous: []string{"l1"}, dir: Remove, rollback: Add},
		{name: "add on member", previous: []string{"l1"}, dir: Add, rollback: Add, noop: true},
		{name: "remove on empty", dir: Remove, rollback: Remove, noop: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pt := NewPendingToggle(Pair{UserID: "u", ListingID: "l1"}, tt.dir, NewFavoriteSet("u", tt.previous...))
			assert.Equal(t, tt.rollback, pt.Rollback())
			assert.Equal(t, tt.noop, pt.Noop())
		})
	}
}

func TestOutcome_Kinds(t *testing.T) {
	outcomes := []Outcome{Committed{Favorite: true}, RolledBack{Reason: ErrRemoteUnavailable}, AuthRequired{}}
	kinds := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		kinds = append(kinds, o.Kind())
	}
	assert.Equal(t, []string{"committed", "rolled_back", "auth_required"}, kinds)
}

func TestIsConflict(t *testing.T) {
	assert.True(t, IsConflict(ErrAlreadyExists))
	assert.True(t, IsConflict(fmt.Errorf("insert: %w", ErrAlreadyExists)))
	assert.True(t, IsConflict(ErrNotFound))
	assert.False(t, IsConflict(errors.New("connection refused")))
	assert.False(t, IsConflict(nil))
}
