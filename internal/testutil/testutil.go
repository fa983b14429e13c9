// Package testutil builds ritual fixtures shared by the rule engine and service tests.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/roots/internal/models"
)

// Day returns the calendar date y-m-d at UTC midnight, the shape dates take
// once they leave the database.
func Day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Ritual returns an active standalone ritual with the given streak.
func Ritual(streak int) models.Ritual {
	return models.Ritual{
		ID:          uuid.New(),
		StreakCount: streak,
		Status:      models.RitualStatusActive,
	}
}

// Standalone returns n active rituals with no streak.
func Standalone(n int) []models.Ritual {
	out := make([]models.Ritual, n)
	for i := range out {
		out[i] = Ritual(0)
	}
	return out
}

// Chain returns one chained ritual per streak, all sharing a fresh chain id.
func Chain(streaks ...int) []models.Ritual {
	chainID := uuid.New()
	members := make([]models.Ritual, len(streaks))
	for i, s := range streaks {
		id := chainID
		members[i] = models.Ritual{
			ID:          uuid.New(),
			StreakCount: s,
			Status:      models.RitualStatusChained,
			ChainID:     &id,
		}
	}
	return members
}

// Apply returns a copy of members with each changed ritual swapped in by id.
func Apply(members, changed []models.Ritual) []models.Ritual {
	out := make([]models.Ritual, len(members))
	copy(out, members)
	for _, c := range changed {
		for i := range out {
			if out[i].ID == c.ID {
				out[i] = c
			}
		}
	}
	return out
}
