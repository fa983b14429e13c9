// Package rituals holds the bookkeeping rules for rituals: status mapping,
// streak advancement, chain coordination, weekly activity and tree stages.
// Everything here is pure; persistence lives in the services package.
package rituals

import (
	"github.com/HammerMeetNail/roots/internal/models"
)

// Flags is the pair of booleans persisted on a habit row.
type Flags struct {
	Active  bool
	Chained bool
}

// ToStatus derives a status from the persisted flags. Chained wins over active.
func ToStatus(active, chained bool) models.RitualStatus {
	switch {
	case chained:
		return models.RitualStatusChained
	case active:
		return models.RitualStatusActive
	default:
		return models.RitualStatusPaused
	}
}

// ToFlags is the inverse of ToStatus. Unknown statuses map to paused.
func ToFlags(status models.RitualStatus) Flags {
	switch status {
	case models.RitualStatusActive:
		return Flags{Active: true}
	case models.RitualStatusChained:
		return Flags{Chained: true}
	default:
		return Flags{}
	}
}

// FromRow maps a habits row into a Ritual.
func FromRow(row models.HabitRow) models.Ritual {
	r := models.Ritual{
		ID:            row.ID,
		OwnerID:       row.OwnerID,
		Name:          row.Name,
		StreakCount:   row.StreakCount,
		LastCompleted: row.LastCompleted,
		Status:        ToStatus(row.IsActive, row.IsChained),
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if r.Status == models.RitualStatusChained && row.ChainID != nil {
		id := *row.ChainID
		r.ChainID = &id
	}
	return r
}

// ToRow maps a Ritual back into the habits row shape. A chain id is only
// written for chained rituals.
func ToRow(r models.Ritual) models.HabitRow {
	flags := ToFlags(r.Status)
	row := models.HabitRow{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		Name:          r.Name,
		StreakCount:   r.StreakCount,
		LastCompleted: r.LastCompleted,
		IsActive:      flags.Active,
		IsChained:     flags.Chained,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if flags.Chained && r.ChainID != nil {
		id := *r.ChainID
		row.ChainID = &id
	}
	return row
}
