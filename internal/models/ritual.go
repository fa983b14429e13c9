package models

import (
	"time"

	"github.com/google/uuid"
)

// RitualStatus is the display and behavior state of a ritual.
type RitualStatus string

const (
	RitualStatusActive  RitualStatus = "active"
	RitualStatusPaused  RitualStatus = "paused"
	RitualStatusChained RitualStatus = "chained"
)

// IsValid reports whether s is one of the known statuses.
func (s RitualStatus) IsValid() bool {
	switch s {
	case RitualStatusActive, RitualStatusPaused, RitualStatusChained:
		return true
	}
	return false
}

// HabitRow mirrors a row of the habits table.
type HabitRow struct {
	ID            uuid.UUID
	OwnerID       uuid.UUID
	Name          string
	StreakCount   int
	LastCompleted *time.Time
	IsActive      bool
	IsChained     bool
	ChainID       *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Ritual is a habit as the rest of the application sees it.
// LastCompleted holds a calendar date at UTC midnight.
type Ritual struct {
	ID            uuid.UUID    `json:"id"`
	OwnerID       uuid.UUID    `json:"owner_id"`
	Name          string       `json:"name"`
	StreakCount   int          `json:"streak_count"`
	LastCompleted *time.Time   `json:"last_completed,omitempty"`
	Status        RitualStatus `json:"status"`
	ChainID       *uuid.UUID   `json:"chain_id,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

type UpdateRitualParams struct {
	Name   *string
	Status *RitualStatus
}

// TreeStage is the cosmetic growth state derived from a streak.
type TreeStage string

const (
	TreeStageSprout  TreeStage = "sprout"
	TreeStageSapling TreeStage = "sapling"
	TreeStageYoung   TreeStage = "young"
	TreeStageFull    TreeStage = "full"
	TreeStageBlossom TreeStage = "blossom"
	TreeStageFruit   TreeStage = "fruit"
)

// WeeklyActivity marks, per day (Sunday first), whether anything was completed.
type WeeklyActivity struct {
	CurrentWeek [7]bool `json:"current_week"`
	LastWeek    [7]bool `json:"last_week"`
}

type GardenRitual struct {
	Ritual
	Stage TreeStage `json:"stage"`
}

type Garden struct {
	OwnerID  uuid.UUID      `json:"owner_id"`
	Rituals  []GardenRitual `json:"rituals"`
	Activity WeeklyActivity `json:"activity"`
}

// CompletionOutcome describes what completing a ritual did.
type CompletionOutcome string

const (
	// CompletionAlreadyDone means the ritual was already completed today.
	CompletionAlreadyDone CompletionOutcome = "already_done"
	// CompletionAdvanced means the streak grew.
	CompletionAdvanced CompletionOutcome = "advanced"
	// CompletionChainPending means this chain member is done but others are not yet.
	CompletionChainPending CompletionOutcome = "chain_pending"
)

type CompletionResult struct {
	Outcome CompletionOutcome `json:"outcome"`
	Ritual  *Ritual           `json:"ritual"`
	// Chain holds every member of the ritual's chain after the completion, if chained.
	Chain []Ritual `json:"chain,omitempty"`
}
