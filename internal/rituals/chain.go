package rituals

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/roots/internal/models"
)

const (
	MinChainSize = 2
	MaxChainSize = 3
)

var (
	ErrInvalidChainSize    = errors.New("a chain must have 2 or 3 rituals")
	ErrAlreadyChained      = errors.New("ritual is already in a chain")
	ErrDuplicateRitual     = errors.New("ritual listed more than once")
	ErrNotChainMember      = errors.New("ritual is not a member of this chain")
	ErrInvalidStatus       = errors.New("invalid ritual status")
	ErrStatusRequiresChain = errors.New("rituals become chained only by forming a chain")
)

// ChainCompletion is the result of completing one member of a chain.
type ChainCompletion struct {
	Outcome models.CompletionOutcome
	// Members is the whole chain after the completion.
	Members []models.Ritual
	// Changed lists the members that must be written back.
	Changed []models.Ritual
}

// CompleteInChain records that the member id was done today and advances the
// shared streak once every member has been done today. Members with diverging
// streaks all move to the smallest count plus one.
func CompleteInChain(members []models.Ritual, id uuid.UUID, today time.Time) (ChainCompletion, error) {
	updated := make([]models.Ritual, len(members))
	copy(updated, members)

	idx := -1
	for i, m := range updated {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ChainCompletion{}, ErrNotChainMember
	}

	if CompletedOn(updated[idx], today) {
		return ChainCompletion{Outcome: models.CompletionAlreadyDone, Members: updated}, nil
	}

	day := DateOf(today)
	updated[idx].LastCompleted = &day

	minStreak := updated[0].StreakCount
	for _, m := range updated {
		if !CompletedOn(m, day) {
			return ChainCompletion{
				Outcome: models.CompletionChainPending,
				Members: updated,
				Changed: []models.Ritual{updated[idx]},
			}, nil
		}
		if m.StreakCount < minStreak {
			minStreak = m.StreakCount
		}
	}

	for i := range updated {
		updated[i].StreakCount = minStreak + 1
	}
	changed := make([]models.Ritual, len(updated))
	copy(changed, updated)
	return ChainCompletion{Outcome: models.CompletionAdvanced, Members: updated, Changed: changed}, nil
}

// FormChain links 2 or 3 unchained rituals under chainID.
func FormChain(members []models.Ritual, chainID uuid.UUID) ([]models.Ritual, error) {
	if len(members) < MinChainSize || len(members) > MaxChainSize {
		return nil, ErrInvalidChainSize
	}

	seen := make(map[uuid.UUID]struct{}, len(members))
	for _, m := range members {
		if _, dup := seen[m.ID]; dup {
			return nil, ErrDuplicateRitual
		}
		seen[m.ID] = struct{}{}
		if m.Status == models.RitualStatusChained || m.ChainID != nil {
			return nil, ErrAlreadyChained
		}
	}

	chained := make([]models.Ritual, len(members))
	for i, m := range members {
		id := chainID
		m.Status = models.RitualStatusChained
		m.ChainID = &id
		chained[i] = m
	}
	return chained, nil
}

// ChangeStatus applies an edit of target's status. Moving a chained ritual to
// any other status dissolves its whole chain: target takes next, every other
// member becomes a standalone active ritual. members is target's chain,
// target included, and is ignored for unchained targets. The returned rituals
// are the ones to write back.
func ChangeStatus(target models.Ritual, next models.RitualStatus, members []models.Ritual) ([]models.Ritual, error) {
	if !next.IsValid() {
		return nil, ErrInvalidStatus
	}

	if next == models.RitualStatusChained {
		if target.Status == models.RitualStatusChained {
			return nil, nil
		}
		return nil, ErrStatusRequiresChain
	}

	if target.Status != models.RitualStatusChained {
		if target.Status == next {
			return nil, nil
		}
		target.Status = next
		target.ChainID = nil
		return []models.Ritual{target}, nil
	}

	target.Status = next
	target.ChainID = nil
	changed := []models.Ritual{target}
	for _, m := range members {
		if m.ID == target.ID {
			continue
		}
		m.Status = models.RitualStatusActive
		m.ChainID = nil
		changed = append(changed, m)
	}
	return changed, nil
}

// RebalanceOnDelete returns the members that must change when deletedID leaves
// its chain. A lone survivor becomes a standalone active ritual; larger
// remainders keep their chain untouched.
func RebalanceOnDelete(deletedID uuid.UUID, members []models.Ritual) []models.Ritual {
	var survivors []models.Ritual
	for _, m := range members {
		if m.ID != deletedID {
			survivors = append(survivors, m)
		}
	}
	if len(survivors) != 1 {
		return nil
	}

	s := survivors[0]
	s.Status = models.RitualStatusActive
	s.ChainID = nil
	return []models.Ritual{s}
}
