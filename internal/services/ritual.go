package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/roots/internal/metrics"
	"github.com/HammerMeetNail/roots/internal/models"
	"github.com/HammerMeetNail/roots/internal/rituals"
)

const maxRitualNameLength = 100

var (
	ErrRitualNotFound     = newError(ErrNotFound, "ritual not found")
	ErrNotRitualOwner     = newError(ErrUnauthorized, "you do not own this ritual")
	ErrRitualNameRequired = newError(ErrInvalid, "ritual name is required")
	ErrRitualNameTooLong  = newError(ErrInvalid, "ritual name must be 100 characters or fewer")
	ErrRitualPaused       = newError(ErrConflict, "paused rituals cannot be completed")
	ErrRitualNotChained   = newError(ErrConflict, "ritual is not in a chain")
	ErrInvalidChainSize   = newError(ErrConflict, "a chain must have 2 or 3 rituals")
	ErrRitualChained      = newError(ErrConflict, "ritual is already chained")
	ErrDuplicateRitual    = newError(ErrInvalid, "a ritual can only appear once in a chain")
	ErrInvalidStatus      = newError(ErrInvalid, "status must be active, paused or chained")
	ErrStatusNeedsChain   = newError(ErrInvalid, "use a chain to link rituals")
)

const habitColumns = `id, owner_id, name, streak_count, last_completed, is_active, is_chained, chain_id, created_at, updated_at`

type RitualService struct {
	db      DB
	feed    Publisher
	metrics *metrics.Metrics
}

func NewRitualService(db DB, feed Publisher, m *metrics.Metrics) *RitualService {
	return &RitualService{db: db, feed: feed, metrics: m}
}

func scanHabit(row Row) (models.HabitRow, error) {
	var h models.HabitRow
	err := row.Scan(&h.ID, &h.OwnerID, &h.Name, &h.StreakCount, &h.LastCompleted,
		&h.IsActive, &h.IsChained, &h.ChainID, &h.CreatedAt, &h.UpdatedAt)
	return h, err
}

func collectRituals(rows Rows) ([]models.Ritual, error) {
	defer rows.Close()

	result := []models.Ritual{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning ritual: %w", err)
		}
		result = append(result, rituals.FromRow(h))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rituals: %w", err)
	}
	return result, nil
}

func (s *RitualService) List(ctx context.Context, ownerID uuid.UUID) ([]models.Ritual, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE owner_id = $1 ORDER BY created_at, id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing rituals: %w", err)
	}
	return collectRituals(rows)
}

func (s *RitualService) Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Ritual, error) {
	r, err := loadOwned(ctx, s.db, ownerID, id, false)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrRitualNameRequired
	}
	if utf8.RuneCountInString(name) > maxRitualNameLength {
		return "", ErrRitualNameTooLong
	}
	return name, nil
}

func (s *RitualService) Create(ctx context.Context, ownerID uuid.UUID, name string) (*models.Ritual, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	flags := rituals.ToFlags(models.RitualStatusActive)
	h, err := scanHabit(s.db.QueryRow(ctx,
		`INSERT INTO habits (id, owner_id, name, streak_count, is_active, is_chained)
		 VALUES ($1, $2, $3, 0, $4, $5)
		 RETURNING `+habitColumns,
		uuid.New(), ownerID, name, flags.Active, flags.Chained,
	))
	if err != nil {
		return nil, fmt.Errorf("creating ritual: %w", err)
	}

	r := rituals.FromRow(h)
	publishAll(ctx, s.feed, habitChange(ChangeInsert, r))
	return &r, nil
}

// Update renames a ritual and/or changes its status. Leaving the chained
// status dissolves the ritual's chain.
func (s *RitualService) Update(ctx context.Context, ownerID, id uuid.UUID, params models.UpdateRitualParams) (*models.Ritual, error) {
	var name string
	if params.Name != nil {
		n, err := validateName(*params.Name)
		if err != nil {
			return nil, err
		}
		name = n
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, ErrInvalidStatus
	}

	var (
		result  models.Ritual
		changed []models.Ritual
	)
	err := withTx(ctx, s.db, func(tx Tx) error {
		target, err := loadOwned(ctx, tx, ownerID, id, true)
		if err != nil {
			return err
		}

		if params.Name != nil && name != target.Name {
			target.Name = name
			changed = append(changed, target)
		}

		if params.Status != nil {
			members, err := chainMembersFor(ctx, tx, target)
			if err != nil {
				return err
			}
			statusChanged, err := rituals.ChangeStatus(target, *params.Status, members)
			if err != nil {
				return translateRuleError(err)
			}
			changed = mergeChanged(changed, statusChanged)
		}

		for _, r := range changed {
			if err := writeRitual(ctx, tx, r); err != nil {
				return err
			}
		}

		result = target
		for _, r := range changed {
			if r.ID == target.ID {
				result = r
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishAll(ctx, s.feed, habitChanges(ChangeUpdate, changed)...)
	return &result, nil
}

// Unchain moves a chained ritual back to active, dissolving its chain.
func (s *RitualService) Unchain(ctx context.Context, ownerID, id uuid.UUID) (*models.Ritual, error) {
	r, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if r.Status != models.RitualStatusChained {
		return nil, ErrRitualNotChained
	}
	active := models.RitualStatusActive
	return s.Update(ctx, ownerID, id, models.UpdateRitualParams{Status: &active})
}

// Delete removes a ritual. A chain left with one member dissolves.
func (s *RitualService) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	var (
		deleted models.Ritual
		changed []models.Ritual
	)
	err := withTx(ctx, s.db, func(tx Tx) error {
		target, err := loadOwned(ctx, tx, ownerID, id, true)
		if err != nil {
			return err
		}
		members, err := chainMembersFor(ctx, tx, target)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM habits WHERE id = $1`, id); err != nil {
			return fmt.Errorf("deleting ritual: %w", err)
		}

		changed = rituals.RebalanceOnDelete(id, members)
		for _, r := range changed {
			if err := writeRitual(ctx, tx, r); err != nil {
				return err
			}
		}
		deleted = target
		return nil
	})
	if err != nil {
		return err
	}

	publishAll(ctx, s.feed, append(
		[]Change{habitChange(ChangeDelete, deleted)},
		habitChanges(ChangeUpdate, changed)...,
	)...)
	return nil
}

// Complete marks a ritual done for today, the caller's local calendar date.
func (s *RitualService) Complete(ctx context.Context, ownerID, id uuid.UUID, today time.Time) (*models.CompletionResult, error) {
	today = rituals.DateOf(today)

	var (
		result  models.CompletionResult
		changed []models.Ritual
	)
	err := withTx(ctx, s.db, func(tx Tx) error {
		target, err := loadOwned(ctx, tx, ownerID, id, true)
		if err != nil {
			return err
		}

		switch target.Status {
		case models.RitualStatusPaused:
			return ErrRitualPaused

		case models.RitualStatusChained:
			members, err := chainMembersFor(ctx, tx, target)
			if err != nil {
				return err
			}
			cc, err := rituals.CompleteInChain(members, id, today)
			if err != nil {
				return translateRuleError(err)
			}
			result.Outcome = cc.Outcome
			result.Chain = cc.Members
			for i := range cc.Members {
				if cc.Members[i].ID == id {
					m := cc.Members[i]
					result.Ritual = &m
				}
			}
			changed = cc.Changed

		default:
			progress, advanced := rituals.Complete(target, today)
			target.StreakCount = progress.StreakCount
			target.LastCompleted = progress.LastCompleted
			result.Ritual = &target
			result.Outcome = models.CompletionAlreadyDone
			if advanced {
				result.Outcome = models.CompletionAdvanced
				changed = []models.Ritual{target}
			}
		}

		for _, r := range changed {
			if err := writeRitual(ctx, tx, r); err != nil {
				return err
			}
		}
		if result.Outcome != models.CompletionAlreadyDone {
			if _, err := tx.Exec(ctx,
				`INSERT INTO habit_completions (habit_id, owner_id, completed_on)
				 VALUES ($1, $2, $3)
				 ON CONFLICT DO NOTHING`,
				id, ownerID, today,
			); err != nil {
				return fmt.Errorf("recording completion: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveCompletion(string(result.Outcome))
	publishAll(ctx, s.feed, habitChanges(ChangeUpdate, changed)...)
	return &result, nil
}

// FormChain links 2 or 3 of the owner's unchained rituals under a new chain id.
func (s *RitualService) FormChain(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]models.Ritual, error) {
	if len(ids) < rituals.MinChainSize || len(ids) > rituals.MaxChainSize {
		return nil, ErrInvalidChainSize
	}

	var chained []models.Ritual
	err := withTx(ctx, s.db, func(tx Tx) error {
		members := make([]models.Ritual, 0, len(ids))
		for _, id := range ids {
			r, err := loadOwned(ctx, tx, ownerID, id, true)
			if err != nil {
				return err
			}
			members = append(members, r)
		}

		formed, err := rituals.FormChain(members, uuid.New())
		if err != nil {
			return translateRuleError(err)
		}
		for _, r := range formed {
			if err := writeRitual(ctx, tx, r); err != nil {
				return err
			}
		}
		chained = formed
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishAll(ctx, s.feed, habitChanges(ChangeUpdate, chained)...)
	return chained, nil
}

// RecentActivity reports which days of this and last week had any completion.
func (s *RitualService) RecentActivity(ctx context.Context, ownerID uuid.UUID, today time.Time) (models.WeeklyActivity, error) {
	currentStart := rituals.WeekStart(today)
	from := currentStart.AddDate(0, 0, -7)
	to := currentStart.AddDate(0, 0, 6)

	rows, err := s.db.Query(ctx,
		`SELECT completed_on FROM habit_completions
		 WHERE owner_id = $1 AND completed_on BETWEEN $2 AND $3
		 UNION
		 SELECT last_completed FROM habits
		 WHERE owner_id = $1 AND last_completed BETWEEN $2 AND $3`,
		ownerID, from, to,
	)
	if err != nil {
		return models.WeeklyActivity{}, fmt.Errorf("querying activity: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return models.WeeklyActivity{}, fmt.Errorf("scanning activity date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return models.WeeklyActivity{}, fmt.Errorf("iterating activity: %w", err)
	}

	return rituals.RecentActivity(dates, today), nil
}

// Garden is everything a garden view shows: each ritual with its tree stage
// plus the owner's weekly activity.
func (s *RitualService) Garden(ctx context.Context, ownerID uuid.UUID, today time.Time) (*models.Garden, error) {
	list, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	activity, err := s.RecentActivity(ctx, ownerID, today)
	if err != nil {
		return nil, err
	}

	garden := &models.Garden{
		OwnerID:  ownerID,
		Rituals:  make([]models.GardenRitual, 0, len(list)),
		Activity: activity,
	}
	for _, r := range list {
		garden.Rituals = append(garden.Rituals, models.GardenRitual{Ritual: r, Stage: rituals.StageOf(r.StreakCount)})
	}
	return garden, nil
}

func loadOwned(ctx context.Context, q Querier, ownerID, id uuid.UUID, forUpdate bool) (models.Ritual, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	h, err := scanHabit(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Ritual{}, ErrRitualNotFound
	}
	if err != nil {
		return models.Ritual{}, fmt.Errorf("getting ritual: %w", err)
	}
	if h.OwnerID != ownerID {
		return models.Ritual{}, ErrNotRitualOwner
	}
	return rituals.FromRow(h), nil
}

// chainMembersFor returns every member of target's chain, target included,
// or nil when target is not chained.
func chainMembersFor(ctx context.Context, q Querier, target models.Ritual) ([]models.Ritual, error) {
	if target.Status != models.RitualStatusChained || target.ChainID == nil {
		return nil, nil
	}
	rows, err := q.Query(ctx,
		`SELECT `+habitColumns+` FROM habits
		 WHERE chain_id = $1 AND owner_id = $2
		 ORDER BY created_at, id
		 FOR UPDATE`,
		*target.ChainID, target.OwnerID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading chain: %w", err)
	}
	members, err := collectRituals(rows)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if members[i].ID == target.ID {
			members[i] = target
			return members, nil
		}
	}
	return append(members, target), nil
}

func writeRitual(ctx context.Context, q Querier, r models.Ritual) error {
	row := rituals.ToRow(r)
	_, err := q.Exec(ctx,
		`UPDATE habits
		 SET name = $2, streak_count = $3, last_completed = $4,
		     is_active = $5, is_chained = $6, chain_id = $7, updated_at = NOW()
		 WHERE id = $1`,
		row.ID, row.Name, row.StreakCount, row.LastCompleted, row.IsActive, row.IsChained, row.ChainID,
	)
	if err != nil {
		return fmt.Errorf("updating ritual: %w", err)
	}
	return nil
}

// mergeChanged folds b into a, later entries replacing earlier ones by id.
func mergeChanged(a, b []models.Ritual) []models.Ritual {
	for _, r := range b {
		replaced := false
		for i := range a {
			if a[i].ID == r.ID {
				a[i] = r
				replaced = true
			}
		}
		if !replaced {
			a = append(a, r)
		}
	}
	return a
}

func translateRuleError(err error) error {
	switch {
	case errors.Is(err, rituals.ErrInvalidChainSize):
		return ErrInvalidChainSize
	case errors.Is(err, rituals.ErrAlreadyChained):
		return ErrRitualChained
	case errors.Is(err, rituals.ErrDuplicateRitual):
		return ErrDuplicateRitual
	case errors.Is(err, rituals.ErrInvalidStatus):
		return ErrInvalidStatus
	case errors.Is(err, rituals.ErrStatusRequiresChain):
		return ErrStatusNeedsChain
	case errors.Is(err, rituals.ErrNotChainMember):
		return ErrRitualNotFound
	}
	return err
}

func habitChange(op ChangeOp, r models.Ritual) Change {
	return Change{Table: TableHabits, Op: op, RowID: r.ID, OwnerID: r.OwnerID}
}

func habitChanges(op ChangeOp, rs []models.Ritual) []Change {
	changes := make([]Change, 0, len(rs))
	for _, r := range rs {
		changes = append(changes, habitChange(op, r))
	}
	return changes
}
