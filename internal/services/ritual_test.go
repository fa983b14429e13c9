package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/HammerMeetNail/roots/internal/metrics"
	"github.com/HammerMeetNail/roots/internal/models"
)

func habitValues(h models.HabitRow) []any {
	return []any{h.ID, h.OwnerID, h.Name, h.StreakCount, h.LastCompleted, h.IsActive, h.IsChained, h.ChainID, h.CreatedAt, h.UpdatedAt}
}

// habitStore backs a fakeTx with an in-memory habits table.
type habitStore struct {
	rows        map[uuid.UUID]models.HabitRow
	order       []uuid.UUID
	updates     []models.HabitRow
	deleted     []uuid.UUID
	completions []time.Time
}

func newHabitStore(rows ...models.HabitRow) *habitStore {
	s := &habitStore{rows: map[uuid.UUID]models.HabitRow{}}
	for _, r := range rows {
		s.rows[r.ID] = r
		s.order = append(s.order, r.ID)
	}
	return s
}

func (s *habitStore) tx(t *testing.T) *fakeTx {
	t.Helper()
	return &fakeTx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			h, ok := s.rows[args[0].(uuid.UUID)]
			if !ok {
				return errRow(pgx.ErrNoRows)
			}
			return rowFromValues(habitValues(h)...)
		},
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			if !strings.Contains(sql, "chain_id = $1") {
				t.Fatalf("unexpected query: %q", sql)
			}
			chainID := args[0].(uuid.UUID)
			out := &fakeRows{}
			for _, id := range s.order {
				h, ok := s.rows[id]
				if ok && h.ChainID != nil && *h.ChainID == chainID {
					out.rows = append(out.rows, habitValues(h))
				}
			}
			return out, nil
		},
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			switch {
			case strings.HasPrefix(strings.TrimSpace(sql), "UPDATE habits"):
				h := s.rows[args[0].(uuid.UUID)]
				h.Name = args[1].(string)
				h.StreakCount = args[2].(int)
				h.LastCompleted = args[3].(*time.Time)
				h.IsActive = args[4].(bool)
				h.IsChained = args[5].(bool)
				h.ChainID = args[6].(*uuid.UUID)
				s.rows[h.ID] = h
				s.updates = append(s.updates, h)
			case strings.HasPrefix(strings.TrimSpace(sql), "DELETE FROM habits"):
				id := args[0].(uuid.UUID)
				delete(s.rows, id)
				s.deleted = append(s.deleted, id)
			case strings.Contains(sql, "INSERT INTO habit_completions"):
				s.completions = append(s.completions, args[2].(time.Time))
			default:
				t.Fatalf("unexpected exec: %q", sql)
			}
			return fakeCommandTag{rowsAffected: 1}, nil
		},
	}
}

func habit(owner uuid.UUID, streak int) models.HabitRow {
	return models.HabitRow{ID: uuid.New(), OwnerID: owner, Name: "Meditate", StreakCount: streak, IsActive: true}
}

func chainedHabits(owner uuid.UUID, streak, n int) []models.HabitRow {
	chainID := uuid.New()
	out := make([]models.HabitRow, n)
	for i := range out {
		id := chainID
		out[i] = models.HabitRow{ID: uuid.New(), OwnerID: owner, Name: "Linked", StreakCount: streak, IsChained: true, ChainID: &id}
	}
	return out
}

var wed = time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC)

func TestRitualService_List(t *testing.T) {
	owner := uuid.New()
	chain := chainedHabits(owner, 2, 1)[0]
	paused := habit(owner, 0)
	paused.IsActive = false

	db := &fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			return &fakeRows{rows: [][]any{habitValues(chain), habitValues(paused)}}, nil
		},
	}

	list, err := NewRitualService(db, nil, nil).List(context.Background(), owner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 rituals, got %d", len(list))
	}
	if list[0].Status != models.RitualStatusChained || list[0].ChainID == nil {
		t.Fatalf("expected chained ritual with chain id, got %+v", list[0])
	}
	if list[1].Status != models.RitualStatusPaused {
		t.Fatalf("expected paused ritual, got %s", list[1].Status)
	}
}

func TestRitualService_List_Empty(t *testing.T) {
	db := &fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			return &fakeRows{}, nil
		},
	}
	list, err := NewRitualService(db, nil, nil).List(context.Background(), uuid.New())
	if err != nil || list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %v, %v", list, err)
	}
}

func TestRitualService_Get_NotFoundAndOwnership(t *testing.T) {
	owner := uuid.New()
	h := habit(owner, 1)
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if args[0].(uuid.UUID) == h.ID {
				return rowFromValues(habitValues(h)...)
			}
			return errRow(pgx.ErrNoRows)
		},
	}
	svc := NewRitualService(db, nil, nil)

	if _, err := svc.Get(context.Background(), owner, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Get(context.Background(), uuid.New(), h.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	r, err := svc.Get(context.Background(), owner, h.ID)
	if err != nil || r.ID != h.ID {
		t.Fatalf("expected ritual, got %+v, %v", r, err)
	}
}

func TestRitualService_Create(t *testing.T) {
	owner := uuid.New()
	pub := &recordingPublisher{}
	var gotName string
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			gotName = args[2].(string)
			if args[3] != true || args[4] != false {
				t.Fatalf("expected active flags, got %v %v", args[3], args[4])
			}
			h := models.HabitRow{ID: args[0].(uuid.UUID), OwnerID: owner, Name: gotName, IsActive: true}
			return rowFromValues(habitValues(h)...)
		},
	}

	r, err := NewRitualService(db, pub, nil).Create(context.Background(), owner, "  Read  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotName != "Read" || r.Name != "Read" {
		t.Fatalf("expected trimmed name, got %q", gotName)
	}
	if r.Status != models.RitualStatusActive || r.StreakCount != 0 {
		t.Fatalf("unexpected new ritual: %+v", r)
	}
	changes := pub.published()
	if len(changes) != 1 || changes[0].Op != ChangeInsert || changes[0].OwnerID != owner {
		t.Fatalf("expected insert change, got %+v", changes)
	}
}

func TestRitualService_Create_InvalidName(t *testing.T) {
	svc := NewRitualService(&fakeDB{}, nil, nil)
	if _, err := svc.Create(context.Background(), uuid.New(), "   "); !errors.Is(err, ErrRitualNameRequired) {
		t.Fatalf("expected ErrRitualNameRequired, got %v", err)
	}
	if _, err := svc.Create(context.Background(), uuid.New(), strings.Repeat("x", 101)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected invalid error, got %v", err)
	}
}

func TestRitualService_Complete_Standalone(t *testing.T) {
	owner := uuid.New()
	h := habit(owner, 4)
	store := newHabitStore(h)
	tx := store.tx(t)
	m := metrics.New()
	pub := &recordingPublisher{}
	svc := NewRitualService(dbWithTx(tx), pub, m)

	res, err := svc.Complete(context.Background(), owner, h.ID, wed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != models.CompletionAdvanced || res.Ritual.StreakCount != 5 {
		t.Fatalf("expected advance to 5, got %+v", res)
	}
	if !tx.committed {
		t.Fatal("expected commit")
	}
	if len(store.completions) != 1 || !store.completions[0].Equal(wed) {
		t.Fatalf("expected completion logged for %v, got %v", wed, store.completions)
	}
	if len(pub.published()) != 1 {
		t.Fatalf("expected one change, got %d", len(pub.published()))
	}

	again, err := svc.Complete(context.Background(), owner, h.ID, wed.Add(20*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Outcome != models.CompletionAlreadyDone || again.Ritual.StreakCount != 5 {
		t.Fatalf("expected idempotent completion, got %+v", again)
	}
	if len(store.updates) != 1 || len(store.completions) != 1 {
		t.Fatalf("expected no further writes, got %d updates %d completions", len(store.updates), len(store.completions))
	}

	if got := testutil.ToFloat64(m.RitualCompletions.WithLabelValues("advanced")); got != 1 {
		t.Fatalf("expected 1 advanced metric, got %v", got)
	}
	if got := testutil.ToFloat64(m.RitualCompletions.WithLabelValues("already_done")); got != 1 {
		t.Fatalf("expected 1 already_done metric, got %v", got)
	}
}

func TestRitualService_Complete_ConsecutiveDays(t *testing.T) {
	owner := uuid.New()
	h := habit(owner, 0)
	store := newHabitStore(h)
	svc := NewRitualService(dbWithTx(store.tx(t)), nil, nil)

	for i := 0; i < 3; i++ {
		res, err := svc.Complete(context.Background(), owner, h.ID, wed.AddDate(0, 0, i))
		if err != nil {
			t.Fatalf("day %d: unexpected error: %v", i, err)
		}
		if res.Ritual.StreakCount != i+1 {
			t.Fatalf("day %d: expected streak %d, got %d", i, i+1, res.Ritual.StreakCount)
		}
	}
}

func TestRitualService_Complete_Paused(t *testing.T) {
	owner := uuid.New()
	h := habit(owner, 2)
	h.IsActive = false
	tx := newHabitStore(h).tx(t)

	_, err := NewRitualService(dbWithTx(tx), nil, nil).Complete(context.Background(), owner, h.ID, wed)
	if !errors.Is(err, ErrRitualPaused) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrRitualPaused, got %v", err)
	}
	if !tx.rolledBack || tx.committed {
		t.Fatal("expected rollback without commit")
	}
}

func TestRitualService_Complete_ChainPendingThenAdvanced(t *testing.T) {
	owner := uuid.New()
	members := chainedHabits(owner, 3, 2)
	store := newHabitStore(members...)
	pub := &recordingPublisher{}
	svc := NewRitualService(dbWithTx(store.tx(t)), pub, nil)

	first, err := svc.Complete(context.Background(), owner, members[1].ID, wed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Outcome != models.CompletionChainPending {
		t.Fatalf("expected chain_pending, got %s", first.Outcome)
	}
	for _, m := range first.Chain {
		if m.StreakCount != 3 {
			t.Fatalf("expected streaks untouched, got %d", m.StreakCount)
		}
	}
	if len(store.completions) != 1 {
		t.Fatalf("expected completion logged for the member, got %d", len(store.completions))
	}

	second, err := svc.Complete(context.Background(), owner, members[0].ID, wed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Outcome != models.CompletionAdvanced {
		t.Fatalf("expected advanced, got %s", second.Outcome)
	}
	for _, id := range []uuid.UUID{members[0].ID, members[1].ID} {
		if got := store.rows[id].StreakCount; got != 4 {
			t.Fatalf("expected stored streak 4, got %d", got)
		}
	}
	if len(pub.published()) != 3 {
		t.Fatalf("expected 1+2 change events, got %d", len(pub.published()))
	}
}

func TestRitualService_FormChain_InvalidSize(t *testing.T) {
	db := &fakeDB{BeginFunc: func(ctx context.Context) (Tx, error) {
		t.Fatal("size must be checked before touching the database")
		return nil, nil
	}}
	svc := NewRitualService(db, nil, nil)

	for _, n := range []int{0, 1, 4, 5} {
		ids := make([]uuid.UUID, n)
		for i := range ids {
			ids[i] = uuid.New()
		}
		if _, err := svc.FormChain(context.Background(), uuid.New(), ids); !errors.Is(err, ErrInvalidChainSize) {
			t.Fatalf("size %d: expected ErrInvalidChainSize, got %v", n, err)
		}
	}
}

func TestRitualService_FormChain(t *testing.T) {
	owner := uuid.New()
	a, b := habit(owner, 1), habit(owner, 6)
	b.IsActive = false
	store := newHabitStore(a, b)
	tx := store.tx(t)

	chained, err := NewRitualService(dbWithTx(tx), nil, nil).FormChain(context.Background(), owner, []uuid.UUID{a.ID, b.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chained) != 2 || !tx.committed {
		t.Fatalf("expected two chained rituals and a commit, got %d", len(chained))
	}
	ra, rb := store.rows[a.ID], store.rows[b.ID]
	if !ra.IsChained || !rb.IsChained || ra.IsActive || rb.IsActive {
		t.Fatalf("expected chained flags, got %+v %+v", ra, rb)
	}
	if ra.ChainID == nil || rb.ChainID == nil || *ra.ChainID != *rb.ChainID {
		t.Fatal("expected a shared chain id")
	}
}

func TestRitualService_FormChain_AlreadyChained(t *testing.T) {
	owner := uuid.New()
	a := habit(owner, 1)
	b := chainedHabits(owner, 1, 1)[0]
	tx := newHabitStore(a, b).tx(t)

	_, err := NewRitualService(dbWithTx(tx), nil, nil).FormChain(context.Background(), owner, []uuid.UUID{a.ID, b.ID})
	if !errors.Is(err, ErrRitualChained) {
		t.Fatalf("expected ErrRitualChained, got %v", err)
	}
	if !tx.rolledBack {
		t.Fatal("expected rollback")
	}
}

func TestRitualService_FormChain_ForeignRitual(t *testing.T) {
	owner := uuid.New()
	a, b := habit(owner, 1), habit(uuid.New(), 1)
	tx := newHabitStore(a, b).tx(t)

	_, err := NewRitualService(dbWithTx(tx), nil, nil).FormChain(context.Background(), owner, []uuid.UUID{a.ID, b.ID})
	if !errors.Is(err, ErrNotRitualOwner) {
		t.Fatalf("expected ErrNotRitualOwner, got %v", err)
	}
}

func TestRitualService_Delete_TwoMemberChainDissolves(t *testing.T) {
	owner := uuid.New()
	members := chainedHabits(owner, 5, 2)
	store := newHabitStore(members...)
	pub := &recordingPublisher{}

	if err := NewRitualService(dbWithTx(store.tx(t)), pub, nil).Delete(context.Background(), owner, members[0].ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	survivor := store.rows[members[1].ID]
	if survivor.IsChained || !survivor.IsActive || survivor.ChainID != nil {
		t.Fatalf("expected standalone active survivor, got %+v", survivor)
	}
	if survivor.StreakCount != 5 {
		t.Fatalf("expected survivor to keep its streak, got %d", survivor.StreakCount)
	}
	changes := pub.published()
	if len(changes) != 2 || changes[0].Op != ChangeDelete || changes[1].Op != ChangeUpdate {
		t.Fatalf("expected delete then update events, got %+v", changes)
	}
}

func TestRitualService_Delete_ThreeMemberChainKeepsOthers(t *testing.T) {
	owner := uuid.New()
	members := chainedHabits(owner, 2, 3)
	store := newHabitStore(members...)

	if err := NewRitualService(dbWithTx(store.tx(t)), nil, nil).Delete(context.Background(), owner, members[2].ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.updates) != 0 {
		t.Fatalf("expected remaining members untouched, got %d updates", len(store.updates))
	}
	for _, m := range members[:2] {
		if !store.rows[m.ID].IsChained {
			t.Fatal("expected remaining members to stay chained")
		}
	}
}

func TestRitualService_Update_StatusDissolvesChain(t *testing.T) {
	owner := uuid.New()
	members := chainedHabits(owner, 2, 3)
	store := newHabitStore(members...)
	paused := models.RitualStatusPaused

	r, err := NewRitualService(dbWithTx(store.tx(t)), nil, nil).Update(context.Background(), owner, members[0].ID, models.UpdateRitualParams{Status: &paused})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Status != models.RitualStatusPaused || r.ChainID != nil {
		t.Fatalf("expected paused target, got %+v", r)
	}
	for _, m := range members[1:] {
		row := store.rows[m.ID]
		if row.IsChained || !row.IsActive || row.ChainID != nil {
			t.Fatalf("expected other members standalone active, got %+v", row)
		}
	}
}

func TestRitualService_Update_RenameAndPause(t *testing.T) {
	owner := uuid.New()
	h := habit(owner, 1)
	store := newHabitStore(h)
	name := " Journal "
	paused := models.RitualStatusPaused

	r, err := NewRitualService(dbWithTx(store.tx(t)), nil, nil).Update(context.Background(), owner, h.ID, models.UpdateRitualParams{Name: &name, Status: &paused})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Name != "Journal" || r.Status != models.RitualStatusPaused {
		t.Fatalf("unexpected ritual: %+v", r)
	}
	if len(store.updates) != 1 {
		t.Fatalf("expected a single write, got %d", len(store.updates))
	}
}

func TestRitualService_Update_CannotChainDirectly(t *testing.T) {
	owner := uuid.New()
	h := habit(owner, 1)
	chained := models.RitualStatusChained

	_, err := NewRitualService(dbWithTx(newHabitStore(h).tx(t)), nil, nil).Update(context.Background(), owner, h.ID, models.UpdateRitualParams{Status: &chained})
	if !errors.Is(err, ErrStatusNeedsChain) {
		t.Fatalf("expected ErrStatusNeedsChain, got %v", err)
	}
}

func TestRitualService_Unchain(t *testing.T) {
	owner := uuid.New()
	members := chainedHabits(owner, 1, 2)
	solo := habit(owner, 0)
	store := newHabitStore(append(members, solo)...)
	tx := store.tx(t)
	db := dbWithTx(tx)
	db.QueryRowFunc = tx.QueryRowFunc
	svc := NewRitualService(db, nil, nil)

	if _, err := svc.Unchain(context.Background(), owner, solo.ID); !errors.Is(err, ErrRitualNotChained) {
		t.Fatalf("expected ErrRitualNotChained, got %v", err)
	}

	r, err := svc.Unchain(context.Background(), owner, members[0].ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Status != models.RitualStatusActive {
		t.Fatalf("expected active, got %s", r.Status)
	}
	if store.rows[members[1].ID].IsChained {
		t.Fatal("expected the other member to leave the chain")
	}
}

func TestRitualService_Garden(t *testing.T) {
	owner := uuid.New()
	young := habit(owner, 9)
	fruit := habit(owner, 50)
	db := &fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			if strings.Contains(sql, "habit_completions") {
				if from := args[1].(time.Time); !from.Equal(time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)) {
					t.Fatalf("expected window from last Sunday, got %v", from)
				}
				return &fakeRows{rows: [][]any{{wed}, {wed.AddDate(0, 0, -8)}}}, nil
			}
			return &fakeRows{rows: [][]any{habitValues(young), habitValues(fruit)}}, nil
		},
	}

	garden, err := NewRitualService(db, nil, nil).Garden(context.Background(), owner, wed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if garden.Rituals[0].Stage != models.TreeStageYoung || garden.Rituals[1].Stage != models.TreeStageFruit {
		t.Fatalf("unexpected stages: %s %s", garden.Rituals[0].Stage, garden.Rituals[1].Stage)
	}
	if !garden.Activity.CurrentWeek[3] || !garden.Activity.LastWeek[2] {
		t.Fatalf("unexpected activity: %+v", garden.Activity)
	}
}

func TestRitualService_RecentActivity_QueryError(t *testing.T) {
	db := &fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			return nil, errors.New("boom")
		},
	}
	if _, err := NewRitualService(db, nil, nil).RecentActivity(context.Background(), uuid.New(), wed); err == nil {
		t.Fatal("expected error")
	}
}
