package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"
)

type fakeCommandTag struct {
	rowsAffected int64
}

func (f fakeCommandTag) RowsAffected() int64 { return f.rowsAffected }

type fakeRow struct {
	scanFunc func(dest ...any) error
}

func (f fakeRow) Scan(dest ...any) error {
	if f.scanFunc == nil {
		return errors.New("scan not configured")
	}
	return f.scanFunc(dest...)
}

func rowFromValues(values ...any) fakeRow {
	return fakeRow{scanFunc: func(dest ...any) error {
		return assignValues(dest, values)
	}}
}

func errRow(err error) fakeRow {
	return fakeRow{scanFunc: func(dest ...any) error { return err }}
}

// assignValues copies values into scan destinations. nil zeroes the target,
// a T fills a *T target, and named types convert from their underlying type.
func assignValues(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d)
		if target.Kind() != reflect.Ptr || target.IsNil() {
			return fmt.Errorf("scan: destination %d is not a pointer", i)
		}
		elem := target.Elem()
		if values[i] == nil {
			elem.Set(reflect.Zero(elem.Type()))
			continue
		}
		v := reflect.ValueOf(values[i])
		switch {
		case v.Type().AssignableTo(elem.Type()):
			elem.Set(v)
		case elem.Kind() == reflect.Ptr && v.Type().AssignableTo(elem.Type().Elem()):
			p := reflect.New(elem.Type().Elem())
			p.Elem().Set(v)
			elem.Set(p)
		case elem.Kind() == reflect.Ptr && v.Type().ConvertibleTo(elem.Type().Elem()):
			p := reflect.New(elem.Type().Elem())
			p.Elem().Set(v.Convert(elem.Type().Elem()))
			elem.Set(p)
		case v.Type().ConvertibleTo(elem.Type()):
			elem.Set(v.Convert(elem.Type()))
		default:
			return fmt.Errorf("scan: cannot assign %T to %s", values[i], elem.Type())
		}
	}
	return nil
}

type fakeRows struct {
	rows    [][]any
	idx     int
	err     error
	scanErr error
	closed  bool
}

func (f *fakeRows) Close() { f.closed = true }

func (f *fakeRows) Err() error { return f.err }

func (f *fakeRows) Next() bool {
	if f.idx >= len(f.rows) {
		return false
	}
	f.idx++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	if f.scanErr != nil {
		return f.scanErr
	}
	if f.idx == 0 || f.idx > len(f.rows) {
		return errors.New("scan called without row")
	}
	return assignValues(dest, f.rows[f.idx-1])
}

type fakeDB struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) Row
	BeginFunc    func(ctx context.Context) (Tx, error)
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	if f.ExecFunc == nil {
		return fakeCommandTag{}, errors.New("unexpected Exec")
	}
	return f.ExecFunc(ctx, sql, args...)
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if f.QueryFunc == nil {
		return nil, errors.New("unexpected Query")
	}
	return f.QueryFunc(ctx, sql, args...)
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) Row {
	if f.QueryRowFunc == nil {
		return errRow(errors.New("unexpected QueryRow"))
	}
	return f.QueryRowFunc(ctx, sql, args...)
}

func (f *fakeDB) Begin(ctx context.Context) (Tx, error) {
	if f.BeginFunc == nil {
		return nil, errors.New("unexpected Begin")
	}
	return f.BeginFunc(ctx)
}

type fakeTx struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) Row
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error

	committed  bool
	rolledBack bool
}

func (f *fakeTx) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	if f.ExecFunc == nil {
		return fakeCommandTag{}, errors.New("unexpected Exec")
	}
	return f.ExecFunc(ctx, sql, args...)
}

func (f *fakeTx) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if f.QueryFunc == nil {
		return nil, errors.New("unexpected Query")
	}
	return f.QueryFunc(ctx, sql, args...)
}

func (f *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) Row {
	if f.QueryRowFunc == nil {
		return errRow(errors.New("unexpected QueryRow"))
	}
	return f.QueryRowFunc(ctx, sql, args...)
}

func (f *fakeTx) Commit(ctx context.Context) error {
	f.committed = true
	if f.CommitFunc != nil {
		return f.CommitFunc(ctx)
	}
	return nil
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	f.rolledBack = true
	if f.RollbackFunc != nil {
		return f.RollbackFunc(ctx)
	}
	return nil
}

// dbWithTx returns a fakeDB whose Begin hands out tx.
func dbWithTx(tx *fakeTx) *fakeDB {
	return &fakeDB{BeginFunc: func(ctx context.Context) (Tx, error) { return tx, nil }}
}

type fakeRedis struct {
	setErr      error
	getValue    string
	getErr      error
	getDelay    time.Duration
	expireErr   error
	delErr      error
	setCalls    int
	getCalls    int
	expireCalls int
	delCalls    int
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	f.setCalls++
	return f.setErr
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	f.getCalls++
	if f.getDelay > 0 {
		select {
		case <-time.After(f.getDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.getValue, f.getErr
}

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	f.expireCalls++
	return f.expireErr
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) error {
	f.delCalls += len(keys)
	return f.delErr
}

// recordingPublisher captures published changes.
type recordingPublisher struct {
	mu      sync.Mutex
	changes []Change
	err     error
}

func (p *recordingPublisher) Publish(ctx context.Context, change Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, change)
	return p.err
}

func (p *recordingPublisher) published() []Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Change, len(p.changes))
	copy(out, p.changes)
	return out
}
