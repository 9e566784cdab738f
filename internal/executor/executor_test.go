package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"adoptiq/internal/catalog"
	"adoptiq/internal/fault"
	"adoptiq/internal/query"
)

type mockStore struct {
	rows   []Row
	counts map[string]int
	err    error
	delay  time.Duration

	gotTake int
}

func (m *mockStore) FindMany(ctx context.Context, d query.Descriptor) ([]Row, error) {
	m.gotTake = d.Args.Take
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	n := d.Args.Take
	if n > len(m.rows) || n <= 0 {
		n = len(m.rows)
	}
	return m.rows[:n], nil
}

func (m *mockStore) FindFirst(ctx context.Context, d query.Descriptor) (Row, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.rows) == 0 {
		return nil, nil
	}
	return m.rows[0], nil
}

func (m *mockStore) FindUnique(ctx context.Context, d query.Descriptor) (Row, error) {
	return m.FindFirst(ctx, d)
}

func (m *mockStore) Count(ctx context.Context, d query.Descriptor) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	n, ok := m.counts[d.Model]
	if !ok {
		return 0, errors.New("no count")
	}
	return n, nil
}

func makeRows(n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{"id": i, "name": "row"}
	}
	return rows
}

func newExecutor(store Store, maxRows int, timeout time.Duration) *Executor {
	return New(store, catalog.New(), maxRows, timeout, nil)
}

func TestExecuteFindMany(t *testing.T) {
	store := &mockStore{rows: makeRows(3)}
	e := newExecutor(store, 100, time.Second)

	res, err := e.Execute(context.Background(), query.Descriptor{Model: "product", Op: query.FindMany})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.RowCount != 3 || res.Truncated {
		t.Errorf("got %d rows, truncated=%v", res.RowCount, res.Truncated)
	}
	if store.gotTake != 101 {
		t.Errorf("expected take maxRows+1=101, got %d", store.gotTake)
	}
}

func TestExecuteTruncatesAtCap(t *testing.T) {
	store := &mockStore{rows: makeRows(11)}
	e := newExecutor(store, 10, time.Second)

	res, err := e.Execute(context.Background(), query.Descriptor{Model: "product", Op: query.FindMany})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.RowCount != 10 || !res.Truncated {
		t.Errorf("got %d rows, truncated=%v", res.RowCount, res.Truncated)
	}
}

func TestExecuteRespectsSmallerTake(t *testing.T) {
	store := &mockStore{rows: makeRows(50)}
	e := newExecutor(store, 100, time.Second)

	d := query.Descriptor{Model: "product", Op: query.FindMany, Args: query.Args{Take: 5}}
	res, err := e.Execute(context.Background(), d)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.RowCount != 5 || !res.Truncated {
		t.Errorf("got %d rows, truncated=%v", res.RowCount, res.Truncated)
	}
}

func TestExecuteRejectsInvalidDescriptor(t *testing.T) {
	e := newExecutor(&mockStore{}, 100, time.Second)

	_, err := e.Execute(context.Background(), query.Descriptor{Model: "invoice", Op: query.FindMany})
	var fe *fault.Error
	if !errors.As(err, &fe) || fe.Type != fault.Validation {
		t.Fatalf("expected validation fault, got %v", err)
	}
}

func TestExecuteSanitizesStoreErrors(t *testing.T) {
	store := &mockStore{err: errors.New(`near "DROP": syntax error in table products`)}
	e := newExecutor(store, 100, time.Second)

	_, err := e.Execute(context.Background(), query.Descriptor{Model: "product", Op: query.FindMany})
	var fe *fault.Error
	if !errors.As(err, &fe) || fe.Type != fault.Persistence {
		t.Fatalf("expected persistence fault, got %v", err)
	}
	if fe.Message != "database query failed" {
		t.Errorf("store detail leaked into message: %q", fe.Message)
	}
}

func TestExecuteTimesOut(t *testing.T) {
	store := &mockStore{rows: makeRows(1), delay: 200 * time.Millisecond}
	e := newExecutor(store, 100, 20*time.Millisecond)

	_, err := e.Execute(context.Background(), query.Descriptor{Model: "product", Op: query.FindMany})
	var fe *fault.Error
	if !errors.As(err, &fe) || fe.Type != fault.Timeout {
		t.Fatalf("expected timeout fault, got %v", err)
	}
}

func TestExecuteCount(t *testing.T) {
	store := &mockStore{counts: map[string]int{"customer": 7}}
	e := newExecutor(store, 100, time.Second)

	res, err := e.Execute(context.Background(), query.Descriptor{Model: "customer", Op: query.Count})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Data != 7 {
		t.Errorf("got %v, want 7", res.Data)
	}
}

func TestExecuteAggregatePartialFailure(t *testing.T) {
	store := &mockStore{counts: map[string]int{"product": 4, "customer": 2}}
	e := newExecutor(store, 100, time.Second)

	d := query.Descriptor{
		Op:   query.Aggregate,
		Args: query.Args{Models: []string{"product", "customer", "task"}},
	}
	res, err := e.Execute(context.Background(), d)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	counts, ok := res.Data.(map[string]int)
	if !ok {
		t.Fatalf("unexpected data type %T", res.Data)
	}
	if counts["product"] != 4 || counts["customer"] != 2 {
		t.Errorf("unexpected counts: %v", counts)
	}
	if counts["task"] != -1 {
		t.Errorf("failed count should report -1, got %d", counts["task"])
	}
}

func TestExecuteFindFirstEmpty(t *testing.T) {
	e := newExecutor(&mockStore{}, 100, time.Second)

	res, err := e.Execute(context.Background(), query.Descriptor{Model: "product", Op: query.FindFirst})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.RowCount != 0 || res.Data != nil {
		t.Errorf("expected empty result, got %+v", res)
	}
}
