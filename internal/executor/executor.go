// Package executor runs validated query descriptors against the store
// with a row cap, a hard timeout, and sanitized failures. It is the
// only stage that touches the database.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"adoptiq/internal/catalog"
	"adoptiq/internal/fault"
	"adoptiq/internal/query"
)

// Row is one result record with camelCase field names.
type Row = map[string]any

// Store is the read surface the executor drives.
type Store interface {
	FindMany(ctx context.Context, d query.Descriptor) ([]Row, error)
	FindFirst(ctx context.Context, d query.Descriptor) (Row, error)
	FindUnique(ctx context.Context, d query.Descriptor) (Row, error)
	Count(ctx context.Context, d query.Descriptor) (int, error)
}

// Result is the outcome of one execution.
type Result struct {
	Data          any
	RowCount      int
	Truncated     bool
	ExecutionTime time.Duration
}

// Executor enforces execution policy around the store.
type Executor struct {
	store   Store
	catalog *catalog.Catalog
	maxRows int
	timeout time.Duration
	log     *slog.Logger
}

// New builds an Executor.
func New(store Store, cat *catalog.Catalog, maxRows int, timeout time.Duration, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		store:   store,
		catalog: cat,
		maxRows: maxRows,
		timeout: timeout,
		log:     log,
	}
}

// Execute validates and runs a descriptor. The query runs under a
// timeout context that actually cancels the underlying statement when
// the deadline fires. List queries fetch one row past the cap to
// detect truncation without a second query.
func (e *Executor) Execute(ctx context.Context, d query.Descriptor) (Result, error) {
	if err := e.catalog.Validate(d); err != nil {
		return Result{}, fault.Wrap(fault.Validation, "query failed validation", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	result, err := e.run(ctx, d)
	elapsed := time.Since(start)
	result.ExecutionTime = elapsed

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			e.log.Warn("query timed out", "descriptor", d.String(), "timeout", e.timeout)
			return Result{ExecutionTime: elapsed}, fault.New(fault.Timeout,
				fmt.Sprintf("query exceeded %s timeout", e.timeout))
		}
		// Store errors can leak table names and SQL fragments; log the
		// detail and return a generic persistence fault.
		e.log.Error("query execution failed", "descriptor", d.String(), "error", err)
		return Result{ExecutionTime: elapsed}, fault.New(fault.Persistence, "database query failed")
	}

	e.log.Debug("query executed",
		"descriptor", d.String(),
		"rows", result.RowCount,
		"truncated", result.Truncated,
		"duration", elapsed)
	return result, nil
}

func (e *Executor) run(ctx context.Context, d query.Descriptor) (Result, error) {
	switch d.Op {
	case query.FindMany:
		return e.findMany(ctx, d)
	case query.FindFirst:
		row, err := e.store.FindFirst(ctx, d)
		if err != nil {
			return Result{}, err
		}
		return singleResult(row), nil
	case query.FindUnique:
		row, err := e.store.FindUnique(ctx, d)
		if err != nil {
			return Result{}, err
		}
		return singleResult(row), nil
	case query.Count:
		n, err := e.store.Count(ctx, d)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: n, RowCount: 1}, nil
	case query.Aggregate:
		return e.aggregate(ctx, d)
	}
	return Result{}, fmt.Errorf("unsupported operation %q", d.Op)
}

func (e *Executor) findMany(ctx context.Context, d query.Descriptor) (Result, error) {
	limit := d.Args.Take
	if limit <= 0 || limit > e.maxRows {
		limit = e.maxRows
	}
	d.Args.Take = limit + 1

	rows, err := e.store.FindMany(ctx, d)
	if err != nil {
		return Result{}, err
	}

	truncated := len(rows) > limit
	if truncated {
		rows = rows[:limit]
	}
	return Result{Data: rows, RowCount: len(rows), Truncated: truncated}, nil
}

func singleResult(row Row) Result {
	if row == nil {
		return Result{}
	}
	return Result{Data: row, RowCount: 1}
}

// aggregate counts each model concurrently. A failed count reports -1
// for that model instead of failing the whole answer.
func (e *Executor) aggregate(ctx context.Context, d query.Descriptor) (Result, error) {
	models := d.Args.Models
	if len(models) == 0 {
		models = e.catalog.Models()
	}

	counts := make(map[string]int, len(models))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, model := range models {
		g.Go(func() error {
			n, err := e.store.Count(gctx, query.Descriptor{Model: model, Op: query.Count})
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				e.log.Warn("aggregate count failed", "model", model, "error", err)
				n = -1
			}
			mu.Lock()
			counts[model] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	return Result{Data: counts, RowCount: len(counts)}, nil
}
