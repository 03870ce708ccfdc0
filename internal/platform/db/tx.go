package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/hospital/internal/platform/apperr"
)

type contextKey string

const (
	DBConnKey contextKey = "db_conn"
	DBTxKey   contextKey = "db_tx"

	rollbackHooksKey contextKey = "db_rollback_hooks"
)

// ConnFromContext retrieves the request-scoped database connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// TxFromContext retrieves the active transaction from context, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// WithTx begins a transaction on the connection stored in ctx and returns a
// derived context carrying it.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	conn := ConnFromContext(ctx)
	if conn == nil {
		return ctx, nil, errors.New("no database connection in context")
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		return ctx, nil, err
	}
	return context.WithValue(ctx, DBTxKey, tx), tx, nil
}

// RollbackHooks collects cleanups for side effects outside the database,
// such as stored attachments, that must be undone when a transaction does
// not commit.
type RollbackHooks struct {
	mu  sync.Mutex
	fns []func()
}

// WithRollbackHooks returns a context that collects OnRollback cleanups.
func WithRollbackHooks(ctx context.Context) (context.Context, *RollbackHooks) {
	h := &RollbackHooks{}
	return context.WithValue(ctx, rollbackHooksKey, h), h
}

// OnRollback registers fn with the unit of work in ctx. It reports false when
// ctx carries none, in which case the caller owns the cleanup.
func OnRollback(ctx context.Context, fn func()) bool {
	h, _ := ctx.Value(rollbackHooksKey).(*RollbackHooks)
	if h == nil {
		return false
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
	return true
}

// Run calls the registered cleanups in reverse order.
func (h *RollbackHooks) Run() {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

// RunInTx executes fn inside a transaction. If ctx already carries a
// transaction fn joins it; otherwise a new one is started on the pool.
func RunInTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	txCtx, hooks := WithRollbackHooks(context.WithValue(ctx, DBTxKey, tx))
	if err := fn(txCtx); err != nil {
		hooks.Run()
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		hooks.Run()
		return err
	}
	return nil
}

// RunReadOnly runs fn in a read-only REPEATABLE READ transaction so every
// statement sees the same snapshot. An enclosing transaction is joined.
func RunReadOnly(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}

	var tx pgx.Tx
	var err error
	if conn := ConnFromContext(ctx); conn != nil {
		tx, err = conn.BeginTx(ctx, opts)
	} else {
		tx, err = pool.BeginTx(ctx, opts)
	}
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, DBTxKey, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// txn is the part of pgx.Tx the unit of work drives.
type txn interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// beginFunc opens a request's unit of work. tx is nil for safe methods.
// release is always called once the request is done.
type beginFunc func(ctx context.Context, safe bool) (txCtx context.Context, tx txn, release func(), err error)

// UnitOfWork acquires one connection per request. Safe methods run on the
// bare connection; everything else runs inside a transaction that commits
// only when the handler succeeds with a non-error status. The response of a
// transactional request is held back until the commit succeeds, so a failed
// commit is reported as an internal error instead of the handler's output.
func UnitOfWork(pool *pgxpool.Pool, logger zerolog.Logger) echo.MiddlewareFunc {
	return unitOfWork(func(ctx context.Context, safe bool) (context.Context, txn, func(), error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return ctx, nil, nil, echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
		}
		ctx = context.WithValue(ctx, DBConnKey, conn)
		if safe {
			return ctx, nil, conn.Release, nil
		}
		ctx, tx, err := WithTx(ctx)
		if err != nil {
			conn.Release()
			return ctx, nil, nil, err
		}
		return ctx, tx, conn.Release, nil
	}, logger)
}

func unitOfWork(begin beginFunc, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			safe := isSafeMethod(c.Request().Method)
			ctx, tx, release, err := begin(c.Request().Context(), safe)
			if err != nil {
				return err
			}
			defer release()

			if tx == nil {
				c.SetRequest(c.Request().WithContext(ctx))
				return next(c)
			}

			ctx, hooks := WithRollbackHooks(ctx)
			c.SetRequest(c.Request().WithContext(ctx))

			res := c.Response()
			orig := res.Writer
			buf := newBufferedWriter(orig.Header())
			res.Writer = buf
			herr := next(c)
			res.Writer = orig

			rollback := func() {
				if rerr := tx.Rollback(ctx); rerr != nil && !errors.Is(rerr, pgx.ErrTxClosed) {
					logger.Warn().Err(rerr).Msg("rollback failed")
				}
				hooks.Run()
			}

			if herr != nil {
				rollback()
				resetResponse(res)
				return herr
			}
			if res.Status >= http.StatusBadRequest {
				rollback()
				return buf.flushTo(orig)
			}
			if err := tx.Commit(ctx); err != nil {
				hooks.Run()
				resetResponse(res)
				return apperr.Internal(fmt.Errorf("commit: %w", err))
			}
			if err := buf.flushTo(orig); err != nil {
				logger.Warn().Err(err).Msg("write response")
			}
			return nil
		}
	}
}

// resetResponse discards what the handler wrote so the error handler can
// render its own response.
func resetResponse(res *echo.Response) {
	res.Committed = false
	res.Status = http.StatusOK
	res.Size = 0
}

// bufferedWriter holds a handler's response until the transaction outcome
// is known.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedWriter(base http.Header) *bufferedWriter {
	return &bufferedWriter{header: base.Clone()}
}

func (w *bufferedWriter) Header() http.Header { return w.header }

func (w *bufferedWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

func (w *bufferedWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(p)
}

func (w *bufferedWriter) flushTo(dst http.ResponseWriter) error {
	h := dst.Header()
	for k := range h {
		delete(h, k)
	}
	for k, v := range w.header {
		h[k] = v
	}
	if w.status == 0 {
		return nil
	}
	dst.WriteHeader(w.status)
	_, err := dst.Write(w.body.Bytes())
	return err
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
