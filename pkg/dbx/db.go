package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/wcap/wcplib/pkg/chunk"
	"github.com/wcap/wcplib/pkg/retry"
)

// Rows per progress report inside a batch transaction.
const batchChunkSize = 1000

// DB wraps a database/sql handle with a connector's dialect rules and
// reconnect policy.
type DB struct {
	sqlDB  *sql.DB
	conn   Connector
	cfg    Config
	logger *slog.Logger
}

// Open connects to the warehouse named by cfg.Driver. The initial
// dial obeys the same reconnect policy as later operations, so a
// warehouse in a maintenance window is waited out rather than failed.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	conn, err := lookup(cfg.Driver, logger)
	if err != nil {
		return nil, err
	}

	d := &DB{conn: conn, cfg: cfg.withDefaults(), logger: logger}
	err = d.withRetry(ctx, "connect", func(ctx context.Context) error {
		sqlDB, err := conn.Open(ctx, d.cfg)
		if err != nil {
			return err
		}
		sqlDB.SetMaxOpenConns(d.cfg.MaxConns)
		sqlDB.SetMaxIdleConns(d.cfg.MinConns)
		d.sqlDB = sqlDB
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}
	return d, nil
}

// New wraps an existing handle with a connector's rules. Tests use it
// to pair a mock database with a connector.
func New(sqlDB *sql.DB, conn Connector, cfg Config, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DB{sqlDB: sqlDB, conn: conn, cfg: cfg.withDefaults(), logger: logger}
}

// Driver reports the connector name.
func (d *DB) Driver() string { return d.conn.Name() }

// Close releases the underlying handle.
func (d *DB) Close() error {
	if d.sqlDB == nil {
		return nil
	}
	d.logger.Debug("closing database connection", slog.String("driver", d.conn.Name()))
	return d.sqlDB.Close()
}

// Ping verifies the connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	err := d.withRetry(ctx, "ping", func(ctx context.Context) error {
		return d.sqlDB.PingContext(ctx)
	})
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Exec runs a single statement.
func (d *DB) Exec(ctx context.Context, query string, args ...any) error {
	err := d.withRetry(ctx, "exec", func(ctx context.Context) error {
		_, err := d.sqlDB.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// ExecAll runs every statement inside one transaction, rolling back
// on the first failure.
func (d *DB) ExecAll(ctx context.Context, stmts []Stmt) error {
	if len(stmts) == 0 {
		return nil
	}
	err := d.withRetry(ctx, "exec_all", func(ctx context.Context) error {
		tx, err := d.sqlDB.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		for i, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt.Query, stmt.Args...); err != nil {
				return rollback(tx, fmt.Errorf("statement %d: %w", i+1, err))
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("exec all: %w", err)
	}
	return nil
}

// ExecBatch prepares one statement and runs it for every argument row
// inside a single transaction. Progress is logged per chunk.
func (d *DB) ExecBatch(ctx context.Context, query string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	err := d.withRetry(ctx, "exec_batch", func(ctx context.Context) error {
		tx, err := d.sqlDB.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return rollback(tx, fmt.Errorf("prepare: %w", err))
		}
		defer func() { _ = stmt.Close() }()

		done := 0
		for _, batch := range chunk.Slice(rows, batchChunkSize) {
			if err := ctx.Err(); err != nil {
				return rollback(tx, err)
			}
			for _, args := range batch {
				if _, err := stmt.ExecContext(ctx, args...); err != nil {
					return rollback(tx, fmt.Errorf("row %d: %w", done+1, err))
				}
				done++
			}
			d.logger.Debug("batch progress", slog.Int("rows", done), slog.Int("total", len(rows)))
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("exec batch: %w", err)
	}
	return nil
}

// Query runs a statement and fetches the full result set.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	var res *Result
	err := d.withRetry(ctx, "query", func(ctx context.Context) error {
		rows, err := d.sqlDB.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		cols, err := rows.Columns()
		if err != nil {
			return fmt.Errorf("columns: %w", err)
		}
		out := &Result{Columns: cols}
		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			out.Rows = append(out.Rows, vals)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		res = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return res, nil
}

type insertOptions struct {
	nullifyNaN bool
}

// InsertOption adjusts InsertRows.
type InsertOption func(*insertOptions)

// WithNullifyNaN converts floating-point NaN values to NULL before
// insert, alongside the empty strings that are always converted.
func WithNullifyNaN() InsertOption {
	return func(o *insertOptions) { o.nullifyNaN = true }
}

// InsertRows loads rows into a table, one bind set per row, inside a
// single transaction. Empty strings become NULL. Returns the number
// of rows written.
func (d *DB) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, opts ...InsertOption) (int, error) {
	var o insertOptions
	for _, opt := range opts {
		opt(&o)
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("insert into %s: columns cannot be empty", table)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	quotedTable, err := d.conn.QuoteIdent(table)
	if err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}
	quotedCols := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, col := range columns {
		if quotedCols[i], err = d.conn.QuoteIdent(col); err != nil {
			return 0, fmt.Errorf("insert: %w", err)
		}
		marks[i] = d.conn.Placeholder(i + 1)
	}
	if err := checkRowWidths(rows, len(columns)); err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quotedTable, strings.Join(quotedCols, ", "), strings.Join(marks, ", "))
	if err := d.ExecBatch(ctx, query, normalizeRows(rows, o.nullifyNaN)); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// DeleteMatching deletes every row matching one of the given value
// tuples on the match columns. Duplicate tuples are collapsed first.
// Returns the number of distinct tuples deleted against.
func (d *DB) DeleteMatching(ctx context.Context, table string, matchCols []string, rows [][]any) (int, error) {
	if len(matchCols) == 0 {
		return 0, fmt.Errorf("delete from %s: match columns cannot be empty", table)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	quotedTable, err := d.conn.QuoteIdent(table)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	preds := make([]string, len(matchCols))
	for i, col := range matchCols {
		quoted, err := d.conn.QuoteIdent(col)
		if err != nil {
			return 0, fmt.Errorf("delete: %w", err)
		}
		preds[i] = quoted + " = " + d.conn.Placeholder(i+1)
	}
	if err := checkRowWidths(rows, len(matchCols)); err != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}

	uniq := dedupRows(rows)
	query := "DELETE FROM " + quotedTable + " WHERE " + strings.Join(preds, " AND ")
	if err := d.ExecBatch(ctx, query, uniq); err != nil {
		return 0, err
	}
	return len(uniq), nil
}

// Truncate empties a table via TRUNCATE.
func (d *DB) Truncate(ctx context.Context, table string) error {
	quoted, err := d.conn.QuoteIdent(table)
	if err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	return d.Exec(ctx, "TRUNCATE TABLE "+quoted)
}

// Empty deletes every row from a table, for targets where TRUNCATE
// privileges are not granted.
func (d *DB) Empty(ctx context.Context, table string) error {
	quoted, err := d.conn.QuoteIdent(table)
	if err != nil {
		return fmt.Errorf("empty: %w", err)
	}
	return d.Exec(ctx, "DELETE FROM "+quoted)
}

// withRetry applies the connector's transient-error policy to one
// operation. Waits are constant, long, and logged.
func (d *DB) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	return retry.Do(ctx, fn,
		retry.WithAttempts(d.cfg.RetryLimit+1),
		retry.WithDelay(d.cfg.RetryWait),
		retry.WithMultiplier(1),
		retry.WithMaxJitter(0),
		retry.WithRetryable(d.conn.Retryable),
		retry.WithNotify(func(err error, wait time.Duration) {
			d.logger.Info("retryable database error",
				slog.String("op", op),
				slog.String("error", err.Error()),
				slog.Duration("wait", wait))
		}),
	)
}

func rollback(tx *sql.Tx, err error) error {
	if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
		return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
	}
	return err
}

func checkRowWidths(rows [][]any, want int) error {
	for i, row := range rows {
		if len(row) != want {
			return fmt.Errorf("row %d has %d values, want %d", i+1, len(row), want)
		}
	}
	return nil
}

// normalizeRows applies the NULL conventions: empty strings always
// become NULL, NaN floats become NULL when requested.
func normalizeRows(rows [][]any, nullifyNaN bool) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		r := make([]any, len(row))
		for j, v := range row {
			switch x := v.(type) {
			case string:
				if x == "" {
					r[j] = nil
				} else {
					r[j] = x
				}
			case float64:
				if nullifyNaN && math.IsNaN(x) {
					r[j] = nil
				} else {
					r[j] = x
				}
			case float32:
				if nullifyNaN && math.IsNaN(float64(x)) {
					r[j] = nil
				} else {
					r[j] = x
				}
			default:
				r[j] = v
			}
		}
		out[i] = r
	}
	return out
}

// dedupRows collapses duplicate rows, keeping first occurrences.
func dedupRows(rows [][]any) [][]any {
	seen := make(map[string]struct{}, len(rows))
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		key := fmt.Sprint(row)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out
}
