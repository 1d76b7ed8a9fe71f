package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ResultSet holds the rows produced by a query, in engine order.
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// ExecutionError carries the engine's message for a failed real run.
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string {
	return "Database error: " + e.Message
}

// Runner validates and executes SQL text against one database. Every call
// takes its own connection from the pool and gives it back before returning;
// connections and transactions are never shared between calls.
type Runner struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRunner wraps db. A nil logger discards log output.
func NewRunner(db *sql.DB, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{db: db, logger: logger}
}

// Validate reports whether the engine accepts candidate. The statement runs
// inside a transaction that is always rolled back, so nothing it does is
// persisted. Blank input is rejected without touching the database.
func (r *Runner) Validate(ctx context.Context, candidate string) bool {
	if strings.TrimSpace(candidate) == "" {
		return false
	}
	if _, err := r.run(ctx, candidate, true); err != nil {
		r.logger.Debug("candidate rejected", zap.Error(err))
		return false
	}
	return true
}

// Execute runs query for real and returns all of its rows. Engine failures
// are returned as *ExecutionError.
func (r *Runner) Execute(ctx context.Context, query string) (ResultSet, error) {
	start := time.Now()
	result, err := r.run(ctx, query, false)
	if err != nil {
		return ResultSet{}, &ExecutionError{Message: err.Error()}
	}
	r.logger.Debug("query executed",
		zap.Int("rows", len(result.Rows)),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}

// Preview runs query inside a transaction that is always rolled back and
// returns the rows it produced. Reads behave as in Execute; anything the
// statement writes is discarded. Engine failures are returned as
// *ExecutionError.
func (r *Runner) Preview(ctx context.Context, query string) (ResultSet, error) {
	result, err := r.run(ctx, query, true)
	if err != nil {
		return ResultSet{}, &ExecutionError{Message: err.Error()}
	}
	return result, nil
}

// queryer is satisfied by both *sql.Conn and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *Runner) run(ctx context.Context, query string, dryRun bool) (result ResultSet, err error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return ResultSet{}, err
	}
	defer func() { _ = conn.Close() }()

	var q queryer = conn
	if dryRun {
		tx, txErr := conn.BeginTx(ctx, nil)
		if txErr != nil {
			return ResultSet{}, txErr
		}
		defer func() {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.Warn("rollback after dry run failed", zap.Error(rbErr))
				if err == nil {
					err = rbErr
				}
			}
		}()
		q = tx
	}

	return fetchAll(ctx, q, query)
}

func fetchAll(ctx context.Context, q queryer, query string) (ResultSet, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return ResultSet{}, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return ResultSet{}, err
	}

	result := ResultSet{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values, err := scanRow(rows, len(columns))
		if err != nil {
			return ResultSet{}, err
		}
		result.Rows = append(result.Rows, normalizeRow(values))
	}
	if err := rows.Err(); err != nil {
		return ResultSet{}, err
	}
	return result, nil
}

func scanRow(rows *sql.Rows, numCols int) ([]any, error) {
	values := make([]any, numCols)
	ptrs := make([]any, numCols)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return values, nil
}

func normalizeRow(values []any) []any {
	row := make([]any, len(values))
	for i, v := range values {
		switch val := v.(type) {
		case nil:
			row[i] = nil
		case []byte:
			row[i] = string(val)
		case time.Time:
			row[i] = val.Format(time.RFC3339Nano)
		default:
			row[i] = val
		}
	}
	return row
}
