package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func openSeeded(t *testing.T) (*sql.DB, string) {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "school.db")

	db, err := Open(ctx, DriverSQLite, path, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Seed(ctx, db, DriverSQLite))
	return db, path
}

func countStudents(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM STUDENT").Scan(&n))
	return n
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestSelectAllIsValidAndReturnsSampleRows(t *testing.T) {
	db, _ := openSeeded(t)
	r := NewRunner(db, nil)
	ctx := context.Background()

	require.True(t, r.Validate(ctx, "SELECT * FROM STUDENT"))

	result, err := r.Execute(ctx, "SELECT * FROM STUDENT")
	require.NoError(t, err)
	assert.Len(t, result.Columns, 13)
	require.Len(t, result.Rows, 10)
	for _, row := range result.Rows {
		assert.Len(t, row, 13)
	}
	assert.Equal(t, "Rohan", result.Rows[0][1])
}

func TestUnknownTableIsInvalid(t *testing.T) {
	db, _ := openSeeded(t)
	r := NewRunner(db, nil)

	assert.False(t, r.Validate(context.Background(), "SELECT * FROM NOTATABLE"))
}

func TestValidateRejectsBlankInput(t *testing.T) {
	db, _ := openSeeded(t)
	r := NewRunner(db, nil)

	for _, candidate := range []string{"", "   ", "\n\t"} {
		assert.False(t, r.Validate(context.Background(), candidate), "candidate %q", candidate)
	}
}

func TestValidateNeverPersistsChanges(t *testing.T) {
	db, _ := openSeeded(t)
	r := NewRunner(db, nil)
	ctx := context.Background()

	tests := []struct {
		candidate string
		valid     bool
	}{
		{candidate: "SELECT * FROM STUDENT", valid: true},
		{candidate: "DELETE FROM STUDENT", valid: true},
		{candidate: "UPDATE STUDENT SET TOTAL = 0", valid: true},
		{candidate: "INSERT INTO STUDENT (STUDENT_ID, NAME) VALUES (99, 'Ghost')", valid: true},
		{candidate: "INSERT INTO STUDENT (STUDENT_ID, NAME) VALUES (1, 'Duplicate')", valid: false},
		{candidate: "SELEC * FORM STUDENT", valid: false},
		{candidate: "SELECT NOPE FROM STUDENT", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.candidate, func(t *testing.T) {
			before := countStudents(t, db)
			assert.Equal(t, tt.valid, r.Validate(ctx, tt.candidate))
			assert.Equal(t, before, countStudents(t, db))

			var total int
			require.NoError(t, db.QueryRowContext(ctx, "SELECT TOTAL FROM STUDENT WHERE STUDENT_ID = 1").Scan(&total))
			assert.Equal(t, 530, total)
		})
	}
}

func TestDropTableIsRolledBackByValidateButNotByExecute(t *testing.T) {
	db, _ := openSeeded(t)
	r := NewRunner(db, nil)
	ctx := context.Background()

	require.True(t, r.Validate(ctx, "DROP TABLE STUDENT"))
	require.True(t, tableExists(t, db, "STUDENT"))
	assert.Equal(t, 10, countStudents(t, db))

	// Execute has no rollback guard, mutating statements take effect.
	_, err := r.Execute(ctx, "DROP TABLE STUDENT")
	require.NoError(t, err)
	assert.False(t, tableExists(t, db, "STUDENT"))
}

func TestExecuteReturnsExecutionError(t *testing.T) {
	db, _ := openSeeded(t)
	r := NewRunner(db, nil)

	_, err := r.Execute(context.Background(), "SELECT * FROM NOTATABLE")
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Message, "NOTATABLE")
	assert.Contains(t, execErr.Error(), "Database error:")
}

func TestValidatedQueriesExecute(t *testing.T) {
	db, _ := openSeeded(t)
	r := NewRunner(db, nil)
	ctx := context.Background()

	queries := []string{
		"SELECT NAME FROM STUDENT WHERE LOWER(CITY) = LOWER('nagpur')",
		"SELECT COUNT(*) AS n FROM STUDENT",
		"SELECT AVG(PERCENTAGE) FROM STUDENT WHERE GRADE = 'Z'",
		"SELECT * FROM STUDENT WHERE 1 = 0",
	}
	for _, q := range queries {
		require.True(t, r.Validate(ctx, q), q)
		result, err := r.Execute(ctx, q)
		require.NoError(t, err, q)
		assert.NotNil(t, result.Rows)
	}

	result, err := r.Execute(ctx, queries[0])
	require.NoError(t, err)
	assert.Len(t, result.Rows, 6)

	result, err = r.Execute(ctx, queries[3])
	require.NoError(t, err)
	assert.Empty(t, result.Rows)
}

func TestConcurrentCallsUseSeparateScopes(t *testing.T) {
	db, _ := openSeeded(t)
	r := NewRunner(db, nil)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			if !r.Validate(ctx, "DELETE FROM STUDENT") {
				t.Error("DELETE should validate")
			}
			_, err := r.Execute(ctx, "SELECT * FROM STUDENT")
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 10, countStudents(t, db))
}

func TestOpenRequiresExistingSQLiteFile(t *testing.T) {
	_, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "missing.db"), false)
	assert.Error(t, err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x", false)
	assert.ErrorContains(t, err, "unknown database driver")
}

func TestPreviewReturnsRowsAndDiscardsWrites(t *testing.T) {
	db, _ := openSeeded(t)
	r := NewRunner(db, nil)
	ctx := context.Background()

	result, err := r.Preview(ctx, "SELECT NAME FROM STUDENT WHERE LOWER(CITY) = LOWER('Nagpur')")
	require.NoError(t, err)
	assert.Equal(t, []string{"NAME"}, result.Columns)
	assert.Len(t, result.Rows, 6)

	for _, stmt := range []string{
		"SELECT 1; DROP TABLE STUDENT",
		"SELECT 1; DELETE FROM STUDENT",
		"WITH x AS (SELECT 1) DELETE FROM STUDENT",
	} {
		_, _ = r.Preview(ctx, stmt)
		assert.True(t, tableExists(t, db, "STUDENT"), stmt)
		assert.Equal(t, 10, countStudents(t, db), stmt)
	}
}

func TestPreviewReturnsExecutionError(t *testing.T) {
	db, _ := openSeeded(t)

	_, err := NewRunner(db, nil).Preview(context.Background(), "SELECT * FROM NOTATABLE")
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Message, "no such table")
}
