package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTxTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := NewSQLiteDBForTest()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE record (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func countRecords(t *testing.T, db *sql.DB) int {
	t.Helper()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM record`).Scan(&count))
	return count
}

func TestRunInTxCommitRunsHooksInOrder(t *testing.T) {
	db := setupTxTestDB(t)
	ctx := context.Background()

	ran := []string{}
	err := RunInTx(ctx, db, func(ctx context.Context) error {
		q := QuerierFromContext(ctx, db)
		if _, err := q.ExecContext(ctx, `INSERT INTO record (name) VALUES (?)`, "first"); err != nil {
			return err
		}

		OnCommit(ctx, func(ctx context.Context) error {
			ran = append(ran, "index")
			return nil
		})
		OnCommit(ctx, func(ctx context.Context) error {
			ran = append(ran, "cache")
			return nil
		})

		// Hooks must not run before commit
		assert.Empty(t, ran)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"index", "cache"}, ran)
	assert.Equal(t, 1, countRecords(t, db))
}

func TestRunInTxRollbackDiscardsHooks(t *testing.T) {
	db := setupTxTestDB(t)
	ctx := context.Background()

	hookRan := false
	boom := errors.New("boom")
	err := RunInTx(ctx, db, func(ctx context.Context) error {
		q := QuerierFromContext(ctx, db)
		if _, err := q.ExecContext(ctx, `INSERT INTO record (name) VALUES (?)`, "doomed"); err != nil {
			return err
		}

		OnCommit(ctx, func(ctx context.Context) error {
			hookRan = true
			return nil
		})
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.False(t, hookRan)
	assert.Equal(t, 0, countRecords(t, db))
}

func TestRunInTxNestedJoinsOuterTransaction(t *testing.T) {
	db := setupTxTestDB(t)
	ctx := context.Background()

	ran := []string{}
	err := RunInTx(ctx, db, func(ctx context.Context) error {
		OnCommit(ctx, func(ctx context.Context) error {
			ran = append(ran, "outer")
			return nil
		})

		return RunInTx(ctx, db, func(ctx context.Context) error {
			q := QuerierFromContext(ctx, db)
			if _, err := q.ExecContext(ctx, `INSERT INTO record (name) VALUES (?)`, "nested"); err != nil {
				return err
			}

			OnCommit(ctx, func(ctx context.Context) error {
				ran = append(ran, "inner")
				return nil
			})

			// Still buffered: the outermost transaction has not committed
			assert.Empty(t, ran)
			return nil
		})
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"outer", "inner"}, ran)
	assert.Equal(t, 1, countRecords(t, db))
}

func TestRunInTxNestedFailureRollsBackEverything(t *testing.T) {
	db := setupTxTestDB(t)
	ctx := context.Background()

	boom := errors.New("nested failure")
	hookRan := false
	err := RunInTx(ctx, db, func(ctx context.Context) error {
		q := QuerierFromContext(ctx, db)
		if _, err := q.ExecContext(ctx, `INSERT INTO record (name) VALUES (?)`, "outer"); err != nil {
			return err
		}
		OnCommit(ctx, func(ctx context.Context) error {
			hookRan = true
			return nil
		})

		return RunInTx(ctx, db, func(ctx context.Context) error {
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	assert.False(t, hookRan)
	assert.Equal(t, 0, countRecords(t, db))
}

func TestOnCommitOutsideTransactionRunsImmediately(t *testing.T) {
	ran := false
	OnCommit(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.True(t, ran)
}

func TestRunInTxHookFailureDoesNotFailTheWrite(t *testing.T) {
	db := setupTxTestDB(t)
	ctx := context.Background()

	secondRan := false
	err := RunInTx(ctx, db, func(ctx context.Context) error {
		q := QuerierFromContext(ctx, db)
		if _, err := q.ExecContext(ctx, `INSERT INTO record (name) VALUES (?)`, "kept"); err != nil {
			return err
		}

		OnCommit(ctx, func(ctx context.Context) error {
			return errors.New("index sync failed")
		})
		OnCommit(ctx, func(ctx context.Context) error {
			secondRan = true
			return nil
		})
		return nil
	})
	require.NoError(t, err)

	assert.True(t, secondRan)
	assert.Equal(t, 1, countRecords(t, db))
}

func TestQuerierFromContextFallsBackToPool(t *testing.T) {
	db := setupTxTestDB(t)

	q := QuerierFromContext(context.Background(), db)
	_, err := q.ExecContext(context.Background(), `INSERT INTO record (name) VALUES (?)`, "direct")
	require.NoError(t, err)
	assert.Equal(t, 1, countRecords(t, db))
}
