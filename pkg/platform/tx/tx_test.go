package tx

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDriver counts transaction outcomes without a real database.
type recordingDriver struct {
	mu        sync.Mutex
	commits   int
	rollbacks int
}

func (d *recordingDriver) Open(string) (driver.Conn, error) { return &recordingConn{d: d}, nil }

func (d *recordingDriver) outcomes() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commits, d.rollbacks
}

type recordingConn struct{ d *recordingDriver }

func (c *recordingConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("statements not supported")
}
func (c *recordingConn) Close() error              { return nil }
func (c *recordingConn) Begin() (driver.Tx, error) { return &recordingTx{d: c.d}, nil }

type recordingTx struct{ d *recordingDriver }

func (t *recordingTx) Commit() error {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	t.d.commits++
	return nil
}

func (t *recordingTx) Rollback() error {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	t.d.rollbacks++
	return nil
}

var (
	registerOnce sync.Once
	recorder     = &recordingDriver{}
)

func openRecording(t *testing.T) (*sql.DB, *recordingDriver) {
	t.Helper()
	registerOnce.Do(func() { sql.Register("tx-recording", recorder) })
	db, err := sql.Open("tx-recording", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	recorder.mu.Lock()
	recorder.commits, recorder.rollbacks = 0, 0
	recorder.mu.Unlock()
	return db, recorder
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("commits and exposes the transaction", func(t *testing.T) {
		db, rec := openRecording(t)
		err := Run(ctx, db, func(ctx context.Context) error {
			_, ok := From(ctx)
			assert.True(t, ok)
			return nil
		})
		require.NoError(t, err)
		commits, rollbacks := rec.outcomes()
		assert.Equal(t, 1, commits)
		assert.Zero(t, rollbacks)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, rec := openRecording(t)
		boom := errors.New("duplicate plate")
		err := Run(ctx, db, func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
		commits, rollbacks := rec.outcomes()
		assert.Zero(t, commits)
		assert.Equal(t, 1, rollbacks)
	})

	t.Run("rolls back and re-panics", func(t *testing.T) {
		db, rec := openRecording(t)
		assert.PanicsWithValue(t, "store exploded", func() {
			_ = Run(ctx, db, func(context.Context) error { panic("store exploded") })
		})
		commits, rollbacks := rec.outcomes()
		assert.Zero(t, commits)
		assert.Equal(t, 1, rollbacks)
		assert.Zero(t, db.Stats().InUse, "connection returned to the pool")
	})
}

func TestOrFallsBackToDB(t *testing.T) {
	db, _ := openRecording(t)
	assert.Same(t, db, Or(context.Background(), db))
	assert.Equal(t, context.Background(), WithTx(context.Background(), nil))
}
