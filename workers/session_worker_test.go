package workers

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgahotel/cs-service/repository"
)

var sweepNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newSweeper(t *testing.T) (*SessionWorker, sqlmock.Sqlmock) {
	t.Helper()
	pg, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { pg.Close() })
	w := NewSessionWorker(repository.NewStore(pg), 30*time.Minute, time.Minute)
	w.now = func() time.Time { return sweepNow }
	return w, mock
}

func TestSweep_TerminatesIdleSessions(t *testing.T) {
	w, mock := newSweeper(t)
	cutoff := sweepNow.Add(-30 * time.Minute)

	mock.ExpectQuery("SELECT id FROM sessions").
		WithArgs("open", cutoff, defaultSweepBatch).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s-1").AddRow("s-2"))
	mock.ExpectExec("UPDATE sessions").WithArgs("s-1", "terminated", sweepNow, "open", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE sessions").WithArgs("s-2", "terminated", sweepNow, "open", cutoff).
		WillReturnError(errors.New("deadlock"))

	n, err := w.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweep_SkipsSessionTouchedAfterListing(t *testing.T) {
	w, mock := newSweeper(t)
	cutoff := sweepNow.Add(-30 * time.Minute)

	mock.ExpectQuery("SELECT id FROM sessions").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s-1"))
	mock.ExpectExec(regexp.QuoteMeta("AND updated_at < $5")).
		WithArgs("s-1", "terminated", sweepNow, "open", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := w.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweep_ListFailure(t *testing.T) {
	w, mock := newSweeper(t)
	mock.ExpectQuery("SELECT id FROM sessions").WillReturnError(errors.New("conn reset"))

	_, err := w.Sweep(context.Background())
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	w, _ := newSweeper(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
