package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgahotel/cs-service/internal/apperr"
	"github.com/sgahotel/cs-service/repository"
)

const assignWorkerID = "9b2f8a64-1d3c-4e5f-8a7b-6c5d4e3f2a1b"

func newAssignerService(t *testing.T) (*OrderAssignerService, sqlmock.Sqlmock) {
	t.Helper()
	pg, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { pg.Close() })
	svc := NewOrderAssignerService(repository.NewStore(pg))
	svc.now = func() time.Time { return webhookNow }
	return svc, mock
}

func expectOrderAndWorker(mock sqlmock.Sqlmock) {
	orderCols := []string{"id", "order_number", "checkin_room_id", "session_id", "org_id", "category", "title",
		"description", "notes", "additional_notes", "status", "created_at", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE o.order_number = $1")).WithArgs("ORD-1").
		WillReturnRows(sqlmock.NewRows(orderCols).AddRow("o-1", "ORD-1", "checkin-1", nil, "org-1",
			"housekeeping", "Housekeeping", "", "", "", "pending", webhookNow, webhookNow))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE u.id = $1")).WithArgs(assignWorkerID).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(assignWorkerID, "org-1", nil, "role-hk", "Sari", nil,
			nil, nil, webhookNow, webhookNow, "Housekeeping", "housekeeping"))
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(assignWorkerID).WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestAssignOrder_Success(t *testing.T) {
	svc, mock := newAssignerService(t)

	mock.ExpectBegin()
	expectOrderAndWorker(mock)
	mock.ExpectQuery("SELECT EXISTS").WithArgs("o-1", assignWorkerID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM order_assigners").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectExec("INSERT INTO order_assigners").
		WithArgs(sqlmock.AnyArg(), "o-1", assignWorkerID, webhookNow, "assigned").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	a, err := svc.AssignOrder(context.Background(), "ORD-1", AssignOrderRequest{WorkerID: assignWorkerID})
	require.NoError(t, err)
	assert.Equal(t, "assigned", a.Status)
	assert.Equal(t, webhookNow, a.AssignedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignOrder_Rejections(t *testing.T) {
	t.Run("order not found", func(t *testing.T) {
		svc, mock := newAssignerService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("WHERE o.order_number = $1")).WithArgs("ORD-X").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		_, err := svc.AssignOrder(context.Background(), "ORD-X", AssignOrderRequest{WorkerID: assignWorkerID})
		assert.True(t, errors.Is(err, apperr.ErrOrderNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already assigned", func(t *testing.T) {
		svc, mock := newAssignerService(t)
		mock.ExpectBegin()
		expectOrderAndWorker(mock)
		mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		_, err := svc.AssignOrder(context.Background(), "ORD-1", AssignOrderRequest{WorkerID: assignWorkerID})
		assert.True(t, errors.Is(err, apperr.ErrOrderAlreadyAssigned))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("worker at capacity", func(t *testing.T) {
		svc, mock := newAssignerService(t)
		mock.ExpectBegin()
		expectOrderAndWorker(mock)
		mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM order_assigners").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(MaxActiveOrdersPerWorker))
		mock.ExpectRollback()

		_, err := svc.AssignOrder(context.Background(), "ORD-1", AssignOrderRequest{WorkerID: assignWorkerID})
		assert.True(t, errors.Is(err, apperr.ErrWorkerMaxActiveReached))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid worker id", func(t *testing.T) {
		svc, _ := newAssignerService(t)
		_, err := svc.AssignOrder(context.Background(), "ORD-1", AssignOrderRequest{WorkerID: "w-1"})
		assert.True(t, errors.Is(err, apperr.ErrValidation))
	})
}
