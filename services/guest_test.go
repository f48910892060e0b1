package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgahotel/cs-service/internal/apperr"
	"github.com/sgahotel/cs-service/repository"
)

var (
	guestNow = time.Date(2026, 3, 2, 14, 5, 0, 0, time.UTC)
	roomCols = []string{"id", "org_id", "label", "room_number", "type", "is_booked", "created_at", "updated_at"}
)

func newGuestService(t *testing.T) (*GuestService, sqlmock.Sqlmock) {
	t.Helper()
	pg, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { pg.Close() })
	svc := NewGuestService(repository.NewStore(pg))
	svc.now = func() time.Time { return guestNow }
	return svc, mock
}

func validGuestRequest() RegisterGuestRequest {
	return RegisterGuestRequest{
		FullName:    "Budi Santoso",
		RoomNumber:  "101",
		CheckinDate: "2026-03-02",
		Email:       "budi@mail.test",
		PhoneNumber: "+62 812-3456-7890",
	}
}

func expectGuestRole(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("FROM roles").WithArgs("guest").
		WillReturnRows(sqlmock.NewRows(roleColumns).AddRow("role-guest", "Guest", "guest", "", guestNow, guestNow))
}

func TestRegisterGuest_Success(t *testing.T) {
	svc, mock := newGuestService(t)

	mock.ExpectBegin()
	expectGuestRole(mock)
	mock.ExpectQuery("FOR UPDATE").WithArgs("101", "org-1").
		WillReturnRows(sqlmock.NewRows(roomCols).AddRow("room-1", "org-1", "Deluxe 101", "101", "deluxe", false, guestNow, guestNow))
	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "org-1", nil, "role-guest", "Budi Santoso", "budi@mail.test", "081234567890", nil, guestNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO checkin_rooms").
		WithArgs(sqlmock.AnyArg(), "org-1", sqlmock.AnyArg(), "{\"room-1\"}", sqlmock.AnyArg(), "14:05:00", "active", guestNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE rooms SET is_booked").WithArgs("room-1", true, guestNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	resp, err := svc.RegisterGuest(context.Background(), "org-1", validGuestRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, resp.UserID)
	assert.NotEmpty(t, resp.CheckinID)
	assert.Equal(t, "101", resp.RoomNumber)
	assert.Equal(t, "081234567890", resp.PhoneNumber)
	assert.Equal(t, "active", resp.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterGuest_Validation(t *testing.T) {
	svc, mock := newGuestService(t)

	req := validGuestRequest()
	req.Email = "not-an-email"
	req.CheckinDate = "02/03/2026"
	req.PhoneNumber = "abc"

	_, err := svc.RegisterGuest(context.Background(), "org-1", req)
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.ErrValidation.Code, appErr.Code)
	details, ok := appErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "checkin_date")
	assert.Contains(t, details, "phone_number")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterGuest_RoomErrors(t *testing.T) {
	t.Run("room not found", func(t *testing.T) {
		svc, mock := newGuestService(t)
		mock.ExpectBegin()
		expectGuestRole(mock)
		mock.ExpectQuery("FOR UPDATE").WithArgs("101", "org-1").WillReturnRows(sqlmock.NewRows(roomCols))
		mock.ExpectRollback()

		_, err := svc.RegisterGuest(context.Background(), "org-1", validGuestRequest())
		assert.True(t, errors.Is(err, apperr.ErrRoomNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("room already booked", func(t *testing.T) {
		svc, mock := newGuestService(t)
		mock.ExpectBegin()
		expectGuestRole(mock)
		mock.ExpectQuery("FOR UPDATE").WithArgs("101", "org-1").
			WillReturnRows(sqlmock.NewRows(roomCols).AddRow("room-1", "org-1", "Deluxe 101", "101", "deluxe", true, guestNow, guestNow))
		mock.ExpectRollback()

		_, err := svc.RegisterGuest(context.Background(), "org-1", validGuestRequest())
		assert.True(t, errors.Is(err, apperr.ErrRoomAlreadyBooked))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRegisterGuest_MissingGuestRole(t *testing.T) {
	svc, mock := newGuestService(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM roles").WithArgs("guest").WillReturnRows(sqlmock.NewRows(roleColumns))
	mock.ExpectRollback()

	_, err := svc.RegisterGuest(context.Background(), "org-1", validGuestRequest())
	assert.True(t, errors.Is(err, apperr.ErrGuestRoleNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterGuest_RollsBackWhenCheckinFails(t *testing.T) {
	svc, mock := newGuestService(t)

	mock.ExpectBegin()
	expectGuestRole(mock)
	mock.ExpectQuery("FOR UPDATE").WithArgs("101", "").
		WillReturnRows(sqlmock.NewRows(roomCols).AddRow("room-1", "org-9", "Deluxe 101", "101", "deluxe", false, guestNow, guestNow))
	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "org-9", nil, "role-guest", "Budi Santoso", "budi@mail.test", "081234567890", nil, guestNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO checkin_rooms").WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	_, err := svc.RegisterGuest(context.Background(), "", validGuestRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrRegistrationFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
}
