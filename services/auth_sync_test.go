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

var (
	syncNow     = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	syncUserID  = "5b7d7d39-0c3b-4f6b-9d1c-3b1d7c1c0a11"
	syncOrgID   = "0f1e2d3c-4b5a-6978-8a9b-0c1d2e3f4a5b"
	userCols    = []string{"id", "org_id", "division_id", "role_id", "name", "email", "mobile_phone", "id_card_number", "created_at", "updated_at", "role_name", "role_code"}
	orgCols     = []string{"id", "name", "address", "created_at", "updated_at"}
	roleColumns = []string{"id", "name", "code", "description", "created_at", "updated_at"}
)

func newSyncService(t *testing.T) (*AuthSyncService, sqlmock.Sqlmock) {
	t.Helper()
	pg, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { pg.Close() })
	svc := NewAuthSyncService(repository.NewStore(pg))
	svc.now = func() time.Time { return syncNow }
	return svc, mock
}

func TestAuthSync_NewOrgAndUser(t *testing.T) {
	svc, mock := newSyncService(t)
	td := &TokenData{UserID: syncUserID, OrganizationID: syncOrgID, OrganizationName: "Hotel Melati", Name: "Rina", Email: "rina@hotel.test"}

	mock.ExpectBegin()
	mock.ExpectQuery("FROM organizations").WithArgs(syncOrgID).WillReturnRows(sqlmock.NewRows(orgCols))
	mock.ExpectExec("INSERT INTO organizations").WithArgs(syncOrgID, "Hotel Melati", syncNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE u.id = $1")).WithArgs(syncUserID).WillReturnRows(sqlmock.NewRows(userCols))
	mock.ExpectQuery("FROM roles").WithArgs("keycloak_user").WillReturnRows(sqlmock.NewRows(roleColumns))
	mock.ExpectExec("INSERT INTO roles").
		WithArgs(sqlmock.AnyArg(), "Keycloak User", "keycloak_user", sqlmock.AnyArg(), syncNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO users").
		WithArgs(syncUserID, syncOrgID, nil, sqlmock.AnyArg(), "Rina", "rina@hotel.test", nil, nil, syncNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u, err := svc.SyncUser(context.Background(), td)
	require.NoError(t, err)
	assert.Equal(t, syncUserID, u.ID)
	assert.Equal(t, "keycloak_user", u.RoleCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthSync_RenamesOrgAndUpdatesUser(t *testing.T) {
	svc, mock := newSyncService(t)
	td := &TokenData{UserID: syncUserID, OrganizationID: syncOrgID, OrganizationName: "Hotel Melati Baru", Name: "Rina W", Email: "rina@hotel.test"}

	mock.ExpectBegin()
	mock.ExpectQuery("FROM organizations").WithArgs(syncOrgID).
		WillReturnRows(sqlmock.NewRows(orgCols).AddRow(syncOrgID, "Hotel Melati", "", syncNow, syncNow))
	mock.ExpectExec("UPDATE organizations SET name").WithArgs(syncOrgID, "Hotel Melati Baru", syncNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE u.id = $1")).WithArgs(syncUserID).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(syncUserID, syncOrgID, nil, "role-1", "Rina", "rina@hotel.test",
			nil, nil, syncNow, syncNow, "Keycloak User", "keycloak_user"))
	mock.ExpectExec("UPDATE users SET name").
		WithArgs(syncUserID, "Rina W", "rina@hotel.test", syncOrgID, syncNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u, err := svc.SyncUser(context.Background(), td)
	require.NoError(t, err)
	assert.Equal(t, "Rina W", u.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthSync_UnchangedUserIsNotWritten(t *testing.T) {
	svc, mock := newSyncService(t)
	td := &TokenData{UserID: syncUserID, Name: "Rina"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE u.id = $1")).WithArgs(syncUserID).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(syncUserID, nil, nil, "role-1", "Rina", nil,
			nil, nil, syncNow, syncNow, "Keycloak User", "keycloak_user"))
	mock.ExpectCommit()

	_, err := svc.SyncUser(context.Background(), td)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthSync_Failures(t *testing.T) {
	t.Run("subject not a uuid", func(t *testing.T) {
		svc, _ := newSyncService(t)
		_, err := svc.SyncUser(context.Background(), &TokenData{UserID: "service-account"})
		assert.True(t, errors.Is(err, apperr.ErrUserSyncFailed))
	})

	t.Run("database error rolls back", func(t *testing.T) {
		svc, mock := newSyncService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("WHERE u.id = $1")).WillReturnError(errors.New("conn refused"))
		mock.ExpectRollback()

		_, err := svc.SyncUser(context.Background(), &TokenData{UserID: syncUserID})
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperr.ErrUserSyncFailed))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
