package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sgahotel/cs-service/db"
	"github.com/sgahotel/cs-service/internal/apperr"
	"github.com/sgahotel/cs-service/internal/pagination"
	"github.com/sgahotel/cs-service/repository"
)

var checkinCols = []string{"id", "org_id", "guest_id", "room_id", "checkin_date", "checkin_time",
	"checkout_date", "checkout_time", "status", "created_at", "updated_at"}

func newOrderService(t *testing.T) (*OrderService, sqlmock.Sqlmock, *MockStaffNotifier) {
	t.Helper()
	pg, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { pg.Close() })
	notifier := new(MockStaffNotifier)
	svc := NewOrderService(repository.NewStore(pg), notifier)
	svc.now = func() time.Time { return webhookNow }
	return svc, sqlMock, notifier
}

func TestNewOrderNumber(t *testing.T) {
	n := NewOrderNumber(time.Date(2026, 3, 1, 9, 30, 5, 0, time.UTC))
	assert.Regexp(t, `^ORD-20260301093005-[0-9A-F]{8}$`, n)
	assert.NotEqual(t, n, NewOrderNumber(time.Date(2026, 3, 1, 9, 30, 5, 0, time.UTC)))
}

func TestCreateOrdersFromWebhook_Bulk(t *testing.T) {
	svc, sqlMock, notifier := newOrderService(t)
	qty := 2

	sqlMock.ExpectBegin()
	expectSession(sqlMock, "open", "agent")
	sqlMock.ExpectQuery(regexp.QuoteMeta("WHERE c.id = $1")).WithArgs("checkin-1").
		WillReturnRows(sqlmock.NewRows(checkinCols).AddRow("checkin-1", "org-1", "guest-1", "{room-1}", webhookNow,
			"14:00:00", nil, nil, "active", webhookNow, webhookNow))
	sqlMock.ExpectExec("INSERT INTO orders").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "checkin-1", msgSessionID, "org-1", "housekeeping", "Housekeeping",
			"Handuk", "", "", "pending", webhookNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sqlMock.ExpectExec("INSERT INTO order_items").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "Handuk", "", 2, 0.0, "", webhookNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sqlMock.ExpectExec("INSERT INTO orders").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "checkin-1", msgSessionID, "org-1", "room_service", "Room Service",
			"Nasi goreng, Teh manis", "pedas", "", "pending", webhookNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sqlMock.ExpectExec("INSERT INTO order_items").WillReturnResult(sqlmock.NewResult(0, 1))
	sqlMock.ExpectExec("INSERT INTO order_items").WillReturnResult(sqlmock.NewResult(0, 1))
	sqlMock.ExpectCommit()
	notifier.On("NotifyNewOrders", anyArg, "org-1", mock.MatchedBy(func(orders []db.Order) bool {
		return len(orders) == 2
	})).Return(nil)

	res, err := svc.CreateOrdersFromWebhook(context.Background(), OrderWebhookRequest{
		SessionID: msgSessionID,
		Orders: []OrderRequest{
			{Category: "housekeeping", Items: []OrderItemRequest{{Title: "Handuk", Qty: &qty}}},
			{Category: "room_service", Note: "pedas", Items: []OrderItemRequest{{Title: "Nasi goreng"}, {Title: "Teh manis"}}},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.OrderNumbers, 2)
	assert.Equal(t, "success", res.Status)
	notifier.AssertExpectations(t)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestCreateOrdersFromWebhook_Rejections(t *testing.T) {
	t.Run("unknown category", func(t *testing.T) {
		svc, sqlMock, _ := newOrderService(t)
		_, err := svc.CreateOrdersFromWebhook(context.Background(), OrderWebhookRequest{
			SessionID: msgSessionID,
			Orders:    []OrderRequest{{Category: "spa", Items: []OrderItemRequest{{Title: "Pijat"}}}},
		})
		assert.True(t, errors.Is(err, apperr.ErrValidation))
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("order without items", func(t *testing.T) {
		svc, _, _ := newOrderService(t)
		_, err := svc.CreateOrdersFromWebhook(context.Background(), OrderWebhookRequest{
			SessionID: msgSessionID,
			Orders:    []OrderRequest{{Category: "concierge"}},
		})
		assert.True(t, errors.Is(err, apperr.ErrValidation))
	})

	t.Run("session without check-in", func(t *testing.T) {
		svc, sqlMock, _ := newOrderService(t)
		sqlMock.ExpectBegin()
		sqlMock.ExpectQuery(regexp.QuoteMeta("WHERE s.id = $1")).WithArgs(msgSessionID).
			WillReturnRows(sqlmock.NewRows(sessionCols).AddRow(msgSessionID, "open", "agent", webhookNow, nil, nil,
				"guest-1", nil, true, webhookNow, webhookNow))
		sqlMock.ExpectRollback()

		_, err := svc.CreateOrdersFromWebhook(context.Background(), OrderWebhookRequest{
			SessionID: msgSessionID,
			Orders:    []OrderRequest{{Category: "concierge", Items: []OrderItemRequest{{Title: "Taksi"}}}},
		})
		assert.True(t, errors.Is(err, apperr.ErrSessionHasNoCheckin))
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("insert failure rolls back every order", func(t *testing.T) {
		svc, sqlMock, notifier := newOrderService(t)
		sqlMock.ExpectBegin()
		expectSession(sqlMock, "open", "agent")
		sqlMock.ExpectQuery(regexp.QuoteMeta("WHERE c.id = $1")).WithArgs("checkin-1").
			WillReturnRows(sqlmock.NewRows(checkinCols))
		sqlMock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(0, 1))
		sqlMock.ExpectExec("INSERT INTO order_items").WillReturnResult(sqlmock.NewResult(0, 1))
		sqlMock.ExpectExec("INSERT INTO orders").WillReturnError(errors.New("duplicate key"))
		sqlMock.ExpectRollback()

		_, err := svc.CreateOrdersFromWebhook(context.Background(), OrderWebhookRequest{
			SessionID: msgSessionID,
			Orders: []OrderRequest{
				{Category: "maintenance", Items: []OrderItemRequest{{Title: "AC bocor"}}},
				{Category: "restaurant", Items: []OrderItemRequest{{Title: "Meja 2 orang"}}},
			},
		})
		assert.True(t, errors.Is(err, apperr.ErrOrderCreateFailed))
		notifier.AssertNotCalled(t, "NotifyNewOrders", anyArg, anyArg, anyArg)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})
}

func TestListOrders_AttachesItemsAndRooms(t *testing.T) {
	svc, sqlMock, _ := newOrderService(t)
	orderCols := []string{"id", "order_number", "checkin_room_id", "session_id", "org_id", "category", "title",
		"description", "notes", "additional_notes", "status", "created_at", "updated_at",
		"guest_name", "guest_phone", "session_mode", "c_id", "c_room_id", "c_checkin_date", "c_status"}

	sqlMock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM orders o")).
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	sqlMock.ExpectQuery(regexp.QuoteMeta("ORDER BY o.created_at DESC")).
		WithArgs("org-1", 10, 0).
		WillReturnRows(sqlmock.NewRows(orderCols).AddRow("o-1", "ORD-1", "checkin-1", msgSessionID, "org-1",
			"housekeeping", "Housekeeping", "Handuk", "", "", "pending", webhookNow, webhookNow,
			"Budi", guestPhone, "agent", "checkin-1", "{room-1}", webhookNow, "active"))
	sqlMock.ExpectQuery("FROM order_items").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "title", "description", "qty", "price", "note", "created_at"}).
			AddRow("i-1", "o-1", "Handuk", "", 2, 0.0, "", webhookNow))
	sqlMock.ExpectQuery("FROM rooms r").
		WillReturnRows(sqlmock.NewRows(roomCols).AddRow("room-1", "org-1", "Deluxe 101", "101", "deluxe", true, webhookNow, webhookNow))

	orders, meta, err := svc.ListOrders(context.Background(), "org-1", pagination.Params{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 1, meta.Total)
	assert.Equal(t, "Budi", orders[0].GuestName)
	require.Len(t, orders[0].Items, 1)
	require.NotNil(t, orders[0].Checkin)
	require.Len(t, orders[0].Checkin.Rooms, 1)
	assert.Equal(t, "101", orders[0].Checkin.Rooms[0].RoomNumber)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}
