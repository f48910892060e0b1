package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sgahotel/cs-service/db"
	"github.com/sgahotel/cs-service/internal/pagination"
)

// CreateOrder inserts an order and its items. Run it inside InTx.
func (q *Queries) CreateOrder(ctx context.Context, o *db.Order, now time.Time) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	o.CreatedAt = now
	o.UpdatedAt = now
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, checkin_room_id, session_id, org_id, category, title,
			description, notes, additional_notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
	`, o.ID, o.OrderNumber, o.CheckinRoomID, o.SessionID, o.OrgID, o.Category, o.Title,
		o.Description, o.Notes, o.AdditionalNotes, o.Status, now)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		item.ID = uuid.New().String()
		item.OrderID = o.ID
		item.CreatedAt = now
		_, err := q.db.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, title, description, qty, price, note, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		`, item.ID, item.OrderID, item.Title, item.Description, item.Qty, item.Price, item.Note, now)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}
	return nil
}

const orderColumns = `o.id, o.order_number, o.checkin_room_id, o.session_id, o.org_id, o.category, o.title,
	COALESCE(o.description, ''), COALESCE(o.notes, ''), COALESCE(o.additional_notes, ''), o.status,
	o.created_at, o.updated_at`

func scanOrder(row scanner, extra ...any) (*db.Order, error) {
	var o db.Order
	dest := []any{&o.ID, &o.OrderNumber, &o.CheckinRoomID, &o.SessionID, &o.OrgID, &o.Category, &o.Title,
		&o.Description, &o.Notes, &o.AdditionalNotes, &o.Status, &o.CreatedAt, &o.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &o, nil
}

func (q *Queries) GetOrderByNumber(ctx context.Context, orderNumber string) (*db.Order, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.order_number = $1 AND o.deleted_at IS NULL
	`, orderNumber)
	o, err := scanOrder(row)
	if err != nil {
		return nil, notFound(err, "order")
	}
	return o, nil
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, orderID, status string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1
	`, orderID, status, now)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return nil
}

// ListOrders returns an organization's orders with guest and stay details.
func (q *Queries) ListOrders(ctx context.Context, orgID string, p pagination.Params) ([]db.Order, pagination.Meta, error) {
	query := &pagination.Query{
		Columns: orderColumns + `, COALESCE(g.name, ''), COALESCE(g.mobile_phone, ''), COALESCE(s.mode, ''),
			c.id, c.room_id, c.checkin_date, c.status`,
		From: `orders o
			LEFT JOIN sessions s ON s.id = o.session_id
			LEFT JOIN checkin_rooms c ON c.id = o.checkin_room_id
			LEFT JOIN users g ON g.id = c.guest_id`,
		SearchColumns: []string{"o.order_number", "o.title", "o.category", "g.name"},
		Sortable: map[string]string{
			"created_at":   "o.created_at",
			"order_number": "o.order_number",
			"status":       "o.status",
			"category":     "o.category",
		},
		DefaultOrder: "created_at:desc",
	}
	query.Where("o.deleted_at IS NULL").Where("o.org_id = ?", orgID)

	return pagination.Fetch(ctx, q.db, query, p, func(rows *sql.Rows) (db.Order, error) {
		var (
			guestName, guestPhone, mode string
			checkinID, checkinStatus    sql.NullString
			checkinDate                 sql.NullTime
			roomIDs                     []string
		)
		o, err := scanOrder(rows, &guestName, &guestPhone, &mode,
			&checkinID, pq.Array(&roomIDs), &checkinDate, &checkinStatus)
		if err != nil {
			return db.Order{}, err
		}
		o.GuestName = guestName
		o.GuestPhone = guestPhone
		o.SessionMode = mode
		if checkinID.Valid {
			o.Checkin = &db.CheckinRoom{
				ID:          checkinID.String,
				RoomIDs:     roomIDs,
				CheckinDate: checkinDate.Time,
				Status:      checkinStatus.String,
			}
		}
		return *o, nil
	})
}

// ListOrderItems loads items for a set of orders keyed by order id.
func (q *Queries) ListOrderItems(ctx context.Context, orderIDs []string) (map[string][]db.OrderItem, error) {
	out := map[string][]db.OrderItem{}
	if len(orderIDs) == 0 {
		return out, nil
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, order_id, title, COALESCE(description, ''), qty, price, COALESCE(note, ''), created_at
		FROM order_items
		WHERE order_id = ANY($1::uuid[]) AND deleted_at IS NULL
		ORDER BY created_at ASC
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it db.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.Title, &it.Description, &it.Qty, &it.Price, &it.Note, &it.CreatedAt); err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

// LockWorkerAssignments serializes assignment of orders to one worker for the
// rest of the transaction.
func (q *Queries) LockWorkerAssignments(ctx context.Context, workerID string) error {
	_, err := q.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, workerID)
	if err != nil {
		return fmt.Errorf("failed to lock worker: %w", err)
	}
	return nil
}

func (q *Queries) CountActiveAssignments(ctx context.Context, workerID string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM order_assigners
		WHERE worker_id = $1 AND status = ANY($2) AND deleted_at IS NULL
	`, workerID, pq.Array(db.ActiveAssignmentStatuses)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count assignments: %w", err)
	}
	return n, nil
}

func (q *Queries) AssignmentExists(ctx context.Context, orderID, workerID string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM order_assigners
			WHERE order_id = $1 AND worker_id = $2 AND deleted_at IS NULL
		)
	`, orderID, workerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check assignment: %w", err)
	}
	return exists, nil
}

func (q *Queries) CreateAssignment(ctx context.Context, a *db.OrderAssigner, now time.Time) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.AssignedAt = now
	a.CreatedAt = now
	a.UpdatedAt = now
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO order_assigners (id, order_id, worker_id, assigned_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $4, $4)
	`, a.ID, a.OrderID, a.WorkerID, now, a.Status)
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}
