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

const roomColumns = `r.id, r.org_id, r.label, r.room_number, r.type, r.is_booked, r.created_at, r.updated_at`

func scanRoom(row scanner) (db.Room, error) {
	var r db.Room
	err := row.Scan(&r.ID, &r.OrgID, &r.Label, &r.RoomNumber, &r.Type, &r.IsBooked, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// LockRoomByNumber selects a room FOR UPDATE so concurrent registrations for
// the same room serialize. orgID may be empty for tokens without an org.
func (q *Queries) LockRoomByNumber(ctx context.Context, orgID, roomNumber string) (*db.Room, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+roomColumns+`
		FROM rooms r
		WHERE r.room_number = $1 AND r.deleted_at IS NULL
		  AND ($2 = '' OR r.org_id::text = $2)
		ORDER BY r.created_at ASC
		LIMIT 1
		FOR UPDATE
	`, roomNumber, orgID)
	r, err := scanRoom(row)
	if err != nil {
		return nil, notFound(err, "room")
	}
	return &r, nil
}

func (q *Queries) SetRoomBooked(ctx context.Context, roomID string, booked bool, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE rooms SET is_booked = $2, updated_at = $3 WHERE id = $1
	`, roomID, booked, now)
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	return nil
}

func (q *Queries) GetRoomsByIDs(ctx context.Context, ids []string) ([]db.Room, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+roomColumns+`
		FROM rooms r
		WHERE r.id = ANY($1::uuid[])
		ORDER BY r.room_number ASC
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get rooms: %w", err)
	}
	defer rows.Close()
	rooms := []db.Room{}
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

// RoomFilter narrows ListRooms.
type RoomFilter struct {
	OrgID    string
	IsBooked *bool
}

func (q *Queries) ListRooms(ctx context.Context, f RoomFilter, p pagination.Params) ([]db.Room, pagination.Meta, error) {
	query := &pagination.Query{
		Columns:       roomColumns,
		From:          "rooms r",
		SearchColumns: []string{"r.room_number", "r.label", "r.type"},
		Sortable: map[string]string{
			"room_number": "r.room_number",
			"label":       "r.label",
			"type":        "r.type",
			"created_at":  "r.created_at",
		},
		DefaultOrder: "room_number:asc",
	}
	query.Where("r.deleted_at IS NULL")
	if f.OrgID != "" {
		query.Where("r.org_id = ?", f.OrgID)
	}
	if f.IsBooked != nil {
		query.Where("r.is_booked = ?", *f.IsBooked)
	}
	return pagination.Fetch(ctx, q.db, query, p, func(rows *sql.Rows) (db.Room, error) {
		return scanRoom(rows)
	})
}

func (q *Queries) CreateCheckin(ctx context.Context, c *db.CheckinRoom, now time.Time) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO checkin_rooms (id, org_id, guest_id, room_id, checkin_date, checkin_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, c.ID, c.OrgID, c.GuestID, pq.Array(c.RoomIDs), c.CheckinDate, c.CheckinTime, c.Status, now)
	if err != nil {
		return fmt.Errorf("failed to create check-in: %w", err)
	}
	return nil
}

const checkinColumns = `c.id, c.org_id, c.guest_id, c.room_id, c.checkin_date, c.checkin_time::text,
	c.checkout_date, c.checkout_time::text, c.status, c.created_at, c.updated_at`

func scanCheckin(row scanner) (*db.CheckinRoom, error) {
	var c db.CheckinRoom
	err := row.Scan(&c.ID, &c.OrgID, &c.GuestID, pq.Array(&c.RoomIDs), &c.CheckinDate, &c.CheckinTime,
		&c.CheckoutDate, &c.CheckoutTime, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetActiveCheckinByGuest returns the guest's latest active stay.
func (q *Queries) GetActiveCheckinByGuest(ctx context.Context, guestID string) (*db.CheckinRoom, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+checkinColumns+`
		FROM checkin_rooms c
		WHERE c.guest_id = $1 AND c.status = $2 AND c.deleted_at IS NULL
		ORDER BY c.created_at DESC
		LIMIT 1
	`, guestID, db.CheckinStatusActive)
	c, err := scanCheckin(row)
	if err != nil {
		return nil, notFound(err, "active check-in")
	}
	return c, nil
}

func (q *Queries) GetCheckin(ctx context.Context, id string) (*db.CheckinRoom, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+checkinColumns+`
		FROM checkin_rooms c
		WHERE c.id = $1 AND c.deleted_at IS NULL
	`, id)
	c, err := scanCheckin(row)
	if err != nil {
		return nil, notFound(err, "check-in")
	}
	return c, nil
}
