package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sgahotel/cs-service/db"
	"github.com/sgahotel/cs-service/internal/pagination"
)

const sessionColumns = `s.id, s.status, s.mode, s.start, s."end", s.duration, s.guest_id,
	s.checkin_room_id, s.agent_created, s.created_at, s.updated_at`

func scanSession(row scanner) (*db.Session, error) {
	var s db.Session
	err := row.Scan(&s.ID, &s.Status, &s.Mode, &s.Start, &s.End, &s.Duration, &s.GuestID,
		&s.CheckinRoomID, &s.AgentCreated, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (q *Queries) GetSession(ctx context.Context, id string) (*db.Session, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions s
		WHERE s.id = $1 AND s.deleted_at IS NULL
	`, id)
	s, err := scanSession(row)
	if err != nil {
		return nil, notFound(err, "session")
	}
	return s, nil
}

// GetOpenSessionByGuest returns the guest's most recently created open session.
func (q *Queries) GetOpenSessionByGuest(ctx context.Context, guestID string) (*db.Session, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions s
		WHERE s.guest_id = $1 AND s.status = $2 AND s.deleted_at IS NULL
		ORDER BY s.created_at DESC
		LIMIT 1
	`, guestID, db.SessionStatusOpen)
	s, err := scanSession(row)
	if err != nil {
		return nil, notFound(err, "open session")
	}
	return s, nil
}

func (q *Queries) CreateSession(ctx context.Context, s *db.Session, now time.Time) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.Start = now
	s.CreatedAt = now
	s.UpdatedAt = now
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO sessions (id, status, mode, start, guest_id, checkin_room_id, agent_created, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $4, $4)
	`, s.ID, s.Status, s.Mode, now, s.GuestID, s.CheckinRoomID, s.AgentCreated)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// TerminateSession closes an open session and records its duration in
// seconds. Already terminated sessions are left untouched.
func (q *Queries) TerminateSession(ctx context.Context, id string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = $2, "end" = $3,
		    duration = GREATEST(0, EXTRACT(EPOCH FROM ($3::timestamptz - start)))::bigint,
		    updated_at = $3
		WHERE id = $1 AND status = $4
	`, id, db.SessionStatusTerminated, now, db.SessionStatusOpen)
	if err != nil {
		return fmt.Errorf("failed to terminate session: %w", err)
	}
	return nil
}

// TerminateIdleSession closes the session only if it is still open and was
// last updated before cutoff. It reports whether a row changed.
func (q *Queries) TerminateIdleSession(ctx context.Context, id string, cutoff, now time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = $2, "end" = $3,
		    duration = GREATEST(0, EXTRACT(EPOCH FROM ($3::timestamptz - start)))::bigint,
		    updated_at = $3
		WHERE id = $1 AND status = $4 AND updated_at < $5
	`, id, db.SessionStatusTerminated, now, db.SessionStatusOpen, cutoff)
	if err != nil {
		return false, fmt.Errorf("failed to terminate idle session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TouchSession moves the idle window of an open session forward. It returns
// ErrNotFound when the session is no longer open.
func (q *Queries) TouchSession(ctx context.Context, id string, now time.Time) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE sessions SET updated_at = $2 WHERE id = $1 AND status = $3
	`, id, now, db.SessionStatusOpen)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) MarkAgentCreated(ctx context.Context, id string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE sessions SET agent_created = TRUE, updated_at = $2 WHERE id = $1
	`, id, now)
	if err != nil {
		return fmt.Errorf("failed to mark agent created: %w", err)
	}
	return nil
}

// ListIdleSessionIDs returns open sessions last updated before cutoff.
func (q *Queries) ListIdleSessionIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id FROM sessions
		WHERE status = $1 AND updated_at < $2 AND deleted_at IS NULL
		ORDER BY updated_at ASC
		LIMIT $3
	`, db.SessionStatusOpen, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list idle sessions: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (q *Queries) CreateMessage(ctx context.Context, sessionID, role, text string, now time.Time) (*db.Message, error) {
	m := db.Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      role,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, m.ID, m.SessionID, m.Role, m.Text, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return &m, nil
}

func (q *Queries) ListMessages(ctx context.Context, sessionID string, p pagination.Params) ([]db.Message, pagination.Meta, error) {
	query := &pagination.Query{
		Columns:       "m.id, m.session_id, m.role, m.text, m.created_at, m.updated_at",
		From:          "messages m",
		SearchColumns: []string{"m.text"},
		Sortable: map[string]string{
			"created_at": "m.created_at",
			"role":       "m.role",
		},
		DefaultOrder: "created_at:asc",
	}
	query.Where("m.deleted_at IS NULL").Where("m.session_id = ?", sessionID)
	return pagination.Fetch(ctx, q.db, query, p, func(rows *sql.Rows) (db.Message, error) {
		var m db.Message
		err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Text, &m.CreatedAt, &m.UpdatedAt)
		return m, err
	})
}
