package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sgahotel/cs-service/db"
)

func (q *Queries) GetOrganization(ctx context.Context, id string) (*db.Organization, error) {
	var org db.Organization
	err := q.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(address, ''), created_at, updated_at
		FROM organizations
		WHERE id = $1 AND deleted_at IS NULL
	`, id).Scan(&org.ID, &org.Name, &org.Address, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "organization")
	}
	return &org, nil
}

func (q *Queries) CreateOrganization(ctx context.Context, id, name string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
	`, id, name, now)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

func (q *Queries) RenameOrganization(ctx context.Context, id, name string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE organizations SET name = $2, updated_at = $3 WHERE id = $1
	`, id, name, now)
	if err != nil {
		return fmt.Errorf("failed to rename organization: %w", err)
	}
	return nil
}

func (q *Queries) GetRoleByCode(ctx context.Context, code string) (*db.Role, error) {
	var r db.Role
	err := q.db.QueryRowContext(ctx, `
		SELECT id, name, code, COALESCE(description, ''), created_at, updated_at
		FROM roles
		WHERE code = $1 AND deleted_at IS NULL
	`, code).Scan(&r.ID, &r.Name, &r.Code, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "role")
	}
	return &r, nil
}

func (q *Queries) CreateRole(ctx context.Context, name, code, description string, now time.Time) (*db.Role, error) {
	r := db.Role{ID: uuid.New().String(), Name: name, Code: code, Description: description, CreatedAt: now, UpdatedAt: now}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO roles (id, name, code, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, r.ID, r.Name, r.Code, r.Description, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}
	return &r, nil
}

const userColumns = `u.id, u.org_id, u.division_id, u.role_id, u.name, u.email, u.mobile_phone,
	u.id_card_number, u.created_at, u.updated_at, COALESCE(r.name, ''), COALESCE(r.code, '')`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*db.User, error) {
	var u db.User
	err := row.Scan(&u.ID, &u.OrgID, &u.DivisionID, &u.RoleID, &u.Name, &u.Email, &u.MobilePhone,
		&u.IDCardNumber, &u.CreatedAt, &u.UpdatedAt, &u.RoleName, &u.RoleCode)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (q *Queries) GetUser(ctx context.Context, id string) (*db.User, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users u
		LEFT JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1 AND u.deleted_at IS NULL
	`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return u, nil
}

// GetUserByPhone finds the most recently created user with a local-format phone.
func (q *Queries) GetUserByPhone(ctx context.Context, phone string) (*db.User, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users u
		LEFT JOIN roles r ON r.id = u.role_id
		WHERE u.mobile_phone = $1 AND u.deleted_at IS NULL
		ORDER BY u.created_at DESC
		LIMIT 1
	`, phone)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, "user by phone")
	}
	return u, nil
}

func (q *Queries) CreateUser(ctx context.Context, u *db.User, now time.Time) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO users (id, org_id, division_id, role_id, name, email, mobile_phone, id_card_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, u.ID, u.OrgID, u.DivisionID, u.RoleID, u.Name, u.Email, u.MobilePhone, u.IDCardNumber, now)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (q *Queries) UpdateUserProfile(ctx context.Context, id, name string, email, orgID *string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET name = $2, email = $3, org_id = $4, updated_at = $5
		WHERE id = $1
	`, id, name, email, orgID, now)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// ListWorkers returns staff of an organization that can be assigned orders.
func (q *Queries) ListWorkers(ctx context.Context, orgID string) ([]db.User, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.org_id = $1 AND u.deleted_at IS NULL AND NOT (r.code = ANY($2))
		ORDER BY u.name ASC
	`, orgID, pq.Array(db.NonWorkerRoles))
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	defer rows.Close()

	workers := []db.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, *u)
	}
	return workers, rows.Err()
}
