package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sgahotel/cs-service/db"
	"github.com/sgahotel/cs-service/internal/apperr"
	"github.com/sgahotel/cs-service/repository"
)

// AuthSyncService mirrors identity provider organizations and users into the
// local tables so foreign keys (orders, check-ins, assignments) resolve.
type AuthSyncService struct {
	store *repository.Store
	now   func() time.Time
}

func NewAuthSyncService(store *repository.Store) *AuthSyncService {
	return &AuthSyncService{store: store, now: time.Now}
}

// SyncUser upserts the organization and user described by td in one
// transaction and returns the local user row.
func (s *AuthSyncService) SyncUser(ctx context.Context, td *TokenData) (*db.User, error) {
	if _, err := uuid.Parse(td.UserID); err != nil {
		return nil, apperr.ErrUserSyncFailed.WithMessage("Token subject is not a UUID").Wrap(err)
	}
	var orgID *string
	if td.OrganizationID != "" {
		if _, err := uuid.Parse(td.OrganizationID); err != nil {
			return nil, apperr.ErrUserSyncFailed.WithMessage("Organization id is not a UUID").Wrap(err)
		}
		id := td.OrganizationID
		orgID = &id
	}

	var user *db.User
	err := s.store.InTx(ctx, func(q *repository.Queries) error {
		now := s.now()
		if orgID != nil {
			if err := s.syncOrganization(ctx, q, *orgID, td.OrganizationName, now); err != nil {
				return err
			}
		}
		u, err := s.syncUser(ctx, q, td, orgID, now)
		user = u
		return err
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		return nil, apperr.ErrUserSyncFailed.Wrap(err)
	}
	return user, nil
}

func (s *AuthSyncService) syncOrganization(ctx context.Context, q *repository.Queries, id, name string, now time.Time) error {
	org, err := q.GetOrganization(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		if name == "" {
			name = id
		}
		log.Info().Str("org_id", id).Str("name", name).Msg("creating organization from token")
		return q.CreateOrganization(ctx, id, name, now)
	}
	if err != nil {
		return err
	}
	if name != "" && org.Name != name {
		log.Info().Str("org_id", id).Str("from", org.Name).Str("to", name).Msg("renaming organization")
		return q.RenameOrganization(ctx, id, name, now)
	}
	return nil
}

func (s *AuthSyncService) syncUser(ctx context.Context, q *repository.Queries, td *TokenData, orgID *string, now time.Time) (*db.User, error) {
	name := td.DisplayName()
	var email *string
	if td.Email != "" {
		e := td.Email
		email = &e
	}

	existing, err := q.GetUser(ctx, td.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		role, err := s.defaultRole(ctx, q, now)
		if err != nil {
			return nil, err
		}
		u := &db.User{ID: td.UserID, OrgID: orgID, RoleID: &role.ID, Name: name, Email: email, RoleName: role.Name, RoleCode: role.Code}
		if err := q.CreateUser(ctx, u, now); err != nil {
			return nil, err
		}
		log.Info().Str("user_id", u.ID).Msg("created user from token")
		return u, nil
	}
	if err != nil {
		return nil, err
	}

	if existing.Name == name && equalPtr(existing.Email, email) && equalPtr(existing.OrgID, orgID) {
		return existing, nil
	}
	if err := q.UpdateUserProfile(ctx, existing.ID, name, email, orgID, now); err != nil {
		return nil, err
	}
	existing.Name, existing.Email, existing.OrgID = name, email, orgID
	return existing, nil
}

func (s *AuthSyncService) defaultRole(ctx context.Context, q *repository.Queries, now time.Time) (*db.Role, error) {
	role, err := q.GetRoleByCode(ctx, db.RoleKeycloakUser)
	if errors.Is(err, repository.ErrNotFound) {
		return q.CreateRole(ctx, db.DefaultSyncedRoleName, db.RoleKeycloakUser, "Default role for users first seen through a token", now)
	}
	if err != nil {
		return nil, fmt.Errorf("default role: %w", err)
	}
	return role, nil
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
