package services

import (
	"context"

	"github.com/sgahotel/cs-service/db"
	"github.com/sgahotel/cs-service/internal/apperr"
	"github.com/sgahotel/cs-service/repository"
)

// WorkerItem is a staff member that orders can be assigned to.
type WorkerItem struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      *string `json:"email,omitempty"`
	Phone      *string `json:"mobile_phone,omitempty"`
	DivisionID *string `json:"division_id,omitempty"`
	RoleName   string  `json:"role_name"`
	RoleCode   string  `json:"role_code"`
}

type WorkerService struct {
	store *repository.Store
}

func NewWorkerService(store *repository.Store) *WorkerService {
	return &WorkerService{store: store}
}

func (s *WorkerService) ListWorkers(ctx context.Context, orgID string) ([]WorkerItem, error) {
	users, err := s.store.ListWorkers(ctx, orgID)
	if err != nil {
		return nil, apperr.ErrInternal.Wrap(err)
	}
	items := make([]WorkerItem, 0, len(users))
	for _, u := range users {
		if !db.IsWorkerRole(u.RoleCode) {
			continue
		}
		items = append(items, WorkerItem{
			ID:         u.ID,
			Name:       u.Name,
			Email:      u.Email,
			Phone:      u.MobilePhone,
			DivisionID: u.DivisionID,
			RoleName:   u.RoleName,
			RoleCode:   u.RoleCode,
		})
	}
	return items, nil
}
