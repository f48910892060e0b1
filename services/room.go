package services

import (
	"context"

	"github.com/sgahotel/cs-service/db"
	"github.com/sgahotel/cs-service/internal/apperr"
	"github.com/sgahotel/cs-service/internal/pagination"
	"github.com/sgahotel/cs-service/repository"
)

type RoomService struct {
	store *repository.Store
}

func NewRoomService(store *repository.Store) *RoomService {
	return &RoomService{store: store}
}

// ListRooms pages through an organization's rooms. A nil booked filter
// returns both booked and free rooms.
func (s *RoomService) ListRooms(ctx context.Context, orgID string, params pagination.Params, booked *bool) ([]db.Room, pagination.Meta, error) {
	rooms, meta, err := s.store.ListRooms(ctx, repository.RoomFilter{OrgID: orgID, IsBooked: booked}, params)
	if err != nil {
		return nil, pagination.Meta{}, apperr.ErrInternal.Wrap(err)
	}
	return rooms, meta, nil
}
