package services

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/rs/zerolog/log"

	"github.com/sgahotel/cs-service/db"
	"github.com/sgahotel/cs-service/internal/apperr"
	"github.com/sgahotel/cs-service/internal/phone"
	"github.com/sgahotel/cs-service/repository"
)

const dateLayout = "2006-01-02"

type RegisterGuestRequest struct {
	FullName    string `json:"full_name"`
	RoomNumber  string `json:"room_number"`
	CheckinDate string `json:"checkin_date"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

func (r RegisterGuestRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.RoomNumber, validation.Required, validation.Length(1, 50)),
		validation.Field(&r.CheckinDate, validation.Required, validation.Date(dateLayout)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.PhoneNumber, validation.Required, validation.Length(1, 20), validPhone),
	)
}

type RegisterGuestResponse struct {
	UserID      string `json:"user_id"`
	CheckinID   string `json:"checkin_id"`
	FullName    string `json:"full_name"`
	RoomNumber  string `json:"room_number"`
	CheckinDate string `json:"checkin_date"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Status      string `json:"status"`
}

type GuestService struct {
	store *repository.Store
	now   func() time.Time
}

func NewGuestService(store *repository.Store) *GuestService {
	return &GuestService{store: store, now: time.Now}
}

// RegisterGuest creates the guest user and the check-in and books the room.
// Either all three happen or none.
func (s *GuestService) RegisterGuest(ctx context.Context, orgID string, req RegisterGuestRequest) (*RegisterGuestResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}
	checkinDate, _ := time.Parse(dateLayout, req.CheckinDate)
	number, _ := phone.Parse(req.PhoneNumber)

	var resp *RegisterGuestResponse
	err := s.store.InTx(ctx, func(q *repository.Queries) error {
		now := s.now()

		role, err := q.GetRoleByCode(ctx, db.RoleGuest)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.ErrGuestRoleNotFound
		}
		if err != nil {
			return err
		}

		room, err := q.LockRoomByNumber(ctx, orgID, req.RoomNumber)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.ErrRoomNotFound.WithMessage("Room %s not found", req.RoomNumber)
		}
		if err != nil {
			return err
		}
		if room.IsBooked {
			return apperr.ErrRoomAlreadyBooked.WithMessage("Room %s is already booked", req.RoomNumber)
		}

		org := room.OrgID
		if orgID != "" {
			org = &orgID
		}
		email := req.Email
		user := &db.User{
			OrgID:       org,
			RoleID:      &role.ID,
			Name:        req.FullName,
			Email:       &email,
			MobilePhone: &number.Local,
		}
		if err := q.CreateUser(ctx, user, now); err != nil {
			return err
		}

		checkin := &db.CheckinRoom{
			OrgID:       org,
			GuestID:     user.ID,
			RoomIDs:     []string{room.ID},
			CheckinDate: checkinDate,
			CheckinTime: now.Format("15:04:05"),
			Status:      db.CheckinStatusActive,
		}
		if err := q.CreateCheckin(ctx, checkin, now); err != nil {
			return err
		}
		if err := q.SetRoomBooked(ctx, room.ID, true, now); err != nil {
			return err
		}

		resp = &RegisterGuestResponse{
			UserID:      user.ID,
			CheckinID:   checkin.ID,
			FullName:    user.Name,
			RoomNumber:  room.RoomNumber,
			CheckinDate: req.CheckinDate,
			Email:       req.Email,
			PhoneNumber: number.Local,
			Status:      checkin.Status,
		}
		return nil
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		log.Error().Err(err).Str("room_number", req.RoomNumber).Msg("guest registration failed")
		return nil, apperr.ErrRegistrationFailed.Wrap(err)
	}

	log.Info().Str("user_id", resp.UserID).Str("room_number", resp.RoomNumber).Msg("guest registered")
	return resp, nil
}
