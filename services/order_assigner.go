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
	"github.com/sgahotel/cs-service/repository"
)

// MaxActiveOrdersPerWorker caps assigned, picked up and in-progress orders.
const MaxActiveOrdersPerWorker = 5

type AssignOrderRequest struct {
	WorkerID string `json:"worker_id"`
}

func (r AssignOrderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.WorkerID, validation.Required, is.UUID),
	)
}

type OrderAssignerService struct {
	store *repository.Store
	now   func() time.Time
}

func NewOrderAssignerService(store *repository.Store) *OrderAssignerService {
	return &OrderAssignerService{store: store, now: time.Now}
}

func (s *OrderAssignerService) AssignOrder(ctx context.Context, orderNumber string, req AssignOrderRequest) (*db.OrderAssigner, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	var assignment *db.OrderAssigner
	err := s.store.InTx(ctx, func(q *repository.Queries) error {
		order, err := q.GetOrderByNumber(ctx, orderNumber)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.ErrOrderNotFound
		}
		if err != nil {
			return err
		}

		if _, err := q.GetUser(ctx, req.WorkerID); errors.Is(err, repository.ErrNotFound) {
			return apperr.ErrWorkerNotFound
		} else if err != nil {
			return err
		}

		// Held until commit so two assignments cannot both see count 4.
		if err := q.LockWorkerAssignments(ctx, req.WorkerID); err != nil {
			return err
		}

		exists, err := q.AssignmentExists(ctx, order.ID, req.WorkerID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.ErrOrderAlreadyAssigned
		}

		active, err := q.CountActiveAssignments(ctx, req.WorkerID)
		if err != nil {
			return err
		}
		if active >= MaxActiveOrdersPerWorker {
			return apperr.ErrWorkerMaxActiveReached.WithMessage(
				"Worker has reached the maximum limit of %d active orders", MaxActiveOrdersPerWorker)
		}

		assignment = &db.OrderAssigner{OrderID: order.ID, WorkerID: req.WorkerID, Status: db.AssignmentStatusAssigned}
		return q.CreateAssignment(ctx, assignment, s.now())
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		log.Error().Err(err).Str("order_number", orderNumber).Str("worker_id", req.WorkerID).Msg("order assignment failed")
		return nil, apperr.ErrInternal.Wrap(err)
	}

	log.Info().Str("order_number", orderNumber).Str("worker_id", req.WorkerID).Str("assignment_id", assignment.ID).Msg("order assigned")
	return assignment, nil
}
