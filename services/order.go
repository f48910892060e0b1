package services

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sgahotel/cs-service/db"
	"github.com/sgahotel/cs-service/internal/apperr"
	"github.com/sgahotel/cs-service/internal/chattext"
	"github.com/sgahotel/cs-service/internal/pagination"
	"github.com/sgahotel/cs-service/repository"
)

type OrderItemRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Qty         *int     `json:"qty"`
	Price       *float64 `json:"price"`
	Note        string   `json:"note"`
}

func (r OrderItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Qty, validation.Min(1)),
		validation.Field(&r.Price, validation.Min(0.0)),
	)
}

type OrderRequest struct {
	Category       string             `json:"category"`
	Items          []OrderItemRequest `json:"items"`
	Note           string             `json:"note"`
	AdditionalNote string             `json:"additional_note"`
}

func (r OrderRequest) Validate() error {
	categories := make([]interface{}, len(db.OrderCategories))
	for i, c := range db.OrderCategories {
		categories[i] = c
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Category, validation.Required, validation.In(categories...)),
		validation.Field(&r.Items, validation.Required),
	)
}

// OrderWebhookRequest is posted by the agent router with every order it
// collected during one session.
type OrderWebhookRequest struct {
	SessionID string         `json:"session_id"`
	Orders    []OrderRequest `json:"orders"`
}

func (r OrderWebhookRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SessionID, validation.Required, is.UUID),
		validation.Field(&r.Orders, validation.Required),
	)
}

type OrderWebhookResult struct {
	Status       string   `json:"status"`
	Message      string   `json:"message"`
	OrderNumbers []string `json:"order_numbers"`
}

type OrderService struct {
	store    *repository.Store
	notifier StaffNotifier
	now      func() time.Time
}

func NewOrderService(store *repository.Store, notifier StaffNotifier) *OrderService {
	return &OrderService{store: store, notifier: notifier, now: time.Now}
}

// NewOrderNumber formats ORD-<utc timestamp>-<8 upper hex chars>.
func NewOrderNumber(now time.Time) string {
	short := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return "ORD-" + now.UTC().Format("20060102150405") + "-" + short
}

// CreateOrdersFromWebhook stores all orders of the request or none of them.
func (s *OrderService) CreateOrdersFromWebhook(ctx context.Context, req OrderWebhookRequest) (*OrderWebhookResult, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	var (
		created []db.Order
		orgID   string
	)
	err := s.store.InTx(ctx, func(q *repository.Queries) error {
		session, err := q.GetSession(ctx, req.SessionID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.ErrSessionNotFound.WithMessage("Session not found with ID: %s", req.SessionID)
		}
		if err != nil {
			return err
		}
		if session.CheckinRoomID == nil {
			return apperr.ErrSessionHasNoCheckin.WithMessage("Session %s does not have an associated check-in room", req.SessionID)
		}

		checkin, err := q.GetCheckin(ctx, *session.CheckinRoomID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		var org *string
		if checkin != nil {
			org = checkin.OrgID
		}

		now := s.now()
		for _, r := range req.Orders {
			order := buildOrder(r, session, org, now)
			if err := q.CreateOrder(ctx, &order, now); err != nil {
				return err
			}
			created = append(created, order)
		}
		if org != nil {
			orgID = *org
		}
		return nil
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		log.Error().Err(err).Str("session_id", req.SessionID).Msg("order creation failed")
		return nil, apperr.ErrOrderCreateFailed.Wrap(err)
	}

	numbers := make([]string, 0, len(created))
	for _, o := range created {
		numbers = append(numbers, o.OrderNumber)
	}
	log.Info().Str("session_id", req.SessionID).Strs("order_numbers", numbers).Msg("orders created")

	if s.notifier != nil && orgID != "" {
		if err := s.notifier.NotifyNewOrders(ctx, orgID, created); err != nil {
			log.Warn().Err(err).Str("org_id", orgID).Msg("failed to notify staff about new orders")
		}
	}

	return &OrderWebhookResult{
		Status:       "success",
		Message:      "Orders created successfully",
		OrderNumbers: numbers,
	}, nil
}

func buildOrder(r OrderRequest, session *db.Session, orgID *string, now time.Time) db.Order {
	titles := make([]string, 0, len(r.Items))
	items := make([]db.OrderItem, 0, len(r.Items))
	for _, it := range r.Items {
		qty := 1
		if it.Qty != nil {
			qty = *it.Qty
		}
		var price float64
		if it.Price != nil {
			price = *it.Price
		}
		titles = append(titles, it.Title)
		items = append(items, db.OrderItem{
			Title:       it.Title,
			Description: it.Description,
			Qty:         qty,
			Price:       price,
			Note:        it.Note,
		})
	}
	sessionID := session.ID
	return db.Order{
		OrderNumber:     NewOrderNumber(now),
		CheckinRoomID:   session.CheckinRoomID,
		SessionID:       &sessionID,
		OrgID:           orgID,
		Category:        r.Category,
		Title:           chattext.Label(r.Category),
		Description:     strings.Join(titles, ", "),
		Notes:           r.Note,
		AdditionalNotes: r.AdditionalNote,
		Status:          db.OrderStatusPending,
		Items:           items,
	}
}

// ListOrders pages through an organization's orders with their items and
// the rooms of the stay they belong to.
func (s *OrderService) ListOrders(ctx context.Context, orgID string, params pagination.Params) ([]db.Order, pagination.Meta, error) {
	orders, meta, err := s.store.ListOrders(ctx, orgID, params)
	if err != nil {
		return nil, pagination.Meta{}, apperr.ErrInternal.Wrap(err)
	}
	if len(orders) == 0 {
		return orders, meta, nil
	}

	orderIDs := make([]string, 0, len(orders))
	roomIDs := []string{}
	seen := map[string]bool{}
	for _, o := range orders {
		orderIDs = append(orderIDs, o.ID)
		if o.Checkin == nil {
			continue
		}
		for _, id := range o.Checkin.RoomIDs {
			if !seen[id] {
				seen[id] = true
				roomIDs = append(roomIDs, id)
			}
		}
	}

	items, err := s.store.ListOrderItems(ctx, orderIDs)
	if err != nil {
		return nil, pagination.Meta{}, apperr.ErrInternal.Wrap(err)
	}
	rooms := map[string]db.Room{}
	if len(roomIDs) > 0 {
		list, err := s.store.GetRoomsByIDs(ctx, roomIDs)
		if err != nil {
			return nil, pagination.Meta{}, apperr.ErrInternal.Wrap(err)
		}
		for _, r := range list {
			rooms[r.ID] = r
		}
	}

	for i := range orders {
		orders[i].Items = items[orders[i].ID]
		if c := orders[i].Checkin; c != nil {
			for _, id := range c.RoomIDs {
				if r, ok := rooms[id]; ok {
					c.Rooms = append(c.Rooms, r)
				}
			}
		}
	}
	return orders, meta, nil
}
