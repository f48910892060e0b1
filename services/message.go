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
	"github.com/sgahotel/cs-service/internal/pagination"
	"github.com/sgahotel/cs-service/internal/phone"
	"github.com/sgahotel/cs-service/repository"
)

// MessageItem is the list representation of a conversation message.
type MessageItem struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type SendMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (r SendMessageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SessionID, validation.Required, is.UUID),
		validation.Field(&r.Message, validation.Required),
	)
}

const (
	SendStatusSent    = "sent"
	SendStatusSkipped = "skipped"
)

type SendMessageResult struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id,omitempty"`
}

type MessageService struct {
	store  *repository.Store
	sender ChatSender
	now    func() time.Time
}

func NewMessageService(store *repository.Store, sender ChatSender) *MessageService {
	return &MessageService{store: store, sender: sender, now: time.Now}
}

func (s *MessageService) ListMessages(ctx context.Context, sessionID string, params pagination.Params) ([]MessageItem, pagination.Meta, error) {
	if err := validation.Validate(sessionID, validation.Required, is.UUID); err != nil {
		return nil, pagination.Meta{}, apperr.ErrValidation.WithDetails(map[string]string{"session_id": err.Error()})
	}
	msgs, meta, err := s.store.ListMessages(ctx, sessionID, params)
	if err != nil {
		return nil, pagination.Meta{}, apperr.ErrInternal.Wrap(err)
	}
	items := make([]MessageItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, MessageItem{ID: m.ID, Role: m.Role, Message: m.Text, CreatedAt: m.CreatedAt})
	}
	return items, meta, nil
}

// SendMessage delivers an agent-authored message to the guest of a session.
// In agent mode the text is recorded as a System message in the same
// transaction as the send, so a failed send leaves no trace.
func (s *MessageService) SendMessage(ctx context.Context, req SendMessageRequest) (*SendMessageResult, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	result := &SendMessageResult{SessionID: req.SessionID}
	err := s.store.InTx(ctx, func(q *repository.Queries) error {
		session, err := q.GetSession(ctx, req.SessionID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.ErrSessionNotFound.WithMessage("Session not found with ID: %s", req.SessionID)
		}
		if err != nil {
			return err
		}

		guest, err := q.GetUser(ctx, session.GuestID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.ErrGuestNotFound
		}
		if err != nil {
			return err
		}

		if session.Status == db.SessionStatusTerminated {
			result.Status = SendStatusSkipped
			return nil
		}
		if guest.MobilePhone == nil || *guest.MobilePhone == "" {
			return apperr.ErrGuestPhoneMissing
		}
		chatID, err := phone.ChatID(*guest.MobilePhone)
		if err != nil {
			return apperr.ErrGuestPhoneMissing.Wrap(err)
		}

		if session.Mode == db.SessionModeAgent {
			msg, err := q.CreateMessage(ctx, session.ID, db.MessageRoleSystem, req.Message, s.now())
			if err != nil {
				return err
			}
			result.MessageID = msg.ID
		}

		if err := s.sender.SendText(ctx, chatID, req.Message); err != nil {
			return apperr.ErrSendFailed.Wrap(err)
		}
		result.Status = SendStatusSent
		return nil
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		log.Error().Err(err).Str("session_id", req.SessionID).Msg("send message failed")
		return nil, apperr.ErrSendFailed.Wrap(err)
	}

	log.Info().Str("session_id", req.SessionID).Str("status", result.Status).Msg("agent message handled")
	return result, nil
}
