package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sgahotel/cs-service/db"
	"github.com/sgahotel/cs-service/internal/chattext"
	"github.com/sgahotel/cs-service/internal/phone"
	"github.com/sgahotel/cs-service/repository"
)

// DefaultSessionIdleTimeout closes a conversation after this much silence.
const DefaultSessionIdleTimeout = 30 * time.Minute

const maxResolveAttempts = 2

// ChatSender delivers a text to a guest's WhatsApp.
type ChatSender interface {
	SendText(ctx context.Context, to, text string) error
}

// AgentProvisioner creates the conversational agent for a session.
type AgentProvisioner interface {
	CreateAgent(ctx context.Context, sessionID string) error
}

// ConversationTx is the set of writes made while handling one inbound message.
type ConversationTx interface {
	CreateSession(ctx context.Context, s *db.Session, now time.Time) error
	TerminateSession(ctx context.Context, id string, now time.Time) error
	TouchSession(ctx context.Context, id string, now time.Time) error
	CreateMessage(ctx context.Context, sessionID, role, text string, now time.Time) (*db.Message, error)
}

// ConversationStore is the storage the webhook flow depends on.
type ConversationStore interface {
	ConversationTx
	GetUserByPhone(ctx context.Context, phone string) (*db.User, error)
	GetOpenSessionByGuest(ctx context.Context, guestID string) (*db.Session, error)
	GetActiveCheckinByGuest(ctx context.Context, guestID string) (*db.CheckinRoom, error)
	MarkAgentCreated(ctx context.Context, id string, now time.Time) error
	InConversationTx(ctx context.Context, fn func(tx ConversationTx) error) error
}

// SQLConversationStore adapts repository.Store to ConversationStore.
type SQLConversationStore struct {
	*repository.Store
}

func (s SQLConversationStore) InConversationTx(ctx context.Context, fn func(tx ConversationTx) error) error {
	return s.InTx(ctx, func(q *repository.Queries) error { return fn(q) })
}

// Webhook outcomes reported back to the gateway.
const (
	WebhookProcessed = "processed"
	WebhookIgnored   = "ignored"
)

// WebhookResult describes what happened to one inbound event.
type WebhookResult struct {
	Status         string `json:"status"`
	Reason         string `json:"reason,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	SessionCreated bool   `json:"session_created,omitempty"`
	SessionEnded   bool   `json:"session_ended,omitempty"`
}

func ignored(reason string) *WebhookResult {
	return &WebhookResult{Status: WebhookIgnored, Reason: reason}
}

var errNoActiveCheckin = errors.New("no active check-in")

// WebhookService runs the guest conversation lifecycle for inbound WhatsApp
// messages. Database writes are authoritative; WhatsApp, agent router and
// push notification calls are best-effort and only logged on failure.
type WebhookService struct {
	store       ConversationStore
	sender      ChatSender
	agents      AgentProvisioner
	notifier    StaffNotifier
	dedup       MessageDeduplicator
	idleTimeout time.Duration
	now         func() time.Time

	locksMu    sync.Mutex
	guestLocks map[string]*guestLock
}

type WebhookServiceOptions struct {
	Notifier    StaffNotifier
	Dedup       MessageDeduplicator
	IdleTimeout time.Duration
}

func NewWebhookService(store ConversationStore, sender ChatSender, agents AgentProvisioner, opts WebhookServiceOptions) *WebhookService {
	timeout := opts.IdleTimeout
	if timeout <= 0 {
		timeout = DefaultSessionIdleTimeout
	}
	return &WebhookService{
		store:       store,
		sender:      sender,
		agents:      agents,
		notifier:    opts.Notifier,
		dedup:       opts.Dedup,
		idleTimeout: timeout,
		now:         time.Now,
	}
}

// HandleEvent processes one WAHA webhook event.
func (s *WebhookService) HandleEvent(ctx context.Context, ev *WAHAEvent) (*WebhookResult, error) {
	if ev.Event != "message" {
		log.Debug().Str("event", ev.Event).Msg("ignoring non-message webhook event")
		return ignored("unsupported event"), nil
	}
	msg := ev.Payload
	if msg.FromMe {
		return ignored("outgoing message"), nil
	}

	claimed := false
	if s.dedup != nil && msg.ID != "" {
		first, err := s.dedup.FirstSeen(ctx, msg.ID)
		if err != nil {
			log.Warn().Err(err).Str("message_id", msg.ID).Msg("dedup check failed, processing message")
		} else if !first {
			log.Info().Str("message_id", msg.ID).Msg("duplicate webhook delivery ignored")
			return ignored("duplicate message"), nil
		} else {
			claimed = true
		}
	}

	result, err := s.handleMessage(ctx, msg)
	if err != nil && claimed {
		// Release the id so the gateway's redelivery is handled.
		if ferr := s.dedup.Forget(context.WithoutCancel(ctx), msg.ID); ferr != nil {
			log.Error().Err(ferr).Str("message_id", msg.ID).Msg("failed to release message id")
		}
	}
	return result, err
}

func (s *WebhookService) handleMessage(ctx context.Context, msg WAHAMessage) (*WebhookResult, error) {
	localPhone, err := phone.LocalFromChatID(msg.From)
	if err != nil {
		log.Warn().Str("from", msg.From).Msg("cannot parse sender")
		return ignored("invalid sender"), nil
	}

	user, err := s.store.GetUserByPhone(ctx, localPhone)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn().Str("phone", localPhone).Msg("user not found for phone number")
		return ignored("unknown sender"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	unlock := s.lockGuest(user.ID)
	defer unlock()

	for attempt := 1; ; attempt++ {
		session, checkin, created, err := s.resolveSession(ctx, user)
		if errors.Is(err, errNoActiveCheckin) {
			log.Error().Str("user_id", user.ID).Msg("no active check-in, cannot create session")
			return ignored("no active check-in"), nil
		}
		if err != nil {
			return nil, err
		}

		result := &WebhookResult{Status: WebhookProcessed, SessionID: session.ID, SessionCreated: created}
		if created {
			s.onSessionCreated(ctx, user, session, checkin, msg.From)
		}

		if chattext.IsEndCommand(msg.Body) {
			if err := s.endSession(ctx, session, msg.Body, msg.From); err != nil {
				return nil, err
			}
			result.SessionEnded = true
			return result, nil
		}

		err = s.recordExchange(ctx, session, msg.Body, msg.From)
		if errors.Is(err, repository.ErrNotFound) && attempt < maxResolveAttempts {
			// Closed by the idle sweeper after it was resolved.
			log.Info().Str("session_id", session.ID).Msg("session closed concurrently, resolving again")
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

type guestLock struct {
	mu   sync.Mutex
	refs int
}

// lockGuest serialises message handling per guest. Entries are dropped once
// no caller holds or waits on them.
func (s *WebhookService) lockGuest(guestID string) func() {
	s.locksMu.Lock()
	if s.guestLocks == nil {
		s.guestLocks = map[string]*guestLock{}
	}
	l, ok := s.guestLocks[guestID]
	if !ok {
		l = &guestLock{}
		s.guestLocks[guestID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.guestLocks, guestID)
		}
		s.locksMu.Unlock()
	}
}

// resolveSession reuses the guest's open session while it is fresh and
// otherwise opens a new one on the active check-in. An expired session is
// terminated even when no new session can be opened.
func (s *WebhookService) resolveSession(ctx context.Context, user *db.User) (*db.Session, *db.CheckinRoom, bool, error) {
	now := s.now()

	open, err := s.store.GetOpenSessionByGuest(ctx, user.ID)
	switch {
	case err == nil && !open.IsExpired(now, s.idleTimeout):
		return open, nil, false, nil
	case err == nil:
		log.Info().Str("session_id", open.ID).Dur("idle", now.Sub(open.UpdatedAt)).Msg("session expired, terminating")
		if err := s.store.TerminateSession(ctx, open.ID, now); err != nil {
			return nil, nil, false, err
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, nil, false, fmt.Errorf("lookup open session: %w", err)
	}

	checkin, err := s.store.GetActiveCheckinByGuest(ctx, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, false, errNoActiveCheckin
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("lookup active check-in: %w", err)
	}

	session := &db.Session{
		Status:        db.SessionStatusOpen,
		Mode:          db.SessionModeAgent,
		GuestID:       user.ID,
		CheckinRoomID: &checkin.ID,
	}
	if err := s.store.CreateSession(ctx, session, now); err != nil {
		return nil, nil, false, err
	}
	log.Info().Str("session_id", session.ID).Str("user_id", user.ID).Msg("created new session")
	return session, checkin, true, nil
}

func (s *WebhookService) onSessionCreated(ctx context.Context, user *db.User, session *db.Session, checkin *db.CheckinRoom, chatID string) {
	if s.agents != nil {
		if err := s.agents.CreateAgent(ctx, session.ID); err != nil {
			log.Error().Err(err).Str("session_id", session.ID).Msg("agent provisioning failed")
		} else if err := s.store.MarkAgentCreated(ctx, session.ID, s.now()); err != nil {
			log.Error().Err(err).Str("session_id", session.ID).Msg("failed to flag agent as created")
		} else {
			session.AgentCreated = true
		}
	}

	welcome := chattext.Welcome(user.Name)
	if _, err := s.store.CreateMessage(ctx, session.ID, db.MessageRoleSystem, welcome, s.now()); err != nil {
		log.Error().Err(err).Str("session_id", session.ID).Msg("failed to store welcome message")
	}
	s.send(ctx, session.ID, chatID, welcome)

	if s.notifier != nil {
		orgID := derefOr(checkin.OrgID, derefOr(user.OrgID, ""))
		if err := s.notifier.NotifyNewSession(ctx, orgID, user, session); err != nil {
			log.Warn().Err(err).Str("session_id", session.ID).Msg("staff notification failed")
		}
	}
}

// recordExchange stores the guest text and the auto-reply atomically, then
// sends the auto-reply.
func (s *WebhookService) recordExchange(ctx context.Context, session *db.Session, text, chatID string) error {
	now := s.now()
	err := s.store.InConversationTx(ctx, func(tx ConversationTx) error {
		if _, err := tx.CreateMessage(ctx, session.ID, db.MessageRoleUser, text, now); err != nil {
			return err
		}
		if err := tx.TouchSession(ctx, session.ID, now); err != nil {
			return err
		}
		_, err := tx.CreateMessage(ctx, session.ID, db.MessageRoleSystem, chattext.AutoReply, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("store messages: %w", err)
	}
	s.send(ctx, session.ID, chatID, chattext.AutoReply)
	return nil
}

func (s *WebhookService) endSession(ctx context.Context, session *db.Session, text, chatID string) error {
	now := s.now()
	err := s.store.InConversationTx(ctx, func(tx ConversationTx) error {
		if _, err := tx.CreateMessage(ctx, session.ID, db.MessageRoleUser, strings.TrimSpace(text), now); err != nil {
			return err
		}
		return tx.TerminateSession(ctx, session.ID, now)
	})
	if err != nil {
		return fmt.Errorf("terminate session: %w", err)
	}
	log.Info().Str("session_id", session.ID).Msg("session ended by guest")
	s.send(ctx, session.ID, chatID, chattext.Goodbye)
	return nil
}

func (s *WebhookService) send(ctx context.Context, sessionID, to, text string) {
	if s.sender == nil {
		return
	}
	if err := s.sender.SendText(ctx, to, text); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to send WhatsApp message")
	}
}
