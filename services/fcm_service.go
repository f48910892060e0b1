package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/sgahotel/cs-service/db"
	"github.com/sgahotel/cs-service/internal/chattext"
	"github.com/sgahotel/cs-service/internal/config"
)

// StaffNotifier alerts front-desk devices about guest activity.
type StaffNotifier interface {
	NotifyNewSession(ctx context.Context, orgID string, guest *db.User, session *db.Session) error
	NotifyNewOrders(ctx context.Context, orgID string, orders []db.Order) error
}

type fcmSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// NotificationData is the data payload attached to every staff push.
type NotificationData struct {
	Type      string `json:"type"` // "session", "order"
	SessionID string `json:"session_id,omitempty"`
	GuestID   string `json:"guest_id,omitempty"`
	OrderIDs  string `json:"order_ids,omitempty"`
}

// FCMService publishes staff notifications to per-organization topics.
// Staff apps subscribe to "<prefix>-org-<org id>".
type FCMService struct {
	client      fcmSender
	topicPrefix string
}

func NewFCMService(cfg config.FCMConfig) *FCMService {
	service := &FCMService{topicPrefix: cfg.TopicPrefix}
	if cfg.CredentialsFile == "" {
		log.Info().Msg("FCM credentials not configured, staff notifications disabled")
		return service
	}

	ctx := context.Background()
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		log.Warn().Err(err).Msg("firebase app not initialized, staff notifications disabled")
		return service
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("firebase messaging client not initialized, staff notifications disabled")
		return service
	}

	service.client = client
	log.Info().Msg("FCM staff notifications enabled")
	return service
}

func (s *FCMService) Enabled() bool {
	return s.client != nil
}

func (s *FCMService) topic(orgID string) string {
	prefix := s.topicPrefix
	if prefix == "" {
		prefix = "cs"
	}
	return prefix + "-org-" + orgID
}

func (s *FCMService) NotifyNewSession(ctx context.Context, orgID string, guest *db.User, session *db.Session) error {
	if !s.Enabled() || orgID == "" {
		return nil
	}
	return s.send(ctx, orgID, "Percakapan baru",
		fmt.Sprintf("%s memulai percakapan WhatsApp", guest.Name),
		NotificationData{Type: "session", SessionID: session.ID, GuestID: guest.ID})
}

func (s *FCMService) NotifyNewOrders(ctx context.Context, orgID string, orders []db.Order) error {
	if !s.Enabled() || orgID == "" || len(orders) == 0 {
		return nil
	}
	labels := make([]string, 0, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		labels = append(labels, fmt.Sprintf("%s (%s)", o.OrderNumber, chattext.Label(o.Category)))
		ids = append(ids, o.ID)
	}
	return s.send(ctx, orgID, fmt.Sprintf("%d pesanan baru", len(orders)),
		strings.Join(labels, "\n"),
		NotificationData{Type: "order", SessionID: derefOr(orders[0].SessionID, ""), OrderIDs: strings.Join(ids, ",")})
}

func (s *FCMService) send(ctx context.Context, orgID, title, body string, data NotificationData) error {
	dataMap := make(map[string]string)
	dataBytes, _ := json.Marshal(data)
	_ = json.Unmarshal(dataBytes, &dataMap)

	message := &messaging.Message{
		Topic: s.topic(orgID),
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: dataMap,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Icon:         "ic_notification",
				Sound:        "default",
				ChannelID:    "guest_requests",
				Priority:     messaging.PriorityHigh,
				DefaultSound: true,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{Title: title, Body: body},
					Sound: "default",
				},
			},
		},
	}

	id, err := s.client.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	log.Debug().Str("topic", message.Topic).Str("message_id", id).Msg("staff notification sent")
	return nil
}

func derefOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}
