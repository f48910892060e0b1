package services

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgahotel/cs-service/db"
	"github.com/sgahotel/cs-service/internal/config"
)

type fakeFCM struct {
	sent []*messaging.Message
	err  error
}

func (f *fakeFCM) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.sent = append(f.sent, m)
	return "projects/x/messages/1", f.err
}

func TestFCMService_DisabledWithoutCredentials(t *testing.T) {
	svc := NewFCMService(config.FCMConfig{})
	assert.False(t, svc.Enabled())
	err := svc.NotifyNewSession(context.Background(), "org-1", &db.User{Name: "Budi"}, &db.Session{ID: "s-1"})
	assert.NoError(t, err)
}

func TestFCMService_NotifyNewSession(t *testing.T) {
	fake := &fakeFCM{}
	svc := &FCMService{client: fake, topicPrefix: "cs"}

	err := svc.NotifyNewSession(context.Background(), "org-1", &db.User{ID: "u-1", Name: "Budi"}, &db.Session{ID: "s-1"})
	require.NoError(t, err)
	require.Len(t, fake.sent, 1)

	m := fake.sent[0]
	assert.Equal(t, "cs-org-org-1", m.Topic)
	assert.Equal(t, "Budi memulai percakapan WhatsApp", m.Notification.Body)
	assert.Equal(t, map[string]string{"type": "session", "session_id": "s-1", "guest_id": "u-1"}, m.Data)
}

func TestFCMService_NotifyNewOrders(t *testing.T) {
	fake := &fakeFCM{}
	svc := &FCMService{client: fake}
	sid := "s-1"

	orders := []db.Order{
		{ID: "o-1", OrderNumber: "ORD-1", Category: "room_service", SessionID: &sid},
		{ID: "o-2", OrderNumber: "ORD-2", Category: "housekeeping", SessionID: &sid},
	}
	require.NoError(t, svc.NotifyNewOrders(context.Background(), "org-1", orders))
	require.Len(t, fake.sent, 1)
	assert.Equal(t, "2 pesanan baru", fake.sent[0].Notification.Title)
	assert.Equal(t, "ORD-1 (Room Service)\nORD-2 (Housekeeping)", fake.sent[0].Notification.Body)
	assert.Equal(t, "o-1,o-2", fake.sent[0].Data["order_ids"])

	fake.err = errors.New("quota")
	assert.Error(t, svc.NotifyNewOrders(context.Background(), "org-1", orders))
}
