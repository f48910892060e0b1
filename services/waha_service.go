package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sgahotel/cs-service/internal/config"
	"github.com/sgahotel/cs-service/internal/phone"
)

// WAHAEvent is the webhook envelope posted by the WhatsApp HTTP API.
type WAHAEvent struct {
	ID          string         `json:"id,omitempty"`
	Event       string         `json:"event" binding:"required"`
	Session     string         `json:"session"`
	Payload     WAHAMessage    `json:"payload"`
	Me          *WAHAMe        `json:"me,omitempty"`
	Engine      string         `json:"engine,omitempty"`
	Environment map[string]any `json:"environment,omitempty"`
}

type WAHAMessage struct {
	ID        string         `json:"id"`
	Timestamp int64          `json:"timestamp"`
	From      string         `json:"from"`
	FromMe    bool           `json:"fromMe"`
	To        string         `json:"to,omitempty"`
	Body      string         `json:"body"`
	HasMedia  bool           `json:"hasMedia"`
	Media     map[string]any `json:"media,omitempty"`
	ReplyTo   map[string]any `json:"replyTo,omitempty"`
}

type WAHAMe struct {
	ID       string `json:"id"`
	PushName string `json:"pushName"`
}

type wahaSendTextRequest struct {
	ChatID                 string  `json:"chatId"`
	ReplyTo                *string `json:"reply_to"`
	Text                   string  `json:"text"`
	LinkPreview            bool    `json:"linkPreview"`
	LinkPreviewHighQuality bool    `json:"linkPreviewHighQuality"`
	Session                string  `json:"session"`
}

// WAHAService sends WhatsApp messages through a WAHA gateway.
type WAHAService struct {
	cfg        config.WAHAConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewWAHAService(cfg config.WAHAConfig) *WAHAService {
	limit := rate.Inf
	if cfg.SendInterval > 0 {
		limit = rate.Every(cfg.SendInterval)
	}
	burst := cfg.SendBurst
	if burst < 1 {
		burst = 1
	}
	return &WAHAService{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (s *WAHAService) IsConfigured() bool {
	return s.cfg.Host != ""
}

// SendText delivers text to a guest. to may be a stored local number or a
// chat id.
func (s *WAHAService) SendText(ctx context.Context, to, text string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("waha host not configured")
	}
	chatID, err := phone.ChatID(to)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}

	payload, err := json.Marshal(wahaSendTextRequest{
		ChatID:      chatID,
		Text:        text,
		LinkPreview: true,
		Session:     s.cfg.Session,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send throttled: %w", err)
	}

	url := strings.TrimRight(s.cfg.Host, "/") + s.cfg.APIPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("X-Api-Key", s.cfg.APIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("waha send failed: %s - %s", resp.Status, string(body))
	}
	return nil
}

// VerifySignature checks the X-Webhook-Hmac header (hex HMAC-SHA512 of the
// raw body). Without a configured key every request passes.
func (s *WAHAService) VerifySignature(body []byte, signature string) bool {
	if s.cfg.WebhookHMACKey == "" {
		return true
	}
	mac := hmac.New(sha512.New, []byte(s.cfg.WebhookHMACKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(strings.TrimSpace(signature))), []byte(expected))
}
