package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sgahotel/cs-service/internal/apperr"
	"github.com/sgahotel/cs-service/internal/config"
)

// AgentRouterService provisions conversational agents on the H2H agent router.
// Agents are keyed by session id; the router calls back into the order and
// send-message webhooks with that id.
type AgentRouterService struct {
	cfg        config.H2HConfig
	httpClient *http.Client
}

func NewAgentRouterService(cfg config.H2HConfig) *AgentRouterService {
	return &AgentRouterService{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *AgentRouterService) IsConfigured() bool {
	return s.cfg.Host != ""
}

// CreateAgent registers an agent for sessionID.
func (s *AgentRouterService) CreateAgent(ctx context.Context, sessionID string) error {
	if !s.IsConfigured() {
		return apperr.ErrAgentUnreachable.WithMessage("Agent router not configured")
	}

	payload, err := json.Marshal(map[string]string{"identifier_id": sessionID})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := strings.TrimRight(s.cfg.Host, "/") + s.cfg.AgentPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("x-api-key", s.cfg.APIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return apperr.ErrAgentUnreachable.Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apperr.ErrAgentRejected.Wrap(fmt.Errorf("%s - %s", resp.Status, string(body)))
	}
	return nil
}
