package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/batterybuildsog1/Project-manager/internal/models"
)

const defaultSMSMaxLength = 160

// SMSConfig configures the short-message gateway adapter.
type SMSConfig struct {
	GatewayURL string
	From       string
	To         string

	// MaxLength truncates outbound messages; 0 means the 160-char default.
	MaxLength int

	Timeout time.Duration
}

// SMS posts messages to an HTTP short-message gateway.
type SMS struct {
	cfg    SMSConfig
	client *http.Client
}

// NewSMS builds the gateway adapter.
func NewSMS(cfg SMSConfig) (*SMS, error) {
	if strings.TrimSpace(cfg.GatewayURL) == "" {
		return nil, errors.New("sms: gateway url is empty")
	}
	if strings.TrimSpace(cfg.To) == "" {
		return nil, errors.New("sms: recipient number is empty")
	}

	if cfg.MaxLength <= 0 {
		cfg.MaxLength = defaultSMSMaxLength
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &SMS{cfg: cfg, client: &http.Client{Timeout: timeout}}, nil
}

func (s *SMS) Name() string { return models.ChannelSMS }

type smsPayload struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
	Body string `json:"body"`
}

func (s *SMS) Send(ctx context.Context, text string) error {
	if len(text) > s.cfg.MaxLength {
		text = text[:s.cfg.MaxLength]
	}

	body, err := json.Marshal(smsPayload{From: s.cfg.From, To: s.cfg.To, Body: text})
	if err != nil {
		return fmt.Errorf("sms: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.GatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms: gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sms: gateway returned status %d", resp.StatusCode)
	}
	return nil
}
