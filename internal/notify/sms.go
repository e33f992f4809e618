package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"resourcehive/internal/config"
)

// SMSSink posts messages to the carrier HTTP gateway. Delivery is
// best-effort; a gateway failure is reported but carries no ACK back into
// the engine.
type SMSSink struct {
	gatewayURL string
	apiKey     string
	sender     string
	client     *http.Client
}

func NewSMSSink(cfg *config.Config) *SMSSink {
	return &SMSSink{
		gatewayURL: cfg.SMSGatewayURL,
		apiKey:     cfg.SMSAPIKey,
		sender:     cfg.SMSSender,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type smsPayload struct {
	APIKey  string `json:"apikey"`
	Number  string `json:"number"`
	Message string `json:"message"`
	Sender  string `json:"sendername"`
}

func (s *SMSSink) Send(ctx context.Context, phone, message string) error {
	if s.gatewayURL == "" {
		return fmt.Errorf("sms gateway not configured")
	}
	if phone == "" {
		return fmt.Errorf("recipient has no phone number")
	}

	body, err := json.Marshal(smsPayload{
		APIKey:  s.apiKey,
		Number:  phone,
		Message: message,
		Sender:  s.sender,
	})
	if err != nil {
		return fmt.Errorf("failed to encode sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach sms gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}

	return nil
}
