package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// SMSConfig points at the SMS provider's HTTP endpoint.
type SMSConfig struct {
	Endpoint string
	APIKey   string
	Sender   string
	Timeout  time.Duration
}

// SMSSender posts messages to an HTTP SMS gateway.
type SMSSender struct {
	cfg    SMSConfig
	client *resty.Client
}

func NewSMSSender(cfg SMSConfig) *SMSSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetHeader("Authorization", "Bearer "+cfg.APIKey)
	return &SMSSender{cfg: cfg, client: client}
}

type smsPayload struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	Body string `json:"body"`
}

// SendOTP texts a one-time verification code.
func (s *SMSSender) SendOTP(ctx context.Context, phoneNumber, code string) error {
	if strings.TrimSpace(phoneNumber) == "" {
		return fmt.Errorf("notify: phone number is required")
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(smsPayload{
			To:   phoneNumber,
			From: s.cfg.Sender,
			Body: "Your Vendoor verification code is: " + code,
		}).
		Post(s.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("notify: send sms: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("notify: send sms: provider returned %s", resp.Status())
	}
	return nil
}
