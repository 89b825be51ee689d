package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sendbulk-reconciler/internal/config"
)

const retStatusOK = 1

type sendSMSRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	To       string `json:"to"`
	From     string `json:"from"`
	Text     string `json:"text"`
	IsFlash  bool   `json:"isFlash"`
}

type sendSMSResponse struct {
	Value        string `json:"Value"`
	RetStatus    int    `json:"RetStatus"`
	StrRetStatus string `json:"StrRetStatus"`
}

// SMSSender sends single messages through the gateway's REST SendSMS method.
type SMSSender struct {
	url        string
	username   string
	password   string
	from       string
	httpClient *http.Client
}

func NewSMSSender(cfg *config.GatewayConfig, httpClient *http.Client) *SMSSender {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &SMSSender{
		url:        cfg.SendURL,
		username:   cfg.Username,
		password:   cfg.Password,
		from:       cfg.From,
		httpClient: httpClient,
	}
}

func (s *SMSSender) Name() string { return "sms" }

// Send posts the message and treats any RetStatus other than 1 as a failure.
func (s *SMSSender) Send(ctx context.Context, target, text string) error {
	payload, err := json.Marshal(sendSMSRequest{
		Username: s.username,
		Password: s.password,
		To:       target,
		From:     s.from,
		Text:     text,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result sendSMSResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if result.RetStatus != retStatusOK {
		return fmt.Errorf("sms rejected: ret status %d (%s)", result.RetStatus, result.StrRetStatus)
	}

	return nil
}
