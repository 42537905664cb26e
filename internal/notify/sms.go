package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/oakdental/frontdesk/internal/config"
)

// HTTPSMS posts text messages to a JSON SMS gateway:
//
//	POST {api_url}
//	Authorization: Bearer {api_key}
//	{"to": "...", "message": "...", "from": "..."}
//
// Any 2xx response counts as accepted.
type HTTPSMS struct {
	url    string
	apiKey string
	sender string
	client *http.Client
}

// NewHTTPSMS builds a gateway client from the SMS settings.
func NewHTTPSMS(cfg config.SMSConfig) *HTTPSMS {
	return &HTTPSMS{
		url:    cfg.APIURL,
		apiKey: cfg.APIKey,
		sender: cfg.Sender,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type smsRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
	From    string `json:"from,omitempty"`
}

func (s *HTTPSMS) SendSMS(ctx context.Context, phone, text string) error {
	if phone == "" {
		return fmt.Errorf("send sms: no phone number")
	}
	body, err := json.Marshal(smsRequest{To: phone, Message: text, From: s.sender})
	if err != nil {
		return fmt.Errorf("encode sms: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
