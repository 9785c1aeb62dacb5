package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pairloop/pairloop/internal/mailer"
)

type HTTPSender struct {
	apiURL string
	apiKey string
	from   string
	client *http.Client
}

func NewHTTPSender(apiURL, apiKey, from string) mailer.Sender {
	return &HTTPSender{
		apiURL: apiURL,
		apiKey: apiKey,
		from:   from,
		client: &http.Client{},
	}
}

type mailPayload struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html"`
}

func (s *HTTPSender) Send(ctx context.Context, msg mailer.Message) error {
	if s.apiURL == "" {
		return nil
	}

	b, err := json.Marshal(mailPayload{
		From:     s.from,
		To:       msg.To,
		Subject:  msg.Subject,
		HTMLBody: msg.HTMLBody,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return fmt.Errorf("mail api returned status %d", resp.StatusCode)
	}
	return nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
