package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pairloop/pairloop/internal/repository"
	"github.com/pairloop/pairloop/internal/transcriber"
)

// The managed provider rejects media sources it cannot ingest (for example
// a video composition handed to a voice-only service) with this API error
// code. That rejection selects the batch fallback.
const errorCodeUnsupportedSource = 20422

type ManagedClientConfig struct {
	BaseURL     string
	AccountSID  string
	AuthToken   string
	ServiceSID  string
	CallbackURL string
}

// ManagedRESTClient drives the video platform's speech-intelligence API.
// Jobs are keyed directly by a media source SID and completion is reported
// to the configured webhook.
type ManagedRESTClient struct {
	baseURL     string
	accountSID  string
	authToken   string
	serviceSID  string
	callbackURL string
	client      *http.Client
}

func NewManagedRESTClient(cfg ManagedClientConfig) *ManagedRESTClient {
	return &ManagedRESTClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accountSID:  cfg.AccountSID,
		authToken:   cfg.AuthToken,
		serviceSID:  cfg.ServiceSID,
		callbackURL: cfg.CallbackURL,
		client:      &http.Client{},
	}
}

type managedAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *ManagedRESTClient) StartTranscript(ctx context.Context, mediaSID string) (string, error) {
	channel, err := json.Marshal(map[string]any{
		"media_properties": map[string]string{"source_sid": mediaSID},
	})
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("ServiceSid", c.serviceSID)
	form.Set("Channel", string(channel))
	form.Set("WebhookUrl", c.callbackURL)
	form.Set("WebhookHttpMethod", http.MethodPost)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/Transcripts", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if !isHTTPSuccessStatus(resp.StatusCode) {
		var apiErr managedAPIError
		_ = json.Unmarshal(body, &apiErr)
		if apiErr.Code == errorCodeUnsupportedSource {
			return "", fmt.Errorf("media %s: %w", mediaSID, transcriber.ErrUnsupportedSource)
		}
		return "", fmt.Errorf("start transcript for %s: status %d (code %d): %s", mediaSID, resp.StatusCode, apiErr.Code, apiErr.Message)
	}

	var payload struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode transcript response: %w", err)
	}
	if payload.SID == "" {
		return "", fmt.Errorf("transcript response for %s has no sid", mediaSID)
	}
	return payload.SID, nil
}

func (c *ManagedRESTClient) ListSentences(ctx context.Context, jobID string) ([]repository.TranscriptSentence, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v2/Transcripts/"+url.PathEscape(jobID)+"/Sentences?PageSize=1000", nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if !isHTTPSuccessStatus(resp.StatusCode) {
		var apiErr managedAPIError
		_ = json.Unmarshal(body, &apiErr)
		return nil, fmt.Errorf("list sentences for %s: status %d (code %d): %s", jobID, resp.StatusCode, apiErr.Code, apiErr.Message)
	}

	var payload struct {
		Sentences []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			StartTime  float64 `json:"start_time"`
			EndTime    float64 `json:"end_time"`
		} `json:"sentences"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode sentences: %w", err)
	}

	sentences := make([]repository.TranscriptSentence, 0, len(payload.Sentences))
	for _, s := range payload.Sentences {
		if strings.TrimSpace(s.Transcript) == "" {
			continue
		}
		sentences = append(sentences, repository.TranscriptSentence{
			Transcript: s.Transcript,
			Confidence: s.Confidence,
		})
	}
	return sentences, nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
