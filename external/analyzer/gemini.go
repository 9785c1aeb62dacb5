package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pairloop/pairloop/internal/analyzer"
	"github.com/pairloop/pairloop/internal/repository"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type GeminiClientConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type GeminiClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewGeminiClient(cfg GeminiClientConfig) analyzer.Analyzer {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{},
	}
}

type geminiRequest struct {
	Contents         []geminiContent   `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
	Temperature      float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *GeminiClient) Analyze(ctx context.Context, transcriptText string, promptCtx analyzer.PromptContext) (*repository.Analysis, error) {
	prompt := buildPrompt(transcriptText, promptCtx)

	b, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseMIMEType: "application/json",
			Temperature:      0.2,
		},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call model: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var payload geminiResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("model returned error %d: %s", payload.Error.Code, payload.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("model returned status %d", resp.StatusCode)
	}
	if len(payload.Candidates) == 0 {
		return nil, fmt.Errorf("model returned no candidates")
	}

	var text strings.Builder
	for _, part := range payload.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	content := strings.TrimSpace(text.String())
	if content == "" {
		return nil, fmt.Errorf("model returned empty content")
	}

	var analysis repository.Analysis
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &analysis); err != nil {
		return nil, fmt.Errorf("model returned non-parseable analysis: %w", err)
	}
	return &analysis, nil
}

// stripCodeFences removes a markdown ```json ... ``` wrapper the model may
// add despite the JSON mime type hint.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func buildPrompt(transcriptText string, promptCtx analyzer.PromptContext) string {
	var b strings.Builder
	b.WriteString("You are analyzing the transcript of a one-on-one video session between two teammates.\n")
	b.WriteString("Respond with a single JSON object and nothing else, using exactly these fields:\n")
	b.WriteString(`{"summary": string, "sentimentScore": number 0-100, "balanceScore": number 0-100 where 50 means both participants spoke evenly, "topics": [string], "keyTakeaways": [string], "vibe": one-or-two-word label, "questionBreakdowns": [{"question": string, "sentimentScore": number 0-100, "topics": [string]}]}`)
	b.WriteString("\n")
	if len(promptCtx.Questions) > 0 {
		b.WriteString("The session's discussion questions were:\n")
		for _, q := range promptCtx.Questions {
			b.WriteString("- ")
			b.WriteString(q)
			b.WriteString("\n")
		}
		b.WriteString("Include one questionBreakdowns entry per question above.\n")
	}
	b.WriteString("\nTranscript:\n")
	b.WriteString(transcriptText)
	return b.String()
}
