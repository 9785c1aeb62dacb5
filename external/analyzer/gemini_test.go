package analyzer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pairloop/pairloop/internal/analyzer"
)

const analysisJSON = `{
  "summary": "A relaxed catch-up about the new release.",
  "sentimentScore": 82,
  "balanceScore": 55,
  "topics": ["release", "hobbies"],
  "keyTakeaways": ["Both excited about launch"],
  "vibe": "upbeat",
  "questionBreakdowns": [
    {"question": "How was your week?", "sentimentScore": 80, "topics": ["release"]}
  ]
}`

func newModelServer(t *testing.T, responseText string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key in query")
		}
		body := fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, responseText)
		w.Write([]byte(body))
	}))
}

func newTestClient(baseURL string) analyzer.Analyzer {
	return NewGeminiClient(GeminiClientConfig{BaseURL: baseURL, APIKey: "test-key", Model: "gemini-test"})
}

func TestAnalyze_ParsesAnalysis(t *testing.T) {
	srv := newModelServer(t, analysisJSON)
	defer srv.Close()

	analysis, err := newTestClient(srv.URL).Analyze(context.Background(), "transcript", analyzer.PromptContext{
		Questions: []string{"How was your week?"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if analysis.SentimentScore != 82 || analysis.Vibe != "upbeat" {
		t.Fatalf("unexpected analysis: %+v", analysis)
	}
	if len(analysis.QuestionBreakdowns) != 1 || analysis.QuestionBreakdowns[0].SentimentScore != 80 {
		t.Fatalf("unexpected breakdowns: %+v", analysis.QuestionBreakdowns)
	}
}

func TestAnalyze_StripsCodeFences(t *testing.T) {
	srv := newModelServer(t, "```json\n"+analysisJSON+"\n```")
	defer srv.Close()

	analysis, err := newTestClient(srv.URL).Analyze(context.Background(), "transcript", analyzer.PromptContext{})
	if err != nil {
		t.Fatalf("expected fenced JSON to parse, got %v", err)
	}
	if analysis.Summary == "" {
		t.Fatal("expected summary to be populated")
	}
}

func TestAnalyze_NonJSONIsError(t *testing.T) {
	srv := newModelServer(t, "I cannot analyze this transcript.")
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Analyze(context.Background(), "transcript", analyzer.PromptContext{}); err == nil {
		t.Fatal("expected error for non-JSON model output")
	}
}

func TestAnalyze_NoCandidatesIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Analyze(context.Background(), "transcript", analyzer.PromptContext{}); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestAnalyze_APIErrorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Analyze(context.Background(), "transcript", analyzer.PromptContext{}); err == nil {
		t.Fatal("expected error for api error response")
	}
}

func TestStripCodeFences(t *testing.T) {
	if got := stripCodeFences("```json\n{\"a\":1}\n```"); got != `{"a":1}` {
		t.Fatalf("unexpected: %q", got)
	}
	if got := stripCodeFences(`{"a":1}`); got != `{"a":1}` {
		t.Fatalf("unexpected: %q", got)
	}
}
