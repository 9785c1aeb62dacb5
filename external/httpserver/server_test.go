package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pairloop/pairloop/internal/analytics"
	"github.com/pairloop/pairloop/internal/config"
	"github.com/pairloop/pairloop/internal/pairing"
	"github.com/pairloop/pairloop/internal/pipeline"
	"github.com/pairloop/pairloop/internal/repository"
	"github.com/pairloop/pairloop/internal/video"
)

type mockRepository struct {
	lookupCalls int
}

func (m *mockRepository) GetConnection(_ context.Context, _ string) (*repository.Connection, error) {
	m.lookupCalls++
	return nil, nil
}
func (m *mockRepository) GetConnectionByRoomName(_ context.Context, _ string) (*repository.Connection, error) {
	m.lookupCalls++
	return nil, nil
}
func (m *mockRepository) GetConnectionByRoomSID(_ context.Context, _ string) (*repository.Connection, error) {
	m.lookupCalls++
	return nil, nil
}
func (m *mockRepository) GetConnectionByTranscriptJobID(_ context.Context, _ string) (*repository.Connection, error) {
	m.lookupCalls++
	return nil, nil
}
func (m *mockRepository) MarkConnectionCompleted(_ context.Context, _ repository.MarkConnectionCompletedInput) (bool, error) {
	return false, nil
}
func (m *mockRepository) SetComposition(_ context.Context, _, _ string) error { return nil }
func (m *mockRepository) SetTranscriptJob(_ context.Context, _ repository.SetTranscriptJobInput) error {
	return nil
}
func (m *mockRepository) SaveTranscript(_ context.Context, _ repository.SaveTranscriptInput) (bool, error) {
	return false, nil
}
func (m *mockRepository) MarkTranscriptFailed(_ context.Context, _, _ string) error { return nil }
func (m *mockRepository) MarkTranscriptAbandoned(_ context.Context, _ string) error { return nil }
func (m *mockRepository) SaveAnalysis(_ context.Context, _ string, _ *repository.Analysis) error {
	return nil
}
func (m *mockRepository) GetSchedule(_ context.Context, _ string) (*repository.Schedule, error) {
	return nil, nil
}
func (m *mockRepository) ListDueSchedules(_ context.Context, _ time.Time) ([]repository.Schedule, error) {
	return nil, nil
}
func (m *mockRepository) CreatePairingBatch(_ context.Context, _ repository.CreatePairingBatchInput) error {
	return nil
}
func (m *mockRepository) ListTeamMemberIDs(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}
func (m *mockRepository) GetTeamMember(_ context.Context, _, _ string) (*repository.TeamMember, error) {
	return nil, nil
}
func (m *mockRepository) ApplyCompletedConnection(_ context.Context, _ repository.ApplyCompletedConnectionInput) error {
	return nil
}
func (m *mockRepository) GetRelationship(_ context.Context, _, _ string) (*repository.Relationship, error) {
	return nil, nil
}
func (m *mockRepository) GetSnapshot(_ context.Context, _ repository.SnapshotEntityType, _, _ string) (*repository.AnalyticsSnapshot, error) {
	return nil, nil
}

type mockVideoClient struct {
	signatureValid bool
	ensureCalls    []string
	closeCalls     []string
}

func (m *mockVideoClient) EnsureRoom(_ context.Context, uniqueName string) (*video.Room, error) {
	m.ensureCalls = append(m.ensureCalls, uniqueName)
	return &video.Room{SID: "RM1", UniqueName: uniqueName, Status: "in-progress"}, nil
}
func (m *mockVideoClient) CloseRoom(_ context.Context, uniqueName string) error {
	m.closeCalls = append(m.closeCalls, uniqueName)
	return nil
}
func (m *mockVideoClient) CreateComposition(_ context.Context, _, _ string) (string, error) {
	return "CJ1", nil
}
func (m *mockVideoClient) ResolveMediaURL(_ context.Context, _ string) (string, error) {
	return "", nil
}
func (m *mockVideoClient) ValidateSignature(_ string, _ map[string]string, _ string) bool {
	return m.signatureValid
}

type mockVerifier struct {
	email string
	err   error
}

func (m *mockVerifier) VerifyIDToken(_ context.Context, _, _ string) (string, error) {
	return m.email, m.err
}

type serverFixture struct {
	server *Server
	repo   *mockRepository
	vc     *mockVideoClient
}

func newTestServer(verifier TokenVerifier) *serverFixture {
	cfg := &config.Config{
		Env:                       "test",
		PublicBaseURL:             "https://pairloop.example.com",
		TaskServiceAccountEmail:   "tasks@project.iam.gserviceaccount.com",
		OperationCheckDelaySec:    30,
		OperationCheckMaxAttempts: 3,
		InternalTriggerToken:      "trigger-secret",
	}
	repo := &mockRepository{}
	vc := &mockVideoClient{}
	manager := pipeline.NewManager(cfg, repo, vc, nil, nil, nil, analytics.NewAggregator(repo))
	engine := pairing.NewEngine(cfg, repo, nil)
	return &serverFixture{
		server: NewServer(cfg, manager, engine, vc, verifier),
		repo:   repo,
		vc:     vc,
	}
}

func postForm(s *Server, path string, form url.Values, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set(headerPlatformSignature, signature)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestRoomWebhook_RejectsBadSignatureBeforeSideEffects(t *testing.T) {
	fx := newTestServer(&mockVerifier{})
	fx.vc.signatureValid = false

	form := url.Values{}
	form.Set("StatusCallbackEvent", "room-ended")
	form.Set("RoomName", "pairloop-1")
	w := postForm(fx.server, "/webhooks/rooms", form, "bogus")

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if fx.repo.lookupCalls != 0 {
		t.Fatal("expected no repository access on rejected signature")
	}
}

func TestRoomWebhook_ValidSignatureProcessesEvent(t *testing.T) {
	fx := newTestServer(&mockVerifier{})
	fx.vc.signatureValid = true

	form := url.Values{}
	form.Set("StatusCallbackEvent", "room-ended")
	form.Set("RoomName", "unknown-room")
	w := postForm(fx.server, "/webhooks/rooms", form, "valid")

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if fx.repo.lookupCalls != 1 {
		t.Fatalf("expected one lookup, got %d", fx.repo.lookupCalls)
	}
}

func TestOperationCheck_RejectsMissingToken(t *testing.T) {
	fx := newTestServer(&mockVerifier{email: "tasks@project.iam.gserviceaccount.com"})

	req := httptest.NewRequest(http.MethodPost, "/tasks/operation-check", strings.NewReader(`{"connectionId":"c1","operationName":"op","attempt":1}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	fx.server.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if fx.repo.lookupCalls != 0 {
		t.Fatal("expected no handler work without a token")
	}
}

func TestOperationCheck_RejectsWrongIdentity(t *testing.T) {
	fx := newTestServer(&mockVerifier{email: "intruder@example.com"})

	req := httptest.NewRequest(http.MethodPost, "/tasks/operation-check", strings.NewReader(`{"connectionId":"c1","operationName":"op","attempt":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	fx.server.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestOperationCheck_InvalidTokenRejected(t *testing.T) {
	fx := newTestServer(&mockVerifier{err: errors.New("token expired")})

	req := httptest.NewRequest(http.MethodPost, "/tasks/operation-check", strings.NewReader(`{"connectionId":"c1","operationName":"op","attempt":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	fx.server.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestOperationCheck_ValidTokenRuns(t *testing.T) {
	fx := newTestServer(&mockVerifier{email: "tasks@project.iam.gserviceaccount.com"})

	// The connection is unknown, which the handler treats as a clean drop.
	req := httptest.NewRequest(http.MethodPost, "/tasks/operation-check", strings.NewReader(`{"connectionId":"c1","operationName":"op","attempt":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	fx.server.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if fx.repo.lookupCalls != 1 {
		t.Fatalf("expected one lookup, got %d", fx.repo.lookupCalls)
	}
}

func TestInternalRoutes_RequireToken(t *testing.T) {
	fx := newTestServer(&mockVerifier{})

	req := httptest.NewRequest(http.MethodPost, "/internal/rooms/ensure", strings.NewReader(`{"roomName":"pairloop-1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	fx.server.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if len(fx.vc.ensureCalls) != 0 {
		t.Fatal("expected no room call without token")
	}
}

func TestInternalRooms_EnsureAndClose(t *testing.T) {
	fx := newTestServer(&mockVerifier{})

	req := httptest.NewRequest(http.MethodPost, "/internal/rooms/ensure", strings.NewReader(`{"roomName":"pairloop-1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerInternalToken, "trigger-secret")
	w := httptest.NewRecorder()
	fx.server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(fx.vc.ensureCalls) != 1 || fx.vc.ensureCalls[0] != "pairloop-1" {
		t.Fatalf("unexpected ensure calls: %+v", fx.vc.ensureCalls)
	}

	req = httptest.NewRequest(http.MethodPost, "/internal/rooms/close", strings.NewReader(`{"roomName":"pairloop-1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerInternalToken, "trigger-secret")
	w = httptest.NewRecorder()
	fx.server.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if len(fx.vc.closeCalls) != 1 {
		t.Fatalf("unexpected close calls: %+v", fx.vc.closeCalls)
	}
}

func TestHealthz(t *testing.T) {
	fx := newTestServer(&mockVerifier{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	fx.server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
