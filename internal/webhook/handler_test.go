package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"

	"github.com/tinybirdco/birdwatcher/internal/common/logging"
	"github.com/tinybirdco/birdwatcher/internal/tinybird"
	"github.com/tinybirdco/birdwatcher/internal/workers"
)

type fakeProcessor struct {
	mu          sync.Mutex
	events      []EventNotification
	commands    []SlashCommand
	viewResult  map[string]interface{}
	eventSignal chan struct{}
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		viewResult:  map[string]interface{}{"response_action": "clear"},
		eventSignal: make(chan struct{}, 16),
	}
}

func (f *fakeProcessor) HandleEvent(_ context.Context, n EventNotification) {
	f.mu.Lock()
	f.events = append(f.events, n)
	f.mu.Unlock()
	f.eventSignal <- struct{}{}
}

func (f *fakeProcessor) HandleCommand(_ context.Context, cmd SlashCommand) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()
	f.eventSignal <- struct{}{}
}

func (f *fakeProcessor) HandleViewSubmission(_ context.Context, _ slack.InteractionCallback) map[string]interface{} {
	return f.viewResult
}

func (f *fakeProcessor) waitForDispatch(t *testing.T) {
	t.Helper()
	select {
	case <-f.eventSignal:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async dispatch")
	}
}

type fakeOAuthStore struct {
	saved []tinybird.OAuthTokens
	err   error
}

func (f *fakeOAuthStore) SaveOAuthTokens(_ context.Context, tokens tinybird.OAuthTokens) error {
	f.saved = append(f.saved, tokens)
	return f.err
}

type fakeSealer struct{}

func (fakeSealer) Encrypt(plaintext string) (string, error) {
	return "sealed:" + plaintext, nil
}

func newTestHandler(t *testing.T, processor Processor) (*Handler, *workers.Pool) {
	t.Helper()
	logger := logging.New("test", logging.LevelError)
	pool := workers.NewPool(2, 8, logger)
	t.Cleanup(pool.Close)

	h := NewHandler(processor, pool, OAuthConfig{ClientID: "id", ClientSecret: "secret"},
		&fakeOAuthStore{}, fakeSealer{}, logger)
	return h, pool
}

func TestHandlerEchoesChallenge(t *testing.T) {
	processor := newFakeProcessor()
	h, _ := newTestHandler(t, processor)

	body := `{"type": "url_verification", "challenge": "abc123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/slack", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("unexpected status %d", rec.Code)
	}
	if got := rec.Body.String(); got != "abc123" {
		t.Errorf("expected challenge echoed back, got %q", got)
	}
}

func TestHandlerAcksAndDispatchesEvent(t *testing.T) {
	processor := newFakeProcessor()
	h, _ := newTestHandler(t, processor)

	body := `{"type": "event_callback", "team_id": "T1", "event": {"type": "message", "user": "U1", "channel": "C1", "text": "hi", "ts": "1.1"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/slack", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("unexpected status %d", rec.Code)
	}
	var ack map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("failed to decode ack: %v", err)
	}
	if ack["status"] != "ok" {
		t.Errorf("expected ok ack, got %+v", ack)
	}

	processor.waitForDispatch(t)
	processor.mu.Lock()
	defer processor.mu.Unlock()
	if len(processor.events) != 1 || processor.events[0].Event.Channel != "C1" {
		t.Errorf("expected event dispatched, got %+v", processor.events)
	}
}

func TestHandlerAcksCommandWithEphemeral(t *testing.T) {
	processor := newFakeProcessor()
	h, _ := newTestHandler(t, processor)

	body := "command=%2Fbirdwatcher-config&channel_id=C1&trigger_id=tr1"
	req := httptest.NewRequest(http.MethodPost, "/api/slack", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	var ack map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("failed to decode ack: %v", err)
	}
	if ack["response_type"] != "ephemeral" {
		t.Errorf("expected ephemeral ack, got %+v", ack)
	}
	if ack["text"] != "Opening configuration modal..." {
		t.Errorf("unexpected ack text %q", ack["text"])
	}

	processor.waitForDispatch(t)
	processor.mu.Lock()
	defer processor.mu.Unlock()
	if len(processor.commands) != 1 || processor.commands[0].Command != "/birdwatcher-config" {
		t.Errorf("expected command dispatched, got %+v", processor.commands)
	}
}

func TestHandlerViewSubmissionIsSynchronous(t *testing.T) {
	processor := newFakeProcessor()
	processor.viewResult = map[string]interface{}{
		"response_action": "errors",
		"errors":          map[string]string{"tinybird_token_block": "Tinybird token is required"},
	}
	h, _ := newTestHandler(t, processor)

	payload := `{"type": "view_submission", "view": {"callback_id": "birdwatcher_config_modal"}}`
	body := "payload=" + strings.ReplaceAll(payload, " ", "%20")
	req := httptest.NewRequest(http.MethodPost, "/api/slack", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if result["response_action"] != "errors" {
		t.Errorf("expected errors response action, got %+v", result)
	}
}

func TestHandlerUnrecognizedGetsGenericOK(t *testing.T) {
	processor := newFakeProcessor()
	h, _ := newTestHandler(t, processor)

	req := httptest.NewRequest(http.MethodPost, "/api/slack", strings.NewReader("foo=bar"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("unexpected status %d", rec.Code)
	}
	var ack map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &ack)
	if ack["status"] != "ok" {
		t.Errorf("expected generic ok, got %+v", ack)
	}
}

func TestHandlerHealthCheck(t *testing.T) {
	processor := newFakeProcessor()
	h, _ := newTestHandler(t, processor)

	req := httptest.NewRequest(http.MethodGet, "/api/slack", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	var health map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("failed to decode health payload: %v", err)
	}
	if health["status"] != "healthy" || health["service"] != "birdwatcher" {
		t.Errorf("unexpected health payload %+v", health)
	}
}

func TestHandlerMalformedJSONIs500(t *testing.T) {
	processor := newFakeProcessor()
	h, _ := newTestHandler(t, processor)

	req := httptest.NewRequest(http.MethodPost, "/api/slack", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for malformed JSON, got %d", rec.Code)
	}
}

func TestHandlerOAuthCallback(t *testing.T) {
	processor := newFakeProcessor()
	logger := logging.New("test", logging.LevelError)
	pool := workers.NewPool(1, 4, logger)
	t.Cleanup(pool.Close)

	store := &fakeOAuthStore{}
	oauth := OAuthConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURI:  "https://bot.example.com/api/slack/oauth/callback",
	}
	h := NewHandler(processor, pool, oauth, store, fakeSealer{}, logger)
	h.exchange = func(_ context.Context, clientID, clientSecret, code, redirectURI string) (*slack.OAuthV2Response, error) {
		if code != "auth-code" {
			t.Errorf("unexpected code %q", code)
		}
		if redirectURI != oauth.RedirectURI {
			t.Errorf("unexpected redirect URI %q", redirectURI)
		}
		resp := &slack.OAuthV2Response{
			AccessToken: "xoxb-new",
			BotUserID:   "U0BOT",
			Scope:       "chat:write",
		}
		resp.Team.ID = "T1"
		resp.Team.Name = "Acme"
		resp.AuthedUser.ID = "U9"
		return resp, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/api/slack/oauth/callback?code=auth-code", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected tokens saved, got %d", len(store.saved))
	}
	saved := store.saved[0]
	if saved.TeamID != "T1" || saved.BotUserID != "U0BOT" {
		t.Errorf("unexpected saved tokens %+v", saved)
	}
	if saved.EncryptedBotToken != "sealed:xoxb-new" {
		t.Errorf("expected encrypted token, got %q", saved.EncryptedBotToken)
	}
}

func TestHandlerOAuthCallbackMissingCode(t *testing.T) {
	processor := newFakeProcessor()
	h, _ := newTestHandler(t, processor)

	req := httptest.NewRequest(http.MethodGet, "/api/slack/oauth/callback", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without code, got %d", rec.Code)
	}
}
