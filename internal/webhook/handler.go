package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/slack-go/slack"

	"github.com/tinybirdco/birdwatcher/internal/common/logging"
	"github.com/tinybirdco/birdwatcher/internal/monitoring"
	slackbot "github.com/tinybirdco/birdwatcher/internal/slack"
	"github.com/tinybirdco/birdwatcher/internal/tinybird"
	"github.com/tinybirdco/birdwatcher/internal/workers"
)

// Processor handles classified deliveries. Events and commands run
// asynchronously; view submissions answer within the request.
type Processor interface {
	HandleEvent(ctx context.Context, notification EventNotification)
	HandleCommand(ctx context.Context, cmd SlashCommand)
	HandleViewSubmission(ctx context.Context, callback slack.InteractionCallback) map[string]interface{}
}

// OAuthStore persists install tokens from the OAuth callback
type OAuthStore interface {
	SaveOAuthTokens(ctx context.Context, tokens tinybird.OAuthTokens) error
}

// TokenSealer encrypts bot tokens before they are stored
type TokenSealer interface {
	Encrypt(plaintext string) (string, error)
}

// OAuthConfig carries the Slack app credentials for the install flow
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Handler is the HTTP entry point for all Slack deliveries
type Handler struct {
	processor Processor
	pool      *workers.Pool
	oauth     OAuthConfig
	store     OAuthStore
	sealer    TokenSealer
	exchange  func(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*slack.OAuthV2Response, error)
	logger    *logging.Logger
}

// NewHandler builds the webhook handler
func NewHandler(processor Processor, pool *workers.Pool, oauth OAuthConfig, store OAuthStore, sealer TokenSealer, logger *logging.Logger) *Handler {
	return &Handler{
		processor: processor,
		pool:      pool,
		oauth:     oauth,
		store:     store,
		sealer:    sealer,
		exchange:  slackbot.ExchangeOAuthCode,
		logger:    logger.WithName("webhook"),
	}
}

// ServeHTTP routes Slack's traffic. A panic anywhere in parsing or
// classification becomes a 500; the process stays alive.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.ErrorKV("Recovered from panic in webhook handler", "panic", rec)
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{
				"status":  "error",
				"message": fmt.Sprintf("internal server error: %v", rec),
			})
		}
	}()

	switch r.Method {
	case http.MethodGet:
		if strings.HasSuffix(r.URL.Path, "/oauth/callback") {
			h.handleOAuthCallback(w, r)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "birdwatcher",
		})
	case http.MethodPost:
		h.handleDelivery(w, r)
	default:
		h.writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
			"status":  "error",
			"message": "method not allowed",
		})
	}
}

func (h *Handler) handleDelivery(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": fmt.Sprintf("failed to read request body: %v", err),
		})
		return
	}

	delivery, err := ParseRequest(r.Header.Get("Content-Type"), body)
	if err != nil {
		h.logger.WarnKV("Failed to classify delivery", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": fmt.Sprintf("failed to parse request: %v", err),
		})
		return
	}

	switch d := delivery.(type) {
	case VerificationChallenge:
		monitoring.WebhookDeliveries.WithLabelValues("url_verification").Inc()
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(d.Challenge))

	case EventNotification:
		monitoring.WebhookDeliveries.WithLabelValues("event").Inc()
		// Ack immediately; Slack retries deliveries that take over 3s.
		h.pool.Dispatch(func() {
			h.processor.HandleEvent(context.Background(), d)
		})
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case InteractiveSubmission:
		monitoring.WebhookDeliveries.WithLabelValues("view_submission").Inc()
		result := h.processor.HandleViewSubmission(r.Context(), d.Callback)
		h.writeJSON(w, http.StatusOK, result)

	case SlashCommand:
		monitoring.WebhookDeliveries.WithLabelValues("command").Inc()
		h.pool.Dispatch(func() {
			h.processor.HandleCommand(context.Background(), d)
		})
		h.writeJSON(w, http.StatusOK, map[string]string{
			"response_type": "ephemeral",
			"text":          commandAck(d.Command),
		})

	default:
		monitoring.WebhookDeliveries.WithLabelValues("unrecognized").Inc()
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func commandAck(command string) string {
	switch command {
	case "/birdwatcher-config":
		return "Opening configuration modal..."
	case "/birdwatcher-notifications":
		return "Opening notifications modal..."
	default:
		return slackbot.RandomThinkingMessage()
	}
}

func (h *Handler) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if errParam := query.Get("error"); errParam != "" {
		http.Error(w, fmt.Sprintf("Slack OAuth error: %s", errParam), http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "No code provided.", http.StatusBadRequest)
		return
	}

	if h.oauth.ClientID == "" || h.oauth.ClientSecret == "" {
		http.Error(w, "OAuth client credentials not configured.", http.StatusInternalServerError)
		return
	}

	resp, err := h.exchange(r.Context(), h.oauth.ClientID, h.oauth.ClientSecret, code, h.oauth.RedirectURI)
	if err != nil {
		h.logger.ErrorKV("OAuth code exchange failed", "error", err)
		http.Error(w, fmt.Sprintf("Slack OAuth failed: %v", err), http.StatusBadRequest)
		return
	}

	sealed, err := h.sealer.Encrypt(resp.AccessToken)
	if err != nil {
		h.logger.ErrorKV("Failed to encrypt bot token", "error", err)
		http.Error(w, "App installed but failed to save configuration. Please contact support.", http.StatusInternalServerError)
		return
	}

	err = h.store.SaveOAuthTokens(r.Context(), tinybird.OAuthTokens{
		TeamID:            resp.Team.ID,
		TeamName:          resp.Team.Name,
		EncryptedBotToken: sealed,
		BotUserID:         resp.BotUserID,
		InstallerUserID:   resp.AuthedUser.ID,
		Scope:             resp.Scope,
	})
	if err != nil {
		h.logger.ErrorKV("Failed to store OAuth tokens", "team", resp.Team.ID, "error", err)
		http.Error(w, "App installed but failed to save configuration. Please contact support.", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("App installed successfully! Your Slack workspace is now connected to Birdwatcher. You can close this window."))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.ErrorKV("Failed to encode response", "error", err)
	}
}
