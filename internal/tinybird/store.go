// Package tinybird persists per-channel configuration in a Tinybird workspace
// through its Events and Pipes APIs. Channel tokens arrive and leave this
// package encrypted; callers own the sealing.
package tinybird

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tinybirdco/birdwatcher/internal/common/errors"
	httpClient "github.com/tinybirdco/birdwatcher/internal/common/http"
	"github.com/tinybirdco/birdwatcher/internal/common/logging"
)

// Datasource names in the configuration workspace
const (
	TableUserTokens          = "user_tokens"
	TableNotificationConfigs = "notification_configs"
	TableOAuthTokens         = "slack_oauth_tokens"
)

// ChannelConfig is the stored Tinybird binding for one Slack channel
type ChannelConfig struct {
	ChannelID      string `json:"channel_id"`
	UserID         string `json:"user_id"`
	EncryptedToken string `json:"encrypted_token"`
	TinybirdHost   string `json:"tinybird_host"`
	CreatedAt      string `json:"created_at"`
}

// NotificationConfig is the stored notification subscription snapshot for one
// channel. Saving a new snapshot supersedes the previous one.
type NotificationConfig struct {
	ChannelID         string   `json:"channel_id"`
	UserID            string   `json:"user_id"`
	NotificationTypes []string `json:"notification_types"`
	EncryptedToken    string   `json:"encrypted_token"`
	TinybirdHost      string   `json:"tinybird_host"`
	Schedule          string   `json:"schedule"`
	CreatedAt         string   `json:"created_at"`
}

// OAuthTokens holds the Slack OAuth v2 install result for one workspace
type OAuthTokens struct {
	TeamID            string `json:"team_id"`
	TeamName          string `json:"team_name"`
	EncryptedBotToken string `json:"encrypted_bot_token"`
	BotUserID         string `json:"bot_user_id"`
	InstallerUserID   string `json:"installer_user_id"`
	Scope             string `json:"scope"`
	CreatedAt         string `json:"created_at"`
}

// Store reads and writes configuration records in the Tinybird workspace
type Store struct {
	host       string
	adminToken string
	client     *httpClient.Client
	logger     *logging.Logger
}

// NewStore creates a configuration store for the given workspace
func NewStore(host, adminToken string, client *httpClient.Client, logger *logging.Logger) *Store {
	return &Store{
		host:       host,
		adminToken: adminToken,
		client:     client,
		logger:     logger.WithName("tinybird"),
	}
}

type pipeResponse[T any] struct {
	Data []T `json:"data"`
	Rows int `json:"rows"`
}

func (s *Store) authHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + s.adminToken,
	}
}

func (s *Store) pipeURL(pipe string, params url.Values) string {
	return fmt.Sprintf("%s/v0/pipes/%s.json?%s", s.host, pipe, params.Encode())
}

// GetChannelConfig returns the latest stored config for the channel. A
// non-empty user narrows the lookup to that user's binding. Returns
// errors.ErrNoChannelConfig when nothing is stored.
func (s *Store) GetChannelConfig(ctx context.Context, channelID, userID string) (*ChannelConfig, error) {
	params := url.Values{}
	params.Set("channel_id", channelID)
	if userID != "" {
		params.Set("user_id", userID)
	}

	var resp pipeResponse[ChannelConfig]
	_, err := s.client.DoJSONRequest(ctx, http.MethodGet,
		s.pipeURL("get_latest_user_token", params), nil, &resp, s.authHeaders())
	if err != nil {
		return nil, errors.NewTinybirdError("failed to query channel config", "pipe_error", err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.ErrNoChannelConfig
	}
	return &resp.Data[0], nil
}

// ListScheduledConfigs returns every notification subscription for a schedule
// (for example "daily").
func (s *Store) ListScheduledConfigs(ctx context.Context, schedule string) ([]NotificationConfig, error) {
	params := url.Values{}
	params.Set("schedule", schedule)

	var resp pipeResponse[NotificationConfig]
	_, err := s.client.DoJSONRequest(ctx, http.MethodGet,
		s.pipeURL("get_scheduled_notifications", params), nil, &resp, s.authHeaders())
	if err != nil {
		return nil, errors.NewTinybirdError("failed to list scheduled configs", "pipe_error", err)
	}
	return resp.Data, nil
}

// GetNotificationTypes returns the notification types a channel currently
// subscribes to.
func (s *Store) GetNotificationTypes(ctx context.Context, channelID string) ([]string, error) {
	params := url.Values{}
	params.Set("channel_id", channelID)

	var resp pipeResponse[NotificationConfig]
	_, err := s.client.DoJSONRequest(ctx, http.MethodGet,
		s.pipeURL("get_latest_notification_config", params), nil, &resp, s.authHeaders())
	if err != nil {
		return nil, errors.NewTinybirdError("failed to query notification config", "pipe_error", err)
	}

	if len(resp.Data) == 0 {
		return nil, nil
	}
	return resp.Data[0].NotificationTypes, nil
}

// GetOAuthTokens returns the latest stored install tokens for a workspace.
func (s *Store) GetOAuthTokens(ctx context.Context, teamID string) (*OAuthTokens, error) {
	params := url.Values{}
	params.Set("team_id", teamID)

	var resp pipeResponse[OAuthTokens]
	_, err := s.client.DoJSONRequest(ctx, http.MethodGet,
		s.pipeURL("get_latest_oauth_tokens", params), nil, &resp, s.authHeaders())
	if err != nil {
		return nil, errors.NewTinybirdError("failed to query oauth tokens", "pipe_error", err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.ErrNotFound
	}
	return &resp.Data[0], nil
}

// AppendEvent appends one NDJSON record to a datasource through the Events API.
func (s *Store) AppendEvent(ctx context.Context, table string, record interface{}) error {
	eventsURL := fmt.Sprintf("%s/v0/events?name=%s", s.host, url.QueryEscape(table))

	headers := s.authHeaders()
	headers["Content-Type"] = "application/x-ndjson"

	// The Events API acks appends with 202 before the write is durable.
	body, status, err := s.client.DoRequest(ctx, http.MethodPost, eventsURL, record, headers)
	if err != nil {
		return errors.NewTinybirdError("failed to append event", "events_error", err)
	}
	if status != http.StatusAccepted && status != http.StatusOK {
		return errors.NewTinybirdError(
			fmt.Sprintf("unexpected events API status %d: %s", status, logging.TruncateForLog(string(body), 200)),
			"events_status", nil)
	}

	s.logger.DebugKV("Appended event", "table", table, "status", status)
	return nil
}

// SaveChannelConfig stores a channel's Tinybird binding
func (s *Store) SaveChannelConfig(ctx context.Context, cfg ChannelConfig) error {
	if cfg.CreatedAt == "" {
		cfg.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return s.AppendEvent(ctx, TableUserTokens, cfg)
}

// SaveNotificationConfig stores a notification subscription
func (s *Store) SaveNotificationConfig(ctx context.Context, cfg NotificationConfig) error {
	if cfg.CreatedAt == "" {
		cfg.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return s.AppendEvent(ctx, TableNotificationConfigs, cfg)
}

// SaveOAuthTokens stores the result of an OAuth v2 install
func (s *Store) SaveOAuthTokens(ctx context.Context, tokens OAuthTokens) error {
	if tokens.CreatedAt == "" {
		tokens.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return s.AppendEvent(ctx, TableOAuthTokens, tokens)
}
