package slackbot

import (
	"context"
	"sync"

	customErrors "github.com/tinybirdco/birdwatcher/internal/common/errors"
	httpClient "github.com/tinybirdco/birdwatcher/internal/common/http"
	"github.com/tinybirdco/birdwatcher/internal/common/logging"
	"github.com/tinybirdco/birdwatcher/internal/tinybird"
)

// InstallStore reads stored OAuth install tokens for a workspace
type InstallStore interface {
	GetOAuthTokens(ctx context.Context, teamID string) (*tinybird.OAuthTokens, error)
}

// TokenOpener decrypts stored bot tokens
type TokenOpener interface {
	Decrypt(token string) (string, error)
}

// Teams resolves the Slack client for a workspace. The home workspace client
// is the one built from the configured bot token; workspaces that installed
// the app through OAuth get a client built from their stored bot token.
type Teams struct {
	home   *Client
	store  InstallStore
	box    TokenOpener
	httpc  *httpClient.Client
	logger *logging.Logger

	mu    sync.Mutex
	cache map[string]*Client
}

// NewTeams creates a workspace client resolver around the home client
func NewTeams(home *Client, store InstallStore, box TokenOpener, httpc *httpClient.Client, logger *logging.Logger) *Teams {
	return &Teams{
		home:   home,
		store:  store,
		box:    box,
		httpc:  httpc,
		logger: logger.WithName("slack-teams"),
		cache:  make(map[string]*Client),
	}
}

// ClientForTeam returns the client for teamID. Workspaces without stored
// install tokens fall back to the home client, so a single-workspace
// deployment never needs OAuth records.
func (t *Teams) ClientForTeam(ctx context.Context, teamID string) (*Client, error) {
	if teamID == "" {
		return t.home, nil
	}

	t.mu.Lock()
	cached, ok := t.cache[teamID]
	t.mu.Unlock()
	if ok {
		return cached, nil
	}

	tokens, err := t.store.GetOAuthTokens(ctx, teamID)
	if err != nil {
		if customErrors.Is(err, customErrors.ErrNotFound) {
			t.remember(teamID, t.home)
			return t.home, nil
		}
		return nil, customErrors.Wrap(err, "failed to load install tokens")
	}

	botToken, err := t.box.Decrypt(tokens.EncryptedBotToken)
	if err != nil {
		return nil, customErrors.Wrap(err, "failed to decrypt workspace bot token")
	}

	client, err := New(botToken, tokens.BotUserID, t.httpc, t.logger)
	if err != nil {
		return nil, customErrors.Wrap(err, "failed to build workspace client")
	}

	t.logger.InfoKV("Resolved workspace client from install tokens", "team", teamID)
	t.remember(teamID, client)
	return client, nil
}

func (t *Teams) remember(teamID string, client *Client) {
	t.mu.Lock()
	t.cache[teamID] = client
	t.mu.Unlock()
}
