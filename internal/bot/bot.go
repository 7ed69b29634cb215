// Package bot implements the conversation logic: deciding which Slack events
// deserve an answer, gathering thread context, invoking the agent, and
// handling slash commands and modal submissions.
package bot

import (
	"context"

	"github.com/slack-go/slack"

	"github.com/tinybirdco/birdwatcher/internal/agent"
	"github.com/tinybirdco/birdwatcher/internal/common/logging"
	"github.com/tinybirdco/birdwatcher/internal/dedup"
	"github.com/tinybirdco/birdwatcher/internal/tinybird"
)

// SlackAPI is the Slack surface the bot needs
type SlackAPI interface {
	PostMessage(ctx context.Context, channelID, threadTS, text string) (string, error)
	PostEphemeral(ctx context.Context, channelID, userID, text string) error
	DeleteMessage(ctx context.Context, channelID, ts string) error
	GetThreadReplies(ctx context.Context, channelID, threadTS string) ([]slack.Message, error)
	OpenView(ctx context.Context, triggerID string, view slack.ModalViewRequest) error
	RespondToCommand(ctx context.Context, responseURL, text string) error
	MentionsBot(text string) bool
	RemoveBotMention(text string) string
	IsBotUser(userID string) bool
}

// TeamResolver returns the Slack client for a workspace. Deliveries from
// workspaces that installed the app through OAuth are answered with their
// stored bot token instead of the home workspace's.
type TeamResolver func(ctx context.Context, teamID string) (SlackAPI, error)

// ConfigStore is the Tinybird-backed configuration surface the bot needs
type ConfigStore interface {
	GetChannelConfig(ctx context.Context, channelID, userID string) (*tinybird.ChannelConfig, error)
	GetNotificationTypes(ctx context.Context, channelID string) ([]string, error)
	SaveChannelConfig(ctx context.Context, cfg tinybird.ChannelConfig) error
	SaveNotificationConfig(ctx context.Context, cfg tinybird.NotificationConfig) error
}

// SecretBox seals channel tokens before they reach the store
type SecretBox interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(token string) (string, error)
}

// Bot ties the collaborators together
type Bot struct {
	slack  SlackAPI
	teams  TeamResolver
	agent  agent.Agent
	store  ConfigStore
	box    SecretBox
	ledger dedup.Ledger
	logger *logging.Logger
}

// New creates a Bot. The dedup ledger is injected so tests can substitute an
// in-memory one; a nil team resolver pins every delivery to the home client.
func New(slackAPI SlackAPI, teams TeamResolver, agentRunner agent.Agent, store ConfigStore, box SecretBox, ledger dedup.Ledger, logger *logging.Logger) *Bot {
	return &Bot{
		slack:  slackAPI,
		teams:  teams,
		agent:  agentRunner,
		store:  store,
		box:    box,
		ledger: ledger,
		logger: logger.WithName("bot"),
	}
}

// apiFor resolves the Slack client for a delivery's workspace, falling back
// to the home client when resolution fails.
func (b *Bot) apiFor(ctx context.Context, teamID string) SlackAPI {
	if b.teams == nil || teamID == "" {
		return b.slack
	}
	api, err := b.teams(ctx, teamID)
	if err != nil {
		b.logger.WarnKV("Failed to resolve workspace client, using home workspace", "team", teamID, "error", err)
		return b.slack
	}
	return api
}
