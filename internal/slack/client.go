// Package slackbot wraps the Slack Web API for the bot: posting replies,
// fetching thread history, opening modals, and answering slash commands
// through their response URLs.
package slackbot

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/slack-go/slack"

	customErrors "github.com/tinybirdco/birdwatcher/internal/common/errors"
	httpClient "github.com/tinybirdco/birdwatcher/internal/common/http"
	"github.com/tinybirdco/birdwatcher/internal/common/logging"
)

// Client wraps the Slack Web API client with the bot identity baked in.
type Client struct {
	api           *slack.Client
	botUserID     string
	botMentionRgx *regexp.Regexp
	httpc         *httpClient.Client
	logger        *logging.Logger
}

// New creates a Slack client for the given bot token. When botUserID is empty
// it is resolved through auth.test.
func New(botToken, botUserID string, httpc *httpClient.Client, logger *logging.Logger) (*Client, error) {
	if botToken == "" {
		return nil, fmt.Errorf("SLACK_BOT_TOKEN must be set")
	}

	slackLogger := logger.WithName("slack-client")
	api := slack.New(
		botToken,
		slack.OptionLog(slackLogger.StdLogger()),
	)

	if botUserID == "" {
		authTest, err := api.AuthTestContext(context.Background())
		if err != nil {
			return nil, customErrors.NewSlackError("failed to authenticate with Slack", "authentication_failed", err)
		}
		botUserID = authTest.UserID
	}

	return &Client{
		api:           api,
		botUserID:     botUserID,
		botMentionRgx: regexp.MustCompile(fmt.Sprintf("<@%s>", regexp.QuoteMeta(botUserID))),
		httpc:         httpc,
		logger:        slackLogger,
	}, nil
}

// BotUserID returns the bot's own user ID
func (c *Client) BotUserID() string {
	return c.botUserID
}

// IsBotUser reports whether userID is the bot itself
func (c *Client) IsBotUser(userID string) bool {
	return userID == c.botUserID
}

// MentionsBot reports whether the text mentions the bot anywhere
func (c *Client) MentionsBot(text string) bool {
	return c.botMentionRgx.MatchString(text)
}

// RemoveBotMention strips bot mentions from the message text
func (c *Client) RemoveBotMention(msg string) string {
	return c.botMentionRgx.ReplaceAllString(msg, "")
}

// PostMessage posts text to a channel, replying in a thread when threadTS is
// set. Returns the timestamp of the posted message.
func (c *Client) PostMessage(ctx context.Context, channelID, threadTS, text string) (string, error) {
	if text == "" {
		c.logger.WarnKV("Attempted to send empty message, skipping", "channel", channelID)
		return "", nil
	}

	options := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		options = append(options, slack.MsgOptionTS(threadTS))
	}

	_, ts, err := c.api.PostMessageContext(ctx, channelID, options...)
	if err != nil {
		return "", customErrors.NewSlackError("failed to post message", "post_message_failed", err)
	}
	return ts, nil
}

// PostEphemeral posts text visible only to one user in a channel
func (c *Client) PostEphemeral(ctx context.Context, channelID, userID, text string) error {
	_, err := c.api.PostEphemeralContext(ctx, channelID, userID, slack.MsgOptionText(text, false))
	if err != nil {
		return customErrors.NewSlackError("failed to post ephemeral message", "post_ephemeral_failed", err)
	}
	return nil
}

// DeleteMessage removes a previously posted message
func (c *Client) DeleteMessage(ctx context.Context, channelID, ts string) error {
	_, _, err := c.api.DeleteMessageContext(ctx, channelID, ts)
	if err != nil {
		return customErrors.NewSlackError("failed to delete message", "delete_message_failed", err)
	}
	return nil
}

// GetThreadReplies fetches the messages of a thread
func (c *Client) GetThreadReplies(ctx context.Context, channelID, threadTS string) ([]slack.Message, error) {
	if channelID == "" || threadTS == "" {
		return nil, fmt.Errorf("channelID and threadTS must be provided")
	}

	replies, _, _, err := c.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: threadTS,
		Limit:     50,
	})
	if err != nil {
		return nil, customErrors.NewSlackError("failed to fetch thread replies", "fetch_thread_replies_failed", err)
	}
	return replies, nil
}

// OpenView opens a modal in response to a slash command trigger
func (c *Client) OpenView(ctx context.Context, triggerID string, view slack.ModalViewRequest) error {
	_, err := c.api.OpenViewContext(ctx, triggerID, view)
	if err != nil {
		return customErrors.NewSlackError("failed to open modal view", "open_view_failed", err)
	}
	return nil
}

// RespondToCommand posts an ephemeral follow-up through a slash command's
// response URL. Response URLs stay valid for 30 minutes, which covers even
// slow agent runs.
func (c *Client) RespondToCommand(ctx context.Context, responseURL, text string) error {
	payload := map[string]string{
		"response_type": "ephemeral",
		"text":          text,
	}

	_, _, err := c.httpc.DoRequest(ctx, http.MethodPost, responseURL, payload, nil)
	if err != nil {
		return customErrors.NewSlackError("failed to post to response URL", "response_url_failed", err)
	}
	return nil
}

// ExchangeOAuthCode exchanges an OAuth v2 authorization code for workspace tokens
func ExchangeOAuthCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*slack.OAuthV2Response, error) {
	resp, err := slack.GetOAuthV2ResponseContext(ctx, &http.Client{}, clientID, clientSecret, code, redirectURI)
	if err != nil {
		return nil, customErrors.NewSlackError("failed to exchange OAuth code", "oauth_exchange_failed", err)
	}
	return resp, nil
}
