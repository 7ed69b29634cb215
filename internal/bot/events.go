package bot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tinybirdco/birdwatcher/internal/agent"
	"github.com/tinybirdco/birdwatcher/internal/common/errors"
	"github.com/tinybirdco/birdwatcher/internal/dedup"
	"github.com/tinybirdco/birdwatcher/internal/monitoring"
	slackbot "github.com/tinybirdco/birdwatcher/internal/slack"
	"github.com/tinybirdco/birdwatcher/internal/webhook"
)

const helpReply = "Hi! Ask me about your organization metrics or data analysis."

var userMentionRgx = regexp.MustCompile(`<@[A-Z0-9]+>`)

// HandleEvent runs the full decision sequence for one message event. It is
// called off the HTTP request path, so it may take minutes; every outcome is
// terminal (reply, suppression, or logged failure).
func (b *Bot) HandleEvent(ctx context.Context, notification webhook.EventNotification) {
	event := notification.Event
	api := b.apiFor(ctx, notification.TeamID)

	// Bot-authored traffic is suppressed, except scheduled reminders, which
	// Slackbot posts on a user's behalf.
	isReminder := strings.Contains(event.Text, "Reminder:")
	if (event.BotID != "" || event.Subtype == "bot_message") && !isReminder {
		return
	}
	if api.IsBotUser(event.User) {
		return
	}

	// Slack redelivers events when the ack is slow; the ledger suppresses
	// the redelivered copies. Mark before replying so a redelivery racing
	// the agent run is still caught.
	key := dedup.DeliveryKey(event.Channel, event.TS, event.User)
	if b.ledger.Seen(key) {
		b.logger.DebugKV("Duplicate delivery suppressed", "key", key)
		monitoring.DuplicateDeliveries.Inc()
		return
	}
	b.ledger.Mark(key)

	replyThreadTS := event.ThreadTS
	if replyThreadTS == "" {
		replyThreadTS = event.TS
	}

	if event.User == "" {
		if _, err := api.PostMessage(ctx, event.Channel, replyThreadTS, helpReply); err != nil {
			b.logger.ErrorKV("Failed to post help reply", "channel", event.Channel, "error", err)
		}
		return
	}

	// Addressing: DMs are implicitly addressed to the bot; in channels the
	// message must mention it.
	isDM := strings.HasPrefix(event.Channel, "D")
	text := event.Text
	if !isDM {
		if !api.MentionsBot(text) {
			return
		}
		text = api.RemoveBotMention(text)
	}
	text = strings.TrimSpace(text)

	// A bare mention or empty DM has no question to answer.
	if text == "" {
		if _, err := api.PostMessage(ctx, event.Channel, replyThreadTS, helpReply); err != nil {
			b.logger.ErrorKV("Failed to post help reply", "channel", event.Channel, "error", err)
		}
		return
	}

	// A redelivered reminder may already have a real answer in its thread.
	if isReminder && event.ThreadTS != "" && b.threadAlreadyAnswered(ctx, api, event.Channel, event.ThreadTS) {
		b.logger.DebugKV("Reminder thread already answered, skipping", "key", key)
		return
	}

	thinkingTS, err := api.PostMessage(ctx, event.Channel, replyThreadTS, slackbot.RandomThinkingMessage())
	if err != nil {
		b.logger.WarnKV("Failed to post thinking message", "channel", event.Channel, "error", err)
	}

	answer, err := b.answer(ctx, api, text, event.User, event.Channel, replyThreadTS, isDM)
	if err != nil {
		b.logger.ErrorKV("Agent run failed", "channel", event.Channel, "user", event.User, "error", err)
		answer = errors.UserMessage(err)
	}

	reply := fmt.Sprintf("<@%s> %s", event.User, answer)
	if _, err := api.PostMessage(ctx, event.Channel, replyThreadTS, reply); err != nil {
		b.logger.ErrorKV("Failed to post reply", "channel", event.Channel, "error", err)
		return
	}

	// The placeholder has served its purpose once the real answer is up.
	if thinkingTS != "" {
		if err := api.DeleteMessage(ctx, event.Channel, thinkingTS); err != nil {
			b.logger.WarnKV("Failed to delete thinking message", "channel", event.Channel, "error", err)
		}
	}
}

// answer resolves the channel's Tinybird credentials and runs the agent
func (b *Bot) answer(ctx context.Context, api SlackAPI, text, user, channel, threadTS string, isDM bool) (string, error) {
	lookupUser := ""
	if isDM {
		lookupUser = user
	}
	cfg, err := b.store.GetChannelConfig(ctx, channel, lookupUser)
	if err != nil {
		return "", err
	}

	token, err := b.box.Decrypt(cfg.EncryptedToken)
	if err != nil {
		return "", errors.Wrap(errors.ErrNoChannelConfig, "failed to decrypt channel token")
	}

	return b.agent.Run(ctx, agent.Request{
		Message:       text,
		UserID:        user,
		Channel:       channel,
		ThreadTS:      threadTS,
		ThreadContext: b.threadContext(ctx, api, channel, threadTS),
		TinybirdToken: token,
		TinybirdHost:  cfg.TinybirdHost,
	})
}

// threadAlreadyAnswered reports whether the bot posted a non-thinking reply
// in the thread.
func (b *Bot) threadAlreadyAnswered(ctx context.Context, api SlackAPI, channel, threadTS string) bool {
	replies, err := api.GetThreadReplies(ctx, channel, threadTS)
	if err != nil {
		b.logger.WarnKV("Failed to fetch thread replies", "channel", channel, "error", err)
		return false
	}
	for _, msg := range replies {
		if api.IsBotUser(msg.User) && !slackbot.IsThinkingMessage(msg.Text) {
			return true
		}
	}
	return false
}

// threadContext renders the thread as a transcript for the agent. Thinking
// messages are filtered out; mentions are stripped.
func (b *Bot) threadContext(ctx context.Context, api SlackAPI, channel, threadTS string) string {
	if threadTS == "" {
		return ""
	}

	replies, err := api.GetThreadReplies(ctx, channel, threadTS)
	if err != nil {
		b.logger.WarnKV("Failed to fetch thread context", "channel", channel, "error", err)
		return ""
	}

	var sb strings.Builder
	for i, msg := range replies {
		text := strings.TrimSpace(userMentionRgx.ReplaceAllString(msg.Text, ""))
		if text == "" || slackbot.IsThinkingMessage(text) {
			continue
		}

		sender := "User"
		if api.IsBotUser(msg.User) || msg.User == "USLACKBOT" {
			sender = "Bot"
		}
		fmt.Fprintf(&sb, "Message %d (%s): %s\n", i+1, sender, text)
	}
	return sb.String()
}
