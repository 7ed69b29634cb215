package bot

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/tinybirdco/birdwatcher/internal/common/errors"
	slackbot "github.com/tinybirdco/birdwatcher/internal/slack"
	"github.com/tinybirdco/birdwatcher/internal/tinybird"
	"github.com/tinybirdco/birdwatcher/internal/webhook"
)

// Slash commands the bot registers
const (
	CommandAsk           = "/birdwatcher"
	CommandConfig        = "/birdwatcher-config"
	CommandNotifications = "/birdwatcher-notifications"
)

const configConfirmation = "✅ Birdwatcher configuration updated successfully! \n\n" +
	"You can now ask me questions about your data or Tinybird service datasources. \n\n" +
	"Example: top 5 pipes by requests in the last 24 hours."

const notificationsConfirmation = "✅ Notification preferences updated successfully!"

// HandleCommand processes one slash command. The webhook handler has already
// acked; answers go back through the response URL or a modal.
func (b *Bot) HandleCommand(ctx context.Context, cmd webhook.SlashCommand) {
	api := b.apiFor(ctx, cmd.TeamID)

	switch cmd.Command {
	case CommandAsk:
		b.handleAskCommand(ctx, api, cmd)
	case CommandConfig:
		b.openModal(ctx, api, cmd, slackbot.NewConfigModal(cmd.ChannelID), "configuration")
	case CommandNotifications:
		subscribed, err := b.store.GetNotificationTypes(ctx, cmd.ChannelID)
		if err != nil {
			b.logger.WarnKV("Failed to load notification preferences", "channel", cmd.ChannelID, "error", err)
		}
		b.openModal(ctx, api, cmd, slackbot.NewNotificationsModal(cmd.ChannelID, subscribed), "notifications")
	default:
		b.respond(ctx, api, cmd.ResponseURL, helpReply)
	}
}

func (b *Bot) handleAskCommand(ctx context.Context, api SlackAPI, cmd webhook.SlashCommand) {
	if cmd.Text == "" {
		b.respond(ctx, api, cmd.ResponseURL, helpReply)
		return
	}

	answer, err := b.answer(ctx, api, cmd.Text, cmd.UserID, cmd.ChannelID, "", false)
	if err != nil {
		b.logger.ErrorKV("Agent run failed for command", "channel", cmd.ChannelID, "error", err)
		answer = errors.UserMessage(err)
	}
	b.respond(ctx, api, cmd.ResponseURL, answer)
}

func (b *Bot) openModal(ctx context.Context, api SlackAPI, cmd webhook.SlashCommand, view slack.ModalViewRequest, name string) {
	if err := api.OpenView(ctx, cmd.TriggerID, view); err != nil {
		b.logger.ErrorKV("Failed to open modal", "modal", name, "channel", cmd.ChannelID, "error", err)
		b.respond(ctx, api, cmd.ResponseURL, fmt.Sprintf("❌ Error opening %s modal: %v", name, err))
	}
}

func (b *Bot) respond(ctx context.Context, api SlackAPI, responseURL, text string) {
	if responseURL == "" {
		return
	}
	if err := api.RespondToCommand(ctx, responseURL, text); err != nil {
		b.logger.ErrorKV("Failed to post command response", "error", err)
	}
}

// HandleViewSubmission processes a modal submission synchronously and returns
// the Slack response action: a clear on success, or a per-block errors map.
func (b *Bot) HandleViewSubmission(ctx context.Context, callback slack.InteractionCallback) map[string]interface{} {
	api := b.apiFor(ctx, callback.Team.ID)
	channelID := callback.View.PrivateMetadata
	userID := callback.User.ID

	var values map[string]map[string]slack.BlockAction
	if callback.View.State != nil {
		values = callback.View.State.Values
	}

	switch callback.View.CallbackID {
	case slackbot.ConfigModalCallbackID:
		return b.submitConfig(ctx, api, channelID, userID, values)
	case slackbot.NotificationsModalCallbackID:
		return b.submitNotifications(ctx, api, channelID, userID, values)
	default:
		b.logger.WarnKV("Unknown view submission", "callback_id", callback.View.CallbackID)
		return map[string]interface{}{"response_action": "clear"}
	}
}

func (b *Bot) submitConfig(ctx context.Context, api SlackAPI, channelID, userID string, values map[string]map[string]slack.BlockAction) map[string]interface{} {
	token := values[slackbot.TokenBlockID][slackbot.TokenActionID].Value
	host := values[slackbot.HostBlockID][slackbot.HostActionID].Value

	if token == "" {
		return map[string]interface{}{
			"response_action": "errors",
			"errors": map[string]string{
				slackbot.TokenBlockID: "Tinybird token is required",
			},
		}
	}

	sealed, err := b.box.Encrypt(token)
	if err != nil {
		b.logger.ErrorKV("Failed to encrypt channel token", "channel", channelID, "error", err)
		return map[string]interface{}{
			"response_action": "errors",
			"errors": map[string]string{
				slackbot.TokenBlockID: "Failed to save configuration",
			},
		}
	}

	err = b.store.SaveChannelConfig(ctx, tinybird.ChannelConfig{
		ChannelID:      channelID,
		UserID:         userID,
		EncryptedToken: sealed,
		TinybirdHost:   host,
	})
	if err != nil {
		b.logger.ErrorKV("Failed to save channel config", "channel", channelID, "error", err)
		return map[string]interface{}{
			"response_action": "errors",
			"errors": map[string]string{
				slackbot.TokenBlockID: "Failed to save configuration",
			},
		}
	}

	if err := api.PostEphemeral(ctx, channelID, userID, configConfirmation); err != nil {
		b.logger.WarnKV("Failed to post config confirmation", "channel", channelID, "error", err)
	}

	return map[string]interface{}{"response_action": "clear"}
}

func (b *Bot) submitNotifications(ctx context.Context, api SlackAPI, channelID, userID string, values map[string]map[string]slack.BlockAction) map[string]interface{} {
	selected := values[slackbot.NotificationOptionsBlockID][slackbot.NotificationOptionsActionID].SelectedOptions
	types := make([]string, 0, len(selected))
	for _, option := range selected {
		types = append(types, option.Value)
	}

	// Carry the channel's credentials on the snapshot so the scheduled
	// notifier can run without a second lookup.
	cfg := tinybird.NotificationConfig{
		ChannelID:         channelID,
		UserID:            userID,
		NotificationTypes: types,
		Schedule:          "daily",
	}
	if channelCfg, err := b.store.GetChannelConfig(ctx, channelID, ""); err == nil {
		cfg.EncryptedToken = channelCfg.EncryptedToken
		cfg.TinybirdHost = channelCfg.TinybirdHost
	}

	if err := b.store.SaveNotificationConfig(ctx, cfg); err != nil {
		b.logger.ErrorKV("Failed to save notification config", "channel", channelID, "error", err)
		return map[string]interface{}{
			"response_action": "errors",
			"errors": map[string]string{
				slackbot.NotificationOptionsBlockID: "Failed to save notification preferences",
			},
		}
	}

	if err := api.PostEphemeral(ctx, channelID, userID, notificationsConfirmation); err != nil {
		b.logger.WarnKV("Failed to post notifications confirmation", "channel", channelID, "error", err)
	}

	return map[string]interface{}{"response_action": "clear"}
}
