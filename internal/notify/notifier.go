// Package notify runs the scheduled notification sweep: for every channel
// with a stored notification snapshot, run the agent with the subscribed
// mission prompts and post the results.
package notify

import (
	"context"
	"fmt"

	"github.com/tinybirdco/birdwatcher/internal/agent"
	"github.com/tinybirdco/birdwatcher/internal/common/logging"
	"github.com/tinybirdco/birdwatcher/internal/tinybird"
)

// ScheduleDaily is the only schedule the sweep currently knows
const ScheduleDaily = "daily"

// missionForType maps a subscribed notification type to an agent mission
var missionForType = map[string]string{
	"daily_summary": agent.MissionDailySummary,
	"cpu_spikes":    agent.MissionCPUSpikes,
}

// missionRequest is the standing question each mission answers
var missionRequest = map[string]string{
	agent.MissionDailySummary: "Generate the daily organization metrics summary.",
	agent.MissionCPUSpikes:    "Check dedicated cluster CPU usage for spikes in the last 24 hours.",
}

// ConfigLister lists the notification snapshots due for a schedule
type ConfigLister interface {
	ListScheduledConfigs(ctx context.Context, schedule string) ([]tinybird.NotificationConfig, error)
}

// Poster posts the notification text to the channel
type Poster interface {
	PostMessage(ctx context.Context, channelID, threadTS, text string) (string, error)
}

// TokenOpener decrypts the stored channel token
type TokenOpener interface {
	Decrypt(token string) (string, error)
}

// Notifier runs one sweep per invocation. It is meant to be driven by an
// external scheduler, not a long-lived loop.
type Notifier struct {
	store  ConfigLister
	agent  agent.Agent
	slack  Poster
	box    TokenOpener
	logger *logging.Logger
}

// New creates a Notifier
func New(store ConfigLister, agentRunner agent.Agent, slackAPI Poster, box TokenOpener, logger *logging.Logger) *Notifier {
	return &Notifier{
		store:  store,
		agent:  agentRunner,
		slack:  slackAPI,
		box:    box,
		logger: logger.WithName("notify"),
	}
}

// Run delivers every due notification for the schedule. Failures are per
// channel: one broken config does not stop the sweep.
func (n *Notifier) Run(ctx context.Context, schedule string) error {
	configs, err := n.store.ListScheduledConfigs(ctx, schedule)
	if err != nil {
		return fmt.Errorf("failed to list scheduled notifications: %w", err)
	}

	n.logger.InfoKV("Running notification sweep", "schedule", schedule, "channels", len(configs))

	for _, cfg := range configs {
		if err := n.notifyChannel(ctx, cfg); err != nil {
			n.logger.ErrorKV("Notification failed", "channel", cfg.ChannelID, "error", err)
		}
	}
	return nil
}

func (n *Notifier) notifyChannel(ctx context.Context, cfg tinybird.NotificationConfig) error {
	if len(cfg.NotificationTypes) == 0 {
		return nil
	}
	if cfg.EncryptedToken == "" {
		return fmt.Errorf("snapshot for channel %s has no stored token", cfg.ChannelID)
	}

	token, err := n.box.Decrypt(cfg.EncryptedToken)
	if err != nil {
		return fmt.Errorf("failed to decrypt channel token: %w", err)
	}

	for _, notifType := range cfg.NotificationTypes {
		mission, ok := missionForType[notifType]
		if !ok {
			n.logger.WarnKV("Unknown notification type", "channel", cfg.ChannelID, "type", notifType)
			continue
		}

		answer, err := n.agent.Run(ctx, agent.Request{
			Message:       missionRequest[mission],
			UserID:        cfg.UserID,
			Channel:       cfg.ChannelID,
			TinybirdToken: token,
			TinybirdHost:  cfg.TinybirdHost,
			Mission:       mission,
		})
		if err != nil {
			n.logger.ErrorKV("Notification agent run failed",
				"channel", cfg.ChannelID, "mission", mission, "error", err)
			continue
		}

		if _, err := n.slack.PostMessage(ctx, cfg.ChannelID, "", answer); err != nil {
			n.logger.ErrorKV("Failed to post notification",
				"channel", cfg.ChannelID, "mission", mission, "error", err)
		}
	}
	return nil
}
