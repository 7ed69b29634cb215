// Package webhook terminates Slack's webhook deliveries: Events API posts,
// slash commands, interactive view submissions, and the OAuth install
// callback.
package webhook

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/slack-go/slack"
)

// Delivery is the classified form of one webhook POST. The set is closed:
// every request maps to exactly one of the variants below, with Unrecognized
// as the catch-all that still gets acked.
type Delivery interface {
	isDelivery()
}

// VerificationChallenge is Slack's url_verification handshake
type VerificationChallenge struct {
	Challenge string
}

// MessageEvent is the inner event of an event_callback delivery
type MessageEvent struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype"`
	BotID    string `json:"bot_id"`
	User     string `json:"user"`
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts"`
}

// EventNotification is an event_callback delivery
type EventNotification struct {
	TeamID string
	Event  MessageEvent
}

// SlashCommand is a slash command form post
type SlashCommand struct {
	Command     string
	Text        string
	UserID      string
	ChannelID   string
	TriggerID   string
	ResponseURL string
	TeamID      string
}

// InteractiveSubmission is a view_submission interaction payload
type InteractiveSubmission struct {
	Callback slack.InteractionCallback
}

// Unrecognized is any delivery that matched no other variant
type Unrecognized struct{}

func (VerificationChallenge) isDelivery() {}
func (EventNotification) isDelivery()     {}
func (SlashCommand) isDelivery()          {}
func (InteractiveSubmission) isDelivery() {}
func (Unrecognized) isDelivery()          {}

// messageEventTypes are the inner event types the bot processes
var messageEventTypes = map[string]bool{
	"message":     true,
	"app_mention": true,
	"message.im":  true,
}

// ParseRequest classifies a webhook POST body. JSON bodies carry Events API
// deliveries; form bodies carry slash commands and interaction payloads.
func ParseRequest(contentType string, body []byte) (Delivery, error) {
	if strings.Contains(contentType, "application/json") || looksLikeJSON(body) {
		return parseJSONDelivery(body)
	}
	return parseFormDelivery(body)
}

func looksLikeJSON(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	return strings.HasPrefix(trimmed, "{")
}

func parseJSONDelivery(body []byte) (Delivery, error) {
	var envelope struct {
		Type      string       `json:"type"`
		Challenge string       `json:"challenge"`
		TeamID    string       `json:"team_id"`
		Event     MessageEvent `json:"event"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse JSON delivery: %w", err)
	}

	switch envelope.Type {
	case "url_verification":
		return VerificationChallenge{Challenge: envelope.Challenge}, nil
	case "event_callback":
		if !messageEventTypes[envelope.Event.Type] {
			return Unrecognized{}, nil
		}
		return EventNotification{TeamID: envelope.TeamID, Event: envelope.Event}, nil
	default:
		return Unrecognized{}, nil
	}
}

func parseFormDelivery(body []byte) (Delivery, error) {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse form delivery: %w", err)
	}

	if payload := form.Get("payload"); payload != "" {
		var callback slack.InteractionCallback
		if err := json.Unmarshal([]byte(payload), &callback); err != nil {
			return nil, fmt.Errorf("failed to parse interaction payload: %w", err)
		}
		if callback.Type != slack.InteractionTypeViewSubmission {
			return Unrecognized{}, nil
		}
		return InteractiveSubmission{Callback: callback}, nil
	}

	if command := form.Get("command"); command != "" {
		return SlashCommand{
			Command:     command,
			Text:        form.Get("text"),
			UserID:      form.Get("user_id"),
			ChannelID:   form.Get("channel_id"),
			TriggerID:   form.Get("trigger_id"),
			ResponseURL: form.Get("response_url"),
			TeamID:      form.Get("team_id"),
		}, nil
	}

	return Unrecognized{}, nil
}
