package webhook

import (
	"net/url"
	"testing"
)

func TestParseRequestURLVerification(t *testing.T) {
	body := `{"type": "url_verification", "challenge": "abc123"}`

	delivery, err := ParseRequest("application/json", []byte(body))
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}

	challenge, ok := delivery.(VerificationChallenge)
	if !ok {
		t.Fatalf("expected VerificationChallenge, got %T", delivery)
	}
	if challenge.Challenge != "abc123" {
		t.Errorf("unexpected challenge %q", challenge.Challenge)
	}
}

func TestParseRequestEventCallback(t *testing.T) {
	body := `{
		"type": "event_callback",
		"team_id": "T1",
		"event": {
			"type": "message",
			"user": "U1",
			"channel": "C1",
			"text": "hello",
			"ts": "1700000000.000100",
			"thread_ts": "1700000000.000001"
		}
	}`

	delivery, err := ParseRequest("application/json", []byte(body))
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}

	event, ok := delivery.(EventNotification)
	if !ok {
		t.Fatalf("expected EventNotification, got %T", delivery)
	}
	if event.TeamID != "T1" {
		t.Errorf("unexpected team %q", event.TeamID)
	}
	if event.Event.Channel != "C1" || event.Event.Text != "hello" {
		t.Errorf("unexpected event %+v", event.Event)
	}
	if event.Event.ThreadTS != "1700000000.000001" {
		t.Errorf("unexpected thread ts %q", event.Event.ThreadTS)
	}
}

func TestParseRequestAppMention(t *testing.T) {
	body := `{"type": "event_callback", "event": {"type": "app_mention", "channel": "C1", "user": "U1", "text": "<@U0BOT> hi", "ts": "1.2"}}`

	delivery, err := ParseRequest("application/json", []byte(body))
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}
	if _, ok := delivery.(EventNotification); !ok {
		t.Fatalf("expected EventNotification for app_mention, got %T", delivery)
	}
}

func TestParseRequestNonMessageEvent(t *testing.T) {
	body := `{"type": "event_callback", "event": {"type": "reaction_added"}}`

	delivery, err := ParseRequest("application/json", []byte(body))
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}
	if _, ok := delivery.(Unrecognized); !ok {
		t.Fatalf("expected Unrecognized for reaction_added, got %T", delivery)
	}
}

func TestParseRequestSlashCommand(t *testing.T) {
	form := url.Values{}
	form.Set("command", "/birdwatcher")
	form.Set("text", "top pipes by requests")
	form.Set("user_id", "U1")
	form.Set("channel_id", "C1")
	form.Set("trigger_id", "trigger.1")
	form.Set("response_url", "https://hooks.slack.com/commands/T1/1/abc")
	form.Set("team_id", "T1")

	delivery, err := ParseRequest("application/x-www-form-urlencoded", []byte(form.Encode()))
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}

	cmd, ok := delivery.(SlashCommand)
	if !ok {
		t.Fatalf("expected SlashCommand, got %T", delivery)
	}
	if cmd.Command != "/birdwatcher" || cmd.Text != "top pipes by requests" {
		t.Errorf("unexpected command %+v", cmd)
	}
	if cmd.ResponseURL == "" || cmd.TriggerID == "" {
		t.Errorf("expected response_url and trigger_id, got %+v", cmd)
	}
}

func TestParseRequestViewSubmission(t *testing.T) {
	payload := `{
		"type": "view_submission",
		"user": {"id": "U1"},
		"view": {
			"callback_id": "birdwatcher_config_modal",
			"private_metadata": "C1"
		}
	}`
	form := url.Values{}
	form.Set("payload", payload)

	delivery, err := ParseRequest("application/x-www-form-urlencoded", []byte(form.Encode()))
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}

	submission, ok := delivery.(InteractiveSubmission)
	if !ok {
		t.Fatalf("expected InteractiveSubmission, got %T", delivery)
	}
	if submission.Callback.View.CallbackID != "birdwatcher_config_modal" {
		t.Errorf("unexpected callback id %q", submission.Callback.View.CallbackID)
	}
	if submission.Callback.View.PrivateMetadata != "C1" {
		t.Errorf("unexpected private metadata %q", submission.Callback.View.PrivateMetadata)
	}
}

func TestParseRequestOtherInteraction(t *testing.T) {
	form := url.Values{}
	form.Set("payload", `{"type": "block_actions"}`)

	delivery, err := ParseRequest("application/x-www-form-urlencoded", []byte(form.Encode()))
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}
	if _, ok := delivery.(Unrecognized); !ok {
		t.Fatalf("expected Unrecognized for block_actions, got %T", delivery)
	}
}

func TestParseRequestUnrecognizedForm(t *testing.T) {
	delivery, err := ParseRequest("application/x-www-form-urlencoded", []byte("foo=bar"))
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}
	if _, ok := delivery.(Unrecognized); !ok {
		t.Fatalf("expected Unrecognized, got %T", delivery)
	}
}

func TestParseRequestMalformedJSON(t *testing.T) {
	if _, err := ParseRequest("application/json", []byte("{not json")); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
