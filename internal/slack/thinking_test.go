package slackbot

import (
	"strings"
	"testing"
)

func TestRandomThinkingMessage(t *testing.T) {
	msg := RandomThinkingMessage()
	if msg == "" {
		t.Fatal("Expected a non-empty thinking message")
	}
	if !strings.Contains(msg, "please wait") {
		t.Errorf("Expected wait notice in thinking message, got %q", msg)
	}
}

func TestIsThinkingMessage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{
			name: "exact pool message",
			text: thinkingMessages[0],
			want: true,
		},
		{
			name: "pool message without emoji",
			text: "Analyzing your query, please wait. In the meanwhile did you know Peregrine Falcons are the fastest birds, diving at 240+ mph?",
			want: true,
		},
		{
			name: "legacy phrasing",
			text: "🤖 Analyzing your request...",
			want: true,
		},
		{
			name: "ordinary user question",
			text: "how many requests did we serve yesterday?",
			want: false,
		},
		{
			name: "agent answer",
			text: "Your top pipe by requests is events_pipe with 1.2M calls.",
			want: false,
		},
		{
			name: "empty",
			text: "",
			want: false,
		},
		{
			name: "emoji only",
			text: "🦅",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsThinkingMessage(tt.text); got != tt.want {
				t.Errorf("IsThinkingMessage(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestEveryPoolMessageDetected(t *testing.T) {
	for _, msg := range thinkingMessages {
		if !IsThinkingMessage(msg) {
			t.Errorf("Pool message not detected as thinking message: %q", msg)
		}
	}
}
