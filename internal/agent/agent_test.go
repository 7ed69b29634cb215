package agent

import (
	"testing"
)

func TestSessionID(t *testing.T) {
	tests := []struct {
		name     string
		channel  string
		threadTS string
		user     string
		want     string
	}{
		{
			name:     "thread session",
			channel:  "C1",
			threadTS: "1700000000.000100",
			user:     "U1",
			want:     "slack_C1_1700000000.000100",
		},
		{
			name:    "channel session",
			channel: "C1",
			user:    "U1",
			want:    "slack_C1_U1",
		},
		{
			name: "user session",
			user: "U1",
			want: "slack_U1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SessionID(tt.channel, tt.threadTS, tt.user); got != tt.want {
				t.Errorf("SessionID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMCPServerURL(t *testing.T) {
	got := mcpServerURL("https://mcp.tinybird.co", "p.token", "https://api.tinybird.co")
	want := "https://mcp.tinybird.co?host=https%3A%2F%2Fapi.tinybird.co&token=p.token"
	if got != want {
		t.Errorf("mcpServerURL() = %q, want %q", got, want)
	}

	// Without a host only the token rides on the URL.
	got = mcpServerURL("https://mcp.tinybird.co", "p.token", "")
	want = "https://mcp.tinybird.co?token=p.token"
	if got != want {
		t.Errorf("mcpServerURL() = %q, want %q", got, want)
	}
}

func TestMissionPrompt(t *testing.T) {
	if missionPrompt(MissionDailySummary) != dailySummaryPrompt {
		t.Error("expected daily summary prompt")
	}
	if missionPrompt(MissionCPUSpikes) != cpuSpikesPrompt {
		t.Error("expected cpu spikes prompt")
	}
	if missionPrompt("") != explorationPrompt {
		t.Error("expected exploration prompt as default")
	}
	if missionPrompt(MissionExplore) != explorationPrompt {
		t.Error("expected exploration prompt for explore mission")
	}
}
