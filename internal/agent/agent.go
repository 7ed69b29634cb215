// Package agent runs the LLM analyst that answers questions through Tinybird
// MCP tools. Each run opens its own MCP session because the Tinybird token
// and host are channel-scoped.
package agent

import "context"

// Request carries one question into the agent together with the channel's
// Tinybird credentials and any conversational context.
type Request struct {
	Message       string
	UserID        string
	Channel       string
	ThreadTS      string
	ThreadContext string

	// Channel-scoped Tinybird credentials, already decrypted.
	TinybirdToken string
	TinybirdHost  string

	// Mission selects the instruction prompt; empty means thread exploration.
	Mission string
}

// Agent produces an answer for a request.
type Agent interface {
	Run(ctx context.Context, req Request) (string, error)
}

// SessionID derives the conversation identity used for memory and tracing.
// A thread binds the session to the thread, a channel message to the
// channel and user, a bare user to the user alone.
func SessionID(channel, threadTS, user string) string {
	switch {
	case threadTS != "":
		return "slack_" + channel + "_" + threadTS
	case channel != "":
		return "slack_" + channel + "_" + user
	default:
		return "slack_" + user
	}
}
