package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/tinybirdco/birdwatcher/internal/common/errors"
	"github.com/tinybirdco/birdwatcher/internal/common/logging"
	"github.com/tinybirdco/birdwatcher/internal/config"
	"github.com/tinybirdco/birdwatcher/internal/monitoring"
	"github.com/tinybirdco/birdwatcher/internal/observability"
)

// Runner is the Agent implementation: a chat model with native tool calling
// in a bounded iteration loop over the Tinybird MCP tools.
type Runner struct {
	cfg         config.AgentConfig
	mcpURL      string
	initTimeout time.Duration
	runTimeout  time.Duration
	tracing     observability.TracingHandler
	logger      *logging.Logger
}

// NewRunner builds the agent from configuration
func NewRunner(cfg config.AgentConfig, mcpURL string, initTimeout, runTimeout time.Duration, tracing observability.TracingHandler, logger *logging.Logger) *Runner {
	return &Runner{
		cfg:         cfg,
		mcpURL:      mcpURL,
		initTimeout: initTimeout,
		runTimeout:  runTimeout,
		tracing:     tracing,
		logger:      logger.WithName("agent"),
	}
}

func (r *Runner) newModel() (llms.Model, error) {
	switch r.cfg.Provider {
	case config.ProviderAnthropic:
		return anthropic.New(
			anthropic.WithModel(r.cfg.Model),
			anthropic.WithToken(r.cfg.APIKey),
		)
	default:
		opts := []openai.Option{
			openai.WithModel(r.cfg.Model),
			openai.WithToken(r.cfg.APIKey),
		}
		if r.cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(r.cfg.BaseURL))
		}
		return openai.New(opts...)
	}
}

// Run answers one request. Analytical queries routinely take minutes, so the
// whole run is bounded by the configured timeout rather than a per-call one.
func (r *Runner) Run(ctx context.Context, req Request) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.runTimeout)
	defer cancel()

	sessionID := SessionID(req.Channel, req.ThreadTS, req.UserID)
	traceCtx, span := r.tracing.StartTrace(runCtx, "agent.run", req.Message, map[string]string{
		"session.id": sessionID,
		"user.id":    req.UserID,
		"channel.id": req.Channel,
		"mission":    req.Mission,
	})
	start := time.Now()
	outcome := "ok"
	defer func() {
		r.tracing.SetDuration(span, time.Since(start))
		span.End()
		monitoring.AgentRunDuration.WithLabelValues(r.cfg.Model, outcome).Observe(time.Since(start).Seconds())
	}()

	model, err := r.newModel()
	if err != nil {
		outcome = "error"
		r.tracing.RecordError(span, err)
		return "", errors.NewAgentError("failed to initialize chat model", "model_init_failed", err)
	}

	toolSet, err := connectTools(traceCtx, r.mcpURL, req.TinybirdToken, req.TinybirdHost, r.initTimeout, r.logger)
	if err != nil {
		outcome = "error"
		r.tracing.RecordError(span, err)
		return "", errors.NewAgentError("failed to connect to Tinybird MCP server", "mcp_connect_failed", err)
	}
	defer toolSet.Close()

	answer, err := r.runToolLoop(traceCtx, model, toolSet, req, sessionID)
	if err != nil {
		outcome = "error"
		r.tracing.RecordError(span, err)
		return "", err
	}

	r.tracing.SetOutput(span, answer)
	r.tracing.RecordSuccess(span, "agent run completed")
	return answer, nil
}

func (r *Runner) runToolLoop(ctx context.Context, model llms.Model, toolSet *mcpToolSet, req Request, sessionID string) (string, error) {
	messages := r.buildMessages(req)
	toolDefs := toolDefinitions(toolSet.tools)

	for iteration := 0; iteration < r.cfg.MaxIterations; iteration++ {
		resp, err := model.GenerateContent(ctx, messages,
			llms.WithTools(toolDefs),
			llms.WithTemperature(r.cfg.Temperature),
		)
		if err != nil {
			return "", errors.NewAgentError("chat model call failed", "generate_failed", err)
		}
		if len(resp.Choices) == 0 {
			return "", errors.NewAgentError("chat model returned no choices", "empty_response", nil)
		}

		choice := resp.Choices[0]
		if len(choice.ToolCalls) == 0 {
			if choice.Content == "" {
				return "I've completed the analysis, but no specific response was generated.", nil
			}
			return choice.Content, nil
		}

		r.logger.DebugKV("Executing tool calls", "session", sessionID, "iteration", iteration, "calls", len(choice.ToolCalls))

		// Echo the assistant turn with its tool calls, then answer each call.
		assistantParts := make([]llms.ContentPart, 0, len(choice.ToolCalls))
		for _, call := range choice.ToolCalls {
			assistantParts = append(assistantParts, call)
		}
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeAI,
			Parts: assistantParts,
		})

		for _, call := range choice.ToolCalls {
			result := r.executeToolCall(ctx, toolSet, call)
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: call.ID,
					Name:       call.FunctionCall.Name,
					Content:    result,
				}},
			})
		}
	}

	return "", errors.NewAgentError(
		fmt.Sprintf("agent did not converge within %d iterations", r.cfg.MaxIterations),
		"max_iterations", nil)
}

func (r *Runner) buildMessages(req Request) []llms.MessageContent {
	system := systemPrompt + "\n\n" + missionPrompt(req.Mission)
	if req.ThreadTS != "" {
		system += fmt.Sprintf("\n\nYou MUST reply in the same Slack thread as the user's message: Thread ts: %s", req.ThreadTS)
	}
	if req.ThreadContext != "" {
		system += "\n\nTHREAD CONTEXT (Full conversation history):\n" + req.ThreadContext
	}

	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, req.Message),
	}
}

func (r *Runner) executeToolCall(ctx context.Context, toolSet *mcpToolSet, call llms.ToolCall) string {
	if call.FunctionCall == nil {
		return "tool call missing function payload"
	}

	spanCtx, span := r.tracing.StartSpan(ctx, "tool."+call.FunctionCall.Name, call.FunctionCall.Arguments, nil)
	defer span.End()

	for _, tool := range toolSet.tools {
		if tool.Name() != call.FunctionCall.Name {
			continue
		}
		result, err := tool.Call(spanCtx, call.FunctionCall.Arguments)
		if err != nil {
			r.tracing.RecordError(span, err)
			r.logger.WarnKV("Tool call failed", "tool", tool.Name(), "error", err)
			// Feed the error back so the model can self-correct.
			return fmt.Sprintf("tool error: %v", err)
		}
		r.tracing.SetOutput(span, result)
		return result
	}

	return fmt.Sprintf("unknown tool: %s", call.FunctionCall.Name)
}

func toolDefinitions(tools []*mcpTool) []llms.Tool {
	defs := make([]llms.Tool, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}
