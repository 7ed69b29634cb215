package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tinybirdco/birdwatcher/internal/common/logging"
	"github.com/tinybirdco/birdwatcher/internal/monitoring"
)

// mcpToolSet is one connected Tinybird MCP session and the tools it exposes.
// Sessions are per agent run because the token and host differ per channel.
type mcpToolSet struct {
	client *client.Client
	tools  []*mcpTool
}

// mcpTool adapts one MCP tool to the chat model's tool-calling interface
type mcpTool struct {
	name        string
	description string
	schema      map[string]interface{}
	client      *client.Client
}

func (t *mcpTool) Name() string {
	return t.name
}

func (t *mcpTool) Description() string {
	return t.description
}

func (t *mcpTool) Parameters() map[string]interface{} {
	return t.schema
}

// Call invokes the tool on the MCP server with JSON-encoded arguments
func (t *mcpTool) Call(ctx context.Context, input string) (string, error) {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("failed to unmarshal tool input: %w", err)
	}

	isError := "false"
	defer func() {
		monitoring.ToolInvocations.With(prometheus.Labels{
			monitoring.MetricLabelTool:  t.name,
			monitoring.MetricLabelError: isError,
		}).Inc()
	}()

	req := mcp.CallToolRequest{}
	req.Params.Name = t.name
	req.Params.Arguments = args

	result, err := t.client.CallTool(ctx, req)
	if err != nil {
		isError = "true"
		return "", fmt.Errorf("while calling tool %s: %w", t.name, err)
	}
	if result.IsError {
		isError = "true"
		return "", fmt.Errorf("tool %s execution failed", t.name)
	}

	var text string
	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			text += textContent.Text
		}
	}
	return text, nil
}

// mcpServerURL builds the per-channel Tinybird MCP endpoint
func mcpServerURL(baseURL, token, host string) string {
	params := url.Values{}
	params.Set("token", token)
	if host != "" {
		params.Set("host", host)
	}
	return fmt.Sprintf("%s?%s", baseURL, params.Encode())
}

// connectTools opens an MCP session against the Tinybird server for one
// channel's credentials and lists its tools.
func connectTools(ctx context.Context, baseURL, token, host string, initTimeout time.Duration, logger *logging.Logger) (*mcpToolSet, error) {
	serverURL := mcpServerURL(baseURL, token, host)

	mcpClient, err := client.NewStreamableHttpClient(serverURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	if err := mcpClient.Start(initCtx); err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	if _, err := mcpClient.Initialize(initCtx, initReq); err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("failed to initialize MCP session: %w", err)
	}

	listed, err := mcpClient.ListTools(initCtx, mcp.ListToolsRequest{})
	if err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("failed to list MCP tools: %w", err)
	}

	set := &mcpToolSet{client: mcpClient}
	for _, t := range listed.Tools {
		schema, err := schemaToMap(t.InputSchema)
		if err != nil {
			logger.WarnKV("Skipping tool with unparseable schema", "tool", t.Name, "error", err)
			continue
		}
		set.tools = append(set.tools, &mcpTool{
			name:        t.Name,
			description: t.Description,
			schema:      schema,
			client:      mcpClient,
		})
	}

	logger.InfoKV("Connected to Tinybird MCP server", "tools", len(set.tools))
	return set, nil
}

// Close tears down the MCP session
func (s *mcpToolSet) Close() {
	if s.client != nil {
		_ = s.client.Close()
	}
}

func schemaToMap(schema mcp.ToolInputSchema) (map[string]interface{}, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
