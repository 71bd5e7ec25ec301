package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	// defaultRequestTimeout bounds list-tools and call-tool requests.
	defaultRequestTimeout = 30 * time.Second

	// defaultConnectTimeout bounds spawn plus handshake.
	defaultConnectTimeout = 10 * time.Second

	// shutdownGrace is how long Close waits between the graceful phase
	// and SIGKILL.
	shutdownGrace = 2 * time.Second
)

// Client wraps one tool-provider subprocess and its protocol session.
type Client struct {
	// serverID is the stable identifier of the owning server config
	serverID string

	// serverName is the display name of the owning server config
	serverName string

	// timeout bounds individual list-tools and call-tool requests
	timeout time.Duration

	logger *slog.Logger

	// reqMu serializes protocol requests: one in-flight call per session
	reqMu sync.Mutex

	// mu guards the connection state below
	mu        sync.Mutex
	client    *client.Client
	connected bool
	cached    []ToolDefinition

	// process is the underlying OS process (for force-kill during shutdown)
	process ProcessHandle
	pid     int
}

// ClientConfig configures a provider client connection.
type ClientConfig struct {
	// ServerID is the stable identifier for the owning server config
	ServerID string

	// ServerName is the display name for the owning server config
	ServerName string

	// Command is the executable to run
	Command string

	// Args are the command-line arguments
	Args []string

	// Env are additional environment variables in KEY=VALUE format
	Env []string

	// Timeout bounds individual requests (defaults to 30s)
	Timeout time.Duration

	// ConnectTimeout bounds spawn plus handshake (defaults to 10s)
	ConnectTimeout time.Duration

	// Logger is used for structured logging (optional)
	Logger *slog.Logger
}

// Dial spawns the provider subprocess and performs the initialize
// handshake. It is all-or-nothing: on any failure the spawned process
// is torn down and no handle leaks.
func Dial(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.ServerID == "" {
		return nil, fmt.Errorf("server id is required")
	}
	if cfg.Command == "" {
		return nil, fmt.Errorf("command is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = defaultConnectTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mcpClient, err := client.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
	if err != nil {
		return nil, ErrSpawnFailed(cfg.ServerID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := mcpClient.Start(ctx); err != nil {
		_ = mcpClient.Close()
		return nil, ErrSpawnFailed(cfg.ServerID, err)
	}

	c := &Client{
		serverID:   cfg.ServerID,
		serverName: cfg.ServerName,
		timeout:    timeout,
		logger:     logger,
		client:     mcpClient,
		connected:  true,
		process:    extractProcess(mcpClient),
	}
	if proc, ok := c.process.(*os.Process); ok && proc != nil {
		c.pid = proc.Pid
	}

	if err := c.initialize(ctx); err != nil {
		_ = c.Close()
		return nil, ErrHandshakeFailed(cfg.ServerID, err)
	}

	return c, nil
}

// extractProcess attempts to extract the underlying OS process from the
// MCP client's stdio transport. Uses reflection to access the Cmd field.
// Returns nil if extraction fails (non-fatal - we just won't be able to
// force-kill).
func extractProcess(mcpClient *client.Client) ProcessHandle {
	if mcpClient == nil {
		return nil
	}

	transport := mcpClient.GetTransport()
	if transport == nil {
		return nil
	}

	transportVal := reflect.ValueOf(transport)
	if transportVal.Kind() == reflect.Ptr {
		if transportVal.IsNil() {
			return nil
		}
		transportVal = transportVal.Elem()
	}

	cmdField := transportVal.FieldByName("Cmd")
	if !cmdField.IsValid() || cmdField.Kind() != reflect.Ptr || cmdField.IsNil() {
		return nil
	}

	processField := cmdField.Elem().FieldByName("Process")
	if !processField.IsValid() || processField.IsNil() {
		return nil
	}

	if proc, ok := processField.Interface().(*os.Process); ok {
		return proc
	}

	return nil
}

// initialize sends the initialize request to the provider process.
func (c *Client) initialize(ctx context.Context) error {
	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    "toolgate",
				Version: "0.1.0",
			},
		},
	}

	if _, err := c.client.Initialize(ctx, initReq); err != nil {
		return fmt.Errorf("initialize request failed: %w", err)
	}

	return nil
}

// ListTools retrieves the tool catalog from the provider process and
// refreshes the client's cache. Fails if the client is not connected;
// it never spawns implicitly.
func (c *Client) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	c.mu.Lock()
	mcpClient := c.client
	connected := c.connected
	c.mu.Unlock()

	if !connected || mcpClient == nil {
		return nil, ErrNotConnected(c.serverID)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.reqMu.Lock()
	result, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	c.reqMu.Unlock()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrRequestTimeout(c.serverID, "list tools", err)
		}
		return nil, ErrProtocol(c.serverID, fmt.Errorf("failed to list tools: %w", err))
	}

	tools := make([]ToolDefinition, len(result.Tools))
	for i, tool := range result.Tools {
		schemaBytes, err := extractInputSchema(tool)
		if err != nil {
			return nil, ErrProtocol(c.serverID, err)
		}
		tools[i] = ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schemaBytes,
		}
	}

	c.mu.Lock()
	c.cached = tools
	c.mu.Unlock()

	return tools, nil
}

// extractInputSchema pulls the raw JSON Schema out of an MCP tool.
// Prefers RawInputSchema; falls back to re-marshalling the typed schema.
func extractInputSchema(tool mcp.Tool) (json.RawMessage, error) {
	if len(tool.RawInputSchema) > 0 {
		return tool.RawInputSchema, nil
	}

	toolBytes, err := tool.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool %s: %w", tool.Name, err)
	}
	var toolMap map[string]interface{}
	if err := json.Unmarshal(toolBytes, &toolMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tool %s: %w", tool.Name, err)
	}
	inputSchema, ok := toolMap["inputSchema"]
	if !ok {
		return nil, nil
	}
	schemaBytes, err := json.Marshal(inputSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input schema for %s: %w", tool.Name, err)
	}
	return schemaBytes, nil
}

// CachedTools returns the last successful ListTools result without
// making a request. Routing lookups use this so they never block on
// subprocess I/O.
func (c *Client) CachedTools() []ToolDefinition {
	c.mu.Lock()
	defer c.mu.Unlock()

	tools := make([]ToolDefinition, len(c.cached))
	copy(tools, c.cached)
	return tools
}

// CallTool invokes a tool on the provider process. Every failure mode
// (not connected, timeout, crash, malformed response) comes back as an
// IsError response with a textual diagnostic; callers never need to
// handle a Go error to get a usable result.
func (c *Client) CallTool(ctx context.Context, req ToolCallRequest) *ToolCallResponse {
	c.mu.Lock()
	mcpClient := c.client
	connected := c.connected
	c.mu.Unlock()

	if !connected || mcpClient == nil {
		return ErrorResult(fmt.Sprintf("server %s is not connected", c.serverID))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	mcpReq := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      req.Name,
			Arguments: req.Arguments,
		},
	}

	c.reqMu.Lock()
	result, err := mcpClient.CallTool(ctx, mcpReq)
	c.reqMu.Unlock()
	if err != nil {
		// A late response for this request id, if it ever arrives, is
		// dropped by the transport because the context is done.
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrorResult(fmt.Sprintf("tool %s timed out after %s", req.Name, c.timeout))
		}
		if errors.Is(err, context.Canceled) {
			return ErrorResult(fmt.Sprintf("tool %s call canceled", req.Name))
		}
		return ErrorResult(fmt.Sprintf("tool %s call failed: %v", req.Name, err))
	}

	response := &ToolCallResponse{
		IsError: result.IsError,
		Content: make([]ContentItem, len(result.Content)),
	}

	for i, content := range result.Content {
		response.Content[i] = convertContent(content)
	}

	return response
}

// convertContent maps an MCP content value to a ContentItem.
func convertContent(content mcp.Content) ContentItem {
	if textContent, ok := mcp.AsTextContent(content); ok {
		return ContentItem{Type: textContent.Type, Text: textContent.Text}
	}
	if imageContent, ok := mcp.AsImageContent(content); ok {
		return ContentItem{
			Type:     imageContent.Type,
			Data:     imageContent.Data,
			MimeType: imageContent.MIMEType,
		}
	}

	// Fallback: marshal to JSON to extract fields
	item := ContentItem{}
	contentBytes, err := json.Marshal(content)
	if err != nil {
		return item
	}
	var contentMap map[string]interface{}
	if err := json.Unmarshal(contentBytes, &contentMap); err != nil {
		return item
	}
	if contentType, ok := contentMap["type"].(string); ok {
		item.Type = contentType
	}
	if text, ok := contentMap["text"].(string); ok {
		item.Text = text
	}
	if data, ok := contentMap["data"].(string); ok {
		item.Data = data
	}
	if mimeType, ok := contentMap["mimeType"].(string); ok {
		item.MimeType = mimeType
	}
	return item
}

// Ping checks if the provider process is still responsive.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	mcpClient := c.client
	connected := c.connected
	c.mu.Unlock()

	if !connected || mcpClient == nil {
		return ErrNotConnected(c.serverID)
	}

	return mcpClient.Ping(ctx)
}

// Close terminates the provider subprocess and releases all handles.
// The transport close asks the process to exit by closing its stdin;
// if it survives the grace period it is killed. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	mcpClient := c.client
	proc := c.process
	pid := c.pid
	c.client = nil
	c.connected = false
	c.cached = nil
	c.mu.Unlock()

	if mcpClient == nil {
		return nil
	}

	if err := mcpClient.Close(); err != nil {
		c.logger.Warn("error closing provider transport",
			"server", c.serverID,
			"error", err,
		)
	}

	if proc != nil {
		if err := terminateProcess(proc, pid, shutdownGrace); err != nil {
			c.logger.Warn("provider process did not terminate cleanly",
				"server", c.serverID,
				"pid", pid,
				"error", err,
			)
		}
	}

	return nil
}

// IsConnected reports whether the client holds a live session.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// PID returns the subprocess PID, or 0 if unknown.
func (c *Client) PID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pid
}

// ServerID returns the owning server config's identifier.
func (c *Client) ServerID() string {
	return c.serverID
}

// ServerName returns the owning server config's display name.
func (c *Client) ServerName() string {
	return c.serverName
}
