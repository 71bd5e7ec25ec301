// Package mcp implements the provider-client side of toolgate.
//
// Each Client owns exactly one external tool-provider subprocess and
// speaks the Model Context Protocol with it over stdio: initialize
// handshake, tool listing, tool invocation, and termination. Lifecycle
// coordination across many clients lives in pkg/registry.
package mcp

import (
	"encoding/json"
)

// ToolDefinition represents a tool exposed by a provider process.
// Maps to the MCP protocol's Tool schema. Names are unique within a
// server but not guaranteed unique globally.
type ToolDefinition struct {
	// Name is the identifier for this tool
	Name string `json:"name"`

	// Description explains what the tool does
	Description string `json:"description"`

	// InputSchema defines the expected input parameters using JSON Schema
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolCallRequest represents a request to execute a tool.
type ToolCallRequest struct {
	// Name is the tool to execute
	Name string `json:"name"`

	// Arguments contains the input parameters for the tool
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolCallResponse represents the result of a tool execution.
//
// Invocation failures (timeout, crashed subprocess, malformed response)
// are reported through IsError with a textual diagnostic in Content,
// never as a Go error: a conversation driver treats every call result
// uniformly.
type ToolCallResponse struct {
	// Content contains the tool's output
	Content []ContentItem `json:"content"`

	// IsError indicates if the tool execution failed
	IsError bool `json:"isError,omitempty"`
}

// ContentItem represents a piece of content in a tool result.
type ContentItem struct {
	// Type is the content type (text, image, resource)
	Type string `json:"type"`

	// Text is the text content (for type="text")
	Text string `json:"text,omitempty"`

	// Data is the base64-encoded data (for type="image")
	Data string `json:"data,omitempty"`

	// MimeType is the MIME type for binary content
	MimeType string `json:"mimeType,omitempty"`
}

// TextResult builds a single-text-block response.
func TextResult(text string) *ToolCallResponse {
	return &ToolCallResponse{
		Content: []ContentItem{{Type: "text", Text: text}},
	}
}

// ErrorResult builds an IsError response carrying a textual diagnostic.
func ErrorResult(text string) *ToolCallResponse {
	return &ToolCallResponse{
		Content: []ContentItem{{Type: "text", Text: text}},
		IsError: true,
	}
}
