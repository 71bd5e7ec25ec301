// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package translate

import (
	"encoding/json"
	"fmt"

	"github.com/tombee/toolgate/pkg/mcp"
)

// AnthropicTool is one entry in the Messages API "tools" array.
type AnthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// anthropicToolUse is the assistant "tool_use" content block.
type anthropicToolUse struct {
	Type  string                 `json:"type"`
	ID    string                 `json:"id"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
}

// AnthropicToolResult is the user-role "tool_result" content block.
type AnthropicToolResult struct {
	Type      string                   `json:"type"`
	ToolUseID string                   `json:"tool_use_id"`
	Content   []AnthropicResultContent `json:"content"`
	IsError   bool                     `json:"is_error,omitempty"`
}

// AnthropicResultContent is one content block inside a tool_result.
type AnthropicResultContent struct {
	Type   string                 `json:"type"`
	Text   string                 `json:"text,omitempty"`
	Source map[string]interface{} `json:"source,omitempty"`
}

func anthropicTools(tools []mcp.ToolDefinition) []AnthropicTool {
	out := make([]AnthropicTool, len(tools))
	for i, tool := range tools {
		out[i] = AnthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: normalizeSchema(tool.InputSchema),
		}
	}
	return out
}

func parseAnthropicCall(raw json.RawMessage) (ToolCall, error) {
	var block anthropicToolUse
	if err := json.Unmarshal(raw, &block); err != nil {
		return ToolCall{}, fmt.Errorf("malformed anthropic tool_use block: %w", err)
	}
	if block.Type != "" && block.Type != "tool_use" {
		return ToolCall{}, fmt.Errorf("expected tool_use block, got %q", block.Type)
	}
	if block.Name == "" {
		return ToolCall{}, fmt.Errorf("anthropic tool_use block has no name")
	}
	args := block.Input
	if args == nil {
		args = map[string]interface{}{}
	}
	return ToolCall{ID: block.ID, Name: block.Name, Arguments: args}, nil
}

func formatAnthropicResult(call ToolCall, resp *mcp.ToolCallResponse) AnthropicToolResult {
	result := AnthropicToolResult{
		Type:      "tool_result",
		ToolUseID: call.ID,
		IsError:   resp.IsError,
		Content:   make([]AnthropicResultContent, 0, len(resp.Content)),
	}
	for _, item := range resp.Content {
		switch item.Type {
		case "image":
			result.Content = append(result.Content, AnthropicResultContent{
				Type: "image",
				Source: map[string]interface{}{
					"type":       "base64",
					"media_type": item.MimeType,
					"data":       item.Data,
				},
			})
		default:
			result.Content = append(result.Content, AnthropicResultContent{
				Type: "text",
				Text: item.Text,
			})
		}
	}
	return result
}
