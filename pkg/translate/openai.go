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
	"strings"

	"github.com/tombee/toolgate/pkg/mcp"
)

// OpenAITool is one entry in the Chat Completions "tools" array.
type OpenAITool struct {
	Type     string         `json:"type"`
	Function OpenAIFunction `json:"function"`
}

// OpenAIFunction is the function declaration inside an OpenAITool.
type OpenAIFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// openaiToolCall is one entry of the assistant message's "tool_calls"
// array. Arguments arrive as a JSON-encoded string, not an object.
type openaiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// OpenAIToolMessage is the role:"tool" result message.
type OpenAIToolMessage struct {
	Role       string `json:"role"`
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

func openaiTools(tools []mcp.ToolDefinition) []OpenAITool {
	out := make([]OpenAITool, len(tools))
	for i, tool := range tools {
		out[i] = OpenAITool{
			Type: "function",
			Function: OpenAIFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  normalizeSchema(tool.InputSchema),
			},
		}
	}
	return out
}

func parseOpenAICall(raw json.RawMessage) (ToolCall, error) {
	var call openaiToolCall
	if err := json.Unmarshal(raw, &call); err != nil {
		return ToolCall{}, fmt.Errorf("malformed openai tool call: %w", err)
	}
	if call.Type != "" && call.Type != "function" {
		return ToolCall{}, fmt.Errorf("expected function tool call, got %q", call.Type)
	}
	if call.Function.Name == "" {
		return ToolCall{}, fmt.Errorf("openai tool call has no function name")
	}

	args := map[string]interface{}{}
	if s := strings.TrimSpace(call.Function.Arguments); s != "" {
		if err := json.Unmarshal([]byte(s), &args); err != nil {
			return ToolCall{}, fmt.Errorf("malformed openai function arguments: %w", err)
		}
	}
	return ToolCall{ID: call.ID, Name: call.Function.Name, Arguments: args}, nil
}

// formatOpenAIResult flattens the response to a single string: text
// blocks joined by newlines. Non-text content is summarized since the
// tool message content field is plain text.
func formatOpenAIResult(call ToolCall, resp *mcp.ToolCallResponse) OpenAIToolMessage {
	parts := make([]string, 0, len(resp.Content))
	for _, item := range resp.Content {
		switch item.Type {
		case "image":
			parts = append(parts, fmt.Sprintf("[image %s]", item.MimeType))
		default:
			parts = append(parts, item.Text)
		}
	}
	return OpenAIToolMessage{
		Role:       "tool",
		ToolCallID: call.ID,
		Content:    strings.Join(parts, "\n"),
	}
}
