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

	"github.com/google/uuid"

	"github.com/tombee/toolgate/pkg/mcp"
)

// GeminiToolList is the "tools" entry wrapping function declarations.
type GeminiToolList struct {
	FunctionDeclarations []GeminiFunctionDeclaration `json:"functionDeclarations"`
}

// GeminiFunctionDeclaration describes one callable function.
type GeminiFunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// geminiFunctionCall is the model's functionCall part. It carries no
// call identifier.
type geminiFunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// GeminiFunctionResponse is the functionResponse part sent back to the
// model. Response is a structured object, not flattened text.
type GeminiFunctionResponse struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

func geminiTools(tools []mcp.ToolDefinition) GeminiToolList {
	decls := make([]GeminiFunctionDeclaration, len(tools))
	for i, tool := range tools {
		decls[i] = GeminiFunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  normalizeSchema(tool.InputSchema),
		}
	}
	return GeminiToolList{FunctionDeclarations: decls}
}

// parseGeminiCall accepts either a bare functionCall object or a part
// wrapping one ({"functionCall": {...}}). The envelope has no call id,
// so one is generated for correlation.
func parseGeminiCall(raw json.RawMessage) (ToolCall, error) {
	var part struct {
		FunctionCall *geminiFunctionCall `json:"functionCall"`
	}
	if err := json.Unmarshal(raw, &part); err == nil && part.FunctionCall != nil {
		return geminiCallToToolCall(*part.FunctionCall)
	}

	var call geminiFunctionCall
	if err := json.Unmarshal(raw, &call); err != nil {
		return ToolCall{}, fmt.Errorf("malformed gemini functionCall: %w", err)
	}
	return geminiCallToToolCall(call)
}

func geminiCallToToolCall(call geminiFunctionCall) (ToolCall, error) {
	if call.Name == "" {
		return ToolCall{}, fmt.Errorf("gemini functionCall has no name")
	}
	args := call.Args
	if args == nil {
		args = map[string]interface{}{}
	}
	return ToolCall{
		ID:        uuid.NewString(),
		Name:      call.Name,
		Arguments: args,
	}, nil
}

func formatGeminiResult(call ToolCall, resp *mcp.ToolCallResponse) GeminiFunctionResponse {
	content := make([]map[string]interface{}, 0, len(resp.Content))
	for _, item := range resp.Content {
		entry := map[string]interface{}{"type": item.Type}
		if item.Text != "" {
			entry["text"] = item.Text
		}
		if item.Data != "" {
			entry["data"] = item.Data
			entry["mimeType"] = item.MimeType
		}
		content = append(content, entry)
	}

	response := map[string]interface{}{"content": content}
	if resp.IsError {
		response["isError"] = true
	}
	return GeminiFunctionResponse{
		Name:     call.Name,
		Response: response,
	}
}
