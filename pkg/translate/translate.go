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

	"github.com/tombee/toolgate/pkg/mcp"
)

// ToolCall is the vendor-neutral tool invocation envelope. ID carries
// the vendor's call identifier so the result can be correlated; for
// vendors without one (Gemini) an ID is generated at parse time.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// TranslateTools renders a tool catalog in the given vendor's wire
// format. Name, description, and input schema survive unchanged for
// every vendor.
func TranslateTools(tools []mcp.ToolDefinition, v Vendor) (interface{}, error) {
	switch v {
	case VendorAnthropic:
		return anthropicTools(tools), nil
	case VendorOpenAI:
		return openaiTools(tools), nil
	case VendorGemini:
		return geminiTools(tools), nil
	default:
		return nil, errUnknownVendor(v)
	}
}

// ParseToolCall extracts a normalized ToolCall from a vendor tool-call
// envelope.
func ParseToolCall(raw json.RawMessage, v Vendor) (ToolCall, error) {
	switch v {
	case VendorAnthropic:
		return parseAnthropicCall(raw)
	case VendorOpenAI:
		return parseOpenAICall(raw)
	case VendorGemini:
		return parseGeminiCall(raw)
	default:
		return ToolCall{}, errUnknownVendor(v)
	}
}

// FormatToolResult renders a tool-call response as the vendor's result
// envelope for the given call.
func FormatToolResult(call ToolCall, resp *mcp.ToolCallResponse, v Vendor) (interface{}, error) {
	switch v {
	case VendorAnthropic:
		return formatAnthropicResult(call, resp), nil
	case VendorOpenAI:
		return formatOpenAIResult(call, resp), nil
	case VendorGemini:
		return formatGeminiResult(call, resp), nil
	default:
		return nil, errUnknownVendor(v)
	}
}

// normalizeSchema passes a raw JSON Schema through unchanged; a
// missing schema becomes the minimal object schema rather than null.
func normalizeSchema(schema json.RawMessage) json.RawMessage {
	if len(schema) == 0 || string(schema) == "null" {
		return json.RawMessage(`{"type":"object"}`)
	}
	return schema
}
