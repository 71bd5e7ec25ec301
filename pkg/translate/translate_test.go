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
	"strings"
	"testing"

	"github.com/tombee/toolgate/pkg/mcp"
)

var sampleTools = []mcp.ToolDefinition{
	{
		Name:        "read_file",
		Description: "Read a file from disk",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
	},
	{
		Name:        "list_dir",
		Description: "List a directory",
	},
}

func TestParseVendor(t *testing.T) {
	tests := []struct {
		input   string
		want    Vendor
		wantErr bool
	}{
		{"anthropic", VendorAnthropic, false},
		{"openai", VendorOpenAI, false},
		{"gemini", VendorGemini, false},
		{"", "", true},
		{"mistral", "", true},
		{"Anthropic", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseVendor(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseVendor(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseVendor(%q) returned %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseVendor(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTranslateTools_Anthropic(t *testing.T) {
	out, err := TranslateTools(sampleTools, VendorAnthropic)
	if err != nil {
		t.Fatalf("TranslateTools() returned %v", err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(entries))
	}

	for _, key := range []string{"name", "description", "input_schema"} {
		if _, ok := entries[0][key]; !ok {
			t.Errorf("anthropic tool entry missing %q field: %s", key, data)
		}
	}
	if string(entries[0]["input_schema"]) != string(sampleTools[0].InputSchema) {
		t.Errorf("input_schema not passed through: %s", entries[0]["input_schema"])
	}
	// Missing schema becomes the minimal object schema, never null.
	if string(entries[1]["input_schema"]) != `{"type":"object"}` {
		t.Errorf("empty schema = %s, want minimal object schema", entries[1]["input_schema"])
	}
}

func TestTranslateTools_OpenAI(t *testing.T) {
	out, err := TranslateTools(sampleTools, VendorOpenAI)
	if err != nil {
		t.Fatalf("TranslateTools() returned %v", err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var entries []struct {
		Type     string `json:"type"`
		Function struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			Parameters  json.RawMessage `json:"parameters"`
		} `json:"function"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(entries))
	}
	if entries[0].Type != "function" {
		t.Errorf("type = %q, want function", entries[0].Type)
	}
	if entries[0].Function.Name != "read_file" {
		t.Errorf("function.name = %q", entries[0].Function.Name)
	}
	if string(entries[0].Function.Parameters) != string(sampleTools[0].InputSchema) {
		t.Errorf("parameters not passed through: %s", entries[0].Function.Parameters)
	}
}

func TestTranslateTools_Gemini(t *testing.T) {
	out, err := TranslateTools(sampleTools, VendorGemini)
	if err != nil {
		t.Fatalf("TranslateTools() returned %v", err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var wrapper struct {
		FunctionDeclarations []struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			Parameters  json.RawMessage `json:"parameters"`
		} `json:"functionDeclarations"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(wrapper.FunctionDeclarations) != 2 {
		t.Fatalf("expected 2 declarations, got %d: %s", len(wrapper.FunctionDeclarations), data)
	}
	if wrapper.FunctionDeclarations[0].Name != "read_file" {
		t.Errorf("declaration name = %q", wrapper.FunctionDeclarations[0].Name)
	}
	if !strings.Contains(string(data), `"functionDeclarations"`) {
		t.Errorf("gemini output missing functionDeclarations wrapper: %s", data)
	}
}

func TestTranslateTools_UnknownVendor(t *testing.T) {
	if _, err := TranslateTools(sampleTools, Vendor("cohere")); err == nil {
		t.Error("TranslateTools() expected error for unknown vendor")
	}
}

func TestParseToolCall_Anthropic(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "tool_use",
		"id": "toolu_01A",
		"name": "read_file",
		"input": {"path": "/tmp/x"}
	}`)

	call, err := ParseToolCall(raw, VendorAnthropic)
	if err != nil {
		t.Fatalf("ParseToolCall() returned %v", err)
	}
	if call.ID != "toolu_01A" {
		t.Errorf("ID = %q, want toolu_01A", call.ID)
	}
	if call.Name != "read_file" {
		t.Errorf("Name = %q, want read_file", call.Name)
	}
	if call.Arguments["path"] != "/tmp/x" {
		t.Errorf("Arguments = %v", call.Arguments)
	}
}

func TestParseToolCall_AnthropicWrongType(t *testing.T) {
	raw := json.RawMessage(`{"type":"text","text":"hi"}`)
	if _, err := ParseToolCall(raw, VendorAnthropic); err == nil {
		t.Error("ParseToolCall() expected error for non tool_use block")
	}
}

func TestParseToolCall_OpenAI(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "call_abc123",
		"type": "function",
		"function": {"name": "read_file", "arguments": "{\"path\": \"/tmp/x\"}"}
	}`)

	call, err := ParseToolCall(raw, VendorOpenAI)
	if err != nil {
		t.Fatalf("ParseToolCall() returned %v", err)
	}
	if call.ID != "call_abc123" {
		t.Errorf("ID = %q", call.ID)
	}
	if call.Name != "read_file" {
		t.Errorf("Name = %q", call.Name)
	}
	if call.Arguments["path"] != "/tmp/x" {
		t.Errorf("Arguments = %v", call.Arguments)
	}
}

func TestParseToolCall_OpenAIEmptyArguments(t *testing.T) {
	raw := json.RawMessage(`{"id":"call_1","function":{"name":"list_dir","arguments":""}}`)

	call, err := ParseToolCall(raw, VendorOpenAI)
	if err != nil {
		t.Fatalf("ParseToolCall() returned %v", err)
	}
	if call.Arguments == nil || len(call.Arguments) != 0 {
		t.Errorf("Arguments = %v, want empty map", call.Arguments)
	}
}

func TestParseToolCall_OpenAIBadArguments(t *testing.T) {
	raw := json.RawMessage(`{"id":"call_1","function":{"name":"x","arguments":"{not json"}}`)
	if _, err := ParseToolCall(raw, VendorOpenAI); err == nil {
		t.Error("ParseToolCall() expected error for malformed arguments string")
	}
}

func TestParseToolCall_Gemini(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"bare", `{"name":"read_file","args":{"path":"/tmp/x"}}`},
		{"wrapped", `{"functionCall":{"name":"read_file","args":{"path":"/tmp/x"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := ParseToolCall(json.RawMessage(tt.raw), VendorGemini)
			if err != nil {
				t.Fatalf("ParseToolCall() returned %v", err)
			}
			if call.Name != "read_file" {
				t.Errorf("Name = %q", call.Name)
			}
			if call.Arguments["path"] != "/tmp/x" {
				t.Errorf("Arguments = %v", call.Arguments)
			}
			if call.ID == "" {
				t.Error("ID should be generated for gemini calls")
			}
		})
	}
}

func TestParseToolCall_GeminiIDsUnique(t *testing.T) {
	raw := json.RawMessage(`{"name":"read_file","args":{}}`)
	a, err := ParseToolCall(raw, VendorGemini)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ParseToolCall(raw, VendorGemini)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == b.ID {
		t.Errorf("generated IDs should be unique, got %q twice", a.ID)
	}
}

func TestFormatToolResult_Anthropic(t *testing.T) {
	call := ToolCall{ID: "toolu_01A", Name: "read_file"}
	resp := &mcp.ToolCallResponse{
		Content: []mcp.ContentItem{
			{Type: "text", Text: "file contents"},
			{Type: "image", Data: "aGk=", MimeType: "image/png"},
		},
	}

	out, err := FormatToolResult(call, resp, VendorAnthropic)
	if err != nil {
		t.Fatalf("FormatToolResult() returned %v", err)
	}

	data, _ := json.Marshal(out)
	var block map[string]json.RawMessage
	if err := json.Unmarshal(data, &block); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if string(block["type"]) != `"tool_result"` {
		t.Errorf("type = %s, want tool_result", block["type"])
	}
	if string(block["tool_use_id"]) != `"toolu_01A"` {
		t.Errorf("tool_use_id = %s", block["tool_use_id"])
	}
	if strings.Contains(string(data), `"is_error":true`) {
		t.Errorf("is_error should be omitted for success: %s", data)
	}
	if !strings.Contains(string(data), `"media_type":"image/png"`) {
		t.Errorf("image source missing: %s", data)
	}
}

func TestFormatToolResult_AnthropicError(t *testing.T) {
	call := ToolCall{ID: "toolu_02B", Name: "read_file"}
	resp := mcp.ErrorResult("file not found")

	out, err := FormatToolResult(call, resp, VendorAnthropic)
	if err != nil {
		t.Fatalf("FormatToolResult() returned %v", err)
	}

	data, _ := json.Marshal(out)
	if !strings.Contains(string(data), `"is_error":true`) {
		t.Errorf("is_error missing from error result: %s", data)
	}
}

func TestFormatToolResult_OpenAI(t *testing.T) {
	call := ToolCall{ID: "call_abc123", Name: "read_file"}
	resp := &mcp.ToolCallResponse{
		Content: []mcp.ContentItem{
			{Type: "text", Text: "line one"},
			{Type: "text", Text: "line two"},
		},
	}

	out, err := FormatToolResult(call, resp, VendorOpenAI)
	if err != nil {
		t.Fatalf("FormatToolResult() returned %v", err)
	}

	msg, ok := out.(OpenAIToolMessage)
	if !ok {
		t.Fatalf("FormatToolResult() = %T, want OpenAIToolMessage", out)
	}
	if msg.Role != "tool" {
		t.Errorf("Role = %q, want tool", msg.Role)
	}
	if msg.ToolCallID != "call_abc123" {
		t.Errorf("ToolCallID = %q", msg.ToolCallID)
	}
	if msg.Content != "line one\nline two" {
		t.Errorf("Content = %q, want text blocks joined with newline", msg.Content)
	}
}

func TestFormatToolResult_Gemini(t *testing.T) {
	call := ToolCall{ID: "gen-1", Name: "read_file"}
	resp := &mcp.ToolCallResponse{
		Content: []mcp.ContentItem{{Type: "text", Text: "file contents"}},
	}

	out, err := FormatToolResult(call, resp, VendorGemini)
	if err != nil {
		t.Fatalf("FormatToolResult() returned %v", err)
	}

	fr, ok := out.(GeminiFunctionResponse)
	if !ok {
		t.Fatalf("FormatToolResult() = %T, want GeminiFunctionResponse", out)
	}
	if fr.Name != "read_file" {
		t.Errorf("Name = %q", fr.Name)
	}
	content, ok := fr.Response["content"].([]map[string]interface{})
	if !ok {
		t.Fatalf("Response content = %T, want structured content", fr.Response["content"])
	}
	if len(content) != 1 || content[0]["text"] != "file contents" {
		t.Errorf("Response content = %v", content)
	}
	if _, present := fr.Response["isError"]; present {
		t.Error("isError should be absent for success responses")
	}
}

func TestFormatToolResult_UnknownVendor(t *testing.T) {
	if _, err := FormatToolResult(ToolCall{}, &mcp.ToolCallResponse{}, Vendor("cohere")); err == nil {
		t.Error("FormatToolResult() expected error for unknown vendor")
	}
}
