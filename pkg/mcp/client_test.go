package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDial_Validation(t *testing.T) {
	tests := []struct {
		name      string
		config    ClientConfig
		wantError string
	}{
		{
			name: "missing server id",
			config: ClientConfig{
				Command: "echo",
			},
			wantError: "server id is required",
		},
		{
			name: "missing command",
			config: ClientConfig{
				ServerID: "test-server",
			},
			wantError: "command is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			_, err := Dial(ctx, tt.config)
			if err == nil {
				t.Fatalf("Dial() expected error containing %q, got nil", tt.wantError)
			}
			if !strings.Contains(err.Error(), tt.wantError) {
				t.Errorf("Dial() error = %v, want error containing %v", err, tt.wantError)
			}
		})
	}
}

func TestDial_SpawnFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Dial(ctx, ClientConfig{
		ServerID: "missing",
		Command:  "/nonexistent/tool-provider-binary",
	})
	if err == nil {
		t.Fatal("Dial() expected error for missing binary, got nil")
	}

	var mcpErr *Error
	if !errors.As(err, &mcpErr) {
		t.Fatalf("Dial() error = %T, want *Error", err)
	}
	if mcpErr.Code != ErrorCodeSpawnFailed && mcpErr.Code != ErrorCodeHandshakeFailed {
		t.Errorf("Dial() error code = %v, want spawn or handshake failure", mcpErr.Code)
	}
}

func TestClient_NotConnected(t *testing.T) {
	c := &Client{serverID: "down"}

	if c.IsConnected() {
		t.Error("IsConnected() should be false for a zero client")
	}

	if _, err := c.ListTools(context.Background()); !IsNotConnected(err) {
		t.Errorf("ListTools() error = %v, want not-connected", err)
	}

	resp := c.CallTool(context.Background(), ToolCallRequest{Name: "anything"})
	if resp == nil {
		t.Fatal("CallTool() returned nil response")
	}
	if !resp.IsError {
		t.Error("CallTool() on disconnected client should return an error result")
	}
	if len(resp.Content) == 0 || !strings.Contains(resp.Content[0].Text, "not connected") {
		t.Errorf("CallTool() error result = %+v, want not-connected diagnostic", resp)
	}
}

func TestClient_CloseIdempotent(t *testing.T) {
	c := &Client{serverID: "idle"}

	for i := 0; i < 3; i++ {
		if err := c.Close(); err != nil {
			t.Fatalf("Close() call %d returned %v", i+1, err)
		}
	}
	if c.IsConnected() {
		t.Error("IsConnected() should be false after Close()")
	}
}

func TestClient_CachedToolsCopy(t *testing.T) {
	c := &Client{
		cached: []ToolDefinition{
			{Name: "search", Description: "search the index"},
		},
	}

	tools := c.CachedTools()
	if len(tools) != 1 || tools[0].Name != "search" {
		t.Fatalf("CachedTools() = %+v, want the cached catalog", tools)
	}

	tools[0].Name = "mutated"
	if c.CachedTools()[0].Name != "search" {
		t.Error("CachedTools() should return a copy, not the internal slice")
	}
}

func TestTextResult(t *testing.T) {
	resp := TextResult("done")
	if resp.IsError {
		t.Error("TextResult() should not be an error result")
	}
	if len(resp.Content) != 1 || resp.Content[0].Type != "text" || resp.Content[0].Text != "done" {
		t.Errorf("TextResult() = %+v", resp)
	}
}

func TestErrorResult(t *testing.T) {
	resp := ErrorResult("boom")
	if !resp.IsError {
		t.Error("ErrorResult() should set IsError")
	}
	if len(resp.Content) != 1 || resp.Content[0].Text != "boom" {
		t.Errorf("ErrorResult() = %+v", resp)
	}
}
