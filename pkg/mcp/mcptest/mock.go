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

// Package mcptest provides mock provider clients for testing code that
// depends on the mcp package without spawning real subprocesses.
package mcptest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tombee/toolgate/pkg/mcp"
)

// MockClient implements mcp.ClientProvider for testing.
type MockClient struct {
	serverID  string
	pid       int
	tools     []mcp.ToolDefinition
	callFunc  func(ctx context.Context, req mcp.ToolCallRequest) *mcp.ToolCallResponse
	pingFunc  func(ctx context.Context) error
	closeFunc func() error
	listErr   error
	callDelay time.Duration
	connected bool
	done      chan struct{}
	mu        sync.RWMutex
}

// NewMockClient creates a new mock provider client in the connected state.
func NewMockClient(serverID string, tools []mcp.ToolDefinition) *MockClient {
	return &MockClient{
		serverID:  serverID,
		pid:       4242,
		tools:     tools,
		connected: true,
		done:      make(chan struct{}),
	}
}

// ListTools returns the configured list of tools.
func (c *MockClient) ListTools(ctx context.Context) ([]mcp.ToolDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return nil, mcp.ErrNotConnected(c.serverID)
	}
	if c.listErr != nil {
		return nil, c.listErr
	}

	// Make a copy to prevent mutation
	toolsCopy := make([]mcp.ToolDefinition, len(c.tools))
	copy(toolsCopy, c.tools)
	return toolsCopy, nil
}

// CachedTools returns the configured list of tools without any error path.
func (c *MockClient) CachedTools() []mcp.ToolDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	toolsCopy := make([]mcp.ToolDefinition, len(c.tools))
	copy(toolsCopy, c.tools)
	return toolsCopy
}

// CallTool executes a tool call using the configured handler.
func (c *MockClient) CallTool(ctx context.Context, req mcp.ToolCallRequest) *mcp.ToolCallResponse {
	c.mu.RLock()
	delay := c.callDelay
	callFunc := c.callFunc
	connected := c.connected
	done := c.done
	c.mu.RUnlock()

	if !connected {
		return mcp.ErrorResult(fmt.Sprintf("server %s is not connected", c.serverID))
	}

	// Simulate delay if configured. An in-flight call resolves to an
	// error result when the client is closed, like a real transport.
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return mcp.ErrorResult(fmt.Sprintf("tool %s timed out", req.Name))
			}
			return mcp.ErrorResult(fmt.Sprintf("tool %s call canceled", req.Name))
		case <-done:
			return mcp.ErrorResult(fmt.Sprintf("server %s is not connected", c.serverID))
		}
	}

	// Use custom handler if configured
	if callFunc != nil {
		return callFunc(ctx, req)
	}

	// Default behavior: echo back the request
	return mcp.TextResult(fmt.Sprintf("Mock response for %s", req.Name))
}

// Ping returns success unless a custom ping function is configured.
func (c *MockClient) Ping(ctx context.Context) error {
	c.mu.RLock()
	pingFunc := c.pingFunc
	connected := c.connected
	c.mu.RUnlock()

	if !connected {
		return mcp.ErrNotConnected(c.serverID)
	}
	if pingFunc != nil {
		return pingFunc(ctx)
	}
	return nil
}

// Close marks the mock disconnected and interrupts in-flight calls.
func (c *MockClient) Close() error {
	c.mu.Lock()
	if c.connected {
		c.connected = false
		close(c.done)
	}
	closeFunc := c.closeFunc
	c.mu.Unlock()

	if closeFunc != nil {
		return closeFunc()
	}
	return nil
}

// IsConnected reports whether Close has been called.
func (c *MockClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// PID returns the fake subprocess PID.
func (c *MockClient) PID() int {
	return c.pid
}

// ServerID returns the mock server identifier.
func (c *MockClient) ServerID() string {
	return c.serverID
}

// SetTools replaces the tool catalog the mock reports.
func (c *MockClient) SetTools(tools []mcp.ToolDefinition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools = tools
}

// SetListError makes ListTools fail with the given error.
func (c *MockClient) SetListError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listErr = err
}

// SetCallHandler sets a custom call handler for this client.
func (c *MockClient) SetCallHandler(f func(ctx context.Context, req mcp.ToolCallRequest) *mcp.ToolCallResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callFunc = f
}

// SetCallDelay sets a delay for all tool calls.
func (c *MockClient) SetCallDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callDelay = d
}

// SetPingFunc sets a custom ping function.
func (c *MockClient) SetPingFunc(f func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingFunc = f
}

// SetCloseFunc sets a custom close function.
func (c *MockClient) SetCloseFunc(f func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeFunc = f
}

// Compile-time check that MockClient satisfies mcp.ClientProvider.
var _ mcp.ClientProvider = (*MockClient)(nil)

// Dialer builds a mcp.ClientProvider factory for registry tests. Each
// server id can be pre-seeded with tools, a call handler, or a dial
// error; unknown ids get an empty default mock.
type Dialer struct {
	mu       sync.Mutex
	tools    map[string][]mcp.ToolDefinition
	handlers map[string]func(ctx context.Context, req mcp.ToolCallRequest) *mcp.ToolCallResponse
	dialErrs map[string]error
	delays   map[string]time.Duration
	clients  map[string]*MockClient
	dials    map[string]int
}

// NewDialer creates an empty mock dialer.
func NewDialer() *Dialer {
	return &Dialer{
		tools:    make(map[string][]mcp.ToolDefinition),
		handlers: make(map[string]func(ctx context.Context, req mcp.ToolCallRequest) *mcp.ToolCallResponse),
		dialErrs: make(map[string]error),
		delays:   make(map[string]time.Duration),
		clients:  make(map[string]*MockClient),
		dials:    make(map[string]int),
	}
}

// WithTools pre-seeds the catalog a server reports once dialed.
func (d *Dialer) WithTools(serverID string, tools ...mcp.ToolDefinition) *Dialer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tools[serverID] = tools
	return d
}

// WithCallHandler pre-seeds the call handler for a server.
func (d *Dialer) WithCallHandler(serverID string, f func(ctx context.Context, req mcp.ToolCallRequest) *mcp.ToolCallResponse) *Dialer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[serverID] = f
	return d
}

// WithDialError makes dialing a server fail. A nil err clears it.
func (d *Dialer) WithDialError(serverID string, err error) *Dialer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialErrs[serverID] = err
	return d
}

// WithCallDelay makes every call on a server take at least d.
func (d *Dialer) WithCallDelay(serverID string, delay time.Duration) *Dialer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delays[serverID] = delay
	return d
}

// Dial implements the registry's dial hook signature.
func (d *Dialer) Dial(ctx context.Context, cfg mcp.ClientConfig) (mcp.ClientProvider, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials[cfg.ServerID]++
	if err := d.dialErrs[cfg.ServerID]; err != nil {
		return nil, err
	}

	client := NewMockClient(cfg.ServerID, d.tools[cfg.ServerID])
	if f, ok := d.handlers[cfg.ServerID]; ok {
		client.SetCallHandler(f)
	}
	if delay, ok := d.delays[cfg.ServerID]; ok {
		client.SetCallDelay(delay)
	}
	d.clients[cfg.ServerID] = client
	return client, nil
}

// Client returns the most recently dialed mock for a server, or nil.
func (d *Dialer) Client(serverID string) *MockClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clients[serverID]
}

// DialCount returns how many times a server was dialed.
func (d *Dialer) DialCount(serverID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[serverID]
}
