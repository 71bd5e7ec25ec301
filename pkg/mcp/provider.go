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

package mcp

import "context"

// ClientProvider defines the interface for interacting with a provider
// client. This interface enables dependency injection and testing with
// mock implementations.
type ClientProvider interface {
	// ListTools retrieves the tool catalog from the provider process
	// and refreshes the cache.
	ListTools(ctx context.Context) ([]ToolDefinition, error)

	// CachedTools returns the last catalog without making a request.
	CachedTools() []ToolDefinition

	// CallTool invokes a tool; failures come back as error results,
	// never as a Go error.
	CallTool(ctx context.Context, req ToolCallRequest) *ToolCallResponse

	// Ping checks if the provider process is still responsive.
	Ping(ctx context.Context) error

	// Close terminates the provider subprocess. Idempotent.
	Close() error

	// IsConnected reports whether the client holds a live session.
	IsConnected() bool

	// PID returns the subprocess PID, or 0 if unknown.
	PID() int

	// ServerID returns the owning server config's identifier.
	ServerID() string
}

// Compile-time check that Client satisfies ClientProvider.
var _ ClientProvider = (*Client)(nil)
