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

package registry

import (
	"time"

	"github.com/tombee/toolgate/pkg/mcp"
)

// ServerState is the lifecycle state of one server.
type ServerState string

const (
	// StateStopped means no subprocess exists.
	StateStopped ServerState = "stopped"
	// StateStarting means the spawn and handshake are in progress.
	StateStarting ServerState = "starting"
	// StateRunning means the server is connected with a tool cache.
	StateRunning ServerState = "running"
	// StateError means the last start or session failed.
	StateError ServerState = "error"
)

// ServerStatus is the observable state of one configured server.
type ServerStatus struct {
	// ID is the server's stable identifier.
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// State is the current lifecycle state.
	State ServerState `json:"state"`

	// PID is the subprocess PID when running, 0 otherwise.
	PID int `json:"pid,omitempty"`

	// Tools is the cached tool catalog from the last successful listing.
	Tools []mcp.ToolDefinition `json:"tools,omitempty"`

	// LastStarted is when the server last entered running.
	LastStarted *time.Time `json:"last_started,omitempty"`

	// LastError is when the server last entered error.
	LastError *time.Time `json:"last_error,omitempty"`

	// Error is the message attached to the error state.
	Error string `json:"error,omitempty"`
}

// UnifiedTool is a tool definition tagged with its provenance.
type UnifiedTool struct {
	mcp.ToolDefinition

	// ServerID identifies the server that exposes the tool.
	ServerID string `json:"server_id"`

	// ServerName is the display name of that server.
	ServerName string `json:"server_name"`
}

// clone returns a deep-enough copy safe to hand to callers.
func (s *ServerStatus) clone() ServerStatus {
	out := *s
	if s.Tools != nil {
		out.Tools = make([]mcp.ToolDefinition, len(s.Tools))
		copy(out.Tools, s.Tools)
	}
	return out
}
