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
	"log/slog"
	"time"
)

// EventType represents the type of server lifecycle event.
type EventType string

const (
	// EventStarted indicates a server has started.
	EventStarted EventType = "started"
	// EventStopped indicates a server has stopped.
	EventStopped EventType = "stopped"
	// EventFailed indicates a server failed to start or crashed.
	EventFailed EventType = "failed"
	// EventToolsChanged indicates the server's tool catalog changed.
	EventToolsChanged EventType = "tools_changed"
	// EventConfigReloaded indicates the config file was reloaded.
	EventConfigReloaded EventType = "config_reloaded"
)

// ServerEvent represents a lifecycle event for one server.
type ServerEvent struct {
	// Type is the event type.
	Type EventType `json:"type"`

	// ServerID is the identifier of the server.
	ServerID string `json:"server_id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Message is an optional human-readable message.
	Message string `json:"message,omitempty"`

	// Details contains additional event-specific information.
	Details map[string]any `json:"details,omitempty"`
}

// EventEmitter logs lifecycle events and fans them out to an optional
// subscriber.
type EventEmitter struct {
	logger     *slog.Logger
	subscriber func(ServerEvent)
}

// NewEventEmitter creates a new event emitter.
func NewEventEmitter(logger *slog.Logger, subscriber func(ServerEvent)) *EventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventEmitter{logger: logger, subscriber: subscriber}
}

// Emit logs an event and notifies the subscriber if one is set.
func (e *EventEmitter) Emit(event ServerEvent) {
	attrs := []any{
		"server", event.ServerID,
		"type", string(event.Type),
	}
	if event.Message != "" {
		attrs = append(attrs, "message", event.Message)
	}
	for k, v := range event.Details {
		attrs = append(attrs, k, v)
	}

	e.logger.Info("server event", attrs...)

	if e.subscriber != nil {
		e.subscriber(event)
	}
}

// EmitStarted emits a server started event.
func (e *EventEmitter) EmitStarted(serverID string, pid, toolCount int) {
	e.Emit(ServerEvent{
		Type:      EventStarted,
		ServerID:  serverID,
		Timestamp: time.Now(),
		Message:   "server started",
		Details: map[string]any{
			"pid":        pid,
			"tool_count": toolCount,
		},
	})
}

// EmitStopped emits a server stopped event.
func (e *EventEmitter) EmitStopped(serverID string) {
	e.Emit(ServerEvent{
		Type:      EventStopped,
		ServerID:  serverID,
		Timestamp: time.Now(),
		Message:   "server stopped",
	})
}

// EmitFailed emits a server failed event.
func (e *EventEmitter) EmitFailed(serverID string, err error) {
	e.Emit(ServerEvent{
		Type:      EventFailed,
		ServerID:  serverID,
		Timestamp: time.Now(),
		Message:   "server failed",
		Details: map[string]any{
			"error": err.Error(),
		},
	})
}

// EmitToolsChanged emits a tools changed event.
func (e *EventEmitter) EmitToolsChanged(serverID string, toolCount int) {
	e.Emit(ServerEvent{
		Type:      EventToolsChanged,
		ServerID:  serverID,
		Timestamp: time.Now(),
		Message:   "server tools changed",
		Details: map[string]any{
			"tool_count": toolCount,
		},
	})
}

// EmitConfigReloaded emits a config reloaded event.
func (e *EventEmitter) EmitConfigReloaded(path string, serverCount int) {
	e.Emit(ServerEvent{
		Type:      EventConfigReloaded,
		Timestamp: time.Now(),
		Message:   "configuration reloaded",
		Details: map[string]any{
			"path":         path,
			"server_count": serverCount,
		},
	})
}
