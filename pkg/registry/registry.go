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

// Package registry supervises tool-provider servers: it owns their
// lifecycle, aggregates their tool catalogs, and routes tool calls to
// the server that exposes each tool.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/toolgate/internal/log"
	"github.com/tombee/toolgate/pkg/errors"
	"github.com/tombee/toolgate/pkg/mcp"
)

// DialFunc connects a provider client for a server config. Injectable
// for tests; defaults to mcp.Dial.
type DialFunc func(ctx context.Context, cfg mcp.ClientConfig) (mcp.ClientProvider, error)

func defaultDial(ctx context.Context, cfg mcp.ClientConfig) (mcp.ClientProvider, error) {
	return mcp.Dial(ctx, cfg)
}

// Config configures a Registry.
type Config struct {
	// Logger is used for structured logging (optional).
	Logger *slog.Logger

	// Dial connects provider clients; defaults to mcp.Dial.
	Dial DialFunc

	// Metrics registers the registry's collectors; nil leaves them
	// unregistered.
	Metrics prometheus.Registerer

	// OnEvent receives lifecycle events (optional).
	OnEvent func(ServerEvent)
}

// serverEntry holds everything the registry knows about one server.
// Its own mutex serializes lifecycle operations for that id so that
// operations on different ids never block each other.
type serverEntry struct {
	mu     sync.Mutex
	config ServerConfig
	status ServerStatus
	client mcp.ClientProvider

	// removed marks a tombstoned entry. Lifecycle operations that
	// raced with RemoveConfig see it and fail instead of resurrecting
	// the server.
	removed bool
}

// Registry supervises a set of configured tool-provider servers.
type Registry struct {
	logger  *slog.Logger
	dial    DialFunc
	emitter *EventEmitter
	metrics *metrics
	tracer  trace.Tracer

	// mu guards the maps and the order slices; per-entry state is
	// guarded by each entry's own mutex.
	mu      sync.RWMutex
	entries map[string]*serverEntry

	// configOrder is insertion order, preserved by ExportConfigs.
	configOrder []string

	// startOrder records the order servers first entered running.
	// Tool-name routing walks it so duplicate names resolve
	// deterministically to the first-started server.
	startOrder []string

	// toolNames mirrors each running server's cached tool names for
	// shadowing detection without touching per-entry locks.
	toolNames map[string][]string
}

// New creates a Registry. Every call returns an independent instance.
func New(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.FromEnv())
	}
	dial := cfg.Dial
	if dial == nil {
		dial = defaultDial
	}
	return &Registry{
		logger:    logger,
		dial:      dial,
		emitter:   NewEventEmitter(logger, cfg.OnEvent),
		metrics:   newMetrics(cfg.Metrics),
		tracer:    otel.Tracer("toolgate"),
		entries:   make(map[string]*serverEntry),
		toolNames: make(map[string][]string),
	}
}

// entry looks up a server entry.
func (r *Registry) entry(id string) (*serverEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// AddConfig registers a new server configuration in the stopped state.
func (r *Registry) AddConfig(cfg ServerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[cfg.ID]; exists {
		return &errors.ConfigError{Key: cfg.ID, Reason: "server already exists"}
	}

	r.entries[cfg.ID] = &serverEntry{
		config: cfg,
		status: ServerStatus{ID: cfg.ID, Name: cfg.Name, State: StateStopped},
	}
	r.configOrder = append(r.configOrder, cfg.ID)
	return nil
}

// RemoveConfig stops the server if running and forgets its config.
func (r *Registry) RemoveConfig(id string) error {
	e, ok := r.entry(id)
	if !ok {
		return &errors.NotFoundError{Resource: "server", ID: id}
	}

	// Hold e.mu across the stop and the map cleanup so a concurrent
	// StartServer cannot slip in between and leave a live client on a
	// forgotten entry.
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return &errors.NotFoundError{Resource: "server", ID: id}
	}
	r.stopLocked(e)
	e.removed = true

	r.mu.Lock()
	delete(r.entries, id)
	delete(r.toolNames, id)
	r.configOrder = removeID(r.configOrder, id)
	r.startOrder = removeID(r.startOrder, id)
	r.mu.Unlock()
	return nil
}

// UpdateConfig replaces a server's configuration. A running server is
// stopped first and restarted only if it was running and the new
// config is still enabled, so an edit never silently leaves a server
// stopped.
func (r *Registry) UpdateConfig(ctx context.Context, cfg ServerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	e, ok := r.entry(cfg.ID)
	if !ok {
		return &errors.NotFoundError{Resource: "server", ID: cfg.ID}
	}

	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return &errors.NotFoundError{Resource: "server", ID: cfg.ID}
	}
	wasRunning := e.status.State == StateRunning
	if wasRunning {
		r.stopLocked(e)
	}
	e.config = cfg
	e.status.Name = cfg.Name
	e.mu.Unlock()

	if wasRunning && cfg.Enabled {
		_, err := r.StartServer(ctx, cfg.ID)
		return err
	}
	return nil
}

// GetConfig returns a server's configuration.
func (r *Registry) GetConfig(id string) (ServerConfig, error) {
	e, ok := r.entry(id)
	if !ok {
		return ServerConfig{}, &errors.NotFoundError{Resource: "server", ID: id}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config, nil
}

// Configs returns all configurations in insertion order.
func (r *Registry) Configs() []ServerConfig {
	r.mu.RLock()
	order := make([]string, len(r.configOrder))
	copy(order, r.configOrder)
	entries := make([]*serverEntry, 0, len(order))
	for _, id := range order {
		entries = append(entries, r.entries[id])
	}
	r.mu.RUnlock()

	out := make([]ServerConfig, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.config)
		e.mu.Unlock()
	}
	return out
}

// StartServer starts a server: dial the subprocess, list its tools,
// and mark it running with the tool cache attached. Already running is
// a no-op returning the current status. On any failure the server ends
// in the error state with no partial client retained.
func (r *Registry) StartServer(ctx context.Context, id string) (ServerStatus, error) {
	ctx, span := r.tracer.Start(ctx, "registry.StartServer",
		trace.WithAttributes(attribute.String("server.id", id)))
	defer span.End()

	e, ok := r.entry(id)
	if !ok {
		return ServerStatus{}, &errors.NotFoundError{Resource: "server", ID: id}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return ServerStatus{}, &errors.NotFoundError{Resource: "server", ID: id}
	}
	if e.status.State == StateRunning {
		return e.status.clone(), nil
	}
	if !e.config.Enabled {
		return ServerStatus{}, &errors.ConfigError{Key: id, Reason: "server is disabled"}
	}

	cfg := e.config
	e.status.State = StateStarting
	e.status.Error = ""

	log.WithServer(r.logger, id).Info("starting server",
		"command", cfg.Command,
		"env", RedactEnv(cfg.Env),
	)

	client, err := r.dial(ctx, mcp.ClientConfig{
		ServerID:   cfg.ID,
		ServerName: cfg.Name,
		Command:    cfg.Command,
		Args:       cfg.Args,
		Env:        cfg.Env,
		Timeout:    cfg.CallTimeout(),
		Logger:     r.logger,
	})
	if err != nil {
		return ServerStatus{}, r.failLocked(e, err)
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		_ = client.Close()
		return ServerStatus{}, r.failLocked(e, err)
	}

	now := time.Now()
	e.client = client
	e.status.State = StateRunning
	e.status.PID = client.PID()
	e.status.Tools = tools
	e.status.LastStarted = &now
	e.status.Error = ""

	r.recordStarted(id, tools)
	r.metrics.runningServers.Inc()
	r.emitter.EmitStarted(id, e.status.PID, len(tools))

	return e.status.clone(), nil
}

// failLocked moves an entry to the error state. Caller holds e.mu.
func (r *Registry) failLocked(e *serverEntry, err error) error {
	now := time.Now()
	e.client = nil
	e.status.State = StateError
	e.status.PID = 0
	e.status.Error = err.Error()
	e.status.LastError = &now

	r.metrics.startFailures.WithLabelValues(e.config.ID).Inc()
	r.emitter.EmitFailed(e.config.ID, err)
	return errors.Wrapf(err, "failed to start server %s", e.config.ID)
}

// recordStarted appends to the routing order and warns about tool
// names shadowed by earlier-started servers.
func (r *Registry) recordStarted(id string, tools []mcp.ToolDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owners := make(map[string]string)
	for _, earlierID := range r.startOrder {
		if earlierID == id {
			continue
		}
		for _, name := range r.toolNames[earlierID] {
			if _, seen := owners[name]; !seen {
				owners[name] = earlierID
			}
		}
	}

	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
		if owner, ok := owners[tool.Name]; ok {
			r.logger.Warn("tool name shadowed by earlier-started server",
				log.ToolKey, tool.Name,
				log.ServerKey, id,
				"routed_to", owner,
			)
		}
	}
	r.toolNames[id] = names

	for _, existing := range r.startOrder {
		if existing == id {
			return
		}
	}
	r.startOrder = append(r.startOrder, id)
}

// StopServer disconnects a server and invalidates its tool cache.
// Synchronous; a server that is not running is a no-op.
func (r *Registry) StopServer(id string) error {
	e, ok := r.entry(id)
	if !ok {
		return &errors.NotFoundError{Resource: "server", ID: id}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	r.stopLocked(e)
	return nil
}

// stopLocked tears down a running entry. Caller holds e.mu.
func (r *Registry) stopLocked(e *serverEntry) {
	if e.status.State != StateRunning {
		if e.status.State == StateStarting {
			e.status.State = StateStopped
		}
		return
	}

	if e.client != nil {
		if err := e.client.Close(); err != nil {
			r.logger.Warn("error closing provider client",
				"server", e.config.ID,
				"error", err,
			)
		}
	}
	e.client = nil
	e.status.State = StateStopped
	e.status.PID = 0
	e.status.Tools = nil

	r.metrics.runningServers.Dec()
	r.emitter.EmitStopped(e.config.ID)

	r.mu.Lock()
	r.startOrder = removeID(r.startOrder, e.config.ID)
	delete(r.toolNames, e.config.ID)
	r.mu.Unlock()
}

// IsServerRunning reports whether a server is in the running state.
func (r *Registry) IsServerRunning(id string) bool {
	e, ok := r.entry(id)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status.State == StateRunning
}

// RunningCount returns how many servers are running.
func (r *Registry) RunningCount() int {
	r.mu.RLock()
	entries := make([]*serverEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	count := 0
	for _, e := range entries {
		e.mu.Lock()
		if e.status.State == StateRunning {
			count++
		}
		e.mu.Unlock()
	}
	return count
}

// GetStatus returns one server's status.
func (r *Registry) GetStatus(id string) (ServerStatus, error) {
	e, ok := r.entry(id)
	if !ok {
		return ServerStatus{}, &errors.NotFoundError{Resource: "server", ID: id}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status.clone(), nil
}

// Statuses returns the status of every known server in insertion order.
func (r *Registry) Statuses() []ServerStatus {
	r.mu.RLock()
	order := make([]string, len(r.configOrder))
	copy(order, r.configOrder)
	entries := make(map[string]*serverEntry, len(r.entries))
	for id, e := range r.entries {
		entries[id] = e
	}
	r.mu.RUnlock()

	out := make([]ServerStatus, 0, len(order))
	for _, id := range order {
		e, ok := entries[id]
		if !ok {
			continue
		}
		e.mu.Lock()
		out = append(out, e.status.clone())
		e.mu.Unlock()
	}
	return out
}

// LoadConfigs applies a full desired config set: new ids are added,
// existing ids updated with preserve-running semantics, absent ids
// stopped and removed.
func (r *Registry) LoadConfigs(ctx context.Context, configs []ServerConfig) error {
	for i := range configs {
		if err := configs[i].Validate(); err != nil {
			return errors.Wrapf(err, "server %q", configs[i].ID)
		}
	}

	desired := make(map[string]ServerConfig, len(configs))
	for _, cfg := range configs {
		desired[cfg.ID] = cfg
	}

	// Remove servers no longer present.
	for _, existing := range r.Configs() {
		if _, keep := desired[existing.ID]; !keep {
			if err := r.RemoveConfig(existing.ID); err != nil {
				return err
			}
		}
	}

	for _, cfg := range configs {
		if _, err := r.GetConfig(cfg.ID); err != nil {
			if err := r.AddConfig(cfg); err != nil {
				return err
			}
			continue
		}
		if err := r.UpdateConfig(ctx, cfg); err != nil {
			return err
		}
	}
	return nil
}

// ExportConfigs returns every configuration, losslessly, in insertion
// order. ExportConfigs(LoadConfigs(x)) == x.
func (r *Registry) ExportConfigs() []ServerConfig {
	return r.Configs()
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

// String implements fmt.Stringer for debugging.
func (r *Registry) String() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fmt.Sprintf("registry(%d servers, %d started)", len(r.entries), len(r.startOrder))
}
