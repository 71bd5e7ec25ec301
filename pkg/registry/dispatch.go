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
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tombee/toolgate/internal/log"
	"github.com/tombee/toolgate/pkg/mcp"
	"github.com/tombee/toolgate/pkg/translate"
)

// runningSnapshot returns the running servers in start order with
// their clients. Entry locks are taken one at a time.
func (r *Registry) runningSnapshot() []runningServer {
	r.mu.RLock()
	order := make([]string, len(r.startOrder))
	copy(order, r.startOrder)
	entries := make(map[string]*serverEntry, len(order))
	for _, id := range order {
		if e, ok := r.entries[id]; ok {
			entries[id] = e
		}
	}
	r.mu.RUnlock()

	out := make([]runningServer, 0, len(order))
	for _, id := range order {
		e, ok := entries[id]
		if !ok {
			continue
		}
		e.mu.Lock()
		if e.status.State == StateRunning && e.client != nil {
			out = append(out, runningServer{
				id:     id,
				name:   e.config.Name,
				entry:  e,
				client: e.client,
				// CachedTools reflects the latest listing, so routing
				// sees catalog changes made after startup.
				tools: e.client.CachedTools(),
			})
		}
		e.mu.Unlock()
	}
	return out
}

type runningServer struct {
	id     string
	name   string
	entry  *serverEntry
	client mcp.ClientProvider
	tools  []mcp.ToolDefinition
}

// AllTools aggregates live tool catalogs from every running server,
// concurrently, tagging each tool with its provenance. Servers that
// fail to answer are skipped and logged; one bad server never hides
// the others' tools.
func (r *Registry) AllTools(ctx context.Context) []UnifiedTool {
	servers := r.runningSnapshot()

	results := make([][]UnifiedTool, len(servers))
	listed := make([][]mcp.ToolDefinition, len(servers))
	g, ctx := errgroup.WithContext(ctx)
	for i, srv := range servers {
		g.Go(func() error {
			tools, err := srv.client.ListTools(ctx)
			if err != nil {
				r.logger.Warn("skipping server during tool aggregation",
					log.ServerKey, srv.id,
					log.Error(err),
				)
				return nil
			}
			listed[i] = tools
			unified := make([]UnifiedTool, len(tools))
			for j, tool := range tools {
				unified[j] = UnifiedTool{
					ToolDefinition: tool,
					ServerID:       srv.id,
					ServerName:     srv.name,
				}
			}
			results[i] = unified
			return nil
		})
	}
	_ = g.Wait()

	for i, srv := range servers {
		if listed[i] != nil {
			r.refreshCatalog(srv, listed[i])
		}
	}

	var out []UnifiedTool
	for _, tools := range results {
		out = append(out, tools...)
	}
	return out
}

// refreshCatalog folds a fresh listing back into a server's recorded
// status. When the set of tool names changed it also updates the
// routing mirror and announces the change.
func (r *Registry) refreshCatalog(srv runningServer, tools []mcp.ToolDefinition) {
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
	}

	e := srv.entry
	e.mu.Lock()
	if e.status.State != StateRunning || e.client != srv.client {
		// Server stopped or restarted while we were listing; the new
		// incarnation owns its own catalog.
		e.mu.Unlock()
		return
	}
	changed := !sameToolNames(e.status.Tools, names)
	e.status.Tools = tools
	e.mu.Unlock()

	if changed {
		r.mu.Lock()
		r.toolNames[srv.id] = names
		r.mu.Unlock()
		r.emitter.EmitToolsChanged(srv.id, len(tools))
	}
}

func sameToolNames(tools []mcp.ToolDefinition, names []string) bool {
	if len(tools) != len(names) {
		return false
	}
	for i, tool := range tools {
		if tool.Name != names[i] {
			return false
		}
	}
	return true
}

// ToolsForVendor aggregates all tools and renders them in the given
// vendor's wire format.
func (r *Registry) ToolsForVendor(ctx context.Context, vendor translate.Vendor) (interface{}, error) {
	unified := r.AllTools(ctx)
	tools := make([]mcp.ToolDefinition, len(unified))
	for i, u := range unified {
		tools[i] = u.ToolDefinition
	}
	return translate.TranslateTools(tools, vendor)
}

// FindToolServer resolves a tool name to the server that owns it,
// using cached catalogs only. Servers are checked in the order they
// were first started, so duplicate names resolve deterministically to
// the first-started owner.
func (r *Registry) FindToolServer(name string) (string, bool) {
	for _, srv := range r.runningSnapshot() {
		for _, tool := range srv.tools {
			if tool.Name == name {
				return srv.id, true
			}
		}
	}
	return "", false
}

// CallTool routes a tool call by name. An unroutable name yields an
// IsError result, not a Go error.
func (r *Registry) CallTool(ctx context.Context, req mcp.ToolCallRequest) *mcp.ToolCallResponse {
	id, ok := r.FindToolServer(req.Name)
	if !ok {
		return mcp.ErrorResult(fmt.Sprintf("no running server provides tool %q", req.Name))
	}
	return r.CallToolOnServer(ctx, id, req)
}

// CallToolOnServer dispatches a tool call to a specific server.
func (r *Registry) CallToolOnServer(ctx context.Context, id string, req mcp.ToolCallRequest) *mcp.ToolCallResponse {
	ctx, span := r.tracer.Start(ctx, "registry.CallTool",
		trace.WithAttributes(
			attribute.String("server.id", id),
			attribute.String("tool.name", req.Name),
		))
	defer span.End()

	e, ok := r.entry(id)
	if !ok {
		return mcp.ErrorResult(fmt.Sprintf("server %s not found", id))
	}

	e.mu.Lock()
	client := e.client
	running := e.status.State == StateRunning
	e.mu.Unlock()

	if !running || client == nil {
		return mcp.ErrorResult(fmt.Sprintf("server %s is not running", id))
	}

	start := time.Now()
	resp := client.CallTool(ctx, req)
	elapsed := time.Since(start)
	r.metrics.observeCall(id, resp.IsError, elapsed.Seconds())

	if resp.IsError {
		span.SetAttributes(attribute.Bool("tool.error", true))
	}
	r.logger.Debug("tool call completed",
		log.ServerKey, id,
		log.ToolKey, req.Name,
		log.DurationKey, elapsed.Milliseconds(),
		"is_error", resp.IsError,
	)
	return resp
}

// CallToolFromVendor accepts a vendor tool-call envelope, dispatches
// it, and renders the result in the same vendor's format. Dispatch
// failures surface inside the vendor result; only a malformed envelope
// or unknown vendor is a Go error.
func (r *Registry) CallToolFromVendor(ctx context.Context, raw json.RawMessage, vendor translate.Vendor) (interface{}, error) {
	call, err := translate.ParseToolCall(raw, vendor)
	if err != nil {
		return nil, err
	}

	log.WithCallID(r.logger, call.ID).Debug("dispatching vendor tool call",
		log.VendorKey, vendor.String(),
		log.ToolKey, call.Name,
	)

	resp := r.CallTool(ctx, mcp.ToolCallRequest{
		Name:      call.Name,
		Arguments: call.Arguments,
	})

	return translate.FormatToolResult(call, resp, vendor)
}

// StartAllEnabled starts every server with enabled && autoStart,
// concurrently. Individual failures are captured in the returned map
// keyed by server id; the batch never aborts.
func (r *Registry) StartAllEnabled(ctx context.Context) map[string]error {
	var candidates []string
	for _, cfg := range r.Configs() {
		if cfg.Enabled && cfg.AutoStart {
			candidates = append(candidates, cfg.ID)
		}
	}

	failures := make(map[string]error)
	var mu sync.Mutex

	var g errgroup.Group
	for _, id := range candidates {
		g.Go(func() error {
			if _, err := r.StartServer(ctx, id); err != nil {
				mu.Lock()
				failures[id] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return failures
}

// StopAll stops every running server.
func (r *Registry) StopAll() {
	for _, status := range r.Statuses() {
		if status.State == StateRunning {
			if err := r.StopServer(status.ID); err != nil {
				r.logger.Warn("error stopping server",
					"server", status.ID,
					"error", err,
				)
			}
		}
	}
}
