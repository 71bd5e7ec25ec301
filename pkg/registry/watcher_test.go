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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/toolgate/pkg/mcp/mcptest"
)

func TestNewWatcher_Validation(t *testing.T) {
	_, err := NewWatcher(WatcherConfig{Path: "x.yaml"})
	assert.Error(t, err)

	_, err = NewWatcher(WatcherConfig{Registry: New(Config{})})
	assert.Error(t, err)
}

func TestWatcher_AppliesConfigChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.yaml")

	require.NoError(t, SaveConfigFile(path, &ConfigFile{
		Servers: []ServerConfig{testConfig("alpha")},
	}))

	r := newTestRegistry(t, mcptest.NewDialer())

	initial, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.NoError(t, r.LoadConfigs(t.Context(), initial.Servers))

	w, err := NewWatcher(WatcherConfig{
		Registry:      r,
		Path:          path,
		DebounceDelay: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	defer w.Close()

	// Add a server to the file; the watcher should pick it up.
	require.NoError(t, SaveConfigFile(path, &ConfigFile{
		Servers: []ServerConfig{testConfig("alpha"), testConfig("beta")},
	}))

	require.Eventually(t, func() bool {
		_, err := r.GetConfig("beta")
		return err == nil
	}, 3*time.Second, 20*time.Millisecond, "watcher should apply the added server")

	// Remove a server from the file.
	require.NoError(t, SaveConfigFile(path, &ConfigFile{
		Servers: []ServerConfig{testConfig("beta")},
	}))

	require.Eventually(t, func() bool {
		_, err := r.GetConfig("alpha")
		return err != nil
	}, 3*time.Second, 20*time.Millisecond, "watcher should apply the removed server")
}

func TestWatcher_CloseIdempotentWithPending(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.yaml")
	require.NoError(t, SaveConfigFile(path, &ConfigFile{}))

	r := newTestRegistry(t, mcptest.NewDialer())
	w, err := NewWatcher(WatcherConfig{
		Registry:      r,
		Path:          path,
		DebounceDelay: time.Hour,
	})
	require.NoError(t, err)

	// Leave a pending debounced reload behind, then close.
	w.scheduleReload()
	assert.NoError(t, w.Close())
}
