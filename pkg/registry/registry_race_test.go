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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/toolgate/pkg/mcp/mcptest"
)

// TestRegistry_RemoveConfigConcurrentStart races StartServer against
// RemoveConfig. Whichever wins, a removed server must never keep a
// live client: either the start fails because the entry is gone, or
// the removal stops the freshly started client.
func TestRegistry_RemoveConfigConcurrentStart(t *testing.T) {
	for i := 0; i < 50; i++ {
		dialer := mcptest.NewDialer().WithTools("alpha", toolDef("search"))
		r := newTestRegistry(t, dialer)
		require.NoError(t, r.AddConfig(testConfig("alpha")))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = r.StartServer(context.Background(), "alpha")
		}()
		go func() {
			defer wg.Done()
			_ = r.RemoveConfig("alpha")
		}()
		wg.Wait()

		_, err := r.GetStatus("alpha")
		assert.Error(t, err, "a removed server must be forgotten")
		if client := dialer.Client("alpha"); client != nil {
			assert.False(t, client.IsConnected(),
				"a removed server must not keep a live client")
		}
		assert.Zero(t, r.RunningCount())
	}
}

// TestRegistry_ConcurrentDispatch exercises routing and status reads
// while servers start and stop.
func TestRegistry_ConcurrentDispatch(t *testing.T) {
	dialer := mcptest.NewDialer().
		WithTools("alpha", toolDef("search")).
		WithTools("beta", toolDef("write"))
	r := newTestRegistry(t, dialer)
	require.NoError(t, r.AddConfig(testConfig("alpha")))
	require.NoError(t, r.AddConfig(testConfig("beta")))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.StartServer(context.Background(), "alpha")
			_ = r.AllTools(context.Background())
			_, _ = r.FindToolServer("search")
			_ = r.Statuses()
			_ = r.StopServer("alpha")
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.StartServer(context.Background(), "beta")
			_, _ = r.FindToolServer("write")
			_ = r.StopServer("beta")
		}()
	}
	wg.Wait()
}
