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
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the registry's Prometheus collectors.
type metrics struct {
	toolCalls      *prometheus.CounterVec
	startFailures  *prometheus.CounterVec
	runningServers prometheus.Gauge
	callDuration   *prometheus.HistogramVec
}

// newMetrics builds and registers the collectors. A nil registerer
// leaves the collectors unregistered (tests build many registries).
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolgate",
			Name:      "tool_calls_total",
			Help:      "Tool calls dispatched, by server and outcome.",
		}, []string{"server", "outcome"}),
		startFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolgate",
			Name:      "server_start_failures_total",
			Help:      "Server start attempts that ended in the error state.",
		}, []string{"server"}),
		runningServers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "toolgate",
			Name:      "running_servers",
			Help:      "Servers currently in the running state.",
		}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "toolgate",
			Name:      "tool_call_duration_seconds",
			Help:      "Tool call latency, by server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"server"}),
	}

	if reg != nil {
		reg.MustRegister(m.toolCalls, m.startFailures, m.runningServers, m.callDuration)
	}
	return m
}

func (m *metrics) observeCall(serverID string, isError bool, seconds float64) {
	outcome := "ok"
	if isError {
		outcome = "error"
	}
	m.toolCalls.WithLabelValues(serverID, outcome).Inc()
	m.callDuration.WithLabelValues(serverID).Observe(seconds)
}
