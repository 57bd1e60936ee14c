// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

package feed

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects feed statistics. A nil *Metrics records nothing, and one
// instance may be shared by any number of readers.
type Metrics struct {
	events        *prometheus.CounterVec
	requests      prometheus.Counter
	requestErrors prometheus.Counter
	restarts      prometheus.Counter
}

// NewMetrics returns a new Metrics instance, registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "couchfeed_events_total",
			Help: "Feed events returned to the caller, by kind.",
		}, []string{"kind"}),
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "couchfeed_requests_total",
			Help: "Feed requests issued.",
		}),
		requestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "couchfeed_request_errors_total",
			Help: "Feed requests which failed before streaming began.",
		}),
		restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "couchfeed_restarts_total",
			Help: "Infinite feed reconnections from a checkpoint.",
		}),
	}
	reg.MustRegister(m.events, m.requests, m.requestErrors, m.restarts)
	return m
}

func (m *Metrics) event(k Kind) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(k.String()).Inc()
}

func (m *Metrics) request() {
	if m == nil {
		return
	}
	m.requests.Inc()
}

func (m *Metrics) requestError() {
	if m == nil {
		return
	}
	m.requestErrors.Inc()
}

func (m *Metrics) restart() {
	if m == nil {
		return
	}
	m.restarts.Inc()
}
