// Copyright 2025 Velda Inc
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package migrate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks per-file downgrade outcomes and latency.
type Metrics struct {
	Files    *prometheus.CounterVec
	Duration *prometheus.SummaryVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wslattr_downgrade_files_total",
			Help: "Number of files processed by downgrade, by outcome",
		}, []string{"outcome"}),
		Duration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name: "wslattr_downgrade_file_seconds",
			Help: "Time spent migrating one file in seconds",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	if err := reg.Register(m.Files); err != nil {
		return err
	}
	return reg.Register(m.Duration)
}

func (m *Metrics) Unregister(reg prometheus.Registerer) {
	reg.Unregister(m.Files)
	reg.Unregister(m.Duration)
}

// Observe records one file. A nil Metrics records nothing.
func (m *Metrics) Observe(o Outcome, dt time.Duration) {
	if m == nil {
		return
	}
	m.Files.WithLabelValues(o.String()).Inc()
	m.Duration.WithLabelValues(o.String()).Observe(dt.Seconds())
}

// WriteTextfile dumps the metrics in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, reg)
}
