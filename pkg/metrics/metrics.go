/*
 * Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "requests_total",
			Help:      "Total number of HTTP API requests.",
			Subsystem: "topoengine",
		},
		[]string{"endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:      "request_duration_seconds",
			Help:      "HTTP API request duration in seconds.",
			Subsystem: "topoengine",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint", "status"},
	)

	computeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:      "compute_duration_seconds",
			Help:      "Topology instance compute duration in seconds.",
			Subsystem: "topoengine",
			Buckets:   prometheus.DefBuckets,
		},
	)

	topologyObjects = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:      "objects",
			Help:      "Number of objects in the active topology instance.",
			Subsystem: "topoengine",
		},
		[]string{"kind"},
	)

	routeCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "route_cache_total",
			Help:      "Total number of route cache lookups.",
			Subsystem: "topoengine",
		},
		[]string{"result"},
	)

	rejectedRoutesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:      "rejected_routes_total",
			Help:      "Total number of routes rejected because of a loop.",
			Subsystem: "topoengine",
		},
	)

	snapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "snapshots_total",
			Help:      "Total number of submitted topology snapshots.",
			Subsystem: "topoengine",
		},
		[]string{"source", "status"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(computeDuration)
	prometheus.MustRegister(topologyObjects)
	prometheus.MustRegister(routeCacheTotal)
	prometheus.MustRegister(rejectedRoutesTotal)
	prometheus.MustRegister(snapshotsTotal)
}

func Add(endpoint string, code int, duration time.Duration) {
	status := fmt.Sprintf("%d", code)
	httpRequestsTotal.WithLabelValues(endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(endpoint, status).Observe(duration.Seconds())
}

// SetComputed records a finished compute run and the size of its result.
func SetComputed(duration time.Duration, switches, clusters, domains int) {
	computeDuration.Observe(duration.Seconds())
	topologyObjects.WithLabelValues("switches").Set(float64(switches))
	topologyObjects.WithLabelValues("clusters").Set(float64(clusters))
	topologyObjects.WithLabelValues("broadcast_domains").Set(float64(domains))
}

func AddRouteCacheHit() {
	routeCacheTotal.WithLabelValues("hit").Inc()
}

func AddRouteCacheMiss() {
	routeCacheTotal.WithLabelValues("miss").Inc()
}

func AddRejectedRoute() {
	rejectedRoutesTotal.Inc()
}

func AddSnapshot(source string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	snapshotsTotal.WithLabelValues(source, status).Inc()
}
