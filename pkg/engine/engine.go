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


package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"

	"github.com/NVIDIA/topoengine/pkg/metrics"
	"github.com/NVIDIA/topoengine/pkg/topology"
)

// Engine holds the active topology instance. Queries run against an
// immutable computed instance while a new one is built off to the side.
type Engine struct {
	opts    topology.Options
	mu      sync.Mutex
	current atomic.Pointer[topology.Instance]
}

// New returns an engine serving an empty computed topology.
func New(opts topology.Options) *Engine {
	e := &Engine{opts: opts}
	e.Update(topology.NewSnapshot())
	return e
}

func (e *Engine) Options() topology.Options {
	return e.opts
}

// Current returns the active instance. It is never nil.
func (e *Engine) Current() *topology.Instance {
	return e.current.Load()
}

// Update computes a new instance from snap and makes it active.
// Concurrent updates are serialized; readers keep the previous
// instance until the swap.
func (e *Engine) Update(snap *topology.Snapshot) *topology.Instance {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	t := topology.NewInstance(snap, e.opts)
	t.Compute()
	duration := time.Since(start)

	dump := t.Dump()
	metrics.SetComputed(duration, len(t.Switches()), len(dump.Clusters), len(dump.BroadcastDomains))
	klog.InfoS("Computed topology", "switches", len(t.Switches()), "clusters", len(dump.Clusters),
		"broadcastDomains", len(dump.BroadcastDomains), "duration", duration)

	e.current.Store(t)
	return t
}
