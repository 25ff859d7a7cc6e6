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


package test

import (
	"context"
	"fmt"

	"github.com/NVIDIA/topoengine/internal/config"
	"github.com/NVIDIA/topoengine/pkg/sources"
	"github.com/NVIDIA/topoengine/pkg/topology"
)

const NAME = "test"

// Source returns a built-in sample network: two openflow domains {1,2}
// and {3,4} joined by two external L2 segments, one of them redundant.
type Source struct {
	multipath bool
}

type Params struct {
	// Multipath adds a parallel link inside each openflow domain.
	Multipath bool `mapstructure:"multipath"`
}

func NamedLoader() (string, sources.Loader) {
	return NAME, Loader
}

func Loader(_ context.Context, cfg sources.Config) (sources.Source, error) {
	var p Params
	if err := config.Decode(cfg.Params, &p); err != nil {
		return nil, fmt.Errorf("error decoding params: %v", err)
	}
	return &Source{multipath: p.Multipath}, nil
}

func (s *Source) Snapshot(_ context.Context) (*topology.Snapshot, error) {
	return Sample(s.multipath), nil
}

func Sample(multipath bool) *topology.Snapshot {
	snap := topology.NewSnapshot()

	for sw := topology.SwitchID(1); sw <= 4; sw++ {
		snap.AddSwitch(sw, 1, 2, 3, 4, 5)
	}

	snap.AddBidirectionalLink(topology.NewLink(1, 1, 2, 1))
	snap.AddBidirectionalLink(topology.NewLink(3, 1, 4, 1))
	if multipath {
		snap.AddBidirectionalLink(topology.NewLink(1, 2, 2, 2))
		snap.AddBidirectionalLink(topology.NewLink(3, 2, 4, 2))
	}

	// segment 100 joins 2 and 3, segment 200 joins 1 and 4
	snap.AddBidirectionalLink(topology.NewLink(2, 3, 3, 3))
	snap.AddBroadcastDomain(100, topology.NewNodePortTuple(2, 3), topology.NewNodePortTuple(3, 3))
	snap.AddBidirectionalLink(topology.NewLink(1, 4, 4, 4))
	snap.AddBroadcastDomain(200, topology.NewNodePortTuple(1, 4), topology.NewNodePortTuple(4, 4))

	return snap
}
