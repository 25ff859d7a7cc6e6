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

package topology

import (
	"testing"

	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"
)

func npt(sw SwitchID, port PortID) NodePortTuple {
	return NodePortTuple{Switch: sw, Port: port}
}

// link adds a bidirectional link between sw1:p1 and sw2:p2.
func link(s *Snapshot, sw1 SwitchID, p1 PortID, sw2 SwitchID, p2 PortID) {
	s.AddBidirectionalLink(NewLink(sw1, p1, sw2, p2))
}

func computed(s *Snapshot, opts Options) *Instance {
	inst := NewInstance(s, opts)
	inst.Compute()
	return inst
}

func clusterMembers(inst *Instance) [][]SwitchID {
	var members [][]SwitchID
	for _, c := range inst.Clusters() {
		members = append(members, sortedSwitches(c.Nodes))
	}
	return members
}

func TestIdentifyOpenflowDomains(t *testing.T) {
	testCases := []struct {
		name     string
		build    func(*Snapshot)
		clusters [][]SwitchID
	}{
		{
			name: "Case 1: line",
			build: func(s *Snapshot) {
				link(s, 1, 1, 2, 1)
				link(s, 2, 2, 3, 1)
			},
			clusters: [][]SwitchID{{1, 2, 3}},
		},
		{
			name: "Case 2: unidirectional link",
			build: func(s *Snapshot) {
				s.AddLink(NewLink(1, 1, 2, 1))
			},
			clusters: [][]SwitchID{{1}, {2}},
		},
		{
			name: "Case 3: unidirectional cycle",
			build: func(s *Snapshot) {
				s.AddLink(NewLink(1, 1, 2, 1))
				s.AddLink(NewLink(2, 2, 3, 1))
				s.AddLink(NewLink(3, 2, 1, 2))
			},
			clusters: [][]SwitchID{{1, 2, 3}},
		},
		{
			name: "Case 4: chain of cycles",
			build: func(s *Snapshot) {
				link(s, 1, 1, 2, 1)
				link(s, 3, 1, 4, 1)
				link(s, 5, 1, 6, 1)
				s.AddLink(NewLink(2, 3, 3, 3))
				s.AddLink(NewLink(4, 3, 5, 3))
			},
			clusters: [][]SwitchID{{1, 2}, {3, 4}, {5, 6}},
		},
		{
			name: "Case 5: blocked port splits a cluster",
			build: func(s *Snapshot) {
				link(s, 1, 1, 2, 1)
				link(s, 2, 2, 3, 1)
				s.BlockPort(npt(2, 2))
			},
			clusters: [][]SwitchID{{1, 2}, {3}},
		},
		{
			name: "Case 6: broadcast domain links are not traversed",
			build: func(s *Snapshot) {
				link(s, 1, 5, 2, 5)
				s.AddBroadcastDomain(100, npt(1, 5), npt(2, 5))
			},
			clusters: [][]SwitchID{{1}, {2}},
		},
		{
			name: "Case 7: switch without links",
			build: func(s *Snapshot) {
				link(s, 1, 1, 2, 1)
				s.AddSwitch(9, 1, 2)
			},
			clusters: [][]SwitchID{{1, 2}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSnapshot()
			tc.build(s)
			inst := computed(s, Options{})
			require.Equal(t, tc.clusters, clusterMembers(inst))

			// every linked switch is in exactly one cluster
			seen := sets.New[SwitchID]()
			for _, c := range inst.Clusters() {
				require.Equal(t, sortedSwitches(c.Nodes)[0], c.ID)
				for sw := range c.Nodes {
					require.False(t, seen.Has(sw))
					seen.Insert(sw)
				}
			}
			require.Equal(t, inst.Switches(), sortedSwitches(seen))
		})
	}
}

func TestClusterLinks(t *testing.T) {
	s := NewSnapshot()
	link(s, 1, 1, 2, 1)
	s.AddLink(NewLink(2, 3, 3, 3))
	link(s, 3, 1, 4, 1)

	inst := computed(s, Options{})
	c, ok := inst.clusterOf(1)
	require.True(t, ok)
	require.Equal(t, []Link{NewLink(1, 1, 2, 1), NewLink(2, 1, 1, 1)}, sortedLinks(c.Links[1]))
	require.Equal(t, []Link{NewLink(1, 1, 2, 1), NewLink(2, 1, 1, 1)}, sortedLinks(c.Links[2]))
	require.Equal(t, "Cluster 00:00:00:00:00:00:00:01 [1-2]", c.String())
}

func TestComputeIsRepeatable(t *testing.T) {
	s := NewSnapshot()
	link(s, 1, 5, 2, 5)
	link(s, 1, 6, 2, 6)
	s.AddBroadcastDomain(100, npt(1, 5), npt(2, 5))
	s.AddBroadcastDomain(200, npt(1, 6), npt(2, 6))

	inst := computed(s, Options{Multipath: true})
	first := inst.Dump()
	inst.Compute()
	require.Equal(t, first, inst.Dump())

	// the instance does not share state with the snapshot
	s.BlockPort(npt(1, 5))
	inst.Compute()
	require.Equal(t, first, inst.Dump())
}
