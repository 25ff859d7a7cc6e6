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
)

// chain builds three clusters {1,2}, {3,4} and {5,6} connected by the
// unidirectional links 2:3->3:3 and 4:3->5:3.
func chain() *Snapshot {
	s := NewSnapshot()
	link(s, 1, 1, 2, 1)
	link(s, 3, 1, 4, 1)
	link(s, 5, 1, 6, 1)
	s.AddLink(NewLink(2, 3, 3, 3))
	s.AddLink(NewLink(4, 3, 5, 3))
	return s
}

// segment builds switches 1 and 2 attached to broadcast domain 100.
func segment() *Snapshot {
	s := NewSnapshot()
	s.AddSwitch(1, 1)
	s.AddSwitch(2, 1)
	link(s, 1, 5, 2, 5)
	s.AddBroadcastDomain(100, npt(1, 5), npt(2, 5))
	return s
}

func TestGetPortRoute(t *testing.T) {
	testCases := []struct {
		name    string
		build   func() *Snapshot
		src     NodePortTuple
		dst     NodePortTuple
		path    []NodePortTuple
		inPort  NodePortTuple
		outPort NodePortTuple
	}{
		{
			name:  "Case 1: same cluster",
			build: chain,
			src:   npt(1, 9),
			dst:   npt(2, 9),
			path:  []NodePortTuple{npt(1, 9), npt(1, 1), npt(2, 1), npt(2, 9)},
		},
		{
			name:  "Case 2: two clusters",
			build: chain,
			src:   npt(1, 9),
			dst:   npt(4, 9),
			path: []NodePortTuple{
				npt(1, 9), npt(1, 1), npt(2, 1), npt(2, 3),
				npt(3, 3), npt(3, 1), npt(4, 1), npt(4, 9),
			},
		},
		{
			name:  "Case 3: through a cluster",
			build: chain,
			src:   npt(1, 9),
			dst:   npt(6, 9),
			path: []NodePortTuple{
				npt(1, 9), npt(1, 1), npt(2, 1), npt(2, 3),
				npt(3, 3), npt(3, 1), npt(4, 1), npt(4, 3),
				npt(5, 3), npt(5, 1), npt(6, 1), npt(6, 9),
			},
		},
		{
			name:  "Case 4: across a broadcast domain",
			build: segment,
			src:   npt(1, 1),
			dst:   npt(2, 1),
			path:  []NodePortTuple{npt(1, 1), npt(1, 5), npt(2, 5), npt(2, 1)},
		},
		{
			name:  "Case 5: both ends in one broadcast domain",
			build: segment,
			src:   npt(1, 5),
			dst:   npt(2, 5),
		},
		{
			name:  "Case 6: same port twice",
			build: chain,
			src:   npt(1, 9),
			dst:   npt(1, 9),
		},
		{
			name: "Case 7: different islands",
			build: func() *Snapshot {
				s := NewSnapshot()
				link(s, 1, 1, 2, 1)
				link(s, 3, 1, 4, 1)
				return s
			},
			src: npt(1, 9),
			dst: npt(3, 9),
		},
		{
			name:  "Case 8: switch without links",
			build: segment,
			src:   npt(7, 1),
			dst:   npt(7, 2),
			path:  []NodePortTuple{npt(7, 1), npt(7, 2)},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inst := computed(tc.build(), Options{Multipath: true})
			route := inst.GetPortRoute(tc.src.Switch, tc.src.Port, tc.dst.Switch, tc.dst.Port, 0)
			if tc.path == nil {
				require.Nil(t, route)
				return
			}
			require.NotNil(t, route)
			require.Equal(t, tc.path, route.Path)

			in, ok := inst.GetIncomingSwitchPort(tc.src.Switch, tc.src.Port, tc.dst.Switch, tc.dst.Port)
			require.True(t, ok)
			require.Equal(t, tc.path[0], in)
			out, ok := inst.GetOutgoingSwitchPort(tc.src.Switch, tc.src.Port, tc.dst.Switch, tc.dst.Port)
			require.True(t, ok)
			require.Equal(t, tc.path[len(tc.path)-1], out)
		})
	}
}

func TestSwitchPortWithoutRoute(t *testing.T) {
	s := NewSnapshot()
	link(s, 1, 1, 2, 1)
	link(s, 3, 1, 4, 1)
	inst := computed(s, Options{})

	_, ok := inst.GetIncomingSwitchPort(1, 9, 3, 9)
	require.False(t, ok)
	_, ok = inst.GetOutgoingSwitchPort(1, 9, 3, 9)
	require.False(t, ok)
}

func TestLoopIsRejected(t *testing.T) {
	inst := computed(chain(), Options{})
	// the source port is also the egress port of the first hop
	require.Nil(t, inst.GetPortRoute(2, 3, 4, 9, 0))
}
