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
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"
)

// square builds 1-2-4 and 1-3-4, two equal-cost paths from 1 to 4.
func square() *Snapshot {
	s := NewSnapshot()
	link(s, 1, 1, 2, 1)
	link(s, 1, 2, 3, 1)
	link(s, 2, 2, 4, 1)
	link(s, 3, 2, 4, 2)
	return s
}

func TestComputeSwitchCookie(t *testing.T) {
	testCases := []struct {
		name   string
		cookie int64
		sw     SwitchID
		result int64
	}{
		{
			name:   "Case 1: zero cookie",
			cookie: 0,
			sw:     1,
			result: 61889690,
		},
		{
			name:   "Case 2: cookie 1",
			cookie: 1,
			sw:     1,
			result: 61897557,
		},
		{
			name:   "Case 3: high bits are folded",
			cookie: -1,
			sw:     1,
			result: 61889690,
		},
		{
			name:   "Case 4: negative result",
			cookie: 0,
			sw:     0x80000000,
			result: 2085593959,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.result, computeSwitchCookie(tc.cookie, tc.sw))
		})
	}
}

func TestPortHash(t *testing.T) {
	testCases := []struct {
		name   string
		values []int64
		result int32
	}{
		{
			name:   "Case 1: no values",
			result: -924824673,
		},
		{
			name:   "Case 2: egress port",
			values: []int64{1, 2, 5},
			result: -658016071,
		},
		{
			name:   "Case 3: another egress port",
			values: []int64{1, 3, 5},
			result: -987453998,
		},
		{
			name:   "Case 4: all-ones switch id",
			values: []int64{-1, 1},
			result: -924824674,
		},
		{
			name:   "Case 5: port above 32767",
			values: []int64{7, int64(PortID(40000))},
			result: 2054068992,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.result, portHash(tc.values...))
		})
	}
}

func TestGetRoute(t *testing.T) {
	testCases := []struct {
		name   string
		build  func() *Snapshot
		opts   Options
		src    SwitchID
		dst    SwitchID
		cookie int64
		path   []NodePortTuple
		count  int
	}{
		{
			name: "Case 1: line through switch 2",
			build: func() *Snapshot {
				s := NewSnapshot()
				link(s, 1, 1, 2, 1)
				link(s, 2, 2, 3, 1)
				return s
			},
			src:   1,
			dst:   3,
			path:  []NodePortTuple{npt(1, 1), npt(2, 1), npt(2, 2), npt(3, 1)},
			count: 1,
		},
		{
			name:   "Case 2: multipath cookie 0",
			build:  square,
			opts:   Options{Multipath: true},
			src:    1,
			dst:    4,
			cookie: 0,
			path:   []NodePortTuple{npt(1, 1), npt(2, 1), npt(2, 2), npt(4, 1)},
			count:  2,
		},
		{
			name:   "Case 3: multipath cookie 1",
			build:  square,
			opts:   Options{Multipath: true},
			src:    1,
			dst:    4,
			cookie: 1,
			path:   []NodePortTuple{npt(1, 2), npt(3, 1), npt(3, 2), npt(4, 2)},
			count:  2,
		},
		{
			name:   "Case 4: cookie is ignored without multipath",
			build:  square,
			src:    1,
			dst:    4,
			cookie: 1,
			path:   []NodePortTuple{npt(1, 1), npt(2, 1), npt(2, 2), npt(4, 1)},
			count:  2,
		},
		{
			name: "Case 5: blocked link is avoided",
			build: func() *Snapshot {
				s := NewSnapshot()
				link(s, 1, 1, 2, 1)
				link(s, 1, 2, 3, 1)
				link(s, 3, 2, 2, 2)
				s.BlockPort(npt(1, 1))
				return s
			},
			src:   1,
			dst:   2,
			path:  []NodePortTuple{npt(1, 2), npt(3, 1), npt(3, 2), npt(2, 2)},
			count: 1,
		},
		{
			name: "Case 6: no route between clusters",
			build: func() *Snapshot {
				s := NewSnapshot()
				s.AddLink(NewLink(1, 1, 2, 1))
				return s
			},
			src: 1,
			dst: 2,
		},
		{
			name:  "Case 7: self route",
			build: square,
			src:   2,
			dst:   2,
		},
		{
			name: "Case 8: tunnel domain ports are stripped",
			build: func() *Snapshot {
				s := NewSnapshot()
				td := SwitchID(0xff)
				s.AddSwitch(1, 9)
				s.AddSwitch(2, 9)
				s.AddTunnelPort(npt(1, 9))
				s.AddTunnelPort(npt(2, 9))
				s.TunnelDomain = &td
				return s
			},
			src:   1,
			dst:   2,
			path:  []NodePortTuple{npt(1, 9), npt(2, 9)},
			count: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inst := computed(tc.build(), tc.opts)
			route := inst.GetRoute(tc.src, tc.dst, tc.cookie)
			if tc.path == nil {
				require.Nil(t, route)
				return
			}
			require.NotNil(t, route)
			require.Equal(t, tc.path, route.Path)
			require.Equal(t, tc.count, route.RouteCount)
			require.Equal(t, tc.src, route.ID.Src)
			require.Equal(t, tc.dst, route.ID.Dst)
		})
	}
}

func TestGetRoutes(t *testing.T) {
	s := NewSnapshot()
	link(s, 1, 1, 2, 1)
	link(s, 1, 2, 2, 2)

	inst := computed(s, Options{Multipath: true})
	routes := inst.GetRoutes(1, 2)
	require.Len(t, routes, 2)
	require.Equal(t, []NodePortTuple{npt(1, 1), npt(2, 1)}, routes[0].Path)
	require.Equal(t, []NodePortTuple{npt(1, 2), npt(2, 2)}, routes[1].Path)
	require.False(t, routes[0].Equal(routes[1]))

	// a second compute sorts the equal-cost links the same way
	inst.Compute()
	again := inst.GetRoutes(1, 2)
	require.Len(t, again, 2)
	for i := range routes {
		require.True(t, routes[i].Equal(again[i]))
	}

	single := computed(s, Options{})
	require.Len(t, single.GetRoutes(1, 2), 1)
	require.Empty(t, single.GetRoutes(1, 1))
}

func TestRouteExists(t *testing.T) {
	s := NewSnapshot()
	link(s, 1, 1, 2, 1)
	link(s, 1, 2, 3, 1)
	link(s, 3, 2, 2, 2)
	s.BlockPort(npt(1, 1))
	s.AddLink(NewLink(2, 5, 4, 5))

	inst := computed(s, Options{Multipath: true})
	require.True(t, inst.RouteExists(1, 2))
	require.True(t, inst.RouteExists(2, 1))
	require.False(t, inst.RouteExists(2, 4))
	require.False(t, inst.RouteExists(1, 1))
	require.Equal(t, 2, inst.GetCost(1, 2))
	require.Equal(t, 0, inst.GetCost(1, 1))
	require.Equal(t, -1, inst.GetCost(2, 4))

	blocked := sets.New(npt(1, 1), npt(2, 1))
	for _, src := range inst.Switches() {
		for _, dst := range inst.Switches() {
			for cookie := int64(0); cookie < 4; cookie++ {
				route := inst.GetRoute(src, dst, cookie)
				if route == nil {
					continue
				}
				require.Len(t, sets.New(route.Path...), len(route.Path))
				for _, p := range route.Path {
					require.False(t, blocked.Has(p), "route %s uses blocked port %s", route, p)
				}
			}
		}
	}
}

func TestRouteCache(t *testing.T) {
	inst := computed(square(), Options{Multipath: true, RouteCacheSize: 2})

	r1 := inst.GetRoute(1, 4, 0)
	require.NotNil(t, r1)
	cached := inst.GetRoute(1, 4, 0)
	require.NotSame(t, r1, cached)
	require.True(t, r1.Equal(cached))
	require.Equal(t, 1, inst.routes.len())

	// changing a returned route leaves the cached one intact
	want := r1.Clone()
	cached.Path[0] = npt(9, 9)
	cached.Path = cached.Path[:1]
	require.True(t, want.Equal(inst.GetRoute(1, 4, 0)))

	// absent routes are not cached
	require.Nil(t, inst.GetRoute(1, 1, 0))
	require.Nil(t, inst.GetRoute(1, 99, 0))
	require.Equal(t, 1, inst.routes.len())

	inst.GetRoute(4, 1, 0)
	inst.GetRoute(2, 3, 0)
	require.Equal(t, 2, inst.routes.len())

	inst.Compute()
	require.Equal(t, 0, inst.routes.len())
	require.True(t, r1.Equal(inst.GetRoute(1, 4, 0)))
}

func TestRouteCacheConcurrent(t *testing.T) {
	inst := computed(square(), Options{Multipath: true})
	want := inst.buildRoute(RouteID{Src: 1, Dst: 4, Cookie: 1})

	routes := make([]*Route, 16)
	var wg sync.WaitGroup
	for i := range routes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			routes[i] = inst.GetRoute(1, 4, 1)
		}(i)
	}
	wg.Wait()

	for _, r := range routes {
		require.True(t, want.Equal(r))
	}
}

func TestDijkstra(t *testing.T) {
	inst := computed(square(), Options{Multipath: true})
	c, ok := inst.clusterOf(1)
	require.True(t, ok)

	bt := dijkstra(c, 4, nil, true)
	require.Equal(t, 0, bt.Cost(4))
	require.Equal(t, 1, bt.Cost(2))
	require.Equal(t, 2, bt.Cost(1))
	require.Equal(t, -1, bt.Cost(9))
	hop, ok := bt.NextHop(1)
	require.True(t, ok)
	require.Equal(t, NewLink(1, 1, 2, 1), hop)
	_, ok = bt.NextHop(4)
	require.False(t, ok)

	mp := dijkstraMultipath(c, 4, nil, true)
	require.Equal(t, 2, mp.Cost(1))
	require.Equal(t, []Link{NewLink(1, 1, 2, 1), NewLink(1, 2, 3, 1)}, mp.Links[1])
	require.Len(t, mp.Links[2], 1)
	require.Empty(t, mp.Links[4])

	// source rooted trees follow outgoing links
	src := dijkstra(c, 1, nil, false)
	hop, ok = src.NextHop(4)
	require.True(t, ok)
	require.Equal(t, NewLink(2, 2, 4, 1), hop)

	// a heavier link is avoided
	weighted := dijkstraMultipath(c, 4, map[Link]int{NewLink(1, 2, 3, 1): 5}, true)
	require.Equal(t, []Link{NewLink(1, 1, 2, 1)}, weighted.Links[1])
	require.Less(t, weighted.Cost(1), math.MaxInt32)
}

// The multipath tree never marks switches as seen. A switch that gains an
// equal-cost link after it was expanded is pushed and expanded again, so the
// link is kept; the single-path tree drops it.
func TestDijkstraMultipathReexpandsSwitches(t *testing.T) {
	s := NewSnapshot()
	link(s, 2, 1, 1, 1)
	link(s, 3, 1, 1, 2)
	link(s, 2, 2, 3, 2)
	inst := computed(s, Options{Multipath: true})
	c, ok := inst.clusterOf(1)
	require.True(t, ok)

	// 2 is expanded before 3, then reached again from 3 at no extra cost
	weights := map[Link]int{NewLink(2, 2, 3, 2): 0}

	mp := dijkstraMultipath(c, 1, weights, true)
	require.Equal(t, 1, mp.Cost(2))
	require.Equal(t, 1, mp.Cost(3))
	require.Equal(t, []Link{NewLink(2, 1, 1, 1), NewLink(2, 2, 3, 2)}, mp.Links[2])
	require.Equal(t, []Link{NewLink(3, 1, 1, 2)}, mp.Links[3])

	bt := dijkstra(c, 1, weights, true)
	hop, ok := bt.NextHop(2)
	require.True(t, ok)
	require.Equal(t, NewLink(2, 1, 1, 1), hop)
}

// spreading builds cluster {1,2,3} whose switches 2 and 3 both link one way
// to switch 4. Switch 1 is one hop away from either egress port.
func spreading() *Snapshot {
	s := NewSnapshot()
	link(s, 1, 1, 2, 1)
	link(s, 1, 2, 3, 1)
	s.AddLink(NewLink(2, 5, 4, 1))
	s.AddLink(NewLink(3, 5, 4, 2))
	for _, sw := range []SwitchID{1, 2, 4} {
		s.AddSwitch(sw, 9)
	}
	return s
}

func TestTrafficSpreading(t *testing.T) {
	require.Less(t, portHash(1, 3, 5), portHash(1, 2, 5))

	testCases := []struct {
		name string
		opts Options
		path []NodePortTuple
	}{
		{
			name: "Case 1: lowest port wins a cost tie",
			opts: Options{},
			path: []NodePortTuple{npt(1, 9), npt(1, 1), npt(2, 1), npt(2, 5), npt(4, 1), npt(4, 9)},
		},
		{
			name: "Case 2: lowest hash wins a cost tie",
			opts: Options{TrafficSpreading: true},
			path: []NodePortTuple{npt(1, 9), npt(1, 2), npt(3, 1), npt(3, 5), npt(4, 2), npt(4, 9)},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inst := computed(spreading(), tc.opts)
			route := inst.GetPortRoute(1, 9, 4, 9, 0)
			require.NotNil(t, route)
			require.Equal(t, tc.path, route.Path)

			// a cheaper egress port is never traded for a lower hash
			route = inst.GetPortRoute(2, 9, 4, 9, 0)
			require.NotNil(t, route)
			require.Equal(t, []NodePortTuple{npt(2, 9), npt(2, 5), npt(4, 1), npt(4, 9)}, route.Path)
		})
	}
}
