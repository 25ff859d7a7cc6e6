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

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"

	"github.com/NVIDIA/topoengine/pkg/metrics"
)

const cookiePrime int64 = 7867

// computeSwitchCookie mixes a route cookie with a switch id into a
// non-negative value used to pick one of several equal-cost next hops.
func computeSwitchCookie(cookie int64, sw SwitchID) int64 {
	s := int64(sw)
	result := int64(1)
	result = cookiePrime*result + int64(int32(cookie^int64(uint64(cookie)>>32)))
	result = cookiePrime*result + int64(int32(s^int64(uint64(s)>>32)))

	switch {
	case result == math.MinInt64:
		return math.MaxInt64
	case result < 0:
		return -result
	default:
		return result
	}
}

// buildRoute walks the multipath tree rooted at the destination, choosing
// the next hop at every switch from the cookie. It is the route cache loader.
func (t *Instance) buildRoute(id RouteID) *Route {
	bt, ok := t.destinationRootedTreesMultipath[id.Dst]
	if !ok || !t.switches.Has(id.Src) || !t.switches.Has(id.Dst) {
		klog.V(5).Infof("No routing tree for route %s", id)
		return nil
	}
	if _, ok := bt.Links[id.Src]; !ok {
		return nil
	}

	var path []NodePortTuple
	routeCount := 0
	visited := sets.New[SwitchID]()
	for sw := id.Src; sw != id.Dst; {
		if visited.Has(sw) {
			klog.Warningf("Loop found at switch %s while building route %s", sw, id)
			metrics.AddRejectedRoute()
			return nil
		}
		visited.Insert(sw)

		links := bt.Links[sw]
		if len(links) == 0 {
			klog.Errorf("Route %s breaks at switch %s", id, sw)
			return nil
		}
		l := links[computeSwitchCookie(id.Cookie, sw)%int64(len(links))]
		routeCount = max(routeCount, len(links))
		path = append(path, l.SrcNodePort(), l.DstNodePort())
		sw = l.Dst
	}

	if t.tunnelDomain != nil {
		stripped := path[:0]
		for _, npt := range path {
			if npt.Switch != *t.tunnelDomain {
				stripped = append(stripped, npt)
			}
		}
		path = stripped
	}
	if len(path) == 0 {
		return nil
	}

	route := &Route{ID: id, Path: path, RouteCount: routeCount}
	klog.V(5).Infof("Built %s", route)
	return route
}

// GetRoute returns the switch-to-switch route selected by cookie, or nil if
// src and dst are the same switch or no route exists. With multipath
// disabled the cookie is ignored. The returned route is a copy the caller
// may modify.
func (t *Instance) GetRoute(src, dst SwitchID, cookie int64) *Route {
	if !t.opts.Multipath {
		cookie = 0
	}
	if src == dst {
		return nil
	}
	return t.routes.get(RouteID{Src: src, Dst: dst, Cookie: cookie})
}

// GetRoutes returns the distinct routes obtained with cookies
// 0 to RouteCount-1 of the first route.
func (t *Instance) GetRoutes(src, dst SwitchID) []*Route {
	first := t.GetRoute(src, dst, 0)
	if first == nil {
		return nil
	}
	routes := []*Route{first}
	if !t.opts.Multipath {
		return routes
	}

	for cookie := int64(1); cookie < int64(first.RouteCount); cookie++ {
		r := t.GetRoute(src, dst, cookie)
		if r == nil || containsRoute(routes, r) {
			continue
		}
		routes = append(routes, r)
	}
	return routes
}

func containsRoute(routes []*Route, r *Route) bool {
	for _, o := range routes {
		if o.Equal(r) {
			return true
		}
	}
	return false
}

// RouteExists reports whether src has a path to dst within their cluster.
func (t *Instance) RouteExists(src, dst SwitchID) bool {
	_, ok := t.destinationRootedTrees[dst].NextHop(src)
	return ok
}

// GetCost returns the intra-cluster path cost from src to dst, or -1 if
// they are not in the same cluster.
func (t *Instance) GetCost(src, dst SwitchID) int {
	return t.getCost(src, dst)
}
