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
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"

	"github.com/NVIDIA/topoengine/pkg/metrics"
)

// routeCache is a bounded LRU of computed routes. Concurrent misses for the
// same RouteID share a single load. Absent routes are not cached. Callers
// get their own copy of a route, so the cached value is never mutated.
type routeCache struct {
	cache  *lru.Cache
	group  singleflight.Group
	loader func(RouteID) *Route
}

func newRouteCache(size int, loader func(RouteID) *Route) *routeCache {
	if size <= 0 {
		size = DefaultRouteCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		// lru.New only fails for a non-positive size
		klog.Errorf("Failed to create route cache of size %d: %v", size, err)
		cache, _ = lru.New(DefaultRouteCacheSize)
	}
	return &routeCache{cache: cache, loader: loader}
}

func (rc *routeCache) get(id RouteID) *Route {
	if val, ok := rc.cache.Get(id); ok {
		metrics.AddRouteCacheHit()
		return val.(*Route).Clone()
	}
	metrics.AddRouteCacheMiss()

	val, _, _ := rc.group.Do(id.String(), func() (any, error) {
		route := rc.loader(id)
		if route != nil {
			rc.cache.Add(id, route)
		}
		return route, nil
	})
	return val.(*Route).Clone()
}

func (rc *routeCache) len() int {
	return rc.cache.Len()
}

func (rc *routeCache) purge() {
	rc.cache.Purge()
}
