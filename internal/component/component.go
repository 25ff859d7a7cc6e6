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


package component

import (
	"context"
	"slices"
)

type (
	// NamedLoader returns a name/loader pair used to populate a Registry.
	NamedLoader[T, C any] func() (string, Loader[T, C])
	// Loader builds a component of type T from its configuration C.
	Loader[T, C any] func(ctx context.Context, config C) (T, error)
	// Registry maps component names to their loaders.
	Registry[T, C any] map[string]Loader[T, C]
)

// Named wraps a loader under a name chosen at runtime.
func Named[T, C any](name string, loader Loader[T, C]) NamedLoader[T, C] {
	return func() (string, Loader[T, C]) {
		return name, loader
	}
}

func NewRegistry[T, C any](namedLoaders ...NamedLoader[T, C]) Registry[T, C] {
	r := make(Registry[T, C], len(namedLoaders))
	r.Register(namedLoaders...)
	return r
}

// Register adds loaders to the registry. A later loader replaces an
// earlier one with the same name.
func (r Registry[T, C]) Register(namedLoaders ...NamedLoader[T, C]) {
	for _, l := range namedLoaders {
		name, loader := l()
		r[name] = loader
	}
}

// Names returns the registered names in sorted order.
func (r Registry[T, C]) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
