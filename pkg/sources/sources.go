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


package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/NVIDIA/topoengine/internal/component"
	"github.com/NVIDIA/topoengine/pkg/topology"
)

// Source produces the network snapshot a topology instance is computed from.
type Source interface {
	Snapshot(ctx context.Context) (*topology.Snapshot, error)
}

type Config struct {
	Params map[string]any
}

type NamedLoader = component.NamedLoader[Source, Config]
type Loader = component.Loader[Source, Config]
type Registry component.Registry[Source, Config]

var ErrUnsupportedSource = errors.New("unsupported source")

func NewRegistry(namedLoaders ...NamedLoader) Registry {
	return Registry(component.NewRegistry(namedLoaders...))
}

func (r Registry) Get(name string) (Loader, error) {
	loader, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("unsupported source %q, %w", name, ErrUnsupportedSource)
	}

	return loader, nil
}

func (r Registry) Names() []string {
	return component.Registry[Source, Config](r).Names()
}
