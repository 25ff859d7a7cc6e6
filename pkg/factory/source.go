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


package factory

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/NVIDIA/topoengine/internal/httperr"
	"github.com/NVIDIA/topoengine/pkg/sources"
	"github.com/NVIDIA/topoengine/pkg/sources/model"
	"github.com/NVIDIA/topoengine/pkg/sources/remote"
	"github.com/NVIDIA/topoengine/pkg/sources/test"
)

var registry = sources.NewRegistry(
	model.NamedLoader,
	remote.NamedLoader,
	test.NamedLoader,
)

// GetSource instantiates the named snapshot source.
func GetSource(ctx context.Context, name string, params map[string]any) (sources.Source, *httperr.Error) {
	loader, err := registry.Get(name)
	if err != nil {
		if errors.Is(err, sources.ErrUnsupportedSource) {
			return nil, httperr.NewError(http.StatusBadRequest, err.Error())
		}
		return nil, httperr.NewError(http.StatusInternalServerError, err.Error())
	}

	src, err := loader(ctx, sources.Config{Params: params})
	if err != nil {
		return nil, httperr.NewError(http.StatusBadRequest, fmt.Sprintf("source %q: %v", name, err))
	}

	return src, nil
}

// SourceNames lists the supported snapshot sources.
func SourceNames() []string {
	return registry.Names()
}
