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


package component_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/topoengine/internal/component"
)

type params struct {
	Size int
}

type Loader = component.Loader[string, params]

func namedLine() (string, Loader) {
	return "line", line
}

func line(_ context.Context, p params) (string, error) {
	return fmt.Sprintf("line/%d", p.Size), nil
}

func namedRing() (string, Loader) {
	return "ring", ring
}

func ring(_ context.Context, p params) (string, error) {
	if p.Size < 3 {
		return "", fmt.Errorf("ring needs at least 3 switches")
	}
	return fmt.Sprintf("ring/%d", p.Size), nil
}

func star(_ context.Context, p params) (string, error) {
	return fmt.Sprintf("star/%d", p.Size), nil
}

func TestRegistry(t *testing.T) {
	reg := component.NewRegistry(
		namedLine,
		namedRing,
		component.Named("star", star),
	)
	ctx := context.TODO()

	require.Equal(t, []string{"line", "ring", "star"}, reg.Names())

	f1 := reg["line"]
	require.NotNil(t, f1)
	v1, err := f1(ctx, params{Size: 2})
	assert.NoError(t, err)
	assert.Equal(t, "line/2", v1)

	f2 := reg["ring"]
	require.NotNil(t, f2)
	_, err = f2(ctx, params{Size: 2})
	assert.EqualError(t, err, "ring needs at least 3 switches")
	v2, err := f2(ctx, params{Size: 4})
	assert.NoError(t, err)
	assert.Equal(t, "ring/4", v2)

	f3 := reg["star"]
	require.NotNil(t, f3)
	v3, err := f3(ctx, params{Size: 5})
	assert.NoError(t, err)
	assert.Equal(t, "star/5", v3)

	// re-registering a name replaces its loader
	reg.Register(component.Named("line", star))
	v1, err = reg["line"](ctx, params{Size: 1})
	assert.NoError(t, err)
	assert.Equal(t, "star/1", v1)
	require.Len(t, reg.Names(), 3)
}
