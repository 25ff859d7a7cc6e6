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
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/topoengine/tests"
)

func TestSourceNames(t *testing.T) {
	require.Equal(t, []string{"model", "remote", "test"}, SourceNames())
}

func TestGetSource(t *testing.T) {
	testCases := []struct {
		name   string
		source string
		params map[string]any
		code   int
		err    string
	}{
		{
			name:   "Case 1: unsupported source",
			source: "bad",
			code:   http.StatusBadRequest,
			err:    `unsupported source "bad", unsupported source`,
		},
		{
			name:   "Case 2: model source without path",
			source: "model",
			code:   http.StatusBadRequest,
			err:    `source "model": missing model_path`,
		},
		{
			name:   "Case 3: unknown parameter",
			source: "test",
			params: map[string]any{"model": "x"},
			code:   http.StatusBadRequest,
			err:    `source "test": error decoding params`,
		},
		{
			name:   "Case 4: model source",
			source: "model",
			params: map[string]any{"model_path": tests.GetModelFilePath("line.yaml")},
		},
		{
			name:   "Case 5: test source",
			source: "test",
			params: map[string]any{"multipath": true},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.TODO()
			src, httpErr := GetSource(ctx, tc.source, tc.params)
			if len(tc.err) != 0 {
				require.NotNil(t, httpErr)
				require.Equal(t, tc.code, httpErr.Code())
				require.Contains(t, httpErr.Error(), tc.err)
				return
			}
			require.Nil(t, httpErr)
			snap, err := src.Snapshot(ctx)
			require.NoError(t, err)
			require.NotEmpty(t, snap.Switches())
		})
	}
}
