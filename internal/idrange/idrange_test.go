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

package idrange

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompactExpand(t *testing.T) {
	testCases := []struct {
		name      string
		expanded  []uint64
		compacted string
	}{
		{
			name: "Case 1: empty list",
		},
		{
			name:      "Case 2: single id",
			expanded:  []uint64{7},
			compacted: "7",
		},
		{
			name:      "Case 3: ranges",
			expanded:  []uint64{9, 1, 3, 2, 4, 12, 11},
			compacted: "[1-4,9,11-12]",
		},
		{
			name:      "Case 4: singles",
			expanded:  []uint64{5, 3},
			compacted: "[3,5]",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.compacted, Compact(tc.expanded))
			ids, err := Expand(tc.compacted)
			require.NoError(t, err)
			require.ElementsMatch(t, tc.expanded, ids)
		})
	}
}

func TestExpand(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		ids   []uint64
		err   string
	}{
		{
			name:  "Case 1: no brackets",
			input: "1-3,8",
			ids:   []uint64{1, 2, 3, 8},
		},
		{
			name:  "Case 2: hex ids",
			input: "[0x10-0x12]",
			ids:   []uint64{16, 17, 18},
		},
		{
			name:  "Case 3: bad id",
			input: "[1,x]",
			err:   `invalid id "x"`,
		},
		{
			name:  "Case 4: reversed range",
			input: "[5-2]",
			err:   `invalid range "5-2"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ids, err := Expand(tc.input)
			if len(tc.err) != 0 {
				require.ErrorContains(t, err, tc.err)
			} else {
				require.NoError(t, err)
				require.Equal(t, tc.ids, ids)
			}
		})
	}
}
