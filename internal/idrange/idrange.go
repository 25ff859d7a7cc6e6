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
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Compact compresses a list of ids into a range expression, e.g. "[1-4,9]".
// A single id is returned without brackets.
func Compact(ids []uint64) string {
	if len(ids) == 0 {
		return ""
	}
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	if len(sorted) == 1 {
		return strconv.FormatUint(sorted[0], 10)
	}

	var parts []string
	start, end := sorted[0], sorted[0]
	for _, id := range sorted[1:] {
		if id == end+1 {
			end = id
			continue
		}
		parts = append(parts, formatRange(start, end))
		start, end = id, id
	}
	parts = append(parts, formatRange(start, end))

	return "[" + strings.Join(parts, ",") + "]"
}

// Expand parses a range expression produced by Compact. Brackets are
// optional, and ids may be decimal or 0x-prefixed hex.
func Expand(expr string) ([]uint64, error) {
	expr = strings.TrimSpace(expr)
	expr = strings.TrimSuffix(strings.TrimPrefix(expr, "["), "]")
	if len(expr) == 0 {
		return nil, nil
	}

	var result []uint64
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		bounds := strings.SplitN(part, "-", 2)

		first, err := parse(bounds[0])
		if err != nil {
			return nil, err
		}
		last := first
		if len(bounds) == 2 {
			if last, err = parse(bounds[1]); err != nil {
				return nil, err
			}
		}
		if last < first {
			return nil, fmt.Errorf("invalid range %q", part)
		}
		for id := first; ; id++ {
			result = append(result, id)
			if id == last {
				break
			}
		}
	}
	return result, nil
}

func formatRange(start, end uint64) string {
	if start == end {
		return strconv.FormatUint(start, 10)
	}
	return fmt.Sprintf("%d-%d", start, end)
}

func parse(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %v", s, err)
	}
	return id, nil
}
