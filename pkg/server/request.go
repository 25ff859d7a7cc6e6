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


package server

import (
	"fmt"

	"sigs.k8s.io/yaml"

	"github.com/NVIDIA/topoengine/pkg/models"
)

// SnapshotRequest asks the engine to recompute the topology, either from
// a named source or from an inline network model. The body may be JSON
// or YAML.
type SnapshotRequest struct {
	Source *SourceSpec   `json:"source,omitempty"`
	Model  *models.Model `json:"model,omitempty"`
}

type SourceSpec struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// SnapshotResult summarizes a computed topology instance.
type SnapshotResult struct {
	Switches         int `json:"switches"`
	Clusters         int `json:"clusters"`
	BroadcastDomains int `json:"broadcastDomains"`
	BlockedPorts     int `json:"blockedPorts"`
}

func GetSnapshotRequest(body []byte) (*SnapshotRequest, error) {
	var sr SnapshotRequest
	if err := yaml.UnmarshalStrict(body, &sr); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot request: %v", err)
	}
	if sr.Source != nil && sr.Model != nil {
		return nil, fmt.Errorf("snapshot request cannot have both source and model")
	}
	if sr.Source != nil && len(sr.Source.Name) == 0 {
		return nil, fmt.Errorf("missing source name")
	}
	return &sr, nil
}

func (sr *SnapshotRequest) String() string {
	switch {
	case sr.Source != nil:
		return fmt.Sprintf("Snapshot request: source %s params %v", sr.Source.Name, sr.Source.Params)
	case sr.Model != nil:
		return fmt.Sprintf("Snapshot request: model with %d switch entries and %d links",
			len(sr.Model.Switches), len(sr.Model.Links))
	default:
		return "Snapshot request: default source"
	}
}
