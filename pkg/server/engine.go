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
	"context"
	"net/http"

	"k8s.io/klog/v2"

	"github.com/NVIDIA/topoengine/internal/httperr"
	"github.com/NVIDIA/topoengine/pkg/factory"
	"github.com/NVIDIA/topoengine/pkg/metrics"
	"github.com/NVIDIA/topoengine/pkg/topology"
)

const sourceInline = "inline"

type asyncController struct {
	queue *TrailingDelayQueue
}

func (s *HttpServer) processRequest(item any) (any, *httperr.Error) {
	sr := item.(*SnapshotRequest)

	name, snap, err := s.getSnapshot(s.ctx, sr)
	metrics.AddSnapshot(name, err == nil)
	if err != nil {
		return nil, err
	}

	t := s.engine.Update(snap)
	dump := t.Dump()

	return &SnapshotResult{
		Switches:         len(t.Switches()),
		Clusters:         len(dump.Clusters),
		BroadcastDomains: len(dump.BroadcastDomains),
		BlockedPorts:     len(dump.BlockedPorts),
	}, nil
}

// getSnapshot resolves the snapshot of a request. Requests without a model
// or source use the source from the config file.
func (s *HttpServer) getSnapshot(ctx context.Context, sr *SnapshotRequest) (string, *topology.Snapshot, *httperr.Error) {
	if sr.Model != nil {
		snap, err := sr.Model.ToSnapshot()
		if err != nil {
			klog.Error(err.Error())
			return sourceInline, nil, httperr.NewError(http.StatusBadRequest, err.Error())
		}
		return sourceInline, snap, nil
	}

	name, params := s.cfg.Source, s.cfg.SourceParams
	if sr.Source != nil {
		name, params = sr.Source.Name, sr.Source.Params
	}
	if len(name) == 0 {
		return name, nil, httperr.NewError(http.StatusBadRequest, "missing snapshot source")
	}
	klog.InfoS("Taking network snapshot", "source", name)

	src, httpErr := factory.GetSource(ctx, name, params)
	if httpErr != nil {
		klog.Error(httpErr.Error())
		return name, nil, httpErr
	}

	snap, err := src.Snapshot(ctx)
	if err != nil {
		klog.Error(err.Error())
		return name, nil, httperr.NewError(http.StatusInternalServerError, err.Error())
	}

	return name, snap, nil
}
