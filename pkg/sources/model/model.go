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


package model

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/NVIDIA/topoengine/internal/config"
	"github.com/NVIDIA/topoengine/pkg/models"
	"github.com/NVIDIA/topoengine/pkg/sources"
	"github.com/NVIDIA/topoengine/pkg/topology"
)

const NAME = "model"

// Source reads the network description from a model file on every snapshot,
// so edits to the file are picked up by the next submission.
type Source struct {
	path string
}

type Params struct {
	ModelPath string `mapstructure:"model_path"`
}

func NamedLoader() (string, sources.Loader) {
	return NAME, Loader
}

func Loader(_ context.Context, cfg sources.Config) (sources.Source, error) {
	var p Params
	if err := config.Decode(cfg.Params, &p); err != nil {
		return nil, fmt.Errorf("error decoding params: %v", err)
	}
	if len(p.ModelPath) == 0 {
		return nil, fmt.Errorf("missing model_path")
	}
	return &Source{path: p.ModelPath}, nil
}

func (s *Source) Snapshot(_ context.Context) (*topology.Snapshot, error) {
	klog.InfoS("Loading network model", "path", s.path)
	model, err := models.NewModelFromFile(s.path)
	if err != nil {
		return nil, err
	}
	return model.ToSnapshot()
}
