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


package remote

import (
	"context"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/NVIDIA/topoengine/internal/config"
	"github.com/NVIDIA/topoengine/internal/httpreq"
	"github.com/NVIDIA/topoengine/pkg/models"
	"github.com/NVIDIA/topoengine/pkg/sources"
	"github.com/NVIDIA/topoengine/pkg/topology"
)

const NAME = "remote"

// Source downloads the network model from an HTTP endpoint, such as an
// inventory service or a controller exporting its link database.
type Source struct {
	url    string
	client *httpreq.Client
}

type Params struct {
	URL                string        `mapstructure:"url"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	Retries            int           `mapstructure:"retries"`
	BackOff            time.Duration `mapstructure:"backoff"`
}

func NamedLoader() (string, sources.Loader) {
	return NAME, Loader
}

func Loader(_ context.Context, cfg sources.Config) (sources.Source, error) {
	p := Params{
		Retries: httpreq.DefaultMaxRetries,
		BackOff: httpreq.DefaultBackOff,
	}
	if err := config.Decode(cfg.Params, &p); err != nil {
		return nil, fmt.Errorf("error decoding params: %v", err)
	}
	if len(p.URL) == 0 {
		return nil, fmt.Errorf("missing url")
	}

	return &Source{
		url:    p.URL,
		client: httpreq.NewClient(p.InsecureSkipVerify).WithRetries(p.Retries, p.BackOff),
	}, nil
}

func (s *Source) Snapshot(ctx context.Context) (*topology.Snapshot, error) {
	klog.InfoS("Downloading network model", "url", s.url)
	data, httpErr := s.client.Get(ctx, s.url, nil)
	if httpErr != nil {
		return nil, fmt.Errorf("failed to download %s: %v", s.url, httpErr)
	}

	model, err := models.NewModelFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %v", s.url, err)
	}
	return model.ToSnapshot()
}
