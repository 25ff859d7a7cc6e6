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


package config

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/agrea/ptr"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/topoengine/pkg/topology"
)

const (
	configTemplate = `
http:
  port: 49021
  ssl: true
compute_delay: 15s
multipath: true
traffic_spreading: true
route_cache_size: 50
source: model
source_params:
  model_path: /etc/topoengine/model.yaml
ssl:
  cert: %s
  key: %s
  ca_cert: %s
`

	minimalConfig = `
http:
  port: 49021
`
)

func tempFile(t *testing.T, pattern, content string) string {
	file, err := os.CreateTemp("", pattern)
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Remove(file.Name()) })
	defer func() { _ = file.Close() }()

	_, err = file.WriteString(content)
	require.NoError(t, err)
	return file.Name()
}

func TestConfig(t *testing.T) {
	cert := tempFile(t, "test-cert-*.yml", "")
	key := tempFile(t, "test-key-*.yml", "")
	caCert := tempFile(t, "test-ca-cert-*.yml", "")
	fname := tempFile(t, "test-cfg-*.yml", fmt.Sprintf(configTemplate, cert, key, caCert))

	cfg, err := NewFromFile(fname)
	require.NoError(t, err)

	expected := &Config{
		HTTP: Endpoint{
			Port: 49021,
			SSL:  true,
		},
		ComputeDelay:     15 * time.Second,
		Multipath:        true,
		TrafficSpreading: true,
		RouteCacheSize:   ptr.Int(50),
		Source:           "model",
		SourceParams:     map[string]any{"model_path": "/etc/topoengine/model.yaml"},
		SSL: &SSL{
			Cert:   cert,
			Key:    key,
			CaCert: caCert,
		},
	}
	require.Equal(t, expected, cfg)
	require.Equal(t, topology.Options{Multipath: true, TrafficSpreading: true, RouteCacheSize: 50}, cfg.Options())
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := NewFromFile(tempFile(t, "test-cfg-*.yml", minimalConfig))
	require.NoError(t, err)

	require.Equal(t, DefaultComputeDelay, cfg.ComputeDelay)
	require.Equal(t, ptr.Int(topology.DefaultRouteCacheSize), cfg.RouteCacheSize)
	require.Equal(t, topology.Options{RouteCacheSize: topology.DefaultRouteCacheSize}, cfg.Options())

	_, err = NewFromFile("/a/b/c")
	require.ErrorContains(t, err, "failed to read /a/b/c")

	_, err = NewFromFile(tempFile(t, "test-cfg-*.yml", "http: [1"))
	require.ErrorContains(t, err, "failed to parse")
}

func TestValidate(t *testing.T) {
	cert := tempFile(t, "test-cert-*.yml", "")
	key := tempFile(t, "test-key-*.yml", "")
	caCert := tempFile(t, "test-ca-cert-*.yml", "")

	testCases := []struct {
		name string
		cfg  Config
		err  string
	}{
		{
			name: "Case 1: missing port",
			err:  "port is not set",
		},
		{
			name: "Case 2.1: port out of range",
			cfg: Config{
				HTTP: Endpoint{Port: 70000},
			},
			err: "invalid http.port: must be lte 65535",
		},
		{
			name: "Case 2.2: bad route cache size",
			cfg: Config{
				HTTP:           Endpoint{Port: 1},
				RouteCacheSize: ptr.Int(0),
			},
			err: "invalid route_cache_size: must be gte 1",
		},
		{
			name: "Case 2.3: negative compute delay",
			cfg: Config{
				HTTP:         Endpoint{Port: 1},
				ComputeDelay: -time.Second,
			},
			err: "invalid compute_delay: must be gte 0",
		},
		{
			name: "Case 3: missing ssl section",
			cfg: Config{
				HTTP: Endpoint{
					Port: 1,
					SSL:  true,
				},
			},
			err: "missing ssl section",
		},
		{
			name: "Case 4.1: missing server certificate",
			cfg: Config{
				HTTP: Endpoint{
					Port: 1,
					SSL:  true,
				},
				SSL: &SSL{},
			},
			err: "missing filename for server certificate",
		},
		{
			name: "Case 4.2: missing server key",
			cfg: Config{
				HTTP: Endpoint{
					Port: 1,
					SSL:  true,
				},
				SSL: &SSL{
					Cert: cert,
				},
			},
			err: "missing filename for server key",
		},
		{
			name: "Case 4.3: missing CA certificate",
			cfg: Config{
				HTTP: Endpoint{
					Port: 1,
					SSL:  true,
				},
				SSL: &SSL{
					Cert: cert,
					Key:  key,
				},
			},
			err: "missing filename for CA certificate",
		},
		{
			name: "Case 5.1: valid input with cert",
			cfg: Config{
				HTTP: Endpoint{
					Port: 1,
					SSL:  true,
				},
				ComputeDelay: time.Second,
				SSL: &SSL{
					Cert:   cert,
					Key:    key,
					CaCert: caCert,
				},
			},
		},
		{
			name: "Case 5.2: valid input without cert",
			cfg: Config{
				HTTP: Endpoint{
					Port: 1,
				},
				RouteCacheSize: ptr.Int(10),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.validate()
			if len(tc.err) != 0 {
				require.EqualError(t, err, tc.err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateFile(t *testing.T) {
	testCases := []struct {
		name     string
		fname    string
		generate bool
		descr    string
		err      string
	}{
		{
			name:  "Case 1: missing filename",
			descr: "test file",
			err:   "missing filename for test file",
		},
		{
			name:  "Case 2: no file",
			fname: "/a/b/c",
			descr: "test file",
			err:   "failed to validate /a/b/c: stat /a/b/c: no such file or directory",
		},
		{
			name:     "Case 3: valid input",
			generate: true,
			descr:    "test file",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.generate {
				tc.fname = tempFile(t, "test-*", "")
			}
			err := ValidateFile(tc.fname, tc.descr)
			if len(tc.err) != 0 {
				require.EqualError(t, err, tc.err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
