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
	"reflect"
	"strings"
	"time"

	"github.com/agrea/ptr"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/NVIDIA/topoengine/pkg/topology"
)

const DefaultComputeDelay = time.Second

type Config struct {
	HTTP             Endpoint       `yaml:"http"`
	ComputeDelay     time.Duration  `yaml:"compute_delay" validate:"gte=0"`
	Multipath        bool           `yaml:"multipath"`
	TrafficSpreading bool           `yaml:"traffic_spreading"`
	RouteCacheSize   *int           `yaml:"route_cache_size,omitempty" validate:"omitempty,gte=1"`
	Source           string         `yaml:"source,omitempty"`
	SourceParams     map[string]any `yaml:"source_params,omitempty"`
	SSL              *SSL           `yaml:"ssl,omitempty"`
}

type Endpoint struct {
	Port int  `yaml:"port" validate:"lte=65535"`
	SSL  bool `yaml:"ssl"`
}

type SSL struct {
	Cert   string `yaml:"cert"`
	Key    string `yaml:"key"`
	CaCert string `yaml:"ca_cert"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report yaml field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func NewFromFile(fname string) (*Config, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", fname, err)
	}

	cfg := Config{ComputeDelay: DefaultComputeDelay}
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %v", fname, err)
	}

	if cfg.RouteCacheSize == nil {
		cfg.RouteCacheSize = ptr.Int(topology.DefaultRouteCacheSize)
	}

	if err = cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Options returns the topology computation flags of the configuration.
func (cfg *Config) Options() topology.Options {
	opts := topology.Options{
		Multipath:        cfg.Multipath,
		TrafficSpreading: cfg.TrafficSpreading,
	}
	if cfg.RouteCacheSize != nil {
		opts.RouteCacheSize = *cfg.RouteCacheSize
	}
	return opts
}

func (cfg *Config) validate() error {
	if cfg.HTTP.Port == 0 {
		return fmt.Errorf("port is not set")
	}

	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if cfg.HTTP.SSL {
		if cfg.SSL == nil {
			return fmt.Errorf("missing ssl section")
		}
		if err := ValidateFile(cfg.SSL.Cert, "server certificate"); err != nil {
			return err
		}
		if err := ValidateFile(cfg.SSL.Key, "server key"); err != nil {
			return err
		}
		if err := ValidateFile(cfg.SSL.CaCert, "CA certificate"); err != nil {
			return err
		}
	}

	return nil
}

func formatValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("invalid %s: must be %s %s", strings.TrimPrefix(e.Namespace(), "Config."), e.Tag(), e.Param()))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

func ValidateFile(name, description string) error {
	if len(name) == 0 {
		return fmt.Errorf("missing filename for %s", description)
	}
	if _, err := os.Stat(name); err != nil {
		return fmt.Errorf("failed to validate %s: %v", name, err)
	}
	return nil
}
