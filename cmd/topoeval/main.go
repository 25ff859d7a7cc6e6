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


package main

import (
	"encoding/json"
	goflag "flag"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"

	"github.com/NVIDIA/topoengine/pkg/models"
	"github.com/NVIDIA/topoengine/pkg/topology"
)

// topoeval computes a topology from a model file offline and prints the
// result, or the routes between two switches.
func main() {
	if err := mainInternal(); err != nil {
		klog.Error(err.Error())
		os.Exit(1)
	}
}

type params struct {
	modelPath string
	output    string
	format    string
	src       string
	dst       string
	srcPort   uint16
	dstPort   uint16
	opts      topology.Options
}

func mainInternal() error {
	var p params
	flag.StringVarP(&p.modelPath, "model", "m", "", "network model file")
	flag.StringVarP(&p.output, "output", "o", "", "output file (default stdout)")
	flag.StringVarP(&p.format, "format", "f", "yaml", "output format: yaml or json")
	flag.StringVar(&p.src, "src", "", "source switch; prints routes instead of the topology")
	flag.StringVar(&p.dst, "dst", "", "destination switch")
	flag.Uint16Var(&p.srcPort, "src-port", 0, "source port; with --dst-port prints the port-to-port route")
	flag.Uint16Var(&p.dstPort, "dst-port", 0, "destination port")
	flag.BoolVar(&p.opts.Multipath, "multipath", false, "keep all equal-cost paths")
	flag.BoolVar(&p.opts.TrafficSpreading, "traffic-spreading", false, "spread traffic over equal cluster ports")
	flag.IntVar(&p.opts.RouteCacheSize, "route-cache-size", topology.DefaultRouteCacheSize, "route cache size")

	klog.InitFlags(nil)
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	flag.Parse()
	defer klog.Flush()

	if len(p.modelPath) == 0 {
		return fmt.Errorf("must specify network model path")
	}

	model, err := models.NewModelFromFile(p.modelPath)
	if err != nil {
		return err
	}
	snap, err := model.ToSnapshot()
	if err != nil {
		return err
	}

	t := topology.NewInstance(snap, p.opts)
	t.Compute()

	result, err := evaluate(t, &p)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if len(p.output) != 0 {
		file, err := os.Create(p.output)
		if err != nil {
			return fmt.Errorf("failed to create %q: %v", p.output, err)
		}
		defer func() { _ = file.Close() }()
		out = file
	}

	return write(out, p.format, result)
}

func evaluate(t *topology.Instance, p *params) (any, error) {
	if len(p.src) == 0 && len(p.dst) == 0 {
		return t.Dump(), nil
	}

	src, err := topology.ParseSwitchID(p.src)
	if err != nil {
		return nil, err
	}
	dst, err := topology.ParseSwitchID(p.dst)
	if err != nil {
		return nil, err
	}

	var routes []*topology.Route
	if p.srcPort != 0 && p.dstPort != 0 {
		if r := t.GetPortRoute(src, topology.PortID(p.srcPort), dst, topology.PortID(p.dstPort), 0); r != nil {
			routes = append(routes, r)
		}
	} else {
		routes = t.GetRoutes(src, dst)
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("no route from %s to %s", src, dst)
	}

	paths := make([][]string, 0, len(routes))
	for _, r := range routes {
		hops := make([]string, 0, len(r.Path))
		for _, npt := range r.Path {
			hops = append(hops, npt.String())
		}
		paths = append(paths, hops)
	}
	return map[string]any{
		"src":    src.String(),
		"dst":    dst.String(),
		"cost":   t.GetCost(src, dst),
		"routes": paths,
	}, nil
}

func write(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}
