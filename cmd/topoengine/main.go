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
	"context"
	goflag "flag"
	"fmt"
	"os"
	"syscall"

	"github.com/oklog/run"
	flag "github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/NVIDIA/topoengine/internal/version"
	"github.com/NVIDIA/topoengine/pkg/config"
	"github.com/NVIDIA/topoengine/pkg/engine"
	"github.com/NVIDIA/topoengine/pkg/factory"
	"github.com/NVIDIA/topoengine/pkg/server"
)

func main() {
	var cfg string
	var ver bool
	flag.StringVarP(&cfg, "config", "c", "/etc/topoengine/topoengine-config.yaml", "config file")
	flag.BoolVar(&ver, "version", false, "show the version")

	klog.InitFlags(nil)
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	flag.Parse()
	defer klog.Flush()

	if ver {
		fmt.Println("Version:", version.Version)
		os.Exit(0)
	}

	if err := mainInternal(cfg); err != nil {
		klog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInternal(c string) error {
	cfg, err := config.NewFromFile(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := engine.New(cfg.Options())

	// compute the initial topology from the configured source
	if len(cfg.Source) != 0 {
		src, httpErr := factory.GetSource(ctx, cfg.Source, cfg.SourceParams)
		if httpErr != nil {
			return fmt.Errorf("%s; supported sources: %v", httpErr.Error(), factory.SourceNames())
		}
		snap, err := src.Snapshot(ctx)
		if err != nil {
			return err
		}
		eng.Update(snap)
	}

	server.InitHttpServer(ctx, cfg, eng)

	var g run.Group
	// Signal handler
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	// HTTP endpoint
	g.Add(server.GetRunGroup())

	return g.Run()
}
