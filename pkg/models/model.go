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


package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/NVIDIA/topoengine/internal/idrange"
	"github.com/NVIDIA/topoengine/pkg/topology"
)

// Model is a declarative network description. Switch ports are written
// as "switch|port", where switch is a decimal, 0x-prefixed or colon-hex
// datapath id.
type Model struct {
	Switches         []*Switch          `yaml:"switches" json:"switches,omitempty"`
	Links            []*Link            `yaml:"links" json:"links,omitempty"`
	BlockedPorts     []string           `yaml:"blocked_ports" json:"blocked_ports,omitempty"`
	BroadcastDomains []*BroadcastDomain `yaml:"broadcast_domains" json:"broadcast_domains,omitempty"`
	TunnelPorts      []string           `yaml:"tunnel_ports" json:"tunnel_ports,omitempty"`
	TunnelDomain     string             `yaml:"tunnel_domain,omitempty" json:"tunnel_domain,omitempty"`
}

// Switch declares one or more switches sharing the same port range.
type Switch struct {
	IDs   string `yaml:"ids" json:"ids"`
	Ports string `yaml:"ports,omitempty" json:"ports,omitempty"`
}

// Link is bidirectional unless Directed is set.
type Link struct {
	Src      string `yaml:"src" json:"src"`
	Dst      string `yaml:"dst" json:"dst"`
	Directed bool   `yaml:"directed,omitempty" json:"directed,omitempty"`
}

type BroadcastDomain struct {
	ID    int64    `yaml:"id" json:"id"`
	Ports []string `yaml:"ports" json:"ports"`
}

func NewModelFromFile(fname string) (*Model, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", fname, err)
	}

	model, err := NewModelFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %v", fname, err)
	}

	return model, nil
}

func NewModelFromData(data []byte) (*Model, error) {
	model := &Model{}
	if err := yaml.Unmarshal(data, model); err != nil {
		return nil, err
	}
	return model, nil
}

// ToSnapshot validates the model and converts it into a topology snapshot.
func (m *Model) ToSnapshot() (*topology.Snapshot, error) {
	snap := topology.NewSnapshot()

	for _, sw := range m.Switches {
		ids, err := idrange.Expand(sw.IDs)
		if err != nil {
			return nil, fmt.Errorf("switches %q: %v", sw.IDs, err)
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("switch entry has no ids")
		}
		ports, err := idrange.Expand(sw.Ports)
		if err != nil {
			return nil, fmt.Errorf("ports %q: %v", sw.Ports, err)
		}
		portIDs := make([]topology.PortID, 0, len(ports))
		for _, port := range ports {
			if port > 0xffff {
				return nil, fmt.Errorf("port %d of switches %q is out of range", port, sw.IDs)
			}
			portIDs = append(portIDs, topology.PortID(port))
		}
		for _, id := range ids {
			snap.AddSwitch(topology.SwitchID(id), portIDs...)
		}
	}

	for _, l := range m.Links {
		src, err := topology.ParseNodePortTuple(l.Src)
		if err != nil {
			return nil, fmt.Errorf("link source: %v", err)
		}
		dst, err := topology.ParseNodePortTuple(l.Dst)
		if err != nil {
			return nil, fmt.Errorf("link destination: %v", err)
		}
		if src == dst {
			return nil, fmt.Errorf("link %s connects a port to itself", l.Src)
		}
		link := topology.NewLink(src.Switch, src.Port, dst.Switch, dst.Port)
		if l.Directed {
			snap.AddLink(link)
		} else {
			snap.AddBidirectionalLink(link)
		}
	}

	blocked, err := parsePorts(m.BlockedPorts)
	if err != nil {
		return nil, fmt.Errorf("blocked ports: %v", err)
	}
	for _, npt := range blocked {
		snap.BlockPort(npt)
	}

	domains := make(map[int64]bool)
	owner := make(map[topology.NodePortTuple]int64)
	for _, bd := range m.BroadcastDomains {
		if domains[bd.ID] {
			return nil, fmt.Errorf("duplicated broadcast domain %d", bd.ID)
		}
		domains[bd.ID] = true

		ports, err := parsePorts(bd.Ports)
		if err != nil {
			return nil, fmt.Errorf("broadcast domain %d: %v", bd.ID, err)
		}
		for _, npt := range ports {
			// a port cannot be attached to more than one segment
			if id, ok := owner[npt]; ok {
				return nil, fmt.Errorf("port %s is in broadcast domains %d and %d", npt, id, bd.ID)
			}
			owner[npt] = bd.ID
		}
		snap.AddBroadcastDomain(bd.ID, ports...)
	}

	tunnels, err := parsePorts(m.TunnelPorts)
	if err != nil {
		return nil, fmt.Errorf("tunnel ports: %v", err)
	}
	for _, npt := range tunnels {
		snap.AddTunnelPort(npt)
	}

	if len(m.TunnelDomain) != 0 {
		td, err := topology.ParseSwitchID(m.TunnelDomain)
		if err != nil {
			return nil, fmt.Errorf("tunnel domain: %v", err)
		}
		snap.TunnelDomain = &td
	}

	return snap, nil
}

func parsePorts(ports []string) ([]topology.NodePortTuple, error) {
	result := make([]topology.NodePortTuple, 0, len(ports))
	for _, str := range ports {
		npt, err := topology.ParseNodePortTuple(str)
		if err != nil {
			return nil, err
		}
		result = append(result, npt)
	}
	return result, nil
}
