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

package topology

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

const (
	MaxLinkWeight = 10000
	// MaxPathWeight marks a node as unreachable in a routing tree.
	MaxPathWeight = (1<<31 - 1) - MaxLinkWeight - 1

	DefaultRouteCacheSize = 1000
)

// SwitchID is an OpenFlow datapath id.
type SwitchID uint64

// PortID is a switch-local port number.
type PortID uint16

func (s SwitchID) String() string {
	var sb strings.Builder
	for i := 7; i >= 0; i-- {
		fmt.Fprintf(&sb, "%02x", byte(uint64(s)>>(8*i)))
		if i > 0 {
			sb.WriteByte(':')
		}
	}
	return sb.String()
}

// ParseSwitchID accepts a colon-separated hex datapath id
// ("00:00:00:00:00:00:00:01") or a plain decimal or 0x-prefixed number.
func ParseSwitchID(str string) (SwitchID, error) {
	str = strings.TrimSpace(str)
	if strings.Contains(str, ":") {
		parts := strings.Split(str, ":")
		if len(parts) > 8 {
			return 0, fmt.Errorf("invalid switch id %q", str)
		}
		var id uint64
		for _, part := range parts {
			b, err := strconv.ParseUint(part, 16, 8)
			if err != nil {
				return 0, fmt.Errorf("invalid switch id %q: %v", str, err)
			}
			id = id<<8 | b
		}
		return SwitchID(id), nil
	}
	id, err := strconv.ParseUint(str, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid switch id %q: %v", str, err)
	}
	return SwitchID(id), nil
}

// ParsePortID parses a decimal port number.
func ParsePortID(str string) (PortID, error) {
	port, err := strconv.ParseUint(strings.TrimSpace(str), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %v", str, err)
	}
	return PortID(port), nil
}

// NodePortTuple addresses a single port of a switch.
type NodePortTuple struct {
	Switch SwitchID `json:"switch" yaml:"switch"`
	Port   PortID   `json:"port" yaml:"port"`
}

func NewNodePortTuple(sw SwitchID, port PortID) NodePortTuple {
	return NodePortTuple{Switch: sw, Port: port}
}

func (n NodePortTuple) Compare(o NodePortTuple) int {
	if c := cmp.Compare(n.Switch, o.Switch); c != 0 {
		return c
	}
	return cmp.Compare(n.Port, o.Port)
}

// ParseNodePortTuple parses the "switch|port" form produced by String.
func ParseNodePortTuple(str string) (NodePortTuple, error) {
	idx := strings.LastIndex(str, "|")
	if idx < 0 {
		return NodePortTuple{}, fmt.Errorf("invalid switch port %q", str)
	}
	sw, err := ParseSwitchID(str[:idx])
	if err != nil {
		return NodePortTuple{}, err
	}
	port, err := ParsePortID(str[idx+1:])
	if err != nil {
		return NodePortTuple{}, err
	}
	return NodePortTuple{Switch: sw, Port: port}, nil
}

func (n NodePortTuple) String() string {
	return fmt.Sprintf("%s|%d", n.Switch, n.Port)
}

// Link is a directed edge between two switch ports.
type Link struct {
	Src     SwitchID `json:"src" yaml:"src"`
	SrcPort PortID   `json:"src_port" yaml:"src_port"`
	Dst     SwitchID `json:"dst" yaml:"dst"`
	DstPort PortID   `json:"dst_port" yaml:"dst_port"`
}

func NewLink(src SwitchID, srcPort PortID, dst SwitchID, dstPort PortID) Link {
	return Link{Src: src, SrcPort: srcPort, Dst: dst, DstPort: dstPort}
}

func (l Link) SrcNodePort() NodePortTuple {
	return NodePortTuple{Switch: l.Src, Port: l.SrcPort}
}

func (l Link) DstNodePort() NodePortTuple {
	return NodePortTuple{Switch: l.Dst, Port: l.DstPort}
}

// Reverse returns the link in the opposite direction.
func (l Link) Reverse() Link {
	return Link{Src: l.Dst, SrcPort: l.DstPort, Dst: l.Src, DstPort: l.SrcPort}
}

// Compare orders links by source switch, source port, destination switch
// and destination port. Equal-cost next hops are sorted with it.
func (l Link) Compare(o Link) int {
	if c := cmp.Compare(l.Src, o.Src); c != 0 {
		return c
	}
	if c := cmp.Compare(l.SrcPort, o.SrcPort); c != 0 {
		return c
	}
	if c := cmp.Compare(l.Dst, o.Dst); c != 0 {
		return c
	}
	return cmp.Compare(l.DstPort, o.DstPort)
}

func (l Link) String() string {
	return fmt.Sprintf("%s:%d->%s:%d", l.Src, l.SrcPort, l.Dst, l.DstPort)
}

// NodeKey is the dense key of a cluster or broadcast domain in the
// higher-level topology. Keys start at 1.
type NodeKey int64

// OrderedNodePair is a directed pair of higher-level nodes.
type OrderedNodePair struct {
	Src NodeKey
	Dst NodeKey
}

func (p OrderedNodePair) Reverse() OrderedNodePair {
	return OrderedNodePair{Src: p.Dst, Dst: p.Src}
}

func (p OrderedNodePair) Compare(o OrderedNodePair) int {
	if c := cmp.Compare(p.Src, o.Src); c != 0 {
		return c
	}
	return cmp.Compare(p.Dst, o.Dst)
}

func (p OrderedNodePair) String() string {
	return fmt.Sprintf("[%d,%d]", p.Src, p.Dst)
}

// RouteID identifies a cached route. The cookie selects among equal-cost paths.
type RouteID struct {
	Src    SwitchID
	Dst    SwitchID
	Cookie int64
}

func (r RouteID) String() string {
	return fmt.Sprintf("%s->%s/%d", r.Src, r.Dst, r.Cookie)
}

// Route is an ordered, loop-free sequence of switch ports.
// RouteCount is the largest number of equal-cost choices seen at any hop.
type Route struct {
	ID         RouteID
	Path       []NodePortTuple
	RouteCount int
}

func (r *Route) String() string {
	hops := make([]string, 0, len(r.Path))
	for _, npt := range r.Path {
		hops = append(hops, npt.String())
	}
	return fmt.Sprintf("Route %s count=%d [%s]", r.ID, r.RouteCount, strings.Join(hops, " "))
}

// Clone returns a deep copy of r.
func (r *Route) Clone() *Route {
	if r == nil {
		return nil
	}
	return &Route{ID: r.ID, Path: slices.Clone(r.Path), RouteCount: r.RouteCount}
}

// Equal reports whether two routes traverse the same ports.
func (r *Route) Equal(o *Route) bool {
	if r == nil || o == nil {
		return r == o
	}
	if len(r.Path) != len(o.Path) {
		return false
	}
	for i := range r.Path {
		if r.Path[i] != o.Path[i] {
			return false
		}
	}
	return true
}
