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
	"slices"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Snapshot is the full network state an Instance is computed from.
type Snapshot struct {
	// SwitchPorts holds the live ports of every switch
	SwitchPorts map[SwitchID]sets.Set[PortID]
	// BlockedPorts are administratively blocked switch ports
	BlockedPorts sets.Set[NodePortTuple]
	// PortLinks holds the links attached to a switch port, indexed by
	// both the source and the destination port of every link
	PortLinks map[NodePortTuple]sets.Set[Link]
	// BroadcastDomains group ports behind a shared L2 segment
	BroadcastDomains []*BroadcastDomain
	// TunnelPorts are tunnel endpoints, connected to TunnelDomain if set
	TunnelPorts  sets.Set[NodePortTuple]
	TunnelDomain *SwitchID
}

// Options are the per-instance computation flags.
type Options struct {
	Multipath        bool
	TrafficSpreading bool
	RouteCacheSize   int
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		SwitchPorts:  make(map[SwitchID]sets.Set[PortID]),
		BlockedPorts: sets.New[NodePortTuple](),
		PortLinks:    make(map[NodePortTuple]sets.Set[Link]),
		TunnelPorts:  sets.New[NodePortTuple](),
	}
}

// AddSwitch registers a switch and, optionally, some of its ports.
func (s *Snapshot) AddSwitch(sw SwitchID, ports ...PortID) {
	p, ok := s.SwitchPorts[sw]
	if !ok {
		p = sets.New[PortID]()
		s.SwitchPorts[sw] = p
	}
	p.Insert(ports...)
}

// AddLink registers a directed link under both of its ports.
func (s *Snapshot) AddLink(l Link) {
	s.AddSwitch(l.Src, l.SrcPort)
	s.AddSwitch(l.Dst, l.DstPort)
	for _, npt := range []NodePortTuple{l.SrcNodePort(), l.DstNodePort()} {
		links, ok := s.PortLinks[npt]
		if !ok {
			links = sets.New[Link]()
			s.PortLinks[npt] = links
		}
		links.Insert(l)
	}
}

// AddBidirectionalLink registers l and its reverse.
func (s *Snapshot) AddBidirectionalLink(l Link) {
	s.AddLink(l)
	s.AddLink(l.Reverse())
}

func (s *Snapshot) BlockPort(npt NodePortTuple) {
	s.BlockedPorts.Insert(npt)
}

func (s *Snapshot) AddTunnelPort(npt NodePortTuple) {
	s.TunnelPorts.Insert(npt)
}

// AddBroadcastDomain creates or extends the broadcast domain with the given id.
func (s *Snapshot) AddBroadcastDomain(id int64, ports ...NodePortTuple) {
	for _, bd := range s.BroadcastDomains {
		if bd.ID == id {
			bd.Ports.Insert(ports...)
			return
		}
	}
	s.BroadcastDomains = append(s.BroadcastDomains, NewBroadcastDomain(id, ports...))
}

// BroadcastDomainPorts returns every port that belongs to some broadcast domain.
func (s *Snapshot) BroadcastDomainPorts() sets.Set[NodePortTuple] {
	ports := sets.New[NodePortTuple]()
	for _, bd := range s.BroadcastDomains {
		if bd != nil {
			ports = ports.Union(bd.Ports)
		}
	}
	return ports
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	cp := NewSnapshot()
	if s == nil {
		return cp
	}
	for sw, ports := range s.SwitchPorts {
		cp.SwitchPorts[sw] = ports.Clone()
	}
	cp.BlockedPorts = s.BlockedPorts.Clone()
	for npt, links := range s.PortLinks {
		cp.PortLinks[npt] = links.Clone()
	}
	for _, bd := range s.BroadcastDomains {
		if bd != nil {
			cp.BroadcastDomains = append(cp.BroadcastDomains, NewBroadcastDomain(bd.ID, bd.Ports.UnsortedList()...))
		}
	}
	cp.TunnelPorts = s.TunnelPorts.Clone()
	if s.TunnelDomain != nil {
		td := *s.TunnelDomain
		cp.TunnelDomain = &td
	}
	return cp
}

// Switches returns the sorted switch ids of the snapshot.
func (s *Snapshot) Switches() []SwitchID {
	ids := make([]SwitchID, 0, len(s.SwitchPorts))
	for sw := range s.SwitchPorts {
		ids = append(ids, sw)
	}
	slices.Sort(ids)
	return ids
}

func sortedPorts(ports sets.Set[PortID]) []PortID {
	return sets.List(ports)
}

func sortedSwitches(ids sets.Set[SwitchID]) []SwitchID {
	return sets.List(ids)
}

func sortedNodeKeys(keys sets.Set[NodeKey]) []NodeKey {
	return sets.List(keys)
}

func sortedNodePorts(ports sets.Set[NodePortTuple]) []NodePortTuple {
	list := ports.UnsortedList()
	slices.SortFunc(list, NodePortTuple.Compare)
	return list
}

func sortedLinks(links sets.Set[Link]) []Link {
	list := links.UnsortedList()
	slices.SortFunc(list, Link.Compare)
	return list
}
