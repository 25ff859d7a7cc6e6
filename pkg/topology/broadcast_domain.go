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
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"
)

// BroadcastDomain is a set of ports attached to one shared L2 segment
// that is not controlled by the engine (an external L2 switch, a VLAN).
type BroadcastDomain struct {
	ID    int64
	Ports sets.Set[NodePortTuple]
}

func NewBroadcastDomain(id int64, ports ...NodePortTuple) *BroadcastDomain {
	return &BroadcastDomain{ID: id, Ports: sets.New(ports...)}
}

func (bd *BroadcastDomain) String() string {
	return fmt.Sprintf("BroadcastDomain %d %v", bd.ID, sortedNodePorts(bd.Ports))
}

// copyBroadcastDomains indexes the supplied domains by id and by member port.
// A port claimed by two domains stays with the first one.
func (t *Instance) copyBroadcastDomains(domains []*BroadcastDomain) {
	for _, bd := range domains {
		if bd == nil {
			continue
		}
		cp, ok := t.broadcastDomains[bd.ID]
		if !ok {
			cp = NewBroadcastDomain(bd.ID)
			t.broadcastDomains[bd.ID] = cp
		}
		for _, npt := range sortedNodePorts(bd.Ports) {
			if other, ok := t.portBroadcastDomain[npt]; ok && other != bd.ID {
				klog.Errorf("Port %s belongs to broadcast domains %d and %d", npt, other, bd.ID)
				continue
			}
			cp.Ports.Insert(npt)
			t.portBroadcastDomain[npt] = bd.ID
		}
	}
}

func (t *Instance) isBroadcastDomainPort(npt NodePortTuple) bool {
	_, ok := t.portBroadcastDomain[npt]
	return ok
}

func (t *Instance) isBroadcastDomainLink(l Link) bool {
	return t.isBroadcastDomainPort(l.SrcNodePort()) || t.isBroadcastDomainPort(l.DstNodePort())
}

func (t *Instance) isBlockedPort(npt NodePortTuple) bool {
	return t.blockedPorts.Has(npt)
}

func (t *Instance) isBlockedLink(l Link) bool {
	return t.isBlockedPort(l.SrcNodePort()) || t.isBlockedPort(l.DstNodePort())
}

func (t *Instance) isTunnelPort(npt NodePortTuple) bool {
	return t.tunnelPorts.Has(npt)
}

func (t *Instance) isTunnelLink(l Link) bool {
	return t.isTunnelPort(l.SrcNodePort()) || t.isTunnelPort(l.DstNodePort())
}

// createTunnelDomainLinks connects every tunnel port to the virtual tunnel
// domain switch with a pair of links. Tunnel domain ports are numbered from 1.
func (t *Instance) createTunnelDomainLinks() {
	if t.tunnelDomain == nil {
		return
	}
	td := *t.tunnelDomain

	var tport PortID = 1
	for _, npt := range sortedNodePorts(t.tunnelPorts) {
		t.addTunnelLinks(npt.Switch, npt.Port, td, tport)
		tport++
	}

	for p := PortID(1); p < tport; p++ {
		t.tunnelPorts.Insert(NodePortTuple{Switch: td, Port: p})
	}
}

func (t *Instance) addTunnelLinks(sw1 SwitchID, port1 PortID, sw2 SwitchID, port2 PortID) {
	t.switches.Insert(sw1, sw2)
	for _, np := range []NodePortTuple{{sw1, port1}, {sw2, port2}} {
		ports, ok := t.switchPorts[np.Switch]
		if !ok {
			ports = sets.New[PortID]()
			t.switchPorts[np.Switch] = ports
		}
		ports.Insert(np.Port)
		if _, ok := t.portLinks[np]; !ok {
			t.portLinks[np] = sets.New[Link]()
		}
	}

	l12 := NewLink(sw1, port1, sw2, port2)
	l21 := l12.Reverse()
	t.portLinks[NodePortTuple{sw1, port1}].Insert(l12, l21)
	t.portLinks[NodePortTuple{sw2, port2}].Insert(l12, l21)
}
