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
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"
)

// Switches returns the sorted ids of the switches that have links.
func (t *Instance) Switches() []SwitchID {
	return sortedSwitches(t.switches)
}

// Clusters returns the openflow domains sorted by id.
func (t *Instance) Clusters() []*Cluster {
	clusters := make([]*Cluster, 0, len(t.clusters))
	for _, id := range sortedSwitches(sets.KeySet(t.clusters)) {
		clusters = append(clusters, t.clusters[id])
	}
	return clusters
}

// GetBlockedPorts returns the supplied blocked ports together with the
// ports blocked to break loops in the higher-level topology.
func (t *Instance) GetBlockedPorts() []NodePortTuple {
	return sortedNodePorts(t.blockedPorts)
}

// GetPortsWithLinks returns the ports of sw that have at least one link.
func (t *Instance) GetPortsWithLinks(sw SwitchID) []PortID {
	var ports []PortID
	for _, p := range sortedPorts(t.switchPorts[sw]) {
		if links, ok := t.portLinks[NodePortTuple{sw, p}]; ok && links.Len() > 0 {
			ports = append(ports, p)
		}
	}
	return ports
}

// IsAllowed reports whether the port may send and receive traffic.
func (t *Instance) IsAllowed(sw SwitchID, port PortID) bool {
	return !t.isBlockedPort(NodePortTuple{sw, port})
}

// IsAttachmentPointPort reports whether a port may face end hosts: it has
// no link, belongs to a broadcast domain, or has a single link that leaves
// its openflow domain.
func (t *Instance) IsAttachmentPointPort(sw SwitchID, port PortID) bool {
	npt := NodePortTuple{sw, port}
	links, ok := t.portLinks[npt]
	if !ok {
		return true
	}
	if t.isBroadcastDomainPort(npt) {
		return true
	}
	if links.Len() == 1 {
		for l := range links {
			if !t.InSameOpenflowDomain(l.Src, l.Dst) {
				return true
			}
		}
	}
	return false
}

func (t *Instance) IsInternalToOpenflowDomain(sw SwitchID, port PortID) bool {
	return !t.IsAttachmentPointPort(sw, port)
}

// GetOpenflowDomainID returns the cluster id of sw, or sw itself for a
// switch without links.
func (t *Instance) GetOpenflowDomainID(sw SwitchID) SwitchID {
	if id, ok := t.switchCluster[sw]; ok {
		return id
	}
	return sw
}

func (t *Instance) InSameOpenflowDomain(sw1, sw2 SwitchID) bool {
	c1, ok1 := t.switchCluster[sw1]
	c2, ok2 := t.switchCluster[sw2]
	if ok1 && ok2 {
		return c1 == c2
	}
	return sw1 == sw2
}

// GetSwitchesInOpenflowDomain returns the sorted members of the cluster of
// sw without the tunnel domain switch.
func (t *Instance) GetSwitchesInOpenflowDomain(sw SwitchID) []SwitchID {
	c, ok := t.clusterOf(sw)
	if !ok {
		return []SwitchID{sw}
	}
	nodes := c.Nodes.Clone()
	if t.tunnelDomain != nil {
		nodes.Delete(*t.tunnelDomain)
	}
	return sortedSwitches(nodes)
}

// GetL2DomainID returns the smallest cluster id reachable from the cluster
// of sw, or sw itself for a switch without links.
func (t *Instance) GetL2DomainID(sw SwitchID) SwitchID {
	n, ok := t.clusterKeyOf(sw)
	if !ok {
		return sw
	}
	return t.clusterL2Domain[n]
}

// InSameL2Domain reports whether the clusters of the two switches are
// connected in the higher-level forest.
func (t *Instance) InSameL2Domain(sw1, sw2 SwitchID) bool {
	if sw1 == sw2 {
		return true
	}
	n1, ok1 := t.clusterKeyOf(sw1)
	n2, ok2 := t.clusterKeyOf(sw2)
	if !ok1 || !ok2 {
		return false
	}
	_, ok := t.htNextHop[n1][n2]
	return ok
}

// InSameBroadcastDomain reports whether both ports belong to one broadcast
// domain. Ports outside any domain are only in the same domain as themselves.
func (t *Instance) InSameBroadcastDomain(sw1 SwitchID, port1 PortID, sw2 SwitchID, port2 PortID) bool {
	bd1, ok1 := t.portBroadcastDomain[NodePortTuple{sw1, port1}]
	bd2, ok2 := t.portBroadcastDomain[NodePortTuple{sw2, port2}]
	if !ok1 || !ok2 {
		return sw1 == sw2 && port1 == port2
	}
	return bd1 == bd2
}

// GetBroadcastDomainPorts returns the ports of sw that belong to a broadcast domain.
func (t *Instance) GetBroadcastDomainPorts(sw SwitchID) []PortID {
	ports := sets.New[PortID]()
	for npt := range t.portBroadcastDomain {
		if npt.Switch == sw {
			ports.Insert(npt.Port)
		}
	}
	return sortedPorts(ports)
}

// GetBroadcastDomainPortsOf returns all ports of the broadcast domain of npt.
func (t *Instance) GetBroadcastDomainPortsOf(npt NodePortTuple) []NodePortTuple {
	bdID, ok := t.portBroadcastDomain[npt]
	if !ok {
		return nil
	}
	return sortedNodePorts(t.broadcastDomains[bdID].Ports)
}

// GetBroadcastTreeForCluster returns the broadcast tree of the cluster that
// contains the given switch.
func (t *Instance) GetBroadcastTreeForCluster(sw SwitchID) *BroadcastTree {
	id, ok := t.switchCluster[sw]
	if !ok {
		return nil
	}
	return t.clusterBroadcastTrees[id]
}

// GetBroadcastNodePortsInCluster returns the broadcast tree ports of the
// cluster of sw, tunnel ports excluded.
func (t *Instance) GetBroadcastNodePortsInCluster(sw SwitchID) []NodePortTuple {
	ports, ok := t.clusterBroadcastNodePorts[t.GetOpenflowDomainID(sw)]
	if !ok {
		return nil
	}
	return sortedNodePorts(ports.Difference(t.tunnelPorts))
}

// IsIncomingBroadcastAllowedOnSwitchPort reports whether a broadcast packet
// received on the port should be accepted.
func (t *Instance) IsIncomingBroadcastAllowedOnSwitchPort(sw SwitchID, port PortID) bool {
	npt := NodePortTuple{sw, port}

	if t.IsInternalToOpenflowDomain(sw, port) {
		return t.clusterBroadcastNodePorts[t.GetOpenflowDomainID(sw)].Has(npt)
	}

	if t.isBroadcastDomainPort(npt) {
		n, ok := t.clusterKeyOf(sw)
		if !ok {
			return false
		}
		for nbr := range t.htNeighbors[n] {
			if other, ok := t.allowedIncomingBroadcastPorts[OrderedNodePair{n, nbr}]; ok && other == npt {
				return true
			}
		}
		return false
	}

	return true
}

// GetConsistentBroadcastAttachmentPoint translates the attachment point
// (apSw, apPort) into the port where broadcasts from it enter the cluster
// of target.
func (t *Instance) GetConsistentBroadcastAttachmentPoint(target, apSw SwitchID, apPort PortID) (NodePortTuple, bool) {
	if !t.IsAttachmentPointPort(apSw, apPort) {
		return NodePortTuple{}, false
	}

	npt := NodePortTuple{apSw, apPort}
	targetNode, targetOk := t.clusterKeyOf(target)

	var apNode NodeKey
	if bdID, ok := t.portBroadcastDomain[npt]; ok {
		if !targetOk {
			return NodePortTuple{}, false
		}
		apNode = t.domainKey[bdID]
	} else {
		n, ok := t.clusterKeyOf(apSw)
		if apSw == target && !ok {
			return npt, true
		}
		if !ok || !targetOk {
			return NodePortTuple{}, false
		}
		if n == targetNode {
			return npt, true
		}
		apNode = n
	}

	htPath := t.getHTPath(apNode, targetNode)
	if len(htPath) < 2 {
		return NodePortTuple{}, false
	}

	onp := OrderedNodePair{htPath[len(htPath)-1], htPath[len(htPath)-2]}
	result, ok := t.allowedIncomingBroadcastPorts[onp]
	return result, ok
}

// GetBroadcastPorts returns the ports of target a broadcast from
// (src, srcPort) is flooded to: the cluster broadcast tree ports of target
// and the egress ports of target toward the other higher-level neighbors.
func (t *Instance) GetBroadcastPorts(target, src SwitchID, srcPort PortID) []PortID {
	result := sets.New[PortID]()

	ingress, ok := t.GetConsistentBroadcastAttachmentPoint(target, src, srcPort)
	if !ok || !t.InSameOpenflowDomain(target, ingress.Switch) {
		return nil
	}

	for npt := range t.clusterBroadcastNodePorts[t.GetOpenflowDomainID(target)] {
		if npt.Switch == target {
			result.Insert(npt.Port)
		}
	}

	n, ok := t.clusterKeyOf(target)
	if !ok {
		return sortedPorts(result)
	}
	from, ok := t.getHTNodeID(ingress.Switch, ingress.Port)
	if !ok {
		return sortedPorts(result)
	}

	for _, nbr := range sortedNodeKeys(t.htNeighbors[n]) {
		onp := OrderedNodePair{n, nbr}
		var (
			x     NodePortTuple
			found bool
		)
		if from == n {
			x, found = getPermitted(t.allowedUnicastPorts, onp, t.permittedSwitches, ingress.Switch)
		} else {
			x, found = getPermitted(t.allowedUnicastPorts, onp, t.permittedPortToNodes, from)
		}
		if found && x.Switch == target {
			result.Insert(x.Port)
		}
	}
	return sortedPorts(result)
}

// GetAllowedIncomingBroadcastPort returns the port through which the
// cluster of src accepts broadcasts from the broadcast domain of
// (src, srcPort).
func (t *Instance) GetAllowedIncomingBroadcastPort(src SwitchID, srcPort PortID) (NodePortTuple, bool) {
	srcNpt := NodePortTuple{src, srcPort}
	if !t.isBroadcastDomainPort(srcNpt) {
		return NodePortTuple{}, false
	}

	n, ok := t.clusterKeyOf(src)
	if !ok {
		return NodePortTuple{}, false
	}
	htSrc, ok := t.getHTNodeID(src, srcPort)
	if !ok {
		return NodePortTuple{}, false
	}
	if htSrc == n {
		klog.Warningf("Broadcast domain port %s without any broadcast domain", srcNpt)
		return srcNpt, true
	}

	npt, ok := t.allowedIncomingBroadcastPorts[OrderedNodePair{htSrc, n}]
	return npt, ok
}

// GetAllowedOutgoingBroadcastPort returns the port the cluster of src uses
// to forward a broadcast received on (src, srcPort) toward (dst, dstPort).
func (t *Instance) GetAllowedOutgoingBroadcastPort(src SwitchID, srcPort PortID, dst SwitchID, dstPort PortID) (NodePortTuple, bool) {
	dstNpt := NodePortTuple{dst, dstPort}

	n, ok := t.clusterKeyOf(src)
	if !ok {
		if src == dst {
			return dstNpt, true
		}
		return NodePortTuple{}, false
	}

	htSrc, ok1 := t.getHTNodeID(src, srcPort)
	htDst, ok2 := t.getHTNodeID(dst, dstPort)
	if !ok1 || !ok2 {
		return NodePortTuple{}, false
	}

	next, ok := t.htNextHop[n][htDst]
	if !ok {
		return NodePortTuple{}, false
	}
	onp := OrderedNodePair{n, next}

	if n == htDst && !t.isBroadcastDomainPort(dstNpt) {
		return dstNpt, true
	}

	if htSrc == n {
		return getPermitted(t.allowedUnicastPorts, onp, t.permittedSwitches, src)
	}

	// src faces another node: find the port paired with it, then the
	// egress permitted for the switch of that port
	npt, ok := getPermitted(t.allowedUnicastPorts, onp, t.permittedPortToNodes, htSrc)
	if !ok {
		return NodePortTuple{}, false
	}
	return getPermitted(t.allowedUnicastPorts, onp, t.permittedSwitches, npt.Switch)
}

// IsConsistent reports whether a device seen at (oldSw, oldPort) may
// plausibly have moved to (newSw, newPort).
func (t *Instance) IsConsistent(oldSw SwitchID, oldPort PortID, newSw SwitchID, newPort PortID) bool {
	if oldSw == newSw && oldPort == newPort {
		return true
	}
	if t.IsInternalToOpenflowDomain(newSw, newPort) {
		return true
	}
	if !t.isBroadcastDomainPort(NodePortTuple{newSw, newPort}) {
		return false
	}

	n, ok := t.clusterKeyOf(newSw)
	if !ok {
		return false
	}
	htOld, ok1 := t.getHTNodeID(oldSw, oldPort)
	htNew, ok2 := t.getHTNodeID(newSw, newPort)
	if !ok1 || !ok2 {
		return false
	}

	next, ok := t.htNextHop[n][htOld]
	return ok && htNew == next
}
