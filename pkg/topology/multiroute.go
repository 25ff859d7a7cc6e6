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

	"github.com/NVIDIA/topoengine/pkg/metrics"
)

// routeEnd is a multiroute endpoint: a switch, or a broadcast domain node
// when the endpoint port belongs to a broadcast domain.
type routeEnd struct {
	sw     SwitchID
	domain NodeKey
	isBD   bool
}

func (t *Instance) routeEndOf(npt NodePortTuple) routeEnd {
	if bdID, ok := t.portBroadcastDomain[npt]; ok {
		return routeEnd{domain: t.domainKey[bdID], isBD: true}
	}
	return routeEnd{sw: npt.Switch}
}

// appendRoute appends the ports of the intra-cluster route from src to dst.
func (t *Instance) appendRoute(path []NodePortTuple, src, dst SwitchID, cookie int64) []NodePortTuple {
	if r := t.GetRoute(src, dst, cookie); r != nil {
		path = append(path, r.Path...)
	}
	return path
}

// getFirstHopRoute returns the path from sw to the egress port of its
// cluster toward the higher-level node htNode.
func (t *Instance) getFirstHopRoute(sw SwitchID, htNode NodeKey, cookie int64) []NodePortTuple {
	n1, ok := t.clusterKeyOf(sw)
	if !ok {
		return nil
	}
	egress, ok := getPermitted(t.allowedUnicastPorts, OrderedNodePair{n1, htNode}, t.permittedSwitches, sw)
	if !ok {
		return nil
	}
	path := t.appendRoute(nil, sw, egress.Switch, cookie)
	return append(path, egress)
}

// getLastHopRoute returns the path from the ingress port of the cluster of
// sw, entered from htNode, to sw.
func (t *Instance) getLastHopRoute(htNode NodeKey, sw SwitchID, ingress *NodePortTuple, cookie int64) []NodePortTuple {
	n1, ok := t.clusterKeyOf(sw)
	if !ok {
		return nil
	}
	if ingress == nil {
		npt, ok := getPermitted(t.allowedUnicastPorts, OrderedNodePair{n1, htNode}, t.permittedSwitches, sw)
		if !ok {
			return nil
		}
		ingress = &npt
	}
	return t.appendRoute([]NodePortTuple{*ingress}, ingress.Switch, sw, cookie)
}

// getRouteThroughCluster returns the ports used to cross the cluster node
// through, entered from node from and left toward node to. The nodes must be
// adjacent in the higher-level topology.
func (t *Instance) getRouteThroughCluster(from, to, through NodeKey, ingress *NodePortTuple, cookie int64) []NodePortTuple {
	egress, ok := getPermitted(t.allowedUnicastPorts, OrderedNodePair{through, to}, t.permittedPortToNodes, from)
	if !ok {
		return nil
	}
	if ingress == nil {
		npt, ok := getPermitted(t.allowedUnicastPorts, OrderedNodePair{through, from}, t.permittedPortToNodes, to)
		if !ok {
			return nil
		}
		ingress = &npt
	}

	path := t.appendRoute([]NodePortTuple{*ingress}, ingress.Switch, egress.Switch, cookie)
	return append(path, egress)
}

// peerIngress returns the port of cluster node n that receives traffic sent
// out of egress over a direct inter-cluster link.
func (t *Instance) peerIngress(egress NodePortTuple, n NodeKey) *NodePortTuple {
	lset, ok := t.portLinks[egress]
	if !ok {
		return nil
	}
	for _, l := range sortedLinks(lset) {
		if l.SrcNodePort() != egress || t.isBlockedLink(l) {
			continue
		}
		if key, ok := t.clusterKeyOf(l.Dst); ok && key == n {
			dst := l.DstNodePort()
			return &dst
		}
	}
	return nil
}

// multiroute stitches a route across the higher-level topology: a first hop
// inside the source cluster, a transit segment through every intermediate
// cluster and a last hop inside the destination cluster. Broadcast domains
// on the path contribute no ports.
func (t *Instance) multiroute(src, dst routeEnd, cookie int64) ([]NodePortTuple, bool) {
	if !src.isBD && !dst.isBD && !t.InSameL2Domain(src.sw, dst.sw) {
		return nil, false
	}

	n1, ok := t.endKey(src)
	if !ok {
		return nil, false
	}
	n2, ok := t.endKey(dst)
	if !ok {
		return nil, false
	}

	if !src.isBD && !dst.isBD && n1 == n2 {
		return t.appendRoute(nil, src.sw, dst.sw, cookie), true
	}

	htPath := t.getHTPath(n1, n2)
	if len(htPath) < 2 {
		klog.V(5).Infof("No higher-level path from %d to %d", n1, n2)
		return nil, false
	}

	var path []NodePortTuple
	// egress of the previous cluster, when it is linked directly to the next one
	var prevEgress *NodePortTuple

	if !t.htNodes[htPath[0]].isBroadcastDomain() {
		hop := t.getFirstHopRoute(src.sw, htPath[1], cookie)
		if hop == nil {
			return nil, false
		}
		path = append(path, hop...)
		prevEgress = &hop[len(hop)-1]
	}

	for i := 1; i < len(htPath)-1; i++ {
		if t.htNodes[htPath[i]].isBroadcastDomain() {
			prevEgress = nil
			continue
		}
		var ingress *NodePortTuple
		if prevEgress != nil {
			ingress = t.peerIngress(*prevEgress, htPath[i])
		}
		hop := t.getRouteThroughCluster(htPath[i-1], htPath[i+1], htPath[i], ingress, cookie)
		if hop == nil {
			klog.V(5).Infof("No route through %s from %d to %d", t.htNodes[htPath[i]], htPath[i-1], htPath[i+1])
			return nil, false
		}
		path = append(path, hop...)
		prevEgress = &hop[len(hop)-1]
	}

	last := len(htPath) - 1
	if !t.htNodes[htPath[last]].isBroadcastDomain() {
		var ingress *NodePortTuple
		if prevEgress != nil {
			ingress = t.peerIngress(*prevEgress, htPath[last])
		}
		hop := t.getLastHopRoute(htPath[last-1], dst.sw, ingress, cookie)
		if hop == nil {
			return nil, false
		}
		path = append(path, hop...)
	}

	return path, true
}

func (t *Instance) endKey(e routeEnd) (NodeKey, bool) {
	if e.isBD {
		node, ok := t.htNodes[e.domain]
		return e.domain, ok && node.isBroadcastDomain()
	}
	return t.clusterKeyOf(e.sw)
}

// buildNodePortList returns the full port sequence from (srcSw, srcPort) to
// (dstSw, dstPort), including the end ports that are not broadcast domain ports.
func (t *Instance) buildNodePortList(srcSw SwitchID, srcPort PortID, dstSw SwitchID, dstPort PortID, cookie int64) []NodePortTuple {
	srcNpt := NodePortTuple{srcSw, srcPort}
	dstNpt := NodePortTuple{dstSw, dstPort}
	src, dst := t.routeEndOf(srcNpt), t.routeEndOf(dstNpt)

	mid, ok := t.multiroute(src, dst, cookie)
	if !ok && srcSw != dstSw {
		return nil
	}

	path := make([]NodePortTuple, 0, len(mid)+2)
	if !src.isBD {
		path = append(path, srcNpt)
	}
	path = append(path, mid...)
	if !dst.isBD {
		path = append(path, dstNpt)
	}
	return path
}

// GetPortRoute returns the route between two switch ports, possibly across
// clusters and broadcast domains. It returns nil if both ports are in the
// same broadcast domain, if no route exists or if the assembled route
// visits a port twice.
func (t *Instance) GetPortRoute(srcSw SwitchID, srcPort PortID, dstSw SwitchID, dstPort PortID, cookie int64) *Route {
	if t.InSameBroadcastDomain(srcSw, srcPort, dstSw, dstPort) {
		return nil
	}

	path := t.buildNodePortList(srcSw, srcPort, dstSw, dstPort, cookie)
	if len(path) == 0 {
		return nil
	}

	if sets.New(path...).Len() != len(path) {
		klog.Warningf("Loop found in path %v", path)
		metrics.AddRejectedRoute()
		return nil
	}

	if !t.opts.Multipath {
		cookie = 0
	}
	return &Route{
		ID:         RouteID{Src: srcSw, Dst: dstSw, Cookie: cookie},
		Path:       path,
		RouteCount: 1,
	}
}

// GetIncomingSwitchPort returns the first port of the route between two
// switch ports, or the source port itself when both are on one switch and
// no route is needed.
func (t *Instance) GetIncomingSwitchPort(srcSw SwitchID, srcPort PortID, dstSw SwitchID, dstPort PortID) (NodePortTuple, bool) {
	path := t.buildNodePortList(srcSw, srcPort, dstSw, dstPort, 0)
	if len(path) == 0 {
		if srcSw != dstSw {
			return NodePortTuple{}, false
		}
		return NodePortTuple{srcSw, srcPort}, true
	}
	return path[0], true
}

// GetOutgoingSwitchPort returns the last port of the route between two
// switch ports.
func (t *Instance) GetOutgoingSwitchPort(srcSw SwitchID, srcPort PortID, dstSw SwitchID, dstPort PortID) (NodePortTuple, bool) {
	path := t.buildNodePortList(srcSw, srcPort, dstSw, dstPort, 0)
	if len(path) == 0 {
		if srcSw != dstSw {
			return NodePortTuple{}, false
		}
		return NodePortTuple{dstSw, dstPort}, true
	}
	return path[len(path)-1], true
}
