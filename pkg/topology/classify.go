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
	"math"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"
)

const longPrime int64 = 304250263527209

// portHash mixes the given values into a 32-bit hash. Products wrap around
// on 64 bits and the result folds the high half into the low half, so every
// replica breaks ties the same way. Switch ids are mixed as their two's
// complement int64 value and ports as unsigned 16-bit values, so port 40000
// contributes 40000, never a negative number.
func portHash(values ...int64) int32 {
	v := longPrime
	for _, x := range values {
		v *= x
	}
	return int32(v ^ int64(uint64(v)>>32))
}

// classifyPorts adds the ports of forest edges to the allowed unicast sets
// and blocks the ports of every other inter-cluster or broadcast domain link.
// For each allowed higher-level edge the smallest port is kept as the
// incoming broadcast port. The ends of a broadcast domain link are decided
// one at a time: an administratively blocked port is never allowed, while
// the other end still reaches the domain.
func (t *Instance) classifyPorts() {
	admin := t.blockedPorts.Clone()

	for _, sw := range sortedSwitches(t.switches) {
		ports, ok := t.switchPorts[sw]
		if !ok {
			continue
		}
		for _, p := range sortedPorts(ports) {
			lset, ok := t.portLinks[NodePortTuple{sw, p}]
			if !ok {
				continue
			}
			for _, l := range sortedLinks(lset) {
				if t.isBroadcastDomainLink(l) {
					t.classifyBroadcastDomainLink(l, admin)
				} else {
					t.classifyInterClusterLink(l, admin)
				}
			}
		}
	}
}

func (t *Instance) classifyBroadcastDomainLink(l Link, admin sets.Set[NodePortTuple]) {
	n1, ok1 := t.clusterKeyOf(l.Src)
	n2, ok2 := t.clusterKeyOf(l.Dst)
	if !ok1 || !ok2 {
		klog.Errorf("Broadcast domain link %s has an endpoint without a cluster", l)
		return
	}

	npt1, npt2 := l.SrcNodePort(), l.DstNodePort()
	bd1, ok1 := t.portBroadcastDomain[npt1]
	bd2, ok2 := t.portBroadcastDomain[npt2]
	if !ok1 {
		klog.V(5).Infof("No broadcast domain for a broadcast port %s", npt1)
		bd1 = bd2
	}
	if !ok2 {
		klog.V(5).Infof("No broadcast domain for a broadcast port %s", npt2)
	} else if ok1 && bd1 != bd2 {
		klog.V(5).Infof("Broadcast domain link %s connects broadcast domains %d and %d", l, bd1, bd2)
	}
	z := t.domainKey[bd1]

	for _, end := range []struct {
		n   NodeKey
		npt NodePortTuple
	}{{n1, npt1}, {n2, npt2}} {
		if admin.Has(end.npt) {
			continue
		}
		onp := OrderedNodePair{end.n, z}
		allowed, ok := t.allowedUnicastPorts[onp]
		if !ok {
			t.blockedPorts.Insert(end.npt)
			continue
		}
		allowed.Insert(end.npt)
		t.allowedUnicastPorts[onp.Reverse()].Insert(end.npt)
		if prev, ok := t.allowedIncomingBroadcastPorts[onp]; !ok || end.npt.Compare(prev) < 0 {
			t.allowedIncomingBroadcastPorts[onp] = end.npt
			t.allowedIncomingBroadcastPorts[onp.Reverse()] = end.npt
		}
	}
}

func (t *Instance) classifyInterClusterLink(l Link, admin sets.Set[NodePortTuple]) {
	n1, ok1 := t.clusterKeyOf(l.Src)
	n2, ok2 := t.clusterKeyOf(l.Dst)
	if !ok1 || !ok2 {
		klog.Errorf("Link %s has an endpoint without a cluster", l)
		return
	}
	if n1 == n2 {
		return
	}

	npt1, npt2 := l.SrcNodePort(), l.DstNodePort()
	// a point-to-point link is unusable once either end is blocked
	if admin.Has(npt1) || admin.Has(npt2) {
		return
	}
	onp1, onp2 := OrderedNodePair{n1, n2}, OrderedNodePair{n2, n1}

	allowed, ok := t.allowedUnicastPorts[onp1]
	if !ok {
		t.blockedPorts.Insert(npt1, npt2)
		return
	}
	allowed.Insert(npt1)
	t.allowedUnicastPorts[onp2].Insert(npt2)

	if prev, ok := t.allowedIncomingBroadcastPorts[onp1]; !ok || npt1.Compare(prev) < 0 {
		t.allowedIncomingBroadcastPorts[onp1] = npt1
	}
	if prev, ok := t.allowedIncomingBroadcastPorts[onp2]; !ok || npt2.Compare(prev) < 0 {
		t.allowedIncomingBroadcastPorts[onp2] = npt2
	}
}

// calculateSwitchPortMappings picks, for every switch of a cluster and every
// allowed higher-level neighbor, the egress port with the smallest intra-cluster
// cost. It also picks the ingress/egress port pair used to cross a cluster
// between two of its neighbors. With traffic spreading enabled, cost ties are
// broken by portHash instead of port order.
func (t *Instance) calculateSwitchPortMappings() {
	for _, cid := range sortedSwitches(sets.KeySet(t.clusters)) {
		c := t.clusters[cid]
		n := t.clusterKey[cid]
		neighbors := sortedNodeKeys(t.htNeighbors[n])

		for _, nbr := range neighbors {
			onp := OrderedNodePair{n, nbr}
			allowed, ok := t.allowedUnicastPorts[onp]
			if !ok {
				continue
			}
			candidates := sortedNodePorts(allowed)

			for _, s := range sortedSwitches(c.Nodes) {
				if npt, ok := t.pickEgressPort(s, candidates); ok {
					addToPortMapping(t.permittedSwitches, npt, s)
				}
			}

			// the node with the smaller key decides the pair
			for _, other := range neighbors {
				if other >= nbr {
					continue
				}
				inputs, ok := t.allowedUnicastPorts[OrderedNodePair{n, other}]
				if !ok {
					continue
				}
				in, out, ok := t.pickTransitPorts(sortedNodePorts(inputs), candidates)
				if ok {
					addToPortMapping(t.permittedPortToNodes, out, other)
					addToPortMapping(t.permittedPortToNodes, in, nbr)
				}
			}
		}
	}
}

func (t *Instance) pickEgressPort(s SwitchID, candidates []NodePortTuple) (NodePortTuple, bool) {
	var (
		result NodePortTuple
		found  bool
	)
	cost := MaxPathWeight
	var hash int32 = math.MaxInt32

	for _, npt := range candidates {
		c := t.getCost(s, npt.Switch)
		switch {
		case c < cost:
			cost = c
			result, found = npt, true
			hash = portHash(int64(s), int64(npt.Switch), int64(npt.Port))
		case t.opts.TrafficSpreading && c == cost:
			if h := portHash(int64(s), int64(npt.Switch), int64(npt.Port)); h < hash {
				hash = h
				result, found = npt, true
			}
		}
	}
	return result, found
}

func (t *Instance) pickTransitPorts(inputs, outputs []NodePortTuple) (NodePortTuple, NodePortTuple, bool) {
	var (
		resultIn, resultOut NodePortTuple
		found               bool
	)
	cost := MaxPathWeight
	var hash int32 = math.MaxInt32

	for _, in := range inputs {
		for _, out := range outputs {
			c := t.getCost(in.Switch, out.Switch)
			h := portHash(int64(in.Switch), int64(in.Port), int64(out.Switch), int64(out.Port))
			switch {
			case c < cost:
				cost = c
				resultIn, resultOut, found = in, out, true
				hash = h
			case t.opts.TrafficSpreading && c == cost && h < hash:
				resultIn, resultOut, found = in, out, true
				hash = h
			}
		}
	}
	return resultIn, resultOut, found
}

func addToPortMapping[T comparable](permitted map[NodePortTuple]sets.Set[T], npt NodePortTuple, v T) {
	s, ok := permitted[npt]
	if !ok {
		s = sets.New[T]()
		permitted[npt] = s
	}
	s.Insert(v)
}

// getPermitted returns the allowed port of onp that is mapped to v.
func getPermitted[T comparable](allowed map[OrderedNodePair]sets.Set[NodePortTuple], onp OrderedNodePair,
	permitted map[NodePortTuple]sets.Set[T], v T) (NodePortTuple, bool) {
	ports, ok := allowed[onp]
	if !ok {
		return NodePortTuple{}, false
	}
	for _, npt := range sortedNodePorts(ports) {
		if pset, ok := permitted[npt]; ok && pset.Has(v) {
			return npt, true
		}
	}
	return NodePortTuple{}, false
}
