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

type htNodeKind int

const (
	htCluster htNodeKind = iota
	htBroadcastDomain
)

// htNode is a node of the higher-level topology: either a cluster or a
// broadcast domain.
type htNode struct {
	kind    htNodeKind
	cluster SwitchID
	domain  int64
}

func (n htNode) isBroadcastDomain() bool {
	return n.kind == htBroadcastDomain
}

func (n htNode) String() string {
	switch n.kind {
	case htCluster:
		return fmt.Sprintf("cluster:%s", n.cluster)
	default:
		return fmt.Sprintf("domain:%d", n.domain)
	}
}

// createHigherLevelTopology folds clusters and broadcast domains into the
// nodes of a smaller graph. Clusters are adjacent when a usable link crosses
// between them; a cluster and a broadcast domain are adjacent when the domain
// has a port on a switch of the cluster.
func (t *Instance) createHigherLevelTopology() {
	for _, id := range sortedSwitches(sets.KeySet(t.clusters)) {
		key := NodeKey(len(t.htNodes) + 1)
		t.htNodes[key] = htNode{kind: htCluster, cluster: id}
		t.clusterKey[id] = key
	}

	for _, id := range sets.List(sets.KeySet(t.broadcastDomains)) {
		key := NodeKey(len(t.htNodes) + 1)
		t.htNodes[key] = htNode{kind: htBroadcastDomain, domain: id}
		t.domainKey[id] = key
	}

	for key := range t.htNodes {
		t.htNeighbors[key] = sets.New[NodeKey]()
	}

	for sw := range t.switches {
		ports, ok := t.switchPorts[sw]
		if !ok {
			continue
		}
		for p := range ports {
			np := NodePortTuple{sw, p}
			lset, ok := t.portLinks[np]
			if !ok || t.isBroadcastDomainPort(np) {
				continue
			}
			for l := range lset {
				if t.isBlockedLink(l) || t.isBroadcastDomainLink(l) {
					continue
				}
				n1, ok1 := t.clusterKeyOf(l.Src)
				n2, ok2 := t.clusterKeyOf(l.Dst)
				if !ok1 || !ok2 || n1 == n2 {
					continue
				}
				t.htNeighbors[n1].Insert(n2)
				t.htNeighbors[n2].Insert(n1)
			}
		}
	}

	for npt, bdID := range t.portBroadcastDomain {
		cid, ok := t.clusterKeyOf(npt.Switch)
		if !ok {
			klog.V(4).Infof("Broadcast domain %d port %s is on a switch without a cluster", bdID, npt)
			continue
		}
		nid := t.domainKey[bdID]
		t.htNeighbors[cid].Insert(nid)
		t.htNeighbors[nid].Insert(cid)
	}
}

func (t *Instance) clusterKeyOf(sw SwitchID) (NodeKey, bool) {
	id, ok := t.switchCluster[sw]
	if !ok {
		return 0, false
	}
	key, ok := t.clusterKey[id]
	return key, ok
}

// createForestInHigherLevelTopology computes a breadth-first spanning forest
// of the higher-level topology and the next-hop table over its edges.
// Forest edges become the keys of the allowed unicast port map; ports are
// filled in later by classifyPorts. Physical links of non-forest edges are
// blocked there.
func (t *Instance) createForestInHigherLevelTopology() {
	candidates := sets.New[OrderedNodePair]()
	visited := sets.New[NodeKey]()

	for _, s := range sortedNodeKeys(sets.KeySet(t.htNeighbors)) {
		if visited.Has(s) {
			continue
		}
		visited.Insert(s)
		queue := []NodeKey{s}
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			for _, nbr := range sortedNodeKeys(t.htNeighbors[u]) {
				if visited.Has(nbr) {
					continue
				}
				visited.Insert(nbr)
				queue = append(queue, nbr)
				candidates.Insert(OrderedNodePair{u, nbr}, OrderedNodePair{nbr, u})
			}
		}
	}

	t.computeReachability(candidates)

	// only edges that lie on some forest path are allowed
	for s, nh := range t.htNextHop {
		for _, hop := range nh {
			if hop == s {
				continue
			}
			onp := OrderedNodePair{s, hop}
			if !candidates.Has(onp) {
				continue
			}
			for _, p := range []OrderedNodePair{onp, onp.Reverse()} {
				if _, ok := t.allowedUnicastPorts[p]; !ok {
					t.allowedUnicastPorts[p] = sets.New[NodePortTuple]()
				}
			}
		}
	}
}

// computeReachability fills htNextHop: for every source s and every
// destination d reachable over the allowed edges, the neighbor of s that
// starts the path toward d.
func (t *Instance) computeReachability(allowed sets.Set[OrderedNodePair]) {
	for _, s := range sortedNodeKeys(sets.KeySet(t.htNeighbors)) {
		nh := map[NodeKey]NodeKey{s: s}
		t.htNextHop[s] = nh

		for _, nbr := range sortedNodeKeys(t.htNeighbors[s]) {
			if !allowed.Has(OrderedNodePair{s, nbr}) {
				continue
			}
			nh[nbr] = nbr

			visited := sets.New(s, nbr)
			queue := []NodeKey{nbr}
			for len(queue) > 0 {
				u := queue[0]
				queue = queue[1:]
				for _, v := range sortedNodeKeys(t.htNeighbors[u]) {
					if !allowed.Has(OrderedNodePair{u, v}) || visited.Has(v) {
						continue
					}
					visited.Insert(v)
					queue = append(queue, v)
					nh[v] = nbr
				}
			}
		}
	}
}

// computeClusterL2DomainMap assigns every cluster the smallest cluster id
// reachable from it in the higher-level forest.
func (t *Instance) computeClusterL2DomainMap() {
	for _, n := range sortedNodeKeys(sets.KeySet(t.htNodes)) {
		node := t.htNodes[n]
		if node.isBroadcastDomain() {
			continue
		}
		if _, ok := t.clusterL2Domain[n]; ok {
			continue
		}

		l2DomainID := node.cluster
		for nbr := range t.htNextHop[n] {
			if other := t.htNodes[nbr]; !other.isBroadcastDomain() && other.cluster < l2DomainID {
				l2DomainID = other.cluster
			}
		}
		// n is in its own next-hop table, so it is assigned here too
		for nbr := range t.htNextHop[n] {
			if !t.htNodes[nbr].isBroadcastDomain() {
				t.clusterL2Domain[nbr] = l2DomainID
			}
		}
	}
}

// getHTPath returns the higher-level path from htSrc to htDst, or nil if
// the two nodes are not connected.
func (t *Instance) getHTPath(htSrc, htDst NodeKey) []NodeKey {
	nh, ok := t.htNextHop[htSrc]
	if !ok {
		return nil
	}
	if _, ok := nh[htDst]; !ok {
		return nil
	}

	path := []NodeKey{htSrc}
	curr := htSrc
	for curr != htDst {
		next, ok := t.htNextHop[curr][htDst]
		if !ok || len(path) > len(t.htNodes) {
			klog.Errorf("Broken higher-level path from %d to %d at %d", htSrc, htDst, curr)
			return nil
		}
		curr = next
		path = append(path, curr)
	}
	return path
}

// getHTNodeID resolves a switch port to the higher-level node it faces:
// its broadcast domain, the cluster on the other end of its link, or the
// switch's own cluster for ports unknown to the topology.
func (t *Instance) getHTNodeID(sw SwitchID, port PortID) (NodeKey, bool) {
	npt := NodePortTuple{sw, port}
	if bdID, ok := t.portBroadcastDomain[npt]; ok {
		key, ok := t.domainKey[bdID]
		return key, ok
	}

	if lset, ok := t.portLinks[npt]; ok {
		var (
			key   NodeKey
			found bool
		)
		for _, l := range sortedLinks(lset) {
			other := l.DstNodePort()
			if l.Dst == sw && l.DstPort == port {
				other = l.SrcNodePort()
			}
			key, found = t.clusterKeyOf(other.Switch)
		}
		return key, found
	}

	return t.clusterKeyOf(sw)
}
