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
	"container/heap"
	"slices"

	"k8s.io/apimachinery/pkg/util/sets"
)

// BroadcastTree is a shortest path tree of a cluster. In a destination-rooted
// tree Links holds, for every switch except the root, the first link of its
// path toward the root.
type BroadcastTree struct {
	Root  SwitchID
	Links map[SwitchID]Link
	Costs map[SwitchID]int
}

func newBroadcastTree(root SwitchID) *BroadcastTree {
	return &BroadcastTree{
		Root:  root,
		Links: make(map[SwitchID]Link),
		Costs: make(map[SwitchID]int),
	}
}

// Cost returns the path cost from sw to the root, or -1 if sw is not in the tree.
func (bt *BroadcastTree) Cost(sw SwitchID) int {
	if bt == nil {
		return -1
	}
	c, ok := bt.Costs[sw]
	if !ok {
		return -1
	}
	return c
}

// NextHop returns the link sw uses toward the root.
func (bt *BroadcastTree) NextHop(sw SwitchID) (Link, bool) {
	if bt == nil {
		return Link{}, false
	}
	l, ok := bt.Links[sw]
	return l, ok
}

// BroadcastTreeMultipath keeps every equal-cost next hop, sorted by Link.Compare.
type BroadcastTreeMultipath struct {
	Root  SwitchID
	Links map[SwitchID][]Link
	Costs map[SwitchID]int
}

func newBroadcastTreeMultipath(root SwitchID) *BroadcastTreeMultipath {
	return &BroadcastTreeMultipath{
		Root:  root,
		Links: make(map[SwitchID][]Link),
		Costs: make(map[SwitchID]int),
	}
}

func (bt *BroadcastTreeMultipath) Cost(sw SwitchID) int {
	if bt == nil {
		return -1
	}
	c, ok := bt.Costs[sw]
	if !ok {
		return -1
	}
	return c
}

type nodeDist struct {
	node SwitchID
	dist int
}

// nodeQueue is a min-heap ordered by distance, then by switch id.
type nodeQueue []nodeDist

func (q nodeQueue) Len() int { return len(q) }

func (q nodeQueue) Less(i, j int) bool { return compareNodeDist(q[i], q[j]) < 0 }

func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *nodeQueue) Push(x any) { *q = append(*q, x.(nodeDist)) }

func (q *nodeQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// neighborOf returns the switch on the far side of l as seen from node, or
// false if l does not point the right way for the tree direction.
func neighborOf(l Link, node SwitchID, dstRooted bool) (SwitchID, bool) {
	if dstRooted {
		if l.Dst != node || l.Src == node {
			return 0, false
		}
		return l.Src, true
	}
	if l.Src != node || l.Dst == node {
		return 0, false
	}
	return l.Dst, true
}

func linkWeight(weights map[Link]int, l Link) int {
	if w, ok := weights[l]; ok {
		return w
	}
	return 1
}

// dijkstra computes a single-path tree of c rooted at root. Stale heap
// entries are skipped lazily; on equal cost the first next hop found is kept.
func dijkstra(c *Cluster, root SwitchID, weights map[Link]int, dstRooted bool) *BroadcastTree {
	bt := newBroadcastTree(root)
	for sw := range c.Links {
		bt.Costs[sw] = MaxPathWeight
	}

	seen := sets.New[SwitchID]()
	q := &nodeQueue{{node: root, dist: 0}}
	bt.Costs[root] = 0

	for q.Len() > 0 {
		n := heap.Pop(q).(nodeDist)
		if n.dist >= MaxPathWeight {
			break
		}
		if seen.Has(n.node) {
			continue
		}
		seen.Insert(n.node)

		for _, l := range sortedLinks(c.Links[n.node]) {
			nbr, ok := neighborOf(l, n.node, dstRooted)
			if !ok || seen.Has(nbr) {
				continue
			}
			ndist := n.dist + linkWeight(weights, l)
			if ndist < bt.Costs[nbr] {
				bt.Costs[nbr] = ndist
				bt.Links[nbr] = l
				heap.Push(q, nodeDist{node: nbr, dist: ndist})
			}
		}
	}
	return bt
}

// dijkstraMultipath is dijkstra that records every equal-cost next hop.
// Nodes are never marked as seen: a node is expanded again whenever it gains
// a shorter distance or an additional equal-cost link.
func dijkstraMultipath(c *Cluster, root SwitchID, weights map[Link]int, dstRooted bool) *BroadcastTreeMultipath {
	bt := newBroadcastTreeMultipath(root)
	for sw := range c.Links {
		bt.Costs[sw] = MaxPathWeight
	}

	q := &nodeQueue{{node: root, dist: 0}}
	bt.Costs[root] = 0

	for q.Len() > 0 {
		n := heap.Pop(q).(nodeDist)
		if n.dist >= MaxPathWeight {
			break
		}
		if n.dist > bt.Costs[n.node] {
			continue
		}

		for _, l := range sortedLinks(c.Links[n.node]) {
			nbr, ok := neighborOf(l, n.node, dstRooted)
			if !ok {
				continue
			}
			ndist := n.dist + linkWeight(weights, l)
			switch cost := bt.Costs[nbr]; {
			case ndist < cost:
				bt.Costs[nbr] = ndist
				bt.Links[nbr] = []Link{l}
				heap.Push(q, nodeDist{node: nbr, dist: ndist})
			case ndist == cost && nbr != root:
				if !slices.Contains(bt.Links[nbr], l) {
					bt.Links[nbr] = append(bt.Links[nbr], l)
					heap.Push(q, nodeDist{node: nbr, dist: ndist})
				}
			}
		}
	}

	for sw, links := range bt.Links {
		slices.SortFunc(links, Link.Compare)
		bt.Links[sw] = links
	}
	return bt
}

// tunnelLinkWeights penalizes links attached to tunnel ports so broadcast
// and unicast trees prefer physical links.
func (t *Instance) tunnelLinkWeights() map[Link]int {
	weights := make(map[Link]int)
	w := len(t.switchPorts) + 1
	for npt := range t.tunnelPorts {
		for l := range t.portLinks[npt] {
			weights[l] = w
		}
	}
	return weights
}

// calculateShortestPathTreeInClusters computes, for every switch of every
// cluster, the destination-rooted single and multipath trees.
func (t *Instance) calculateShortestPathTreeInClusters() {
	t.destinationRootedTrees = make(map[SwitchID]*BroadcastTree)
	t.destinationRootedTreesMultipath = make(map[SwitchID]*BroadcastTreeMultipath)

	weights := t.tunnelLinkWeights()
	for _, cid := range sortedSwitches(sets.KeySet(t.clusters)) {
		c := t.clusters[cid]
		for _, sw := range sortedSwitches(c.Nodes) {
			t.destinationRootedTrees[sw] = dijkstra(c, sw, weights, true)
			t.destinationRootedTreesMultipath[sw] = dijkstraMultipath(c, sw, weights, true)
		}
	}
}

// calculateBroadcastTreeInClusters uses the tree rooted at the cluster id as
// the broadcast tree of each cluster.
func (t *Instance) calculateBroadcastTreeInClusters() {
	for id := range t.clusters {
		if bt, ok := t.destinationRootedTrees[id]; ok {
			t.clusterBroadcastTrees[id] = bt
		}
	}
}

// calculateBroadcastNodePortsInClusters collects both ends of every
// broadcast tree link. Flooding inside a cluster is restricted to these ports.
func (t *Instance) calculateBroadcastNodePortsInClusters() {
	t.clusterBroadcastTrees = make(map[SwitchID]*BroadcastTree)
	t.calculateBroadcastTreeInClusters()

	for id, bt := range t.clusterBroadcastTrees {
		ports := sets.New[NodePortTuple]()
		for _, l := range bt.Links {
			ports.Insert(l.SrcNodePort(), l.DstNodePort())
		}
		t.clusterBroadcastNodePorts[id] = ports
	}
}

// getCost returns the intra-cluster cost from src to dst, or -1.
func (t *Instance) getCost(src, dst SwitchID) int {
	return t.destinationRootedTrees[dst].Cost(src)
}

func compareNodeDist(a, b nodeDist) int {
	if c := cmp.Compare(a.dist, b.dist); c != 0 {
		return c
	}
	return cmp.Compare(a.node, b.node)
}
