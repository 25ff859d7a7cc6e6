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
	"math"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"

	"github.com/NVIDIA/topoengine/internal/idrange"
)

// Cluster is an openflow domain: a strongly connected set of switches.
// Its ID is the smallest member switch id.
type Cluster struct {
	ID    SwitchID
	Nodes sets.Set[SwitchID]
	// Links holds the intra-cluster links of each member, indexed by both
	// the source and the destination switch.
	Links map[SwitchID]sets.Set[Link]
}

func newCluster() *Cluster {
	return &Cluster{
		ID:    math.MaxUint64,
		Nodes: sets.New[SwitchID](),
		Links: make(map[SwitchID]sets.Set[Link]),
	}
}

func (c *Cluster) add(sw SwitchID) {
	c.Nodes.Insert(sw)
	if _, ok := c.Links[sw]; !ok {
		c.Links[sw] = sets.New[Link]()
	}
	if sw < c.ID {
		c.ID = sw
	}
}

func (c *Cluster) addLink(l Link) {
	c.add(l.Src)
	c.add(l.Dst)
	c.Links[l.Src].Insert(l)
	c.Links[l.Dst].Insert(l)
}

func (c *Cluster) String() string {
	ids := make([]uint64, 0, c.Nodes.Len())
	for _, sw := range sortedSwitches(c.Nodes) {
		ids = append(ids, uint64(sw))
	}
	return fmt.Sprintf("Cluster %s %s", c.ID, idrange.Compact(ids))
}

type dfsState struct {
	visited     bool
	index       int64
	parentIndex int64
	lowpoint    int64
}

type dfsFrame struct {
	sw     SwitchID
	links  []Link
	cursor int
	// child is the switch whose traversal this frame is waiting on
	child *SwitchID
	// members are the switches accumulated below this node
	members sets.Set[SwitchID]
	// childSet collects the open members of the current child
	childSet sets.Set[SwitchID]
	// out is the caller's collection of open members
	out sets.Set[SwitchID]
}

// identifyOpenflowDomains partitions the switches into strongly connected
// components with a depth-first traversal based on Tarjan's algorithm.
// Unlike the textbook version, switches assigned to a closed cluster are
// never revisited, so the lowpoint starts at infinity and a cluster closes
// when the lowpoint exceeds the parent's index.
// Blocked links and broadcast domain links are not traversed.
func (t *Instance) identifyOpenflowDomains() {
	states := make(map[SwitchID]*dfsState, t.switches.Len())
	for sw := range t.switches {
		states[sw] = &dfsState{
			index:       math.MaxInt64,
			parentIndex: math.MaxInt64,
			lowpoint:    math.MaxInt64,
		}
	}

	var index int64 = 1
	open := sets.New[SwitchID]()
	for _, sw := range sortedSwitches(t.switches) {
		if states[sw].visited {
			continue
		}
		index = t.dfsTraverse(sw, index, states, open)
	}

	for _, sw := range sortedSwitches(t.switches) {
		if _, ok := t.switchCluster[sw]; !ok {
			klog.Errorf("No cluster found for switch %s; using a singleton cluster", sw)
			c := newCluster()
			c.add(sw)
			t.addCluster(c)
		}
	}
}

func (t *Instance) dfsTraverse(root SwitchID, index int64, states map[SwitchID]*dfsState, open sets.Set[SwitchID]) int64 {
	enter := func(sw SwitchID, parentIndex int64, out sets.Set[SwitchID]) *dfsFrame {
		st := states[sw]
		st.visited = true
		st.index = index
		st.parentIndex = parentIndex
		index++
		return &dfsFrame{
			sw:       sw,
			links:    t.outgoingLinks(sw),
			members:  sets.New[SwitchID](),
			childSet: sets.New[SwitchID](),
			out:      out,
		}
	}

	stack := []*dfsFrame{enter(root, 0, open)}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		st := states[f.sw]

		if f.child != nil {
			if cst := states[*f.child]; cst.lowpoint < st.lowpoint {
				st.lowpoint = cst.lowpoint
			}
			f.members.Insert(f.childSet.UnsortedList()...)
			clear(f.childSet)
			f.child = nil
		}

		var next *dfsFrame
		for next == nil && f.cursor < len(f.links) {
			l := f.links[f.cursor]
			f.cursor++

			dst := l.Dst
			if _, ok := t.switchCluster[dst]; ok {
				continue
			}
			dstState, ok := states[dst]
			if !ok {
				klog.Errorf("No DFS state for switch %s found; ignoring link %s", dst, l)
				continue
			}
			if dstState.index < st.index {
				if dstState.index < st.lowpoint {
					st.lowpoint = dstState.index
				}
			} else if !dstState.visited {
				f.child = &dst
				next = enter(dst, st.index, f.childSet)
			}
		}
		if next != nil {
			stack = append(stack, next)
			continue
		}

		f.members.Insert(f.sw)
		f.out.Insert(f.members.UnsortedList()...)
		if st.lowpoint > st.parentIndex {
			c := newCluster()
			for sw := range f.out {
				c.add(sw)
			}
			t.addCluster(c)
			clear(f.out)
		}
		stack = stack[:len(stack)-1]
	}

	return index
}

// outgoingLinks returns the traversable links leaving sw in a stable order.
func (t *Instance) outgoingLinks(sw SwitchID) []Link {
	var links []Link
	ports, ok := t.switchPorts[sw]
	if !ok {
		return nil
	}
	for _, p := range sortedPorts(ports) {
		lset, ok := t.portLinks[NodePortTuple{sw, p}]
		if !ok {
			continue
		}
		for _, l := range sortedLinks(lset) {
			if l.Dst == sw || t.isBlockedLink(l) || t.isBroadcastDomainLink(l) {
				continue
			}
			links = append(links, l)
		}
	}
	return links
}

func (t *Instance) addCluster(c *Cluster) {
	t.clusters[c.ID] = c
	for sw := range c.Nodes {
		t.switchCluster[sw] = c.ID
	}
}

func (t *Instance) clusterOf(sw SwitchID) (*Cluster, bool) {
	id, ok := t.switchCluster[sw]
	if !ok {
		return nil, false
	}
	return t.clusters[id], true
}

// addLinksToOpenflowDomains assigns the intra-cluster links to their clusters.
func (t *Instance) addLinksToOpenflowDomains() {
	for _, sw := range sortedSwitches(t.switches) {
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
				c1, ok1 := t.switchCluster[l.Src]
				c2, ok2 := t.switchCluster[l.Dst]
				if ok1 && ok2 && c1 == c2 {
					t.clusters[c1].addLink(l)
				}
			}
		}
	}
}
