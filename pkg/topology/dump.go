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

	"github.com/NVIDIA/topoengine/internal/idrange"
)

// Dump is a serializable view of a computed Instance.
type Dump struct {
	Clusters         []ClusterDump         `json:"clusters" yaml:"clusters"`
	BroadcastDomains []BroadcastDomainDump `json:"broadcastDomains,omitempty" yaml:"broadcastDomains,omitempty"`
	HigherLevelNodes []HigherLevelNodeDump `json:"higherLevelNodes" yaml:"higherLevelNodes"`
	AllowedPorts     []AllowedPortsDump    `json:"allowedPorts,omitempty" yaml:"allowedPorts,omitempty"`
	BlockedPorts     []NodePortTuple       `json:"blockedPorts,omitempty" yaml:"blockedPorts,omitempty"`
}

type ClusterDump struct {
	ID         SwitchID `json:"id" yaml:"id"`
	Switches   string   `json:"switches" yaml:"switches"`
	L2DomainID SwitchID `json:"l2DomainId" yaml:"l2DomainId"`
	Links      []Link   `json:"links,omitempty" yaml:"links,omitempty"`
}

type BroadcastDomainDump struct {
	ID    int64           `json:"id" yaml:"id"`
	Ports []NodePortTuple `json:"ports" yaml:"ports"`
}

type HigherLevelNodeDump struct {
	Key       NodeKey   `json:"key" yaml:"key"`
	Name      string    `json:"name" yaml:"name"`
	Neighbors []NodeKey `json:"neighbors,omitempty" yaml:"neighbors,omitempty"`
}

type AllowedPortsDump struct {
	Src               NodeKey         `json:"src" yaml:"src"`
	Dst               NodeKey         `json:"dst" yaml:"dst"`
	Ports             []NodePortTuple `json:"ports" yaml:"ports"`
	IncomingBroadcast *NodePortTuple  `json:"incomingBroadcast,omitempty" yaml:"incomingBroadcast,omitempty"`
}

func (t *Instance) Dump() *Dump {
	d := &Dump{}

	for _, id := range sortedSwitches(sets.KeySet(t.clusters)) {
		c := t.clusters[id]
		ids := make([]uint64, 0, c.Nodes.Len())
		for _, sw := range sortedSwitches(c.Nodes) {
			ids = append(ids, uint64(sw))
		}
		links := sets.New[Link]()
		for _, lset := range c.Links {
			links = links.Union(lset)
		}
		d.Clusters = append(d.Clusters, ClusterDump{
			ID:         id,
			Switches:   idrange.Compact(ids),
			L2DomainID: t.clusterL2Domain[t.clusterKey[id]],
			Links:      sortedLinks(links),
		})
	}

	for _, id := range sets.List(sets.KeySet(t.broadcastDomains)) {
		d.BroadcastDomains = append(d.BroadcastDomains, BroadcastDomainDump{
			ID:    id,
			Ports: sortedNodePorts(t.broadcastDomains[id].Ports),
		})
	}

	for _, key := range sortedNodeKeys(sets.KeySet(t.htNodes)) {
		d.HigherLevelNodes = append(d.HigherLevelNodes, HigherLevelNodeDump{
			Key:       key,
			Name:      t.htNodes[key].String(),
			Neighbors: sortedNodeKeys(t.htNeighbors[key]),
		})
	}

	pairs := make([]OrderedNodePair, 0, len(t.allowedUnicastPorts))
	for onp := range t.allowedUnicastPorts {
		pairs = append(pairs, onp)
	}
	slices.SortFunc(pairs, OrderedNodePair.Compare)
	for _, onp := range pairs {
		ap := AllowedPortsDump{
			Src:   onp.Src,
			Dst:   onp.Dst,
			Ports: sortedNodePorts(t.allowedUnicastPorts[onp]),
		}
		if npt, ok := t.allowedIncomingBroadcastPorts[onp]; ok {
			ap.IncomingBroadcast = &npt
		}
		d.AllowedPorts = append(d.AllowedPorts, ap)
	}

	d.BlockedPorts = sortedNodePorts(t.blockedPorts)
	return d
}
