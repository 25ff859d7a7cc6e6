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

// Instance is the topology computed from one Snapshot. Compute must return
// before the instance is shared; afterwards all state is read-only except
// the internally synchronized route cache.
type Instance struct {
	opts  Options
	input *Snapshot

	// graph
	switches     sets.Set[SwitchID]
	switchPorts  map[SwitchID]sets.Set[PortID]
	blockedPorts sets.Set[NodePortTuple]
	portLinks    map[NodePortTuple]sets.Set[Link]
	tunnelPorts  sets.Set[NodePortTuple]
	tunnelDomain *SwitchID

	// openflow domains
	clusters      map[SwitchID]*Cluster
	switchCluster map[SwitchID]SwitchID

	broadcastDomains    map[int64]*BroadcastDomain
	portBroadcastDomain map[NodePortTuple]int64

	// higher-level topology
	htNodes         map[NodeKey]htNode
	clusterKey      map[SwitchID]NodeKey
	domainKey       map[int64]NodeKey
	htNeighbors     map[NodeKey]sets.Set[NodeKey]
	htNextHop       map[NodeKey]map[NodeKey]NodeKey
	clusterL2Domain map[NodeKey]SwitchID

	allowedUnicastPorts           map[OrderedNodePair]sets.Set[NodePortTuple]
	allowedIncomingBroadcastPorts map[OrderedNodePair]NodePortTuple
	permittedSwitches             map[NodePortTuple]sets.Set[SwitchID]
	permittedPortToNodes          map[NodePortTuple]sets.Set[NodeKey]

	// routing trees, keyed by root switch
	destinationRootedTrees          map[SwitchID]*BroadcastTree
	destinationRootedTreesMultipath map[SwitchID]*BroadcastTreeMultipath
	// broadcast trees, keyed by cluster id
	clusterBroadcastTrees     map[SwitchID]*BroadcastTree
	clusterBroadcastNodePorts map[SwitchID]sets.Set[NodePortTuple]

	routes *routeCache
}

// NewInstance copies snap so later changes to it do not affect the instance.
func NewInstance(snap *Snapshot, opts Options) *Instance {
	if opts.RouteCacheSize <= 0 {
		opts.RouteCacheSize = DefaultRouteCacheSize
	}
	t := &Instance{
		opts:  opts,
		input: snap.Clone(),
	}
	t.routes = newRouteCache(opts.RouteCacheSize, t.buildRoute)
	t.reset()
	return t
}

func (t *Instance) Options() Options {
	return t.opts
}

// reset rebuilds the graph state from the input snapshot and clears
// everything derived from it.
func (t *Instance) reset() {
	in := t.input

	t.switchPorts = make(map[SwitchID]sets.Set[PortID], len(in.SwitchPorts))
	for sw, ports := range in.SwitchPorts {
		t.switchPorts[sw] = ports.Clone()
	}
	t.portLinks = make(map[NodePortTuple]sets.Set[Link], len(in.PortLinks))
	for npt, links := range in.PortLinks {
		t.portLinks[npt] = links.Clone()
	}
	// switches without any link are valid endpoints but belong to no cluster
	t.switches = sets.New[SwitchID]()
	for npt, links := range t.portLinks {
		if links.Len() > 0 {
			t.switches.Insert(npt.Switch)
		}
	}
	t.blockedPorts = in.BlockedPorts.Clone()
	t.tunnelPorts = in.TunnelPorts.Clone()
	t.tunnelDomain = nil
	if in.TunnelDomain != nil {
		td := *in.TunnelDomain
		t.tunnelDomain = &td
	}

	t.clusters = make(map[SwitchID]*Cluster)
	t.switchCluster = make(map[SwitchID]SwitchID)
	t.broadcastDomains = make(map[int64]*BroadcastDomain)
	t.portBroadcastDomain = make(map[NodePortTuple]int64)
	t.copyBroadcastDomains(in.BroadcastDomains)

	t.htNodes = make(map[NodeKey]htNode)
	t.clusterKey = make(map[SwitchID]NodeKey)
	t.domainKey = make(map[int64]NodeKey)
	t.htNeighbors = make(map[NodeKey]sets.Set[NodeKey])
	t.htNextHop = make(map[NodeKey]map[NodeKey]NodeKey)
	t.clusterL2Domain = make(map[NodeKey]SwitchID)

	t.allowedUnicastPorts = make(map[OrderedNodePair]sets.Set[NodePortTuple])
	t.allowedIncomingBroadcastPorts = make(map[OrderedNodePair]NodePortTuple)
	t.permittedSwitches = make(map[NodePortTuple]sets.Set[SwitchID])
	t.permittedPortToNodes = make(map[NodePortTuple]sets.Set[NodeKey])

	t.destinationRootedTrees = make(map[SwitchID]*BroadcastTree)
	t.destinationRootedTreesMultipath = make(map[SwitchID]*BroadcastTreeMultipath)
	t.clusterBroadcastTrees = make(map[SwitchID]*BroadcastTree)
	t.clusterBroadcastNodePorts = make(map[SwitchID]sets.Set[NodePortTuple])
}

// Compute runs the whole pipeline. It is single threaded and deterministic
// for a given snapshot and options.
func (t *Instance) Compute() {
	t.routes.purge()
	t.reset()

	t.createTunnelDomainLinks()

	t.identifyOpenflowDomains()
	t.addLinksToOpenflowDomains()

	t.createHigherLevelTopology()
	t.createForestInHigherLevelTopology()
	t.computeClusterL2DomainMap()

	t.classifyPorts()

	t.calculateShortestPathTreeInClusters()
	t.calculateBroadcastNodePortsInClusters()

	t.calculateSwitchPortMappings()

	if klog.V(5).Enabled() {
		t.printTopology()
	}
}

func (t *Instance) printTopology() {
	d := t.Dump()
	klog.Infof("-----------------------------------------------")
	klog.Infof("Topology: multipath=%t traffic_spreading=%t", t.opts.Multipath, t.opts.TrafficSpreading)
	for _, c := range d.Clusters {
		klog.Infof("Cluster %s switches %s links %d", c.ID, c.Switches, len(c.Links))
	}
	for _, bd := range d.BroadcastDomains {
		klog.Infof("Broadcast domain %d ports %v", bd.ID, bd.Ports)
	}
	for _, n := range d.HigherLevelNodes {
		klog.Infof("Higher-level node %d %s neighbors %v", n.Key, n.Name, n.Neighbors)
	}
	for _, p := range d.AllowedPorts {
		klog.Infof("Allowed %d->%d ports %v incoming broadcast %v", p.Src, p.Dst, p.Ports, p.IncomingBroadcast)
	}
	klog.Infof("Blocked ports %v", d.BlockedPorts)
	klog.Infof("-----------------------------------------------")
}
