// pkg/aviation/airway.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"container/heap"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mmp/fms/pkg/log"
	"github.com/mmp/fms/pkg/math"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type AirwayLevel int

const (
	AirwayLevelBoth AirwayLevel = iota
	AirwayLevelLow
	AirwayLevelHigh
)

func (l AirwayLevel) String() string {
	switch l {
	case AirwayLevelLow:
		return "low"
	case AirwayLevelHigh:
		return "high"
	default:
		return "both"
	}
}

func ParseAirwayLevel(s string) (AirwayLevel, error) {
	switch strings.ToLower(s) {
	case "both", "all", "":
		return AirwayLevelBoth, nil
	case "low":
		return AirwayLevelLow, nil
	case "high":
		return AirwayLevelHigh, nil
	}
	return AirwayLevelBoth, fmt.Errorf("%s: unknown airway level: %w", s, ErrInvalidArgument)
}

// Includes reports whether a search of level l may use an airway of the
// given level. Airways in both networks are always usable.
func (l AirwayLevel) Includes(airway AirwayLevel) bool {
	return l == AirwayLevelBoth || airway == AirwayLevelBoth || airway == l
}

///////////////////////////////////////////////////////////////////////////
// Airway

// Airway is a named sequence of navaids and fixes.
type Airway struct {
	ident string
	Level AirwayLevel
	nodes []Positioned
	index map[Positioned]int
}

func (a *Airway) Ident() string { return a.ident }

func (a *Airway) String() string { return a.ident }

func (a *Airway) Nodes() []Positioned { return slices.Clone(a.nodes) }

func (a *Airway) ContainsNavaid(p Positioned) bool {
	_, ok := a.index[p]
	return ok
}

// FindEnroute returns the node on the airway with the given identifier.
func (a *Airway) FindEnroute(ident string) Positioned {
	for _, n := range a.nodes {
		if n.Ident() == ident {
			return n
		}
	}
	return nil
}

// WaypointsBetween returns the waypoints flown along the airway after
// from up to and including to, in either direction.
func (a *Airway) WaypointsBetween(from, to Positioned) ([]Waypoint, bool) {
	i, ok0 := a.index[from]
	j, ok1 := a.index[to]
	if !ok0 || !ok1 {
		return nil, false
	}

	var wps []Waypoint
	step := 1
	if j < i {
		step = -1
	}
	for k := i; k != j; {
		k += step
		wp := NewEntityWaypoint(a.nodes[k])
		wp.SetOwner(a)
		wps = append(wps, wp)
	}
	return wps, true
}

// ViaFromTo returns the waypoints along the airway from one of its nodes
// to another.
func ViaFromTo(from Positioned, aw *Airway, to Positioned) ([]Waypoint, error) {
	if aw == nil || from == nil || to == nil {
		return nil, fmt.Errorf("via: %w", ErrInvalidArgument)
	}
	if !aw.ContainsNavaid(from) {
		return nil, fmt.Errorf("%s: %s: %w", aw.ident, from.Ident(), ErrNotOnAirway)
	}
	wps, ok := aw.WaypointsBetween(from, to)
	if !ok {
		return nil, fmt.Errorf("%s: %s: %w", aw.ident, to.Ident(), ErrNotOnAirway)
	}
	return wps, nil
}

///////////////////////////////////////////////////////////////////////////
// AirwayNetwork

const DefaultMaxAirwayEntryNM = 50

// AirwayNetwork holds all of the airways and the graph formed by their
// segments.
type AirwayNetwork struct {
	airways map[string][]*Airway
	adj     map[Positioned][]airwayEdge
	nodes   []Positioned
	kdtree  *math.KDTree

	// MaxEntryDistanceNM bounds how far a route's endpoints may be from
	// the nearest airway node when they are not on an airway themselves.
	MaxEntryDistanceNM float32

	cache *expirable.LRU[routeKey, []routeStep]
	lg    *log.Logger
}

type airwayEdge struct {
	to       Positioned
	airway   *Airway
	distance float32
}

type routeKey struct {
	from, to Positioned
	level    AirwayLevel
}

type routeStep struct {
	node   Positioned
	airway *Airway
}

func NewAirwayNetwork(lg *log.Logger) *AirwayNetwork {
	return &AirwayNetwork{
		airways:            make(map[string][]*Airway),
		adj:                make(map[Positioned][]airwayEdge),
		MaxEntryDistanceNM: DefaultMaxAirwayEntryNM,
		cache:              expirable.NewLRU[routeKey, []routeStep](512, nil, 15*time.Minute),
		lg:                 lg,
	}
}

// AddAirway adds an airway through the given nodes, which must be at
// least two. Several airways may share an identifier.
func (n *AirwayNetwork) AddAirway(ident string, level AirwayLevel, nodes []Positioned) (*Airway, error) {
	if ident == "" || len(nodes) < 2 || slices.Contains(nodes, nil) {
		return nil, fmt.Errorf("airway %q: %w", ident, ErrInvalidArgument)
	}

	aw := &Airway{
		ident: ident,
		Level: level,
		nodes: slices.Clone(nodes),
		index: make(map[Positioned]int),
	}
	for i, node := range nodes {
		if _, ok := aw.index[node]; !ok {
			aw.index[node] = i
		}
		if _, ok := n.adj[node]; !ok {
			n.adj[node] = nil
			n.nodes = append(n.nodes, node)
		}
	}
	for i := 1; i < len(nodes); i++ {
		a, b := nodes[i-1], nodes[i]
		d := math.NMDistance2LL(a.Location(), b.Location())
		n.adj[a] = append(n.adj[a], airwayEdge{to: b, airway: aw, distance: d})
		n.adj[b] = append(n.adj[b], airwayEdge{to: a, airway: aw, distance: d})
	}

	n.airways[ident] = append(n.airways[ident], aw)
	n.kdtree = nil
	n.cache.Purge()
	return aw, nil
}

// Len returns the number of airways.
func (n *AirwayNetwork) Len() int {
	c := 0
	for _, aws := range n.airways {
		c += len(aws)
	}
	return c
}

// FindByIdent returns the first airway with the given identifier usable
// at the given level.
func (n *AirwayNetwork) FindByIdent(ident string, level AirwayLevel) *Airway {
	for _, aw := range n.airways[ident] {
		if level.Includes(aw.Level) {
			return aw
		}
	}
	return nil
}

// FindByIdentAndNavaid returns the airway with the given identifier that
// passes through near; if none does, it falls back to the first with the
// identifier.
func (n *AirwayNetwork) FindByIdentAndNavaid(ident string, near Positioned) *Airway {
	aws := n.airways[ident]
	if len(aws) == 0 {
		return nil
	}
	if near != nil {
		for _, aw := range aws {
			if aw.ContainsNavaid(near) {
				return aw
			}
		}
	}
	return aws[0]
}

// ContainsNavaid reports whether the entity is a node of any airway
// usable at the given level.
func (n *AirwayNetwork) ContainsNavaid(p Positioned, level AirwayLevel) bool {
	return n.hasEdges(p, level)
}

func (n *AirwayNetwork) hasEdges(p Positioned, level AirwayLevel) bool {
	for _, e := range n.adj[p] {
		if level.Includes(e.airway.Level) {
			return true
		}
	}
	return false
}

// entryNode returns the airway node the route from or to wp uses: the
// waypoint's own entity if it is on an airway, otherwise the closest
// node in range.
func (n *AirwayNetwork) entryNode(wp *Waypoint, level AirwayLevel) (node Positioned, exact bool) {
	if src := wp.Source(); src != nil && n.hasEdges(src, level) {
		return src, true
	}

	if n.kdtree == nil {
		items := make([]math.KDItem, len(n.nodes))
		for i, node := range n.nodes {
			items[i] = math.KDItem{Location: node.Location(), Index: i}
		}
		n.kdtree = math.BuildKDTree(items)
	}
	idx, _, ok := n.kdtree.Nearest(wp.Position(), n.MaxEntryDistanceNM, func(i int) bool {
		return n.hasEdges(n.nodes[i], level)
	})
	if !ok {
		return nil, false
	}
	return n.nodes[idx], false
}

// Route finds the shortest path along airways between two waypoints,
// using only airways usable at the given level. The result starts with
// the first node after start (or with the entry node, if start is not on
// an airway) and ends at the node closest to end. It is empty if there is
// no path.
func (n *AirwayNetwork) Route(start, end Waypoint, level AirwayLevel) []Waypoint {
	from, exact := n.entryNode(&start, level)
	to, _ := n.entryNode(&end, level)
	if from == nil || to == nil {
		n.lg.Debugf("airway route %s-%s: no entry node", start.Ident(), end.Ident())
		return nil
	}

	var wps []Waypoint
	if !exact {
		wps = append(wps, NewEntityWaypoint(from))
	}
	if from == to {
		return wps
	}

	steps := n.shortestPath(from, to, level)
	if steps == nil {
		n.lg.Debugf("airway route %s-%s: no path", from.Ident(), to.Ident())
		return nil
	}
	for _, s := range steps {
		wp := NewEntityWaypoint(s.node)
		wp.SetOwner(s.airway)
		wps = append(wps, wp)
	}
	return wps
}

func (n *AirwayNetwork) shortestPath(from, to Positioned, level AirwayLevel) []routeStep {
	key := routeKey{from: from, to: to, level: level}
	if steps, ok := n.cache.Get(key); ok {
		return steps
	}

	type visit struct {
		dist float32
		prev Positioned
		via  *Airway
		done bool
	}
	visits := map[Positioned]*visit{from: {}}
	pq := &nodeQueue{{node: from}}

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(queuedNode)
		v := visits[cur.node]
		if v.done {
			continue
		}
		v.done = true
		if cur.node == to {
			break
		}

		for _, e := range n.adj[cur.node] {
			if !level.Includes(e.airway.Level) {
				continue
			}
			d := v.dist + e.distance
			if nv, ok := visits[e.to]; !ok {
				visits[e.to] = &visit{dist: d, prev: cur.node, via: e.airway}
				heap.Push(pq, queuedNode{node: e.to, dist: d})
			} else if !nv.done && d < nv.dist {
				nv.dist, nv.prev, nv.via = d, cur.node, e.airway
				heap.Push(pq, queuedNode{node: e.to, dist: d})
			}
		}
	}

	var steps []routeStep
	if v, ok := visits[to]; ok && v.done {
		for node := to; node != from; node = visits[node].prev {
			steps = append(steps, routeStep{node: node, airway: visits[node].via})
		}
		slices.Reverse(steps)
	}
	n.cache.Add(key, steps)
	return steps
}

type queuedNode struct {
	node Positioned
	dist float32
}

type nodeQueue []queuedNode

func (q nodeQueue) Len() int           { return len(q) }
func (q nodeQueue) Less(i, j int) bool { return q[i].dist < q[j].dist }
func (q nodeQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x any)        { *q = append(*q, x.(queuedNode)) }
func (q *nodeQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}
