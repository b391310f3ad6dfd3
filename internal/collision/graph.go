// Package collision implements the collision detector (C5) and resolver
// (C6): building the possible-collisions graph from global-index
// overlaps, decomposing it into connected components, locating the
// earliest collision instant per component via C1's root finder, and
// rewriting/cancelling trajectories once a resolution graph is chosen.
package collision

import (
	"github.com/banshee-data/apriori/internal/rtree"
	"github.com/banshee-data/apriori/internal/simcontext"
)

// node identifies one (body, colliding segment) pair in the
// possible-collisions / resolution graph (§4.5, §4.6).
type node struct {
	Body    simcontext.BodyID
	Segment int64
}

// Edge is one candidate collision between two bodies' segments, with its
// candidate instant once computed (§4.5 steps 2-3). BoxA/BoxB carry each
// side's own segment time interval, captured when the edge is first built,
// so refinement doesn't need to re-query the local indices.
type Edge struct {
	A, B  node
	BoxA  rtree.Box
	BoxB  rtree.Box
	TStar float64
	Valid bool
}

// unionFind is a small disjoint-set structure used to decompose the
// possible-collisions graph into connected components (§4.5 step 2). No
// library in the retrieval pack exposes a general undirected-graph
// connected-components API with enough evidence to ground against (see
// DESIGN.md); a plain union-find is the idiomatic minimal tool for this.
type unionFind struct {
	parent map[node]node
	rank   map[node]int
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[node]node), rank: make(map[node]int)}
}

func (u *unionFind) find(n node) node {
	if _, ok := u.parent[n]; !ok {
		u.parent[n] = n
		return n
	}
	root := n
	for u.parent[root] != root {
		root = u.parent[root]
	}
	// Path compression.
	for u.parent[n] != root {
		next := u.parent[n]
		u.parent[n] = root
		n = next
	}
	return root
}

func (u *unionFind) union(a, b node) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
}

// components groups edges by connected component, keyed by the
// component's union-find root.
func components(edges []Edge) map[node][]Edge {
	uf := newUnionFind()
	for _, e := range edges {
		uf.find(e.A)
		uf.find(e.B)
		uf.union(e.A, e.B)
	}

	grouped := make(map[node][]Edge)
	for _, e := range edges {
		root := uf.find(e.A)
		grouped[root] = append(grouped[root], e)
	}
	return grouped
}
