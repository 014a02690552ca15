// pkg/math/kdtree.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	gomath "math"
	"slices"
)

// KDItem is a point stored in a KDTree along with a caller-defined index
// that identifies what the point represents.
type KDItem struct {
	Location Point2LL
	Index    int
}

// KDTree is a static 2D KD-tree over Point2LLs. Splits alternate between
// longitude and latitude; queries measure great-circle distance.
type KDTree struct {
	root *kdNode
	size int
}

type kdNode struct {
	KDItem
	axis        int
	left, right *kdNode
}

// BuildKDTree constructs a balanced KD-tree from the given items. The
// items slice is reordered.
func BuildKDTree(items []KDItem) *KDTree {
	return &KDTree{root: buildKDTreeRecursive(items, 0), size: len(items)}
}

func buildKDTreeRecursive(items []KDItem, depth int) *kdNode {
	if len(items) == 0 {
		return nil
	}

	// Alternate between X (depth even) and Y (depth odd)
	axis := depth % 2
	if len(items) == 1 {
		return &kdNode{KDItem: items[0], axis: axis}
	}

	// Sort by the splitting axis and find median
	slices.SortFunc(items, func(a, b KDItem) int {
		if a.Location[axis] < b.Location[axis] {
			return -1
		} else if a.Location[axis] > b.Location[axis] {
			return 1
		}
		return a.Index - b.Index
	})

	median := len(items) / 2

	return &kdNode{
		KDItem: items[median],
		axis:   axis,
		left:   buildKDTreeRecursive(items[:median], depth+1),
		right:  buildKDTreeRecursive(items[median+1:], depth+1),
	}
}

func (t *KDTree) Len() int {
	if t == nil {
		return 0
	}
	return t.size
}

// splitDistanceNM returns a lower bound on the great-circle distance from
// p to any point on the far side of n's splitting plane.
func (n *kdNode) splitDistanceNM(p Point2LL) float32 {
	if n.axis == 1 {
		// Distance along a meridian to the splitting parallel.
		return Abs(p[1]-n.Location[1]) * float32(EarthRadiusNM*gomath.Pi/180)
	}

	// The far side is bounded by the splitting meridian and by the
	// antimeridian; the distance to the nearer of the two great circles
	// is a lower bound.
	toCircle := func(dlon float32) float64 {
		s := gomath.Cos(toRadians64(p[1])) * gomath.Abs(gomath.Sin(toRadians64(dlon)))
		return EarthRadiusNM * gomath.Asin(gomath.Min(1, s))
	}
	return float32(gomath.Min(toCircle(p[0]-n.Location[0]), toCircle(p[0])))
}

// Nearest returns the index of the item closest to p that is within
// maxDistanceNM and accepted by the (optional) accept function.
func (t *KDTree) Nearest(p Point2LL, maxDistanceNM float32, accept func(index int) bool) (int, float32, bool) {
	best, bestDist := -1, maxDistanceNM
	found := false

	var visit func(n *kdNode)
	visit = func(n *kdNode) {
		if n == nil {
			return
		}
		if d := NMDistance2LL(p, n.Location); d <= bestDist && (accept == nil || accept(n.Index)) {
			if !found || d < bestDist || (d == bestDist && n.Index < best) {
				best, bestDist, found = n.Index, d, true
			}
		}

		near, far := n.left, n.right
		if p[n.axis] >= n.Location[n.axis] {
			near, far = far, near
		}
		visit(near)
		if n.splitDistanceNM(p) <= bestDist {
			visit(far)
		}
	}
	if t != nil {
		visit(t.root)
	}

	return best, bestDist, found
}

// WithinRange calls the provided callback for every item within rangeNM
// of p. Items are visited in no particular order.
func (t *KDTree) WithinRange(p Point2LL, rangeNM float32, fn func(index int, distanceNM float32)) {
	var visit func(n *kdNode)
	visit = func(n *kdNode) {
		if n == nil {
			return
		}
		if d := NMDistance2LL(p, n.Location); d <= rangeNM {
			fn(n.Index, d)
		}

		near, far := n.left, n.right
		if p[n.axis] >= n.Location[n.axis] {
			near, far = far, near
		}
		visit(near)
		if n.splitDistanceNM(p) <= rangeNM {
			visit(far)
		}
	}
	if t != nil {
		visit(t.root)
	}
}
