// pkg/aviation/directory.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"slices"

	"github.com/mmp/fms/pkg/math"
)

// TypeFilter restricts directory queries to the given entity types. An
// empty filter accepts everything.
type TypeFilter []PositionedType

var (
	NavaidTypes   = TypeFilter{PositionedVOR, PositionedNDB, PositionedDME}
	RouteFixTypes = TypeFilter{PositionedVOR, PositionedNDB, PositionedDME, PositionedFix, PositionedAirport}
)

func (f TypeFilter) Accept(t PositionedType) bool {
	return len(f) == 0 || slices.Contains(f, t)
}

// Directory is the navigation database: it resolves identifiers,
// positions and frequencies to airports, runways, navaids and fixes.
type Directory interface {
	// FindByIdent returns all entities with the given identifier.
	FindByIdent(ident string, filter TypeFilter) []Positioned
	// FindClosest returns the entity closest to p within maxRangeNM.
	FindClosest(p math.Point2LL, maxRangeNM float32, filter TypeFilter) (Positioned, bool)
	// FindWithinRange returns the entities within rangeNM of p, ordered
	// by increasing distance.
	FindWithinRange(p math.Point2LL, rangeNM float32, filter TypeFilter) []Positioned
	// FindAllByFrequency returns the navaids using freq, ordered by
	// increasing distance from p.
	FindAllByFrequency(freq Frequency, p math.Point2LL, filter TypeFilter) []Positioned
	// Registry returns the arena holding the directory's entities.
	Registry() *Registry
}

// FindNearestByIdent returns the entity with the given identifier that
// is closest to the given point.
func FindNearestByIdent(d Directory, ident string, near math.Point2LL, filter TypeFilter) (Positioned, bool) {
	var best Positioned
	bestDist := float32(0)
	for _, p := range d.FindByIdent(ident, filter) {
		if dist := math.NMDistance2LL(near, p.Location()); best == nil || dist < bestDist {
			best, bestDist = p, dist
		}
	}
	return best, best != nil
}

// SortByDistance orders the entities by increasing distance from p.
func SortByDistance(ents []Positioned, p math.Point2LL) {
	slices.SortStableFunc(ents, func(a, b Positioned) int {
		da, db := math.NMDistance2LL(p, a.Location()), math.NMDistance2LL(p, b.Location())
		if da < db {
			return -1
		} else if da > db {
			return 1
		}
		return 0
	})
}
