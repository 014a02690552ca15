// pkg/navdb/database.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package navdb

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mmp/fms/pkg/aviation"
	"github.com/mmp/fms/pkg/log"
	"github.com/mmp/fms/pkg/math"
	"github.com/mmp/fms/pkg/util"
)

var ErrUnresolved = errors.New("unresolved navigation data")

var airwayFixTypes = aviation.TypeFilter{aviation.PositionedVOR, aviation.PositionedNDB, aviation.PositionedDME,
	aviation.PositionedFix}

// Database is an in-memory navigation directory.
type Database struct {
	Airports map[string]*aviation.Airport
	Airways  *aviation.AirwayNetwork

	registry *aviation.Registry
	byIdent  map[string][]aviation.Positioned
	byFreq   map[aviation.Frequency][]aviation.Positioned
	spatial  []aviation.Positioned
	kdtree   *math.KDTree
	source   Data

	lg *log.Logger
}

var _ aviation.Directory = (*Database)(nil)

func NewDatabase(lg *log.Logger) *Database {
	return &Database{
		Airports: make(map[string]*aviation.Airport),
		Airways:  aviation.NewAirwayNetwork(lg),
		registry: aviation.NewRegistry(),
		byIdent:  make(map[string][]aviation.Positioned),
		byFreq:   make(map[aviation.Frequency][]aviation.Positioned),
		lg:       lg,
	}
}

// FromSnapshot builds a database from previously parsed data.
func FromSnapshot(d *Data, lg *log.Logger) (*Database, error) {
	db := NewDatabase(lg)
	return db, db.Build(d)
}

// Snapshot returns the plain-data form of everything the database was
// built from.
func (db *Database) Snapshot() *Data {
	return &db.source
}

func (db *Database) Registry() *aviation.Registry { return db.registry }

func (db *Database) Airport(icao string) *aviation.Airport { return db.Airports[icao] }

// Add registers the entity for the lifetime of the database and indexes
// it.
func (db *Database) Add(e aviation.Positioned) error {
	if _, err := db.registry.Add(e, true); err != nil {
		return err
	}

	db.byIdent[e.Ident()] = append(db.byIdent[e.Ident()], e)
	switch v := e.(type) {
	case *aviation.Navaid:
		if v.Frequency != 0 {
			db.byFreq[v.Frequency] = append(db.byFreq[v.Frequency], e)
		}
	case *aviation.Runway:
		db.byIdent[v.FullIdent()] = append(db.byIdent[v.FullIdent()], e)
	case *aviation.Airport:
		db.Airports[v.Identifier] = v
	}

	db.spatial = append(db.spatial, e)
	db.kdtree = nil
	return nil
}

// AddUserWaypoint creates an ad-hoc waypoint entity. It isn't indexed
// for queries and lives only while something holds a handle to it.
func (db *Database) AddUserWaypoint(ident string, p math.Point2LL) (*aviation.Fix, error) {
	f := aviation.NewUserWaypoint(ident, p)
	if _, err := db.registry.Add(f, false); err != nil {
		return nil, err
	}
	return f, nil
}

///////////////////////////////////////////////////////////////////////////
// aviation.Directory

func (db *Database) FindByIdent(ident string, filter aviation.TypeFilter) []aviation.Positioned {
	ents := util.FilterSlice(db.byIdent[ident], func(e aviation.Positioned) bool { return filter.Accept(e.Type()) })
	slices.SortFunc(ents, func(a, b aviation.Positioned) int {
		if a.Type() != b.Type() {
			return int(a.Type()) - int(b.Type())
		}
		return int(a.EntityID()) - int(b.EntityID())
	})
	return ents
}

func (db *Database) tree() *math.KDTree {
	if db.kdtree == nil {
		items := make([]math.KDItem, len(db.spatial))
		for i, e := range db.spatial {
			items[i] = math.KDItem{Location: e.Location(), Index: i}
		}
		db.kdtree = math.BuildKDTree(items)
	}
	return db.kdtree
}

func (db *Database) FindClosest(p math.Point2LL, maxRangeNM float32, filter aviation.TypeFilter) (aviation.Positioned, bool) {
	idx, _, ok := db.tree().Nearest(p, maxRangeNM, func(i int) bool {
		return filter.Accept(db.spatial[i].Type())
	})
	if !ok {
		return nil, false
	}
	return db.spatial[idx], true
}

func (db *Database) FindWithinRange(p math.Point2LL, rangeNM float32, filter aviation.TypeFilter) []aviation.Positioned {
	type hit struct {
		e    aviation.Positioned
		dist float32
	}
	var hits []hit
	db.tree().WithinRange(p, rangeNM, func(i int, dist float32) {
		if e := db.spatial[i]; filter.Accept(e.Type()) {
			hits = append(hits, hit{e: e, dist: dist})
		}
	})
	slices.SortStableFunc(hits, func(a, b hit) int {
		if a.dist < b.dist {
			return -1
		} else if a.dist > b.dist {
			return 1
		}
		return int(a.e.EntityID()) - int(b.e.EntityID())
	})
	return util.MapSlice(hits, func(h hit) aviation.Positioned { return h.e })
}

func (db *Database) FindAllByFrequency(freq aviation.Frequency, p math.Point2LL, filter aviation.TypeFilter) []aviation.Positioned {
	ents := util.FilterSlice(db.byFreq[freq], func(e aviation.Positioned) bool { return filter.Accept(e.Type()) })
	aviation.SortByDistance(ents, p)
	return ents
}

///////////////////////////////////////////////////////////////////////////
// Building from Data

// Build adds everything in d to the database. Procedures and airways
// that refer to unknown fixes are skipped; they are reported in the
// returned error, which wraps ErrUnresolved, but the rest of the
// database is usable.
func (db *Database) Build(d *Data) error {
	var e util.ErrorLogger

	for _, n := range d.Navaids {
		db.add(aviation.NewNavaid(n.Ident, n.Name, n.Type, n.Location, n.Frequency), &e)
	}
	for _, f := range d.Fixes {
		fix := aviation.NewFix(f.Ident, f.Location)
		fix.Region = f.Region
		db.add(fix, &e)
	}

	airports := make([]*aviation.Airport, len(d.Airports))
	for i, ar := range d.Airports {
		ap := aviation.NewAirport(ar.Ident, ar.Name, ar.Location, ar.Elevation)
		for _, rr := range ar.Runways {
			rwy := ap.AddRunway(rr.Ident, rr.Threshold, rr.Heading, rr.Elevation)
			rwy.LengthFt = rr.LengthFt
			rwy.DisplacedThresholdDistance = rr.DisplacedThresholdDist
			db.add(rwy, &e)
		}
		db.add(ap, &e)
		airports[i] = ap
	}

	// Everything procedures and airways refer to is now available.
	for i, ar := range d.Airports {
		e.Push(ar.Ident)
		for _, pr := range ar.Procedures {
			db.buildProcedure(airports[i], pr, &e)
		}
		e.Pop()
	}
	for _, ar := range d.Airways {
		db.buildAirway(ar, &e)
	}

	db.source.Merge(d)

	if e.HaveErrors() {
		db.lg.Warnf("navdb: %d problems building database", strings.Count(e.String(), "\n")+1)
	}
	return e.Err(ErrUnresolved)
}

func (db *Database) add(ent aviation.Positioned, e *util.ErrorLogger) {
	if err := db.Add(ent); err != nil {
		e.Error(err)
	}
}

func (db *Database) buildProcedure(ap *aviation.Airport, pr ProcedureRecord, e *util.ErrorLogger) {
	e.Push(pr.Ident)
	defer e.Pop()

	var proc *aviation.Procedure
	if pr.Type.IsApproach() {
		var err error
		if proc, err = aviation.NewApproach(pr.Ident, pr.Type, pr.Runway); err != nil {
			e.Error(err)
			return
		}
	} else {
		proc = aviation.NewProcedure(pr.Ident, pr.Type)
	}
	ap.AddProcedure(proc)

	for _, seg := range pr.Segments {
		wps, ok := db.resolveLegs(ap, seg.Legs, e)
		if !ok {
			continue
		}
		switch t := seg.Transition; {
		case t == "" || t == "ALL":
			proc.SetCommonRoute(wps)
		case !pr.Type.IsApproach() && isRunwayTransition(t):
			rwys := matchingRunways(ap, t)
			if len(rwys) == 0 {
				e.ErrorString("%s: no such runway", t)
			}
			for _, rwy := range rwys {
				proc.AddRunwayRoute(rwy.Identifier, wps)
			}
		default:
			proc.AddTransition(t, wps)
		}
	}

	if wps, ok := db.resolveLegs(ap, pr.Missed, e); ok {
		proc.SetMissedApproach(wps)
	}
}

func isRunwayTransition(t string) bool {
	return len(t) > 2 && strings.HasPrefix(t, "RW") && t[2] >= '0' && t[2] <= '9'
}

// matchingRunways returns the runways named by a runway transition;
// "RW04B" applies to all of the parallel runways 4L, 4C and 4R.
func matchingRunways(ap *aviation.Airport, t string) []*aviation.Runway {
	id := aviation.NormalizeRunwayIdent(t)
	if rwy := ap.Runway(id); rwy != nil {
		return []*aviation.Runway{rwy}
	}
	if base, ok := strings.CutSuffix(id, "B"); ok {
		return util.FilterSlice(ap.Runways, func(r *aviation.Runway) bool {
			return len(r.Identifier) == len(base)+1 && strings.HasPrefix(r.Identifier, base)
		})
	}
	return nil
}

func (db *Database) resolveLegs(ap *aviation.Airport, legs []LegRecord, e *util.ErrorLogger) ([]aviation.Waypoint, bool) {
	wps := make([]aviation.Waypoint, 0, len(legs))
	for _, leg := range legs {
		ent := db.resolveTerminalFix(ap, leg.Fix)
		if ent == nil {
			e.ErrorString("%s: unknown fix", leg.Fix)
			return nil, false
		}

		wp := aviation.NewEntityWaypoint(ent)
		wp.SetFlyOver(leg.FlyOver)
		wp.SetFlag(aviation.WaypointFlagIAF, leg.IAF)
		wp.SetFlag(aviation.WaypointFlagFAF, leg.FAF)
		wp.SetAltitudeRestriction(leg.Altitude)
		wp.SetSpeedRestriction(leg.Speed)
		if leg.Hold != nil {
			if err := wp.ConvertToHold(); err != nil {
				e.Error(err)
			} else if err := wp.SetHoldParams(*leg.Hold); err != nil {
				e.Error(err)
			}
		}
		wps = append(wps, wp)
	}
	return wps, len(wps) > 0
}

// resolveTerminalFix finds the fix a procedure at the airport refers to:
// one of its runways, a terminal fix defined for it, or the closest
// enroute fix or navaid with the identifier.
func (db *Database) resolveTerminalFix(ap *aviation.Airport, ident string) aviation.Positioned {
	if isRunwayTransition(ident) {
		if rwy := ap.Runway(ident); rwy != nil {
			return rwy
		}
	}
	for _, ent := range db.FindByIdent(ident, aviation.TypeFilter{aviation.PositionedFix}) {
		if f, ok := ent.(*aviation.Fix); ok && f.Region == ap.Identifier {
			return f
		}
	}
	ent, _ := aviation.FindNearestByIdent(db, ident, ap.Location(), airwayFixTypes)
	return ent
}

func (db *Database) buildAirway(ar AirwayRecord, e *util.ErrorLogger) {
	e.Push(ar.Ident)
	defer e.Pop()

	var nodes []aviation.Positioned
	flush := func() {
		if len(nodes) >= 2 {
			if _, err := db.Airways.AddAirway(ar.Ident, ar.Level, nodes); err != nil {
				e.Error(err)
			}
		}
		nodes = nil
	}

	for i, id := range ar.Fixes {
		cands := db.FindByIdent(id, airwayFixTypes)
		if len(cands) == 0 {
			// Split the airway at fixes we don't know about.
			e.ErrorString("%s: unknown fix", id)
			flush()
			continue
		}

		var near math.Point2LL
		if n := len(nodes); n > 0 {
			near = nodes[n-1].Location()
		} else if i+1 < len(ar.Fixes) {
			if next := db.FindByIdent(ar.Fixes[i+1], airwayFixTypes); len(next) > 0 {
				near = next[0].Location()
			}
		}
		if near.IsZero() {
			nodes = append(nodes, cands[0])
		} else {
			aviation.SortByDistance(cands, near)
			nodes = append(nodes, cands[0])
		}
	}
	flush()
}

func (db *Database) String() string {
	nproc := 0
	for _, ap := range db.Airports {
		nproc += len(ap.SIDs) + len(ap.STARs) + len(ap.Approaches)
	}
	return fmt.Sprintf("%d entities, %d airports, %d procedures, %d airways",
		db.registry.Len(), len(db.Airports), nproc, db.Airways.Len())
}
