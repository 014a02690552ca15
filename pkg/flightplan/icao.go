// pkg/flightplan/icao.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/mmp/fms/pkg/aviation"
	"github.com/mmp/fms/pkg/math"
	"github.com/mmp/fms/pkg/util"
)

// Speed and level group, e.g. N0450F350 or M078F370.
var speedLevelRE = regexp.MustCompile(`^([NKM])([0-9]{3,4})([FSAM])([0-9]{3,4})$`)

// userWaypointDirectory is implemented by directories that can create
// ad-hoc entities for coordinates given in a route.
type userWaypointDirectory interface {
	AddUserWaypoint(ident string, p math.Point2LL) (*aviation.Fix, error)
}

type icaoRoute struct {
	dir     aviation.Directory
	airways *aviation.AirwayNetwork
	e       *util.ErrorLogger

	dep, dest       *aviation.Airport
	depRwy, destRwy *aviation.Runway
	sid, star       *aviation.Procedure

	speedKts, altitudeFt, flightLevel int
	mach                              float32
	haveCruise                        bool

	enroute []aviation.Waypoint
	last    aviation.Positioned // most recent enroute entity
	pos     math.Point2LL       // most recent position

	// References to user waypoints created while parsing; held until the
	// plan's legs have their own.
	handles []*aviation.Handle
}

// ParseICAORouteString replaces the plan's route with the one described
// by an ICAO route string such as
//
//	KJFK/31L N0450F350 SKORR5 YNKEE J1 MERIT DCT 4040N07320W CAMRN4 KBOS
//
// The departure airport, speed and level group, SID, STAR and
// destination airport are all optional. SID and STAR transitions are
// taken from the first and last enroute fixes when they match. If the
// string can't be parsed, the plan is left unchanged.
func (fp *FlightPlan) ParseICAORouteString(text string) error {
	if fp.env.Directory == nil {
		return ErrNoDirectory
	}
	tokens := strings.Fields(strings.ToUpper(text))
	if len(tokens) == 0 {
		return fmt.Errorf("empty route: %w", ErrInvalidRouteString)
	}

	var e util.ErrorLogger
	r := &icaoRoute{dir: fp.env.Directory, airways: fp.env.Airways, e: &e}
	defer r.release()

	r.parse(tokens)
	if err := e.Err(ErrInvalidRouteString); err != nil {
		return err
	}

	r.apply(fp)
	fp.lg.Debug("parsed route", slog.String("route", text), slog.Any("plan", fp))
	return nil
}

func (r *icaoRoute) release() {
	for _, h := range r.handles {
		h.Release()
	}
	r.handles = nil
}

func (r *icaoRoute) parse(tokens []string) {
	i, j := 0, len(tokens)

	if ap, rwy, ok := r.airport(tokens[0]); ok {
		r.dep, r.depRwy = ap, rwy
		r.pos = ap.Location()
		i++
	}
	if i < j && r.speedLevel(tokens[i]) {
		i++
	}
	if j > i {
		if ap, rwy, ok := r.airport(tokens[j-1]); ok {
			r.dest, r.destRwy = ap, rwy
			if r.dep == nil {
				r.pos = ap.Location()
			}
			j--
		}
	}
	if r.dep != nil && i < j {
		if p := r.procedure(tokens[i], r.dep.SID); p != nil {
			r.sid = p
			i++
			if i < j {
				r.joinSID(tokens[i])
			}
		}
	}
	if r.dest != nil && j > i {
		if p := r.procedure(tokens[j-1], r.dest.STAR); p != nil {
			r.star = p
			j--
		}
	}

	for k := i; k < j; k++ {
		tok := tokens[k]
		if tok == "DCT" {
			continue
		}

		r.e.Push(tok)
		if aw := r.airway(tok); aw != nil {
			if k+1 == j {
				r.e.ErrorString("airway has no exit fix")
			} else {
				k++
				r.followAirway(aw, tokens[k])
			}
		} else {
			r.fix(tok)
		}
		r.e.Pop()
	}

	r.bindTransitions()
}

// airport parses tokens of the form ICAO or ICAO/RUNWAY.
func (r *icaoRoute) airport(tok string) (*aviation.Airport, *aviation.Runway, bool) {
	ident, rwyIdent, _ := strings.Cut(tok, "/")
	ents := r.dir.FindByIdent(ident, aviation.TypeFilter{aviation.PositionedAirport})
	if len(ents) == 0 {
		return nil, nil, false
	}
	ap, ok := ents[0].(*aviation.Airport)
	if !ok {
		return nil, nil, false
	}
	if rwyIdent == "" {
		return ap, nil, true
	}
	rwy := ap.Runway(rwyIdent)
	if rwy == nil {
		r.e.ErrorString("%s: no runway %q", ident, rwyIdent)
	}
	return ap, rwy, true
}

func (r *icaoRoute) speedLevel(tok string) bool {
	m := speedLevelRE.FindStringSubmatch(tok)
	if m == nil {
		return false
	}
	speed, _ := strconv.Atoi(m[2])
	level, _ := strconv.Atoi(m[4])

	switch m[1] {
	case "N":
		r.speedKts = speed
	case "K":
		r.speedKts = int(float32(speed)/1.852 + 0.5)
	case "M":
		r.mach = float32(speed) / 100
	}
	switch m[3] {
	case "F":
		r.flightLevel = level
	case "A":
		r.altitudeFt = level * 100
	case "S", "M":
		// Tens of meters.
		r.altitudeFt = int(float32(level*10)*3.28084 + 0.5)
	}
	r.haveCruise = true
	return true
}

// procedure resolves a SID or STAR token, either an identifier or
// IDENT.TRANSITION.
func (r *icaoRoute) procedure(tok string, lookup func(string) *aviation.Procedure) *aviation.Procedure {
	ident, trans := aviation.ParseProcedureName(tok)
	p := lookup(ident)
	if p == nil || trans == "" {
		return p
	}
	if t := p.Transition(trans); t != nil {
		return t
	}
	r.e.ErrorString("%s: no transition %q", ident, trans)
	return p
}

// airway returns the airway named by tok if it can be joined at the
// previous fix.
func (r *icaoRoute) airway(tok string) *aviation.Airway {
	if r.airways == nil {
		return nil
	}
	aw := r.airways.FindByIdentAndNavaid(tok, r.last)
	if aw == nil {
		return nil
	}
	if r.last == nil || !aw.ContainsNavaid(r.last) {
		// An identifier that names an airway but can't be joined here
		// may still be a fix.
		if _, ok := aviation.FindNearestByIdent(r.dir, tok, r.pos, aviation.RouteFixTypes); ok {
			return nil
		}
	}
	return aw
}

// joinSID makes the SID's last fix the point the enroute route starts
// from, so that an airway can be joined there. If no transition was
// given and next names an airway, the transition that ends on it is
// selected. Errors in the SID itself are reported by bindTransitions.
func (r *icaoRoute) joinSID(next string) {
	primary, trans := splitTransition(r.sid)
	if trans == nil && r.airways != nil {
		for _, name := range primary.TransitionIdents() {
			t := primary.Transition(name)
			wps, err := primary.Route(r.depRwy, t)
			if err != nil || len(wps) == 0 {
				continue
			}
			exit := wps[len(wps)-1].Source()
			if aw := r.airways.FindByIdentAndNavaid(next, exit); exit != nil && aw != nil && aw.ContainsNavaid(exit) {
				r.sid, trans = t, t
				break
			}
		}
	}

	wps, err := primary.Route(r.depRwy, trans)
	if err != nil || len(wps) == 0 {
		return
	}
	exit := wps[len(wps)-1]
	r.last, r.pos = exit.Source(), exit.Position()
}

func (r *icaoRoute) followAirway(aw *aviation.Airway, exit string) {
	if r.last == nil {
		r.e.ErrorString("no fix to join airway at")
		return
	}
	to := aw.FindEnroute(exit)
	if to == nil {
		r.e.ErrorString("%s is not on the airway", exit)
		return
	}
	wps, err := aviation.ViaFromTo(r.last, aw, to)
	if err != nil {
		r.e.Error(err)
		return
	}
	r.enroute = append(r.enroute, wps...)
	r.last, r.pos = to, to.Location()
}

func (r *icaoRoute) fix(tok string) {
	if p, ok := math.ParseICAOLatLong(tok); ok {
		r.userWaypoint(tok, p)
		return
	}

	e, ok := aviation.FindNearestByIdent(r.dir, tok, r.pos, aviation.RouteFixTypes)
	if !ok {
		r.e.ErrorString("unknown fix")
		return
	}
	r.enroute = append(r.enroute, aviation.NewEntityWaypoint(e))
	r.last, r.pos = e, e.Location()
}

func (r *icaoRoute) userWaypoint(ident string, p math.Point2LL) {
	if uw, ok := r.dir.(userWaypointDirectory); ok {
		f, err := uw.AddUserWaypoint(ident, p)
		if err != nil {
			r.e.Error(err)
			return
		}
		if h := r.dir.Registry().Acquire(f.EntityID()); h != nil {
			r.handles = append(r.handles, h)
		}
		r.enroute = append(r.enroute, aviation.NewEntityWaypoint(f))
	} else {
		r.enroute = append(r.enroute, aviation.NewBasicWaypoint(ident, p))
	}
	r.last, r.pos = nil, p
}

// bindTransitions picks SID and STAR transitions from the adjoining
// enroute fixes, checks that the procedures can be flown, and drops
// enroute fixes that the procedures already include.
func (r *icaoRoute) bindTransitions() {
	if r.sid != nil {
		if r.sid.Parent() == nil && len(r.enroute) > 0 {
			if t := r.sid.Transition(r.enroute[0].Ident()); t != nil {
				r.sid = t
			}
		}
		primary, trans := splitTransition(r.sid)
		if wps, err := primary.Route(r.depRwy, trans); err != nil {
			r.e.Error(err)
		} else if len(wps) > 0 && len(r.enroute) > 0 && wps[len(wps)-1].Ident() == r.enroute[0].Ident() {
			r.enroute = r.enroute[1:]
		}
	}

	if r.star != nil {
		if r.star.Parent() == nil && len(r.enroute) > 0 {
			if t := r.star.Transition(r.enroute[len(r.enroute)-1].Ident()); t != nil {
				r.star = t
			}
		}
		primary, trans := splitTransition(r.star)
		if wps, err := primary.Route(r.destRwy, trans); err != nil {
			r.e.Error(err)
		} else if len(wps) > 0 && len(r.enroute) > 0 && wps[0].Ident() == r.enroute[len(r.enroute)-1].Ident() {
			r.enroute = r.enroute[:len(r.enroute)-1]
		}
	}
}

func (r *icaoRoute) apply(fp *FlightPlan) {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.clearLegs()
	fp.active = false
	fp.sid, fp.sidTransition = nil, nil
	fp.star, fp.starTransition = nil, nil
	fp.approach, fp.approachTransition = nil, nil

	fp.setDeparture(r.dep)
	fp.departureRunway = r.depRwy
	fp.setDestination(r.dest)
	fp.destinationRunway = r.destRwy
	fp.pending |= pendingDeparture | pendingArrival | pendingWaypoints

	if r.haveCruise {
		fp.CruiseSpeedKts, fp.CruiseMach = r.speedKts, r.mach
		fp.CruiseAltitudeFt, fp.CruiseFlightLevel = r.altitudeFt, r.flightLevel
	}

	if len(r.enroute) > 0 {
		if _, err := fp.InsertWaypointsAtIndex(r.enroute, -1); err != nil {
			fp.lg.Error("inserting enroute waypoints", slog.Any("error", err))
		}
	}
	if r.sid != nil {
		fp.sid, fp.sidTransition = splitTransition(r.sid)
		if err := fp.ApplySID(); err != nil {
			fp.lg.Error("applying SID", slog.Any("error", err))
		}
	}
	if r.star != nil {
		fp.star, fp.starTransition = splitTransition(r.star)
		if err := fp.ApplySTAR(); err != nil {
			fp.lg.Error("applying STAR", slog.Any("error", err))
		}
	}
}

///////////////////////////////////////////////////////////////////////////
// Formatting

// AsICAORouteString returns the plan's route in the form accepted by
// ParseICAORouteString. Legs generated by procedures are represented by
// the procedure; approaches, holds and discontinuities are omitted.
func (fp *FlightPlan) AsICAORouteString() string {
	var parts []string

	if fp.departure != nil {
		parts = append(parts, airportToken(fp.departure, fp.departureRunway))
	}
	if g := fp.speedLevelGroup(); g != "" {
		parts = append(parts, g)
	}
	if fp.sid != nil {
		parts = append(parts, procedureToken(fp.sid, fp.sidTransition))
	}

	var prevIdent string // last fix emitted
	var prevAirway *aviation.Airway
	for i, l := range fp.legs {
		wp := l.wp
		if wp.IsDiscontinuity() {
			prevAirway = nil
			continue
		}
		if _, ok := wp.Owner().(*aviation.Procedure); ok {
			continue
		}

		ident := fixToken(wp)
		if aw := legAirway(wp); aw != nil {
			if aw == prevAirway {
				// Extend the run: replace its exit fix.
				parts[len(parts)-1] = ident
			} else {
				if i > 0 && prevIdent != fp.legs[i-1].wp.Ident() && !fp.legs[i-1].wp.IsDiscontinuity() {
					// Entry fix came from a procedure.
					parts = append(parts, fixToken(fp.legs[i-1].wp))
				}
				parts = append(parts, aw.Ident(), ident)
			}
			prevAirway = aw
		} else {
			if prevIdent != "" {
				parts = append(parts, "DCT")
			}
			parts = append(parts, ident)
			prevAirway = nil
		}
		prevIdent = wp.Ident()
	}

	if fp.star != nil {
		parts = append(parts, procedureToken(fp.star, fp.starTransition))
	}
	if fp.destination != nil {
		parts = append(parts, airportToken(fp.destination, fp.destinationRunway))
	}
	return strings.Join(parts, " ")
}

func airportToken(ap *aviation.Airport, rwy *aviation.Runway) string {
	if rwy != nil {
		return ap.Ident() + "/" + rwy.Ident()
	}
	return ap.Ident()
}

func procedureToken(p, trans *aviation.Procedure) string {
	if trans != nil {
		return trans.String()
	}
	return p.Ident()
}

func legAirway(wp aviation.Waypoint) *aviation.Airway {
	if aw, ok := wp.Owner().(*aviation.Airway); ok {
		return aw
	}
	return wp.Airway()
}

func fixToken(wp aviation.Waypoint) string {
	src := wp.Source()
	if src == nil || src.Type() == aviation.PositionedUserWaypoint {
		return wp.Position().ICAOString()
	}
	return wp.Ident()
}

func (fp *FlightPlan) speedLevelGroup() string {
	var speed, level string
	if fp.CruiseMach > 0 {
		speed = fmt.Sprintf("M%03d", int(fp.CruiseMach*100+0.5))
	} else if fp.CruiseSpeedKts > 0 {
		speed = fmt.Sprintf("N%04d", fp.CruiseSpeedKts)
	}
	if fp.CruiseFlightLevel > 0 {
		level = fmt.Sprintf("F%03d", fp.CruiseFlightLevel)
	} else if fp.CruiseAltitudeFt > 0 {
		level = fmt.Sprintf("A%03d", (fp.CruiseAltitudeFt+50)/100)
	}
	if speed == "" || level == "" {
		return ""
	}
	return speed + level
}
