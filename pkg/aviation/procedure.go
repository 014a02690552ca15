// pkg/aviation/procedure.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

type ProcedureType int

const (
	ProcedureSID ProcedureType = iota
	ProcedureSTAR
	ProcedureApproachVOR
	ProcedureApproachILS
	ProcedureApproachRNAV
	ProcedureApproachNDB
	ProcedureTransition
)

func (t ProcedureType) String() string {
	switch t {
	case ProcedureSID:
		return "SID"
	case ProcedureSTAR:
		return "STAR"
	case ProcedureApproachVOR:
		return "VOR"
	case ProcedureApproachILS:
		return "ILS"
	case ProcedureApproachRNAV:
		return "RNAV"
	case ProcedureApproachNDB:
		return "NDB"
	case ProcedureTransition:
		return "transition"
	default:
		return "invalid"
	}
}

func (t ProcedureType) IsApproach() bool {
	return t >= ProcedureApproachVOR && t <= ProcedureApproachNDB
}

// ApproachTypeFromCIFP returns the approach type for the first character
// of a CIFP approach identifier (e.g. 'I' for "I13L").
func ApproachTypeFromCIFP(c byte) (ProcedureType, bool) {
	switch c {
	case 'I', 'L', 'B':
		return ProcedureApproachILS, true
	case 'R', 'H':
		return ProcedureApproachRNAV, true
	case 'V', 'S', 'D':
		return ProcedureApproachVOR, true
	case 'N', 'Q':
		return ProcedureApproachNDB, true
	}
	return ProcedureApproachRNAV, false
}

// Procedure is a published SID, STAR or approach, or a named transition
// of one of them. It acts as a template: Route and ApproachRoute return
// fresh waypoints each time they are called.
//
// For SIDs and STARs, the common route is shared by all runways and
// transitions; runway routes are specific to one runway, and transitions
// connect the procedure to the enroute structure. For approaches, the
// common route is the final approach from the IF (or first fix) to the
// missed approach point, transitions lead from an IAF to it, and the
// missed approach is kept separately.
type Procedure struct {
	ident   string
	Airport *Airport // not owned
	Type    ProcedureType

	runways      []string
	common       []Waypoint
	runwayRoutes map[string][]Waypoint
	transitions  map[string]*Procedure
	missed       []Waypoint

	// Transitions only.
	parent *Procedure
	route  []Waypoint
}

func NewProcedure(ident string, t ProcedureType) *Procedure {
	return &Procedure{
		ident:        ident,
		Type:         t,
		runwayRoutes: make(map[string][]Waypoint),
		transitions:  make(map[string]*Procedure),
	}
}

// NewApproach returns an approach procedure to the given runway.
func NewApproach(ident string, t ProcedureType, runway string) (*Procedure, error) {
	if !t.IsApproach() {
		return nil, fmt.Errorf("%s: %s: %w", ident, t, ErrWrongProcedureType)
	}
	p := NewProcedure(ident, t)
	if runway != "" {
		p.runways = []string{NormalizeRunwayIdent(runway)}
	}
	return p, nil
}

func (p *Procedure) Ident() string { return p.ident }

// Parent returns the procedure a transition belongs to; nil for
// non-transitions.
func (p *Procedure) Parent() *Procedure { return p.parent }

// Primary returns the procedure itself or, for a transition, its parent.
func (p *Procedure) Primary() *Procedure {
	if p.parent != nil {
		return p.parent
	}
	return p
}

func (p *Procedure) String() string {
	if p.parent != nil {
		return p.parent.ident + "." + p.ident
	}
	return p.ident
}

// AddRunway marks the procedure as applicable to the given runway even
// if it has no runway-specific route for it.
func (p *Procedure) AddRunway(rwy string) {
	rwy = NormalizeRunwayIdent(rwy)
	if !slices.Contains(p.runways, rwy) {
		p.runways = append(p.runways, rwy)
	}
}

func (p *Procedure) SetCommonRoute(wps []Waypoint) {
	p.common = cloneWaypoints(wps)
}

func (p *Procedure) CommonRoute() []Waypoint {
	return cloneWaypoints(p.common)
}

// AddRunwayRoute sets the route segment specific to the given runway.
func (p *Procedure) AddRunwayRoute(rwy string, wps []Waypoint) {
	rwy = NormalizeRunwayIdent(rwy)
	p.runwayRoutes[rwy] = cloneWaypoints(wps)
	p.AddRunway(rwy)
}

// AddTransition adds (or replaces) a named transition and returns it.
func (p *Procedure) AddTransition(name string, wps []Waypoint) *Procedure {
	t := NewProcedure(name, ProcedureTransition)
	t.parent = p
	t.Airport = p.Airport
	t.route = cloneWaypoints(wps)
	p.transitions[name] = t
	return t
}

func (p *Procedure) SetMissedApproach(wps []Waypoint) {
	p.missed = cloneWaypoints(wps)
}

// Waypoints returns the route of a transition.
func (p *Procedure) Waypoints() []Waypoint {
	return cloneWaypoints(p.route)
}

// Transition returns the named transition, or nil if there is none.
func (p *Procedure) Transition(name string) *Procedure {
	if p == nil || p.transitions == nil {
		return nil
	}
	return p.transitions[name]
}

func (p *Procedure) TransitionIdents() []string {
	return slices.Sorted(maps.Keys(p.transitions))
}

// Runways returns the idents of the runways the procedure applies to. An
// empty result means it applies to all runways.
func (p *Procedure) Runways() []string {
	if p.parent != nil {
		return p.parent.Runways()
	}
	r := slices.Clone(p.runways)
	slices.Sort(r)
	return r
}

func (p *Procedure) AppliesToRunway(rwy string) bool {
	if p.parent != nil {
		return p.parent.AppliesToRunway(rwy)
	}
	return len(p.runways) == 0 || slices.Contains(p.runways, NormalizeRunwayIdent(rwy))
}

func (p *Procedure) roleFlag() WaypointFlags {
	switch p.Primary().Type {
	case ProcedureSID:
		return WaypointFlagDeparture
	case ProcedureSTAR:
		return WaypointFlagArrival
	default:
		return WaypointFlagApproach
	}
}

// Route returns the waypoints of a SID or STAR for the given runway and
// optional transition; rwy may be nil if the procedure has a single
// route for all runways. Both are emitted in the order they are flown,
// so a SID deliberately starts with its runway route rather than its
// transition: runway route, common route, then the enroute transition.
// STARs go from the enroute transition through the common route to the
// runway.
func (p *Procedure) Route(rwy *Runway, trans *Procedure) ([]Waypoint, error) {
	if p.Type != ProcedureSID && p.Type != ProcedureSTAR {
		return nil, fmt.Errorf("%s: %s: %w", p.ident, p.Type, ErrWrongProcedureType)
	}
	if trans != nil && trans.parent != p {
		return nil, fmt.Errorf("%s: %s: %w", p.ident, trans.ident, ErrTransitionMismatch)
	}

	var rwyRoute []Waypoint
	if rwy != nil {
		if !p.AppliesToRunway(rwy.Identifier) {
			return nil, fmt.Errorf("%s: %s: %w", p.ident, rwy.Identifier, ErrRunwayNotApplicable)
		}
		rwyRoute = p.runwayRoutes[rwy.Identifier]
	} else if len(p.common) == 0 && len(p.runwayRoutes) > 0 {
		// Only runway-specific routes and no way to choose one.
		return nil, fmt.Errorf("%s: no runway: %w", p.ident, ErrRunwayNotApplicable)
	}

	var route []Waypoint
	flag := p.roleFlag()
	if p.Type == ProcedureSID {
		route = appendRoute(route, rwyRoute, p, flag)
		route = appendRoute(route, p.common, p, flag)
		if trans != nil {
			route = appendRoute(route, trans.route, trans, flag)
		}
	} else {
		if trans != nil {
			route = appendRoute(route, trans.route, trans, flag)
		}
		route = appendRoute(route, p.common, p, flag)
		route = appendRoute(route, rwyRoute, p, flag)
	}
	return route, nil
}

// ApproachRoute returns the approach's waypoints starting at the given
// initial approach fix, through the runway, followed by the missed
// approach. If iaf is empty, the approach is flown from the start of its
// final approach segment.
func (p *Procedure) ApproachRoute(iaf string) ([]Waypoint, error) {
	if !p.Type.IsApproach() {
		return nil, fmt.Errorf("%s: %s: %w", p.ident, p.Type, ErrWrongProcedureType)
	}

	var route []Waypoint
	switch {
	case iaf == "":
		route = appendRoute(route, p.common, p, WaypointFlagApproach)

	case p.transitions[iaf] != nil:
		t := p.transitions[iaf]
		route = appendRoute(route, t.route, t, WaypointFlagApproach)
		route = appendRoute(route, p.common, p, WaypointFlagApproach)

	default:
		if t := p.transitionStartingAt(iaf); t != nil {
			route = appendRoute(route, t.route, t, WaypointFlagApproach)
			route = appendRoute(route, p.common, p, WaypointFlagApproach)
		} else if idx := slices.IndexFunc(p.common, func(wp Waypoint) bool { return wp.ident == iaf }); idx != -1 {
			route = appendRoute(route, p.common[idx:], p, WaypointFlagApproach)
		} else {
			return nil, fmt.Errorf("%s: %s: %w", p.ident, iaf, ErrNoSuchIAF)
		}
	}

	if rwy := p.runway(); rwy != nil {
		if n := len(route); n == 0 || !route[n-1].RefersTo(rwy) {
			wp := NewEntityWaypoint(rwy)
			wp.SetFlag(WaypointFlagApproach, true)
			wp.SetOwner(p)
			route = append(route, wp)
		}
	}

	return appendRoute(route, p.missed, p, WaypointFlagMissed), nil
}

// InitialApproachFixes returns the idents of the fixes an approach may be
// started from.
func (p *Procedure) InitialApproachFixes() []string {
	var fixes []string
	for _, name := range p.TransitionIdents() {
		if r := p.transitions[name].route; len(r) > 0 {
			fixes = append(fixes, r[0].ident)
		}
	}
	for _, wp := range p.common {
		if wp.Flag(WaypointFlagIAF) && !slices.Contains(fixes, wp.ident) {
			fixes = append(fixes, wp.ident)
		}
	}
	return fixes
}

func (p *Procedure) transitionStartingAt(fix string) *Procedure {
	for _, name := range p.TransitionIdents() {
		if r := p.transitions[name].route; len(r) > 0 && r[0].ident == fix {
			return p.transitions[name]
		}
	}
	return nil
}

func (p *Procedure) runway() *Runway {
	if p.Airport == nil || len(p.runways) == 0 {
		return nil
	}
	return p.Airport.Runway(p.runways[0])
}

// appendRoute appends copies of wps to route, tagged with their owner and
// role. A segment that starts where the previous one ended doesn't
// repeat the shared fix; published restrictions from the later segment
// fill in any the earlier one lacked.
func appendRoute(route []Waypoint, wps []Waypoint, owner RouteElement, role WaypointFlags) []Waypoint {
	for i, wp := range wps {
		wp = wp.Clone()
		wp.SetOwner(owner)
		wp.SetFlag(role, true)

		if i == 0 && len(route) > 0 {
			prev := &route[len(route)-1]
			if prev.ident == wp.ident && prev.kind != WaypointDiscontinuity && !prev.IsHold() {
				if !prev.altitude.IsSet() {
					prev.altitude = wp.altitude
				}
				if !prev.speed.IsSet() {
					prev.speed = wp.speed
				}
				if wp.IsHold() {
					*prev = wp
				}
				continue
			}
		}
		route = append(route, wp)
	}
	return route
}

func cloneWaypoints(wps []Waypoint) []Waypoint {
	if wps == nil {
		return nil
	}
	c := make([]Waypoint, len(wps))
	for i, wp := range wps {
		c[i] = wp.Clone()
	}
	return c
}

// ParseProcedureName splits names of the form "SID.TRANSITION".
func ParseProcedureName(s string) (proc, transition string) {
	proc, transition, _ = strings.Cut(s, ".")
	return
}
