// pkg/flightplan/flightplan.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import (
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/mmp/fms/pkg/aviation"
	"github.com/mmp/fms/pkg/log"
	"github.com/mmp/fms/pkg/math"
)

// PositionTolerance is the distance within which FindWaypointIndex
// considers a waypoint to be at a given position.
const PositionTolerance = 0.01 // nm

// Env provides the navigation data that flight plans are built from.
type Env struct {
	Directory aviation.Directory
	Airways   *aviation.AirwayNetwork
	Logger    *log.Logger
	// Speed used to size holds with time-based legs; if zero, the
	// nominal holding speed for the hold's altitude is used.
	HoldSpeedKts float32
}

func (e Env) registry() *aviation.Registry {
	if e.Directory == nil {
		return nil
	}
	return e.Directory.Registry()
}

// Header holds the scalar attributes of a flight plan.
type Header struct {
	Ident    string `json:"ident,omitempty"`
	Callsign string `json:"callsign,omitempty"`
	Remarks  string `json:"remarks,omitempty"`
	// ICAO aircraft approach category, 'A'-'E', or 0 if unknown.
	AircraftCategory byte `json:"aircraft_category,omitempty"`

	// At most one of each of the following pairs is non-zero.
	CruiseAltitudeFt  int     `json:"cruise_altitude_ft,omitempty"`
	CruiseFlightLevel int     `json:"cruise_flight_level,omitempty"`
	CruiseSpeedKts    int     `json:"cruise_speed_kts,omitempty"`
	CruiseMach        float32 `json:"cruise_mach,omitempty"`

	EstimatedDurationMinutes int  `json:"estimated_duration_minutes,omitempty"`
	FollowLegTrackToFix      bool `json:"follow_leg_track_to_fix,omitempty"`
}

// FlightPlan is an ordered sequence of legs along with the departure,
// arrival and procedures that bound it. All modifications go through its
// methods, which keep leg indices dense and notify the plan's delegates.
//
// A FlightPlan is not safe for concurrent use; Clone returns an
// independent copy.
type FlightPlan struct {
	Header

	legs    []*Leg
	current int
	active  bool

	departure         *aviation.Airport
	departureRunway   *aviation.Runway
	destination       *aviation.Airport
	destinationRunway *aviation.Runway

	sid, sidTransition           *aviation.Procedure
	star, starTransition         *aviation.Procedure
	approach, approachTransition *aviation.Procedure

	delegates []*delegateEntry
	notifying int
	lockDepth int
	pending   pendingChange

	pathCache *routePath

	env Env
	lg  *log.Logger
}

// NewFlightPlan returns an empty flight plan. Delegates from the
// registered factories are attached to it.
func NewFlightPlan(env Env) *FlightPlan {
	fp := newFlightPlan(env)
	fp.applyDelegateFactories()
	return fp
}

func newFlightPlan(env Env) *FlightPlan {
	return &FlightPlan{
		current: -1,
		env:     env,
		lg:      env.Logger,
	}
}

func (fp *FlightPlan) Env() Env { return fp.env }

///////////////////////////////////////////////////////////////////////////
// Legs

func (fp *FlightPlan) NumLegs() int { return len(fp.legs) }

// LegAt returns the leg at the given index, or nil if the index is out
// of range.
func (fp *FlightPlan) LegAt(i int) *Leg {
	if i < 0 || i >= len(fp.legs) {
		return nil
	}
	return fp.legs[i]
}

func (fp *FlightPlan) Legs() iter.Seq2[int, *Leg] {
	return func(yield func(int, *Leg) bool) {
		for i, l := range fp.legs {
			if !yield(i, l) {
				return
			}
		}
	}
}

func (fp *FlightPlan) CurrentIndex() int { return fp.current }

func (fp *FlightPlan) CurrentLeg() *Leg { return fp.LegAt(fp.current) }

// NextLeg returns the leg after the current one, if any.
func (fp *FlightPlan) NextLeg() *Leg {
	if fp.current < 0 {
		return nil
	}
	return fp.LegAt(fp.current + 1)
}

func (fp *FlightPlan) PreviousLeg() *Leg {
	if fp.current < 1 {
		return nil
	}
	return fp.LegAt(fp.current - 1)
}

func (fp *FlightPlan) newLeg(wp aviation.Waypoint) *Leg {
	l := &Leg{plan: fp, wp: wp.Clone()}
	if l.wp.IsHold() {
		l.holdCount = 1
	}
	l.acquire(fp.env.registry())
	return l
}

func (fp *FlightPlan) renumber(from int) {
	for i := from; i < len(fp.legs); i++ {
		fp.legs[i].index = i
	}
}

func (fp *FlightPlan) invalidatePath() {
	fp.pathCache = nil
}

func (fp *FlightPlan) legChanged(l *Leg) {
	fp.invalidatePath()
	fp.markChanged(pendingWaypoints)
}

// InsertWaypointAtIndex adds a leg for the waypoint so that it has the
// given index; -1 appends it.
func (fp *FlightPlan) InsertWaypointAtIndex(wp aviation.Waypoint, index int) (*Leg, error) {
	legs, err := fp.InsertWaypointsAtIndex([]aviation.Waypoint{wp}, index)
	if err != nil {
		return nil, err
	}
	return legs[0], nil
}

// InsertWaypointAfter inserts the waypoint after the leg at the given
// index.
func (fp *FlightPlan) InsertWaypointAfter(wp aviation.Waypoint, index int) (*Leg, error) {
	if index < 0 || index >= len(fp.legs) {
		return nil, fmt.Errorf("%d: %w", index, ErrInvalidIndex)
	}
	return fp.InsertWaypointAtIndex(wp, index+1)
}

// InsertWaypointsAtIndex inserts legs for all of the waypoints starting
// at the given index (-1 appends). Delegates receive a single
// notification for the whole batch.
func (fp *FlightPlan) InsertWaypointsAtIndex(wps []aviation.Waypoint, index int) ([]*Leg, error) {
	if index == -1 {
		index = len(fp.legs)
	}
	if index < 0 || index > len(fp.legs) {
		return nil, fmt.Errorf("%d: %w", index, ErrInvalidIndex)
	}
	if len(wps) == 0 {
		return nil, nil
	}

	legs := make([]*Leg, len(wps))
	for i, wp := range wps {
		legs[i] = fp.newLeg(wp)
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.legs = slices.Insert(fp.legs, index, legs...)
	fp.renumber(index)
	if fp.current >= index {
		// Same leg, new index.
		fp.current += len(legs)
	}
	fp.invalidatePath()
	fp.pending |= pendingWaypoints

	return legs, nil
}

// DeleteIndex removes the leg at the given index. It returns false,
// without notifying delegates, if the index is out of range.
func (fp *FlightPlan) DeleteIndex(index int) bool {
	if index < 0 || index >= len(fp.legs) {
		return false
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.removeLeg(index)
	fp.pending |= pendingWaypoints
	return true
}

func (fp *FlightPlan) removeLeg(index int) {
	fp.legs[index].release()
	fp.legs[index].plan = nil
	fp.legs = slices.Delete(fp.legs, index, index+1)
	fp.renumber(index)
	fp.invalidatePath()

	if fp.current > index {
		fp.current--
	} else if fp.current == index {
		// The following leg, if any, becomes current.
		if fp.current >= len(fp.legs) {
			fp.current = len(fp.legs) - 1
		}
		fp.pending |= pendingCurrent
	}
}

// ClearWaypointsWithFlag removes all legs whose waypoints have any of the
// given flags set and returns the number removed.
func (fp *FlightPlan) ClearWaypointsWithFlag(flag aviation.WaypointFlags) int {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	n := 0
	for i := len(fp.legs) - 1; i >= 0; i-- {
		if fp.legs[i].wp.Flag(flag) {
			fp.removeLeg(i)
			n++
		}
	}
	if n > 0 {
		fp.pending |= pendingWaypoints
	}
	return n
}

// SetCurrentIndex makes the leg at the given index current; -1 means no
// leg is current.
func (fp *FlightPlan) SetCurrentIndex(i int) error {
	if i < -1 || i >= len(fp.legs) {
		return fmt.Errorf("%d: %w", i, ErrInvalidIndex)
	}
	if i != fp.current {
		fp.current = i
		fp.markChanged(pendingCurrent)
	}
	return nil
}

// Clear removes all legs and procedures but keeps the departure and
// destination.
func (fp *FlightPlan) Clear() {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.clearLegs()
	fp.sid, fp.sidTransition = nil, nil
	fp.star, fp.starTransition = nil, nil
	fp.approach, fp.approachTransition = nil, nil
	fp.active = false

	fp.notify(func(d *Delegate) func(*FlightPlan) { return d.Cleared })
	fp.pending |= pendingWaypoints
}

func (fp *FlightPlan) clearLegs() {
	for _, l := range fp.legs {
		l.release()
		l.plan = nil
	}
	fp.legs = nil
	if fp.current != -1 {
		fp.current = -1
		fp.pending |= pendingCurrent
	}
	fp.invalidatePath()
}

// Release drops the plan's references to directory entities. The plan
// is empty afterward and delegates are not notified.
func (fp *FlightPlan) Release() {
	for _, l := range fp.legs {
		l.release()
		l.plan = nil
	}
	fp.legs = nil
	fp.current = -1
	fp.invalidatePath()
}

// FindWaypointIndex returns the index of the first leg whose waypoint is
// within PositionTolerance of p, or -1.
func (fp *FlightPlan) FindWaypointIndex(p math.Point2LL) int {
	return slices.IndexFunc(fp.legs, func(l *Leg) bool {
		return !l.wp.IsDiscontinuity() && math.NMDistance2LL(l.wp.Position(), p) <= PositionTolerance
	})
}

// FindEntityIndex returns the index of the first leg whose waypoint
// refers to the given directory entity, or -1.
func (fp *FlightPlan) FindEntityIndex(e aviation.Positioned) int {
	return slices.IndexFunc(fp.legs, func(l *Leg) bool { return l.wp.RefersTo(e) })
}

///////////////////////////////////////////////////////////////////////////
// Departure and arrival

func (fp *FlightPlan) Departure() *aviation.Airport            { return fp.departure }
func (fp *FlightPlan) DepartureRunway() *aviation.Runway       { return fp.departureRunway }
func (fp *FlightPlan) Destination() *aviation.Airport          { return fp.destination }
func (fp *FlightPlan) DestinationRunway() *aviation.Runway     { return fp.destinationRunway }
func (fp *FlightPlan) SID() *aviation.Procedure                { return fp.sid }
func (fp *FlightPlan) SIDTransition() *aviation.Procedure      { return fp.sidTransition }
func (fp *FlightPlan) STAR() *aviation.Procedure               { return fp.star }
func (fp *FlightPlan) STARTransition() *aviation.Procedure     { return fp.starTransition }
func (fp *FlightPlan) Approach() *aviation.Procedure           { return fp.approach }
func (fp *FlightPlan) ApproachTransition() *aviation.Procedure { return fp.approachTransition }

// SetDepartureAirport sets the departure airport. A runway or SID from a
// different airport is cleared.
func (fp *FlightPlan) SetDepartureAirport(ap *aviation.Airport) {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.setDeparture(ap)
	fp.pending |= pendingDeparture
}

func (fp *FlightPlan) setDeparture(ap *aviation.Airport) {
	if fp.departureRunway != nil && fp.departureRunway.Airport != ap {
		fp.departureRunway = nil
	}
	if fp.sid != nil && fp.sid.Airport != ap {
		fp.sid, fp.sidTransition = nil, nil
	}
	fp.departure = ap
}

// SetDepartureRunway sets the departure runway and its airport.
func (fp *FlightPlan) SetDepartureRunway(rwy *aviation.Runway) error {
	if rwy == nil || rwy.Airport == nil {
		return ErrInvalidRunway
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.setDeparture(rwy.Airport)
	fp.departureRunway = rwy
	fp.pending |= pendingDeparture
	return nil
}

func (fp *FlightPlan) ClearDeparture() {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.setDeparture(nil)
	fp.pending |= pendingDeparture
}

// SetDestinationAirport sets the destination airport. A runway, STAR or
// approach from a different airport is cleared.
func (fp *FlightPlan) SetDestinationAirport(ap *aviation.Airport) {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.setDestination(ap)
	fp.pending |= pendingArrival
}

func (fp *FlightPlan) setDestination(ap *aviation.Airport) {
	if fp.destinationRunway != nil && fp.destinationRunway.Airport != ap {
		fp.destinationRunway = nil
	}
	if fp.star != nil && fp.star.Airport != ap {
		fp.star, fp.starTransition = nil, nil
	}
	if fp.approach != nil && fp.approach.Airport != ap {
		fp.approach, fp.approachTransition = nil, nil
	}
	fp.destination = ap
}

func (fp *FlightPlan) SetDestinationRunway(rwy *aviation.Runway) error {
	if rwy == nil || rwy.Airport == nil {
		return ErrInvalidRunway
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.setDestination(rwy.Airport)
	fp.destinationRunway = rwy
	fp.pending |= pendingArrival
	return nil
}

func (fp *FlightPlan) ClearDestination() {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.setDestination(nil)
	fp.pending |= pendingArrival
}

///////////////////////////////////////////////////////////////////////////
// Procedures

// checkProcedure verifies that p is (a transition of) a procedure of one
// of the given types at ap, if ap is set.
func checkProcedure(p *aviation.Procedure, ap *aviation.Airport, ok func(aviation.ProcedureType) bool) error {
	if p == nil {
		return fmt.Errorf("procedure: %w", aviation.ErrInvalidArgument)
	}
	primary := p.Primary()
	if !ok(primary.Type) {
		return fmt.Errorf("%s: %s: %w", p, primary.Type, aviation.ErrWrongProcedureType)
	}
	if ap != nil && primary.Airport != nil && primary.Airport != ap {
		return fmt.Errorf("%s: not at %s: %w", p, ap.Ident(), ErrAirportMismatch)
	}
	return nil
}

func splitTransition(p *aviation.Procedure) (primary, transition *aviation.Procedure) {
	if p.Parent() != nil {
		return p.Parent(), p
	}
	return p, nil
}

// SetSID selects a SID, given either the procedure itself or one of its
// transitions. The departure airport is set from the procedure if it
// isn't already.
func (fp *FlightPlan) SetSID(p *aviation.Procedure) error {
	if err := checkProcedure(p, fp.departure, func(t aviation.ProcedureType) bool { return t == aviation.ProcedureSID }); err != nil {
		return err
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.sid, fp.sidTransition = splitTransition(p)
	if fp.departure == nil && fp.sid.Airport != nil {
		fp.setDeparture(fp.sid.Airport)
	}
	fp.pending |= pendingDeparture
	return nil
}

func (fp *FlightPlan) ClearSID() {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.sid, fp.sidTransition = nil, nil
	fp.pending |= pendingDeparture
}

func (fp *FlightPlan) SetSTAR(p *aviation.Procedure) error {
	if err := checkProcedure(p, fp.destination, func(t aviation.ProcedureType) bool { return t == aviation.ProcedureSTAR }); err != nil {
		return err
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.star, fp.starTransition = splitTransition(p)
	if fp.destination == nil && fp.star.Airport != nil {
		fp.setDestination(fp.star.Airport)
	}
	fp.pending |= pendingArrival
	return nil
}

func (fp *FlightPlan) ClearSTAR() {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.star, fp.starTransition = nil, nil
	fp.pending |= pendingArrival
}

func (fp *FlightPlan) SetApproach(p *aviation.Procedure) error {
	if err := checkProcedure(p, fp.destination, aviation.ProcedureType.IsApproach); err != nil {
		return err
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.approach, fp.approachTransition = splitTransition(p)
	if fp.destination == nil && fp.approach.Airport != nil {
		fp.setDestination(fp.approach.Airport)
	}
	fp.pending |= pendingArrival
	return nil
}

func (fp *FlightPlan) ClearApproach() {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.approach, fp.approachTransition = nil, nil
	fp.pending |= pendingArrival
}

// lookupProcedure resolves name, either a transition name or a
// procedure identifier optionally followed by ".TRANSITION".
func lookupProcedure(name string, byTransition func(string) *aviation.Procedure,
	byIdent func(string) *aviation.Procedure) *aviation.Procedure {
	if t := byTransition(name); t != nil {
		return t
	}
	ident, trans := aviation.ParseProcedureName(name)
	p := byIdent(ident)
	if p == nil || trans == "" {
		return p
	}
	return p.Transition(trans)
}

// SetSIDByName selects a SID at the departure airport by transition name
// or by procedure identifier.
func (fp *FlightPlan) SetSIDByName(name string) error {
	if fp.departure == nil {
		return fmt.Errorf("%s: no departure airport: %w", name, ErrNoProcedure)
	}
	p := lookupProcedure(name, fp.departure.SelectSIDByTransition, fp.departure.SID)
	if p == nil {
		return fmt.Errorf("%s: no such SID at %s: %w", name, fp.departure.Ident(), ErrNoProcedure)
	}
	return fp.SetSID(p)
}

func (fp *FlightPlan) SetSTARByName(name string) error {
	if fp.destination == nil {
		return fmt.Errorf("%s: no destination airport: %w", name, ErrNoProcedure)
	}
	p := lookupProcedure(name, fp.destination.SelectSTARByTransition, fp.destination.STAR)
	if p == nil {
		return fmt.Errorf("%s: no such STAR at %s: %w", name, fp.destination.Ident(), ErrNoProcedure)
	}
	return fp.SetSTAR(p)
}

// ApplySID replaces the plan's departure legs with the route of the
// selected SID.
func (fp *FlightPlan) ApplySID() error {
	if fp.sid == nil {
		return fmt.Errorf("SID: %w", ErrNoProcedure)
	}
	wps, err := fp.sid.Route(fp.departureRunway, fp.sidTransition)
	if err != nil {
		return err
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.ClearWaypointsWithFlag(aviation.WaypointFlagDeparture)
	if _, err := fp.InsertWaypointsAtIndex(wps, 0); err != nil {
		return err
	}
	fp.lg.Debug("applied SID", slog.String("procedure", fp.sid.String()), slog.Int("legs", len(wps)))
	return nil
}

// ApplySTAR replaces the plan's arrival legs with the route of the
// selected STAR, ahead of any approach legs.
func (fp *FlightPlan) ApplySTAR() error {
	if fp.star == nil {
		return fmt.Errorf("STAR: %w", ErrNoProcedure)
	}
	wps, err := fp.star.Route(fp.destinationRunway, fp.starTransition)
	if err != nil {
		return err
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.ClearWaypointsWithFlag(aviation.WaypointFlagArrival)
	idx := slices.IndexFunc(fp.legs, func(l *Leg) bool {
		return l.wp.Flag(aviation.WaypointFlagApproach | aviation.WaypointFlagMissed)
	})
	if _, err := fp.InsertWaypointsAtIndex(wps, idx); err != nil {
		return err
	}
	fp.lg.Debug("applied STAR", slog.String("procedure", fp.star.String()), slog.Int("legs", len(wps)))
	return nil
}

// ApplyApproach replaces the plan's approach legs with the selected
// approach, starting from its transition if one was chosen.
func (fp *FlightPlan) ApplyApproach() error {
	if fp.approach == nil {
		return fmt.Errorf("approach: %w", ErrNoProcedure)
	}
	iaf := ""
	if fp.approachTransition != nil {
		iaf = fp.approachTransition.Ident()
	}
	wps, err := fp.approach.ApproachRoute(iaf)
	if err != nil {
		return err
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.ClearWaypointsWithFlag(aviation.WaypointFlagApproach | aviation.WaypointFlagMissed)
	if _, err := fp.InsertWaypointsAtIndex(wps, -1); err != nil {
		return err
	}
	fp.lg.Debug("applied approach", slog.String("procedure", fp.approach.String()), slog.Int("legs", len(wps)))
	return nil
}

///////////////////////////////////////////////////////////////////////////
// Lifecycle

func (fp *FlightPlan) IsActive() bool { return fp.active }

// Activate makes the plan the one being flown. The first leg becomes
// current if none is.
func (fp *FlightPlan) Activate() {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.active = true
	if fp.current == -1 && len(fp.legs) > 0 {
		fp.current = 0
		fp.pending |= pendingCurrent
	}
	fp.notify(func(d *Delegate) func(*FlightPlan) { return d.Activated })
}

// Finish ends the flight plan: no leg is current afterward.
func (fp *FlightPlan) Finish() {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.active = false
	if fp.current != -1 {
		fp.current = -1
		fp.pending |= pendingCurrent
	}
	fp.notify(func(d *Delegate) func(*FlightPlan) { return d.EndOfFlightPlan })
}

// Sequence advances to the next leg; passing the last leg finishes the
// plan.
func (fp *FlightPlan) Sequence() {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.notify(func(d *Delegate) func(*FlightPlan) { return d.Sequence })
	if fp.current+1 < len(fp.legs) {
		fp.current++
		fp.pending |= pendingCurrent
	} else {
		fp.Finish()
	}
}

///////////////////////////////////////////////////////////////////////////
// Clone

// Clone returns an independent copy of the plan. Its legs reference the
// same directory entities but share no mutable state with the original.
// Delegates are not copied, though registered factories are applied to
// the new plan.
func (fp *FlightPlan) Clone() *FlightPlan {
	c := newFlightPlan(fp.env)
	c.Header = fp.Header
	c.current = fp.current
	c.active = fp.active
	c.departure, c.departureRunway = fp.departure, fp.departureRunway
	c.destination, c.destinationRunway = fp.destination, fp.destinationRunway
	c.sid, c.sidTransition = fp.sid, fp.sidTransition
	c.star, c.starTransition = fp.star, fp.starTransition
	c.approach, c.approachTransition = fp.approach, fp.approachTransition

	c.legs = make([]*Leg, len(fp.legs))
	for i, l := range fp.legs {
		nl := c.newLeg(l.wp)
		nl.index = i
		nl.altitude, nl.speed = l.altitude, l.speed
		nl.holdCount = l.holdCount
		c.legs[i] = nl
	}

	c.applyDelegateFactories()
	return c
}

///////////////////////////////////////////////////////////////////////////
// Cruise

func (fp *FlightPlan) SetCruiseAltitudeFt(alt int) error {
	if alt < 0 {
		return fmt.Errorf("altitude %d: %w", alt, ErrInvalidCruise)
	}
	fp.CruiseAltitudeFt, fp.CruiseFlightLevel = alt, 0
	return nil
}

func (fp *FlightPlan) SetCruiseFlightLevel(fl int) error {
	if fl < 0 || fl > 999 {
		return fmt.Errorf("FL%d: %w", fl, ErrInvalidCruise)
	}
	fp.CruiseFlightLevel, fp.CruiseAltitudeFt = fl, 0
	return nil
}

func (fp *FlightPlan) SetCruiseSpeedKts(kts int) error {
	if kts < 0 {
		return fmt.Errorf("speed %d: %w", kts, ErrInvalidCruise)
	}
	fp.CruiseSpeedKts, fp.CruiseMach = kts, 0
	return nil
}

func (fp *FlightPlan) SetCruiseMach(mach float32) error {
	if mach < 0 || mach > 5 || !math.IsFinite(mach) {
		return fmt.Errorf("mach %.2f: %w", mach, ErrInvalidCruise)
	}
	fp.CruiseMach, fp.CruiseSpeedKts = mach, 0
	return nil
}

// CruiseAltitude returns the cruise altitude in feet, however it was
// specified.
func (fp *FlightPlan) CruiseAltitude() int {
	if fp.CruiseFlightLevel != 0 {
		return fp.CruiseFlightLevel * 100
	}
	return fp.CruiseAltitudeFt
}

// CruiseTAS returns the true airspeed at cruise in knots, or 0 if no
// cruise speed is set.
func (fp *FlightPlan) CruiseTAS() float32 {
	if fp.CruiseMach != 0 {
		return math.MachToTAS(fp.CruiseMach, float32(fp.CruiseAltitude()))
	}
	return float32(fp.CruiseSpeedKts)
}

func (fp *FlightPlan) SetAircraftCategory(c byte) error {
	if c != 0 && (c < 'A' || c > 'E') {
		return fmt.Errorf("%q: %w", c, ErrInvalidCategory)
	}
	fp.AircraftCategory = c
	return nil
}

// ComputeDuration updates EstimatedDurationMinutes from the length of
// the route and the cruise speed.
func (fp *FlightPlan) ComputeDuration() error {
	tas := fp.CruiseTAS()
	if tas <= 0 {
		return ErrNoCruiseSpeed
	}
	dist := fp.path().length()
	fp.EstimatedDurationMinutes = int(dist/tas*60 + 0.5)
	return nil
}

func (fp *FlightPlan) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("ident", fp.Ident),
		slog.Int("legs", len(fp.legs)),
		slog.Int("current", fp.current),
	}
	if fp.departure != nil {
		attrs = append(attrs, slog.String("departure", fp.departure.Ident()))
	}
	if fp.destination != nil {
		attrs = append(attrs, slog.String("destination", fp.destination.Ident()))
	}
	if fp.sid != nil {
		attrs = append(attrs, slog.String("sid", fp.sid.Ident()))
	}
	if fp.star != nil {
		attrs = append(attrs, slog.String("star", fp.star.Ident()))
	}
	if fp.approach != nil {
		attrs = append(attrs, slog.String("approach", fp.approach.Ident()))
	}
	return slog.GroupValue(attrs...)
}
