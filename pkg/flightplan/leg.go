// pkg/flightplan/leg.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import (
	"fmt"
	"log/slog"

	"github.com/mmp/fms/pkg/aviation"
	"github.com/mmp/fms/pkg/math"
)

// Leg is one element of a flight plan: a waypoint and the restrictions
// that apply at it. Legs are created by the FlightPlan insertion methods
// and belong to exactly one plan.
type Leg struct {
	plan  *FlightPlan // not owned
	index int

	wp      aviation.Waypoint
	handles []*aviation.Handle

	altitude, speed aviation.Restriction
	holdCount       int
}

func (l *Leg) Index() int { return l.index }

func (l *Leg) FlightPlan() *FlightPlan { return l.plan }

// Waypoint returns a copy of the leg's waypoint.
func (l *Leg) Waypoint() aviation.Waypoint { return l.wp.Clone() }

func (l *Leg) Ident() string { return l.wp.Ident() }

func (l *Leg) Position() math.Point2LL { return l.wp.Position() }

func (l *Leg) acquire(reg *aviation.Registry) {
	if id := l.wp.SourceID(); id != 0 {
		if h := reg.Acquire(id); h != nil {
			l.handles = append(l.handles, h)
		}
	}
}

// release drops the leg's references to directory entities. It may be
// called more than once.
func (l *Leg) release() {
	for _, h := range l.handles {
		h.Release()
	}
	l.handles = nil
}

func (l *Leg) changed() {
	if l.plan != nil {
		l.plan.legChanged(l)
	}
}

///////////////////////////////////////////////////////////////////////////
// Restrictions

// AltitudeRestriction returns the leg's altitude restriction: the one set
// on the leg, or otherwise the waypoint's published restriction unless
// the leg deletes it.
func (l *Leg) AltitudeRestriction() aviation.Restriction {
	return effectiveRestriction(l.altitude, l.wp.AltitudeRestriction())
}

func (l *Leg) SpeedRestriction() aviation.Restriction {
	return effectiveRestriction(l.speed, l.wp.SpeedRestriction())
}

func effectiveRestriction(leg, published aviation.Restriction) aviation.Restriction {
	switch leg.Kind {
	case aviation.RestrictNone:
		return published
	case aviation.RestrictDelete:
		return aviation.Restriction{}
	default:
		return leg
	}
}

// SetAltitude sets the leg's altitude restriction, in feet. RestrictNone
// clears it; other kinds require a finite value.
func (l *Leg) SetAltitude(kind aviation.RestrictionKind, value float64) error {
	r, err := aviation.MakeRestriction(kind, value)
	if err != nil {
		return fmt.Errorf("%s altitude: %w", l.wp.Ident(), err)
	}
	if r != l.altitude {
		l.altitude = r
		l.changed()
	}
	return nil
}

// SetSpeed sets the leg's speed restriction: knots, or a Mach number for
// the Mach kinds.
func (l *Leg) SetSpeed(kind aviation.RestrictionKind, value float64) error {
	r, err := aviation.MakeRestriction(kind, value)
	if err != nil {
		return fmt.Errorf("%s speed: %w", l.wp.Ident(), err)
	}
	if r != l.speed {
		l.speed = r
		l.changed()
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////
// Waypoint attributes

func (l *Leg) SetFlyOver(fo bool) {
	if l.wp.FlyOver() != fo {
		l.wp.SetFlyOver(fo)
		l.changed()
	}
}

func (l *Leg) SetRole(role string) error {
	if err := l.wp.SetRole(role); err != nil {
		return err
	}
	l.changed()
	return nil
}

func (l *Leg) SetFlag(f aviation.WaypointFlags, v bool) {
	l.wp.SetFlag(f, v)
	l.changed()
}

///////////////////////////////////////////////////////////////////////////
// Holds

func (l *Leg) HoldCount() int { return l.holdCount }

// ConvertToHold turns the leg's waypoint into a hold, flown at least
// once.
func (l *Leg) ConvertToHold() error {
	if err := l.wp.ConvertToHold(); err != nil {
		return err
	}
	l.holdCount = math.Max(l.holdCount, 1)
	l.changed()
	return nil
}

// SetHoldCount sets the number of circuits flown in the hold. Zero
// reverts the waypoint to what it was before it became a hold; a
// positive count converts it to a hold if necessary, which fails for
// waypoints generated by procedures.
func (l *Leg) SetHoldCount(n int) error {
	if n < 0 {
		return fmt.Errorf("%s: hold count %d: %w", l.wp.Ident(), n, aviation.ErrInvalidArgument)
	}
	if n == 0 {
		if l.wp.IsHold() || l.holdCount != 0 {
			l.wp.RevertHold()
			l.holdCount = 0
			l.changed()
		}
		return nil
	}

	if !l.wp.IsHold() {
		if err := l.wp.ConvertToHold(); err != nil {
			return err
		}
	}
	l.holdCount = n
	l.changed()
	return nil
}

func (l *Leg) HoldParams() (aviation.HoldParams, bool) {
	return l.wp.HoldParams()
}

func (l *Leg) updateHold(update func(h *aviation.HoldParams)) error {
	h, ok := l.wp.HoldParams()
	if !ok {
		return fmt.Errorf("%s: %w", l.wp.Ident(), ErrNotHold)
	}
	update(&h)
	if err := l.wp.SetHoldParams(h); err != nil {
		return err
	}
	l.changed()
	return nil
}

func (l *Leg) SetHoldLeftHanded(left bool) error {
	return l.updateHold(func(h *aviation.HoldParams) { h.LeftHanded = left })
}

// SetHoldRadial sets the inbound course to the holding fix.
func (l *Leg) SetHoldRadial(deg float32) error {
	return l.updateHold(func(h *aviation.HoldParams) { h.InboundRadial = deg })
}

// SetHoldTime makes the hold time-based, with straight legs of the given
// number of seconds.
func (l *Leg) SetHoldTime(seconds float32) error {
	return l.updateHold(func(h *aviation.HoldParams) { h.IsDistance, h.TimeOrDistance = false, seconds })
}

// SetHoldDistance makes the hold distance-based, with straight legs of
// the given length in nm.
func (l *Leg) SetHoldDistance(nm float32) error {
	return l.updateHold(func(h *aviation.HoldParams) { h.IsDistance, h.TimeOrDistance = true, nm })
}

///////////////////////////////////////////////////////////////////////////
// Geometry

// geometry returns the leg's entry in its plan's route path, or nil if the
// leg has been removed from its plan.
func (l *Leg) geometry() *legGeometry {
	if l.plan == nil {
		return nil
	}
	return &l.plan.path().legs[l.index]
}

// DistanceNM returns the length of the path from the previous leg to this
// one. Legs that are no longer in a plan return 0.
func (l *Leg) DistanceNM() float32 {
	if g := l.geometry(); g != nil {
		return g.length
	}
	return 0
}

// CourseDeg returns the true course flown when reaching the leg's
// waypoint.
func (l *Leg) CourseDeg() float32 {
	if g := l.geometry(); g != nil {
		return g.course
	}
	return 0
}

// DistanceAlongRoute returns the distance from the start of the route to
// the leg's waypoint.
func (l *Leg) DistanceAlongRoute() float32 {
	if g := l.geometry(); g != nil {
		return g.along
	}
	return 0
}

// Path returns the points flown for the leg: the path from the previous
// leg's waypoint to this one, followed by any hold circuits. It is nil
// for a leg that has been removed from its plan.
func (l *Leg) Path() []math.Point2LL {
	if l.plan == nil {
		return nil
	}
	return l.plan.path().legPath(l.index)
}

// CourseAndDistanceFrom returns the course and distance from p to the
// leg's waypoint.
func (l *Leg) CourseAndDistanceFrom(p math.Point2LL) (course, distance float32) {
	return math.InverseCourseAndDistance(p, l.wp.Position())
}

func (l *Leg) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("index", l.index),
		slog.Any("waypoint", l.wp),
	}
	if r := l.AltitudeRestriction(); r.IsSet() {
		attrs = append(attrs, slog.Any("altitude", r))
	}
	if r := l.SpeedRestriction(); r.IsSet() {
		attrs = append(attrs, slog.Any("speed", r))
	}
	if l.holdCount > 0 {
		attrs = append(attrs, slog.Int("hold_count", l.holdCount))
	}
	return slog.GroupValue(attrs...)
}
