// pkg/aviation/waypoint.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmp/fms/pkg/math"

	"github.com/brunoga/deep"
)

///////////////////////////////////////////////////////////////////////////
// Waypoint

type WaypointKind uint8

const (
	WaypointBasic WaypointKind = iota
	WaypointNavaid
	WaypointRunway
	WaypointVia
	WaypointHold
	WaypointDiscontinuity
)

var waypointKindNames = [...]string{
	WaypointBasic:         "basic",
	WaypointNavaid:        "navaid",
	WaypointRunway:        "runway",
	WaypointVia:           "via",
	WaypointHold:          "hold",
	WaypointDiscontinuity: "discontinuity",
}

func (k WaypointKind) String() string {
	if int(k) < len(waypointKindNames) {
		return waypointKindNames[k]
	}
	return "invalid"
}

func ParseWaypointKind(s string) (WaypointKind, error) {
	for i, name := range waypointKindNames {
		if name == s {
			return WaypointKind(i), nil
		}
	}
	return WaypointBasic, fmt.Errorf("%q: unknown waypoint kind: %w", s, ErrInvalidArgument)
}

type WaypointFlags uint16

const (
	WaypointFlagDeparture WaypointFlags = 1 << iota
	WaypointFlagArrival
	WaypointFlagApproach
	WaypointFlagMissed
	WaypointFlagPseudo
	WaypointFlagOverflight
	WaypointFlagIAF
	WaypointFlagFAF
)

// At most one of the role flags is set at a time.
const WaypointRoleFlags = WaypointFlagDeparture | WaypointFlagArrival | WaypointFlagApproach | WaypointFlagMissed

// RouteElement is implemented by the things that generate waypoints:
// *Procedure and *Airway.
type RouteElement interface {
	Ident() string
}

// HoldParams describes a racetrack holding pattern at a waypoint.
type HoldParams struct {
	LeftHanded    bool
	IsDistance    bool
	InboundRadial float32 // inbound course to the fix, degrees
	// Leg length: seconds when time-based, nm when distance-based.
	TimeOrDistance float32
}

func DefaultHoldParams() HoldParams {
	return HoldParams{TimeOrDistance: 60}
}

// HoldingSpeed returns the nominal holding speed in knots at the given
// altitude.
func HoldingSpeed(altitude float32) float32 {
	if altitude <= 6000 {
		return 200
	} else if altitude <= 14000 {
		return 230
	} else {
		return 265
	}
}

// LegLengthNM returns the length of the hold's straight legs, converting
// time-based legs to distance at the given speed.
func (h HoldParams) LegLengthNM(speedKts float32) float32 {
	if h.IsDistance {
		return h.TimeOrDistance
	}
	return h.TimeOrDistance * speedKts / 3600
}

// Waypoint is a point along a route. The kind determines which of the
// optional fields are meaningful: navaid and runway waypoints take their
// identifier and position from a directory entity, via waypoints route
// along an airway to a target entity, and hold waypoints add a holding
// pattern to whatever kind of waypoint they were converted from.
type Waypoint struct {
	kind      WaypointKind
	priorKind WaypointKind
	ident     string
	position  math.Point2LL
	flags     WaypointFlags

	// Directory entity backing the waypoint (or the target of a via); nil
	// for basic waypoints and discontinuities.
	source Positioned
	// Generator of this waypoint, if any. Not owned.
	owner  RouteElement
	airway *Airway

	hold *HoldParams

	// Published constraints, e.g. from a procedure.
	altitude, speed Restriction
}

func NewBasicWaypoint(ident string, p math.Point2LL) Waypoint {
	return Waypoint{kind: WaypointBasic, ident: ident, position: p}
}

// NewEntityWaypoint returns a waypoint backed by the given directory
// entity, which must be non-nil.
func NewEntityWaypoint(e Positioned) Waypoint {
	kind := WaypointNavaid
	if e.Type() == PositionedRunway {
		kind = WaypointRunway
	}
	return Waypoint{kind: kind, ident: e.Ident(), position: e.Location(), source: e}
}

// NewViaWaypoint returns a waypoint that follows the airway to the given
// navaid, which must be on the airway.
func NewViaWaypoint(aw *Airway, to Positioned) (Waypoint, error) {
	if aw == nil || to == nil {
		return Waypoint{}, fmt.Errorf("via: %w", ErrInvalidArgument)
	}
	if !aw.ContainsNavaid(to) {
		return Waypoint{}, fmt.Errorf("%s: %s: %w", aw.Ident(), to.Ident(), ErrNotOnAirway)
	}
	return Waypoint{
		kind:     WaypointVia,
		ident:    to.Ident(),
		position: to.Location(),
		source:   to,
		airway:   aw,
	}, nil
}

func NewDiscontinuity() Waypoint {
	return Waypoint{kind: WaypointDiscontinuity, ident: "DISCONTINUITY"}
}

func (w Waypoint) Kind() WaypointKind { return w.kind }
func (w Waypoint) Ident() string      { return w.ident }

// Position returns the waypoint's location. For entity-backed waypoints
// it tracks the entity; otherwise it is the position given at
// construction.
func (w Waypoint) Position() math.Point2LL {
	if w.source != nil {
		return w.source.Location()
	}
	return w.position
}

func (w Waypoint) Source() Positioned { return w.source }

func (w Waypoint) SourceID() EntityID {
	if w.source == nil {
		return 0
	}
	return w.source.EntityID()
}

// RefersTo reports whether the waypoint is backed by the given entity.
func (w Waypoint) RefersTo(e Positioned) bool {
	if w.source == nil || e == nil {
		return false
	}
	if w.source == e {
		return true
	}
	return w.source.EntityID() != 0 && w.source.EntityID() == e.EntityID()
}

func (w Waypoint) Owner() RouteElement { return w.owner }

func (w *Waypoint) SetOwner(o RouteElement) { w.owner = o }

// Airway returns the airway a via waypoint follows.
func (w Waypoint) Airway() *Airway { return w.airway }

func (w Waypoint) Flags() WaypointFlags { return w.flags }

func (w Waypoint) Flag(f WaypointFlags) bool { return w.flags&f != 0 }

// SetFlag sets or clears the given flags. Setting a role flag clears
// any other role flag.
func (w *Waypoint) SetFlag(f WaypointFlags, v bool) {
	if v {
		if role := f & WaypointRoleFlags; role != 0 {
			w.flags &^= WaypointRoleFlags
			// If several roles were given, keep the lowest.
			f = f&^WaypointRoleFlags | role&-role
		}
		w.flags |= f
	} else {
		w.flags &^= f
	}
}

func (w Waypoint) IsDiscontinuity() bool { return w.kind == WaypointDiscontinuity }

func (w Waypoint) FlyOver() bool { return w.Flag(WaypointFlagOverflight) }

func (w *Waypoint) SetFlyOver(fo bool) { w.SetFlag(WaypointFlagOverflight, fo) }

// FlyType returns "flyOver" or "flyBy".
func (w Waypoint) FlyType() string {
	if w.FlyOver() {
		return "flyOver"
	}
	return "flyBy"
}

var roleNames = []struct {
	name string
	flag WaypointFlags
}{
	{"pseudo", WaypointFlagPseudo},
	{"sid", WaypointFlagDeparture},
	{"star", WaypointFlagArrival},
	{"missed", WaypointFlagMissed},
	{"approach", WaypointFlagApproach},
}

// Role returns the name of the waypoint's role: "sid", "star",
// "approach", "missed", "pseudo", or "" if it has none.
func (w Waypoint) Role() string {
	for _, r := range roleNames {
		if w.Flag(r.flag) {
			return r.name
		}
	}
	return ""
}

// ParseRole returns the flag corresponding to a role name.
func ParseRole(s string) (WaypointFlags, error) {
	for _, r := range roleNames {
		if r.name == s {
			return r.flag, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrUnknownRole)
}

// SetRole sets the waypoint's role by name. The role of a waypoint that
// was generated by a procedure or airway cannot be changed.
func (w *Waypoint) SetRole(role string) error {
	if w.owner != nil {
		return fmt.Errorf("%s: %w", w.ident, ErrRoleOwned)
	}
	f, err := ParseRole(role)
	if err != nil {
		return err
	}
	w.SetFlag(f, true)
	return nil
}

func (w Waypoint) AltitudeRestriction() Restriction { return w.altitude }
func (w Waypoint) SpeedRestriction() Restriction    { return w.speed }

func (w *Waypoint) SetAltitudeRestriction(r Restriction) { w.altitude = r }
func (w *Waypoint) SetSpeedRestriction(r Restriction)    { w.speed = r }

///////////////////////////////////////////////////////////////////////////
// Holds

func (w Waypoint) IsHold() bool { return w.kind == WaypointHold }

// HoldParams returns the waypoint's holding pattern, if it is a hold.
func (w Waypoint) HoldParams() (HoldParams, bool) {
	if w.kind != WaypointHold || w.hold == nil {
		return HoldParams{}, false
	}
	return *w.hold, true
}

func (w *Waypoint) SetHoldParams(h HoldParams) error {
	if w.kind != WaypointHold {
		return fmt.Errorf("%s: not a hold: %w", w.ident, ErrInvalidArgument)
	}
	if !math.IsFinite(h.InboundRadial) || !math.IsFinite(h.TimeOrDistance) || h.TimeOrDistance <= 0 {
		return fmt.Errorf("%s: invalid hold parameters: %w", w.ident, ErrInvalidArgument)
	}
	h.InboundRadial = math.NormalizeHeading(h.InboundRadial)
	w.hold = &h
	return nil
}

// ConvertToHold turns the waypoint into a hold in place, keeping its
// identifier and position. Waypoints generated by procedures and
// discontinuities cannot be converted.
func (w *Waypoint) ConvertToHold() error {
	switch {
	case w.kind == WaypointHold:
		return nil
	case w.kind == WaypointDiscontinuity:
		return ErrDiscontinuityHold
	}
	if _, ok := w.owner.(*Procedure); ok {
		return fmt.Errorf("%s: %w", w.ident, ErrProcedureHold)
	}

	w.priorKind = w.kind
	w.kind = WaypointHold
	if w.hold == nil {
		h := DefaultHoldParams()
		w.hold = &h
	}
	return nil
}

// RevertHold restores a hold to the kind of waypoint it was converted
// from.
func (w *Waypoint) RevertHold() {
	if w.kind != WaypointHold {
		return
	}
	w.kind = w.priorKind
	w.hold = nil
}

// PriorKind returns the kind a hold was converted from.
func (w Waypoint) PriorKind() WaypointKind {
	if w.kind == WaypointHold {
		return w.priorKind
	}
	return w.kind
}

// Clone returns a copy of the waypoint that shares directory entities
// and owners but not its holding pattern.
func (w Waypoint) Clone() Waypoint {
	if w.hold != nil {
		w.hold = deep.MustCopy(w.hold)
	}
	return w
}

func (w Waypoint) String() string {
	switch w.kind {
	case WaypointDiscontinuity:
		return "(discontinuity)"
	case WaypointVia:
		return w.airway.Ident() + " " + w.ident
	default:
		return w.ident
	}
}

func (w Waypoint) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("ident", w.ident),
		slog.String("kind", w.kind.String()),
	}
	if w.kind != WaypointDiscontinuity {
		attrs = append(attrs, slog.String("position", w.Position().DDString()))
	}
	if w.flags != 0 {
		attrs = append(attrs, slog.String("flags", w.flags.String()))
	}
	if w.owner != nil {
		attrs = append(attrs, slog.String("owner", w.owner.Ident()))
	}
	if h, ok := w.HoldParams(); ok {
		attrs = append(attrs, slog.Group("hold",
			slog.Bool("left", h.LeftHanded),
			slog.Float64("radial", float64(h.InboundRadial)),
			slog.Float64("length", float64(h.TimeOrDistance)),
			slog.Bool("distance", h.IsDistance)))
	}
	return slog.GroupValue(attrs...)
}

func (f WaypointFlags) String() string {
	var s []string
	for i, name := range []string{"departure", "arrival", "approach", "missed", "pseudo", "overflight", "iaf", "faf"} {
		if f&(1<<i) != 0 {
			s = append(s, name)
		}
	}
	return strings.Join(s, "|")
}
