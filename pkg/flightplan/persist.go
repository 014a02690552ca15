// pkg/flightplan/persist.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mmp/fms/pkg/aviation"
	"github.com/mmp/fms/pkg/math"
	"github.com/mmp/fms/pkg/util"
)

const DocumentVersion = 1

// document is the JSON form of a flight plan. Directory entities and
// procedures are stored by identifier and resolved again when loading.
type document struct {
	Version int    `json:"version"`
	Header  Header `json:"header"`

	Departure         string `json:"departure,omitempty"`
	DepartureRunway   string `json:"departure_runway,omitempty"`
	Destination       string `json:"destination,omitempty"`
	DestinationRunway string `json:"destination_runway,omitempty"`
	SID               string `json:"sid,omitempty"`
	STAR              string `json:"star,omitempty"`
	Approach          string `json:"approach,omitempty"`

	Current int  `json:"current"`
	Active  bool `json:"active,omitempty"`

	Legs []legDocument `json:"legs"`
}

type legDocument struct {
	Kind       string        `json:"kind"`
	PriorKind  string        `json:"prior_kind,omitempty"`
	Ident      string        `json:"ident"`
	Position   math.Point2LL `json:"position"`
	EntityType string        `json:"entity_type,omitempty"`
	Airway     string        `json:"airway,omitempty"`
	Procedure  string        `json:"procedure,omitempty"`
	Flags      uint16        `json:"flags,omitempty"`

	Hold      *aviation.HoldParams `json:"hold,omitempty"`
	HoldCount int                  `json:"hold_count,omitempty"`

	Altitude          *restrictionDocument `json:"altitude,omitempty"`
	Speed             *restrictionDocument `json:"speed,omitempty"`
	PublishedAltitude *restrictionDocument `json:"published_altitude,omitempty"`
	PublishedSpeed    *restrictionDocument `json:"published_speed,omitempty"`
}

type restrictionDocument struct {
	Kind  string  `json:"kind"`
	Value float32 `json:"value,omitempty"`
}

func makeRestrictionDocument(r aviation.Restriction) *restrictionDocument {
	if r.Kind == aviation.RestrictNone {
		return nil
	}
	return &restrictionDocument{Kind: r.Kind.String(), Value: r.Value}
}

func (rd *restrictionDocument) restriction() (aviation.Restriction, error) {
	if rd == nil {
		return aviation.Restriction{}, nil
	}
	kind, err := aviation.ParseRestrictionKind(rd.Kind)
	if err != nil {
		return aviation.Restriction{}, err
	}
	return aviation.MakeRestriction(kind, float64(rd.Value))
}

///////////////////////////////////////////////////////////////////////////
// Saving

// Save writes the plan to the named file; names ending in ".zst" are
// compressed.
func (fp *FlightPlan) Save(path string) error {
	w, err := util.CreateFile(path)
	if err != nil {
		return err
	}
	if err := fp.Encode(w); err != nil {
		w.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return w.Close()
}

// Encode writes the plan's JSON representation to w.
func (fp *FlightPlan) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(fp.document())
}

func (fp *FlightPlan) document() document {
	doc := document{
		Version: DocumentVersion,
		Header:  fp.Header,
		Current: fp.current,
		Active:  fp.active,
		Legs:    make([]legDocument, len(fp.legs)),
	}
	if fp.departure != nil {
		doc.Departure = fp.departure.Ident()
	}
	if fp.departureRunway != nil {
		doc.DepartureRunway = fp.departureRunway.Ident()
	}
	if fp.destination != nil {
		doc.Destination = fp.destination.Ident()
	}
	if fp.destinationRunway != nil {
		doc.DestinationRunway = fp.destinationRunway.Ident()
	}
	if fp.sid != nil {
		doc.SID = procedureToken(fp.sid, fp.sidTransition)
	}
	if fp.star != nil {
		doc.STAR = procedureToken(fp.star, fp.starTransition)
	}
	if fp.approach != nil {
		doc.Approach = procedureToken(fp.approach, fp.approachTransition)
	}

	for i, l := range fp.legs {
		wp := l.wp
		ld := legDocument{
			Kind:              wp.Kind().String(),
			Ident:             wp.Ident(),
			Position:          wp.Position(),
			Flags:             uint16(wp.Flags()),
			HoldCount:         l.holdCount,
			Altitude:          makeRestrictionDocument(l.altitude),
			Speed:             makeRestrictionDocument(l.speed),
			PublishedAltitude: makeRestrictionDocument(wp.AltitudeRestriction()),
			PublishedSpeed:    makeRestrictionDocument(wp.SpeedRestriction()),
		}
		if src := wp.Source(); src != nil {
			ld.EntityType = src.Type().String()
		}
		if h, ok := wp.HoldParams(); ok {
			ld.PriorKind = wp.PriorKind().String()
			ld.Hold = &h
		}
		switch o := wp.Owner().(type) {
		case *aviation.Procedure:
			ld.Procedure = o.String()
		case *aviation.Airway:
			ld.Airway = o.Ident()
		}
		if aw := wp.Airway(); aw != nil {
			ld.Airway = aw.Ident()
		}
		doc.Legs[i] = ld
	}
	return doc
}

///////////////////////////////////////////////////////////////////////////
// Loading

// Load reads a flight plan saved with Save, resolving its airports,
// procedures and waypoints using env. Nothing is returned if any part of
// the plan can't be resolved.
func Load(path string, env Env) (*FlightPlan, error) {
	r, err := util.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	fp, err := Decode(r, env)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fp, nil
}

// Decode reads a flight plan in the form written by Encode.
func Decode(r io.Reader, env Env) (*FlightPlan, error) {
	if env.Directory == nil {
		return nil, ErrNoDirectory
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var doc document
	if err := util.UnmarshalJSON(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFlightPlan, err)
	}
	if doc.Version != DocumentVersion {
		return nil, fmt.Errorf("version %d: %w", doc.Version, ErrUnsupportedVersion)
	}

	d := &decoder{env: env, e: &util.ErrorLogger{}}
	defer d.release()

	fp := newFlightPlan(env)
	d.decode(fp, doc)
	if err := d.e.Err(ErrUnresolvedWaypoint); err != nil {
		fp.Release()
		return nil, err
	}

	fp.applyDelegateFactories()
	return fp, nil
}

type decoder struct {
	env Env
	e   *util.ErrorLogger
	// User waypoints recreated while loading; held until the legs have
	// their own references.
	handles []*aviation.Handle
}

func (d *decoder) release() {
	for _, h := range d.handles {
		h.Release()
	}
}

func (d *decoder) airport(ident string) *aviation.Airport {
	if ident == "" {
		return nil
	}
	for _, e := range d.env.Directory.FindByIdent(ident, aviation.TypeFilter{aviation.PositionedAirport}) {
		if ap, ok := e.(*aviation.Airport); ok {
			return ap
		}
	}
	d.e.ErrorString("%s: unknown airport", ident)
	return nil
}

func (d *decoder) runway(ap *aviation.Airport, ident string) *aviation.Runway {
	if ap == nil || ident == "" {
		return nil
	}
	rwy := ap.Runway(ident)
	if rwy == nil {
		d.e.ErrorString("%s: no runway %q", ap.Ident(), ident)
	}
	return rwy
}

func (d *decoder) decode(fp *FlightPlan, doc document) {
	fp.Header = doc.Header
	fp.active = doc.Active

	fp.departure = d.airport(doc.Departure)
	fp.departureRunway = d.runway(fp.departure, doc.DepartureRunway)
	fp.destination = d.airport(doc.Destination)
	fp.destinationRunway = d.runway(fp.destination, doc.DestinationRunway)

	procedure := func(name string, ap *aviation.Airport, kind string) *aviation.Procedure {
		if name == "" {
			return nil
		}
		p := findProcedure(name, ap)
		if p == nil {
			d.e.ErrorString("%s: unknown %s", name, kind)
		}
		return p
	}
	if p := procedure(doc.SID, fp.departure, "SID"); p != nil {
		fp.sid, fp.sidTransition = splitTransition(p)
	}
	if p := procedure(doc.STAR, fp.destination, "STAR"); p != nil {
		fp.star, fp.starTransition = splitTransition(p)
	}
	if p := procedure(doc.Approach, fp.destination, "approach"); p != nil {
		fp.approach, fp.approachTransition = splitTransition(p)
	}

	for i, ld := range doc.Legs {
		d.e.Push(fmt.Sprintf("leg %d (%s)", i, ld.Ident))
		if wp, ok := d.waypoint(fp, ld); ok {
			l := fp.newLeg(wp)
			l.index = len(fp.legs)
			l.holdCount = ld.HoldCount
			var err error
			if l.altitude, err = ld.Altitude.restriction(); err != nil {
				d.e.Error(err)
			}
			if l.speed, err = ld.Speed.restriction(); err != nil {
				d.e.Error(err)
			}
			fp.legs = append(fp.legs, l)
		}
		d.e.Pop()
	}

	if doc.Current < -1 || doc.Current >= len(fp.legs) {
		d.e.ErrorString("current leg %d: %v", doc.Current, ErrInvalidIndex)
	} else {
		fp.current = doc.Current
	}
}

// findProcedure looks up a procedure or PROCEDURE.TRANSITION at the
// given airport.
func findProcedure(name string, ap *aviation.Airport) *aviation.Procedure {
	if ap == nil {
		return nil
	}
	ident, trans := aviation.ParseProcedureName(name)
	for _, procs := range []map[string]*aviation.Procedure{ap.SIDs, ap.STARs, ap.Approaches} {
		if p := procs[ident]; p != nil {
			if trans == "" {
				return p
			}
			return p.Transition(trans)
		}
	}
	return nil
}

func (d *decoder) entity(ld legDocument) aviation.Positioned {
	t, err := aviation.ParsePositionedType(ld.EntityType)
	if err != nil {
		d.e.Error(err)
		return nil
	}

	if t == aviation.PositionedUserWaypoint {
		uw, ok := d.env.Directory.(userWaypointDirectory)
		if !ok {
			d.e.ErrorString("directory can't create user waypoints")
			return nil
		}
		f, err := uw.AddUserWaypoint(ld.Ident, ld.Position)
		if err != nil {
			d.e.Error(err)
			return nil
		}
		if h := d.env.Directory.Registry().Acquire(f.EntityID()); h != nil {
			d.handles = append(d.handles, h)
		}
		return f
	}

	e, ok := aviation.FindNearestByIdent(d.env.Directory, ld.Ident, ld.Position, aviation.TypeFilter{t})
	if !ok {
		d.e.ErrorString("no %s with that identifier", t)
		return nil
	}
	return e
}

func (d *decoder) waypoint(fp *FlightPlan, ld legDocument) (aviation.Waypoint, bool) {
	kind, err := aviation.ParseWaypointKind(ld.Kind)
	if err != nil {
		d.e.Error(err)
		return aviation.Waypoint{}, false
	}
	isHold := kind == aviation.WaypointHold
	if isHold {
		if ld.Hold == nil {
			d.e.ErrorString("hold without parameters")
			return aviation.Waypoint{}, false
		}
		if kind, err = aviation.ParseWaypointKind(ld.PriorKind); err != nil {
			d.e.Error(err)
			return aviation.Waypoint{}, false
		}
	}

	var wp aviation.Waypoint
	switch kind {
	case aviation.WaypointBasic:
		wp = aviation.NewBasicWaypoint(ld.Ident, ld.Position)

	case aviation.WaypointDiscontinuity:
		wp = aviation.NewDiscontinuity()

	case aviation.WaypointNavaid, aviation.WaypointRunway:
		e := d.entity(ld)
		if e == nil {
			return aviation.Waypoint{}, false
		}
		wp = aviation.NewEntityWaypoint(e)

	case aviation.WaypointVia:
		e := d.entity(ld)
		if e == nil {
			return aviation.Waypoint{}, false
		}
		if d.env.Airways == nil {
			d.e.ErrorString("no airway network")
			return aviation.Waypoint{}, false
		}
		if wp, err = aviation.NewViaWaypoint(d.env.Airways.FindByIdentAndNavaid(ld.Airway, e), e); err != nil {
			d.e.Error(err)
			return aviation.Waypoint{}, false
		}

	default:
		d.e.ErrorString("%s: unexpected waypoint kind", kind)
		return aviation.Waypoint{}, false
	}

	if isHold {
		if err := errors.Join(wp.ConvertToHold(), wp.SetHoldParams(*ld.Hold)); err != nil {
			d.e.Error(err)
			return aviation.Waypoint{}, false
		}
	}

	switch {
	case ld.Procedure != "":
		p := findProcedure(ld.Procedure, fp.departure)
		if p == nil {
			p = findProcedure(ld.Procedure, fp.destination)
		}
		if p == nil {
			d.e.ErrorString("%s: unknown procedure", ld.Procedure)
			return aviation.Waypoint{}, false
		}
		wp.SetOwner(p)

	case ld.Airway != "" && kind != aviation.WaypointVia:
		var aw *aviation.Airway
		if d.env.Airways != nil {
			aw = d.env.Airways.FindByIdentAndNavaid(ld.Airway, wp.Source())
		}
		if aw == nil {
			d.e.ErrorString("%s: unknown airway", ld.Airway)
			return aviation.Waypoint{}, false
		}
		wp.SetOwner(aw)
	}

	for f := aviation.WaypointFlags(1); f != 0 && f <= aviation.WaypointFlags(ld.Flags); f <<= 1 {
		if aviation.WaypointFlags(ld.Flags)&f != 0 {
			wp.SetFlag(f, true)
		}
	}

	alt, err := ld.PublishedAltitude.restriction()
	if err != nil {
		d.e.Error(err)
	}
	speed, err := ld.PublishedSpeed.restriction()
	if err != nil {
		d.e.Error(err)
	}
	wp.SetAltitudeRestriction(alt)
	wp.SetSpeedRestriction(speed)

	return wp, true
}
