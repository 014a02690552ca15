// pkg/aviation/entity.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/mmp/fms/pkg/math"
)

///////////////////////////////////////////////////////////////////////////
// Directory entities

type PositionedType int

const (
	PositionedInvalid PositionedType = iota
	PositionedAirport
	PositionedRunway
	PositionedVOR
	PositionedNDB
	PositionedDME
	PositionedFix
	PositionedUserWaypoint
)

func (t PositionedType) String() string {
	switch t {
	case PositionedAirport:
		return "airport"
	case PositionedRunway:
		return "runway"
	case PositionedVOR:
		return "vor"
	case PositionedNDB:
		return "ndb"
	case PositionedDME:
		return "dme"
	case PositionedFix:
		return "fix"
	case PositionedUserWaypoint:
		return "waypoint"
	default:
		return "invalid"
	}
}

func ParsePositionedType(s string) (PositionedType, error) {
	for t := PositionedAirport; t <= PositionedUserWaypoint; t++ {
		if strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	return PositionedInvalid, fmt.Errorf("%s: unknown positioned type: %w", s, ErrInvalidArgument)
}

// EntityID is the stable identifier assigned to an entity by a Registry.
// Zero is never a valid id.
type EntityID uint32

// Positioned is implemented by all entities in the navigation directory.
type Positioned interface {
	EntityID() EntityID
	Ident() string
	Location() math.Point2LL
	Type() PositionedType
}

// Entity holds the fields common to all directory entities; the concrete
// entity types embed it.
type Entity struct {
	ID         EntityID
	Identifier string
	Name       string
	Position   math.Point2LL
	Elevation  int // feet
	Kind       PositionedType
}

func (e *Entity) EntityID() EntityID      { return e.ID }
func (e *Entity) Ident() string           { return e.Identifier }
func (e *Entity) Location() math.Point2LL { return e.Position }
func (e *Entity) Type() PositionedType    { return e.Kind }

func (e *Entity) setEntityID(id EntityID) { e.ID = id }

func (e *Entity) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("ident", e.Identifier),
		slog.String("type", e.Kind.String()),
		slog.String("position", e.Position.DDString()))
}

// IsNavaid reports whether the type is a radio navigation aid.
func (t PositionedType) IsNavaid() bool {
	return t == PositionedVOR || t == PositionedNDB || t == PositionedDME
}

///////////////////////////////////////////////////////////////////////////
// Frequency

// Frequency is a radio frequency in kHz.
type Frequency int

// ParseFrequency parses frequencies written either in MHz with a decimal
// point ("113.90") or in kHz ("375").
func ParseFrequency(s string) (Frequency, error) {
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f <= 0 {
			return 0, fmt.Errorf("%s: invalid frequency: %w", s, ErrInvalidArgument)
		}
		if f >= 108 && f < 1000 {
			// VHF, given in MHz
			return Frequency(f*1000 + 0.5), nil
		}
		// NDB, given in kHz with a decimal
		return Frequency(f + 0.5), nil
	}
	f, err := strconv.Atoi(s)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("%s: invalid frequency: %w", s, ErrInvalidArgument)
	}
	return Frequency(f), nil
}

func (f Frequency) String() string {
	if f >= 100000 {
		return fmt.Sprintf("%03d.%02d", f/1000, (f%1000)/10)
	}
	return strconv.Itoa(int(f))
}

///////////////////////////////////////////////////////////////////////////
// Navaid, Fix

type Navaid struct {
	Entity
	Frequency Frequency
}

type Fix struct {
	Entity
	// Region is the airport the fix is defined for, or empty for enroute
	// fixes.
	Region string
}

func NewNavaid(ident, name string, t PositionedType, p math.Point2LL, freq Frequency) *Navaid {
	return &Navaid{
		Entity:    Entity{Identifier: ident, Name: name, Position: p, Kind: t},
		Frequency: freq,
	}
}

func NewFix(ident string, p math.Point2LL) *Fix {
	return &Fix{Entity: Entity{Identifier: ident, Position: p, Kind: PositionedFix}}
}

// NewUserWaypoint returns an ad-hoc entity, e.g. for a latitude/longitude
// point in a route.
func NewUserWaypoint(ident string, p math.Point2LL) *Fix {
	return &Fix{Entity: Entity{Identifier: ident, Position: p, Kind: PositionedUserWaypoint}}
}

///////////////////////////////////////////////////////////////////////////
// Airport, Runway

type Airport struct {
	Entity
	Runways    []*Runway
	SIDs       map[string]*Procedure
	STARs      map[string]*Procedure
	Approaches map[string]*Procedure
}

type Runway struct {
	Entity
	Airport  *Airport
	Heading  float32
	LengthFt int
	// Displaced threshold distance in nm.
	DisplacedThresholdDistance float32
}

func NewAirport(ident, name string, p math.Point2LL, elevation int) *Airport {
	return &Airport{
		Entity:     Entity{Identifier: ident, Name: name, Position: p, Elevation: elevation, Kind: PositionedAirport},
		SIDs:       make(map[string]*Procedure),
		STARs:      make(map[string]*Procedure),
		Approaches: make(map[string]*Procedure),
	}
}

// AddRunway creates a runway at the airport; the runway's identifier is
// normalized so that e.g. "RW04L" and "04L" are both stored as "4L".
func (ap *Airport) AddRunway(ident string, threshold math.Point2LL, heading float32, elevation int) *Runway {
	rwy := &Runway{
		Entity: Entity{
			Identifier: NormalizeRunwayIdent(ident),
			Position:   threshold,
			Elevation:  elevation,
			Kind:       PositionedRunway,
		},
		Airport: ap,
		Heading: heading,
	}
	ap.Runways = append(ap.Runways, rwy)
	return rwy
}

func NormalizeRunwayIdent(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "RW")
	id = strings.TrimPrefix(id, "0")
	return id
}

func (ap *Airport) Runway(ident string) *Runway {
	ident = NormalizeRunwayIdent(ident)
	if idx := slices.IndexFunc(ap.Runways, func(r *Runway) bool { return r.Identifier == ident }); idx != -1 {
		return ap.Runways[idx]
	}
	return nil
}

// FindBestRunway returns the runway most closely aligned with the wind.
func (ap *Airport) FindBestRunway(windFromHeading float32) *Runway {
	var best *Runway
	bestDiff := float32(1000)
	for _, rwy := range ap.Runways {
		if d := math.HeadingDifference(rwy.Heading, windFromHeading); d < bestDiff {
			best, bestDiff = rwy, d
		}
	}
	return best
}

func (ap *Airport) AddProcedure(p *Procedure) {
	p.Airport = ap
	switch p.Type {
	case ProcedureSID:
		ap.SIDs[p.Ident()] = p
	case ProcedureSTAR:
		ap.STARs[p.Ident()] = p
	default:
		if p.Type.IsApproach() {
			ap.Approaches[p.Ident()] = p
		}
	}
}

func (ap *Airport) SID(ident string) *Procedure      { return ap.SIDs[ident] }
func (ap *Airport) STAR(ident string) *Procedure     { return ap.STARs[ident] }
func (ap *Airport) Approach(ident string) *Procedure { return ap.Approaches[ident] }

// SelectSIDByTransition returns the enroute transition with the given
// name from the first SID (in alphabetical order) that has one.
func (ap *Airport) SelectSIDByTransition(name string) *Procedure {
	return selectByTransition(ap.SIDs, name)
}

// SelectSTARByTransition is the STAR equivalent of SelectSIDByTransition.
func (ap *Airport) SelectSTARByTransition(name string) *Procedure {
	return selectByTransition(ap.STARs, name)
}

func selectByTransition(procs map[string]*Procedure, name string) *Procedure {
	idents := make([]string, 0, len(procs))
	for id := range procs {
		idents = append(idents, id)
	}
	slices.Sort(idents)
	for _, id := range idents {
		if t := procs[id].Transition(name); t != nil {
			return t
		}
	}
	return nil
}

// Ident returns the runway's identifier, e.g. "31L"; FullIdent includes
// the airport, e.g. "KJFK/31L".
func (r *Runway) FullIdent() string {
	if r.Airport == nil {
		return r.Identifier
	}
	return r.Airport.Identifier + "/" + r.Identifier
}
