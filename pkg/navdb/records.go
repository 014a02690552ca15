// pkg/navdb/records.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package navdb

import (
	"github.com/mmp/fms/pkg/aviation"
	"github.com/mmp/fms/pkg/math"
)

// Data is the plain-data form of the navigation database: what ParseCIFP
// returns and what is stored in the object cache. Fixes along
// procedures and airways are referred to by identifier and are resolved
// when a Database is built from it.
type Data struct {
	Navaids  []NavaidRecord
	Fixes    []FixRecord
	Airports []AirportRecord
	Airways  []AirwayRecord
}

type NavaidRecord struct {
	Ident     string
	Name      string
	Type      aviation.PositionedType
	Location  math.Point2LL
	Frequency aviation.Frequency
}

type FixRecord struct {
	Ident    string
	Region   string // airport for terminal fixes
	Location math.Point2LL
}

type AirportRecord struct {
	Ident      string
	Name       string
	Location   math.Point2LL
	Elevation  int
	Runways    []RunwayRecord
	Procedures []ProcedureRecord
}

type RunwayRecord struct {
	Ident                  string
	Heading                float32
	Threshold              math.Point2LL
	Elevation              int
	LengthFt               int
	DisplacedThresholdDist float32 // nm
}

type ProcedureRecord struct {
	Ident string
	Type  aviation.ProcedureType
	// Approaches only.
	Runway string
	// In file order. The common route has an empty transition name and
	// runway routes are named e.g. "RW31L" (or "RW04B" for both 4L and
	// 4R).
	Segments []SegmentRecord
	Missed   []LegRecord
}

type SegmentRecord struct {
	Transition string
	Legs       []LegRecord
}

type LegRecord struct {
	Fix      string
	FlyOver  bool
	IAF      bool
	FAF      bool
	Altitude aviation.Restriction
	Speed    aviation.Restriction
	Hold     *aviation.HoldParams
}

type AirwayRecord struct {
	Ident string
	Level aviation.AirwayLevel
	Fixes []string
}

// Merge appends the records from other.
func (d *Data) Merge(other *Data) {
	d.Navaids = append(d.Navaids, other.Navaids...)
	d.Fixes = append(d.Fixes, other.Fixes...)
	d.Airports = append(d.Airports, other.Airports...)
	d.Airways = append(d.Airways, other.Airways...)
}
