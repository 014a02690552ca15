// pkg/navdb/cifp.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package navdb

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/mmp/fms/pkg/aviation"
	"github.com/mmp/fms/pkg/math"
	"github.com/mmp/fms/pkg/util"
)

// ARINC-424 records are 132 characters, followed by \r\n in the FAA's
// CIFP distribution.
const ARINC424RecordLength = 132

func empty(s []byte) bool {
	return !slices.ContainsFunc(s, func(b byte) bool { return b != ' ' })
}

// The parse* helpers panic on malformed fields; ParseCIFP recovers and
// reports the error for the record being parsed.
func parseInt(s []byte) int {
	if v, err := strconv.Atoi(strings.TrimSpace(string(s))); err != nil {
		panic(err)
	} else {
		return v
	}
}

func parseAltitude(s []byte) int {
	if len(s) > 2 && string(s[:2]) == "FL" {
		return 100 * parseInt(s[2:])
	}
	return parseInt(s)
}

func parseLLDigits(d, m, s []byte) float32 {
	return float32(parseInt(d)) + float32(parseInt(m))/60 + float32(parseInt(s))/100/3600
}

func parseLatLong(lat, long []byte) math.Point2LL {
	var p math.Point2LL

	p[1] = parseLLDigits(lat[1:3], lat[3:5], lat[5:])
	p[0] = parseLLDigits(long[1:4], long[4:6], long[6:])

	if lat[0] == 'S' {
		p[1] = -p[1]
	}
	if long[0] == 'W' {
		p[0] = -p[0]
	}
	return p
}

type cifpReader struct {
	br      *bufio.Reader
	pending [][]byte
	lineno  int
	err     error
}

func (r *cifpReader) getline() []byte {
	if n := len(r.pending); n > 0 {
		l := r.pending[n-1]
		r.pending = r.pending[:n-1]
		return l
	}

	for {
		b, err := r.br.ReadBytes('\n')
		if len(b) == 0 && err != nil {
			if err != io.EOF {
				r.err = err
			}
			return nil
		}
		r.lineno++
		b = []byte(strings.TrimRight(string(b), "\r\n"))
		if len(b) < ARINC424RecordLength {
			// Header records and blank lines are shorter; anything else
			// can't be parsed safely.
			continue
		}
		return b
	}
}

func (r *cifpReader) ungetline(line []byte) {
	r.pending = append(r.pending, line)
}

// ParseCIFP parses FAA CIFP (ARINC-424) records. Malformed records are
// reported to e and skipped; the returned error is only for failures
// reading r.
func ParseCIFP(r io.Reader, e *util.ErrorLogger) (*Data, error) {
	if e == nil {
		e = &util.ErrorLogger{}
	}
	p := &cifpParser{
		r:        &cifpReader{br: bufio.NewReader(r)},
		e:        e,
		data:     &Data{},
		airports: make(map[string]int),
		airway:   make(map[string]string),
	}

	for {
		line := p.r.getline()
		if line == nil {
			break
		}
		if line[0] != 'S' { // not a standard record
			continue
		}
		p.parseRecord(line)
	}

	return p.data, p.r.err
}

type cifpParser struct {
	r        *cifpReader
	e        *util.ErrorLogger
	data     *Data
	airports map[string]int    // ident -> index in data.Airports
	airway   map[string]string // sequence number -> fix for the airway being read
	level    aviation.AirwayLevel
}

func (p *cifpParser) parseRecord(line []byte) {
	p.e.Push(fmt.Sprintf("line %d", p.r.lineno))
	defer p.e.Pop()
	defer func() {
		if err := recover(); err != nil {
			p.e.ErrorString("%v", err)
		}
	}()

	switch line[4] { // section code
	case 'D':
		p.parseNavaid(line)

	case 'E':
		switch line[5] {
		case 'A': // enroute waypoint
			p.data.Fixes = append(p.data.Fixes, FixRecord{
				Ident:    strings.TrimSpace(string(line[13:18])),
				Location: parseLatLong(line[32:41], line[41:51]),
			})

		case 'R': // enroute airway
			p.parseAirway(line)
		}

	case 'P': // airports
		icao := strings.TrimSpace(string(line[6:10]))
		switch line[12] {
		case 'A': // primary airport record
			p.airports[icao] = len(p.data.Airports)
			p.data.Airports = append(p.data.Airports, AirportRecord{
				Ident:     icao,
				Name:      strings.TrimSpace(string(line[93:123])),
				Location:  parseLatLong(line[32:41], line[41:51]),
				Elevation: parseInt(line[56:61]),
			})

		case 'C': // terminal waypoint
			p.data.Fixes = append(p.data.Fixes, FixRecord{
				Ident:    strings.TrimSpace(string(line[13:18])),
				Region:   icao,
				Location: parseLatLong(line[32:41], line[41:51]),
			})

		case 'D', 'E', 'F': // SID, STAR, approach
			recs := p.matchingSSARecs(line)
			ap := p.airport(icao)
			if proc, ok := buildProcedure(recs, line[12]); ok && ap != nil {
				ap.Procedures = append(ap.Procedures, proc)
			}

		case 'G': // runway
			if continuation := line[21]; continuation != '0' && continuation != '1' {
				return
			}
			if empty(line[27:31]) {
				// No heading; e.g. seaplane bases.
				return
			}
			ap := p.airport(icao)
			if ap == nil {
				return
			}
			rwy := RunwayRecord{
				Ident:     aviation.NormalizeRunwayIdent(string(line[13:18])),
				Heading:   float32(parseInt(line[27:31])) / 10,
				Threshold: parseLatLong(line[32:41], line[41:51]),
				Elevation: parseInt(line[66:71]),
			}
			if !empty(line[22:27]) {
				rwy.LengthFt = parseInt(line[22:27])
			}
			if !empty(line[71:75]) {
				rwy.DisplacedThresholdDist = float32(parseInt(line[71:75])) / math.NauticalMilesToFeet
			}
			ap.Runways = append(ap.Runways, rwy)
		}
	}
}

func (p *cifpParser) airport(icao string) *AirportRecord {
	idx, ok := p.airports[icao]
	if !ok {
		p.e.ErrorString("%s: record for unknown airport", icao)
		return nil
	}
	return &p.data.Airports[idx]
}

func (p *cifpParser) parseNavaid(line []byte) {
	subsection := line[6]
	if subsection != ' ' /* VOR */ && subsection != 'B' /* NDB */ {
		return
	}
	id := strings.TrimSpace(string(line[13:17]))
	if len(id) < 2 {
		return
	}

	nav := NavaidRecord{
		Ident: id,
		Name:  strings.TrimSpace(string(line[93:123])),
	}
	if !empty(line[22:27]) {
		f := parseInt(line[22:27])
		if subsection == ' ' {
			nav.Frequency = aviation.Frequency(f * 10) // 10 kHz units
		} else {
			nav.Frequency = aviation.Frequency((f + 5) / 10) // 0.1 kHz units
		}
	}

	if !empty(line[32:51]) {
		nav.Type = util.Select(subsection == ' ', aviation.PositionedVOR, aviation.PositionedNDB)
		nav.Location = parseLatLong(line[32:41], line[41:51])
	} else {
		nav.Type = aviation.PositionedDME
		nav.Location = parseLatLong(line[55:64], line[64:74])
	}
	p.data.Navaids = append(p.data.Navaids, nav)
}

func (p *cifpParser) parseAirway(line []byte) {
	route := strings.TrimSpace(string(line[13:18]))
	seq := string(line[25:29])

	switch line[45] {
	case 'B', ' ':
		p.level = aviation.AirwayLevelBoth
	case 'H':
		p.level = aviation.AirwayLevelHigh
	case 'L':
		p.level = aviation.AirwayLevelLow
	default:
		panic(fmt.Sprintf("%s: unexpected airway level %q", route, line[45]))
	}
	p.airway[seq] = strings.TrimSpace(string(line[29:34]))

	if line[40] == 'E' { // end of airway
		aw := AirwayRecord{Ident: route, Level: p.level}
		for _, seq := range util.SortedMapKeys(p.airway) {
			aw.Fixes = append(aw.Fixes, p.airway[seq])
		}
		p.data.Airways = append(p.data.Airways, aw)
		clear(p.airway)
	}
}

///////////////////////////////////////////////////////////////////////////
// SIDs, STARs, approaches

type ssaRecord struct {
	icao                   string
	id                     string
	transition             string
	fix                    string
	continuation           byte
	waypointDescription    []byte
	turnDirection          byte
	pathAndTermination     string
	outboundMagneticCourse []byte
	routeDistance          []byte
	altDescrip             byte
	alt0, alt1             []byte
	speed                  []byte
	speedLimitType         byte
}

func parseSSA(line []byte) ssaRecord {
	return ssaRecord{
		icao:                   string(line[6:10]),
		id:                     strings.TrimSpace(string(line[13:19])),
		transition:             strings.TrimSpace(string(line[20:25])),
		fix:                    strings.TrimSpace(string(line[29:34])),
		continuation:           line[38],
		waypointDescription:    line[39:43],
		turnDirection:          line[43],
		pathAndTermination:     string(line[47:49]),
		outboundMagneticCourse: line[70:74],
		routeDistance:          line[74:78],
		altDescrip:             line[82],
		alt0:                   line[84:89],
		alt1:                   line[89:94],
		speed:                  line[99:102],
		speedLimitType:         line[117],
	}
}

// matchingSSARecs returns the records starting at line that belong to
// the same procedure.
func (p *cifpParser) matchingSSARecs(line []byte) []ssaRecord {
	id := strings.TrimSpace(string(line[13:19]))
	icao, subsec := string(line[6:10]), line[12]

	var recs []ssaRecord
	for {
		recs = append(recs, parseSSA(line))
		line = p.r.getline()
		if line == nil {
			break
		}
		if line[0] != 'S' || line[4] != 'P' || line[12] != subsec || string(line[6:10]) != icao ||
			strings.TrimSpace(string(line[13:19])) != id {
			p.r.ungetline(line)
			break
		}
	}
	return recs
}

func (r *ssaRecord) isPrimary() bool {
	return r.continuation == '0' || r.continuation == '1'
}

func (r *ssaRecord) isHold() bool {
	return r.pathAndTermination == "HF" || r.pathAndTermination == "HA" || r.pathAndTermination == "HM"
}

// leg returns the leg for the record; records that don't end at a fix
// (heading legs, course to altitude, ...) return false.
func (r *ssaRecord) leg() (LegRecord, bool) {
	switch r.pathAndTermination {
	case "FM", "VM", "VA", "CA", "VI", "CI", "VD", "CD", "VR", "CR", "FA", "FC", "FD":
		return LegRecord{}, false
	}
	if r.fix == "" {
		return LegRecord{}, false
	}

	leg := LegRecord{
		Fix:     r.fix,
		FlyOver: r.waypointDescription[1] == 'Y',
		IAF:     r.waypointDescription[3] == 'A' || r.waypointDescription[3] == 'C' || r.waypointDescription[3] == 'D',
		FAF:     r.waypointDescription[3] == 'F',
	}

	if !empty(r.alt0) {
		alt := float32(parseAltitude(r.alt0))
		switch r.altDescrip {
		case ' ', 'G', 'I', 'X':
			leg.Altitude = aviation.Restriction{Kind: aviation.RestrictAt, Value: alt}
		case '+', 'H', 'J', 'V':
			leg.Altitude = aviation.Restriction{Kind: aviation.RestrictAbove, Value: alt}
		case '-':
			leg.Altitude = aviation.Restriction{Kind: aviation.RestrictBelow, Value: alt}
		case 'B':
			// "At or above to at or below"; the higher value is first.
			if !empty(r.alt1) {
				alt = float32(parseAltitude(r.alt1))
			}
			leg.Altitude = aviation.Restriction{Kind: aviation.RestrictAbove, Value: alt}
		}
	}
	if !empty(r.speed) {
		spd := float32(parseInt(r.speed))
		switch r.speedLimitType {
		case '+':
			leg.Speed = aviation.Restriction{Kind: aviation.RestrictAbove, Value: spd}
		case '@':
			leg.Speed = aviation.Restriction{Kind: aviation.RestrictAt, Value: spd}
		default:
			leg.Speed = aviation.Restriction{Kind: aviation.RestrictBelow, Value: spd}
		}
	}

	if r.isHold() {
		h := aviation.HoldParams{LeftHanded: r.turnDirection == 'L'}
		if !empty(r.outboundMagneticCourse) {
			h.InboundRadial = float32(parseInt(r.outboundMagneticCourse)) / 10
		}
		switch {
		case empty(r.routeDistance):
			h.TimeOrDistance = 60
		case r.routeDistance[0] == 'T':
			// Tenths of minutes.
			h.TimeOrDistance = float32(parseInt(r.routeDistance[1:])) * 6
		default:
			h.IsDistance = true
			h.TimeOrDistance = float32(parseInt(r.routeDistance)) / 10
		}
		leg.Hold = &h
	}
	return leg, true
}

func buildProcedure(recs []ssaRecord, subsec byte) (ProcedureRecord, bool) {
	if len(recs) == 0 {
		return ProcedureRecord{}, false
	}
	proc := ProcedureRecord{Ident: recs[0].id}
	switch subsec {
	case 'D':
		proc.Type = aviation.ProcedureSID
	case 'E':
		proc.Type = aviation.ProcedureSTAR
	default:
		proc.Type, _ = aviation.ApproachTypeFromCIFP(proc.Ident[0])
		proc.Runway = approachRunway(proc.Ident)
	}

	segment := func(name string) *SegmentRecord {
		for i := range proc.Segments {
			if proc.Segments[i].Transition == name {
				return &proc.Segments[i]
			}
		}
		proc.Segments = append(proc.Segments, SegmentRecord{Transition: name})
		return &proc.Segments[len(proc.Segments)-1]
	}
	add := func(legs []LegRecord, leg LegRecord) []LegRecord {
		if n := len(legs); n > 0 && legs[n-1].Fix == leg.Fix && leg.Hold != nil {
			// Hold at the fix just reached.
			leg.Altitude = util.Select(leg.Altitude.IsSet(), leg.Altitude, legs[n-1].Altitude)
			legs[n-1] = leg
			return legs
		}
		return append(legs, leg)
	}

	inMissed := false
	for i := range recs {
		r := &recs[i]
		if !r.isPrimary() {
			continue
		}

		if proc.Type.IsApproach() && r.transition == "" {
			if inMissed {
				if leg, ok := r.leg(); ok {
					proc.Missed = add(proc.Missed, leg)
				}
				continue
			}
			if r.waypointDescription[0] == 'G' { // runway as a waypoint
				inMissed = true
				continue
			}
			if r.waypointDescription[3] == 'M' { // missed approach point
				inMissed = true
			}
		}

		if leg, ok := r.leg(); ok {
			seg := segment(r.transition)
			seg.Legs = add(seg.Legs, leg)
		}
	}

	return proc, len(proc.Segments) > 0
}

// approachRunway extracts the runway from a CIFP approach identifier,
// e.g. "I04L" -> "4L", "R13-Y" -> "13".
func approachRunway(id string) string {
	s := id[1:]
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	if n == 0 {
		// Circling approach, e.g. "VDM-A".
		return ""
	}
	if n < len(s) && (s[n] == 'L' || s[n] == 'R' || s[n] == 'C') {
		n++
	}
	return aviation.NormalizeRunwayIdent(s[:n])
}
