// pkg/navdb/navdb_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package navdb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/mmp/fms/pkg/aviation"
	"github.com/mmp/fms/pkg/math"
	"github.com/mmp/fms/pkg/util"

	"github.com/davecgh/go-spew/spew"
)

type field struct {
	col int
	s   string
}

// record returns a 132-column ARINC-424 record with the given fields.
func record(fields ...field) string {
	b := []byte(strings.Repeat(" ", ARINC424RecordLength))
	b[0] = 'S'
	for _, f := range fields {
		copy(b[f.col:], f.s)
	}
	return string(b) + "\r\n"
}

func vhfRecord(id, subsec, freq, lat, lon, name string) string {
	return record(field{4, "D"}, field{6, subsec}, field{13, id}, field{22, freq}, field{32, lat}, field{41, lon},
		field{93, name})
}

func enrouteFix(id, lat, lon string) string {
	return record(field{4, "EA"}, field{13, id}, field{32, lat}, field{41, lon})
}

func terminalFix(icao, id, lat, lon string) string {
	return record(field{4, "P"}, field{6, icao}, field{12, "C"}, field{13, id}, field{32, lat}, field{41, lon})
}

func airportRecord(icao, lat, lon, elev, name string) string {
	return record(field{4, "P"}, field{6, icao}, field{12, "A"}, field{32, lat}, field{41, lon}, field{56, elev},
		field{93, name})
}

func runwayRecord(icao, rwy, length, hdg, lat, lon, elev string) string {
	return record(field{4, "P"}, field{6, icao}, field{12, "G"}, field{13, rwy}, field{21, "0"}, field{22, length},
		field{27, hdg}, field{32, lat}, field{41, lon}, field{66, elev})
}

type ssa struct {
	trans, fix, desc, path, turn, course, dist, altDesc, alt, speed string
}

func ssaRecords(icao, subsec, id string, recs ...ssa) string {
	var s string
	for _, r := range recs {
		s += record(field{4, "P"}, field{6, icao}, field{12, subsec}, field{13, id}, field{20, r.trans},
			field{29, r.fix}, field{38, "0"}, field{39, r.desc}, field{43, r.turn}, field{47, r.path},
			field{70, r.course}, field{74, r.dist}, field{82, r.altDesc}, field{84, r.alt}, field{99, r.speed})
	}
	return s
}

func airwayRecord(route, seq, fix, level string, end bool) string {
	return record(field{4, "ER"}, field{13, route}, field{25, seq}, field{29, fix},
		field{40, util.Select(end, "E", " ")}, field{45, level})
}

func testCIFP() string {
	return vhfRecord("CRI", " ", "11230", "N40360000", "W073480000", "CANARSIE") +
		vhfRecord("DPK", " ", "11780", "N40480000", "W073180000", "DEER PARK") +
		vhfRecord("BG", "B", "03750", "N41000000", "W073000000", "BIG NDB") +
		enrouteFix("MERIT", "N41230000", "W073080000") +
		enrouteFix("SKORR", "N40500000", "W073500000") +
		enrouteFix("RNGRR", "N41000000", "W074000000") +
		enrouteFix("YNKEE", "N41300000", "W074300000") +
		enrouteFix("ASALT", "N40400000", "W073200000") +
		enrouteFix("ZALPO", "S10000000", "E020000000") +
		airwayRecord("J1", "0010", "YNKEE", "H", false) +
		airwayRecord("J1", "0020", "RNGRR", "H", false) +
		airwayRecord("J1", "0030", "MERIT", "H", true) +
		airwayRecord("V2", "0010", "CRI", "L", false) +
		airwayRecord("V2", "0020", "MERIT", "L", true) +
		airportRecord("KJFK", "N40380000", "W073460000", "00013", "JOHN F KENNEDY INTL") +
		terminalFix("KJFK", "CATOD", "N40320000", "W073400000") +
		terminalFix("KJFK", "ZALPO", "N40350000", "W073440000") +
		runwayRecord("KJFK", "RW04L", "12079", "0310", "N40373000", "W073470000", "00012") +
		runwayRecord("KJFK", "RW31L", "11351", "3010", "N40370000", "W073450000", "00012") +
		ssaRecords("KJFK", "D", "SKORR5",
			ssa{trans: "RW31L", path: "VA", altDesc: "+", alt: "00520"},
			ssa{trans: "RW31L", fix: "SKORR", desc: "E   ", path: "DF"},
			ssa{fix: "SKORR", desc: "E   ", path: "IF"},
			ssa{fix: "RNGRR", desc: "EY  ", path: "TF", altDesc: "+", alt: "05000", speed: "250"},
			ssa{trans: "YNKEE", fix: "RNGRR", desc: "E   ", path: "IF"},
			ssa{trans: "YNKEE", fix: "YNKEE", desc: "E   ", path: "TF", alt: "FL180"}) +
		ssaRecords("KJFK", "F", "I31L",
			ssa{trans: "ASALT", fix: "ASALT", desc: "E  A", path: "IF"},
			ssa{trans: "ASALT", fix: "CATOD", desc: "E   ", path: "TF"},
			ssa{fix: "CATOD", desc: "E  I", path: "IF", alt: "03000"},
			ssa{fix: "ZALPO", desc: "E  F", path: "TF", altDesc: "G", alt: "01500"},
			ssa{fix: "RW31L", desc: "G  M", path: "TF"},
			ssa{path: "CA", altDesc: "+", alt: "01000"},
			ssa{fix: "DPK", desc: "E   ", path: "DF"},
			ssa{fix: "DPK", desc: "E   ", path: "HM", turn: "L", course: "2581", dist: "T010", altDesc: "+",
				alt: "04000"})
}

func TestParseCIFP(t *testing.T) {
	var e util.ErrorLogger
	d, err := ParseCIFP(strings.NewReader(testCIFP()), &e)
	if err != nil {
		t.Fatal(err)
	}
	if e.HaveErrors() {
		t.Fatalf("unexpected parse errors: %s", e.String())
	}

	if len(d.Navaids) != 3 || len(d.Fixes) != 8 || len(d.Airports) != 1 || len(d.Airways) != 2 {
		t.Fatalf("unexpected record counts: %s", spew.Sdump(len(d.Navaids), len(d.Fixes), len(d.Airports), len(d.Airways)))
	}

	cri := d.Navaids[0]
	if cri.Type != aviation.PositionedVOR || cri.Frequency != 112300 || cri.Name != "CANARSIE" {
		t.Errorf("unexpected VOR %+v", cri)
	}
	if cri.Location != (math.Point2LL{-73.8, 40.6}) {
		t.Errorf("got CRI location %v", cri.Location)
	}
	if bg := d.Navaids[2]; bg.Type != aviation.PositionedNDB || bg.Frequency != 375 {
		t.Errorf("unexpected NDB %+v", bg)
	}
	if z := d.Fixes[5]; z.Location[0] != 20 || z.Location[1] != -10 {
		t.Errorf("southern/eastern hemisphere fix parsed as %v", z.Location)
	}

	ap := d.Airports[0]
	if ap.Ident != "KJFK" || ap.Elevation != 13 || len(ap.Runways) != 2 {
		t.Fatalf("unexpected airport %s", spew.Sdump(ap))
	}
	if r := ap.Runways[1]; r.Ident != "31L" || r.Heading != 301 || r.LengthFt != 11351 {
		t.Errorf("unexpected runway %+v", r)
	}

	if aw := d.Airways[0]; aw.Ident != "J1" || aw.Level != aviation.AirwayLevelHigh ||
		!slices.Equal(aw.Fixes, []string{"YNKEE", "RNGRR", "MERIT"}) {
		t.Errorf("unexpected airway %+v", aw)
	}

	if len(ap.Procedures) != 2 {
		t.Fatalf("got %d procedures", len(ap.Procedures))
	}
	sid := ap.Procedures[0]
	if sid.Type != aviation.ProcedureSID || len(sid.Segments) != 3 {
		t.Fatalf("unexpected SID %s", spew.Sdump(sid))
	}
	if rw := sid.Segments[0]; rw.Transition != "RW31L" || len(rw.Legs) != 1 {
		t.Errorf("heading leg not skipped: %+v", rw)
	}
	rngrr := sid.Segments[1].Legs[1]
	if !rngrr.FlyOver || rngrr.Altitude != (aviation.Restriction{Kind: aviation.RestrictAbove, Value: 5000}) ||
		rngrr.Speed != (aviation.Restriction{Kind: aviation.RestrictBelow, Value: 250}) {
		t.Errorf("unexpected RNGRR leg %+v", rngrr)
	}
	if yn := sid.Segments[2].Legs[1]; yn.Altitude.Value != 18000 || yn.Altitude.Kind != aviation.RestrictAt {
		t.Errorf("flight level altitude parsed as %+v", yn.Altitude)
	}

	appr := ap.Procedures[1]
	if appr.Type != aviation.ProcedureApproachILS || appr.Runway != "31L" {
		t.Errorf("unexpected approach %s %q", appr.Type, appr.Runway)
	}
	if len(appr.Missed) != 1 || appr.Missed[0].Hold == nil {
		t.Fatalf("unexpected missed approach %s", spew.Sdump(appr.Missed))
	}
	h := *appr.Missed[0].Hold
	if !h.LeftHanded || h.IsDistance || h.TimeOrDistance != 60 || math.Abs(h.InboundRadial-258.1) > 0.01 {
		t.Errorf("unexpected missed approach hold %+v", h)
	}
	if appr.Missed[0].Altitude.Value != 4000 {
		t.Errorf("hold altitude %+v", appr.Missed[0].Altitude)
	}
}

func TestParseCIFPErrors(t *testing.T) {
	cifp := vhfRecord("BAD", " ", "11230", "NXX360000", "W073480000", "BROKEN") +
		"HDR01 short header line\r\n" +
		enrouteFix("MERIT", "N41230000", "W073080000")

	var e util.ErrorLogger
	d, err := ParseCIFP(strings.NewReader(cifp), &e)
	if err != nil {
		t.Fatal(err)
	}
	if !e.HaveErrors() || !strings.Contains(e.String(), "line 1") {
		t.Errorf("expected an error for line 1, got %q", e.String())
	}
	if len(d.Navaids) != 0 || len(d.Fixes) != 1 {
		t.Errorf("got %d navaids, %d fixes", len(d.Navaids), len(d.Fixes))
	}
}

func TestApproachRunway(t *testing.T) {
	tests := map[string]string{
		"I04L":  "4L",
		"I31L":  "31L",
		"R13-Y": "13",
		"H22RZ": "22R",
		"VDM-A": "",
		"L06":   "6",
	}
	for id, want := range tests {
		if got := approachRunway(id); got != want {
			t.Errorf("%s: got %q, expected %q", id, got, want)
		}
	}
}

func testDatabase(t *testing.T) *Database {
	d, err := ParseCIFP(strings.NewReader(testCIFP()), nil)
	if err != nil {
		t.Fatal(err)
	}
	db, err := FromSnapshot(d, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return db
}

func TestDirectory(t *testing.T) {
	db := testDatabase(t)
	jfk := db.Airport("KJFK")
	if jfk == nil {
		t.Fatal("no KJFK")
	}

	if ents := db.FindByIdent("CRI", aviation.NavaidTypes); len(ents) != 1 || ents[0].Type() != aviation.PositionedVOR {
		t.Errorf("FindByIdent CRI: %v", ents)
	}
	if ents := db.FindByIdent("CRI", aviation.TypeFilter{aviation.PositionedFix}); len(ents) != 0 {
		t.Errorf("filter ignored: %v", ents)
	}
	if ents := db.FindByIdent("KJFK/31L", nil); len(ents) != 1 || ents[0] != jfk.Runway("31L") {
		t.Errorf("runway lookup by full ident: %v", ents)
	}

	if e, ok := db.FindClosest(jfk.Location(), 50, aviation.TypeFilter{aviation.PositionedFix}); !ok || e.Ident() != "ZALPO" {
		t.Errorf("FindClosest: got %v", e)
	}
	if _, ok := db.FindClosest(math.Point2LL{0, 0}, 10, nil); ok {
		t.Errorf("FindClosest found something at 0,0")
	}

	near := db.FindWithinRange(jfk.Location(), 30, aviation.TypeFilter{aviation.PositionedVOR, aviation.PositionedFix})
	var ids []string
	for _, e := range near {
		ids = append(ids, e.Ident())
	}
	if !slices.Equal(ids, []string{"CRI", "ZALPO", "CATOD", "SKORR", "ASALT", "DPK", "RNGRR"}) {
		t.Errorf("FindWithinRange: got %v", ids)
	}

	if ents := db.FindAllByFrequency(112300, jfk.Location(), nil); len(ents) != 1 || ents[0].Ident() != "CRI" {
		t.Errorf("FindAllByFrequency: %v", ents)
	}
	if ents := db.FindAllByFrequency(375, jfk.Location(), aviation.NavaidTypes); len(ents) != 1 || ents[0].Ident() != "BG" {
		t.Errorf("FindAllByFrequency NDB: %v", ents)
	}

	u, err := db.AddUserWaypoint("USR", math.Point2LL{-70, 40})
	if err != nil {
		t.Fatal(err)
	}
	h := db.Registry().Acquire(u.EntityID())
	h.Release()
	if db.Registry().Live(u.EntityID()) {
		t.Errorf("user waypoint outlived its last handle")
	}
}

func TestDatabaseProcedures(t *testing.T) {
	db := testDatabase(t)
	jfk := db.Airport("KJFK")

	sid := jfk.SID("SKORR5")
	if sid == nil {
		t.Fatal("no SKORR5")
	}
	wps, err := sid.Route(jfk.Runway("31L"), sid.Transition("YNKEE"))
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, wp := range wps {
		ids = append(ids, wp.Ident())
	}
	if !slices.Equal(ids, []string{"SKORR", "RNGRR", "YNKEE"}) {
		t.Errorf("SID route: got %v", ids)
	}
	if _, err := sid.Route(jfk.Runway("4L"), nil); !errors.Is(err, aviation.ErrRunwayNotApplicable) {
		t.Errorf("expected ErrRunwayNotApplicable, got %v", err)
	}

	appr := jfk.Approach("I31L")
	if appr == nil {
		t.Fatal("no I31L")
	}
	wps, err = appr.ApproachRoute("ASALT")
	if err != nil {
		t.Fatal(err)
	}
	ids = ids[:0]
	for _, wp := range wps {
		ids = append(ids, wp.Ident())
	}
	if !slices.Equal(ids, []string{"ASALT", "CATOD", "ZALPO", "31L", "DPK"}) {
		t.Errorf("approach route: got %v", ids)
	}
	// CATOD is the terminal fix, not some other CATOD.
	if wps[1].Source().(*aviation.Fix).Region != "KJFK" {
		t.Errorf("CATOD resolved to wrong fix")
	}
	if dpk := wps[len(wps)-1]; !dpk.IsHold() || !dpk.Flag(aviation.WaypointFlagMissed) {
		t.Errorf("missed approach hold: kind %s flags %s", dpk.Kind(), dpk.Flags())
	}
	if !slices.Equal(appr.InitialApproachFixes(), []string{"ASALT"}) {
		t.Errorf("got IAFs %v", appr.InitialApproachFixes())
	}
}

func TestDatabaseAirways(t *testing.T) {
	db := testDatabase(t)
	cri := db.FindByIdent("CRI", nil)[0]
	ynkee := db.FindByIdent("YNKEE", nil)[0]

	j1 := db.Airways.FindByIdent("J1", aviation.AirwayLevelHigh)
	if j1 == nil || len(j1.Nodes()) != 3 {
		t.Fatalf("J1: %v", j1)
	}

	route := func(level aviation.AirwayLevel) []string {
		var ids []string
		for _, wp := range db.Airways.Route(aviation.NewEntityWaypoint(cri), aviation.NewEntityWaypoint(ynkee), level) {
			ids = append(ids, wp.Ident())
		}
		return ids
	}
	if got := route(aviation.AirwayLevelBoth); !slices.Equal(got, []string{"MERIT", "RNGRR", "YNKEE"}) {
		t.Errorf("both: got %v", got)
	}
	// CRI is only on a low airway; the high route starts from the
	// closest high-altitude node.
	if got := route(aviation.AirwayLevelHigh); !slices.Equal(got, []string{"RNGRR", "YNKEE"}) {
		t.Errorf("high: got %v", got)
	}
	if got := route(aviation.AirwayLevelLow); len(got) != 0 {
		t.Errorf("low: got %v", got)
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "FAACIFP18.zst")
	w, err := util.CreateFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(testCIFP())); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	cache := &util.ObjectCache{Dir: filepath.Join(dir, "cache")}
	opts := LoadOptions{Cache: cache, Strict: true}

	db, err := LoadFiles(context.Background(), opts, path)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(filepath.Join(cache.Dir, "navdb"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one cache entry: %v %v", entries, err)
	}

	cached, err := LoadFiles(context.Background(), opts, path)
	if err != nil {
		t.Fatal(err)
	}
	if db.String() != cached.String() {
		t.Errorf("cached load differs: %s vs %s", db.String(), cached.String())
	}
	if len(cached.Snapshot().Airports) != 1 {
		t.Errorf("snapshot lost airports")
	}

	if _, err := LoadFiles(context.Background(), opts, filepath.Join(dir, "missing")); err == nil {
		t.Errorf("expected error loading missing file")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := LoadFiles(ctx, LoadOptions{}, path); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
