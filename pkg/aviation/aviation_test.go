// pkg/aviation/aviation_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"errors"
	gomath "math"
	"slices"
	"testing"

	"github.com/mmp/fms/pkg/math"

	"github.com/davecgh/go-spew/spew"
)

func TestMakeRestriction(t *testing.T) {
	tests := []struct {
		kind    RestrictionKind
		value   float64
		wantErr error
	}{
		{kind: RestrictNone, value: gomath.NaN()},
		{kind: RestrictAt, value: 5000},
		{kind: RestrictMach, value: 0.78},
		{kind: RestrictAbove, value: gomath.NaN(), wantErr: ErrInvalidRestriction},
		{kind: RestrictBelow, value: gomath.Inf(1), wantErr: ErrInvalidRestriction},
		{kind: RestrictAt, value: 1e300, wantErr: ErrInvalidRestriction},
		{kind: RestrictAbove, value: -1e40, wantErr: ErrInvalidRestriction},
		{kind: RestrictionKind(42), value: 1, wantErr: ErrUnknownRestriction},
	}
	for _, test := range tests {
		r, err := MakeRestriction(test.kind, test.value)
		if !errors.Is(err, test.wantErr) {
			t.Errorf("%s %v: got error %v, expected %v", test.kind, test.value, err, test.wantErr)
		}
		if err == nil && test.kind != RestrictNone && r.Value != float32(test.value) {
			t.Errorf("%s: got value %v, expected %v", test.kind, r.Value, test.value)
		}
		if test.kind == RestrictNone && r.IsSet() {
			t.Errorf("none restriction reports being set")
		}
	}

	for _, name := range []string{"", "at", "above", "below", "mach", "computed", "computed-mach", "delete"} {
		k, err := ParseRestrictionKind(name)
		if err != nil {
			t.Errorf("%q: unexpected error %v", name, err)
		} else if k.String() != name {
			t.Errorf("%q: parsed to %q", name, k.String())
		}
	}
	if _, err := ParseRestrictionKind("around"); !errors.Is(err, ErrUnknownRestriction) {
		t.Errorf("expected ErrUnknownRestriction, got %v", err)
	}

	cm := Restriction{Kind: RestrictComputedMach, Value: 0.8}
	if !cm.IsComputed() || !cm.IsMach() || !cm.IsSet() {
		t.Errorf("computed-mach: computed %v mach %v set %v", cm.IsComputed(), cm.IsMach(), cm.IsSet())
	}
	if at := (Restriction{Kind: RestrictAt, Value: 5000}); at.IsComputed() || at.IsMach() {
		t.Errorf("at restriction reports computed or mach")
	}
	if (Restriction{Kind: RestrictDelete}).IsSet() {
		t.Errorf("delete restriction reports being set")
	}
}

func TestRestrictionSatisfies(t *testing.T) {
	above := Restriction{Kind: RestrictAbove, Value: 10000}
	if !above.Satisfies(12000, 0) || above.Satisfies(9000, 0) {
		t.Errorf("above restriction misbehaves")
	}
	if above.TargetValue(8000) != 10000 || above.TargetValue(11000) != 11000 {
		t.Errorf("above target values incorrect")
	}
	below := Restriction{Kind: RestrictBelow, Value: 250}
	if !below.Satisfies(250, 0) || below.Satisfies(260, 5) {
		t.Errorf("below restriction misbehaves")
	}
	if !(Restriction{Kind: RestrictDelete}).Satisfies(1, 0) {
		t.Errorf("delete restriction should not constrain")
	}
}

func TestWaypointRoles(t *testing.T) {
	wp := NewBasicWaypoint("WP1", math.Point2LL{-73, 40})

	wp.SetFlag(WaypointFlagDeparture, true)
	wp.SetFlag(WaypointFlagOverflight, true)
	wp.SetFlag(WaypointFlagArrival, true)
	if wp.Flag(WaypointFlagDeparture) || !wp.Flag(WaypointFlagArrival) {
		t.Errorf("role flags not exclusive: %s", wp.Flags())
	}
	if !wp.FlyOver() || wp.FlyType() != "flyOver" {
		t.Errorf("overflight cleared by role change")
	}

	if err := wp.SetRole("missed"); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if wp.Role() != "missed" || wp.Flag(WaypointFlagArrival) {
		t.Errorf("got role %q flags %s", wp.Role(), wp.Flags())
	}
	if err := wp.SetRole("cruise"); !errors.Is(err, ErrUnknownRole) {
		t.Errorf("expected ErrUnknownRole, got %v", err)
	}

	wp.SetOwner(NewProcedure("DEEZZ5", ProcedureSID))
	if err := wp.SetRole("star"); !errors.Is(err, ErrRoleOwned) {
		t.Errorf("expected ErrRoleOwned, got %v", err)
	}
}

func TestWaypointHoldConversion(t *testing.T) {
	vor := NewNavaid("CRI", "CANARSIE", PositionedVOR, math.Point2LL{-73.8, 40.6}, 112300)

	tests := []struct {
		name    string
		wp      Waypoint
		wantErr error
	}{
		{name: "basic", wp: NewBasicWaypoint("N40W073", math.Point2LL{-73, 40})},
		{name: "navaid", wp: NewEntityWaypoint(vor)},
		{name: "discontinuity", wp: NewDiscontinuity(), wantErr: ErrDiscontinuityHold},
		{name: "procedure", wp: func() Waypoint {
			wp := NewEntityWaypoint(vor)
			wp.SetOwner(NewProcedure("CAMRN5", ProcedureSTAR))
			return wp
		}(), wantErr: ErrProcedureHold},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			wp := test.wp
			ident, pos, kind := wp.Ident(), wp.Position(), wp.Kind()

			err := wp.ConvertToHold()
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("got error %v, expected %v", err, test.wantErr)
			}
			if err != nil {
				if wp.Kind() != kind {
					t.Errorf("failed conversion changed kind to %s", wp.Kind())
				}
				return
			}

			if !wp.IsHold() || wp.PriorKind() != kind {
				t.Errorf("got kind %s prior %s", wp.Kind(), wp.PriorKind())
			}
			h, ok := wp.HoldParams()
			if !ok || h != DefaultHoldParams() {
				t.Errorf("unexpected hold params %+v", h)
			}

			wp.RevertHold()
			if wp.Kind() != kind || wp.Ident() != ident || wp.Position() != pos {
				t.Errorf("revert: got %s %s %v, expected %s %s %v", wp.Kind(), wp.Ident(), wp.Position(),
					kind, ident, pos)
			}
			if _, ok := wp.HoldParams(); ok {
				t.Errorf("reverted waypoint still has hold parameters")
			}
		})
	}
}

func TestWaypointCloneHold(t *testing.T) {
	wp := NewBasicWaypoint("HOLDY", math.Point2LL{-73, 40})
	if err := wp.ConvertToHold(); err != nil {
		t.Fatal(err)
	}
	c := wp.Clone()
	if err := c.SetHoldParams(HoldParams{LeftHanded: true, InboundRadial: 270, TimeOrDistance: 90}); err != nil {
		t.Fatal(err)
	}
	if h, _ := wp.HoldParams(); h.LeftHanded || h.TimeOrDistance != 60 {
		t.Errorf("clone shares hold parameters with original: %+v", h)
	}
	if err := c.SetHoldParams(HoldParams{TimeOrDistance: 0}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for zero-length hold, got %v", err)
	}
}

func TestHoldLegLength(t *testing.T) {
	if s := HoldingSpeed(5000); s != 200 {
		t.Errorf("got holding speed %v at 5000", s)
	}
	if s := HoldingSpeed(20000); s != 265 {
		t.Errorf("got holding speed %v at FL200", s)
	}
	h := DefaultHoldParams()
	if l := h.LegLengthNM(240); l != 4 {
		t.Errorf("60s at 240kts: got %v nm", l)
	}
	h.IsDistance, h.TimeOrDistance = true, 5
	if l := h.LegLengthNM(240); l != 5 {
		t.Errorf("distance hold: got %v nm", l)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	pinned := NewFix("MERIT", math.Point2LL{-73.1, 41.4})
	user := NewUserWaypoint("USR01", math.Point2LL{-72, 41})

	pid, err := r.Add(pinned, true)
	if err != nil {
		t.Fatal(err)
	}
	uid, err := r.Add(user, false)
	if err != nil {
		t.Fatal(err)
	}
	if pid == uid || pid == 0 || uid == 0 {
		t.Fatalf("bad ids %d %d", pid, uid)
	}
	if _, err := r.Add(pinned, true); !errors.Is(err, ErrUnregisteredEntity) {
		t.Errorf("re-adding entity: expected ErrUnregisteredEntity, got %v", err)
	}

	h0, h1 := r.Acquire(uid), r.Acquire(uid)
	if r.RefCount(uid) != 2 {
		t.Errorf("got refcount %d, expected 2", r.RefCount(uid))
	}
	h0.Release()
	h0.Release()
	if r.RefCount(uid) != 1 || !r.Live(uid) {
		t.Errorf("double release dropped a second reference")
	}
	h1.Release()
	if r.Live(uid) {
		t.Errorf("unpinned entity still live after last release")
	}
	if h1.Entity() != nil {
		t.Errorf("released handle still returns entity")
	}

	h := r.Acquire(pid)
	h.Release()
	if !r.Live(pid) {
		t.Errorf("pinned entity destroyed on release")
	}
	if r.Acquire(uid) != nil {
		t.Errorf("acquired a destroyed entity")
	}
	if n := len(slices.Collect(r.All())); n != 1 {
		t.Errorf("All returned %d entities", n)
	}
}

///////////////////////////////////////////////////////////////////////////
// Procedures

func testAirport() *Airport {
	ap := NewAirport("KJFK", "JOHN F KENNEDY INTL", math.Point2LL{-73.7789, 40.6397}, 13)
	ap.AddRunway("RW04L", math.Point2LL{-73.7900, 40.6220}, 31, 12)
	ap.AddRunway("RW31L", math.Point2LL{-73.7550, 40.6450}, 301, 12)
	return ap
}

func idents(wps []Waypoint) []string {
	var s []string
	for _, wp := range wps {
		s = append(s, wp.Ident())
	}
	return s
}

func fixes(names ...string) []Waypoint {
	var wps []Waypoint
	for i, n := range names {
		wps = append(wps, NewEntityWaypoint(NewFix(n, math.Point2LL{-73 + float32(i)*0.1, 40.5})))
	}
	return wps
}

func TestSIDRoute(t *testing.T) {
	ap := testAirport()
	sid := NewProcedure("SKORR5", ProcedureSID)
	ap.AddProcedure(sid)
	sid.AddRunwayRoute("RW31L", fixes("RW31L1", "SKORR"))
	sid.SetCommonRoute(fixes("SKORR", "RNGRR"))
	trans := sid.AddTransition("YNKEE", fixes("RNGRR", "YNKEE"))
	if got := idents(sid.CommonRoute()); !slices.Equal(got, []string{"SKORR", "RNGRR"}) {
		t.Errorf("common route %v", got)
	}

	wps, err := sid.Route(ap.Runway("31L"), trans)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := idents(wps), []string{"RW31L1", "SKORR", "RNGRR", "YNKEE"}; !slices.Equal(got, want) {
		t.Errorf("got route %v, expected %v", got, want)
	}
	for _, wp := range wps {
		if !wp.Flag(WaypointFlagDeparture) || wp.Owner() == nil {
			t.Errorf("%s: flags %s owner %v", wp.Ident(), wp.Flags(), wp.Owner())
		}
	}
	if wps[len(wps)-1].Owner() != RouteElement(trans) {
		t.Errorf("transition waypoint not owned by transition")
	}

	if _, err := sid.Route(ap.Runway("4L"), nil); !errors.Is(err, ErrRunwayNotApplicable) {
		t.Errorf("expected ErrRunwayNotApplicable, got %v", err)
	}
	other := NewProcedure("GREKI6", ProcedureSID).AddTransition("YNKEE", nil)
	if _, err := sid.Route(nil, other); !errors.Is(err, ErrTransitionMismatch) {
		t.Errorf("expected ErrTransitionMismatch, got %v", err)
	}
	if ap.SelectSIDByTransition("YNKEE") != trans {
		t.Errorf("SelectSIDByTransition did not find transition")
	}
	if rwys := sid.Runways(); !slices.Equal(rwys, []string{"31L"}) {
		t.Errorf("got runways %v", rwys)
	}

	// Routes are copies of the template.
	wps[0].SetFlyOver(true)
	again, _ := sid.Route(ap.Runway("31L"), nil)
	if again[0].FlyOver() {
		t.Errorf("modifying a route modified the procedure")
	}
}

func TestSTARRoute(t *testing.T) {
	ap := testAirport()
	star := NewProcedure("CAMRN5", ProcedureSTAR)
	ap.AddProcedure(star)
	star.SetCommonRoute(fixes("CAMRN", "KARRS"))
	star.AddRunwayRoute("4L", fixes("KARRS", "ZACHS"))
	trans := star.AddTransition("SIE", fixes("SIE", "CAMRN"))

	wps, err := star.Route(ap.Runway("4L"), trans)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := idents(wps), []string{"SIE", "CAMRN", "KARRS", "ZACHS"}; !slices.Equal(got, want) {
		t.Errorf("got route %v, expected %v", got, want)
	}
	for _, wp := range wps {
		if wp.Role() != "star" {
			t.Errorf("%s: got role %q", wp.Ident(), wp.Role())
		}
	}

	if _, err := star.ApproachRoute(""); !errors.Is(err, ErrWrongProcedureType) {
		t.Errorf("expected ErrWrongProcedureType, got %v", err)
	}
}

func TestApproachRoute(t *testing.T) {
	ap := testAirport()
	appr, err := NewApproach("I31L", ProcedureApproachILS, "31L")
	if err != nil {
		t.Fatal(err)
	}
	ap.AddProcedure(appr)
	appr.SetCommonRoute(fixes("CATOD", "ZALPO"))
	appr.AddTransition("ASALT", fixes("ASALT", "CATOD"))
	appr.SetMissedApproach(fixes("DPK"))

	tests := []struct {
		iaf     string
		want    []string
		wantErr error
	}{
		{iaf: "", want: []string{"CATOD", "ZALPO", "31L", "DPK"}},
		{iaf: "ASALT", want: []string{"ASALT", "CATOD", "ZALPO", "31L", "DPK"}},
		{iaf: "ZALPO", want: []string{"ZALPO", "31L", "DPK"}},
		{iaf: "NOPE", wantErr: ErrNoSuchIAF},
	}
	for _, test := range tests {
		wps, err := appr.ApproachRoute(test.iaf)
		if !errors.Is(err, test.wantErr) {
			t.Errorf("%q: got error %v, expected %v", test.iaf, err, test.wantErr)
			continue
		}
		if got := idents(wps); !slices.Equal(got, test.want) {
			t.Errorf("%q: got %v, expected %v", test.iaf, got, test.want)
		}
		if n := len(wps); n > 0 && !wps[n-1].Flag(WaypointFlagMissed) {
			t.Errorf("%q: missed approach waypoint not flagged: %s", test.iaf, spew.Sdump(wps[n-1].Flags()))
		}
	}

	if ap.Approach("I31L") != appr || !appr.Type.IsApproach() {
		t.Errorf("approach not registered with airport")
	}
	if _, err := appr.Route(nil, nil); !errors.Is(err, ErrWrongProcedureType) {
		t.Errorf("expected ErrWrongProcedureType, got %v", err)
	}
}

///////////////////////////////////////////////////////////////////////////
// Airways

// Two parallel paths from A to D: a short low-altitude one through B and
// a longer high-altitude one through C. E is disconnected.
func testNetwork(t *testing.T) (*AirwayNetwork, map[string]Positioned) {
	pts := map[string]math.Point2LL{
		"AAA": {-75, 40},
		"BBB": {-74, 40},
		"CCC": {-74, 41},
		"DDD": {-73, 40},
		"EEE": {-60, 30},
		"FFF": {-59, 30},
	}
	nodes := make(map[string]Positioned)
	for id, p := range pts {
		nodes[id] = NewFix(id, p)
	}

	n := NewAirwayNetwork(nil)
	add := func(id string, level AirwayLevel, names ...string) {
		var ps []Positioned
		for _, name := range names {
			ps = append(ps, nodes[name])
		}
		if _, err := n.AddAirway(id, level, ps); err != nil {
			t.Fatal(err)
		}
	}
	add("V1", AirwayLevelLow, "AAA", "BBB", "DDD")
	add("J1", AirwayLevelHigh, "AAA", "CCC", "DDD")
	add("Q1", AirwayLevelBoth, "EEE", "FFF")
	return n, nodes
}

func TestAirwayRoute(t *testing.T) {
	n, nodes := testNetwork(t)
	start, end := NewEntityWaypoint(nodes["AAA"]), NewEntityWaypoint(nodes["DDD"])

	tests := []struct {
		level  AirwayLevel
		want   []string
		airway string
	}{
		{level: AirwayLevelLow, want: []string{"BBB", "DDD"}, airway: "V1"},
		{level: AirwayLevelHigh, want: []string{"CCC", "DDD"}, airway: "J1"},
		{level: AirwayLevelBoth, want: []string{"BBB", "DDD"}, airway: "V1"},
	}
	for _, test := range tests {
		// Twice, to exercise the cache.
		for range 2 {
			wps := n.Route(start, end, test.level)
			if got := idents(wps); !slices.Equal(got, test.want) {
				t.Errorf("%s: got %v, expected %v", test.level, got, test.want)
			}
			for _, wp := range wps {
				if aw, ok := wp.Owner().(*Airway); !ok || aw.Ident() != test.airway {
					t.Errorf("%s: %s owned by %v", test.level, wp.Ident(), wp.Owner())
				} else if !test.level.Includes(aw.Level) {
					t.Errorf("%s: route used %s airway %s", test.level, aw.Level, aw.Ident())
				}
			}
		}
	}

	if wps := n.Route(start, NewEntityWaypoint(nodes["EEE"]), AirwayLevelBoth); len(wps) != 0 {
		t.Errorf("disconnected route returned %v", idents(wps))
	}

	// Off-airway start point: the route begins at the closest node.
	off := NewBasicWaypoint("OFF", math.Point2LL{-75.1, 40.05})
	if got := idents(n.Route(off, end, AirwayLevelLow)); !slices.Equal(got, []string{"AAA", "BBB", "DDD"}) {
		t.Errorf("off-airway route: got %v", got)
	}
	far := NewBasicWaypoint("FAR", math.Point2LL{-100, 10})
	if wps := n.Route(far, end, AirwayLevelLow); len(wps) != 0 {
		t.Errorf("route from far away: got %v", idents(wps))
	}
}

func TestAirwayLookup(t *testing.T) {
	n, nodes := testNetwork(t)
	if _, err := n.AddAirway("V1", AirwayLevelLow, []Positioned{nodes["EEE"], nodes["FFF"]}); err != nil {
		t.Fatal(err)
	}

	if aw := n.FindByIdentAndNavaid("V1", nodes["EEE"]); aw == nil || !aw.ContainsNavaid(nodes["FFF"]) {
		t.Errorf("FindByIdentAndNavaid picked the wrong V1")
	}
	if aw := n.FindByIdentAndNavaid("V1", nodes["BBB"]); aw == nil || !aw.ContainsNavaid(nodes["AAA"]) {
		t.Errorf("FindByIdentAndNavaid picked the wrong V1")
	}
	if n.FindByIdent("J1", AirwayLevelLow) != nil {
		t.Errorf("found high airway in low network")
	}
	if !n.ContainsNavaid(nodes["CCC"], AirwayLevelHigh) || n.ContainsNavaid(nodes["CCC"], AirwayLevelLow) {
		t.Errorf("ContainsNavaid ignores level")
	}
	if _, err := n.AddAirway("X1", AirwayLevelLow, []Positioned{nodes["AAA"]}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("single-node airway: expected ErrInvalidArgument, got %v", err)
	}

	j1 := n.FindByIdent("J1", AirwayLevelHigh)
	if j1.FindEnroute("CCC") != nodes["CCC"] || j1.FindEnroute("BBB") != nil {
		t.Errorf("FindEnroute mismatch")
	}

	wps, err := ViaFromTo(nodes["DDD"], j1, nodes["AAA"])
	if err != nil {
		t.Fatal(err)
	}
	if got := idents(wps); !slices.Equal(got, []string{"CCC", "AAA"}) {
		t.Errorf("ViaFromTo: got %v", got)
	}
	if _, err := ViaFromTo(nodes["BBB"], j1, nodes["AAA"]); !errors.Is(err, ErrNotOnAirway) {
		t.Errorf("expected ErrNotOnAirway, got %v", err)
	}

	via, err := NewViaWaypoint(j1, nodes["DDD"])
	if err != nil {
		t.Fatal(err)
	}
	if via.Kind() != WaypointVia || via.Airway() != j1 || via.Position() != nodes["DDD"].Location() {
		t.Errorf("unexpected via waypoint %s", spew.Sdump(via.LogValue()))
	}
	if _, err := NewViaWaypoint(j1, nodes["BBB"]); !errors.Is(err, ErrNotOnAirway) {
		t.Errorf("expected ErrNotOnAirway, got %v", err)
	}
}
