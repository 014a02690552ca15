// pkg/store/store_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package store

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/mmp/fms/pkg/aviation"
	"github.com/mmp/fms/pkg/flightplan"
	"github.com/mmp/fms/pkg/math"
	"github.com/mmp/fms/pkg/navdb"

	"github.com/davecgh/go-spew/spew"
)

func makeTestEnv(t *testing.T) flightplan.Env {
	t.Helper()
	db, err := navdb.FromSnapshot(&navdb.Data{
		Fixes: []navdb.FixRecord{
			{Ident: "MERIT", Location: math.Point2LL{-72.9, 41.4}},
			{Ident: "PUTNM", Location: math.Point2LL{-72.2, 41.9}},
		},
		Navaids: []navdb.NavaidRecord{
			{Ident: "BDR", Type: aviation.PositionedVOR, Location: math.Point2LL{-73.1, 41.35}, Frequency: 108800},
		},
		Airports: []navdb.AirportRecord{
			{Ident: "KJFK", Location: math.Point2LL{-73.78, 40.64}},
			{Ident: "KBOS", Location: math.Point2LL{-71.0, 42.36}},
		},
		Airways: []navdb.AirwayRecord{
			{Ident: "J1", Level: aviation.AirwayLevelHigh, Fixes: []string{"BDR", "MERIT", "PUTNM"}},
		},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return flightplan.Env{Directory: db, Airways: db.Airways}
}

func parse(t *testing.T, env flightplan.Env, route string) *flightplan.FlightPlan {
	t.Helper()
	fp := flightplan.NewFlightPlan(env)
	if err := fp.ParseICAORouteString(route); err != nil {
		t.Fatalf("%s: %v", route, err)
	}
	return fp
}

func idents(fp *flightplan.FlightPlan) []string {
	var ids []string
	for _, l := range fp.Legs() {
		ids = append(ids, l.Ident())
	}
	return ids
}

func TestRouteStore(t *testing.T) {
	ctx := context.Background()
	env := makeTestEnv(t)

	s, err := Open(filepath.Join(t.TempDir(), "routes.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	east := parse(t, env, "KJFK N0450F350 BDR J1 PUTNM KBOS")
	east.Callsign = "JBU12"
	if err := s.Put(ctx, "east", east); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "direct", parse(t, env, "KJFK BDR DCT MERIT")); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "east", env)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(idents(got), idents(east)) || got.Callsign != "JBU12" ||
		got.AsICAORouteString() != east.AsICAORouteString() {
		t.Errorf("loaded plan differs: %s", spew.Sdump(got.LogValue(), east.LogValue()))
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Name != "direct" || entries[1].Name != "east" {
		t.Fatalf("unexpected entries %s", spew.Sdump(entries))
	}
	if e := entries[1]; e.Route != "KJFK N0450F350 BDR J1 PUTNM KBOS" || e.Departure != "KJFK" || e.Destination != "KBOS" {
		t.Errorf("unexpected entry %s", spew.Sdump(e))
	}
	if e := entries[0]; e.Destination != "" || e.Created.IsZero() {
		t.Errorf("unexpected entry %s", spew.Sdump(e))
	}

	// Replacing a route keeps its creation time.
	created := entries[0].Created
	if err := s.Put(ctx, "direct", parse(t, env, "BDR DCT PUTNM")); err != nil {
		t.Fatal(err)
	}
	entries, err = s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if e := entries[0]; e.Route != "BDR DCT PUTNM" || !e.Created.Equal(created) || e.Updated.Before(created) {
		t.Errorf("replaced entry %s", spew.Sdump(e))
	}

	if err := s.Delete(ctx, "direct"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "direct"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Get(ctx, "direct", env); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Put(ctx, " ", east); !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
}

func TestRouteStorePersists(t *testing.T) {
	ctx := context.Background()
	env := makeTestEnv(t)
	path := filepath.Join(t.TempDir(), "routes.db")

	s, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "j1", parse(t, env, "BDR J1 PUTNM")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	fp, err := s.Get(ctx, "j1", env)
	if err != nil {
		t.Fatal(err)
	}
	if ids := idents(fp); !slices.Equal(ids, []string{"BDR", "MERIT", "PUTNM"}) {
		t.Errorf("got legs %v", ids)
	}

	// Plans need a directory to be resolved.
	if _, err := s.Get(ctx, "j1", flightplan.Env{}); !errors.Is(err, flightplan.ErrNoDirectory) {
		t.Errorf("expected ErrNoDirectory, got %v", err)
	}
}
