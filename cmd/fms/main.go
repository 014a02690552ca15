// cmd/fms/main.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// fms loads FAA CIFP navigation data and builds, inspects and saves
// flight plans from the command line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/mmp/fms/pkg/aviation"
	"github.com/mmp/fms/pkg/flightplan"
	"github.com/mmp/fms/pkg/log"
	"github.com/mmp/fms/pkg/math"
	"github.com/mmp/fms/pkg/navdb"
	"github.com/mmp/fms/pkg/store"
	"github.com/mmp/fms/pkg/util"

	"github.com/davecgh/go-spew/spew"
	"github.com/goforj/godump"
)

var (
	configFile    = flag.String("config", "", "TOML configuration file (default: config.toml in the user config directory)")
	cifpFiles     = flag.String("cifp", "", "comma-separated CIFP files to load (overrides the configuration)")
	noCache       = flag.Bool("nocache", false, "don't use or update the parsed-CIFP cache")
	logLevel      = flag.String("loglevel", "", "logging level: debug, info, warn, error")
	logDir        = flag.String("logdir", "", "log file directory")
	route         = flag.String("route", "", "ICAO route string, e.g. \"KJFK/31L N0450F350 DEEZZ5 CANDR J60 PSB KPIT\"")
	approach      = flag.String("approach", "", "approach (or APPROACH.TRANSITION) to append to the route")
	inFile        = flag.String("in", "", "read a flight plan saved with -out")
	outFile       = flag.String("out", "", "write the flight plan to this file (.zst to compress)")
	storePath     = flag.String("store", "", "route store database (overrides the configuration)")
	saveName      = flag.String("save", "", "save the flight plan in the route store under this name")
	loadName      = flag.String("load", "", "load the named flight plan from the route store")
	deleteName    = flag.String("delete", "", "delete the named flight plan from the route store")
	listRoutes    = flag.Bool("list", false, "list the routes in the route store")
	airways       = flag.String("airways", "", "find the shortest airway route between two fixes, e.g. \"BDR,PSB\"")
	showRoutes    = flag.String("routes", "", "list the SIDs, STARs and approaches at the given airport")
	dump          = flag.Bool("dump", false, "dump the flight plan's legs in detail")
	dumpDirectory = flag.String("dump-directory", "", "dump the directory entries with the given identifier")
)

func main() {
	flag.Parse()

	config, err := LoadConfig(*configFile, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyFlags(&config)

	lg := log.New(config.Logging.Level, config.Logging.Dir)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, config, lg); err != nil {
		lg.Errorf("%v", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func applyFlags(config *Config) {
	if *cifpFiles != "" {
		config.CIFP = strings.Split(*cifpFiles, ",")
	}
	if *noCache {
		config.NoCache = true
	}
	if *logLevel != "" {
		config.Logging.Level = *logLevel
	}
	if *logDir != "" {
		config.Logging.Dir = *logDir
	}
	if *storePath != "" {
		config.Store = *storePath
	}
}

func run(ctx context.Context, config Config, lg *log.Logger) error {
	// The route store doesn't need navigation data for these.
	if *listRoutes || *deleteName != "" {
		rs, err := store.Open(config.Store, lg)
		if err != nil {
			return err
		}
		defer rs.Close()
		if *deleteName != "" {
			if err := rs.Delete(ctx, *deleteName); err != nil {
				return err
			}
		}
		if *listRoutes {
			return printRouteList(ctx, rs)
		}
		return nil
	}

	db, err := loadDatabase(ctx, config, lg)
	if err != nil {
		return err
	}
	env := flightplan.Env{
		Directory:    db,
		Airways:      db.Airways,
		Logger:       lg,
		HoldSpeedKts: config.FlightPlan.HoldSpeedKts,
	}

	if *dumpDirectory != "" {
		cs := spew.ConfigState{Indent: "  ", MaxDepth: 3, DisablePointerAddresses: true}
		for _, e := range db.FindByIdent(strings.ToUpper(*dumpDirectory), aviation.TypeFilter{}) {
			cs.Dump(e)
		}
	}
	if *showRoutes != "" {
		if err := printProcedures(db, strings.ToUpper(*showRoutes)); err != nil {
			return err
		}
	}
	if *airways != "" {
		level, _ := aviation.ParseAirwayLevel(config.FlightPlan.AirwayLevel)
		if err := printAirwayRoute(db, *airways, level); err != nil {
			return err
		}
	}

	fp, err := buildFlightPlan(ctx, config, env, lg)
	if err != nil || fp == nil {
		return err
	}
	defer fp.Release()

	printFlightPlan(fp)
	if *dump {
		godump.Dump(fp.Header)
		for _, l := range fp.Legs() {
			godump.Dump(l.Waypoint())
		}
	}

	if *outFile != "" {
		if err := fp.Save(*outFile); err != nil {
			return err
		}
	}
	if *saveName != "" {
		rs, err := store.Open(config.Store, lg)
		if err != nil {
			return err
		}
		defer rs.Close()
		return rs.Put(ctx, *saveName, fp)
	}
	return nil
}

const maxCacheBytes = 512 << 20

func loadDatabase(ctx context.Context, config Config, lg *log.Logger) (*navdb.Database, error) {
	if len(config.CIFP) == 0 {
		return nil, errors.New("no CIFP files given; use -cifp or set cifp in the configuration file")
	}

	opts := navdb.LoadOptions{Strict: config.Strict, Logger: lg}
	if !config.NoCache {
		cache := util.ObjectCache{Dir: config.CacheDir}
		if cache.Dir == "" {
			var err error
			if cache, err = util.DefaultObjectCache(); err != nil {
				lg.Warnf("no cache directory: %v", err)
			}
		}
		if cache.Dir != "" {
			opts.Cache = &cache
		}
	}

	db, err := navdb.LoadFiles(ctx, opts, config.CIFP...)
	if err == nil && opts.Cache != nil {
		// Parses of superseded CIFP cycles accumulate otherwise.
		if cerr := opts.Cache.Cull(maxCacheBytes); cerr != nil {
			lg.Warnf("culling cache: %v", cerr)
		}
	}
	return db, err
}

// buildFlightPlan returns the plan given by -route, -in or -load, if
// any.
func buildFlightPlan(ctx context.Context, config Config, env flightplan.Env, lg *log.Logger) (*flightplan.FlightPlan, error) {
	var fp *flightplan.FlightPlan
	switch {
	case *route != "":
		fp = flightplan.NewFlightPlan(env)
		if err := fp.ParseICAORouteString(*route); err != nil {
			return nil, err
		}

	case *inFile != "":
		var err error
		if fp, err = flightplan.Load(*inFile, env); err != nil {
			return nil, err
		}

	case *loadName != "":
		rs, err := store.Open(config.Store, lg)
		if err != nil {
			return nil, err
		}
		defer rs.Close()
		if fp, err = rs.Get(ctx, *loadName, env); err != nil {
			return nil, err
		}

	default:
		if *approach != "" || *saveName != "" || *outFile != "" || *dump {
			return nil, errors.New("no flight plan given; use -route, -in or -load")
		}
		return nil, nil
	}

	if *approach != "" {
		if err := setApproach(fp, *approach); err != nil {
			fp.Release()
			return nil, err
		}
	}
	if fp.CruiseTAS() > 0 {
		if err := fp.ComputeDuration(); err != nil {
			lg.Warnf("computing duration: %v", err)
		}
	}
	return fp, nil
}

func setApproach(fp *flightplan.FlightPlan, name string) error {
	dest := fp.Destination()
	if dest == nil {
		return fmt.Errorf("%s: flight plan has no destination", name)
	}
	ident, trans := aviation.ParseProcedureName(strings.ToUpper(name))
	p := dest.Approach(ident)
	if p == nil {
		return fmt.Errorf("%s: no approach %q", dest.Ident(), ident)
	}
	if trans != "" {
		if p = p.Transition(trans); p == nil {
			return fmt.Errorf("%s: no transition %q", ident, trans)
		}
	}
	if err := fp.SetApproach(p); err != nil {
		return err
	}
	return fp.ApplyApproach()
}

func printFlightPlan(fp *flightplan.FlightPlan) {
	fmt.Println(fp.AsICAORouteString())
	if fp.EstimatedDurationMinutes > 0 {
		fmt.Printf("%.1f nm, %d minutes at %.0f kts\n", fp.TotalDistance(), fp.EstimatedDurationMinutes, fp.CruiseTAS())
	} else {
		fmt.Printf("%.1f nm\n", fp.TotalDistance())
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tIDENT\tKIND\tROLE\tCOURSE\tDIST\tTOTAL\tALT\tSPEED\tOWNER")
	for i, l := range fp.Legs() {
		wp := l.Waypoint()
		ident := wp.Ident()
		if n := l.HoldCount(); n > 0 {
			ident = fmt.Sprintf("%s (hold x%d)", ident, n)
		}
		owner := ""
		if o := wp.Owner(); o != nil {
			owner = fmt.Sprint(o)
		} else if aw := wp.Airway(); aw != nil {
			owner = aw.Ident()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%03.0f\t%.1f\t%.1f\t%s\t%s\t%s\n", i, ident, wp.Kind(), wp.Role(),
			l.CourseDeg(), l.DistanceNM(), l.DistanceAlongRoute(), l.AltitudeRestriction(), l.SpeedRestriction(), owner)
	}
	tw.Flush()
}

func printRouteList(ctx context.Context, rs *store.RouteStore) error {
	entries, err := rs.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFROM\tTO\tUPDATED\tROUTE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Name, e.Departure, e.Destination,
			e.Updated.Format("2006-01-02 15:04"), e.Route)
	}
	return tw.Flush()
}

func printProcedures(db *navdb.Database, icao string) error {
	ap := db.Airport(icao)
	if ap == nil {
		return fmt.Errorf("%s: unknown airport", icao)
	}
	for _, group := range []struct {
		name  string
		procs map[string]*aviation.Procedure
	}{{"SIDs", ap.SIDs}, {"STARs", ap.STARs}, {"Approaches", ap.Approaches}} {
		fmt.Printf("%s %s:\n", ap.Ident(), group.name)
		for _, ident := range util.SortedMapKeys(group.procs) {
			p := group.procs[ident]
			fmt.Printf("  %-8s", ident)
			if rwys := p.Runways(); len(rwys) > 0 {
				fmt.Printf(" runways: %s", strings.Join(rwys, ","))
			}
			if trans := p.TransitionIdents(); len(trans) > 0 {
				fmt.Printf(" transitions: %s", strings.Join(trans, ","))
			}
			fmt.Println()
		}
	}
	return nil
}

func printAirwayRoute(db *navdb.Database, fixes string, level aviation.AirwayLevel) error {
	from, to, ok := strings.Cut(strings.ToUpper(fixes), ",")
	if !ok {
		return fmt.Errorf("%s: expected FROM,TO", fixes)
	}
	start, ok := aviation.FindNearestByIdent(db, from, math.Point2LL{}, aviation.RouteFixTypes)
	if !ok {
		return fmt.Errorf("%s: unknown fix", from)
	}
	end, ok := aviation.FindNearestByIdent(db, to, start.Location(), aviation.RouteFixTypes)
	if !ok {
		return fmt.Errorf("%s: unknown fix", to)
	}

	wps := db.Airways.Route(aviation.NewEntityWaypoint(start), aviation.NewEntityWaypoint(end), level)
	if len(wps) == 0 {
		return fmt.Errorf("no %s airway route from %s to %s", level, from, to)
	}
	parts := []string{start.Ident()}
	var prev *aviation.Airway
	for _, wp := range wps {
		aw, _ := wp.Owner().(*aviation.Airway)
		if aw != nil && aw == prev {
			parts[len(parts)-1] = wp.Ident()
			continue
		}
		if aw != nil {
			parts = append(parts, aw.Ident(), wp.Ident())
		} else {
			parts = append(parts, "DCT", wp.Ident())
		}
		prev = aw
	}
	fmt.Println(strings.Join(parts, " "))
	return nil
}
