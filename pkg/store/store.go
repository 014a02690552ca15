// pkg/store/store.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package store provides a library of named flight plans kept in a
// SQLite database.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmp/fms/pkg/flightplan"
	"github.com/mmp/fms/pkg/log"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound    = errors.New("no saved route with that name")
	ErrInvalidName = errors.New("invalid route name")
)

// Entry summarizes a saved route.
type Entry struct {
	Name        string
	Route       string // ICAO route string
	Departure   string
	Destination string
	Created     time.Time
	Updated     time.Time
}

type RouteStore struct {
	db *sql.DB
	lg *log.Logger
}

// Open opens or creates the route database at path; ":memory:" gives a
// database that lasts until Close.
func Open(path string, lg *log.Logger) (*RouteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	// SQLite only supports one writer at a time, and each connection to
	// :memory: would otherwise get its own database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %s: %w", path, pragma, err)
		}
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS routes (
			name TEXT PRIMARY KEY,
			route TEXT NOT NULL,
			departure TEXT,
			destination TEXT,
			document TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: creating routes table: %w", path, err)
	}

	lg.Info("opened route store", slog.String("path", path))
	return &RouteStore{db: db, lg: lg}, nil
}

func (s *RouteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}

// Put saves the plan under the given name, replacing any route already
// saved with that name.
func (s *RouteStore) Put(ctx context.Context, name string, fp *flightplan.FlightPlan) error {
	if err := checkName(name); err != nil {
		return err
	}

	var doc bytes.Buffer
	if err := fp.Encode(&doc); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	var dep, dest string
	if ap := fp.Departure(); ap != nil {
		dep = ap.Ident()
	}
	if ap := fp.Destination(); ap != nil {
		dest = ap.Ident()
	}
	now := time.Now().UnixMilli()

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO routes (name, route, departure, destination, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			route = excluded.route,
			departure = excluded.departure,
			destination = excluded.destination,
			document = excluded.document,
			updated_at = excluded.updated_at
	`, name, fp.AsICAORouteString(), dep, dest, doc.String(), now, now); err != nil {
		return fmt.Errorf("%s: saving route: %w", name, err)
	}

	s.lg.Debug("saved route", slog.String("name", name), slog.Any("plan", fp))
	return nil
}

// Get loads the named route, resolving it against env.
func (s *RouteStore) Get(ctx context.Context, name string, env flightplan.Env) (*flightplan.FlightPlan, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM routes WHERE name = ?`, name).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	fp, err := flightplan.Decode(strings.NewReader(doc), env)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return fp, nil
}

// List returns the saved routes ordered by name.
func (s *RouteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, route, departure, destination, created_at, updated_at
		FROM routes ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("listing routes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var dep, dest sql.NullString
		var created, updated int64
		if err := rows.Scan(&e.Name, &e.Route, &dep, &dest, &created, &updated); err != nil {
			return nil, fmt.Errorf("listing routes: %w", err)
		}
		e.Departure, e.Destination = dep.String, dest.String
		e.Created, e.Updated = time.UnixMilli(created), time.UnixMilli(updated)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *RouteStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM routes WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("%s: deleting route: %w", name, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	s.lg.Debug("deleted route", slog.String("name", name))
	return nil
}
