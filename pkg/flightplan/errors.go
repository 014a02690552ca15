// pkg/flightplan/errors.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import "errors"

var (
	ErrInvalidIndex        = errors.New("invalid leg index")
	ErrInvalidRunway       = errors.New("runway does not belong to an airport")
	ErrAirportMismatch     = errors.New("procedure is for a different airport")
	ErrInvalidCategory     = errors.New("invalid ICAO aircraft category")
	ErrInvalidCruise       = errors.New("invalid cruise altitude or speed")
	ErrNoCruiseSpeed       = errors.New("no cruise speed")
	ErrNotHold             = errors.New("leg is not a hold")
	ErrNoProcedure         = errors.New("no procedure assigned")
	ErrInvalidRouteString  = errors.New("invalid ICAO route")
	ErrNoDirectory         = errors.New("no navigation directory")
	ErrUnresolvedWaypoint  = errors.New("unable to resolve waypoint")
	ErrUnsupportedVersion  = errors.New("unsupported flight plan version")
	ErrMalformedFlightPlan = errors.New("malformed flight plan")
)
