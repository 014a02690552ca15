// pkg/aviation/errors.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import "errors"

var (
	// Invalid arguments
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidRestriction  = errors.New("restriction value must be a finite number")
	ErrUnknownRestriction  = errors.New("unknown restriction type")
	ErrUnknownRole         = errors.New("unknown waypoint role")
	ErrNotOnAirway         = errors.New("navaid is not on the airway")
	ErrWrongProcedureType  = errors.New("procedure is of the wrong type")
	ErrTransitionMismatch  = errors.New("transition does not belong to procedure")
	ErrUnregisteredEntity  = errors.New("entity cannot be registered")
	ErrRunwayNotApplicable = errors.New("procedure has no route for runway")
	ErrNoSuchIAF           = errors.New("no matching initial approach fix")

	// Illegal state transitions
	ErrProcedureHold     = errors.New("cannot convert a procedure waypoint to a hold")
	ErrDiscontinuityHold = errors.New("cannot convert a discontinuity to a hold")
	ErrRoleOwned         = errors.New("cannot override the role of a waypoint with a parent")
)
