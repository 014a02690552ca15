// pkg/aviation/restriction.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"fmt"
	"log/slog"

	"github.com/mmp/fms/pkg/math"
)

///////////////////////////////////////////////////////////////////////////
// Restriction

type RestrictionKind uint8

const (
	RestrictNone RestrictionKind = iota
	RestrictAt
	RestrictAbove
	RestrictBelow
	RestrictMach
	RestrictComputed
	RestrictComputedMach
	RestrictDelete
)

var restrictionNames = [...]string{
	RestrictNone:         "",
	RestrictAt:           "at",
	RestrictAbove:        "above",
	RestrictBelow:        "below",
	RestrictMach:         "mach",
	RestrictComputed:     "computed",
	RestrictComputedMach: "computed-mach",
	RestrictDelete:       "delete",
}

func (k RestrictionKind) String() string {
	if int(k) < len(restrictionNames) {
		return restrictionNames[k]
	}
	return "invalid"
}

func ParseRestrictionKind(s string) (RestrictionKind, error) {
	for i, name := range restrictionNames {
		if name == s {
			return RestrictionKind(i), nil
		}
	}
	return RestrictNone, fmt.Errorf("%q: %w", s, ErrUnknownRestriction)
}

// Restriction is an altitude or speed constraint. Altitudes are in feet
// and speeds in knots, except for the Mach kinds, where the value is a
// Mach number.
type Restriction struct {
	Kind  RestrictionKind
	Value float32
}

// MakeRestriction returns a restriction of the given kind. A value is
// ignored for RestrictNone and must otherwise be finite.
func MakeRestriction(kind RestrictionKind, value float64) (Restriction, error) {
	if kind > RestrictDelete {
		return Restriction{}, fmt.Errorf("%d: %w", kind, ErrUnknownRestriction)
	}
	if kind == RestrictNone {
		return Restriction{}, nil
	}
	// Check after narrowing: large float64s become float32 infinities.
	v := float32(value)
	if !math.IsFinite(v) {
		return Restriction{}, fmt.Errorf("%s %v: %w", kind, value, ErrInvalidRestriction)
	}
	return Restriction{Kind: kind, Value: v}, nil
}

// IsSet reports whether the restriction constrains anything.
func (r Restriction) IsSet() bool {
	return r.Kind != RestrictNone && r.Kind != RestrictDelete
}

func (r Restriction) IsMach() bool {
	return r.Kind == RestrictMach || r.Kind == RestrictComputedMach
}

func (r Restriction) IsComputed() bool {
	return r.Kind == RestrictComputed || r.Kind == RestrictComputedMach
}

// Satisfies reports whether v meets the restriction; v must be in the
// same units as the restriction's value. "At" restrictions accept values
// within the given tolerance.
func (r Restriction) Satisfies(v, tolerance float32) bool {
	switch r.Kind {
	case RestrictAt, RestrictMach, RestrictComputed, RestrictComputedMach:
		return math.Abs(v-r.Value) <= tolerance
	case RestrictAbove:
		return v >= r.Value-tolerance
	case RestrictBelow:
		return v <= r.Value+tolerance
	default:
		return true
	}
}

// TargetValue returns the value closest to current that satisfies the
// restriction.
func (r Restriction) TargetValue(current float32) float32 {
	switch r.Kind {
	case RestrictAt, RestrictMach, RestrictComputed, RestrictComputedMach:
		return r.Value
	case RestrictAbove:
		return math.Max(current, r.Value)
	case RestrictBelow:
		return math.Min(current, r.Value)
	default:
		return current
	}
}

func (r Restriction) String() string {
	if r.Kind == RestrictNone {
		return ""
	}
	if r.Kind == RestrictDelete {
		return r.Kind.String()
	}
	if r.IsMach() {
		return fmt.Sprintf("%s M%.2f", r.Kind, r.Value)
	}
	return fmt.Sprintf("%s %.0f", r.Kind, r.Value)
}

func (r Restriction) LogValue() slog.Value {
	if r.Kind == RestrictNone {
		return slog.StringValue("none")
	}
	return slog.GroupValue(slog.String("kind", r.Kind.String()), slog.Float64("value", float64(r.Value)))
}
