// pkg/math/geodesy.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	"fmt"
	gomath "math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

///////////////////////////////////////////////////////////////////////////
// Great-circle geodesy on a spherical earth

// EarthRadiusNM is the mean earth radius; it matches the radius used by
// NMDistance2LL so that DirectMove and InverseCourseAndDistance are
// mutually consistent.
const EarthRadiusNM = 6371000 * 0.000539957

func toRadians64(d float32) float64 { return float64(d) / 180 * gomath.Pi }
func toDegrees64(r float64) float64 { return r * 180 / gomath.Pi }

// InverseCourseAndDistance returns the initial true course in degrees
// and the great-circle distance in nautical miles from a to b.
func InverseCourseAndDistance(a, b Point2LL) (course float32, distance float32) {
	lat1, lon1 := toRadians64(a[1]), toRadians64(a[0])
	lat2, lon2 := toRadians64(b[1]), toRadians64(b[0])
	dlon := lon2 - lon1

	y := gomath.Sin(dlon) * gomath.Cos(lat2)
	x := gomath.Cos(lat1)*gomath.Sin(lat2) - gomath.Sin(lat1)*gomath.Cos(lat2)*gomath.Cos(dlon)
	course = NormalizeHeading(float32(toDegrees64(gomath.Atan2(y, x))))
	distance = NMDistance2LL(a, b)
	return
}

// DirectMove returns the point reached by travelling distance nautical
// miles from origin along the great circle with the given initial true
// course.
func DirectMove(origin Point2LL, course float32, distance float32) Point2LL {
	if distance == 0 {
		return origin
	}

	lat1, lon1 := toRadians64(origin[1]), toRadians64(origin[0])
	theta := toRadians64(course)
	delta := float64(distance) / EarthRadiusNM

	sinLat2 := gomath.Sin(lat1)*gomath.Cos(delta) + gomath.Cos(lat1)*gomath.Sin(delta)*gomath.Cos(theta)
	lat2 := gomath.Asin(gomath.Max(-1, gomath.Min(1, sinLat2)))
	lon2 := lon1 + gomath.Atan2(gomath.Sin(theta)*gomath.Sin(delta)*gomath.Cos(lat1),
		gomath.Cos(delta)-gomath.Sin(lat1)*sinLat2)

	lon := toDegrees64(lon2)
	// Normalize to [-180,180)
	lon = gomath.Mod(lon+540, 360) - 180
	return Point2LL{float32(lon), float32(toDegrees64(lat2))}
}

// NMPerLongitudeAt returns the number of nautical miles spanned by one
// degree of longitude at the given point's latitude.
func NMPerLongitudeAt(p Point2LL) float32 {
	return NMPerLatitude * Cos(Radians(p[1]))
}

// MagneticVariation returns the magnetic declination in degrees (east
// positive) at the given point, elevation and date, using the World
// Magnetic Model.
func MagneticVariation(p Point2LL, elevationFt float32, t time.Time) (float32, error) {
	altM := float64(elevationFt) * 0.3048
	loc := egm96.NewLocationGeodetic(float64(p[1]), float64(p[0]), altM)

	mag, err := wmm.CalculateWMMMagneticField(loc, t)
	if err != nil {
		return 0, fmt.Errorf("%s: magnetic variation: %w", p.DDString(), err)
	}
	return float32(mag.D()), nil
}
