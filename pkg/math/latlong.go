// pkg/math/latlong.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	"encoding/json"
	"fmt"
	gomath "math"
	"regexp"
	"strconv"
	"strings"
)

const NMPerLatitude = 60

const NauticalMilesToFeet = 6076.12

// Point2LL is a position on the earth: element 0 is longitude and
// element 1 is latitude, both in degrees.
type Point2LL [2]float32

func (p Point2LL) IsZero() bool { return p == Point2LL{} }

// DDString returns the position in decimal degrees, latitude first,
// e.g. (40.632889, -73.771385).
func (p Point2LL) DDString() string {
	return fmt.Sprintf("(%f, %f)", p[1], p[0])
}

// DMSString returns the position as hemisphere, degrees, minutes,
// seconds and milliseconds, e.g. N040.37.58.400,W073.46.17.000.
func (p Point2LL) DMSString() string {
	format := func(v float32) string {
		ms := int64(float64(Abs(v))*3600000 + 0.5)
		return fmt.Sprintf("%03d.%02d.%02d.%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
	}
	ns, ew := "N", "E"
	if p[1] < 0 {
		ns = "S"
	}
	if p[0] < 0 {
		ew = "W"
	}
	return ns + format(p[1]) + "," + ew + format(p[0])
}

// Decimal degrees, latitude first: "40.6328888, -73.771385".
var reDecimalLatLong = regexp.MustCompile(`^(-?[0-9]+\.[0-9]+), *(-?[0-9]+\.[0-9]+)$`)

// parseDMS parses a hemisphere letter followed by four dot-separated
// numbers: degrees, minutes, seconds and a fraction of a second, e.g.
// W073.46.17.000. A fraction with fewer than three digits is read as a
// decimal, so .4 is 400 milliseconds.
func parseDMS(s string, pos, neg byte) (float32, bool) {
	if len(s) < 2 || (s[0] != pos && s[0] != neg) {
		return 0, false
	}
	fields := strings.Split(s[1:], ".")
	if len(fields) != 4 {
		return 0, false
	}
	for len(fields[3]) < 3 {
		fields[3] += "0"
	}

	var v float64
	for i, scale := range [4]float64{1, 60, 3600, 3600000} {
		n, err := strconv.ParseUint(fields[i], 10, 32)
		if err != nil {
			return 0, false
		}
		v += float64(n) / scale
	}
	if s[0] == neg {
		v = -v
	}
	return float32(v), true
}

// ParseLatLong parses a position written either as in DMSString,
// "N40.37.58.400, W073.46.17.000", or in decimal degrees,
// "40.6328888, -73.771385".
func ParseLatLong(b []byte) (Point2LL, error) {
	s := string(b)
	if lat, lon, ok := strings.Cut(s, ","); ok {
		la, okLat := parseDMS(strings.TrimSpace(lat), 'N', 'S')
		lo, okLon := parseDMS(strings.TrimSpace(lon), 'E', 'W')
		if okLat && okLon {
			return Point2LL{lo, la}, nil
		}
	}
	if m := reDecimalLatLong.FindStringSubmatch(s); m != nil {
		lat, err := strconv.ParseFloat(m[1], 32)
		if err != nil {
			return Point2LL{}, err
		}
		lon, err := strconv.ParseFloat(m[2], 32)
		if err != nil {
			return Point2LL{}, err
		}
		return Point2LL{float32(lon), float32(lat)}, nil
	}
	return Point2LL{}, fmt.Errorf("%s: invalid latlong string", s)
}

// NMDistance2LL returns the great-circle distance in nautical miles
// between two points, using the haversine formula.
func NMDistance2LL(a, b Point2LL) float32 {
	lat1, lat2 := toRadians64(a[1]), toRadians64(b[1])
	dlat, dlon := lat2-lat1, toRadians64(b[0])-toRadians64(a[0])

	h := Sqr(gomath.Sin(dlat/2)) + gomath.Cos(lat1)*gomath.Cos(lat2)*Sqr(gomath.Sin(dlon/2))
	return float32(2 * EarthRadiusNM * gomath.Atan2(gomath.Sqrt(h), gomath.Sqrt(1-h)))
}

// LL2NM maps a lat-long point to a flat plane measured in nautical
// miles, where distances near the point of tangency are preserved.
func LL2NM(p Point2LL, nmPerLongitude float32) [2]float32 {
	return [2]float32{p[0] * nmPerLongitude, p[1] * NMPerLatitude}
}

// NM2LL is the inverse of LL2NM.
func NM2LL(p [2]float32, nmPerLongitude float32) Point2LL {
	return Point2LL{p[0] / nmPerLongitude, p[1] / NMPerLatitude}
}

// Point2LLs are written to JSON as DMS strings.
func (p Point2LL) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.DMSString() + `"`), nil
}

func (p *Point2LL) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '[' {
		// [longitude, latitude]
		var pt [2]float32
		if err := json.Unmarshal(b, &pt); err != nil {
			return err
		}
		*p = pt
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	pt, err := ParseLatLong([]byte(s))
	if err != nil {
		return err
	}
	*p = pt
	return nil
}

///////////////////////////////////////////////////////////////////////////
// ICAO flight plan coordinates

// ParseICAOLatLong parses the coordinate forms used in ICAO flight plan
// routes: whole degrees ("51N010W"), or degrees and minutes
// ("5130N00012W"). Seconds ("513045N0001230W") are also accepted.
func ParseICAOLatLong(s string) (Point2LL, bool) {
	ns := strings.IndexAny(s, "NS")
	if ns != 2 && ns != 4 && ns != 6 {
		return Point2LL{}, false
	}
	lonStr := s[ns+1:]
	if len(lonStr) != ns+2 || (lonStr[len(lonStr)-1] != 'E' && lonStr[len(lonStr)-1] != 'W') {
		return Point2LL{}, false
	}

	parse := func(digits string, degDigits int) (float32, bool) {
		for _, ch := range digits {
			if ch < '0' || ch > '9' {
				return 0, false
			}
		}
		d, _ := strconv.Atoi(digits[:degDigits])
		v := float32(d)
		if len(digits) >= degDigits+2 {
			m, _ := strconv.Atoi(digits[degDigits : degDigits+2])
			if m >= 60 {
				return 0, false
			}
			v += float32(m) / 60
		}
		if len(digits) == degDigits+4 {
			sec, _ := strconv.Atoi(digits[degDigits+2:])
			if sec >= 60 {
				return 0, false
			}
			v += float32(sec) / 3600
		}
		return v, true
	}

	lat, ok := parse(s[:ns], 2)
	if !ok || lat > 90 {
		return Point2LL{}, false
	}
	lon, ok := parse(lonStr[:len(lonStr)-1], 3)
	if !ok || lon > 180 {
		return Point2LL{}, false
	}
	if s[ns] == 'S' {
		lat = -lat
	}
	if lonStr[len(lonStr)-1] == 'W' {
		lon = -lon
	}
	return Point2LL{lon, lat}, true
}

// ICAOString returns the point formatted for an ICAO flight plan route.
// Points that fall on whole degrees are written as e.g. "51N010W" and
// otherwise degrees and minutes are used, e.g. "5130N00012W".
func (p Point2LL) ICAOString() string {
	split := func(v float32) (int, int) {
		v = Abs(v)
		totalMin := int(v*60 + 0.5)
		return totalMin / 60, totalMin % 60
	}
	latDeg, latMin := split(p[1])
	lonDeg, lonMin := split(p[0])
	ns, ew := "N", "E"
	if p[1] < 0 {
		ns = "S"
	}
	if p[0] < 0 {
		ew = "W"
	}

	if latMin == 0 && lonMin == 0 {
		return fmt.Sprintf("%02d%s%03d%s", latDeg, ns, lonDeg, ew)
	}
	return fmt.Sprintf("%02d%02d%s%03d%02d%s", latDeg, latMin, ns, lonDeg, lonMin, ew)
}
