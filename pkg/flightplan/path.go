// pkg/flightplan/path.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import (
	"fmt"

	"github.com/mmp/fms/pkg/aviation"
	"github.com/mmp/fms/pkg/math"
)

// Number of segments used to approximate each 180 degree turn of a hold.
const holdTurnSegments = 12

// routePath is the polyline flown along a flight plan. It is computed
// lazily and discarded whenever the plan changes.
type routePath struct {
	points []math.Point2LL
	// Cumulative distance along the route at each point. The path jumps
	// across discontinuities without adding distance.
	along []float32
	legs  []legGeometry
}

type legGeometry struct {
	// Indices into points: where the leg's inbound path starts, where it
	// reaches the waypoint, and where any holding at the waypoint ends.
	start, arrive, end int

	length float32 // inbound path length
	course float32 // inbound course at the waypoint
	along  float32 // distance along the route at the waypoint
}

func (fp *FlightPlan) path() *routePath {
	if fp.pathCache == nil {
		fp.pathCache = fp.computePath()
	}
	return fp.pathCache
}

func (rp *routePath) add(p math.Point2LL, dist float32) {
	d := dist
	if n := len(rp.along); n > 0 {
		d += rp.along[n-1]
	}
	rp.points = append(rp.points, p)
	rp.along = append(rp.along, d)
}

func (rp *routePath) last() int { return len(rp.points) - 1 }

func (rp *routePath) length() float32 {
	if len(rp.along) == 0 {
		return 0
	}
	return rp.along[len(rp.along)-1]
}

func (fp *FlightPlan) computePath() *routePath {
	rp := &routePath{legs: make([]legGeometry, len(fp.legs))}

	var prevSource aviation.Positioned
	broken := true // no point to fly from
	var course float32

	for i, l := range fp.legs {
		wp := l.wp
		g := &rp.legs[i]

		if wp.IsDiscontinuity() {
			*g = legGeometry{start: -1, arrive: -1, end: -1, course: course, along: rp.length()}
			broken, prevSource = true, nil
			continue
		}

		pos := wp.Position()
		if broken || len(rp.points) == 0 {
			rp.add(pos, 0)
			g.start = rp.last()
		} else {
			g.start = rp.last()
			var inbound []math.Point2LL
			if aw := wp.Airway(); aw != nil && wp.Kind() == aviation.WaypointVia && prevSource != nil {
				if wps, ok := aw.WaypointsBetween(prevSource, wp.Source()); ok {
					for _, w := range wps[:len(wps)-1] {
						inbound = append(inbound, w.Position())
					}
				}
			}
			inbound = append(inbound, pos)

			for _, p := range inbound {
				from := rp.points[rp.last()]
				c, d := math.InverseCourseAndDistance(from, p)
				if d > 0 {
					course = c
				}
				rp.add(p, d)
			}
		}
		g.arrive = rp.last()
		g.along = rp.along[g.arrive]
		g.length = g.along - rp.along[g.start]
		g.course = course

		if h, ok := wp.HoldParams(); ok && l.holdCount > 0 {
			circuit := fp.holdCircuit(l, h)
			for range l.holdCount {
				for _, p := range circuit {
					rp.add(p, math.NMDistance2LL(rp.points[rp.last()], p))
				}
			}
			// Leaving the hold, the aircraft is on the inbound course.
			course = h.InboundRadial
		}
		g.end = rp.last()

		broken, prevSource = false, wp.Source()
	}

	return rp
}

func (fp *FlightPlan) holdSpeed(l *Leg) float32 {
	if fp.env.HoldSpeedKts > 0 {
		return fp.env.HoldSpeedKts
	}
	alt := float32(fp.CruiseAltitude())
	if r := l.AltitudeRestriction(); r.IsSet() && !r.IsMach() {
		alt = r.Value
	}
	return aviation.HoldingSpeed(alt)
}

// holdTurnRadius returns the radius in nm of a standard rate turn at the
// given speed.
func holdTurnRadius(speedKts float32) float32 {
	return speedKts / (60 * math.Pi())
}

// holdCircuit returns the points of a single circuit of the leg's hold,
// ending back at the holding fix.
func (fp *FlightPlan) holdCircuit(l *Leg, h aviation.HoldParams) []math.Point2LL {
	fix := l.wp.Position()
	nmPerLon := math.NMPerLongitudeAt(fix)
	f := math.LL2NM(fix, nmPerLon)

	speed := fp.holdSpeed(l)
	r := holdTurnRadius(speed)
	legLength := h.LegLengthNM(speed)

	inbound := [2]float32{math.Sin(math.Radians(h.InboundRadial)), math.Cos(math.Radians(h.InboundRadial))}
	right := math.Rotate2f(inbound, 90)
	dir := float32(1)
	if h.LeftHanded {
		right = math.Scale2f(right, -1)
		dir = -1
	}

	var pts [][2]float32
	turn := func(center, start [2]float32) {
		v := math.Sub2f(start, center)
		for i := 1; i <= holdTurnSegments; i++ {
			deg := dir * 180 * float32(i) / holdTurnSegments
			pts = append(pts, math.Add2f(center, math.Rotate2f(v, deg)))
		}
	}

	// Turn outbound, fly the outbound leg, turn inbound, and fly back to
	// the fix.
	turn(math.Add2f(f, math.Scale2f(right, r)), f)
	outboundEnd := math.Sub2f(pts[len(pts)-1], math.Scale2f(inbound, legLength))
	pts = append(pts, outboundEnd)
	turn(math.Sub2f(math.Add2f(f, math.Scale2f(right, r)), math.Scale2f(inbound, legLength)), outboundEnd)
	pts = append(pts, f)

	circuit := make([]math.Point2LL, len(pts))
	for i, p := range pts {
		circuit[i] = math.NM2LL(p, nmPerLon)
	}
	// Avoid accumulating conversion error at the fix itself.
	circuit[len(circuit)-1] = fix
	return circuit
}

func (rp *routePath) legPath(i int) []math.Point2LL {
	g := rp.legs[i]
	if g.arrive < 0 {
		return nil
	}
	return append([]math.Point2LL(nil), rp.points[g.start:g.end+1]...)
}

// DistanceAlongRoute returns the distance flown from the first waypoint
// to the waypoint of the leg at the given index. Holds at earlier
// waypoints are included; a hold at the leg's own waypoint is not.
func (fp *FlightPlan) DistanceAlongRoute(index int) (float32, error) {
	if index < 0 || index >= len(fp.legs) {
		return 0, fmt.Errorf("%d: %w", index, ErrInvalidIndex)
	}
	return fp.path().legs[index].along, nil
}

// TotalDistance returns the length of the entire route.
func (fp *FlightPlan) TotalDistance() float32 {
	return fp.path().length()
}

// PointAlongRoute returns the point offset nm along the route from the
// waypoint of the leg at the given index. Negative offsets move back
// along the route; offsets beyond either end of the route extrapolate
// along the first or last course.
func (fp *FlightPlan) PointAlongRoute(index int, offset float32) (math.Point2LL, error) {
	if index < 0 || index >= len(fp.legs) {
		return math.Point2LL{}, fmt.Errorf("%d: %w", index, ErrInvalidIndex)
	}
	rp := fp.path()
	if len(rp.points) == 0 {
		return math.Point2LL{}, fmt.Errorf("%d: no route: %w", index, ErrInvalidIndex)
	}

	d := rp.legs[index].along + offset
	if d <= 0 {
		if len(rp.points) == 1 || d == 0 {
			return rp.points[0], nil
		}
		c, _ := math.InverseCourseAndDistance(rp.points[1], rp.points[0])
		return math.DirectMove(rp.points[0], c, -d), nil
	}

	for k := 0; k+1 < len(rp.points); k++ {
		if rp.along[k+1] > rp.along[k] && d <= rp.along[k+1] && d >= rp.along[k] {
			c, _ := math.InverseCourseAndDistance(rp.points[k], rp.points[k+1])
			return math.DirectMove(rp.points[k], c, d-rp.along[k]), nil
		}
	}

	n := len(rp.points) - 1
	if n == 0 {
		return rp.points[0], nil
	}
	c, _ := math.InverseCourseAndDistance(rp.points[n-1], rp.points[n])
	return math.DirectMove(rp.points[n], c, d-rp.along[n]), nil
}
