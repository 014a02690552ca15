// pkg/math/vector.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

///////////////////////////////////////////////////////////////////////////
// 2D vectors

func Add2f(a [2]float32, b [2]float32) [2]float32 {
	return [2]float32{a[0] + b[0], a[1] + b[1]}
}

func Sub2f(a [2]float32, b [2]float32) [2]float32 {
	return [2]float32{a[0] - b[0], a[1] - b[1]}
}

func Scale2f(a [2]float32, s float32) [2]float32 {
	return [2]float32{s * a[0], s * a[1]}
}

// Rotate2f rotates the vector v clockwise by the given number of degrees,
// matching the convention used for headings.
func Rotate2f(v [2]float32, deg float32) [2]float32 {
	s, c := Sin(Radians(deg)), Cos(Radians(deg))
	return [2]float32{c*v[0] + s*v[1], -s*v[0] + c*v[1]}
}
