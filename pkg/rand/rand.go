// pkg/rand/rand.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package rand provides a small seedable PCG generator; randomized tests
// seed it so that failures can be reproduced.
package rand

import (
	"github.com/MichaelTJones/pcg"
)

// Stream selector passed to pcg.
const pcgStream = 0xda3e39cb94b95bdb

type Rand struct {
	pcg *pcg.PCG32
}

func New() Rand {
	return Rand{pcg: pcg.NewPCG32()}
}

func (r *Rand) Seed(s int64) {
	r.pcg.Seed(uint64(s), pcgStream)
}

func (r *Rand) Uint32() uint32 { return r.pcg.Random() }

// Intn returns a value in [0,n); n must be positive.
func (r *Rand) Intn(n int) int {
	return int(r.pcg.Bounded(uint32(n)))
}

// Float32 returns a value in [0,1].
func (r *Rand) Float32() float32 {
	return float32(r.Uint32()) / float32(^uint32(0))
}

// Shuffle permutes s in place (Fisher-Yates).
func Shuffle[T any](r *Rand, s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}
