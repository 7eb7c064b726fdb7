// Copyright ©2025 The optkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"math"
	"testing"
)

func TestHouseholder(t *testing.T) {

	v := []float64{3, 4, 12}
	up := hhGen(0, 1, 3, v, 1)

	// The pivot slot now holds s = -σ‖v‖ and up the pivot of 𝐮.
	if !almostEqual(v[0], -13.0, 1e-12) {
		t.Fatal("unexpected pivot", v[0])
	}
	if !almostEqual(up, 16.0, 1e-12) {
		t.Fatal("unexpected up", up)
	}

	// Applying 𝐐 to the original vector must zero the trailing entries.
	c := []float64{3, 4, 12}
	hhApply(0, 1, 3, v, 1, up, c, 1, 1, 1)
	if !almostEqual(c, []float64{-13, 0, 0}, 1e-12) {
		t.Fatal("transform does not annihilate", c)
	}

	// 𝐐 is orthogonal, so norms survive.
	c = []float64{1, -2, 5}
	want := dnrm2(3, c, 1)
	hhApply(0, 1, 3, v, 1, up, c, 1, 1, 1)
	if !almostEqual(dnrm2(3, c, 1), want, 1e-12) {
		t.Fatal("transform does not preserve norm")
	}

	// A degenerate pivot range leaves everything untouched.
	z := []float64{1, 2}
	if up := hhGen(0, 2, 2, z, 1); up != 0 || z[0] != 1 {
		t.Fatal("identity transform expected")
	}

}

func TestGivens(t *testing.T) {

	c, s, sig := givGen(3, 4)
	if !almostEqual(sig, 5.0, 1e-12) {
		t.Fatal("unexpected radius", sig)
	}

	x, y := givApply(c, s, 3, 4)
	if !almostEqual(x, 5.0, 1e-12) || !almostEqual(y, 0.0, 1e-12) {
		t.Fatal("rotation does not annihilate", x, y)
	}

	// Degenerate pair.
	c, s, sig = givGen(0, 0)
	if c != 0 || s != 1 || sig != 0 {
		t.Fatal("unexpected degenerate rotation", c, s, sig)
	}

}

func TestLDLUpdate(t *testing.T) {

	// Identity factors: d = (1, 1), no off-diagonal.
	a := []float64{1, 0, 1}

	// 𝐈 + 𝐳𝐳ᵀ with 𝐳 = (1, 2)ᵀ factors as d = (2, 3), l₁₀ = 1.
	z := []float64{1, 2}
	ldlUpdate(2, a, z, one, nil)
	if !almostEqual(a, []float64{2, 1, 3}, 1e-14) {
		t.Fatal("unexpected update", a)
	}

	// Folding the same term back out restores the identity.
	z = []float64{1, 2}
	w := make([]float64, 2)
	ldlUpdate(2, a, z, -one, w)
	if !almostEqual(a, []float64{1, 0, 1}, 1e-10) {
		t.Fatal("unexpected downdate", a)
	}

}

func TestLineMin(t *testing.T) {

	minimize := func(f func(float64) float64) float64 {
		var w lineMin
		mode := findNoop
		var u float64
		for i := 0; i < 200; i++ {
			u, mode = lineMinStep(mode, &w, f(u), 1e-7)
			if mode == findConv {
				return u
			}
		}
		t.Fatal("line minimizer did not converge")
		return math.NaN()
	}

	// Interior minimum.
	u := minimize(func(t float64) float64 { return (t - 0.3) * (t - 0.3) })
	if !almostEqual(u, 0.3, 1e-4) {
		t.Fatal("unexpected interior minimum", u)
	}

	// Monotone function: the minimum sits at the lower interval end.
	u = minimize(func(t float64) float64 { return t })
	if !almostEqual(u, 0.1, 1e-2) {
		t.Fatal("unexpected boundary minimum", u)
	}

}
