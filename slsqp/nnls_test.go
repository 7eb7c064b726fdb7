// Copyright ©2025 The optkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"testing"
)

func TestNNLS(t *testing.T) {

	const m, n = 3, 2

	// min ‖𝐀𝐱 - 𝐛‖ with 𝐱 ≥ 0: the negative component is clamped out.
	a := []float64{
		1, 0, 0,
		0, 1, 0,
	}
	b := []float64{2, -1, 0}

	x := make([]float64, n)
	w := make([]float64, n)
	z := make([]float64, m)
	index := make([]int, n)

	rnorm, mode := nnls(m, n, a, m, b, x, w, z, index, 0)
	if mode != solved {
		t.Fatal("nnls no solution")
	}
	if !almostEqual(x, []float64{2, 0}, 1e-12) {
		t.Fatal("nnls solution unexpected", x)
	}
	if !almostEqual(rnorm, 1.0, 1e-12) {
		t.Fatal("nnls residual norm error", rnorm)
	}

	// Degenerate dimensions are rejected up front.
	if _, mode := nnls(0, n, a, m, b, x, w, z, index, 0); mode != badDims {
		t.Fatal("nnls dimension check missing")
	}

}
