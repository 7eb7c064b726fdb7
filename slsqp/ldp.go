// Copyright ©2025 The optkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"math"
)

// ldp solves the least-distance problem 𝚖𝚒𝚗 ‖ 𝐱 ‖₂ subject to 𝐆𝐱 ≥ 𝐡
// through its non-negative least-squares dual:
//   - 𝐀 = [𝐆 : 𝐡]ᵀ, an (n+1) × m matrix
//   - 𝐛 = [0 ⋯ 0 : 1]ᵀ, an (n+1)-vector
//
// With 𝐮 the NNLS solution and 𝐫 = 𝐀𝐮 - 𝐛 its residual, the solution is
// 𝐱 = 𝐆ᵀ𝐮 / ‖𝐫‖₂ and the multipliers are 𝛌 = 𝐮 / ‖𝐫‖₂. A vanishing
// residual means the inequality system has no feasible point.
//
// g is the m × n constraint matrix with column stride mdg, no rank
// restriction. w needs (n+1)×(m+2)+2m cells and carries the multipliers
// in w[:m] on return; jw needs m cells.
//
// C.L. Lawson, R.J. Hanson, 'Solving least squares problems' Prentice Hall, 1974. (revised 1995 edition)
// Chapters 23, Algorithm 23.27.
func ldp(m, n int, g []float64, mdg int, h, x, w []float64, jw []int, maxIter int) (xnorm float64, mode Status) {

	if n <= 0 {
		return math.NaN(), badDims
	}
	if m <= 0 {
		// No constraints: the minimum-distance point is the origin.
		dzero(x[:n])
		return zero, solved
	}

	if m > mdg || mdg*n > len(g) || m > len(h) || n > len(x) ||
		(n+1)*(m+2)+2*m > len(w) || m > len(jw) {
		panic("bound check error")
	}

	// w splits into the dual matrix 𝐀, the right side 𝐛, an (n+1) scratch
	// 𝐳 and the m-vectors 𝐮 and 𝐰 of the NNLS call.
	iw := 0
	a := w[iw : iw+m*(n+1)]
	iw += len(a)
	b := w[iw : iw+(n+1)]
	iw += len(b)
	z := w[iw : iw+(n+1)]
	iw += len(z)
	u := w[iw : iw+m]
	iw += len(u)
	dv := w[iw : iw+m]

	for j := 0; j < m; j++ {
		// 𝐆ᵀ fills the first n rows of 𝐀, 𝐡ᵀ the last.
		dcopy(n, g[j:], mdg, a[j*(n+1):], 1)
		a[j*(n+1)+n] = h[j]
	}
	dzero(b[:n])
	b[n] = one

	var rnorm float64
	rnorm, mode = nnls(n+1, m, a, n+1, b, u, dv, z, jw, maxIter)

	var fac float64
	if mode == solved {
		if rnorm <= zero { // ‖𝐫‖₂ = 0
			mode = ConsIncompatible
		} else {
			fac = one - ddot(m, h, 1, u, 1) // -𝐫ₙ₊₁ = 1 - 𝐡ᵀ𝐮
			if math.IsNaN(fac) || fac < eps {
				mode = ConsIncompatible
			}
		}
	}
	if mode != solved {
		return math.NaN(), mode
	}

	fac = one / fac
	for j := 0; j < n; j++ { // 𝐱 = 𝐆ᵀ𝐮 / ‖𝐫‖₂
		x[j] = ddot(m, g[mdg*j:], 1, u, 1) * fac
	}
	for j := 0; j < m; j++ { // 𝛌 = 𝐮 / ‖𝐫‖₂
		w[j] = u[j] * fac
	}

	return dnrm2(n, x, 1), mode
}
