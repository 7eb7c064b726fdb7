// Copyright ©2025 The optkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"math"
)

// nnls solves the non-negative least-squares problem 𝚖𝚒𝚗‖ 𝐀𝐱 - 𝐛 ‖₂
// subject to 𝐱 ≥ 0 with the Lawson-Hanson active-set method.
//   - 𝐀 is an m × n column-major matrix, no restriction on 𝚛𝚊𝚗𝚔(𝐀)
//   - 𝐛 ∈ ℝᵐ
//
// Indices split into the active set ℤ (variables held at zero) and the
// passive set ℙ (variables free to go positive). Each round moves the
// index with the most negative gradient from ℤ to ℙ, re-triangularizes
// the passive columns by Householder transformations and solves the
// unconstrained subproblem; variables the solution drives non-positive
// are interpolated back to the boundary and returned to ℤ.
//
// a and b are overwritten with 𝐐𝐀 and 𝐐𝐛. On success x holds the primal
// solution and w the dual vector 𝐰 = 𝐀ᵀ(𝐛 - 𝐀𝐱); the returned norm is
// ‖ 𝐛 - 𝐀𝐱 ‖₂. z is an m-cell scratch and index an n-cell scratch.
//
// C.L. Lawson, R.J. Hanson, 'Solving least squares problems' Prentice Hall, 1974. (revised 1995 edition)
// Chapters 23, Algorithm 23.10.
func nnls(m, n int, a []float64, mda int, b, x, w, z []float64, index []int, maxIter int) (float64, Status) {

	const factor = 0.01

	if m <= 0 || n <= 0 || mda < m ||
		len(a) < mda*n || len(b) < m || len(x) < n || len(w) < n || len(z) < m || len(index) < n {
		return math.NaN(), badDims
	}

	if maxIter <= 0 {
		maxIter = 3 * n
	}

	np := 0 // number of elements in ℙ
	z1 := 0 // start of ℤ within index

	// index = ℙ ∪ ℤ; ℙ = index[:np] selects the passive columns of 𝐀.
	index = index[:n]
	for i := range index {
		index[i] = i
	}

	// Start from 𝐱 = 0 with every index in ℤ.
	dzero(x[:n])

	iter := 0
	term := func() (rnorm float64, mode Status) {
		if np < m {
			rnorm = dnrm2(m-np, b[np:], 1) // ‖ 𝐐ᵀ𝐛₂ ‖₂
		} else {
			dzero(w[:n])
		}
		if iter > maxIter {
			mode = SubExceedMaxIter
		} else {
			mode = solved
		}
		return
	}

	// Outer loop runs until no more active constraints can be set free.
	for {
		if z1 >= n || // all coefficients positive, ℤ = ∅
			np >= m { // or m columns already triangularized
			return term()
		}

		// Dual vector 𝐰 = 𝐀ᵀ(𝐛 - 𝐀𝐱). With 𝐱ⱼ = 0 for j ∈ ℤ and 𝐰ⱼ = 0
		// for j ∈ ℙ this reduces to the active components of 𝐀ᵀ𝐛.
		for _, j := range index[z1:] {
			w[j] = ddot(m-np, a[np+mda*j:], 1, b[np:], 1)
		}

		for {
			// Pick t ∈ ℤ maximizing 𝐰ₜ.
			wmax, izmax := zero, 0
			for i, j := range index[z1:] {
				if w[j] > wmax {
					wmax, izmax = w[j], z1+i
				}
			}

			// 𝐰ⱼ ≤ 0 for all j ∈ ℤ: the Kuhn-Tucker conditions hold.
			if wmax <= zero {
				return term()
			}

			iz := izmax
			j := index[iz]
			aj := a[mda*j : mda*j+m : mda*j+m]

			// Candidate Householder pivot for column j.
			asave := aj[np]
			up := hhGen(np, np+1, m, aj, 1)

			// Reject a column that is nearly dependent on the passive set.
			accept := false
			unorm := dnrm2(np, aj, 1)
			if math.Abs(aj[np])*factor >= unorm*eps {
				// Column j is sufficiently independent: check that the
				// proposed new coefficient would come out positive.
				copy(z[:m], b[:m])
				hhApply(np, np+1, m, aj, 1, up, z, 1, 1, 1)
				accept = z[np]/aj[np] > zero
			}

			if !accept {
				aj[np] = asave
				w[j] = zero
				continue
			}

			// Accept j: update 𝐛, move j from ℤ to ℙ and apply the
			// transformation to the remaining active columns.
			copy(b[:m], z[:m])

			index[iz] = index[z1]
			index[z1] = j
			z1++
			np++

			if z1 < n {
				for _, jj := range index[z1:] {
					hhApply(np-1, np, m, aj, 1, up, a[jj*mda:], 1, mda, 1)
				}
			}
			if np < m {
				dzero(aj[np:m])
			}
			w[j] = zero
			break
		}

		// Inner loop: solve the passive-set subproblem and push any
		// coefficients it drives non-positive back into ℤ.
		for {
			// Back-substitution through the triangularized passive columns.
			for ip, jj := np-1, -1; ip >= 0; ip-- {
				if jj >= 0 {
					daxpy(ip+1, -z[ip+1], a[jj*mda:], 1, z, 1)
				}
				jj = index[ip]
				z[ip] /= a[ip+jj*mda]
			}

			if iter++; iter > maxIter {
				return term()
			}

			// Find t ∈ ℙ minimizing 𝐱ₜ/(𝐱ₜ-𝐳ₜ) over 𝐳ₜ ≤ 0.
			alpha, jj := two, -1
			for ip, l := range index[:np] {
				if z[ip] <= zero {
					t := -x[l] / (z[ip] - x[l])
					if alpha > t {
						alpha, jj = t, ip
					}
				}
			}

			// All coefficients feasible: adopt the solution and loop back.
			if jj < 0 {
				for ip, idx := range index[:np] {
					x[idx] = z[ip]
				}
				break
			}

			// Interpolate 𝐱 = 𝐱 + α(𝐳 - 𝐱) up to the first boundary.
			for ip, l := range index[:np] {
				x[l] += alpha * (z[ip] - x[l])
			}

			// Move the blocking coefficient, and any the interpolation left
			// non-positive by round-off, from ℙ back to ℤ.
			i := index[jj]
			for {
				x[i] = zero
				if jj++; jj < np {
					// Retriangularize by Givens rotations after dropping the
					// column at position jj-1.
					for j := jj; j < np; j++ {
						ii := index[j]
						ci := a[ii*mda:]
						index[j-1] = ii
						var cc, ss float64
						cc, ss, ci[j-1] = givGen(ci[j-1], ci[j])
						ci[j] = zero
						for l := 0; l < n; l++ {
							if l != ii {
								cl := a[l*mda : l*mda+j+1 : l*mda+j+1]
								cl[j-1], cl[j] = givApply(cc, ss, cl[j-1], cl[j])
							}
						}
						b[j-1], b[j] = givApply(cc, ss, b[j-1], b[j])
					}
				}

				np--
				z1--
				index[z1] = i

				again := false
				for p, idx := range index[:np] {
					if x[idx] <= zero {
						i, jj = idx, p
						again = true
						break
					}
				}
				if !again {
					break
				}
			}

			// Solve again with the reduced passive set.
			copy(z[:m], b[:m])
		}
	}
}
