// Copyright ©2025 The optkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import "math"

// lsq solves the quadratic subproblem of one SQP iteration,
//
// minimize ‖ 𝐃¹ᐟ²𝐋ᵀ𝐱 + 𝐃⁻¹ᐟ²𝐋⁻¹𝐠 ‖₂ subject to
//   - 𝐀ⱼ𝐱 + 𝒄ⱼ = 0  (j = 1 ··· mₑ)
//   - 𝐀ⱼ𝐱 + 𝒄ⱼ ≥ 0  (j = mₑ+1 ··· m)
//   - 𝒍ᵢ ≤ 𝐱ᵢ ≤ 𝒖ᵢ  (i = 1 ··· n)
//
// where l packs the 𝐋𝐃𝐋ᵀ factors of the Hessian approximation, g is the
// objective gradient, a the column-major constraint normals and b the
// constraint values 𝒄(𝐱ᵏ). It rewrites the subproblem as an lsei
// instance with 𝐄 = 𝐃¹ᐟ²𝐋ᵀ, 𝐟 = -𝐃⁻¹ᐟ²𝐋⁻¹𝐠, the equality rows as 𝐂𝐱 = 𝐝
// and the inequality rows plus the finite bound rows ±𝐈𝐱 ≥ ±(𝒍,-𝒖)
// as 𝐆𝐱 ≥ 𝐡. Bounds at or beyond infBnd in magnitude contribute no row.
//
// nl distinguishes the plain n-variable subproblem (nl = ½n(n+1)+1)
// from the augmented (n+1)-variable relaxation, whose extra diagonal
// element is the penalty stored in l[nl-1].
//
// The direction comes back in x and the multipliers in y: general
// constraints first, then lower and upper bound rows, with NaN in the
// bound slots of the plain subproblem.
func lsq(m, meq, n, nl int,
	l, g, a, b, xl, xu []float64,
	x, y []float64,
	w []float64, jw []int,
	maxIter int, infBnd float64) (float64, Status) {

	mineq := m - meq
	m1 := mineq + n + n
	la := max(m, 1)

	// The augmented relaxation is detected by the factor length.
	var n1, n2, n3 int
	n1 = n + 1
	if (n+1)*n/2+1 == nl {
		n2, n3 = 0, n
	} else {
		n2, n3 = 1, n-1
	}

	e0, f0 := 0, n*n                // start of E and f
	c0, d0 := f0+n, (f0+n)+meq*n    // start of C and d
	g0, h0 := d0+meq, (d0+meq)+m1*n // start of G and h
	w0 := h0 + m1                   // start of the lsei workspace

	// Recover 𝐄 and 𝐟 from the packed factors.
	i2, i3, i4 := 0, 0, 0
	for j := 0; j < n3; j++ {
		i := n - j
		diag := math.Sqrt(l[i2]) // 𝐃¹ᐟ²
		dzero(w[i3 : i3+i])
		dcopy(i-n2, l[i2:], 1, w[i3:], n) // 𝐄ⱼ = 𝐃¹ᐟ²𝐋ⱼᵀ
		dscal(i-n2, diag, w[i3:], n)
		w[i3] = diag
		// 𝐋ⱼⱼ = 1, so (𝐋⁻¹𝐠)ⱼ = 𝐠ⱼ - ∑ᵢ𝐋ⱼᵢ𝐲ᵢ
		w[f0+j] = (g[j] - ddot(j, w[i4:], 1, w[f0:], 1)) / diag
		i2 += i - n2
		i3 += n1
		i4 += n
	}
	if n2 == 1 {
		w[i3] = l[nl-1] // penalty diagonal of the relaxation
		dzero(w[i4 : i4+n3])
		w[f0+n3] = zero
	}
	dscal(n, -one, w[f0:f0+n], 1) // 𝐟 = -𝐃⁻¹ᐟ²𝐋⁻¹𝐠

	if meq > 0 {
		// Equality rows: 𝐂 from the upper part of 𝐀, 𝐝 = -𝒄.
		for i := 0; i < meq; i++ {
			dcopy(n, a[i:], la, w[c0+i:], meq)
		}
		dcopy(meq, b, 1, w[d0:], 1)
		dscal(meq, -one, w[d0:], 1)
	}

	if mineq > 0 {
		// Inequality rows: 𝐆 from the lower part of 𝐀, 𝐡 = -𝒄.
		for i := 0; i < mineq; i++ {
			dcopy(n, a[meq+i:], la, w[g0+i:], m1)
		}
		dcopy(mineq, b[meq:], 1, w[h0:], 1)
		dscal(mineq, -one, w[h0:], 1)
	}

	// Augment 𝐆 with ±𝐈 rows for the finite bounds.
	bnd := mineq
	xl, xu = xl[:n], xu[:n]
	for i, lb := range xl {
		if !math.IsNaN(lb) && lb > -infBnd {
			ip, il := g0+bnd, h0+bnd
			w[il] = lb
			w[ip] = zero
			dcopy(n, w[ip:], 0, w[ip:], m1)
			w[ip+m1*i] = one
			bnd++
		}
	}
	for i, ub := range xu {
		if !math.IsNaN(ub) && ub < infBnd {
			ip, il := g0+bnd, h0+bnd
			w[il] = -ub
			w[ip] = zero
			dcopy(n, w[ip:], 0, w[ip:], m1)
			w[ip+m1*i] = -one
			bnd++
		}
	}

	missing := (n + n) - (bnd - mineq)
	norm, mode := lsei(w[c0:d0], w[d0:g0], w[e0:f0], w[f0:c0], w[g0:h0], w[h0:w0],
		max(1, meq), meq, n, n, m1, m1-missing, n, x, w[w0:], jw, maxIter)

	if mode == solved {
		// Restore the multipliers and clamp the direction to the bounds.
		dcopy(m, w[w0:], 1, y, 1)
		if n3 > 0 {
			// The bound multiplier slots are meaningless here.
			y[m] = math.NaN()
			dcopy(n3+n3, y[m:], 0, y[m:], 1)
		}
		for i, lb := range xl {
			if !math.IsNaN(lb) && lb > -infBnd && x[i] < lb {
				x[i] = lb
			}
		}
		for i, ub := range xu {
			if !math.IsNaN(ub) && ub < infBnd && x[i] > ub {
				x[i] = ub
			}
		}
	}
	return norm, mode
}
