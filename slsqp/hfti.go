// Copyright ©2025 The optkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import "math"

// hfti solves the possibly rank-deficient least-squares problem 𝐀𝐗 ≅ 𝐁
// by Householder forward triangulation with column interchanges.
//   - 𝐀 is an m × n matrix with 𝚙𝚜𝚎𝚞𝚍𝚘-𝚛𝚊𝚗𝚔(𝐀) = k
//   - 𝐁 is an m × nb matrix, one right-hand side per column
//
// The augmented matrix [𝐀:𝐁] is reduced to [𝐐𝐀𝐏:𝐐𝐁] choosing at each
// step the remaining column with the greatest residual sum of squares.
// The pseudo-rank k counts the diagonal elements of 𝐐𝐀𝐏 exceeding tau
// in magnitude; the trailing block is discarded, the leading k rows are
// retriangularized from the right and the triangular system is solved.
//
// a is overwritten with the factorization, b with the n × nb solution 𝐗.
// rnorm receives the residual norm per right-hand side. h and g are
// scratch for the column norms and pivot scalars, ip records the
// interchanges. The pseudo-rank is returned.
//
// C.L. Lawson, R.J. Hanson, 'Solving least squares problems' Prentice Hall, 1974. (revised 1995 edition)
// Chapters 14, Algorithm 14.9.
func hfti(a []float64, mda, m, n int, b []float64, mdb, nb int,
	tau float64, rnorm, h, g []float64, ip []int) int {

	const factor = 0.001

	diag := min(m, n)
	if diag <= 0 {
		return 0
	}

	if n > len(h) || diag > len(h) || diag > len(ip) {
		panic("bound check error")
	}

	hmax := zero
	for j := 0; j < diag; j++ {
		// Downdate the squared column lengths and find the pivot column.
		lmax := j
		if j > 0 {
			v := math.NaN()
			for l := j; l < n; l++ {
				t := a[(j-1)+mda*l]
				if h[l] -= t * t; !(h[l] <= v) {
					lmax, v = l, h[l]
				}
			}
		}
		// Recompute from scratch when cancellation ate the accuracy.
		if j == 0 || factor*h[lmax] < hmax*eps {
			v := math.NaN()
			for l := j; l < n; l++ {
				sm := zero
				for _, t := range a[j+mda*l : m+mda*l] {
					sm += t * t
				}
				if h[l] = sm; !(h[l] <= v) {
					lmax, v = l, h[l]
				}
			}
			hmax = h[lmax]
		}

		// Column interchange 𝐏ⱼ = (j, lmax).
		ip[j] = lmax
		if ip[j] != j {
			c1, c2 := a[mda*j:mda*j+m], a[mda*lmax:mda*lmax+m]
			for i := 0; i < m; i++ {
				c1[i], c2[i] = c2[i], c1[i]
			}
			h[lmax] = h[j]
		}

		// j-th transformation, applied to 𝐀 and 𝐁.
		i := min(j+1, n-1)
		h[j] = hhGen(j, j+1, m, a[mda*j:], 1)
		hhApply(j, j+1, m, a[mda*j:], 1, h[j], a[mda*i:], 1, mda, n-j-1)
		hhApply(j, j+1, m, a[mda*j:], 1, h[j], b, 1, mdb, nb)
	}

	// Pseudo-rank: leading diagonal elements with |𝐑ⱼⱼ| > tau.
	k := diag
	for j := 0; j < diag; j++ {
		if math.Abs(a[j+mda*j]) <= tau {
			k = j
			break
		}
	}

	if k > len(a) || k > len(b) || k > len(g) || nb > len(rnorm) {
		panic("bound check error")
	}

	// Residual norms ‖𝐠₂‖ of the discarded rows.
	for jb := 0; jb < nb; jb++ {
		sm := zero
		if k < m {
			for _, t := range b[mdb*jb+k : mdb*jb+m] {
				sm += t * t
			}
		}
		rnorm[jb] = math.Sqrt(sm)
	}

	if k == 0 {
		for jb := 0; jb < nb; jb++ {
			dzero(b[mdb*jb : mdb*jb+n])
		}
		return 0
	}

	// Retriangularize the leading k rows from the right when the
	// pseudo-rank falls short of n.
	if k < n {
		for i := k - 1; i >= 0; i-- {
			g[i] = hhGen(i, k, n, a[i:], mda)
			hhApply(i, k, n, a[i:], mda, g[i], a, mda, 1, i)
		}
	}

	for jb := 0; jb < nb; jb++ {
		cb := b[mdb*jb:]
		if k > len(cb) || n > len(cb) {
			panic("bound check error")
		}

		// Solve the k × k triangular system 𝐖𝐲₁ = 𝐜₁.
		for i := k - 1; i >= 0; i-- {
			sm := zero
			for j := uint(i + 1); j < uint(k); j++ {
				sm += a[i+mda*int(j)] * cb[j]
			}
			cb[i] = (cb[i] - sm) / a[i+mda*i]
		}

		if k < n {
			dzero(cb[k:n])
			for i := 0; i < k; i++ {
				hhApply(i, k, n, a[i:], mda, g[i], cb, 1, mdb, 1)
			}
		}

		// Undo the column interchanges.
		for j := diag - 1; j >= 0; j-- {
			if l := ip[j]; l != j {
				cb[l], cb[j] = cb[j], cb[l]
			}
		}
	}

	// The solution vectors 𝐗 now occupy the first n rows of 𝐁.
	return k
}
