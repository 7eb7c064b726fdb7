// Copyright ©2025 The optkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"math"
)

// lsei solves the equality- and inequality-constrained least-squares
// problem 𝚖𝚒𝚗‖ 𝐄𝐱 - 𝐟 ‖₂ subject to 𝐂𝐱 = 𝐝 and 𝐆𝐱 ≥ 𝐡.
//   - 𝐄 is me × n, no rank assumption
//   - 𝐂 is mc × n and must have full row rank mc ≤ n
//   - 𝐆 is mg × n
//
// The equality constraints are eliminated through an orthogonal basis
// of the null space of 𝐂: with 𝐂𝐊 = [𝐂߬₁ ೦] lower triangular, 𝐲߮₁ solves
// the triangular system 𝐂߬₁𝐲₁ = 𝐝 and 𝐲߮₂ solves the reduced inequality
// problem 𝚖𝚒𝚗‖ 𝐄߬₂𝐲₂ - (𝐟 - 𝐄߬₁𝐲߮₁) ‖₂ subject to 𝐆߬₂𝐲₂ ≥ 𝐡 - 𝐆߬₁𝐲߮₁.
// The solution is 𝐱߮ = 𝐊[𝐲߮₁ 𝐲߮₂]ᵀ.
//
// lc, le and lg are the column strides of c, e and g. The workspace w
// needs 2mc+me+(me+mg)(n-mc) cells plus the lsi requirement; jw needs
// 𝚖𝚊𝚡(mg, 𝚖𝚒𝚗(me, n-mc)) cells. The multipliers come back in w, the
// equality part in w[:mc] and the inequality part in w[mc:mc+mg].
//
// C.L. Lawson, R.J. Hanson, 'Solving least squares problems' Prentice Hall, 1974. (revised 1995 edition)
// Chapters 20, Algorithm 20.24 and Chapters 23, Section 6.
func lsei(
	c []float64, d []float64,
	e []float64, f []float64,
	g []float64, h []float64,
	lc, mc, le, me, lg, mg, n int,
	x []float64,
	w []float64, jw []int,
	maxIterLs int,
) (norm float64, mode Status) {

	if n < 1 || mc > n {
		return math.NaN(), badDims
	}

	if n > len(x) || mc > len(x) ||
		mc < 0 || mc > len(c) || mc > len(d) ||
		me < 0 || me > len(e) || me > len(f) ||
		mg < 0 || mg > len(g) || mg > len(h) {
		panic("bound check error")
	}

	l := n - mc
	// [mc] multipliers of the equality constraints
	iw := mc
	// [(l+1)×(mg+2)+2×mg] workspace handed down to lsi
	ws := w[iw : iw+(l+1)*(mg+2)+2*mg]
	iw += len(ws)
	// [mc] Householder pivots defining 𝐊
	wp := w[iw : iw+mc]
	iw += len(wp)
	// [me × l] 𝐄߬₂
	we := w[iw : iw+me*l]
	iw += len(we)
	// [me] 𝐟 - 𝐄߬₁𝐲߮₁
	wf := w[iw : iw+me]
	iw += len(wf)
	// [mg × l] 𝐆߬₂
	wg := w[iw : iw+mg*l]

	if mc > len(wp) || me > len(wf) {
		panic("bound check error")
	}

	// Triangularize 𝐂 from the right, carrying 𝐄 and 𝐆 along.
	for i := 0; i < mc; i++ {
		j := min(i+1, lc-1)
		wp[i] = hhGen(i, i+1, n, c[i:], lc)
		hhApply(i, i+1, n, c[i:], lc, wp[i], c[j:], lc, 1, mc-i-1) // 𝐂𝐊 = [𝐂߬₁ ೦]
		hhApply(i, i+1, n, c[i:], lc, wp[i], e, le, 1, me)         // 𝐄𝐊 = [𝐄߬₁ 𝐄߬₂]
		hhApply(i, i+1, n, c[i:], lc, wp[i], g, lg, 1, mg)         // 𝐆𝐊 = [𝐆߬₁ 𝐆߬₂]
	}

	// Solve the triangular system 𝐂߬₁𝐲₁ = 𝐝.
	for i := 0; i < mc; i++ {
		diag := c[i+lc*i]
		if math.Abs(diag) < eps {
			return math.NaN(), SingularC // 𝚛𝚊𝚗𝚔(𝐂) < mc
		}
		x[i] = (d[i] - ddot(i, c[i:], lc, x, 1)) / diag
	}

	// lsi returns the inequality multipliers in ws[:mg].
	dzero(ws[:mg])

	if mc < n {
		for i := 0; i < me; i++ { // 𝐟 - 𝐄߬₁𝐲߮₁
			wf[i] = f[i] - ddot(mc, e[i:], le, x, 1)
		}

		if l > 0 {
			if me > len(we) || mg > len(wg) {
				panic("bound check error")
			}
			for i := 0; i < me; i++ { // 𝐄߬₂
				dcopy(l, e[i+le*mc:], le, we[i:], me)
			}
			for i := 0; i < mg; i++ { // 𝐆߬₂
				dcopy(l, g[i+lg*mc:], lg, wg[i:], mg)
			}
		}

		if mg > 0 {
			for i := 0; i < mg; i++ { // 𝐡 - 𝐆߬₁𝐲߮₁
				h[i] -= ddot(mc, g[i:], lg, x, 1)
			}
			norm, mode = lsi(we, wf, wg, h, me, me, mg, mg, l, x[mc:n], ws, jw, maxIterLs)
			if mc == 0 {
				return
			}
			if mode != solved {
				return math.NaN(), mode
			}
			t := dnrm2(mc, x, 1)
			norm = math.Sqrt(norm*norm + t*t)
		} else {
			// No inequalities left: plain least squares on 𝐄߬₂.
			k, t := max(le, n), sqrtEps
			var nrm [1]float64
			rank := hfti(we, me, me, l, wf, k, 1, t, nrm[:], w, w[l:], jw)
			norm = nrm[0]
			dcopy(l, wf, 1, x[mc:n], 1)
			if rank != l {
				return norm, RankDefect
			}
		}
	}

	// Multipliers of the equality constraints,
	// 𝛍 = (𝐂ᵀ)⁻¹[𝐄ᵀ(𝐄𝐱 - 𝐟) - 𝐆ᵀ𝛌].
	for i := 0; i < me; i++ {
		f[i] = ddot(n, e[i:], le, x, 1) - f[i]
	}
	for i := 0; i < mc; i++ {
		d[i] = ddot(me, e[i*le:], 1, f, 1) -
			ddot(mg, g[i*lg:], 1, ws[:mg], 1)
	}
	for i := mc - 1; i >= 0; i-- { // 𝐱߮ = 𝐊[𝐲߮₁ 𝐲߮₂]ᵀ
		hhApply(i, i+1, n, c[i:], lc, wp[i], x, 1, 1, 1)
	}
	for i := mc - 1; i >= 0; i-- {
		j := min(i+1, lc-1)
		w[i] = (d[i] - ddot(mc-i-1, c[j+lc*i:], 1, w[j:], 1)) / c[i+lc*i]
	}
	mode = solved
	return
}

// lsi solves the inequality-constrained least-squares problem
// 𝚖𝚒𝚗‖ 𝐄𝐱 - 𝐟 ‖₂ subject to 𝐆𝐱 ≥ 𝐡, with 𝐄 of full column rank n.
//
// 𝐄 is QR-factored so the objective becomes ‖ 𝐑𝐲 - 𝐟߫₁ ‖₂; substituting
// 𝐳 = 𝐑𝐲 - 𝐟߫₁ turns the problem into the least-distance problem
// 𝚖𝚒𝚗 ‖ 𝐳 ‖₂ subject to 𝐆𝐑⁻¹𝐳 ≥ 𝐡 - 𝐆𝐑⁻¹𝐟߫₁, and the residual norm is
// recovered as (‖𝐳‖₂² + ‖𝐟߫₂‖₂²)¹ᐟ².
//
// w needs (n+1)(mg+2)+2mg cells and returns the multipliers in w[:mg];
// jw needs lg cells.
//
// C.L. Lawson, R.J. Hanson, 'Solving least squares problems' Prentice Hall, 1974. (revised 1995 edition)
// Chapters 23, Section 5.
func lsi(
	e []float64, f []float64,
	g []float64, h []float64,
	le, me, lg, mg, n int,
	x []float64,
	w []float64, jw []int,
	maxIterLs int) (xnorm float64, mode Status) {

	if n < 1 {
		return 0, badDims
	}

	// QR-factor 𝐄 and apply 𝐐 to 𝐟.
	for i := 0; i < n; i++ {
		j := min(i+1, n-1)
		t := hhGen(i, i+1, me, e[i*le:], 1)
		hhApply(i, i+1, me, e[i*le:], 1, t, e[j*le:], 1, le, n-i-1)
		hhApply(i, i+1, me, e[i*le:], 1, t, f, 1, 1, 1)
	}

	// Transform 𝐆 and 𝐡 into the least-distance form.
	for i := 0; i < mg; i++ {
		for j := 0; j < n; j++ {
			diag := e[j+le*j]
			if math.Abs(diag) < eps || math.IsNaN(diag) {
				return math.NaN(), SingularE // 𝚛𝚊𝚗𝚔(𝐄) < n
			}
			g[i+lg*j] = (g[i+lg*j] - ddot(j, g[i:], lg, e[j*le:], 1)) / diag // 𝐆𝐑⁻¹
		}
		h[i] -= ddot(n, g[i:], lg, f, 1) // 𝐡 - 𝐆𝐑⁻¹𝐟߫₁
	}

	if xnorm, mode = ldp(mg, n, g, lg, h, x, w, jw, maxIterLs); mode == solved {
		daxpy(n, one, f, 1, x, 1) // 𝐳 + 𝐟߫₁
		for i := n - 1; i >= 0; i-- {
			j := min(i+1, n-1) // 𝐑⁻¹(𝐳 + 𝐟߫₁)
			x[i] = (x[i] - ddot(n-i-1, e[i+le*j:], le, x[j:], 1)) / e[i+le*i]
		}
		j := min(n, me-1)
		t := dnrm2(me-n, f[j:], 1)           // ‖𝐟߫₂‖₂
		xnorm = math.Sqrt(xnorm*xnorm + t*t) // (‖𝐳‖₂² + ‖𝐟߫₂‖₂²)¹ᐟ²
	}
	return
}
