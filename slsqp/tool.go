// Copyright ©2025 The optkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"math"
)

var sqrtEps = math.Sqrt(eps)              // square root of machine precision
var invPhi2 = one / (math.Phi * math.Phi) // golden section ratio

// hhGen constructs the Householder transformation 𝐐 = 𝐈ₘ - b⁻¹𝐮𝐮ᵀ that
// zeros the components of v indexed from l through m-1, pivoting on the
// component at index p (0 ≤ p < l). v is read with stride ive and
// overwritten with the quantities defining 𝐮; the pivot component of 𝐮
// is returned separately as up.
//
// If l ≥ m the transformation is the identity and up is zero.
//
// C.L. Lawson, R.J. Hanson, 'Solving least squares problems' Prentice Hall, 1974. (revised 1995 edition)
// Chapters 10.
func hhGen(p, l, m int, v []float64, ive int) (up float64) {
	if p < 0 || p >= l || l >= m {
		return
	}

	lp := uint(p * ive)
	l1 := uint(l * ive)
	lm := uint((m - 1) * ive)
	if ive <= 0 || lp >= uint(len(v)) || l1 >= uint(len(v)) || lm >= uint(len(v)) {
		panic("bound check error")
	}

	vmax := math.Abs(v[lp])
	for j := l1; j <= lm; j += uint(ive) {
		vmax = math.Max(math.Abs(v[j]), vmax)
	}
	if vmax <= zero { // v is a zero vector
		return
	}

	// (vₚ² + ∑vᵢ²)¹ᐟ² with v normalized by its largest magnitude.
	inv := one / vmax
	sm := (v[lp] * inv) * (v[lp] * inv)
	for j := l1; j <= lm; j += uint(ive) {
		sm += (v[j] * inv) * (v[j] * inv)
	}

	// s = -σ(vₚ² + ∑vᵢ²)¹ᐟ² where σ = sgn(vₚ)
	s := vmax * math.Sqrt(sm)
	if v[lp] > zero {
		s = -s
	}

	up = v[lp] - s // 𝐮ₚ = vₚ - s
	v[lp] = s      // yₚ = s
	return
}

// hhApply applies the Householder transformation built by hhGen,
// 𝐐𝐜 = 𝐜 + b⁻¹(𝐮ᵀ𝐜)𝐮, to ncv vectors stored in c. ice is the stride
// between the elements of one vector, icv the stride between vectors.
func hhApply(p, l, m int, u []float64, iue int, up float64, c []float64, ice, icv, ncv int) {
	if p < 0 || p >= l || l >= m || ncv <= 0 {
		return
	}

	b := u[p*iue] * up // b = s𝐮ₚ
	if b >= zero {
		// 𝐐 = 𝐈ₘ when s𝐮ₚ = 0
		return
	}
	b = one / b

	base := uint(ice * p)
	incr := uint(ice * (l - p))
	l1 := uint(l * iue)
	lm := uint((m - 1) * iue)
	ln := base + uint(icv)*(uint(ncv)-1)
	if iue <= 0 || l1 >= uint(len(u)) || lm >= uint(len(u)) ||
		base >= uint(len(c)) || ln >= uint(len(c)) {
		panic("bound check error")
	}

	for j := base; j <= ln; j += uint(icv) {
		c1 := j + incr
		cm := c1 + uint(m-l-1)*uint(ice)
		if c1 >= uint(len(c)) || cm >= uint(len(c)) {
			panic("bound check error")
		}
		// 𝐮ᵀ𝐜 = 𝐮ₚ𝐜ₚ + ∑𝐜ᵢ𝐮ᵢ (l ≤ i < m)
		sm := c[j] * up
		for iu, ic := l1, c1; iu <= lm && ic <= cm; iu, ic = iu+uint(iue), ic+uint(ice) {
			sm += c[ic] * u[iu]
		}
		if sm == zero {
			continue
		}
		sm *= b // b⁻¹(𝐮ᵀ𝐜)
		c[j] += sm * up
		for iu, ic := l1, c1; iu <= lm && ic <= cm; iu, ic = iu+uint(iue), ic+uint(ice) {
			c[ic] += sm * u[iu]
		}
	}
}

// givGen computes the 2×2 Givens rotation
//
//	⎡ c s⎤⎡a⎤ = ⎡(a²+b²)¹ᐟ²⎤ ≡ ⎡sig⎤
//	⎣-s c⎦⎣b⎦   ⎣    0     ⎦   ⎣ 0 ⎦
//
// C.L. Lawson, R.J. Hanson, 'Solving least squares problems' Prentice Hall, 1974. (revised 1995 edition)
// Chapters 3.
func givGen(a, b float64) (c, s, sig float64) {
	if xa, xb := math.Abs(a), math.Abs(b); xa > xb {
		xr := b / a
		yr := math.Sqrt(1 + xr*xr)
		c = math.Copysign(1/yr, a)
		s = c * xr
		sig = xa * yr
	} else if xb > 0 {
		xr := a / b
		yr := math.Sqrt(1 + xr*xr)
		s = math.Copysign(1/yr, b)
		c = s * xr
		sig = xb * yr
	} else {
		s = 1
	}
	return
}

// givApply applies the rotation computed by givGen to the pair (x, y).
func givApply(c, s float64, x, y float64) (xr, yr float64) {
	xr = c*x + s*y
	yr = -s*x + c*y
	return
}

// ldlUpdate folds the rank-one modification 𝐀 + σ𝐳𝐳ᵀ into the packed
// 𝐋𝐃𝐋ᵀ factors a of a positive definite n × n matrix. 𝐋 is stored
// column-wise as a strict lower triangle with 𝐃 occupying the diagonal
// slots. z is destroyed. For σ < 0 an n-cell scratch w is required.
//
// Dieter Kraft, 'A Software Package for Sequential Quadratic Programming', 1988.
// Chapters 2.32.
func ldlUpdate(n uint, a, z []float64, sigma float64, w []float64) {
	if sigma == zero {
		return
	}
	if n <= 0 || n > uint(len(z)) {
		panic("bound check error")
	}

	t := one / sigma
	ij := uint(0)

	if sigma < zero {
		if n > uint(len(w)) {
			panic("bound check error")
		}
		// Solve 𝐋𝐯 = 𝐳 and accumulate tᵢ₊₁ = tᵢ + 𝐯ᵢ²/dᵢ.
		copy(w, z)
		for i := uint(0); i < n; i++ {
			v := w[i]
			t += v * v / a[ij]
			for j := i + 1; j < n; j++ {
				ij++
				w[j] -= v * a[ij]
			}
			ij++
		}
		if t >= zero {
			t = eps / sigma
		}
		// Recompute tᵢ₋₁ = tᵢ - 𝐯ᵢ²/dᵢ going backwards, leaving tᵢ₊₁ in w.
		for j := int(n) - 1; j >= 0; j-- {
			u := w[j]
			w[j] = t
			ij -= n - uint(j)
			t -= u * u / a[ij]
		}
	}

	ij = 0
	for i := uint(0); i < n; i++ {
		v := z[i]
		delta := v / a[ij]

		var tp float64
		if sigma < zero {
			tp = w[i]
		} else {
			tp = t + delta*v
		}

		alpha := tp / t
		a[ij] *= alpha // d߬ᵢ = (tᵢ₊₁/tᵢ)dᵢ

		if i == n-1 {
			break
		}

		beta := delta / tp
		if alpha > four {
			gamma := t / tp
			for j := i + 1; j < n; j++ {
				ij++
				u := a[ij]
				a[ij] = gamma*u + beta*z[j] // 𝐥߬ᵢ = (tᵢ/tᵢ₊₁)𝐥ᵢ + βᵢ𝐳⁽ⁱ⁾
				z[j] -= v * u               // 𝐳⁽ⁱ⁺¹⁾ = 𝐳⁽ⁱ⁾ - 𝐯ᵢ𝐥ᵢ
			}
		} else {
			for j := i + 1; j < n; j++ {
				ij++
				z[j] -= v * a[ij]    // 𝐳⁽ⁱ⁺¹⁾ = 𝐳⁽ⁱ⁾ - 𝐯ᵢ𝐥ᵢ
				a[ij] += beta * z[j] // 𝐥߬ᵢ = 𝐥ᵢ + βᵢ𝐳⁽ⁱ⁺¹⁾
			}
		}
		ij++
		t = tp
	}
}

// findMode sequences the derivative-free line minimizer: the caller
// feeds a function value back in for every findInit/findNext request
// until findConv is reported.
type findMode int

const (
	findNoop findMode = iota
	findInit
	findNext
	findConv
)

// lineMin is the resume state of lineMinStep.
type lineMin struct {
	a, b, d, e, p, q, r, u, v, w, x, m, fu, fv, fw, fx, tol1, tol2 float64
}

// lineMinStep advances a derivative-free minimization over the fixed
// interval [alfmin, alfmax] combining golden section with successive
// parabolic interpolation. f is the function value at the previously
// returned abscissa; tol is the desired length of the final interval of
// uncertainty. The next trial abscissa is returned together with the
// mode the caller must resume with.
func lineMinStep(m findMode, w *lineMin, f, tol float64) (argMin float64, mode findMode) {
	c := invPhi2

	switch m {
	case findInit:
		w.fx = f
		w.fv = w.fx
		w.fw = w.fv
	case findNext:
		w.fu = f
		// Update the bracket a, b and the probe points v, w, x.
		if u, x := w.u, w.x; w.fu > w.fx {
			if u < x {
				w.a = u
			}
			if u >= x {
				w.b = u
			}
			if w.fu <= w.fw || math.Abs(w.w-x) <= zero {
				w.v, w.fv = w.w, w.fw
				w.w, w.fw = w.u, w.fu
			} else if w.fu <= w.fv || math.Abs(w.v-x) <= zero || math.Abs(w.v-w.w) <= zero {
				w.v, w.fv = w.u, w.fu
			}
		} else {
			if u >= x {
				w.a = x
			}
			if u < x {
				w.b = x
			}
			w.v, w.fv = w.w, w.fw
			w.w, w.fw = w.x, w.fx
			w.x, w.fx = w.u, w.fu
		}
	default:
		w.a, w.b = alfmin, alfmax
		w.e = zero
		w.v = w.a + c*(w.b-w.a)
		w.w, w.x = w.v, w.v
		return w.x, findInit
	}

	w.m = 0.5 * (w.a + w.b)
	w.tol1 = sqrtEps*math.Abs(w.x) + tol
	w.tol2 = 2 * w.tol1

	if math.Abs(w.x-w.m) <= w.tol2-0.5*(w.b-w.a) {
		return w.x, findConv
	}

	// Choose between a parabolic interpolation and a golden-section step.
	r, q, p, d, e := zero, zero, zero, w.d, w.e
	if math.Abs(e) > w.tol1 {
		fx, fw, fv := w.fx, w.fw, w.fv
		x, ww, v := w.x, w.w, w.v
		r = (x - ww) * (fx - fv)
		q = (x - v) * (fx - fw)
		p = (x-v)*q - (x-ww)*r
		q = 2 * (q - r)
		if q > zero {
			p = -p
		}
		if q < zero {
			q = -q
		}
		r, e = e, d
	}
	w.r, w.q, w.p = r, q, p

	if a, b, x := w.a, w.b, w.x; math.Abs(p) >= 0.5*math.Abs(q*r) || p <= q*(a-x) || p >= q*(b-x) {
		// Golden-section step.
		if x >= w.m {
			e = a - x
		} else {
			e = b - x
		}
		d = c * e
	} else if w.u-w.a < w.tol2 || w.b-w.u < w.tol2 {
		// Keep the parabolic step away from the bracket ends.
		d = math.Copysign(w.tol1, w.m-w.x)
	} else {
		d = p / q
	}

	// And away from x itself.
	if math.Abs(d) < w.tol1 {
		d = math.Copysign(w.tol1, d)
	}

	w.d, w.e = d, e
	w.u = w.x + w.d
	return w.u, findNext
}
