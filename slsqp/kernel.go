// Copyright ©2025 The optkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"math"
)

// Kernel is the step collaborator of the reverse-communication driver.
//
// Step advances the optimization by one pass: it consumes the function
// value f, the constraint values c (length la = 𝚖𝚊𝚡(1,m)), the objective
// gradient g (length n+1) and the constraint normals a (column-major
// la × (n+1)), mutates x, acc, iter and mode in place, and uses w and jw
// as scratch. w must hold RealWorkspaceLen(n, m, meq) cells and jw
// IntWorkspaceLen(n, m, meq).
//
// On return mode is either a data request (EvalFunctions, EvalGradient)
// or terminal; iter carries the number of outer iterations performed so
// far. Internal state between calls lives in the Kernel value itself.
type Kernel interface {
	Step(m, meq, la, n int,
		x, xl, xu []float64,
		f float64, c, g, a []float64,
		acc *float64, iter *int, mode *Status,
		w []float64, jw []int)
}

// newKernel returns the built-in SQP step kernel. The exact line-search
// variant carries the auxiliary minimizer state, the armijo variant has
// none.
func newKernel(line LineSearchMode) Kernel {
	k := new(sqpKernel)
	if line == Exact {
		k.fw = new(lineMin)
	}
	return k
}

// Bounds with a magnitude at or above infBound are treated as absent.
const infBound = math.MaxFloat64

// Line-search step range 0 < alfmin < alfmax ≤ 1.
const (
	alfmin = 0.1
	alfmax = 1.0
)

// stepContinue is the kernel-internal "no decision yet" marker. It never
// escapes a Step call.
const stepContinue Status = -64

// resume points of the state machine.
const (
	stateStart = iota
	stateLine  // waiting for f, c inside a line search
	stateGrad  // waiting for g, a for the Hessian update
)

// stepCtx bundles the per-call arguments of Step.
type stepCtx struct {
	m, meq, la, n int
	x, xl, xu     []float64
	f             float64
	c, g, a       []float64
}

// sqpKernel solves NLP (general constrained NonLinear optimization
// Problems) with SQP: each outer iteration solves a least-squares QP
// subproblem for a descent direction, line-searches an L1 merit function
// for the step length and maintains an LDL-factored modified-BFGS
// approximation of the Lagrangian Hessian.
//
// The kernel is resumable: whenever the original algorithm would
// evaluate user code it instead parks its position in state and returns
// the matching request mode; the next Step call picks up with the fresh
// values.
//
// Dieter Kraft: "A software package for sequential quadratic programming".
// DFVLR-FB 88-28, 1988
type sqpKernel struct {
	state int
	v     kernelViews

	// maximum and elapsed outer iterations. iter is written back to the
	// caller's budget slot on every return.
	maxIter, iter int

	// required and relaxed accuracy.
	acc, tol float64
	// objective and merit value at the start of the line search.
	f0, t0 float64
	// current step length and armijo counter.
	alpha float64
	line  int
	// directional derivative bookkeeping carried across returns.
	h3 float64
	// consecutive Hessian resets.
	reset int
	// subproblem was inconsistent on this iteration.
	bad bool

	// exact line-search variant and its auxiliary minimizer state,
	// allocated only for that variant.
	exact bool
	find  findMode
	fw    *lineMin
}

func (k *sqpKernel) Step(m, meq, la, n int,
	x, xl, xu []float64,
	f float64, c, g, a []float64,
	acc *float64, iter *int, mode *Status,
	w []float64, jw []int) {

	k.v = carveViews(n, m, meq, w, jw)
	ctx := &stepCtx{m: m, meq: meq, la: la, n: n, x: x, xl: xl, xu: xu, f: f, c: c, g: g, a: a}

	var st Status
	switch k.state {
	case stateLine:
		st = k.onFunctions(ctx)
	case stateGrad:
		st = k.updateHessian(ctx)
		if st == stepContinue {
			st = k.iterate(ctx)
		}
	default:
		if n < 1 || meq > n {
			k.iter = 0
			st = EqConsExceedN
			break
		}
		k.start(ctx, *acc, *iter)
		st = k.iterate(ctx)
	}

	switch st {
	case EvalFunctions:
		k.state = stateLine
	case EvalGradient:
		k.state = stateGrad
	default:
		k.state = stateStart
	}

	*acc = math.Copysign(k.acc, *acc)
	*iter = k.iter
	*mode = st
}

// start initializes the kernel for a fresh optimization. The driver has
// evaluated both the functions and the gradients at the initial guess.
func (k *sqpKernel) start(ctx *stepCtx, acc float64, budget int) {
	k.exact = acc < zero
	if k.exact && k.fw == nil {
		k.fw = new(lineMin)
	}
	k.acc = math.Abs(acc)
	k.tol = ten * k.acc
	k.maxIter = budget
	k.iter = 0
	k.reset = 0
	k.bad = false
	k.f0, k.t0 = zero, zero
	dzero(k.v.s)
	dzero(k.v.mu)
	k.resetHessian(ctx)
}

// resetHessian restores 𝐋 = 𝐈, 𝐃 = 𝐈. After five consecutive resets it
// gives up and reports relaxed convergence or a failed search instead.
func (k *sqpKernel) resetHessian(ctx *stepCtx) Status {
	k.reset++
	if k.reset > 5 {
		// Check relaxed convergence in case of positive directional derivative.
		_, st := k.checkConv(ctx, k.tol, NotDescent)
		return st
	}
	l, n := k.v.l, ctx.n
	n2 := (n + 1) * n / 2
	dzero(l[:n2])
	for i, j := 0, 0; i < n; i++ {
		l[j] = one
		j += n - i // diag
	}
	return stepContinue
}

// checkConv sums the constraint violation ∑‖𝒄ⱼ(𝐱)‖₁ and reports
// Converged when the stop criteria hold at tol, notConv otherwise.
func (k *sqpKernel) checkConv(ctx *stepCtx, tol float64, notConv Status) (vio float64, st Status) {
	for j, cv := range ctx.c {
		h1 := zero
		if j < ctx.meq {
			h1 = cv
		}
		vio += math.Max(-cv, h1)
	}
	if !k.stopMet(ctx, vio, tol) {
		st = notConv
	} else {
		st = Converged
	}
	return
}

// stopMet checks the post-search criteria:
//   - Ĉ𝑣𝑖𝑜 = ∑‖𝒄ⱼ(𝐱ᵏ + 𝛂𝐝)‖₁ < tol
//   - Ĉ𝑜𝑝𝑡 = |𝒇(𝐱ᵏ + 𝛂𝐝) - 𝒇(𝐱ᵏ)| < tol, or
//   - Ĉ𝑠𝑡𝑝 = ‖𝐝‖₂ < tol
func (k *sqpKernel) stopMet(ctx *stepCtx, vio, tol float64) bool {
	if vio >= tol || k.bad || math.IsNaN(ctx.f) {
		return false
	}
	return math.Abs(ctx.f-k.f0) < tol || dnrm2(ctx.n, k.v.s, 1) < tol
}

// iterate runs outer iterations until user data is needed or a terminal
// condition is hit. Each pass solves the m×n least-squares QP subproblem
// for the direction 𝐝 = s and the multipliers 𝛌 = r, checks the KKT-style
// convergence criteria and prepares the merit line search.
func (k *sqpKernel) iterate(ctx *stepCtx) Status {
	m, meq, n, la := ctx.m, ctx.meq, ctx.n, ctx.la
	u, r, v, l, s, mu := k.v.u, k.v.r, k.v.v, k.v.l, k.v.s, k.v.mu

	n1 := n + 1
	n2 := n * n1 / 2

	for {
		if k.iter++; k.iter > k.maxIter {
			k.iter--
			return ExceedMaxIter
		}

		// Transfer bounds from 𝒍 ≤ 𝐱 ≤ 𝒖 to 𝒍 - 𝐱ᵏ ≤ 𝐝 ≤ 𝒖 - 𝐱ᵏ
		for i := 0; i < n; i++ {
			u[i] = ctx.xl[i] - ctx.x[i]
			v[i] = ctx.xu[i] - ctx.x[i]
		}

		_, st := lsq(m, meq, n, n2+1,
			l, ctx.g, ctx.a, ctx.c, u, v,
			s, r, k.v.w, k.v.jw, 0, infBound)

		if st == SingularC && n == meq {
			st = ConsIncompatible
		}
		h4 := one
		// If the original subproblem turns out inconsistent, remember it
		// so this iteration cannot terminate with convergence even when
		// the augmented relaxation is solved.
		if k.bad = st == ConsIncompatible; k.bad {
			// Form the augmented QP relaxation with slack 𝛅 and penalty 𝛒.
			ac := ctx.a[n*la : n1*la]
			for j, cv := range ctx.c[:m] {
				if j < meq {
					ac[j] = -cv // -𝒄ⱼ(𝐱ᵏ)
				} else {
					ac[j] = math.Max(-cv, zero) // -𝛇ⱼ𝒄ⱼ(𝐱ᵏ)
				}
			}
			ctx.g[n] = zero
			l[n2] = hun            // 𝛒 = 10²
			dzero(s[:n])           // 𝐝 = 0
			s[n] = one             // 𝛅 = 1
			u[n], v[n] = zero, one // 0 ≤ 𝛅 ≤ 1

			for relax := 0; relax <= 5; relax++ {
				// Solve the m×(n+1) augmented problem.
				_, st = lsq(m, meq, n1, n2+1, l, ctx.g, ctx.a, ctx.c, u, v,
					s, r, k.v.w, k.v.jw, 0, infBound)
				h4 = one - s[n] // 1 - 𝛅
				if st == ConsIncompatible {
					l[n2] *= ten // 𝛒 = 𝛒 × 10
					continue
				}
				break
			}
		}

		// Unable to solve the subproblem, even the augmented one.
		if st != solved {
			return st
		}

		// Save ctx.r = 𝜵𝒇(𝐱ᵏ) - 𝛌𝜵𝒄(𝐱ᵏ) for the Hessian update.
		for i, gi := range ctx.g[:n] {
			v[i] = gi - ddot(m, ctx.a[i*la:(i+1)*la], 1, r, 1)
		}

		k.f0 = ctx.f
		copy(k.v.x0, ctx.x)

		gs := ddot(n, ctx.g, 1, s, 1) // 𝜵𝒇(𝐱ᵏ)ᵀ𝐝
		h1 := math.Abs(gs)            // C𝑜𝑝𝑡 = |𝜵𝒇(𝐱ᵏ)ᵀ𝐝| + |𝛌ᵏ|ᵀ×‖𝒄(𝐱ᵏ)‖₁
		h2 := zero                    // C𝑣𝑖𝑜 = ∑‖𝒄ⱼ(𝐱ᵏ)‖₁
		for j, cv := range ctx.c[:m] {
			h3 := zero
			if j < meq {
				h3 = cv
			}
			h2 += math.Max(-cv, h3)                 // ‖𝒄ⱼ(𝐱ᵏ)‖₁
			h3 = math.Abs(r[j])                     // |𝛌ⱼ|
			h1 += h3 * math.Abs(cv)                 // |𝛌ⱼ|×‖𝒄ⱼ(𝐱ᵏ)‖₁
			mu[j] = math.Max(h3, (mu[j]+h3)/2) // 𝛒ⱼᵏ⁺¹ = 𝚖𝚊𝚡[ ½(𝛒ⱼᵏ+|𝛌ⱼ|), |𝛌ⱼ| ]
		}

		// Stop when the convergence criteria for the NLP hold.
		if h1 < k.acc && h2 < k.acc && !k.bad && !math.IsNaN(ctx.f) {
			return Converged
		}

		h1 = zero // ∑𝛒ᵏⱼ‖𝒄ⱼ(𝐱ᵏ)‖₁
		for j, cv := range ctx.c[:m] {
			h3 := zero
			if j < meq {
				h3 = cv
			}
			h1 += mu[j] * math.Max(-cv, h3)
		}

		// 𝞥(𝐱ᵏ;𝛒) = 𝒇(𝐱ᵏ) + 𝛒ᵏ‖𝒄(𝐱ᵏ)‖₁
		k.t0 = ctx.f + h1

		// 𝜵𝞥 = 𝜵𝒇(𝐱ᵏ)ᵀ𝐝 - (1 - 𝛅)∑𝛒ᵏⱼ‖𝒄ⱼ(𝐱ᵏ)‖₁
		h3 := gs - h1*h4
		if h3 >= zero {
			// An ascent direction was generated, reset the Hessian.
			if st := k.resetHessian(ctx); k.reset > 5 {
				return st
			}
			continue
		}

		// Start the line search along 𝐝 and hand control back for the
		// function values at the trial point.
		if k.exact {
			k.find = findNoop
			k.exactStep(ctx, math.NaN())
		} else {
			k.line = 0
			k.alpha = alfmax
			k.inexactStep(ctx)
			h3 *= k.alpha
		}
		k.h3 = h3
		return EvalFunctions
	}
}

// onFunctions resumes the line search with fresh f and c at the trial
// point: either another trial step is requested, or the search is done
// and the gradients are requested for the Hessian update, or the relaxed
// criteria already hold and the kernel terminates.
func (k *sqpKernel) onFunctions(ctx *stepCtx) Status {
	m, meq, mu := ctx.m, ctx.meq, k.v.mu

	// 𝞥(𝐱ᵏ+𝛂𝐝;𝛒) = 𝒇(𝐱ᵏ+𝛂𝐝) + 𝛒ᵏ‖𝒄(𝐱ᵏ+𝛂𝐝)‖₁
	t := ctx.f
	for j, cv := range ctx.c[:m] {
		h1 := zero
		if j < meq {
			h1 = cv
		}
		t += mu[j] * math.Max(-cv, h1)
	}

	if !k.exact {
		if diff := t - k.t0; diff <= k.h3/10 || k.line > 10 {
			_, st := k.checkConv(ctx, k.acc, EvalGradient)
			return st
		} else {
			k.alpha = math.Min(math.Max(k.h3/(2*(k.h3-diff)), alfmin), alfmax)
			k.inexactStep(ctx)
			k.h3 *= k.alpha
			return EvalFunctions
		}
	}
	if k.exactStep(ctx, t) == findConv {
		_, st := k.checkConv(ctx, k.acc, EvalGradient)
		return st
	}
	return EvalFunctions
}

// inexactStep applies 𝐱ᵏ⁺¹ = 𝐱ᵏ + 𝛂𝐝 clipped to the bounds.
func (k *sqpKernel) inexactStep(ctx *stepCtx) {
	n, x, s, x0 := ctx.n, ctx.x, k.v.s, k.v.x0
	k.line++
	dscal(n, k.alpha, s, 1) // 𝐬 = 𝐱ᵏ⁺¹ - 𝐱ᵏ = 𝛂𝐝
	dcopy(n, x0, 1, x, 1)
	daxpy(n, one, s, 1, x, 1)
	for i, v := range x {
		l, u := ctx.xl[i], ctx.xu[i]
		if !math.IsNaN(l) && l > -infBound && v < l {
			x[i] = l
		} else if !math.IsNaN(u) && u < infBound && v > u {
			x[i] = u
		}
	}
}

// exactStep advances the derivative-free minimizer of the merit function
// along 𝐝, with t the merit value at the previous trial point.
func (k *sqpKernel) exactStep(ctx *stepCtx, t float64) (md findMode) {
	n, x, s, x0 := ctx.n, ctx.x, k.v.s, k.v.x0
	if md = k.find; md != findConv {
		k.alpha, md = lineMinStep(md, k.fw, t, k.tol)
		k.find = md
		dcopy(n, x0, 1, x, 1)
		daxpy(n, k.alpha, s, 1, x, 1) // 𝐱 + 𝛂𝐝
	} else {
		dscal(n, k.alpha, s, 1) // 𝐬 = 𝐱ᵏ⁺¹ - 𝐱ᵏ = 𝛂𝐝
	}
	return
}

// updateHessian refreshes the LDL-factored Hessian approximation by the
// modified BFGS formula using the gradients just evaluated at 𝐱ᵏ⁺¹.
func (k *sqpKernel) updateHessian(ctx *stepCtx) Status {
	m, n, la := ctx.m, ctx.n, ctx.la
	u, r, v, l, s := k.v.u, k.v.r, k.v.v, k.v.l, k.v.s

	if n < 0 || n > len(v) || n > len(u) {
		panic("bound check error")
	}

	// 𝛈 = 𝜵ℒ(𝐱ᵏ⁺¹,𝛌ᵏ) - 𝜵ℒ(𝐱ᵏ,𝛌ᵏ)
	//   = [𝜵𝒇(𝐱ᵏ⁺¹) - 𝛌𝜵𝒄(𝐱ᵏ⁺¹)] - [𝜵𝒇(𝐱ᵏ) - 𝛌𝜵𝒄(𝐱ᵏ)]
	for i, gi := range ctx.g[:n] {
		u[i] = gi - ddot(m, ctx.a[i*la:(i+1)*la], 1, r, 1) - v[i]
	}

	// 𝐋ᵀ𝐬
	for i, j := 0, 0; i < n; i++ {
		j++
		sm := zero
		for _, sv := range s[i+1 : n] {
			sm += l[j] * sv
			j++
		}
		v[i] = s[i] + sm
	}
	// 𝐃𝐋ᵀ𝐬
	for i, j := 0, 0; i < n; i++ {
		v[i] = l[j] * v[i]
		j += n - i
	}
	// 𝐋𝐃𝐋ᵀ𝐬 = 𝐁ᵏ𝐬
	for i := n - 1; i >= 0; i-- {
		j := i
		sm := zero
		for jj, vv := range v[:i] {
			sm += l[j] * vv
			j += n - 1 - jj
		}
		v[i] += sm
	}

	h1 := ddot(n, s, 1, u, 1) // 𝐬ᵀ𝛈
	h2 := ddot(n, s, 1, v, 1) // 𝐬ᵀ𝐁ᵏ𝐬
	h3 := 0.2 * h2
	if h1 < h3 {
		// 𝛉 = ⅘ 𝐬ᵀ𝐁ᵏ𝐬 / (𝐬ᵀ𝐁ᵏ𝐬 - 𝐬ᵀ𝛈)
		h4 := (h2 - h3) / (h2 - h1)
		h1 = h3
		dscal(n, h4, u, 1)           // 𝛉𝐬ᵀ𝛈
		daxpy(n, one-h4, v, 1, u, 1) // 𝐬ᵀ(𝛉𝛈 + (1-𝛉)𝐁ᵏ𝐬) = 𝐬ᵀ𝐪
	}

	if h1 == zero || h2 == zero {
		st := k.resetHessian(ctx)
		if k.reset > 5 {
			return st
		}
	} else {
		// rank-one corrections 𝐁ᵏ⁺¹ = 𝐁ᵏ + 𝐪𝐪ᵀ/𝐪ᵀ𝐬 - 𝐁ᵏ𝐬𝐬ᵀ𝐁ᵏ/𝐬ᵀ𝐁ᵏ𝐬
		ldlUpdate(uint(n), l, u, +one/h1, nil)
		ldlUpdate(uint(n), l, v, -one/h2, u)
	}

	return stepContinue
}
