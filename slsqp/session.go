// Copyright ©2025 The optkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"errors"
	"fmt"
	"slices"
)

// LineSearchMode selects the step-length strategy of the kernel. The
// mode is conveyed to the kernel through the sign of the accuracy value.
type LineSearchMode int

const (
	// Inexact performs an armijo-type line search.
	Inexact LineSearchMode = iota
	// Exact minimizes the merit function along the search direction.
	Exact
)

// ObjectiveFunc evaluates 𝒇(𝐱) and the constraint residuals 𝒄(𝐱).
// Equality residuals occupy c[0:meq], inequality residuals c[meq:m].
// Inequalities are feasible when 𝒄ⱼ(𝐱) ≥ 0.
type ObjectiveFunc func(x []float64, c []float64) (f float64)

// GradientFunc evaluates 𝒇′(𝐱) into grad (length n) and the constraint
// normals into jac, one row of length n per constraint, equality rows
// first.
type GradientFunc func(x []float64, grad []float64, jac [][]float64)

// IterateFunc observes one accepted iterate. It is invoked with index 0
// for the initial guess, once per accepted iterate and once more on
// convergence.
type IterateFunc func(iter int, x []float64, f float64, c []float64)

// Problem configures a Session.
type Problem struct {
	N   int // number of variables, ≥ 1
	M   int // number of constraints, ≥ 0
	Meq int // number of equality constraints, 0 ≤ Meq ≤ M

	// MaxIter caps the outer SQP iterations.
	MaxIter int
	// Accuracy is the convergence tolerance. Only its magnitude matters
	// here; the session derives the kernel-facing sign from Line.
	Accuracy float64

	Objective ObjectiveFunc // required
	Gradient  GradientFunc  // required

	// Lower and Upper bound every variable, elementwise Lower ≤ Upper.
	Lower, Upper []float64

	// Line selects the line-search strategy, default Inexact.
	Line LineSearchMode

	// Log receives diagnostic messages, default stderr.
	Log *Reporter
	// Observer receives iteration reports, optional.
	Observer IterateFunc
	// Kernel overrides the step kernel, optional.
	Kernel Kernel
}

// Session owns the dimensions, bounds, workspaces and callbacks of one
// optimization. A session supports one in-flight optimization at a time
// and must not be shared between goroutines.
type Session struct {
	n, m, meq, la int
	maxIter       int
	acc           float64
	line          LineSearchMode

	lower, upper []float64

	objective ObjectiveFunc
	gradient  GradientFunc
	observer  IterateFunc
	log       *Reporter
	kernel    Kernel

	// kernel-facing workspaces, sized by the §3 formulas exactly.
	work []float64
	jw   []int

	// driver-owned evaluation buffers.
	c   []float64   // 𝚖𝚊𝚡(1,m)
	g   []float64   // n+1
	a   []float64   // 𝚖𝚊𝚡(1,m) × (n+1) column-major
	jac [][]float64 // m rows of n, handed to the gradient evaluator

	iter  int
	ready bool
}

// Init validates p and allocates the session state. Any previous state
// is destroyed first, so a failed Init always leaves the session in its
// pristine, unusable form. Every failure is reported through the
// configured reporter and returned as an error.
func (s *Session) Init(p *Problem) error {
	s.Destroy()

	log := p.Log
	if log == nil {
		log = NewReporter()
	}

	fail := func(msg string) error {
		log.Report(msg)
		return errors.New(msg)
	}

	n, m, meq := p.N, p.M, p.Meq
	switch {
	case len(p.Lower) != n || len(p.Upper) != n:
		return fail("slsqp: bound size must equal to n")
	case meq < 0 || meq > m:
		return fail("slsqp: equality constraint number must lie in [0, m]")
	case m < 0:
		return fail("slsqp: constraint number must not be negative")
	case n < 1:
		return fail("slsqp: problem dimension must be greater than 0")
	}
	for i, l := range p.Lower {
		if !(l <= p.Upper[i]) {
			return fail(fmt.Sprintf("slsqp: bound error at %d", i))
		}
	}
	if p.Line != Inexact && p.Line != Exact {
		err := fail("slsqp: unrecognized line search mode")
		s.Destroy()
		return err
	}
	switch {
	case p.Objective == nil:
		return fail("slsqp: objective evaluator is required")
	case p.Gradient == nil:
		return fail("slsqp: gradient evaluator is required")
	case p.MaxIter < 1:
		return fail("slsqp: max iteration must be greater than 0")
	}

	la := max(1, m)
	s.n, s.m, s.meq, s.la = n, m, meq, la
	s.maxIter = p.MaxIter
	s.acc = p.Accuracy
	s.line = p.Line
	s.lower = slices.Clone(p.Lower)
	s.upper = slices.Clone(p.Upper)
	s.objective = p.Objective
	s.gradient = p.Gradient
	s.observer = p.Observer
	s.log = log

	s.work = make([]float64, RealWorkspaceLen(n, m, meq))
	s.jw = make([]int, IntWorkspaceLen(n, m, meq))

	s.c = make([]float64, la)
	s.g = make([]float64, n+1)
	s.a = make([]float64, la*(n+1))
	s.jac = make([][]float64, m)
	for j := range s.jac {
		s.jac[j] = make([]float64, n)
	}

	s.kernel = p.Kernel
	if s.kernel == nil {
		s.kernel = newKernel(p.Line)
	}

	s.ready = true
	return nil
}

// Destroy releases the session state and resets every scalar. It is
// idempotent and safe on a never-initialized session.
func (s *Session) Destroy() {
	*s = Session{}
}
