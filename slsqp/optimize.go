// Copyright ©2025 The optkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import "math"

// Optimize refines x in place until the kernel reports a terminal mode
// or the iteration cap is hit. x must have exactly n elements; on a size
// mismatch the BadInput sentinel is returned without touching x or
// calling any evaluator or the kernel.
//
// The returned count is the number of outer iterations performed, taken
// from the iteration-budget slot the kernel rewrites on every return.
//
// Each loop pass makes exactly one kernel call, and each evaluator is
// called at most once per pass, strictly as dictated by the mode the
// kernel returned on the previous pass.
func (s *Session) Optimize(x []float64) (Status, int) {
	if !s.ready || len(x) != s.n {
		s.log.Report(BadInput.String())
		return BadInput, 0
	}

	// The sign of the accuracy selects the kernel's line-search strategy.
	acc := math.Abs(s.acc)
	if s.line == Exact {
		acc = -acc
	}

	iter := s.maxIter
	mode := Converged
	s.iter = 0

	var f float64
	for {
		if mode == Converged || mode == EvalFunctions {
			f = s.objective(x, s.c[:s.m])
		}
		if mode == Converged || mode == EvalGradient {
			s.gradient(x, s.g[:s.n], s.jac)
			for j, row := range s.jac {
				dcopy(s.n, row, 1, s.a[j:], s.la)
			}
			s.observe(s.iter, x, f)
			s.iter++
		}

		s.kernel.Step(s.m, s.meq, s.la, s.n, x, s.lower, s.upper,
			f, s.c, s.g, s.a, &acc, &iter, &mode, s.work, s.jw)

		if !mode.Terminal() {
			continue
		}
		if mode == Converged {
			s.observe(s.iter, x, f)
			s.log.Reportn(mode.String()+" after iterations:", iter)
		} else {
			s.log.Reportn(mode.String()+", exit mode", int(mode))
		}
		return mode, iter
	}
}

func (s *Session) observe(k int, x []float64, f float64) {
	if s.observer != nil {
		s.observer(k, x, f, s.c[:s.m])
	}
}
