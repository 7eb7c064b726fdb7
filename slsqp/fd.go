// Copyright ©2025 The optkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"github.com/optkit/optimize/numdiff"
)

// FiniteDiffGradient derives a GradientFunc from objective by forward
// finite differences, for problems where analytic derivatives are not
// available. n and m are the variable and constraint counts of the
// problem the evaluator will serve.
//
// The returned function owns its scratch buffers and must not be shared
// between concurrently running sessions.
func FiniteDiffGradient(objective ObjectiveFunc, n, m int) GradientFunc {
	my := 1 + m
	spec := &numdiff.Spec{
		N: n, M: my,
		Func: func(x, y []float64) {
			y[0] = objective(x, y[1:])
		},
	}
	diff := make([]float64, n*my)
	x0 := make([]float64, n)

	return func(x, grad []float64, jac [][]float64) {
		copy(x0, x)
		if err := spec.Diff(x0, diff); err != nil {
			panic(err)
		}
		copy(grad, diff[:n])
		for j, row := range jac {
			copy(row, diff[(1+j)*n:(2+j)*n])
		}
	}
}
