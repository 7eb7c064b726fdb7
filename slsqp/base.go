// Copyright ©2025 The optkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package slsqp solves bound-, equality- and inequality-constrained
// nonlinear programs with SLSQP (Sequential Least-Squares Quadratic
// Programming) behind a reverse-communication session: the numerical
// kernel never calls user code, it returns a Status asking the driver
// for function or gradient data and is resumed with the results.
//
// Dieter Kraft: "A software package for sequential quadratic programming".
// DFVLR-FB 88-28, 1988
package slsqp

const (
	zero = 0.0
	one  = 1.0
	two  = 2.0
	four = 4.0
	ten  = 10.0
	hun  = 100.0
	eps  = float64(7)/3 - float64(4)/3 - 1.
)

// Status is the mode code exchanged between the driver and the step
// kernel. Negative and zero values except Converged are data requests,
// values above EvalFunctions are terminal failures.
type Status int

const (
	// BadInput is the usage sentinel returned by Optimize when the caller
	// supplied an x whose size does not match the session. It is never
	// produced by a kernel.
	BadInput Status = -2
	// EvalGradient requests the objective gradient and constraint normals.
	EvalGradient Status = -1
	// Converged reports that the required accuracy has been obtained.
	Converged Status = 0
	// EvalFunctions requests the objective and constraint values.
	EvalFunctions Status = 1
	// EqConsExceedN more equality constraints than independent variables.
	EqConsExceedN Status = 2
	// SubExceedMaxIter more than max iterations in the least-squares subproblem.
	SubExceedMaxIter Status = 3
	// ConsIncompatible inequality constraints are incompatible.
	ConsIncompatible Status = 4
	// SingularE matrix E is not of full rank in the LSI subproblem.
	SingularE Status = 5
	// SingularC matrix C is not of full rank in the LSEI subproblem.
	SingularC Status = 6
	// RankDefect rank-deficient equality constraints in the HFTI subproblem.
	RankDefect Status = 7
	// NotDescent positive directional derivative for the line search.
	NotDescent Status = 8
	// ExceedMaxIter more than max iterations in the outer SQP loop.
	ExceedMaxIter Status = 9
)

// Aliases used inside the least-squares stack, which reuses the shared
// numbering for its own outcomes. The kernel translates them before
// returning: solved never reaches a caller, and badDims surfaces only
// through the fresh-start dimension check.
const (
	solved  Status = 1
	badDims Status = 2
)

// Terminal reports whether s ends an optimization, successfully or not.
func (s Status) Terminal() bool {
	return s != EvalFunctions && s != EvalGradient
}

func (s Status) String() string {
	switch s {
	case BadInput:
		return "argument dimensions do not match the session"
	case EvalGradient:
		return "gradient evaluation required"
	case Converged:
		return "required accuracy obtained"
	case EvalFunctions:
		return "function evaluation required"
	case EqConsExceedN:
		return "more equality constraints than independent variables"
	case SubExceedMaxIter:
		return "iteration limit exceeded in least-squares subproblem"
	case ConsIncompatible:
		return "inequality constraints incompatible"
	case SingularE:
		return "singular matrix E in least-squares subproblem"
	case SingularC:
		return "singular matrix C in least-squares subproblem"
	case RankDefect:
		return "rank-deficient equality constraint subproblem"
	case NotDescent:
		return "positive directional derivative in line search"
	case ExceedMaxIter:
		return "iteration limit exceeded"
	}
	return "unknown error"
}
