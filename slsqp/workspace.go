// Copyright ©2025 The optkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

// The workspace extents below are a hard contract with the step kernel:
// the kernel carves its scratch areas out of a single real buffer and a
// single integer buffer and is trusted to stay inside them. The session
// owns correct derivation, the kernel owns staying within bounds.

// RealWorkspaceLen returns the exact number of float64 scratch cells the
// step kernel requires for a problem with n variables, m constraints and
// meq equality constraints.
func RealWorkspaceLen(n, m, meq int) int {
	n1 := n + 1
	mineq := m - meq + 2*n1
	return /*LSQ*/ n1*(n1+1) + meq*(n1+1) + mineq*(n1+1) +
		/*LSI*/ (n1-meq+1)*(mineq+2) + 2*mineq +
		/*LSEI*/ (n1+mineq)*(n1-meq) + 2*meq + n1 +
		/*SLSQP*/ n1*n/2 + 2*m + 3*n + 3*n1 + 1
}

// IntWorkspaceLen returns the exact number of int scratch cells the step
// kernel requires.
func IntWorkspaceLen(n, m, meq int) int {
	n1 := n + 1
	return m - meq + 2*n1
}

// kernelViews carves the flat workspaces into the named areas the kernel
// works on. Every view is capacity-limited, so an undersized buffer or a
// bad offset fails at carve time instead of silently overlapping a
// neighbouring area.
type kernelViews struct {
	// penalty parameters of the L1 merit function.
	mu []float64 // 𝚖𝚊𝚡(1,m)
	// LDL factors of the approximate Lagrangian Hessian, packed
	// column-wise with D on the diagonal slots.
	l []float64 // ½n×(n+1)+1
	// location at the start of the current line search.
	x0 []float64 // n
	// multipliers for all constraints including bounds.
	r []float64 // 𝚖𝚊𝚡(1,m) + n + n
	// search direction and two general n1 scratch vectors.
	s, u, v []float64 // n+1 each
	// remaining scratch handed to the least-squares stack.
	w  []float64
	jw []int
}

// carveViews splits the session workspaces. wrk must hold exactly
// RealWorkspaceLen(n, m, meq) cells and jw IntWorkspaceLen(n, m, meq).
func carveViews(n, m, meq int, wrk []float64, jw []int) kernelViews {
	if len(wrk) != RealWorkspaceLen(n, m, meq) || len(jw) != IntWorkspaceLen(n, m, meq) {
		panic("slsqp: workspace size does not match problem dimensions")
	}

	n1 := n + 1
	la := max(1, m)

	im := 0
	il := im + la
	ix := il + n1*n/2 + 1
	ir := ix + n
	is := ir + n + n + la

	return kernelViews{
		mu: wrk[im:il:il],
		l:  wrk[il:ix:ix],
		x0: wrk[ix:ir:ir],
		r:  wrk[ir:is:is],
		s:  wrk[is : is+n1 : is+n1],
		u:  wrk[is+n1 : is+n1*2 : is+n1*2],
		v:  wrk[is+n1*2 : is+n1*3 : is+n1*3],
		w:  wrk[is+n1*3:],
		jw: jw,
	}
}
