// Copyright ©2025 The optkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import "math"

// Level-1 vector kernels used throughout the least-squares stack. They
// follow the reference BLAS conventions with explicit lengths and
// strides; an out-of-range access fails by panic rather than silent
// truncation.

// daxpy performs dy += da*dx.
func daxpy(n int, da float64, dx []float64, incx int, dy []float64, incy int) {
	if n <= 0 || da == zero {
		return
	}
	if incx == 1 && incy == 1 {
		x, y := dx[:n], dy[:n]
		for i := range y {
			y[i] += da * x[i]
		}
		return
	}
	lx, ly := uint(incx*(n-1)), uint(incy*(n-1))
	if lx >= uint(len(dx)) || ly >= uint(len(dy)) {
		panic("bound check error")
	}
	for ix, iy := uint(0), uint(0); ix <= lx && iy <= ly; ix, iy = ix+uint(incx), iy+uint(incy) {
		dy[iy] += da * dx[ix]
	}
}

// ddot computes the dot product of two strided vectors.
func ddot(n int, dx []float64, incx int, dy []float64, incy int) (dot float64) {
	if n <= 0 {
		return zero
	}
	if incx == 1 && incy == 1 {
		x, y := dx[:n], dy[:n]
		for i := range y {
			dot += x[i] * y[i]
		}
		return dot
	}
	lx, ly := uint(incx*(n-1)), uint(incy*(n-1))
	if lx >= uint(len(dx)) || ly >= uint(len(dy)) {
		panic("bound check error")
	}
	for ix, iy := uint(0), uint(0); ix <= lx && iy <= ly; ix, iy = ix+uint(incx), iy+uint(incy) {
		dot += dx[ix] * dy[iy]
	}
	return dot
}

// dcopy copies a strided vector dx into dy.
func dcopy(n int, dx []float64, incx int, dy []float64, incy int) {
	if n <= 0 {
		return
	}
	if incx == 1 && incy == 1 {
		copy(dy[:n], dx[:n])
		return
	}
	lx, ly := uint(incx*(n-1)), uint(incy*(n-1))
	if lx >= uint(len(dx)) || ly >= uint(len(dy)) {
		panic("bound check error")
	}
	for ix, iy := uint(0), uint(0); ix <= lx && iy <= ly; ix, iy = ix+uint(incx), iy+uint(incy) {
		dy[iy] = dx[ix]
	}
}

// dscal scales a strided vector by a constant.
func dscal(n int, da float64, dx []float64, incx int) {
	if n <= 0 || incx <= 0 {
		return
	}
	if incx == 1 {
		x := dx[:n]
		for i := range x {
			x[i] *= da
		}
		return
	}
	l := uint(incx * n)
	if l > uint(len(dx)) {
		panic("bound check error")
	}
	for i := uint(0); i < l; i += uint(incx) {
		dx[i] *= da
	}
}

// dnrm2 computes the Euclidean norm with scaling against overflow.
func dnrm2(n int, x []float64, incx int) float64 {
	if n < 1 || incx < 1 {
		return zero
	}
	m := uint(incx * n)
	if m > uint(len(x)) {
		panic("bound check error")
	}
	if n == 1 {
		return math.Abs(x[0])
	}
	scale, ssq := zero, one
	for i := uint(0); i < m; i += uint(incx) {
		if absxi := math.Abs(x[i]); absxi > zero {
			if scale < absxi {
				sxi := scale / absxi
				ssq = 1 + ssq*sxi*sxi
				scale = absxi
			} else {
				sxi := absxi / scale
				ssq += sxi * sxi
			}
		}
	}
	return scale * math.Sqrt(ssq)
}

// dzero clears a vector.
func dzero(dx []float64) {
	for i := range dx {
		dx[i] = zero
	}
}
