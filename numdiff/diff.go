package numdiff

import (
	"errors"
	"math"
)

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)

// Method selects the finite-difference scheme.
type Method int

const (
	// Forward uses the first order accuracy forward difference.
	Forward Method = iota
	// Central uses the central difference at interior points and a second
	// order accuracy one-sided difference near the boundary.
	Central
)

// Bound is a [lower, upper] pair limiting one independent variable.
type Bound [2]float64

// Spec estimates the derivatives of a vector function by finite
// differences. A Spec may be reused across calls; the scratch buffers
// are allocated on first use and kept.
//
// Reference:
//   - https://en.wikipedia.org/wiki/Finite_difference
type Spec struct {
	N, M int
	// Func evaluates the function to differentiate: x is an n-vector,
	// the m results are stored into y.
	Func func(x, y []float64)
	// Method is the finite difference scheme, default Forward.
	Method Method
	// Bounds limit the range of function evaluation, optional.
	Bounds []Bound
	// RelStep sets the relative step size; the absolute step becomes
	// h = RelStep * sign(x0) * abs(x0). When neither RelStep nor AbsStep
	// is given, h = eps^(1/2 or 1/3) * sign(x0) * max(1, abs(x0)).
	RelStep float64
	// AbsStep sets the absolute step size directly, possibly adjusted to
	// fit into the bounds. For Central the sign is ignored.
	AbsStep float64
	// NoBoundCheck skips the x0 feasibility test.
	NoBoundCheck bool
	// TransJac stores the result transposed, one n-block per output
	// component instead of one per variable.
	TransJac bool

	f0, fx  []float64
	step    []float64
	oneSide []bool
}

// Check validates the configuration against x0 and diff and sizes the
// scratch buffers.
func (s *Spec) Check(x0, diff []float64) (err error) {
	switch {
	case s.N <= 0 || s.M <= 0:
		err = errors.New("numdiff: negative dimensions")
	case s.Method != Forward && s.Method != Central:
		err = errors.New("numdiff: unknown method")
	case s.Func == nil:
		err = errors.New("numdiff: function is required")
	case s.N != len(x0):
		return errors.New("numdiff: invalid x0 dimensions")
	case s.N*s.M != len(diff):
		return errors.New("numdiff: invalid diff dimensions")
	}

	if s.Bounds != nil {
		if len(s.Bounds) != len(x0) {
			err = errors.New("numdiff: invalid bound dimension")
		} else {
			for i, bound := range s.Bounds {
				lo, up := bound[0], bound[1]
				if math.IsNaN(lo) {
					lo = math.Inf(-1)
				}
				if math.IsNaN(up) {
					up = math.Inf(1)
				}
				if lo > up {
					err = errors.New("numdiff: invalid bound range")
					break
				}
				if !s.NoBoundCheck && (x0[i] < lo || x0[i] > up) {
					err = errors.New("numdiff: x0 violates bound constraints")
					break
				}
			}
		}
	}

	if len(s.fx) != s.M*(int(s.Method)+1) {
		s.f0 = make([]float64, s.M)
		s.fx = make([]float64, s.M*(int(s.Method)+1))
	}
	if len(s.step) != s.N {
		s.step = make([]float64, s.N)
	}
	if len(s.oneSide) != s.N*int(s.Method) {
		s.oneSide = make([]bool, s.N*int(s.Method))
	}
	return
}

// Diff approximates the derivatives of Func at x0 into diff. x0 is
// perturbed during the evaluations and restored before returning.
func (s *Spec) Diff(x0, diff []float64) error {
	if err := s.Check(x0, diff); err != nil {
		return err
	}

	bounded := false
	for _, bound := range s.Bounds {
		lo, up := bound[0], bound[1]
		if bounded = !(math.IsInf(lo, 0) && math.IsInf(up, 0)); bounded {
			break
		}
	}

	s.absoluteStep(x0)
	s.adjustToBounds(x0, bounded)

	if s.Method == Central {
		s.approxCentral(x0, diff)
	} else {
		s.approxForward(x0, diff)
	}
	return nil
}

// absoluteStep derives the per-variable step sizes from RelStep/AbsStep,
// falling back to the machine-precision default whenever the chosen step
// vanishes in floating point.
func (s *Spec) absoluteStep(x0 []float64) {
	h := s.step
	if len(h) != len(x0) {
		panic("bound check error")
	}

	var eps float64
	switch s.Method {
	case Forward:
		eps = sqrtEps
	case Central:
		eps = cubeEps
	default:
		panic("unknown method")
	}

	abs, rel := s.AbsStep, s.RelStep
	if abs == 0 && rel == 0 {
		for i, v := range x0 {
			h[i] = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
		}
		return
	}
	for i, v := range x0 {
		step := abs
		if step == 0 {
			step = math.Copysign(rel, v) * math.Abs(v)
		}
		if d := (v + step) - v; d == 0 {
			step = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
		}
		h[i] = step
	}
}

// adjustToBounds flips or shrinks steps that would step outside the
// bounds. For Central, variables too close to a bound switch to the
// one-sided second order formula.
func (s *Spec) adjustToBounds(x0 []float64, bounded bool) {
	h, o := s.step, s.oneSide
	if s.Method == Central {
		for i, v := range h {
			h[i] = math.Abs(v)
		}
		for i := range o {
			o[i] = false
		}
	}

	if !bounded {
		return
	}

	b := s.Bounds
	if len(x0) != len(b) || len(x0) != len(h) {
		panic("bound check error")
	}

	if s.Method == Forward {
		for i, v := range x0 {
			lb, ub := b[i][0], b[i][1]
			ld, ud := v-lb, ub-v
			h0 := h[i]
			x := v + h0
			violated := x < lb || x > ub
			fitting := math.Abs(h0) < math.Max(ld, ud)
			if violated && fitting {
				h[i] = -h0
			} else if !fitting {
				if ud >= ld {
					h[i] = ud
				} else {
					h[i] = -ld
				}
			}
		}
		return
	}

	if len(x0) != len(o) {
		panic("bound check error")
	}
	for i, v := range x0 {
		lb, ub := b[i][0], b[i][1]
		ld, ud := v-lb, ub-v
		central := ld >= h[i] && ud >= h[i]
		if !central {
			if ud >= ld {
				h[i] = math.Min(h[i], 0.5*ud)
			} else {
				h[i] = -math.Min(h[i], 0.5*ld)
			}
			o[i] = true
		}
		minDist := math.Min(ud, ld)
		if !central && math.Abs(h[i]) <= minDist {
			h[i] = minDist
			o[i] = false
		}
	}
}

func (s *Spec) approxForward(x0, df []float64) {
	f0, fx, h, n := s.f0, s.fx, s.step, s.N
	if len(h) != len(x0) || len(f0) != len(fx) {
		panic("bound check error")
	}

	fun := s.Func
	fun(x0, f0)
	for i, step := range h {
		t := x0[i]
		x0[i] = t + step
		fun(x0, fx)
		d := 1.0 / step
		if !s.TransJac {
			for j := range f0 {
				df[i+j*n] = (fx[j] - f0[j]) * d
			}
		} else {
			dst := df[i*s.M : (i+1)*s.M]
			for j := range f0 {
				dst[j] = (fx[j] - f0[j]) * d
			}
		}
		x0[i] = t
	}
}

func (s *Spec) approxCentral(x0, df []float64) {
	f0, h, o, n, m := s.f0, s.step, s.oneSide, s.N, s.M
	f1, f2 := s.fx[:m], s.fx[m:]
	if len(h) != len(x0) || len(h) != len(o) || len(f0) != len(f1) || len(f0) != len(f2) {
		panic("bound check error")
	}

	fun := s.Func
	fun(x0, f0)
	for i, step := range h {
		x := x0[i]
		d := 1.0 / (2 * step)
		var diff func(j int) float64
		if o[i] {
			// Second order one-sided formula near a bound.
			x0[i] = x + step
			fun(x0, f1)
			x0[i] = x + 2*step
			fun(x0, f2)
			diff = func(j int) float64 { return (4*f1[j] - 3*f0[j] - f2[j]) * d }
		} else {
			x0[i] = x - step
			fun(x0, f1)
			x0[i] = x + step
			fun(x0, f2)
			diff = func(j int) float64 { return (f2[j] - f1[j]) * d }
		}
		if !s.TransJac {
			for j := range f0 {
				df[i+j*n] = diff(j)
			}
		} else {
			dst := df[i*m : (i+1)*m]
			for j := range f0 {
				dst[j] = diff(j)
			}
		}
		x0[i] = x
	}
}
