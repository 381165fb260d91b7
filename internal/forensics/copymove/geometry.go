package copymove

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// maxCondition is the largest design-matrix condition number accepted for
// an affine fit. Beyond it the member positions are treated as collinear.
const maxCondition = 1e8

// Affine maps a source point (x, y) to (A*x + B*y + C, D*x + E*y + F).
type Affine struct {
	A float64 `json:"a" yaml:"a"`
	B float64 `json:"b" yaml:"b"`
	C float64 `json:"c" yaml:"c"`
	D float64 `json:"d" yaml:"d"`
	E float64 `json:"e" yaml:"e"`
	F float64 `json:"f" yaml:"f"`
}

// Translation returns the affine transform that shifts by (dx, dy).
func Translation(dx, dy float64) Affine {
	return Affine{A: 1, C: dx, E: 1, F: dy}
}

// Apply maps (x, y) through the transform.
func (t Affine) Apply(x, y float64) (float64, float64) {
	return t.A*x + t.B*y + t.C, t.D*x + t.E*y + t.F
}

// IsTranslation reports whether the linear part is the identity within eps.
func (t Affine) IsTranslation(eps float64) bool {
	return math.Abs(t.A-1) <= eps && math.Abs(t.B) <= eps &&
		math.Abs(t.D) <= eps && math.Abs(t.E-1) <= eps
}

type point struct{ x, y float64 }

// fitAffine estimates the affine transform taking src[i] to dst[i] by least
// squares. ok is false when fewer than three points are given or they are
// (nearly) collinear.
//
// Points are centered on the source centroid before solving to keep the
// system well conditioned for large image coordinates.
func fitAffine(src, dst []point) (Affine, bool) {
	n := len(src)
	if n < 3 || len(dst) != n {
		return Affine{}, false
	}

	var mx, my float64
	for _, p := range src {
		mx += p.x
		my += p.y
	}
	mx /= float64(n)
	my /= float64(n)

	A := mat.NewDense(n*2, 6, nil)
	B := mat.NewVecDense(n*2, nil)
	for i := 0; i < n; i++ {
		x, y := src[i].x-mx, src[i].y-my

		A.Set(i*2, 0, x)
		A.Set(i*2, 1, y)
		A.Set(i*2, 2, 1)
		B.SetVec(i*2, dst[i].x)

		A.Set(i*2+1, 3, x)
		A.Set(i*2+1, 4, y)
		A.Set(i*2+1, 5, 1)
		B.SetVec(i*2+1, dst[i].y)
	}

	var qr mat.QR
	qr.Factorize(A)
	if c := qr.Cond(); math.IsNaN(c) || c > maxCondition {
		return Affine{}, false
	}

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, B); err != nil {
		return Affine{}, false
	}
	for i := 0; i < 6; i++ {
		if v := params.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			return Affine{}, false
		}
	}

	a, b, c := params.AtVec(0), params.AtVec(1), params.AtVec(2)
	d, e, f := params.AtVec(3), params.AtVec(4), params.AtVec(5)
	// Undo the centering: x' = a(x-mx) + b(y-my) + c.
	return Affine{
		A: a, B: b, C: c - a*mx - b*my,
		D: d, E: e, F: f - d*mx - e*my,
	}, true
}

// meanTranslation returns the translation by the mean displacement.
func meanTranslation(src, dst []point) Affine {
	var dx, dy float64
	for i := range src {
		dx += dst[i].x - src[i].x
		dy += dst[i].y - src[i].y
	}
	n := float64(len(src))
	return Translation(dx/n, dy/n)
}

// residual is the distance between t(s) and d.
func residual(t Affine, s, d point) float64 {
	x, y := t.Apply(s.x, s.y)
	return math.Hypot(x-d.x, y-d.y)
}
