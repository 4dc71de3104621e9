// Package poly 提供曲線擬合所需的多項式基元。
//
// 本檔案 (poly.go) 實作升冪係數表示的多項式與最小平方擬合。
//
// 演算法原理：
//   - 擬合即求解 Vandermonde 矩陣的最小平方問題 A·c ≈ y。
//   - 以 QR 分解求解，對本場景的小型矩陣（8×5、4×4）數值穩定。
//
// 特性：
//   - 錨點數 >= 係數數時擬合必定有數值解；「成功與否」由下游的單調性檢查判定。
//   - 錨點數 == 係數數時為插值（殘差趨近於零）。
package poly

import (
	"math"

	"github.com/zintix-labs/scalelab/errs"
	"gonum.org/v1/gonum/mat"
)

// Poly 以升冪係數表示多項式：p[0] + p[1]x + p[2]x² + ...
type Poly []float64

// Eval 以 Horner 法求值。
func (p Poly) Eval(x float64) float64 {
	v := 0.0
	for i := len(p) - 1; i >= 0; i-- {
		v = v*x + p[i]
	}
	return v
}

// Deriv 回傳導函數的係數。
func (p Poly) Deriv() Poly {
	if len(p) <= 1 {
		return Poly{0}
	}
	d := make(Poly, len(p)-1)
	for i := 1; i < len(p); i++ {
		d[i-1] = p[i] * float64(i)
	}
	return d
}

// Degree 回傳多項式次數（以係數長度計，不裁剪零係數）。
func (p Poly) Degree() int {
	if len(p) == 0 {
		return 0
	}
	return len(p) - 1
}

// Fit 以最小平方法擬合 degree 次多項式。
// 點數必須至少為 degree+1；x 值不可重複（Vandermonde 退化）。
func Fit(xs, ys []float64, degree int) (Poly, error) {
	n := len(xs)
	if n != len(ys) {
		return nil, errs.Fatalf("poly.Fit: length mismatch x=%d y=%d", n, len(ys))
	}
	if n < degree+1 {
		return nil, errs.Warnf("poly.Fit: need at least %d points for degree %d, got %d",
			degree+1, degree, n)
	}
	for i := 1; i < n; i++ {
		for j := 0; j < i; j++ {
			if xs[i] == xs[j] {
				return nil, errs.Warnf("poly.Fit: duplicated x value %.4f", xs[i])
			}
		}
	}

	// Vandermonde 矩陣：A[i][j] = xs[i]^j
	a := mat.NewDense(n, degree+1, nil)
	for i := 0; i < n; i++ {
		v := 1.0
		for j := 0; j <= degree; j++ {
			a.Set(i, j, v)
			v *= xs[i]
		}
	}
	b := mat.NewVecDense(n, append([]float64(nil), ys...))

	var qr mat.QR
	qr.Factorize(a)
	var c mat.VecDense
	if err := qr.SolveVecTo(&c, false, b); err != nil {
		return nil, errs.Wrap(err, "poly.Fit: qr solve failed")
	}

	out := make(Poly, degree+1)
	for j := 0; j <= degree; j++ {
		out[j] = c.AtVec(j)
	}
	return out, nil
}

// MaxResidual 回傳多項式在給定錨點上的最大絕對殘差，作為擬合品質訊號。
func MaxResidual(p Poly, xs, ys []float64) float64 {
	maxErr := 0.0
	for i := range xs {
		if e := math.Abs(p.Eval(xs[i]) - ys[i]); e > maxErr {
			maxErr = e
		}
	}
	return maxErr
}

// MinDerivOn 在 [lo, hi] 區間等距取 samples 點，回傳導數的最小值。
// 呼叫端以此判斷曲線是否（在數值容忍內）單調遞增。
func MinDerivOn(p Poly, lo, hi float64, samples int) float64 {
	if samples < 2 {
		samples = 2
	}
	d := p.Deriv()
	minD := math.Inf(1)
	for t := 0; t < samples; t++ {
		x := lo + (hi-lo)*float64(t)/float64(samples-1)
		if v := d.Eval(x); v < minD {
			minD = v
		}
	}
	return minD
}
