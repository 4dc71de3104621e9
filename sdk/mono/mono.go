// Package mono 提供形狀保持（單調）插值與單調性修補工具。
//
// 為什麼不用一般 cubic spline：稀疏點之間的全域平滑樣條可能過衝，
// 在「較高 rank 必須對應較高 aggregate」的硬性約束下不可接受。
// Fritsch-Butland 分段三次插值保證不在有序資料點之間過衝。
package mono

import (
	"github.com/zintix-labs/scalelab/errs"
	"gonum.org/v1/gonum/interp"
)

// Interpolator 包裝一條形狀保持插值曲線，並記住其資料覆蓋範圍。
// 覆蓋範圍外的求值行為由呼叫端決定（混合器以邊界導數線性外插）。
type Interpolator struct {
	fb interp.FritschButland
	lo float64
	hi float64
}

// New 以嚴格遞增的 xs 建立插值曲線。
func New(xs, ys []float64) (*Interpolator, error) {
	if len(xs) < 2 {
		return nil, errs.Warnf("mono.New: need at least 2 points, got %d", len(xs))
	}
	it := &Interpolator{lo: xs[0], hi: xs[len(xs)-1]}
	if err := it.fb.Fit(xs, ys); err != nil {
		return nil, errs.Wrap(err, "mono.New: fit failed")
	}
	return it, nil
}

// At 在覆蓋範圍內求值；範圍外由 gonum 取邊界值，呼叫端應先以 Covers 判斷。
func (it *Interpolator) At(x float64) float64 {
	return it.fb.Predict(x)
}

// DerivAt 回傳曲線在 x 的一階導數。
func (it *Interpolator) DerivAt(x float64) float64 {
	return it.fb.PredictDerivative(x)
}

// Covers 回報 x 是否落在建構資料的範圍內。
func (it *Interpolator) Covers(x float64) bool {
	return x >= it.lo && x <= it.hi
}

// Lo 回傳覆蓋下界。
func (it *Interpolator) Lo() float64 { return it.lo }

// Hi 回傳覆蓋上界。
func (it *Interpolator) Hi() float64 { return it.hi }

// ForwardRepair 由前往後強制嚴格遞增：
// 任何不大於前一值的元素被抬升為 prev + inc。回傳修補次數。
func ForwardRepair(vals []float64, inc float64) int {
	n := 0
	for i := 1; i < len(vals); i++ {
		if vals[i] <= vals[i-1] {
			vals[i] = vals[i-1] + inc
			n++
		}
	}
	return n
}

// Violations 回報相鄰元素中非嚴格遞增的數量（檢查用，不修改資料）。
func Violations(vals []float64) int {
	n := 0
	for i := 1; i < len(vals); i++ {
		if vals[i] <= vals[i-1] {
			n++
		}
	}
	return n
}

// Clamp 將所有元素夾限到 [lo, hi]。
func Clamp(vals []float64, lo, hi float64) {
	for i := range vals {
		if vals[i] < lo {
			vals[i] = lo
		} else if vals[i] > hi {
			vals[i] = hi
		}
	}
}
