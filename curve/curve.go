// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package curve

import (
	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/sdk/poly"
)

const (
	// DerivTol : 導數容忍值，取樣導數低於 -DerivTol 即視為非單調。
	DerivTol = 1e-3

	// DerivSamples : 單調性檢查在定義域上的取樣點數。
	DerivSamples = 51
)

// Curve 為一條擬合完成的科目曲線。
// Quartic 通過全部 8 點，Cubic 僅通過下段 4 點（供下尾精細換算）。
// MaxFitErr 為四次式在 8 個錨點上的最大絕對殘差，是品質訊號而非硬性門檻。
type Curve struct {
	Anchors   AnchorSet
	Quartic   poly.Poly
	Cubic     poly.Poly
	MaxFitErr float64
}

// Fit 對錨點集執行四次與三次最小平方擬合。
// 擬合本身不會失敗重試；單調與否交給 Valid 判定。
func Fit(as AnchorSet) (*Curve, error) {
	xs, ys := as.Xs(), as.Ys()

	quartic, err := poly.Fit(xs, ys, 4)
	if err != nil {
		return nil, errs.Wrap(err, "curve.Fit: quartic fit failed")
	}
	cubic, err := poly.Fit(as.LowerXs(), as.LowerYs(), 3)
	if err != nil {
		return nil, errs.Wrap(err, "curve.Fit: cubic fit failed")
	}

	return &Curve{
		Anchors:   as,
		Quartic:   quartic,
		Cubic:     cubic,
		MaxFitErr: poly.MaxResidual(quartic, xs, ys),
	}, nil
}

// Valid 檢查四次式導數在 [Min.X, Max.X] 取樣點上是否全數不低於 -DerivTol。
func (c *Curve) Valid() bool {
	return poly.MinDerivOn(c.Quartic, c.Anchors.Min.X, c.Anchors.Max.X, DerivSamples) >= -DerivTol
}

// EvalClamped 求曲線在原始分數 raw 的換算值：
// Min.X 以下為 0，其餘夾限到 [0, Max.Y]。模擬引擎以此評估每一科。
func (c *Curve) EvalClamped(raw float64) float64 {
	if raw < c.Anchors.Min.X {
		return 0
	}
	v := c.Quartic.Eval(raw)
	if v < 0 {
		return 0
	}
	if v > c.Anchors.Max.Y {
		return c.Anchors.Max.Y
	}
	return v
}
