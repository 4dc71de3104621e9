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

// Package curve 定義科目曲線的錨點模型與擬合流程。
//
// 一條 general 科目曲線由 8 個錨點決定：
//
//	{Min, Lower, P25, P50, P75, P90, P99, Max}
//
// 其中 P25..P99 為量測供應端提供的固定錨點，擬合流程不得修改；
// Min 與 Lower 為邊界點（僅 Min.X 與 Lower.Y 兩個自由度），
// Max 由 P90->P99 趨勢外插。錨點集為不可變快照，
// 邊界調整一律透過 WithBoundary 重建新快照。
package curve

import (
	"math"

	"github.com/zintix-labs/scalelab/sdk/poly"
	"github.com/zintix-labs/scalelab/spec"
)

const (
	// DefaultMinX 為未經搜尋時的 Min.X 預設位置。
	DefaultMinX = 10.0

	// MaxRaw 為原始分數上限。
	MaxRaw = 100.0

	// LowerYCap : Lower.Y 不得超過 P25.Y 的這個比例。
	LowerYCap = 0.95
)

// Anchor 為一個 (原始分數, 換算分數) 錨點。
type Anchor struct {
	X float64
	Y float64
}

// AnchorSet 為一條科目曲線的完整錨點快照。
type AnchorSet struct {
	Min   Anchor
	Lower Anchor
	P25   Anchor
	P50   Anchor
	P75   Anchor
	P90   Anchor
	P99   Anchor
	Max   Anchor
}

// Xs 依序回傳 8 個錨點的 X 值。
func (as AnchorSet) Xs() []float64 {
	return []float64{as.Min.X, as.Lower.X, as.P25.X, as.P50.X, as.P75.X, as.P90.X, as.P99.X, as.Max.X}
}

// Ys 依序回傳 8 個錨點的 Y 值。
func (as AnchorSet) Ys() []float64 {
	return []float64{as.Min.Y, as.Lower.Y, as.P25.Y, as.P50.Y, as.P75.Y, as.P90.Y, as.P99.Y, as.Max.Y}
}

// LowerXs 回傳下段 4 點（Min, Lower, P25, P50）的 X 值，供三次擬合。
func (as AnchorSet) LowerXs() []float64 {
	return []float64{as.Min.X, as.Lower.X, as.P25.X, as.P50.X}
}

// LowerYs 回傳下段 4 點的 Y 值。
func (as AnchorSet) LowerYs() []float64 {
	return []float64{as.Min.Y, as.Lower.Y, as.P25.Y, as.P50.Y}
}

// MinGap 回傳五個固定錨點相鄰 X 間距的最小值（下限 1）。
// Min->Lower 與 Lower->P25 兩段都必須至少留出這個間距，
// 否則下段曲線沒有空間維持單調。
func MinGap(pd *spec.PercentileData) float64 {
	pts := pd.Points()
	gap := math.Inf(1)
	for i := 1; i < len(pts); i++ {
		if d := pts[i].Raw - pts[i-1].Raw; d < gap {
			gap = d
		}
	}
	return math.Max(1, gap)
}

// MinXUpper 回傳 Min.X 允許的上界：P25.X - 2*gap。
// 若為負值表示搜尋空間塌縮（固定錨點過度擁擠）。
func MinXUpper(pd *spec.PercentileData) float64 {
	return pd.P25.Raw - 2*MinGap(pd)
}

// Derive 由五個固定百分位錨點推導完整錨點集：
//
//   - Min.Y = 0；Min.X = min(10, P25.X-2g)，並夾限不小於 0。
//   - Max.X = 100；Max.Y 由 P90->P99 斜率線性外插，
//     下限 P99.Y+0.5，上限 100。
//   - Lower.X 恆為 Min.X 與 P25.X 的中點。
//   - Lower.Y 先以通過 (Min, P25, P50) 的二次曲線估計，
//     再夾限到 [0, 0.95*P25.Y]，給下尾一個平滑且單調的起始形狀。
func Derive(pd *spec.PercentileData) AnchorSet {
	as := AnchorSet{
		P25: Anchor{pd.P25.Raw, pd.P25.Scaled},
		P50: Anchor{pd.P50.Raw, pd.P50.Scaled},
		P75: Anchor{pd.P75.Raw, pd.P75.Scaled},
		P90: Anchor{pd.P90.Raw, pd.P90.Scaled},
		P99: Anchor{pd.P99.Raw, pd.P99.Scaled},
	}

	minX := math.Min(DefaultMinX, MinXUpper(pd))
	minX = math.Max(0, minX)

	as.Max = Anchor{X: MaxRaw, Y: deriveMaxY(pd)}
	return as.WithBoundary(minX, quadLowerY(pd, minX))
}

// WithBoundary 以給定的邊界參數重建錨點集（Lower.X 一律重算為中點）。
// 固定錨點與 Max 不變；回傳新快照，原快照不動。
func (as AnchorSet) WithBoundary(minX, lowerY float64) AnchorSet {
	out := as
	out.Min = Anchor{X: minX, Y: 0}
	out.Lower = Anchor{X: (minX + as.P25.X) / 2, Y: lowerY}
	return out
}

// deriveMaxY 由 P90->P99 斜率外插 Max.Y。
func deriveMaxY(pd *spec.PercentileData) float64 {
	maxY := pd.P99.Scaled + 0.5
	if pd.P99.Raw > pd.P90.Raw {
		slope := (pd.P99.Scaled - pd.P90.Scaled) / (pd.P99.Raw - pd.P90.Raw)
		ext := pd.P99.Scaled + slope*(MaxRaw-pd.P99.Raw)
		maxY = math.Max(ext, pd.P99.Scaled+0.5)
	}
	maxY = math.Min(100.0, maxY)
	return math.Round(maxY*100) / 100
}

// quadLowerY 以通過 (minX,0), (P25), (P50) 的二次曲線在 Lower.X 取值，
// 並夾限到 [0, 0.95*P25.Y]。
func quadLowerY(pd *spec.PercentileData, minX float64) float64 {
	lowerX := (minX + pd.P25.Raw) / 2
	q, err := poly.Fit(
		[]float64{minX, pd.P25.Raw, pd.P50.Raw},
		[]float64{0, pd.P25.Scaled, pd.P50.Scaled},
		2,
	)
	if err != nil {
		// 退化情形（重複 x）只可能來自非法輸入，normalize 已擋下；保守回退。
		return pd.P25.Scaled * LowerYCap / 2
	}
	y := q.Eval(lowerX)
	return math.Max(0, math.Min(pd.P25.Scaled*LowerYCap, y))
}
