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
	"math"
	"testing"

	"github.com/zintix-labs/scalelab/spec"
)

// 2025 English 的實際量測錨點
func englishPD() *spec.PercentileData {
	return &spec.PercentileData{
		P25: spec.Point{Raw: 61, Scaled: 52.67},
		P50: spec.Point{Raw: 72, Scaled: 70.12},
		P75: spec.Point{Raw: 83, Scaled: 83.18},
		P90: spec.Point{Raw: 91, Scaled: 89.48},
		P99: spec.Point{Raw: 99, Scaled: 93.60},
	}
}

func TestDeriveAnchors(t *testing.T) {
	pd := englishPD()
	as := Derive(pd)

	if as.Min.Y != 0 {
		t.Fatalf("Min.Y must be 0, got %v", as.Min.Y)
	}
	if as.Min.X != DefaultMinX {
		t.Fatalf("expected Min.X=%v for well-spread anchors, got %v", DefaultMinX, as.Min.X)
	}
	if as.Max.X != MaxRaw {
		t.Fatalf("Max.X must be %v, got %v", MaxRaw, as.Max.X)
	}
	if want := (as.Min.X + as.P25.X) / 2; as.Lower.X != want {
		t.Fatalf("Lower.X must be midpoint %v, got %v", want, as.Lower.X)
	}
	if as.Lower.Y < 0 || as.Lower.Y > as.P25.Y*LowerYCap {
		t.Fatalf("Lower.Y %v outside [0, %v]", as.Lower.Y, as.P25.Y*LowerYCap)
	}
	// P90->P99 斜率 0.515/1；外插到 100 低於 P99.Y+0.5，取下限
	if as.Max.Y < as.P99.Y+0.5-1e-9 || as.Max.Y > 100 {
		t.Fatalf("Max.Y %v outside [P99.Y+0.5, 100]", as.Max.Y)
	}

	// 固定錨點不得被修改
	if as.P25 != (Anchor{61, 52.67}) || as.P99 != (Anchor{99, 93.60}) {
		t.Fatalf("fixed anchors were modified: %+v", as)
	}
}

func TestDeriveCrowdedAnchors(t *testing.T) {
	// 錨點擁擠：Min.X 被 P25.X-2g 壓到低於預設值
	pd := &spec.PercentileData{
		P25: spec.Point{Raw: 8, Scaled: 20},
		P50: spec.Point{Raw: 10, Scaled: 40},
		P75: spec.Point{Raw: 12, Scaled: 60},
		P90: spec.Point{Raw: 14, Scaled: 75},
		P99: spec.Point{Raw: 16, Scaled: 90},
	}
	as := Derive(pd)
	if as.Min.X >= DefaultMinX {
		t.Fatalf("crowded anchors should pull Min.X below default, got %v", as.Min.X)
	}
	if as.Min.X < 0 {
		t.Fatalf("Min.X must not be negative, got %v", as.Min.X)
	}
}

func TestWithBoundaryImmutable(t *testing.T) {
	as := Derive(englishPD())
	moved := as.WithBoundary(5, 12)

	if moved.Min.X != 5 || moved.Lower.Y != 12 {
		t.Fatalf("boundary not applied: %+v", moved)
	}
	if moved.Lower.X != (5+as.P25.X)/2 {
		t.Fatalf("Lower.X not recomputed: %v", moved.Lower.X)
	}
	if as.Min.X != DefaultMinX {
		t.Fatalf("original snapshot mutated: %+v", as.Min)
	}
	if moved.P50 != as.P50 || moved.Max != as.Max {
		t.Fatalf("fixed anchors changed by WithBoundary")
	}
}

func TestFitEnglish(t *testing.T) {
	as := Derive(englishPD())
	cv, err := Fit(as)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if len(cv.Quartic) != 5 || len(cv.Cubic) != 4 {
		t.Fatalf("unexpected polynomial sizes: %d/%d", len(cv.Quartic), len(cv.Cubic))
	}
	if !cv.Valid() {
		t.Fatalf("English curve should be monotone, min deriv too low")
	}
	// 8 點擬 4 次為最小平方：殘差不為零但要小
	if cv.MaxFitErr > 3.0 {
		t.Fatalf("fit residual too large: %v", cv.MaxFitErr)
	}
	// 三次式通過下段 4 點（插值）
	for i, x := range as.LowerXs() {
		y := as.LowerYs()[i]
		if e := math.Abs(cv.Cubic.Eval(x) - y); e > 1e-6 {
			t.Fatalf("cubic residual %v at x=%v", e, x)
		}
	}
}

func TestEvalClamped(t *testing.T) {
	cv, err := Fit(Derive(englishPD()))
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if got := cv.EvalClamped(cv.Anchors.Min.X - 1); got != 0 {
		t.Fatalf("below Min.X must be 0, got %v", got)
	}
	if got := cv.EvalClamped(100); got > cv.Anchors.Max.Y {
		t.Fatalf("clamp to Max.Y failed: %v > %v", got, cv.Anchors.Max.Y)
	}
	mid := cv.EvalClamped(72)
	if mid < 60 || mid > 80 {
		t.Fatalf("P50 area evaluation off: %v", mid)
	}
}

func TestMinGapFloor(t *testing.T) {
	pd := &spec.PercentileData{
		P25: spec.Point{Raw: 90, Scaled: 50},
		P50: spec.Point{Raw: 90.2, Scaled: 60},
		P75: spec.Point{Raw: 93, Scaled: 70},
		P90: spec.Point{Raw: 96, Scaled: 80},
		P99: spec.Point{Raw: 99, Scaled: 90},
	}
	if g := MinGap(pd); g != 1 {
		t.Fatalf("gap must floor at 1, got %v", g)
	}
}
