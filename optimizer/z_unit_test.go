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

package optimizer

import (
	"testing"

	"github.com/zintix-labs/scalelab/curve"
	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/spec"
)

func englishPD() *spec.PercentileData {
	return &spec.PercentileData{
		P25: spec.Point{Raw: 61, Scaled: 52.67},
		P50: spec.Point{Raw: 72, Scaled: 70.12},
		P75: spec.Point{Raw: 83, Scaled: 83.18},
		P90: spec.Point{Raw: 91, Scaled: 89.48},
		P99: spec.Point{Raw: 99, Scaled: 93.60},
	}
}

func TestRunFindsMonotonicPlacement(t *testing.T) {
	s, err := New(englishPD())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	s.SetWorkers(1)
	p, err := s.Run()
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// 邊界必須落在搜尋空間內
	upper := curve.MinXUpper(englishPD())
	if p.MinX < 0 || p.MinX > upper {
		t.Fatalf("MinX %v outside [0, %v]", p.MinX, upper)
	}
	if p.LowerY < LowerYFloor || p.LowerY > 52.67*curve.LowerYCap {
		t.Fatalf("LowerY %v outside search range", p.LowerY)
	}
	if want := (p.MinX + 61) / 2; p.LowerX != want {
		t.Fatalf("LowerX must be midpoint %v, got %v", want, p.LowerX)
	}
	if p.Curve == nil || !p.Curve.Valid() {
		t.Fatalf("winning curve must pass the monotonicity check")
	}
	if p.FitErr != p.Curve.MaxFitErr {
		t.Fatalf("FitErr must mirror the curve residual: %v vs %v", p.FitErr, p.Curve.MaxFitErr)
	}
}

func TestRunDeterministicAcrossWorkers(t *testing.T) {
	s1, err := New(englishPD())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	s1.SetWorkers(1)
	p1, err := s1.Run()
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	s4, err := New(englishPD())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	s4.SetWorkers(4)
	p4, err := s4.Run()
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if p1.MinX != p4.MinX || p1.LowerY != p4.LowerY || p1.FitErr != p4.FitErr {
		t.Fatalf("parallel run diverged: %+v vs %+v", p1, p4)
	}
}

func TestNewCollapsedSearchSpace(t *testing.T) {
	// P25.X - 2g < 0：固定錨點過度擁擠
	pd := &spec.PercentileData{
		P25: spec.Point{Raw: 3, Scaled: 40},
		P50: spec.Point{Raw: 20, Scaled: 60},
		P75: spec.Point{Raw: 40, Scaled: 75},
		P90: spec.Point{Raw: 60, Scaled: 85},
		P99: spec.Point{Raw: 80, Scaled: 95},
	}
	if _, err := New(pd); errs.Level(err) != errs.Warn {
		t.Fatalf("collapsed space should be warn, got %v", err)
	}
}

func TestNewEmptyLowerRange(t *testing.T) {
	// P25.Y 太低：Lower.Y 沒有可行區間
	pd := &spec.PercentileData{
		P25: spec.Point{Raw: 10, Scaled: 0.05},
		P50: spec.Point{Raw: 12, Scaled: 20},
		P75: spec.Point{Raw: 14, Scaled: 40},
		P90: spec.Point{Raw: 16, Scaled: 60},
		P99: spec.Point{Raw: 18, Scaled: 80},
	}
	if _, err := New(pd); errs.Level(err) != errs.Warn {
		t.Fatalf("empty lower range should be warn, got %v", err)
	}
}

func TestFromPinned(t *testing.T) {
	pd := englishPD()
	base := curve.Derive(pd)

	p, err := FromPinned(pd, &spec.BoundarySetting{MinX: base.Min.X, LowerY: base.Lower.Y})
	if err != nil {
		t.Fatalf("pinned fit failed: %v", err)
	}
	if p.MinX != base.Min.X || p.LowerY != base.Lower.Y {
		t.Fatalf("pinned placement must honor the pin: %+v", p)
	}
	if p.LowerX != base.Lower.X {
		t.Fatalf("LowerX must be recomputed midpoint: %v", p.LowerX)
	}
	if p.Curve == nil || !p.Curve.Valid() {
		t.Fatalf("pinned curve should stay monotonic")
	}
}
