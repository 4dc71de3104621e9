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

package blend

import (
	"math"
	"strings"
	"testing"

	"github.com/zintix-labs/scalelab/dto"
	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/sdk/mono"
	"github.com/zintix-labs/scalelab/spec"
)

func testSetting() *spec.ScaleSetting {
	return &spec.ScaleSetting{
		Year: 2025,
		Grid: spec.GridSetting{Lo: 30.05, Hi: 99.95, Step: 0.05},
		References: []spec.ReferenceSetting{
			{Year: 2024, Weight: 0.6, FadeZone: 8.0, FadeProfile: spec.FadeCubic},
			{Year: 2023, Weight: 0.4, FadeZone: 2.0, FadeProfile: spec.FadeLinear},
		},
		LowCutoff: 48.0, CutoffProbe: 52.0,
		DecelRate: 0.0003, DecelFloor: 0.85,
		TopN: 5, AggMax: 500,
		MinIncrement: 0.01, MinDecrement: 0.01,
	}
}

// linPairs 產生 rank 在 [lo, hi] 的線性參考資料。
func linPairs(lo, hi, step, base, slope float64) []dto.RankAgg {
	var out []dto.RankAgg
	for r := lo; r <= hi+1e-9; r += step {
		out = append(out, dto.RankAgg{Rank: r, Agg: base + slope*(r-lo)})
	}
	return out
}

func TestReferenceCleaning(t *testing.T) {
	rs := spec.ReferenceSetting{Year: 2024, Weight: 1, FadeProfile: spec.FadeLinear}
	pairs := []dto.RankAgg{
		{Rank: 90, Agg: 400}, // 未排序輸入
		{Rank: 50, Agg: 200},
		{Rank: 50, Agg: 210}, // 重複 rank：取平均 205
		{Rank: 70, Agg: 190}, // 低於前值：向前修補
	}
	r, err := NewReference(rs, pairs, 0.01)
	if err != nil {
		t.Fatalf("new reference failed: %v", err)
	}
	if r.dedups != 1 || r.repairs != 1 {
		t.Fatalf("expected 1 dedup and 1 repair, got %d/%d", r.dedups, r.repairs)
	}
	if got := r.At(50); got != 205 {
		t.Fatalf("dedup average broken: %v", got)
	}
	if got := r.At(70); got != 205.01 {
		t.Fatalf("forward repair broken: %v", got)
	}
	if !r.Covers(60) || r.Covers(49.9) {
		t.Fatalf("coverage [%v, %v] broken", r.Lo(), r.Hi())
	}
}

func TestReferenceTooFewPoints(t *testing.T) {
	rs := spec.ReferenceSetting{Year: 2024, Weight: 1}
	if _, err := NewReference(rs, []dto.RankAgg{{Rank: 50, Agg: 200}}, 0.01); errs.Level(err) != errs.Fatal {
		t.Fatalf("single point reference should be fatal, got %v", err)
	}
}

func TestReferenceDegenerateRanks(t *testing.T) {
	rs := spec.ReferenceSetting{Year: 2024, Weight: 1}
	// 兩點同 rank：去重後只剩一點，無法插值
	pairs := []dto.RankAgg{{Rank: 50, Agg: 200}, {Rank: 50, Agg: 210}}
	_, err := NewReference(rs, pairs, 0.01)
	if err == nil {
		t.Fatal("degenerate ranks should fail to build an interpolator")
	}
	if !strings.Contains(err.Error(), "year=2024") {
		t.Fatalf("error should carry the reference year, got %v", err)
	}
}

func TestWeightFade(t *testing.T) {
	rs := spec.ReferenceSetting{Year: 2024, Weight: 0.6, FadeZone: 8.0, FadeProfile: spec.FadeCubic}
	r, err := NewReference(rs, linPairs(37.46, 99.95, 0.5, 199, 4.6), 0.01)
	if err != nil {
		t.Fatalf("new reference failed: %v", err)
	}
	// 覆蓋範圍外為 0
	if w := r.weightAt(30); w != 0 {
		t.Fatalf("weight outside coverage must be 0, got %v", w)
	}
	// 衰減帶內：cubic 強烈壓低
	half := r.weightAt(r.Lo() + 4.0) // t = 0.5
	if math.Abs(half-0.6*0.125) > 1e-9 {
		t.Fatalf("cubic fade at t=0.5 should be w/8, got %v", half)
	}
	// 衰減帶外：全額權重
	if w := r.weightAt(r.Lo() + 10); w != 0.6 {
		t.Fatalf("full weight expected past fade zone, got %v", w)
	}
}

func TestBuildBlendsAndExtrapolates(t *testing.T) {
	set := testSetting()
	b := New(set, nil)

	// 2024 覆蓋 37.46 以上，2023 覆蓋 31.42 以上：31.42 以下必須外插
	if _, err := b.AddReference(set.References[0], linPairs(37.46, 99.95, 0.5, 199, 4.6)); err != nil {
		t.Fatalf("add 2024 failed: %v", err)
	}
	if _, err := b.AddReference(set.References[1], linPairs(31.42, 99.95, 0.5, 148, 4.9)); err != nil {
		t.Fatalf("add 2023 failed: %v", err)
	}
	res, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(res.Aggs) != len(res.Grid) || len(res.Grid) != 1399 {
		t.Fatalf("unexpected grid size: %d/%d", len(res.Grid), len(res.Aggs))
	}
	if res.CoverageGaps == 0 {
		t.Fatalf("expected coverage gaps below 31.42")
	}
	if mono.Violations(res.Aggs) != 0 {
		t.Fatalf("blend output must be strictly increasing")
	}
	for _, v := range res.Aggs {
		if v < 0 || v > set.AggMax {
			t.Fatalf("value %v outside [0, %v]", v, set.AggMax)
		}
	}

	// 兩邊都全權重的區段：加權平均落在兩值之間
	probe := 80.05
	v24 := 199 + 4.6*(probe-37.46)
	v23 := 148 + 4.9*(probe-31.42)
	lo, hi := math.Min(v24, v23), math.Max(v24, v23)
	idx := 0
	for i, g := range res.Grid {
		if g == probe {
			idx = i
			break
		}
	}
	if res.Aggs[idx] < lo-0.5 || res.Aggs[idx] > hi+0.5 {
		t.Fatalf("blend at %v should lie between sources [%v, %v], got %v", probe, lo, hi, res.Aggs[idx])
	}
}

func TestLowTailRebuilt(t *testing.T) {
	set := testSetting()
	b := New(set, nil)
	if _, err := b.AddReference(set.References[0], linPairs(37.46, 99.95, 0.5, 199, 4.6)); err != nil {
		t.Fatalf("add 2024 failed: %v", err)
	}
	if _, err := b.AddReference(set.References[1], linPairs(31.42, 99.95, 0.5, 148, 4.9)); err != nil {
		t.Fatalf("add 2023 failed: %v", err)
	}
	res, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	// 48 以下的點全數重建：(48.00 - 30.05) / 0.05 = 359
	if res.LowRebuilt != 359 {
		t.Fatalf("expected 359 rebuilt points, got %d", res.LowRebuilt)
	}

	// 重建段的梯度向下遞減速：相鄰差之差不得為正（減速不加速）
	cut := 0
	for i, g := range res.Grid {
		if g == 48.00 {
			cut = i
			break
		}
	}
	prevStep := res.Aggs[cut] - res.Aggs[cut-1]
	for j := cut - 1; j > 0; j-- {
		step := res.Aggs[j] - res.Aggs[j-1]
		if step > prevStep+1e-9 {
			t.Fatalf("gradient must decelerate going down, step %v > %v at %v",
				step, prevStep, res.Grid[j])
		}
		prevStep = step
	}
}

// 衰減窗是排他的：在 2024 的覆蓋下界 37.46 之前，混合值必須與
// 2023 參考完全一致；2024 的權重只在 [37.46, 45.46) 內逐步漸入。
func TestFadeWindowExclusive(t *testing.T) {
	set := testSetting()
	// 壓低低尾重建範圍，讓檢查點不被重建覆寫
	set.LowCutoff, set.CutoffProbe = 30.10, 34.10
	b := New(set, nil)

	r24, err := b.AddReference(set.References[0], linPairs(37.46, 99.95, 0.5, 199, 4.6))
	if err != nil {
		t.Fatalf("add 2024 failed: %v", err)
	}
	r23, err := b.AddReference(set.References[1], linPairs(31.42, 99.95, 0.5, 148, 4.9))
	if err != nil {
		t.Fatalf("add 2023 failed: %v", err)
	}
	res, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	idx := func(g float64) int {
		for i, v := range res.Grid {
			if v == g {
				return i
			}
		}
		t.Fatalf("grid point %v not found", g)
		return -1
	}

	// 窗前：2024 權重為 0，混合值就是 2023 的值
	for _, g := range []float64{35.05, 37.45} {
		want := r23.At(g)
		if got := res.Aggs[idx(g)]; math.Abs(got-want) > 1e-9 {
			t.Fatalf("blend at %v should equal 2023 reference %v, got %v", g, want, got)
		}
	}

	// 窗內：2024 以 cubic 權重漸入
	g := 41.45
	tt := (g - 37.46) / set.References[0].FadeZone
	w24 := set.References[0].Weight * tt * tt * tt
	want := (w24*r24.At(g) + 0.4*r23.At(g)) / (w24 + 0.4)
	if got := res.Aggs[idx(g)]; math.Abs(got-want) > 1e-9 {
		t.Fatalf("blend at %v should use faded weight %v, want %v got %v", g, w24, want, got)
	}

	// 窗後：兩條參考都是全額權重
	g = 45.50
	want = 0.6*r24.At(g) + 0.4*r23.At(g)
	if got := res.Aggs[idx(g)]; math.Abs(got-want) > 1e-9 {
		t.Fatalf("blend at %v should use full weights, want %v got %v", g, want, got)
	}
}

func TestBuildNoReferences(t *testing.T) {
	b := New(testSetting(), nil)
	if _, err := b.Build(); errs.Level(err) != errs.Fatal {
		t.Fatalf("build without references should be fatal, got %v", err)
	}
}
