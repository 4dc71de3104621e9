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

package scalelab

import (
	"testing"
	"testing/fstest"

	"github.com/zintix-labs/scalelab/archive"
	"github.com/zintix-labs/scalelab/curve"
	"github.com/zintix-labs/scalelab/dto"
	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/sdk/mono"
	"github.com/zintix-labs/scalelab/sdk/poly"
	"github.com/zintix-labs/scalelab/spec"
)

const subjectsYAML = `
subjects:
  - code: "0001"
    name: "English"
    sid: 31
    kind: general
    data:
      p25: { raw: 61, scaled: 52.67 }
      p50: { raw: 72, scaled: 70.12 }
      p75: { raw: 83, scaled: 83.18 }
      p90: { raw: 91, scaled: 89.48 }
      p99: { raw: 99, scaled: 93.60 }
  - code: "0002"
    name: "Quiet"
    sid: 33
    kind: nodata
  - code: "6408"
    name: "Religion and Ethics"
    sid: 68
    kind: applied
    data: { c: 44.01, b: 44.01, a: 72.49 }
  - code: "91"
    name: "Diploma in Business"
    sid: 91
    kind: vocational
    data: { scaled: 58.72 }
`

func testLabSetting() *spec.ScaleSetting {
	return &spec.ScaleSetting{
		Year: 2025,
		Grid: spec.GridSetting{Lo: 30.05, Hi: 99.95, Step: 0.05},
		References: []spec.ReferenceSetting{
			{Year: 2024, Weight: 1.0, FadeZone: 2.0, FadeProfile: spec.FadeLinear},
		},
		LowCutoff: 48.0, CutoffProbe: 52.0,
		DecelRate: 0.0003, DecelFloor: 0.85,
		TopN: 5, AggMax: 500,
		MinIncrement: 0.01, MinDecrement: 0.01,
	}
}

func testLabBands() *spec.BandSetting {
	return &spec.BandSetting{
		TotalEligible: 1000,
		BelowFloor:    50,
		Fine: []spec.FineBand{
			{Rank: 99.95, Count: 5},
			{Rank: 99.90, Count: 5},
		},
		Ranges: []spec.RangeBand{
			{Span: "99.00-99.95", Count: 100},
			{Span: "98.00-98.95", Count: 850},
		},
	}
}

func refPairs() []dto.RankAgg {
	var out []dto.RankAgg
	for r := 37.46; r <= 99.95+1e-9; r += 0.5 {
		out = append(out, dto.RankAgg{Rank: r, Agg: 199 + 4.6*(r-37.46)})
	}
	return out
}

func newTestLab(t *testing.T) *Lab {
	t.Helper()
	cfg := fstest.MapFS{
		"subjects.yaml": &fstest.MapFile{Data: []byte(subjectsYAML)},
	}
	store := archive.New(t.TempDir(), nil)
	lab, err := NewAuto(testLabSetting(), testLabBands(), Configs(cfg), store, nil)
	if err != nil {
		t.Fatalf("new lab failed: %v", err)
	}
	if err := lab.SeedReferences(map[int][]dto.RankAgg{2024: refPairs()}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return lab
}

func TestNewValidatesArguments(t *testing.T) {
	cfg := fstest.MapFS{"subjects.yaml": &fstest.MapFile{Data: []byte(subjectsYAML)}}
	store := archive.New(t.TempDir(), nil)
	set, bands := testLabSetting(), testLabBands()

	if _, err := New(nil, bands, Configs(cfg), store, nil); errs.Level(err) != errs.Fatal {
		t.Fatalf("nil setting should be fatal, got %v", err)
	}
	if _, err := New(set, nil, Configs(cfg), store, nil); errs.Level(err) != errs.Fatal {
		t.Fatalf("nil bands should be fatal, got %v", err)
	}
	if _, err := New(set, bands, nil, store, nil); errs.Level(err) != errs.Fatal {
		t.Fatalf("no configs should be fatal, got %v", err)
	}
	if _, err := New(set, bands, Configs(cfg), nil, nil); errs.Level(err) != errs.Fatal {
		t.Fatalf("nil store should be fatal, got %v", err)
	}
}

func TestFitAllPerKind(t *testing.T) {
	lab := newTestLab(t)
	out, _, err := lab.FitAll(2, false)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if len(out.Rows) != 4 || len(out.Skipped) != 0 {
		t.Fatalf("expected 4 rows and no skips: %d rows, skipped %v", len(out.Rows), out.Skipped)
	}
	// 只有一般科目產生曲線與品質樣本
	if len(out.Curves) != 1 || out.Curves[31] == nil {
		t.Fatalf("expected a single fitted curve for sid 31: %v", out.Curves)
	}
	if len(out.Samples) != 1 || out.Samples[0].Name != "English" {
		t.Fatalf("fit samples broken: %+v", out.Samples)
	}

	// 依 SID 排序輸出
	var prev spec.SID
	for _, r := range out.Rows {
		if r.SID <= prev {
			t.Fatalf("rows not sorted by sid: %+v", out.Rows)
		}
		prev = r.SID
	}

	// 各類型填槽方式
	byID := map[spec.SID]dto.SubjectRow{}
	for _, r := range out.Rows {
		byID[r.SID] = r
	}
	if byID[33].P50Y != 0 {
		t.Fatalf("no-data row should stay zeroed: %+v", byID[33])
	}
	if byID[68].P50Y != 44.01 || byID[68].P90Y != 72.49 {
		t.Fatalf("applied grades misplaced: %+v", byID[68])
	}
	if byID[91].P50Y != 58.72 || byID[91].MaxY != 58.72 {
		t.Fatalf("vocational row not flat-filled: %+v", byID[91])
	}
}

func TestBuildLookupAndSelfBacktest(t *testing.T) {
	lab := newTestLab(t)
	fit, _, err := lab.FitAll(1, false)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	out, err := lab.BuildLookup(fit.Curves)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(out.Table.Rows) != 40 {
		t.Fatalf("expected 40 table rows, got %d", len(out.Table.Rows))
	}
	if out.Dist.GridTotal() != 950 {
		t.Fatalf("grid total broken: %d", out.Dist.GridTotal())
	}
	if out.SimMerged != 0 {
		t.Fatalf("sim feedback should be off by default: %d", out.SimMerged)
	}

	if err := lab.ArchiveTable(out.Table); err != nil {
		t.Fatalf("archive failed: %v", err)
	}

	// 自我回測：位移必須全為 0
	rep, err := lab.Backtest(lab.Year(), out.Table)
	if err != nil {
		t.Fatalf("backtest failed: %v", err)
	}
	if rep.Summary.Bands != 40 || rep.Summary.MaxAbsShift != 0 {
		t.Fatalf("self backtest should have zero shift: %+v", rep.Summary)
	}

	// 參考年份回測：逐帶都有觀測
	rep24, err := lab.Backtest(2024, out.Table)
	if err != nil {
		t.Fatalf("reference backtest failed: %v", err)
	}
	if rep24.Summary.Bands != len(refPairs()) {
		t.Fatalf("reference backtest band count broken: %+v", rep24.Summary)
	}
}

func TestBacktestMissingYear(t *testing.T) {
	lab := newTestLab(t)
	fit, _, err := lab.FitAll(1, false)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	out, err := lab.BuildLookup(fit.Curves)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if _, err := lab.Backtest(1999, out.Table); err == nil {
		t.Fatalf("missing archive year should fail")
	}
	if _, err := lab.Backtest(2024, nil); errs.Level(err) != errs.Fatal {
		t.Fatalf("nil table should be fatal, got %v", err)
	}
}

func TestFitRecordUnknownKind(t *testing.T) {
	rec := spec.SubjectRecord{Name: "Odd", SID: 9, Kind: "external"}
	if _, _, _, err := FitRecord(&rec); errs.Level(err) != errs.Fatal {
		t.Fatalf("unknown kind should be fatal, got %v", err)
	}
}

func TestSimulationNeedsEnoughCurves(t *testing.T) {
	lab := newTestLab(t)
	fit, _, err := lab.FitAll(1, false)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	// TopN=5 但只有一條曲線
	if _, err := lab.NewSimulation(fit.Curves); errs.Level(err) != errs.Warn {
		t.Fatalf("undersized curve set should be warn, got %v", err)
	}
}

func TestSimulationReportsViolations(t *testing.T) {
	lab := newTestLab(t)

	// 遞減的擬合曲線：y = 90 - 0.8x，值域 [10, 90] 不觸發夾限
	bad := &curve.Curve{
		Anchors: curve.AnchorSet{Max: curve.Anchor{X: 100, Y: 95}},
		Quartic: poly.Poly{90, -0.8},
	}
	curves := map[spec.SID]*curve.Curve{1: bad, 2: bad, 3: bad, 4: bad, 5: bad}

	sim, err := lab.NewSimulation(curves)
	if err != nil {
		t.Fatalf("new simulation failed: %v", err)
	}
	// 201 個網格點全程遞減：200 段違規，必須被回報而非吞掉
	if sim.Violations != 200 {
		t.Fatalf("expected 200 reported violations, got %d", sim.Violations)
	}
	// 回報之後仍修補，內插用的聚合保持不減
	if v := mono.Violations(sim.aggs); v != 0 {
		t.Fatalf("aggregate should be repaired for interpolation, %d violations left", v)
	}

	// 單調曲線不得有任何回報
	fit, _, err := lab.FitAll(1, false)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	cv := fit.Curves[31]
	good, err := lab.NewSimulation(map[spec.SID]*curve.Curve{1: cv, 2: cv, 3: cv, 4: cv, 5: cv})
	if err != nil {
		t.Fatalf("new simulation failed: %v", err)
	}
	if good.Violations != 0 {
		t.Fatalf("monotone curves should report no violations, got %d", good.Violations)
	}
}

func TestSimulationMerge(t *testing.T) {
	lab := newTestLab(t)
	fit, _, err := lab.FitAll(1, false)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	cv := fit.Curves[31]
	curves := map[spec.SID]*curve.Curve{1: cv, 2: cv, 3: cv, 4: cv, 5: cv}

	sim, err := lab.NewSimulation(curves)
	if err != nil {
		t.Fatalf("new simulation failed: %v", err)
	}
	// 模擬聚合沿百分位單調不減
	prev := sim.AggAtPercentile(0)
	for pct := 5.0; pct <= 100; pct += 5 {
		v := sim.AggAtPercentile(pct)
		if v < prev {
			t.Fatalf("simulated aggregate must not decrease: %v < %v at %v", v, prev, pct)
		}
		prev = v
	}

	out, err := lab.BuildLookup(nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	before := append([]float64(nil), out.Blend.Aggs...)
	merged, err := sim.Merge(out.Blend, out.Dist, 0.5)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	// 只有查表帶覆蓋的網格點被混入
	if merged != len(out.Dist.Bands()) {
		t.Fatalf("expected %d merged points, got %d", len(out.Dist.Bands()), merged)
	}
	changed := 0
	for i := range before {
		if out.Blend.Aggs[i] != before[i] {
			changed++
		}
	}
	if changed == 0 {
		t.Fatalf("merge should move covered grid points")
	}

	if _, err := sim.Merge(out.Blend, out.Dist, 1.5); errs.Level(err) != errs.Fatal {
		t.Fatalf("weight above 1 should be fatal, got %v", err)
	}
}

func TestOptimizeAll(t *testing.T) {
	lab := newTestLab(t)
	out, _, err := lab.OptimizeAll(1, false)
	if err != nil {
		t.Fatalf("optimize failed: %v", err)
	}
	// 只有一般科目參與搜尋
	if len(out.Results) != 1 || out.Results[0].SID != 31 {
		t.Fatalf("expected one optimized subject: %+v", out.Results)
	}
	p := out.Results[0].Placement
	if p.Curve == nil || !p.Curve.Valid() {
		t.Fatalf("winning curve must be monotonic: %+v", p)
	}
}
