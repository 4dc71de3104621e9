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

package lookup

import (
	"math"
	"testing"

	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/spec"
)

func smallBands() *spec.BandSetting {
	return &spec.BandSetting{
		TotalEligible: 1000,
		BelowFloor:    50,
		Fine: []spec.FineBand{
			{Rank: 99.95, Count: 5},
			{Rank: 99.90, Count: 5},
		},
		Ranges: []spec.RangeBand{
			{Span: "99.00-99.95", Count: 100}, // 含 2 個 fine 帶，剩 90 攤到 18 帶
			{Span: "98.00-98.95", Count: 850},
		},
	}
}

func TestExpandBands(t *testing.T) {
	d, err := ExpandBands(smallBands(), 0.05)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	bands := d.Bands()
	if len(bands) != 40 {
		t.Fatalf("expected 40 bands, got %d", len(bands))
	}
	// 由高到低排序
	for i := 1; i < len(bands); i++ {
		if bands[i].Rank >= bands[i-1].Rank {
			t.Fatalf("bands not descending at %d: %v", i, bands[i].Rank)
		}
	}
	// fine 帶直接採用
	if bands[0].Rank != 99.95 || bands[0].Count != 5 {
		t.Fatalf("fine band lost: %+v", bands[0])
	}
	// 區間剩餘 90 攤到 18 個未指定帶 -> 每帶 5
	if bands[2].Rank != 99.85 || bands[2].Count != 5 {
		t.Fatalf("range distribution broken: %+v", bands[2])
	}
	// 850 / 20 = 42.5：餘數由較高的帶吸收
	if bands[20].Rank != 98.95 || bands[20].Count != 43 {
		t.Fatalf("remainder should go to higher bands: %+v", bands[20])
	}
	if bands[39].Rank != 98.00 || bands[39].Count != 42 {
		t.Fatalf("lowest band should get base count: %+v", bands[39])
	}

	if d.Total() != 1000 {
		t.Fatalf("total must include below-floor students, got %d", d.Total())
	}
	if d.GridTotal() != 950 {
		t.Fatalf("grid total must be 950, got %d", d.GridTotal())
	}
	// 累計由最高帶往下遞增
	if bands[39].Cumulative != 950 {
		t.Fatalf("final cumulative must equal grid total, got %d", bands[39].Cumulative)
	}
}

func TestPercentileFor(t *testing.T) {
	d, err := ExpandBands(smallBands(), 0.05)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	top := d.Bands()[0]
	// (1000 - 5 + 2.5) / 1000 * 100 = 99.75
	if got := d.PercentileFor(top); math.Abs(got-99.75) > 1e-9 {
		t.Fatalf("expected percentile 99.75, got %v", got)
	}
}

func TestBuildTableAndInverse(t *testing.T) {
	d, err := ExpandBands(smallBands(), 0.05)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	// 混合網格需覆蓋所有帶
	var grid, aggs []float64
	for r := 98.00; r <= 99.95+1e-9; r += 0.05 {
		rr := math.Round(r*100) / 100
		grid = append(grid, rr)
		aggs = append(aggs, 200+(rr-98.00)*40)
	}
	table, err := BuildTable(d, grid, aggs, 0.01)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(table.Rows) != 40 {
		t.Fatalf("expected 40 rows, got %d", len(table.Rows))
	}
	// 門檻嚴格遞減（由高 rank 到低）
	for i := 1; i < len(table.Rows); i++ {
		if table.Rows[i].Agg >= table.Rows[i-1].Agg {
			t.Fatalf("aggregate not strictly decreasing at row %d", i)
		}
	}

	// 反查是查表的嚴格反函數：以本表門檻反查位移必為 0
	for _, row := range table.Rows {
		if got := table.RankFor(row.Agg); got != row.Rank {
			t.Fatalf("inverse lookup shift at rank %v: got %v", row.Rank, got)
		}
	}

	// 範圍外夾限
	if got := table.RankFor(0); got != table.Rows[len(table.Rows)-1].Rank {
		t.Fatalf("below range should clamp to lowest rank, got %v", got)
	}
	if got := table.RankFor(1000); got != table.Rows[0].Rank {
		t.Fatalf("above range should clamp to highest rank, got %v", got)
	}
	// 兩帶之間線性內插
	mid := (table.Rows[0].Agg + table.Rows[1].Agg) / 2
	got := table.RankFor(mid)
	if got <= table.Rows[1].Rank || got >= table.Rows[0].Rank {
		t.Fatalf("interpolated rank %v outside (%v, %v)", got, table.Rows[1].Rank, table.Rows[0].Rank)
	}

	if agg, ok := table.AggFor(98.00); !ok || agg != table.Rows[39].Agg {
		t.Fatalf("AggFor broken: %v %v", agg, ok)
	}
	if _, ok := table.AggFor(97.00); ok {
		t.Fatalf("AggFor should miss for absent band")
	}

	pairs := table.Pairs()
	if len(pairs) != 40 || pairs[0].Rank != 98.00 || pairs[39].Rank != 99.95 {
		t.Fatalf("pairs should ascend by rank: %v .. %v", pairs[0], pairs[len(pairs)-1])
	}
}

func TestBuildTableTieRepair(t *testing.T) {
	d, err := ExpandBands(smallBands(), 0.05)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	// 平坦曲線：捨入後全數同值，必須逐列修補
	var grid, aggs []float64
	for r := 98.00; r <= 99.95+1e-9; r += 0.05 {
		grid = append(grid, math.Round(r*100)/100)
		aggs = append(aggs, 300.0)
	}
	table, err := BuildTable(d, grid, aggs, 0.01)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if table.Repairs != 39 {
		t.Fatalf("expected 39 tie repairs, got %d", table.Repairs)
	}
	for i := 1; i < len(table.Rows); i++ {
		if table.Rows[i].Agg >= table.Rows[i-1].Agg {
			t.Fatalf("ties remain after repair at row %d", i)
		}
	}
}

func TestBuildTableOffGrid(t *testing.T) {
	d, err := ExpandBands(smallBands(), 0.05)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	grid := []float64{99.95}
	aggs := []float64{400}
	if _, err := BuildTable(d, grid, aggs, 0.01); errs.Level(err) != errs.Fatal {
		t.Fatalf("band off blend grid should be fatal, got %v", err)
	}
}
