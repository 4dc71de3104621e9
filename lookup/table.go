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
	"sort"

	"github.com/zintix-labs/scalelab/dto"
	"github.com/zintix-labs/scalelab/errs"
)

// Table 為最終查表：由高 rank 到低 rank 的列，建成後不可變。
// Repairs 記錄建表時因兩位小數捨入產生的平手修補次數。
type Table struct {
	Rows    []dto.LookupRow
	Repairs int

	// 反查索引：依 aggregate 升冪
	invAggs  []float64
	invRanks []float64
}

// BuildTable 將人數分布與混合曲線組成最終查表。
// grid 與 aggs 為混合器輸出（rank 升冪）；分布中每個帶的 rank
// 都必須落在網格上，否則為建表缺陷（Fatal）。
//
// 門檻值捨入到兩位後可能出現平手：由高往低掃描，
// 任何不低於前一列（較高 rank）的值修正為 previous - dec。
// 修補後仍有違規代表修補邏輯缺陷，直接斷言失敗，不二次修補。
func BuildTable(dist *Distribution, grid, aggs []float64, dec float64) (*Table, error) {
	if len(grid) != len(aggs) {
		return nil, errs.Fatalf("lookup: grid/aggs length mismatch %d != %d", len(grid), len(aggs))
	}

	byRank := make(map[float64]float64, len(grid))
	for i, r := range grid {
		byRank[key(r)] = aggs[i]
	}

	t := &Table{Rows: make([]dto.LookupRow, 0, len(dist.Bands()))}
	for _, b := range dist.Bands() {
		agg, ok := byRank[b.Rank]
		if !ok {
			return nil, errs.Fatalf("lookup: band rank %.2f not on blend grid", b.Rank)
		}
		t.Rows = append(t.Rows, dto.LookupRow{
			Rank:       b.Rank,
			Agg:        round2(agg),
			Count:      b.Count,
			Cumulative: b.Cumulative,
			CumPct:     round2(float64(b.Cumulative) / float64(dist.Total()) * 100),
		})
	}

	// 捨入平手修補：較低 rank 必須嚴格較低的 aggregate
	for i := 1; i < len(t.Rows); i++ {
		if t.Rows[i].Agg >= t.Rows[i-1].Agg {
			t.Rows[i].Agg = round2(t.Rows[i-1].Agg - dec)
			t.Repairs++
		}
	}
	for i := 1; i < len(t.Rows); i++ {
		if t.Rows[i].Agg >= t.Rows[i-1].Agg {
			return nil, errs.Fatalf("lookup: monotonicity violation at rank %.2f after repair",
				t.Rows[i].Rank)
		}
	}

	t.buildInverse()
	return t, nil
}

// buildInverse 建立 aggregate 升冪的反查索引。
func (t *Table) buildInverse() {
	rows := append([]dto.LookupRow(nil), t.Rows...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Agg < rows[j].Agg })
	t.invAggs = make([]float64, len(rows))
	t.invRanks = make([]float64, len(rows))
	for i, r := range rows {
		t.invAggs[i] = r.Agg
		t.invRanks[i] = r.Rank
	}
}

// RankFor 反查：給定 aggregate，回傳本表對應的 rank。
// 表範圍外夾限到端點，範圍內於相鄰帶間做線性內插。
func (t *Table) RankFor(aggregate float64) float64 {
	n := len(t.invAggs)
	if n == 0 {
		return 0
	}
	if aggregate <= t.invAggs[0] {
		return t.invRanks[0]
	}
	if aggregate >= t.invAggs[n-1] {
		return t.invRanks[n-1]
	}
	idx := sort.SearchFloat64s(t.invAggs, aggregate)
	lo, hi := idx-1, idx
	frac := (aggregate - t.invAggs[lo]) / (t.invAggs[hi] - t.invAggs[lo])
	return t.invRanks[lo] + frac*(t.invRanks[hi]-t.invRanks[lo])
}

// AggFor 查詢指定 rank 帶的門檻值；不存在回報 false。
func (t *Table) AggFor(rank float64) (float64, bool) {
	k := key(rank)
	for i := range t.Rows {
		if t.Rows[i].Rank == k {
			return t.Rows[i].Agg, true
		}
	}
	return 0, false
}

// Pairs 以 (rank, aggregate) 對輸出全表（rank 升冪），供歷史檔案寫入。
func (t *Table) Pairs() []dto.RankAgg {
	out := make([]dto.RankAgg, 0, len(t.Rows))
	for i := len(t.Rows) - 1; i >= 0; i-- {
		out = append(out, dto.RankAgg{Rank: t.Rows[i].Rank, Agg: t.Rows[i].Agg})
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
