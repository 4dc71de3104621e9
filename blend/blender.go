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
	"log/slog"
	"math"
	"sort"

	"github.com/zintix-labs/scalelab/dto"
	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/sdk/mono"
	"github.com/zintix-labs/scalelab/spec"
)

// Blender 聚合多條參考曲線，輸出網格上的 aggregate 門檻陣列。
type Blender struct {
	set  *spec.ScaleSetting
	refs []*Reference
	log  *slog.Logger
}

// Result 為混合輸出與稽核計數。
type Result struct {
	Grid []float64 // rank 網格（由低到高）
	Aggs []float64 // 對應的 aggregate 門檻，保證嚴格遞增

	CoverageGaps int // 以外插補值的網格點數
	LowRebuilt   int // 低分段以梯度延伸重建的點數
	Repairs      int // 最終向前修補次數
}

// New 建立混合器。log 為 nil 時不輸出稽核紀錄。
func New(set *spec.ScaleSetting, log *slog.Logger) *Blender {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Blender{set: set, log: log}
}

// AddReference 清洗並掛入一條參考曲線。
func (b *Blender) AddReference(rs spec.ReferenceSetting, pairs []dto.RankAgg) (*Reference, error) {
	r, err := NewReference(rs, pairs, b.set.MinIncrement)
	if err != nil {
		return nil, err
	}
	if r.dedups > 0 || r.repairs > 0 {
		b.log.Info("reference cleaned",
			"year", r.Year, "dedup", r.dedups, "repair", r.repairs)
	}
	b.refs = append(b.refs, r)
	return r, nil
}

// References 回傳目前掛入的參考曲線（依加入順序）。
func (b *Blender) References() []*Reference { return b.refs }

// Build 執行完整混合流程，輸出保證嚴格遞增。
// 任一步驟失敗皆為 Fatal：聚合曲線沒有「部分正確」的狀態。
func (b *Blender) Build() (*Result, error) {
	if len(b.refs) == 0 {
		return nil, errs.NewFatal("blend: no references loaded")
	}

	grid := b.set.GridPoints()
	res := &Result{Grid: grid, Aggs: make([]float64, len(grid))}

	// 覆蓋最低的參考：外插時的依據
	lowest := b.refs[0]
	for _, r := range b.refs[1:] {
		if r.Lo() < lowest.Lo() {
			lowest = r
		}
	}

	// 逐網格點加權混合
	for i, a := range grid {
		totalW := 0.0
		v := 0.0
		for _, r := range b.refs {
			w := r.weightAt(a)
			if w > 0 {
				totalW += w
				v += w * r.At(a)
			}
		}
		if totalW > 0 {
			res.Aggs[i] = v / totalW
			continue
		}
		// 沒有任何參考覆蓋：由覆蓋最低者的邊界導數線性外插
		res.Aggs[i] = lowest.BoundaryExtrapolate(a)
		res.CoverageGaps++
	}
	if res.CoverageGaps > 0 {
		b.log.Warn("coverage gaps extrapolated",
			"points", res.CoverageGaps, "source_year", lowest.Year)
	}

	// 低分段重建：截點以下的混合不可靠，
	// 改以 [cutoff, probe] 的平均梯度向下延伸，並逐步減速避免折線。
	if err := b.rebuildLowTail(grid, res); err != nil {
		return nil, err
	}

	// 嚴格遞增 + 夾限
	res.Repairs = mono.ForwardRepair(res.Aggs, b.set.MinIncrement)
	mono.Clamp(res.Aggs, 0, b.set.AggMax)
	if res.Repairs > 0 {
		b.log.Info("blend monotonic repair", "count", res.Repairs)
	}

	// 修補後仍有違規代表修補邏輯本身有缺陷，視為硬性斷言失敗
	if v := mono.Violations(res.Aggs); v > 0 {
		return nil, errs.Fatalf("blend: %d monotonicity violations after repair pass", v)
	}

	return res, nil
}

// rebuildLowTail 重建 LowCutoff 以下的網格值。
func (b *Blender) rebuildLowTail(grid []float64, res *Result) error {
	cut := sort.SearchFloat64s(grid, b.set.LowCutoff)
	probe := sort.SearchFloat64s(grid, b.set.CutoffProbe)
	if cut <= 0 {
		return nil // 網格不含截點以下的區段
	}
	if probe >= len(grid) || probe <= cut {
		return errs.Fatalf("blend: cutoff probe %.2f outside grid or below cutoff", b.set.CutoffProbe)
	}

	avgGrad := (res.Aggs[probe] - res.Aggs[cut]) / float64(probe-cut)
	for j := cut - 1; j >= 0; j-- {
		steps := cut - j
		decel := math.Max(1.0-b.set.DecelRate*float64(steps), b.set.DecelFloor)
		res.Aggs[j] = res.Aggs[j+1] - avgGrad*decel
		res.LowRebuilt++
	}

	b.log.Info("low tail rebuilt",
		"below_rank", b.set.LowCutoff, "points", res.LowRebuilt,
		"grad_per_step", round2(avgGrad))
	return nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
