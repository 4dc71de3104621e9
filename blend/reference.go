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

// Package blend 將多條歷史參考曲線混合成單一平滑且嚴格遞增的
// aggregate 門檻曲線。
//
// 每條參考曲線先清洗（同 rank 去重取平均、向前修補遞增），
// 再各自建立形狀保持插值。混合時逐網格點計算權重：
// 覆蓋該點的曲線以設定權重出發，靠近覆蓋下緣時依 fade profile 衰減
// （插值在資料最稀疏處最不可信），最後正規化為 1。
// 任何參考都不覆蓋的點改用「覆蓋最低的參考」的邊界導數線性外插。
package blend

import (
	"sort"
	"strconv"

	"github.com/zintix-labs/scalelab/dto"
	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/sdk/mono"
	"github.com/zintix-labs/scalelab/spec"
)

// Reference 為一條清洗完成、可插值的歷史參考曲線。
type Reference struct {
	Year    int
	Setting spec.ReferenceSetting

	ranks []float64
	aggs  []float64
	it    *mono.Interpolator

	dedups  int // 清洗時平均掉的重複 rank 數
	repairs int // 清洗時的向前修補次數
}

// NewReference 由原始 (rank, aggregate) 對建立參考曲線。
// pairs 不需排序；點數不足以插值時回傳 Fatal（聚合表沒有部分正確的狀態）。
func NewReference(rs spec.ReferenceSetting, pairs []dto.RankAgg, inc float64) (*Reference, error) {
	if len(pairs) < 2 {
		return nil, errs.Fatalf("blend: reference %d has %d points, need at least 2", rs.Year, len(pairs))
	}

	sorted := append([]dto.RankAgg(nil), pairs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	r := &Reference{Year: rs.Year, Setting: rs}

	// 同 rank 去重：取 aggregate 平均
	i := 0
	for i < len(sorted) {
		j := i
		sum := 0.0
		for j < len(sorted) && sorted[j].Rank == sorted[i].Rank {
			sum += sorted[j].Agg
			j++
		}
		r.ranks = append(r.ranks, sorted[i].Rank)
		r.aggs = append(r.aggs, sum/float64(j-i))
		r.dedups += j - i - 1
		i = j
	}

	// 較高 rank 必須對應較高 aggregate：向前修補
	r.repairs = mono.ForwardRepair(r.aggs, inc)

	it, err := mono.New(r.ranks, r.aggs)
	if err != nil {
		return nil, errs.WrapWithExtra(err, "blend: reference interpolator failed",
			"year="+strconv.Itoa(rs.Year))
	}
	r.it = it
	return r, nil
}

// Covers 回報 rank 是否在此參考的資料範圍內。
func (r *Reference) Covers(rank float64) bool { return r.it.Covers(rank) }

// At 在覆蓋範圍內求 aggregate。
func (r *Reference) At(rank float64) float64 { return r.it.At(rank) }

// Lo 回傳覆蓋下界（rank）。
func (r *Reference) Lo() float64 { return r.it.Lo() }

// Hi 回傳覆蓋上界（rank）。
func (r *Reference) Hi() float64 { return r.it.Hi() }

// BoundaryExtrapolate 以下界的值與導數做線性外插，供覆蓋範圍以下使用。
func (r *Reference) BoundaryExtrapolate(rank float64) float64 {
	lo := r.it.Lo()
	return r.it.At(lo) + r.it.DerivAt(lo)*(rank-lo)
}

// weightAt 計算此參考在 rank 的有效權重（不覆蓋為 0，覆蓋下緣衰減）。
func (r *Reference) weightAt(rank float64) float64 {
	if !r.Covers(rank) {
		return 0
	}
	w := r.Setting.Weight
	if r.Setting.FadeZone > 0 {
		if d := rank - r.it.Lo(); d < r.Setting.FadeZone {
			t := d / r.Setting.FadeZone
			switch r.Setting.FadeProfile {
			case spec.FadeCubic:
				w *= t * t * t
			default:
				w *= t
			}
		}
	}
	return w
}
