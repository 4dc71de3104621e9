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

// Package lookup 建立 aggregate→rank 查表：
// 把公布的人數分布展開成逐帶人數與累計，對應混合曲線的門檻值，
// 並提供反向查詢（aggregate 反查 rank）供回測使用。
package lookup

import (
	"math"
	"sort"

	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/spec"
)

// Band 為單一細分帶：rank、該帶人數、由最高帶往下的累計人數。
type Band struct {
	Rank       float64
	Count      int
	Cumulative int
}

// Distribution 為展開完成的人數分布（由高 rank 到低 rank 排序）。
type Distribution struct {
	bands []Band
	total int // 全體合格人數（含網格下限以下）
}

// ExpandBands 將人數分布設定展開成逐帶分布：
// Fine 逐帶直接採用；每個 Range 區間扣除已指定的帶後，
// 剩餘人數平均攤到未指定的帶（餘數由較高的帶吸收）。
func ExpandBands(bs *spec.BandSetting, step float64) (*Distribution, error) {
	if step <= 0 {
		return nil, errs.NewFatal("lookup: band step must be positive")
	}

	counts := make(map[float64]int, 2048)
	for _, fb := range bs.Fine {
		counts[key(fb.Rank)] = fb.Count
	}

	for i := range bs.Ranges {
		rb := &bs.Ranges[i]
		lo, hi, err := rb.Bounds()
		if err != nil {
			return nil, err
		}

		var inRange []float64
		for b := hi; b >= lo-1e-3; b -= step {
			inRange = append(inRange, key(b))
		}
		already := 0
		var unassigned []float64
		for _, br := range inRange {
			if c, ok := counts[br]; ok {
				already += c
			} else {
				unassigned = append(unassigned, br)
			}
		}
		remaining := rb.Count - already
		if remaining <= 0 || len(unassigned) == 0 {
			continue
		}
		n := len(unassigned)
		base := remaining / n
		extra := remaining - base*n
		sort.Sort(sort.Reverse(sort.Float64Slice(unassigned)))
		for j, br := range unassigned {
			c := base
			if j < extra {
				c++
			}
			counts[br] = c
		}
	}

	if len(counts) == 0 {
		return nil, errs.NewFatal("lookup: band expansion produced no bands")
	}

	ranks := make([]float64, 0, len(counts))
	for r := range counts {
		ranks = append(ranks, r)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(ranks)))

	d := &Distribution{total: bs.TotalEligible}
	running := 0
	for _, r := range ranks {
		running += counts[r]
		d.bands = append(d.bands, Band{Rank: r, Count: counts[r], Cumulative: running})
	}
	return d, nil
}

// Bands 回傳逐帶分布（由高 rank 到低 rank）。
func (d *Distribution) Bands() []Band { return d.bands }

// Total 回傳全體合格人數。
func (d *Distribution) Total() int { return d.total }

// GridTotal 回傳網格內（最低帶以上）的人數總和。
func (d *Distribution) GridTotal() int {
	if len(d.bands) == 0 {
		return 0
	}
	return d.bands[len(d.bands)-1].Cumulative
}

// PercentileFor 將一個帶換算成母體百分位（取帶中點）：
// 低於該帶的人數比例，0~100，夾限於範圍內。
func (d *Distribution) PercentileFor(b Band) float64 {
	pct := (float64(d.total) - float64(b.Cumulative) + float64(b.Count)/2) / float64(d.total) * 100
	return math.Max(0, math.Min(100, pct))
}

// key 將 rank 正規化為兩位小數，避免浮點累積誤差讓 map 鍵對不上。
func key(v float64) float64 { return math.Round(v*100) / 100 }
