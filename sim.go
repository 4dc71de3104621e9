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
	"math"
	"sort"

	"github.com/zintix-labs/scalelab/blend"
	"github.com/zintix-labs/scalelab/curve"
	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/lookup"
	"github.com/zintix-labs/scalelab/sdk/mono"
	"github.com/zintix-labs/scalelab/spec"
)

// 模擬用的原始分數網格：0 到 100、步長 0.5，共 201 點。
const (
	simRawLo   = 0.0
	simRawHi   = 100.0
	simRawStep = 0.5
)

// Simulation 用擬合曲線模擬考生的聚合分數分布，
// 作為混合結果的第二意見（advisory）：
// 在每個原始分數點上取全科目換算值的前 TopN 總和，
// 得到「原始分數 → 聚合分數」的單調曲線，再以母體百分位對齊查表帶。
//
// 模擬只在 SimBlendWeight > 0 時回饋進混合結果；
// 預設權重為 0，僅作為偏離度稽核。
type Simulation struct {
	set *spec.ScaleSetting

	rawGrid []float64
	aggs    []float64 // 每個原始分數點的 TopN 聚合
	it      *mono.Interpolator

	// Violations 為修補前的非遞增段數。
	// TopN 總和下降代表上游擬合有缺陷，必須回報而非靜默吞掉。
	Violations int
}

// NewSimulation 由一般科目的擬合曲線建立模擬。
// 曲線數量不足 TopN 時無法組出聚合，回報 Warn。
func (l *Lab) NewSimulation(curves map[spec.SID]*curve.Curve) (*Simulation, error) {
	if len(curves) < l.set.TopN {
		return nil, errs.Warnf("sim: need at least %d curves, got %d", l.set.TopN, len(curves))
	}

	n := int(math.Round((simRawHi-simRawLo)/simRawStep)) + 1
	s := &Simulation{
		set:     l.set,
		rawGrid: make([]float64, n),
		aggs:    make([]float64, n),
	}

	scaled := make([]float64, 0, len(curves))
	for i := 0; i < n; i++ {
		raw := simRawLo + float64(i)*simRawStep
		s.rawGrid[i] = raw

		scaled = scaled[:0]
		for _, cv := range curves {
			scaled = append(scaled, cv.EvalClamped(raw))
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(scaled)))

		sum := 0.0
		for j := 0; j < l.set.TopN; j++ {
			sum += scaled[j]
		}
		s.aggs[i] = sum
	}

	// 先記數回報，再修補供內插與合併使用
	s.Violations = mono.Violations(s.aggs)
	if s.Violations > 0 {
		l.log.Warn("simulated aggregate not monotonic",
			"violations", s.Violations, "top_n", l.set.TopN)
	}
	mono.ForwardRepair(s.aggs, l.set.MinIncrement)
	it, err := mono.New(s.rawGrid, s.aggs)
	if err != nil {
		return nil, errs.Wrap(err, "sim: interpolator build failed")
	}
	s.it = it
	return s, nil
}

// AggAtPercentile 回傳母體百分位（0~100）對應的模擬聚合分數。
// 以原始分數刻度作為百分位的代理，範圍外夾限到端點。
func (s *Simulation) AggAtPercentile(pct float64) float64 {
	if pct < s.it.Lo() {
		pct = s.it.Lo()
	}
	if pct > s.it.Hi() {
		pct = s.it.Hi()
	}
	return s.it.At(pct)
}

// Divergence 回傳模擬與混合結果在各帶上的平均與最大絕對偏離，
// 供稽核模擬是否與歷史混合明顯脫鉤。
func (s *Simulation) Divergence(res *blend.Result, dist *lookup.Distribution) (mean, maxAbs float64) {
	byRank := bandsByRank(dist)
	n := 0
	sum := 0.0
	for i, r := range res.Grid {
		b, ok := byRank[r]
		if !ok {
			continue
		}
		d := math.Abs(s.AggAtPercentile(dist.PercentileFor(b)) - res.Aggs[i])
		sum += d
		if d > maxAbs {
			maxAbs = d
		}
		n++
	}
	if n > 0 {
		mean = sum / float64(n)
	}
	return mean, maxAbs
}

// Merge 把模擬聚合以權重 w 回饋進混合結果，並重新修補與夾限。
// 回傳實際混入的網格點數。
func (s *Simulation) Merge(res *blend.Result, dist *lookup.Distribution, w float64) (int, error) {
	if w <= 0 {
		return 0, nil
	}
	if w > 1 {
		return 0, errs.Fatalf("sim: merge weight %.2f out of [0,1]", w)
	}

	byRank := bandsByRank(dist)
	merged := 0
	for i, r := range res.Grid {
		b, ok := byRank[r]
		if !ok {
			continue
		}
		simAgg := s.AggAtPercentile(dist.PercentileFor(b))
		res.Aggs[i] = (1-w)*res.Aggs[i] + w*simAgg
		merged++
	}

	res.Repairs += mono.ForwardRepair(res.Aggs, s.set.MinIncrement)
	mono.Clamp(res.Aggs, 0, s.set.AggMax)
	if v := mono.Violations(res.Aggs); v > 0 {
		return merged, errs.Fatalf("sim: %d monotonicity violations after merge", v)
	}
	return merged, nil
}

func bandsByRank(dist *lookup.Distribution) map[float64]lookup.Band {
	bands := dist.Bands()
	m := make(map[float64]lookup.Band, len(bands))
	for _, b := range bands {
		m[b.Rank] = b
	}
	return m
}
