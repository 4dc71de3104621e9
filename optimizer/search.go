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

// Package optimizer 實作邊界點的 2D 網格搜尋。
//
// 一條 general 曲線只有兩個自由度：Min.X 與 Lower.Y
// （Lower.X 恆為中點，Min.Y 恆為 0）。在沒有人工指定位置時，
// 搜尋目標是：在單調性約束下使最大擬合殘差最小。
//
// 每個網格 cell 都是對不可變參數的純函數求值，彼此不共享狀態，
// 因此以 worker 展開平行計算，結果寫入以 cell 索引的 arena，
// 最後依網格順序做一次 min-error 收斂 —— 平手時自然落在
// 字典序最先掃到的候選，結果與單執行緒完全一致。
package optimizer

import (
	"runtime"
	"sync"

	"github.com/zintix-labs/scalelab/curve"
	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/spec"
)

const (
	// DefaultMinXCells / DefaultLowerCells : 兩軸的預設網格分割數。
	// 2D 搜尋的成本可負擔，解析度可以開高。
	DefaultMinXCells  = 40
	DefaultLowerCells = 30

	// LowerYFloor : Lower.Y 的搜尋下限，避免下段塌成平底。
	LowerYFloor = 0.1
)

// Placement 為搜尋結果：邊界點位置、擬合殘差與得勝曲線。
type Placement struct {
	MinX   float64
	LowerX float64
	LowerY float64
	FitErr float64
	Curve  *curve.Curve
}

// Search 持有一次搜尋的不可變參數。
type Search struct {
	base curve.AnchorSet

	minXLo, minXHi   float64
	lowerLo, lowerHi float64

	minXCells  int
	lowerCells int
	workers    int
}

// New 建立搜尋。搜尋空間塌縮（固定錨點過度擁擠、或 P25.Y 過低）
// 回傳 Warn 級錯誤：呼叫端保留原曲線並逐科回報，不中止整批流程。
func New(pd *spec.PercentileData) (*Search, error) {
	minXHi := curve.MinXUpper(pd)
	if minXHi < 0 {
		return nil, errs.Warnf("optimizer: search space collapsed, P25.X-2g=%.2f < 0", minXHi)
	}
	lowerHi := pd.P25.Scaled * curve.LowerYCap
	if LowerYFloor >= lowerHi {
		return nil, errs.Warnf("optimizer: empty Lower.Y range [%.2f, %.2f)", LowerYFloor, lowerHi)
	}

	return &Search{
		base:       curve.Derive(pd),
		minXLo:     0,
		minXHi:     minXHi,
		lowerLo:    LowerYFloor,
		lowerHi:    lowerHi,
		minXCells:  DefaultMinXCells,
		lowerCells: DefaultLowerCells,
		workers:    runtime.NumCPU(),
	}, nil
}

// SetWorkers 調整平行度（<=0 時取 CPU 數），主要供測試固定為 1。
func (s *Search) SetWorkers(n int) {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	s.workers = n
}

// cellResult 是 arena 中單一 cell 的求值結果。
type cellResult struct {
	ok     bool
	minX   float64
	lowerY float64
	fitErr float64
	cv     *curve.Curve
}

// Run 執行完整網格掃描。
// 沒有任何 cell 通過單調性檢查時回傳 Warn 級錯誤，
// 讓呼叫端把「搜尋失敗」與其他錯誤區分開來。
func (s *Search) Run() (*Placement, error) {
	nCells := (s.minXCells + 1) * (s.lowerCells + 1)
	arena := make([]cellResult, nCells)

	// 以 Min.X 軸的 row 為單位分派
	rows := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for mi := range rows {
				s.evalRow(mi, arena)
			}
		}()
	}
	for mi := 0; mi <= s.minXCells; mi++ {
		rows <- mi
	}
	close(rows)
	wg.Wait()

	// 依網格順序收斂：平手取最先掃到者
	var best *cellResult
	for i := range arena {
		r := &arena[i]
		if !r.ok {
			continue
		}
		if best == nil || r.fitErr < best.fitErr {
			best = r
		}
	}
	if best == nil {
		return nil, errs.Warnf("optimizer: exhausted %d cells without a monotonic fit", nCells)
	}

	return &Placement{
		MinX:   best.minX,
		LowerX: best.cv.Anchors.Lower.X,
		LowerY: best.lowerY,
		FitErr: best.fitErr,
		Curve:  best.cv,
	}, nil
}

// evalRow 求值 Min.X = row mi 上的所有 Lower.Y cell。
func (s *Search) evalRow(mi int, arena []cellResult) {
	minX := s.minXLo + (s.minXHi-s.minXLo)*float64(mi)/float64(s.minXCells)
	for pyi := 0; pyi <= s.lowerCells; pyi++ {
		lowerY := s.lowerLo + (s.lowerHi-s.lowerLo)*float64(pyi)/float64(s.lowerCells)

		as := s.base.WithBoundary(minX, lowerY)
		cv, err := curve.Fit(as)
		if err != nil || !cv.Valid() {
			continue
		}
		arena[mi*(s.lowerCells+1)+pyi] = cellResult{
			ok:     true,
			minX:   minX,
			lowerY: lowerY,
			fitErr: cv.MaxFitErr,
			cv:     cv,
		}
	}
}

// FromPinned 以人工固定的邊界位置直接建曲線，不經搜尋。
// 人工位置導致非單調時回傳 Warn，由呼叫端決定是否回退自動搜尋。
func FromPinned(pd *spec.PercentileData, pin *spec.BoundarySetting) (*Placement, error) {
	base := curve.Derive(pd)
	as := base.WithBoundary(pin.MinX, pin.LowerY)
	cv, err := curve.Fit(as)
	if err != nil {
		return nil, err
	}
	if !cv.Valid() {
		return nil, errs.Warnf("optimizer: pinned boundary (%.2f, %.2f) yields non-monotonic fit",
			pin.MinX, pin.LowerY)
	}
	return &Placement{
		MinX:   pin.MinX,
		LowerX: as.Lower.X,
		LowerY: pin.LowerY,
		FitErr: cv.MaxFitErr,
		Curve:  cv,
	}, nil
}
