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

package spec

import (
	"math"

	"github.com/zintix-labs/scalelab/errs"
)

// 預設值：與歷年建表流程一致，設定檔缺漏欄位時補上。
const (
	DefaultGridLo   = 30.05
	DefaultGridHi   = 99.95
	DefaultGridStep = 0.05

	DefaultLowCutoff   = 48.0
	DefaultCutoffProbe = 52.0
	DefaultDecelRate   = 0.0003
	DefaultDecelFloor  = 0.85

	DefaultTopN   = 5
	DefaultAggMax = 500.0

	DefaultMinIncrement = 0.01
	DefaultMinDecrement = 0.01
)

// FadeProfile 控制參考曲線在覆蓋範圍下緣的權重衰減形狀。
// 資料越稀疏的年份衰減越陡（cubic），覆蓋完整的年份用 linear 即可。
type FadeProfile string

const (
	FadeCubic  FadeProfile = "cubic"
	FadeLinear FadeProfile = "linear"
)

// ReferenceSetting 描述一條歷史參考曲線的混合參數。
type ReferenceSetting struct {
	Year        int         `yaml:"year"         json:"year"`
	Weight      float64     `yaml:"weight"       json:"weight"`
	FadeZone    float64     `yaml:"fade_zone"    json:"fade_zone"`
	FadeProfile FadeProfile `yaml:"fade_profile" json:"fade_profile"`
}

// GridSetting 定義 rank 網格（由低到高、固定步長）。
type GridSetting struct {
	Lo   float64 `yaml:"lo"   json:"lo"`
	Hi   float64 `yaml:"hi"   json:"hi"`
	Step float64 `yaml:"step" json:"step"`
}

// ScaleSetting 包含建立一整年度換算表所需的所有高階設定。
type ScaleSetting struct {
	Year       int                `yaml:"year"        json:"year"`
	Grid       GridSetting        `yaml:"grid"        json:"grid"`
	References []ReferenceSetting `yaml:"references"  json:"references"`

	// 低分段外插：混合結果在 LowCutoff 以下視為不可靠，
	// 改用 [LowCutoff, CutoffProbe] 區段的平均梯度向下延伸。
	LowCutoff   float64 `yaml:"low_cutoff"   json:"low_cutoff"`
	CutoffProbe float64 `yaml:"cutoff_probe" json:"cutoff_probe"`
	DecelRate   float64 `yaml:"decel_rate"   json:"decel_rate"`
	DecelFloor  float64 `yaml:"decel_floor"  json:"decel_floor"`

	TopN           int     `yaml:"top_n"            json:"top_n"`
	SimBlendWeight float64 `yaml:"sim_blend_weight" json:"sim_blend_weight"`
	AggMax         float64 `yaml:"agg_max"          json:"agg_max"`

	MinIncrement float64 `yaml:"min_increment" json:"min_increment"`
	MinDecrement float64 `yaml:"min_decrement" json:"min_decrement"`

	Extra map[string]any `yaml:"extra" json:"extra"`
}

// init 補上預設值後執行檢查。
func (ss *ScaleSetting) init() error {
	if ss.Grid.Lo == 0 && ss.Grid.Hi == 0 {
		ss.Grid = GridSetting{Lo: DefaultGridLo, Hi: DefaultGridHi, Step: DefaultGridStep}
	}
	if ss.Grid.Step == 0 {
		ss.Grid.Step = DefaultGridStep
	}
	if ss.LowCutoff == 0 {
		ss.LowCutoff = DefaultLowCutoff
	}
	if ss.CutoffProbe == 0 {
		ss.CutoffProbe = DefaultCutoffProbe
	}
	if ss.DecelRate == 0 {
		ss.DecelRate = DefaultDecelRate
	}
	if ss.DecelFloor == 0 {
		ss.DecelFloor = DefaultDecelFloor
	}
	if ss.TopN == 0 {
		ss.TopN = DefaultTopN
	}
	if ss.AggMax == 0 {
		ss.AggMax = DefaultAggMax
	}
	if ss.MinIncrement == 0 {
		ss.MinIncrement = DefaultMinIncrement
	}
	if ss.MinDecrement == 0 {
		ss.MinDecrement = DefaultMinDecrement
	}
	for i := range ss.References {
		if ss.References[i].FadeProfile == "" {
			ss.References[i].FadeProfile = FadeLinear
		}
	}
	return ss.valid()
}

// valid 執行最基本的設定檔檢查，如需更多驗證可在此擴充。
func (ss *ScaleSetting) valid() error {

	if ss.Year < 2023 {
		return errs.Fatalf("scale_setting: year must be 2023 or later, got %d", ss.Year)
	}

	if ss.Grid.Step <= 0 || ss.Grid.Lo >= ss.Grid.Hi {
		return errs.Fatalf("scale_setting: invalid grid lo=%.2f hi=%.2f step=%.2f",
			ss.Grid.Lo, ss.Grid.Hi, ss.Grid.Step)
	}

	// 檢查 References 不能為空，權重總和必須為 1
	if len(ss.References) == 0 {
		return errs.NewFatal("scale_setting: empty references")
	}
	sum := 0.0
	for _, r := range ss.References {
		if r.Year <= 0 || r.Year >= ss.Year {
			return errs.Fatalf("scale_setting: reference year %d must precede %d", r.Year, ss.Year)
		}
		if r.Weight <= 0 {
			return errs.Fatalf("scale_setting: reference %d weight must be positive", r.Year)
		}
		if r.FadeZone < 0 {
			return errs.Fatalf("scale_setting: reference %d fade_zone must not be negative", r.Year)
		}
		if r.FadeProfile != FadeCubic && r.FadeProfile != FadeLinear {
			return errs.Fatalf("scale_setting: reference %d unknown fade_profile %q", r.Year, r.FadeProfile)
		}
		sum += r.Weight
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return errs.Fatalf("scale_setting: reference weights must sum to 1, got %.4f", sum)
	}

	if ss.LowCutoff < ss.Grid.Lo || ss.LowCutoff > ss.Grid.Hi {
		return errs.Fatalf("scale_setting: low_cutoff %.2f outside grid", ss.LowCutoff)
	}
	if ss.CutoffProbe <= ss.LowCutoff {
		return errs.Fatalf("scale_setting: cutoff_probe %.2f must exceed low_cutoff %.2f",
			ss.CutoffProbe, ss.LowCutoff)
	}
	if ss.DecelFloor <= 0 || ss.DecelFloor > 1 {
		return errs.Fatalf("scale_setting: decel_floor %.2f out of (0,1]", ss.DecelFloor)
	}

	if ss.TopN < 1 {
		return errs.Fatalf("scale_setting: top_n must be at least 1, got %d", ss.TopN)
	}
	if ss.SimBlendWeight < 0 || ss.SimBlendWeight > 1 {
		return errs.Fatalf("scale_setting: sim_blend_weight %.2f out of [0,1]", ss.SimBlendWeight)
	}
	if ss.AggMax <= 0 {
		return errs.NewFatal("scale_setting: agg_max must be positive")
	}
	if ss.MinIncrement <= 0 || ss.MinDecrement <= 0 {
		return errs.NewFatal("scale_setting: min_increment and min_decrement must be positive")
	}

	return nil
}

// GridPoints 依設定展開 rank 網格（含頭尾，四捨五入到兩位避免累積誤差）。
func (ss *ScaleSetting) GridPoints() []float64 {
	n := int(math.Round((ss.Grid.Hi-ss.Grid.Lo)/ss.Grid.Step)) + 1
	pts := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v := ss.Grid.Lo + float64(i)*ss.Grid.Step
		pts = append(pts, math.Round(v*100)/100)
	}
	return pts
}
