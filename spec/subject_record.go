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
	"fmt"

	"github.com/zintix-labs/scalelab/errs"
)

// SID 為科目的穩定數值編號（跨年度不變，供輸出表使用）。
type SID uint32

// Kind 區分科目曲線的資料形態。
type Kind string

const (
	KindGeneral    Kind = "general"    // 具完整百分位量測，可擬合曲線
	KindNoData     Kind = "nodata"     // 母體低於回報門檻，不產生曲線
	KindApplied    Kind = "applied"    // 僅三個等第換算值（C/B/A）
	KindVocational Kind = "vocational" // 單一固定換算值
)

// Point 是一個錨點量測：原始分數與換算分數。
type Point struct {
	Raw    float64 `yaml:"raw"    json:"raw"`
	Scaled float64 `yaml:"scaled" json:"scaled"`
}

// PercentileData 為 general 科目的五個固定百分位錨點。
// 這五點由量測供應端提供，擬合流程不得修改。
type PercentileData struct {
	P25 Point `yaml:"p25" json:"p25"`
	P50 Point `yaml:"p50" json:"p50"`
	P75 Point `yaml:"p75" json:"p75"`
	P90 Point `yaml:"p90" json:"p90"`
	P99 Point `yaml:"p99" json:"p99"`
}

// AppliedData 為 applied 科目的三個等第換算值。
type AppliedData struct {
	C float64 `yaml:"c" json:"c"`
	B float64 `yaml:"b" json:"b"`
	A float64 `yaml:"a" json:"a"`
}

// VocationalData 為 vocational 科目的固定換算值。
type VocationalData struct {
	Scaled float64 `yaml:"scaled" json:"scaled"`
}

// BoundarySetting 為人工固定的邊界點位置；存在時跳過自動搜尋。
type BoundarySetting struct {
	MinX   float64 `yaml:"min_x"   json:"min_x"`
	LowerY float64 `yaml:"lower_y" json:"lower_y"`
}

// SubjectRecord 描述一筆科目設定。
// kind 決定 Data 內容的解讀方式：
//   - general    -> PercentileData
//   - applied    -> AppliedData
//   - vocational -> VocationalData
//   - nodata     -> 無資料
type SubjectRecord struct {
	Code   string           `yaml:"code"     json:"code"`
	Name   string           `yaml:"name"     json:"name"`
	SID    SID              `yaml:"sid"      json:"sid"`
	Kind   Kind             `yaml:"kind"     json:"kind"`
	Data   map[string]any   `yaml:"data"     json:"data"`
	Pinned *BoundarySetting `yaml:"boundary" json:"boundary,omitempty"`
}

// SubjectFile 為一份科目設定檔；一個檔案可含多筆科目。
// Degraded 記錄載入時被降級為 nodata 的科目與原因，供上層寫入稽核紀錄。
type SubjectFile struct {
	Subjects []SubjectRecord `yaml:"subjects" json:"subjects"`
	Degraded []string        `yaml:"-"        json:"-"`
}

// init 逐筆正規化：缺漏或不完整的 general 紀錄降級為 nodata，
// 結構性錯誤（空名稱、未知 kind）才會使載入失敗。
func (sf *SubjectFile) init() error {
	if len(sf.Subjects) == 0 {
		return errs.NewFatal("subject file: empty subjects")
	}
	for i := range sf.Subjects {
		rec := &sf.Subjects[i]
		note, err := rec.normalize()
		if err != nil {
			return err
		}
		if note != "" {
			sf.Degraded = append(sf.Degraded, note)
		}
	}
	return nil
}

// normalize 檢查單筆紀錄。回傳非空字串表示該科目被降級。
func (sr *SubjectRecord) normalize() (string, error) {
	if sr.Name == "" {
		return "", errs.Fatalf("subject record: empty name (code=%s)", sr.Code)
	}

	switch sr.Kind {
	case KindNoData:
		return "", nil

	case KindGeneral:
		pd, err := DecodeData[PercentileData](sr)
		if err != nil || !pd.complete() {
			sr.Kind = KindNoData
			sr.Data = nil
			return fmt.Sprintf("%s: incomplete percentile data, degraded to nodata", sr.Name), nil
		}
		return "", nil

	case KindApplied:
		ad, err := DecodeData[AppliedData](sr)
		if err != nil || ad.C <= 0 || ad.B <= 0 || ad.A <= 0 {
			sr.Kind = KindNoData
			sr.Data = nil
			return fmt.Sprintf("%s: incomplete applied grades, degraded to nodata", sr.Name), nil
		}
		return "", nil

	case KindVocational:
		vd, err := DecodeData[VocationalData](sr)
		if err != nil || vd.Scaled <= 0 {
			sr.Kind = KindNoData
			sr.Data = nil
			return fmt.Sprintf("%s: missing scaled value, degraded to nodata", sr.Name), nil
		}
		return "", nil

	default:
		return "", errs.Fatalf("subject record: unknown kind %q (name=%s)", sr.Kind, sr.Name)
	}
}

// complete 檢查五個百分位錨點是否齊備且 raw 嚴格遞增。
func (pd *PercentileData) complete() bool {
	pts := pd.Points()
	for _, p := range pts {
		if p.Raw <= 0 || p.Scaled <= 0 {
			return false
		}
	}
	for i := 1; i < len(pts); i++ {
		if pts[i].Raw <= pts[i-1].Raw {
			return false
		}
	}
	return true
}

// Points 依百分位由低到高回傳五個錨點。
func (pd *PercentileData) Points() [5]Point {
	return [5]Point{pd.P25, pd.P50, pd.P75, pd.P90, pd.P99}
}

// Percentiles 解出 general 科目的百分位資料。
// 只應在 normalize 通過後呼叫；nodata 科目會回傳錯誤。
func (sr *SubjectRecord) Percentiles() (*PercentileData, error) {
	if sr.Kind != KindGeneral {
		return nil, errs.Warnf("subject %s: kind %s carries no percentile data", sr.Name, sr.Kind)
	}
	return DecodeData[PercentileData](sr)
}

// Applied 解出 applied 科目的等第換算值。
func (sr *SubjectRecord) Applied() (*AppliedData, error) {
	if sr.Kind != KindApplied {
		return nil, errs.Warnf("subject %s: kind %s carries no applied grades", sr.Name, sr.Kind)
	}
	return DecodeData[AppliedData](sr)
}

// Vocational 解出 vocational 科目的固定換算值。
func (sr *SubjectRecord) Vocational() (*VocationalData, error) {
	if sr.Kind != KindVocational {
		return nil, errs.Warnf("subject %s: kind %s carries no flat value", sr.Name, sr.Kind)
	}
	return DecodeData[VocationalData](sr)
}
