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

// Package dto 定義對外輸出的資料列結構：
// 科目換算表（27 欄）、aggregate 查表（5 欄）與歷史檔案的 (rank, aggregate) 對。
package dto

import (
	"strconv"

	"github.com/zintix-labs/scalelab/curve"
	"github.com/zintix-labs/scalelab/spec"
)

// RankAgg 為一筆 (rank-score, aggregate) 配對，歷史檔案與混合器共用。
type RankAgg struct {
	Rank float64 `json:"rank"`
	Agg  float64 `json:"agg"`
}

// SubjectRow 為科目換算表的一列：身分、8 個 X 錨點、8 個 Y 錨點、
// 5 個四次式係數與 4 個三次式係數，共 27 個語意欄位。
type SubjectRow struct {
	Name string   `json:"name"`
	SID  spec.SID `json:"sid"`

	MinX   float64 `json:"min_x"`
	LowerX float64 `json:"lower_x"`
	P25X   float64 `json:"p25_x"`
	P50X   float64 `json:"p50_x"`
	P75X   float64 `json:"p75_x"`
	P90X   float64 `json:"p90_x"`
	P99X   float64 `json:"p99_x"`
	MaxX   float64 `json:"max_x"`

	MinY   float64 `json:"min_y"`
	LowerY float64 `json:"lower_y"`
	P25Y   float64 `json:"p25_y"`
	P50Y   float64 `json:"p50_y"`
	P75Y   float64 `json:"p75_y"`
	P90Y   float64 `json:"p90_y"`
	P99Y   float64 `json:"p99_y"`
	MaxY   float64 `json:"max_y"`

	X4 float64 `json:"x4"`
	X3 float64 `json:"x3"`
	X2 float64 `json:"x2"`
	X1 float64 `json:"x1"`
	X0 float64 `json:"x0"`

	Z3 float64 `json:"z3"`
	Z2 float64 `json:"z2"`
	Z1 float64 `json:"z1"`
	Z0 float64 `json:"z0"`
}

// SubjectColumns 回傳科目表的欄位名稱（TSV 輸出用，順序固定）。
func SubjectColumns() []string {
	return []string{
		"Subject Name", "Subject ID",
		"Min X", "Lower X", "P25 X", "P50 X", "P75 X", "P90 X", "P99 X", "Max X",
		"Min Y", "Lower Y", "P25 Y", "P50 Y", "P75 Y", "P90 Y", "P99 Y", "Max Y",
		"X4", "X3", "X2", "X1", "X0", "Z3", "Z2", "Z1", "Z0",
	}
}

// Record 將一列轉為字串欄位：錨點固定兩位小數，係數保留完整精度。
func (r SubjectRow) Record() []string {
	f2 := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	fg := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return []string{
		r.Name, strconv.FormatUint(uint64(r.SID), 10),
		f2(r.MinX), f2(r.LowerX), f2(r.P25X), f2(r.P50X), f2(r.P75X), f2(r.P90X), f2(r.P99X), f2(r.MaxX),
		f2(r.MinY), f2(r.LowerY), f2(r.P25Y), f2(r.P50Y), f2(r.P75Y), f2(r.P90Y), f2(r.P99Y), f2(r.MaxY),
		fg(r.X4), fg(r.X3), fg(r.X2), fg(r.X1), fg(r.X0),
		fg(r.Z3), fg(r.Z2), fg(r.Z1), fg(r.Z0),
	}
}

// NewGeneralRow 由擬合完成的曲線組出科目列。
func NewGeneralRow(name string, sid spec.SID, cv *curve.Curve) SubjectRow {
	as := cv.Anchors
	return SubjectRow{
		Name: name, SID: sid,
		MinX: as.Min.X, LowerX: as.Lower.X, P25X: as.P25.X, P50X: as.P50.X,
		P75X: as.P75.X, P90X: as.P90.X, P99X: as.P99.X, MaxX: as.Max.X,
		MinY: as.Min.Y, LowerY: as.Lower.Y, P25Y: as.P25.Y, P50Y: as.P50.Y,
		P75Y: as.P75.Y, P90Y: as.P90.Y, P99Y: as.P99.Y, MaxY: as.Max.Y,
		X4: cv.Quartic[4], X3: cv.Quartic[3], X2: cv.Quartic[2], X1: cv.Quartic[1], X0: cv.Quartic[0],
		Z3: cv.Cubic[3], Z2: cv.Cubic[2], Z1: cv.Cubic[1], Z0: cv.Cubic[0],
	}
}

// NewNoDataRow 為低於回報門檻的科目：僅保留 Min.X 預設位置，其餘為零。
func NewNoDataRow(name string, sid spec.SID) SubjectRow {
	return SubjectRow{Name: name, SID: sid, MinX: curve.DefaultMinX}
}

// NewAppliedRow 為三等第科目：C/B/A 換算值依序放在 P50Y/P75Y/P90Y 槽位。
func NewAppliedRow(name string, sid spec.SID, ad *spec.AppliedData) SubjectRow {
	return SubjectRow{
		Name: name, SID: sid, MinX: curve.DefaultMinX,
		P50Y: ad.C, P75Y: ad.B, P90Y: ad.A,
	}
}

// NewVocationalRow 為固定換算值科目：所有百分位槽位填同一個值。
func NewVocationalRow(name string, sid spec.SID, scaled float64) SubjectRow {
	return SubjectRow{
		Name: name, SID: sid, MinX: 0,
		LowerX: scaled, P25X: scaled, P50X: scaled, P75X: scaled,
		P90X: scaled, P99X: scaled, MaxX: scaled,
		LowerY: scaled, P25Y: scaled, P50Y: scaled, P75Y: scaled,
		P90Y: scaled, P99Y: scaled, MaxY: scaled,
	}
}

// LookupRow 為 aggregate 查表的一列。
type LookupRow struct {
	Rank       float64 `json:"rank"`
	Agg        float64 `json:"agg"`
	Count      int     `json:"count"`
	Cumulative int     `json:"cumulative"`
	CumPct     float64 `json:"cum_pct"`
}

// LookupColumns 回傳查表的欄位名稱（CSV 輸出用）。
func LookupColumns() []string {
	return []string{"Rank", "Aggregate", "Students_in_Band", "Cumulative_Students", "Cumulative_Pct"}
}

// Record 將一列轉為字串欄位。
func (r LookupRow) Record() []string {
	return []string{
		strconv.FormatFloat(r.Rank, 'f', 2, 64),
		strconv.FormatFloat(r.Agg, 'f', 2, 64),
		strconv.Itoa(r.Count),
		strconv.Itoa(r.Cumulative),
		strconv.FormatFloat(r.CumPct, 'f', 2, 64),
	}
}
