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

// Package scalelab 提供換算表建構引擎的「組裝入口（assembler）」與「運行入口（runtime entry）」。
//
// 你可以把 Lab 視為一個「可被 CLI/後端使用的 runtime」，它把下列地基組裝在一起：
//  1. Catalog：科目目錄（Single Source of Truth / SSOT），定義有哪些科目、各自來自哪個設定檔。
//  2. ScaleSetting：年度建表設定（網格、參考年份與權重、低分段外插、模擬混合）。
//  3. BandSetting：公布的人數分布（細分帶 + 區間帶）。
//  4. archive.Store：年度換算表的歷史儲存庫，參考曲線與回測都由它供給。
//
// 設計重點：
//   - Lab 本身不綁定任何「檔案路徑」概念：科目設定來源一律以 fs.FS 的形式注入。
//   - 歷史儲存庫是唯一的持久資源，參考年份可由內建資料播種（Seed），之後一律以檔案為準。
//   - Catalog 凍結（Freeze）後進入執行階段，不可再註冊科目。
//
// 典型使用情境：
//   - CLI（cmd/run）：一次跑完 擬合 → 混合 → 查表 → 回測 → 歸檔。
//   - 後端服務（cmd/svr）：由 Lab 提供科目查詢、單科擬合、查表與回測端點。
package scalelab

import (
	"io/fs"
	"log/slog"

	"github.com/zintix-labs/scalelab/archive"
	"github.com/zintix-labs/scalelab/catalog"
	"github.com/zintix-labs/scalelab/dto"
	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/spec"
)

// Configs 用來把一或多個設定檔來源（fs.FS）打包成 New() 需要的參數。
//
// 為什麼是 fs.FS：
//   - 你可以用 go:embed 把 configs 直接編進 binary（部署最穩定，不依賴工作目錄）。
//   - 也可以用 os.DirFS 在本機開發時讀取目錄。
func Configs(cfgs ...fs.FS) []fs.FS {
	return cfgs
}

// Lab 是「組裝器（assembler）」與「運行入口（runtime entry）」。
//
// 使用流程通常分成兩階段：
//   - 註冊/組裝階段（registration/build）：建立 catalog、掃描科目檔、套用去重政策。
//   - 執行階段（runtime）：擬合全科目曲線、建立混合查表、回測與歸檔。
//
// 重要設計原則：
//   - Catalog 的 SID 唯一性只保證在「同一個 Lab instance」內。
//   - 你要跑哪一批科目、哪一套設定，必須由 New() 的參數明確決定。
//   - runtime 一旦開始（例如已對外服務），不可再變更 Catalog。
type Lab struct {
	cat   *catalog.Catalog
	set   *spec.ScaleSetting
	bands *spec.BandSetting
	store *archive.Store
	log   *slog.Logger
	sum   []catalog.Summary
}

// New 建立一個 Lab instance。
//
// 這是「組裝階段（registration/build）」的入口：
//   - 會建立 Catalog（同時做檔名存在性/重複性檢查，避免 runtime 才爆）。
//   - 會保存年度設定、人數分布與歷史儲存庫的引用。
//
// 參數要求（是合約的一部分）：
//   - set / bands 不能為 nil：沒有年度設定與人數分布就無法建表。
//   - cfgs 至少一個：沒有設定檔來源，Catalog 無法解析科目。
//   - store 不能為 nil：參考曲線與回測都依賴歷史儲存庫。
func New(set *spec.ScaleSetting, bands *spec.BandSetting, cfgs []fs.FS, store *archive.Store, log *slog.Logger) (*Lab, error) {
	if set == nil {
		return nil, errs.NewFatal("scale setting required")
	}
	if bands == nil {
		return nil, errs.NewFatal("band setting required")
	}
	if len(cfgs) == 0 {
		return nil, errs.NewFatal("configs required")
	}
	if store == nil {
		return nil, errs.NewFatal("archive store required")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	cata, err := catalog.New(cfgs...)
	if err != nil {
		return nil, err
	}
	return &Lab{
		cat:   cata,
		set:   set,
		bands: bands,
		store: store,
		log:   log,
	}, nil
}

// NewAuto 建立一個直接進入執行階段的 Lab instance：
// 掃描所有科目檔、套用去重政策後凍結 Catalog。
func NewAuto(set *spec.ScaleSetting, bands *spec.BandSetting, cfgs []fs.FS, store *archive.Store, log *slog.Logger) (*Lab, error) {
	lab, err := New(set, bands, cfgs, store, log)
	if err != nil {
		return nil, err
	}
	if err := lab.RegisterAll(); err != nil {
		return nil, err
	}
	lab.Freeze()
	return lab, nil
}

// RegisterAll 掃描 catalog 持有的設定檔來源並批次註冊所有科目。
//
// 行為特性（重要）：
//  1. Fail-fast：任何一個檔案讀取/解析失敗，都會立刻回傳 error。
//  2. 穩定性：依檔名排序後再處理，確保去重政策 determinism。
//  3. 資料不完整的科目在 spec 層已降級為 nodata，不會使註冊失敗；
//     降級與去重紀錄可由 Notes() 取回供稽核。
func (l *Lab) RegisterAll() error {
	if err := l.cat.RegisterAll(); err != nil {
		return err
	}
	for _, n := range l.cat.Notes() {
		l.log.Warn("subject degraded or deduplicated", "note", n)
	}
	return nil
}

func (l *Lab) Freeze() {
	l.cat.Freeze()
}

func (l *Lab) EntryById(id spec.SID) (catalog.Entry, bool) {
	return l.cat.GetByID(id)
}

func (l *Lab) EntryByName(name string) (catalog.Entry, bool) {
	return l.cat.GetByName(name)
}

func (l *Lab) IDs() []spec.SID {
	return l.cat.IDs()
}

func (l *Lab) All() []catalog.Entry {
	return l.cat.All()
}

// Record 回傳科目的原始設定紀錄。
func (l *Lab) Record(id spec.SID) (spec.SubjectRecord, bool) {
	return l.cat.Record(id)
}

// Notes 回傳載入時的降級與去重紀錄。
func (l *Lab) Notes() []string {
	return l.cat.Notes()
}

// Setting 回傳年度建表設定（只讀引用）。
func (l *Lab) Setting() *spec.ScaleSetting { return l.set }

// Bands 回傳人數分布設定（只讀引用）。
func (l *Lab) Bands() *spec.BandSetting { return l.bands }

// Store 回傳歷史儲存庫。
func (l *Lab) Store() *archive.Store { return l.store }

// Year 回傳建表年度。
func (l *Lab) Year() int { return l.set.Year }

func (l *Lab) Summary() ([]catalog.Summary, error) {
	if !l.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	if l.sum != nil {
		return l.sum, nil
	}
	l.sum = l.cat.Summaries()
	return l.sum, nil
}

// SeedReferences 把內建的參考年份資料播種進歷史儲存庫。
// 僅在該年度檔案不存在時寫入；已存在的年度一律以檔案為準。
func (l *Lab) SeedReferences(seeds map[int][]dto.RankAgg) error {
	for year, pairs := range seeds {
		wrote, err := l.store.Seed(year, pairs)
		if err != nil {
			return err
		}
		if wrote {
			l.log.Info("reference year seeded", "year", year, "bands", len(pairs))
		}
	}
	return nil
}
