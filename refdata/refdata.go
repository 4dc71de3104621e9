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

// Package refdata 內建 2025 年度的完整參考資料集：
// 科目設定檔、年度建表設定、公布的人數分布，以及兩個參考年份的
// (rank, aggregate) 原始觀測對。
//
// 全部以 go:embed 編進 binary，CLI 與後端不依賴工作目錄即可起跑。
// 參考年份資料僅供首次播種（Seed）歷史儲存庫；之後一律以檔案為準。
package refdata

import (
	"bytes"
	"embed"
	"encoding/csv"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"

	"github.com/zintix-labs/scalelab"
	"github.com/zintix-labs/scalelab/archive"
	"github.com/zintix-labs/scalelab/dto"
	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/refdata/subject_configs"
	"github.com/zintix-labs/scalelab/server/logger"
	"github.com/zintix-labs/scalelab/server/svrcfg"
	"github.com/zintix-labs/scalelab/spec"
)

//go:embed scale_2025.yaml bands_2025.yaml reference_2024.csv reference_2023.csv
var files embed.FS

// Configs 回傳內建科目設定檔來源，可直接交給 scalelab.New。
func Configs() []fs.FS {
	return scalelab.Configs(subject_configs.FS)
}

// Setting 載入內建年度建表設定。
func Setting() (*spec.ScaleSetting, error) {
	raw, err := files.ReadFile("scale_2025.yaml")
	if err != nil {
		return nil, errs.Wrap(err, "refdata: read scale setting failed")
	}
	return spec.GetScaleSettingByYAML(raw)
}

// Bands 載入內建人數分布設定。
func Bands() (*spec.BandSetting, error) {
	raw, err := files.ReadFile("bands_2025.yaml")
	if err != nil {
		return nil, errs.Wrap(err, "refdata: read band setting failed")
	}
	return spec.GetBandSettingByYAML(raw)
}

// Seeds 回傳各參考年份的原始 (rank, aggregate) 觀測對。
// 觀測對未排序也可能重複 rank；清洗由 blend 層負責。
func Seeds() (map[int][]dto.RankAgg, error) {
	out := make(map[int][]dto.RankAgg, 2)
	for year, name := range map[int]string{
		2024: "reference_2024.csv",
		2023: "reference_2023.csv",
	} {
		raw, err := files.ReadFile(name)
		if err != nil {
			return nil, errs.Wrap(err, "refdata: read reference failed")
		}
		pairs, err := parsePairs(raw)
		if err != nil {
			return nil, errs.WrapWithExtra(err, "refdata: parse reference failed", name)
		}
		out[year] = pairs
	}
	return out, nil
}

// parsePairs 解析 Rank,Aggregate 形式的 CSV（首列為標頭）。
// 內建資料不該有壞列，任何解析失敗都是 Fatal。
func parsePairs(raw []byte) ([]dto.RankAgg, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	pairs := make([]dto.RankAgg, 0, len(records))
	for i, rec := range records {
		if i == 0 {
			continue // header
		}
		if len(rec) < 2 {
			return nil, errs.Fatalf("refdata: malformed row %d", i+1)
		}
		rank, err1 := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		agg, err2 := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err1 != nil || err2 != nil {
			return nil, errs.Fatalf("refdata: malformed row %d", i+1)
		}
		pairs = append(pairs, dto.RankAgg{Rank: rank, Agg: agg})
	}
	if len(pairs) < 2 {
		return nil, errs.NewFatal("refdata: reference needs at least 2 pairs")
	}
	return pairs, nil
}

// NewLab 用內建資料組裝一個已凍結、可直接執行的 Lab，
// 歷史儲存庫指向 storeDir，參考年份首次執行時播種。
func NewLab(storeDir string, log *slog.Logger) (*scalelab.Lab, error) {
	set, err := Setting()
	if err != nil {
		return nil, err
	}
	bands, err := Bands()
	if err != nil {
		return nil, err
	}
	store := archive.New(storeDir, log)
	lab, err := scalelab.NewAuto(set, bands, Configs(), store, log)
	if err != nil {
		return nil, err
	}
	seeds, err := Seeds()
	if err != nil {
		return nil, err
	}
	if err := lab.SeedReferences(seeds); err != nil {
		return nil, err
	}
	return lab, nil
}

// NewServerConfig 組出後端預設設定：內建資料 + 非同步 logger。
func NewServerConfig(storeDir string) (*svrcfg.SvrCfg, error) {
	log := logger.NewDefaultAsyncLogger(logger.ModeDev)
	lab, err := NewLab(storeDir, log)
	if err != nil {
		return nil, errs.NewFatal("new lab failed:" + err.Error())
	}
	return &svrcfg.SvrCfg{
		Log:        log,
		FitWorkers: 8,
		Lab:        lab,
	}, nil
}
