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

// Package archive 實作換算表的年度歷史儲存庫。
//
// 目錄下每年一個 scale_YYYY.csv（欄位 Rank,Aggregate，rank 升冪）。
// 儲存庫是整個系統唯一的持久共享資源：每次執行啟動時讀一次、
// 結束時最多寫入一筆，不需防禦並行寫入。
// 損壞的檔案列跳過並記警告，不中止執行。
package archive

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/zintix-labs/scalelab/dto"
	"github.com/zintix-labs/scalelab/errs"
)

// Store 為目錄型歷史儲存庫。
type Store struct {
	dir string
	log *slog.Logger
}

// New 建立儲存庫；目錄不存在時於首次寫入建立。
func New(dir string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Store{dir: dir, log: log}
}

// Dir 回傳儲存庫目錄。
func (s *Store) Dir() string { return s.dir }

func (s *Store) pathFor(year int) string {
	return filepath.Join(s.dir, fmt.Sprintf("scale_%d.csv", year))
}

// yearFrom 解析檔名中的年份；非 scale_YYYY.csv 形式回報 false。
func yearFrom(name string) (int, bool) {
	if !strings.HasPrefix(name, "scale_") || !strings.HasSuffix(name, ".csv") {
		return 0, false
	}
	y, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "scale_"), ".csv"))
	if err != nil || y <= 0 {
		return 0, false
	}
	return y, true
}

// LoadAll 讀取所有年度。目錄不存在視為空儲存庫；
// 無法解析的檔案整份跳過並記警告。
func (s *Store) LoadAll() (map[int][]dto.RankAgg, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[int][]dto.RankAgg{}, nil
		}
		return nil, errs.Wrap(err, "archive: read dir failed")
	}

	out := make(map[int][]dto.RankAgg, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		year, ok := yearFrom(e.Name())
		if !ok {
			continue
		}
		pairs, err := s.readFile(filepath.Join(s.dir, e.Name()))
		if err != nil || len(pairs) == 0 {
			s.log.Warn("archive entry skipped", "file", e.Name(), "err", err)
			continue
		}
		out[year] = pairs
	}
	return out, nil
}

// Load 讀取單一年度。
func (s *Store) Load(year int) ([]dto.RankAgg, error) {
	pairs, err := s.readFile(s.pathFor(year))
	if err != nil {
		return nil, errs.WrapWithExtra(err, "archive: load failed", fmt.Sprintf("year=%d", year))
	}
	return pairs, nil
}

// Years 回傳儲存庫內的年度（升冪）。
func (s *Store) Years() []int {
	all, err := s.LoadAll()
	if err != nil {
		return nil
	}
	years := make([]int, 0, len(all))
	for y := range all {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Append 寫入一個年度（覆寫既有檔案：同一年重跑以最新結果為準）。
func (s *Store) Append(year int, pairs []dto.RankAgg) error {
	if len(pairs) == 0 {
		return errs.Warnf("archive: refusing to write empty scale for %d", year)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errs.Wrap(err, "archive: mkdir failed")
	}

	sorted := append([]dto.RankAgg(nil), pairs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	f, err := os.Create(s.pathFor(year))
	if err != nil {
		return errs.Wrap(err, "archive: create failed")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Rank", "Aggregate"}); err != nil {
		return errs.Wrap(err, "archive: write header failed")
	}
	for _, p := range sorted {
		if err := w.Write([]string{
			strconv.FormatFloat(p.Rank, 'f', 2, 64),
			strconv.FormatFloat(p.Agg, 'f', 2, 64),
		}); err != nil {
			return errs.Wrap(err, "archive: write row failed")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errs.Wrap(err, "archive: flush failed")
	}

	s.log.Info("archive entry written", "year", year, "bands", len(sorted))
	return nil
}

// Seed 僅在該年度不存在時寫入參考資料，回報是否實際寫入。
// 參考年份首次執行時播種，之後的執行一律以檔案為準。
func (s *Store) Seed(year int, pairs []dto.RankAgg) (bool, error) {
	if _, err := os.Stat(s.pathFor(year)); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, errs.Wrap(err, "archive: stat failed")
	}
	if err := s.Append(year, pairs); err != nil {
		return false, err
	}
	return true, nil
}

// readFile 解析一份年度檔；無法解析的列跳過並計數。
func (s *Store) readFile(path string) ([]dto.RankAgg, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	var pairs []dto.RankAgg
	skipped := 0
	for i, rec := range records {
		if i == 0 && len(rec) > 0 && !isNumeric(rec[0]) {
			continue // header
		}
		if len(rec) < 2 {
			skipped++
			continue
		}
		rank, err1 := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		agg, err2 := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err1 != nil || err2 != nil {
			skipped++
			continue
		}
		pairs = append(pairs, dto.RankAgg{Rank: rank, Agg: agg})
	}
	if skipped > 0 {
		s.log.Warn("archive rows skipped", "file", filepath.Base(path), "rows", skipped)
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Rank < pairs[j].Rank })
	return pairs, nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}
