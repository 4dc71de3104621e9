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

// Package recorder 負責建表結果的檔案輸出：
// 科目換算表輸出 TSV（27 欄 科目名稱可含空白），
// aggregate 查表輸出 CSV（5 欄）。
//
// 輸出是 run 的終點產物，檔名帶年度，重跑同一年度直接覆寫。
package recorder

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zintix-labs/scalelab/dto"
	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/lookup"
)

// WriteSubjects 以 TSV 寫出科目換算表（含標頭列）。
func WriteSubjects(w io.Writer, rows []dto.SubjectRow) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(dto.SubjectColumns()); err != nil {
		return errs.Wrap(err, "recorder: write subject header failed")
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return errs.Wrap(err, "recorder: write subject row failed")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errs.Wrap(err, "recorder: flush subjects failed")
	}
	return nil
}

// WriteLookup 以 CSV 寫出 aggregate 查表（含標頭列，由高 rank 到低）。
func WriteLookup(w io.Writer, t *lookup.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(dto.LookupColumns()); err != nil {
		return errs.Wrap(err, "recorder: write lookup header failed")
	}
	for _, r := range t.Rows {
		if err := cw.Write(r.Record()); err != nil {
			return errs.Wrap(err, "recorder: write lookup row failed")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errs.Wrap(err, "recorder: flush lookup failed")
	}
	return nil
}

// ExportRun 把一次完整建表的產物寫進 dir：
// course_scales_YYYY.tsv 與 aggregate_lookup_YYYY.csv。
// 回傳實際寫出的檔案路徑。
func ExportRun(dir string, year int, rows []dto.SubjectRow, t *lookup.Table) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(err, "recorder: mkdir failed")
	}

	var written []string
	subjects := filepath.Join(dir, fmt.Sprintf("course_scales_%d.tsv", year))
	if err := writeFile(subjects, func(w io.Writer) error {
		return WriteSubjects(w, rows)
	}); err != nil {
		return nil, err
	}
	written = append(written, subjects)

	if t != nil {
		table := filepath.Join(dir, fmt.Sprintf("aggregate_lookup_%d.csv", year))
		if err := writeFile(table, func(w io.Writer) error {
			return WriteLookup(w, t)
		}); err != nil {
			return nil, err
		}
		written = append(written, table)
	}
	return written, nil
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(err, "recorder: create failed")
	}
	if err := fill(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errs.Wrap(err, "recorder: close failed")
	}
	return nil
}
