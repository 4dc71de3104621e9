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

package recorder

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zintix-labs/scalelab/dto"
	"github.com/zintix-labs/scalelab/lookup"
)

func sampleRows() []dto.SubjectRow {
	return []dto.SubjectRow{
		dto.NewVocationalRow("Diploma in Business", 91, 58.72),
		dto.NewNoDataRow("Quiet Subject", 33),
	}
}

func sampleTable() *lookup.Table {
	return &lookup.Table{
		Rows: []dto.LookupRow{
			{Rank: 99.95, Agg: 488.62, Count: 37, Cumulative: 37, CumPct: 0.12},
			{Rank: 99.90, Agg: 487.10, Count: 37, Cumulative: 74, CumPct: 0.25},
		},
	}
}

func TestWriteSubjectsTSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSubjects(&buf, sampleRows()); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	cr := csv.NewReader(&buf)
	cr.Comma = '\t'
	recs, err := cr.ReadAll()
	if err != nil {
		t.Fatalf("parse back failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(recs))
	}
	if recs[0][0] != "Subject Name" || len(recs[0]) != 27 {
		t.Fatalf("header broken: %v", recs[0])
	}
	// 名稱含空白必須原樣保留
	if recs[1][0] != "Diploma in Business" || recs[1][3] != "58.72" {
		t.Fatalf("row content broken: %v", recs[1])
	}
}

func TestWriteLookupCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteLookup(&buf, sampleTable()); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse back failed: %v", err)
	}
	if len(recs) != 3 || len(recs[0]) != 5 {
		t.Fatalf("unexpected shape: %v", recs)
	}
	if recs[1][0] != "99.95" || recs[1][1] != "488.62" {
		t.Fatalf("row ordering broken: %v", recs[1])
	}
}

func TestExportRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	written, err := ExportRun(dir, 2025, sampleRows(), sampleTable())
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("expected 2 files, got %v", written)
	}
	if filepath.Base(written[0]) != "course_scales_2025.tsv" ||
		filepath.Base(written[1]) != "aggregate_lookup_2025.csv" {
		t.Fatalf("unexpected filenames: %v", written)
	}
	for _, p := range written {
		body, err := os.ReadFile(p)
		if err != nil || len(body) == 0 {
			t.Fatalf("file %s unreadable: %v", p, err)
		}
	}

	// 重跑同一年度直接覆寫
	if _, err := ExportRun(dir, 2025, sampleRows()[:1], nil); err != nil {
		t.Fatalf("rerun failed: %v", err)
	}
	body, err := os.ReadFile(written[0])
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got := strings.Count(string(body), "\n"); got != 2 {
		t.Fatalf("rerun should overwrite, got %d lines", got)
	}
}

func TestExportRunWithoutTable(t *testing.T) {
	written, err := ExportRun(t.TempDir(), 2024, sampleRows(), nil)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if len(written) != 1 || !strings.HasSuffix(written[0], "course_scales_2024.tsv") {
		t.Fatalf("table-less export broken: %v", written)
	}
}
