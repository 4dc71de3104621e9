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

package dto

import (
	"testing"

	"github.com/zintix-labs/scalelab/curve"
	"github.com/zintix-labs/scalelab/spec"
)

func TestSubjectRowRecordWidth(t *testing.T) {
	cols := SubjectColumns()
	if len(cols) != 27 {
		t.Fatalf("expected 27 columns, got %d", len(cols))
	}
	row := NewNoDataRow("Quiet", 33)
	if rec := row.Record(); len(rec) != len(cols) {
		t.Fatalf("record width %d != column width %d", len(rec), len(cols))
	}
}

func TestNoDataRow(t *testing.T) {
	row := NewNoDataRow("Quiet", 33)
	if row.Name != "Quiet" || row.SID != 33 {
		t.Fatalf("identity broken: %+v", row)
	}
	if row.MinX != curve.DefaultMinX {
		t.Fatalf("min x should keep the default placement: %v", row.MinX)
	}
	if row.P50Y != 0 || row.MaxY != 0 {
		t.Fatalf("no-data row should leave scaled slots zeroed: %+v", row)
	}
}

func TestAppliedRowSlots(t *testing.T) {
	ad := &spec.AppliedData{C: 44.01, B: 44.01, A: 72.49}
	row := NewAppliedRow("Religion and Ethics", 68, ad)
	// C/B/A 依序落在 P50Y/P75Y/P90Y
	if row.P50Y != 44.01 || row.P75Y != 44.01 || row.P90Y != 72.49 {
		t.Fatalf("grade slots broken: %+v", row)
	}
	if row.MinX != curve.DefaultMinX || row.MaxY != 0 {
		t.Fatalf("non-grade slots should stay default: %+v", row)
	}
}

func TestVocationalRowFlatFill(t *testing.T) {
	row := NewVocationalRow("Diploma in Business", 91, 58.72)
	for i, v := range []float64{
		row.LowerX, row.P25X, row.P50X, row.P75X, row.P90X, row.P99X, row.MaxX,
		row.LowerY, row.P25Y, row.P50Y, row.P75Y, row.P90Y, row.P99Y, row.MaxY,
	} {
		if v != 58.72 {
			t.Fatalf("slot %d not flat-filled: %v", i, v)
		}
	}
	if row.MinX != 0 || row.MinY != 0 {
		t.Fatalf("min slots must stay zero: %+v", row)
	}
}

func TestRecordFormatting(t *testing.T) {
	row := SubjectRow{
		Name: "English", SID: 31,
		P25X: 61, P25Y: 52.675,
		X4: 1.25e-6, Z0: -3.5,
	}
	rec := row.Record()
	if rec[0] != "English" || rec[1] != "31" {
		t.Fatalf("identity columns broken: %v", rec[:2])
	}
	// 錨點兩位小數
	if rec[4] != "61.00" {
		t.Fatalf("anchor formatting broken: %v", rec[4])
	}
	if rec[12] != "52.67" && rec[12] != "52.68" {
		t.Fatalf("anchor rounding broken: %v", rec[12])
	}
	// 係數保留完整精度
	if rec[18] != "1.25e-06" {
		t.Fatalf("coefficient formatting broken: %v", rec[18])
	}
	if rec[26] != "-3.5" {
		t.Fatalf("coefficient formatting broken: %v", rec[26])
	}
}

func TestLookupRowRecord(t *testing.T) {
	cols := LookupColumns()
	if len(cols) != 5 {
		t.Fatalf("expected 5 columns, got %d", len(cols))
	}
	row := LookupRow{Rank: 99.95, Agg: 488.62, Count: 37, Cumulative: 37, CumPct: 0.12}
	rec := row.Record()
	if len(rec) != 5 {
		t.Fatalf("record width broken: %v", rec)
	}
	if rec[0] != "99.95" || rec[1] != "488.62" || rec[2] != "37" || rec[4] != "0.12" {
		t.Fatalf("formatting broken: %v", rec)
	}
}
