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

package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zintix-labs/scalelab/dto"
	"github.com/zintix-labs/scalelab/errs"
)

func TestAppendAndLoadRoundtrip(t *testing.T) {
	s := New(t.TempDir(), nil)

	pairs := []dto.RankAgg{
		{Rank: 99.95, Agg: 488.62}, // 未排序寫入
		{Rank: 30.05, Agg: 120.50},
		{Rank: 60.00, Agg: 300.00},
	}
	if err := s.Append(2025, pairs); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	got, err := s.Load(2025)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(got))
	}
	// rank 升冪
	if got[0].Rank != 30.05 || got[2].Rank != 99.95 {
		t.Fatalf("pairs not sorted ascending: %v", got)
	}
	if got[2].Agg != 488.62 {
		t.Fatalf("value roundtrip broken: %v", got[2])
	}
}

func TestAppendOverwrites(t *testing.T) {
	s := New(t.TempDir(), nil)
	if err := s.Append(2025, []dto.RankAgg{{Rank: 50, Agg: 200}}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := s.Append(2025, []dto.RankAgg{{Rank: 60, Agg: 250}}); err != nil {
		t.Fatalf("second append failed: %v", err)
	}
	got, err := s.Load(2025)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(got) != 1 || got[0].Rank != 60 {
		t.Fatalf("same year rerun should overwrite: %v", got)
	}
}

func TestAppendEmptyRefused(t *testing.T) {
	s := New(t.TempDir(), nil)
	if err := s.Append(2025, nil); errs.Level(err) != errs.Warn {
		t.Fatalf("empty write should be warn, got %v", err)
	}
}

func TestSeedOnlyOnce(t *testing.T) {
	s := New(t.TempDir(), nil)

	wrote, err := s.Seed(2023, []dto.RankAgg{{Rank: 50, Agg: 200}, {Rank: 60, Agg: 250}})
	if err != nil || !wrote {
		t.Fatalf("first seed should write: %v %v", wrote, err)
	}
	wrote, err = s.Seed(2023, []dto.RankAgg{{Rank: 70, Agg: 300}})
	if err != nil || wrote {
		t.Fatalf("second seed must not touch the file: %v %v", wrote, err)
	}
	got, err := s.Load(2023)
	if err != nil || len(got) != 2 {
		t.Fatalf("seeded data overwritten: %v %v", got, err)
	}
}

func TestLoadAllAndYears(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	if err := s.Append(2024, []dto.RankAgg{{Rank: 50, Agg: 200}}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := s.Append(2023, []dto.RankAgg{{Rank: 50, Agg: 190}}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	// 非 scale_YYYY.csv 的檔案一律忽略
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}

	all, err := s.LoadAll()
	if err != nil {
		t.Fatalf("loadall failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 years, got %v", all)
	}
	years := s.Years()
	if len(years) != 2 || years[0] != 2023 || years[1] != 2024 {
		t.Fatalf("years not ascending: %v", years)
	}
}

func TestCorruptRowsSkipped(t *testing.T) {
	dir := t.TempDir()
	body := "Rank,Aggregate\n50.00,200.00\nnot,a,number\n60.00,abc\n70.00,300.00\n"
	if err := os.WriteFile(filepath.Join(dir, "scale_2022.csv"), []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	s := New(dir, nil)
	got, err := s.Load(2022)
	if err != nil {
		t.Fatalf("load should tolerate bad rows: %v", err)
	}
	if len(got) != 2 || got[0].Rank != 50 || got[1].Rank != 70 {
		t.Fatalf("bad rows not skipped: %v", got)
	}
}

func TestMissingDirIsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "absent"), nil)
	all, err := s.LoadAll()
	if err != nil || len(all) != 0 {
		t.Fatalf("missing dir should be empty store: %v %v", all, err)
	}
}
