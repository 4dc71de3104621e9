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

package scalelab

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/zintix-labs/scalelab/curve"
	"github.com/zintix-labs/scalelab/dto"
	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/optimizer"
	"github.com/zintix-labs/scalelab/spec"
	"github.com/zintix-labs/scalelab/stats"
)

// FitOutcome 為全科目擬合的結果。
type FitOutcome struct {
	Rows    []dto.SubjectRow           // 依 SID 排序的輸出列
	Curves  map[spec.SID]*curve.Curve  // 一般科目的擬合曲線（模擬混合會用到）
	Samples []stats.FitSample          // 擬合品質樣本（一般科目）
	Skipped []string                   // 單科隔離失敗的紀錄
}

// fitCell 為單一科目的擬合結果，供併發 worker 寫入固定位置。
type fitCell struct {
	row    dto.SubjectRow
	cv     *curve.Curve
	sample *stats.FitSample
	err    error
}

// FitAll 擬合目錄內的全部科目。
//
// 單科失敗（Warn 級）不會中止整批：該科記入 Skipped 並繼續；
// Fatal 級（資料結構性缺陷）立即中止。
func (l *Lab) FitAll(workers int, showpb bool) (*FitOutcome, time.Duration, error) {
	ids := l.IDs()
	if len(ids) == 0 {
		return nil, 0, errs.NewFatal("no subjects registered")
	}
	if workers < 1 {
		workers = 1
	}

	cells := make([]fitCell, len(ids))
	jobs := make(chan int, len(ids))

	bar := pb.StartNew(len(ids))
	if !showpb {
		bar.SetWriter(io.Discard)
	}

	wg := new(sync.WaitGroup)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				rec, _ := l.Record(ids[i])
				cells[i].row, cells[i].cv, cells[i].sample, cells[i].err = FitRecord(&rec)
				bar.Increment()
			}
		}()
	}
	for i := range ids {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()

	out := &FitOutcome{
		Rows:   make([]dto.SubjectRow, 0, len(ids)),
		Curves: make(map[spec.SID]*curve.Curve, len(ids)),
	}
	for i, c := range cells {
		if c.err != nil {
			if errs.Level(c.err) == errs.Fatal {
				return nil, used, c.err
			}
			note := fmt.Sprintf("sid=%d: %v", ids[i], c.err)
			out.Skipped = append(out.Skipped, note)
			l.log.Warn("subject fit skipped", "sid", ids[i], "err", c.err)
			continue
		}
		out.Rows = append(out.Rows, c.row)
		if c.cv != nil {
			out.Curves[ids[i]] = c.cv
		}
		if c.sample != nil {
			out.Samples = append(out.Samples, *c.sample)
		}
	}
	return out, used, nil
}

// FitRecord 依科目類型產生輸出列；一般科目另外回傳曲線與品質樣本。
// 不依賴 catalog，可用於還沒入庫的臨時科目資料。
func FitRecord(rec *spec.SubjectRecord) (dto.SubjectRow, *curve.Curve, *stats.FitSample, error) {
	switch rec.Kind {
	case spec.KindGeneral:
		pd, err := rec.Percentiles()
		if err != nil {
			return dto.SubjectRow{}, nil, nil, err
		}
		as := curve.Derive(pd)
		if rec.Pinned != nil {
			as = as.WithBoundary(rec.Pinned.MinX, rec.Pinned.LowerY)
		}
		cv, err := curve.Fit(as)
		if err != nil {
			return dto.SubjectRow{}, nil, nil, err
		}
		sample := &stats.FitSample{
			Name:   rec.Name,
			FitErr: cv.MaxFitErr,
			Valid:  cv.Valid(),
		}
		return dto.NewGeneralRow(rec.Name, rec.SID, cv), cv, sample, nil

	case spec.KindNoData:
		return dto.NewNoDataRow(rec.Name, rec.SID), nil, nil, nil

	case spec.KindApplied:
		ad, err := rec.Applied()
		if err != nil {
			return dto.SubjectRow{}, nil, nil, err
		}
		return dto.NewAppliedRow(rec.Name, rec.SID, ad), nil, nil, nil

	case spec.KindVocational:
		vd, err := rec.Vocational()
		if err != nil {
			return dto.SubjectRow{}, nil, nil, err
		}
		return dto.NewVocationalRow(rec.Name, rec.SID, vd.Scaled), nil, nil, nil

	default:
		return dto.SubjectRow{}, nil, nil, errs.Fatalf("unknown subject kind: %q", rec.Kind)
	}
}

// OptResult 為單一科目的邊界搜尋結果。
type OptResult struct {
	SID       spec.SID
	Name      string
	Placement optimizer.Placement
}

// OptOutcome 為全科目邊界搜尋的結果。
type OptOutcome struct {
	Results []OptResult
	Skipped []string
}

// OptimizeAll 對所有一般科目執行邊界網格搜尋。
//
// 科目之間循序執行，單一科目內部由 Search 自行併發（SetWorkers）；
// 搜尋空間塌縮或找不到合法擺位（Warn 級）記入 Skipped 並繼續。
func (l *Lab) OptimizeAll(workers int, showpb bool) (*OptOutcome, time.Duration, error) {
	ids := l.IDs()
	if len(ids) == 0 {
		return nil, 0, errs.NewFatal("no subjects registered")
	}

	general := make([]spec.SID, 0, len(ids))
	for _, id := range ids {
		if rec, ok := l.Record(id); ok && rec.Kind == spec.KindGeneral {
			general = append(general, id)
		}
	}
	if len(general) == 0 {
		return nil, 0, errs.NewWarn("no general subjects to optimize")
	}

	bar := pb.StartNew(len(general))
	if !showpb {
		bar.SetWriter(io.Discard)
	}

	out := &OptOutcome{Results: make([]OptResult, 0, len(general))}
	for _, id := range general {
		rec, _ := l.Record(id)
		place, err := optimizeOne(&rec, workers)
		bar.Increment()
		if err != nil {
			if errs.Level(err) == errs.Fatal {
				bar.Finish()
				return nil, time.Since(bar.StartTime()), err
			}
			note := fmt.Sprintf("sid=%d: %v", id, err)
			out.Skipped = append(out.Skipped, note)
			l.log.Warn("subject optimize skipped", "sid", id, "err", err)
			continue
		}
		out.Results = append(out.Results, OptResult{SID: id, Name: rec.Name, Placement: *place})
	}
	used := time.Since(bar.StartTime())
	bar.Finish()
	return out, used, nil
}

func optimizeOne(rec *spec.SubjectRecord, workers int) (*optimizer.Placement, error) {
	pd, err := rec.Percentiles()
	if err != nil {
		return nil, err
	}
	if rec.Pinned != nil {
		return optimizer.FromPinned(pd, rec.Pinned)
	}
	s, err := optimizer.New(pd)
	if err != nil {
		return nil, err
	}
	s.SetWorkers(workers)
	return s.Run()
}
