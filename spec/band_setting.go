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
	"strconv"
	"strings"

	"github.com/zintix-labs/scalelab/errs"
)

// FineBand 為單一 0.05 寬細分帶的人數。
type FineBand struct {
	Rank  float64 `yaml:"rank"  json:"rank"`
	Count int     `yaml:"count" json:"count"`
}

// RangeBand 為一段 rank 區間的總人數，
// Span 格式為 "lo-hi"，例如 "98.00-98.95"。
type RangeBand struct {
	Span  string `yaml:"span"  json:"span"`
	Count int    `yaml:"count" json:"count"`
}

// Bounds 解析 Span 的上下界。
func (rb *RangeBand) Bounds() (lo, hi float64, err error) {
	parts := strings.SplitN(rb.Span, "-", 2)
	if len(parts) != 2 {
		return 0, 0, errs.Fatalf("band_setting: malformed span %q", rb.Span)
	}
	lo, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	hi, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil || lo >= hi {
		return 0, 0, errs.Fatalf("band_setting: malformed span %q", rb.Span)
	}
	return lo, hi, nil
}

// BandSetting 描述一個年度的人數分布：
// Fine 為已逐帶公布的高分段，Ranges 為其餘整點區間的總數。
type BandSetting struct {
	TotalEligible int         `yaml:"total_eligible" json:"total_eligible"`
	BelowFloor    int         `yaml:"below_floor"    json:"below_floor"`
	Fine          []FineBand  `yaml:"fine"           json:"fine"`
	Ranges        []RangeBand `yaml:"ranges"         json:"ranges"`
}

// init
func (bs *BandSetting) init() error {
	return bs.valid()
}

// valid 執行最基本的設定檔檢查，如需更多驗證可在此擴充。
func (bs *BandSetting) valid() error {
	if bs.TotalEligible <= 0 {
		return errs.NewFatal("band_setting: total_eligible must be positive")
	}
	if bs.BelowFloor < 0 {
		return errs.NewFatal("band_setting: below_floor must not be negative")
	}
	if len(bs.Fine) == 0 && len(bs.Ranges) == 0 {
		return errs.NewFatal("band_setting: no band data")
	}

	for _, fb := range bs.Fine {
		if fb.Rank <= 0 || fb.Count < 0 {
			return errs.Fatalf("band_setting: invalid fine band rank=%.2f count=%d", fb.Rank, fb.Count)
		}
	}
	for i := range bs.Ranges {
		if _, _, err := bs.Ranges[i].Bounds(); err != nil {
			return err
		}
		if bs.Ranges[i].Count < 0 {
			return errs.Fatalf("band_setting: negative count in span %q", bs.Ranges[i].Span)
		}
	}
	return nil
}
