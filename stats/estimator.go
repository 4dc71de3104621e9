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

package stats

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// ============================================================
// ** 結構宣告 **
// ============================================================

// 曲線擬合品質評估
type EstimatorFits struct {
	ErrStat   ErrStat
	ValidStat ValidStat
}

// 擬合誤差敘事
type ErrStat struct {
	ErrMedian PointStat // 描述誤差的中位數
	ErrP90    PointStat // 最差 10% 科目的誤差門檻
	ErrMax    float64   // 全體最大誤差
}

// 有效性敘事：多少比例的科目擬合後仍單調
type ValidStat struct {
	Valid PointStat
}

// PointStat 點估計 回傳 估計值 以及信賴區間
type PointStat struct {
	Hat float64
	CI  CI
}

// FitSample 為單一科目的擬合品質樣本。
type FitSample struct {
	Name   string
	FitErr float64
	Valid  bool
}

// ============================================================
// ** 對外 : 擬合品質評估 **
// ============================================================

// EstimatorFitQuality 擬合品質評估
//
// 1. Err 敘事 : 描述全體科目擬合誤差的分布（中位數、P90）
//
// 2. Valid 敘事 : 描述擬合後仍通過單調性檢查的科目比例
func EstimatorFitQuality(samples []FitSample) *EstimatorFits {
	n := len(samples)
	out := &EstimatorFits{}
	if n == 0 {
		return out
	}

	errs := make([]float64, n)
	validK := 0
	for i, s := range samples {
		errs[i] = s.FitErr
		if s.Valid {
			validK++
		}
	}

	medHat := quantilePoint(errs, 0.5)
	medLo, medHi := quantileCI(errs, 0.5, 0.95)

	p90Hat := quantilePoint(errs, 0.90)
	p90Lo, p90Hi := quantileCI(errs, 0.90, 0.95)

	maxErr := errs[0]
	for _, v := range errs[1:] {
		if v > maxErr {
			maxErr = v
		}
	}

	out.ErrStat = ErrStat{
		ErrMedian: PointStat{Hat: medHat, CI: CI{Lo: medLo, Hi: medHi}},
		ErrP90:    PointStat{Hat: p90Hat, CI: CI{Lo: p90Lo, Hi: p90Hi}},
		ErrMax:    maxErr,
	}

	validHat, validCI := proportionCICP(validK, n, 0.95)
	out.ValidStat = ValidStat{
		Valid: PointStat{Hat: validHat, CI: validCI},
	}

	return out
}

// ============================================================
// ** 內部統計函數 **
// ============================================================

// Clopper–Pearson exact CI for binomial proportion (k successes out of n)
func proportionCICP(k int, n int, confidence float64) (pHat float64, ci CI) {
	if n == 0 {
		return 0, CI{0, 1}
	}
	alpha := 1 - confidence
	pHat = float64(k) / float64(n)

	// Beta PPF 映射，處理邊界
	if k == 0 {
		ci.Lo = 0
	} else {
		b := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
		ci.Lo = b.Quantile(alpha / 2)
	}
	if k == n {
		ci.Hi = 1
	} else {
		b := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
		ci.Hi = b.Quantile(1 - alpha/2)
	}
	return
}

// 想估「第 q 分位」的上下界。做法：把 order statistic 的秩視為二項→Beta 反推 p 範圍，再把 p 轉回樣本索引。
// 回傳 (loValue, hiValue)
func quantileCI(data []float64, q, confidence float64) (float64, float64) {
	n := len(data)
	if n == 0 {
		return 0, 0
	}
	cp := make([]float64, n)
	copy(cp, data)
	sort.Float64s(cp)

	alpha := 1 - confidence
	k := int(q * float64(n))
	if k < 1 {
		k = 1
	} else if k > n-1 {
		k = n - 1
	}

	// 以 CP 思想反推 p 範圍
	bLo := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
	bHi := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
	pLo := bLo.Quantile(alpha / 2)
	pHi := bHi.Quantile(1 - alpha/2)

	li := int(pLo * float64(n))
	ui := int(pHi * float64(n))
	if ui > 0 {
		ui -= 1
	}
	if li < 0 {
		li = 0
	}
	if li > n-1 {
		li = n - 1
	}
	if ui < 0 {
		ui = 0
	}
	if ui > n-1 {
		ui = n - 1
	}
	return cp[li], cp[ui]
}

// quantilePoint returns the empirical quantile point estimate at q.
func quantilePoint(data []float64, q float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}
	cp := make([]float64, n)
	copy(cp, data)
	sort.Float64s(cp)
	// 最近秩法
	idx := int(q * float64(n))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return cp[idx]
}

// ============================================================
// ** 輸出函數 **
// ============================================================

func (est *EstimatorFits) Out() {
	fmt.Println("=== Fit Quality ===")
	errKeys := []string{
		"Median Fit Err",
		"P90 Fit Err",
		"Max Fit Err",
		"Valid (subjects)",
	}
	errMsg := map[string]string{
		"Median Fit Err":   fmtHatCI(est.ErrStat.ErrMedian.Hat, est.ErrStat.ErrMedian.CI),
		"P90 Fit Err":      fmtHatCI(est.ErrStat.ErrP90.Hat, est.ErrStat.ErrP90.CI),
		"Max Fit Err":      fmt.Sprintf("%.4f", est.ErrStat.ErrMax),
		"Valid (subjects)": fmtHatCIpct01(est.ValidStat.Valid.Hat, est.ValidStat.Valid.CI),
	}
	printEstTable("Fit Quality", errKeys, errMsg)
}

func printEstTable(title string, keys []string, msg map[string]string) {
	fmt.Println(title)
	maxKeyLen := 0
	for _, k := range keys {
		if len(k) > maxKeyLen {
			maxKeyLen = len(k)
		}
	}
	for _, k := range keys {
		fmt.Printf("  %-*s : %s\n", maxKeyLen, k, msg[k])
	}
}

func fmtPct01(x float64) string {
	return fmt.Sprintf("%.2f%%", x*100)
}

func fmtHatCIpct01(hat float64, ci CI) string {
	return fmt.Sprintf("%s [%s, %s]", fmtPct01(hat), fmtPct01(ci.Lo), fmtPct01(ci.Hi))
}

func fmtHatCI(hat float64, ci CI) string {
	return fmt.Sprintf("%.4f [%.4f, %.4f]", hat, ci.Lo, ci.Hi)
}
