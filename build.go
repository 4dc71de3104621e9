package scalelab

import (
	"github.com/zintix-labs/scalelab/blend"
	"github.com/zintix-labs/scalelab/curve"
	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/lookup"
	"github.com/zintix-labs/scalelab/spec"
	"github.com/zintix-labs/scalelab/stats"
)

// BuildOutput 為建表流程的完整輸出。
type BuildOutput struct {
	Blend     *blend.Result
	Dist      *lookup.Distribution
	Table     *lookup.Table
	SimMerged int
}

// BuildLookup 執行完整的建表流程：
//
//  1. 由歷史儲存庫載入設定檔指定的參考年份並混合。
//  2. 展開公布的人數分布。
//  3. 模擬權重 > 0 時，把擬合曲線的模擬聚合回饋進混合結果。
//  4. 組成最終查表（含捨入平手修補與反查索引）。
//
// curves 可為 nil：此時略過模擬回饋（權重 > 0 但沒有曲線視為設定錯誤）。
func (l *Lab) BuildLookup(curves map[spec.SID]*curve.Curve) (*BuildOutput, error) {
	bl := blend.New(l.set, l.log)
	for _, rs := range l.set.References {
		pairs, err := l.store.Load(rs.Year)
		if err != nil {
			return nil, errs.Wrap(err, "build: reference year missing from archive")
		}
		if _, err := bl.AddReference(rs, pairs); err != nil {
			return nil, err
		}
	}
	res, err := bl.Build()
	if err != nil {
		return nil, err
	}

	dist, err := lookup.ExpandBands(l.bands, l.set.Grid.Step)
	if err != nil {
		return nil, err
	}
	if got, want := dist.GridTotal(), l.bands.TotalEligible-l.bands.BelowFloor; got != want {
		l.log.Warn("band expansion total mismatch", "got", got, "want", want)
	}

	out := &BuildOutput{Blend: res, Dist: dist}

	if l.set.SimBlendWeight > 0 {
		if len(curves) == 0 {
			return nil, errs.NewFatal("build: sim_blend_weight set but no curves provided")
		}
		sim, err := l.NewSimulation(curves)
		if err != nil {
			return nil, err
		}
		mean, maxAbs := sim.Divergence(res, dist)
		l.log.Info("sim divergence", "mean", mean, "max_abs", maxAbs)
		merged, err := sim.Merge(res, dist, l.set.SimBlendWeight)
		if err != nil {
			return nil, err
		}
		out.SimMerged = merged
	}

	table, err := lookup.BuildTable(dist, res.Grid, res.Aggs, l.set.MinDecrement)
	if err != nil {
		return nil, err
	}
	out.Table = table

	l.log.Info("lookup table built",
		"year", l.set.Year, "bands", len(table.Rows),
		"gaps", res.CoverageGaps, "low_rebuilt", res.LowRebuilt,
		"repairs", res.Repairs+table.Repairs, "sim_merged", out.SimMerged)
	return out, nil
}

// Backtest 以指定年度的歷史換算表回測本次查表：
// 每個歷史帶用其門檻值反查新表的 rank，統計位移分布。
// 以本年度自身回測時位移應全為 0（反查是查表的嚴格反函數）。
func (l *Lab) Backtest(year int, t *lookup.Table) (*stats.BacktestReport, error) {
	if t == nil {
		return nil, errs.NewFatal("backtest: table required")
	}
	pairs, err := l.store.Load(year)
	if err != nil {
		return nil, errs.Wrap(err, "backtest: year missing from archive")
	}

	rep := stats.NewBacktestReport(year)
	for _, p := range pairs {
		rep.Add(p.Rank, p.Agg, t.RankFor(p.Agg))
	}
	rep.Done()
	return rep, nil
}

// ArchiveTable 把本年度的查表寫入歷史儲存庫（覆寫既有檔案）。
func (l *Lab) ArchiveTable(t *lookup.Table) error {
	if t == nil {
		return errs.NewFatal("archive: table required")
	}
	return l.store.Append(l.set.Year, t.Pairs())
}
