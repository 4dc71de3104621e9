package v1

import (
	"log/slog"
	"sync"

	"github.com/zintix-labs/scalelab"
	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/server/svrcfg"
)

// LabHandler 持有已組裝的 Lab 與「惰性建立、建立後共用」的結果快取。
//
// 擬合與建表都是純函數：同一份輸入必得同一份輸出，
// 因此第一個請求觸發計算、之後的請求直接重用，不需要失效策略。
type LabHandler struct {
	lab     *scalelab.Lab
	log     *slog.Logger
	workers int

	mu    sync.Mutex
	fit   *scalelab.FitOutcome
	build *scalelab.BuildOutput
}

func NewLabHandler(sCfg *svrcfg.SvrCfg) (*LabHandler, error) {
	if sCfg == nil || sCfg.Lab == nil {
		return nil, errs.NewFatal("lab is required")
	}
	return &LabHandler{
		lab:     sCfg.Lab,
		log:     sCfg.Log,
		workers: sCfg.FitWorkers,
	}, nil
}

// ensureFit 惰性執行全科目擬合（持鎖）。
func (h *LabHandler) ensureFit() (*scalelab.FitOutcome, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fit != nil {
		return h.fit, nil
	}
	out, _, err := h.lab.FitAll(h.workers, false)
	if err != nil {
		return nil, err
	}
	h.fit = out
	return out, nil
}

// ensureBuild 惰性執行完整建表（依賴擬合結果，持鎖）。
func (h *LabHandler) ensureBuild() (*scalelab.BuildOutput, error) {
	fit, err := h.ensureFit()
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.build != nil {
		return h.build, nil
	}
	out, err := h.lab.BuildLookup(fit.Curves)
	if err != nil {
		return nil, err
	}
	h.build = out
	return out, nil
}
