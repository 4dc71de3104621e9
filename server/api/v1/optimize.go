package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/optimizer"
	"github.com/zintix-labs/scalelab/server/httperr"
	"github.com/zintix-labs/scalelab/spec"
)

// Optimize 對單一一般科目執行邊界網格搜尋並回傳最佳擺位。
func (h *LabHandler) Optimize(w http.ResponseWriter, q *http.Request) {
	// 內部結構 不影響外部 也不被外部使用
	type OptRequestBody struct {
		SID     spec.SID `json:"sid"`
		Name    string   `json:"name"`
		Workers int      `json:"workers"`
	}
	type OptResponse struct {
		SID      spec.SID `json:"sid"`
		Name     string   `json:"name"`
		MinX     float64  `json:"min_x"`
		LowerX   float64  `json:"lower_x"`
		LowerY   float64  `json:"lower_y"`
		FitErr   float64  `json:"fit_err"`
		UsedTime int64    `json:"used_ms"`
	}
	// ---
	if q.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req := new(OptRequestBody)
	if err := json.NewDecoder(q.Body).Decode(req); err != nil {
		httperr.Errs(w, errs.NewWarn("invalid json:"+err.Error()))
		return
	}

	ent, err := resolveEntry(h, req.SID, req.Name)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	rec, ok := h.lab.Record(ent.SID)
	if !ok {
		httperr.Errs(w, errs.NewWarn("sid not found"))
		return
	}
	if rec.Kind != spec.KindGeneral {
		httperr.Errs(w, errs.NewWarn("optimize requires a subject with percentile data"))
		return
	}
	pd, err := rec.Percentiles()
	if err != nil {
		httperr.Errs(w, err)
		return
	}

	workers := req.Workers
	if workers < 1 {
		workers = h.workers
	}
	s, err := optimizer.New(pd)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, fmt.Sprintf("build search err: %d", ent.SID)))
		return
	}
	s.SetWorkers(workers)
	start := time.Now()
	place, err := s.Run()
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, "search err"))
		return
	}

	resp := OptResponse{
		SID:      ent.SID,
		Name:     ent.Name,
		MinX:     place.MinX,
		LowerX:   place.LowerX,
		LowerY:   place.LowerY,
		FitErr:   place.FitErr,
		UsedTime: time.Since(start).Milliseconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
