package v1

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/server/httperr"
	"github.com/zintix-labs/scalelab/stats"
)

// Backtest 以歷史換算表回測本次查表，回傳逐帶位移與統計摘要。
//
// GET 參數：
//   - year= ：歷史年度（必填，必須存在於歷史儲存庫）。
func (h *LabHandler) Backtest(w http.ResponseWriter, q *http.Request) {
	// 內部結構 不影響外部 也不被外部使用
	type BacktestResponse struct {
		Report   *stats.BacktestReport `json:"report"`
		UsedTime int64                 `json:"used_ms"`
	}
	// ---
	if q.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s := q.URL.Query().Get("year")
	if s == "" {
		httperr.Errs(w, errs.NewWarn("year is required"))
		return
	}
	year, err := strconv.Atoi(s)
	if err != nil || year <= 0 {
		httperr.Errs(w, errs.NewWarn("year must be a positive integer"))
		return
	}

	build, err := h.ensureBuild()
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	rep, err := h.lab.Backtest(year, build.Table)
	if err != nil {
		httperr.Errs(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(BacktestResponse{Report: rep})
}
