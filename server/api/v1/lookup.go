package v1

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/server/httperr"
)

// Lookup 查詢 aggregate→rank 查表。
//
// GET 參數（擇一，都不給則回整張表）：
//   - agg=  ：給定聚合分數，反查 rank（帶間線性內插）。
//   - rank= ：給定 rank 帶，查門檻值。
func (h *LabHandler) Lookup(w http.ResponseWriter, q *http.Request) {
	// 內部結構 不影響外部 也不被外部使用
	type PointResponse struct {
		Rank float64 `json:"rank"`
		Agg  float64 `json:"agg"`
	}
	// ---
	if q.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	build, err := h.ensureBuild()
	if err != nil {
		httperr.Errs(w, err)
		return
	}

	if s := q.URL.Query().Get("agg"); s != "" {
		agg, err := strconv.ParseFloat(s, 64)
		if err != nil {
			httperr.Errs(w, errs.NewWarn("agg must be a number"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(PointResponse{Rank: build.Table.RankFor(agg), Agg: agg})
		return
	}

	if s := q.URL.Query().Get("rank"); s != "" {
		rank, err := strconv.ParseFloat(s, 64)
		if err != nil {
			httperr.Errs(w, errs.NewWarn("rank must be a number"))
			return
		}
		agg, ok := build.Table.AggFor(rank)
		if !ok {
			httperr.Errs(w, errs.NewWarn("rank band not found"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(PointResponse{Rank: rank, Agg: agg})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(build.Table.Rows)
}
