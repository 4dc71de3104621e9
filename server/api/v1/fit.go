package v1

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zintix-labs/scalelab/catalog"
	"github.com/zintix-labs/scalelab/dto"
	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/server/httperr"
	"github.com/zintix-labs/scalelab/spec"
)

// Fit 回傳單一科目的擬合結果（係數、錨點與擬合品質）。
//
// GET：以 query string 指定 sid 或 name。
// POST：以 JSON body 指定 {"sid": ...} 或 {"name": ...}。
func (h *LabHandler) Fit(w http.ResponseWriter, q *http.Request) {
	// 內部結構 不影響外部 也不被外部使用
	type FitRequestBody struct {
		SID  spec.SID `json:"sid"`
		Name string   `json:"name"`
	}
	type FitResponse struct {
		Row      dto.SubjectRow `json:"row"`
		FitErr   float64        `json:"fit_err"`
		Valid    bool           `json:"valid"`
		UsedTime int64          `json:"used_ms"`
	}
	// ---
	if q.Method != http.MethodGet && q.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req := new(FitRequestBody)
	if q.Method == http.MethodGet {
		if s := q.URL.Query().Get("sid"); s != "" {
			u, err := strconv.ParseUint(s, 10, 32)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("sid must be non-negative integer"))
				return
			}
			req.SID = spec.SID(u)
		}
		req.Name = strings.TrimSpace(q.URL.Query().Get("name"))
		if req.SID == 0 && req.Name == "" {
			httperr.Errs(w, errs.NewWarn("sid or name is required"))
			return
		}
	}
	if q.Method == http.MethodPost {
		if err := json.NewDecoder(q.Body).Decode(req); err != nil {
			httperr.Errs(w, errs.NewWarn("invalid json:"+err.Error()))
			return
		}
	}

	// 業務檢驗：先解析科目
	ent, err := resolveEntry(h, req.SID, req.Name)
	if err != nil {
		httperr.Errs(w, err)
		return
	}

	start := time.Now()
	fit, err := h.ensureFit()
	if err != nil {
		httperr.Errs(w, err)
		return
	}

	resp := FitResponse{UsedTime: time.Since(start).Milliseconds()}
	found := false
	for _, row := range fit.Rows {
		if row.SID == ent.SID {
			resp.Row = row
			found = true
			break
		}
	}
	if !found {
		httperr.Errs(w, errs.NewWarn("subject was skipped during fit"))
		return
	}
	for _, s := range fit.Samples {
		if s.Name == ent.Name {
			resp.FitErr = s.FitErr
			resp.Valid = s.Valid
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Subjects 回傳科目目錄摘要。
func (h *LabHandler) Subjects(w http.ResponseWriter, q *http.Request) {
	if q.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sum, err := h.lab.Summary()
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sum)
}

// resolveEntry 解析使用者指定的科目：
//   - 若 sid > 0：以 sid 精準匹配（fast path）。
//   - 否則以 name 做 case-insensitive 匹配。
func resolveEntry(h *LabHandler, sid spec.SID, name string) (catalog.Entry, error) {
	if sid > 0 {
		e, ok := h.lab.EntryById(sid)
		if !ok {
			return catalog.Entry{}, errs.NewWarn("sid not found")
		}
		return e, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return catalog.Entry{}, errs.NewWarn("subject is required")
	}
	e, ok := h.lab.EntryByName(name)
	if !ok {
		return catalog.Entry{}, errs.NewWarn("subject not found")
	}
	return e, nil
}
