package v1

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/zintix-labs/scalelab"
	"github.com/zintix-labs/scalelab/dto"
	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/server/httperr"
	"github.com/zintix-labs/scalelab/spec"
)

// FitByCfg 傳入 YAML 科目檔格式，對檔內全部科目做一次性擬合。
// 不經過 catalog：給數學家驗證還沒正式入庫的科目資料。
func (h *LabHandler) FitByCfg(w http.ResponseWriter, r *http.Request) {
	type FitByCfgResponse struct {
		Rows     []dto.SubjectRow `json:"rows"`
		Degraded []string         `json:"degraded,omitempty"`
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// 1. decode request
	r.Body = http.MaxBytesReader(w, r.Body, 5<<20) // 5MB
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, "read body failed"))
		return
	}
	sf, err := spec.GetSubjectFileByYAML(raw)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	if len(sf.Subjects) == 0 {
		httperr.Errs(w, errs.NewWarn("subject file has no subjects"))
		return
	}

	// 2. fit 每一筆；單科失敗記入 degraded 不中止
	resp := FitByCfgResponse{
		Rows:     make([]dto.SubjectRow, 0, len(sf.Subjects)),
		Degraded: append([]string(nil), sf.Degraded...),
	}
	for i := range sf.Subjects {
		row, _, _, err := scalelab.FitRecord(&sf.Subjects[i])
		if err != nil {
			if errs.Level(err) == errs.Fatal {
				httperr.Errs(w, err)
				return
			}
			resp.Degraded = append(resp.Degraded, sf.Subjects[i].Name+": "+err.Error())
			continue
		}
		resp.Rows = append(resp.Rows, row)
	}

	// 3. 回傳Json
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
