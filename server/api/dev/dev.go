// Package dev 提供 ScaleLab 的「內部 Dev Panel」HTTP endpoints。
//
// 目的（ explain the why ）：
//   - 給數學家 / 後端在開發期快速驗證：指定科目，然後執行單科 Fit 或邊界 Optimize。
//   - 不觸碰 server 端的整批快取：這裡每次都重算單科，結果即時反映 YAML 改動。
//
// 注意（ contract ）：
//   - 這不是 production API；它偏向 debug / tooling，行為允許更寬鬆，但仍需維持 deterministic concludes。
//   - 這裡的錯誤處理走 `httperr.Errs`（以 errs.Warn/errs.Fatal 對應 HTTP response）。
package dev

import (
	"embed"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zintix-labs/scalelab"
	"github.com/zintix-labs/scalelab/catalog"
	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/optimizer"
	"github.com/zintix-labs/scalelab/server/httperr"
	"github.com/zintix-labs/scalelab/server/netsvr"
	"github.com/zintix-labs/scalelab/server/svrcfg"
	"github.com/zintix-labs/scalelab/spec"
)

// devRequest 是 Dev Panel 的「輸入 payload」。
//
// `sid` 與 `name` 兩者擇一即可；若兩者同時存在，後端會優先使用 sid 做解析。
//
// 注意：
//   - 這個 struct 是 API 邊界用的 DTO；不要把它滲透到 curve / math domain。
type devRequest struct {
	SID     int64  `json:"sid"`
	Name    string `json:"name"`
	Workers int    `json:"workers"`
}

// Register 註冊 Dev Panel 的 routes。
//
// Routes：
//   - GET  /dev      ：Dev Panel HTML（內嵌 JS）。
//   - GET  /dev/meta ：回傳 Catalog summary（供前端下拉選單：科目）。
//   - POST /dev/fit  ：對單一科目執行擬合並回傳輸出列與品質指標。
//   - POST /dev/opt  ：對單一一般科目執行邊界網格搜尋。
//
// 依賴（dependency）：
//   - 需要 cfg.Lab 已被上層組裝完成並注入；否則會回 errs.Fatal。
func Register(svr netsvr.NetRouter, cfg *svrcfg.SvrCfg) {
	svr.Get("/dev", devPage)
	svr.Get("/favicon.svg", favicon)
	svr.Get("/dev/meta", devMeta(cfg))
	svr.Post("/dev/fit", devFit(cfg))
	svr.Post("/dev/opt", devOpt(cfg))
}

// devPageHTML 是內嵌的 Dev Panel UI。
//
// UI 行為（contract）：
//   - Subject：由 /dev/meta 動態載入；一般科目以外的類型會在名稱後標注 kind。
//   - Fit：回傳該科輸出列 + max fit error + 單調性檢查結果。
//   - Optimize：僅一般科目可用；回傳最佳擺位（min_x / lower point）與殘差。
const devPageHTML = `<!doctype html>
<html lang="zh-Hant">
<head>
  <meta charset="utf-8" />
  <link rel="icon" type="image/svg+xml" href="/favicon.svg" />
  <title>ScaleLab Dev</title>
  <style>
    body { font-family: -apple-system,BlinkMacSystemFont,"Segoe UI",sans-serif; background:#0f172a; color:#e2e8f0; margin:0; }
    .wrap { max-width: 860px; margin: 24px auto; padding: 16px 20px; background:#111827; border:1px solid #1f2937; border-radius:12px; box-shadow:0 12px 50px rgba(0,0,0,0.35); }
    h1 { margin: 0 0 16px; font-size: 22px; letter-spacing: 0.3px; }
    .grid { display:grid; grid-template-columns: repeat(auto-fit, minmax(200px,1fr)); gap:12px; margin-bottom:12px; }
    label { display:flex; flex-direction:column; gap:6px; font-size: 13px; color:#cbd5e1; }
    input, select { background:#0b1224; color:#e2e8f0; border:1px solid #1f2738; border-radius:8px; padding:10px 12px; font-size:14px; }
    input:focus, select:focus { outline:1px solid #38bdf8; border-color:#38bdf8; }
    .actions { position:relative; display:flex; gap:10px; align-items:center; justify-content:flex-end; margin: 8px 0 14px; }
    button { cursor:pointer; border:none; border-radius:10px; padding:10px 14px; font-weight:600; letter-spacing:0.2px; }
    #btn-fit { background:#38bdf8; color:#0b1224; }
    #btn-opt { background:#22c55e; color:#0b1224; }
    #btn-clear { background:#1f2937; color:#e2e8f0; border:1px solid #334155; }
    button:disabled { opacity:0.6; cursor:not-allowed; }
    .info { position:absolute; left:50%; transform:translateX(-50%); font-size:13px; color:#94a3b8; }
    .info.warn { color:#f87171; font-weight:600; }
    #summary { background:#0b1224; border:1px solid #1f2738; border-radius:12px; padding:14px; min-height:180px; overflow:auto; font-family: ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, "Liberation Mono", "Courier New", monospace; white-space:pre-wrap; }
  </style>
</head>
<body>
  <div class="wrap">
    <h1>ScaleLab Dev Panel</h1>
    <div class="grid">
      <label>Subject
        <select id="subject"></select>
      </label>
      <label>Workers (optimize)
        <input id="workers" type="number" min="1" max="32" value="4" />
      </label>
    </div>
    <div class="actions">
      <button id="btn-fit">Fit</button>
      <button id="btn-opt">Optimize</button>
      <button id="btn-clear">Clear</button>
      <span class="info" id="info"></span>
    </div>

    <pre id="summary"></pre>
  </div>
<script>
const state = { subjects: [] };
const subjectSel = document.getElementById('subject');
const workersInput = document.getElementById('workers');
const summary = document.getElementById('summary');
const infoEl = document.getElementById('info');
const btnFit = document.getElementById('btn-fit');
const btnOpt = document.getElementById('btn-opt');
const btnClear = document.getElementById('btn-clear');

function setInfo(text, isWarn) {
  infoEl.textContent = text;
  if (isWarn) {
    infoEl.classList.add('warn');
  } else {
    infoEl.classList.remove('warn');
  }
}

function setLoading(isLoading) {
  btnFit.disabled = isLoading;
  btnOpt.disabled = isLoading;
  if (isLoading) {
    setInfo('Running…', false);
  }
}

async function loadMeta() {
  try {
    const res = await fetch('/dev/meta');
    if (!res.ok) throw new Error(await res.text());
    state.subjects = await res.json();
    subjectSel.innerHTML = '';
    state.subjects.forEach((s) => {
      const opt = document.createElement('option');
      opt.value = String(s.sid);
      opt.textContent = s.kind === 'general' ? s.name : s.name + ' [' + s.kind + ']';
      subjectSel.appendChild(opt);
    });
    summary.textContent = '';
    setInfo('', false);
  } catch (err) {
    summary.textContent = 'Failed to load meta: ' + err.message;
  }
}

async function post(path) {
  setLoading(true);
  const payload = {
    sid: Number(subjectSel.value),
    workers: Number(workersInput.value) || 0,
  };
  try {
    const res = await fetch(path, {
      method: 'POST',
      headers: { 'Content-Type': 'application/json' },
      body: JSON.stringify(payload),
    });
    const text = await res.text();
    if (!res.ok) throw new Error(text);
    summary.textContent = JSON.stringify(JSON.parse(text), null, 2);
    setInfo('', false);
  } catch (err) {
    summary.textContent = 'Request failed: ' + err.message;
    setInfo('', true);
  } finally {
    setLoading(false);
  }
}

btnFit.addEventListener('click', () => post('/dev/fit'));
btnOpt.addEventListener('click', () => post('/dev/opt'));
btnClear.addEventListener('click', () => {
  summary.textContent = '';
  setInfo('', false);
});

loadMeta();
</script>
</body>
</html>`

// devPage 回傳內嵌 HTML（single page）。這裡不做 templating，降低 dev tool 維護成本。
func devPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(devPageHTML))
}

// favicon 提供 Dev Panel 的 favicon.svg。
func favicon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write([]byte(faviconSVG))
}

// devMeta 回傳 Catalog summary（JSON）。
//
// 前端依賴欄位：
//   - sid / name / kind
func devMeta(cfg *svrcfg.SvrCfg) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		lab, ok := getLab(cfg)
		if !ok {
			httperr.Errs(w, errs.NewFatal("lab is required"))
			return
		}
		sum, err := lab.Summary()
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sum)
	}
}

// devFit 對單一科目執行擬合。
//
// 流程（high level）：
//  1. decode devRequest（JSON body）
//  2. resolve subject（sid/name）→ catalog.Summary
//  3. FitRecord：依科目類型產生輸出列；一般科目附帶品質指標
func devFit(cfg *svrcfg.SvrCfg) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		req := new(devRequest)
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			httperr.Errs(w, errs.NewWarn("invalid json:"+err.Error()))
			return
		}
		lab, ok := getLab(cfg)
		if !ok {
			httperr.Errs(w, errs.NewFatal("lab is required"))
			return
		}
		sum, err := resolveSummary(lab, req)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		rec, ok := lab.Record(sum.SID)
		if !ok {
			httperr.Errs(w, errs.NewWarn("sid not found"))
			return
		}
		start := time.Now()
		row, cv, sample, err := scalelab.FitRecord(&rec)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		resp := map[string]any{
			"row":     row,
			"used_ms": time.Since(start).Milliseconds(),
		}
		if sample != nil {
			resp["fit_err"] = sample.FitErr
			resp["valid"] = sample.Valid
		}
		if cv != nil {
			resp["anchors"] = cv.Anchors
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// devOpt 對單一一般科目執行邊界網格搜尋。
//
// 和 devFit 的差異：
//   - 只接受 KindGeneral；其他類型沒有百分位資料可供搜尋。
//   - Workers 控制搜尋內部併發；未提供時用 server 預設。
func devOpt(cfg *svrcfg.SvrCfg) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		req := new(devRequest)
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			httperr.Errs(w, errs.NewWarn("invalid json:"+err.Error()))
			return
		}
		lab, ok := getLab(cfg)
		if !ok {
			httperr.Errs(w, errs.NewFatal("lab is required"))
			return
		}
		sum, err := resolveSummary(lab, req)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		rec, ok := lab.Record(sum.SID)
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
			workers = cfg.FitWorkers
		}
		s, err := optimizer.New(pd)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		s.SetWorkers(workers)
		start := time.Now()
		place, err := s.Run()
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		resp := map[string]any{
			"sid":     sum.SID,
			"name":    sum.Name,
			"min_x":   place.MinX,
			"lower_x": place.LowerX,
			"lower_y": place.LowerY,
			"fit_err": place.FitErr,
			"used_ms": time.Since(start).Milliseconds(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// getLab 從 server config 取得已組裝的 Lab instance。
// Dev routes 不負責組裝（assembler），只負責使用（runtime entry）。
func getLab(cfg *svrcfg.SvrCfg) (*scalelab.Lab, bool) {
	if cfg == nil || cfg.Lab == nil {
		return nil, false
	}
	return cfg.Lab, true
}

// resolveSummary 解析使用者指定的科目：
//   - 若 sid > 0：以 sid 精準匹配（fast path）。
//   - 否則若 name 非空：先做 case-insensitive name 匹配；也允許把 name 當作數字字串解析成 sid。
func resolveSummary(lab *scalelab.Lab, req *devRequest) (catalog.Summary, error) {
	sums, err := lab.Summary()
	if err != nil {
		return catalog.Summary{}, err
	}
	if req.SID > 0 {
		sid := spec.SID(req.SID)
		for _, s := range sums {
			if s.SID == sid {
				return s, nil
			}
		}
		return catalog.Summary{}, errs.NewWarn("sid not found")
	}
	name := strings.TrimSpace(req.Name)
	if name != "" {
		for _, s := range sums {
			if strings.EqualFold(s.Name, name) {
				return s, nil
			}
		}
		if sid, err := strconv.ParseUint(name, 10, 32); err == nil {
			ss := spec.SID(sid)
			for _, s := range sums {
				if s.SID == ss {
					return s, nil
				}
			}
		}
		return catalog.Summary{}, errs.NewWarn("subject not found")
	}
	return catalog.Summary{}, errs.NewWarn("subject is required")
}

//go:embed favicon.svg
var faviconSVG string

// keep embed imported even if only used for directives
var _ embed.FS
