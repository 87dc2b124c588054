// Package dev 提供 SampLab 的「內部 Dev Panel」HTTP endpoints。
//
// 目的（ explain the why ）：
//   - 給數學家 / 後端在開發期快速驗證：指定 Experiment、Seed / Snap，然後執行 Run 或 Sim。
//   - 支援可回放（replay）：把 Snapshot（Snap）以字串形式在前端顯示，並可貼回後端做 Restore。
//
// 注意（ contract ）：
//   - 這不是 production API；它偏向 debug / tooling，行為允許更寬鬆，但仍需維持 deterministic concludes。
//   - 這裡的錯誤處理走 `httperr.Errs`（以 errs.Warn/errs.Fatal 對應 HTTP response）。
//   - Seed/Snap 的互斥與優先級由前端 + 後端共同保證（Snap takes precedence）。
package dev

import (
	"crypto/rand"
	"embed"
	"encoding/json"
	"math"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/zintix-labs/samplab"
	"github.com/zintix-labs/samplab/catalog"
	"github.com/zintix-labs/samplab/dto"
	"github.com/zintix-labs/samplab/errs"
	"github.com/zintix-labs/samplab/server/httperr"
	"github.com/zintix-labs/samplab/server/netsvr"
	"github.com/zintix-labs/samplab/server/svrcfg"
	"github.com/zintix-labs/samplab/spec"
)

// devRequest 是 Dev Panel 的「輸入 payload」。
//
// 兼容性（backward compatibility）：
//   - 同時保留 `rounds` 與舊欄位 `round`。
//   - `eid` 與 `experiment` 兩者擇一即可；若兩者同時存在，後端會優先使用 eid 做解析。
//
// Seed / Snap：
//   - Seed（int64 string）用於 deterministic 起始；若為空字串則自動生成（crypto/rand）。
//   - Snap（base64url string）代表 core snapshot；若提供 Snap，則後端以 Snap Restore 為準（Snap precedence）。
//
// 注意：
//   - 這個 struct 是 API 邊界用的 DTO；不要把它滲透到 sampler / math domain。
type devRequest struct {
	EID        int64  `json:"eid"`
	Experiment string `json:"experiment"`
	Rounds     int    `json:"rounds"`
	Round      int    `json:"round"`
	Seed       string `json:"seed"`
	Snap       string `json:"snap"`
}

// round() 將 rounds/round 做兼容合併：優先 rounds，其次 round；若都未提供則回 0。
func (r devRequest) round() int {
	if r.Rounds > 0 {
		return r.Rounds
	}
	if r.Round > 0 {
		return r.Round
	}
	return 0
}

// Register 註冊 Dev Panel 的 routes。
//
// Routes：
//   - GET  /dev       ：Dev Panel HTML（內嵌 JS）。
//   - GET  /dev/meta  ：回傳 Catalog summary（供前端下拉選單：Experiment）。
//   - POST /dev/run   ：執行一段可回放的 Run（回傳 report + snap_before/snap_after）。
//   - POST /dev/sim   ：執行統計模擬並回傳統計報表。
//
// 依賴（dependency）：
//   - 需要 cfg.Samplab 已被上層組裝完成並注入；否則會回 errs.Fatal。
func Register(svr netsvr.NetRouter, cfg *svrcfg.SvrCfg) {
	svr.Get("/dev", devPage)
	svr.Get("/favicon.svg", favicon)
	svr.Get("/dev/meta", devMeta(cfg))
	svr.Post("/dev/run", devRun(cfg))
	svr.Post("/dev/sim", devSim(cfg))
}

// devPageHTML 是內嵌的 Dev Panel UI。
//
// UI 行為（contract）：
//   - Experiment：由 /dev/meta 動態載入。
//   - Seed/Snap 互斥：
//   - Snap 非空 → Seed 會被清空並 disable。
//   - Seed 非空 → Snap 會被清空並 disable。
//   - Snap takes precedence（後端也會以 Snap 為準）。
//   - Rounds：前端會 cap 在 3,000,000 以避免長時間阻塞（仍屬 dev tooling）。
//
// 回傳呈現：
//   - Run：Summary 區顯示 report + run_state；After Snap 可一鍵帶回 Snap 欄位續跑。
//   - Sim ：僅顯示統計報表。
const devPageHTML = `<!doctype html>
<html lang="zh-Hant">
<head>
  <meta charset="utf-8" />
  <link rel="icon" type="image/svg+xml" href="/favicon.svg" />
  <title>SampLab Dev</title>
  <style>
    body { font-family: -apple-system,BlinkMacSystemFont,"Segoe UI",sans-serif; background:#0f172a; color:#e2e8f0; margin:0; }
    .wrap { max-width: 980px; margin: 24px auto; padding: 16px 20px; background:#111827; border:1px solid #1f2937; border-radius:12px; box-shadow:0 12px 50px rgba(0,0,0,0.35); }
    h1 { margin: 0 0 16px; font-size: 22px; letter-spacing: 0.3px; }
    .grid { display:grid; grid-template-columns: repeat(auto-fit, minmax(180px,1fr)); gap:12px; margin-bottom:12px; }
    label { display:flex; flex-direction:column; gap:6px; font-size: 13px; color:#cbd5e1; }
    input, select { background:#0b1224; color:#e2e8f0; border:1px solid #1f2738; border-radius:8px; padding:10px 12px; font-size:14px; }
    input:focus, select:focus { outline:1px solid #38bdf8; border-color:#38bdf8; }
    .actions { position:relative; display:flex; gap:10px; align-items:center; justify-content:flex-end; margin: 8px 0 14px; }
    button { cursor:pointer; border:none; border-radius:10px; padding:10px 14px; font-weight:600; letter-spacing:0.2px; }
    #btn-run { background:#38bdf8; color:#0b1224; }
    #btn-sim { background:#22c55e; color:#0b1224; }
    #btn-continue { background:#a78bfa; color:#0b1224; display:none; }
    #btn-clear { background:#1f2937; color:#e2e8f0; border:1px solid #334155; }
    button:disabled { opacity:0.6; cursor:not-allowed; }
    input:disabled, select:disabled { opacity: 0.55; cursor: not-allowed; filter: grayscale(0.25); }
    label.is-disabled { opacity: 0.55; }
    label.is-disabled input, label.is-disabled select { pointer-events: none; }
    .info { position:absolute; left:50%; transform:translateX(-50%); font-size:13px; color:#94a3b8; }
    .info.warn { color:#f87171; font-weight:600; }
    #summary { background:#0b1224; border:1px solid #1f2738; border-radius:12px; padding:14px; min-height:120px; overflow:auto; font-family: ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, "Liberation Mono", "Courier New", monospace; white-space:pre-wrap; margin-bottom:12px; }
    .note { font-size:12px; color:#94a3b8; margin-top:4px; }
  </style>
</head>
<body>
  <div class="wrap">
    <h1>SampLab Dev Panel</h1>
    <div class="grid">
      <label>Experiment
        <select id="experiment"></select>
      </label>
      <label>Seed (int64)
        <input id="seed" type="text" inputmode="numeric" placeholder="Empty = auto" />
      </label>
      <label>Snap(base64url)
        <input id="snap" type="text" placeholder="Paste snap (base64url)" />
      </label>
      <label>Rounds
        <input id="rounds" type="number" min="1" max="3000000" value="100000" />
      </label>
    </div>
    <div class="actions">
      <button id="btn-run">Run</button>
      <button id="btn-sim">Sim</button>
      <button id="btn-continue">Continue from After Snap</button>
      <button id="btn-clear">Clear</button>
      <span class="info" id="info"></span>
    </div>

    <pre id="summary"></pre>
    <div class="note">Run 會回傳 run_state（start/after snap），Sim 只回統計。</div>
  </div>
<script>
const state = { meta: null, afterSnap: '' };
const expSel = document.getElementById('experiment');
const seedInput = document.getElementById('seed');
const snapInput = document.getElementById('snap');
const roundsInput = document.getElementById('rounds');
const summary = document.getElementById('summary');
const infoEl = document.getElementById('info');
const btnRun = document.getElementById('btn-run');
const btnSim = document.getElementById('btn-sim');
const btnContinue = document.getElementById('btn-continue');
const btnClear = document.getElementById('btn-clear');

function setDisabled(el, disabled) {
  el.disabled = disabled;
  const label = el.closest('label');
  if (label) label.classList.toggle('is-disabled', disabled);
}

function syncInputLocks() {
  const seedValue = seedInput.value.trim();
  const snapValue = snapInput.value.trim();

  if (snapValue !== '') {
    seedInput.value = '';
    setDisabled(seedInput, true);
    setDisabled(snapInput, false);
    return;
  }
  if (seedValue !== '') {
    snapInput.value = '';
    setDisabled(snapInput, true);
    setDisabled(seedInput, false);
    return;
  }
  setDisabled(seedInput, false);
  setDisabled(snapInput, false);
}

async function loadMeta() {
  try {
    const res = await fetch('/dev/meta');
    if (!res.ok) throw new Error(await res.text());
    const data = await res.json();
    const exps = Array.isArray(data) ? data : (data.experiments || data.summary || []);
    state.meta = { exps };
    expSel.innerHTML = '';
    state.meta.exps.forEach((e) => {
      const opt = document.createElement('option');
      const eid = e.eid ?? e.id ?? e.EID;
      opt.value = eid != null ? String(eid) : (e.name || '');
      opt.textContent = (e.name || String(opt.value)) + (e.method ? ' [' + e.method + ']' : '');
      expSel.appendChild(opt);
    });
    summary.textContent = '';
    setInfo('', false);
  } catch (err) {
    summary.textContent = 'Failed to load meta: ' + err.message;
  }
}

function setInfo(text, isWarn) {
  infoEl.textContent = text;
  infoEl.classList.toggle('warn', !!isWarn);
}

function setLoading(isLoading) {
  btnRun.disabled = isLoading;
  btnSim.disabled = isLoading;
  if (isLoading) setInfo('Running…', false);
}

function buildPayload() {
  const inputRounds = Number(roundsInput.value) || 1;
  const safeRounds = Math.min(inputRounds, 3000000);
  const payload = { rounds: safeRounds, round: safeRounds };
  const eid = Number(expSel.value);
  if (Number.isFinite(eid)) payload.eid = eid;
  const snap = snapInput.value.trim();
  const seed = seedInput.value.trim();
  if (snap) {
    payload.snap = snap;
  } else if (seed) {
    payload.seed = seed;
  }
  return { payload, inputRounds };
}

async function callDev(path) {
  setLoading(true);
  state.afterSnap = '';
  btnContinue.style.display = 'none';
  const { payload, inputRounds } = buildPayload();
  try {
    const res = await fetch(path, {
      method: 'POST',
      headers: { 'Content-Type': 'application/json' },
      body: JSON.stringify(payload),
    });
    if (!res.ok) throw new Error(await res.text());
    const data = await res.json();
    summary.textContent = JSON.stringify(data, null, 2);
    if (inputRounds > 3000000) {
      setInfo('Rounds are capped at 3,000,000.', true);
    } else {
      setInfo('', false);
    }
    const rs = data.run_state;
    if (rs && rs.after_b64u) {
      state.afterSnap = rs.after_b64u;
      btnContinue.style.display = 'inline-block';
    }
  } catch (err) {
    summary.textContent = 'Request failed: ' + err.message;
    setInfo('', false);
  } finally {
    setLoading(false);
  }
}

btnRun.addEventListener('click', () => callDev('/dev/run'));
btnSim.addEventListener('click', () => callDev('/dev/sim'));
btnContinue.addEventListener('click', () => {
  if (!state.afterSnap) return;
  snapInput.value = state.afterSnap;
  syncInputLocks();
  setInfo('After snap loaded into Snap field.', false);
});
btnClear.addEventListener('click', () => {
  summary.textContent = '';
  state.afterSnap = '';
  btnContinue.style.display = 'none';
  setInfo('', false);
});
seedInput.addEventListener('input', syncInputLocks);
snapInput.addEventListener('input', syncInputLocks);

syncInputLocks();
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
//   - eid / id / EID
//   - name
//   - method
func devMeta(cfg *svrcfg.SvrCfg) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		lab, ok := getSamplab(cfg)
		if !ok {
			httperr.Errs(w, errs.NewFatal("samplab is required"))
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

// devRun 執行「可回放」的 Run。
//
// 流程（high level）：
//  1. decode devRequest（JSON body）
//  2. resolve experiment（eid/name）→ catalog.Summary
//  3. resolve seed（empty = auto）
//  4. 建立 Experiment → Run()；若 snap 非空，會以 StartState restore 後再跑（Snap precedence）
func devRun(cfg *svrcfg.SvrCfg) http.HandlerFunc {
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
		lab, ok := getSamplab(cfg)
		if !ok {
			httperr.Errs(w, errs.NewFatal("samplab is required"))
			return
		}
		sum, err := resolveSummary(lab, req)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		round := req.round()
		if round < 1 {
			httperr.Errs(w, errs.NewWarn("round is required"))
			return
		}
		seed, err := resolveSeed(req.Seed)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		exp, err := lab.NewExperimentWithSeed(sum.EID, seed)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		runReq := &dto.RunRequest{
			ExperimentId: sum.EID,
			Rounds:       round,
		}
		if snap := strings.TrimSpace(req.Snap); snap != "" {
			runReq.StartState = &dto.StartState{StartCoreSnapB64U: snap}
		}
		result, err := exp.Run(runReq)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	}
}

// devSim 執行統計模擬（simulation）。
//
// 和 devRun 的差異：
//   - devSim 不回 run_state（Simulator 沒有回放合約），僅回統計報表。
//   - Snap 在這裡不支援：要回放請走 /dev/run。
func devSim(cfg *svrcfg.SvrCfg) http.HandlerFunc {
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
		lab, ok := getSamplab(cfg)
		if !ok {
			httperr.Errs(w, errs.NewFatal("samplab is required"))
			return
		}
		if strings.TrimSpace(req.Snap) != "" {
			httperr.Errs(w, errs.NewWarn("snap is not supported for sim; use /dev/run"))
			return
		}
		sum, err := resolveSummary(lab, req)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		round := req.round()
		if round < 1 {
			httperr.Errs(w, errs.NewWarn("round is required"))
			return
		}
		seed, err := resolveSeed(req.Seed)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		sim, err := lab.NewSimulatorWithSeed(sum.EID, seed)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		report, used, err := sim.Sim(round, false)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		resp := struct {
			Stats    any   `json:"stats"`
			UsedTime int64 `json:"used_ms"`
		}{Stats: report, UsedTime: used.Milliseconds()}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// getSamplab 從 server config 取得已組裝的 Lab instance。
// Dev routes 不負責組裝（assembler），只負責使用（runtime entry）。
func getSamplab(cfg *svrcfg.SvrCfg) (*samplab.Lab, bool) {
	if cfg == nil || cfg.Samplab == nil {
		return nil, false
	}
	return cfg.Samplab, true
}

// resolveSummary 解析使用者指定的實驗：
//   - 若 eid > 0：以 eid 精準匹配（fast path）。
//   - 否則若 experiment(name) 非空：先做 case-insensitive name 匹配；
//     也允許把 experiment 當作數字字串解析成 eid。
func resolveSummary(lab *samplab.Lab, req *devRequest) (catalog.Summary, error) {
	sums, err := lab.Summary()
	if err != nil {
		return catalog.Summary{}, err
	}
	if req.EID > 0 {
		eid := spec.EID(req.EID)
		for _, s := range sums {
			if s.EID == eid {
				return s, nil
			}
		}
		return catalog.Summary{}, errs.NewWarn("eid not found")
	}
	name := strings.TrimSpace(req.Experiment)
	if name != "" {
		for _, s := range sums {
			if strings.EqualFold(s.Name, name) {
				return s, nil
			}
		}
		if eid, err := strconv.ParseUint(name, 10, 64); err == nil {
			se := spec.EID(eid)
			for _, s := range sums {
				if s.EID == se {
					return s, nil
				}
			}
		}
		return catalog.Summary{}, errs.NewWarn("experiment not found")
	}
	return catalog.Summary{}, errs.NewWarn("experiment is required")
}

// resolveSeed 解析 seed（int64 string）。
//   - 空字串：自動生成 seed（crypto/rand），方便快速測試。
//   - 非空：必須為合法 int64。
func resolveSeed(seed string) (int64, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return randomSeed()
	}
	v, err := strconv.ParseInt(seed, 10, 64)
	if err != nil {
		return 0, errs.NewWarn("seed must be int64")
	}
	return v, nil
}

// randomSeed 使用 crypto/rand 產生 [0, MaxInt64) 的種子。
// 目的：避免 math/rand 的 deterministic 來源造成 seed 品質偏差（dev tool 也要可依賴）。
func randomSeed() (int64, error) {
	rnd, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return 0, errs.NewWarn("seed generate failed")
	}
	return rnd.Int64(), nil
}

//go:embed favicon.svg
var faviconSVG string

// keep embed imported even if only used for directives
var _ embed.FS
