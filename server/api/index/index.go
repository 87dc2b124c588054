// Package index 提供服務根路徑的簡易導覽頁。
package index

import "net/http"

const indexHTML = `<!doctype html>
<html lang="zh-Hant">
<head>
  <meta charset="utf-8" />
  <title>SampLab</title>
  <style>
    body { font-family: -apple-system,BlinkMacSystemFont,"Segoe UI",sans-serif; background:#0f172a; color:#e2e8f0; margin:0; }
    .wrap { max-width: 720px; margin: 48px auto; padding: 20px 24px; background:#111827; border:1px solid #1f2937; border-radius:12px; }
    h1 { margin: 0 0 8px; font-size: 24px; }
    p { color:#94a3b8; }
    code { background:#0b1224; border:1px solid #1f2738; border-radius:6px; padding:2px 6px; }
    li { margin: 6px 0; }
    a { color:#38bdf8; }
  </style>
</head>
<body>
  <div class="wrap">
    <h1>SampLab</h1>
    <p>Monte Carlo sampling lab：Metropolis 隨機行走、拒絕取樣、塔式取樣與連續分佈反函數取樣。</p>
    <ul>
      <li><a href="/dev">/dev</a> — Dev Panel（互動式執行與回放）</li>
      <li><code>GET /v1/experiments</code> — 實驗目錄摘要</li>
      <li><code>GET/POST /v1/run</code> — 單一實驗執行（pool-backed，可回放）</li>
      <li><code>GET/POST /v1/sim</code> — 統計模擬（merged report）</li>
      <li><code>GET/POST /v1/simruns</code> — 多次獨立重複模擬（含分位數估計）</li>
      <li><code>POST /v1/simbycfg</code> — 以 inline 設定檔模擬</li>
      <li><code>POST /v1/stat</code> — 以外部觀測計數產生統計報告</li>
      <li><code>GET/POST /v1/continuum</code> — ½sin(x) 連續分布原始樣本</li>
    </ul>
  </div>
</body>
</html>`

func IndexHandlerFn(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}
