package v1

import (
	"crypto/rand"
	"encoding/json"
	"math"
	"math/big"
	"net/http"
	"strconv"

	"github.com/zintix-labs/samplab/errs"
	"github.com/zintix-labs/samplab/sdk/core"
	"github.com/zintix-labs/samplab/sdk/sampler"
	"github.com/zintix-labs/samplab/server/httperr"
)

// Experiments 列出 catalog 內所有實驗摘要（eid/name/method/rounds）
func (sh *SimHandler) Experiments(w http.ResponseWriter, q *http.Request) {
	sum, err := sh.Samplab.Summary()
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, "catalog summary err"))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(sum); err != nil {
		httperr.Errs(w, errs.NewFatal("encode response failed"))
	}
}

// Continuum 連續分布取樣：π(x)=½sin(x) on [0, π] 的反函數法原始樣本
//
// GET  /v1/continuum?n=1000&seed=42
// POST /v1/continuum {"n":1000,"seed":42}
//
// 回傳未分箱的原始樣本 供外部自行統計（分箱後的報表走 /v1/sim 的
// inverse_cdf_sin 實驗）
func Continuum(w http.ResponseWriter, q *http.Request) {
	// 內部結構 不影響外部 也不被外部使用
	type ContinuumRequestBody struct {
		N    int    `json:"n"`
		Seed *int64 `json:"seed,omitempty"`
	}
	// 內部結構 不影響外部 也不被外部使用
	type ContinuumResponse struct {
		Seed    int64     `json:"seed"`
		Samples []float64 `json:"samples"`
	}
	// ---
	req := new(ContinuumRequestBody)
	switch q.Method {
	case http.MethodGet:
		if s := q.URL.Query().Get("n"); s != "" {
			u, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("n must be integer"))
				return
			}
			req.N = int(u)
		} else {
			httperr.Errs(w, errs.NewWarn("n is required"))
			return
		}
		if s := q.URL.Query().Get("seed"); s != "" {
			u, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("seed must be int64"))
				return
			}
			v := u
			req.Seed = &v
		}
	case http.MethodPost:
		if err := json.NewDecoder(q.Body).Decode(req); err != nil {
			httperr.Errs(w, errs.NewWarn("invalid json:"+err.Error()))
			return
		}
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// 業務檢驗
	if req.N < 1 || req.N > 100000 {
		httperr.Errs(w, errs.NewWarn("n must be between 1 to 100,000"))
		return
	}
	if req.Seed == nil {
		rnd, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			httperr.Errs(w, errs.NewWarn("seed generate failed"))
			return
		}
		v := rnd.Int64()
		req.Seed = &v
	}
	c := core.New(core.Default().New(*req.Seed))
	resp := &ContinuumResponse{
		Seed:    *req.Seed,
		Samples: sampler.SampleSinHalf(c, req.N),
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		httperr.Errs(w, errs.NewFatal("encode response failed"))
	}
}
