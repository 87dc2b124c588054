package v1

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"strconv"

	"github.com/zintix-labs/samplab"
	"github.com/zintix-labs/samplab/errs"
	"github.com/zintix-labs/samplab/server/httperr"
	"github.com/zintix-labs/samplab/spec"
	"github.com/zintix-labs/samplab/stats"
)

type SimHandler struct {
	Samplab *samplab.Lab
}

func NewSimHandler(lab *samplab.Lab) (*SimHandler, error) {
	return &SimHandler{Samplab: lab}, nil
}

func (sh *SimHandler) Sim(w http.ResponseWriter, q *http.Request) {
	// 內部結構 不影響外部 也不被外部使用
	type SimRequestBody struct {
		EID   spec.EID `json:"eid"`
		Round int      `json:"round"`
		Seed  *int64   `json:"seed,omitempty"`
	}
	// 內部結構 不影響外部 也不被外部使用
	type SimResponse struct {
		Stats    *stats.ScoreReport `json:"stats"`
		UsedTime int64              `json:"used_ms"`
	}
	// ---
	req := new(SimRequestBody)
	if q.Method != http.MethodGet && q.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if q.Method == http.MethodGet {
		// eid
		if s := q.URL.Query().Get("eid"); s != "" {
			u, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("eid must be non-negative integer"))
				return
			}
			req.EID = spec.EID(u)
		} else {
			// 直接空值
			httperr.Errs(w, errs.NewWarn("eid is required"))
			return
		}

		// round
		if r := q.URL.Query().Get("round"); r != "" {
			u, err := strconv.ParseInt(r, 10, 64)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("round must be integer"))
				return
			}
			req.Round = int(u)
		} else {
			httperr.Errs(w, errs.NewWarn("round is required"))
			return
		}

		// seed
		if s := q.URL.Query().Get("seed"); s != "" {
			u, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("seed must be int64"))
				return
			}
			v := u
			req.Seed = &v
		}
	}
	if q.Method == http.MethodPost {
		if err := json.NewDecoder(q.Body).Decode(req); err != nil {
			httperr.Errs(w, errs.NewWarn("invalid json:"+err.Error()))
			return
		}
	}
	// 業務檢驗
	_, ok := sh.Samplab.EntryById(req.EID)
	if !ok {
		httperr.Errs(w, errs.NewWarn("eid not found"))
		return
	}
	if req.Round < 1 || req.Round > 10000000 {
		httperr.Errs(w, errs.NewWarn("round must be between 1 to 10,000,000"))
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
	sim, err := sh.Samplab.NewSimulatorWithSeed(req.EID, *req.Seed)
	if err != nil {
		// 這裡的錯誤是來自samplab 尊重錯誤分級
		httperr.Errs(w, errs.Wrap(err, fmt.Sprintf("build simulator err: %d", req.EID)))
		return
	}
	st, used, err := sim.Sim(req.Round, false)
	if err != nil {
		// 這裡的錯誤來自simulator 尊重錯誤分級
		httperr.Errs(w, errs.Wrap(err, "simulate err"))
		return
	}
	resp := SimResponse{
		Stats:    st,
		UsedTime: used.Milliseconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (sh *SimHandler) SimRuns(w http.ResponseWriter, r *http.Request) {
	// 內部結構 不影響外部 也不被外部使用
	type SimRunsRequestBody struct {
		EID   spec.EID `json:"eid"`
		Runs  int      `json:"runs"`
		Round int      `json:"round"`
		Seed  *int64   `json:"seed,omitempty"`
	}
	// 內部結構 不影響外部 也不被外部使用
	type SimRunsResponse struct {
		StatsReport *stats.ScoreReport    `json:"stats"`
		Estimator   *stats.EstimatorRuns  `json:"est"`
		UsedTime    int64                 `json:"used_ms"`
	}
	// ---
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req := new(SimRunsRequestBody)
	if r.Method == http.MethodGet {
		eid := r.URL.Query().Get("eid")
		runsStr := r.URL.Query().Get("runs")
		roundStr := r.URL.Query().Get("round")

		// eid
		if eid != "" {
			u, err := strconv.ParseUint(eid, 10, 64)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("eid must be non-negative integer"))
				return
			}
			req.EID = spec.EID(u)
		} else {
			httperr.Errs(w, errs.NewWarn("eid is required"))
			return
		}

		// runs
		if runsStr != "" {
			runs, err := strconv.Atoi(runsStr)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("runs must be integer"))
				return
			}
			req.Runs = runs
		} else {
			httperr.Errs(w, errs.NewWarn("runs is required"))
			return
		}

		// round
		if roundStr != "" {
			rounds, err := strconv.Atoi(roundStr)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("round must be integer"))
				return
			}
			req.Round = rounds
		} else {
			httperr.Errs(w, errs.NewWarn("round is required"))
			return
		}

		// seed
		if s := r.URL.Query().Get("seed"); s != "" {
			u, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("seed must be int64"))
				return
			}
			v := u
			req.Seed = &v
		}
	}
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			httperr.Errs(w, errs.NewWarn("invalid json:"+err.Error()))
			return
		}
	}
	// 業務邏輯判斷
	if _, ok := sh.Samplab.EntryById(req.EID); !ok {
		httperr.Errs(w, errs.NewWarn("eid not found"))
		return
	}
	if req.Runs < 1 || req.Runs > 10000 {
		httperr.Errs(w, errs.NewWarn("runs must be between 1 and 10,000"))
		return
	}
	if req.Round < 1 || req.Round > 1000000 {
		httperr.Errs(w, errs.NewWarn("round must be between 1 and 1,000,000"))
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
	// 取得sim
	sim, err := sh.Samplab.NewSimulatorWithSeed(req.EID, *req.Seed)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, fmt.Sprintf("build simulator err: %d", req.EID)))
		return
	}
	st, est, used, err := sim.SimRuns(4, req.Runs, req.Round, false)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, fmt.Sprintf("simulator err: %d", req.EID)))
		return
	}
	resp := &SimRunsResponse{
		StatsReport: st,
		Estimator:   est,
		UsedTime:    used.Milliseconds(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
