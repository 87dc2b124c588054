package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/zintix-labs/samplab"
	"github.com/zintix-labs/samplab/dto"
	"github.com/zintix-labs/samplab/errs"
	"github.com/zintix-labs/samplab/server/httperr"
	"github.com/zintix-labs/samplab/server/svrcfg"
)

func (c *RunHandler) Run(w http.ResponseWriter, q *http.Request) {
	// 請求方法、結構體校驗
	if q.Method != http.MethodGet && q.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, err := dto.DecodeRunRequest(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// 請求解析完成，設置超時 context
	ctx := q.Context()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// 開始執行
	result, err := c.rt.Run(ctx, req)
	if err != nil {
		httperr.Errs(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		httperr.Errs(w, err)
		return
	}
}

// ============================================================
// ** RunHandler **
// ============================================================

type RunHandler struct {
	rt *samplab.LabRuntime
}

func NewRunHandler(sCfg *svrcfg.SvrCfg) (*RunHandler, error) {
	rt, err := sCfg.Samplab.BuildRuntime(sCfg.ExpPoolSize)
	if err != nil {
		return nil, errs.Wrap(err, "build run handler error")
	}
	return &RunHandler{rt: rt}, nil
}
