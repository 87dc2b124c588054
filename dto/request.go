// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dto

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/zintix-labs/samplab/corefmt"
	"github.com/zintix-labs/samplab/errs"
	"github.com/zintix-labs/samplab/spec"
)

// RunRequest 是對外的「執行一次實驗」請求。
type RunRequest struct {
	UID            string   `json:"uid"`             // 唯一識別碼
	ExperimentName string   `json:"experiment"`      // 要跑的實驗
	ExperimentId   spec.EID `json:"eid"`             // 實驗編號
	Rounds         int      `json:"rounds"`          // 輪數；0 = 用設定檔的 default_rounds
	Seed           *int64   `json:"seed,omitempty"`  // 可選：指定 seed 以重現；缺省由引擎自行生成
	StartState     *StartState `json:"start_state,omitempty"` // 可選：由業務端帶入的核心狀態（nil=新局；帶 start_b64u=回放/續跑）
}

// DecodeRunRequest 會把 HTTP 請求解碼成 RunRequest。
//
// 支援：
//   - GET：從 query string 讀取參數（uid/experiment/eid/rounds/seed）。
//     注意：GET 建議僅用於新局或簡單測試；狀態（start_state）建議使用 POST。
//   - POST：從 JSON body 反序列化（支援 start_state）。
//
// StartState（start_state）語意：
//   - start_state 缺省 / 為 null：視為新局。
//   - start_state.start_b64u 有值：視為回放（replay）/ 續跑（resume）：
//     回放帶入當初記錄的 start_b64u 可在相同輪數下重現結果；
//     續跑帶入上一段回應的 after_b64u 作為新的 start_b64u 以延續 RNG 流水。
//   - 引擎輸入只接受 start_b64u；after_b64u 只會出現在回應，請求端不得自行填寫。
//
// 注意：
//   - 這裡只負責解碼與基本型別轉換，不做任何實驗合法性校驗；
//     合法性（該 EID 是否存在、rounds 是否可接受）由上層（Experiment/Runtime）決定。
//   - 為避免過大 body 影響服務，POST 會對 body 做大小限制（預設 1MiB）。
//   - POST 會開啟 DisallowUnknownFields()，對未知欄位採用嚴格拒絕，以避免靜默丟資料。
func DecodeRunRequest(r *http.Request) (*RunRequest, error) {
	if r == nil {
		return nil, errs.NewWarn("nil request")
	}

	req := new(RunRequest)

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.UID = q.Get("uid")
		req.ExperimentName = q.Get("experiment")

		if s := q.Get("eid"); s != "" {
			u, err := strconv.ParseUint(s, 10, 0)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid eid: %v", err))
			}
			req.ExperimentId = spec.EID(u)
		}

		if s := q.Get("rounds"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid rounds: %v", err))
			}
			req.Rounds = v
		}

		if s := q.Get("seed"); s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid seed: %v", err))
			}
			req.Seed = &v
		}

		return req, nil

	case http.MethodPost:
		// 防止 body 過大（預設 1MiB）
		const maxBody = 1 << 20
		body := io.LimitReader(r.Body, maxBody)
		dec := json.NewDecoder(body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(req); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		return req, nil

	default:
		return nil, fmt.Errorf("method not allowed")
	}
}

// StartState 是由業務端帶入的「引擎可恢復狀態」（可選）。
//
// 設計目標：
//   - 讓引擎維持純計算器（stateless / deterministic），而「可回放/可續跑」
//     所需的狀態由業務端保存與回送。
//   - 新局：start_state 缺省即可；引擎會自行起始 RNG 並在回應中回傳 Start/After。
//   - 回放（Replay）：帶入當初記錄的 start_b64u，即可重現該段取樣序列。
//   - 續跑（Resume）：把上一段回應的 after_b64u 當作下一段的 start_b64u 送入。
type StartState struct {
	// StartCoreSnapB64U：RNG Core 的「起始快照」Base64URL（URL-safe base64）字串。
	//   - 缺省：視為新局（引擎自行起始 RNG）。
	//   - 有值：視為回放/續跑（引擎從該快照 restore RNG）。
	StartCoreSnapB64U string `json:"start_b64u,omitempty"`
}

func (ss *StartState) HasPayload() bool {
	if ss == nil {
		return false
	}
	return ss.StartCoreSnapB64U != ""
}

// Snap 解碼 start_b64u；StartState 無 payload 時回傳 nil。
func (rr *RunRequest) Snap() ([]byte, error) {
	if !rr.StartState.HasPayload() {
		return nil, nil
	}
	snap, err := corefmt.DecodeBase64URL(rr.StartState.StartCoreSnapB64U)
	if err != nil {
		return nil, errs.NewWarn("core snap decode failed " + err.Error())
	}
	return snap, nil
}
