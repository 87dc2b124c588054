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
	"github.com/zintix-labs/samplab/corefmt"
	"github.com/zintix-labs/samplab/errs"
	"github.com/zintix-labs/samplab/spec"
	"github.com/zintix-labs/samplab/stats"
)

// RunResult 為對外輸出的實驗結果序列化結構。
type RunResult struct {
	ExperimentName string             `json:"experiment"` // 實驗名稱
	ExperimentID   spec.EID           `json:"eid"`        // 實驗編號
	Method         spec.MethodKey     `json:"method"`     // 取樣方法
	Rounds         int                `json:"rounds"`     // 實際執行輪數
	UsedMS         int64              `json:"used_ms"`    // 執行耗時（毫秒）
	Report         *stats.ScoreReport `json:"report"`     // 完整統計報告
	State          RunState           `json:"run_state"`  // 核心狀態
}

// RunState 回傳本段執行前後的核心快照，供回放/續跑/審計使用。
type RunState struct {
	StartCoreSnapB64U string `json:"start_b64u"` // 本段起點快照
	AfterCoreSnapB64U string `json:"after_b64u"` // 本段終點快照（下一段的 start）
}

func NewRunResultDTO(name string, eid spec.EID, method spec.MethodKey, rounds int, usedMS int64, report *stats.ScoreReport, startSnap, afterSnap []byte) (RunResult, error) {
	if report == nil {
		return RunResult{}, errs.NewWarn("score report is nil")
	}
	return RunResult{
		ExperimentName: name,
		ExperimentID:   eid,
		Method:         method,
		Rounds:         rounds,
		UsedMS:         usedMS,
		Report:         report,
		State: RunState{
			StartCoreSnapB64U: corefmt.EncodeBase64URL(startSnap),
			AfterCoreSnapB64U: corefmt.EncodeBase64URL(afterSnap),
		},
	}, nil
}
