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

package samplab

import (
	"crypto/rand"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/zintix-labs/samplab/dto"
	"github.com/zintix-labs/samplab/errs"
	"github.com/zintix-labs/samplab/recorder"
	"github.com/zintix-labs/samplab/sdk/core"
	"github.com/zintix-labs/samplab/sdk/sampler"
	"github.com/zintix-labs/samplab/spec"
)

// Experiment 封裝一台「可對外提供 Run」的取樣實驗。
//
// 你可以把 Experiment 視為 Runner 的「外殼（shell）」：
//   - 對外：提供 Run 入口（HTTP/模擬器通常只操作 Experiment）。
//   - 對內：持有 RNG（Core）與真正執行取樣的核心（sampler.Runner）。
//
// 並發語意：
//   - 同一台 Experiment 不應被多 goroutine 同時 Run；Runner 帶有漫步位置等
//     跨輪狀態，Core 也不是併發安全的。
//   - 若要併發模擬，由更高層建立多台 Experiment 分散到不同 worker 並管理其生命週期。
//
// initseed 用於記錄出生時的 seed（追溯/重現的基礎資訊）；完整審計仍以 Core 的 Snapshot/Restore 為準。
type Experiment struct {
	name     string             // 實驗名稱（來自 ExperimentSetting，主要用於觀測/日誌）
	eid      spec.EID           // 實驗 ID（Catalog 內唯一；用於路由與查表）
	method   spec.MethodKey     // 取樣方法鍵
	core     *core.Core         // RNG 核心（PRNG + Snapshot/Restore 合約；熱路徑會頻繁取樣）
	runner   sampler.Runner     // 取樣執行核心（由 MethodRegistry + ExperimentSetting 組裝）
	rounds   int                // 預設輪數（Run 請求未指定時使用）
	mu       sync.Mutex         // 防併發鎖：保護 Runner 跨輪狀態與核心狀態一致性
	initseed int64              // 出生 seed（便於追溯；完整重現請用 Snapshot/Restore）
}

// newExperiment 以「隨機 seed」建立 Experiment。
//
// 這裡使用 crypto/rand 產生 seed 是為了：
//   - 在對外服務情境避免可預測 RNG
//   - 同時保留可追溯性（seed 會被記錄在 Experiment.initseed）
func newExperiment(es *spec.ExperimentSetting, reg *sampler.MethodRegistry, cf core.PRNGFactory) (*Experiment, error) {
	seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return nil, errs.Wrap(err, "new crypto seed error in go std lib")
	}
	return newExperimentWithSeed(es, reg, cf, seed.Int64())
}

// newExperimentWithSeed 以指定 seed 建立 Experiment。
//
// 這是最常用的「可重現」入口：同一份 ExperimentSetting + 同一個 seed，應能得到一致的取樣序列（取決於 Core 實作）。
//
// 建立流程（概念）：
//  1. core.New(cf.New(seed)) 建出 RNG 核心
//  2. reg.Build(es, core) 依設定 + registry 建出取樣 Runner
func newExperimentWithSeed(es *spec.ExperimentSetting, reg *sampler.MethodRegistry, cf core.PRNGFactory, seed int64) (*Experiment, error) {
	e := &Experiment{
		name:     es.ExperimentName,
		eid:      spec.EID(es.ExperimentID),
		method:   es.Method,
		core:     core.New(cf.New(seed)),
		rounds:   es.DefaultRounds,
		initseed: seed,
	}
	var err error
	e.runner, err = reg.Build(es, e.core)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Run 為主要公開入口，會驗證請求，執行取樣並回傳結果報表。
func (e *Experiment) Run(r *dto.RunRequest) (dto.RunResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// 1. 校驗請求合法性
	if err := e.valid(r); err != nil {
		return dto.RunResult{}, err
	}
	rounds := r.Rounds
	if rounds == 0 {
		rounds = e.rounds
	}

	// 2. parse start state
	startsnap, err := e.SnapshotCore()
	if err != nil {
		return dto.RunResult{}, errs.NewFatal("before snapshot error " + err.Error())
	}
	rem := startsnap
	external, err := r.Snap()
	if err != nil {
		return dto.RunResult{}, err
	}
	if len(external) != 0 {
		startsnap = external
		if err := e.RestoreCore(external); err != nil {
			return dto.RunResult{}, errs.NewWarn("restore core err " + err.Error())
		}
	}

	// 3. run
	rec, err := recorder.NewRunRecorder(e.name, e.eid, e.method, e.runner.Labels(), e.runner.Target())
	if err != nil {
		return dto.RunResult{}, err
	}
	start := time.Now()
	for i := 0; i < rounds; i++ {
		rec.Record(e.runner.Step())
	}
	used := time.Since(start)

	// 4. get after snapshot
	aftersnap, err := e.SnapshotCore()
	if err != nil {
		if re := e.RestoreCore(rem); re != nil {
			return dto.RunResult{}, errs.NewFatal("fall back err " + re.Error())
		}
		return dto.RunResult{}, errs.NewWarn("after snapshot error " + err.Error())
	}

	// 5. restore if needed
	if len(external) != 0 {
		if err := e.RestoreCore(rem); err != nil {
			return dto.RunResult{}, errs.NewFatal("restore core back err " + err.Error())
		}
	}

	// 6. dto
	return dto.NewRunResultDTO(e.name, e.eid, e.method, rounds, used.Milliseconds(), rec.Done(), startsnap, aftersnap)
}

// StepInternal 直接執行一輪取樣並回傳 (活動索引, 是否計分)；常用於模擬器或測試
//
// 請勿在正式環境使用
//
// 此行為跳過所有檢查與鎖，由呼叫端保證單 goroutine 使用
func (e *Experiment) StepInternal() (int, bool) {
	return e.runner.Step()
}

// Labels 回傳活動 label 列表（與 Step 回傳的索引對齊）。
func (e *Experiment) Labels() []string {
	return e.runner.Labels()
}

// Target 回傳正規化後的目標分佈。
func (e *Experiment) Target() []float64 {
	return e.runner.Target()
}

func (e *Experiment) valid(req *dto.RunRequest) error {
	if req == nil {
		return errs.NewWarn("nil run request")
	}
	if req.ExperimentId != 0 && e.eid != req.ExperimentId {
		return errs.NewWarn("experiment id is not matched")
	}
	if req.ExperimentName != "" && e.name != req.ExperimentName {
		return errs.NewWarn("experiment name is not matched")
	}
	if req.Rounds < 0 {
		return errs.NewWarn("rounds must >= 0")
	}
	return nil
}

// SnapshotCore 取得Core狀態暫存 當前僅提供取得Core狀態
func (e *Experiment) SnapshotCore() ([]byte, error) {
	return e.core.Snapshot()
}

// RestoreCore 恢復Core狀態暫存 當前僅提供恢復Core狀態
//
// 注意：快照只覆蓋 RNG 狀態；Metropolis 漫步的「當前位置」不在快照內，
// 續跑語意是「延續 RNG 流水」而非「凍結整個 Runner」。
func (e *Experiment) RestoreCore(src []byte) error {
	return e.core.Restore(src)
}
