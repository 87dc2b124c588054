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

// Package samplab 提供 Samplab 引擎的「組裝入口（assembler）」與「運行入口（runtime entry）」。
//
// 你可以把 Samplab 視為一個「可被後端/模擬器使用的取樣實驗 runtime」，它負責把下列三個必需的地基組裝在一起，並提供建立 Experiment 的入口：
//  1. Catalog：實驗目錄（Single Source of Truth / SSOT），定義有哪些實驗、各自對應的設定檔名稱（ConfigName）。
//  2. MethodRegistry：方法註冊表，提供「如何依據設定（MethodKey）建出取樣 Runner」的 builders。
//  3. PRNGFactory：亂數核心工廠，保證可重現（reproducible）與可審計（auditable）。
//
// 設計重點：
//   - Samplab 本身不綁定任何「檔案路徑」概念：設定檔來源一律以 fs.FS 的形式注入。
//   - Samplab 會持有一份 Catalog（你要跑哪一批實驗/設定檔）與一份 MethodRegistry（你支援哪些取樣方法）。
//   - Experiment 是對外提供取樣執行的最小單位。
//
// 典型使用情境：
//   - 後端服務（HTTP）：由 Samplab 建立 Experiment，Experiment 對外提供 Run。
//   - 模擬器（sim）：由 Samplab 建立多台 Experiment 進行大量平行取樣。
package samplab

import (
	"crypto/rand"
	"fmt"
	"io/fs"
	"math"
	"math/big"
	"path/filepath"
	"strings"

	"github.com/zintix-labs/samplab/catalog"
	"github.com/zintix-labs/samplab/errs"
	"github.com/zintix-labs/samplab/sdk/core"
	"github.com/zintix-labs/samplab/sdk/sampler"
	"github.com/zintix-labs/samplab/spec"
)

// Configs 用來把一或多個設定檔來源（fs.FS）打包成 New() 需要的參數。
//
// 為什麼是 fs.FS：
//   - 你可以用 go:embed 把 configs 直接編進 binary（部署最穩定，不依賴工作目錄）。
//   - 也可以用 os.DirFS 在本機開發時讀取目錄。
//
// Samplab 不解析「路徑」：它只依賴 fs.FS + ConfigName（檔名）來取得設定內容。
func Configs(cfgs ...fs.FS) []fs.FS {
	return cfgs
}

// Methods 用來把一或多個方法註冊表（MethodRegistry）打包成 New() 需要的參數。
//
// 一個 MethodRegistry 代表「一個方法模組」提供的 builders 集合；
// 內建方法由 sampler.BuiltinMethods() 提供，外部可另行註冊自訂方法。
//
// New() 會把多個 registries 合併成單一 registry；若出現重複 MethodKey，會以 error 直接失敗（避免行為不確定）。
func Methods(regs ...*sampler.MethodRegistry) []*sampler.MethodRegistry {
	return regs
}

// Lab 是「組裝器（assembler）」與「運行入口（runtime entry）」：
//
// 它把三個必需的地基組合起來：
//  1. Catalog：實驗目錄，定義有哪些實驗、各自對應的設定檔名稱。
//  2. MethodRegistry：方法註冊表，提供「如何依據設定（MethodKey）建出 Runner」的 builders。
//  3. PRNGFactory：亂數核心工廠，保證可重現與可審計。
//
// 使用流程通常分成兩階段：
//   - 註冊/組裝階段（registration/build）：建立 catalog、合併 registries、檢查重複與缺漏。
//   - 執行階段（runtime）：依據實驗 ID 產生 Experiment，並在 Experiment 上執行 Run。
//
// 重要設計原則：
//   - Catalog 的 ID 唯一性只保證在「同一個 Lab instance」內。
//   - 你要跑哪一批實驗、哪一套設定檔、哪一批方法，必須由 New() 的參數明確決定。
//   - runtime 一旦開始（例如已建立 Experiment 並對外服務），不建議再變更 Catalog/Registry。
type Lab struct {
	cat *catalog.Catalog
	reg *sampler.MethodRegistry
	cf  core.PRNGFactory
	sum []catalog.Summary
}

// New 建立一個 Lab instance。
//
// 這是「組裝階段（registration/build）」的入口：
//   - 會建立 Catalog（同時做檔名存在性/重複性檢查，避免 runtime 才爆）。
//   - 會合併多個 MethodRegistry 成為單一 registry（重複 MethodKey 直接視為錯誤）。
//   - 會保存 PRNGFactory，確保由這個 Lab 建出來的 Experiment 在 RNG 行為上具有一致性。
//
// 參數要求（是合約的一部分）：
//   - cf 不能為 nil：沒有 RNG 工廠就無法建立可重現/可審計的核心。
//   - cfgs 至少一個：沒有設定檔來源，Catalog 無法解析 ExperimentSetting。
//   - methods 至少一個：沒有方法 builders，就算解析出設定也無法建出可執行的 Runner。
func New(cf core.PRNGFactory, cfgs []fs.FS, methods []*sampler.MethodRegistry) (*Lab, error) {
	if cf == nil {
		return nil, errs.NewFatal("core factory required")
	}
	if len(cfgs) == 0 {
		return nil, errs.NewFatal("configs required")
	}
	if len(methods) == 0 {
		return nil, errs.NewFatal("method registry required")
	}
	cata, err := catalog.New(cfgs...)
	if err != nil {
		return nil, err
	}
	reg, err := sampler.MergeMethodRegistry(methods...)
	if err != nil {
		return nil, err
	}
	lab := &Lab{
		cat: cata,
		reg: reg,
		cf:  cf,
	}
	return lab, nil
}

// NewAuto 建立一個直接進入執行階段的 Lab instance：
// 掃描所有設定檔批次註冊後立即 Freeze。
func NewAuto(cf core.PRNGFactory, cfgs []fs.FS, methods []*sampler.MethodRegistry) (*Lab, error) {
	lab, err := New(cf, cfgs, methods)
	if err != nil {
		return nil, err
	}
	if err := lab.RegisterAll(); err != nil {
		return nil, err
	}
	lab.Freeze()
	return lab, nil
}

func (p *Lab) Register(ents ...catalog.Entry) error {
	return p.cat.Register(ents...)
}

// RegisterAll
//
// 會掃描 catalog 持有的設定檔來源（fs.FS），把所有可辨識的設定檔（.yaml/.yml/.json）嘗試解析成
// *spec.ExperimentSetting，並用設定檔內宣告的 ExperimentID/ExperimentName 產生對應的 catalog.Entry 來批次註冊。
//
// 行為特性（重要）：
//  1. Fail-fast：任何一個檔案讀取/解析/基本檢查失敗，都會立刻回傳 error（不會忽略、也不會繼續掃完）。
//  2. 原子性：只有當「全部檔案」都成功解析並通過基本檢查時，才會呼叫 Register(...) 一次性寫入。
//     因此不會出現只註冊了一半、導致 catalog 處於半完成狀態的情況。
//  3. 穩定性：依檔名順序處理，確保行為 determinism（方便重現與除錯）。
//
// 注意：
//   - RegisterAll 只負責「把設定檔宣告的實驗資訊放進 Catalog」。
//
// 取樣方法（RunnerBuilder / MethodRegistry）是否支援該 MethodKey，在掃描時一併檢查。
func (p *Lab) RegisterAll() error {
	cfgs := p.cat.Cfg()
	sources := cfgs.Sources()
	if len(sources) == 0 {
		return errs.NewFatal("configs required")
	}

	entries := make([]catalog.Entry, 0, 64)
	seenID := map[spec.EID]string{}
	seenName := map[string]string{}

	for _, src := range sources {
		walkErr := fs.WalkDir(src, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path == "." {
					return nil
				}
				return errs.NewFatal(fmt.Sprintf("configs must be flat (no subdir): %q", path))
			}

			base := filepath.Base(path)
			if strings.Contains(path, "/") && path != base {
				return errs.NewFatal(fmt.Sprintf("configs must be flat (nested path): %q", path))
			}
			if strings.HasPrefix(base, ".") {
				return nil
			}

			ext := strings.ToLower(filepath.Ext(base))
			if ext != ".yaml" && ext != ".yml" && ext != ".json" {
				return nil
			}

			raw, rerr := fs.ReadFile(src, path)
			if rerr != nil {
				return errs.NewFatal(fmt.Sprintf("read config failed: %s", base))
			}

			var (
				es   *spec.ExperimentSetting
				eerr error
			)
			switch ext {
			case ".yaml", ".yml":
				es, eerr = spec.GetExperimentSettingByYAML(raw)
			case ".json":
				es, eerr = spec.GetExperimentSettingByJSON(raw)
			default:
				return errs.NewFatal(fmt.Sprintf("unsupported config format: %q", base))
			}
			if eerr != nil {
				return errs.NewFatal(fmt.Sprintf("parse experiment setting failed: %s", base))
			}

			name := strings.TrimSpace(es.ExperimentName)
			if name == "" {
				return errs.NewFatal(fmt.Sprintf("experiment name required: %s", base))
			}

			id := spec.EID(es.ExperimentID)
			if prev, ok := seenID[id]; ok {
				return errs.NewFatal(fmt.Sprintf("duplicate experiment id: %d (config=%s and %s)", id, prev, base))
			}
			if _, ok := p.cat.GetByID(id); ok {
				return errs.NewFatal(fmt.Sprintf("experiment id already registered: %d (config=%s)", id, base))
			}
			seenID[id] = base

			nameKey := strings.ToLower(name)
			if prev, ok := seenName[nameKey]; ok {
				return errs.NewFatal(fmt.Sprintf("duplicate experiment name: %s (config=%s and %s)", nameKey, prev, base))
			}
			if _, ok := p.cat.GetByName(name); ok {
				return errs.NewFatal(fmt.Sprintf("experiment name already registered: %s (config=%s)", name, base))
			}
			seenName[nameKey] = base

			if es.Method == "" {
				return errs.NewFatal(fmt.Sprintf("method required: %s", base))
			}
			if !p.reg.IsExist(es.Method) {
				return errs.NewFatal(fmt.Sprintf("method not registered: method=%s (config=%s)", es.Method, base))
			}

			entries = append(entries, catalog.Entry{
				EID:        id,
				Name:       name,
				ConfigName: base,
			})
			return nil
		})
		if walkErr != nil {
			return walkErr
		}
	}

	if len(entries) == 0 {
		return errs.NewFatal("no config files found to register")
	}

	return p.cat.Register(entries...)
}

func (p *Lab) Freeze() {
	p.cat.Freeze()
}

func (p *Lab) EntryById(id spec.EID) (catalog.Entry, bool) {
	return p.cat.GetByID(id)
}

func (p *Lab) EntryByName(name string) (catalog.Entry, bool) {
	return p.cat.GetByName(name)
}

func (p *Lab) IDs() []spec.EID {
	return p.cat.IDs()
}

func (p *Lab) All() []catalog.Entry {
	return p.cat.All()
}

func (p *Lab) Summary() ([]catalog.Summary, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	if p.sum != nil {
		return p.sum, nil
	}
	ids := p.cat.IDs()
	cs := make([]catalog.Summary, 0, len(ids))
	for _, id := range ids {
		es, err := p.cat.ExperimentSettingById(id)
		if err != nil {
			return nil, errs.NewFatal("parse experiment setting failed")
		}
		s := catalog.Summary{
			EID:    id,
			Name:   es.ExperimentName,
			Method: es.Method,
			Rounds: es.DefaultRounds,
		}
		cs = append(cs, s)
	}
	p.sum = cs
	return p.sum, nil
}

// NewExperiment 依據 Catalog 內的實驗 ID 建立一台 Experiment。
//
// 行為：
//  1. 由 Catalog 取得對應的 ExperimentSetting（通常來自 fs.FS 內的 YAML/JSON）。
//  2. 以 PRNGFactory 產生 RNG 核心（seed 由 crypto/rand 產生）。
//  3. 透過 MethodRegistry 依據 ExperimentSetting 內的 MethodKey 建出可執行的 Runner。
//
// 注意：seed 會被記錄在 Experiment 內（initseed），用於追溯/重現；真正的可審計能力以 Core 的 Snapshot/Restore 合約為準。
func (p *Lab) NewExperiment(id spec.EID) (*Experiment, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	es, err := p.cat.ExperimentSettingById(id)
	if err != nil {
		return nil, err
	}
	return newExperiment(es, p.reg, p.cf)
}

// NewExperimentWithSeed 與 NewExperiment 相同，但由呼叫端指定初始 seed。
//
// 使用情境：
//   - 可重現的測試：同一份設定 + 同一個 seed，應產生一致的取樣序列（取決於 Core 實作）。
//
// 注意：seed 只是「出生入口」。若要在任意時間點完整重現，請使用 Core 的 Snapshot/Restore（以 []byte 交換狀態）。
func (p *Lab) NewExperimentWithSeed(id spec.EID, seed int64) (*Experiment, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	es, err := p.cat.ExperimentSettingById(id)
	if err != nil {
		return nil, err
	}
	return newExperimentWithSeed(es, p.reg, p.cf, seed)
}

func (p *Lab) NewExperimentByJSON(raw []byte, seed int64) (*Experiment, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	cfg, err := spec.GetExperimentSettingByJSON(raw)
	if err != nil {
		return nil, err
	}
	if err := p.validCfg(cfg); err != nil {
		return nil, err
	}
	return newExperimentWithSeed(cfg, p.reg, p.cf, seed)
}

func (p *Lab) NewExperimentByYAML(raw []byte, seed int64) (*Experiment, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	cfg, err := spec.GetExperimentSettingByYAML(raw)
	if err != nil {
		return nil, err
	}
	if err := p.validCfg(cfg); err != nil {
		return nil, err
	}
	return newExperimentWithSeed(cfg, p.reg, p.cf, seed)
}

func (p *Lab) validCfg(cfg *spec.ExperimentSetting) error {
	ent, ok := p.cat.GetByID(spec.EID(cfg.ExperimentID))
	if !ok {
		return errs.NewWarn("eid not exist")
	}
	ent2, ok := p.cat.GetByName(cfg.ExperimentName)
	if !ok {
		return errs.NewWarn("experiment name not exist")
	}
	if ent.EID != ent2.EID {
		return errs.NewWarn("experiment id is not matched experiment name")
	}
	if !p.reg.IsExist(cfg.Method) {
		return errs.NewWarn("method not exist")
	}
	return nil
}

func (p *Lab) NewSimulator(id spec.EID) (*Simulator, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	es, err := p.cat.ExperimentSettingById(id)
	if err != nil {
		return nil, err
	}
	return newSimulator(es, p.reg, p.cf)
}

func (p *Lab) NewSimulatorWithSeed(id spec.EID, seed int64) (*Simulator, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	es, err := p.cat.ExperimentSettingById(id)
	if err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(es, p.reg, p.cf, seed)
}

func (p *Lab) NewSimulatorByJSON(raw []byte, seed int64) (*Simulator, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	cfg, err := spec.GetExperimentSettingByJSON(raw)
	if err != nil {
		return nil, err
	}
	if err := p.validCfg(cfg); err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(cfg, p.reg, p.cf, seed)
}

func (p *Lab) NewSimulatorByYAML(raw []byte, seed int64) (*Simulator, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	cfg, err := spec.GetExperimentSettingByYAML(raw)
	if err != nil {
		return nil, err
	}
	if err := p.validCfg(cfg); err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(cfg, p.reg, p.cf, seed)
}

func (p *Lab) BuildRuntime(poolSize int) (*LabRuntime, error) {
	// 1. 進入 runtime 前，catalog 必須 Freeze
	p.Freeze()

	ids := p.cat.IDs()
	if len(ids) == 0 {
		return nil, errs.NewFatal("no experiments registered")
	}

	rt := &LabRuntime{
		lab:      p,
		pools:    make(map[spec.EID]*ExperimentPool, len(ids)),
		ids:      ids,
		done:     make(chan struct{}),
		poolSize: max(1, poolSize),
	}
	rt.reason.Store("")

	// 2. 先全建好（fail-fast + cleanup）
	for _, id := range ids {
		es, err := p.cat.ExperimentSettingById(id)
		if err != nil {
			return nil, err
		}

		seed, _ := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		ep, err := newExperimentPool(rt.poolSize, es, p.reg, p.cf, seed.Int64())
		if err != nil {
			return nil, err
		}
		rt.pools[id] = ep
	}
	return rt, nil
}
