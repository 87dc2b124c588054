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

// Package spec 定義實驗設定檔的結構與驗證。
//
// 設定檔（YAML/JSON）是實驗的單一事實來源：取樣方法、活動權重表、
// 網格大小、預設輪數都在這裡宣告。演算法層（sdk/sampler）只吃已驗證
// 過的資料，不認得設定檔。
package spec

import (
	"fmt"
	"strconv"

	"github.com/zintix-labs/samplab/errs"
)

// EID 實驗編號，Catalog 內唯一。
type EID uint

// MethodKey 取樣方法鍵，對應 sampler.MethodRegistry 內的 builder。
type MethodKey string

// 內建方法鍵。
const (
	MethodMetropolisLattice MethodKey = "metropolis_lattice"
	MethodMetropolis        MethodKey = "metropolis"
	MethodReject            MethodKey = "reject"
	MethodTower             MethodKey = "tower"
	MethodTowerScan         MethodKey = "tower_scan"
	MethodAlias             MethodKey = "alias"
	MethodInverseCDFSin     MethodKey = "inverse_cdf_sin"
)

// ActivitySetting 單一活動：label + 未正規化權重。
type ActivitySetting struct {
	Label  string  `yaml:"label"  json:"label"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// ExperimentSetting 一個實驗的完整宣告。
type ExperimentSetting struct {
	ExperimentID   uint              `yaml:"experiment_id"   json:"experiment_id"`
	ExperimentName string            `yaml:"experiment_name" json:"experiment_name"`
	Method         MethodKey         `yaml:"method"          json:"method"`
	Activities     []ActivitySetting `yaml:"activities"      json:"activities"`
	GridSize       int               `yaml:"grid_size"       json:"grid_size"`      // lattice 專用：網格邊長 N
	StartLabel     string            `yaml:"start_label"     json:"start_label"`    // 漫步起點；空字串 = 第一個活動
	Bins           int               `yaml:"bins"            json:"bins"`           // continuum 專用：直方圖層數
	DefaultRounds  int               `yaml:"default_rounds"  json:"default_rounds"` // 未指定輪數時的預設值
}

const defaultBins = 16
const defaultRounds = 1_000_000

// init 補全預設值並執行基本檢查。
func (es *ExperimentSetting) init() error {
	// 空 label 自動命名：離散活動用序號，lattice 用 cell 序號。
	for i := range es.Activities {
		if es.Activities[i].Label == "" {
			es.Activities[i].Label = "a" + strconv.Itoa(i)
		}
	}
	if es.Bins == 0 {
		es.Bins = defaultBins
	}
	if es.DefaultRounds == 0 {
		es.DefaultRounds = defaultRounds
	}
	return es.valid()
}

// valid 執行最基本的設定檔檢查，如需更多驗證可在此擴充。
func (es *ExperimentSetting) valid() error {
	if es.ExperimentName == "" {
		return errs.NewFatal("experiment_name required")
	}
	if es.Method == "" {
		return errs.Fatalf("experiment_name: %s err: method required", es.ExperimentName)
	}

	switch es.Method {
	case MethodInverseCDFSin:
		if es.Bins < 1 {
			return errs.Fatalf("experiment_name: %s err: bins must >= 1", es.ExperimentName)
		}
		// continuum 不需要活動表
		return nil
	case MethodMetropolisLattice:
		if es.GridSize < 1 {
			return errs.Fatalf("experiment_name: %s err: grid_size must >= 1", es.ExperimentName)
		}
		if len(es.Activities) != es.GridSize*es.GridSize {
			return errs.Fatalf("experiment_name: %s err: need grid_size^2=%d activities, got %d",
				es.ExperimentName, es.GridSize*es.GridSize, len(es.Activities))
		}
	default:
		if len(es.Activities) == 0 {
			return errs.Fatalf("experiment_name: %s err: empty activities", es.ExperimentName)
		}
	}

	seen := map[string]struct{}{}
	total := 0.0
	for _, act := range es.Activities {
		if _, ok := seen[act.Label]; ok {
			return errs.Fatalf("experiment_name: %s err: duplicate label %q", es.ExperimentName, act.Label)
		}
		seen[act.Label] = struct{}{}

		if act.Weight < 0 {
			return errs.Fatalf("experiment_name: %s err: negative weight on %q", es.ExperimentName, act.Label)
		}
		// Metropolis 的接受率要除以當前權重，零權重不可入表
		if act.Weight == 0 && (es.Method == MethodMetropolis || es.Method == MethodMetropolisLattice) {
			return errs.Fatalf("experiment_name: %s err: method %s requires strictly positive weights",
				es.ExperimentName, es.Method)
		}
		total += act.Weight
	}
	if total <= 0 {
		return errs.Fatalf("experiment_name: %s err: all weights are zero", es.ExperimentName)
	}

	if es.StartLabel != "" {
		if _, ok := seen[es.StartLabel]; !ok {
			return errs.Fatalf("experiment_name: %s err: start_label %q not in activities",
				es.ExperimentName, es.StartLabel)
		}
	}
	return nil
}

// StartIndex 回傳漫步起點索引（StartLabel 為空時回傳 0）。
// 僅在 valid() 通過後呼叫。
func (es *ExperimentSetting) StartIndex() int {
	if es.StartLabel == "" {
		return 0
	}
	for i, act := range es.Activities {
		if act.Label == es.StartLabel {
			return i
		}
	}
	return 0
}

// Labels 回傳活動 label 列表。
func (es *ExperimentSetting) Labels() []string {
	ls := make([]string, len(es.Activities))
	for i, act := range es.Activities {
		ls[i] = act.Label
	}
	return ls
}

// Weights 回傳活動權重列表。
func (es *ExperimentSetting) Weights() []float64 {
	ws := make([]float64, len(es.Activities))
	for i, act := range es.Activities {
		ws[i] = act.Weight
	}
	return ws
}

func (es *ExperimentSetting) String() string {
	return fmt.Sprintf("experiment{id=%d name=%s method=%s acts=%d}",
		es.ExperimentID, es.ExperimentName, es.Method, len(es.Activities))
}
