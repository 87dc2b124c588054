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

// Package sampler 實作從已知平穩分佈取樣的三個演算法家族：
//
//  1. Metropolis 隨機漫步（鄰接表上的 pebble game 與一般活動列表版本）
//  2. 拒絕取樣（envelope = 最大權重）
//  3. 免拒絕的累積（塔）取樣，含連續極限（反 CDF 變換）
//
// 本檔案 (define.go) 定義套件共用的活動表與 Runner 合約。
//
// 設計原則（對應教學目的）：
//   - 權重表在建構時一次展開成固定大小的索引陣列 + label→index 映射，
//     熱路徑上只走整數索引，不做動態查找。
//   - 計分累加器由呼叫端持有並以值回傳，套件內沒有任何跨呼叫狀態。
//   - 前置條件（嚴格正權重、表單長度一致、網格良構）是文件化合約；
//     違反者屬未定義行為，熱路徑不另做檢查。
package sampler

import "github.com/zintix-labs/samplab/sdk/core"

// Activities 是一組帶權活動：label 列表 + 未正規化的平穩權重。
//
// 建構時一次算好 total 與 max，供塔抽樣與拒絕取樣重複使用。
type Activities struct {
	labels  []string
	weights []float64
	index   map[string]int
	total   float64
	max     float64
}

// NewActivities 建立活動表。
//
// 合約：labels 與 weights 等長且非空、label 不重複、權重非負且總和 > 0。
// Metropolis 漫步另外要求所有權重嚴格為正（接受率需要除以當前權重）。
func NewActivities(labels []string, weights []float64) *Activities {
	if len(labels) != len(weights) {
		panic("Activities: labels/weights length mismatch")
	}
	if len(labels) == 0 {
		panic("Activities: empty activity list")
	}
	a := &Activities{
		labels:  labels,
		weights: weights,
		index:   make(map[string]int, len(labels)),
	}
	for i, l := range labels {
		if _, ok := a.index[l]; ok {
			panic("Activities: duplicate label " + l)
		}
		a.index[l] = i
	}
	for _, w := range weights {
		if w < 0 {
			panic("Activities: negative weight")
		}
		a.total += w
		if w > a.max {
			a.max = w
		}
	}
	if a.total <= 0 {
		panic("Activities: all weights are zero")
	}
	return a
}

func (a *Activities) Len() int          { return len(a.weights) }
func (a *Activities) Labels() []string  { return a.labels }
func (a *Activities) Weights() []float64 { return a.weights }
func (a *Activities) Weight(i int) float64 { return a.weights[i] }
func (a *Activities) Total() float64    { return a.total }
func (a *Activities) Max() float64      { return a.max }

// Index 回傳 label 對應的索引。
func (a *Activities) Index(label string) (int, bool) {
	i, ok := a.index[label]
	return i, ok
}

// Target 回傳正規化後的目標分佈 weight[i] / sum(weights)。
// 每次呼叫回傳新 slice，呼叫端可安心持有。
func (a *Activities) Target() []float64 {
	t := make([]float64, len(a.weights))
	for i, w := range a.weights {
		t[i] = w / a.total
	}
	return t
}

// Discrete 是「一次一抽」的離散取樣器合約（塔、alias table）。
// 每次 Pick 獨立同分佈，無抽樣間狀態。
type Discrete interface {
	Pick(c *core.Core) int
}

// Runner 是 Experiment/Simulator 驅動的逐步取樣合約。
//
// Step 執行一輪並回傳 (活動索引, 本輪是否計分)：
//   - Metropolis 漫步、塔、alias：每輪都計分（scored 恆為 true），
//     計分總數 == 輪數。
//   - 拒絕取樣：只有接受的抽取計分，計分總數 == 接受數。
//
// 經驗頻率一律以「計分總數」正規化。對漫步/塔而言這等同除以輪數；
// 對拒絕取樣而言則正好是 accept_count 正規化——被拒絕的抽取是被丟棄，
// 不是被降權。兩種慣例的差異由 scored 旗標一次表達，重實作時不可合併。
type Runner interface {
	Step() (idx int, scored bool)
	Labels() []string
	Target() []float64
}
