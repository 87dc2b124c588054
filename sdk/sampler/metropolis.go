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

// 本檔案 (metropolis.go) 實作 Metropolis 隨機漫步取樣。
//
// 接受規則：gamma = min(1, w_new / w_cur)，再抽一個 [0,1) 均勻變數 u，
// u <= gamma 則接受。比較必須是「非嚴格」的 <=：detailed balance 的
// 正確性依賴這個邊界被一致地含入（u == gamma 的情形必須接受，特別是
// gamma == 1 時 Float64 永遠 < 1，但 w_new == w_cur 的移動要無條件成立）。
//
// 兩個變體共用同一條規則：
//   - LatticeWalker：提案 = 鄰接表上均勻抽一個方向（pebble game）。
//   - Walker：提案 = 活動列表上均勻抽一個索引。
//
// 初始狀態由呼叫端指定且不被拒絕；每輪無論接受與否，都對「當前」位置
// 計分一次。權重必須嚴格為正（文件化合約，熱路徑不檢查）。
package sampler

import "github.com/zintix-labs/samplab/sdk/core"

// LatticeWalker 是鄰接表上的 Metropolis 漫步鏈。
//
// 當前權重會被快取，每輪只查一次候選權重。
type LatticeWalker struct {
	c    *core.Core
	nt   *NeighborTable
	acts *Activities
	cur  int
	wCur float64
}

// NewLatticeWalker 建立 pebble game 漫步鏈，start 為初始 label。
//
// 合約：acts 的活動數 == nt.Cells()，且所有權重嚴格為正。
func NewLatticeWalker(c *core.Core, nt *NeighborTable, acts *Activities, start int) *LatticeWalker {
	return &LatticeWalker{
		c:    c,
		nt:   nt,
		acts: acts,
		cur:  start,
		wCur: acts.Weight(start),
	}
}

// Step 執行一輪：均勻抽方向 → Metropolis 接受測試 → 回傳當前位置。
func (w *LatticeWalker) Step() (int, bool) {
	dir := Direction(w.c.IntN(NumDirections))
	cand := w.nt.At(w.cur, dir)
	wNew := w.acts.Weight(cand)

	gamma := min(1, wNew/w.wCur)
	if w.c.Float64() <= gamma {
		w.cur = cand
		w.wCur = wNew
	}
	return w.cur, true
}

// Pos 回傳當前位置 label。
func (w *LatticeWalker) Pos() int { return w.cur }

func (w *LatticeWalker) Labels() []string  { return w.acts.Labels() }
func (w *LatticeWalker) Target() []float64 { return w.acts.Target() }

// Walker 是一般活動列表上的 Metropolis 漫步鏈。
// 提案分佈為全列表均勻抽取（對稱提案，接受率不需修正）。
type Walker struct {
	c    *core.Core
	acts *Activities
	cur  int
	wCur float64
}

// NewWalker 建立一般 Metropolis 漫步鏈，start 為初始活動索引。
//
// 合約：所有權重嚴格為正。
func NewWalker(c *core.Core, acts *Activities, start int) *Walker {
	return &Walker{
		c:    c,
		acts: acts,
		cur:  start,
		wCur: acts.Weight(start),
	}
}

// Step 執行一輪：均勻抽候選索引 → Metropolis 接受測試 → 回傳當前索引。
func (w *Walker) Step() (int, bool) {
	cand := w.c.IntN(w.acts.Len())
	wNew := w.acts.Weight(cand)

	gamma := min(1, wNew/w.wCur)
	if w.c.Float64() <= gamma {
		w.cur = cand
		w.wCur = wNew
	}
	return w.cur, true
}

// Pos 回傳當前活動索引。
func (w *Walker) Pos() int { return w.cur }

func (w *Walker) Labels() []string  { return w.acts.Labels() }
func (w *Walker) Target() []float64 { return w.acts.Target() }

// MetropolisLattice 以固定輪數跑 pebble game，回傳各 label 的到訪計數。
// 計分陣列為局部配置並以值回傳，無跨呼叫狀態。
func MetropolisLattice(c *core.Core, nt *NeighborTable, acts *Activities, start int, rounds int) []int {
	w := NewLatticeWalker(c, nt, acts, start)
	scores := make([]int, acts.Len())
	for i := 0; i < rounds; i++ {
		idx, _ := w.Step()
		scores[idx]++
	}
	return scores
}

// MetropolisWalk 以固定輪數跑一般 Metropolis 漫步，回傳各活動的到訪計數。
func MetropolisWalk(c *core.Core, acts *Activities, start int, rounds int) []int {
	w := NewWalker(c, acts, start)
	scores := make([]int, acts.Len())
	for i := 0; i < rounds; i++ {
		idx, _ := w.Step()
		scores[idx]++
	}
	return scores
}
