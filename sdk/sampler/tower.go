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

// 本檔案 (tower.go) 實作免拒絕的累積（塔）取樣。
//
// 建表：C[0]=0, C[i]=C[i-1]+w[i-1]。
// 抽樣：抽一個 [0, C[last]) 的均勻落點，找到第一個 i 使 落點 <= C[i]，
// 命中活動 i-1。每次抽取必定產生一次命中，沒有拒絕。
//
// 特性：
//   - 建表時間：O(N)。
//   - 抽樣時間：PickScan O(N)（教學用線性掃描），Pick O(log N)（二分搜尋）。
//     兩者輸出分佈完全相同。
//   - 空間複雜度：O(N)，與權重總和無關（對比 LUT 的 O(sum(weights))）。
//
// 對比 AliasTable：塔建表更簡單、保持權重順序、可直接改寫成連續極限
// （反 CDF，見 continuum.go）；alias 抽樣為 O(1)，大 N 下更快。
package sampler

import (
	"sort"

	"github.com/zintix-labs/samplab/sdk/core"
)

// Tower 累積權重塔。
type Tower struct {
	cum []float64 // cum[0]=0, cum[i]=cum[i-1]+w[i-1]
}

// BuildTower 根據權重建立累積塔。
//
// 合約：權重非負且總和 > 0（負權重 panic，全零 panic）。
// 個別權重可為零：零權重活動對應零寬度的塔層，永不命中。
func BuildTower(weights []float64) *Tower {
	if len(weights) == 0 {
		panic("Tower: empty weights")
	}
	cum := make([]float64, len(weights)+1)
	for i, w := range weights {
		if w < 0 {
			panic("Tower: negative weight")
		}
		cum[i+1] = cum[i] + w
	}
	if cum[len(weights)] <= 0 {
		panic("Tower: all weights are zero")
	}
	return &Tower{cum: cum}
}

// Len 回傳活動數。
func (t *Tower) Len() int { return len(t.cum) - 1 }

// Total 回傳權重總和 C[last]。
func (t *Tower) Total() float64 { return t.cum[len(t.cum)-1] }

// Pick 以二分搜尋抽取一個活動索引。
func (t *Tower) Pick(c *core.Core) int {
	u := c.Float64N(t.Total())
	// 最小的 i 使 cum[i] >= u；u == 0 落在第一個非空塔層
	i := sort.SearchFloat64s(t.cum, u)
	if i < 1 {
		i = 1
	}
	return i - 1
}

// PickScan 以線性掃描抽取一個活動索引，語意與 Pick 完全一致。
// 保留這個版本是因為它就是塔抽樣的定義：由下往上疊，看落點落在哪一層。
func (t *Tower) PickScan(c *core.Core) int {
	u := c.Float64N(t.Total())
	for i := 1; i < len(t.cum); i++ {
		if u <= t.cum[i] {
			return i - 1
		}
	}
	// 浮點累積誤差使 u 超過 cum[last] 時歸入最後一層
	return len(t.cum) - 2
}

// Sample 連抽 rounds 次（二分搜尋版本），回傳各活動的命中計數。
func (t *Tower) Sample(c *core.Core, rounds int) []int {
	scores := make([]int, t.Len())
	for i := 0; i < rounds; i++ {
		scores[t.Pick(c)]++
	}
	return scores
}
