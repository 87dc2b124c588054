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

// 本檔案 (alias.go) 實作 Vose Alias Method，塔抽樣的 O(1) 免拒絕同伴。
//
// 演算法原理：
//   - 將任意離散分佈轉換為均勻分佈的組合。
//   - 每個槽位只存放「自己」和「別名 (alias)」兩個選項。
//   - 抽樣時先均勻選槽位，再依槽位機率決定是自己還是別名。
//
// 特性：
//   - 建表時間：O(N)。
//   - 抽樣時間：O(1)，每次固定一個 IntN 加一個 Float64。
//   - 空間複雜度：O(N)。
//
// 與塔抽樣的取捨：塔保持層序、程式碼即定義、可推到連續極限；
// alias 犧牲可讀性換取 O(1) 抽樣，適合大 N 高頻抽取。
package sampler

import "github.com/zintix-labs/samplab/sdk/core"

// AliasTable 是 Vose Alias Method 的抽樣結構。
type AliasTable struct {
	prob    []float64 // 槽位選「自己」的機率（已 scaling 到 [0,1]）
	aliases []int
}

// BuildAliasTable 根據權重建立 alias table。
//
// 合約：權重非負且總和 > 0（負權重 panic，全零 panic）。
// 零權重活動的槽位機率為 0 且不會成為任何槽位的別名來源，永不命中。
func BuildAliasTable(weights []float64) *AliasTable {
	n := len(weights)
	if n == 0 {
		panic("AliasTable: empty weights")
	}

	total := 0.0
	for _, w := range weights {
		if w < 0 {
			panic("AliasTable: negative weight")
		}
		total += w
	}
	if total <= 0 {
		panic("AliasTable: all weights are zero")
	}

	// scaled[i] = w[i] * n / total，平均值恰為 1
	prob := make([]float64, n)
	aliases := make([]int, n)
	scaled := make([]float64, n)
	small := make([]int, 0, n)
	large := make([]int, 0, n)

	for i, w := range weights {
		scaled[i] = w * float64(n) / total
		if scaled[i] < 1 {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}

	for len(small) > 0 && len(large) > 0 {
		s := small[len(small)-1]
		small = small[:len(small)-1]
		l := large[len(large)-1]
		large = large[:len(large)-1]

		prob[s] = scaled[s]
		aliases[s] = l
		// 把 s 欠缺的機率從 l 身上扣掉，維持 sum(scaled) = n 的不變性
		scaled[l] -= 1 - scaled[s]

		if scaled[l] < 1 {
			small = append(small, l)
		} else {
			large = append(large, l)
		}
	}

	// 浮點誤差殘留的槽位視為滿槽
	for _, i := range large {
		prob[i] = 1
		aliases[i] = i
	}
	for _, i := range small {
		prob[i] = 1
		aliases[i] = i
	}

	return &AliasTable{prob: prob, aliases: aliases}
}

// Len 回傳槽位數。
func (at *AliasTable) Len() int { return len(at.prob) }

// Pick 從 alias table 抽取一個索引。
func (at *AliasTable) Pick(c *core.Core) int {
	idx := c.IntN(len(at.prob))
	if c.Float64() < at.prob[idx] {
		return idx
	}
	return at.aliases[idx]
}

// Sample 連抽 rounds 次，回傳各活動的命中計數。
func (at *AliasTable) Sample(c *core.Core, rounds int) []int {
	scores := make([]int, at.Len())
	for i := 0; i < rounds; i++ {
		scores[at.Pick(c)]++
	}
	return scores
}
