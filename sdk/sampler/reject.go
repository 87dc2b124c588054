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

// 本檔案 (reject.go) 實作 envelope 拒絕取樣。
//
// envelope 取活動表的最大權重：每輪均勻抽一個索引，再抽一個
// [0, max_weight) 的 threshold，threshold <= weight 才接受（平手接受）。
//
// 正規化慣例（重要，與其他取樣器不同）：
// 經驗分佈 = 各活動接受數 / 「總接受數」，不是除以總輪數。
// 被拒絕的抽取是被丟棄的，不是被降權的。長期而言
// accept_count / rounds → mean(weights) / max(weights)。
package sampler

import "github.com/zintix-labs/samplab/sdk/core"

// Rejection 是逐步驅動的拒絕取樣器。
type Rejection struct {
	c    *core.Core
	acts *Activities
}

func NewRejection(c *core.Core, acts *Activities) *Rejection {
	return &Rejection{c: c, acts: acts}
}

// Step 執行一輪抽取，回傳 (抽中的索引, 是否接受)。
// 只有接受的輪才計分。
func (r *Rejection) Step() (int, bool) {
	idx := r.c.IntN(r.acts.Len())
	threshold := r.c.Float64N(r.acts.Max())
	return idx, threshold <= r.acts.Weight(idx)
}

func (r *Rejection) Labels() []string  { return r.acts.Labels() }
func (r *Rejection) Target() []float64 { return r.acts.Target() }

// RejectionSample 以固定輪數執行拒絕取樣。
//
// 回傳各活動的接受計數與總接受數；呼叫端以 accepts（而非 rounds）
// 正規化取得經驗分佈。
func RejectionSample(c *core.Core, acts *Activities, rounds int) (scores []int, accepts int) {
	r := NewRejection(c, acts)
	scores = make([]int, acts.Len())
	for i := 0; i < rounds; i++ {
		idx, ok := r.Step()
		if ok {
			scores[idx]++
			accepts++
		}
	}
	return scores, accepts
}
