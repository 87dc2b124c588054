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

// 本檔案 (continuum.go) 實作塔抽樣的連續極限：反 CDF 變換。
//
// 離散塔的層寬趨近於零時，「找落點在哪一層」就變成「對 CDF 取反函數」。
// 對目標密度 π(x) = ½sin(x), x ∈ [0, π]：
//
//	Π(x)  = ½(1 − cos x)
//	Π⁻¹(u) = arccos(1 − 2u)
//
// 每個樣本獨立：抽 u ∈ [0,1)，輸出 x = arccos(1 − 2u)，無迭代間依賴。
package sampler

import (
	"math"
	"strconv"

	"github.com/zintix-labs/samplab/sdk/core"
)

// InverseCDF 是目標分佈的反累積分佈函數：u ∈ [0,1) → 樣本值。
type InverseCDF func(u float64) float64

// SinHalfInverse 是 π(x)=½sin(x) on [0,π] 的解析反 CDF。
func SinHalfInverse(u float64) float64 {
	return math.Acos(1 - 2*u)
}

// SampleInverseCDF 以反 CDF 變換抽取 n 個獨立樣本。
func SampleInverseCDF(c *core.Core, inv InverseCDF, n int) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = inv(c.Float64())
	}
	return samples
}

// SampleSinHalf 從 ½sin(x) on [0,π] 抽取 n 個獨立樣本。
// 所有輸出落在 [0, π) 內（u ∈ [0,1) ⇒ 1−2u ∈ (−1,1] ⇒ arccos ∈ [0,π)）。
func SampleSinHalf(c *core.Core, n int) []float64 {
	return SampleInverseCDF(c, SinHalfInverse, n)
}

// ContinuumBins 把連續樣本折回離散計分機制：
// 將 [lo, hi) 均分為 bins 層，每個樣本歸入所屬層。
// 這讓連續抽樣能重用與離散取樣器相同的報表管線。
type ContinuumBins struct {
	c      *core.Core
	inv    InverseCDF
	lo, hi float64
	labels []string
	target []float64
}

// NewSinHalfBins 建立 ½sin(x) 的分層 runner。
// 每層的解析目標機率為 ∫ ½sin = (cos a − cos b) / 2。
func NewSinHalfBins(c *core.Core, bins int) *ContinuumBins {
	cb := &ContinuumBins{
		c:      c,
		inv:    SinHalfInverse,
		lo:     0,
		hi:     math.Pi,
		labels: make([]string, bins),
		target: make([]float64, bins),
	}
	width := math.Pi / float64(bins)
	for i := 0; i < bins; i++ {
		a := float64(i) * width
		b := a + width
		cb.labels[i] = formatBin(a, b)
		cb.target[i] = (math.Cos(a) - math.Cos(b)) / 2
	}
	return cb
}

// Step 抽一個連續樣本並回傳所屬層索引。
func (cb *ContinuumBins) Step() (int, bool) {
	x := cb.inv(cb.c.Float64())
	idx := int(float64(len(cb.labels)) * (x - cb.lo) / (cb.hi - cb.lo))
	if idx >= len(cb.labels) {
		idx = len(cb.labels) - 1
	}
	return idx, true
}

func (cb *ContinuumBins) Labels() []string  { return cb.labels }
func (cb *ContinuumBins) Target() []float64 { return cb.target }

// formatBin 產生報表列名用的區間字串。
func formatBin(a, b float64) string {
	return "[" + strconv.FormatFloat(a, 'f', 3, 64) + "," + strconv.FormatFloat(b, 'f', 3, 64) + ")"
}
