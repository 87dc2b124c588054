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

package stats

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// ============================================================
// ** 結構宣告 **
// ============================================================

// EstimatorRuns 多次重複實驗的跨輪評估
//
// 輸入是同一設定下的多份 ScoreReport（例如 SimMP 的每-worker 報告），
// 輸出收斂品質的分位敘事與逐活動的合併頻率估計。
type EstimatorRuns struct {
	TvStat  TvStat
	BinStat BinStat
}

// TvStat 收斂品質敘事：TV distance 在重複實驗間的分位數
type TvStat struct {
	Median PointStat
	P90    PointStat
	Worst  float64
}

// BinStat 逐活動合併估計：把所有重複實驗的計分合併後做點估計 + CP CI
type BinStat struct {
	Labels []string
	Target []float64
	Freq   []PointStat
}

// PointStat 點估計 回傳 估計值 以及信賴區間
type PointStat struct {
	Hat float64
	CI  CI
}

// ============================================================
// ** 對外 : 跨輪評估 **
// ============================================================

// EstimatorRunsExp 彙整多份報告。
//
// 1. TV 敘事 : 描述重複實驗間收斂品質的分布（中位數、P90、最差）
//
// 2. Bin 敘事 : 合併所有計分後，逐活動的頻率點估計與 95% CP 信賴區間
//
// 所有報告須出自同一實驗設定；以第一份報告的 Labels/Target 為準。
func EstimatorRunsExp(sts []*ScoreReport) *EstimatorRuns {
	n := len(sts)
	out := &EstimatorRuns{}
	if n == 0 {
		return out
	}

	// ------------------------------------------------------------
	// 1) TV 敘事
	// ------------------------------------------------------------
	tvs := make([]float64, n)
	for i, s := range sts {
		s.Done()
		tvs[i] = s.Summary.TV
	}

	medHat := quantilePoint(tvs, 0.5)
	medLo, medHi := quantileCI(tvs, 0.5, 0.95)
	p90Hat := quantilePoint(tvs, 0.90)
	p90Lo, p90Hi := quantileCI(tvs, 0.90, 0.95)

	worst := tvs[0]
	for _, v := range tvs {
		if v > worst {
			worst = v
		}
	}

	out.TvStat = TvStat{
		Median: PointStat{Hat: medHat, CI: CI{Lo: medLo, Hi: medHi}},
		P90:    PointStat{Hat: p90Hat, CI: CI{Lo: p90Lo, Hi: p90Hi}},
		Worst:  worst,
	}

	// ------------------------------------------------------------
	// 2) Bin 敘事：合併計分再估計
	// ------------------------------------------------------------
	first := sts[0]
	L := len(first.Dist.Labels)
	pooled := make([]int, L)
	pooledScored := 0
	for _, s := range sts {
		pooledScored += s.Summary.Scored
		for i := 0; i < L && i < len(s.Dist.Collect); i++ {
			pooled[i] += s.Dist.Collect[i]
		}
	}

	out.BinStat = BinStat{
		Labels: first.Dist.Labels,
		Target: first.Dist.Target,
		Freq:   make([]PointStat, L),
	}
	for i := 0; i < L; i++ {
		hat, ci := proportionCICP(pooled[i], pooledScored, 0.95)
		out.BinStat.Freq[i] = PointStat{Hat: hat, CI: ci}
	}

	return out
}

// ============================================================
// ** 內部統計函數 **
// ============================================================

// Clopper–Pearson exact CI for binomial proportion (k successes out of n)
func proportionCICP(k int, n int, confidence float64) (pHat float64, ci CI) {
	if n == 0 {
		return 0, CI{0, 1}
	}
	alpha := 1 - confidence
	pHat = float64(k) / float64(n)

	// Beta PPF 映射，處理邊界
	if k == 0 {
		ci.Lo = 0
	} else {
		b := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
		ci.Lo = b.Quantile(alpha / 2)
	}
	if k == n {
		ci.Hi = 1
	} else {
		b := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
		ci.Hi = b.Quantile(1 - alpha/2)
	}
	return
}

// 想估「第 q 分位」的上下界。做法：把 order statistic 的秩視為二項→Beta 反推 p 範圍，再把 p 轉回樣本索引。
// 回傳 (loValue, hiValue)
func quantileCI(data []float64, q, confidence float64) (float64, float64) {
	n := len(data)
	if n == 0 {
		return 0, 0
	}
	cp := make([]float64, n)
	copy(cp, data)
	sort.Float64s(cp)

	alpha := 1 - confidence
	k := int(q * float64(n))
	if k < 1 {
		k = 1
	} else if k > n-1 {
		k = n - 1
	}

	bLo := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
	bHi := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
	pLo := bLo.Quantile(alpha / 2)
	pHi := bHi.Quantile(1 - alpha/2)

	li := int(pLo * float64(n))
	ui := int(pHi * float64(n))
	if ui > 0 {
		ui -= 1
	}
	if li < 0 {
		li = 0
	}
	if li > n-1 {
		li = n - 1
	}
	if ui < 0 {
		ui = 0
	}
	if ui > n-1 {
		ui = n - 1
	}
	return cp[li], cp[ui]
}

// quantilePoint returns the empirical quantile point estimate at q.
func quantilePoint(data []float64, q float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}
	cp := make([]float64, n)
	copy(cp, data)
	sort.Float64s(cp)
	// 最近秩法
	idx := int(q * float64(n))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return cp[idx]
}

// ============================================================
// ** 輸出函數 **
// ============================================================

func (est *EstimatorRuns) Out() {
	fmt.Println("=== Convergence (TV distance across runs) ===")
	tvKeys := []string{"Median TV", "P90 TV", "Worst TV"}
	tvMsg := map[string]string{
		"Median TV": fmtHatCI(est.TvStat.Median.Hat, est.TvStat.Median.CI),
		"P90 TV":    fmtHatCI(est.TvStat.P90.Hat, est.TvStat.P90.CI),
		"Worst TV":  fmt.Sprintf("%.5f", est.TvStat.Worst),
	}
	printTable("Convergence", tvKeys, tvMsg)

	fmt.Println("\n=== Pooled frequency per activity ===")
	for i, label := range est.BinStat.Labels {
		ps := est.BinStat.Freq[i]
		fmt.Printf("%-16s : %s (target %.4f)\n", label, fmtHatCI(ps.Hat, ps.CI), est.BinStat.Target[i])
	}
}

func printTable(title string, keys []string, msg map[string]string) {
	fmt.Println(title)
	maxKeyLen := 0
	for _, k := range keys {
		if len(k) > maxKeyLen {
			maxKeyLen = len(k)
		}
	}
	for _, k := range keys {
		fmt.Printf("  %-*s : %s\n", maxKeyLen, k, msg[k])
	}
}

func fmtHatCI(hat float64, ci CI) string {
	return fmt.Sprintf("%.5f [%.5f, %.5f]", hat, ci.Lo, ci.Hi)
}
