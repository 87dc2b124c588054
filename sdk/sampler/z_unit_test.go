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

package sampler

import (
	"math"
	"testing"

	"github.com/zintix-labs/samplab/sdk/core"
	"github.com/zintix-labs/samplab/spec"
)

// -----------------------------------------------------------------------------
// Helper Functions
// -----------------------------------------------------------------------------

// assertPanic 驗證函數是否如預期觸發 panic
func assertPanic(t *testing.T, f func(), msg string) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic for %s, but got none", msg)
		}
	}()
	f()
}

// checkFreq 驗證計分結果的經驗頻率是否貼合目標分佈
func checkFreq(t *testing.T, name string, target []float64, scores []int, total int, tolerance float64) {
	t.Helper()
	if total == 0 {
		t.Fatalf("[%s] zero scored steps", name)
	}
	for i, want := range target {
		got := float64(scores[i]) / float64(total)
		diff := math.Abs(want - got)
		if diff > tolerance {
			t.Errorf("[%s] index %d: expected freq %.4f, got %.4f (diff %.4f > tol %.4f)",
				name, i, want, got, diff, tolerance)
		}
	}
}

func sum(scores []int) int {
	s := 0
	for _, v := range scores {
		s += v
	}
	return s
}

func seqLabels(n int) []string {
	ls := make([]string, n)
	for i := range ls {
		ls[i] = "a" + string(rune('0'+i%10)) + string(rune('a'+i/10))
	}
	return ls
}

// -----------------------------------------------------------------------------
// Tests for NeighborTable
// -----------------------------------------------------------------------------

// TestNeighborTableInterior 驗證內部 cell 的四方向鄰居
// 檢查項目: 3x3 網格中心 cell (label 4) 的 up/right/down/left
func TestNeighborTableInterior(t *testing.T) {
	nt := BuildNeighborTable(GridLabels(3))

	// 網格:
	//   0 1 2
	//   3 4 5
	//   6 7 8
	if got := nt.At(4, Up); got != 1 {
		t.Errorf("up of 4: expected 1, got %d", got)
	}
	if got := nt.At(4, Right); got != 5 {
		t.Errorf("right of 4: expected 5, got %d", got)
	}
	if got := nt.At(4, Down); got != 7 {
		t.Errorf("down of 4: expected 7, got %d", got)
	}
	if got := nt.At(4, Left); got != 3 {
		t.Errorf("left of 4: expected 3, got %d", got)
	}
}

// TestNeighborTableBoundary 驗證邊界 cell 缺少方向的自指行為
// 檢查項目: 角落與邊緣 cell，缺少的方向必須指回自己（非 wraparound）
func TestNeighborTableBoundary(t *testing.T) {
	nt := BuildNeighborTable(GridLabels(3))

	// 左上角 0：up/left 自指
	if got := nt.At(0, Up); got != 0 {
		t.Errorf("up of corner 0: expected self, got %d", got)
	}
	if got := nt.At(0, Left); got != 0 {
		t.Errorf("left of corner 0: expected self, got %d", got)
	}
	if got := nt.At(0, Right); got != 1 {
		t.Errorf("right of corner 0: expected 1, got %d", got)
	}
	if got := nt.At(0, Down); got != 3 {
		t.Errorf("down of corner 0: expected 3, got %d", got)
	}

	// 右下角 8：down/right 自指
	if got := nt.At(8, Down); got != 8 {
		t.Errorf("down of corner 8: expected self, got %d", got)
	}
	if got := nt.At(8, Right); got != 8 {
		t.Errorf("right of corner 8: expected self, got %d", got)
	}

	// 上邊緣 1：只有 up 自指
	if got := nt.At(1, Up); got != 1 {
		t.Errorf("up of edge 1: expected self, got %d", got)
	}
	if got := nt.At(1, Down); got != 4 {
		t.Errorf("down of edge 1: expected 4, got %d", got)
	}
}

// -----------------------------------------------------------------------------
// Tests for Metropolis walkers
// -----------------------------------------------------------------------------

// TestMetropolisLatticeConvergence 驗證 pebble game 的長期頻率收斂
// 檢查項目: 每個 cell 的到訪頻率貼合 weight/sum(weights)
func TestMetropolisLatticeConvergence(t *testing.T) {
	c := core.New(core.Default().New(17))
	weights := []float64{1, 2, 3, 2, 4, 2, 3, 2, 1}
	acts := NewActivities(seqLabels(9), weights)
	nt := BuildNeighborTable(GridLabels(3))

	rounds := 1_000_000
	scores := MetropolisLattice(c, nt, acts, 0, rounds)

	if got := sum(scores); got != rounds {
		t.Fatalf("every round must score: expected %d, got %d", rounds, got)
	}
	checkFreq(t, "MetropolisLattice", acts.Target(), scores, rounds, 0.01)
}

// TestMetropolisWalkConvergence 驗證一般 Metropolis 漫步的長期頻率收斂
func TestMetropolisWalkConvergence(t *testing.T) {
	c := core.New(core.Default().New(23))
	weights := []float64{1, 2, 3, 4}
	acts := NewActivities(seqLabels(4), weights)

	rounds := 1_000_000
	scores := MetropolisWalk(c, acts, 2, rounds)

	checkFreq(t, "MetropolisWalk", acts.Target(), scores, rounds, 0.01)
}

// TestMetropolisDetailedBalance 驗證 detailed balance：
// 兩活動長期頻率比逼近 w1/w2，且與起始位置無關
func TestMetropolisDetailedBalance(t *testing.T) {
	weights := []float64{1, 3}
	acts := NewActivities([]string{"x", "y"}, weights)
	rounds := 500_000

	for start := 0; start < 2; start++ {
		c := core.New(core.Default().New(int64(31 + start)))
		scores := MetropolisWalk(c, acts, start, rounds)
		ratio := float64(scores[1]) / float64(scores[0])
		if math.Abs(ratio-3) > 0.1 {
			t.Errorf("start=%d: expected visit ratio ~3, got %.4f", start, ratio)
		}
	}
}

// TestMetropolisEqualWeightsAlwaysMoves 驗證 u <= gamma 的含邊界接受：
// 等權重時 gamma == 1，提案必須無條件接受（非自指提案時位置必變）
func TestMetropolisEqualWeightsAlwaysMoves(t *testing.T) {
	c := core.New(core.Default().New(5))
	acts := NewActivities([]string{"p", "q"}, []float64{2, 2})
	w := NewWalker(c, acts, 0)

	moved := false
	prev := w.Pos()
	for i := 0; i < 100; i++ {
		idx, scored := w.Step()
		if !scored {
			t.Fatal("walker steps must always score")
		}
		if idx != prev {
			moved = true
		}
		prev = idx
	}
	if !moved {
		t.Fatal("equal weights: walker never moved in 100 steps")
	}
}

// -----------------------------------------------------------------------------
// Tests for Rejection sampler
// -----------------------------------------------------------------------------

// TestRejectionConvergence 驗證拒絕取樣以 accept_count 正規化後的分佈
func TestRejectionConvergence(t *testing.T) {
	c := core.New(core.Default().New(41))
	weights := []float64{1, 2, 3, 4}
	acts := NewActivities(seqLabels(4), weights)

	rounds := 800_000
	scores, accepts := RejectionSample(c, acts, rounds)

	if accepts > rounds {
		t.Fatalf("accepts %d must not exceed rounds %d", accepts, rounds)
	}
	if got := sum(scores); got != accepts {
		t.Fatalf("score total %d must equal accepts %d", got, accepts)
	}

	// 正規化分母是 accepts 而非 rounds
	checkFreq(t, "Rejection", acts.Target(), scores, accepts, 0.01)

	// accept rate → mean(weights)/max(weights) = 2.5/4
	rate := float64(accepts) / float64(rounds)
	if math.Abs(rate-0.625) > 0.01 {
		t.Errorf("accept rate: expected ~0.625, got %.4f", rate)
	}
}

// -----------------------------------------------------------------------------
// Tests for Tower sampler
// -----------------------------------------------------------------------------

// TestTowerBenchmark 驗證塔抽樣的頻率精度：
// 7 個活動、權重已正規化、1,000,000 抽，每個頻率誤差 < 0.01
func TestTowerBenchmark(t *testing.T) {
	c := core.New(core.Default().New(47))
	weights := []float64{0.1, 0.15, 0.25, 0.2, 0.1, 0.15, 0.05}
	tw := BuildTower(weights)

	rounds := 1_000_000
	scores := tw.Sample(c, rounds)

	if got := sum(scores); got != rounds {
		t.Fatalf("tower is rejection-free: expected %d hits, got %d", rounds, got)
	}
	checkFreq(t, "Tower", weights, scores, rounds, 0.01)
}

// TestTowerScanMatchesBinarySearch 驗證線性掃描與二分搜尋版本在相同
// 亂數序列下逐抽相等
func TestTowerScanMatchesBinarySearch(t *testing.T) {
	weights := []float64{0.3, 0, 0.5, 1.2, 0.01}
	t1 := BuildTower(weights)
	t2 := BuildTower(weights)
	c1 := core.New(core.Default().New(53))
	c2 := core.New(core.Default().New(53))

	for i := 0; i < 10_000; i++ {
		a := t1.Pick(c1)
		b := t2.PickScan(c2)
		if a != b {
			t.Fatalf("pick mismatch at draw %d: binary=%d scan=%d", i, a, b)
		}
	}
}

// TestTowerZeroWeightNeverHit 驗證零權重塔層永不命中
func TestTowerZeroWeightNeverHit(t *testing.T) {
	c := core.New(core.Default().New(59))
	tw := BuildTower([]float64{1, 0, 2})
	scores := tw.Sample(c, 50_000)
	if scores[1] != 0 {
		t.Fatalf("zero-weight layer was hit %d times", scores[1])
	}
}

// TestTowerPanics 驗證塔建表的錯誤情境
func TestTowerPanics(t *testing.T) {
	assertPanic(t, func() { BuildTower(nil) }, "empty weights")
	assertPanic(t, func() { BuildTower([]float64{1, -1}) }, "negative weight")
	assertPanic(t, func() { BuildTower([]float64{0, 0}) }, "all zero weights")
}

// -----------------------------------------------------------------------------
// Tests for AliasTable
// -----------------------------------------------------------------------------

// TestAliasTableDistribution 驗證 alias table 的抽樣分佈
func TestAliasTableDistribution(t *testing.T) {
	c := core.New(core.Default().New(61))
	weights := []float64{0.1, 0.2, 0.7}
	at := BuildAliasTable(weights)

	rounds := 500_000
	scores := at.Sample(c, rounds)
	checkFreq(t, "AliasTable", weights, scores, rounds, 0.01)
}

// TestAliasTableZeroWeight 驗證零權重活動永不命中
func TestAliasTableZeroWeight(t *testing.T) {
	c := core.New(core.Default().New(67))
	at := BuildAliasTable([]float64{3, 0, 1})
	scores := at.Sample(c, 50_000)
	if scores[1] != 0 {
		t.Fatalf("zero-weight activity was hit %d times", scores[1])
	}
}

// TestAliasTablePanics 驗證 alias table 建表的錯誤情境
func TestAliasTablePanics(t *testing.T) {
	assertPanic(t, func() { BuildAliasTable(nil) }, "empty weights")
	assertPanic(t, func() { BuildAliasTable([]float64{1, -0.5}) }, "negative weight")
	assertPanic(t, func() { BuildAliasTable([]float64{0, 0, 0}) }, "all zero weights")
}

// -----------------------------------------------------------------------------
// Tests for Continuum sampler
// -----------------------------------------------------------------------------

// TestSinHalfRange 驗證連續樣本全部落在 [0, π] 內
func TestSinHalfRange(t *testing.T) {
	c := core.New(core.Default().New(71))
	samples := SampleSinHalf(c, 100_000)
	for _, x := range samples {
		if x < 0 || x > math.Pi {
			t.Fatalf("sample out of [0, pi]: %v", x)
		}
	}
}

// TestSinHalfHistogram 驗證樣本直方圖貼合 ½sin(x)
func TestSinHalfHistogram(t *testing.T) {
	c := core.New(core.Default().New(73))
	cb := NewSinHalfBins(c, 8)

	rounds := 400_000
	scores := make([]int, 8)
	for i := 0; i < rounds; i++ {
		idx, _ := cb.Step()
		scores[idx]++
	}
	checkFreq(t, "SinHalfBins", cb.Target(), scores, rounds, 0.01)

	// 目標機率總和必為 1（∫ ½sin over [0,π] = 1）
	tot := 0.0
	for _, p := range cb.Target() {
		tot += p
	}
	if math.Abs(tot-1) > 1e-12 {
		t.Fatalf("bin targets must sum to 1, got %v", tot)
	}
}

// TestSinHalfMean 驗證樣本平均值逼近 π/2（對稱分佈）
func TestSinHalfMean(t *testing.T) {
	c := core.New(core.Default().New(79))
	samples := SampleSinHalf(c, 200_000)
	mean := 0.0
	for _, x := range samples {
		mean += x
	}
	mean /= float64(len(samples))
	if math.Abs(mean-math.Pi/2) > 0.01 {
		t.Fatalf("expected mean ~pi/2, got %.4f", mean)
	}
}

// -----------------------------------------------------------------------------
// Tests for MethodRegistry
// -----------------------------------------------------------------------------

// TestMethodRegistryDuplicate 驗證重複註冊與合併衝突
func TestMethodRegistryDuplicate(t *testing.T) {
	r := NewMethodRegistry()
	if err := r.Register(spec.MethodTower, buildTower); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(spec.MethodTower, buildTower); err == nil {
		t.Fatal("expected duplicate register to fail")
	}

	if _, err := MergeMethodRegistry(BuiltinMethods(), r); err == nil {
		t.Fatal("expected merge conflict on duplicate key")
	}
}

// TestBuiltinMethodsBuild 驗證所有內建方法都能從設定建出 Runner
func TestBuiltinMethodsBuild(t *testing.T) {
	reg := BuiltinMethods()
	keys := []spec.MethodKey{
		spec.MethodMetropolis, spec.MethodReject,
		spec.MethodTower, spec.MethodTowerScan, spec.MethodAlias,
	}
	for _, key := range keys {
		es := &spec.ExperimentSetting{
			ExperimentName: "t",
			Method:         key,
			Activities: []spec.ActivitySetting{
				{Label: "a", Weight: 1}, {Label: "b", Weight: 2},
			},
		}
		c := core.New(core.Default().New(3))
		r, err := reg.Build(es, c)
		if err != nil {
			t.Fatalf("[%s] build: %v", key, err)
		}
		idx, _ := r.Step()
		if idx < 0 || idx > 1 {
			t.Fatalf("[%s] step out of range: %d", key, idx)
		}
		if len(r.Labels()) != 2 || len(r.Target()) != 2 {
			t.Fatalf("[%s] labels/target shape mismatch", key)
		}
	}

	// lattice 與 continuum 需要額外欄位
	lat := &spec.ExperimentSetting{
		ExperimentName: "lat", Method: spec.MethodMetropolisLattice, GridSize: 2,
		Activities: []spec.ActivitySetting{
			{Label: "a", Weight: 1}, {Label: "b", Weight: 1},
			{Label: "c", Weight: 1}, {Label: "d", Weight: 1},
		},
	}
	if _, err := reg.Build(lat, core.New(core.Default().New(3))); err != nil {
		t.Fatalf("lattice build: %v", err)
	}

	cont := &spec.ExperimentSetting{
		ExperimentName: "cont", Method: spec.MethodInverseCDFSin, Bins: 4,
	}
	if _, err := reg.Build(cont, core.New(core.Default().New(3))); err != nil {
		t.Fatalf("continuum build: %v", err)
	}

	unknown := &spec.ExperimentSetting{ExperimentName: "u", Method: "nope"}
	if _, err := reg.Build(unknown, core.New(core.Default().New(3))); err == nil {
		t.Fatal("expected unknown method to fail")
	}
}
