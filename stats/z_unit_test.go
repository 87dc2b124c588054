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

package stats_test

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/zintix-labs/samplab/spec"
	"github.com/zintix-labs/samplab/stats"
)

// buildScoreReport constructs a ScoreReport from raw counts with the given
// target. rounds defaults to the score total when zero (rejection-free case).
func buildScoreReport(target []float64, collect []int, rounds int) *stats.ScoreReport {
	scored := 0
	for _, c := range collect {
		scored += c
	}
	if rounds == 0 {
		rounds = scored
	}
	labels := make([]string, len(collect))
	for i := range labels {
		labels[i] = "a" + string(rune('0'+i))
	}
	rep := &stats.ScoreReport{
		Summary: &stats.SummaryReport{
			ExperimentName: "TestExperiment",
			ExperimentId:   spec.EID(0),
			Method:         spec.MethodTower,
			Rounds:         rounds,
			Scored:         scored,
		},
		Dist: &stats.DistReport{
			Labels:  labels,
			Target:  target,
			Collect: collect,
		},
	}
	rep.Done()
	return rep
}

func TestScoreReportCoreMetrics(t *testing.T) {
	// 完全貼合目標：freq == target，TV 與 MaxAbsErr 必為 0
	rep := buildScoreReport([]float64{0.25, 0.75}, []int{25, 75}, 0)

	if got := rep.Summary.AcceptRate; math.Abs(got-1) > 1e-12 {
		t.Fatalf("accept rate got %.12f want 1", got)
	}
	if got := rep.Summary.TV; got > 1e-12 {
		t.Fatalf("TV got %.12f want 0", got)
	}
	if got := rep.Summary.MaxAbsErr; got > 1e-12 {
		t.Fatalf("MaxAbsErr got %.12f want 0", got)
	}
	if got := rep.Summary.ChiSquare; got > 1e-12 {
		t.Fatalf("chi-square got %.12f want 0", got)
	}
	if got := rep.Summary.ChiPValue; math.Abs(got-1) > 1e-9 {
		t.Fatalf("chi p-value got %.9f want 1", got)
	}
	if rep.Summary.ChiDof != 1 {
		t.Fatalf("chi dof got %d want 1", rep.Summary.ChiDof)
	}
}

func TestScoreReportAcceptNormalization(t *testing.T) {
	// 拒絕取樣情境：rounds=200 但 scored=100，分母是 scored
	rep := buildScoreReport([]float64{0.5, 0.5}, []int{50, 50}, 200)

	if got := rep.Summary.AcceptRate; math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("accept rate got %.12f want 0.5", got)
	}
	if got := rep.Dist.Freq[0]; math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("freq[0] got %.12f want 0.5 (accept-normalized)", got)
	}
}

func TestScoreReportTV(t *testing.T) {
	// freq = [0.6, 0.4], target = [0.5, 0.5] → TV = 0.1
	rep := buildScoreReport([]float64{0.5, 0.5}, []int{60, 40}, 0)
	if got := rep.Summary.TV; math.Abs(got-0.1) > 1e-12 {
		t.Fatalf("TV got %.12f want 0.1", got)
	}
	if got := rep.Summary.MaxAbsErr; math.Abs(got-0.1) > 1e-12 {
		t.Fatalf("MaxAbsErr got %.12f want 0.1", got)
	}
}

func TestScoreReportFreqCI(t *testing.T) {
	rep := buildScoreReport([]float64{0.3, 0.7}, []int{0, 100}, 0)

	// k=0 → Lo 必為 0；k=n → Hi 必為 1
	ci0 := rep.Dist.FreqCI[0]
	if ci0.Lo != 0 {
		t.Fatalf("k=0: CI.Lo got %v want 0", ci0.Lo)
	}
	if ci0.Hi <= 0 || ci0.Hi >= 0.1 {
		t.Fatalf("k=0,n=100: CI.Hi got %v, expected small positive bound", ci0.Hi)
	}
	ci1 := rep.Dist.FreqCI[1]
	if ci1.Hi != 1 {
		t.Fatalf("k=n: CI.Hi got %v want 1", ci1.Hi)
	}
	if ci1.Lo >= 1 || ci1.Lo <= 0.9 {
		t.Fatalf("k=n=100: CI.Lo got %v, expected bound near 1", ci1.Lo)
	}
}

func TestScoreReportZeroTargetExcludedFromChi(t *testing.T) {
	// 零目標的活動不入卡方統計量與自由度
	rep := buildScoreReport([]float64{0.5, 0, 0.5}, []int{50, 0, 50}, 0)
	if rep.Summary.ChiDof != 1 {
		t.Fatalf("chi dof got %d want 1 (zero-target bin excluded)", rep.Summary.ChiDof)
	}
}

func TestScoreReportRenders(t *testing.T) {
	rep := buildScoreReport([]float64{0.5, 0.5}, []int{48, 52}, 0)

	var jb bytes.Buffer
	if err := rep.WriteWith(&jb, &stats.JsonScoreReportRender{}); err != nil {
		t.Fatalf("json render: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(jb.Bytes(), &decoded); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if _, ok := decoded["Summary"]; !ok {
		t.Fatal("json output missing Summary")
	}

	var yb bytes.Buffer
	if err := rep.WriteWith(&yb, &stats.YAMLScoreReportRender{}); err != nil {
		t.Fatalf("yaml render: %v", err)
	}
	// 一維陣列須為 flow style
	if !strings.Contains(yb.String(), "[") {
		t.Fatal("yaml output should render 1-D arrays in flow style")
	}
}

func TestEstimatorRunsExp(t *testing.T) {
	reps := []*stats.ScoreReport{
		buildScoreReport([]float64{0.5, 0.5}, []int{50, 50}, 0),
		buildScoreReport([]float64{0.5, 0.5}, []int{55, 45}, 0),
		buildScoreReport([]float64{0.5, 0.5}, []int{45, 55}, 0),
	}
	est := stats.EstimatorRunsExp(reps)

	if est.TvStat.Worst < est.TvStat.Median.Hat {
		t.Fatalf("worst TV %.5f must be >= median %.5f", est.TvStat.Worst, est.TvStat.Median.Hat)
	}
	if len(est.BinStat.Freq) != 2 {
		t.Fatalf("bin stat length got %d want 2", len(est.BinStat.Freq))
	}
	// 合併後 150/300 = 0.5
	if got := est.BinStat.Freq[0].Hat; math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("pooled freq[0] got %.12f want 0.5", got)
	}
	ci := est.BinStat.Freq[0].CI
	if ci.Lo >= 0.5 || ci.Hi <= 0.5 {
		t.Fatalf("pooled CI [%v,%v] must contain 0.5", ci.Lo, ci.Hi)
	}

	if est2 := stats.EstimatorRunsExp(nil); est2 == nil {
		t.Fatal("empty input must return zero-value estimator, not nil")
	}
}
