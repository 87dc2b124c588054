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

package samplab_test

import (
	"context"
	"testing"

	"github.com/zintix-labs/samplab"
	"github.com/zintix-labs/samplab/demo/demo_configs"
	"github.com/zintix-labs/samplab/dto"
	"github.com/zintix-labs/samplab/sdk/core"
	"github.com/zintix-labs/samplab/sdk/sampler"
)

func newLab(t *testing.T) *samplab.Lab {
	t.Helper()
	lab, err := samplab.NewAuto(
		core.Default(),
		samplab.Configs(demo_configs.FS),
		samplab.Methods(sampler.BuiltinMethods()),
	)
	if err != nil {
		t.Fatalf("build lab: %v", err)
	}
	return lab
}

func TestNewAutoDemoConfigs(t *testing.T) {
	lab := newLab(t)

	sums, err := lab.Summary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(sums) != 7 {
		t.Fatalf("expected 7 demo experiments, got %d", len(sums))
	}
	if _, ok := lab.EntryById(1001); !ok {
		t.Fatal("eid 1001 not registered")
	}
	if _, ok := lab.EntryByName("tower_bench"); !ok {
		t.Fatal("tower_bench not registered")
	}
	if _, ok := lab.EntryById(9999); ok {
		t.Fatal("eid 9999 should not exist")
	}
}

func TestNewExperimentUnknownEID(t *testing.T) {
	lab := newLab(t)
	if _, err := lab.NewExperiment(9999); err == nil {
		t.Fatal("expected error for unknown eid")
	}
}

func TestExperimentDeterministicBySeed(t *testing.T) {
	lab := newLab(t)

	e1, err := lab.NewExperimentWithSeed(1001, 77)
	if err != nil {
		t.Fatalf("build experiment: %v", err)
	}
	e2, err := lab.NewExperimentWithSeed(1001, 77)
	if err != nil {
		t.Fatalf("build experiment: %v", err)
	}

	r1, err := e1.Run(&dto.RunRequest{ExperimentId: 1001, Rounds: 2000})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	r2, err := e2.Run(&dto.RunRequest{ExperimentId: 1001, Rounds: 2000})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	c1 := r1.Report.Dist.Collect
	c2 := r2.Report.Dist.Collect
	if len(c1) != len(c2) {
		t.Fatalf("collect length mismatch %d != %d", len(c1), len(c2))
	}
	for i := range c1 {
		if c1[i] != c2[i] {
			t.Fatalf("same seed diverged at %d: %d != %d", i, c1[i], c2[i])
		}
	}
	if r1.State.StartCoreSnapB64U != r2.State.StartCoreSnapB64U {
		t.Fatal("same seed should produce the same start snapshot")
	}
}

func TestExperimentReplayByStartSnap(t *testing.T) {
	lab := newLab(t)

	e1, err := lab.NewExperimentWithSeed(1001, 123)
	if err != nil {
		t.Fatalf("build experiment: %v", err)
	}
	r1, err := e1.Run(&dto.RunRequest{Rounds: 1000})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if r1.State.StartCoreSnapB64U == "" || r1.State.AfterCoreSnapB64U == "" {
		t.Fatalf("missing run state: %+v", r1.State)
	}

	// 用不同 seed 的 instance，帶入第一段的 start snap 回放
	e2, err := lab.NewExperimentWithSeed(1001, 999)
	if err != nil {
		t.Fatalf("build experiment: %v", err)
	}
	r2, err := e2.Run(&dto.RunRequest{
		Rounds:     1000,
		StartState: &dto.StartState{StartCoreSnapB64U: r1.State.StartCoreSnapB64U},
	})
	if err != nil {
		t.Fatalf("replay run: %v", err)
	}

	c1 := r1.Report.Dist.Collect
	c2 := r2.Report.Dist.Collect
	for i := range c1 {
		if c1[i] != c2[i] {
			t.Fatalf("replay diverged at %d: %d != %d", i, c1[i], c2[i])
		}
	}
	if r2.State.AfterCoreSnapB64U != r1.State.AfterCoreSnapB64U {
		t.Fatal("replay should reach the same after snapshot")
	}
}

func TestExperimentRunValidation(t *testing.T) {
	lab := newLab(t)
	e, err := lab.NewExperimentWithSeed(1001, 5)
	if err != nil {
		t.Fatalf("build experiment: %v", err)
	}
	if _, err := e.Run(nil); err == nil {
		t.Fatal("nil request should fail")
	}
	if _, err := e.Run(&dto.RunRequest{ExperimentId: 1002, Rounds: 10}); err == nil {
		t.Fatal("mismatched eid should fail")
	}
	if _, err := e.Run(&dto.RunRequest{ExperimentName: "alias_bench", Rounds: 10}); err == nil {
		t.Fatal("mismatched name should fail")
	}
	if _, err := e.Run(&dto.RunRequest{Rounds: -1}); err == nil {
		t.Fatal("negative rounds should fail")
	}
}

func TestExperimentRunDefaultRounds(t *testing.T) {
	lab := newLab(t)
	e, err := lab.NewExperimentWithSeed(1006, 5)
	if err != nil {
		t.Fatalf("build experiment: %v", err)
	}
	// Rounds=0 → 用設定檔的 default_rounds
	r, err := e.Run(&dto.RunRequest{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if r.Rounds != 1000000 {
		t.Fatalf("expected default rounds 1,000,000, got %d", r.Rounds)
	}
}

func TestSimulatorSim(t *testing.T) {
	lab := newLab(t)
	s, err := lab.NewSimulatorWithSeed(1001, 31)
	if err != nil {
		t.Fatalf("build simulator: %v", err)
	}
	st, _, err := s.Sim(10000, false)
	if err != nil {
		t.Fatalf("sim: %v", err)
	}
	if st.Summary.Rounds != 10000 {
		t.Fatalf("expected 10000 rounds, got %d", st.Summary.Rounds)
	}
	// tower 每輪必計分
	if st.Summary.Scored != 10000 {
		t.Fatalf("expected 10000 scored, got %d", st.Summary.Scored)
	}
}

func TestSimulatorSimMPMergesWorkers(t *testing.T) {
	lab := newLab(t)
	s, err := lab.NewSimulatorWithSeed(1001, 31)
	if err != nil {
		t.Fatalf("build simulator: %v", err)
	}
	st, _, err := s.SimMP(2500, 4, false)
	if err != nil {
		t.Fatalf("simmp: %v", err)
	}
	if st.Summary.Rounds != 10000 {
		t.Fatalf("expected merged 10000 rounds, got %d", st.Summary.Rounds)
	}
}

func TestSimulatorSimRuns(t *testing.T) {
	lab := newLab(t)
	s, err := lab.NewSimulatorWithSeed(1004, 31)
	if err != nil {
		t.Fatalf("build simulator: %v", err)
	}
	st, est, _, err := s.SimRuns(2, 5, 2000, false)
	if err != nil {
		t.Fatalf("simruns: %v", err)
	}
	if st.Summary.Rounds != 10000 {
		t.Fatalf("expected merged 10000 rounds, got %d", st.Summary.Rounds)
	}
	if est == nil {
		t.Fatal("estimator should not be nil")
	}
	// 拒絕法：計分數必定不超過輪數
	if st.Summary.Scored > st.Summary.Rounds {
		t.Fatalf("scored %d exceeds rounds %d", st.Summary.Scored, st.Summary.Rounds)
	}
}

func TestRuntimeRunAndClose(t *testing.T) {
	lab := newLab(t)
	rt, err := lab.BuildRuntime(1)
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}

	res, err := rt.Run(context.Background(), &dto.RunRequest{ExperimentId: 1001, Rounds: 500})
	if err != nil {
		t.Fatalf("runtime run: %v", err)
	}
	if res.Rounds != 500 {
		t.Fatalf("expected 500 rounds, got %d", res.Rounds)
	}
	if res.Report == nil {
		t.Fatal("missing report")
	}

	if _, err := rt.Run(context.Background(), &dto.RunRequest{ExperimentId: 4242, Rounds: 10}); err == nil {
		t.Fatal("unknown eid should fail")
	}

	rt.Close()
	if !rt.Closed() {
		t.Fatal("runtime should report closed")
	}
	if _, err := rt.Run(context.Background(), &dto.RunRequest{ExperimentId: 1001, Rounds: 10}); err == nil {
		t.Fatal("run after close should fail")
	}
}

func TestRuntimeRunCancelledContext(t *testing.T) {
	lab := newLab(t)
	rt, err := lab.BuildRuntime(1)
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := rt.Run(ctx, &dto.RunRequest{ExperimentId: 1001, Rounds: 10}); err == nil {
		t.Fatal("cancelled context should fail")
	}
}
