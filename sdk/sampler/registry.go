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

// 本檔案 (registry.go) 定義 MethodKey → RunnerBuilder 的註冊表。
//
// Lab 在組裝階段用它檢查設定檔宣告的 method 是否可建，
// 在執行階段用它把 ExperimentSetting + Core 組成可逐步執行的 Runner。
package sampler

import (
	"fmt"

	"github.com/zintix-labs/samplab/errs"
	"github.com/zintix-labs/samplab/sdk/core"
	"github.com/zintix-labs/samplab/spec"
)

// RunnerBuilder 依設定建出綁定單一 Core 的 Runner（每台 Experiment 一份）。
type RunnerBuilder func(es *spec.ExperimentSetting, c *core.Core) (Runner, error)

type MethodRegistry struct {
	builders map[spec.MethodKey]RunnerBuilder
}

func NewMethodRegistry() *MethodRegistry {
	return &MethodRegistry{
		builders: make(map[spec.MethodKey]RunnerBuilder, 16),
	}
}

func (r *MethodRegistry) Register(key spec.MethodKey, b RunnerBuilder) error {
	if _, ok := r.builders[key]; ok {
		return errs.NewFatal("duplicate method builder")
	}
	r.builders[key] = b
	return nil
}

func (r *MethodRegistry) Build(es *spec.ExperimentSetting, c *core.Core) (Runner, error) {
	b, ok := r.builders[es.Method]
	if !ok {
		return nil, errs.Fatalf("method is not exist: %s", es.Method)
	}
	return b(es, c)
}

func (r *MethodRegistry) IsExist(key spec.MethodKey) bool {
	_, ok := r.builders[key]
	return ok
}

// MergeMethodRegistry merges multiple registries into a new one.
//
// Function values 只能與 nil 比較，重複鍵一律視為錯誤，
// 避免 "last one wins" 的不確定行為。
func MergeMethodRegistry(regs ...*MethodRegistry) (*MethodRegistry, error) {
	mr := NewMethodRegistry()

	origin := make(map[spec.MethodKey]int, 16)

	for i, r := range regs {
		if r == nil {
			continue
		}
		for key, builder := range r.builders {
			if _, ok := mr.builders[key]; ok {
				prev := origin[key]
				return nil, errs.NewFatal(fmt.Sprintf("duplicate method key %s (registry #%d and #%d)", key, prev, i))
			}
			mr.builders[key] = builder
			origin[key] = i
		}
	}

	return mr, nil
}

// BuiltinMethods 回傳內建七個取樣方法的註冊表。
func BuiltinMethods() *MethodRegistry {
	r := NewMethodRegistry()
	// 內建鍵不可能重複，Register 不會失敗
	_ = r.Register(spec.MethodMetropolisLattice, buildMetropolisLattice)
	_ = r.Register(spec.MethodMetropolis, buildMetropolis)
	_ = r.Register(spec.MethodReject, buildReject)
	_ = r.Register(spec.MethodTower, buildTower)
	_ = r.Register(spec.MethodTowerScan, buildTowerScan)
	_ = r.Register(spec.MethodAlias, buildAlias)
	_ = r.Register(spec.MethodInverseCDFSin, buildInverseCDFSin)
	return r
}

// ------------------------------------------------------------------
// 內建 builders
// ------------------------------------------------------------------

func buildMetropolisLattice(es *spec.ExperimentSetting, c *core.Core) (Runner, error) {
	acts := NewActivities(es.Labels(), es.Weights())
	nt := BuildNeighborTable(GridLabels(es.GridSize))
	return NewLatticeWalker(c, nt, acts, es.StartIndex()), nil
}

func buildMetropolis(es *spec.ExperimentSetting, c *core.Core) (Runner, error) {
	acts := NewActivities(es.Labels(), es.Weights())
	return NewWalker(c, acts, es.StartIndex()), nil
}

func buildReject(es *spec.ExperimentSetting, c *core.Core) (Runner, error) {
	acts := NewActivities(es.Labels(), es.Weights())
	return NewRejection(c, acts), nil
}

func buildTower(es *spec.ExperimentSetting, c *core.Core) (Runner, error) {
	acts := NewActivities(es.Labels(), es.Weights())
	return &towerRunner{c: c, acts: acts, t: BuildTower(acts.Weights()), scan: false}, nil
}

func buildTowerScan(es *spec.ExperimentSetting, c *core.Core) (Runner, error) {
	acts := NewActivities(es.Labels(), es.Weights())
	return &towerRunner{c: c, acts: acts, t: BuildTower(acts.Weights()), scan: true}, nil
}

func buildAlias(es *spec.ExperimentSetting, c *core.Core) (Runner, error) {
	acts := NewActivities(es.Labels(), es.Weights())
	return &aliasRunner{c: c, acts: acts, at: BuildAliasTable(acts.Weights())}, nil
}

func buildInverseCDFSin(es *spec.ExperimentSetting, c *core.Core) (Runner, error) {
	return NewSinHalfBins(c, es.Bins), nil
}

// towerRunner 把免拒絕的塔抽樣包成 Runner：每輪一抽一計分。
type towerRunner struct {
	c    *core.Core
	acts *Activities
	t    *Tower
	scan bool
}

func (r *towerRunner) Step() (int, bool) {
	if r.scan {
		return r.t.PickScan(r.c), true
	}
	return r.t.Pick(r.c), true
}

func (r *towerRunner) Labels() []string  { return r.acts.Labels() }
func (r *towerRunner) Target() []float64 { return r.acts.Target() }

type aliasRunner struct {
	c    *core.Core
	acts *Activities
	at   *AliasTable
}

func (r *aliasRunner) Step() (int, bool) {
	return r.at.Pick(r.c), true
}

func (r *aliasRunner) Labels() []string  { return r.acts.Labels() }
func (r *aliasRunner) Target() []float64 { return r.acts.Target() }
