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

package recorder

import (
	"fmt"

	"github.com/zintix-labs/samplab/errs"
	"github.com/zintix-labs/samplab/spec"
	"github.com/zintix-labs/samplab/stats"
)

// RunRecorder 實驗紀錄員
//
// RunRecorder 負責紀錄逐輪取樣結果，並透過Done輸出統計報表。
// 熱路徑只做整數累加，所有浮點統計延後到 Done。
type RunRecorder struct {
	ExperimentName string
	ExperimentId   spec.EID
	Method         spec.MethodKey
	Labels         []string
	Target         []float64
	Rounds         int
	Scored         int
	Collect        []int
}

func NewRunRecorder(name string, id spec.EID, method spec.MethodKey, labels []string, target []float64) (*RunRecorder, error) {
	r := new(RunRecorder)

	if len(labels) == 0 {
		return r, errs.NewFatal("empty labels")
	}
	if len(labels) != len(target) {
		return r, errs.NewFatal(fmt.Sprintf("labels/target length mismatch %d != %d", len(labels), len(target)))
	}

	// 通過valid
	r.ExperimentName = name
	r.ExperimentId = id
	r.Method = method
	r.Labels = labels
	r.Target = target
	r.Collect = make([]int, len(labels))

	return r, nil
}

// MergeRunRecorder 合併多份同設定的紀錄（SimMP 的每-worker 紀錄）。
func MergeRunRecorder(r []*RunRecorder) (*RunRecorder, error) {
	r0 := r[0]
	s, err := NewRunRecorder(r0.ExperimentName, r0.ExperimentId, r0.Method, r0.Labels, r0.Target)
	if err != nil {
		return s, err
	}
	for _, v := range r {
		if v.ExperimentName != r0.ExperimentName {
			return s, errs.NewFatal("merge run record err : different experiment name")
		}
		if v.Method != r0.Method {
			return s, errs.NewFatal("merge run record err : different method")
		}
		if len(v.Collect) != len(r0.Collect) {
			return s, errs.NewFatal("merge run record err : different activity count")
		}
		for i, l := range v.Labels {
			if l != r0.Labels[i] {
				return s, errs.NewFatal("merge run record err : different labels")
			}
		}

		s.Rounds += v.Rounds
		s.Scored += v.Scored
		for i := range v.Collect {
			s.Collect[i] += v.Collect[i]
		}
	}
	return s, nil
}

// Record 紀錄單輪 Step 結果。
//
// scored == false 的輪只累加輪數（拒絕取樣的被拒輪），idx 此時不可信，
// 不得拿來索引。
func (r *RunRecorder) Record(idx int, scored bool) {
	r.Rounds++
	if !scored {
		return
	}
	r.Collect[idx]++
	r.Scored++
}

func (r *RunRecorder) Done() *stats.ScoreReport {
	report := &stats.ScoreReport{
		Summary: &stats.SummaryReport{
			ExperimentName: r.ExperimentName,
			ExperimentId:   r.ExperimentId,
			Method:         r.Method,
			Rounds:         r.Rounds,
			Scored:         r.Scored,
		},
		Dist: &stats.DistReport{
			Labels:  r.Labels,
			Target:  r.Target,
			Collect: r.Collect,
		},
	}
	report.Done()
	return report
}
