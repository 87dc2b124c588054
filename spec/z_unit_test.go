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

package spec

import "testing"

const validYAML = `
experiment_id: 1
experiment_name: weather
method: tower
start_label: rain
activities:
  - { label: sun, weight: 4 }
  - { label: cloud, weight: 3 }
  - { label: rain, weight: 2 }
  - { label: snow, weight: 1 }
`

func TestGetExperimentSettingByYAML(t *testing.T) {
	es, err := GetExperimentSettingByYAML([]byte(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if es.ExperimentID != 1 || es.ExperimentName != "weather" || es.Method != MethodTower {
		t.Fatalf("unexpected setting: %+v", es)
	}
	if es.StartIndex() != 2 {
		t.Fatalf("expected start index 2, got %d", es.StartIndex())
	}
	// 預設值補全
	if es.Bins != 16 {
		t.Fatalf("expected default bins 16, got %d", es.Bins)
	}
	if es.DefaultRounds != 1_000_000 {
		t.Fatalf("expected default rounds 1,000,000, got %d", es.DefaultRounds)
	}
	if got := es.Labels(); len(got) != 4 || got[0] != "sun" {
		t.Fatalf("unexpected labels: %v", got)
	}
	if got := es.Weights(); got[3] != 1 {
		t.Fatalf("unexpected weights: %v", got)
	}
}

func TestGetExperimentSettingByJSON(t *testing.T) {
	raw := []byte(`{
		"experiment_id": 2,
		"experiment_name": "sin_bins",
		"method": "inverse_cdf_sin",
		"bins": 8
	}`)
	es, err := GetExperimentSettingByJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if es.Method != MethodInverseCDFSin || es.Bins != 8 {
		t.Fatalf("unexpected setting: %+v", es)
	}
	// continuum 不需要活動表
	if len(es.Activities) != 0 {
		t.Fatalf("unexpected activities: %v", es.Activities)
	}
}

func TestSettingAutoLabels(t *testing.T) {
	raw := []byte(`
experiment_name: anon
method: tower
activities:
  - { weight: 1 }
  - { weight: 2 }
`)
	es, err := GetExperimentSettingByYAML(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if es.Activities[0].Label != "a0" || es.Activities[1].Label != "a1" {
		t.Fatalf("unexpected auto labels: %+v", es.Activities)
	}
}

func TestSettingValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing name", `
method: tower
activities: [{ label: a, weight: 1 }]
`},
		{"missing method", `
experiment_name: x
activities: [{ label: a, weight: 1 }]
`},
		{"empty activities", `
experiment_name: x
method: tower
`},
		{"duplicate label", `
experiment_name: x
method: tower
activities: [{ label: a, weight: 1 }, { label: a, weight: 2 }]
`},
		{"negative weight", `
experiment_name: x
method: tower
activities: [{ label: a, weight: -1 }]
`},
		{"all zero weights", `
experiment_name: x
method: tower
activities: [{ label: a, weight: 0 }, { label: b, weight: 0 }]
`},
		{"zero weight for metropolis", `
experiment_name: x
method: metropolis
activities: [{ label: a, weight: 1 }, { label: b, weight: 0 }]
`},
		{"start label not in activities", `
experiment_name: x
method: tower
start_label: missing
activities: [{ label: a, weight: 1 }]
`},
		{"lattice without grid size", `
experiment_name: x
method: metropolis_lattice
activities: [{ label: a, weight: 1 }]
`},
		{"lattice activity count mismatch", `
experiment_name: x
method: metropolis_lattice
grid_size: 2
activities: [{ label: a, weight: 1 }, { label: b, weight: 1 }]
`},
	}
	for _, tc := range cases {
		if _, err := GetExperimentSettingByYAML([]byte(tc.yaml)); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestSettingLatticeValid(t *testing.T) {
	raw := []byte(`
experiment_name: grid2
method: metropolis_lattice
grid_size: 2
activities:
  - { label: c0, weight: 1 }
  - { label: c1, weight: 2 }
  - { label: c2, weight: 3 }
  - { label: c3, weight: 4 }
`)
	es, err := GetExperimentSettingByYAML(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if es.GridSize != 2 || len(es.Activities) != 4 {
		t.Fatalf("unexpected setting: %+v", es)
	}
}
