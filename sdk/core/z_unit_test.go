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

package core

import (
	"slices"
	"testing"
)

func TestCoreDeterminism(t *testing.T) {
	c1 := New(Default().New(7))
	c2 := New(Default().New(7))
	for i := 0; i < 5; i++ {
		if c1.Uint64() != c2.Uint64() {
			t.Fatalf("Uint64 mismatch at %d", i)
		}
	}
	if c1.IntN(10) != c2.IntN(10) {
		t.Fatalf("IntN mismatch")
	}
	if c1.UintN(10) != c2.UintN(10) {
		t.Fatalf("UintN mismatch")
	}
	if c1.Float64N(3.5) != c2.Float64N(3.5) {
		t.Fatalf("Float64N mismatch")
	}
}

func TestCorePCG32Determinism(t *testing.T) {
	c1 := New(Default32().New(7))
	c2 := New(Default32().New(7))
	for i := 0; i < 5; i++ {
		if c1.Uint64() != c2.Uint64() {
			t.Fatalf("Uint64 mismatch at %d", i)
		}
	}
}

func TestFloat64NRange(t *testing.T) {
	c := New(Default().New(3))
	for i := 0; i < 10000; i++ {
		v := c.Float64N(2.5)
		if v < 0 || v >= 2.5 {
			t.Fatalf("Float64N out of range: %v", v)
		}
	}
}

func TestSnapshotRestoreReplays(t *testing.T) {
	for name, f := range map[string]PRNGFactory{"pcg64": Default(), "pcg32": Default32()} {
		c := New(f.New(42))
		_ = c.Uint64()
		snap, err := c.Snapshot()
		if err != nil {
			t.Fatalf("[%s] snapshot: %v", name, err)
		}
		want := []uint64{c.Uint64(), c.Uint64(), c.Uint64()}

		c2 := New(f.New(1))
		if err := c2.Restore(snap); err != nil {
			t.Fatalf("[%s] restore: %v", name, err)
		}
		got := []uint64{c2.Uint64(), c2.Uint64(), c2.Uint64()}
		for i := range want {
			if want[i] != got[i] {
				t.Fatalf("[%s] replay mismatch at %d", name, i)
			}
		}
	}
}

func TestCorePickAndShuffle(t *testing.T) {
	c := New(Default().New(9))
	if got := c.Pick(nil); got != -1 {
		t.Fatalf("expected -1 for empty pick, got %d", got)
	}

	src := []int{1, 2, 3, 4}
	c.ShuffleInts(src)
	if len(src) != 4 {
		t.Fatalf("unexpected length after shuffle")
	}
	want := []int{1, 2, 3, 4}
	got := slices.Clone(src)
	slices.Sort(want)
	slices.Sort(got)
	if !slices.Equal(want, got) {
		t.Fatalf("shuffle changed elements: %v", src)
	}
}
