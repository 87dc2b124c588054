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

// 本檔案 (neighbor.go) 實作 pebble game 所需的網格鄰接表。
//
// 鄰接表一次建好，漫步熱路徑上只剩一次陣列索引。
package sampler

// Direction 是鄰接表的固定方向順序。
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

// NumDirections 每個 cell 的鄰居數
const NumDirections = 4

// NeighborTable 是 label → 四鄰居的固定表。
//
// 邊界策略：位於網格邊界的 cell，缺少的方向指回自己（self-loop），
// 不做 wraparound。這使每個 cell 的提案分佈都是 4 選 1 的均勻分佈，
// Metropolis 漫步的 detailed balance 不需要額外修正項。
type NeighborTable struct {
	neighbors [][NumDirections]int
	size      int // 網格邊長 N
}

// GridLabels 回傳 n×n 的列優先（row-major）標籤網格：label = row*n + col。
func GridLabels(n int) [][]int {
	g := make([][]int, n)
	for r := 0; r < n; r++ {
		g[r] = make([]int, n)
		for c := 0; c < n; c++ {
			g[r][c] = r*n + c
		}
	}
	return g
}

// BuildNeighborTable 由 N×N 標籤網格建立鄰接表。
//
// 合約：grid 為方陣，標籤互異且恰好是 0..N*N-1（GridLabels 產出的形式）。
// 網格假定良構，本函數不檢查錯誤輸入。
func BuildNeighborTable(grid [][]int) *NeighborTable {
	n := len(grid)
	nt := &NeighborTable{
		neighbors: make([][NumDirections]int, n*n),
		size:      n,
	}
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			label := grid[r][c]
			nb := &nt.neighbors[label]

			// 缺少的方向自指
			nb[Up] = label
			nb[Right] = label
			nb[Down] = label
			nb[Left] = label

			if r > 0 {
				nb[Up] = grid[r-1][c]
			}
			if c < n-1 {
				nb[Right] = grid[r][c+1]
			}
			if r < n-1 {
				nb[Down] = grid[r+1][c]
			}
			if c > 0 {
				nb[Left] = grid[r][c-1]
			}
		}
	}
	return nt
}

// Size 回傳網格邊長 N。
func (nt *NeighborTable) Size() int { return nt.size }

// Cells 回傳 cell 總數 N*N。
func (nt *NeighborTable) Cells() int { return len(nt.neighbors) }

// At 回傳 label 在指定方向上的鄰居。
func (nt *NeighborTable) At(label int, d Direction) int {
	return nt.neighbors[label][d]
}
