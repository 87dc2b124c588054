package v1

import (
	"encoding/json"
	"net/http"

	"github.com/zintix-labs/samplab/recorder"
	"github.com/zintix-labs/samplab/spec"
)

// DistStat 是 /v1/stat 的輸入 payload：
// 由外部系統帶入「已觀測」的計數分佈，伺服器只負責算統計報告。
type DistStat struct {
	ExperimentName string    `json:"experiment"`
	Method         string    `json:"method"`
	Labels         []string  `json:"labels"`
	Target         []float64 `json:"target"`
	Collect        []int     `json:"collect"`
	// Rounds 是總試行輪數（含未計分輪）。
	// 缺省或小於計分總數時，以計分總數視之（等同全計分）。
	Rounds int `json:"rounds"`
}

func Stat(w http.ResponseWriter, r *http.Request) {
	// Post方法限定
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// 嘗試解析
	dst := new(DistStat)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// 對齊欄位
	n := min(len(dst.Labels), len(dst.Target), len(dst.Collect))
	if n < 1 {
		http.Error(w, "labels/target/collect must be non-empty", http.StatusBadRequest)
		return
	}
	labels := dst.Labels[:n]
	target := dst.Target[:n]
	collect := dst.Collect[:n]

	scored := 0
	for _, c := range collect {
		if c < 0 {
			http.Error(w, "collect must be non-negative", http.StatusBadRequest)
			return
		}
		scored += c
	}
	if scored < 1 {
		http.Error(w, "collect sum must be > 0", http.StatusBadRequest)
		return
	}
	rounds := max(dst.Rounds, scored)

	// 繞過Record迴圈，直接回填已觀測的計數
	rec, err := recorder.NewRunRecorder(dst.ExperimentName, 0, spec.MethodKey(dst.Method), labels, target)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	copy(rec.Collect, collect)
	rec.Scored = scored
	rec.Rounds = rounds

	st := rec.Done()
	if err := json.NewEncoder(w).Encode(st); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
}
