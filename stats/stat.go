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
	"io"
	"math"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/zintix-labs/samplab/spec"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat/distuv"
)

var lang language.Tag = language.English

// 信賴區間
type CI struct {
	Lo float64 `json:"Lo"`
	Hi float64 `json:"Hi"`
}

// ScoreReport 實驗統計報告
type ScoreReport struct {
	Summary *SummaryReport `json:"Summary"`
	Dist    *DistReport    `json:"Dist"`
	isDone  bool
}

type SummaryReport struct {
	ExperimentName string         `json:"ExperimentName"`
	ExperimentId   spec.EID       `json:"ExperimentId"`
	Method         spec.MethodKey `json:"Method"`
	Rounds         int            `json:"Rounds"`
	Scored         int            `json:"Scored"`
	AcceptRate     float64        `json:"AcceptRate"`
	AcceptRateCI   CI             `json:"AcceptRateCI"`
	TV             float64        `json:"TV"`
	MaxAbsErr      float64        `json:"MaxAbsErr"`
	ChiSquare      float64        `json:"ChiSquare"`
	ChiDof         int            `json:"ChiDof"`
	ChiPValue      float64        `json:"ChiPValue"`
}

// DistReport 活動落點統計
//
// 紀錄時只累加整數計數，避免熱路徑的浮點轉型成本。
// Freq/FreqCI 由 Done() 一次性計算填入。
type DistReport struct {
	Labels  []string  `json:"Labels"`
	Target  []float64 `json:"Target"`
	Collect []int     `json:"Collect"`
	Freq    []float64 `json:"Freq"`
	FreqCI  []CI      `json:"FreqCI"`
}

// ============================================================
// ** 公開方法 **
// ============================================================

// Done 將累積計數轉換為最終統計結果並鎖定 isDone 標記。
//
// 頻率一律以計分總數 (Scored) 正規化：
// 漫步/塔/alias 每輪計分，Scored == Rounds；拒絕取樣只計接受的抽取，
// Scored == 接受數，被拒絕的輪不入分母。
func (s *ScoreReport) Done() {
	if s.isDone {
		return
	}

	s.Summary.AcceptRate = s.acceptRate()
	_, s.Summary.AcceptRateCI = proportionCICP(s.Summary.Scored, s.Summary.Rounds, 0.95)

	scored := s.Summary.Scored
	n := len(s.Dist.Collect)
	s.Dist.Freq = make([]float64, n)
	s.Dist.FreqCI = make([]CI, n)
	for i, c := range s.Dist.Collect {
		if scored > 0 {
			s.Dist.Freq[i] = float64(c) / float64(scored)
		}
		_, s.Dist.FreqCI[i] = proportionCICP(c, scored, 0.95)
	}

	s.Summary.TV = s.tv()
	s.Summary.MaxAbsErr = s.maxAbsErr()
	s.Summary.ChiSquare, s.Summary.ChiDof, s.Summary.ChiPValue = s.chiSquare()

	s.isDone = true
}

func (s *ScoreReport) WriteWith(w io.Writer, rep ScoreReportRender) error {
	s.Done()
	return rep.Write(w, s)
}

func (s *ScoreReport) StdOut(ut time.Duration) {
	s.Done()
	formatDuration(ut, s.Summary.Rounds)
	sk, sm := s.fmtBasic()
	str := fmtTable(s.Summary.ExperimentName, sk, sm)
	fmt.Println(str)
	fmt.Println(s.fmtDist())
}

// ============================================================
// ** 內部方法 **
// ============================================================

func (s *ScoreReport) acceptRate() float64 {
	if s.Summary.Rounds == 0 {
		return 0
	}
	return float64(s.Summary.Scored) / float64(s.Summary.Rounds)
}

// tv 回傳經驗分佈與目標分佈的 total variation distance：
// ½ Σ |freq[i] - target[i]|，值域 [0,1]，0 = 完全貼合。
func (s *ScoreReport) tv() float64 {
	if s.Summary.Scored == 0 {
		return 1
	}
	d := 0.0
	for i, target := range s.Dist.Target {
		d += math.Abs(s.Dist.Freq[i] - target)
	}
	return d / 2
}

func (s *ScoreReport) maxAbsErr() float64 {
	m := 0.0
	for i, target := range s.Dist.Target {
		if d := math.Abs(s.Dist.Freq[i] - target); d > m {
			m = d
		}
	}
	return m
}

// chiSquare 對計分落點做 Pearson 擬合度檢定。
// 自由度 = 非零目標機率的活動數 - 1；零目標活動不入統計量。
func (s *ScoreReport) chiSquare() (stat float64, dof int, pValue float64) {
	scored := float64(s.Summary.Scored)
	if scored == 0 {
		return 0, 0, 1
	}

	k := 0
	for i, target := range s.Dist.Target {
		if target <= 0 {
			continue
		}
		k++
		expected := target * scored
		diff := float64(s.Dist.Collect[i]) - expected
		stat += diff * diff / expected
	}

	dof = k - 1
	if dof < 1 {
		return stat, dof, 1
	}
	chi := distuv.ChiSquared{K: float64(dof)}
	return stat, dof, chi.Survival(stat)
}

func formatDuration(d time.Duration, rounds int) {
	p := message.NewPrinter(lang)
	if d < 0 {
		d = -d
	}
	sec := d.Seconds()
	if sec <= 0 {
		sec = 1e-9
	}
	sps := int(float64(rounds) / sec)
	if sec < 60.0 {
		p.Printf("used: %.2f seconds\nsps : %d steps/sec\n", sec, sps)
		return
	}
	s := int(d.Seconds()) % 60
	m := int(d.Minutes()) % 60
	h := int(d.Hours())
	if h == 0 {
		s = s % 60
		p.Printf("used: %dm %ds\nsps : %d steps/sec\n", m, s, sps)
		return
	}
	p.Printf("used: %dh:%dm:%ds\nsps : %d steps/sec\n", h, m, s, sps)
}

// StdOut

func (s *ScoreReport) fmtBasic() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	basic := map[string]string{
		"Experiment":    p.Sprintf("%s", s.Summary.ExperimentName),
		"Experiment ID": fmt.Sprintf("%d", s.Summary.ExperimentId),
		"Method":        string(s.Summary.Method),
		"Total Rounds":  p.Sprintf("%d", s.Summary.Rounds),
		"Scored":        p.Sprintf("%d", s.Summary.Scored),
		"Accept Rate":   p.Sprintf("%.2f %%", 100.0*s.Summary.AcceptRate),
		"Accept 95% CI": p.Sprintf("[%.2f%%,%.2f%%]", 100.0*s.Summary.AcceptRateCI.Lo, 100.0*s.Summary.AcceptRateCI.Hi),
		"TV Distance":   p.Sprintf("%.5f", s.Summary.TV),
		"Max Abs Err":   p.Sprintf("%.5f", s.Summary.MaxAbsErr),
		"Chi-Square":    p.Sprintf("%.3f (dof %d)", s.Summary.ChiSquare, s.Summary.ChiDof),
		"Chi p-value":   p.Sprintf("%.4f", s.Summary.ChiPValue),
	}
	keys := []string{"Experiment", "Experiment ID", "Method", "Total Rounds", "Scored", "Accept Rate", "Accept 95% CI", "TV Distance", "Max Abs Err", "Chi-Square", "Chi p-value"}
	return keys, basic
}

func (s *ScoreReport) fmtDist() string {
	p := message.NewPrinter(lang)
	keys := make([]string, len(s.Dist.Labels))
	msg := make(map[string]string, len(s.Dist.Labels))
	for i, label := range s.Dist.Labels {
		keys[i] = label
		msg[label] = p.Sprintf("%.4f (target %.4f) [%.4f,%.4f]",
			s.Dist.Freq[i], s.Dist.Target[i], s.Dist.FreqCI[i].Lo, s.Dist.FreqCI[i].Hi)
	}
	return fmtTable("Distribution", keys, msg)
}

func fmtTable(title string, keys []string, msg map[string]string) string {
	p := message.NewPrinter(lang)
	maxKeyLen := 0
	maxValLen := 0
	for k, m := range msg {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
		if w := runewidth.StringWidth(m); w > maxValLen {
			maxValLen = w
		}
	}
	maxKeyLen += 2
	maxValLen += 2

	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	top := "+" + strings.Repeat("-", maxKeyLen+1+maxValLen) + "+\n"

	totalInner := maxKeyLen + maxValLen + 1
	titleW := runewidth.StringWidth(title)

	left := (totalInner - titleW) / 2
	right := totalInner - titleW - left

	fmtStr := top
	fmtStr += p.Sprintf("|%s%s%s|\n", blank(left), title, blank(right))
	fmtStr += divider
	for _, k := range keys {
		fmtStr += p.Sprintf("| %s%s | %s%s |\n", k, blank(maxKeyLen-2-runewidth.StringWidth(k)), msg[k], blank(maxValLen-2-runewidth.StringWidth(msg[k])))
	}
	fmtStr += divider

	return fmtStr
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}
