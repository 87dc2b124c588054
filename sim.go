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

package samplab

import (
	"crypto/rand"
	"io"
	"math"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/zintix-labs/samplab/errs"
	"github.com/zintix-labs/samplab/recorder"
	"github.com/zintix-labs/samplab/sdk/core"
	"github.com/zintix-labs/samplab/sdk/sampler"
	"github.com/zintix-labs/samplab/spec"
	"github.com/zintix-labs/samplab/stats"
)

const capPrepare int = 100

// Simulator 用於大量取樣，可建立多台實驗並平行紀錄統計。
type Simulator struct {
	ExperimentName string                  // 實驗名稱
	ExperimentId   spec.EID                // 實驗編號
	es             *spec.ExperimentSetting // 方便重用建立 Recorder
	methods        *sampler.MethodRegistry // 方法註冊表
	cf             core.PRNGFactory        // 亂數生成器
	initSeed       int64                   // 初始下的種子
	seedmaker      *seedMaker              // 種子生成器
	eBuf           []*Experiment           // 併發執行實驗實例
	rBuf           []*recorder.RunRecorder // 併發實驗紀錄員
	sBuf           []*stats.ScoreReport    // 併發統計結果報表(僅 SimRuns 需要)
}

func newSimulator(es *spec.ExperimentSetting, reg *sampler.MethodRegistry, cf core.PRNGFactory) (*Simulator, error) {
	seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(es, reg, cf, seed.Int64())
}

func newSimulatorWithSeed(es *spec.ExperimentSetting, reg *sampler.MethodRegistry, cf core.PRNGFactory, seed int64) (*Simulator, error) {
	s := &Simulator{
		ExperimentName: es.ExperimentName,
		ExperimentId:   spec.EID(es.ExperimentID),
		es:             es,
		methods:        reg,
		cf:             cf,
		initSeed:       seed,
		seedmaker:      newSeedMaker(seed),
		eBuf:           make([]*Experiment, 1, capPrepare),
		rBuf:           make([]*recorder.RunRecorder, 0, capPrepare),
		sBuf:           make([]*stats.ScoreReport, 0, capPrepare),
	}
	e, err := newExperimentWithSeed(es, reg, cf, s.initSeed)
	if err != nil {
		return nil, err
	}
	s.eBuf[0] = e
	return s, nil
}

// Sim 單線模擬器：以一台實驗連續跑指定 round 並回傳統計結果與用時
func (s *Simulator) Sim(round int, showpb bool) (*stats.ScoreReport, time.Duration, error) {
	defer s.reset()
	if round < 1 {
		return nil, 0, errs.NewWarn("round must > 0")
	}
	if len(s.rBuf) == 0 {
		r, err := s.newRecorder()
		if err != nil {
			return nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}
	r := s.rBuf[0]
	e := s.eBuf[0]

	bar := pb.StartNew(round)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	for i := 0; i < round; i++ {
		r.Record(e.StepInternal())
		bar.Increment()
	}
	used := time.Since(bar.StartTime())
	bar.Finish()
	result := r.Done()

	return result, used, nil
}

// SimMP 平行執行多個實驗，總計 rounds*mp 輪，合併統計結果後 回傳統計結果與用時
func (s *Simulator) SimMP(rounds int, mp int, showpb bool) (*stats.ScoreReport, time.Duration, error) {
	defer s.reset()
	if mp <= 0 {
		return nil, 0, errs.NewWarn("workers must > 0")
	}
	if rounds < 1 {
		return nil, 0, errs.NewWarn("round must > 0")
	}
	for len(s.eBuf) < mp {
		e, err := newExperimentWithSeed(s.es, s.methods, s.cf, s.seedmaker.next())
		if err != nil {
			return nil, 0, err
		}
		s.eBuf = append(s.eBuf, e)
	}

	for len(s.rBuf) < mp {
		r, err := s.newRecorder()
		if err != nil {
			return nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}

	wg := new(sync.WaitGroup)
	wg.Add(mp)
	bar := pb.StartNew(rounds * mp)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	for i := 0; i < mp; i++ {
		go func(i int) {
			defer wg.Done()
			e := s.eBuf[i]
			st := s.rBuf[i]
			for r := 0; r < rounds; r++ {
				st.Record(e.StepInternal())
				bar.Increment()
			}
		}(i)
	}
	wg.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()

	st, err := recorder.MergeRunRecorder(s.rBuf)
	if err != nil {
		return nil, 0, err
	}
	result := st.Done()

	return result, used, nil
}

// SimRuns 模擬多次獨立重複實驗（每次 rounds 輪、獨立紀錄），
// 並產出合併報表與跨輪收斂評估。
//
// 適合用來回答「跑 N 輪到底收斂得多穩」：同一設定重複 runs 次，
// 看 TV distance 在重複間的分布，而不是只看單次的點估計。
func (s *Simulator) SimRuns(mp int, runs int, rounds int, showpb bool) (*stats.ScoreReport, *stats.EstimatorRuns, time.Duration, error) {
	defer s.reset()
	if runs < 1 || rounds < 1 || mp < 1 {
		return nil, nil, 0, errs.NewWarn("invalid param")
	}

	// 	準備並行實驗
	for len(s.eBuf) < mp {
		e, err := newExperimentWithSeed(s.es, s.methods, s.cf, s.seedmaker.next())
		if err != nil {
			return nil, nil, 0, err
		}
		s.eBuf = append(s.eBuf, e)
	}

	// 準備每次重複的紀錄員
	s.sBuf = make([]*stats.ScoreReport, runs)
	for len(s.rBuf) < runs {
		r, err := s.newRecorder()
		if err != nil {
			return nil, nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}
	// 作一個2048大小的緩衝channel 使重複實驗依序處理
	jobs := make(chan *recorder.RunRecorder, 2048)

	wg := new(sync.WaitGroup)
	wg.Add(mp) // 併發實驗

	bar := pb.StartNew(runs)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	// 併發執行
	for w := 0; w < mp; w++ {
		go simRun(wg, s.eBuf[w], jobs, rounds, bar)
	}

	// 塞進重複實驗，開始模擬
	for _, j := range s.rBuf {
		jobs <- j
	}
	close(jobs) // 送完關閉通道 通知所有 worker 不會再有新資料
	wg.Wait()   // 等待 worker 都執行完任務
	used := time.Since(bar.StartTime())
	bar.Finish()

	// 合併基準報表
	record, err := recorder.MergeRunRecorder(s.rBuf)
	if err != nil {
		return nil, nil, 0, err
	}
	st := record.Done()

	// 跨輪收斂評估
	for i, r := range s.rBuf {
		s.sBuf[i] = r.Done()
	}
	est := stats.EstimatorRunsExp(s.sBuf)
	return st, est, used, nil
}

func simRun(wg *sync.WaitGroup, e *Experiment, jobs chan *recorder.RunRecorder, rounds int, bar *pb.ProgressBar) {
	defer wg.Done()
	for j := range jobs { // j := <- jobs
		for range rounds {
			j.Record(e.StepInternal())
		}
		bar.Increment()
	}
}

func (s *Simulator) newRecorder() (*recorder.RunRecorder, error) {
	e := s.eBuf[0]
	return recorder.NewRunRecorder(s.ExperimentName, s.ExperimentId, s.es.Method, e.Labels(), e.Target())
}

func (s *Simulator) reset() {
	s.rBuf = s.rBuf[:0]
	s.sBuf = s.sBuf[:0]
}

const mask63 = uint64(1<<63) - 1

type seedMaker struct {
	state atomic.Uint64 // always in [0, 2^63)
}

func newSeedMaker(seed int64) *seedMaker {
	s := &seedMaker{}
	s.state.Store(uint64(seed) & mask63)
	return s
}

// state 走全週期（不重複），再用可逆 mix63 打散
//
// 注意：此方法可能在併發環境下被多 goroutines 同時呼叫（例如 SimMP / SimRuns）。
// 因此 state 的推進必須是原子的：
//   - 使用 CAS（Compare-And-Swap）迴圈確保每次呼叫都會取得唯一的下一個 state。
//   - 回傳值使用推進後的 state 經 mix63 打散後的結果。
func (s *seedMaker) next() int64 {
	for {
		old := s.state.Load()                                            // always masked
		next := (old*6364136223846793005 + 1442695040888963407) & mask63 // full-period LCG mod 2^63
		if s.state.CompareAndSwap(old, next) {
			return int64(mix63(next)) // 一定非負
		}
	}
}

// mix63：只用「可逆」的 bit 操作 + 乘奇數（mod 2^63）
func mix63(x uint64) uint64 {
	x &= mask63
	x ^= x >> 30
	x = (x * 0xBF58476D1CE4E5B9) & mask63 // 乘奇數 ⇒ mod 2^63 可逆
	x ^= x >> 27
	x = (x * 0x94D049BB133111EB) & mask63
	x ^= x >> 31
	return x & mask63
}
