package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"math"
	"math/big"
	"strconv"

	"github.com/zintix-labs/samplab"
	"github.com/zintix-labs/samplab/demo/demo_configs"
	"github.com/zintix-labs/samplab/sdk/core"
	"github.com/zintix-labs/samplab/sdk/sampler"
	"github.com/zintix-labs/samplab/spec"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var cfg *config = new(config)

type config struct {
	name      string
	id        spec.EID
	worker    int
	runs      int
	rounds    int
	seed      int64
	pprofmode string
}

type eidFlag struct{ p *spec.EID }

func (f eidFlag) String() string { return fmt.Sprint(uint(*f.p)) }
func (f eidFlag) Set(s string) error {
	u, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return err
	}
	*f.p = spec.EID(uint(u))
	return nil
}

func bindVar() {
	// 綁定 Flag 到本地變數的指標 (&)
	flag.Var(eidFlag{&cfg.id}, "exp", "target experiment id")
	flag.IntVar(&cfg.worker, "worker", 1, "number of workers")
	flag.IntVar(&cfg.runs, "runs", 1, "number of independent replications")
	flag.IntVar(&cfg.rounds, "rounds", 10000000, "rounds per replication")
	flag.Int64Var(&cfg.seed, "seed", -1, "int64 seed for random number generator")
	flag.StringVar(&cfg.pprofmode, "p", "", "pprof: '', cpu, heap, allocs")

	flag.Parse()

	// given seed illeagel -> default seed
	if cfg.seed < 1 {
		seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			log.Fatal(err)
		}
		cfg.seed = seed.Int64()
	}
}

// 這裡解析並分支要執行的模擬器
func executeSimulator() {
	cfg.valid() // 基本檢查

	lab, err := samplab.NewAuto(
		core.Default(),
		samplab.Configs(demo_configs.FS),
		samplab.Methods(sampler.BuiltinMethods()),
	)
	if err != nil {
		log.Fatal(err)
	}
	s, err := lab.NewSimulatorWithSeed(cfg.id, cfg.seed)
	if err != nil {
		log.Fatal(err)
	}
	ent, _ := lab.EntryById(cfg.id)
	cfg.name = ent.Name
	// 至此確保可執行
	green := "\033[1;32m"
	reset := "\033[0m"
	p := message.NewPrinter(language.English)

	if cfg.runs == 1 { // 單一長跑
		if cfg.worker == 1 { // 單線程
			p.Printf("%s[EXP:%s] [ROUNDS:%d]%s\n", green, cfg.name, cfg.rounds, reset)
			st, used, _ := s.Sim(cfg.rounds, true)
			st.StdOut(used)
		} else {
			p.Printf("%s[WORKERS:%d] [EXP:%s] [ROUNDS:%d]%s\n", green, cfg.worker, cfg.name, cfg.worker*cfg.rounds, reset)
			st, used, _ := s.SimMP(cfg.rounds, cfg.worker, true) // 併發
			st.StdOut(used)
		}
	} else { // 多次獨立重複，觀察run-to-run散佈
		p.Printf("%s[WORKERS:%d] [EXP:%s] [RUNS:%d ROUNDS:%d]%s\n", green, cfg.worker, cfg.name, cfg.runs, cfg.rounds, reset)
		st, est, used, _ := s.SimRuns(cfg.worker, cfg.runs, cfg.rounds, true)
		st.StdOut(used)
		est.Out()
	}
}

func (cfg *config) valid() {
	p := message.NewPrinter(language.English)

	// 工作協程檢查(併發數)
	if cfg.worker < 1 {
		log.Fatal("value err : workers must > 0")
	}

	// 重複次數檢查
	if cfg.runs < 1 {
		log.Fatal("value err : runs must > 0")
	}
	// 重複次數太多 resize
	if cfg.runs > 100000 {
		p.Printf("too much runs: %d resized to 100k runs\n", cfg.runs)
		cfg.runs = 100000
	}

	// 輪數檢查
	if cfg.rounds < 1 {
		log.Fatal("value err : rounds must > 0")
	}

	// 多次重複的時候，每次重複不超過1,000,000輪
	// run-to-run 散佈要看的是中小樣本的波動；超長輪數請直接用單一長跑
	if cfg.runs > 1 && cfg.rounds > 1000000 {
		p.Printf("too much rounds for each run : %d resized to 1m rounds per run\n", cfg.rounds)
		cfg.rounds = 1000000
	}
}
