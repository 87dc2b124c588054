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

// Package demo 提供一組開箱即用的示範實驗：
// 七個內建取樣方法各一份設定檔（go:embed 編進 binary）。
package demo

import (
	"github.com/zintix-labs/samplab"
	"github.com/zintix-labs/samplab/catalog"
	"github.com/zintix-labs/samplab/demo/demo_configs"
	"github.com/zintix-labs/samplab/errs"
	"github.com/zintix-labs/samplab/sdk/core"
	"github.com/zintix-labs/samplab/sdk/sampler"
	"github.com/zintix-labs/samplab/server/logger"
	"github.com/zintix-labs/samplab/server/svrcfg"
)

func New() (*catalog.Catalog, error) {
	return catalog.New(demo_configs.FS)
}

func NewServerConfig() (*svrcfg.SvrCfg, error) {
	lab, err := samplab.NewAuto(
		core.Default(),
		samplab.Configs(demo_configs.FS),
		samplab.Methods(sampler.BuiltinMethods()),
	)
	if err != nil {
		return nil, errs.NewFatal("new samplab failed:" + err.Error())
	}
	scfg := &svrcfg.SvrCfg{
		Log:         logger.NewDefaultAsyncLogger(logger.ModeDev),
		ExpPoolSize: 1,
		Samplab:     lab,
	}
	return scfg, nil
}

func NewSampLab() (*samplab.Lab, error) {
	return samplab.NewAuto(
		core.Default(),
		samplab.Configs(demo_configs.FS),
		samplab.Methods(sampler.BuiltinMethods()),
	)
}
