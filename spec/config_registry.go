package spec

import (
	"encoding/json"

	"github.com/zintix-labs/samplab/errs"
	"gopkg.in/yaml.v3"
)

// GetExperimentSettingByYAML
// 會讀取 YAML 設定、補全預設值並執行基本檢查後回傳。
func GetExperimentSettingByYAML(data []byte) (*ExperimentSetting, error) {
	es := &ExperimentSetting{}
	if err := yaml.Unmarshal(data, es); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshall yaml")
	}

	if err := es.init(); err != nil {
		return nil, errs.Wrap(err, "experiment setting initialized err")
	}

	return es, nil
}

// GetExperimentSettingByJSON
// 會讀取 JSON 設定、補全預設值並執行基本檢查後回傳。
func GetExperimentSettingByJSON(data []byte) (*ExperimentSetting, error) {
	es := &ExperimentSetting{}
	if err := json.Unmarshal(data, es); err != nil {
		return nil, errs.Wrap(err, "can not unmarshall json byte")
	}

	if err := es.init(); err != nil {
		return nil, errs.Wrap(err, "experiment setting initialized err")
	}

	return es, nil
}
