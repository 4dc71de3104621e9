package spec

import (
	"encoding/json"

	"github.com/zintix-labs/scalelab/errs"
	"gopkg.in/yaml.v3"
)

// GetScaleSettingByYAML
// 會讀取 YAML 設定、補上預設值並執行基本檢查後回傳。
func GetScaleSettingByYAML(data []byte) (*ScaleSetting, error) {
	ss := &ScaleSetting{}
	if err := yaml.Unmarshal(data, ss); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshall yaml")
	}

	// 設定檔初始化
	if err := ss.init(); err != nil {
		return nil, errs.Wrap(err, "scale setting initialized err")
	}

	return ss, nil
}

// GetScaleSettingByJSON
// 會讀取 Json 設定、補上預設值並執行基本檢查後回傳
func GetScaleSettingByJSON(data []byte) (*ScaleSetting, error) {
	ss := &ScaleSetting{}
	if err := json.Unmarshal(data, ss); err != nil {
		return nil, errs.Wrap(err, "can not unmarshall json byte")
	}

	if err := ss.init(); err != nil {
		return nil, errs.Wrap(err, "scale setting initialized err")
	}

	return ss, nil
}

// GetSubjectFileByYAML
// 讀取一份科目設定檔（一個檔案可含多筆科目紀錄）。
// 資料不完整的 general 科目會被降級為 nodata 並記錄在 Degraded，
// 不會使整個檔案載入失敗。
func GetSubjectFileByYAML(data []byte) (*SubjectFile, error) {
	sf := &SubjectFile{}
	if err := yaml.Unmarshal(data, sf); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshall subject yaml")
	}

	if err := sf.init(); err != nil {
		return nil, errs.Wrap(err, "subject file initialized err")
	}

	return sf, nil
}

// GetBandSettingByYAML 讀取人數分布設定（細分帶 + 區間列 + 總數）。
func GetBandSettingByYAML(data []byte) (*BandSetting, error) {
	bs := &BandSetting{}
	if err := yaml.Unmarshal(data, bs); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshall band yaml")
	}

	if err := bs.init(); err != nil {
		return nil, errs.Wrap(err, "band setting initialized err")
	}

	return bs, nil
}
