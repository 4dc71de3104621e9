package spec

import (
	"bytes"

	"github.com/zintix-labs/scalelab/errs"
	"gopkg.in/yaml.v3"
)

// DecodeData 會把 sr.Data 由 map[string]any 轉成 kind 對應的型別 T。
// T 應該是 struct，例如 PercentileData。
func DecodeData[T any](sr *SubjectRecord) (*T, error) {
	// 先把 map[string]any -> YAML bytes
	bs, err := yaml.Marshal(sr.Data)
	if err != nil {
		return nil, errs.Wrap(err, "spec.data_decoder : marshal failed")
	}
	// 再把 YAML bytes -> kind 對應的型別
	out := new(T)
	dec := yaml.NewDecoder(bytes.NewReader(bs))
	dec.KnownFields(true) // 嚴格檢查：多寫/拼錯欄位就報錯
	if err = dec.Decode(out); err != nil {
		return nil, errs.Wrap(err, "spec.data_decoder : decode failed")
	}
	return out, nil
}
