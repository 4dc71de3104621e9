package subject_configs

import (
	"embed"
)

// FS provides embedded subject config YAMLs for the bundled reference year.
//
// 檔名決定載入順序（字典序）：general 必須先於 senior_external，
// 同名科目的去重政策才會以校內量測為準。
//
//go:embed *.yaml
var FS embed.FS
