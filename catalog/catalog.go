package catalog

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zintix-labs/scalelab/errs"
	"github.com/zintix-labs/scalelab/spec"
)

var (
	ErrDupID   = errs.NewFatal("duplicate subject id")
	ErrDupName = errs.NewFatal("duplicate subject name")
)

// ExternalSuffix : 與既有科目同名且雙方都有資料時，後載入者改名保留。
const ExternalSuffix = " (External Exam)"

// Entry 為目錄中的一筆科目。
type Entry struct {
	SID        spec.SID
	Code       string
	Name       string
	Kind       spec.Kind
	ConfigName string
}

// Summary 供對外列出科目的摘要。
type Summary struct {
	SID  spec.SID  `json:"sid"`
	Code string    `json:"code"`
	Name string    `json:"name"`
	Kind spec.Kind `json:"kind"`
}

// Catalog 為科目單一事實來源（SSOT）：
// 由一或多個設定 FS 掃描載入，凍結後不可再註冊。
type Catalog struct {
	byID    map[spec.SID]Entry
	byName  map[string]Entry
	ids     []spec.SID // 用來穩定排序
	records map[spec.SID]spec.SubjectRecord
	notes   []string // 載入時的降級/去重紀錄，供稽核輸出

	config *multiFS
	frozen bool
}

func New(cfg ...fs.FS) (*Catalog, error) {
	multFS, err := newMultiFS(cfg...)
	if err != nil {
		return nil, errs.Wrap(err, "can not create catalog")
	}
	return &Catalog{
		byID:    map[spec.SID]Entry{},
		byName:  map[string]Entry{},
		ids:     make([]spec.SID, 0, 128),
		records: map[spec.SID]spec.SubjectRecord{},
		config:  multFS,
		frozen:  false,
	}, nil
}

// RegisterAll 掃描所有設定 FS，解析科目檔並逐筆註冊。
//
// 同名科目的處理沿用既定政策：
//   - 後載入者無資料（nodata）→ 整筆跳過；
//   - 雙方都有資料 → 後載入者改名加上 ExternalSuffix 保留。
//
// 結構性錯誤（重複 SID、壞檔）為 Fatal；資料不完整的科目
// 已在 spec 層降級為 nodata，不會使載入失敗。
func (c *Catalog) RegisterAll() error {
	if c.frozen {
		return errs.NewWarn("can not register when catalog already frozen")
	}

	names := make([]string, 0, len(c.config.index))
	for name := range c.config.index {
		names = append(names, name)
	}
	sort.Strings(names) // 掃描順序必須穩定，去重政策才可重現

	for _, name := range names {
		sf, err := c.parseFile(name)
		if err != nil {
			return err
		}
		for _, d := range sf.Degraded {
			c.notes = append(c.notes, d)
		}
		for _, rec := range sf.Subjects {
			if err := c.registerRecord(rec, name); err != nil {
				return err
			}
		}
	}
	return nil
}

// registerRecord 套用去重政策後註冊一筆科目。
func (c *Catalog) registerRecord(rec spec.SubjectRecord, configName string) error {
	key := nameKey(rec.Name)
	if prev, ok := c.byName[key]; ok {
		if rec.Kind == spec.KindNoData {
			c.notes = append(c.notes, fmt.Sprintf(
				"%s: no-data duplicate of %q skipped", rec.Name, prev.Name))
			return nil
		}
		// 雙方都有資料：改名保留
		renamed := rec.Name + ExternalSuffix
		c.notes = append(c.notes, fmt.Sprintf(
			"%s: duplicate with data kept as %q", rec.Name, renamed))
		rec.Name = renamed
		key = nameKey(renamed)
		if _, ok := c.byName[key]; ok {
			return ErrDupName
		}
	}

	if _, ok := c.byID[rec.SID]; ok {
		return ErrDupID
	}

	e := Entry{
		SID:        rec.SID,
		Code:       rec.Code,
		Name:       rec.Name,
		Kind:       rec.Kind,
		ConfigName: configName,
	}
	c.byID[e.SID] = e
	c.byName[key] = e
	c.records[e.SID] = rec
	c.ids = append(c.ids, e.SID)
	sort.Slice(c.ids, func(i, j int) bool { return c.ids[i] < c.ids[j] })
	return nil
}

func (c *Catalog) GetByID(id spec.SID) (Entry, bool) {
	m, ok := c.byID[id]
	return m, ok
}

func (c *Catalog) GetByName(name string) (Entry, bool) {
	m, ok := c.byName[nameKey(name)]
	return m, ok
}

// Record 回傳科目的原始設定紀錄（載入時已解析與正規化）。
func (c *Catalog) Record(id spec.SID) (spec.SubjectRecord, bool) {
	r, ok := c.records[id]
	return r, ok
}

func (c *Catalog) IDs() []spec.SID {
	if len(c.ids) == 0 {
		return nil
	}
	return append([]spec.SID(nil), c.ids...)
}

func (c *Catalog) All() []Entry {
	order := c.IDs()
	m := make([]Entry, 0, len(c.ids))
	for _, id := range order {
		if meta, ok := c.GetByID(id); ok {
			m = append(m, meta)
		}
	}
	return m
}

// Summaries 依 SID 排序輸出摘要。
func (c *Catalog) Summaries() []Summary {
	all := c.All()
	out := make([]Summary, 0, len(all))
	for _, e := range all {
		out = append(out, Summary{SID: e.SID, Code: e.Code, Name: e.Name, Kind: e.Kind})
	}
	return out
}

// Notes 回傳載入時的降級與去重紀錄。
func (c *Catalog) Notes() []string {
	return append([]string(nil), c.notes...)
}

func (c *Catalog) Cfg() *multiFS {
	return c.config
}

func (c *Catalog) Freeze() {
	c.frozen = true
}

func (c *Catalog) IsFrozen() bool {
	return c.frozen
}

// parseFile 讀取並解析一份科目設定檔。
func (c *Catalog) parseFile(name string) (*spec.SubjectFile, error) {
	src, ok := c.config.GetFS(name)
	if !ok {
		return nil, errs.NewFatal(fmt.Sprintf("config file not found: %s", name))
	}
	raw, err := fs.ReadFile(src, name)
	if err != nil {
		return nil, errs.Wrap(err, "catalog parse file error")
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return spec.GetSubjectFileByYAML(raw)
	default:
		return nil, errs.NewFatal(fmt.Sprintf("unsupported config format: %q", name))
	}
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type multiFS struct {
	src   []fs.FS
	index map[string]int // name -> src index
}

func newMultiFS(src ...fs.FS) (*multiFS, error) {
	if len(src) == 0 {
		return nil, errs.NewFatal("no fs provided")
	}
	for i, s := range src {
		if s == nil {
			return nil, errs.NewFatal(fmt.Sprintf("fs[%d] is nil", i))
		}
	}

	m := &multiFS{
		src:   src,
		index: make(map[string]int, 64),
	}

	// eager validate: build index and detect duplicates
	for i := 0; i < len(src); i++ {
		err := fs.WalkDir(src[i], ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				// Subject config FS is intentionally required to be a *flat* directory.
				// Only the root "." is allowed. Any subdirectory presence is a contract violation,
				// even if it contains no yaml files.
				if path == "." {
					return nil
				}
				return errs.NewFatal(fmt.Sprintf("config FS must be flat (no subdirectories): %q", path))
			}

			if strings.Contains(path, "/") {
				return errs.NewFatal(fmt.Sprintf("config FS must be flat (no subdirectories): %q", path))
			}

			// Only index yaml configs; ignore any other assets that may exist in the FS.
			lower := strings.ToLower(path)
			if !(strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")) {
				return nil
			}

			name := path // flat FS guarantees path is a basename

			if prev, ok := m.index[name]; ok {
				// duplicate across FS: fail fast
				return errs.NewFatal(fmt.Sprintf("duplicate config %q in fs[%d] and fs[%d]", name, prev, i))
			}
			m.index[name] = i
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *multiFS) GetFS(name string) (fs.FS, bool) {
	if id, ok := m.index[name]; ok {
		return m.src[id], ok
	}
	return nil, false
}

// Sources exposes config FS sources for read-only iteration.
func (m *multiFS) Sources() []fs.FS {
	if m == nil || len(m.src) == 0 {
		return nil
	}
	return append([]fs.FS(nil), m.src...)
}
