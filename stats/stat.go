package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"gonum.org/v1/gonum/stat"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var lang language.Tag = language.English

// 信賴區間
type CI struct {
	Lo float64 `json:"Lo"`
	Hi float64 `json:"Hi"`
}

// BacktestRow 為單一門檻帶的回測結果：
// 以歷史門檻值反查本次查表，Shift = NewRank - Rank。
type BacktestRow struct {
	Rank        float64 `json:"Rank"`
	ArchivedAgg float64 `json:"ArchivedAgg"`
	NewRank     float64 `json:"NewRank"`
	Shift       float64 `json:"Shift"`
}

type BacktestSummary struct {
	Year        int     `json:"Year"`
	Bands       int     `json:"Bands"`
	MeanShift   float64 `json:"MeanShift"`
	MedianShift float64 `json:"MedianShift"`
	StdShift    float64 `json:"StdShift"`
	MinShift    float64 `json:"MinShift"`
	MaxShift    float64 `json:"MaxShift"`
	MaxAbsShift float64 `json:"MaxAbsShift"`
}

// BacktestReport 年度回測報告
//
// 紀錄時只收集逐帶位移，Done() 後才一次性計算統計結果
type BacktestReport struct {
	Summary *BacktestSummary `json:"Summary"`
	Rows    []BacktestRow    `json:"Rows"`
	Dist    *ShiftDist       `json:"Dist"`
	isDone  bool
}

// NewBacktestReport 建立回測報告骨架，逐帶以 Add 累積。
func NewBacktestReport(year int) *BacktestReport {
	return &BacktestReport{
		Summary: &BacktestSummary{Year: year},
		Dist:    NewShiftDist(),
	}
}

// Add 累積一筆帶的回測結果。
func (b *BacktestReport) Add(rank, archivedAgg, newRank float64) {
	shift := newRank - rank
	b.Rows = append(b.Rows, BacktestRow{
		Rank:        rank,
		ArchivedAgg: archivedAgg,
		NewRank:     newRank,
		Shift:       shift,
	})
	b.Dist.Observe(shift)
}

// ============================================================
// ** 公開方法 **
// ============================================================

// Done 將累積的逐帶位移轉換為最終統計結果並鎖定 isDone 標記。
func (b *BacktestReport) Done() {
	if b.isDone {
		return
	}
	n := len(b.Rows)
	b.Summary.Bands = n
	if n == 0 {
		b.isDone = true
		return
	}

	shifts := make([]float64, n)
	for i, r := range b.Rows {
		shifts[i] = r.Shift
	}
	sorted := append([]float64(nil), shifts...)
	sort.Float64s(sorted)

	b.Summary.MeanShift = stat.Mean(shifts, nil)
	b.Summary.MedianShift = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	if n > 1 {
		b.Summary.StdShift = stat.StdDev(shifts, nil)
	}
	b.Summary.MinShift = sorted[0]
	b.Summary.MaxShift = sorted[n-1]
	b.Summary.MaxAbsShift = math.Max(math.Abs(sorted[0]), math.Abs(sorted[n-1]))

	b.isDone = true
}

func (b *BacktestReport) WriteWith(w io.Writer, rep BacktestRender) error {
	b.Done()
	return rep.Write(w, b)
}

func (b *BacktestReport) StdOut(ut time.Duration) {
	b.Done()
	formatDuration(ut, len(b.Rows))
	sk, sm := b.fmtBasic()
	str := fmtTable(fmt.Sprintf("Backtest %d", b.Summary.Year), sk, sm)
	fmt.Println(str)
	fmt.Println(b.Dist.String())
}

// ============================================================
// ** 內部方法 **
// ============================================================

func formatDuration(d time.Duration, bands int) {
	p := message.NewPrinter(lang)
	if d < 0 {
		d = -d
	}
	sec := d.Seconds()
	if sec <= 0 {
		sec = 1e-9
	}
	bps := int(float64(bands) / sec)
	if sec < 60.0 {
		p.Printf("used: %.2f seconds\nbps : %d bands/sec\n", sec, bps)
		return
	}
	s := int(d.Seconds()) % 60
	m := int(d.Minutes()) % 60
	h := int(d.Hours())
	if h == 0 {
		s = s % 60
		p.Printf("used: %dm %ds\nbps : %d bands/sec\n", m, s, bps)
		return
	}
	p.Printf("used: %dh:%dm:%ds\nbps : %d bands/sec\n", h, m, s, bps)
}

// StdOut

func (b *BacktestReport) fmtBasic() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	basic := map[string]string{
		"Year":          fmt.Sprintf("%d", b.Summary.Year),
		"Bands":         p.Sprintf("%d", b.Summary.Bands),
		"Mean Shift":    p.Sprintf("%+.4f", b.Summary.MeanShift),
		"Median Shift":  p.Sprintf("%+.4f", b.Summary.MedianShift),
		"STD":           p.Sprintf("%.4f", b.Summary.StdShift),
		"Min Shift":     p.Sprintf("%+.4f", b.Summary.MinShift),
		"Max Shift":     p.Sprintf("%+.4f", b.Summary.MaxShift),
		"Max Abs Shift": p.Sprintf("%.4f", b.Summary.MaxAbsShift),
	}
	keys := []string{"Year", "Bands", "Mean Shift", "Median Shift", "STD", "Min Shift", "Max Shift", "Max Abs Shift"}
	return keys, basic
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
