package stats

import (
	"fmt"
	"strings"
)

// shiftBounds
//
// 位移量分桶邊界（絕對值）。
//
// 請勿修改預設值
//   - shift區間: [0,0.05), [0.05,0.1), [0.1,0.2), [0.2,0.5), [0.5,1), [1,2), [2,+inf)
var shiftBounds = []float64{0.05, 0.1, 0.2, 0.5, 1, 2}

var shiftLabels = []string{
	"[0,0.05)", "[0.05,0.1)", "[0.1,0.2)", "[0.2,0.5)", "[0.5,1)", "[1,2)", "[2,+inf)",
}

// ShiftDist 回測位移量的分桶統計（以絕對值定位）。
type ShiftDist struct {
	Labels []string `json:"Labels"`
	Counts []int    `json:"Counts"`
	total  int
}

func NewShiftDist() *ShiftDist {
	return &ShiftDist{
		Labels: append([]string(nil), shiftLabels...),
		Counts: make([]int, len(shiftLabels)),
	}
}

// Observe 將一筆位移量計入對應的桶。
func (d *ShiftDist) Observe(shift float64) {
	if shift < 0 {
		shift = -shift
	}
	idx := len(shiftBounds) // [2,+inf)
	for i, b := range shiftBounds {
		if shift < b {
			idx = i
			break
		}
	}
	d.Counts[idx]++
	d.total++
}

// Total 回傳觀測總數。
func (d *ShiftDist) Total() int { return d.total }

// String 輸出各桶的次數與占比。
func (d *ShiftDist) String() string {
	var sb strings.Builder
	sb.WriteString("Shift distribution (abs):\n")
	for i, label := range d.Labels {
		pct := 0.0
		if d.total > 0 {
			pct = float64(d.Counts[i]) / float64(d.total) * 100
		}
		fmt.Fprintf(&sb, "  %-12s : %6d (%.2f%%)\n", label, d.Counts[i], pct)
	}
	return sb.String()
}
