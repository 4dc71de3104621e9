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

package mono

import (
	"testing"

	"github.com/zintix-labs/scalelab/errs"
)

func TestInterpolatorHitsKnots(t *testing.T) {
	xs := []float64{30, 50, 70, 99.95}
	ys := []float64{150, 250, 350, 488}
	it, err := New(xs, ys)
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	for i := range xs {
		if got := it.At(xs[i]); got != ys[i] {
			t.Fatalf("knot %v: expected %v, got %v", xs[i], ys[i], got)
		}
	}
	if it.Lo() != 30 || it.Hi() != 99.95 {
		t.Fatalf("unexpected coverage [%v, %v]", it.Lo(), it.Hi())
	}
	if !it.Covers(50) || it.Covers(29.9) || it.Covers(100) {
		t.Fatalf("coverage check broken")
	}
}

func TestInterpolatorNoOvershoot(t *testing.T) {
	// 形狀保持：有序資料點之間不得過衝
	xs := []float64{0, 1, 2, 3}
	ys := []float64{0, 0.1, 9.9, 10}
	it, err := New(xs, ys)
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	for x := 0.0; x <= 3.0; x += 0.05 {
		v := it.At(x)
		if v < 0 || v > 10 {
			t.Fatalf("overshoot at x=%v: %v", x, v)
		}
	}
	// 單調資料 -> 單調輸出
	prev := it.At(0.0)
	for x := 0.05; x <= 3.0; x += 0.05 {
		v := it.At(x)
		if v < prev {
			t.Fatalf("non-monotone at x=%v: %v < %v", x, v, prev)
		}
		prev = v
	}
}

func TestInterpolatorDeriv(t *testing.T) {
	// 線性資料的導數處處為斜率
	it, err := New([]float64{0, 1, 2}, []float64{0, 2, 4})
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if d := it.DerivAt(1); d < 1.9 || d > 2.1 {
		t.Fatalf("expected derivative ~2, got %v", d)
	}
}

func TestNewTooFewPoints(t *testing.T) {
	if _, err := New([]float64{1}, []float64{1}); errs.Level(err) != errs.Warn {
		t.Fatalf("single point should be warn, got %v", err)
	}
}

func TestForwardRepair(t *testing.T) {
	vals := []float64{1, 2, 2, 1.5, 3}
	n := ForwardRepair(vals, 0.01)
	if n != 2 {
		t.Fatalf("expected 2 repairs, got %d (%v)", n, vals)
	}
	if Violations(vals) != 0 {
		t.Fatalf("violations remain after repair: %v", vals)
	}
	if vals[2] != 2.01 {
		t.Fatalf("expected lifted value 2.01, got %v", vals[2])
	}
}

func TestClamp(t *testing.T) {
	vals := []float64{-5, 50, 505}
	Clamp(vals, 0, 500)
	if vals[0] != 0 || vals[1] != 50 || vals[2] != 500 {
		t.Fatalf("unexpected clamp result: %v", vals)
	}
}
