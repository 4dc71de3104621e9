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

package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/zintix-labs/scalelab/optimizer"
	"github.com/zintix-labs/scalelab/refdata"
	"github.com/zintix-labs/scalelab/server/logger"
	"github.com/zintix-labs/scalelab/spec"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var optsid spec.SID
var workers int
var store string

func main() {
	flag.Var(sidFlag{&optsid}, "sid", "target subject id (0 = all general subjects)")
	flag.IntVar(&workers, "worker", 8, "workers per subject search")
	flag.StringVar(&store, "store", "scale_history", "archive directory for yearly scale files")
	flag.Parse()

	lab, err := refdata.NewLab(store, logger.NewDefaultLogger(logger.ModeDev))
	if err != nil {
		log.Fatal(err)
	}
	p := message.NewPrinter(language.English)

	if optsid > 0 {
		rec, ok := lab.Record(optsid)
		if !ok {
			log.Fatalf("sid %d not found", optsid)
		}
		if rec.Kind != spec.KindGeneral {
			log.Fatalf("subject %q is %s, boundary search needs percentile data", rec.Name, rec.Kind)
		}
		pd, err := rec.Percentiles()
		if err != nil {
			log.Fatal(err)
		}
		s, err := optimizer.New(pd)
		if err != nil {
			log.Fatal(err)
		}
		s.SetWorkers(workers)
		start := time.Now()
		place, err := s.Run()
		if err != nil {
			log.Fatal(err)
		}
		p.Printf("%-42s min_x=%6.2f lower=(%.2f, %.2f) fit_err=%.4f (%v)\n",
			rec.Name, place.MinX, place.LowerX, place.LowerY, place.FitErr,
			time.Since(start).Round(time.Millisecond))
		return
	}

	opt, used, err := lab.OptimizeAll(workers, true)
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range opt.Results {
		p.Printf("%-42s min_x=%6.2f lower=(%.2f, %.2f) fit_err=%.4f\n",
			r.Name, r.Placement.MinX, r.Placement.LowerX, r.Placement.LowerY, r.Placement.FitErr)
	}
	for _, note := range opt.Skipped {
		p.Printf("skipped: %s\n", note)
	}
	p.Printf("optimized %d subjects in %v\n", len(opt.Results), used.Round(time.Millisecond))
}

type sidFlag struct{ p *spec.SID }

// flag 在印預設值時會用零值呼叫 String()，此時 p 為 nil
func (f sidFlag) String() string {
	if f.p == nil {
		return "0"
	}
	return fmt.Sprint(uint32(*f.p))
}
func (f sidFlag) Set(s string) error {
	u, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return err
	}
	*f.p = spec.SID(u)
	return nil
}
