package main

import (
	"flag"
	"log"
	"time"

	"github.com/zintix-labs/scalelab"
	"github.com/zintix-labs/scalelab/recorder"
	"github.com/zintix-labs/scalelab/refdata"
	"github.com/zintix-labs/scalelab/server/logger"
	"github.com/zintix-labs/scalelab/stats"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var cfg *config = new(config)

type config struct {
	store     string
	out       string
	worker    int
	opt       bool
	backtest  int
	noarchive bool
	quiet     bool
	pprofmode string
}

func bindVar() {
	// 綁定 Flag 到本地變數的指標 (&)
	flag.StringVar(&cfg.store, "store", "scale_history", "archive directory for yearly scale files")
	flag.StringVar(&cfg.out, "out", "out", "output directory for tsv/csv exports")
	flag.IntVar(&cfg.worker, "worker", 8, "number of fit workers")
	flag.BoolVar(&cfg.opt, "opt", false, "run boundary grid search after fitting")
	flag.IntVar(&cfg.backtest, "backtest", 0, "backtest against this archived year (0 = every archived year)")
	flag.BoolVar(&cfg.noarchive, "noarchive", false, "skip writing this year's table into the archive")
	flag.BoolVar(&cfg.quiet, "quiet", false, "suppress progress bars")
	flag.StringVar(&cfg.pprofmode, "p", "", "pprof: '', cpu, heap, allocs")

	flag.Parse()
}

// 這裡執行完整的建表流程：擬合 → 混合 → 查表 → 回測 → 歸檔 → 輸出
func executeBuild() {
	cfg.valid() // 基本檢查

	lab, err := refdata.NewLab(cfg.store, logger.NewDefaultLogger(logger.ModeDev))
	if err != nil {
		log.Fatal(err)
	}

	// 至此確保可執行
	green := "\033[1;32m"
	reset := "\033[0m"
	p := message.NewPrinter(language.English)

	p.Printf("%s[YEAR:%d] [SUBJECTS:%d] [WORKERS:%d]%s\n",
		green, lab.Year(), len(lab.IDs()), cfg.worker, reset)

	// 1. 全科目擬合
	fit, used, err := lab.FitAll(cfg.worker, !cfg.quiet)
	if err != nil {
		log.Fatal(err)
	}
	p.Printf("fitted %d subjects (%d curves) in %v\n", len(fit.Rows), len(fit.Curves), used.Round(time.Millisecond))
	for _, note := range fit.Skipped {
		p.Printf("  skipped: %s\n", note)
	}
	if len(fit.Samples) > 0 {
		stats.EstimatorFitQuality(fit.Samples).Out()
	}

	// 2. 邊界網格搜尋（選配）
	if cfg.opt {
		runOptimize(lab, p)
	}

	// 3. 混合 + 查表
	build, err := lab.BuildLookup(fit.Curves)
	if err != nil {
		log.Fatal(err)
	}
	p.Printf("%s[TABLE:%d bands] [REPAIRS:%d] [SIM_MERGED:%d]%s\n",
		green, len(build.Table.Rows), build.Table.Repairs+build.Blend.Repairs, build.SimMerged, reset)

	// 4. 回測：預設跑檔案庫中除本年外的每一個年度
	for _, y := range backtestYears(lab.Store().Years(), lab.Year(), cfg.backtest) {
		start := time.Now()
		rep, err := lab.Backtest(y, build.Table)
		if err != nil {
			log.Fatal(err)
		}
		rep.StdOut(time.Since(start))
	}

	// 5. 歸檔
	if !cfg.noarchive {
		if err := lab.ArchiveTable(build.Table); err != nil {
			log.Fatal(err)
		}
	}

	// 6. 輸出
	files, err := recorder.ExportRun(cfg.out, lab.Year(), fit.Rows, build.Table)
	if err != nil {
		log.Fatal(err)
	}
	for _, f := range files {
		p.Printf("written: %s\n", f)
	}
}

// backtestYears 決定回測年度：override > 0 時只跑該年，
// 否則跑檔案庫所有已歸檔年度（排除當年，本年表另做自我回測）。
func backtestYears(archived []int, current, override int) []int {
	if override > 0 {
		return []int{override}
	}
	years := make([]int, 0, len(archived))
	for _, y := range archived {
		if y != current {
			years = append(years, y)
		}
	}
	return years
}

func runOptimize(lab *scalelab.Lab, p *message.Printer) {
	opt, used, err := lab.OptimizeAll(cfg.worker, !cfg.quiet)
	if err != nil {
		log.Fatal(err)
	}
	p.Printf("optimized %d subjects in %v\n", len(opt.Results), used.Round(time.Millisecond))
	for _, r := range opt.Results {
		p.Printf("  %-42s min_x=%6.2f lower=(%.2f, %.2f) fit_err=%.4f\n",
			r.Name, r.Placement.MinX, r.Placement.LowerX, r.Placement.LowerY, r.Placement.FitErr)
	}
	for _, note := range opt.Skipped {
		p.Printf("  skipped: %s\n", note)
	}
}

func (cfg *config) valid() {
	p := message.NewPrinter(language.English)

	// 工作協程檢查(併發數)
	if cfg.worker < 1 {
		log.Fatal("value err : workers must > 0")
	}
	// 太多 worker 沒有意義 resize
	if cfg.worker > 32 {
		p.Printf("too many workers: %d resized to 32\n", cfg.worker)
		cfg.worker = 32
	}

	if cfg.store == "" {
		log.Fatal("value err : store dir required")
	}
	if cfg.out == "" {
		log.Fatal("value err : out dir required")
	}
	if cfg.backtest < 0 {
		log.Fatal("value err : backtest year must >= 0")
	}
}
