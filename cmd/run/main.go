package main

import "github.com/zintix-labs/scalelab/sdk/perf"

// makefile runner
func main() {
	bindVar()
	perf.RunPProf(executeBuild, cfg.pprofmode)
}
