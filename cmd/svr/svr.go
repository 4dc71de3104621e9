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

	"github.com/zintix-labs/scalelab/refdata"
	"github.com/zintix-labs/scalelab/server"
	"github.com/zintix-labs/scalelab/server/logger"
	"github.com/zintix-labs/scalelab/server/svrcfg"
)

// This command is intentionally a "lab server" entrypoint for the scalelab repo.
// It enables all developer endpoints by default.
// For production deployments, use a separate scaffold project and run ModeProd.
func main() {
	cfg, err := loadConfigFromFlags()
	if err != nil {
		fmt.Println(err)
		return
	}
	server.Run(cfg)
}

type config struct {
	LogMode    string
	FitWorkers int
	Store      string
}

func loadConfigFromFlags() (*svrcfg.SvrCfg, error) {
	cfg := new(config)
	flag.StringVar(&cfg.LogMode, "log-mode", "ModeDev", "log mode: ModeDev|ModeProd|ModeSilence")
	flag.IntVar(&cfg.FitWorkers, "worker", 8, "workers for fit/optimize endpoints")
	flag.StringVar(&cfg.Store, "store", "scale_history", "archive directory for yearly scale files")

	flag.Parse()

	log, _ := logger.NewAsync(4096, cfg.norm())

	lab, err := refdata.NewLab(cfg.Store, log)
	if err != nil {
		return nil, err
	}
	sCfg := &svrcfg.SvrCfg{
		Log:        log,
		FitWorkers: cfg.FitWorkers,
		Lab:        lab,
	}
	return sCfg, nil
}

func (cfg *config) norm() logger.LogMode {
	switch cfg.LogMode {
	case "ModeDev":
		return logger.ModeDev
	case "ModeProd":
		return logger.ModeProd
	case "ModeSilence":
		return logger.ModeSilence
	default:
		return logger.ModeDev
	}
}
