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

package api

import (
	"log/slog"
	"net/http"

	"github.com/zintix-labs/scalelab/server/api/dev"
	v1 "github.com/zintix-labs/scalelab/server/api/v1"
	"github.com/zintix-labs/scalelab/server/netsvr"
	"github.com/zintix-labs/scalelab/server/netsvr/middleware"
	"github.com/zintix-labs/scalelab/server/svrcfg"
)

// RegisterRoutes 註冊
func RegisterRoutes(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg) error {
	registerMiddleware(svr, sCfg.Log)   // 1. 註冊 middleware
	registerIndex(svr)                  // 2. 註冊主頁
	dev.Register(svr, sCfg)             // 3. 開發者工具頁
	return registerV1API(svr, sCfg)     // 4. 註冊 v1 api
}

// 註冊 middleware
func registerMiddleware(svr netsvr.NetSvr, log *slog.Logger) {
	svr.Use(middleware.RequestID)
	svr.Use(middleware.AccessLog(log))
	svr.Use(middleware.Recover)
	svr.Use(middleware.Compression)
}

// 註冊主頁
func registerIndex(svr netsvr.NetSvr) {
	svr.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("scalelab: /dev for the developer panel, /v1 for the API\n"))
	})
}

// 註冊 v1 api
func registerV1API(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg) error {
	h, err := v1.NewLabHandler(sCfg)
	if err != nil {
		return err
	}
	svr.Group("/v1", func(vOne netsvr.NetRouter) {
		vOne.Get("/subjects", h.Subjects)
		vOne.Get("/fit", h.Fit)
		vOne.Get("/lookup", h.Lookup)
		vOne.Get("/backtest", h.Backtest)

		vOne.Post("/fit", h.Fit)
		vOne.Post("/fitbycfg", h.FitByCfg)
		vOne.Post("/optimize", h.Optimize)
	})
	return nil
}
