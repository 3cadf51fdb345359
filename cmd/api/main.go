/*
 * Copyright 2023-2025 Councilnet, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	redisutil "github.com/kthomas/go-redisutil"
	provide "github.com/provideplatform/provide-go/common"
	util "github.com/provideplatform/provide-go/common/util"

	"github.com/councilnet/council/audit"
	"github.com/councilnet/council/common"
	"github.com/councilnet/council/debate"
	"github.com/councilnet/council/session"
	"github.com/councilnet/council/store"
)

const runloopSleepInterval = 250 * time.Millisecond
const runloopTickInterval = 5000 * time.Millisecond

var (
	cancelF     context.CancelFunc
	closing     uint32
	shutdownCtx context.Context
	sigs        chan os.Signal

	srv *gin.Engine
)

func main() {
	common.Log.Debug("installing signal handlers for council API")
	installSignalHandlers()

	redisutil.RequireRedis()
	util.RequireJWTVerifiers()
	util.RequireGin()

	runAPI()

	timer := time.NewTicker(runloopTickInterval)
	defer timer.Stop()

	for !shuttingDown() {
		select {
		case <-timer.C:
			// tick... no-op
		case sig := <-sigs:
			common.Log.Debugf("received signal: %s", sig)
			shutdown()
		case <-shutdownCtx.Done():
			close(sigs)
		default:
			time.Sleep(runloopSleepInterval)
		}
	}

	common.Log.Debug("exiting council API")
	cancelF()
}

func installSignalHandlers() {
	sigs = make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	shutdownCtx, cancelF = context.WithCancel(context.Background())
}

func shutdown() {
	if atomic.CompareAndSwapUint32(&closing, 0, 1) {
		common.Log.Debug("shutting down council API")
		cancelF()
	}
}

func shuttingDown() bool {
	return atomic.LoadUint32(&closing) == 1
}

func runAPI() {
	srv = gin.New()
	srv.Use(gin.Recovery())
	srv.Use(provide.CORSMiddleware())

	srv.GET("/status", statusHandler)

	session.InstallAPI(srv)
	debate.InstallAPI(srv)
	audit.InstallAPI(srv)
	store.InstallAPI(srv)

	go func() {
		err := srv.Run(util.ListenAddr)
		if err != nil {
			common.Log.Panicf("failed to run council API; %s", err.Error())
		}
	}()

	common.Log.Debugf("running council API on %s", util.ListenAddr)
}

func statusHandler(c *gin.Context) {
	provide.Render(nil, 204, c)
}
