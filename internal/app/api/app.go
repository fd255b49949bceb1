// Copyright 2026 fanjia1024
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
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"agrotrack/internal/advisory"
	"agrotrack/internal/api/http"
	"agrotrack/internal/api/http/middleware"
	"agrotrack/internal/app"
	"agrotrack/internal/escrow"
	"agrotrack/internal/orchestrator"
	"agrotrack/internal/resolver"
	"agrotrack/internal/settlement"
	"agrotrack/pkg/config"
	"agrotrack/pkg/utils"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配编排器、协调器与 HTTP 路由）
type App struct {
	bootstrap    *app.Bootstrap
	orch         *orchestrator.Orchestrator
	router       *http.Router
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config
	logger := bootstrap.Logger

	escrowAmount := utils.DefaultInt64(cfg.Escrow.Amount, 10000)
	esc := escrow.NewCoordinator(bootstrap.OTPStore, bootstrap.Transfer, bootstrap.Ledger, bootstrap.Clock, logger, escrow.Config{
		TokenID:       utils.CoalesceString(cfg.Escrow.TokenID, "AGRI-ESCROW"),
		Amount:        escrowAmount,
		OTPTTL:        config.ParseDuration(cfg.Escrow.OTPTTL, 300*time.Second),
		ApprovalDelay: config.ParseDuration(cfg.Escrow.ApprovalDelay, 2*time.Second),
	})

	stl := settlement.NewCoordinator(bootstrap.Transfer, bootstrap.Ledger, bootstrap.Clock, logger, settlement.Config{
		MinWeightKg:   utils.DefaultFloat64(cfg.Settlement.MinWeightKg, 50),
		ApprovalDelay: config.ParseDuration(cfg.Settlement.ApprovalDelay, 2*time.Second),
	})

	res := resolver.New(bootstrap.Ledger, bootstrap.Clock, logger, resolver.Config{
		Grace:      config.ParseDuration(cfg.Resolver.Grace, 2*time.Second),
		Attempts:   utils.DefaultInt(cfg.Resolver.Attempts, 3),
		Backoff:    config.ParseDuration(cfg.Resolver.Backoff, time.Second),
		QueryLimit: utils.DefaultInt(cfg.Resolver.QueryLimit, 100),
	})

	fan := advisory.NewFanout(
		advisory.NewRiskScorer(bootstrap.Ledger, logger),
		advisory.NewMarketAdvisor(bootstrap.Ledger, logger),
		logger,
	)

	orch := orchestrator.New(bootstrap.Classifier, bootstrap.Ledger, fan, esc, stl, res,
		bootstrap.Gateway, bootstrap.Clock, logger, orchestrator.Config{EscrowAmount: escrowAmount})

	handler := http.NewHandler(orch, bootstrap.Ledger, logger, cfg.Ledger.TopicID)
	router := http.NewRouter(handler, middleware.NewMiddleware())

	if cfg.API.RateLimit.Enable {
		router.SetRateLimit(http.RateLimit{
			Enable: true,
			RPS:    utils.DefaultFloat64(cfg.API.RateLimit.RPS, 1),
			Burst:  utils.DefaultInt(cfg.API.RateLimit.Burst, 3),
		})
	}

	if cfg.API.Middleware.Auth && cfg.API.Middleware.JWTKey != "" {
		timeout := config.ParseDuration(cfg.API.Middleware.JWTTimeout, time.Hour)
		maxRefresh := config.ParseDuration(cfg.API.Middleware.JWTMaxRefresh, time.Hour)
		password := cfg.API.Middleware.OperatorPassword
		if password == "" && bootstrap.Secrets != nil {
			if v, err := bootstrap.Secrets.Get(context.Background(), "operator_password"); err == nil {
				password = v
			}
		}
		creds := middleware.OperatorCredentials{
			Username: utils.CoalesceString(cfg.API.Middleware.OperatorUser, "operator"),
			Password: password,
		}
		jwtAuth, err := middleware.NewJWTAuth([]byte(cfg.API.Middleware.JWTKey), creds, timeout, maxRefresh)
		if err != nil {
			logger.Warn("JWT 初始化失败，将跳过认证", "error", err)
		} else {
			router.SetJWT(jwtAuth)
			logger.Info("JWT 认证已启用", "operator", creds.Username)
		}
	}

	return &App{bootstrap: bootstrap, orch: orch, router: router}, nil
}

// Run 启动 HTTP 服务，addr 如 ":8080"
func (a *App) Run(addr string) error {
	cfg := a.bootstrap.Config
	a.bootstrap.Logger.Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与 bootstrap 日志配置对齐
	output := os.Stdout
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	switch cfg.Log.Level {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	// 可选：启用链路追踪（OpenTelemetry）
	if cfg.Monitoring.Tracing.Enable {
		serviceName := utils.CoalesceString(cfg.Monitoring.Tracing.ServiceName, "agrotrack-api")
		exportEndpoint := utils.CoalesceString(cfg.Monitoring.Tracing.ExportEndpoint, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
		if exportEndpoint != "" {
			opts := []provider.Option{
				provider.WithServiceName(serviceName),
				provider.WithExportEndpoint(exportEndpoint),
			}
			if cfg.Monitoring.Tracing.Insecure {
				opts = append(opts, provider.WithInsecure())
			}
			a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
			tracerOpt, tracerCfg := hertztracing.NewServerTracer()
			a.hertz = a.router.Build(addr, tracerOpt)
			a.hertz.Use(hertztracing.ServerMiddleware(tracerCfg))
			a.bootstrap.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
		} else {
			a.hertz = a.router.Build(addr)
		}
	} else {
		a.hertz = a.router.Build(addr)
	}
	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}
