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

package app

import (
	"context"
	"fmt"

	"agrotrack/internal/classifier"
	"agrotrack/internal/escrow"
	"agrotrack/internal/ledger"
	"agrotrack/internal/sms"
	"agrotrack/internal/transfer"
	"agrotrack/pkg/clock"
	"agrotrack/pkg/config"
	"agrotrack/pkg/log"
	"agrotrack/pkg/secrets"
)

// Bootstrap 统一初始化：供 api 与 cli 复用，避免在 cmd 内做后端选择
type Bootstrap struct {
	Config     *config.Config
	Logger     *log.Logger
	Secrets    secrets.Store
	Ledger     ledger.Store
	OTPStore   escrow.OTPStore
	Transfer   transfer.Backend
	Gateway    sms.Gateway
	Classifier classifier.Classifier
	Clock      clock.Clock
}

// NewBootstrap 根据配置创建 Bootstrap（账本/OTP/转账/短信/分类器后端选择都在这里）
func NewBootstrap(cfg *config.Config) (*Bootstrap, error) {
	logCfg := &log.Config{}
	if cfg != nil {
		logCfg.Level = cfg.Log.Level
		logCfg.Format = cfg.Log.Format
		logCfg.File = cfg.Log.File
	}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	if cfg == nil {
		cfg = &config.Config{}
	}

	secretStore, err := secrets.NewStore(cfg.Secrets)
	if err != nil {
		return nil, fmt.Errorf("初始化 secrets 失败: %w", err)
	}

	clk := clock.New()
	ctx := context.Background()

	ledgerStore, err := newLedgerStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	otpStore, err := newOTPStore(cfg, clk, logger)
	if err != nil {
		return nil, err
	}
	backend := newTransferBackend(ctx, cfg, secretStore, logger)
	gateway := newSMSGateway(ctx, cfg, secretStore, logger)
	cls, err := newClassifier(ctx, cfg, secretStore, logger)
	if err != nil {
		return nil, err
	}

	return &Bootstrap{
		Config:     cfg,
		Logger:     logger,
		Secrets:    secretStore,
		Ledger:     ledgerStore,
		OTPStore:   otpStore,
		Transfer:   backend,
		Gateway:    gateway,
		Classifier: cls,
		Clock:      clk,
	}, nil
}

func newLedgerStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (ledger.Store, error) {
	switch cfg.Ledger.Type {
	case "postgres":
		if cfg.Ledger.DSN == "" {
			return nil, fmt.Errorf("ledger.type=postgres 需要 ledger.dsn")
		}
		store, err := ledger.NewPostgresStore(ctx, cfg.Ledger.DSN, cfg.Ledger.TopicID)
		if err != nil {
			return nil, fmt.Errorf("初始化账本(postgres)失败: %w", err)
		}
		logger.Info("账本使用 PostgreSQL 后端", "topic", cfg.Ledger.TopicID)
		return store, nil
	case "mirror":
		if cfg.Ledger.MirrorURL == "" {
			return nil, fmt.Errorf("ledger.type=mirror 需要 ledger.mirror_url")
		}
		logger.Info("账本使用远端镜像后端", "url", cfg.Ledger.MirrorURL, "topic", cfg.Ledger.TopicID)
		return ledger.NewMirrorStore(cfg.Ledger.MirrorURL, cfg.Ledger.TopicID), nil
	default:
		logger.Info("账本使用内存后端（仅开发）")
		return ledger.NewMemoryStore(), nil
	}
}

func newOTPStore(cfg *config.Config, clk clock.Clock, logger *log.Logger) (escrow.OTPStore, error) {
	if cfg.Escrow.OTPStore == "redis" {
		if cfg.Escrow.RedisAddr == "" {
			return nil, fmt.Errorf("escrow.otp_store=redis 需要 escrow.redis_addr")
		}
		store, err := escrow.NewRedisOTPStore(cfg.Escrow.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("初始化 OTP 存储(redis)失败: %w", err)
		}
		logger.Info("OTP 存储使用 Redis 后端", "addr", cfg.Escrow.RedisAddr)
		return store, nil
	}
	return escrow.NewMemoryOTPStore(clk), nil
}

func newTransferBackend(ctx context.Context, cfg *config.Config, sec secrets.Store, logger *log.Logger) transfer.Backend {
	if cfg.Transfer.Mode == "rest" && cfg.Transfer.BaseURL != "" {
		apiKey := resolveSecret(ctx, sec, cfg.Transfer.APIKey, "transfer_api_key")
		logger.Info("转账后端使用托管网关", "url", cfg.Transfer.BaseURL)
		return transfer.NewRESTBackend(cfg.Transfer.BaseURL, apiKey)
	}
	logger.Info("转账后端使用进程内模拟（仅开发）")
	return transfer.NewSimBackend()
}

func newSMSGateway(ctx context.Context, cfg *config.Config, sec secrets.Store, logger *log.Logger) sms.Gateway {
	if cfg.SMS.Mode == "africastalking" {
		apiKey := resolveSecret(ctx, sec, cfg.SMS.APIKey, "sms_api_key")
		logger.Info("短信网关使用 Africa's Talking", "username", cfg.SMS.Username)
		return sms.NewAfricasTalkingGateway(sms.ATConfig{
			Username: cfg.SMS.Username,
			APIKey:   apiKey,
			Sender:   cfg.SMS.Sender,
			BaseURL:  cfg.SMS.BaseURL,
		})
	}
	return sms.NewStubGateway(logger)
}

func newClassifier(ctx context.Context, cfg *config.Config, sec secrets.Store, logger *log.Logger) (classifier.Classifier, error) {
	if cfg.Classifier.Provider == "openai" {
		apiKey := resolveSecret(ctx, sec, cfg.Classifier.APIKey, "classifier_api_key")
		cls, err := classifier.NewLLMClassifier(ctx, classifier.Config{
			Model:   cfg.Classifier.Model,
			APIKey:  apiKey,
			BaseURL: cfg.Classifier.BaseURL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("初始化 LLM 分类器失败: %w", err)
		}
		logger.Info("意图分类使用 LLM", "model", cfg.Classifier.Model)
		return cls, nil
	}
	logger.Info("意图分类使用规则引擎")
	return classifier.NewRuleClassifier(), nil
}

// resolveSecret 配置值为空时从 secrets 后端取，两边都没有返回空串
func resolveSecret(ctx context.Context, sec secrets.Store, configured, key string) string {
	if configured != "" {
		return configured
	}
	if sec == nil {
		return ""
	}
	v, err := sec.Get(ctx, key)
	if err != nil {
		return ""
	}
	return v
}
