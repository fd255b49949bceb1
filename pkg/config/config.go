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

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"agrotrack/pkg/secrets"
)

// Config 应用配置结构体：启动时解析一次，之后以不可变值注入各组件，
// 账本 topic、托管 token 等标识不再从进程环境随用随取
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Escrow     EscrowConfig     `mapstructure:"escrow"`
	Transfer   TransferConfig   `mapstructure:"transfer"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Resolver   ResolverConfig   `mapstructure:"resolver"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	SMS        SMSConfig        `mapstructure:"sms"`
	Secrets    secrets.Config   `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Auth          bool   `mapstructure:"auth"`            // 为 true 时 /api/* 只读接口启用 JWT
	JWTKey        string `mapstructure:"jwt_key"`
	JWTTimeout    string `mapstructure:"jwt_timeout"`     // 如 "1h"
	JWTMaxRefresh string `mapstructure:"jwt_max_refresh"` // 如 "1h"
	OperatorUser  string `mapstructure:"operator_user"`   // 运维登录账号
	// OperatorPassword 为空时从 secrets 后端取 operator_password
	OperatorPassword string `mapstructure:"operator_password"`
}

// RateLimitConfig webhook 入站限流（按发送方）
type RateLimitConfig struct {
	Enable bool    `mapstructure:"enable"`
	RPS    float64 `mapstructure:"rps"`   // 每发送方每秒请求数，<=0 默认 1
	Burst  int     `mapstructure:"burst"` // 突发额度，<=0 默认 3
}

// LedgerConfig 账本后端配置
type LedgerConfig struct {
	Type      string `mapstructure:"type"`       // memory | postgres | mirror
	DSN       string `mapstructure:"dsn"`        // type=postgres 时必填
	MirrorURL string `mapstructure:"mirror_url"` // type=mirror 时的镜像节点地址
	TopicID   string `mapstructure:"topic_id"`   // 事件 topic 标识
	Agent     string `mapstructure:"agent"`      // 附加在事件上的默认 agent 标识
}

// EscrowConfig 托管配置
type EscrowConfig struct {
	TokenID       string `mapstructure:"token_id"`       // 托管 token 标识
	Amount        int64  `mapstructure:"amount"`         // 锁定额度（token 最小单位），<=0 默认 10000
	OTPTTL        string `mapstructure:"otp_ttl"`        // 一次性验证码有效期，空则 300s
	ApprovalDelay string `mapstructure:"approval_delay"` // 资金操作前的审批停顿，空则 2s
	OTPStore      string `mapstructure:"otp_store"`      // memory | redis
	RedisAddr     string `mapstructure:"redis_addr"`     // otp_store=redis 时必填
}

// TransferConfig 价值转移后端配置
type TransferConfig struct {
	Mode    string `mapstructure:"mode"`     // sim | rest
	BaseURL string `mapstructure:"base_url"` // mode=rest 时的托管网关地址
	APIKey  string `mapstructure:"api_key"`  // 支持 ${ENV_VAR} 形式
}

// SettlementConfig 结算配置
type SettlementConfig struct {
	MinWeightKg   float64 `mapstructure:"min_weight_kg"`  // 低于该交付重量直接拒绝，<=0 默认 50
	ApprovalDelay string  `mapstructure:"approval_delay"` // 放款前的审批停顿，空则 2s
}

// ResolverConfig LATEST 引用解析配置
type ResolverConfig struct {
	Grace      string `mapstructure:"grace"`       // 首次查询前的宽限等待，空则 2s
	Attempts   int    `mapstructure:"attempts"`    // 查询尝试次数，<=0 默认 3
	Backoff    string `mapstructure:"backoff"`     // 尝试间隔，空则 1s
	QueryLimit int    `mapstructure:"query_limit"` // 单次查询条数上限，<=0 默认 100
}

// ClassifierConfig 意图分类配置
type ClassifierConfig struct {
	Provider string `mapstructure:"provider"` // openai | rule
	Model    string `mapstructure:"model"`    // 如 gpt-4o-mini
	APIKey   string `mapstructure:"api_key"`  // 支持 ${ENV_VAR} 形式
	BaseURL  string `mapstructure:"base_url"` // OpenAI 兼容端点，空则官方默认
}

// SMSConfig 短信网关配置
type SMSConfig struct {
	Mode     string `mapstructure:"mode"`     // stub | africastalking
	Sender   string `mapstructure:"sender"`   // 发送方短号/名称
	Username string `mapstructure:"username"` // Africa's Talking 账号
	APIKey   string `mapstructure:"api_key"`  // 支持 ${ENV_VAR} 形式
	BaseURL  string `mapstructure:"base_url"` // 网关地址，空则官方默认
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// MetricsConfig Prometheus 暴露配置
type MetricsConfig struct {
	Enable bool `mapstructure:"enable"`
}

// TracingConfig OpenTelemetry 配置
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)

	return &config, nil
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// replaceEnvVars 替换配置中 ${ENV_VAR} 形式的敏感值
func replaceEnvVars(config *Config) {
	config.Classifier.APIKey = expandEnv(config.Classifier.APIKey)
	config.SMS.APIKey = expandEnv(config.SMS.APIKey)
	config.Transfer.APIKey = expandEnv(config.Transfer.APIKey)
	config.Ledger.DSN = expandEnv(config.Ledger.DSN)
}

func expandEnv(v string) string {
	if strings.HasPrefix(v, "$") {
		envVar := strings.TrimPrefix(strings.TrimSuffix(v, "}"), "${")
		if val := os.Getenv(envVar); val != "" {
			return val
		}
	}
	return v
}

// ParseDuration 解析时长字符串，无效或空时返回 defaultVal
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
