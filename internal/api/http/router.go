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

package http

import (
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/hertz-contrib/jwt"

	"agrotrack/internal/api/http/middleware"
)

// RateLimit webhook 限流配置
type RateLimit struct {
	Enable bool
	RPS    float64
	Burst  int
}

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
	jwtAuth    *jwt.HertzJWTMiddleware
	rateLimit  RateLimit
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{handler: handler, middleware: mw}
}

// SetJWT 启用 /api 路由组的 JWT 认证
func (r *Router) SetJWT(auth *jwt.HertzJWTMiddleware) {
	r.jwtAuth = auth
}

// SetRateLimit 启用 webhook 按号码限流
func (r *Router) SetRateLimit(rl RateLimit) {
	r.rateLimit = rl
}

// Build 组装 Hertz 服务器与全部路由
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	opts = append(opts, server.WithHostPorts(addr))
	h := server.Default(opts...)

	h.GET("/health", r.handler.HealthCheck)
	h.GET("/metrics", r.handler.Metrics)

	// 短信网关回调：不走 JWT，网关有自己的回调鉴权
	webhook := h.Group("/webhook")
	if r.rateLimit.Enable {
		webhook.Use(r.middleware.RateLimitBySender(r.rateLimit.RPS, r.rateLimit.Burst))
	}
	webhook.POST("/sms", r.handler.InboundSMS)

	api := h.Group("/api", r.middleware.CORS())
	if r.jwtAuth != nil {
		api.POST("/login", r.jwtAuth.LoginHandler)
		api.Use(r.jwtAuth.MiddlewareFunc())
	}
	api.GET("/proof/:ref", r.handler.GetProof)
	api.GET("/messages", r.handler.ListMessages)

	return h
}
