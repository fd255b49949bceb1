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
	"context"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"agrotrack/internal/ledger"
	"agrotrack/internal/orchestrator"
	"agrotrack/pkg/log"
	"agrotrack/pkg/metrics"
)

// Handler HTTP 处理器
type Handler struct {
	orch   *orchestrator.Orchestrator
	store  ledger.Store
	logger *log.Logger
	topic  string
}

// NewHandler 创建新的 HTTP 处理器。topic 为账本事件 topic 标识（仅用于健康检查回显）
func NewHandler(orch *orchestrator.Orchestrator, store ledger.Store, logger *log.Logger, topic string) *Handler {
	return &Handler{orch: orch, store: store, logger: logger, topic: topic}
}

// HealthCheck 健康检查
// GET /health
func (h *Handler) HealthCheck(_ context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "agrotrack-api",
		"topic":     h.topic,
	})
}

// InboundSMS 短信网关回调。立即应答收到，编排在后台进行：
// 网关只关心投递成功与否，不等待交易结果（结果走出站短信）
// POST /webhook/sms
func (h *Handler) InboundSMS(_ context.Context, c *app.RequestContext) {
	from := string(c.FormValue("from"))
	text := string(c.FormValue("text"))
	if from == "" || text == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{
			"error": "from and text are required",
		})
		return
	}

	go func() {
		// webhook 请求很快返回，后台处理用独立的超时上下文
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		h.orch.Handle(ctx, from, text)
	}()

	c.JSON(consts.StatusOK, map[string]string{"status": "received"})
}

// GetProof 某笔交易的完整事件轨迹与推导状态
// GET /api/proof/:ref
func (h *Handler) GetProof(ctx context.Context, c *app.RequestContext) {
	ref := c.Param("ref")
	if ref == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "ref is required"})
		return
	}
	events, err := h.store.Query(ctx, ledger.Filter{Ref: ref})
	if err != nil {
		h.logger.Error("proof query failed", "ref", ref, "error", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "ledger query failed"})
		return
	}
	if len(events) == 0 {
		c.JSON(consts.StatusNotFound, map[string]string{"error": "transaction not found"})
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"ref":    ref,
		"status": ledger.DeriveStatus(events),
		"events": events,
		"total":  len(events),
	})
}

// ListMessages 按条件查询账本事件
// GET /api/messages?ref=&kind=&msisdn=&crop=&location=&limit=
func (h *Handler) ListMessages(ctx context.Context, c *app.RequestContext) {
	filter := ledger.Filter{
		Ref:      c.Query("ref"),
		Kind:     c.Query("kind"),
		SenderID: c.Query("msisdn"),
		Crop:     c.Query("crop"),
		Location: c.Query("location"),
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	events, err := h.store.Query(ctx, filter)
	if err != nil {
		h.logger.Error("messages query failed", "error", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "ledger query failed"})
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"messages": events,
		"total":    len(events),
	})
}

// Metrics Prometheus 文本格式指标
// GET /metrics
func (h *Handler) Metrics(_ context.Context, c *app.RequestContext) {
	c.Response.Header.SetContentType("text/plain; version=0.0.4; charset=utf-8")
	buf := &bytesWriter{c: c}
	if err := metrics.WritePrometheus(buf); err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "encode metrics failed"})
		return
	}
	c.SetStatusCode(consts.StatusOK)
}

// bytesWriter 把指标编码流写进响应体
type bytesWriter struct {
	c *app.RequestContext
}

func (w *bytesWriter) Write(p []byte) (int, error) {
	w.c.Response.AppendBody(p)
	return len(p), nil
}
