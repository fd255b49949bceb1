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

package escrow

import (
	"context"
	"fmt"
	"time"

	"agrotrack/internal/ledger"
	"agrotrack/internal/trade"
	"agrotrack/internal/transfer"
	"agrotrack/pkg/clock"
	"agrotrack/pkg/log"
	"agrotrack/pkg/metrics"
)

// Config 托管参数
type Config struct {
	TokenID       string
	Amount        int64
	OTPTTL        time.Duration
	ApprovalDelay time.Duration
}

// Coordinator 托管协调器：签发验证码、校验后两阶段锁定资金。
// 先落 escrow_preparing 再调后端，后端结果决定 escrow_created 或 escrow_failed，
// 审计轨迹里能看到每次锁定的完整经过
type Coordinator struct {
	otp     OTPStore
	backend transfer.Backend
	store   ledger.Store
	clock   clock.Clock
	logger  *log.Logger
	cfg     Config
}

func NewCoordinator(otp OTPStore, backend transfer.Backend, store ledger.Store, clk clock.Clock, logger *log.Logger, cfg Config) *Coordinator {
	return &Coordinator{otp: otp, backend: backend, store: store, clock: clk, logger: logger, cfg: cfg}
}

// Issue 为 ref 签发一次性验证码并返回明文（经短信下发给买家）
func (c *Coordinator) Issue(ctx context.Context, ref string) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}
	otc := trade.OneTimeCode{
		Code:      code,
		Ref:       ref,
		ExpiresAt: c.clock.Now().Add(c.cfg.OTPTTL),
	}
	if err := c.otp.Put(ctx, otc); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	return code, nil
}

// Lock 校验验证码并锁定托管资金。码对上才消费并进入锁定流程；
// 码错时存储不动，用户拿正确的码重试仍然有效
func (c *Coordinator) Lock(ctx context.Context, ref, senderID, code string) (trade.EscrowRecord, error) {
	ok, err := c.otp.Claim(ctx, code, ref)
	if err != nil {
		return trade.EscrowRecord{}, fmt.Errorf("claim otp: %w", err)
	}
	if !ok {
		metrics.OTPVerifyTotal.WithLabelValues("rejected").Inc()
		c.append(ctx, ref, senderID, ledger.KindEscrowFailed, map[string]interface{}{
			"reason": "invalid_or_expired_otp",
		})
		return trade.EscrowRecord{}, trade.ErrInvalidOrExpiredCode
	}
	metrics.OTPVerifyTotal.WithLabelValues("ok").Inc()

	c.append(ctx, ref, senderID, ledger.KindEscrowPreparing, map[string]interface{}{
		"amount": c.cfg.Amount, "tokenId": c.cfg.TokenID,
	})

	// 审批窗口：给外部审批/风控留出介入时间
	if c.cfg.ApprovalDelay > 0 {
		if err := c.clock.Sleep(ctx, c.cfg.ApprovalDelay); err != nil {
			return trade.EscrowRecord{}, err
		}
	}

	txID, err := c.backend.Lock(ctx, ref, c.cfg.TokenID, c.cfg.Amount)
	if err != nil {
		metrics.EscrowLockTotal.WithLabelValues("failed").Inc()
		c.append(ctx, ref, senderID, ledger.KindEscrowFailed, map[string]interface{}{
			"error": err.Error(),
		})
		return trade.EscrowRecord{}, fmt.Errorf("%w: %v", trade.ErrTransferFailed, err)
	}

	metrics.EscrowLockTotal.WithLabelValues("ok").Inc()
	c.append(ctx, ref, senderID, ledger.KindEscrowCreated, map[string]interface{}{
		"amount": c.cfg.Amount, "tokenId": c.cfg.TokenID, "transactionId": txID,
	})
	return trade.EscrowRecord{Ref: ref, Amount: c.cfg.Amount, TokenID: c.cfg.TokenID, Locked: true}, nil
}

func (c *Coordinator) append(ctx context.Context, ref, senderID, kind string, payload map[string]interface{}) {
	_, err := c.store.Append(ctx, ledger.Event{
		Ref:      ref,
		Agent:    "escrow",
		Kind:     kind,
		SenderID: senderID,
		Payload:  ledger.MarshalPayload(payload),
	})
	if err != nil {
		// 账本写入失败不阻断资金流程，留日志排查
		c.logger.Error("ledger append failed", "kind", kind, "ref", ref, "error", err)
		return
	}
	metrics.LedgerAppendTotal.WithLabelValues(kind).Inc()
}
