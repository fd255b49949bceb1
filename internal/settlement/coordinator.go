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

package settlement

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
	"agrotrack/pkg/proof"
)

// Config 结算参数
type Config struct {
	MinWeightKg   float64
	ApprovalDelay time.Duration
}

// Request 一次交付结算请求
type Request struct {
	Ref       string
	SenderID  string // 交付确认方
	Recipient string // 收款账户
	WeightKg  float64
	Grade     string
	OTP       string // 记录进审计，当前流程不校验交付码
	Amount    int64
}

// Coordinator 结算协调器：交付校验通过才放款，校验失败绝不触碰资金。
// 与托管同样的两阶段写法：settlement_preparing 先落账，
// 放款结果决定 settlement_complete 或 settlement_error
type Coordinator struct {
	backend transfer.Backend
	store   ledger.Store
	clock   clock.Clock
	logger  *log.Logger
	cfg     Config
}

func NewCoordinator(backend transfer.Backend, store ledger.Store, clk clock.Clock, logger *log.Logger, cfg Config) *Coordinator {
	return &Coordinator{backend: backend, store: store, clock: clk, logger: logger, cfg: cfg}
}

// Settle 处理一次交付确认。先记录交付，再做重量校验，
// 通过后放款并签发带内容哈希的回执
func (c *Coordinator) Settle(ctx context.Context, req Request) (trade.SettlementReceipt, error) {
	c.append(ctx, req.Ref, req.SenderID, ledger.KindDeliveryReceived, map[string]interface{}{
		"weightKg": req.WeightKg, "grade": req.Grade, "otp": req.OTP,
	})

	if req.WeightKg < c.cfg.MinWeightKg {
		metrics.SettlementTotal.WithLabelValues("rejected").Inc()
		c.append(ctx, req.Ref, req.SenderID, ledger.KindSettlementRejected, map[string]interface{}{
			"weightKg": req.WeightKg, "minWeightKg": c.cfg.MinWeightKg,
			"reason": "delivered weight below minimum",
		})
		return trade.SettlementReceipt{}, fmt.Errorf("%w: weight %.1fkg below minimum %.1fkg",
			trade.ErrDeliveryRejected, req.WeightKg, c.cfg.MinWeightKg)
	}

	c.append(ctx, req.Ref, req.SenderID, ledger.KindSettlementPreparing, map[string]interface{}{
		"recipient": req.Recipient, "amount": req.Amount,
	})

	if c.cfg.ApprovalDelay > 0 {
		if err := c.clock.Sleep(ctx, c.cfg.ApprovalDelay); err != nil {
			return trade.SettlementReceipt{}, err
		}
	}

	txID, err := c.backend.Release(ctx, req.Ref, req.Recipient, req.Amount)
	if err != nil {
		metrics.SettlementTotal.WithLabelValues("failed").Inc()
		c.append(ctx, req.Ref, req.SenderID, ledger.KindSettlementError, map[string]interface{}{
			"error": err.Error(),
		})
		return trade.SettlementReceipt{}, fmt.Errorf("%w: %v", trade.ErrTransferFailed, err)
	}

	issuedAt := c.clock.Now()
	receipt := trade.SettlementReceipt{
		Ref:               req.Ref,
		SenderID:          req.SenderID,
		DeliveredWeightKg: req.WeightKg,
		Grade:             req.Grade,
		Amount:            req.Amount,
		TransferID:        txID,
		IssuedAt:          issuedAt,
	}
	receipt.ContentHash = proof.ComputeReceiptHash(proof.ReceiptBody{
		Ref:        receipt.Ref,
		SenderID:   receipt.SenderID,
		WeightKg:   receipt.DeliveredWeightKg,
		Grade:      receipt.Grade,
		Amount:     receipt.Amount,
		TransferID: receipt.TransferID,
		IssuedAt:   receipt.IssuedAt,
	})

	metrics.SettlementTotal.WithLabelValues("ok").Inc()
	c.append(ctx, req.Ref, req.SenderID, ledger.KindSettlementComplete, map[string]interface{}{
		"receipt": receipt,
	})
	return receipt, nil
}

func (c *Coordinator) append(ctx context.Context, ref, senderID, kind string, payload map[string]interface{}) {
	_, err := c.store.Append(ctx, ledger.Event{
		Ref:      ref,
		Agent:    "settlement",
		Kind:     kind,
		SenderID: senderID,
		Payload:  ledger.MarshalPayload(payload),
	})
	if err != nil {
		c.logger.Error("ledger append failed", "kind", kind, "ref", ref, "error", err)
		return
	}
	metrics.LedgerAppendTotal.WithLabelValues(kind).Inc()
}
