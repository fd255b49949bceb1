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

package orchestrator

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"runtime/debug"

	"agrotrack/internal/advisory"
	"agrotrack/internal/classifier"
	"agrotrack/internal/escrow"
	"agrotrack/internal/ledger"
	"agrotrack/internal/resolver"
	"agrotrack/internal/settlement"
	"agrotrack/internal/sms"
	"agrotrack/internal/trade"
	"agrotrack/pkg/clock"
	"agrotrack/pkg/log"
	"agrotrack/pkg/metrics"
)

// Config 编排参数
type Config struct {
	EscrowAmount int64 // 结算放款额与托管锁定额一致
}

// Orchestrator 消息编排器：一条入站短信从分类到回执的全程在这里串起来。
// 每条消息先拿到交易 ref，此后所有日志与账本事件都带着它
type Orchestrator struct {
	classifier classifier.Classifier
	store      ledger.Store
	advisory   *advisory.Fanout
	escrow     *escrow.Coordinator
	settlement *settlement.Coordinator
	resolver   *resolver.Resolver
	gateway    sms.Gateway
	clock      clock.Clock
	logger     *log.Logger
	cfg        Config
}

func New(
	cls classifier.Classifier,
	store ledger.Store,
	adv *advisory.Fanout,
	esc *escrow.Coordinator,
	stl *settlement.Coordinator,
	res *resolver.Resolver,
	gateway sms.Gateway,
	clk clock.Clock,
	logger *log.Logger,
	cfg Config,
) *Orchestrator {
	return &Orchestrator{
		classifier: cls, store: store, advisory: adv,
		escrow: esc, settlement: stl, resolver: res,
		gateway: gateway, clock: clk, logger: logger, cfg: cfg,
	}
}

// Handle 处理一条入站短信：生成 ref、分类、分发、回短信。
// 返回值为回给用户的文案；处理错误同样会折算成文案发出去，
// 单条消息的 panic 只打日志，不拖垮进程
func (o *Orchestrator) Handle(ctx context.Context, senderID, text string) (reply string) {
	ref, err := NewRef()
	if err != nil {
		o.logger.Error("generate ref failed", "error", err)
		return msgInternalError
	}
	logger := o.logger.WithRef(ref)
	start := o.clock.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panic", "panic", r, "stack", string(debug.Stack()))
			reply = msgInternalError
			o.notify(ctx, logger, senderID, reply)
		}
	}()

	tctx := trade.Context{SenderID: senderID, Ref: ref, CreatedAt: start}

	intent, err := o.classifier.Classify(ctx, senderID, text)
	if err != nil {
		metrics.MessageTotal.WithLabelValues("parse_error").Inc()
		o.append(ctx, logger, ref, senderID, ledger.KindParseError, map[string]interface{}{
			"raw": text, "error": err.Error(),
		})
		reply = msgCannotUnderstand
		o.notify(ctx, logger, senderID, reply)
		return reply
	}

	metrics.MessageTotal.WithLabelValues(string(intent.Kind)).Inc()
	o.append(ctx, logger, ref, senderID, ledger.KindParsedIntent, map[string]interface{}{
		"raw": text, "parsed": intent,
	})

	reply, err = o.dispatch(ctx, logger, tctx, intent)
	if err != nil {
		logger.Warn("handle failed", "intent", intent.Kind, "error", err)
		reply = userMessage(err)
	}
	metrics.HandleDuration.WithLabelValues(string(intent.Kind)).Observe(o.clock.Now().Sub(start).Seconds())

	o.notify(ctx, logger, senderID, reply)
	return reply
}

func (o *Orchestrator) dispatch(ctx context.Context, logger *log.Logger, tctx trade.Context, intent trade.Intent) (string, error) {
	switch intent.Kind {
	case trade.KindRegisterFarmer:
		return o.handleRegister(ctx, logger, tctx, intent)
	case trade.KindCreateOffer:
		return o.handleOffer(ctx, logger, tctx, intent)
	case trade.KindAcceptOffer:
		return o.handleAccept(ctx, logger, tctx, intent)
	case trade.KindConfirmDelivery:
		return o.handleDelivery(ctx, logger, tctx, intent)
	case trade.KindQueryPrice:
		return o.handlePrice(ctx, logger, tctx, intent)
	case trade.KindCheckStatus:
		return o.handleStatus(ctx, intent)
	default:
		return "", fmt.Errorf("%w: unhandled intent %q", trade.ErrParseFailure, intent.Kind)
	}
}

func (o *Orchestrator) handleRegister(ctx context.Context, logger *log.Logger, tctx trade.Context, intent trade.Intent) (string, error) {
	o.append(ctx, logger, tctx.Ref, tctx.SenderID, ledger.KindFarmerRegistered, map[string]interface{}{
		"name": intent.FarmerName,
	})
	return fmt.Sprintf("Welcome %s! You are registered. Send SELL <qty>kg <crop> <location> to make an offer.", intent.FarmerName), nil
}

func (o *Orchestrator) handleOffer(ctx context.Context, logger *log.Logger, tctx trade.Context, intent trade.Intent) (string, error) {
	advice, err := o.advisory.Evaluate(ctx, intent)
	if err != nil {
		return "", err
	}
	o.append(ctx, logger, tctx.Ref, tctx.SenderID, ledger.KindDecision, map[string]interface{}{
		"decision": advice.Risk.Decision, "score": advice.Risk.Score,
		"reasons": advice.Risk.Reasons, "confidence": advice.Risk.Confidence,
	})
	o.append(ctx, logger, tctx.Ref, tctx.SenderID, ledger.KindPriceAnalysis, map[string]interface{}{
		"crop": intent.Crop, "location": intent.Location,
		"pricePerKg": advice.Price.PricePerKg, "source": advice.Price.Source,
		"confidence": advice.Price.Confidence,
	})

	if advice.Risk.Decision == advisory.DecisionReject {
		return "", trade.ErrRiskRejected
	}

	code, err := o.escrow.Issue(ctx, tctx.Ref)
	if err != nil {
		return "", err
	}
	reply := fmt.Sprintf("Offer %s recorded: %.0fkg %s at ~%.0f/kg (%s). Buyer confirms with: ACCEPT %s %s",
		tctx.Ref, intent.QuantityKg, intent.Crop, advice.Price.PricePerKg, advice.Price.Source, tctx.Ref, code)
	if advice.Risk.Decision == advisory.DecisionReview {
		reply += ". Note: offer flagged for review."
	}
	return reply, nil
}

func (o *Orchestrator) handleAccept(ctx context.Context, logger *log.Logger, tctx trade.Context, intent trade.Intent) (string, error) {
	ref := intent.Ref
	if ref == trade.RefLatest {
		var err error
		// LATEST 只在本人的报价里找，谁发的消息解析谁的最近一笔
		ref, err = o.resolver.Resolve(ctx,
			ledger.Filter{Kind: ledger.KindParsedIntent, SenderID: tctx.SenderID},
			resolver.MatchParsedIntent(trade.KindCreateOffer))
		if err != nil {
			o.append(ctx, logger, tctx.Ref, tctx.SenderID, ledger.KindEscrowError, map[string]interface{}{
				"reason": "ref_unresolved",
			})
			return "", err
		}
		logger.Info("resolved latest ref", "resolved", ref)
	}

	if _, err := o.escrow.Lock(ctx, ref, tctx.SenderID, intent.OTP); err != nil {
		return "", err
	}
	return fmt.Sprintf("Escrow locked for %s. Funds held until delivery is confirmed with DELIVERED %s <weight>kg <code>.", ref, ref), nil
}

func (o *Orchestrator) handleDelivery(ctx context.Context, logger *log.Logger, tctx trade.Context, intent trade.Intent) (string, error) {
	ref := intent.Ref
	if ref == trade.RefLatest {
		var err error
		// 同样按发送方过滤：只解析本人名下最近一笔已锁定的托管
		ref, err = o.resolver.Resolve(ctx,
			ledger.Filter{Kind: ledger.KindEscrowCreated, SenderID: tctx.SenderID},
			resolver.MatchKind(ledger.KindEscrowCreated))
		if err != nil {
			o.append(ctx, logger, tctx.Ref, tctx.SenderID, ledger.KindSettlementError, map[string]interface{}{
				"reason": "ref_unresolved",
			})
			return "", err
		}
		logger.Info("resolved latest ref", "resolved", ref)
	}

	receipt, err := o.settlement.Settle(ctx, settlement.Request{
		Ref:       ref,
		SenderID:  tctx.SenderID,
		Recipient: o.offerCreator(ctx, ref, tctx.SenderID),
		WeightKg:  intent.WeightKg,
		Grade:     intent.Grade,
		OTP:       intent.OTP,
		Amount:    o.cfg.EscrowAmount,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Settlement complete for %s: %.0fkg delivered, %d released. Receipt %s", ref, receipt.DeliveredWeightKg, receipt.Amount, shortHash(receipt.ContentHash)), nil
}

func (o *Orchestrator) handlePrice(ctx context.Context, logger *log.Logger, tctx trade.Context, intent trade.Intent) (string, error) {
	advice, err := o.advisory.Price(ctx, intent.Crop, intent.Location)
	if err != nil {
		return "", err
	}
	o.append(ctx, logger, tctx.Ref, tctx.SenderID, ledger.KindPriceAnalysis, map[string]interface{}{
		"crop": intent.Crop, "location": intent.Location,
		"pricePerKg": advice.PricePerKg, "source": advice.Source,
		"confidence": advice.Confidence,
	})
	where := intent.Location
	if where == "" {
		where = "all regions"
	}
	return fmt.Sprintf("%s in %s: ~%.0f/kg (range %.0f-%.0f, %s data)", intent.Crop, where, advice.PricePerKg, advice.MinPrice, advice.MaxPrice, advice.Source), nil
}

func (o *Orchestrator) handleStatus(ctx context.Context, intent trade.Intent) (string, error) {
	events, err := o.store.Query(ctx, ledger.Filter{Ref: intent.Ref})
	if err != nil {
		return "", err
	}
	status := ledger.DeriveStatus(events)
	return fmt.Sprintf("Transaction %s: %s (%d events)", intent.Ref, status, len(events)), nil
}

// offerCreator 找到 ref 对应报价的发起方作为收款账户；
// 找不到时退回交付确认方自身
func (o *Orchestrator) offerCreator(ctx context.Context, ref, fallback string) string {
	events, err := o.store.Query(ctx, ledger.Filter{Ref: ref, Kind: ledger.KindParsedIntent})
	if err != nil {
		return fallback
	}
	for _, ev := range events {
		if resolver.MatchParsedIntent(trade.KindCreateOffer)(ev) {
			if ev.SenderID != "" {
				return ev.SenderID
			}
		}
	}
	return fallback
}

func (o *Orchestrator) append(ctx context.Context, logger *log.Logger, ref, senderID, kind string, payload map[string]interface{}) {
	_, err := o.store.Append(ctx, ledger.Event{
		Ref:      ref,
		Agent:    "orchestrator",
		Kind:     kind,
		SenderID: senderID,
		Payload:  ledger.MarshalPayload(payload),
	})
	if err != nil {
		logger.Error("ledger append failed", "kind", kind, "error", err)
		return
	}
	metrics.LedgerAppendTotal.WithLabelValues(kind).Inc()
}

func (o *Orchestrator) notify(ctx context.Context, logger *log.Logger, to, message string) {
	if message == "" {
		return
	}
	if err := o.gateway.Send(ctx, to, message); err != nil {
		// 通知失败不回滚任何已提交状态
		metrics.NotifyTotal.WithLabelValues("failed").Inc()
		logger.Error("notify failed", "to", to, "error", err)
		return
	}
	metrics.NotifyTotal.WithLabelValues("ok").Inc()
}

// NewRef 生成交易引用：TX 后跟 6 位数字
func NewRef() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TX%06d", n.Int64()), nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
