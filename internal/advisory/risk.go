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

package advisory

import (
	"context"
	"encoding/json"
	"time"

	"agrotrack/internal/ledger"
	"agrotrack/internal/trade"
	"agrotrack/pkg/log"
)

// 风险评分阈值与加分项
const (
	riskRejectThreshold = 0.7
	riskReviewThreshold = 0.4

	penaltyLowSuccessRate  = 0.3
	penaltyNoHistory       = 0.1
	penaltyOffSeason       = 0.2
	penaltyQuantityAnomaly = 0.2

	successRateFloor   = 0.7
	anomalyDeviation   = 0.5 // 相对历史均值的偏差上限
	anomalyMinSamples  = 3   // 偏差检测所需的最少历史报价数
	confidenceMinDeliv = 3   // 达到该交付数后置信度取高档
)

// 各作物的收获月份（1-12）；未列出的作物不做季节性判断
var cropSeasons = map[string][]time.Month{
	"maize":  {time.April, time.May, time.June, time.October, time.November, time.December},
	"beans":  {time.March, time.April, time.September, time.October},
	"coffee": {time.November, time.December, time.January, time.February, time.March},
}

// RiskAssessment 风险评估结果
type RiskAssessment struct {
	Score      float64  `json:"score"`
	Decision   string   `json:"decision"` // approve / review / reject
	Reasons    []string `json:"reasons,omitempty"`
	Confidence float64  `json:"confidence"`
}

const (
	DecisionApprove = "approve"
	DecisionReview  = "review"
	DecisionReject  = "reject"
)

// RiskScorer 基于账本历史给报价打风险分。
// 纯读操作：只查账本，不写任何事件
type RiskScorer struct {
	store  ledger.Store
	logger *log.Logger
	now    func() time.Time
}

func NewRiskScorer(store ledger.Store, logger *log.Logger) *RiskScorer {
	return &RiskScorer{store: store, logger: logger, now: time.Now}
}

// Assess 为一条 OFFER_CREATE 意图评分。加分项独立累计：
// 交付履约差或无历史、报价不在收获季、数量偏离历史均值过多
func (r *RiskScorer) Assess(ctx context.Context, intent trade.Intent) (RiskAssessment, error) {
	score := 0.0
	var reasons []string

	completed, rejected, err := r.deliveryCounts(ctx, intent.SenderID)
	if err != nil {
		return RiskAssessment{}, err
	}
	total := completed + rejected
	switch {
	case total == 0:
		score += penaltyNoHistory
		reasons = append(reasons, "no delivery history for sender")
	case float64(completed)/float64(total) < successRateFloor:
		score += penaltyLowSuccessRate
		reasons = append(reasons, "low historical delivery success rate")
	}

	if offSeason(intent.Crop, r.now()) {
		score += penaltyOffSeason
		reasons = append(reasons, "offer outside harvest season for "+intent.Crop)
	}

	anomalous, err := r.quantityAnomaly(ctx, intent)
	if err != nil {
		return RiskAssessment{}, err
	}
	if anomalous {
		score += penaltyQuantityAnomaly
		reasons = append(reasons, "quantity deviates from sender history")
	}

	decision := DecisionApprove
	if score > riskRejectThreshold {
		decision = DecisionReject
	} else if score > riskReviewThreshold {
		decision = DecisionReview
	}
	confidence := 0.6
	if total >= confidenceMinDeliv {
		confidence = 0.9
	}
	return RiskAssessment{Score: score, Decision: decision, Reasons: reasons, Confidence: confidence}, nil
}

func (r *RiskScorer) deliveryCounts(ctx context.Context, senderID string) (completed, rejected int, err error) {
	done, err := r.store.Query(ctx, ledger.Filter{Kind: ledger.KindSettlementComplete, SenderID: senderID})
	if err != nil {
		return 0, 0, err
	}
	failed, err := r.store.Query(ctx, ledger.Filter{Kind: ledger.KindSettlementRejected, SenderID: senderID})
	if err != nil {
		return 0, 0, err
	}
	return len(done), len(failed), nil
}

// quantityAnomaly 对比本次数量与该发送方同作物历史报价均值；
// 历史不足 anomalyMinSamples 条时不触发
func (r *RiskScorer) quantityAnomaly(ctx context.Context, intent trade.Intent) (bool, error) {
	events, err := r.store.Query(ctx, ledger.Filter{Kind: ledger.KindParsedIntent, SenderID: intent.SenderID})
	if err != nil {
		return false, err
	}
	var quantities []float64
	for _, ev := range events {
		prior, ok := parsedOffer(ev)
		if !ok || prior.Crop != intent.Crop {
			continue
		}
		if prior.QuantityKg > 0 {
			quantities = append(quantities, prior.QuantityKg)
		}
	}
	if len(quantities) < anomalyMinSamples {
		return false, nil
	}
	sum := 0.0
	for _, q := range quantities {
		sum += q
	}
	avg := sum / float64(len(quantities))
	if avg == 0 {
		return false, nil
	}
	dev := (intent.QuantityKg - avg) / avg
	if dev < 0 {
		dev = -dev
	}
	return dev > anomalyDeviation, nil
}

// parsedOffer 从 parsed_intent 事件载荷里取出历史报价意图
func parsedOffer(ev ledger.Event) (trade.Intent, bool) {
	raw := ev.PayloadMap()["parsed"]
	if raw == nil {
		return trade.Intent{}, false
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return trade.Intent{}, false
	}
	var intent trade.Intent
	if err := json.Unmarshal(data, &intent); err != nil {
		return trade.Intent{}, false
	}
	if intent.Kind != trade.KindCreateOffer {
		return trade.Intent{}, false
	}
	return intent, true
}

func offSeason(crop string, at time.Time) bool {
	months, ok := cropSeasons[crop]
	if !ok {
		return false
	}
	m := at.Month()
	for _, s := range months {
		if s == m {
			return false
		}
	}
	return true
}
