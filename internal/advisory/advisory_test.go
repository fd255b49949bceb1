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
	"testing"
	"time"

	"agrotrack/internal/ledger"
	"agrotrack/internal/trade"
	"agrotrack/pkg/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sender = "+254700000001"

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	logger, err := log.NewLogger(nil)
	require.NoError(t, err)
	return logger
}

// harvestTime 返回 maize 收获季内的固定时间
func harvestTime() time.Time {
	return time.Date(2026, time.May, 10, 9, 0, 0, 0, time.UTC)
}

func record(t *testing.T, s ledger.Store, kind, senderID string, payload map[string]interface{}) {
	t.Helper()
	_, err := s.Append(context.Background(), ledger.Event{
		Kind:     kind,
		SenderID: senderID,
		Payload:  ledger.MarshalPayload(payload),
	})
	require.NoError(t, err)
}

func newScorer(t *testing.T, s ledger.Store, at time.Time) *RiskScorer {
	r := NewRiskScorer(s, testLogger(t))
	r.now = func() time.Time { return at }
	return r
}

func offerIntent(qty float64) trade.Intent {
	return trade.Intent{
		Kind: trade.KindCreateOffer, SenderID: sender,
		Crop: "maize", QuantityKg: qty, Location: "Nakuru",
	}
}

func TestRiskNoHistory(t *testing.T) {
	s := ledger.NewMemoryStore()
	r := newScorer(t, s, harvestTime())

	out, err := r.Assess(context.Background(), offerIntent(200))
	require.NoError(t, err)
	assert.InDelta(t, 0.1, out.Score, 1e-9)
	assert.Equal(t, DecisionApprove, out.Decision)
	assert.Equal(t, 0.6, out.Confidence)
}

func TestRiskLowSuccessRate(t *testing.T) {
	s := ledger.NewMemoryStore()
	record(t, s, ledger.KindSettlementComplete, sender, nil)
	record(t, s, ledger.KindSettlementRejected, sender, nil)
	record(t, s, ledger.KindSettlementRejected, sender, nil)

	r := newScorer(t, s, harvestTime())
	out, err := r.Assess(context.Background(), offerIntent(200))
	require.NoError(t, err)
	assert.InDelta(t, 0.3, out.Score, 1e-9)
	assert.Equal(t, DecisionApprove, out.Decision)
}

func TestRiskAdditivePenaltiesReachReview(t *testing.T) {
	s := ledger.NewMemoryStore()
	// 同作物三条历史报价，均值 100kg
	for i := 0; i < 3; i++ {
		record(t, s, ledger.KindParsedIntent, sender, map[string]interface{}{
			"parsed": map[string]interface{}{
				"intent": "OFFER_CREATE", "msisdn": sender,
				"crop": "maize", "quantityKg": 100.0, "location": "Nakuru",
			},
		})
	}

	// 无交付历史(+0.1) + 淡季(+0.2) + 数量偏离(+0.2) = 0.5 → review
	offSeasonAt := time.Date(2026, time.August, 1, 9, 0, 0, 0, time.UTC)
	r := newScorer(t, s, offSeasonAt)
	out, err := r.Assess(context.Background(), offerIntent(500))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out.Score, 1e-9)
	assert.Equal(t, DecisionReview, out.Decision)
	assert.Len(t, out.Reasons, 3)
}

func TestRiskRejectOverThreshold(t *testing.T) {
	s := ledger.NewMemoryStore()
	record(t, s, ledger.KindSettlementComplete, sender, nil)
	record(t, s, ledger.KindSettlementRejected, sender, nil)
	record(t, s, ledger.KindSettlementRejected, sender, nil)
	for i := 0; i < 3; i++ {
		record(t, s, ledger.KindParsedIntent, sender, map[string]interface{}{
			"parsed": map[string]interface{}{
				"intent": "OFFER_CREATE", "msisdn": sender,
				"crop": "maize", "quantityKg": 100.0, "location": "Nakuru",
			},
		})
	}
	// 履约差(+0.3) + 淡季(+0.2) + 数量偏离(+0.2) = 0.7 边界取 review，再往上才 reject
	offSeasonAt := time.Date(2026, time.August, 1, 9, 0, 0, 0, time.UTC)
	r := newScorer(t, s, offSeasonAt)
	out, err := r.Assess(context.Background(), offerIntent(500))
	require.NoError(t, err)
	assert.InDelta(t, 0.7, out.Score, 1e-9)
	assert.Equal(t, DecisionReview, out.Decision)
}

func TestRiskConfidenceWithDeliveries(t *testing.T) {
	s := ledger.NewMemoryStore()
	for i := 0; i < 3; i++ {
		record(t, s, ledger.KindSettlementComplete, sender, nil)
	}
	r := newScorer(t, s, harvestTime())
	out, err := r.Assess(context.Background(), offerIntent(200))
	require.NoError(t, err)
	assert.Equal(t, 0.9, out.Confidence)
	assert.Equal(t, DecisionApprove, out.Decision)
	assert.Zero(t, out.Score)
}

func TestRiskConfidenceCountsRejectedDeliveries(t *testing.T) {
	s := ledger.NewMemoryStore()
	// 失败的交付也是交付历史：置信度看总量，不只看成功数
	for i := 0; i < 3; i++ {
		record(t, s, ledger.KindSettlementRejected, sender, nil)
	}
	r := newScorer(t, s, harvestTime())
	out, err := r.Assess(context.Background(), offerIntent(200))
	require.NoError(t, err)
	assert.Equal(t, 0.9, out.Confidence)
	assert.Equal(t, DecisionApprove, out.Decision)
	assert.InDelta(t, 0.3, out.Score, 1e-9)
}

func TestMarketTierEscalation(t *testing.T) {
	s := ledger.NewMemoryStore()
	m := NewMarketAdvisor(s, testLogger(t))

	// 无任何历史 → 基准价
	advice, err := m.Advise(context.Background(), "maize", "Nakuru")
	require.NoError(t, err)
	assert.Equal(t, SourceDefault, advice.Source)
	assert.Equal(t, 35.0, advice.PricePerKg)
	assert.Equal(t, 0.5, advice.Confidence)

	// 同作物 3 条（其他地点）→ 区域均价
	for _, p := range []float64{30, 35, 40} {
		record(t, s, ledger.KindPriceAnalysis, "+254700000009", map[string]interface{}{
			"crop": "maize", "location": "Eldoret", "pricePerKg": p,
		})
	}
	advice, err = m.Advise(context.Background(), "maize", "Nakuru")
	require.NoError(t, err)
	assert.Equal(t, SourceRegional, advice.Source)
	assert.InDelta(t, 35.0, advice.PricePerKg, 1e-9)
	assert.InDelta(t, 31.5, advice.MinPrice, 1e-9)
	assert.InDelta(t, 38.5, advice.MaxPrice, 1e-9)

	// 本地 5 条 → 历史均价
	for _, p := range []float64{36, 37, 38, 39, 40} {
		record(t, s, ledger.KindPriceAnalysis, "+254700000009", map[string]interface{}{
			"crop": "maize", "location": "Nakuru", "pricePerKg": p,
		})
	}
	advice, err = m.Advise(context.Background(), "maize", "Nakuru")
	require.NoError(t, err)
	assert.Equal(t, SourceHistorical, advice.Source)
	assert.InDelta(t, 38.0, advice.PricePerKg, 1e-9)
	assert.Equal(t, 36.0, advice.MinPrice)
	assert.Equal(t, 40.0, advice.MaxPrice)
	assert.Equal(t, 5, advice.Samples)
	assert.Equal(t, 0.5, advice.Confidence)
}

func TestMarketUnknownCropFallback(t *testing.T) {
	s := ledger.NewMemoryStore()
	m := NewMarketAdvisor(s, testLogger(t))
	advice, err := m.Advise(context.Background(), "sorghum", "")
	require.NoError(t, err)
	assert.Equal(t, SourceDefault, advice.Source)
	assert.Equal(t, 40.0, advice.PricePerKg)
}

func TestFanoutMergesBothSides(t *testing.T) {
	s := ledger.NewMemoryStore()
	logger := testLogger(t)
	f := NewFanout(newScorer(t, s, harvestTime()), NewMarketAdvisor(s, logger), logger)

	advice, err := f.Evaluate(context.Background(), offerIntent(200))
	require.NoError(t, err)
	assert.Equal(t, DecisionApprove, advice.Risk.Decision)
	assert.Equal(t, SourceDefault, advice.Price.Source)
}
