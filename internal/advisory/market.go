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

	"agrotrack/internal/ledger"
	"agrotrack/pkg/log"
)

// 价格来源层级：同地历史 → 同作物区域 → 基准价
const (
	SourceHistorical = "historical"
	SourceRegional   = "regional"
	SourceDefault    = "default"

	historicalMinSamples = 5
	regionalMinSamples   = 3
	regionalSpread       = 0.10
	defaultSpread        = 0.15
)

// 基准价（每公斤），市场无历史数据时的兜底
var defaultPrices = map[string]float64{
	"maize":  35,
	"beans":  50,
	"coffee": 120,
	"tea":    80,
	"rice":   60,
}

const fallbackPrice = 40

// PriceAdvice 价格建议
type PriceAdvice struct {
	Crop       string  `json:"crop"`
	Location   string  `json:"location,omitempty"`
	PricePerKg float64 `json:"pricePerKg"`
	MinPrice   float64 `json:"minPrice"`
	MaxPrice   float64 `json:"maxPrice"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
	Samples    int     `json:"samples"`
}

// MarketAdvisor 从账本中的历史价格分析推导建议价
type MarketAdvisor struct {
	store  ledger.Store
	logger *log.Logger
}

func NewMarketAdvisor(store ledger.Store, logger *log.Logger) *MarketAdvisor {
	return &MarketAdvisor{store: store, logger: logger}
}

// Advise 三级定价：该地该作物样本足够取历史均价，
// 不够则退到作物全区域均价，再不够用基准价
func (m *MarketAdvisor) Advise(ctx context.Context, crop, location string) (PriceAdvice, error) {
	if location != "" {
		local, err := m.prices(ctx, crop, location)
		if err != nil {
			return PriceAdvice{}, err
		}
		if len(local) >= historicalMinSamples {
			avg := mean(local)
			conf := float64(len(local)) / 10
			if conf > 0.95 {
				conf = 0.95
			}
			return PriceAdvice{
				Crop: crop, Location: location,
				PricePerKg: avg, MinPrice: minOf(local), MaxPrice: maxOf(local),
				Source: SourceHistorical, Confidence: conf, Samples: len(local),
			}, nil
		}
	}

	regional, err := m.prices(ctx, crop, "")
	if err != nil {
		return PriceAdvice{}, err
	}
	if len(regional) >= regionalMinSamples {
		avg := mean(regional)
		return PriceAdvice{
			Crop: crop, Location: location,
			PricePerKg: avg,
			MinPrice:   avg * (1 - regionalSpread),
			MaxPrice:   avg * (1 + regionalSpread),
			Source:     SourceRegional, Confidence: 0.6, Samples: len(regional),
		}, nil
	}

	base, ok := defaultPrices[crop]
	if !ok {
		base = fallbackPrice
	}
	return PriceAdvice{
		Crop: crop, Location: location,
		PricePerKg: base,
		MinPrice:   base * (1 - defaultSpread),
		MaxPrice:   base * (1 + defaultSpread),
		Source:     SourceDefault, Confidence: 0.5,
	}, nil
}

func (m *MarketAdvisor) prices(ctx context.Context, crop, location string) ([]float64, error) {
	events, err := m.store.Query(ctx, ledger.Filter{
		Kind:     ledger.KindPriceAnalysis,
		Crop:     crop,
		Location: location,
	})
	if err != nil {
		return nil, err
	}
	var out []float64
	for _, ev := range events {
		if p, ok := ev.PayloadFloat("pricePerKg"); ok && p > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func minOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
