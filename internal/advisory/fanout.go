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
	"sync"

	"agrotrack/internal/trade"
	"agrotrack/pkg/log"
)

// Advice 风险与价格的合并结果
type Advice struct {
	Risk  RiskAssessment
	Price PriceAdvice
}

// Fanout 并发执行风险评估与价格建议，两者互不依赖。
// 等两边都返回后合并；任一侧出错则整体出错（报价裁决不能只凭一半信息）
type Fanout struct {
	risk   *RiskScorer
	market *MarketAdvisor
	logger *log.Logger
}

func NewFanout(risk *RiskScorer, market *MarketAdvisor, logger *log.Logger) *Fanout {
	return &Fanout{risk: risk, market: market, logger: logger}
}

func (f *Fanout) Evaluate(ctx context.Context, intent trade.Intent) (Advice, error) {
	var (
		wg       sync.WaitGroup
		risk     RiskAssessment
		price    PriceAdvice
		riskErr  error
		priceErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		risk, riskErr = f.risk.Assess(ctx, intent)
	}()
	go func() {
		defer wg.Done()
		price, priceErr = f.market.Advise(ctx, intent.Crop, intent.Location)
	}()
	wg.Wait()

	if riskErr != nil {
		return Advice{}, riskErr
	}
	if priceErr != nil {
		return Advice{}, priceErr
	}
	return Advice{Risk: risk, Price: price}, nil
}

// Price 单独取价格建议（价格查询用不到风险侧）
func (f *Fanout) Price(ctx context.Context, crop, location string) (PriceAdvice, error) {
	return f.market.Advise(ctx, crop, location)
}
