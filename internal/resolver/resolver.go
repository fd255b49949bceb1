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

package resolver

import (
	"context"
	"fmt"
	"time"

	"agrotrack/internal/ledger"
	"agrotrack/internal/trade"
	"agrotrack/pkg/clock"
	"agrotrack/pkg/log"
)

// Config 解析参数。账本读取是最终一致的：刚写入的事件可能尚未可见，
// 所以先等一个宽限窗口，再按退避重试有限次
type Config struct {
	Grace      time.Duration // 首次查询前的宽限等待
	Attempts   int           // 查询尝试次数
	Backoff    time.Duration // 相邻尝试间的基础退避
	QueryLimit int           // 单次查询的事件数上限
}

// Resolver 把 LATEST 哨兵解析为具体交易引用
type Resolver struct {
	store  ledger.Store
	clock  clock.Clock
	logger *log.Logger
	cfg    Config
}

func New(store ledger.Store, clk clock.Clock, logger *log.Logger, cfg Config) *Resolver {
	return &Resolver{store: store, clock: clk, logger: logger, cfg: cfg}
}

// Resolve 返回 filter 范围内、match 通过的最新事件的交易引用。
// 宽限窗口加退避重试都耗尽仍无匹配时返回 ErrRefUnresolved，
// 绝不猜测或返回部分匹配
func (r *Resolver) Resolve(ctx context.Context, filter ledger.Filter, match func(ledger.Event) bool) (string, error) {
	if filter.Limit == 0 {
		filter.Limit = r.cfg.QueryLimit
	}
	if r.cfg.Grace > 0 {
		if err := r.clock.Sleep(ctx, r.cfg.Grace); err != nil {
			return "", err
		}
	}

	attempts := r.cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		events, err := r.store.Query(ctx, filter)
		if err != nil {
			return "", fmt.Errorf("resolve latest: %w", err)
		}
		// 查询结果最新在前，第一个匹配即最近一笔
		for _, ev := range events {
			if ev.Ref == "" || !match(ev) {
				continue
			}
			return ev.Ref, nil
		}
		if attempt < attempts {
			if err := r.clock.Sleep(ctx, r.cfg.Backoff*time.Duration(attempt)); err != nil {
				return "", err
			}
		}
	}
	return "", trade.ErrRefUnresolved
}

// MatchKind 按事件类型匹配
func MatchKind(kind string) func(ledger.Event) bool {
	return func(ev ledger.Event) bool { return ev.Kind == kind }
}

// MatchParsedIntent 匹配载荷里解析意图为指定类型的 parsed_intent 事件
func MatchParsedIntent(kind trade.Kind) func(ledger.Event) bool {
	return func(ev ledger.Event) bool {
		if ev.Kind != ledger.KindParsedIntent {
			return false
		}
		parsed, ok := ev.PayloadMap()["parsed"].(map[string]interface{})
		if !ok {
			return false
		}
		intent, _ := parsed["intent"].(string)
		return intent == string(kind)
	}
}
