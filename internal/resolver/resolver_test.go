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
	"testing"
	"time"

	"agrotrack/internal/ledger"
	"agrotrack/internal/trade"
	"agrotrack/pkg/clock"
	"agrotrack/pkg/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sender = "+254700000001"

func newResolver(t *testing.T, store ledger.Store, clk clock.Clock) *Resolver {
	t.Helper()
	logger, err := log.NewLogger(nil)
	require.NoError(t, err)
	return New(store, clk, logger, Config{
		Grace:      2 * time.Second,
		Attempts:   3,
		Backoff:    500 * time.Millisecond,
		QueryLimit: 100,
	})
}

func appendParsedOffer(t *testing.T, s ledger.Store, ref string) {
	t.Helper()
	_, err := s.Append(context.Background(), ledger.Event{
		Ref: ref, Kind: ledger.KindParsedIntent, SenderID: sender,
		Payload: ledger.MarshalPayload(map[string]interface{}{
			"parsed": map[string]interface{}{"intent": "OFFER_CREATE", "msisdn": sender, "crop": "maize"},
		}),
	})
	require.NoError(t, err)
}

func TestResolveLatestPicksNewest(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	s := ledger.NewMemoryStore()
	appendParsedOffer(t, s, "TX000001")
	appendParsedOffer(t, s, "TX000002")

	r := newResolver(t, s, clk)
	ref, err := r.Resolve(context.Background(), ledger.Filter{Kind: ledger.KindParsedIntent},
		MatchParsedIntent(trade.KindCreateOffer))
	require.NoError(t, err)
	assert.Equal(t, "TX000002", ref)
}

func TestResolveWaitsOutVisibilityLag(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	// 事件写入后 2 秒才可见，宽限窗口应扛住这个滞后
	s := ledger.NewMemoryStoreWithLag(2*time.Second, clk.Now)
	appendParsedOffer(t, s, "TX000007")

	events, err := s.Query(context.Background(), ledger.Filter{Kind: ledger.KindParsedIntent})
	require.NoError(t, err)
	require.Empty(t, events, "event must start out invisible")

	r := newResolver(t, s, clk)
	ref, err := r.Resolve(context.Background(), ledger.Filter{Kind: ledger.KindParsedIntent},
		MatchParsedIntent(trade.KindCreateOffer))
	require.NoError(t, err)
	assert.Equal(t, "TX000007", ref)
}

func TestResolveExhaustsAndFails(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	s := ledger.NewMemoryStore()

	r := newResolver(t, s, clk)
	_, err := r.Resolve(context.Background(), ledger.Filter{Kind: ledger.KindParsedIntent},
		MatchParsedIntent(trade.KindCreateOffer))
	assert.ErrorIs(t, err, trade.ErrRefUnresolved)

	// 宽限 + 两次退避（递增），随后放弃
	require.Len(t, clk.Slept(), 3)
	assert.Equal(t, 2*time.Second, clk.Slept()[0])
	assert.Equal(t, 500*time.Millisecond, clk.Slept()[1])
	assert.Equal(t, 1*time.Second, clk.Slept()[2])
}

func TestResolveSkipsNonMatching(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	s := ledger.NewMemoryStore()
	appendParsedOffer(t, s, "TX000001")
	// 更新的事件意图不匹配，不能被当成最近报价
	_, err := s.Append(context.Background(), ledger.Event{
		Ref: "TX000002", Kind: ledger.KindParsedIntent, SenderID: sender,
		Payload: ledger.MarshalPayload(map[string]interface{}{
			"parsed": map[string]interface{}{"intent": "PRICE_QUERY", "msisdn": sender},
		}),
	})
	require.NoError(t, err)

	r := newResolver(t, s, clk)
	ref, err := r.Resolve(context.Background(), ledger.Filter{Kind: ledger.KindParsedIntent},
		MatchParsedIntent(trade.KindCreateOffer))
	require.NoError(t, err)
	assert.Equal(t, "TX000001", ref)
}
