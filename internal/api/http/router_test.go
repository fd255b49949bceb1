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
	"bytes"
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrotrack/internal/advisory"
	"agrotrack/internal/api/http/middleware"
	"agrotrack/internal/classifier"
	"agrotrack/internal/escrow"
	"agrotrack/internal/ledger"
	"agrotrack/internal/orchestrator"
	"agrotrack/internal/resolver"
	"agrotrack/internal/settlement"
	"agrotrack/internal/sms"
	"agrotrack/internal/transfer"
	"agrotrack/pkg/clock"
	"agrotrack/pkg/log"
)

func buildRouterForTest(t *testing.T, rl RateLimit) (*server.Hertz, *ledger.MemoryStore) {
	t.Helper()
	logger, err := log.NewLogger(nil)
	require.NoError(t, err)

	clk := clock.NewFake(time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC))
	store := ledger.NewMemoryStore()
	backend := transfer.NewSimBackend()

	esc := escrow.NewCoordinator(escrow.NewMemoryOTPStore(clk), backend, store, clk, logger, escrow.Config{
		TokenID: "AGRO", Amount: 10000, OTPTTL: 5 * time.Minute,
	})
	stl := settlement.NewCoordinator(backend, store, clk, logger, settlement.Config{MinWeightKg: 50})
	res := resolver.New(store, clk, logger, resolver.Config{Attempts: 1, QueryLimit: 100})
	fan := advisory.NewFanout(advisory.NewRiskScorer(store, logger), advisory.NewMarketAdvisor(store, logger), logger)
	orch := orchestrator.New(classifier.NewRuleClassifier(), store, fan, esc, stl, res,
		sms.NewStubGateway(logger), clk, logger, orchestrator.Config{EscrowAmount: 10000})

	r := NewRouter(NewHandler(orch, store, logger, "agrotrack-trades"), middleware.NewMiddleware())
	r.SetRateLimit(rl)
	return r.Build(":0"), store
}

func postForm(s *server.Hertz, path string, form url.Values) *ut.ResponseRecorder {
	body := []byte(form.Encode())
	return ut.PerformRequest(s.Engine, "POST", path,
		&ut.Body{Body: bytes.NewReader(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/x-www-form-urlencoded"})
}

func TestHealthCheck(t *testing.T) {
	s, _ := buildRouterForTest(t, RateLimit{})
	w := ut.PerformRequest(s.Engine, "GET", "/health", nil)
	assert.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Body()), `"status":"ok"`)
}

func TestInboundSMSAcceptedAndProcessed(t *testing.T) {
	s, store := buildRouterForTest(t, RateLimit{})

	w := postForm(s, "/webhook/sms", url.Values{
		"from": {"+254700000001"},
		"text": {"SELL 200kg maize Nakuru"},
	})
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Body()), `"received"`)

	// 编排在后台进行，等事件落账
	assert.Eventually(t, func() bool {
		events, err := store.Query(context.Background(), ledger.Filter{Kind: ledger.KindParsedIntent})
		return err == nil && len(events) == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestInboundSMSMissingFields(t *testing.T) {
	s, _ := buildRouterForTest(t, RateLimit{})
	w := postForm(s, "/webhook/sms", url.Values{"from": {"+254700000001"}})
	assert.Equal(t, 400, w.Result().StatusCode())
}

func TestProofEndpoint(t *testing.T) {
	s, store := buildRouterForTest(t, RateLimit{})

	w := ut.PerformRequest(s.Engine, "GET", "/api/proof/TX999999", nil)
	assert.Equal(t, 404, w.Result().StatusCode())

	_, err := store.Append(context.Background(), ledger.Event{
		Ref: "TX123456", Kind: ledger.KindEscrowCreated, SenderID: "+254700000002",
	})
	require.NoError(t, err)

	w = ut.PerformRequest(s.Engine, "GET", "/api/proof/TX123456", nil)
	require.Equal(t, 200, w.Result().StatusCode())
	body := string(w.Result().Body())
	assert.Contains(t, body, `"status":"escrow-locked"`)
	assert.Contains(t, body, `"total":1`)
}

func TestMessagesEndpointFilters(t *testing.T) {
	s, store := buildRouterForTest(t, RateLimit{})
	for _, ref := range []string{"TX000001", "TX000002"} {
		_, err := store.Append(context.Background(), ledger.Event{
			Ref: ref, Kind: ledger.KindParsedIntent, SenderID: "+254700000001",
		})
		require.NoError(t, err)
	}

	w := ut.PerformRequest(s.Engine, "GET", "/api/messages?ref=TX000001", nil)
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Body()), `"total":1`)

	w = ut.PerformRequest(s.Engine, "GET", "/api/messages?kind=parsed_intent", nil)
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Body()), `"total":2`)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := buildRouterForTest(t, RateLimit{})
	w := ut.PerformRequest(s.Engine, "GET", "/metrics", nil)
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Body()), "agrotrack_")
}

func TestJWTLoginValidatesOperatorCredentials(t *testing.T) {
	logger, err := log.NewLogger(nil)
	require.NoError(t, err)

	clk := clock.NewFake(time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC))
	store := ledger.NewMemoryStore()
	backend := transfer.NewSimBackend()
	esc := escrow.NewCoordinator(escrow.NewMemoryOTPStore(clk), backend, store, clk, logger, escrow.Config{
		TokenID: "AGRO", Amount: 10000, OTPTTL: 5 * time.Minute,
	})
	stl := settlement.NewCoordinator(backend, store, clk, logger, settlement.Config{MinWeightKg: 50})
	res := resolver.New(store, clk, logger, resolver.Config{Attempts: 1, QueryLimit: 100})
	fan := advisory.NewFanout(advisory.NewRiskScorer(store, logger), advisory.NewMarketAdvisor(store, logger), logger)
	orch := orchestrator.New(classifier.NewRuleClassifier(), store, fan, esc, stl, res,
		sms.NewStubGateway(logger), clk, logger, orchestrator.Config{EscrowAmount: 10000})

	r := NewRouter(NewHandler(orch, store, logger, "agrotrack-trades"), middleware.NewMiddleware())
	auth, err := middleware.NewJWTAuth([]byte("test-signing-key"),
		middleware.OperatorCredentials{Username: "operator", Password: "s3cret"},
		time.Hour, time.Hour)
	require.NoError(t, err)
	r.SetJWT(auth)
	s := r.Build(":0")

	postLogin := func(body string) *ut.ResponseRecorder {
		b := []byte(body)
		return ut.PerformRequest(s.Engine, "POST", "/api/login",
			&ut.Body{Body: bytes.NewReader(b), Len: len(b)},
			ut.Header{Key: "Content-Type", Value: "application/json"})
	}

	// 凭据不对不发 token
	w := postLogin(`{"username":"operator","password":"wrong"}`)
	assert.Equal(t, 401, w.Result().StatusCode())
	w = postLogin(`{"username":"intruder","password":"s3cret"}`)
	assert.Equal(t, 401, w.Result().StatusCode())

	w = postLogin(`{"username":"operator","password":"s3cret"}`)
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Body()), "token")

	// 没带 token 的只读接口被拒
	w = ut.PerformRequest(s.Engine, "GET", "/api/messages", nil)
	assert.Equal(t, 401, w.Result().StatusCode())

	// 空凭据的中间件直接拒绝创建
	_, err = middleware.NewJWTAuth([]byte("k"), middleware.OperatorCredentials{}, time.Hour, time.Hour)
	assert.Error(t, err)
}

func TestWebhookRateLimit(t *testing.T) {
	s, _ := buildRouterForTest(t, RateLimit{Enable: true, RPS: 1, Burst: 1})
	form := url.Values{"from": {"+254700000001"}, "text": {"PRICE maize"}}

	w := postForm(s, "/webhook/sms", form)
	assert.Equal(t, 200, w.Result().StatusCode())
	w = postForm(s, "/webhook/sms", form)
	assert.Equal(t, 429, w.Result().StatusCode())

	// 其他号码不受影响
	w = postForm(s, "/webhook/sms", url.Values{"from": {"+254700000099"}, "text": {"PRICE maize"}})
	assert.Equal(t, 200, w.Result().StatusCode())
}
