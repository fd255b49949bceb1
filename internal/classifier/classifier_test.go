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

package classifier

import (
	"context"
	"testing"

	"agrotrack/internal/trade"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sender = "+254700000001"

func TestRuleClassifier(t *testing.T) {
	c := NewRuleClassifier()
	tests := []struct {
		name   string
		text   string
		expect trade.Intent
	}{
		{
			name:   "register",
			text:   "REGISTER John Mwangi",
			expect: trade.Intent{Kind: trade.KindRegisterFarmer, SenderID: sender, FarmerName: "John Mwangi"},
		},
		{
			name:   "sell offer",
			text:   "SELL 200kg maize Nakuru",
			expect: trade.Intent{Kind: trade.KindCreateOffer, SenderID: sender, Crop: "maize", QuantityKg: 200, Location: "Nakuru"},
		},
		{
			name:   "sell offer free form",
			text:   "Maize 200kg Kisumu",
			expect: trade.Intent{Kind: trade.KindCreateOffer, SenderID: sender, Crop: "maize", QuantityKg: 200, Location: "Kisumu"},
		},
		{
			name:   "accept with ref",
			text:   "ACCEPT TX123456 482913",
			expect: trade.Intent{Kind: trade.KindAcceptOffer, SenderID: sender, Ref: "TX123456", OTP: "482913"},
		},
		{
			name:   "accept latest lowercase",
			text:   "accept latest 482913",
			expect: trade.Intent{Kind: trade.KindAcceptOffer, SenderID: sender, Ref: "LATEST", OTP: "482913"},
		},
		{
			name:   "yes defaults to latest",
			text:   "YES 483920",
			expect: trade.Intent{Kind: trade.KindAcceptOffer, SenderID: sender, Ref: "LATEST", OTP: "483920"},
		},
		{
			name:   "accept without ref defaults to latest",
			text:   "Accept 483920",
			expect: trade.Intent{Kind: trade.KindAcceptOffer, SenderID: sender, Ref: "LATEST", OTP: "483920"},
		},
		{
			name:   "delivered with grade",
			text:   "DELIVERED TX123456 195kg grade A 482913",
			expect: trade.Intent{Kind: trade.KindConfirmDelivery, SenderID: sender, Ref: "TX123456", WeightKg: 195, Grade: "A", OTP: "482913"},
		},
		{
			name:   "delivered without grade",
			text:   "DELIVERED TX123456 195kg 482913",
			expect: trade.Intent{Kind: trade.KindConfirmDelivery, SenderID: sender, Ref: "TX123456", WeightKg: 195, OTP: "482913"},
		},
		{
			name:   "delivered free form defaults to latest",
			text:   "Delivered 198kg Grade B OTP 553904",
			expect: trade.Intent{Kind: trade.KindConfirmDelivery, SenderID: sender, Ref: "LATEST", WeightKg: 198, Grade: "B", OTP: "553904"},
		},
		{
			name:   "delivered free form without grade",
			text:   "Delivered 200kg OTP 123456",
			expect: trade.Intent{Kind: trade.KindConfirmDelivery, SenderID: sender, Ref: "LATEST", WeightKg: 200, OTP: "123456"},
		},
		{
			name:   "price with location",
			text:   "PRICE maize Nakuru",
			expect: trade.Intent{Kind: trade.KindQueryPrice, SenderID: sender, Crop: "maize", Location: "Nakuru"},
		},
		{
			name:   "price with filler word",
			text:   "Price for beans Eldoret",
			expect: trade.Intent{Kind: trade.KindQueryPrice, SenderID: sender, Crop: "beans", Location: "Eldoret"},
		},
		{
			name:   "price without location",
			text:   "PRICE coffee",
			expect: trade.Intent{Kind: trade.KindQueryPrice, SenderID: sender, Crop: "coffee"},
		},
		{
			name:   "status",
			text:   "STATUS TX123456",
			expect: trade.Intent{Kind: trade.KindCheckStatus, SenderID: sender, Ref: "TX123456"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent, err := c.Classify(context.Background(), sender, tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, intent)
		})
	}
}

func TestRuleClassifierRejects(t *testing.T) {
	c := NewRuleClassifier()
	for _, text := range []string{
		"hello there",
		"SELL maize",                  // 缺数量
		"SELL 200kg wheat Nakuru",     // 未知作物
		"ACCEPT TX123456 12",          // OTP 位数不对
		"STATUS LATEST",               // 状态查询不接受 LATEST
		"DELIVERED TX123456 0kg 482913",
	} {
		_, err := c.Classify(context.Background(), sender, text)
		assert.ErrorIs(t, err, trade.ErrParseFailure, "text=%q", text)
	}
}

func TestDecodeIntent(t *testing.T) {
	intent, err := decodeIntent(`{"intent":"OFFER_CREATE","crop":"maize","quantityKg":200,"location":"Nakuru"}`, sender)
	require.NoError(t, err)
	assert.Equal(t, trade.KindCreateOffer, intent.Kind)
	assert.Equal(t, sender, intent.SenderID)

	// 围栏包裹的输出也要能解析
	fenced := "```json\n{\"intent\":\"PRICE_QUERY\",\"crop\":\"tea\"}\n```"
	intent, err = decodeIntent(fenced, sender)
	require.NoError(t, err)
	assert.Equal(t, trade.KindQueryPrice, intent.Kind)

	// 模型自报 UNKNOWN 或输出垃圾都按解析失败处理
	_, err = decodeIntent(`{"intent":"UNKNOWN"}`, sender)
	assert.ErrorIs(t, err, trade.ErrParseFailure)
	_, err = decodeIntent("not json at all", sender)
	assert.ErrorIs(t, err, trade.ErrParseFailure)
}
