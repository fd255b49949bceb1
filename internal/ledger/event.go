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

package ledger

import (
	"context"
	"encoding/json"
	"time"
)

// 事件类型：每次有意义的状态迁移都以其中之一落账本
const (
	KindParsedIntent        = "parsed_intent"
	KindParseError          = "parse_error"
	KindDecision            = "decision"
	KindPriceAnalysis       = "price_analysis"
	KindFarmerRegistered    = "farmer_registered"
	KindEscrowPreparing     = "escrow_preparing"
	KindEscrowCreated       = "escrow_created"
	KindEscrowFailed        = "escrow_failed"
	KindEscrowError         = "escrow_error"
	KindDeliveryReceived    = "delivery_received"
	KindSettlementPreparing = "settlement_preparing"
	KindSettlementRejected  = "settlement_rejected"
	KindSettlementComplete  = "settlement_complete"
	KindSettlementError     = "settlement_error"
)

// Event 账本事件：只追加、外部持久化；写入后不保证立即可读（见 Store）
type Event struct {
	Ref           string          `json:"ref"`
	Agent         string          `json:"agent"`
	Kind          string          `json:"event"`
	SenderID      string          `json:"msisdn,omitempty"`
	Payload       json.RawMessage `json:"data,omitempty"`
	Sequence      int64           `json:"sequence_number,omitempty"`
	ConsensusTime time.Time       `json:"consensus_timestamp,omitempty"`
}

// PayloadMap 将 Payload 解码为 map，便于按字段过滤；解码失败返回 nil
func (e Event) PayloadMap() map[string]interface{} {
	if len(e.Payload) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(e.Payload, &m); err != nil {
		return nil
	}
	return m
}

// PayloadString 取 Payload 顶层字符串字段，不存在时返回空串
func (e Event) PayloadString(key string) string {
	m := e.PayloadMap()
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// PayloadFloat 取 Payload 顶层数值字段
func (e Event) PayloadFloat(key string) (float64, bool) {
	m := e.PayloadMap()
	if m == nil {
		return 0, false
	}
	f, ok := m[key].(float64)
	return f, ok
}

// AppendAck 写入确认
type AppendAck struct {
	TxID     string
	Sequence int64
}

// Filter 查询过滤条件；零值字段不参与过滤。Crop 与 Location 作用于 Payload
type Filter struct {
	Ref      string
	Kind     string
	SenderID string
	Crop     string
	Location string
	Limit    int
}

// Store 账本后端能力接口。Append 成功即表示事件已被后端接受，
// 但 Query 是最终一致读：刚写入的事件可能要再过一段索引延迟才可见，
// 调用方必须把"查不到"当成常规结果处理
type Store interface {
	Append(ctx context.Context, ev Event) (AppendAck, error)
	// Query 返回按时间倒序的事件（最新在前）
	Query(ctx context.Context, f Filter) ([]Event, error)
}

// MarshalPayload 序列化任意载荷；失败时返回空载荷而不是中断写入
func MarshalPayload(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
