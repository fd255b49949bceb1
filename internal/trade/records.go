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

package trade

import "time"

// OneTimeCode 一次性验证码：成功校验即消费，过期或已消费的码不可再次通过
type OneTimeCode struct {
	Code      string    `json:"code"`
	Ref       string    `json:"ref"`
	ExpiresAt time.Time `json:"expires_at"`
}

// EscrowRecord 托管记录：仅在 OTP 校验通过且锁定操作确认后产生
type EscrowRecord struct {
	Ref     string `json:"ref"`
	Amount  int64  `json:"amount"`
	TokenID string `json:"token_id"`
	Locked  bool   `json:"locked"`
}

// SettlementReceipt 结算回执：ContentHash 为回执正文的确定性摘要，
// 返回给双方作为防篡改凭证
type SettlementReceipt struct {
	Ref               string    `json:"ref"`
	SenderID          string    `json:"sender_id"`
	DeliveredWeightKg float64   `json:"delivered_weight_kg"`
	Grade             string    `json:"grade,omitempty"`
	Amount            int64     `json:"amount"`
	TransferID        string    `json:"transfer_id"`
	IssuedAt          time.Time `json:"issued_at"`
	ContentHash       string    `json:"content_hash"`
}
