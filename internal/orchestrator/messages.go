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

package orchestrator

import (
	"errors"

	"agrotrack/internal/trade"
)

// 用户可见文案。失败类别与文案一一对应，
// 特别是转账失败与验证码失败必须说清楚，免得用户拿新码重试一个后端故障
const (
	msgInternalError    = "Sorry, something went wrong. Please try again later."
	msgCannotUnderstand = "Sorry, we could not understand your message. Try: SELL 200kg maize Nakuru"
	msgRiskRejected     = "Your offer could not be accepted at this time."
	msgInvalidCode      = "Invalid or expired code. Ask the seller to create a new offer."
	msgRefUnresolved    = "No recent matching transaction found. Please include the TX reference."
	msgDeliveryRejected = "Delivery could not be accepted: weight below the required minimum."
	msgTransferFailed   = "Payment system is temporarily unavailable. Your code was not the problem; please try again later."
)

// userMessage 把处理错误折算成发给用户的短信文案
func userMessage(err error) string {
	switch {
	case errors.Is(err, trade.ErrParseFailure):
		return msgCannotUnderstand
	case errors.Is(err, trade.ErrRiskRejected):
		return msgRiskRejected
	case errors.Is(err, trade.ErrInvalidOrExpiredCode):
		return msgInvalidCode
	case errors.Is(err, trade.ErrRefUnresolved):
		return msgRefUnresolved
	case errors.Is(err, trade.ErrDeliveryRejected):
		return msgDeliveryRejected
	case errors.Is(err, trade.ErrTransferFailed):
		return msgTransferFailed
	default:
		return msgInternalError
	}
}
