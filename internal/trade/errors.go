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

import "errors"

// 失败分类：编排层据此决定用户可见文案与审计事件；
// 除 ErrParseFailure 与 ErrNotificationFailed 外，每条失败路径都落账本
var (
	// ErrParseFailure 分类器无法产出合法意图（用户可见，仅分类器自身留审计）
	ErrParseFailure = errors.New("parse failure")
	// ErrRiskRejected 风险评分过高（用户可见，该 ref 终态）
	ErrRiskRejected = errors.New("risk rejected")
	// ErrInvalidOrExpiredCode OTP 不匹配/过期/已消费（用户可见，可重试）
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	// ErrRefUnresolved LATEST 在宽限窗口内无匹配（用户可见，可重试）
	ErrRefUnresolved = errors.New("ref unresolved")
	// ErrDeliveryRejected 交付校验未通过（用户可见，本次交付终态，ref 本身可再试）
	ErrDeliveryRejected = errors.New("delivery rejected")
	// ErrTransferFailed 外部转账后端失败（用户可见，与 OTP 失败严格区分，
	// 避免用户无谓地换码重试）
	ErrTransferFailed = errors.New("transfer failed")
	// ErrNotificationFailed 出站通知失败（仅记日志，不回滚已提交账本状态）
	ErrNotificationFailed = errors.New("notification failed")
)
