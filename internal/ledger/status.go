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

// 交易状态，由同一 ref 下的事件流推导得出
const (
	StatusCompleted    = "completed"
	StatusEscrowLocked = "escrow-locked"
	StatusPending      = "pending"
	StatusUnknown      = "unknown"
)

// DeriveStatus 从事件流推导交易状态。事件之间没有先后保证（最终一致读取），
// 按状态优先级判断：结清 > 托管锁定 > 已解析 > 未知
func DeriveStatus(events []Event) string {
	status := StatusUnknown
	for _, ev := range events {
		switch ev.Kind {
		case KindSettlementComplete:
			return StatusCompleted
		case KindEscrowCreated:
			status = StatusEscrowLocked
		case KindParsedIntent, KindDecision:
			if status == StatusUnknown {
				status = StatusPending
			}
		}
	}
	return status
}
