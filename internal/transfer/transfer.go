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

package transfer

import "context"

// Backend 价值转移后端：锁定托管与结算放款两个动作。
// 实现必须把失败显式返回，调用方据此区分后端失败与校验失败
type Backend interface {
	// Lock 将 amount 的 tokenID 锁入 ref 对应的托管
	Lock(ctx context.Context, ref, tokenID string, amount int64) (txID string, err error)
	// Release 将托管放款给 recipient
	Release(ctx context.Context, ref, recipient string, amount int64) (txID string, err error)
}
