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

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// SimBackend 进程内模拟后端：开发与测试用。
// 记录每次调用，并可注入失败来验证调用方的错误路径
type SimBackend struct {
	mu       sync.Mutex
	locks    []SimCall
	releases []SimCall

	// FailLock / FailRelease 非空时对应操作返回该错误
	FailLock    error
	FailRelease error
}

// SimCall 一次后端调用的记录
type SimCall struct {
	Ref       string
	TokenID   string
	Recipient string
	Amount    int64
}

func NewSimBackend() *SimBackend {
	return &SimBackend{}
}

func (b *SimBackend) Lock(_ context.Context, ref, tokenID string, amount int64) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailLock != nil {
		return "", b.FailLock
	}
	b.locks = append(b.locks, SimCall{Ref: ref, TokenID: tokenID, Amount: amount})
	return "sim-lock-" + uuid.New().String(), nil
}

func (b *SimBackend) Release(_ context.Context, ref, recipient string, amount int64) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailRelease != nil {
		return "", b.FailRelease
	}
	b.releases = append(b.releases, SimCall{Ref: ref, Recipient: recipient, Amount: amount})
	return "sim-release-" + uuid.New().String(), nil
}

// Locks 返回已记录的锁定调用
func (b *SimBackend) Locks() []SimCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]SimCall(nil), b.locks...)
}

// Releases 返回已记录的放款调用
func (b *SimBackend) Releases() []SimCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]SimCall(nil), b.releases...)
}
