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

package escrow

import (
	"context"
	"sync"

	"agrotrack/internal/trade"
	"agrotrack/pkg/clock"
)

// MemoryOTPStore 内存 OTP 存储：单实例部署用。
// 过期靠取出时惰性判断，不单独起清理协程
type MemoryOTPStore struct {
	mu    sync.Mutex
	codes map[string]trade.OneTimeCode
	clock clock.Clock
}

func NewMemoryOTPStore(clk clock.Clock) *MemoryOTPStore {
	return &MemoryOTPStore{codes: make(map[string]trade.OneTimeCode), clock: clk}
}

func (s *MemoryOTPStore) Put(_ context.Context, code trade.OneTimeCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code.Code] = code
	return nil
}

// Claim 查验并删除：码、ref、有效期都对上才消费；
// 码错不动存储，正确的码之后还能用。过期的码惰性清掉
func (s *MemoryOTPStore) Claim(_ context.Context, code, ref string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.codes[code]
	if !ok {
		return false, nil
	}
	if s.clock.Now().After(stored.ExpiresAt) {
		delete(s.codes, code)
		return false, nil
	}
	if stored.Ref != ref {
		return false, nil
	}
	delete(s.codes, code)
	return true, nil
}
