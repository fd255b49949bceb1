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
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore 内存账本实现：开发与测试用。
// 通过 VisibilityLag 可以人为制造写后读延迟，复现镜像节点的索引滞后
type MemoryStore struct {
	mu            sync.RWMutex
	events        []Event
	visibleAt     []time.Time
	seq           int64
	VisibilityLag time.Duration // 写入后事件对 Query 不可见的时长，0 表示立即可见
	now           func() time.Time
}

// NewMemoryStore 创建内存账本
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// NewMemoryStoreWithLag 创建带索引延迟的内存账本；now 可注入（nil 用真实时间）
func NewMemoryStoreWithLag(lag time.Duration, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{VisibilityLag: lag, now: now}
}

// Append 追加事件，分配单调递增的 sequence 与共识时间
func (s *MemoryStore) Append(ctx context.Context, ev Event) (AppendAck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	ev.Sequence = s.seq
	ev.ConsensusTime = s.now()
	s.events = append(s.events, ev)
	s.visibleAt = append(s.visibleAt, s.now().Add(s.VisibilityLag))

	return AppendAck{TxID: "mem-" + uuid.New().String(), Sequence: ev.Sequence}, nil
}

// Query 按过滤条件倒序返回当前可见的事件
func (s *MemoryStore) Query(ctx context.Context, f Filter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	now := s.now()
	var out []Event
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if s.visibleAt[i].After(now) {
			continue
		}
		ev := s.events[i]
		if !matches(ev, f) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func matches(ev Event, f Filter) bool {
	if f.Ref != "" && ev.Ref != f.Ref && ev.PayloadString("ref") != f.Ref {
		return false
	}
	if f.Kind != "" && ev.Kind != f.Kind {
		return false
	}
	if f.SenderID != "" && ev.SenderID != f.SenderID && ev.PayloadString("msisdn") != f.SenderID {
		return false
	}
	if f.Crop != "" {
		if ev.PayloadString("crop") != f.Crop {
			return false
		}
	}
	if f.Location != "" {
		loc := strings.ToLower(ev.PayloadString("location"))
		if !strings.Contains(loc, strings.ToLower(f.Location)) {
			return false
		}
	}
	return true
}
