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

package sms

import (
	"context"
	"sync"

	"agrotrack/pkg/log"
)

// StubGateway 只打日志并记录消息，开发与测试用
type StubGateway struct {
	mu     sync.Mutex
	sent   []Message
	logger *log.Logger

	// FailWith 非空时 Send 返回该错误
	FailWith error
}

// Message 一条已发送记录
type Message struct {
	To   string
	Body string
}

func NewStubGateway(logger *log.Logger) *StubGateway {
	return &StubGateway{logger: logger}
}

func (g *StubGateway) Send(_ context.Context, to, message string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailWith != nil {
		return g.FailWith
	}
	g.sent = append(g.sent, Message{To: to, Body: message})
	g.logger.Info("sms send", "to", to, "body", message)
	return nil
}

// Sent 返回已发送消息副本
func (g *StubGateway) Sent() []Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Message(nil), g.sent...)
}
