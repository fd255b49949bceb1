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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// mirrorStore 远端镜像账本：写入经网关提交，读取走 mirror 节点的 REST 查询。
// 镜像读取存在共识延迟，刚提交的事件可能要等一会儿才可见
type mirrorStore struct {
	client  *resty.Client
	topicID string
}

// NewMirrorStore 创建远端账本客户端；baseURL 指向 mirror 网关，topicID 为账本主题
func NewMirrorStore(baseURL, topicID string) Store {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second)
	return &mirrorStore{client: client, topicID: topicID}
}

type mirrorSubmitResp struct {
	TransactionID string `json:"transactionId"`
	SequenceNo    int64  `json:"sequenceNumber"`
}

type mirrorMessage struct {
	Message        string `json:"message"` // base64
	SequenceNumber int64  `json:"sequence_number"`
	ConsensusTime  string `json:"consensus_timestamp"`
}

type mirrorMessagesResp struct {
	Messages []mirrorMessage `json:"messages"`
}

func (s *mirrorStore) Append(ctx context.Context, ev Event) (AppendAck, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return AppendAck{}, err
	}
	var out mirrorSubmitResp
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"topicId": s.topicID,
			"message": base64.StdEncoding.EncodeToString(body),
		}).
		SetResult(&out).
		Post("/api/v1/topics/messages")
	if err != nil {
		return AppendAck{}, fmt.Errorf("submit topic message: %w", err)
	}
	if resp.IsError() {
		return AppendAck{}, fmt.Errorf("submit topic message: status %d", resp.StatusCode())
	}
	return AppendAck{TxID: out.TransactionID, Sequence: out.SequenceNo}, nil
}

func (s *mirrorStore) Query(ctx context.Context, f Filter) ([]Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	var out mirrorMessagesResp
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"limit": fmt.Sprintf("%d", limit),
			"order": "desc",
		}).
		SetResult(&out).
		Get(fmt.Sprintf("/api/v1/topics/%s/messages", s.topicID))
	if err != nil {
		return nil, fmt.Errorf("query topic messages: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("query topic messages: status %d", resp.StatusCode())
	}

	var events []Event
	for _, m := range out.Messages {
		raw, err := base64.StdEncoding.DecodeString(m.Message)
		if err != nil {
			continue // 跳过无法解码的消息，不让脏数据阻塞整条查询
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		ev.Sequence = m.SequenceNumber
		if t, err := time.Parse(time.RFC3339Nano, m.ConsensusTime); err == nil {
			ev.ConsensusTime = t
		}
		if matches(ev, f) {
			events = append(events, ev)
		}
		if len(events) >= limit {
			break
		}
	}
	return events, nil
}
