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
	"fmt"
	"time"

	"agrotrack/internal/trade"

	"github.com/go-resty/resty/v2"
)

// RESTBackend 通过托管网关的 HTTP 接口执行锁定与放款
type RESTBackend struct {
	client *resty.Client
}

func NewRESTBackend(baseURL, apiKey string) *RESTBackend {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second)
	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return &RESTBackend{client: client}
}

type txResp struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

func (b *RESTBackend) Lock(ctx context.Context, ref, tokenID string, amount int64) (string, error) {
	var out txResp
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"ref": ref, "tokenId": tokenID, "amount": amount}).
		SetResult(&out).
		Post("/v1/escrow/lock")
	if err != nil {
		return "", fmt.Errorf("%w: lock: %v", trade.ErrTransferFailed, err)
	}
	if resp.IsError() || out.Status == "failed" {
		return "", fmt.Errorf("%w: lock: status %d", trade.ErrTransferFailed, resp.StatusCode())
	}
	return out.TransactionID, nil
}

func (b *RESTBackend) Release(ctx context.Context, ref, recipient string, amount int64) (string, error) {
	var out txResp
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"ref": ref, "recipient": recipient, "amount": amount}).
		SetResult(&out).
		Post("/v1/escrow/release")
	if err != nil {
		return "", fmt.Errorf("%w: release: %v", trade.ErrTransferFailed, err)
	}
	if resp.IsError() || out.Status == "failed" {
		return "", fmt.Errorf("%w: release: status %d", trade.ErrTransferFailed, resp.StatusCode())
	}
	return out.TransactionID, nil
}
