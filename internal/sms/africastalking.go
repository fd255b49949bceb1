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
	"fmt"
	"time"

	"agrotrack/internal/trade"

	"github.com/go-resty/resty/v2"
)

// AfricasTalkingGateway 经 Africa's Talking 的 messaging API 发送短信
type AfricasTalkingGateway struct {
	client   *resty.Client
	username string
	sender   string
}

// ATConfig Africa's Talking 网关配置
type ATConfig struct {
	Username string
	APIKey   string
	Sender   string
	BaseURL  string // 留空用生产地址
}

func NewAfricasTalkingGateway(cfg ATConfig) *AfricasTalkingGateway {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.africastalking.com"
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetHeader("apiKey", cfg.APIKey).
		SetHeader("Accept", "application/json")
	return &AfricasTalkingGateway{client: client, username: cfg.Username, sender: cfg.Sender}
}

type atRecipient struct {
	Status string `json:"status"`
	Number string `json:"number"`
}

type atResponse struct {
	SMSMessageData struct {
		Recipients []atRecipient `json:"Recipients"`
	} `json:"SMSMessageData"`
}

func (g *AfricasTalkingGateway) Send(ctx context.Context, to, message string) error {
	var out atResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username": g.username,
			"to":       to,
			"message":  message,
			"from":     g.sender,
		}).
		SetResult(&out).
		Post("/version1/messaging")
	if err != nil {
		return fmt.Errorf("%w: %v", trade.ErrNotificationFailed, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: status %d", trade.ErrNotificationFailed, resp.StatusCode())
	}
	for _, r := range out.SMSMessageData.Recipients {
		if r.Status != "Success" {
			return fmt.Errorf("%w: recipient %s status %s", trade.ErrNotificationFailed, r.Number, r.Status)
		}
	}
	return nil
}
