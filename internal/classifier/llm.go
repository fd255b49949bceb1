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

package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"agrotrack/internal/trade"
	"agrotrack/pkg/log"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const classifyPrompt = `You classify SMS messages from agricultural traders into structured intents.

Allowed intent values, with example messages:

1. FARMER_REGISTER - farmer signs up
   "REGISTER John Kamau", "Register Mary Wanjiru"
   -> {"intent":"FARMER_REGISTER","farmerName":"John Kamau"}

2. OFFER_CREATE - farmer offers produce for sale
   "SELL 200kg maize Nakuru", "Maize 200kg Kisumu", "Beans 100kg Eldoret"
   -> {"intent":"OFFER_CREATE","crop":"maize","quantityKg":200,"location":"Nakuru"}

3. OFFER_ACCEPT - an offer is accepted with a 6-digit code
   "YES 483920", "Accept 483920", "ACCEPT TX816810 483920"
   -> {"intent":"OFFER_ACCEPT","ref":"LATEST","otp":"483920"}
   IMPORTANT: if no TX number is in the message, set ref to "LATEST".
   If the message contains TX followed by digits, use that as ref:
   -> {"intent":"OFFER_ACCEPT","ref":"TX816810","otp":"483920"}

4. DELIVERY_CONFIRM - delivery arrived
   "Delivered 198kg Grade B OTP 553904", "Delivered 200kg OTP 123456",
   "DELIVERED TX816810 198kg grade B 553904"
   -> {"intent":"DELIVERY_CONFIRM","ref":"LATEST","weightKg":198,"grade":"B","otp":"553904"}
   IMPORTANT: if no TX number is in the message, set ref to "LATEST".

5. PRICE_QUERY - asks for a crop price (location optional)
   "PRICE maize Nakuru", "Price for beans Eldoret", "How much is coffee"
   -> {"intent":"PRICE_QUERY","crop":"beans","location":"Eldoret"}

6. STATUS_CHECK - asks for transaction status
   "STATUS TX123456"
   -> {"intent":"STATUS_CHECK","ref":"TX123456"}

Rules:
- Crops must be one of: maize, beans, coffee, tea, rice. Grades: A, B, C.
- One-time codes are exactly 6 digits; a transaction reference is "TX" followed by 6 digits.
- Only use actual TX numbers from the message, never invent them; without one, ref is "LATEST".

Respond with ONLY a JSON object, no prose, no markdown fences:
{"intent":"...","farmerName":"...","crop":"...","quantityKg":0,"location":"...","when":"...","ref":"...","otp":"...","weightKg":0,"grade":"..."}
Omit fields that do not apply. If the message cannot be classified, respond with {"intent":"UNKNOWN"}.`

// LLMClassifier 基于 ChatModel 的意图分类器，模型输出经 schema 校验后才放行
type LLMClassifier struct {
	model  model.BaseChatModel
	logger *log.Logger
}

// Config LLM 分类器配置
type Config struct {
	Model   string
	APIKey  string
	BaseURL string
}

// NewLLMClassifier 创建 OpenAI ChatModel 分类器
func NewLLMClassifier(ctx context.Context, cfg Config, logger *log.Logger) (*LLMClassifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("classifier api_key not configured")
	}
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return &LLMClassifier{model: chatModel, logger: logger}, nil
}

func (c *LLMClassifier) Classify(ctx context.Context, senderID, text string) (trade.Intent, error) {
	resp, err := c.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(classifyPrompt),
		schema.UserMessage(text),
	})
	if err != nil {
		c.logger.Error("classify model call failed", "error", err)
		return trade.Intent{}, fmt.Errorf("%w: %v", trade.ErrParseFailure, err)
	}
	intent, err := decodeIntent(resp.Content, senderID)
	if err != nil {
		c.logger.Warn("classify output rejected", "error", err, "raw", resp.Content)
		return trade.Intent{}, err
	}
	return intent, nil
}

// decodeIntent 解析模型输出：剥掉可能的 markdown 代码块围栏，
// 反序列化后强制 schema 校验，畸形输出一律算解析失败
func decodeIntent(content, senderID string) (trade.Intent, error) {
	cleaned := stripFences(content)
	var intent trade.Intent
	if err := json.Unmarshal([]byte(cleaned), &intent); err != nil {
		return trade.Intent{}, fmt.Errorf("%w: decode: %v", trade.ErrParseFailure, err)
	}
	intent.SenderID = senderID
	if err := intent.Validate(); err != nil {
		return trade.Intent{}, fmt.Errorf("%w: %v", trade.ErrParseFailure, err)
	}
	return intent, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
