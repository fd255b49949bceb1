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
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"agrotrack/internal/trade"
)

// 关键字格式，大小写不敏感
var (
	registerRe = regexp.MustCompile(`(?i)^register\s+(.+)$`)
	sellRe     = regexp.MustCompile(`(?i)^sell\s+(\d+(?:\.\d+)?)\s*kg\s+(\w+)\s+(.+)$`)
	// 自由格式报价："Maize 200kg Kisumu"
	cropSellRe = regexp.MustCompile(`(?i)^(maize|beans|coffee|tea|rice)\s+(\d+(?:\.\d+)?)\s*kg\s+(.+)$`)
	acceptRe   = regexp.MustCompile(`(?i)^accept\s+(\S+)\s+(\d{6})$`)
	// 无 TX 号的确认："YES 483920" / "ACCEPT 483920"，ref 默认 LATEST
	yesRe     = regexp.MustCompile(`(?i)^(?:yes|accept)\s+(\d{6})$`)
	deliverRe = regexp.MustCompile(`(?i)^delivered\s+(\S+)\s+(\d+(?:\.\d+)?)\s*kg(?:\s+grade\s+([ABC]))?\s+(\d{6})$`)
	// 自由格式交付："Delivered 198kg Grade B OTP 553904"，ref 默认 LATEST
	deliverFreeRe = regexp.MustCompile(`(?i)^delivered\s+(\d+(?:\.\d+)?)\s*kg(?:\s+grade\s+([ABC]))?\s+(?:otp\s+)?(\d{6})$`)
	priceRe       = regexp.MustCompile(`(?i)^price\s+(?:for\s+)?(\w+)(?:\s+(.+))?$`)
	statusRe      = regexp.MustCompile(`(?i)^status\s+(\S+)$`)
)

// RuleClassifier 关键字分类器：无模型环境下的确定性退路。
// 认固定命令格式（REGISTER/SELL/ACCEPT/DELIVERED/PRICE/STATUS 开头）
// 和几种常见自由写法，没写 TX 号的 ref 一律落到 LATEST
type RuleClassifier struct{}

func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

func (c *RuleClassifier) Classify(_ context.Context, senderID, text string) (trade.Intent, error) {
	intent, ok := matchRules(senderID, strings.TrimSpace(text))
	if !ok {
		return trade.Intent{}, fmt.Errorf("%w: unrecognized message format", trade.ErrParseFailure)
	}
	if err := intent.Validate(); err != nil {
		return trade.Intent{}, fmt.Errorf("%w: %v", trade.ErrParseFailure, err)
	}
	return intent, nil
}

func matchRules(senderID, text string) (trade.Intent, bool) {
	if m := registerRe.FindStringSubmatch(text); m != nil {
		return trade.Intent{Kind: trade.KindRegisterFarmer, SenderID: senderID, FarmerName: strings.TrimSpace(m[1])}, true
	}
	if m := sellRe.FindStringSubmatch(text); m != nil {
		qty, _ := strconv.ParseFloat(m[1], 64)
		return trade.Intent{
			Kind:       trade.KindCreateOffer,
			SenderID:   senderID,
			QuantityKg: qty,
			Crop:       strings.ToLower(m[2]),
			Location:   strings.TrimSpace(m[3]),
		}, true
	}
	if m := cropSellRe.FindStringSubmatch(text); m != nil {
		qty, _ := strconv.ParseFloat(m[2], 64)
		return trade.Intent{
			Kind:       trade.KindCreateOffer,
			SenderID:   senderID,
			Crop:       strings.ToLower(m[1]),
			QuantityKg: qty,
			Location:   strings.TrimSpace(m[3]),
		}, true
	}
	if m := acceptRe.FindStringSubmatch(text); m != nil {
		return trade.Intent{Kind: trade.KindAcceptOffer, SenderID: senderID, Ref: normalizeRef(m[1]), OTP: m[2]}, true
	}
	if m := yesRe.FindStringSubmatch(text); m != nil {
		return trade.Intent{Kind: trade.KindAcceptOffer, SenderID: senderID, Ref: trade.RefLatest, OTP: m[1]}, true
	}
	if m := deliverRe.FindStringSubmatch(text); m != nil {
		weight, _ := strconv.ParseFloat(m[2], 64)
		return trade.Intent{
			Kind:     trade.KindConfirmDelivery,
			SenderID: senderID,
			Ref:      normalizeRef(m[1]),
			WeightKg: weight,
			Grade:    strings.ToUpper(m[3]),
			OTP:      m[4],
		}, true
	}
	if m := deliverFreeRe.FindStringSubmatch(text); m != nil {
		weight, _ := strconv.ParseFloat(m[1], 64)
		return trade.Intent{
			Kind:     trade.KindConfirmDelivery,
			SenderID: senderID,
			Ref:      trade.RefLatest,
			WeightKg: weight,
			Grade:    strings.ToUpper(m[2]),
			OTP:      m[3],
		}, true
	}
	if m := priceRe.FindStringSubmatch(text); m != nil {
		return trade.Intent{
			Kind:     trade.KindQueryPrice,
			SenderID: senderID,
			Crop:     strings.ToLower(m[1]),
			Location: strings.TrimSpace(m[2]),
		}, true
	}
	if m := statusRe.FindStringSubmatch(text); m != nil {
		return trade.Intent{Kind: trade.KindCheckStatus, SenderID: senderID, Ref: normalizeRef(m[1])}, true
	}
	return trade.Intent{}, false
}

func normalizeRef(ref string) string {
	return strings.ToUpper(strings.TrimSpace(ref))
}
