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

package trade

import (
	"fmt"
	"regexp"
	"time"
)

// Kind 意图类型：封闭集合，一条消息恰好归入一种
type Kind string

const (
	KindRegisterFarmer  Kind = "FARMER_REGISTER"
	KindCreateOffer     Kind = "OFFER_CREATE"
	KindAcceptOffer     Kind = "OFFER_ACCEPT"
	KindConfirmDelivery Kind = "DELIVERY_CONFIRM"
	KindQueryPrice      Kind = "PRICE_QUERY"
	KindCheckStatus     Kind = "STATUS_CHECK"
)

// RefLatest 引用哨兵值：表示"从账本历史解析最近一笔交易"
const RefLatest = "LATEST"

// 合法作物与等级集合
var (
	Crops  = []string{"maize", "beans", "coffee", "tea", "rice"}
	Grades = []string{"A", "B", "C"}
)

var (
	otpPattern = regexp.MustCompile(`^\d{6}$`)
	refPattern = regexp.MustCompile(`^TX\d{6}$`)
)

// Intent 分类结果：Kind 决定哪组字段有效，未涉及字段为零值。
// 分类器输出必须先过 Validate 才能进入任何 handler
type Intent struct {
	Kind     Kind   `json:"intent"`
	SenderID string `json:"msisdn"`

	// FARMER_REGISTER
	FarmerName string `json:"farmerName,omitempty"`

	// OFFER_CREATE / PRICE_QUERY
	Crop       string  `json:"crop,omitempty"`
	QuantityKg float64 `json:"quantityKg,omitempty"`
	Location   string  `json:"location,omitempty"`
	When       string  `json:"when,omitempty"`

	// OFFER_ACCEPT / DELIVERY_CONFIRM / STATUS_CHECK
	Ref string `json:"ref,omitempty"`
	OTP string `json:"otp,omitempty"`

	// DELIVERY_CONFIRM
	WeightKg float64 `json:"weightKg,omitempty"`
	Grade    string  `json:"grade,omitempty"`
}

// Context 单条入站消息的事务上下文：ref 在任何 handler 或 agent 运行前生成，
// 此后该事务的每条日志与账本事件都携带同一个 ref
type Context struct {
	SenderID  string
	Ref       string
	CreatedAt time.Time
}

// Validate 校验意图字段是否满足对应 Kind 的 schema；
// 不满足即视为解析失败，绝不让畸形意图进入 handler
func (i Intent) Validate() error {
	if i.SenderID == "" {
		return fmt.Errorf("missing sender id")
	}
	switch i.Kind {
	case KindRegisterFarmer:
		if i.FarmerName == "" {
			return fmt.Errorf("farmer register: missing name")
		}
	case KindCreateOffer:
		if !validCrop(i.Crop) {
			return fmt.Errorf("offer create: invalid crop %q", i.Crop)
		}
		if i.QuantityKg <= 0 {
			return fmt.Errorf("offer create: quantity must be positive, got %v", i.QuantityKg)
		}
		if i.Location == "" {
			return fmt.Errorf("offer create: missing location")
		}
	case KindAcceptOffer:
		if err := validateRef(i.Ref, true); err != nil {
			return fmt.Errorf("offer accept: %w", err)
		}
		if !otpPattern.MatchString(i.OTP) {
			return fmt.Errorf("offer accept: otp must be 6 digits")
		}
	case KindConfirmDelivery:
		if err := validateRef(i.Ref, true); err != nil {
			return fmt.Errorf("delivery confirm: %w", err)
		}
		if i.WeightKg <= 0 {
			return fmt.Errorf("delivery confirm: weight must be positive, got %v", i.WeightKg)
		}
		if i.Grade != "" && !validGrade(i.Grade) {
			return fmt.Errorf("delivery confirm: invalid grade %q", i.Grade)
		}
		if !otpPattern.MatchString(i.OTP) {
			return fmt.Errorf("delivery confirm: otp must be 6 digits")
		}
	case KindQueryPrice:
		if !validCrop(i.Crop) {
			return fmt.Errorf("price query: invalid crop %q", i.Crop)
		}
	case KindCheckStatus:
		if err := validateRef(i.Ref, false); err != nil {
			return fmt.Errorf("status check: %w", err)
		}
	default:
		return fmt.Errorf("unknown intent kind %q", i.Kind)
	}
	return nil
}

// validateRef 校验交易引用；allowLatest 时放行 LATEST 哨兵
func validateRef(ref string, allowLatest bool) error {
	if ref == "" {
		return fmt.Errorf("missing ref")
	}
	if ref == RefLatest {
		if allowLatest {
			return nil
		}
		return fmt.Errorf("LATEST ref not allowed here")
	}
	if !refPattern.MatchString(ref) {
		return fmt.Errorf("invalid ref format %q", ref)
	}
	return nil
}

func validCrop(crop string) bool {
	for _, c := range Crops {
		if c == crop {
			return true
		}
	}
	return false
}

func validGrade(grade string) bool {
	for _, g := range Grades {
		if g == grade {
			return true
		}
	}
	return false
}
