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
	"crypto/rand"
	"fmt"
	"math/big"

	"agrotrack/internal/trade"
)

// OTPStore 一次性验证码存储，以验证码本身为键。
// Claim 必须是原子的查验并删除：码对上（且 ref 匹配、未过期）才删除，
// 码错时存储不动，正确的码之后仍然可用；并发提交同一个码时至多一个成功
type OTPStore interface {
	Put(ctx context.Context, code trade.OneTimeCode) error
	Claim(ctx context.Context, code, ref string) (bool, error)
}

// GenerateCode 生成 6 位数字验证码（密码学随机）
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
