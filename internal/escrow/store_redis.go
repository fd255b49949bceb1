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
	"fmt"
	"time"

	"agrotrack/internal/trade"

	"github.com/redis/go-redis/v9"
)

const otpKeyPrefix = "agrotrack:otp:"

// claimScript ref 对上才删除，整段在 Redis 内原子执行；
// ref 不匹配时键保留，正确的码之后仍可用
var claimScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("DEL", KEYS[1])
	return 1
end
return 0
`)

// RedisOTPStore 基于 Redis 的 OTP 存储：多实例部署时共享验证码状态。
// 键为验证码本身，值为 ref，过期交给 Redis TTL
type RedisOTPStore struct {
	client *redis.Client
}

func NewRedisOTPStore(addr string) (*RedisOTPStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisOTPStore{client: client}, nil
}

func (s *RedisOTPStore) Put(ctx context.Context, code trade.OneTimeCode) error {
	ttl := time.Until(code.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("otp already expired")
	}
	return s.client.Set(ctx, otpKeyPrefix+code.Code, code.Ref, ttl).Err()
}

func (s *RedisOTPStore) Claim(ctx context.Context, code, ref string) (bool, error) {
	n, err := claimScript.Run(ctx, s.client, []string{otpKeyPrefix + code}, ref).Int()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("claim otp: %w", err)
	}
	return n == 1, nil
}
