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

package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/jwt"
)

// OperatorCredentials 运维登录凭据，密码为空时拒绝所有登录
type OperatorCredentials struct {
	Username string
	Password string
}

// NewJWTAuth 创建 JWT 认证中间件，保护只读 API 路由，
// 登录凭据与配置的运维账号做常量时间比较。
// webhook 路由不经过它：短信网关按自己的签名机制回调
func NewJWTAuth(key []byte, creds OperatorCredentials, timeout, maxRefresh time.Duration) (*jwt.HertzJWTMiddleware, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, errors.New("operator credentials not configured")
	}
	return jwt.New(&jwt.HertzJWTMiddleware{
		Realm:      "agrotrack",
		Key:        key,
		Timeout:    timeout,
		MaxRefresh: maxRefresh,
		Authenticator: func(ctx context.Context, c *app.RequestContext) (interface{}, error) {
			var login struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := c.BindAndValidate(&login); err != nil {
				return nil, jwt.ErrMissingLoginValues
			}
			userOK := subtle.ConstantTimeCompare([]byte(login.Username), []byte(creds.Username)) == 1
			passOK := subtle.ConstantTimeCompare([]byte(login.Password), []byte(creds.Password)) == 1
			if !userOK || !passOK {
				return nil, jwt.ErrFailedAuthentication
			}
			return login.Username, nil
		},
		Unauthorized: func(ctx context.Context, c *app.RequestContext, code int, message string) {
			c.JSON(code, map[string]string{"error": message})
		},
	})
}
