// Copyright 2026 fanjia1024
// Environment variable based secret store

package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// envPrefix 环境变量命名空间：逻辑键 transfer_api_key
// 对应 AGROTRACK_TRANSFER_API_KEY
const envPrefix = "AGROTRACK_"

type envStore struct{}

// NewEnvStore 创建环境变量 secret store，
// 键统一映射到 AGROTRACK_ 前缀的大写变量名
func NewEnvStore() Store {
	return &envStore{}
}

// envName 逻辑键转环境变量名，已带前缀的原样保留
func envName(key string) string {
	upper := strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	if strings.HasPrefix(upper, envPrefix) {
		return upper
	}
	return envPrefix + upper
}

func (e *envStore) Get(ctx context.Context, key string) (string, error) {
	name := envName(key)
	value := os.Getenv(name)
	if value == "" {
		return "", fmt.Errorf("environment variable not set: %s", name)
	}
	return value, nil
}

func (e *envStore) Set(ctx context.Context, key string, value string) error {
	return os.Setenv(envName(key), value)
}

func (e *envStore) Delete(ctx context.Context, key string) error {
	return os.Unsetenv(envName(key))
}

// List 只列命名空间内的变量，返回还原后的逻辑键
func (e *envStore) List(ctx context.Context, prefix string) ([]string, error) {
	want := envName(prefix)
	if prefix == "" {
		want = envPrefix
	}
	var keys []string
	for _, env := range os.Environ() {
		name, _, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, want) {
			continue
		}
		keys = append(keys, strings.ToLower(strings.TrimPrefix(name, envPrefix)))
	}
	return keys, nil
}
