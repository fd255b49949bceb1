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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "api.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
api:
  port: 3000
ledger:
  type: memory
  topic_id: "0.0.12345"
escrow:
  token_id: "0.0.67890"
  amount: 10000
  otp_ttl: "300s"
settlement:
  min_weight_kg: 50
resolver:
  grace: "2s"
  attempts: 3
sms:
  mode: stub
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 3000 {
		t.Errorf("api.port = %d", cfg.API.Port)
	}
	if cfg.Ledger.TopicID != "0.0.12345" {
		t.Errorf("ledger.topic_id = %q", cfg.Ledger.TopicID)
	}
	if cfg.Escrow.TokenID != "0.0.67890" {
		t.Errorf("escrow.token_id = %q", cfg.Escrow.TokenID)
	}
	if cfg.Settlement.MinWeightKg != 50 {
		t.Errorf("settlement.min_weight_kg = %v", cfg.Settlement.MinWeightKg)
	}
}

func TestLoadConfig_EnvVarExpansion(t *testing.T) {
	t.Setenv("AT_API_KEY_TEST", "real-key")
	path := writeConfig(t, `
sms:
  mode: africastalking
  api_key: "${AT_API_KEY_TEST}"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SMS.APIKey != "real-key" {
		t.Errorf("sms.api_key = %q, want expanded env value", cfg.SMS.APIKey)
	}
}

func TestParseDuration(t *testing.T) {
	if d := ParseDuration("", 2*time.Second); d != 2*time.Second {
		t.Errorf("empty: %v", d)
	}
	if d := ParseDuration("5s", 2*time.Second); d != 5*time.Second {
		t.Errorf("5s: %v", d)
	}
	if d := ParseDuration("bogus", 2*time.Second); d != 2*time.Second {
		t.Errorf("bogus: %v", d)
	}
}
