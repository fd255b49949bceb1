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

package proof

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// ReceiptBody 结算回执的可哈希内容：字段顺序即哈希顺序，任何改动都会改变
// ContentHash，对外即为篡改证据
type ReceiptBody struct {
	Ref        string
	SenderID   string
	WeightKg   float64
	Grade      string
	Amount     int64
	TransferID string
	IssuedAt   time.Time
}

// ComputeReceiptHash 计算回执内容哈希
// Hash = SHA256(Ref|SenderID|WeightKg|Grade|Amount|TransferID|IssuedAt)
func ComputeReceiptHash(b ReceiptBody) string {
	h := sha256.New()
	h.Write([]byte(b.Ref))
	h.Write([]byte("|"))
	h.Write([]byte(b.SenderID))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.FormatFloat(b.WeightKg, 'f', -1, 64)))
	h.Write([]byte("|"))
	h.Write([]byte(b.Grade))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.FormatInt(b.Amount, 10)))
	h.Write([]byte("|"))
	h.Write([]byte(b.TransferID))
	h.Write([]byte("|"))
	h.Write([]byte(b.IssuedAt.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"))) // RFC3339Nano
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyReceipt 重新计算并比对内容哈希
func VerifyReceipt(b ReceiptBody, contentHash string) error {
	expected := ComputeReceiptHash(b)
	if expected != contentHash {
		return fmt.Errorf("receipt hash mismatch: expected %s, got %s", expected, contentHash)
	}
	return nil
}
