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

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"agrotrack/internal/ledger"
	"agrotrack/internal/trade"
	"agrotrack/pkg/proof"
)

// verifyProofFile 离线校验 proof 导出文件：
// 对其中每条 settlement_complete 事件重算回执内容哈希并比对。
// 返回进程退出码，0 表示全部通过
func verifyProofFile(path string, stdout, stderr io.Writer) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "read %s: %v\n", path, err)
		return 1
	}
	return verifyProofDocument(data, stdout, stderr)
}

func verifyProofDocument(data []byte, stdout, stderr io.Writer) int {
	var doc struct {
		Ref    string         `json:"ref"`
		Events []ledger.Event `json:"events"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		fmt.Fprintf(stderr, "parse proof document: %v\n", err)
		return 1
	}

	checked := 0
	failed := 0
	for _, ev := range doc.Events {
		if ev.Kind != ledger.KindSettlementComplete {
			continue
		}
		var payload struct {
			Receipt trade.SettlementReceipt `json:"receipt"`
		}
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			fmt.Fprintf(stderr, "parse receipt payload: %v\n", err)
			failed++
			continue
		}
		r := payload.Receipt
		checked++
		err := proof.VerifyReceipt(proof.ReceiptBody{
			Ref:        r.Ref,
			SenderID:   r.SenderID,
			WeightKg:   r.DeliveredWeightKg,
			Grade:      r.Grade,
			Amount:     r.Amount,
			TransferID: r.TransferID,
			IssuedAt:   r.IssuedAt,
		}, r.ContentHash)
		if err != nil {
			fmt.Fprintf(stdout, "receipt %s: %v\n", r.TransferID, err)
			failed++
			continue
		}
		fmt.Fprintf(stdout, "receipt %s: ok\n", r.TransferID)
	}

	if checked == 0 {
		fmt.Fprintf(stdout, "Verification FAILED: no settlement receipt in document (ref=%s)\n", doc.Ref)
		return 1
	}
	if failed > 0 {
		fmt.Fprintf(stdout, "Verification FAILED: %d of %d receipt(s) invalid\n", failed, checked)
		return 1
	}
	fmt.Fprintf(stdout, "Verification PASSED: %d receipt(s) intact\n", checked)
	return 0
}
