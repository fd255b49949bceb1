package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"agrotrack/internal/ledger"
	"agrotrack/internal/trade"
	"agrotrack/pkg/proof"
)

func makeProofDocument(t *testing.T, mutate func(r *trade.SettlementReceipt)) []byte {
	t.Helper()

	receipt := trade.SettlementReceipt{
		Ref:               "TX123456",
		SenderID:          "+254700000002",
		DeliveredWeightKg: 500,
		Grade:             "A",
		Amount:            10000,
		TransferID:        "sim-release-1",
		IssuedAt:          time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC),
	}
	receipt.ContentHash = proof.ComputeReceiptHash(proof.ReceiptBody{
		Ref:        receipt.Ref,
		SenderID:   receipt.SenderID,
		WeightKg:   receipt.DeliveredWeightKg,
		Grade:      receipt.Grade,
		Amount:     receipt.Amount,
		TransferID: receipt.TransferID,
		IssuedAt:   receipt.IssuedAt,
	})
	if mutate != nil {
		mutate(&receipt)
	}

	doc := map[string]interface{}{
		"ref":    receipt.Ref,
		"status": "completed",
		"events": []ledger.Event{
			{
				Ref:      receipt.Ref,
				Agent:    "settlement",
				Kind:     ledger.KindSettlementComplete,
				SenderID: receipt.SenderID,
				Payload:  ledger.MarshalPayload(map[string]interface{}{"receipt": receipt}),
			},
		},
		"total": 1,
	}
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal proof document: %v", err)
	}
	return b
}

func TestVerifyProofFile_Success(t *testing.T) {
	data := makeProofDocument(t, nil)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "ok.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write proof file: %v", err)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	code := verifyProofFile(path, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d, stderr=%s", code, stderr.String())
	}
	if !bytes.Contains(stdout.Bytes(), []byte("Verification PASSED")) {
		t.Fatalf("expected success output, got: %s", stdout.String())
	}
}

func TestVerifyProofFile_Tampered(t *testing.T) {
	// 篡改回执金额，内容哈希随之失配。
	data := makeProofDocument(t, func(r *trade.SettlementReceipt) {
		r.Amount = 99999
	})

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "tampered.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write proof file: %v", err)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	code := verifyProofFile(path, &stdout, &stderr)
	if code == 0 {
		t.Fatal("expected non-zero exit code")
	}
	if !bytes.Contains(stdout.Bytes(), []byte("Verification FAILED")) {
		t.Fatalf("expected failure output, got: %s", stdout.String())
	}
}

func TestVerifyProofDocument_NoReceipt(t *testing.T) {
	doc := map[string]interface{}{
		"ref":    "TX000001",
		"status": "pending",
		"events": []ledger.Event{},
		"total":  0,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	if code := verifyProofDocument(data, &stdout, &stderr); code == 0 {
		t.Fatal("expected non-zero exit code for document without receipts")
	}
}
