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

package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"agrotrack/internal/ledger"
	"agrotrack/internal/trade"
	"agrotrack/internal/transfer"
	"agrotrack/pkg/clock"
	"agrotrack/pkg/log"
	"agrotrack/pkg/proof"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCoordinator(t *testing.T, backend transfer.Backend, store ledger.Store) (*Coordinator, *clock.Fake) {
	t.Helper()
	logger, err := log.NewLogger(nil)
	require.NoError(t, err)
	clk := clock.NewFake(time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC))
	return NewCoordinator(backend, store, clk, logger, Config{
		MinWeightKg:   50,
		ApprovalDelay: 2 * time.Second,
	}), clk
}

func request(weight float64) Request {
	return Request{
		Ref:       "TX123456",
		SenderID:  "+254700000002",
		Recipient: "+254700000001",
		WeightKg:  weight,
		Grade:     "A",
		OTP:       "482913",
		Amount:    10000,
	}
}

func TestSettleHappyPath(t *testing.T) {
	backend := transfer.NewSimBackend()
	store := ledger.NewMemoryStore()
	c, _ := newCoordinator(t, backend, store)

	receipt, err := c.Settle(context.Background(), request(195))
	require.NoError(t, err)
	assert.Equal(t, "TX123456", receipt.Ref)
	assert.Equal(t, int64(10000), receipt.Amount)
	assert.NotEmpty(t, receipt.TransferID)

	// 回执哈希能通过校验
	require.NoError(t, proof.VerifyReceipt(proof.ReceiptBody{
		Ref:        receipt.Ref,
		SenderID:   receipt.SenderID,
		WeightKg:   receipt.DeliveredWeightKg,
		Grade:      receipt.Grade,
		Amount:     receipt.Amount,
		TransferID: receipt.TransferID,
		IssuedAt:   receipt.IssuedAt,
	}, receipt.ContentHash))

	require.Len(t, backend.Releases(), 1)
	assert.Equal(t, "+254700000001", backend.Releases()[0].Recipient)

	events, err := store.Query(context.Background(), ledger.Filter{Ref: "TX123456"})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, ledger.KindSettlementComplete, events[0].Kind)
	assert.Equal(t, ledger.KindSettlementPreparing, events[1].Kind)
	assert.Equal(t, ledger.KindDeliveryReceived, events[2].Kind)
}

func TestSettleUnderweightNeverReleases(t *testing.T) {
	backend := transfer.NewSimBackend()
	store := ledger.NewMemoryStore()
	c, clk := newCoordinator(t, backend, store)

	_, err := c.Settle(context.Background(), request(30))
	assert.ErrorIs(t, err, trade.ErrDeliveryRejected)
	assert.Empty(t, backend.Releases(), "rejected delivery must not touch funds")
	assert.Empty(t, clk.Slept())

	events, err := store.Query(context.Background(), ledger.Filter{Ref: "TX123456"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ledger.KindSettlementRejected, events[0].Kind)
	assert.Equal(t, ledger.KindDeliveryReceived, events[1].Kind)
}

func TestSettleBoundaryWeight(t *testing.T) {
	backend := transfer.NewSimBackend()
	c, _ := newCoordinator(t, backend, ledger.NewMemoryStore())

	// 正好达标放行
	_, err := c.Settle(context.Background(), request(50))
	require.NoError(t, err)
	assert.Len(t, backend.Releases(), 1)
}

func TestSettleBackendFailure(t *testing.T) {
	backend := transfer.NewSimBackend()
	backend.FailRelease = errors.New("gateway down")
	store := ledger.NewMemoryStore()
	c, _ := newCoordinator(t, backend, store)

	_, err := c.Settle(context.Background(), request(195))
	assert.ErrorIs(t, err, trade.ErrTransferFailed)

	events, err := store.Query(context.Background(), ledger.Filter{Ref: "TX123456", Kind: ledger.KindSettlementError})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
