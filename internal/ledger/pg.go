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

package ledger

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// pgStore PostgreSQL 账本实现：events 表只插入不更新，sequence 由自增主键充当。
// 表结构见 migrations（ref/agent/event_kind/sender_id 建索引，payload 为 jsonb）
type pgStore struct {
	pool  *pgxpool.Pool
	topic string
}

// NewPostgresStore 创建基于 PostgreSQL 的账本；dsn 为连接串，topic 用于多租户隔离
func NewPostgresStore(ctx context.Context, dsn, topic string) (Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, createEventsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure ledger_events table: %w", err)
	}
	return &pgStore{pool: pool, topic: topic}, nil
}

const createEventsTable = `
CREATE TABLE IF NOT EXISTS ledger_events (
    id             BIGSERIAL PRIMARY KEY,
    topic          TEXT NOT NULL DEFAULT '',
    ref            TEXT NOT NULL DEFAULT '',
    agent          TEXT NOT NULL DEFAULT '',
    event_kind     TEXT NOT NULL,
    sender_id      TEXT NOT NULL DEFAULT '',
    payload        JSONB,
    consensus_time TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_ledger_events_ref ON ledger_events (ref);
CREATE INDEX IF NOT EXISTS idx_ledger_events_kind ON ledger_events (event_kind);
CREATE INDEX IF NOT EXISTS idx_ledger_events_sender ON ledger_events (sender_id);
`

// Close 关闭连接池（可选，用于优雅退出）
func (s *pgStore) Close() {
	s.pool.Close()
}

func (s *pgStore) Append(ctx context.Context, ev Event) (AppendAck, error) {
	var id int64
	var payload []byte
	if len(ev.Payload) > 0 {
		payload = ev.Payload
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO ledger_events (topic, ref, agent, event_kind, sender_id, payload)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		s.topic, ev.Ref, ev.Agent, ev.Kind, ev.SenderID, payload).Scan(&id)
	if err != nil {
		return AppendAck{}, fmt.Errorf("append ledger event: %w", err)
	}
	return AppendAck{TxID: "pg-" + strconv.FormatInt(id, 10), Sequence: id}, nil
}

func (s *pgStore) Query(ctx context.Context, f Filter) ([]Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, ref, agent, event_kind, sender_id, payload, consensus_time
	          FROM ledger_events WHERE topic = $1`
	args := []interface{}{s.topic}
	n := 1
	if f.Ref != "" {
		n++
		query += fmt.Sprintf(" AND (ref = $%d OR payload->>'ref' = $%d)", n, n)
		args = append(args, f.Ref)
	}
	if f.Kind != "" {
		n++
		query += fmt.Sprintf(" AND event_kind = $%d", n)
		args = append(args, f.Kind)
	}
	if f.SenderID != "" {
		n++
		query += fmt.Sprintf(" AND (sender_id = $%d OR payload->>'msisdn' = $%d)", n, n)
		args = append(args, f.SenderID)
	}
	if f.Crop != "" {
		n++
		query += fmt.Sprintf(" AND payload->>'crop' = $%d", n)
		args = append(args, f.Crop)
	}
	if f.Location != "" {
		n++
		query += fmt.Sprintf(" AND payload->>'location' ILIKE $%d", n)
		args = append(args, "%"+f.Location+"%")
	}
	n++
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", n)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var payload []byte
		if err := rows.Scan(&ev.Sequence, &ev.Ref, &ev.Agent, &ev.Kind, &ev.SenderID, &payload, &ev.ConsensusTime); err != nil {
			return nil, err
		}
		ev.Payload = payload
		events = append(events, ev)
	}
	return events, rows.Err()
}
