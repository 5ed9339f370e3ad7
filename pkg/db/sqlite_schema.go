package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// SQLiteSchema mirrors pkg/migrate/migrations in sqlite dialect. It backs
// local sqlite mode and the package tests.
var SQLiteSchema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  name TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  account_id TEXT NOT NULL REFERENCES accounts(id),
  role TEXT NOT NULL,
  name TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  supplier_id TEXT NOT NULL,
  name TEXT NOT NULL,
  price NUMERIC NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS link_requests (
  id TEXT PRIMARY KEY,
  consumer_id TEXT NOT NULL,
  supplier_id TEXT NOT NULL,
  requested_by TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  message TEXT,
  decided_by TEXT,
  decided_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_link_requests_pair ON link_requests (consumer_id, supplier_id)`,
	`CREATE TABLE IF NOT EXISTS supplier_links (
  consumer_id TEXT NOT NULL,
  supplier_id TEXT NOT NULL,
  request_id TEXT NOT NULL,
  status TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  PRIMARY KEY (consumer_id, supplier_id)
)`,
	`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  consumer_id TEXT NOT NULL,
  supplier_id TEXT NOT NULL,
  placed_by TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  total_cents INTEGER NOT NULL,
  notes TEXT,
  version INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  qty INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  line_total_cents INTEGER NOT NULL,
  position INTEGER NOT NULL,
  created_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS order_status_history (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  seq INTEGER NOT NULL,
  status TEXT NOT NULL,
  actor_id TEXT,
  created_at DATETIME
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_order_status_history_seq ON order_status_history (order_id, seq)`,
	`CREATE TABLE IF NOT EXISTS complaints (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  consumer_id TEXT NOT NULL,
  supplier_id TEXT NOT NULL,
  supplier_name TEXT NOT NULL,
  filed_by TEXT NOT NULL,
  reason TEXT,
  status TEXT NOT NULL DEFAULT 'open',
  consumer_feedback INTEGER,
  escalated_at DATETIME,
  resolved_at DATETIME,
  version INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_complaints_order_id ON complaints (order_id)`,
	`CREATE TABLE IF NOT EXISTS escalations (
  id TEXT PRIMARY KEY,
  complaint_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  supplier_id TEXT NOT NULL,
  supplier_name TEXT NOT NULL,
  consumer_id TEXT NOT NULL,
  consumer_name TEXT NOT NULL,
  reason TEXT,
  escalated_by TEXT NOT NULL,
  created_at DATETIME
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_escalations_complaint_id ON escalations (complaint_id)`,
	`CREATE TABLE IF NOT EXISTS chat_sessions (
  id TEXT PRIMARY KEY,
  consumer_id TEXT NOT NULL,
  supplier_id TEXT NOT NULL,
  sales_rep_id TEXT,
  order_id TEXT,
  last_message_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_chat_sessions_order_id ON chat_sessions (order_id)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL REFERENCES chat_sessions(id),
  sender_id TEXT,
  text TEXT,
  attachment_url TEXT,
  severity TEXT,
  event_id TEXT,
  created_at DATETIME
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_chat_messages_session_event ON chat_messages (session_id, event_id)`,
	`CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  recipient_id TEXT NOT NULL,
  type TEXT NOT NULL,
  message TEXT NOT NULL,
  entity_type TEXT,
  entity_id TEXT,
  event_id TEXT,
  read_at DATETIME,
  created_at DATETIME
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_notifications_event_recipient ON notifications (event_id, recipient_id)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
)`,
	`CREATE TABLE IF NOT EXISTS outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_outbox_dlq_event_id ON outbox_dlq (event_id)`,
}

// ApplySQLiteSchema creates any missing tables and indexes on conn.
func ApplySQLiteSchema(ctx context.Context, conn *gorm.DB) error {
	for _, stmt := range SQLiteSchema {
		if err := conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
