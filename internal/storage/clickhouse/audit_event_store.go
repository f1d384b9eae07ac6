package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/storage"
)

// AuditEventStore appends audit events to the audit_events table.
type AuditEventStore struct {
	conn *Conn
}

func NewAuditEventStore(conn *Conn) *AuditEventStore {
	return &AuditEventStore{conn: conn}
}

var _ storage.AuditEventStore = (*AuditEventStore)(nil)

func (s *AuditEventStore) Insert(ctx context.Context, e *domain.AuditEvent) (err error) {
	if e == nil || e.EventID == "" {
		return storage.ErrInvalidInput
	}
	defer observe("insert_audit_event", time.Now(), &err)

	var count uint64
	if err := s.conn.QueryRow(ctx, `SELECT count() FROM audit_events WHERE event_id = ?`, e.EventID).Scan(&count); err != nil {
		return fmt.Errorf("check audit event: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	err = s.conn.Exec(ctx, `INSERT INTO audit_events
		(event_id, kind, mint, decision_id, action, from_state, to_state, summary, payload, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, string(e.Kind), e.Mint, e.DecisionID, string(e.Action),
		string(e.FromState), string(e.ToState), e.Summary, e.Payload, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// GetByMint returns a mint's events ordered by timestamp.
func (s *AuditEventStore) GetByMint(ctx context.Context, mint string) (_ []*domain.AuditEvent, err error) {
	defer observe("audit_events_by_mint", time.Now(), &err)
	rows, err := s.conn.Query(ctx, `
		SELECT event_id, kind, mint, decision_id, action, from_state, to_state, summary, payload, ts
		FROM audit_events
		WHERE mint = ?
		ORDER BY ts ASC, event_id ASC`, mint)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []*domain.AuditEvent
	for rows.Next() {
		var (
			e                      domain.AuditEvent
			kind, action, from, to string
		)
		if err := rows.Scan(&e.EventID, &kind, &e.Mint, &e.DecisionID, &action, &from, &to,
			&e.Summary, &e.Payload, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Kind = domain.AuditKind(kind)
		e.Action = domain.Action(action)
		e.FromState = domain.PositionState(from)
		e.ToState = domain.PositionState(to)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}
