package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"agentScope/internal/model"
)

// Store provides Postgres persistence for alert envelopes.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InsertAlerts writes a batch of alert envelopes.
func (s *Store) InsertAlerts(ctx context.Context, alerts []model.AlertEnvelope) error {
	if len(alerts) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, envelope := range alerts {
		metadata, err := json.Marshal(envelope.Alert.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		batch.Queue(`
			INSERT INTO alerts (
				chain_id, block_number, tx_hash, block_timestamp, emitted_at,
				alert_id, name, description, severity, category, metadata
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			int64(envelope.ChainID),
			int64(envelope.BlockNumber),
			envelope.TxHash,
			int64(envelope.Timestamp),
			envelope.EmittedAt,
			envelope.Alert.AlertID,
			envelope.Alert.Name,
			envelope.Alert.Description,
			envelope.Alert.Severity,
			envelope.Alert.Category,
			metadata,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range alerts {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// Sink adapts Store to the storage.AlertSink interface.
type Sink struct {
	store *Store
	ctx   context.Context
}

func NewSink(ctx context.Context, store *Store) *Sink {
	return &Sink{store: store, ctx: ctx}
}

func (s *Sink) PutAlertBatch(alerts []model.AlertEnvelope) error {
	return s.store.InsertAlerts(s.ctx, alerts)
}
