package ledgerstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/naveenk2131/AgriTrust/internal/model"
)

// uniqueViolation is the SQLSTATE Postgres reports for primary key conflicts.
const uniqueViolation = "23505"

// PostgresStore implements Store on a batches table. It exists for
// deployments where the API server and the re-anchor worker run as separate
// processes and must share one source of truth; the database serializes
// writers instead of an in-process mutex.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a store over an existing pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Create inserts a new batch row.
func (s *PostgresStore) Create(ctx context.Context, record *model.BatchRecord) error {
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO batches (batch_id, farmer_name, crop_name, quantity, location, harvest_date,
			fingerprint, anchor_reference, anchor_fallback_used, transport_status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, record.BatchID, record.FarmerName, record.CropName, record.Quantity, record.Location,
		record.HarvestDate, record.Fingerprint, record.AnchorReference, record.AnchorFallbackUsed,
		record.TransportStatus, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// FindByID returns the batch row for batchID.
func (s *PostgresStore) FindByID(ctx context.Context, batchID string) (*model.BatchRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT batch_id, farmer_name, crop_name, quantity, location, harvest_date,
			fingerprint, anchor_reference, anchor_fallback_used, transport_status, created_at, updated_at
		FROM batches WHERE batch_id=$1
	`, batchID)
	var rec model.BatchRecord
	if err := row.Scan(&rec.BatchID, &rec.FarmerName, &rec.CropName, &rec.Quantity, &rec.Location,
		&rec.HarvestDate, &rec.Fingerprint, &rec.AnchorReference, &rec.AnchorFallbackUsed,
		&rec.TransportStatus, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select batch: %w", err)
	}
	return &rec, nil
}

// Update replaces the stored row with a matching batchId.
func (s *PostgresStore) Update(ctx context.Context, record *model.BatchRecord) error {
	record.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE batches
		SET farmer_name=$1, crop_name=$2, quantity=$3, location=$4, harvest_date=$5,
			fingerprint=$6, anchor_reference=$7, anchor_fallback_used=$8,
			transport_status=$9, updated_at=$10
		WHERE batch_id=$11
	`, record.FarmerName, record.CropName, record.Quantity, record.Location, record.HarvestDate,
		record.Fingerprint, record.AnchorReference, record.AnchorFallbackUsed,
		record.TransportStatus, record.UpdatedAt, record.BatchID)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAll returns every batch row ordered by creation time.
func (s *PostgresStore) ListAll(ctx context.Context) ([]*model.BatchRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT batch_id, farmer_name, crop_name, quantity, location, harvest_date,
			fingerprint, anchor_reference, anchor_fallback_used, transport_status, created_at, updated_at
		FROM batches ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()
	var out []*model.BatchRecord
	for rows.Next() {
		var rec model.BatchRecord
		if err := rows.Scan(&rec.BatchID, &rec.FarmerName, &rec.CropName, &rec.Quantity, &rec.Location,
			&rec.HarvestDate, &rec.Fingerprint, &rec.AnchorReference, &rec.AnchorFallbackUsed,
			&rec.TransportStatus, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return out, nil
}
