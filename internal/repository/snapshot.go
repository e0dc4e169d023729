package repository

import (
	"context"
	"fmt"
	"time"

	"steamsale/notifier/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS price_history (
	app_id           INTEGER     NOT NULL,
	observed_at      TIMESTAMPTZ NOT NULL,
	name             TEXT,
	discount_percent INTEGER,
	final_formatted  TEXT,
	PRIMARY KEY (app_id, observed_at)
);
`

// EnsureSchema creates the price history table if it does not exist yet
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate price history schema: %w", err)
	}
	return nil
}

// SnapshotRepository keeps the price history of the tracked app
type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, snapshot *domain.ProductSnapshot, observedAt time.Time) error
	LatestSnapshot(ctx context.Context, appID int) (*domain.ProductSnapshot, error)
}

type snapshotRepository struct {
	db *pgxpool.Pool
}

func NewSnapshotRepository(db *pgxpool.Pool) SnapshotRepository {
	return &snapshotRepository{
		db: db,
	}
}

func (r *snapshotRepository) SaveSnapshot(ctx context.Context, snapshot *domain.ProductSnapshot, observedAt time.Time) error {
	query := `
	INSERT INTO price_history (app_id, observed_at, name, discount_percent, final_formatted)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (app_id, observed_at)
	DO UPDATE SET name = $3, discount_percent = $4, final_formatted = $5`
	_, err := r.db.Exec(ctx, query,
		snapshot.AppID,
		observedAt,
		snapshot.Name,
		snapshot.DiscountPercent,
		snapshot.FinalPriceFormatted,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot for app %d: %w", snapshot.AppID, err)
	}

	return nil
}

// LatestSnapshot returns nil when the app has no recorded history
func (r *snapshotRepository) LatestSnapshot(ctx context.Context, appID int) (*domain.ProductSnapshot, error) {
	query := `
	SELECT name, discount_percent, final_formatted
	FROM price_history
	WHERE app_id = $1
	ORDER BY observed_at DESC
	LIMIT 1`

	rows, err := r.db.Query(ctx, query, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot for app %d: %w", appID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	snapshot := &domain.ProductSnapshot{AppID: appID}
	if err := rows.Scan(&snapshot.Name, &snapshot.DiscountPercent, &snapshot.FinalPriceFormatted); err != nil {
		return nil, fmt.Errorf("failed to scan latest snapshot for app %d: %w", appID, err)
	}

	return snapshot, nil
}
