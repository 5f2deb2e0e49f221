package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps the dataset catalog.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Dataset is one catalog row describing an imported marker dataset.
type Dataset struct {
	ID            string    `json:"id"`
	ObjectKey     string    `json:"object_key"`
	SizeBytes     int64     `json:"size_bytes"`
	MarkerCount   int       `json:"marker_count"`
	ReportedCount int       `json:"reported_count"`
	MinLat        *float64  `json:"min_lat,omitempty"`
	MinLong       *float64  `json:"min_long,omitempty"`
	MaxLat        *float64  `json:"max_lat,omitempty"`
	MaxLong       *float64  `json:"max_long,omitempty"`
	ImportedAt    time.Time `json:"imported_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

const datasetColumns = `id, object_key, size_bytes, marker_count, reported_count,
       min_lat, min_long, max_lat, max_long, imported_at, updated_at`

const listDatasetsSQL = `
    SELECT ` + datasetColumns + `
    FROM markers.datasets
    ORDER BY id
`

// ListDatasets returns every catalog entry.
func (s *Store) ListDatasets(ctx context.Context) ([]Dataset, error) {
	rows, err := s.pool.Query(ctx, listDatasetsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	datasets := make([]Dataset, 0)
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, d)
	}
	return datasets, rows.Err()
}

const getDatasetSQL = `
    SELECT ` + datasetColumns + `
    FROM markers.datasets
    WHERE id = $1
`

// GetDataset returns one catalog entry, or nil when it does not exist.
func (s *Store) GetDataset(ctx context.Context, id string) (*Dataset, error) {
	d, err := scanDataset(s.pool.QueryRow(ctx, getDatasetSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

const upsertDatasetSQL = `INSERT INTO markers.datasets
    (id, object_key, size_bytes, marker_count, reported_count, min_lat, min_long, max_lat, max_long, imported_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())
ON CONFLICT (id) DO UPDATE
SET object_key = EXCLUDED.object_key,
    size_bytes = EXCLUDED.size_bytes,
    marker_count = EXCLUDED.marker_count,
    reported_count = EXCLUDED.reported_count,
    min_lat = EXCLUDED.min_lat,
    min_long = EXCLUDED.min_long,
    max_lat = EXCLUDED.max_lat,
    max_long = EXCLUDED.max_long,
    updated_at = NOW()`

// UpsertDatasets inserts or refreshes catalog rows in one batch.
func (s *Store) UpsertDatasets(ctx context.Context, datasets []Dataset) error {
	if len(datasets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, d := range datasets {
		batch.Queue(upsertDatasetSQL, d.ID, d.ObjectKey, d.SizeBytes, d.MarkerCount, d.ReportedCount,
			d.MinLat, d.MinLong, d.MaxLat, d.MaxLong)
	}

	res := s.pool.SendBatch(ctx, batch)
	defer res.Close()

	for range datasets {
		if _, err := res.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func scanDataset(row pgx.Row) (Dataset, error) {
	var d Dataset
	err := row.Scan(
		&d.ID,
		&d.ObjectKey,
		&d.SizeBytes,
		&d.MarkerCount,
		&d.ReportedCount,
		&d.MinLat,
		&d.MinLong,
		&d.MaxLat,
		&d.MaxLong,
		&d.ImportedAt,
		&d.UpdatedAt,
	)
	return d, err
}
