// Package job runs one import pass: download each dataset from the feed,
// normalize it, publish it to the blob store and refresh the catalog.
package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/blob"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/dataset"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/db"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/logger"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/query"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/importer/internal/normalize"
)

// Source yields raw dataset JSON.
type Source interface {
	FetchDataset(ctx context.Context, id string) ([]byte, error)
}

// Publisher stores normalized datasets.
type Publisher interface {
	Put(ctx context.Context, id string, data []byte) (blob.ObjectInfo, error)
}

// Catalog records imported datasets.
type Catalog interface {
	UpsertDatasets(ctx context.Context, datasets []db.Dataset) error
}

// Invalidator drops stale cached copies. May be nil.
type Invalidator interface {
	Invalidate(ctx context.Context, id string) error
}

// Job wires the import pipeline. In DryRun mode nothing is written.
type Job struct {
	Source         Source
	Publisher      Publisher
	Catalog        Catalog
	Cache          Invalidator
	Log            *logger.Logger
	RequestTimeout time.Duration
	DryRun         bool
}

// Summary reports the outcome of a run.
type Summary struct {
	Imported []db.Dataset
	Failed   map[string]error
}

// Run imports every dataset. A failing dataset does not stop the others;
// the returned error joins all failures.
func (j *Job) Run(ctx context.Context, ids []string) (Summary, error) {
	log := j.Log
	if log == nil {
		log = logger.Discard()
	}

	summary := Summary{Failed: make(map[string]error)}
	for _, raw := range ids {
		id, err := dataset.NormalizeID(raw)
		if err != nil {
			summary.Failed[raw] = err
			log.Error("invalid dataset id", "dataset", raw, "error", err)
			continue
		}

		row, err := j.importOne(ctx, log, id)
		if err != nil {
			summary.Failed[id] = err
			log.Error("dataset import failed", "dataset", id, "error", err)
			continue
		}
		summary.Imported = append(summary.Imported, row)
	}

	if len(summary.Imported) > 0 {
		if j.DryRun {
			log.Info("dry-run: skipping catalog upsert", "datasets", len(summary.Imported))
		} else if err := j.Catalog.UpsertDatasets(ctx, summary.Imported); err != nil {
			return summary, fmt.Errorf("upsert catalog: %w", err)
		}
	}

	if len(summary.Failed) == 0 {
		return summary, nil
	}
	errs := make([]error, 0, len(summary.Failed))
	for id, err := range summary.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", id, err))
	}
	return summary, errors.Join(errs...)
}

func (j *Job) importOne(ctx context.Context, log *logger.Logger, id string) (db.Dataset, error) {
	if j.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.RequestTimeout)
		defer cancel()
	}

	raw, err := j.Source.FetchDataset(ctx, id)
	if err != nil {
		return db.Dataset{}, err
	}
	decoded, err := query.DecodeDataset(raw)
	if err != nil {
		return db.Dataset{}, fmt.Errorf("decode dataset %s: %w", id, err)
	}

	markers, stats := normalize.Markers(decoded)
	encoded, err := query.EncodeDataset(markers)
	if err != nil {
		return db.Dataset{}, fmt.Errorf("encode dataset %s: %w", id, err)
	}

	row := db.Dataset{
		ID:            id,
		ObjectKey:     blob.ObjectKey(id),
		SizeBytes:     int64(len(encoded)),
		MarkerCount:   stats.MarkerCount,
		ReportedCount: stats.ReportedCount,
		MinLat:        stats.MinLat,
		MinLong:       stats.MinLong,
		MaxLat:        stats.MaxLat,
		MaxLong:       stats.MaxLong,
	}
	log.Info("prepared dataset", "dataset", id, "markers", stats.MarkerCount,
		"dropped", stats.Dropped, "bytes", len(encoded), "dry_run", j.DryRun)

	if j.DryRun {
		return row, nil
	}

	info, err := j.Publisher.Put(ctx, id, encoded)
	if err != nil {
		return db.Dataset{}, err
	}
	row.ObjectKey = info.Key
	row.SizeBytes = info.Size

	if j.Cache != nil {
		if err := j.Cache.Invalidate(ctx, id); err != nil {
			log.CacheError("invalidate", id, err)
		}
	}
	return row, nil
}
