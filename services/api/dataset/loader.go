// Package dataset materializes marker datasets for the query engine. It
// reads through the Redis cache to the blob store and decodes the result.
package dataset

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/apperr"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/logger"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/query"
)

// Fetcher downloads raw dataset JSON. Missing datasets are reported as
// apperr.KindNotFound.
type Fetcher interface {
	Fetch(ctx context.Context, id string) ([]byte, error)
}

// RawCache stores raw dataset JSON. Implementations may be disabled.
type RawCache interface {
	Get(ctx context.Context, id string) ([]byte, bool, error)
	Set(ctx context.Context, id string, raw []byte) error
}

// Loader loads datasets. It is safe for concurrent use; concurrent loads
// of one dataset share a single fetch.
type Loader struct {
	fetcher Fetcher
	cache   RawCache
	log     *logger.Logger
	group   singleflight.Group
}

// NewLoader returns a loader. cache may be nil.
func NewLoader(fetcher Fetcher, cache RawCache, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.Discard()
	}
	return &Loader{fetcher: fetcher, cache: cache, log: log}
}

// Load returns the decoded markers of a dataset. The returned slice is
// shared with concurrent callers and must be treated as read-only.
func (l *Loader) Load(ctx context.Context, id string) ([]query.Marker, error) {
	v, err, _ := l.group.Do(id, func() (any, error) {
		return l.load(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.([]query.Marker), nil
}

func (l *Loader) load(ctx context.Context, id string) ([]query.Marker, error) {
	log := l.log.WithContext(ctx)

	if l.cache != nil {
		raw, ok, err := l.cache.Get(ctx, id)
		switch {
		case err != nil:
			log.CacheError("get", id, err)
		case ok:
			markers, err := decode(id, raw)
			if err == nil {
				log.DatasetFetch(id, "cache", len(raw), len(markers))
				return markers, nil
			}
			log.CacheError("decode", id, err)
		}
	}

	raw, err := l.fetcher.Fetch(ctx, id)
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.KindInternal, fmt.Sprintf("fetch dataset %s", id), err).
			WithOp("dataset.Load").
			WithDetails(map[string]string{"dataset": id})
	}

	markers, err := decode(id, raw)
	if err != nil {
		return nil, err
	}
	log.DatasetFetch(id, "blob", len(raw), len(markers))

	if l.cache != nil {
		if err := l.cache.Set(ctx, id, raw); err != nil {
			log.CacheError("set", id, err)
		}
	}
	return markers, nil
}

func decode(id string, raw []byte) ([]query.Marker, error) {
	markers, err := query.DecodeDataset(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, fmt.Sprintf("dataset %s is malformed", id), err).
			WithOp("dataset.Load").
			WithDetails(map[string]string{"dataset": id})
	}
	return markers, nil
}
