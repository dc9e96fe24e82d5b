package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"vce/pkg/config"
	"vce/pkg/model"
)

// ErrOutOfOrder is returned when a sample does not advance its host's series.
var ErrOutOfOrder = errors.New("position sample not after previous sample of host")

// PositionStore holds one position sample per node per simulated step.
// Reads may run concurrently; writes happen before serving starts.
type PositionStore interface {
	// WriteSamples appends a batch; no ordering is required across hosts.
	WriteSamples(ctx context.Context, samples []model.PositionSample) error
	// LatestBefore returns, per host, the latest sample at or before t.
	// Hosts without such a sample are absent.
	LatestBefore(ctx context.Context, t time.Time) (map[string]model.PositionSample, error)
	// SeriesFor returns a host's samples ordered by time.
	SeriesFor(ctx context.Context, host string) ([]model.PositionSample, error)
	Close() error
}

// Open builds the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (PositionStore, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		s, err := OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "mysql":
		s, err := OpenMySQL(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "consul":
		return NewConsulStore(cfg.ConsulAddr, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

// endOfTime is the latest instant whose Unix nanoseconds fit in an int64,
// which is how the SQL backends key samples.
var endOfTime = time.Unix(0, math.MaxInt64).UTC()

// emptinessChecker is implemented by backends that can tell whether they
// hold any sample without reading the latest row of every host.
type emptinessChecker interface {
	HasSamples(ctx context.Context) (bool, error)
}

// HasSamples reports whether anything has been written yet.
func HasSamples(ctx context.Context, s PositionStore) (bool, error) {
	if ec, ok := s.(emptinessChecker); ok {
		return ec.HasSamples(ctx)
	}
	latest, err := s.LatestBefore(ctx, endOfTime)
	if err != nil {
		return false, err
	}
	return len(latest) > 0, nil
}
