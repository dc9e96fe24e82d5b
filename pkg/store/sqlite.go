package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"vce/pkg/model"
)

const defaultSQLitePath = "/var/lib/vce/positions.db"

const sqliteSchema = `CREATE TABLE IF NOT EXISTS positions(
	host TEXT NOT NULL,
	ts INTEGER NOT NULL,
	lat REAL NOT NULL,
	lon REAL NOT NULL,
	alt REAL NOT NULL,
	PRIMARY KEY(host, ts)
)`

// latestQuery selects, per host, the newest row with ts <= ?.
const latestQuery = `SELECT p.host, p.ts, p.lat, p.lon, p.alt
FROM positions p
JOIN (SELECT host, MAX(ts) AS ts FROM positions WHERE ts <= ? GROUP BY host) l
ON p.host = l.host AND p.ts = l.ts`

// SQLiteStore persists samples in a local SQLite file. Timestamps are kept
// as Unix nanoseconds; the (host, ts) key makes samples write-once.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = defaultSQLitePath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}
	dsn := "file:" + path + "?_pragma=busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite init schema: %w", err)
	}
	log.Infof("position store: sqlite %s", path)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) WriteSamples(ctx context.Context, samples []model.PositionSample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO positions(host, ts, lat, lon, alt) VALUES(?,?,?,?,?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	last := make(map[string]int64)
	for _, p := range samples {
		prev, ok := last[p.Host]
		if !ok {
			var maxTS sql.NullInt64
			if err := tx.QueryRowContext(ctx, `SELECT MAX(ts) FROM positions WHERE host = ?`, p.Host).Scan(&maxTS); err != nil {
				_ = tx.Rollback()
				return err
			}
			prev, ok = maxTS.Int64, maxTS.Valid
		}
		ts := p.Time.UnixNano()
		if ok && ts <= prev {
			_ = tx.Rollback()
			return fmt.Errorf("%w: host=%s time=%s", ErrOutOfOrder, p.Host, p.Time.Format(time.RFC3339Nano))
		}
		last[p.Host] = ts
		if _, err := stmt.ExecContext(ctx, p.Host, ts, p.Lat, p.Lon, p.Alt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert %s@%s: %w", p.Host, p.Time.Format(time.RFC3339), err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LatestBefore(ctx context.Context, t time.Time) (map[string]model.PositionSample, error) {
	rows, err := s.db.QueryContext(ctx, latestQuery, t.UnixNano())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]model.PositionSample)
	for rows.Next() {
		p, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		out[p.Host] = p
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SeriesFor(ctx context.Context, host string) ([]model.PositionSample, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT host, ts, lat, lon, alt FROM positions WHERE host = ? ORDER BY ts`, host)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PositionSample
	for rows.Next() {
		p, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) HasSamples(ctx context.Context) (bool, error) {
	var found bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM positions LIMIT 1)`).Scan(&found)
	return found, err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func scanSample(rows *sql.Rows) (model.PositionSample, error) {
	var (
		p  model.PositionSample
		ts int64
	)
	if err := rows.Scan(&p.Host, &ts, &p.Lat, &p.Lon, &p.Alt); err != nil {
		return model.PositionSample{}, err
	}
	p.Time = time.Unix(0, ts).UTC()
	return p, nil
}
